// Mgmt
// Copyright (C) 2013-2016+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package record

import "github.com/libAlgora/dynreach/graph"

// SimpleRecord is the per-vertex record kept by SimpleESTree: a direct
// parent pointer and tree arc, no in-neighbor table, since the maintainer
// re-scans incoming arcs on demand instead of keeping one.
type SimpleRecord struct {
	Level     int
	HasParent bool
	Parent    graph.VertexID
	TreeArc   graph.ArcID
}

func newSimpleRecord() *SimpleRecord {
	return &SimpleRecord{Level: Unreachable}
}

// Reachable reports whether the record currently has a finite level.
func (obj *SimpleRecord) Reachable() bool {
	return obj.Level != Unreachable
}

// ClearParent implements the "clear parent, then restore" ordering this
// library adopts for SimpleESTree's on_arc_remove (design note: the older
// onArcRemove zeroes hd->parent and hd->treeArc before calling
// restoreTree; this is that reset).
func (obj *SimpleRecord) ClearParent() {
	obj.HasParent = false
	obj.Parent = 0
	obj.TreeArc = 0
}

// SetUnreachable resets the record to the UNREACHABLE state.
func (obj *SimpleRecord) SetUnreachable() {
	obj.Level = Unreachable
	obj.ClearParent()
}

// SimpleStore is the arena for SimpleRecords of a single graph.
type SimpleStore struct {
	records map[graph.VertexID]*SimpleRecord
	size    int
}

// NewSimpleStore returns an empty simple record store.
func NewSimpleStore() *SimpleStore {
	return &SimpleStore{records: make(map[graph.VertexID]*SimpleRecord)}
}

// Size returns the current |V| as tracked by Add/Remove calls.
func (obj *SimpleStore) Size() int { return obj.size }

// Add allocates a fresh record for v.
func (obj *SimpleStore) Add(v graph.VertexID) *SimpleRecord {
	if r, ok := obj.records[v]; ok {
		return r
	}
	r := newSimpleRecord()
	obj.records[v] = r
	obj.size++
	return r
}

// Get returns the record for v, allocating one if it does not exist yet.
func (obj *SimpleStore) Get(v graph.VertexID) *SimpleRecord {
	if r, ok := obj.records[v]; ok {
		return r
	}
	return obj.Add(v)
}

// Lookup returns the record for v without creating one.
func (obj *SimpleStore) Lookup(v graph.VertexID) (*SimpleRecord, bool) {
	r, ok := obj.records[v]
	return r, ok
}

// Remove destroys the record for v.
func (obj *SimpleStore) Remove(v graph.VertexID) {
	if _, ok := obj.records[v]; ok {
		delete(obj.records, v)
		obj.size--
	}
}

// Reset clears every record, as on source change or graph unset.
func (obj *SimpleStore) Reset() {
	obj.records = make(map[graph.VertexID]*SimpleRecord)
	obj.size = 0
}
