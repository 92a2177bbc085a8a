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

// Package record implements the per-vertex bookkeeping shared by the
// Even-Shiloach tree maintainers in package reach: the slot-indexed
// in-neighbor table (ESRecord, used by OldESTree/ESTreeQ/ESTreeML) and the
// direct-parent record (SimpleRecord, used by SimpleESTree). Records are
// addressed by opaque handle into a Store arena, never by pointer that
// could outlive a removed vertex, per the "cyclic / back-pointer graphs in
// an ownership discipline" design note: in_neighbors[i] is a handle, not
// an owning reference, and arc_to_slot is a mapping from arc identity to
// slot index, not a pointer into the table.
package record

import "github.com/libAlgora/dynreach/graph"

// Unreachable is the UNREACHABLE sentinel level: a fixed max-int label that
// does not depend on any graph size. Each Store tracks its own record
// count (Store.size) rather than a package-level global, per the "global
// graph-size constant" design note.
const Unreachable = int(^uint(0) >> 1) // max int, used only as a label

// slot is one entry of an ESRecord's in-neighbor table.
type slot struct {
	occupied bool
	pred     graph.VertexID // predecessor record's vertex
	arc      graph.ArcID    // a representative arc realizing this slot, for query_path
	count    int32          // parallel-arc multiplicity (ESTreeML only)
}

// ESRecord is the per-vertex record kept by OldESTree, ESTreeQ and
// ESTreeML (spec section 3, "ES vertex record").
type ESRecord struct {
	Level int

	slots       []slot
	recycled    []int // stack of free slot indices, popped LIFO
	arcToSlot   map[graph.ArcID]int
	predToSlot  map[graph.VertexID]int // counted mode only (ESTreeML)
	parentIndex int                    // index into slots; -1 if no parent chosen
}

func newESRecord() *ESRecord {
	return &ESRecord{
		Level:       Unreachable,
		arcToSlot:   make(map[graph.ArcID]int),
		parentIndex: -1,
	}
}

// Reachable reports whether the record currently has a finite level.
func (obj *ESRecord) Reachable() bool {
	return obj.Level != Unreachable
}

// ParentSlot returns the vertex currently chosen as parent and whether
// one is chosen at all.
func (obj *ESRecord) ParentSlot() (graph.VertexID, bool) {
	if obj.parentIndex < 0 || obj.parentIndex >= len(obj.slots) {
		return 0, false
	}
	s := obj.slots[obj.parentIndex]
	if !s.occupied {
		return 0, false
	}
	return s.pred, true
}

// ParentIndex returns the raw slot index currently chosen as parent, or -1.
func (obj *ESRecord) ParentIndex() int { return obj.parentIndex }

// SetParentIndex sets the raw slot index chosen as parent; -1 means none.
func (obj *ESRecord) SetParentIndex(i int) { obj.parentIndex = i }

// SetLevel sets the record's level directly; used by reparent/process in
// package reach, which own the level-transition logic this record only
// stores the result of.
func (obj *ESRecord) SetLevel(level int) { obj.Level = level }

// NumSlots returns the number of slots in the table, occupied or not.
func (obj *ESRecord) NumSlots() int { return len(obj.slots) }

// SlotOccupied reports whether slot i holds a predecessor.
func (obj *ESRecord) SlotOccupied(i int) bool {
	return i >= 0 && i < len(obj.slots) && obj.slots[i].occupied
}

// SlotPredecessor returns the predecessor vertex held in slot i.
func (obj *ESRecord) SlotPredecessor(i int) graph.VertexID {
	return obj.slots[i].pred
}

// SlotCount returns the parallel-arc multiplicity of slot i.
func (obj *ESRecord) SlotCount(i int) int32 {
	return obj.slots[i].count
}

// SlotArc returns a representative arc realizing slot i, usable to
// reconstruct a query_path step from the predecessor into this record.
func (obj *ESRecord) SlotArc(i int) graph.ArcID {
	return obj.slots[i].arc
}

// SlotForArc returns the slot index arc a currently occupies, per the
// arc_to_slot mapping (spec section 3).
func (obj *ESRecord) SlotForArc(a graph.ArcID) (int, bool) {
	i, ok := obj.arcToSlot[a]
	return i, ok
}

// HasAnyPredecessor reports whether any slot is occupied at all ("v's
// in_neighbors is entirely empty" in spec section 4.3's process()).
func (obj *ESRecord) HasAnyPredecessor() bool {
	for _, s := range obj.slots {
		if s.occupied {
			return true
		}
	}
	return false
}

// allocSlot reuses a recycled index if one is free, else grows the table.
func (obj *ESRecord) allocSlot(pred graph.VertexID, a graph.ArcID) int {
	var i int
	if n := len(obj.recycled); n > 0 {
		i = obj.recycled[n-1]
		obj.recycled = obj.recycled[:n-1]
	} else {
		i = len(obj.slots)
		obj.slots = append(obj.slots, slot{})
	}
	obj.slots[i] = slot{occupied: true, pred: pred, arc: a, count: 1}
	return i
}

// insertSlot gives arc a, from pred, its own slot (recycling a free index
// if any) and returns the slot index used. This is the bijective mode
// OldESTree and ESTreeQ use: one slot per arc, per the arc-slot bijection
// invariant (spec section 3).
func (obj *ESRecord) insertSlot(a graph.ArcID, pred graph.VertexID) int {
	i := obj.allocSlot(pred, a)
	obj.arcToSlot[a] = i
	return i
}

// removeSlot vacates and recycles the slot arc a occupies (bijective
// mode). Returns the slot index touched and whether it was the current
// parent slot.
func (obj *ESRecord) removeSlot(a graph.ArcID) (index int, wasParent bool, ok bool) {
	i, known := obj.arcToSlot[a]
	if !known {
		return 0, false, false
	}
	obj.slots[i] = slot{}
	obj.recycled = append(obj.recycled, i)
	delete(obj.arcToSlot, a)
	wasParent = i == obj.parentIndex
	if wasParent {
		obj.parentIndex = -1
	}
	return i, wasParent, true
}

// insertSlotCounted gives arc a a slot shared with every other live arc
// from the same pred, incrementing that slot's multiplicity count instead
// of allocating a new one when pred already occupies a slot. This is
// ESTreeML's mode: "a slot holds (predecessor, count)... resilient to
// multi-edges without bloating the table" (spec section 4.3).
func (obj *ESRecord) insertSlotCounted(a graph.ArcID, pred graph.VertexID) int {
	if obj.predToSlot == nil {
		obj.predToSlot = make(map[graph.VertexID]int)
	}
	if i, ok := obj.predToSlot[pred]; ok {
		obj.slots[i].count++
		obj.arcToSlot[a] = i
		return i
	}
	i := obj.allocSlot(pred, a)
	obj.predToSlot[pred] = i
	obj.arcToSlot[a] = i
	return i
}

// removeSlotCounted decrements the multiplicity of arc a's shared slot,
// vacating and recycling it only once the count reaches zero. If a was the
// slot's representative arc, another live arc of the slot takes its place.
func (obj *ESRecord) removeSlotCounted(a graph.ArcID) (index int, wasParent bool, ok bool) {
	i, known := obj.arcToSlot[a]
	if !known {
		return 0, false, false
	}
	delete(obj.arcToSlot, a)
	obj.slots[i].count--
	if obj.slots[i].count > 0 {
		if obj.slots[i].arc == a {
			for other, j := range obj.arcToSlot {
				if j == i {
					obj.slots[i].arc = other
					break
				}
			}
		}
		return i, i == obj.parentIndex, true
	}
	pred := obj.slots[i].pred
	obj.slots[i] = slot{}
	obj.recycled = append(obj.recycled, i)
	if obj.predToSlot != nil {
		delete(obj.predToSlot, pred)
	}
	wasParent = i == obj.parentIndex
	if wasParent {
		obj.parentIndex = -1
	}
	return i, wasParent, true
}

// Store is the arena for ESRecords of a single graph, keyed by VertexID.
// It tracks the graph's current vertex count itself (rather than through a
// package-level global), per the "global graph-size constant" design note.
type Store struct {
	records map[graph.VertexID]*ESRecord
	size    int
}

// NewStore returns an empty record store.
func NewStore() *Store {
	return &Store{records: make(map[graph.VertexID]*ESRecord)}
}

// Size returns the current |V| as tracked by Add/Remove calls.
func (obj *Store) Size() int { return obj.size }

// Add allocates a fresh record for v, lazily (spec section 3, "Lifecycle").
func (obj *Store) Add(v graph.VertexID) *ESRecord {
	if r, ok := obj.records[v]; ok {
		return r
	}
	r := newESRecord()
	obj.records[v] = r
	obj.size++
	return r
}

// Get returns the record for v, allocating one if it does not exist yet
// (first observation via tree discovery, per spec section 3).
func (obj *Store) Get(v graph.VertexID) *ESRecord {
	if r, ok := obj.records[v]; ok {
		return r
	}
	return obj.Add(v)
}

// Lookup returns the record for v without creating one.
func (obj *Store) Lookup(v graph.VertexID) (*ESRecord, bool) {
	r, ok := obj.records[v]
	return r, ok
}

// Remove destroys the record for v.
func (obj *Store) Remove(v graph.VertexID) {
	if _, ok := obj.records[v]; ok {
		delete(obj.records, v)
		obj.size--
	}
}

// Reset clears every record, as on source change or graph unset.
func (obj *Store) Reset() {
	obj.records = make(map[graph.VertexID]*ESRecord)
	obj.size = 0
}

// InsertArc records that arc a, from a predecessor pred, has been added
// into head's in-neighbor table under the bijective (one slot per arc)
// discipline OldESTree and ESTreeQ use, and returns the slot index used.
func (obj *Store) InsertArc(head graph.VertexID, a graph.ArcID, pred graph.VertexID) int {
	return obj.Get(head).insertSlot(a, pred)
}

// RemoveArc removes arc a from head's in-neighbor table (bijective mode),
// returning whether it was the current parent arc.
func (obj *Store) RemoveArc(head graph.VertexID, a graph.ArcID) (wasParent bool, ok bool) {
	r, exists := obj.records[head]
	if !exists {
		return false, false
	}
	_, wasParent, ok = r.removeSlot(a)
	return wasParent, ok
}

// InsertArcCounted is InsertArc under ESTreeML's counted discipline:
// parallel arcs from the same predecessor share one slot with a
// multiplicity counter.
func (obj *Store) InsertArcCounted(head graph.VertexID, a graph.ArcID, pred graph.VertexID) int {
	return obj.Get(head).insertSlotCounted(a, pred)
}

// RemoveArcCounted is RemoveArc under ESTreeML's counted discipline.
func (obj *Store) RemoveArcCounted(head graph.VertexID, a graph.ArcID) (wasParent bool, ok bool) {
	r, exists := obj.records[head]
	if !exists {
		return false, false
	}
	_, wasParent, ok = r.removeSlotCounted(a)
	return wasParent, ok
}
