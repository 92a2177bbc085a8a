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

// Package graph implements the plain directed multigraph that underlies the
// dynamic, replayable host in this module, plus the host (DynamicGraph)
// itself. Vertex and arc identities are stable opaque handles (VertexID,
// ArcID); a Graph never hands out a pointer that a caller could use to
// outlive a removed vertex or arc.
package graph

import (
	"sort"

	"github.com/google/uuid"

	"github.com/libAlgora/dynreach/util/errwrap"
)

// VertexID is a stable, opaque handle for a vertex. It remains valid only
// for as long as the vertex has not been removed from the graph that
// allocated it.
type VertexID uint64

// ArcID is a stable, opaque handle for an arc, analogous to VertexID.
type ArcID uint64

// vertexNode is the internal bookkeeping record for one vertex: its
// external label (whatever comparable value the caller used to name it)
// and the sets of arcs that touch it.
type vertexNode struct {
	label any
	out   map[ArcID]struct{}
	in    map[ArcID]struct{}
}

// arcNode is the internal bookkeeping record for one arc.
type arcNode struct {
	id     ArcID
	tail   VertexID
	head   VertexID
	weight int64 // tracked per spec, unused by any maintainer
}

// Graph is a directed multigraph addressed by VertexID/ArcID handles.
// Self-loops are permitted but every maintainer in package reach treats
// them as no-ops; multi-arcs (more than one arc with the same tail and
// head) are permitted throughout, and ESTreeML is the one maintainer that
// counts parallel copies rather than collapsing them.
//
// Logf, if set, receives a line for every structural mutation. It is nil
// by default, the same "check once, don't wrap in a closure" convention
// mgmt's pgraph.Graph and engine/graph.Engine use for their own Logf
// fields.
type Graph struct {
	Logf func(format string, v ...interface{})

	vertices map[VertexID]*vertexNode
	arcs     map[ArcID]*arcNode

	labelToVertex map[any]VertexID
	vertexToLabel map[VertexID]any

	nextVertexID uint64
	nextArcID    uint64
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		vertices:      make(map[VertexID]*vertexNode),
		arcs:          make(map[ArcID]*arcNode),
		labelToVertex: make(map[any]VertexID),
		vertexToLabel: make(map[VertexID]any),
	}
}

func (obj *Graph) logf(format string, v ...interface{}) {
	if obj.Logf != nil {
		obj.Logf(format, v...)
	}
}

// newLabel generates an internal label for a vertex the caller did not
// name explicitly, backed by google/uuid the way mgmt generates
// engine-internal identities.
func newLabel() any {
	return uuid.New()
}

// AddVertex adds a new vertex under the given label, or returns the
// existing VertexID (created=false) if okIfExists is true and the label
// is already present. If label is nil, an internal uuid-backed label is
// generated. It fails with ErrDuplicateVertex if the label exists and
// okIfExists is false.
func (obj *Graph) AddVertex(label any, okIfExists bool) (VertexID, bool, error) {
	if label == nil {
		label = newLabel()
	}
	if id, exists := obj.labelToVertex[label]; exists {
		if !okIfExists {
			return 0, false, duplicateVertexf("vertex %v already exists", label)
		}
		return id, false, nil
	}
	obj.nextVertexID++
	id := VertexID(obj.nextVertexID)
	obj.vertices[id] = &vertexNode{
		label: label,
		out:   make(map[ArcID]struct{}),
		in:    make(map[ArcID]struct{}),
	}
	obj.labelToVertex[label] = id
	obj.vertexToLabel[id] = label
	obj.logf("AddVertex(%v) -> %v", label, id)
	return id, true, nil
}

// Lookup resolves a caller-supplied label to its VertexID.
func (obj *Graph) Lookup(label any) (VertexID, bool) {
	id, ok := obj.labelToVertex[label]
	return id, ok
}

// Label returns the external label a VertexID was created under.
func (obj *Graph) Label(v VertexID) (any, bool) {
	l, ok := obj.vertexToLabel[v]
	return l, ok
}

// HasVertex reports whether v is a live vertex of this graph.
func (obj *Graph) HasVertex(v VertexID) bool {
	_, ok := obj.vertices[v]
	return ok
}

// RemovedArc snapshots an arc's endpoints at the moment it was removed as
// a side effect of removing one of its endpoints, so callers can still
// report which vertices it used to connect.
type RemovedArc struct {
	ID         ArcID
	Tail, Head VertexID
}

// RemoveVertex deletes v and every arc incident to it, returning a
// snapshot of the arcs that were removed as a side effect (the caller,
// typically DynamicGraph, is responsible for surfacing those as
// RemoveArc events to maintainers before the vertex-remove event itself).
func (obj *Graph) RemoveVertex(v VertexID) ([]RemovedArc, error) {
	node, ok := obj.vertices[v]
	if !ok {
		return nil, unknownVertexf("vertex %v does not exist", v)
	}
	var removed []RemovedArc
	ids := make(map[ArcID]struct{}, len(node.out)+len(node.in))
	for a := range node.out {
		ids[a] = struct{}{}
	}
	for a := range node.in {
		ids[a] = struct{}{}
	}
	for a := range ids {
		an := obj.arcs[a]
		removed = append(removed, RemovedArc{ID: a, Tail: an.tail, Head: an.head})
	}
	// Each incident arc is removed through the same path a standalone
	// RemoveArc call would take, so a future failure mode added there
	// (e.g. a listener veto) surfaces here too instead of being silently
	// bypassed by an unchecked fast path.
	var rerr error
	for _, r := range removed {
		if err := obj.RemoveArc(r.ID); err != nil {
			rerr = errwrap.Append(rerr, errwrap.Wrapf(err, "removing incident arc %v", r.ID))
		}
	}
	if rerr != nil {
		return removed, rerr
	}
	label := obj.vertexToLabel[v]
	delete(obj.vertices, v)
	delete(obj.vertexToLabel, v)
	delete(obj.labelToVertex, label)
	obj.logf("RemoveVertex(%v)", v)
	return removed, nil
}

// AddArc adds a new arc from tail to head with the given weight (tracked
// but otherwise unused, per spec). Both endpoints must already exist.
func (obj *Graph) AddArc(tail, head VertexID, weight int64) (ArcID, error) {
	tn, ok := obj.vertices[tail]
	if !ok {
		return 0, unknownVertexf("tail vertex %v does not exist", tail)
	}
	hn, ok := obj.vertices[head]
	if !ok {
		return 0, unknownVertexf("head vertex %v does not exist", head)
	}
	obj.nextArcID++
	id := ArcID(obj.nextArcID)
	obj.arcs[id] = &arcNode{id: id, tail: tail, head: head, weight: weight}
	tn.out[id] = struct{}{}
	hn.in[id] = struct{}{}
	obj.logf("AddArc(%v, %v -> %v)", id, tail, head)
	return id, nil
}

// FindArc returns an existing arc from tail to head, if any. When multiple
// parallel arcs exist, the one with the lowest ArcID (earliest-inserted)
// is returned, matching the "lower slot index" determinism the ES-tree
// maintainers rely on elsewhere.
func (obj *Graph) FindArc(tail, head VertexID) (ArcID, bool) {
	tn, ok := obj.vertices[tail]
	if !ok {
		return 0, false
	}
	var best ArcID
	found := false
	for a := range tn.out {
		an := obj.arcs[a]
		if an.head != head {
			continue
		}
		if !found || a < best {
			best = a
			found = true
		}
	}
	return best, found
}

// HasArc reports whether a is a live arc of this graph.
func (obj *Graph) HasArc(a ArcID) bool {
	_, ok := obj.arcs[a]
	return ok
}

// Arc returns the tail, head and weight of an arc.
func (obj *Graph) Arc(a ArcID) (tail, head VertexID, weight int64, ok bool) {
	an, exists := obj.arcs[a]
	if !exists {
		return 0, 0, 0, false
	}
	return an.tail, an.head, an.weight, true
}

// RemoveArc deletes an arc by id.
func (obj *Graph) RemoveArc(a ArcID) error {
	if _, ok := obj.arcs[a]; !ok {
		return unknownArcf("arc %v does not exist", a)
	}
	obj.removeArcUnchecked(a)
	obj.logf("RemoveArc(%v)", a)
	return nil
}

func (obj *Graph) removeArcUnchecked(a ArcID) {
	an, ok := obj.arcs[a]
	if !ok {
		return
	}
	if tn, ok := obj.vertices[an.tail]; ok {
		delete(tn.out, a)
	}
	if hn, ok := obj.vertices[an.head]; ok {
		delete(hn.in, a)
	}
	delete(obj.arcs, a)
}

// Size returns the number of live vertices.
func (obj *Graph) Size() int {
	return len(obj.vertices)
}

// NumArcs returns the number of live arcs.
func (obj *Graph) NumArcs() int {
	return len(obj.arcs)
}

// IsSink reports whether v has no outgoing arcs.
func (obj *Graph) IsSink(v VertexID) bool {
	n, ok := obj.vertices[v]
	return ok && len(n.out) == 0
}

// IsSource reports whether v has no incoming arcs.
func (obj *Graph) IsSource(v VertexID) bool {
	n, ok := obj.vertices[v]
	return ok && len(n.in) == 0
}

// AnyVertex returns an arbitrary live vertex, for fallback source
// selection. Iteration order over Go maps is randomized, which is fine
// here: the contract only promises "a" vertex, not a deterministic one.
func (obj *Graph) AnyVertex() (VertexID, bool) {
	for v := range obj.vertices {
		return v, true
	}
	return 0, false
}

// Vertices returns every live vertex, sorted by VertexID for determinism.
func (obj *Graph) Vertices() []VertexID {
	out := make([]VertexID, 0, len(obj.vertices))
	for v := range obj.vertices {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MapOutgoingArcsUntil calls f for every outgoing arc of v, in ascending
// ArcID order, stopping (and returning true) as soon as f returns true.
// Returns false if f never returned true.
func (obj *Graph) MapOutgoingArcsUntil(v VertexID, f func(a ArcID, head VertexID) bool) bool {
	n, ok := obj.vertices[v]
	if !ok {
		return false
	}
	ids := make([]ArcID, 0, len(n.out))
	for a := range n.out {
		ids = append(ids, a)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, a := range ids {
		if f(a, obj.arcs[a].head) {
			return true
		}
	}
	return false
}

// MapIncomingArcsUntil calls f for every incoming arc of v, in ascending
// ArcID order, stopping (and returning true) as soon as f returns true.
func (obj *Graph) MapIncomingArcsUntil(v VertexID, f func(a ArcID, tail VertexID) bool) bool {
	n, ok := obj.vertices[v]
	if !ok {
		return false
	}
	ids := make([]ArcID, 0, len(n.in))
	for a := range n.in {
		ids = append(ids, a)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, a := range ids {
		if f(a, obj.arcs[a].tail) {
			return true
		}
	}
	return false
}

// OutDegree returns the number of outgoing arcs of v.
func (obj *Graph) OutDegree(v VertexID) int {
	n, ok := obj.vertices[v]
	if !ok {
		return 0
	}
	return len(n.out)
}

// InDegree returns the number of incoming arcs of v.
func (obj *Graph) InDegree(v VertexID) int {
	n, ok := obj.vertices[v]
	if !ok {
		return 0
	}
	return len(n.in)
}

// DFS returns a depth-first discovery order for the graph, starting at
// start. Adapted from pgraph.Graph.DFS: same explicit stack, same
// "discovered" slice, generalized from *Vertex to VertexID and from the
// union of in/out edges to outgoing edges only (the direction that
// matters for reachability).
func (obj *Graph) DFS(start VertexID) []VertexID {
	if !obj.HasVertex(start) {
		return nil
	}
	discovered := make(map[VertexID]bool)
	var order []VertexID
	stack := []VertexID{start}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if discovered[v] {
			continue
		}
		discovered[v] = true
		order = append(order, v)
		obj.MapOutgoingArcsUntil(v, func(_ ArcID, head VertexID) bool {
			if !discovered[head] {
				stack = append(stack, head)
			}
			return false
		})
	}
	return order
}

// BFSLevels runs a full breadth-first search from source over the current
// graph and returns the distance (number of arcs) from source to every
// reachable vertex. This is the ground-truth function the incremental
// maintainers are checked against in tests; it is not used on any
// maintainer's hot path.
func (obj *Graph) BFSLevels(source VertexID) map[VertexID]int {
	levels := map[VertexID]int{source: 0}
	queue := []VertexID{source}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		obj.MapOutgoingArcsUntil(v, func(_ ArcID, head VertexID) bool {
			if _, seen := levels[head]; !seen {
				levels[head] = levels[v] + 1
				queue = append(queue, head)
			}
			return false
		})
	}
	return levels
}
