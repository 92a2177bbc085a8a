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

package graph

// Listener is the event interface a reachability maintainer subscribes
// with. DynamicGraph calls these synchronously, in subscription order,
// from inside whichever call (recording or replay) caused the mutation;
// there are no suspension points, matching spec section 5's
// single-threaded cooperative model.
type Listener interface {
	OnVertexAdd(v VertexID)
	OnVertexRemove(v VertexID)
	OnArcAdd(a ArcID, tail, head VertexID)
	OnArcRemove(a ArcID, tail, head VertexID)
}

type opKind int

const (
	opAddVertex opKind = iota
	opRemoveVertex
	opAddArc
	opRemoveArc
	opNoOp
	opComposite
)

// op is one record of the operation log. Only the fields relevant to Kind
// are populated; this mirrors the tagged-record description in spec
// section 3 ("AddVertex(id), RemoveVertex(v), AddArc(tail,head),
// RemoveArc(arc), NoOp, Composite[...]").
type op struct {
	kind opKind
	ts   int64

	label      any  // AddVertex / RemoveVertex
	okIfExists bool // AddVertex

	tail, head         any   // AddArc / RemoveArc
	weight             int64 // AddArc
	removeIsolatedEnds bool  // RemoveArc

	sub []*op // Composite
}

// ageEntry is a scheduled auto-removal: an arc (identified by its
// endpoint labels, since that is how RemoveArc itself is addressed) that
// should be removed once the delta counter reaches fireAt.
type ageEntry struct {
	tail, head any
	fireAt     int
}

// DynamicGraph is the append-only, replayable log of graph operations
// described in spec section 4.1. It keeps two views: Construction (built
// by applying the whole log as it is recorded, used to validate arc
// existence while recording) and Current (built by replaying a prefix of
// the log, the view maintainers actually observe).
type DynamicGraph struct {
	// Logf, if set, receives one line per recorded AddVertex,
	// RemoveVertex, AddArc or RemoveArc. Replay does not log.
	Logf func(format string, v ...interface{})

	// ToggleDuplicateArcs makes a second AddArc(tail, head) call (one
	// that would otherwise create a parallel arc already present in
	// the construction graph) behave as a RemoveArc(tail, head)
	// instead, per spec section 4.1's "secondary mode".
	ToggleDuplicateArcs bool

	construction *Graph
	current      *Graph

	log    []*op
	cursor int

	lastTS  int64
	hasOps  bool
	started bool // true once any op has been applied to Current

	listeners []Listener

	ageSchedule map[int][]ageEntry
	deltaCount  int
}

// NewDynamicGraph returns an empty host with both views initialized.
func NewDynamicGraph() *DynamicGraph {
	return &DynamicGraph{
		construction: New(),
		current:      New(),
		ageSchedule:  make(map[int][]ageEntry),
	}
}

func (obj *DynamicGraph) logf(format string, v ...interface{}) {
	if obj.Logf != nil {
		obj.Logf(format, v...)
	}
}

// Subscribe registers a Listener to receive events as they are applied to
// the Current view, in the order subscribed.
func (obj *DynamicGraph) Subscribe(l Listener) {
	obj.listeners = append(obj.listeners, l)
}

// checkTimestamp enforces the non-decreasing timestamp invariant. It
// changes no state; beginDelta flushes scheduled auto-removals.
func (obj *DynamicGraph) checkTimestamp(ts int64) error {
	if obj.hasOps && ts < obj.lastTS {
		return invalidTimestampf("timestamp %d precedes last recorded timestamp %d", ts, obj.lastTS)
	}
	return nil
}

// beginDelta records that we are about to append at least one op at ts,
// advancing the delta counter if ts starts a new delta, and flushing any
// auto-removals scheduled for this delta before the caller's own ops are
// appended (so they land "before any other op at that timestamp").
func (obj *DynamicGraph) beginDelta(ts int64) {
	if obj.hasOps && ts == obj.lastTS {
		obj.flushAged(ts)
		return
	}
	obj.deltaCount++
	obj.hasOps = true
	obj.lastTS = ts
	obj.flushAged(ts)
}

func (obj *DynamicGraph) flushAged(ts int64) {
	due := obj.ageSchedule[obj.deltaCount]
	if len(due) == 0 {
		return
	}
	delete(obj.ageSchedule, obj.deltaCount)
	for _, e := range due {
		// Best-effort: the arc may already be gone by other means.
		_ = obj.appendRemoveArc(ts, e.tail, e.head, false)
	}
}

// appendOp appends a fully-formed top-level record, applies it to the
// construction view immediately (without emitting listener events; the
// construction view is a bookkeeping device, never observed by
// maintainers), and returns it.
func (obj *DynamicGraph) appendOp(o *op) error {
	if err := obj.applyOp(o, obj.construction, false); err != nil {
		return err
	}
	obj.log = append(obj.log, o)
	return nil
}

// --- recording API -------------------------------------------------------

// AddVertex appends an AddVertex record. If label already exists and
// okIfExists is false, this fails with ErrDuplicateVertex.
func (obj *DynamicGraph) AddVertex(ts int64, label any, okIfExists bool) (VertexID, error) {
	if err := obj.checkTimestamp(ts); err != nil {
		return 0, err
	}
	if !okIfExists {
		if _, exists := obj.construction.Lookup(label); exists {
			return 0, duplicateVertexf("vertex %v already exists", label)
		}
	}
	obj.beginDelta(ts)
	o := &op{kind: opAddVertex, ts: ts, label: label, okIfExists: okIfExists}
	if err := obj.appendOp(o); err != nil {
		return 0, err
	}
	id, _ := obj.construction.Lookup(label)
	obj.logf("AddVertex(ts=%d, %v) -> %v", ts, label, id)
	return id, nil
}

// RemoveVertex appends a RemoveVertex record, plus an implicit RemoveArc
// for every arc currently incident to it. Fails with ErrUnknownVertex if
// the label is not known to the construction graph.
func (obj *DynamicGraph) RemoveVertex(ts int64, label any) error {
	if err := obj.checkTimestamp(ts); err != nil {
		return err
	}
	if _, exists := obj.construction.Lookup(label); !exists {
		return unknownVertexf("vertex %v does not exist", label)
	}
	obj.beginDelta(ts)
	o := &op{kind: opRemoveVertex, ts: ts, label: label}
	if err := obj.appendOp(o); err != nil {
		return err
	}
	obj.logf("RemoveVertex(ts=%d, %v)", ts, label)
	return nil
}

// AddArc appends an AddArc record, per spec section 4.1. Missing
// endpoints are either antedated (if antedate is true and nothing has
// been recorded yet) or bundled into a Composite at this timestamp. If
// ToggleDuplicateArcs is set and an arc from tail to head already exists
// in the construction graph, this call is converted into a RemoveArc
// instead (the returned ArcID is then 0; the caller should treat a zero
// return with a nil error as "this was a removal").
func (obj *DynamicGraph) AddArc(ts int64, tail, head any, weight int64, antedate bool) (ArcID, error) {
	return obj.addArcAged(ts, tail, head, weight, antedate, 0)
}

// AddArcAged is AddArc with an additional age-in-deltas: exactly age
// deltas after this insertion, a RemoveArc for this exact arc is emitted
// automatically, before any other op at that later timestamp.
func (obj *DynamicGraph) AddArcAged(ts int64, tail, head any, weight int64, antedate bool, age int) (ArcID, error) {
	return obj.addArcAged(ts, tail, head, weight, antedate, age)
}

func (obj *DynamicGraph) addArcAged(ts int64, tail, head any, weight int64, antedate bool, age int) (ArcID, error) {
	if err := obj.checkTimestamp(ts); err != nil {
		return 0, err
	}

	if obj.ToggleDuplicateArcs {
		if tv, ok := obj.construction.Lookup(tail); ok {
			if hv, ok := obj.construction.Lookup(head); ok {
				if _, exists := obj.construction.FindArc(tv, hv); exists {
					return 0, obj.RemoveArc(ts, tail, head, false)
				}
			}
		}
	}

	_, tailExists := obj.construction.Lookup(tail)
	_, headExists := obj.construction.Lookup(head)
	missing := !tailExists || !headExists

	var vertexOps []*op
	if !tailExists {
		vertexOps = append(vertexOps, &op{kind: opAddVertex, ts: ts, label: tail, okIfExists: true})
	}
	if !headExists && head != tail {
		vertexOps = append(vertexOps, &op{kind: opAddVertex, ts: ts, label: head, okIfExists: true})
	}
	arcOp := &op{kind: opAddArc, ts: ts, tail: tail, head: head, weight: weight}

	switch {
	case !missing:
		obj.beginDelta(ts)
		if err := obj.appendOp(arcOp); err != nil {
			return 0, err
		}
	case antedate && !obj.started:
		obj.beginDelta(ts)
		for _, vo := range vertexOps {
			if err := obj.appendOp(vo); err != nil {
				return 0, err
			}
		}
		if err := obj.appendOp(arcOp); err != nil {
			return 0, err
		}
	default:
		obj.beginDelta(ts)
		composite := &op{kind: opComposite, ts: ts, sub: append(vertexOps, arcOp)}
		if err := obj.appendOp(composite); err != nil {
			return 0, err
		}
	}

	tv, _ := obj.construction.Lookup(tail)
	hv, _ := obj.construction.Lookup(head)
	id, _ := obj.construction.FindArc(tv, hv)
	obj.logf("AddArc(ts=%d, %v -> %v) -> %v", ts, tail, head, id)

	if age > 0 {
		if obj.ageSchedule == nil {
			obj.ageSchedule = make(map[int][]ageEntry)
		}
		fireAt := obj.deltaCount + age
		obj.ageSchedule[fireAt] = append(obj.ageSchedule[fireAt], ageEntry{tail: tail, head: head, fireAt: fireAt})
	}
	return id, nil
}

// RemoveArc appends a RemoveArc record for the arc from tail to head (the
// lowest-ArcID one, if several parallel arcs exist). Fails with
// ErrUnknownArc if no such arc exists in the construction graph. When
// removeIsolatedEnds is set, any endpoint left with no incident arcs is
// also removed, via an implicit RemoveVertex.
func (obj *DynamicGraph) RemoveArc(ts int64, tail, head any, removeIsolatedEnds bool) error {
	if err := obj.checkTimestamp(ts); err != nil {
		return err
	}
	tv, ok := obj.construction.Lookup(tail)
	if !ok {
		return unknownArcf("arc %v -> %v does not exist (unknown tail)", tail, head)
	}
	hv, ok := obj.construction.Lookup(head)
	if !ok {
		return unknownArcf("arc %v -> %v does not exist (unknown head)", tail, head)
	}
	if _, exists := obj.construction.FindArc(tv, hv); !exists {
		return unknownArcf("arc %v -> %v does not exist", tail, head)
	}
	obj.beginDelta(ts)
	return obj.appendRemoveArc(ts, tail, head, removeIsolatedEnds)
}

func (obj *DynamicGraph) appendRemoveArc(ts int64, tail, head any, removeIsolatedEnds bool) error {
	o := &op{kind: opRemoveArc, ts: ts, tail: tail, head: head, removeIsolatedEnds: removeIsolatedEnds}
	if err := obj.appendOp(o); err != nil {
		return err
	}
	obj.logf("RemoveArc(ts=%d, %v -> %v)", ts, tail, head)
	return nil
}

// NoOp appends a timestamp-only record: it changes nothing, but it keeps
// ts present in the timeline so replay controls can stop there.
func (obj *DynamicGraph) NoOp(ts int64) error {
	if err := obj.checkTimestamp(ts); err != nil {
		return err
	}
	obj.beginDelta(ts)
	return obj.appendOp(&op{kind: opNoOp, ts: ts})
}

// Compact merges the last n appended records into a single Composite.
// Fails with ErrInvalidArgument if n is not a positive number of records
// that have not yet been replayed into Current.
func (obj *DynamicGraph) Compact(n int) error {
	if n <= 0 || n > len(obj.log) {
		return invalidArgumentf("compact: %d is not a valid count of at most %d pending records", n, len(obj.log))
	}
	if obj.cursor > len(obj.log)-n {
		return invalidArgumentf("compact: cannot merge records already replayed into the current graph")
	}
	start := len(obj.log) - n
	merged := obj.log[start:]
	ts := merged[0].ts
	for _, m := range merged {
		if m.ts > ts {
			ts = m.ts
		}
	}
	composite := &op{kind: opComposite, ts: ts, sub: append([]*op{}, merged...)}
	obj.log = append(obj.log[:start], composite)
	return nil
}

// --- replay controls ------------------------------------------------------

// ResetToBigBang discards the Current view and rewinds replay to the
// start of the log.
func (obj *DynamicGraph) ResetToBigBang() {
	obj.current = New()
	obj.cursor = 0
	obj.started = false
}

// ApplyNextOp advances Current by exactly one top-level record. If
// sameTimestamp is true, it refuses to apply a record whose timestamp
// differs from the previously-applied one, returning (false, nil) instead.
// Returns (false, nil) once the log is exhausted.
func (obj *DynamicGraph) ApplyNextOp(sameTimestamp bool) (bool, error) {
	if obj.cursor >= len(obj.log) {
		return false, nil
	}
	next := obj.log[obj.cursor]
	if sameTimestamp && obj.started && next.ts != obj.lastAppliedTS() {
		return false, nil
	}
	if err := obj.applyOp(next, obj.current, true); err != nil {
		return false, err
	}
	obj.cursor++
	obj.started = true
	return true, nil
}

func (obj *DynamicGraph) lastAppliedTS() int64 {
	if obj.cursor == 0 {
		return 0
	}
	return obj.log[obj.cursor-1].ts
}

// ApplyNextDelta advances Current through every record sharing the
// timestamp of the next unapplied record (or does nothing if the log is
// exhausted).
func (obj *DynamicGraph) ApplyNextDelta() error {
	if obj.cursor >= len(obj.log) {
		return nil
	}
	ts0 := obj.log[obj.cursor].ts
	for obj.cursor < len(obj.log) && obj.log[obj.cursor].ts == ts0 {
		if err := obj.applyOp(obj.log[obj.cursor], obj.current, true); err != nil {
			return err
		}
		obj.cursor++
		obj.started = true
	}
	return nil
}

// Replay applies the entire log to Current in one call; equivalent to
// ResetToBigBang followed by repeated ApplyNextDelta until exhausted.
func (obj *DynamicGraph) Replay() error {
	obj.ResetToBigBang()
	for obj.cursor < len(obj.log) {
		if err := obj.ApplyNextDelta(); err != nil {
			return err
		}
	}
	return nil
}

// --- applying a record to a concrete graph view ---------------------------

func (obj *DynamicGraph) applyOp(o *op, g *Graph, emit bool) error {
	switch o.kind {
	case opNoOp:
		return nil
	case opComposite:
		for _, sub := range o.sub {
			if err := obj.applyOp(sub, g, emit); err != nil {
				return err
			}
		}
		return nil
	case opAddVertex:
		id, created, err := g.AddVertex(o.label, o.okIfExists)
		if err != nil {
			return err
		}
		if created && emit {
			obj.emitVertexAdd(id)
		}
		return nil
	case opRemoveVertex:
		v, ok := g.Lookup(o.label)
		if !ok {
			return unknownVertexf("vertex %v does not exist in this view", o.label)
		}
		removedArcs, err := g.RemoveVertex(v)
		if err != nil {
			return err
		}
		if emit {
			for _, r := range removedArcs {
				obj.emitArcRemove(r.ID, r.Tail, r.Head)
			}
			obj.emitVertexRemove(v)
		}
		return nil
	case opAddArc:
		tv, ok := g.Lookup(o.tail)
		if !ok {
			return unknownVertexf("tail vertex %v does not exist in this view", o.tail)
		}
		hv, ok := g.Lookup(o.head)
		if !ok {
			return unknownVertexf("head vertex %v does not exist in this view", o.head)
		}
		id, err := g.AddArc(tv, hv, o.weight)
		if err != nil {
			return err
		}
		if emit {
			obj.emitArcAdd(id, tv, hv)
		}
		return nil
	case opRemoveArc:
		tv, ok := g.Lookup(o.tail)
		if !ok {
			return unknownVertexf("tail vertex %v does not exist in this view", o.tail)
		}
		hv, ok := g.Lookup(o.head)
		if !ok {
			return unknownVertexf("head vertex %v does not exist in this view", o.head)
		}
		a, exists := g.FindArc(tv, hv)
		if !exists {
			return unknownArcf("arc %v -> %v does not exist in this view", o.tail, o.head)
		}
		if err := g.RemoveArc(a); err != nil {
			return err
		}
		if emit {
			obj.emitArcRemove(a, tv, hv)
		}
		if o.removeIsolatedEnds {
			if g.HasVertex(tv) && g.OutDegree(tv) == 0 && g.InDegree(tv) == 0 {
				if _, err := g.RemoveVertex(tv); err == nil && emit {
					obj.emitVertexRemove(tv)
				}
			}
			if hv != tv && g.HasVertex(hv) && g.OutDegree(hv) == 0 && g.InDegree(hv) == 0 {
				if _, err := g.RemoveVertex(hv); err == nil && emit {
					obj.emitVertexRemove(hv)
				}
			}
		}
		return nil
	}
	return nil
}

func (obj *DynamicGraph) emitVertexAdd(v VertexID) {
	for _, l := range obj.listeners {
		l.OnVertexAdd(v)
	}
}

func (obj *DynamicGraph) emitVertexRemove(v VertexID) {
	for _, l := range obj.listeners {
		l.OnVertexRemove(v)
	}
}

func (obj *DynamicGraph) emitArcAdd(a ArcID, tail, head VertexID) {
	for _, l := range obj.listeners {
		l.OnArcAdd(a, tail, head)
	}
}

func (obj *DynamicGraph) emitArcRemove(a ArcID, tail, head VertexID) {
	for _, l := range obj.listeners {
		l.OnArcRemove(a, tail, head)
	}
}

// --- read-only external interface (spec section 6) ------------------------

// Current returns the graph view maintainers observe.
func (obj *DynamicGraph) Current() *Graph { return obj.current }

// Construction returns the graph view built by applying the whole log;
// used only while recording, to check arc/vertex existence.
func (obj *DynamicGraph) Construction() *Graph { return obj.construction }

// Size returns the number of vertices in the current graph.
func (obj *DynamicGraph) Size() int { return obj.current.Size() }

// NumArcs returns the number of arcs in the current graph.
func (obj *DynamicGraph) NumArcs() int { return obj.current.NumArcs() }

// IsSink reports whether v has no outgoing arcs in the current graph.
func (obj *DynamicGraph) IsSink(v VertexID) bool { return obj.current.IsSink(v) }

// IsSource reports whether v has no incoming arcs in the current graph.
func (obj *DynamicGraph) IsSource(v VertexID) bool { return obj.current.IsSource(v) }

// AnyVertex returns an arbitrary vertex of the current graph.
func (obj *DynamicGraph) AnyVertex() (VertexID, bool) { return obj.current.AnyVertex() }

// Lookup resolves a label against the current graph.
func (obj *DynamicGraph) Lookup(label any) (VertexID, bool) { return obj.current.Lookup(label) }

// Vertices returns every live vertex of the current graph, sorted by
// VertexID for determinism.
func (obj *DynamicGraph) Vertices() []VertexID { return obj.current.Vertices() }

// MapOutgoingArcsUntil scans the current graph.
func (obj *DynamicGraph) MapOutgoingArcsUntil(v VertexID, f func(ArcID, VertexID) bool) bool {
	return obj.current.MapOutgoingArcsUntil(v, f)
}

// MapIncomingArcsUntil scans the current graph.
func (obj *DynamicGraph) MapIncomingArcsUntil(v VertexID, f func(ArcID, VertexID) bool) bool {
	return obj.current.MapIncomingArcsUntil(v, f)
}
