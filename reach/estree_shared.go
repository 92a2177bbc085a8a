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

package reach

import (
	"github.com/libAlgora/dynreach/graph"
	"github.com/libAlgora/dynreach/profile"
	"github.com/libAlgora/dynreach/record"
)

// schedulerQueue is the scheduling discipline restore_tree drives its
// processing loop with. Bucket and FIFO implementations differ only in
// pop order (spec section 4.2); restore_tree itself does not care which
// one it is handed.
type schedulerQueue interface {
	Push(v graph.VertexID, level int)
	Pop() (graph.VertexID, bool)
	Len() int
	Clear()

	// LimitReached reports whether a push has been silently dropped since
	// the last Clear because the queue is at capacity. Bucket is always
	// unbounded and reports false; a capacity-bounded FIFO reports true
	// once it has had to drop something, which restoreTree treats as
	// grounds for a rerun rather than continuing on an incomplete queue.
	LimitReached() bool
}

// estreeCore holds everything OldESTree, ESTreeQ and ESTreeML share: the
// vertex record store, the restore_tree/process machinery, query/
// query_path, and the Maintainer lifecycle methods. The three exported
// types are thin wrappers selecting a scheduler queue, an arc-slot
// discipline (bijective vs counted) and a process strategy (incremental
// step vs scan-all).
type estreeCore struct {
	Logf func(format string, v ...interface{})

	name, shortName string

	g         HostGraph
	source    graph.VertexID
	hasSource bool

	store *record.Store
	cfg   Config
	sink  profile.Sink

	autoUpdate  bool
	initialized bool

	queue schedulerQueue

	insertArc  func(head graph.VertexID, a graph.ArcID, pred graph.VertexID) int
	removeArc  func(head graph.VertexID, a graph.ArcID) (wasParent bool, ok bool)
	processOne func(core *estreeCore, v graph.VertexID, rec *record.ESRecord) int

	// Successors realizes ESTreeML's direction-parametric design note
	// (SPEC_FULL's "Direction-parametric ESTreeML"): by default it is nil
	// and outgoing() falls back to the host graph's own outgoing-arc scan,
	// but a caller building a single-sink variant can swap it for the
	// host's incoming-arc scan to compute reachability against the
	// reversed graph without touching any of the algorithm above. Every
	// arc-direction-sensitive call site (outgoing, OnArcAdd, OnArcRemove)
	// treats a non-nil Successors as "running reversed" and swaps tail/head
	// accordingly, so a single func field is sufficient to parametrize the
	// whole core on direction.
	Successors func(v graph.VertexID, f func(a graph.ArcID, head graph.VertexID) bool) bool
}

func newEstreeCore(name, shortName string, cfg Config, sink profile.Sink) *estreeCore {
	if sink == nil {
		sink = profile.Noop{}
	}
	return &estreeCore{
		name:      name,
		shortName: shortName,
		store:     record.NewStore(),
		cfg:       cfg,
		sink:      sink,
	}
}

// outgoing delegates to Successors if the caller overrode it (direction-
// parametric mode), else to the host graph's own outgoing scan.
func (core *estreeCore) outgoing(v graph.VertexID, f func(graph.ArcID, graph.VertexID) bool) bool {
	if core.Successors != nil {
		return core.Successors(v, f)
	}
	return core.g.MapOutgoingArcsUntil(v, f)
}

func (core *estreeCore) logf(format string, v ...interface{}) {
	if core.Logf != nil {
		core.Logf(format, v...)
	}
}

// --- Maintainer lifecycle -------------------------------------------------

// GetName returns the maintainer's descriptive name.
func (core *estreeCore) GetName() string { return core.name }

// GetShortName returns the maintainer's short identifier.
func (core *estreeCore) GetShortName() string { return core.shortName }

// GetProfile returns every counter this maintainer has reported so far.
func (core *estreeCore) GetProfile() []profile.Counter { return core.sink.Snapshot() }

// SetGraph attaches the host graph this maintainer tracks. Any existing
// tree is discarded; the next Query/Run call rebuilds it from scratch.
func (core *estreeCore) SetGraph(g HostGraph) {
	core.g = g
	core.store.Reset()
	core.initialized = false
}

// UnsetGraph detaches the host graph and frees the per-vertex store, per
// spec section 5's "record stores shrink to zero on graph-unset".
func (core *estreeCore) UnsetGraph() {
	core.g = nil
	core.store.Reset()
	core.initialized = false
	core.hasSource = false
}

// SetSource changes the source vertex, invalidating the current tree. If
// auto-update is enabled, the tree is rebuilt immediately.
func (core *estreeCore) SetSource(v graph.VertexID) {
	core.source = v
	core.hasSource = true
	core.initialized = false
	if core.autoUpdate {
		_ = core.Run()
	}
}

// SetAutoUpdate toggles whether SetSource eagerly rebuilds the tree.
func (core *estreeCore) SetAutoUpdate(enabled bool) { core.autoUpdate = enabled }

// Run forces a full initialization (BFS from source) regardless of
// whether the tree was already initialized.
func (core *estreeCore) Run() error {
	if core.g == nil {
		return invariantViolationf("%s: run called with no graph attached", core.shortName)
	}
	core.fullInit()
	core.initialized = true
	return nil
}

func (core *estreeCore) ensureInit() {
	if core.initialized {
		return
	}
	core.fullInit()
	core.initialized = true
}

// --- query -----------------------------------------------------------------

// Query reports whether t is the source or currently reachable from it.
func (core *estreeCore) Query(t graph.VertexID) bool {
	core.ensureInit()
	if core.hasSource && t == core.source {
		return true
	}
	rec, ok := core.store.Lookup(t)
	return ok && rec.Reachable()
}

// QueryPath walks t's parent-arcs back to the source and returns them in
// source-to-t order.
func (core *estreeCore) QueryPath(t graph.VertexID) ([]graph.ArcID, error) {
	core.ensureInit()
	if core.hasSource && t == core.source {
		return nil, nil
	}
	rec, ok := core.store.Lookup(t)
	if !ok || !rec.Reachable() {
		return nil, invariantViolationf("%s: vertex is not reachable from source", core.shortName)
	}
	var arcs []graph.ArcID
	cur := rec
	for {
		idx := cur.ParentIndex()
		if idx < 0 {
			return nil, invariantViolationf("%s: reachable vertex has no parent slot", core.shortName)
		}
		arcs = append(arcs, cur.SlotArc(idx))
		pred := cur.SlotPredecessor(idx)
		if core.hasSource && pred == core.source {
			break
		}
		predRec, ok := core.store.Lookup(pred)
		if !ok {
			return nil, invariantViolationf("%s: predecessor record missing", core.shortName)
		}
		cur = predRec
	}
	for i, j := 0, len(arcs)-1; i < j; i, j = j, i {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	}
	return arcs, nil
}

// --- event interface ---------------------------------------------------------

// OnVertexAdd allocates an empty record for v.
func (core *estreeCore) OnVertexAdd(v graph.VertexID) {
	if !core.initialized {
		return
	}
	core.store.Add(v)
}

// OnVertexRemove frees v's record. Incident arcs are expected to have
// already produced OnArcRemove events (the host graph emits RemoveArc for
// every incident arc before the vertex-remove event itself).
func (core *estreeCore) OnVertexRemove(v graph.VertexID) {
	if !core.initialized {
		return
	}
	core.store.Remove(v)
}

// OnArcAdd implements spec section 4.3's on_arc_add: register the arc,
// and if it strictly improves the head's level, propagate the
// improvement forward. In direction-parametric (reversed) mode, tail and
// head swap roles, since the maintainer is tracking single-sink
// reachability over the reversed graph.
func (core *estreeCore) OnArcAdd(a graph.ArcID, tail, head graph.VertexID) {
	if !core.initialized {
		return
	}
	if core.Successors != nil {
		tail, head = head, tail
	}
	if tail == head {
		return
	}
	if core.hasSource && head == core.source {
		return
	}
	slot := core.insertArc(head, a, tail)
	tailRec := core.store.Get(tail)
	if !tailRec.Reachable() {
		return
	}
	headRec := core.store.Get(head)
	diff := core.reparent(headRec, slot, tailRec.Level)
	if diff <= 0 {
		return
	}
	core.propagateForward(head)
}

// OnArcRemove implements spec section 4.3's on_arc_remove. See OnArcAdd
// for the direction-parametric tail/head swap.
func (core *estreeCore) OnArcRemove(a graph.ArcID, tail, head graph.VertexID) {
	if !core.initialized {
		return
	}
	if core.Successors != nil {
		tail, head = head, tail
	}
	if tail == head {
		return
	}
	if core.hasSource && head == core.source {
		return
	}
	wasParent, ok := core.removeArc(head, a)
	if !ok {
		core.logf("%s: on_arc_remove: arc %v into %v was never registered", core.shortName, a, head)
		return
	}
	headRec, known := core.store.Lookup(head)
	if !known {
		return
	}
	if !headRec.Reachable() {
		return
	}
	if !wasParent {
		return
	}
	core.restoreTree(head)
}

// --- reparent / forward propagation -----------------------------------------

// reparent implements spec section 4.3's reparent(h, t, a): h is the head
// record, slot is the arc's slot index in h's table, tailLevel is the
// tail's current level. Returns the (non-negative) level_diff, 0 meaning
// "not an improvement" (the arc is a non-tree arc, or only the tie-break
// parent pointer moved).
func (core *estreeCore) reparent(h *record.ESRecord, slot int, tailLevel int) int {
	L := h.Level
	if tailLevel >= L {
		return 0
	}
	if tailLevel+1 < L {
		h.SetParentIndex(slot)
		h.SetLevel(tailLevel + 1)
		return L - (tailLevel + 1)
	}
	// tailLevel+1 == L: tie-break by lower slot index, to stay deterministic.
	if h.ParentIndex() < 0 || slot < h.ParentIndex() {
		h.SetParentIndex(slot)
	}
	return 0
}

// propagateForward runs the forward BFS on_arc_add triggers once an arc
// strictly improves its head's level: every arc whose reparenting also
// strictly improves its own head continues the BFS.
func (core *estreeCore) propagateForward(start graph.VertexID) {
	queue := []graph.VertexID{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		vRec := core.store.Get(v)
		core.outgoing(v, func(a graph.ArcID, h graph.VertexID) bool {
			if h == v {
				return false
			}
			if core.hasSource && h == core.source {
				return false
			}
			hRec := core.store.Get(h)
			idx, ok := hRec.SlotForArc(a)
			if !ok {
				return false
			}
			if core.reparent(hRec, idx, vRec.Level) > 0 {
				queue = append(queue, h)
			}
			return false
		})
	}
}

// --- restore_tree / process --------------------------------------------------

// restoreTree implements spec section 4.3's restore_tree(seed).
func (core *estreeCore) restoreTree(seed graph.VertexID) {
	core.queue.Clear()
	timesInQueue := make(map[graph.VertexID]int)
	inQueue := make(map[graph.VertexID]bool)

	push := func(v graph.VertexID) {
		if inQueue[v] {
			return
		}
		inQueue[v] = true
		timesInQueue[v]++
		core.queue.Push(v, core.store.Get(v).Level)
	}
	push(seed)

	size := core.g.Size()
	affectedLimit := core.cfg.affectedLimit(size)
	processed := 0

	for core.queue.Len() > 0 {
		v, ok := core.queue.Pop()
		if !ok {
			break
		}
		inQueue[v] = false
		rec := core.store.Get(v)
		diff := core.processOne(core, v, rec)
		processed++

		if timesInQueue[v] > core.cfg.RequeueLimit || processed+core.queue.Len() > affectedLimit || core.queue.LimitReached() {
			core.rerun(processed, core.queue.Len())
			return
		}

		if diff > 0 {
			core.sink.Observe(counterProcessed, 1)
			core.enqueueChildren(v, push)
			if rec.Reachable() {
				push(v)
			}
		}
	}
}

// enqueueChildren pushes every out-neighbor of v whose current tree
// parent is v, per the "enqueue every child (any out-arc head whose tree
// arc is v)" scheduling rule shared by all three variants.
func (core *estreeCore) enqueueChildren(v graph.VertexID, push func(graph.VertexID)) {
	core.outgoing(v, func(_ graph.ArcID, head graph.VertexID) bool {
		if core.hasSource && head == core.source {
			return false
		}
		hRec, ok := core.store.Lookup(head)
		if !ok {
			return false
		}
		pred, has := hRec.ParentSlot()
		if has && pred == v {
			push(head)
		}
		return false
	})
}

// rerun abandons the incremental restore pass and recomputes the entire
// tree with a fresh BFS from the source (spec section 4.3, "Rerun").
func (core *estreeCore) rerun(processed, affected int) {
	core.sink.Observe(counterReruns, 1)
	core.sink.Observe(counterRerunRequeued, uint64(processed))
	core.sink.Observe(counterRerunNumAffected, uint64(affected))
	core.fullInit()
}

// fullInit rebuilds the entire tree from scratch: every live arc is
// registered into its head's in-neighbor table (so the arc-slot
// bijection invariant holds for arcs outside the tree too), then a BFS
// from source seeds level and parent_index for every reachable vertex.
func (core *estreeCore) fullInit() {
	core.store.Reset()
	if core.g == nil {
		return
	}
	vertices := core.g.Vertices()
	for _, v := range vertices {
		core.store.Add(v)
	}
	for _, v := range vertices {
		core.outgoing(v, func(a graph.ArcID, head graph.VertexID) bool {
			if head == v {
				return false
			}
			core.insertArc(head, a, v)
			return false
		})
	}
	if !core.hasSource {
		return
	}
	if _, ok := core.store.Lookup(core.source); !ok {
		return
	}
	srcRec := core.store.Get(core.source)
	srcRec.SetLevel(0)
	visited := map[graph.VertexID]bool{core.source: true}
	queue := []graph.VertexID{core.source}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		vRec := core.store.Get(v)
		core.outgoing(v, func(a graph.ArcID, head graph.VertexID) bool {
			if head == v || (core.hasSource && head == core.source) || visited[head] {
				return false
			}
			visited[head] = true
			headRec := core.store.Get(head)
			if idx, ok := headRec.SlotForArc(a); ok {
				headRec.SetParentIndex(idx)
			}
			headRec.SetLevel(vRec.Level + 1)
			queue = append(queue, head)
			return false
		})
	}
}

// --- process strategies ------------------------------------------------------

// processStep implements spec section 4.3's process(v) for OldESTree and
// ESTreeQ: if the current parent slot still holds a strictly-lower-level
// predecessor nothing changes; otherwise parent_index is advanced one slot at a time (bumping the level
// and wrapping back to slot 0 whenever the table is exhausted) until a
// strictly-lower-level predecessor is found, or the vertex goes
// unreachable.
func processStep(core *estreeCore, v graph.VertexID, rec *record.ESRecord) int {
	old := rec.Level
	size := core.g.Size()
	if !rec.HasAnyPredecessor() {
		rec.SetLevel(record.Unreachable)
		rec.SetParentIndex(-1)
		return size - old
	}
	idx := rec.ParentIndex()
	n := rec.NumSlots()
	if rec.SlotOccupied(idx) && core.store.Get(rec.SlotPredecessor(idx)).Level < rec.Level {
		return 0 // the current parent still sits strictly below v
	}
	for {
		idx++
		if idx >= n {
			idx = 0
			newLevel := rec.Level + 1
			if newLevel >= size {
				rec.SetLevel(record.Unreachable)
				rec.SetParentIndex(-1)
				return size - old
			}
			rec.SetLevel(newLevel)
		}
		if rec.SlotOccupied(idx) {
			predRec := core.store.Get(rec.SlotPredecessor(idx))
			if predRec.Level < rec.Level {
				rec.SetParentIndex(idx)
				return rec.Level - old
			}
		}
	}
}

// processScan implements ESTreeML's process(v): scan every occupied slot
// up front to find the minimum-level predecessor directly, breaking ties
// by lower slot index, instead of stepping one slot at a time.
func processScan(core *estreeCore, v graph.VertexID, rec *record.ESRecord) int {
	old := rec.Level
	size := core.g.Size()
	if !rec.HasAnyPredecessor() {
		rec.SetLevel(record.Unreachable)
		rec.SetParentIndex(-1)
		return size - old
	}
	bestIdx := -1
	bestLevel := size
	n := rec.NumSlots()
	for i := 0; i < n; i++ {
		if !rec.SlotOccupied(i) {
			continue
		}
		predLevel := core.store.Get(rec.SlotPredecessor(i)).Level
		if predLevel < bestLevel {
			bestLevel = predLevel
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestLevel+1 >= size {
		rec.SetLevel(record.Unreachable)
		rec.SetParentIndex(-1)
		return size - old
	}
	rec.SetParentIndex(bestIdx)
	rec.SetLevel(bestLevel + 1)
	return rec.Level - old
}
