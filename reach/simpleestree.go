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
	"github.com/libAlgora/dynreach/queue"
	"github.com/libAlgora/dynreach/record"
)

// SimpleESTree is the predecessor-tree Even-Shiloach variant of spec
// section 4.4: it keeps no in-neighbor slot table, re-scanning the host
// graph's actual incoming arcs on demand instead. ReverseArcDirection
// flips every incoming/outgoing scan, turning the maintainer into a
// single-sink reachability tree over the reversed graph.
type SimpleESTree struct {
	Logf func(format string, v ...interface{})

	ReverseArcDirection bool

	g         HostGraph
	source    graph.VertexID
	hasSource bool

	store *record.SimpleStore
	cfg   Config
	sink  profile.Sink

	autoUpdate  bool
	initialized bool

	queue schedulerQueue
}

// NewSimpleESTree returns a SimpleESTree maintainer.
func NewSimpleESTree(cfg Config, sink profile.Sink) *SimpleESTree {
	if sink == nil {
		sink = profile.Noop{}
	}
	return &SimpleESTree{
		store: record.NewSimpleStore(),
		cfg:   cfg,
		sink:  sink,
		queue: bucketAdapter{queue.NewBucket()},
	}
}

func (m *SimpleESTree) logf(format string, v ...interface{}) {
	if m.Logf != nil {
		m.Logf(format, v...)
	}
}

// GetName returns the maintainer's descriptive name.
func (m *SimpleESTree) GetName() string {
	if m.ReverseArcDirection {
		return "Simple Even-Shiloach Tree (single-sink)"
	}
	return "Simple Even-Shiloach Tree"
}

// GetShortName returns the maintainer's short identifier.
func (m *SimpleESTree) GetShortName() string { return "simple-es-tree" }

// GetProfile returns every counter this maintainer has reported so far.
func (m *SimpleESTree) GetProfile() []profile.Counter { return m.sink.Snapshot() }

// SetGraph attaches the host graph.
func (m *SimpleESTree) SetGraph(g HostGraph) {
	m.g = g
	m.store.Reset()
	m.initialized = false
}

// UnsetGraph detaches the host graph and frees the record store.
func (m *SimpleESTree) UnsetGraph() {
	m.g = nil
	m.store.Reset()
	m.initialized = false
	m.hasSource = false
}

// SetSource changes the source vertex.
func (m *SimpleESTree) SetSource(v graph.VertexID) {
	m.source = v
	m.hasSource = true
	m.initialized = false
	if m.autoUpdate {
		_ = m.Run()
	}
}

// SetAutoUpdate toggles whether SetSource eagerly rebuilds the tree.
func (m *SimpleESTree) SetAutoUpdate(enabled bool) { m.autoUpdate = enabled }

// Run forces a full initialization.
func (m *SimpleESTree) Run() error {
	if m.g == nil {
		return invariantViolationf("simple-es-tree: run called with no graph attached")
	}
	m.fullInit()
	m.initialized = true
	return nil
}

func (m *SimpleESTree) ensureInit() {
	if m.initialized {
		return
	}
	m.fullInit()
	m.initialized = true
}

func (m *SimpleESTree) outgoing(v graph.VertexID, f func(graph.ArcID, graph.VertexID) bool) bool {
	if m.ReverseArcDirection {
		return m.g.MapIncomingArcsUntil(v, f)
	}
	return m.g.MapOutgoingArcsUntil(v, f)
}

func (m *SimpleESTree) incoming(v graph.VertexID, f func(graph.ArcID, graph.VertexID) bool) bool {
	if m.ReverseArcDirection {
		return m.g.MapOutgoingArcsUntil(v, f)
	}
	return m.g.MapIncomingArcsUntil(v, f)
}

// Query reports whether t is the source or currently reachable from it.
func (m *SimpleESTree) Query(t graph.VertexID) bool {
	m.ensureInit()
	if m.hasSource && t == m.source {
		return true
	}
	rec, ok := m.store.Lookup(t)
	return ok && rec.Reachable()
}

// QueryPath walks t's tree arcs back to the source.
func (m *SimpleESTree) QueryPath(t graph.VertexID) ([]graph.ArcID, error) {
	m.ensureInit()
	if m.hasSource && t == m.source {
		return nil, nil
	}
	rec, ok := m.store.Lookup(t)
	if !ok || !rec.Reachable() {
		return nil, invariantViolationf("simple-es-tree: vertex is not reachable from source")
	}
	var arcs []graph.ArcID
	cur := rec
	for {
		if !cur.HasParent {
			return nil, invariantViolationf("simple-es-tree: reachable vertex has no parent")
		}
		arcs = append(arcs, cur.TreeArc)
		pred := cur.Parent
		if m.hasSource && pred == m.source {
			break
		}
		predRec, ok := m.store.Lookup(pred)
		if !ok {
			return nil, invariantViolationf("simple-es-tree: predecessor record missing")
		}
		cur = predRec
	}
	for i, j := 0, len(arcs)-1; i < j; i, j = j, i {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	}
	return arcs, nil
}

// OnVertexAdd allocates an empty record for v.
func (m *SimpleESTree) OnVertexAdd(v graph.VertexID) {
	if !m.initialized {
		return
	}
	m.store.Add(v)
}

// OnVertexRemove frees v's record.
func (m *SimpleESTree) OnVertexRemove(v graph.VertexID) {
	if !m.initialized {
		return
	}
	m.store.Remove(v)
}

// OnArcAdd implements on_arc_add for the predecessor-tree variant: no
// slot table to update, just a direct level/parent comparison.
func (m *SimpleESTree) OnArcAdd(a graph.ArcID, tail, head graph.VertexID) {
	if !m.initialized {
		return
	}
	if m.ReverseArcDirection {
		tail, head = head, tail
	}
	if tail == head {
		return
	}
	if m.hasSource && head == m.source {
		return
	}
	tailRec, ok := m.store.Lookup(tail)
	if !ok || !tailRec.Reachable() {
		return
	}
	headRec := m.store.Get(head)
	if m.reparent(headRec, tail, tailRec.Level, a) <= 0 {
		return
	}
	m.propagateForward(head)
}

// reparent mirrors estreeCore.reparent without a slot table: ties are
// only taken if the vertex had no parent at all yet, since there is no
// slot-index ordering to break them deterministically.
func (m *SimpleESTree) reparent(h *record.SimpleRecord, pred graph.VertexID, predLevel int, arc graph.ArcID) int {
	L := h.Level
	if predLevel >= L {
		return 0
	}
	if predLevel+1 < L {
		h.Level = predLevel + 1
		h.HasParent = true
		h.Parent = pred
		h.TreeArc = arc
		return L - (predLevel + 1)
	}
	if !h.HasParent {
		h.HasParent = true
		h.Parent = pred
		h.TreeArc = arc
	}
	return 0
}

func (m *SimpleESTree) propagateForward(start graph.VertexID) {
	q := []graph.VertexID{start}
	for len(q) > 0 {
		v := q[0]
		q = q[1:]
		vRec := m.store.Get(v)
		m.outgoing(v, func(a graph.ArcID, h graph.VertexID) bool {
			if h == v {
				return false
			}
			if m.hasSource && h == m.source {
				return false
			}
			hRec := m.store.Get(h)
			if m.reparent(hRec, v, vRec.Level, a) > 0 {
				q = append(q, h)
			}
			return false
		})
	}
}

// OnArcRemove implements on_arc_remove, adopting the "clear parent, then
// restore" ordering spec section 9's design note settles on.
func (m *SimpleESTree) OnArcRemove(a graph.ArcID, tail, head graph.VertexID) {
	if !m.initialized {
		return
	}
	if m.ReverseArcDirection {
		tail, head = head, tail
	}
	if tail == head {
		return
	}
	if m.hasSource && head == m.source {
		return
	}
	headRec, ok := m.store.Lookup(head)
	if !ok {
		m.logf("simple-es-tree: on_arc_remove: head %v was never observed", head)
		return
	}
	if !headRec.Reachable() {
		return
	}
	if headRec.TreeArc != a || !headRec.HasParent {
		return
	}
	headRec.ClearParent()
	m.restoreTree(head)
}

// restoreTree mirrors estreeCore.restoreTree, but process() below re-scans
// the host graph's incoming arcs instead of walking a slot table.
func (m *SimpleESTree) restoreTree(seed graph.VertexID) {
	m.queue.Clear()
	timesInQueue := make(map[graph.VertexID]int)
	inQueue := make(map[graph.VertexID]bool)

	push := func(v graph.VertexID) {
		if inQueue[v] {
			return
		}
		inQueue[v] = true
		timesInQueue[v]++
		m.queue.Push(v, m.store.Get(v).Level)
	}
	push(seed)

	size := m.g.Size()
	affectedLimit := m.cfg.affectedLimit(size)
	processed := 0

	for m.queue.Len() > 0 {
		v, ok := m.queue.Pop()
		if !ok {
			break
		}
		inQueue[v] = false
		rec := m.store.Get(v)
		diff := m.process(v, rec)
		processed++

		if timesInQueue[v] > m.cfg.RequeueLimit || processed+m.queue.Len() > affectedLimit {
			m.rerun(processed, m.queue.Len())
			return
		}

		if diff > 0 {
			m.sink.Observe(counterProcessed, 1)
			m.outgoing(v, func(_ graph.ArcID, head graph.VertexID) bool {
				if m.hasSource && head == m.source {
					return false
				}
				hRec, ok := m.store.Lookup(head)
				if ok && hRec.HasParent && hRec.Parent == v {
					push(head)
				}
				return false
			})
			if rec.Reachable() {
				push(v)
			}
		}
	}
}

// process re-scans v's actual incoming arcs through the host graph,
// picking the minimum-level reachable tail, exiting early once a
// candidate matching the pre-removal level is found (spec section 4.4).
func (m *SimpleESTree) process(v graph.VertexID, rec *record.SimpleRecord) int {
	old := rec.Level
	size := m.g.Size()

	bestLevel := size
	var bestPred graph.VertexID
	var bestArc graph.ArcID
	found := false

	m.incoming(v, func(a graph.ArcID, tail graph.VertexID) bool {
		if tail == v {
			return false
		}
		tailRec, ok := m.store.Lookup(tail)
		if !ok || !tailRec.Reachable() {
			return false
		}
		if tailRec.Level < bestLevel {
			bestLevel = tailRec.Level
			bestPred = tail
			bestArc = a
			found = true
			if old != record.Unreachable && bestLevel+1 == old {
				return true // early exit: can't do better than the old level
			}
		}
		return false
	})

	if !found || bestLevel+1 >= size {
		rec.SetUnreachable()
		return size - old
	}
	rec.Level = bestLevel + 1
	rec.HasParent = true
	rec.Parent = bestPred
	rec.TreeArc = bestArc
	return rec.Level - old
}

func (m *SimpleESTree) rerun(processed, affected int) {
	m.sink.Observe(counterReruns, 1)
	m.sink.Observe(counterRerunRequeued, uint64(processed))
	m.sink.Observe(counterRerunNumAffected, uint64(affected))
	m.fullInit()
}

func (m *SimpleESTree) fullInit() {
	m.store.Reset()
	if m.g == nil || !m.hasSource {
		return
	}
	for _, v := range m.g.Vertices() {
		m.store.Add(v)
	}
	if _, ok := m.store.Lookup(m.source); !ok {
		return
	}
	srcRec := m.store.Get(m.source)
	srcRec.Level = 0
	visited := map[graph.VertexID]bool{m.source: true}
	q := []graph.VertexID{m.source}
	for len(q) > 0 {
		v := q[0]
		q = q[1:]
		vRec := m.store.Get(v)
		m.outgoing(v, func(a graph.ArcID, head graph.VertexID) bool {
			if head == v || (m.hasSource && head == m.source) || visited[head] {
				return false
			}
			visited[head] = true
			headRec := m.store.Get(head)
			headRec.Level = vRec.Level + 1
			headRec.HasParent = true
			headRec.Parent = v
			headRec.TreeArc = a
			q = append(q, head)
			return false
		})
	}
}

var _ Maintainer = (*SimpleESTree)(nil)
var _ graph.Listener = (*SimpleESTree)(nil)
