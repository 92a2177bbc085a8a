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
	"math"

	"github.com/libAlgora/dynreach/graph"
	"github.com/libAlgora/dynreach/profile"
)

// triState is a vertex's reachability classification under
// SimpleIncSSReach: a vertex starts Unreachable, becomes Reachable once
// a tree arc is found for it, and falls to Unknown when its tree arc is
// removed, pending a traceback search for a surviving path.
type triState int

const (
	stateUnreachable triState = iota
	stateReachable
	stateUnknown
)

// ssrRecord is intentionally local to this file rather than living in
// the record package: it is four small fields and has no slot table, so
// it does not share enough shape with ESRecord/SimpleRecord to justify a
// shared home.
type ssrRecord struct {
	state      triState
	hasPred    bool
	predArc    graph.ArcID
	predVertex graph.VertexID
}

// SimpleIncSSReachOptions configures SimpleIncSSReach's un_reach_from
// threshold and reset behavior (spec section 4.5's resolved open
// question on the four threshold variants).
type SimpleIncSSReachOptions struct {
	// ReverseIteration processes the unknown set in reverse discovery
	// order during traceback instead of discovery order.
	ReverseIteration bool

	// SearchForward additionally forward-propagates from every vertex
	// resolved back to Reachable during traceback, so its own
	// newly-reachable descendants are picked up in the same pass
	// rather than waiting for their own future queries.
	SearchForward bool

	// RadicalReset, when the unknown set crosses the threshold, drops
	// every record and rebuilds from scratch via a full forward BFS.
	// The alternative (soft reset) keeps every record, demotes the
	// still-Unknown vertices to Unreachable, then runs the same forward
	// BFS from the source, which marks every vertex it reaches Reachable.
	RadicalReset bool

	// MaxUnknownRatio is the alpha factor for the default
	// alpha-times-|V| threshold, and for the RelateToReachable variant.
	MaxUnknownRatio float64

	// MaxUnknownSqrt selects a sqrt(|V|) threshold instead of the
	// ratio-based one.
	MaxUnknownSqrt bool

	// MaxUnknownLog selects a log2(|V|) threshold instead of the
	// ratio-based one.
	MaxUnknownLog bool

	// RelateToReachable scales MaxUnknownRatio against the current
	// count of reachable vertices instead of the graph's total size.
	RelateToReachable bool

	// Threshold computes the maximum tolerable |unknown| before a
	// reset is triggered. If left nil, it is resolved from the flags
	// above the first time the maintainer is constructed.
	Threshold func(size, reachable int) int
}

// DefaultOptions returns the alpha·|V| threshold variant with alpha =
// 0.25, soft reset, forward-order traceback, and no eager forward
// search — the conservative default spec section 4.5 calls out.
func DefaultOptions() SimpleIncSSReachOptions {
	return SimpleIncSSReachOptions{MaxUnknownRatio: 0.25}
}

func (o SimpleIncSSReachOptions) resolveThreshold() func(size, reachable int) int {
	ratio := o.MaxUnknownRatio
	switch {
	case o.MaxUnknownSqrt:
		return func(size, _ int) int { return int(math.Sqrt(float64(size))) }
	case o.MaxUnknownLog:
		return func(size, _ int) int {
			if size < 2 {
				return 0
			}
			return int(math.Log2(float64(size)))
		}
	case o.RelateToReachable:
		return func(_, reachable int) int { return int(ratio * float64(reachable)) }
	default:
		return func(size, _ int) int { return int(ratio * float64(size)) }
	}
}

// SimpleIncSSReach is the tri-state traceback reachability maintainer of
// spec section 4.5: arc removal demotes affected descendants to Unknown
// rather than immediately recomputing their status, and a bounded
// backward search resolves each Unknown vertex independently.
type SimpleIncSSReach struct {
	Logf func(format string, v ...interface{})

	g         HostGraph
	source    graph.VertexID
	hasSource bool

	records map[graph.VertexID]*ssrRecord
	opts    SimpleIncSSReachOptions
	sink    profile.Sink

	autoUpdate  bool
	initialized bool
}

// NewSimpleIncSSReach returns a SimpleIncSSReach maintainer.
func NewSimpleIncSSReach(opts SimpleIncSSReachOptions, sink profile.Sink) *SimpleIncSSReach {
	if opts.Threshold == nil {
		opts.Threshold = opts.resolveThreshold()
	}
	if sink == nil {
		sink = profile.Noop{}
	}
	return &SimpleIncSSReach{
		records: make(map[graph.VertexID]*ssrRecord),
		opts:    opts,
		sink:    sink,
	}
}

func (m *SimpleIncSSReach) logf(format string, v ...interface{}) {
	if m.Logf != nil {
		m.Logf(format, v...)
	}
}

// GetName returns the maintainer's descriptive name.
func (m *SimpleIncSSReach) GetName() string { return "Simple Incremental Single-Source Reachability" }

// GetShortName returns the maintainer's short identifier.
func (m *SimpleIncSSReach) GetShortName() string { return "simple-inc-ss-reach" }

// GetProfile returns every counter this maintainer has reported so far.
func (m *SimpleIncSSReach) GetProfile() []profile.Counter { return m.sink.Snapshot() }

// SetGraph attaches the host graph.
func (m *SimpleIncSSReach) SetGraph(g HostGraph) {
	m.g = g
	m.records = make(map[graph.VertexID]*ssrRecord)
	m.initialized = false
}

// UnsetGraph detaches the host graph and frees every record.
func (m *SimpleIncSSReach) UnsetGraph() {
	m.g = nil
	m.records = make(map[graph.VertexID]*ssrRecord)
	m.initialized = false
	m.hasSource = false
}

// SetSource changes the source vertex.
func (m *SimpleIncSSReach) SetSource(v graph.VertexID) {
	m.source = v
	m.hasSource = true
	m.initialized = false
	if m.autoUpdate {
		_ = m.Run()
	}
}

// SetAutoUpdate toggles whether SetSource eagerly rebuilds from scratch.
func (m *SimpleIncSSReach) SetAutoUpdate(enabled bool) { m.autoUpdate = enabled }

// Run forces a full rebuild from the source.
func (m *SimpleIncSSReach) Run() error {
	if m.g == nil {
		return invariantViolationf("simple-inc-ss-reach: run called with no graph attached")
	}
	m.fullInit()
	m.initialized = true
	return nil
}

func (m *SimpleIncSSReach) ensureInit() {
	if m.initialized {
		return
	}
	m.fullInit()
	m.initialized = true
}

func (m *SimpleIncSSReach) get(v graph.VertexID) *ssrRecord {
	if r, ok := m.records[v]; ok {
		return r
	}
	r := &ssrRecord{}
	m.records[v] = r
	return r
}

// Query reports whether t is the source or currently Reachable.
func (m *SimpleIncSSReach) Query(t graph.VertexID) bool {
	m.ensureInit()
	if m.hasSource && t == m.source {
		return true
	}
	rec, ok := m.records[t]
	return ok && rec.state == stateReachable
}

// QueryPath walks t's predecessor-arc chain back to the source. An
// Unknown vertex has no resolved path yet, so QueryPath fails for it
// exactly as it would for an Unreachable one.
func (m *SimpleIncSSReach) QueryPath(t graph.VertexID) ([]graph.ArcID, error) {
	m.ensureInit()
	if m.hasSource && t == m.source {
		return nil, nil
	}
	rec, ok := m.records[t]
	if !ok || rec.state != stateReachable {
		return nil, invariantViolationf("simple-inc-ss-reach: vertex is not reachable from source")
	}
	var arcs []graph.ArcID
	cur := rec
	for {
		if !cur.hasPred {
			return nil, invariantViolationf("simple-inc-ss-reach: reachable vertex has no predecessor")
		}
		arcs = append(arcs, cur.predArc)
		pred := cur.predVertex
		if m.hasSource && pred == m.source {
			break
		}
		predRec, ok := m.records[pred]
		if !ok {
			return nil, invariantViolationf("simple-inc-ss-reach: predecessor record missing")
		}
		cur = predRec
	}
	for i, j := 0, len(arcs)-1; i < j; i, j = j, i {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	}
	return arcs, nil
}

// OnVertexAdd allocates an empty (Unreachable) record for v.
func (m *SimpleIncSSReach) OnVertexAdd(v graph.VertexID) {
	if !m.initialized {
		return
	}
	m.get(v)
}

// OnVertexRemove frees v's record.
func (m *SimpleIncSSReach) OnVertexRemove(v graph.VertexID) {
	if !m.initialized {
		return
	}
	delete(m.records, v)
}

// OnArcAdd implements on_arc_add: a no-op if the head is already
// Reachable (the new arc is a non-tree arc) or the tail is not itself
// Reachable, otherwise a new tree arc plus forward propagation.
func (m *SimpleIncSSReach) OnArcAdd(a graph.ArcID, tail, head graph.VertexID) {
	if !m.initialized {
		return
	}
	if tail == head {
		return
	}
	if m.hasSource && head == m.source {
		return
	}
	headRec := m.get(head)
	if headRec.state == stateReachable {
		return
	}
	tailRec := m.get(tail)
	if tail != m.source && tailRec.state != stateReachable {
		return
	}
	headRec.state = stateReachable
	headRec.hasPred = true
	headRec.predArc = a
	headRec.predVertex = tail
	m.forwardReach(head)
}

func (m *SimpleIncSSReach) forwardReach(start graph.VertexID) {
	q := []graph.VertexID{start}
	for len(q) > 0 {
		v := q[0]
		q = q[1:]
		m.g.MapOutgoingArcsUntil(v, func(a graph.ArcID, h graph.VertexID) bool {
			if h == v || (m.hasSource && h == m.source) {
				return false
			}
			hRec := m.get(h)
			if hRec.state == stateReachable {
				return false
			}
			hRec.state = stateReachable
			hRec.hasPred = true
			hRec.predArc = a
			hRec.predVertex = v
			q = append(q, h)
			return false
		})
	}
}

// OnArcRemove implements on_arc_remove: a no-op unless a is the arc
// currently used as head's tree arc.
func (m *SimpleIncSSReach) OnArcRemove(a graph.ArcID, tail, head graph.VertexID) {
	if !m.initialized {
		return
	}
	if tail == head {
		return
	}
	if m.hasSource && head == m.source {
		return
	}
	headRec, ok := m.records[head]
	if !ok || headRec.state != stateReachable {
		return
	}
	if !headRec.hasPred || headRec.predArc != a {
		return
	}
	m.unReachFrom(head)
}

// unReachFrom is un_reach_from: forward-BFS along tree arcs demoting
// head and its tree-descendants to Unknown, then either resets or
// resolves each Unknown vertex by backward traceback, depending on
// whether the unknown set crossed the configured threshold.
func (m *SimpleIncSSReach) unReachFrom(head graph.VertexID) {
	// size and reachable are snapshotted before any demotion below, since
	// spec section 4.5's alpha*|R| threshold compares against the
	// reachable count as of just before this removal, not the smaller
	// count left over after head's descendants are marked Unknown.
	size := m.g.Size()
	reachable := m.countReachable()

	headRec := m.records[head]
	headRec.state = stateUnknown
	headRec.hasPred = false

	unknown := []graph.VertexID{head}
	q := []graph.VertexID{head}
	for len(q) > 0 {
		v := q[0]
		q = q[1:]
		m.g.MapOutgoingArcsUntil(v, func(a graph.ArcID, h graph.VertexID) bool {
			hRec, ok := m.records[h]
			if !ok || hRec.state != stateReachable {
				return false
			}
			if !hRec.hasPred || hRec.predArc != a {
				return false
			}
			hRec.state = stateUnknown
			hRec.hasPred = false
			unknown = append(unknown, h)
			q = append(q, h)
			return false
		})
	}

	threshold := m.opts.Threshold(size, reachable)
	if len(unknown) > threshold {
		m.sink.Observe(counterReruns, 1)
		m.sink.Observe(counterRerunNumAffected, uint64(len(unknown)))
		m.recompute()
		return
	}

	order := unknown
	if m.opts.ReverseIteration {
		order = make([]graph.VertexID, len(unknown))
		for i, v := range unknown {
			order[len(unknown)-1-i] = v
		}
	}
	for _, u := range order {
		uRec, ok := m.records[u]
		if !ok || uRec.state != stateUnknown {
			continue
		}
		m.backwardResolve(u)
		m.sink.Observe(counterProcessed, 1)
	}
	for _, u := range unknown {
		if uRec, ok := m.records[u]; ok && uRec.state == stateUnknown {
			uRec.state = stateUnreachable
		}
	}
}

func (m *SimpleIncSSReach) countReachable() int {
	n := 0
	for _, r := range m.records {
		if r.state == stateReachable {
			n++
		}
	}
	return n
}

// backwardResolve searches backward from u for a Reachable ancestor
// (the source counts as one), reconstructing the forward path and
// promoting every Unknown vertex along it back to Reachable. u is left
// Unknown if no such ancestor is found; the caller demotes it to
// Unreachable afterward.
func (m *SimpleIncSSReach) backwardResolve(u graph.VertexID) {
	type step struct {
		v   graph.VertexID
		arc graph.ArcID
	}
	visited := map[graph.VertexID]bool{u: true}
	parent := make(map[graph.VertexID]step)
	q := []graph.VertexID{u}
	var found graph.VertexID
	resolved := false

	for len(q) > 0 && !resolved {
		v := q[0]
		q = q[1:]
		m.g.MapIncomingArcsUntil(v, func(a graph.ArcID, tail graph.VertexID) bool {
			if visited[tail] {
				return false
			}
			visited[tail] = true
			parent[tail] = step{v: v, arc: a}
			if m.hasSource && tail == m.source {
				found = tail
				resolved = true
				return true
			}
			tRec, ok := m.records[tail]
			if ok && tRec.state == stateReachable {
				found = tail
				resolved = true
				return true
			}
			q = append(q, tail)
			return false
		})
	}

	if !resolved {
		return
	}
	cur := found
	for cur != u {
		st := parent[cur]
		next := st.v
		nextRec := m.get(next)
		nextRec.state = stateReachable
		nextRec.hasPred = true
		nextRec.predArc = st.arc
		nextRec.predVertex = cur
		if m.opts.SearchForward {
			m.forwardReach(next)
		}
		cur = next
	}
}

func (m *SimpleIncSSReach) recompute() {
	if m.opts.RadicalReset {
		m.fullInit()
		return
	}
	for _, r := range m.records {
		if r.state == stateUnknown {
			r.state = stateUnreachable
			r.hasPred = false
		}
	}
	m.forwardReachFull()
}

func (m *SimpleIncSSReach) fullInit() {
	m.records = make(map[graph.VertexID]*ssrRecord)
	if m.g == nil || !m.hasSource {
		return
	}
	for _, v := range m.g.Vertices() {
		m.get(v)
	}
	srcRec := m.get(m.source)
	srcRec.state = stateReachable
	m.forwardReachFull()
}

func (m *SimpleIncSSReach) forwardReachFull() {
	if !m.hasSource {
		return
	}
	visited := map[graph.VertexID]bool{m.source: true}
	q := []graph.VertexID{m.source}
	for len(q) > 0 {
		v := q[0]
		q = q[1:]
		m.g.MapOutgoingArcsUntil(v, func(a graph.ArcID, h graph.VertexID) bool {
			if visited[h] {
				return false
			}
			visited[h] = true
			hRec := m.get(h)
			if hRec.state != stateReachable {
				hRec.state = stateReachable
				hRec.hasPred = true
				hRec.predArc = a
				hRec.predVertex = v
			}
			q = append(q, h)
			return false
		})
	}
}

var _ Maintainer = (*SimpleIncSSReach)(nil)
var _ graph.Listener = (*SimpleIncSSReach)(nil)
