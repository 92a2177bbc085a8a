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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libAlgora/dynreach/graph"
	"github.com/libAlgora/dynreach/profile"
)

// esTreeFactories covers every ES-tree-family variant, including the
// predecessor-tree SimpleESTree: the scenarios in this file are spec
// section 8's literal end-to-end scenarios, and every one of them must
// hold across all of them.
var esTreeFactories = map[string]func(Config, profile.Sink) Maintainer{
	"OldESTree":    func(cfg Config, sink profile.Sink) Maintainer { return NewOldESTree(cfg, sink) },
	"ESTreeQ":      func(cfg Config, sink profile.Sink) Maintainer { return NewESTreeQ(cfg, 0, sink) },
	"ESTreeML":     func(cfg Config, sink profile.Sink) Maintainer { return NewESTreeML(cfg, sink) },
	"SimpleESTree": func(cfg Config, sink profile.Sink) Maintainer { return NewSimpleESTree(cfg, sink) },
}

// levelOf returns v's level by walking QueryPath, failing the test if v is
// not currently reachable.
func levelOf(t *testing.T, m Maintainer, v graph.VertexID) int {
	t.Helper()
	path, err := m.QueryPath(v)
	require.NoError(t, err)
	return len(path)
}

// chain builds n vertices labeled 0..n-1 with no arcs yet, wires up m
// against g with source 0, and returns the VertexID for each label.
func chain(t *testing.T, m Maintainer, n int) (*graph.Graph, []graph.VertexID) {
	t.Helper()
	g := graph.New()
	ids := make([]graph.VertexID, n)
	for i := 0; i < n; i++ {
		var err error
		ids[i], _, err = g.AddVertex(i, false)
		require.NoError(t, err)
	}
	m.SetGraph(g)
	m.SetSource(ids[0])
	require.NoError(t, m.Run())
	return g, ids
}

func addArc(t *testing.T, m Maintainer, g *graph.Graph, ids []graph.VertexID, tail, head int) graph.ArcID {
	t.Helper()
	a, err := g.AddArc(ids[tail], ids[head], 0)
	require.NoError(t, err)
	m.OnArcAdd(a, ids[tail], ids[head])
	return a
}

func removeArc(t *testing.T, m Maintainer, g *graph.Graph, a graph.ArcID, tail, head graph.VertexID) {
	t.Helper()
	require.NoError(t, g.RemoveArc(a))
	m.OnArcRemove(a, tail, head)
}

// Scenario 1: chain growth.
func TestScenarioChainGrowth(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 4)

			addArc(t, m, g, ids, 0, 1)
			addArc(t, m, g, ids, 1, 2)
			addArc(t, m, g, ids, 2, 3)

			assert.Equal(t, 0, levelOf(t, m, ids[0]))
			assert.Equal(t, 1, levelOf(t, m, ids[1]))
			assert.Equal(t, 2, levelOf(t, m, ids[2]))
			assert.Equal(t, 3, levelOf(t, m, ids[3]))

			addArc(t, m, g, ids, 0, 3)

			assert.Equal(t, 1, levelOf(t, m, ids[1]))
			assert.Equal(t, 2, levelOf(t, m, ids[2]))
			assert.Equal(t, 1, levelOf(t, m, ids[3]))

			path, err := m.QueryPath(ids[3])
			require.NoError(t, err)
			require.Len(t, path, 1)
			tail, head, _, ok := g.Arc(path[0])
			require.True(t, ok)
			assert.Equal(t, ids[0], tail)
			assert.Equal(t, ids[3], head)
		})
	}
}

// Scenario 2: path break.
func TestScenarioPathBreak(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 5)

			a01 := addArc(t, m, g, ids, 0, 1)
			addArc(t, m, g, ids, 1, 2)
			a23 := addArc(t, m, g, ids, 2, 3)
			addArc(t, m, g, ids, 3, 4)
			_ = a01

			removeArc(t, m, g, a23, ids[2], ids[3])

			assert.False(t, m.Query(ids[3]))
			assert.False(t, m.Query(ids[4]))
			assert.True(t, m.Query(ids[0]))
			assert.True(t, m.Query(ids[1]))
			assert.True(t, m.Query(ids[2]))
			assert.Equal(t, 0, levelOf(t, m, ids[0]))
			assert.Equal(t, 1, levelOf(t, m, ids[1]))
			assert.Equal(t, 2, levelOf(t, m, ids[2]))
		})
	}
}

// Scenario 3: alternate path.
func TestScenarioAlternatePath(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 4) // 0, 1, 2, 3

			addArc(t, m, g, ids, 0, 1)
			a12 := addArc(t, m, g, ids, 1, 2)
			addArc(t, m, g, ids, 0, 3)
			addArc(t, m, g, ids, 3, 2)

			removeArc(t, m, g, a12, ids[1], ids[2])

			assert.True(t, m.Query(ids[2]))
			assert.Equal(t, 2, levelOf(t, m, ids[2]))

			path, err := m.QueryPath(ids[2])
			require.NoError(t, err)
			require.Len(t, path, 2)
			tail0, head0, _, _ := g.Arc(path[0])
			tail1, head1, _, _ := g.Arc(path[1])
			assert.Equal(t, ids[0], tail0)
			assert.Equal(t, ids[3], head0)
			assert.Equal(t, ids[3], tail1)
			assert.Equal(t, ids[2], head1)
		})
	}
}

// Scenario 4: tie-break determinism.
func TestScenarioTieBreakDeterminism(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 4) // 0, 1, 2, 3

			addArc(t, m, g, ids, 0, 1)
			addArc(t, m, g, ids, 0, 2)
			a13 := addArc(t, m, g, ids, 1, 3) // inserted before 2->3: lower slot index
			addArc(t, m, g, ids, 2, 3)

			// Tie-break: both 1 and 2 are at level 1, so 3 would end up at
			// level 2 either way; the lower in-table slot index wins, which
			// is the arc that was inserted first (1->3).
			path, err := m.QueryPath(ids[3])
			require.NoError(t, err)
			require.Len(t, path, 1)
			tail, _, _, _ := g.Arc(path[0])
			assert.Equal(t, ids[1], tail)

			// Removing that tree arc leaves only 2->3 as a predecessor.
			removeArc(t, m, g, a13, ids[1], ids[3])
			assert.True(t, m.Query(ids[3]))
			path, err = m.QueryPath(ids[3])
			require.NoError(t, err)
			require.Len(t, path, 1)
			tail, _, _, _ = g.Arc(path[0])
			assert.Equal(t, ids[2], tail)
		})
	}
}

// Scenario 5: rerun trigger.
func TestScenarioRerunTrigger(t *testing.T) {
	cfg := Config{RequeueLimit: 64, MaxAffectedRatio: 0.1}
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			sink := profile.NewMemory()
			m := factory(cfg, sink)
			g, ids := chain(t, m, 10)

			var arcs []graph.ArcID
			for i := 0; i < 9; i++ {
				arcs = append(arcs, addArc(t, m, g, ids, i, i+1))
			}

			removeArc(t, m, g, arcs[0], ids[0], ids[1])

			for i := 1; i < 10; i++ {
				assert.Falsef(t, m.Query(ids[i]), "vertex %d should be unreachable", i)
			}

			var reruns uint64
			for _, c := range m.GetProfile() {
				if c.Name == counterReruns {
					reruns = c.Value
				}
			}
			assert.Equal(t, uint64(1), reruns)
		})
	}
}

// TestESTreeQBoundedFIFOLimitReachedTriggersRerun checks that a
// capacity-bounded FIFO's overflow is actually observed by restoreTree:
// a branching restore pass that drops pushes past capacity must fall back
// to a full rerun even though neither the requeue limit nor the
// affected-ratio limit would have caught it on their own.
func TestESTreeQBoundedFIFOLimitReachedTriggersRerun(t *testing.T) {
	cfg := Config{RequeueLimit: 64, MaxAffectedRatio: 1.0}
	sink := profile.NewMemory()
	m := NewESTreeQ(cfg, 2, sink)
	g, ids := chain(t, m, 6)

	a01 := addArc(t, m, g, ids, 0, 1)
	addArc(t, m, g, ids, 1, 2)
	addArc(t, m, g, ids, 1, 3)
	addArc(t, m, g, ids, 1, 4)
	addArc(t, m, g, ids, 1, 5)

	removeArc(t, m, g, a01, ids[0], ids[1])

	for i := 1; i < 6; i++ {
		assert.Falsef(t, m.Query(ids[i]), "vertex %d should be unreachable", i)
	}

	var reruns uint64
	for _, c := range m.GetProfile() {
		if c.Name == counterReruns {
			reruns = c.Value
		}
	}
	assert.Equal(t, uint64(1), reruns)
}

// Universal invariant 2/3/4 (spec section 8), checked against ground-truth
// BFS after a sequence of incremental changes.
func TestUniversalInvariantsAgainstGroundTruthBFS(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 6)

			addArc(t, m, g, ids, 0, 1)
			addArc(t, m, g, ids, 1, 2)
			addArc(t, m, g, ids, 2, 3)
			addArc(t, m, g, ids, 0, 4)
			a45 := addArc(t, m, g, ids, 4, 5)
			addArc(t, m, g, ids, 3, 5)

			checkAgainstBFS(t, m, g, ids)

			removeArc(t, m, g, a45, ids[4], ids[5])
			checkAgainstBFS(t, m, g, ids)
		})
	}
}

func checkAgainstBFS(t *testing.T, m Maintainer, g *graph.Graph, ids []graph.VertexID) {
	t.Helper()
	truth := g.BFSLevels(ids[0])
	for _, v := range ids {
		reachable := m.Query(v)
		lvl, inTruth := truth[v]
		assert.Equalf(t, inTruth, reachable, "vertex %v reachability mismatch", v)
		if reachable && v != ids[0] {
			assert.Equalf(t, lvl, levelOf(t, m, v), "vertex %v level mismatch", v)
		}
	}
}

// Boundary behaviors (spec section 8).
func TestBoundaryBehaviors(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 4)
			addArc(t, m, g, ids, 0, 1)

			// Loop arc is a no-op.
			aLoop, err := g.AddArc(ids[1], ids[1], 0)
			require.NoError(t, err)
			m.OnArcAdd(aLoop, ids[1], ids[1])
			assert.Equal(t, 1, levelOf(t, m, ids[1]))

			// Arc into the source is a no-op.
			aIntoSource, err := g.AddArc(ids[1], ids[0], 0)
			require.NoError(t, err)
			m.OnArcAdd(aIntoSource, ids[1], ids[0])
			assert.Equal(t, 0, levelOf(t, m, ids[0]))

			// Adding an arc out of an unreachable tail does not affect
			// reachability: ids[2] and ids[3] are both still unreachable.
			aFromUnreachable, err := g.AddArc(ids[2], ids[3], 0)
			require.NoError(t, err)
			m.OnArcAdd(aFromUnreachable, ids[2], ids[3])
			assert.False(t, m.Query(ids[3]))

			// Removing an arc whose head is already unreachable is a no-op.
			require.NoError(t, g.RemoveArc(aFromUnreachable))
			m.OnArcRemove(aFromUnreachable, ids[2], ids[3])
			assert.False(t, m.Query(ids[2]))
			assert.False(t, m.Query(ids[3]))
			assert.Equal(t, 1, levelOf(t, m, ids[1]))
		})
	}
}

// Round-trip: on_arc_add(a); on_arc_remove(a) returns to the pre-add state.
func TestAddThenRemoveIsRoundTrip(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 3)
			addArc(t, m, g, ids, 0, 1)

			before := levelOf(t, m, ids[1])
			a, err := g.AddArc(ids[0], ids[2], 0)
			require.NoError(t, err)
			m.OnArcAdd(a, ids[0], ids[2])
			require.True(t, m.Query(ids[2]))

			removeArc(t, m, g, a, ids[0], ids[2])
			assert.False(t, m.Query(ids[2]))
			assert.Equal(t, before, levelOf(t, m, ids[1]))
		})
	}
}

// Running run() twice without intervening changes is a no-op.
func TestRunTwiceIsNoOp(t *testing.T) {
	for name, factory := range esTreeFactories {
		t.Run(name, func(t *testing.T) {
			m := factory(DefaultConfig(), nil)
			g, ids := chain(t, m, 3)
			addArc(t, m, g, ids, 0, 1)
			addArc(t, m, g, ids, 1, 2)

			l1, l2 := levelOf(t, m, ids[1]), levelOf(t, m, ids[2])
			require.NoError(t, m.Run())
			assert.Equal(t, l1, levelOf(t, m, ids[1]))
			assert.Equal(t, l2, levelOf(t, m, ids[2]))
		})
	}
}
