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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Listener that appends a string per event, for asserting
// delivery order.
type recorder struct {
	events []string
}

func (r *recorder) OnVertexAdd(v VertexID)                   { r.events = append(r.events, "V+") }
func (r *recorder) OnVertexRemove(v VertexID)                { r.events = append(r.events, "V-") }
func (r *recorder) OnArcAdd(a ArcID, tail, head VertexID)    { r.events = append(r.events, "A+") }
func (r *recorder) OnArcRemove(a ArcID, tail, head VertexID) { r.events = append(r.events, "A-") }

func TestDynamicGraphAntedatedArc(t *testing.T) {
	dg := NewDynamicGraph()
	_, err := dg.AddArc(0, "a", "b", 0, true)
	require.NoError(t, err)

	require.NoError(t, dg.Replay())
	va, ok := dg.Lookup("a")
	require.True(t, ok)
	vb, ok := dg.Lookup("b")
	require.True(t, ok)
	_, ok = dg.Current().FindArc(va, vb)
	assert.True(t, ok)
}

// TestDynamicGraphAntedateGatesOnReplayStartNotLogLength checks that the
// antedated-prelude treatment is available to every AddArc recorded
// before Replay ever starts, not just the very first one: a second
// batch-recorded antedated arc must not silently fall through to the
// Composite-at-ts branch just because the log is already non-empty.
func TestDynamicGraphAntedateGatesOnReplayStartNotLogLength(t *testing.T) {
	dg := NewDynamicGraph()
	_, err := dg.AddArc(0, "a", "b", 0, true)
	require.NoError(t, err)
	_, err = dg.AddArc(0, "p", "q", 0, true)
	require.NoError(t, err)

	for _, o := range dg.log {
		assert.NotEqualf(t, opComposite, o.kind, "op %+v should not be a Composite before replay has started", o)
	}

	require.NoError(t, dg.Replay())
	vp, ok := dg.Lookup("p")
	require.True(t, ok)
	vq, ok := dg.Lookup("q")
	require.True(t, ok)
	_, ok = dg.Current().FindArc(vp, vq)
	assert.True(t, ok)
}

func TestDynamicGraphRemoveVertexEmitsArcRemoveBeforeVertexRemove(t *testing.T) {
	dg := NewDynamicGraph()
	rec := &recorder{}
	dg.Subscribe(rec)

	_, err := dg.AddArc(0, "a", "b", 0, true)
	require.NoError(t, err)
	require.NoError(t, dg.RemoveVertex(1, "b"))
	require.NoError(t, dg.Replay())

	// AddVertex a, AddVertex b, AddArc -> then RemoveArc, RemoveVertex.
	require.Len(t, rec.events, 5)
	assert.Equal(t, []string{"V+", "V+", "A+", "A-", "V-"}, rec.events)
}

func TestDynamicGraphStepwiseReplay(t *testing.T) {
	dg := NewDynamicGraph()
	_, err := dg.AddArc(0, "a", "b", 0, true)
	require.NoError(t, err)
	_, err = dg.AddArc(1, "b", "c", 0, false)
	require.NoError(t, err)

	ok, err := dg.ApplyNextOp(false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, dg.Size()) // only vertex "a" exists so far

	require.NoError(t, dg.ApplyNextDelta())
	assert.Equal(t, 2, dg.Size()) // "a", "b" and the arc between them

	require.NoError(t, dg.ApplyNextDelta())
	assert.Equal(t, 3, dg.Size())
	assert.Equal(t, 2, dg.NumArcs())
}

func TestDynamicGraphResetToBigBang(t *testing.T) {
	dg := NewDynamicGraph()
	_, err := dg.AddArc(0, "a", "b", 0, true)
	require.NoError(t, err)
	require.NoError(t, dg.Replay())
	assert.Equal(t, 2, dg.Size())

	dg.ResetToBigBang()
	assert.Equal(t, 0, dg.Size())

	require.NoError(t, dg.Replay())
	assert.Equal(t, 2, dg.Size())
}

func TestDynamicGraphToggleDuplicateArcs(t *testing.T) {
	dg := NewDynamicGraph()
	dg.ToggleDuplicateArcs = true

	_, err := dg.AddArc(0, "a", "b", 0, true)
	require.NoError(t, err)
	// Second AddArc for the same pair toggles into a RemoveArc instead.
	id, err := dg.AddArc(1, "a", "b", 0, false)
	require.NoError(t, err)
	assert.Equal(t, ArcID(0), id)

	require.NoError(t, dg.Replay())
	va, _ := dg.Lookup("a")
	vb, _ := dg.Lookup("b")
	_, ok := dg.Current().FindArc(va, vb)
	assert.False(t, ok)
}

func TestDynamicGraphAgedArcAutoRemoval(t *testing.T) {
	dg := NewDynamicGraph()
	_, err := dg.AddArcAged(0, "a", "b", 0, true, 1)
	require.NoError(t, err)
	// A second delta must elapse for the age-1 removal to fire.
	require.NoError(t, dg.NoOp(1))

	require.NoError(t, dg.Replay())
	va, _ := dg.Lookup("a")
	vb, _ := dg.Lookup("b")
	_, ok := dg.Current().FindArc(va, vb)
	assert.False(t, ok)
}

func TestDynamicGraphNonDecreasingTimestamp(t *testing.T) {
	dg := NewDynamicGraph()
	_, err := dg.AddArc(5, "a", "b", 0, true)
	require.NoError(t, err)
	_, err = dg.AddArc(1, "b", "c", 0, false)
	assert.Error(t, err)
}

func TestDynamicGraphCompact(t *testing.T) {
	dg := NewDynamicGraph()
	_, err := dg.AddArc(0, "a", "b", 0, true)
	require.NoError(t, err)
	_, err = dg.AddArc(1, "b", "c", 0, false)
	require.NoError(t, err)

	require.NoError(t, dg.Compact(2))
	require.NoError(t, dg.Replay())
	assert.Equal(t, 3, dg.Size())
	assert.Equal(t, 2, dg.NumArcs())
}
