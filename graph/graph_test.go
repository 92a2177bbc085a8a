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

func TestAddVertexDuplicate(t *testing.T) {
	g := New()
	v1, created, err := g.AddVertex("a", false)
	require.NoError(t, err)
	assert.True(t, created)

	_, _, err = g.AddVertex("a", false)
	assert.Error(t, err)

	v2, created, err := g.AddVertex("a", true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, v1, v2)
}

func TestAddArcUnknownEndpoints(t *testing.T) {
	g := New()
	v1, _, err := g.AddVertex("a", false)
	require.NoError(t, err)

	_, err = g.AddArc(v1, 999, 0)
	assert.Error(t, err)
}

func TestFindArcLowestID(t *testing.T) {
	g := New()
	v1, _, _ := g.AddVertex("a", false)
	v2, _, _ := g.AddVertex("b", false)

	a1, err := g.AddArc(v1, v2, 0)
	require.NoError(t, err)
	_, err = g.AddArc(v1, v2, 0) // parallel arc, higher ArcID
	require.NoError(t, err)

	found, ok := g.FindArc(v1, v2)
	require.True(t, ok)
	assert.Equal(t, a1, found)
}

func TestRemoveVertexCascadesArcs(t *testing.T) {
	g := New()
	v1, _, _ := g.AddVertex("a", false)
	v2, _, _ := g.AddVertex("b", false)
	v3, _, _ := g.AddVertex("c", false)
	a1, _ := g.AddArc(v1, v2, 0)
	a2, _ := g.AddArc(v2, v3, 0)

	removed, err := g.RemoveVertex(v2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []ArcID{a1, a2}, []ArcID{removed[0].ID, removed[1].ID})
	assert.False(t, g.HasVertex(v2))
	assert.False(t, g.HasArc(a1))
	assert.False(t, g.HasArc(a2))
	assert.Equal(t, 2, g.Size())
}

func TestDegreesAndSinkSource(t *testing.T) {
	g := New()
	v1, _, _ := g.AddVertex("a", false)
	v2, _, _ := g.AddVertex("b", false)
	_, err := g.AddArc(v1, v2, 0)
	require.NoError(t, err)

	assert.True(t, g.IsSource(v1))
	assert.False(t, g.IsSink(v1))
	assert.True(t, g.IsSink(v2))
	assert.False(t, g.IsSource(v2))
	assert.Equal(t, 1, g.OutDegree(v1))
	assert.Equal(t, 1, g.InDegree(v2))
}

func TestMapArcsUntilOrderAndShortCircuit(t *testing.T) {
	g := New()
	v1, _, _ := g.AddVertex("a", false)
	v2, _, _ := g.AddVertex("b", false)
	v3, _, _ := g.AddVertex("c", false)
	g.AddArc(v1, v2, 0)
	g.AddArc(v1, v3, 0)

	var seen []ArcID
	stopped := g.MapOutgoingArcsUntil(v1, func(a ArcID, _ VertexID) bool {
		seen = append(seen, a)
		return true // stop after the first (lowest ArcID)
	})
	assert.True(t, stopped)
	assert.Len(t, seen, 1)
	assert.Equal(t, ArcID(1), seen[0])
}

func TestDFSAndBFSLevels(t *testing.T) {
	g := New()
	v := make([]VertexID, 4)
	for i := range v {
		v[i], _, _ = g.AddVertex(i, false)
	}
	g.AddArc(v[0], v[1], 0)
	g.AddArc(v[1], v[2], 0)
	g.AddArc(v[0], v[3], 0)

	order := g.DFS(v[0])
	assert.Equal(t, v[0], order[0])
	assert.Len(t, order, 4)

	levels := g.BFSLevels(v[0])
	assert.Equal(t, 0, levels[v[0]])
	assert.Equal(t, 1, levels[v[1]])
	assert.Equal(t, 2, levels[v[2]])
	assert.Equal(t, 1, levels[v[3]])
}

func TestVerticesSortedByID(t *testing.T) {
	g := New()
	g.AddVertex("c", false)
	g.AddVertex("a", false)
	g.AddVertex("b", false)

	ids := g.Vertices()
	require.Len(t, ids, 3)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}
