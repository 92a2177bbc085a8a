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

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libAlgora/dynreach/graph"
)

func TestFIFOPreservesInsertionOrder(t *testing.T) {
	f := NewFIFO(4)
	f.Push(1)
	f.Push(2)
	f.Push(3)

	for _, want := range []graph.VertexID{1, 2, 3} {
		v, ok := f.Pop()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestFIFOOverflowSetsLimitReachedAndDropsElement(t *testing.T) {
	f := NewFIFO(2)
	f.Push(1)
	f.Push(2)
	f.Push(3) // dropped
	assert.True(t, f.LimitReached)
	assert.Equal(t, 2, f.Len())

	v, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, graph.VertexID(1), v)
}

func TestFIFOUnboundedMode(t *testing.T) {
	f := NewFIFO(0)
	for i := 0; i < 100; i++ {
		f.Push(graph.VertexID(i))
	}
	assert.Equal(t, 100, f.Len())
	assert.False(t, f.LimitReached)
}

func TestFIFOClearResetsOverflowFlag(t *testing.T) {
	f := NewFIFO(1)
	f.Push(1)
	f.Push(2) // overflow
	require.True(t, f.LimitReached)

	f.Clear()
	assert.False(t, f.LimitReached)
	assert.Equal(t, 0, f.Len())
}

func TestFIFOWrapsAroundRingBuffer(t *testing.T) {
	f := NewFIFO(2)
	f.Push(1)
	f.Push(2)
	v, _ := f.Pop()
	assert.Equal(t, graph.VertexID(1), v)
	f.Push(3) // wraps into the slot vacated by 1
	v, _ = f.Pop()
	assert.Equal(t, graph.VertexID(2), v)
	v, _ = f.Pop()
	assert.Equal(t, graph.VertexID(3), v)
}
