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

package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRecordLazyAllocAndReachable(t *testing.T) {
	s := NewSimpleStore()
	r := s.Get(1)
	assert.False(t, r.Reachable())
	assert.Equal(t, Unreachable, r.Level)
}

func TestSimpleRecordClearParent(t *testing.T) {
	s := NewSimpleStore()
	r := s.Get(1)
	r.Level = 3
	r.HasParent = true
	r.Parent = 2
	r.TreeArc = 99

	r.ClearParent()
	assert.False(t, r.HasParent)
	assert.Equal(t, 3, r.Level) // ClearParent leaves the level alone.
}

func TestSimpleRecordSetUnreachable(t *testing.T) {
	s := NewSimpleStore()
	r := s.Get(1)
	r.Level = 3
	r.HasParent = true

	r.SetUnreachable()
	assert.False(t, r.Reachable())
	assert.False(t, r.HasParent)
}

func TestSimpleStoreLookupAndRemove(t *testing.T) {
	s := NewSimpleStore()
	s.Add(1)
	_, ok := s.Lookup(1)
	require.True(t, ok)

	s.Remove(1)
	_, ok = s.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Size())
}
