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

// Package queue implements the two level-ordered queue disciplines that
// the ES-tree maintainers schedule restore passes with: Bucket (a
// level-indexed min-priority queue) and FIFO (a bounded circular buffer
// preserving insertion order). The two are deliberately kept as distinct
// types implementing a common capability set rather than unified behind
// one generic queue, since their ordering guarantees are genuinely
// different and callers depend on which one they get.
package queue

import "github.com/libAlgora/dynreach/graph"

// Elem is anything a queue can hold: a vertex handle plus the level it
// was enqueued at. Only the vertex identity round-trips to the caller;
// the level is what a Bucket queue buckets by.
type Elem struct {
	Vertex graph.VertexID
	Level  int
}

// Bucket is a level-ordered priority queue: Pop always returns an element
// whose level is less than or equal to every other element's level
// currently held. It is implemented as a slice of buckets indexed by
// level, which is appropriate here because levels are small non-negative
// integers bounded by |V|, not an arbitrary priority domain.
type Bucket struct {
	buckets []([]graph.VertexID)
	count   int
	minLvl  int
}

// NewBucket returns an empty bucket queue.
func NewBucket() *Bucket {
	return &Bucket{}
}

// Len returns the number of elements currently queued.
func (obj *Bucket) Len() int { return obj.count }

// Clear empties the queue.
func (obj *Bucket) Clear() {
	obj.buckets = nil
	obj.count = 0
	obj.minLvl = 0
}

func (obj *Bucket) ensure(level int) {
	if level < 0 {
		return
	}
	for len(obj.buckets) <= level {
		obj.buckets = append(obj.buckets, nil)
	}
}

// Push enqueues v at the given level.
func (obj *Bucket) Push(v graph.VertexID, level int) {
	obj.ensure(level)
	obj.buckets[level] = append(obj.buckets[level], v)
	obj.count++
	if obj.count == 1 || level < obj.minLvl {
		obj.minLvl = level
	}
}

// Pop removes and returns the lowest-level element. ok is false if the
// queue was empty.
func (obj *Bucket) Pop() (v graph.VertexID, level int, ok bool) {
	if obj.count == 0 {
		return 0, 0, false
	}
	for obj.minLvl < len(obj.buckets) && len(obj.buckets[obj.minLvl]) == 0 {
		obj.minLvl++
	}
	b := obj.buckets[obj.minLvl]
	v = b[len(b)-1]
	obj.buckets[obj.minLvl] = b[:len(b)-1]
	obj.count--
	return v, obj.minLvl, true
}
