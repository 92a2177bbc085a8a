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

import "github.com/libAlgora/dynreach/graph"

// FIFO is a bounded circular queue preserving insertion order. ESTreeQ
// uses it in place of Bucket: the scheduling discipline is "process in
// the order things were enqueued", not "process lowest level first".
// Pushing past Cap does not block or panic; it sets LimitReached and
// drops the element, leaving the caller to notice and fall back to a
// rerun.
type FIFO struct {
	buf          []graph.VertexID
	head, tail   int
	count        int
	cap          int
	LimitReached bool
}

// NewFIFO returns a FIFO queue with the given fixed capacity. A
// non-positive capacity means unbounded (backed by append instead of a
// fixed ring), which callers use when no affected-limit applies yet.
func NewFIFO(capacity int) *FIFO {
	if capacity <= 0 {
		return &FIFO{cap: 0}
	}
	return &FIFO{buf: make([]graph.VertexID, capacity), cap: capacity}
}

// Len returns the number of elements currently queued.
func (obj *FIFO) Len() int { return obj.count }

// Clear empties the queue and resets the overflow flag.
func (obj *FIFO) Clear() {
	obj.head, obj.tail, obj.count = 0, 0, 0
	obj.LimitReached = false
	if obj.cap == 0 {
		obj.buf = nil
	}
}

// Push enqueues v at the tail. If the queue is at (unbounded-mode) append
// this always succeeds; in bounded mode, pushing past capacity sets
// LimitReached and drops v.
func (obj *FIFO) Push(v graph.VertexID) {
	if obj.cap == 0 {
		obj.buf = append(obj.buf, v)
		obj.count++
		return
	}
	if obj.count == obj.cap {
		obj.LimitReached = true
		return
	}
	obj.buf[obj.tail] = v
	obj.tail = (obj.tail + 1) % obj.cap
	obj.count++
}

// Pop removes and returns the head element. ok is false if the queue was
// empty.
func (obj *FIFO) Pop() (v graph.VertexID, ok bool) {
	if obj.count == 0 {
		return 0, false
	}
	if obj.cap == 0 {
		v = obj.buf[0]
		obj.buf = obj.buf[1:]
		obj.count--
		return v, true
	}
	v = obj.buf[obj.head]
	obj.head = (obj.head + 1) % obj.cap
	obj.count--
	return v, true
}
