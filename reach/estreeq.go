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
)

// fifoAdapter makes *queue.FIFO satisfy schedulerQueue, ignoring the
// level argument: FIFO preserves insertion order, not priority.
type fifoAdapter struct{ q *queue.FIFO }

func (f fifoAdapter) Push(v graph.VertexID, _ int) { f.q.Push(v) }
func (f fifoAdapter) Pop() (graph.VertexID, bool)  { return f.q.Pop() }
func (f fifoAdapter) Len() int                     { return f.q.Len() }
func (f fifoAdapter) Clear()                       { f.q.Clear() }

// LimitReached reports whether a bounded FIFO has dropped a push since the
// last Clear, per spec section 4.2's "limit reached" flag.
func (f fifoAdapter) LimitReached() bool { return f.q.LimitReached }

// ESTreeQ is the FIFO-queue Even-Shiloach tree maintainer (spec section
// 4.3): identical algorithm to OldESTree, but the restore pass processes
// vertices in insertion order instead of level order, so a vertex whose
// level rises again after being popped causes a self-pass at the tail of
// the queue instead of being re-bucketed by level.
type ESTreeQ struct {
	*estreeCore
}

// NewESTreeQ returns an ESTreeQ maintainer. capacity bounds the FIFO
// buffer (spec section 5's "queue buffers have capacity set to
// ⌊max_affected_ratio·|V|⌋"); 0 means unbounded.
func NewESTreeQ(cfg Config, capacity int, sink profile.Sink) *ESTreeQ {
	core := newEstreeCore("Even-Shiloach Tree (FIFO)", "es-tree-q", cfg, sink)
	core.queue = fifoAdapter{queue.NewFIFO(capacity)}
	core.insertArc = core.store.InsertArc
	core.removeArc = core.store.RemoveArc
	core.processOne = processStep
	return &ESTreeQ{core}
}

var _ Maintainer = (*ESTreeQ)(nil)
var _ graph.Listener = (*ESTreeQ)(nil)
