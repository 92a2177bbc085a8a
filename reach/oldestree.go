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

// bucketAdapter makes *queue.Bucket satisfy schedulerQueue.
type bucketAdapter struct{ q *queue.Bucket }

func (b bucketAdapter) Push(v graph.VertexID, level int) { b.q.Push(v, level) }
func (b bucketAdapter) Pop() (graph.VertexID, bool) {
	v, _, ok := b.q.Pop()
	return v, ok
}
func (b bucketAdapter) Len() int { return b.q.Len() }
func (b bucketAdapter) Clear()   { b.q.Clear() }

// LimitReached is always false: Bucket has no capacity bound to exceed.
func (b bucketAdapter) LimitReached() bool { return false }

// OldESTree is the bucket-queue Even-Shiloach tree maintainer (spec
// section 4.3): level-ordered restore passes, one in-neighbor slot per
// arc.
type OldESTree struct {
	*estreeCore
}

// NewOldESTree returns an OldESTree maintainer with the given tuning
// config and profiling sink (nil sink means profile.Noop).
func NewOldESTree(cfg Config, sink profile.Sink) *OldESTree {
	core := newEstreeCore("Old Even-Shiloach Tree", "old-es-tree", cfg, sink)
	core.queue = bucketAdapter{queue.NewBucket()}
	core.insertArc = core.store.InsertArc
	core.removeArc = core.store.RemoveArc
	core.processOne = processStep
	return &OldESTree{core}
}

var _ Maintainer = (*OldESTree)(nil)
var _ graph.Listener = (*OldESTree)(nil)
