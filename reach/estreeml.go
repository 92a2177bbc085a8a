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

// ESTreeML is the multi-level Even-Shiloach tree maintainer (spec section
// 4.3): on every level change it scans all of a vertex's in-arcs up front
// to find the minimum-level predecessor directly, at the cost of extra
// per-call work, and counts parallel arcs from the same predecessor
// instead of giving each one its own slot.
type ESTreeML struct {
	*estreeCore
}

// NewESTreeML returns an ESTreeML maintainer.
func NewESTreeML(cfg Config, sink profile.Sink) *ESTreeML {
	core := newEstreeCore("Multi-Level Even-Shiloach Tree", "es-tree-ml", cfg, sink)
	core.queue = bucketAdapter{queue.NewBucket()}
	core.insertArc = core.store.InsertArcCounted
	core.removeArc = core.store.RemoveArcCounted
	core.processOne = processScan
	return &ESTreeML{core}
}

// Reverse swaps the traversal direction, turning this maintainer into a
// single-sink reachability tree over the reversed graph (SPEC_FULL's
// "direction-parametric ESTreeML"): Successors becomes the host's
// incoming-arc scan, so every BFS/process/propagate step that used to walk
// out-arcs now walks in-arcs instead. Call this immediately after
// NewESTreeML, before SetGraph.
func (m *ESTreeML) Reverse() {
	m.Successors = func(v graph.VertexID, f func(graph.ArcID, graph.VertexID) bool) bool {
		return m.g.MapIncomingArcsUntil(v, f)
	}
}

var _ Maintainer = (*ESTreeML)(nil)
var _ graph.Listener = (*ESTreeML)(nil)
