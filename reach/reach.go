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

// Package reach implements the family of incremental single-source
// reachability maintainers: the bucket-queue OldESTree, the FIFO-queue
// ESTreeQ, the multi-level ESTreeML, the predecessor-tree SimpleESTree,
// and the tri-state SimpleIncSSReach. Each reads a graph.HostGraph, receives
// graph.Listener events, and keeps a BFS-level tree (or tri-state tag) up to date as arcs and
// vertices come and go.
package reach

import (
	"fmt"

	"github.com/libAlgora/dynreach/graph"
	"github.com/libAlgora/dynreach/profile"
)

// HostGraph is the slice of graph.DynamicGraph (or graph.Graph) that a
// maintainer needs: the size queries and bounded read-only scans of spec
// section 6. Event subscription is the separate Subscribable interface. Maintainers depend on this interface, not the
// concrete host, so they can be driven directly off a graph.Graph in
// tests without a DynamicGraph wrapped around it.
type HostGraph interface {
	Size() int
	NumArcs() int
	IsSink(v graph.VertexID) bool
	IsSource(v graph.VertexID) bool
	AnyVertex() (graph.VertexID, bool)
	Vertices() []graph.VertexID
	MapOutgoingArcsUntil(v graph.VertexID, f func(a graph.ArcID, head graph.VertexID) bool) bool
	MapIncomingArcsUntil(v graph.VertexID, f func(a graph.ArcID, tail graph.VertexID) bool) bool
}

// Subscribable is implemented by hosts that can dispatch events to a
// graph.Listener; graph.DynamicGraph satisfies it. A maintainer can be
// driven by hand (tests feeding OnArcAdd etc. directly) without ever
// calling Subscribe.
type Subscribable interface {
	Subscribe(l graph.Listener)
}

// Maintainer is the capability set spec section 9's "open/dynamic
// dispatch across maintainer variants" design note asks for: the shared
// interface every ES-tree-family maintainer implements, that an
// (out-of-scope) caching or all-pairs wrapper would be written against.
type Maintainer interface {
	graph.Listener

	SetGraph(g HostGraph)
	UnsetGraph()
	SetSource(v graph.VertexID)
	SetAutoUpdate(enabled bool)
	Run() error

	Query(t graph.VertexID) bool
	QueryPath(t graph.VertexID) ([]graph.ArcID, error)

	GetName() string
	GetShortName() string
	GetProfile() []profile.Counter
}

// ErrInvariantViolation is spec section 7's InvariantViolation kind. It is
// returned by Run when no graph is attached and by QueryPath when the
// vertex is not reachable or its parent chain is broken. Event handlers
// return no error: an OnArcRemove for an arc or head the maintainer never
// registered is ignored, at most with a Logf line.
var ErrInvariantViolation = fmt.Errorf("invariant violation")

// invariantViolationf formats an ErrInvariantViolation-compatible error;
// callers compare with errors.Is(err, ErrInvariantViolation).
type invariantErr struct{ msg string }

func (e *invariantErr) Error() string { return e.msg }
func (e *invariantErr) Is(target error) bool {
	return target == ErrInvariantViolation
}

func invariantViolationf(format string, args ...interface{}) error {
	return &invariantErr{msg: fmt.Sprintf(format, args...)}
}

// Config holds the tuning knobs shared by OldESTree, ESTreeQ and
// ESTreeML's restore_tree pass (spec section 4.3): the per-vertex requeue
// cap and the fraction of |V| a single restore pass may touch before
// giving up and rerunning a full BFS.
type Config struct {
	// RequeueLimit caps how many times a single vertex may be pushed
	// back onto the restore queue during one restore_tree pass.
	RequeueLimit int
	// MaxAffectedRatio bounds (processed + queue length) as a fraction
	// of |V|; crossing it triggers a rerun.
	MaxAffectedRatio float64
}

// DefaultConfig returns the preset a typical embedder should start with:
// generous limits that rarely trigger a rerun on well-behaved graphs.
func DefaultConfig() Config {
	return Config{RequeueLimit: 64, MaxAffectedRatio: 0.5}
}

// ConservativeConfig returns the tighter preset the original's parameter
// sets offer for latency-sensitive embedders: a rerun is preferred over
// a long incremental restore pass.
func ConservativeConfig() Config {
	return Config{RequeueLimit: 8, MaxAffectedRatio: 0.1}
}

func (c Config) affectedLimit(size int) int {
	return int(c.MaxAffectedRatio * float64(size))
}

// profCounters are the profile.Sink counter names every ES-tree
// maintainer reports (spec section 7's "reruns, rerun_requeued,
// rerun_num_affected").
const (
	counterReruns           = "reruns"
	counterRerunRequeued    = "rerun_requeued"
	counterRerunNumAffected = "rerun_num_affected"
	counterProcessed        = "processed"
)
