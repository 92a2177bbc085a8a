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

// Package profile implements the optional counter sink that the reach
// maintainers hand observations to. Profiling is modeled as a capability
// a maintainer holds, not a compile-time flag: a Noop sink compiles the
// hot-path calls down to a single interface call with no allocation, and
// a Prometheus-backed sink is available for embedders who want it wired
// to real metrics infrastructure.
package profile

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink receives named counter observations from a maintainer. Counters
// are monotonically increasing (reruns, rerun_requeued, and so on);
// Observe adds delta to the running total for name.
type Sink interface {
	Observe(name string, delta uint64)
	// Snapshot returns the current value of every counter observed so
	// far, for get_profile()-style introspection.
	Snapshot() []Counter
}

// Counter is one named counter and its current value.
type Counter struct {
	Name  string
	Value uint64
}

// Noop is a Sink that discards every observation. It is the default for
// maintainers constructed without an explicit sink.
type Noop struct{}

// Observe does nothing.
func (Noop) Observe(string, uint64) {}

// Snapshot always returns nil.
func (Noop) Snapshot() []Counter { return nil }

// Memory is an in-process Sink backed by a map, useful for tests and for
// embedders that want get_profile() without a metrics backend.
type Memory struct {
	mu     sync.Mutex
	values map[string]uint64
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]uint64)}
}

// Observe adds delta to the named counter.
func (obj *Memory) Observe(name string, delta uint64) {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	obj.values[name] += delta
}

// Snapshot returns every counter, sorted by name for deterministic output.
func (obj *Memory) Snapshot() []Counter {
	obj.mu.Lock()
	defer obj.mu.Unlock()
	out := make([]Counter, 0, len(obj.values))
	for k, v := range obj.values {
		out = append(out, Counter{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Prometheus is a Sink backed by a prometheus.CounterVec, for embedders
// that already scrape a /metrics endpoint and want maintainer counters
// alongside everything else.
type Prometheus struct {
	vec *prometheus.CounterVec
}

// NewPrometheus registers a "name"-labeled counter vector under the
// given namespace/subsystem and returns a Sink wrapping it. Registration
// failures (eg a duplicate collector) are swallowed and the call falls
// back to reusing the already-registered collector, mirroring how a
// long-lived process that re-initializes a maintainer on graph-reset
// would expect repeated construction to behave.
func NewPrometheus(namespace, subsystem string) *Prometheus {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "counter_total",
		Help:      "Maintainer-reported counters, labeled by counter name.",
	}, []string{"name"})
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return &Prometheus{vec: vec}
}

// Observe adds delta to the named counter's series.
func (obj *Prometheus) Observe(name string, delta uint64) {
	obj.vec.WithLabelValues(name).Add(float64(delta))
}

// Snapshot is not supported for the Prometheus sink; counters are read
// back through the registered /metrics endpoint instead, so this always
// returns nil.
func (obj *Prometheus) Snapshot() []Counter { return nil }
