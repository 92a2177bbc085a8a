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

import "fmt"

// kind tags the small set of error categories that the host can produce.
// It is unexported; callers distinguish them with errors.Is against the
// exported sentinel values below, the way a small Go library usually
// avoids exporting a whole error-type hierarchy for a handful of cases.
type kind int

const (
	kindInvalidTimestamp kind = iota
	kindUnknownVertex
	kindUnknownArc
	kindDuplicateVertex
	kindInvalidArgument
)

// sentinelErr is a comparable error value carrying one of the kinds above
// plus a human-readable detail string. Two sentinelErr values compare
// equal (and so satisfy errors.Is) whenever their kind matches, regardless
// of detail, which is what lets ErrUnknownVertex.Is match any "unknown
// vertex" error produced anywhere in the package.
type sentinelErr struct {
	k      kind
	detail string
}

func (e *sentinelErr) Error() string {
	return e.detail
}

// Is implements the errors.Is protocol: any two sentinelErr values with the
// same kind are considered equal, independent of their detail text.
func (e *sentinelErr) Is(target error) bool {
	t, ok := target.(*sentinelErr)
	if !ok {
		return false
	}
	return e.k == t.k
}

// Exported sentinels for use with errors.Is. These carry no detail text of
// their own; they exist purely as comparison targets.
var (
	// ErrInvalidTimestamp means an operation was appended with a
	// timestamp lower than the last one seen by the log.
	ErrInvalidTimestamp error = &sentinelErr{k: kindInvalidTimestamp}
	// ErrUnknownVertex means an operation referenced a vertex label that
	// does not exist in the relevant view of the graph.
	ErrUnknownVertex error = &sentinelErr{k: kindUnknownVertex}
	// ErrUnknownArc means an operation referenced an arc that does not
	// exist in the construction graph.
	ErrUnknownArc error = &sentinelErr{k: kindUnknownArc}
	// ErrDuplicateVertex means AddVertex was called with a label that
	// already exists, without the "ok-if-exists" option.
	ErrDuplicateVertex error = &sentinelErr{k: kindDuplicateVertex}
	// ErrInvalidArgument covers malformed call arguments, eg a compact
	// size bigger than the pending tail of the log.
	ErrInvalidArgument error = &sentinelErr{k: kindInvalidArgument}
)

func invalidTimestampf(format string, args ...interface{}) error {
	return &sentinelErr{k: kindInvalidTimestamp, detail: fmt.Sprintf(format, args...)}
}

func unknownVertexf(format string, args ...interface{}) error {
	return &sentinelErr{k: kindUnknownVertex, detail: fmt.Sprintf(format, args...)}
}

func unknownArcf(format string, args ...interface{}) error {
	return &sentinelErr{k: kindUnknownArc, detail: fmt.Sprintf(format, args...)}
}

func duplicateVertexf(format string, args ...interface{}) error {
	return &sentinelErr{k: kindDuplicateVertex, detail: fmt.Sprintf(format, args...)}
}

func invalidArgumentf(format string, args ...interface{}) error {
	return &sentinelErr{k: kindInvalidArgument, detail: fmt.Sprintf(format, args...)}
}
