// Copyright 2020-2024 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package multibuffer implements the multi-buffer controller: a single
// logical document composed of excerpts drawn from any number of backing
// text buffers, each optionally overlaid with a diff against a base text.
package multibuffer

import (
	"fmt"
	"time"

	"github.com/textform/multibuffer/anchor"
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/excerpttree"
)

// Capability gates whether a MultiBuffer accepts edits.
type Capability uint8

const (
	ReadWrite Capability = iota
	ReadOnly
)

// Config holds the construction-time options for a MultiBuffer, as a
// small explicit option struct rather than functional options.
type Config struct {
	Capability           Capability
	GroupInterval        time.Duration
	AllDiffHunksExpanded bool
	ShowHeaders          bool
	Title                string
}

// DefaultConfig returns the zero-value-sensible configuration: read-write,
// a 300ms transaction group interval, headers shown, hunks collapsed.
func DefaultConfig() Config {
	return Config{Capability: ReadWrite, GroupInterval: 300 * time.Millisecond, ShowHeaders: true}
}

// PositionedError is an error anchored to a position in the
// multi-buffer.
type PositionedError struct {
	Anchor anchor.Anchor
	Err    error
}

func (e *PositionedError) Error() string { return fmt.Sprintf("%s: %s", e.Anchor, e.Err) }
func (e *PositionedError) Unwrap() error { return e.Err }

// Error builds a PositionedError.
func Error(a anchor.Anchor, err error) *PositionedError { return &PositionedError{Anchor: a, Err: err} }

// Errorf is like Error but builds the underlying error from a format
// string.
func Errorf(a anchor.Anchor, format string, args ...any) *PositionedError {
	return &PositionedError{Anchor: a, Err: fmt.Errorf(format, args...)}
}

// Reporter receives PositionedErrors produced during background or
// best-effort operations (e.g. a rebuild that had to clip a stale
// anchor). A nil Reporter is a silent no-op.
type Reporter interface {
	Report(*PositionedError)
}

// Event is the sum type of everything a MultiBuffer can emit to its
// subscribers.
type Event struct {
	Kind EventKind

	ExcerptIDs            []excerpttree.ID
	BufferID              buffer.ID
	PredecessorID         excerpttree.ID
	HasPredecessor        bool
	SingletonBufferEdited bool
	EditedBufferID        buffer.ID
	HasEditedBuffer       bool
	TransactionID         TransactionID
}

// EventKind distinguishes the Event variants.
type EventKind uint8

const (
	ExcerptsAdded EventKind = iota
	ExcerptsRemoved
	ExcerptsExpanded
	ExcerptsEdited
	Edited
	TransactionUndone
	DiffHunksToggled
	Reloaded
	ReloadNeeded
	LanguageChanged
	CapabilityChanged
	Reparsed
	Saved
	FileHandleChanged
	Closed
	Discarded
	DirtyChanged
	DiagnosticsUpdated
)

// ExpandDirection selects which side of a set of excerpts ExpandExcerpts
// grows.
type ExpandDirection uint8

const (
	ExpandUp ExpandDirection = iota
	ExpandDown
	ExpandBoth
)
