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

// Package buffer defines the narrow interface the multi-buffer core
// consumes from an externally owned, editable text document. Nothing in
// this package implements an actual rope or
// CRDT; see package textrope for a reference implementation used by tests.
package buffer

import (
	"iter"

	"github.com/textform/multibuffer/internal/textsum"
)

// ID is a stable identifier for a buffer, assigned by whatever owns the
// pool of buffers (not by this package).
type ID uint32

// Bias indicates which side of an edit boundary a position should resolve
// to when the exact offset no longer exists (e.g. because text was
// deleted at that offset).
type Bias uint8

const (
	// Left biases toward the character before the position.
	Left Bias = iota
	// Right biases toward the character at or after the position.
	Right
)

// Version is an opaque, comparable token identifying a point in a buffer's
// edit history. Buffers hand these out; the multi-buffer core only ever
// compares them for equality or passes them back to EditsSinceInRange.
type Version interface {
	// Equal reports whether two versions refer to the same buffer state.
	Equal(Version) bool
	// Changed reports whether this version has diverged from a prior one
	// (i.e. more edits have landed since).
	Changed(since Version) bool
}

// Anchor is a position within a specific buffer that survives edits to
// that buffer. Buffers are responsible for resolving their own anchors;
// the multi-buffer core treats them opaquely aside from ordering.
type Anchor interface {
	// Compare orders two anchors in the same buffer.
	Compare(Anchor) int
	// String renders a debug form. It is not an identity: two anchors
	// that resolve to the same position can render differently.
	String() string
}

// Edit describes a single replacement of buffer content, in byte offsets
// as of some Version.
type Edit struct {
	OldStart, OldEnd int
	NewStart, NewEnd int
}

// OldLen returns the length, in bytes, of the replaced span.
func (e Edit) OldLen() int { return e.OldEnd - e.OldStart }

// NewLen returns the length, in bytes, of the replacement span.
func (e Edit) NewLen() int { return e.NewEnd - e.NewStart }

// IsInsertion reports whether this edit purely inserts text with no
// deletion. Edit routing applies deletions and insertions in separate
// passes.
func (e Edit) IsInsertion() bool { return e.OldStart == e.OldEnd }

// Chunk is one contiguous piece of text returned by a chunk iterator,
// optionally tagged with language-aware highlighting metadata (opaque to
// this package; language_aware chunk consumers downcast as needed).
type Chunk struct {
	Text     string
	IsSyntax bool
}

// AutoindentMode selects how Edit should compute indentation for inserted
// lines. The concrete mode values are owned by the backing buffer
// implementation; this is an opaque passthrough.
type AutoindentMode interface{}

// TransactionID identifies a buffer-local undo transaction.
type TransactionID uint64

// Buffer is the interface the multi-buffer core consumes from a backing
// text buffer. A real implementation is usually a
// CRDT-backed rope; see package textrope for one built for tests.
type Buffer interface {
	RemoteID() ID
	Version() Version
	Snapshot() Snapshot

	// EditsSinceInRange returns the edits that have landed in range
	// (expressed against the *old* version) since the given version, in
	// increasing offset order.
	EditsSinceInRange(since Version, rng Range) iter.Seq[Edit]

	// EditedRangesForTransaction yields the post-edit ranges a completed
	// transaction touched, in increasing offset order. Callers needing
	// only a transaction's net effect on a span use this instead of
	// replaying EditsSinceInRange against an intermediate version.
	EditedRangesForTransaction(id TransactionID) iter.Seq[Range]

	AnchorBefore(offset int) Anchor
	AnchorAfter(offset int) Anchor
	AnchorAt(offset int, bias Bias) Anchor
	OffsetForAnchor(a Anchor) int

	TextSummaryForRange(rng Range) textsum.Summary

	Chunks(rng Range, languageAware bool) iter.Seq[Chunk]
	ReversedChunksInRange(rng Range) iter.Seq[Chunk]
	BytesInRange(rng Range) iter.Seq[byte]

	ClipOffset(offset int, bias Bias) int
	ClipPoint(p textsum.Point, bias Bias) textsum.Point

	Edit(edits []TextEdit, autoindent AutoindentMode) TransactionID
	StartTransactionAt(now int64) TransactionID
	EndTransactionAt(now int64) (TransactionID, bool)
	UndoToTransaction(id TransactionID) bool
	RedoToTransaction(id TransactionID) bool
	ForgetTransaction(id TransactionID)
	MergeTransactions(src, dst TransactionID)
	FinalizeLastTransaction()
	PushTransaction(id TransactionID)

	AutoindentRanges(ranges []Range)
}

// TextEdit is a single requested edit, in buffer byte offsets, paired with
// its replacement text.
type TextEdit struct {
	Range Range
	Text  string
}

// Range is a half-open byte range [Start, End) within a buffer.
type Range struct {
	Start, End int
}

// Len returns End - Start.
func (r Range) Len() int { return r.End - r.Start }

// Snapshot is a read-only, point-in-time view of a buffer, cheap to clone
// (structurally shared), used by the multi-buffer snapshot so that
// background readers never observe a half-applied edit.
type Snapshot interface {
	Len() int
	Text() string
	TextSummary() textsum.Summary
	OffsetToPoint(offset int) textsum.Point
	PointToOffset(p textsum.Point) int
}
