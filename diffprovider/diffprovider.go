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

// Package diffprovider defines the narrow interface the multi-buffer core
// consumes from a per-buffer diff source: a
// sequence of hunks against a base version, plus the base text itself. See
// package linediff for a reference implementation.
package diffprovider

import (
	"iter"

	"github.com/textform/multibuffer/buffer"
)

// HunkStatus distinguishes the three shapes a hunk can take.
type HunkStatus uint8

const (
	// Modified means both the buffer-side and base-side ranges are
	// non-empty: some text was replaced.
	Modified HunkStatus = iota
	// Added means the buffer-side range is non-empty but the base-side
	// range is empty: pure insertion relative to the base.
	Added
	// Removed means the base-side range is non-empty but the buffer-side
	// range is empty: a deleted hunk, materialized in the transform tree
	// from base text.
	Removed
)

// Hunk is a single contiguous difference between a buffer and its base
// text.
type Hunk struct {
	// BufferRange is the hunk's extent in the live buffer, in byte
	// offsets.
	BufferRange buffer.Range
	// BaseRange is the hunk's extent in the base text, in byte offsets.
	BaseRange buffer.Range
	Status    HunkStatus
	// Secondary marks a hunk that should not be treated as the user's
	// "main" pending change (e.g. a hunk contributed by a merge base
	// rather than the working tree).
	Secondary bool
}

// IsDeleted reports whether this hunk's buffer-side range is empty, i.e.
// it must be rendered as a DeletedHunk transform.
func (h Hunk) IsDeleted() bool { return h.Status == Removed }

// ChangeEvent is the event a Provider emits when its hunks or base text
// change.
type ChangeEvent struct {
	// ChangedRange, if non-nil, restricts the change to a buffer-side
	// range; nil means the whole buffer may have changed.
	ChangedRange *buffer.Range
	// LanguageChanged indicates the buffer's language/grammar changed,
	// which may affect how hunks are rendered but never changes their
	// ranges.
	LanguageChanged bool
}

// Provider is the interface the multi-buffer core consumes from a
// per-buffer diff source.
type Provider interface {
	BufferID() buffer.ID

	// BaseText returns the diff base's full text, or ("", false) if there
	// is no base (e.g. a new, untracked buffer).
	BaseText() (string, bool)

	// BaseTextsEqual reports whether this provider's base text is
	// identical to another provider's, used to decide base_changed
	// without re-diffing.
	BaseTextsEqual(other Provider) bool

	// HunksIntersectingRange returns, in increasing order, the hunks that
	// intersect rng.
	HunksIntersectingRange(rng buffer.Range) iter.Seq[Hunk]
	// ReversedHunksIntersectingRange is the reverse-order counterpart,
	// used by reverse iterators.
	ReversedHunksIntersectingRange(rng buffer.Range) iter.Seq[Hunk]
}
