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

// Package transform implements the diff-transform tree:
// the layer between the excerpt sequence (excerpt space) and the output
// coordinate space consumers see, which overlays per-buffer diff hunks as
// either pass-through buffer content or synthesized runs of deleted-hunk
// base text.
package transform

import (
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/textsum"
)

// Kind distinguishes the two transform variants.
type Kind uint8

const (
	BufferContentKind Kind = iota
	DeletedHunkKind
)

// HunkInfo tags a transform as belonging to a particular diff hunk: which
// excerpt the hunk lives in, the hunk's starting buffer anchor (used to
// test whether a cached transform can be reused across a rebuild), and
// whether the hunk is "secondary".
type HunkInfo struct {
	ExcerptID   excerpttree.ID
	StartAnchor buffer.Anchor
	Secondary   bool
	Status      diffprovider.HunkStatus
}

// Equal reports whether two HunkInfo values tag the same hunk. Adjacent
// BufferContent transforms with equal hunk tags must be merged. A nil
// receiver and nil other are both considered untagged and compare equal.
func (h *HunkInfo) Equal(other *HunkInfo) bool {
	if h == nil || other == nil {
		return h == nil && other == nil
	}
	return h.ExcerptID == other.ExcerptID &&
		h.Status == other.Status &&
		h.StartAnchor.Compare(other.StartAnchor) == 0 &&
		h.Secondary == other.Secondary
}

// Transform is one unit of the diff-transform tree.
type Transform struct {
	Kind Kind

	// BufferContentKind fields. Len is the excerpt-space (and,
	// equivalently, output-space) byte length of this pass-through chunk.
	Len          int
	InsertedHunk *HunkInfo

	// DeletedHunkKind fields.
	BufferID         buffer.ID
	BaseRange        buffer.Range
	SyntheticNewline bool
	Hunk             *HunkInfo

	// cached holds the precomputed Summary for this transform (computed
	// once, when the transform is created, from the underlying buffer or
	// base-text content — the tree never re-derives it from raw text).
	cached Summary
}

// NewBufferContent builds a pass-through transform of the given
// excerpt-space text summary (which, since BufferContentKind passes
// through 1:1, is also its output summary).
func NewBufferContent(textLen int, text textsum.Summary, hunk *HunkInfo) Transform {
	return Transform{
		Kind:         BufferContentKind,
		Len:          textLen,
		InsertedHunk: hunk,
		cached:       Summary{Input: text, Output: text},
	}
}

// NewDeletedHunk builds a synthesized deleted-hunk transform whose output
// is baseText (optionally with a synthetic trailing newline appended).
func NewDeletedHunk(bufferID buffer.ID, baseRange buffer.Range, baseText textsum.Summary, syntheticNewline bool, hunk *HunkInfo) Transform {
	out := baseText
	if syntheticNewline {
		out = out.Add(textsum.Summary{Bytes: 1, UTF16Units: 1, Lines: 1})
	}
	return Transform{
		Kind:             DeletedHunkKind,
		BufferID:         bufferID,
		BaseRange:        baseRange,
		SyntheticNewline: syntheticNewline,
		Hunk:             hunk,
		cached:           Summary{Input: textsum.Zero, Output: out},
	}
}

// Summary returns this transform's cached {input, output} summary.
func (t Transform) Summary() Summary { return t.cached }

// IsEmptyBufferContent reports whether this is a zero-length
// BufferContent transform, forbidden except in an otherwise-empty
// document.
func (t Transform) IsEmptyBufferContent() bool {
	return t.Kind == BufferContentKind && t.Len == 0
}

// Summary is the two-sided aggregate carried by the transform tree:
// excerpt-space length (Input) and output-space length (Output).
type Summary struct {
	Input  textsum.Summary
	Output textsum.Summary
}

// Add implements sumtree.Summary.
func (s Summary) Add(other Summary) Summary {
	return Summary{Input: s.Input.Add(other.Input), Output: s.Output.Add(other.Output)}
}

var Zero = Summary{}
