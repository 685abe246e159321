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

// Package excerpttree implements the excerpt tree and the excerpt-id
// map: the ordered sequence of excerpts drawn
// from backing buffers that the rest of the multi-buffer core composes
// into a single logical document.
package excerpttree

import (
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/textsum"
	"github.com/textform/multibuffer/locator"
)

// ID is a stable, monotonically allocated identifier for an excerpt. IDs
// are never reused. Order among excerpts is determined by Locator, not by
// ID value.
type ID uint32

// MinID and MaxID bracket the sequence of real IDs; they are useful
// sentinels for range queries ("every excerpt after MinID").
const (
	MinID ID = 0
	MaxID ID = ^ID(0)
)

// ExcerptRange is a pair of buffer anchors delimiting an excerpt's extent
// in its backing buffer.
type ExcerptRange struct {
	Start, End buffer.Anchor
}

// Excerpt is a single visible slice of a buffer within the multi-buffer.
type Excerpt struct {
	ID       ID
	Loc      locator.Locator
	BufferID buffer.ID
	Buffer   buffer.Snapshot

	// Context is the excerpt's full extent in the buffer.
	Context ExcerptRange
	// Primary, if set, is a highlighted sub-range within Context
	// (context.start <= primary.start <= primary.end <= context.end).
	Primary *ExcerptRange

	// ContextOffsets caches Context resolved to buffer byte offsets as of
	// Buffer's revision, since buffer.Anchor is opaque to this package but
	// offsets are needed for summary/cursor math.
	ContextOffsets buffer.Range

	TextSummary        textsum.Summary
	HasTrailingNewline bool
}

// Key implements sumtree.Item: excerpts are ordered by locator.
func (e Excerpt) Key() string { return string(e.Loc) }

// Summary implements sumtree.Item.
func (e Excerpt) Summary() Summary {
	s := Summary{
		Text:         e.TextSummary,
		WidestLineNo: 0,
		RightmostLoc: e.Loc,
	}
	if e.TextSummary.Lines > 0 || e.TextSummary.LongestRowChars > 0 {
		s.WidestLineNo = e.TextSummary.LongestRowChars
	}
	if e.HasTrailingNewline {
		nl := textsum.Summary{Bytes: 1, UTF16Units: 1, Lines: 1}
		s.Text = s.Text.Add(nl)
	}
	return s
}

// EffectiveTextSummary returns the excerpt's text summary including its
// synthetic trailing newline, if any — the value that should be added to
// running excerpt-space totals.
func (e Excerpt) EffectiveTextSummary() textsum.Summary {
	if !e.HasTrailingNewline {
		return e.TextSummary
	}
	return e.TextSummary.Add(textsum.Summary{Bytes: 1, UTF16Units: 1, Lines: 1})
}

// Summary is the aggregate carried by the excerpt tree: a text summary
// (including every excerpt's synthetic trailing newline), the widest
// line-character-count seen, and the rightmost locator (used to assert
// monotonicity cheaply without re-walking the tree).
type Summary struct {
	Text         textsum.Summary
	WidestLineNo int
	RightmostLoc locator.Locator
}

// Add implements sumtree.Summary.
func (s Summary) Add(other Summary) Summary {
	widest := s.WidestLineNo
	if other.WidestLineNo > widest {
		widest = other.WidestLineNo
	}
	rightmost := s.RightmostLoc
	if other.RightmostLoc != nil && (rightmost == nil || locator.Compare(other.RightmostLoc, rightmost) > 0) {
		rightmost = other.RightmostLoc
	}
	return Summary{
		Text:         s.Text.Add(other.Text),
		WidestLineNo: widest,
		RightmostLoc: rightmost,
	}
}

// Zero is the identity element for Add.
var Zero = Summary{}
