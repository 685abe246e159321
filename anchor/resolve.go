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

package anchor

import (
	"sort"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/transform"
	"github.com/textform/multibuffer/locator"
)

// Deps abstracts the buffer access anchor resolution needs.
type Deps interface {
	LocatorSource
	// BufferAnchorAt asks the backing buffer for a native anchor at a
	// buffer-space offset.
	BufferAnchorAt(bufferID buffer.ID, offset int, bias buffer.Bias) buffer.Anchor
	// BufferOffsetForAnchor is the inverse of BufferAnchorAt.
	BufferOffsetForAnchor(bufferID buffer.ID, a buffer.Anchor) int
}

// At resolves an output-space offset plus bias into a stable Anchor.
func At(excerpts *excerpttree.Tree, transforms *transform.Tree, deps Deps, offset int, bias buffer.Bias) Anchor {
	tc := transforms.Cursor()

	// Step 1: seek to offset; if biased left and sitting exactly on a
	// boundary whose predecessor is a DeletedHunk, step back into it.
	if !tc.SeekOutput(offset) {
		if last, ok := lastExcerpt(excerpts); ok {
			return Anchor{ExcerptID: last.ID, BufferID: last.BufferID, TextAnchor: deps.BufferAnchorAt(last.BufferID, last.ContextOffsets.End, buffer.Right)}
		}
		return Max
	}
	if bias == buffer.Left && tc.PrefixSummary().Output.Bytes == offset {
		prev := transforms.Cursor()
		if prev.SeekOutput(offset - 1) {
			if prev.Item().Kind == transform.DeletedHunkKind {
				tc = prev
			}
		}
	}

	item := tc.Item()
	prefix := tc.PrefixSummary()

	if item.Kind == transform.DeletedHunkKind {
		offsetInTransform := offset - prefix.Output.Bytes
		baseLen := item.BaseRange.Len()
		if offsetInTransform < baseLen {
			// Step 2: inside the base-text span itself.
			if item.Hunk == nil {
				return Anchor{DiffBaseAnchor: &BaseTextAnchor{Offset: item.BaseRange.Start + offsetInTransform}}
			}
			return Anchor{
				ExcerptID:      item.Hunk.ExcerptID,
				BufferID:       item.BufferID,
				DiffBaseAnchor: &BaseTextAnchor{Offset: item.BaseRange.Start + offsetInTransform},
			}
		}
		// Past the base-text span: within the synthetic trailing
		// newline. Fall through to the following BufferContent, if any.
		if tc.Next() {
			item = tc.Item()
			prefix = tc.PrefixSummary()
		} else {
			if item.Hunk != nil {
				if excerpt, ok := excerptByID(excerpts, item.Hunk.ExcerptID); ok {
					return Anchor{ExcerptID: excerpt.ID, BufferID: excerpt.BufferID, TextAnchor: deps.BufferAnchorAt(excerpt.BufferID, excerpt.ContextOffsets.End, buffer.Right)}
				}
			}
			return Max
		}
	}

	// Step 3: translate residual offset into excerpt space, then buffer
	// space.
	inputOffset := prefix.Input.Bytes + (offset - prefix.Output.Bytes)
	excerpt, excerptStart, ok := excerpts.SeekOffset(inputOffset)
	if !ok {
		last, lok := lastExcerpt(excerpts)
		if !lok {
			return Max
		}
		excerpt = last
		excerptStart = excerpts.TextLen() - last.EffectiveTextSummary().Bytes
	}
	bufOffset := excerpt.ContextOffsets.Start + (inputOffset - excerptStart)
	if bufOffset > excerpt.ContextOffsets.End {
		bufOffset = excerpt.ContextOffsets.End
	}
	return Anchor{
		ExcerptID:  excerpt.ID,
		BufferID:   excerpt.BufferID,
		TextAnchor: deps.BufferAnchorAt(excerpt.BufferID, bufOffset, bias),
	}
}

// SummaryForAnchor is the inverse of At, returning the anchor's current
// output-space offset.
func SummaryForAnchor(excerpts *excerpttree.Tree, transforms *transform.Tree, deps Deps, a Anchor) int {
	excerpt, excerptStart, ok := excerptByIDWithOffset(excerpts, a.ExcerptID)
	if !ok {
		if a.ExcerptID == excerpttree.MaxID {
			return transforms.Total().Output.Bytes
		}
		return 0
	}

	if a.DiffBaseAnchor != nil {
		// Walk the transform tree for the DeletedHunk at this excerpt
		// whose base range contains the anchor's base offset.
		tc := transforms.Cursor()
		tc.SeekInput(excerptStart)
		// SeekInput passes over zero-input DeletedHunks sitting exactly at
		// excerptStart; step back onto them so they are examined too.
		for tc.Prev() {
			if tc.Item().Summary().Input.Bytes != 0 || tc.PrefixSummary().Input.Bytes != excerptStart {
				break
			}
		}
		tc.Next()
		for tc.Valid() {
			item := tc.Item()
			if item.Kind == transform.DeletedHunkKind && item.Hunk != nil && item.Hunk.ExcerptID == a.ExcerptID {
				if a.DiffBaseAnchor.Offset >= item.BaseRange.Start && a.DiffBaseAnchor.Offset <= item.BaseRange.End {
					return tc.PrefixSummary().Output.Bytes + (a.DiffBaseAnchor.Offset - item.BaseRange.Start)
				}
			}
			if item.Kind == transform.BufferContentKind && tc.PrefixSummary().Input.Bytes > excerptStart+excerpt.EffectiveTextSummary().Bytes {
				break
			}
			if !tc.Next() {
				break
			}
		}
		// Fell through (hunk since collapsed or removed): without a
		// text anchor there is nothing left to translate, so land at
		// the excerpt's nominal start.
		fc := transforms.Cursor()
		if !fc.SeekInput(excerptStart) {
			return transforms.Total().Output.Bytes
		}
		return fc.PrefixSummary().Output.Bytes + (excerptStart - fc.PrefixSummary().Input.Bytes)
	}

	if a.TextAnchor == nil {
		return excerptStart
	}

	bufOffset := deps.BufferOffsetForAnchor(excerpt.BufferID, a.TextAnchor)
	inputOffset := excerptStart + (bufOffset - excerpt.ContextOffsets.Start)

	tc := transforms.Cursor()
	if !tc.SeekInput(inputOffset) {
		return transforms.Total().Output.Bytes
	}
	through := tc.PrefixSummary().Input.Bytes
	return tc.PrefixSummary().Output.Bytes + (inputOffset - through)
}

// RefreshResult is one entry of refresh_anchors's output.
type RefreshResult struct {
	OriginalIndex int
	Anchor        Anchor
	KeptPosition  bool
}

// Refresh re-maps anchors after
// excerpt insertion/removal, keeping each anchor's position in its
// original excerpt where possible, else clipping to the nearest
// surviving excerpt.
func Refresh(excerpts *excerpttree.Tree, deps Deps, anchors []Anchor) []RefreshResult {
	out := make([]RefreshResult, len(anchors))
	items := excerpts.Excerpts()
	for i, a := range anchors {
		out[i] = RefreshResult{OriginalIndex: i, Anchor: a}

		if a.ExcerptID == excerpttree.MinID || a.ExcerptID == excerpttree.MaxID {
			out[i].KeptPosition = true
			continue
		}

		if excerpt, ok := excerpts.ByID(a.ExcerptID); ok {
			bufOffset := deps.BufferOffsetForAnchor(excerpt.BufferID, a.TextAnchor)
			if bufOffset >= excerpt.ContextOffsets.Start && bufOffset <= excerpt.ContextOffsets.End {
				out[i].KeptPosition = true
				continue
			}
		}

		idx := -1
		for j, e := range items {
			if e.ID == a.ExcerptID {
				idx = j
				break
			}
		}
		if idx < 0 {
			// The excerpt no longer exists at all. Its last-known locator
			// is retained by the id map, so seek it forward in the
			// surviving order and attach to the positionally adjacent
			// excerpt (next, then previous).
			out[i].Anchor = anchorNearRemovedExcerpt(items, deps, a)
			continue
		}

		if idx+1 < len(items) {
			next := items[idx+1]
			out[i].Anchor = Anchor{ExcerptID: next.ID, BufferID: next.BufferID, TextAnchor: deps.BufferAnchorAt(next.BufferID, next.ContextOffsets.Start, buffer.Left)}
			continue
		}
		if idx-1 >= 0 {
			prev := items[idx-1]
			out[i].Anchor = Anchor{ExcerptID: prev.ID, BufferID: prev.BufferID, TextAnchor: deps.BufferAnchorAt(prev.BufferID, prev.ContextOffsets.End, buffer.Right)}
			continue
		}
		out[i].Anchor = Max
	}
	return out
}

// anchorNearRemovedExcerpt relocates an anchor whose excerpt was removed:
// the first surviving excerpt whose locator sorts after the removed one's
// receives the anchor at its context start; with no such excerpt, the
// last one sorting before it receives the anchor at its context end.
func anchorNearRemovedExcerpt(items []excerpttree.Excerpt, deps Deps, a Anchor) Anchor {
	if len(items) == 0 {
		return Max
	}
	oldLoc, ok := deps.Locator(a.ExcerptID)
	if !ok {
		// No retained locator (an id this multi-buffer never held);
		// clip to the document's end.
		last := items[len(items)-1]
		return Anchor{ExcerptID: last.ID, BufferID: last.BufferID, TextAnchor: deps.BufferAnchorAt(last.BufferID, last.ContextOffsets.End, buffer.Right)}
	}
	next := sort.Search(len(items), func(j int) bool {
		return locator.Compare(items[j].Loc, oldLoc) > 0
	})
	if next < len(items) {
		n := items[next]
		return Anchor{ExcerptID: n.ID, BufferID: n.BufferID, TextAnchor: deps.BufferAnchorAt(n.BufferID, n.ContextOffsets.Start, buffer.Left)}
	}
	prev := items[len(items)-1]
	return Anchor{ExcerptID: prev.ID, BufferID: prev.BufferID, TextAnchor: deps.BufferAnchorAt(prev.BufferID, prev.ContextOffsets.End, buffer.Right)}
}

func lastExcerpt(excerpts *excerpttree.Tree) (excerpttree.Excerpt, bool) { return excerpts.Last() }

func excerptByID(excerpts *excerpttree.Tree, id excerpttree.ID) (excerpttree.Excerpt, bool) {
	return excerpts.ByID(id)
}

func excerptByIDWithOffset(excerpts *excerpttree.Tree, id excerpttree.ID) (excerpttree.Excerpt, int, bool) {
	offset := 0
	for _, e := range excerpts.Excerpts() {
		if e.ID == id {
			return e, offset, true
		}
		offset += e.EffectiveTextSummary().Bytes
	}
	return excerpttree.Excerpt{}, 0, false
}
