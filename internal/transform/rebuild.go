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

package transform

import (
	"sort"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/textsum"
)

// ChangeKind distinguishes why a rebuild is happening, which governs the
// should_expand decision table.
type ChangeKind uint8

const (
	// BufferEdited is a plain text edit: prior expansion state is
	// preserved (or overridden by global expansion).
	BufferEdited ChangeKind = iota
	// DiffUpdated means the diff provider's base text or hunk set changed.
	DiffUpdated
	// ExpandOrCollapseHunks is a user-driven fold/unfold request.
	ExpandOrCollapseHunks
)

// Change describes one rebuild request.
type Change struct {
	Kind             ChangeKind
	BaseChanged      bool // meaningful when Kind == DiffUpdated
	Expand           bool // meaningful when Kind == ExpandOrCollapseHunks
	AllHunksExpanded bool // global expansion flag, consulted by every kind
}

// Deps abstracts the buffer and diff-provider access the rebuild needs,
// supplied by the controller that owns the excerpt and buffer state.
type Deps interface {
	// ExcerptAt returns the excerpt (from the new excerpt tree) whose
	// excerpt-space range contains offset, the excerpt's excerpt-space
	// start offset, and whether such an excerpt exists.
	ExcerptAt(offset int) (excerpttree.Excerpt, int, bool)
	// Hunks returns the hunks intersecting rng in bufferID's backing
	// buffer, in increasing order.
	Hunks(bufferID buffer.ID, rng buffer.Range) []diffprovider.Hunk
	// BufferTextSummary summarizes live buffer bytes [rng.Start, rng.End).
	BufferTextSummary(bufferID buffer.ID, rng buffer.Range) textsum.Summary
	// BaseTextSummary summarizes base-text bytes [rng.Start, rng.End).
	BaseTextSummary(bufferID buffer.ID, rng buffer.Range) textsum.Summary
	// BaseEndsWithNewline reports whether the base-text byte immediately
	// before offset is '\n'.
	BaseEndsWithNewline(bufferID buffer.ID, offset int) bool
	// AnchorValid reports whether a hunk-start anchor cached in an old
	// transform is still resolvable in the current buffer snapshot.
	AnchorValid(bufferID buffer.ID, a buffer.Anchor) bool
	// AnchorAt returns a stable buffer anchor at offset, used to identify
	// a hunk across a rebuild by its start position.
	AnchorAt(bufferID buffer.ID, offset int, bias buffer.Bias) buffer.Anchor
	// AnchorOffset resolves an anchor to its current buffer offset.
	AnchorOffset(bufferID buffer.ID, a buffer.Anchor) int
}

// OutputEdit is the output-space counterpart of an excerpttree.ExcerptEdit,
// computed by prefix-summing output lengths on either side of a rebuild.
type OutputEdit struct {
	OldStart, OldEnd int
	NewStart, NewEnd int
}

// Rebuild applies a sorted stream of excerpt-space edits to old,
// incrementally reconstructing the affected interval, and returns the new
// tree plus the output-space edits to publish to subscribers.
//
// The affected interval is snapped outward to whole-transform boundaries:
// an untagged BufferContent run coalesces across excerpt boundaries, so an
// edit routinely lands mid-transform, and the partial head and tail of the
// containing transforms must be reconstructed along with the edited span
// itself. Transforms before the snapped interval are carried over
// unexamined; those after it are carried over except DeletedHunks whose
// start anchor no longer resolves (see resumeSuffix). Hunk expand/collapse
// state inside the interval is preserved via recordExpanded.
func Rebuild(old *Tree, edits []excerpttree.ExcerptEdit, change Change, deps Deps) (*Tree, []OutputEdit) {
	if len(edits) == 0 {
		return old, nil
	}

	first := edits[0]
	last := edits[len(edits)-1]

	startIdx, endIdx, leftBoundary, rightBoundary := rebuildBounds(old, first.OldStart, last.OldEnd)

	prefixItems := append([]Transform(nil), old.items[:startIdx]...)

	// Positions before the first edit (and after the last) are unchanged,
	// so the snapped margins have the same width in old and new space.
	rebuildStart := first.NewStart - (first.OldStart - leftBoundary)
	rebuildEnd := last.NewEnd + (rightBoundary - last.OldEnd)

	previouslyExpanded := recordExpanded(old, startIdx, endIdx, deps)

	var rebuilt []Transform
	anyHunks := len(previouslyExpanded) > 0 || change.AllHunksExpanded || change.Kind != BufferEdited
	if !anyHunks {
		// Plain buffer edit with nothing ever expanded here: skip the hunk
		// query entirely.
		rebuilt = plainBufferContent(rebuildStart, rebuildEnd, deps)
	} else {
		rebuilt = rebuildWithHunks(rebuildStart, rebuildEnd, edits, change, previouslyExpanded, deps)
	}

	suffixItems := resumeSuffix(old, endIdx, deps)

	allItems := make([]Transform, 0, len(prefixItems)+len(rebuilt)+len(suffixItems))
	allItems = append(allItems, prefixItems...)
	allItems = coalesceAppend(allItems, rebuilt...)
	allItems = coalesceAppend(allItems, suffixItems...)

	newTree := FromItems(allItems)

	outputEdits := computeOutputEdits(old, newTree, startIdx, endIdx, suffixItems)
	return newTree, outputEdits
}

// seekIdx returns the index of the transform containing input-space
// offset (the first transform whose input end exceeds it), or len(items)
// when offset is at or past the tree's total input length. Zero-input
// transforms sitting exactly at offset are skipped past.
func seekIdx(t *Tree, offset int) int {
	return sort.Search(len(t.items), func(i int) bool {
		return t.prefix[i].Input.Bytes+t.items[i].Summary().Input.Bytes > offset
	})
}

// rebuildBounds computes the slice [startIdx, endIdx) of old transforms
// the rebuild reconstructs, plus the input-space offsets of its two edges.
// The interval is deliberately generous at both edges: an edit landing
// exactly on a transform boundary pulls in the neighboring transform, and
// zero-input transforms (DeletedHunks) sitting on either edge are pulled
// in too, so that a zero-width edit addressed at a hunk boundary (the
// shape ExpandOrCollapseHunks produces) actually reaches that hunk.
// Rebuilding a transform that didn't strictly need it is harmless — its
// hunks' expansion state is carried across by recordExpanded.
func rebuildBounds(old *Tree, oldStart, oldEnd int) (startIdx, endIdx, leftBoundary, rightBoundary int) {
	total := old.Total().Input.Bytes

	startIdx = seekIdx(old, oldStart)
	if startIdx == len(old.items) {
		if startIdx > 0 {
			startIdx--
		}
	} else if old.prefix[startIdx].Input.Bytes == oldStart && startIdx > 0 {
		startIdx--
	}
	leftBoundary = total
	if startIdx < len(old.items) {
		leftBoundary = old.prefix[startIdx].Input.Bytes
	}
	for startIdx > 0 &&
		old.items[startIdx-1].Summary().Input.Bytes == 0 &&
		old.prefix[startIdx-1].Input.Bytes == leftBoundary {
		startIdx--
	}

	endIdx = seekIdx(old, oldEnd)
	if endIdx == len(old.items) {
		rightBoundary = total
	} else {
		rightBoundary = old.prefix[endIdx].Input.Bytes + old.items[endIdx].Summary().Input.Bytes
		endIdx++
	}
	for endIdx < len(old.items) &&
		old.items[endIdx].Summary().Input.Bytes == 0 &&
		old.prefix[endIdx].Input.Bytes == rightBoundary {
		endIdx++
	}
	if endIdx < startIdx {
		endIdx = startIdx
	}
	return startIdx, endIdx, leftBoundary, rightBoundary
}

// recordExpanded records which hunks are materialized as DeletedHunk
// transforms (i.e. expanded) within old's [startIdx, endIdx) item range,
// identified by excerpt id plus the hunk-start anchor's offset resolved
// against the current buffer snapshot — resolving rather than comparing
// raw anchors keeps the identity stable when an edit above the hunk
// shifts its position.
func recordExpanded(old *Tree, startIdx, endIdx int, deps Deps) map[excerpttree.ID]map[int]bool {
	result := map[excerpttree.ID]map[int]bool{}
	for i := startIdx; i < endIdx && i < len(old.items); i++ {
		item := old.items[i]
		if item.Kind != DeletedHunkKind || item.Hunk == nil {
			continue
		}
		set, ok := result[item.Hunk.ExcerptID]
		if !ok {
			set = map[int]bool{}
			result[item.Hunk.ExcerptID] = set
		}
		set[deps.AnchorOffset(item.BufferID, item.Hunk.StartAnchor)] = true
	}
	return result
}

func wasPreviouslyExpanded(previouslyExpanded map[excerpttree.ID]map[int]bool, excerptID excerpttree.ID, bufferStart int) bool {
	set, ok := previouslyExpanded[excerptID]
	if !ok {
		return false
	}
	return set[bufferStart]
}

// plainBufferContent builds BufferContent transforms spanning [start, end)
// of the new excerpt space, for the no-hunks-involved fast path. The span
// can cross several excerpts (e.g. a single multi-excerpt PushExcerpts
// edit), so it walks excerpt by excerpt exactly like rebuildWithHunks,
// just without ever querying Deps.Hunks.
func plainBufferContent(start, end int, deps Deps) []Transform {
	var out []Transform
	cursor := start
	for cursor < end {
		excerpt, excerptStart, ok := deps.ExcerptAt(cursor)
		if !ok {
			break
		}
		excerptRealEnd, excerptEnd := excerptBounds(excerpt, excerptStart)
		segEnd := min(end, excerptEnd)
		segRealEnd := min(segEnd, excerptRealEnd)

		bufStart := excerpt.ContextOffsets.Start + (cursor - excerptStart)
		bufRealEnd := excerpt.ContextOffsets.Start + (segRealEnd - excerptStart)

		sum := textsum.Zero
		if bufRealEnd > bufStart {
			sum = deps.BufferTextSummary(excerpt.BufferID, buffer.Range{Start: bufStart, End: bufRealEnd})
		}
		if segEnd > segRealEnd {
			sum = sum.Add(separatorNewline)
		}
		out = appendBufferContent(out, segEnd-cursor, sum, nil)

		cursor = segEnd
		if excerptEnd == excerptStart {
			// Zero-length excerpt; avoid an infinite loop.
			break
		}
	}
	return out
}

// excerptBounds returns the excerpt-space offset just past this excerpt's
// real buffer content (excerptRealEnd) and just past its synthetic
// separator newline, if any (excerptEnd) — the two coincide when the
// excerpt has no trailing newline (it's the tree's tail excerpt).
func excerptBounds(excerpt excerpttree.Excerpt, excerptStart int) (excerptRealEnd, excerptEnd int) {
	excerptRealEnd = excerptStart + excerpt.TextSummary.Bytes
	excerptEnd = excerptRealEnd
	if excerpt.HasTrailingNewline {
		excerptEnd++
	}
	return excerptRealEnd, excerptEnd
}

// separatorNewline is the summary of the one-byte synthetic newline the
// excerpt tree inserts between non-final excerpts — it isn't backed by
// any buffer's real text, so it's added in directly rather than looked up.
var separatorNewline = textsum.Summary{Bytes: 1, UTF16Units: 1, Lines: 1}

// rebuildWithHunks walks every excerpt [start, end) of the new excerpt
// space intersects, interleaving BufferContent and DeletedHunk transforms
// around each buffer's diff hunks.
func rebuildWithHunks(start, end int, edits []excerpttree.ExcerptEdit, change Change, previouslyExpanded map[excerpttree.ID]map[int]bool, deps Deps) []Transform {
	var out []Transform
	cursor := start
	for cursor < end {
		excerpt, excerptStart, ok := deps.ExcerptAt(cursor)
		if !ok {
			break
		}
		excerptRealEnd, excerptEnd := excerptBounds(excerpt, excerptStart)
		segEnd := min(end, excerptEnd)
		segRealEnd := min(segEnd, excerptRealEnd)
		includesSeparatorNewline := segEnd > segRealEnd

		bufStart := excerpt.ContextOffsets.Start + (cursor - excerptStart)
		bufSegRealEnd := excerpt.ContextOffsets.Start + (segRealEnd - excerptStart)

		hunks := deps.Hunks(excerpt.BufferID, buffer.Range{Start: bufStart, End: bufSegRealEnd})

		pos := cursor
		bufPos := bufStart
		for _, h := range hunks {
			hunkStart := excerptStart + (h.BufferRange.Start - excerpt.ContextOffsets.Start)
			hunkEnd := excerptStart + (h.BufferRange.End - excerpt.ContextOffsets.Start)
			if hunkEnd < pos || hunkStart > segRealEnd {
				continue
			}
			if hunkStart < pos {
				hunkStart = pos
			}
			if hunkEnd > segRealEnd {
				hunkEnd = segRealEnd
			}

			if !shouldExpand(change, edits, previouslyExpanded, excerpt.ID, h.BufferRange.Start, hunkStart, hunkEnd) {
				// A collapsed hunk renders as plain untagged content; the
				// gap/tail emission below covers its bytes.
				continue
			}
			startAnchor := deps.AnchorAt(excerpt.BufferID, h.BufferRange.Start, buffer.Left)
			info := &HunkInfo{ExcerptID: excerpt.ID, StartAnchor: startAnchor, Secondary: h.Secondary, Status: h.Status}

			if hunkStart > pos {
				sum := deps.BufferTextSummary(excerpt.BufferID, buffer.Range{Start: bufPos, End: excerpt.ContextOffsets.Start + (hunkStart - excerptStart)})
				out = appendBufferContent(out, hunkStart-pos, sum, nil)
				pos = hunkStart
				bufPos = excerpt.ContextOffsets.Start + (hunkStart - excerptStart)
			}

			if h.BaseRange.Len() > 0 {
				baseSum := deps.BaseTextSummary(excerpt.BufferID, h.BaseRange)
				syntheticNewline := !deps.BaseEndsWithNewline(excerpt.BufferID, h.BaseRange.End)
				out = append(out, NewDeletedHunk(excerpt.BufferID, h.BaseRange, baseSum, syntheticNewline, info))
			}

			if hunkEnd > hunkStart {
				sum := deps.BufferTextSummary(excerpt.BufferID, buffer.Range{Start: bufPos, End: excerpt.ContextOffsets.Start + (hunkEnd - excerptStart)})
				out = appendBufferContent(out, hunkEnd-hunkStart, sum, info)
				pos = hunkEnd
				bufPos = excerpt.ContextOffsets.Start + (hunkEnd - excerptStart)
			}
		}

		// Tail BufferContent up to this segment's end, plus the excerpt's
		// synthetic separator newline if the span reaches it.
		if segEnd > pos {
			sum := textsum.Zero
			if bufSegRealEnd > bufPos {
				sum = sum.Add(deps.BufferTextSummary(excerpt.BufferID, buffer.Range{Start: bufPos, End: bufSegRealEnd}))
			}
			if includesSeparatorNewline {
				sum = sum.Add(separatorNewline)
			}
			out = appendBufferContent(out, segEnd-pos, sum, nil)
		}

		cursor = segEnd
		if excerptEnd == excerptStart {
			// Zero-length excerpt; avoid an infinite loop.
			break
		}
	}
	return out
}

// shouldExpand decides whether a hunk renders expanded after this change,
// carrying prior expansion state across the rebuild. hunkStart/hunkEnd
// are the hunk's excerpt-space extent, compared against the original
// edits (not the snapped rebuild interval) to decide intersection;
// bufferStart is the hunk's buffer-space start, the identity
// recordExpanded keyed prior expansion state by.
func shouldExpand(change Change, edits []excerpttree.ExcerptEdit, previouslyExpanded map[excerpttree.ID]map[int]bool, excerptID excerpttree.ID, bufferStart int, hunkStart, hunkEnd int) bool {
	was := wasPreviouslyExpanded(previouslyExpanded, excerptID, bufferStart)
	switch change.Kind {
	case DiffUpdated:
		// base_changed only affects whether the caller re-queried hunks at
		// all; expansion state itself still carries forward.
		return was || change.AllHunksExpanded
	case ExpandOrCollapseHunks:
		intersects := anyEditIntersects(edits, hunkStart, hunkEnd)
		if change.Expand {
			return intersects || was || change.AllHunksExpanded
		}
		if intersects {
			return false
		}
		return was || change.AllHunksExpanded
	default: // BufferEdited
		return was || change.AllHunksExpanded
	}
}

// anyEditIntersects reports whether [hunkStart, hunkEnd] touches any
// edit's new-side range, endpoints included — a zero-width edit at a hunk
// boundary addresses that hunk.
func anyEditIntersects(edits []excerpttree.ExcerptEdit, hunkStart, hunkEnd int) bool {
	for _, e := range edits {
		if e.NewStart <= hunkEnd && hunkStart <= e.NewEnd {
			return true
		}
	}
	return false
}

// appendBufferContent appends a BufferContent transform, merging it into
// the previous one if both carry the same inserted-hunk tag.
func appendBufferContent(items []Transform, length int, sum textsum.Summary, hunk *HunkInfo) []Transform {
	if length == 0 && hunk == nil {
		return items
	}
	return coalesceAppend(items, NewBufferContent(length, sum, hunk))
}

// coalesceAppend appends items to base, merging adjacent BufferContent
// transforms whose inserted-hunk tags match and dropping empty untagged
// ones (the canonical empty-document transform is re-created by FromItems
// when everything else vanishes).
func coalesceAppend(base []Transform, items ...Transform) []Transform {
	for _, it := range items {
		if it.IsEmptyBufferContent() && it.InsertedHunk == nil {
			continue
		}
		if len(base) > 0 {
			last := base[len(base)-1]
			if last.IsEmptyBufferContent() && last.InsertedHunk == nil {
				base = base[:len(base)-1]
			} else if last.Kind == BufferContentKind && it.Kind == BufferContentKind && last.InsertedHunk.Equal(it.InsertedHunk) {
				merged := NewBufferContent(last.Len+it.Len, last.Summary().Input.Add(it.Summary().Input), last.InsertedHunk)
				base[len(base)-1] = merged
				continue
			}
		}
		base = append(base, it)
	}
	return base
}

// resumeSuffix carries over the old transforms from endIdx on, skipping
// any DeletedHunk whose cached hunk-start anchor no longer resolves in
// the current buffer snapshot (its hunk is gone; the surrounding content
// transforms are still valid and are kept).
func resumeSuffix(old *Tree, endIdx int, deps Deps) []Transform {
	var out []Transform
	for i := endIdx; i < len(old.items); i++ {
		item := old.items[i]
		if item.Kind == DeletedHunkKind && item.Hunk != nil && !deps.AnchorValid(item.BufferID, item.Hunk.StartAnchor) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// computeOutputEdits derives the single consolidated output-space edit
// covering the rebuilt interval, by prefix-summing output lengths of the
// retained prefix and suffix on each side.
func computeOutputEdits(old, newTree *Tree, startIdx, endIdx int, suffixItems []Transform) []OutputEdit {
	oldTotal := old.Total().Output.Bytes
	prefixOutput := 0
	if startIdx > 0 && startIdx <= len(old.prefix) {
		if startIdx == len(old.prefix) {
			prefixOutput = oldTotal
		} else {
			prefixOutput = old.prefix[startIdx].Output.Bytes
		}
	}
	oldEndOutput := oldTotal
	if endIdx < len(old.prefix) {
		oldEndOutput = old.prefix[endIdx].Output.Bytes
	}

	suffixOutput := 0
	for _, it := range suffixItems {
		suffixOutput += it.Summary().Output.Bytes
	}
	newEndOutput := newTree.Total().Output.Bytes - suffixOutput

	return []OutputEdit{{
		OldStart: prefixOutput,
		OldEnd:   oldEndOutput,
		NewStart: prefixOutput,
		NewEnd:   newEndOutput,
	}}
}
