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

package multibuffer

import (
	"sort"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/cursor"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/transform"
)

// EditRequest is a single requested replacement, in output-space byte
// offsets, paired with its replacement text.
type EditRequest struct {
	Range   cursor.Range
	NewText string
}

// Edit routes output-space edits to the backing buffers they touch.
// Read-only multi-buffers silently no-op. An edit whose range lies wholly
// inside an expanded deleted hunk is discarded: that region is a
// read-only projection of base text, and a zero-width insert at its start
// offset is dropped rather than attached to a neighboring region; one at
// its end offset lands in the following buffer region.
func (mb *MultiBuffer) Edit(edits []EditRequest, autoindent buffer.AutoindentMode) {
	mb.guard.Check()
	if mb.capability == ReadOnly || len(edits) == 0 {
		return
	}

	perBuffer, touchedExcerpts, joins := mb.mapEditsToBuffers(edits)
	if len(perBuffer) == 0 {
		return
	}

	// Deterministic per-buffer application order.
	bufferIDs := make([]buffer.ID, 0, len(perBuffer))
	for id := range perBuffer {
		bufferIDs = append(bufferIDs, id)
	}
	sort.Slice(bufferIDs, func(i, j int) bool { return bufferIDs[i] < bufferIDs[j] })

	singletonEdited := mb.singleton
	var editedBufferID buffer.ID
	hasEditedBuffer := len(bufferIDs) == 1

	oldVersions := make(map[buffer.ID]buffer.Version, len(bufferIDs))
	for _, bufID := range bufferIDs {
		oldVersions[bufID] = mb.bufferVersions[bufID]
	}

	for _, bufID := range bufferIDs {
		buf := mb.buffers[bufID]
		textEdits := mergeAndOrderEdits(perBuffer[bufID])
		buf.Edit(textEdits, autoindent)
		editedBufferID = bufID
	}

	mb.refreshAfterBufferEdits(bufferIDs, oldVersions)
	mb.mergeJoinedExcerpts(joins)

	for _, bufID := range bufferIDs {
		mb.bufferVersions[bufID] = mb.buffers[bufID].Version()
	}

	ids := make([]excerpttree.ID, 0, len(touchedExcerpts))
	for id := range touchedExcerpts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	mb.emit(Event{Kind: ExcerptsEdited, ExcerptIDs: ids})
	mb.emit(Event{Kind: Edited, SingletonBufferEdited: singletonEdited, EditedBufferID: editedBufferID, HasEditedBuffer: hasEditedBuffer})
}

// excerptJoin records that an edit consumed the synthetic separator
// newline between two excerpts of the same buffer: the inter-excerpt gap
// text is deleted from the buffer and the two excerpts merge into one.
type excerptJoin struct {
	bufferID buffer.ID
	fromID   excerpttree.ID
	toID     excerpttree.ID
}

// mapEditsToBuffers walks the joint cursor for every requested range,
// discarding the portion that falls inside a DeletedHunk region (read-only
// projection of base text), clipping to BufferContent region boundaries,
// and grouping the resulting buffer.TextEdits per backing buffer. The
// requested replacement text is attached to the first touched segment;
// any further segments within the same output range (an edit spanning
// multiple excerpts) become pure-deletion edits. When a range consumes
// the synthetic separator newline between two excerpts backed by the same
// buffer, the buffer text between them is deleted too — the inter-excerpt
// text vanished from the multi-buffer's view, so an edit across excerpts
// implies removing the gap — and the pair is reported as a join.
func (mb *MultiBuffer) mapEditsToBuffers(edits []EditRequest) (map[buffer.ID][]buffer.TextEdit, map[excerpttree.ID]bool, []excerptJoin) {
	perBuffer := map[buffer.ID][]buffer.TextEdit{}
	touched := map[excerpttree.ID]bool{}
	var joins []excerptJoin

	c := cursor.New(mb.excerpts, mb.transforms)
	docLen := mb.transforms.Total().Output.Bytes
	for _, req := range edits {
		rng := req.Range
		if rng.Start > rng.End {
			rng.Start, rng.End = rng.End, rng.Start
		}
		if !c.Seek(rng.Start) {
			// An insert at the very end of the document lands one past the
			// last region; clip it to that region's tail.
			if rng.Start == 0 || rng.Start != docLen || !c.Seek(rng.Start-1) {
				continue
			}
		}

		first := true
		pendingJoin := false
		var joinFrom excerpttree.Excerpt
		emitJoin := func(region cursor.Region) {
			if region.BufferID == joinFrom.BufferID && region.Excerpt.ID != joinFrom.ID {
				gap := buffer.Range{Start: joinFrom.ContextOffsets.End, End: region.Excerpt.ContextOffsets.Start}
				if gap.End >= gap.Start {
					perBuffer[region.BufferID] = append(perBuffer[region.BufferID], buffer.TextEdit{Range: gap})
					joins = append(joins, excerptJoin{bufferID: region.BufferID, fromID: joinFrom.ID, toID: region.Excerpt.ID})
					touched[region.Excerpt.ID] = true
				}
			}
			pendingJoin = false
		}
		for cur := rng.Start; ; {
			region := c.Region()
			segEnd := rng.End
			if region.OutputRange.End < segEnd {
				segEnd = region.OutputRange.End
			}
			if region.IsMainBuffer {
				if pendingJoin {
					emitJoin(region)
				}

				bufStart := region.BufferRange.Start + (cur - region.OutputRange.Start)
				if bufStart > region.BufferRange.End {
					bufStart = region.BufferRange.End
				}
				bufEnd := region.BufferRange.Start + (segEnd - region.OutputRange.Start)
				if bufEnd > region.BufferRange.End {
					bufEnd = region.BufferRange.End
				}
				text := ""
				if first {
					text = req.NewText
				}
				perBuffer[region.BufferID] = append(perBuffer[region.BufferID], buffer.TextEdit{
					Range: buffer.Range{Start: bufStart, End: bufEnd},
					Text:  text,
				})
				touched[region.Excerpt.ID] = true
				first = false

				// The separator newline is the region's last output byte;
				// an edit covering it joins this excerpt to the next.
				if region.HasTrailingNewline && segEnd == region.OutputRange.End && cur < region.OutputRange.End && rng.End >= region.OutputRange.End {
					pendingJoin = true
					joinFrom = region.Excerpt
				}
			}
			cur = segEnd
			if cur >= rng.End && !pendingJoin {
				break
			}
			if !c.Next() {
				break
			}
			if cur >= rng.End && pendingJoin {
				// Walk to the next main-buffer region just to resolve the
				// join; deleted-hunk projections in between don't matter.
				for c.Valid() && !c.Region().IsMainBuffer {
					if !c.Next() {
						break
					}
				}
				if c.Valid() && c.Region().IsMainBuffer {
					emitJoin(c.Region())
				}
				break
			}
		}
	}
	return perBuffer, touched, joins
}

// mergeJoinedExcerpts folds each joined pair into a single excerpt
// spanning from the first excerpt's context start to the second's context
// end, now that the buffer gap between them is gone.
func (mb *MultiBuffer) mergeJoinedExcerpts(joins []excerptJoin) {
	for _, j := range joins {
		from, okFrom := mb.excerpts.ByID(j.fromID)
		to, okTo := mb.excerpts.ByID(j.toID)
		buf, okBuf := mb.buffers[j.bufferID]
		if !okFrom || !okTo || !okBuf {
			continue
		}
		end := buf.OffsetForAnchor(to.Context.End)
		start := buf.OffsetForAnchor(from.Context.Start)
		edits := mb.excerpts.Remove([]excerpttree.ID{j.toID})
		mb.idMapSync()
		mb.rebuild(edits, transform.Change{Kind: transform.BufferEdited})
		merged := excerpttree.Excerpt{
			BufferID: from.BufferID,
			Buffer:   buf.Snapshot(),
			Context: excerpttree.ExcerptRange{
				Start: from.Context.Start,
				End:   to.Context.End,
			},
			Primary:        from.Primary,
			ContextOffsets: buffer.Range{Start: start, End: end},
			TextSummary:    buf.TextSummaryForRange(buffer.Range{Start: start, End: end}),
		}
		edit, ok := mb.excerpts.ResizeExcerpt(j.fromID, merged.Context, merged)
		if !ok {
			continue
		}
		mb.idMapSync()
		mb.rebuild([]excerpttree.ExcerptEdit{edit}, transform.Change{Kind: transform.BufferEdited})
		mb.emit(Event{Kind: ExcerptsRemoved, ExcerptIDs: []excerpttree.ID{j.toID}})
	}
}

// mergeAndOrderEdits sorts a buffer's accumulated edits by start offset
// and merges touching/overlapping ones, concatenating their text in
// order.
func mergeAndOrderEdits(edits []buffer.TextEdit) []buffer.TextEdit {
	if len(edits) == 0 {
		return nil
	}
	sorted := append([]buffer.TextEdit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Start < sorted[j].Range.Start })

	out := []buffer.TextEdit{sorted[0]}
	for _, e := range sorted[1:] {
		last := &out[len(out)-1]
		if e.Range.Start <= last.Range.End {
			if e.Range.End > last.Range.End {
				last.Range.End = e.Range.End
			}
			last.Text += e.Text
			continue
		}
		out = append(out, e)
	}
	return out
}

// refreshAfterBufferEdits re-resolves every excerpt backed by an edited
// buffer against its (stable) Context anchors and splices the resulting
// excerpt-space length change into the transform tree. Context anchors
// never move; only their resolved offsets do, so this is always a single
// whole-excerpt ExcerptEdit per touched excerpt rather than a handful of
// fine-grained ones — simpler than replaying per-edit deltas and just as
// correct, since Transform.Rebuild already only reconstructs the affected
// excerpt's own span.
//
// A buffer edited by something other than this controller's own Edit
// (e.g. a collaborator) does not go through this path; see
// NotifyBufferEdited for that case, which does use EditsSinceInRange.
func (mb *MultiBuffer) refreshAfterBufferEdits(bufferIDs []buffer.ID, _ map[buffer.ID]buffer.Version) {
	for _, bufID := range bufferIDs {
		buf := mb.buffers[bufID]
		for _, ex := range mb.excerptsForBuffer(bufID) {
			mb.resyncExcerptFromAnchors(ex.Excerpt, buf)
		}
	}
	mb.idMapSync()
}

// resyncExcerptFromAnchors re-resolves ex's Context anchors against buf's
// current state and splices the resulting length change into the
// transform tree.
func (mb *MultiBuffer) resyncExcerptFromAnchors(ex excerpttree.Excerpt, buf buffer.Buffer) {
	newRange := buffer.Range{
		Start: buf.OffsetForAnchor(ex.Context.Start),
		End:   buf.OffsetForAnchor(ex.Context.End),
	}
	newSnapshot := excerpttree.Excerpt{
		BufferID:       ex.BufferID,
		Buffer:         buf.Snapshot(),
		Context:        ex.Context,
		Primary:        ex.Primary,
		ContextOffsets: newRange,
		TextSummary:    buf.TextSummaryForRange(newRange),
	}
	edit, ok := mb.excerpts.ResizeExcerpt(ex.ID, ex.Context, newSnapshot)
	if !ok {
		return
	}
	mb.rebuild([]excerpttree.ExcerptEdit{edit}, transform.Change{Kind: transform.BufferEdited})
}

// excerptWithOffset pairs an excerpt with its excerpt-space start offset.
type excerptWithOffset struct {
	excerpttree.Excerpt
	offset int
}

func (mb *MultiBuffer) excerptsForBuffer(bufferID buffer.ID) []excerptWithOffset {
	var out []excerptWithOffset
	offset := 0
	for _, e := range mb.excerpts.Excerpts() {
		if e.BufferID == bufferID {
			out = append(out, excerptWithOffset{Excerpt: e, offset: offset})
		}
		offset += e.EffectiveTextSummary().Bytes
	}
	return out
}

// AutoindentRanges maps ranges to buffer ranges exactly as Edit, merges
// overlapping buffer-side ranges per buffer, and delegates to each
// backing buffer's autoindent primitive.
func (mb *MultiBuffer) AutoindentRanges(ranges []cursor.Range) {
	mb.guard.Check()
	if mb.capability == ReadOnly || len(ranges) == 0 {
		return
	}
	edits := make([]EditRequest, len(ranges))
	for i, r := range ranges {
		edits[i] = EditRequest{Range: r}
	}
	perBuffer, _, _ := mb.mapEditsToBuffers(edits)
	for bufID, textEdits := range perBuffer {
		buf, ok := mb.buffers[bufID]
		if !ok {
			continue
		}
		ranges := make([]buffer.Range, len(textEdits))
		for i, e := range textEdits {
			ranges[i] = e.Range
		}
		buf.AutoindentRanges(mergeBufferRanges(ranges))
	}
}

func mergeBufferRanges(ranges []buffer.Range) []buffer.Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]buffer.Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	out := []buffer.Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// InsertEmptyLine inserts a blank line at an output-space position,
// optionally leaving blank lines above and/or below it.
func (mb *MultiBuffer) InsertEmptyLine(pos int, above, below bool) {
	mb.guard.Check()
	if mb.capability == ReadOnly {
		return
	}
	text := "\n"
	if above {
		text = "\n" + text
	}
	if below {
		text += "\n"
	}
	mb.Edit([]EditRequest{{Range: cursor.Range{Start: pos, End: pos}, NewText: text}}, nil)
}
