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
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/transform"
	"github.com/textform/multibuffer/locator"
)

// ExcerptRequest describes one excerpt to create: its extent in the
// backing buffer, plus an optional highlighted sub-range.
type ExcerptRequest struct {
	Range   buffer.Range
	Primary *buffer.Range
}

// buildExcerpt turns one request into an excerpttree.Excerpt (minus the
// ID/Loc fields, which InsertAfter fills in).
func buildExcerpt(bufferID buffer.ID, buf buffer.Buffer, req ExcerptRequest) excerpttree.Excerpt {
	snap := buf.Snapshot()
	ctx := excerpttree.ExcerptRange{
		Start: buf.AnchorAt(req.Range.Start, buffer.Left),
		End:   buf.AnchorAt(req.Range.End, buffer.Right),
	}
	var primary *excerpttree.ExcerptRange
	if req.Primary != nil {
		primary = &excerpttree.ExcerptRange{
			Start: buf.AnchorAt(req.Primary.Start, buffer.Left),
			End:   buf.AnchorAt(req.Primary.End, buffer.Right),
		}
	}
	return excerpttree.Excerpt{
		BufferID:       bufferID,
		Buffer:         snap,
		Context:        ctx,
		Primary:        primary,
		ContextOffsets: req.Range,
		TextSummary:    buf.TextSummaryForRange(req.Range),
	}
}

// locatorAfter returns the locator immediately following id in tree
// order, or nil if id is the last excerpt (meaning "no upper bound").
func (mb *MultiBuffer) locatorAfter(id excerpttree.ID) locator.Locator {
	items := mb.excerpts.Excerpts()
	for i, e := range items {
		if e.ID == id && i+1 < len(items) {
			return items[i+1].Loc
		}
	}
	return nil
}

// PushExcerpts appends excerpts drawn from buf at the end of the
// document.
func (mb *MultiBuffer) PushExcerpts(bufferID buffer.ID, requests []ExcerptRequest) []excerpttree.Excerpt {
	mb.guard.Check()
	if buf, ok := mb.buffers[bufferID]; ok {
		mb.registerBuffer(bufferID, buf)
	}
	var prevLoc locator.Locator
	if last, ok := mb.excerpts.Last(); ok {
		prevLoc = last.Loc
	}
	return mb.insertExcerptsAt(bufferID, prevLoc, nil, requests, 0, false)
}

// InsertExcerptsAfter inserts excerpts drawn from buf immediately after
// the excerpt prevID.
func (mb *MultiBuffer) InsertExcerptsAfter(prevID excerpttree.ID, bufferID buffer.ID, requests []ExcerptRequest) []excerpttree.Excerpt {
	mb.guard.Check()
	prevLoc := mb.idmap.MustLocator(prevID)
	nextLoc := mb.locatorAfter(prevID)
	return mb.insertExcerptsAt(bufferID, prevLoc, nextLoc, requests, prevID, true)
}

// InsertExcerptsWithIDsAfter is like InsertExcerptsAfter but the caller
// supplies the ids to assign (e.g. to stay in sync with a remote copy of
// this multi-buffer that already allocated them).
func (mb *MultiBuffer) InsertExcerptsWithIDsAfter(prevID excerpttree.ID, bufferID buffer.ID, ids []excerpttree.ID, requests []ExcerptRequest) []excerpttree.Excerpt {
	mb.guard.Check()
	if len(ids) != len(requests) {
		panic("multibuffer: InsertExcerptsWithIDsAfter requires one id per request")
	}
	var prevLoc locator.Locator
	var nextLoc locator.Locator
	hasPrev := prevID != 0
	if hasPrev {
		prevLoc = mb.idmap.MustLocator(prevID)
		nextLoc = mb.locatorAfter(prevID)
	} else if first := mb.excerpts.Excerpts(); len(first) > 0 {
		// No predecessor means "insert at the front": the new excerpts must
		// sort before the current first excerpt.
		nextLoc = first[0].Loc
	}

	buf, ok := mb.buffers[bufferID]
	if !ok {
		panic("multibuffer: unknown buffer id")
	}
	built := make([]excerpttree.Excerpt, len(requests))
	for i, req := range requests {
		built[i] = buildExcerpt(bufferID, buf, req)
	}
	inserted, edit := mb.excerpts.InsertAfterWithIDs(prevLoc, nextLoc, built, ids)
	mb.idMapSync()
	mb.publishExcerptInsertion(bufferID, prevID, hasPrev, edit)
	return inserted
}

func (mb *MultiBuffer) insertExcerptsAt(bufferID buffer.ID, prevLoc, nextLoc locator.Locator, requests []ExcerptRequest, predecessorID excerpttree.ID, hasPredecessor bool) []excerpttree.Excerpt {
	buf, ok := mb.buffers[bufferID]
	if !ok {
		panic("multibuffer: unknown buffer id")
	}
	built := make([]excerpttree.Excerpt, len(requests))
	for i, req := range requests {
		built[i] = buildExcerpt(bufferID, buf, req)
	}
	inserted, edit := mb.excerpts.InsertAfter(prevLoc, nextLoc, built)
	mb.idMapSync()
	mb.publishExcerptInsertion(bufferID, predecessorID, hasPredecessor, edit)
	return inserted
}

func (mb *MultiBuffer) publishExcerptInsertion(bufferID buffer.ID, predecessorID excerpttree.ID, hasPredecessor bool, edit excerpttree.ExcerptEdit) {
	mb.rebuild([]excerpttree.ExcerptEdit{edit}, transform.Change{Kind: transform.BufferEdited})
	ids := make([]excerpttree.ID, 0)
	for _, e := range mb.excerpts.Excerpts() {
		ids = append(ids, e.ID)
	}
	mb.emit(Event{Kind: ExcerptsAdded, BufferID: bufferID, PredecessorID: predecessorID, HasPredecessor: hasPredecessor, ExcerptIDs: ids})
}

// PushExcerptsWithContextLines appends excerpts for each primary range in
// buf, first expanding each range outward by contextLines whole lines and
// merging any that now overlap.
func (mb *MultiBuffer) PushExcerptsWithContextLines(bufferID buffer.ID, ranges []buffer.Range, contextLines int) []excerpttree.Excerpt {
	mb.guard.Check()
	buf, ok := mb.buffers[bufferID]
	if !ok {
		panic("multibuffer: unknown buffer id")
	}
	snap := buf.Snapshot()
	expanded := make([]buffer.Range, len(ranges))
	for i, r := range ranges {
		expanded[i] = expandRangeByLines(snap, r, contextLines)
	}
	merged := mergeOverlappingRanges(expanded)

	requests := make([]ExcerptRequest, len(merged))
	for i, ctxRange := range merged {
		primary := findContainedPrimary(ranges, ctxRange)
		requests[i] = ExcerptRequest{Range: ctxRange, Primary: primary}
	}
	return mb.PushExcerpts(bufferID, requests)
}

// PushMultipleExcerptsWithContextLines is the multi-buffer variant of
// PushExcerptsWithContextLines: one set of ranges per backing buffer,
// each buffer's excerpts appended in the order buffers are given.
func (mb *MultiBuffer) PushMultipleExcerptsWithContextLines(perBuffer map[buffer.ID][]buffer.Range, contextLines int) map[buffer.ID][]excerpttree.Excerpt {
	mb.guard.Check()
	out := make(map[buffer.ID][]excerpttree.Excerpt, len(perBuffer))
	for bufferID, ranges := range perBuffer {
		out[bufferID] = mb.PushExcerptsWithContextLines(bufferID, ranges, contextLines)
	}
	return out
}

func findContainedPrimary(original []buffer.Range, ctxRange buffer.Range) *buffer.Range {
	for _, r := range original {
		if r.Start >= ctxRange.Start && r.End <= ctxRange.End {
			out := r
			return &out
		}
	}
	return nil
}

// RemoveExcerpts removes the named excerpts.
func (mb *MultiBuffer) RemoveExcerpts(ids []excerpttree.ID) {
	mb.guard.Check()
	if len(ids) == 0 {
		return
	}
	edits := mb.excerpts.Remove(ids)
	mb.idMapSync()
	mb.forgetPathKeys(ids)
	mb.rebuild(edits, transform.Change{Kind: transform.BufferEdited})
	mb.emit(Event{Kind: ExcerptsRemoved, ExcerptIDs: ids})
}

// Clear removes every excerpt.
func (mb *MultiBuffer) Clear() {
	mb.guard.Check()
	mb.RemoveExcerpts(mb.ExcerptIDs())
}

// ResizeExcerpt replaces the visible range of an existing excerpt,
// re-deriving its summary from the backing buffer.
func (mb *MultiBuffer) ResizeExcerpt(id excerpttree.ID, newRange buffer.Range) {
	mb.guard.Check()
	old, ok := mb.excerpts.ByID(id)
	if !ok {
		panic("multibuffer: unknown excerpt id")
	}
	buf, ok := mb.buffers[old.BufferID]
	if !ok {
		panic("multibuffer: unknown buffer id")
	}
	newSnapshot := excerpttree.Excerpt{
		BufferID: old.BufferID,
		Buffer:   buf.Snapshot(),
		Context: excerpttree.ExcerptRange{
			Start: buf.AnchorAt(newRange.Start, buffer.Left),
			End:   buf.AnchorAt(newRange.End, buffer.Right),
		},
		Primary:        old.Primary,
		ContextOffsets: newRange,
		TextSummary:    buf.TextSummaryForRange(newRange),
	}
	edit, ok := mb.excerpts.ResizeExcerpt(id, newSnapshot.Context, newSnapshot)
	if !ok {
		panic("multibuffer: unknown excerpt id")
	}
	mb.idMapSync()
	mb.rebuild([]excerpttree.ExcerptEdit{edit}, transform.Change{Kind: transform.BufferEdited})
	mb.emit(Event{Kind: ExcerptsExpanded, ExcerptIDs: []excerpttree.ID{id}})
}

// ExpandExcerpts grows each named excerpt by lines whole lines in dir.
func (mb *MultiBuffer) ExpandExcerpts(ids []excerpttree.ID, lines int, dir ExpandDirection) {
	mb.guard.Check()
	for _, id := range ids {
		excerpt, ok := mb.excerpts.ByID(id)
		if !ok {
			continue
		}
		buf, ok := mb.buffers[excerpt.BufferID]
		if !ok {
			continue
		}
		snap := buf.Snapshot()
		rng := excerpt.ContextOffsets
		switch dir {
		case ExpandUp:
			rng = expandRangeByLines(snap, buffer.Range{Start: rng.Start, End: rng.Start}, lines)
			rng.End = excerpt.ContextOffsets.End
		case ExpandDown:
			tail := expandRangeByLines(snap, buffer.Range{Start: rng.End, End: rng.End}, lines)
			rng = buffer.Range{Start: rng.Start, End: tail.End}
		default:
			rng = expandRangeByLines(snap, rng, lines)
		}
		mb.ResizeExcerpt(id, rng)
	}
}

// forgetPathKeys drops removed ids from every PathKey's excerpt list,
// deleting the key entirely once it has none left.
func (mb *MultiBuffer) forgetPathKeys(removed []excerpttree.ID) {
	removedSet := make(map[excerpttree.ID]bool, len(removed))
	for _, id := range removed {
		removedSet[id] = true
	}
	for key, ids := range mb.pathKeys {
		kept := ids[:0:0]
		for _, id := range ids {
			if !removedSet[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(mb.pathKeys, key)
		} else {
			mb.pathKeys[key] = kept
		}
	}
}
