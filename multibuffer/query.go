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
	"github.com/textform/multibuffer/anchor"
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/cursor"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/textsum"
)

// ExcerptContaining returns the excerpt that wholly contains rng, if
// exactly one does.
func (mb *MultiBuffer) ExcerptContaining(rng cursor.Range) (excerpttree.Excerpt, bool) {
	mb.guard.Check()
	c := cursor.New(mb.excerpts, mb.transforms)
	if !c.Seek(rng.Start) {
		return excerpttree.Excerpt{}, false
	}
	excerpt := c.Region().Excerpt
	return excerpt, rng.End <= mb.excerptOutputEnd(excerpt.ID)
}

// excerptOutputStart returns id's starting offset in output space by
// scanning regions from the document start, or -1 if id does not exist.
func (mb *MultiBuffer) excerptOutputStart(id excerpttree.ID) int {
	c := cursor.New(mb.excerpts, mb.transforms)
	if !c.Seek(0) {
		return -1
	}
	for {
		if c.Region().Excerpt.ID == id {
			return c.Region().OutputRange.Start
		}
		if !c.Next() {
			return -1
		}
	}
}

// excerptOutputEnd returns id's end offset in output space (the start of
// the following excerpt, or the document length if id is last).
func (mb *MultiBuffer) excerptOutputEnd(id excerpttree.ID) int {
	start := mb.excerptOutputStart(id)
	if start < 0 {
		return -1
	}
	c := cursor.New(mb.excerpts, mb.transforms)
	if !c.Seek(start) {
		return start
	}
	if !c.NextExcerpt() {
		return mb.transforms.Total().Output.Bytes
	}
	return c.Region().OutputRange.Start
}

// ExcerptIDsForRange returns every excerpt id whose output-space span
// intersects rng, in document order.
func (mb *MultiBuffer) ExcerptIDsForRange(rng cursor.Range) []excerpttree.ID {
	mb.guard.Check()
	var out []excerpttree.ID
	seen := map[excerpttree.ID]bool{}
	c := cursor.New(mb.excerpts, mb.transforms)
	if rng.Len() <= 0 {
		if c.Seek(rng.Start) {
			out = append(out, c.Region().Excerpt.ID)
		}
		return out
	}
	if !c.Seek(rng.Start) {
		return nil
	}
	for c.Valid() && c.Region().OutputRange.Start < rng.End {
		id := c.Region().Excerpt.ID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
		if !c.Next() {
			break
		}
	}
	return out
}

// PointToBufferOffset translates an output-space point into the backing
// buffer id and byte offset it falls in, if the position lies in a
// BufferContent (main-buffer) region.
func (mb *MultiBuffer) PointToBufferOffset(p OutputPoint) (buffer.ID, int, bool) {
	mb.guard.Check()
	offset := mb.Snapshot().offsetForRow(p.Row) + int(p.Column)
	c := cursor.New(mb.excerpts, mb.transforms)
	if !c.Seek(offset) {
		return 0, 0, false
	}
	region := c.Region()
	if !region.IsMainBuffer {
		return 0, 0, false
	}
	bufOffset := region.BufferRange.Start + (offset - region.OutputRange.Start)
	return region.BufferID, bufOffset, true
}

// PointToBufferPoint is like PointToBufferOffset but resolves the buffer
// offset into that buffer's own row/column.
func (mb *MultiBuffer) PointToBufferPoint(p OutputPoint) (buffer.ID, textsum.Point, bool) {
	mb.guard.Check()
	bufID, offset, ok := mb.PointToBufferOffset(p)
	if !ok {
		return 0, textsum.Point{}, false
	}
	buf, ok := mb.buffers[bufID]
	if !ok {
		return 0, textsum.Point{}, false
	}
	return bufID, buf.Snapshot().OffsetToPoint(offset), true
}

// BufferPointToAnchor resolves a (buffer, point) pair to a stable anchor
// in whichever excerpt currently shows that buffer position, preferring
// the excerpt whose context contains it.
func (mb *MultiBuffer) BufferPointToAnchor(bufferID buffer.ID, p textsum.Point) (anchor.Anchor, bool) {
	mb.guard.Check()
	buf, ok := mb.buffers[bufferID]
	if !ok {
		return anchor.Anchor{}, false
	}
	offset := buf.Snapshot().PointToOffset(p)
	for _, e := range mb.excerpts.Excerpts() {
		if e.BufferID != bufferID {
			continue
		}
		if offset >= e.ContextOffsets.Start && offset <= e.ContextOffsets.End {
			return anchor.Anchor{ExcerptID: e.ID, BufferID: bufferID, TextAnchor: buf.AnchorAt(offset, buffer.Left)}, true
		}
	}
	return anchor.Anchor{}, false
}

// TextAnchorForPosition resolves an output-space offset directly to a
// stable Anchor, the MultiBuffer-level convenience form of
// Snapshot.AnchorAt.
func (mb *MultiBuffer) TextAnchorForPosition(offset int, bias buffer.Bias) anchor.Anchor {
	mb.guard.Check()
	return mb.Snapshot().AnchorAt(offset, bias)
}

// offsetForRow returns the output-space offset where row begins, clamping
// to the document length for an out-of-range row.
func (s *Snapshot) offsetForRow(row uint32) int {
	starts := s.rowStartOffsets()
	if int(row) >= len(starts) {
		return s.Len()
	}
	return starts[row]
}

// BufferRange pairs a backing-buffer id and byte range with the excerpt
// that projects it, the shape RangeToBufferRanges yields.
type BufferRange struct {
	BufferID  buffer.ID
	ExcerptID excerpttree.ID
	Range     buffer.Range
}

// RangeToBufferRanges splits an output-space range into the live-buffer
// ranges that produced it, in order, silently dropping any portion that
// falls inside a collapsed-or-expanded deleted hunk.
func (s *Snapshot) RangeToBufferRanges(rng cursor.Range) []BufferRange {
	var out []BufferRange
	for _, e := range s.RangeToBufferRangesWithDeletedHunks(rng) {
		if e.IsMainBuffer {
			out = append(out, BufferRange{BufferID: e.BufferID, ExcerptID: e.ExcerptID, Range: e.Range})
		}
	}
	return out
}

// RangesToBufferRanges is the plural form of RangeToBufferRanges.
func (s *Snapshot) RangesToBufferRanges(ranges []cursor.Range) [][]BufferRange {
	out := make([][]BufferRange, len(ranges))
	for i, r := range ranges {
		out[i] = s.RangeToBufferRanges(r)
	}
	return out
}

// DeletedHunkBufferRange is one segment yielded by
// RangeToBufferRangesWithDeletedHunks: either a live-buffer span
// (IsMainBuffer) or a span of a deleted hunk's base text, in which case
// BaseAnchor locates its start within that base text.
type DeletedHunkBufferRange struct {
	IsMainBuffer bool
	BufferID     buffer.ID
	ExcerptID    excerpttree.ID
	Range        buffer.Range
	BaseAnchor   *anchor.BaseTextAnchor
}

// RangeToBufferRangesWithDeletedHunks is RangeToBufferRanges but also
// yields the base-text span of any deleted hunk the range passes through.
func (s *Snapshot) RangeToBufferRangesWithDeletedHunks(rng cursor.Range) []DeletedHunkBufferRange {
	var out []DeletedHunkBufferRange
	c := cursor.New(s.excerpts, s.transforms)
	if rng.Len() < 0 || !c.Seek(rng.Start) {
		return nil
	}
	for c.Valid() && c.Region().OutputRange.Start < rng.End {
		region := c.Region()
		segStart := region.BufferRange.Start
		if rng.Start > region.OutputRange.Start {
			segStart += rng.Start - region.OutputRange.Start
		}
		segEnd := region.BufferRange.End
		if rng.End < region.OutputRange.End {
			segEnd -= region.OutputRange.End - rng.End
		}
		entry := DeletedHunkBufferRange{
			IsMainBuffer: region.IsMainBuffer,
			BufferID:     region.BufferID,
			ExcerptID:    region.Excerpt.ID,
			Range:        buffer.Range{Start: segStart, End: segEnd},
		}
		if !region.IsMainBuffer {
			entry.BaseAnchor = &anchor.BaseTextAnchor{Offset: segStart}
		}
		out = append(out, entry)
		if !c.Next() {
			break
		}
	}
	return out
}

// SelectionsInRange clips a set of output-space selection ranges to
// [docStart, docEnd), swapping any reversed range. The result keeps the
// input order; overlapping ranges are not merged.
func (s *Snapshot) SelectionsInRange(selections []cursor.Range) []cursor.Range {
	total := s.Len()
	out := make([]cursor.Range, 0, len(selections))
	for _, sel := range selections {
		if sel.Start > sel.End {
			sel.Start, sel.End = sel.End, sel.Start
		}
		if sel.Start < 0 {
			sel.Start = 0
		}
		if sel.End > total {
			sel.End = total
		}
		if sel.Start > sel.End {
			continue
		}
		out = append(out, sel)
	}
	return out
}
