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
	"iter"

	"github.com/textform/multibuffer/anchor"
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/cursor"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/transform"
	"github.com/textform/multibuffer/locator"
)

// Snapshot is a cheap, point-in-time, read-only view of a MultiBuffer:
// the excerpt tree is cloned (structurally shared, not deep-copied), the
// transform tree is shared as-is since every rebuild publishes a fresh
// tree and never mutates one in place, and the backing-buffer and
// diff-provider maps are shallow-copied references to the same
// externally owned objects the controller itself holds.
type Snapshot struct {
	excerpts   *excerpttree.Tree
	transforms *transform.Tree
	idmap      *excerpttree.IDMap
	buffers    map[buffer.ID]buffer.Buffer
	diffs      map[buffer.ID]diffprovider.Provider
	editCount  uint64
}

// EditCount returns the mutation count the snapshot was taken at. A
// subscriber interleaving event reads with Snapshot calls observes
// monotonically increasing values.
func (s *Snapshot) EditCount() uint64 { return s.editCount }

// Snapshot captures mb's current state.
func (mb *MultiBuffer) Snapshot() *Snapshot {
	mb.guard.Check()
	return &Snapshot{
		excerpts:   mb.excerpts.Clone(),
		transforms: mb.transforms,
		idmap:      mb.idmap.Clone(),
		buffers:    cloneBufferMap(mb.buffers),
		diffs:      cloneDiffMap(mb.diffs),
		editCount:  mb.editCount,
	}
}

// Read calls fn with a borrowed view of the current state, skipping the
// tree clones Snapshot performs. The view aliases the live trees and
// maps; it must not be retained past fn's return.
func (mb *MultiBuffer) Read(fn func(*Snapshot)) {
	mb.guard.Check()
	fn(&Snapshot{
		excerpts:   mb.excerpts,
		transforms: mb.transforms,
		idmap:      mb.idmap,
		buffers:    mb.buffers,
		diffs:      mb.diffs,
		editCount:  mb.editCount,
	})
}

// Len returns the document's total length in output-space bytes.
func (s *Snapshot) Len() int { return s.transforms.Total().Output.Bytes }

// AnchorBefore returns a Left-biased anchor at offset.
func (s *Snapshot) AnchorBefore(offset int) anchor.Anchor {
	return s.AnchorAt(offset, buffer.Left)
}

// AnchorAfter returns a Right-biased anchor at offset.
func (s *Snapshot) AnchorAfter(offset int) anchor.Anchor {
	return s.AnchorAt(offset, buffer.Right)
}

// AnchorAt returns a stable anchor for an output-space offset and bias.
func (s *Snapshot) AnchorAt(offset int, bias buffer.Bias) anchor.Anchor {
	return anchor.At(s.excerpts, s.transforms, snapshotAnchorDeps{s}, offset, bias)
}

// AnchorInExcerpt returns a stable anchor for bufferOffset within id's
// backing buffer, clipped to the excerpt's context range, or the zero
// Anchor if id does not exist.
func (s *Snapshot) AnchorInExcerpt(id excerpttree.ID, bufferOffset int, bias buffer.Bias) (anchor.Anchor, bool) {
	excerpt, ok := s.excerpts.ByID(id)
	if !ok {
		return anchor.Anchor{}, false
	}
	clipped := bufferOffset
	if clipped < excerpt.ContextOffsets.Start {
		clipped = excerpt.ContextOffsets.Start
	}
	if clipped > excerpt.ContextOffsets.End {
		clipped = excerpt.ContextOffsets.End
	}
	buf, ok := s.buffers[excerpt.BufferID]
	if !ok {
		return anchor.Anchor{}, false
	}
	return anchor.Anchor{ExcerptID: id, BufferID: excerpt.BufferID, TextAnchor: buf.AnchorAt(clipped, bias)}, true
}

// SummaryForAnchor is the inverse of AnchorAt.
func (s *Snapshot) SummaryForAnchor(a anchor.Anchor) int {
	return anchor.SummaryForAnchor(s.excerpts, s.transforms, snapshotAnchorDeps{s}, a)
}

// SummariesForAnchors resolves many anchors against the same snapshot.
func (s *Snapshot) SummariesForAnchors(anchors []anchor.Anchor) []int {
	out := make([]int, len(anchors))
	for i, a := range anchors {
		out[i] = s.SummaryForAnchor(a)
	}
	return out
}

// RefreshAnchors re-maps anchors taken against an older snapshot.
func (s *Snapshot) RefreshAnchors(anchors []anchor.Anchor) []anchor.RefreshResult {
	return anchor.Refresh(s.excerpts, snapshotAnchorDeps{s}, anchors)
}

// snapshotAnchorDeps adapts a Snapshot to anchor.Deps, the read-only
// counterpart of MultiBuffer's own anchorDeps in deps.go.
type snapshotAnchorDeps struct{ s *Snapshot }

func (d snapshotAnchorDeps) Locator(id excerpttree.ID) (locator.Locator, bool) {
	loc, err := d.s.idmap.Locator(id)
	return loc, err == nil
}

func (d snapshotAnchorDeps) BufferAnchorAt(bufferID buffer.ID, offset int, bias buffer.Bias) buffer.Anchor {
	buf, ok := d.s.buffers[bufferID]
	if !ok {
		return nil
	}
	return buf.AnchorAt(offset, bias)
}

func (d snapshotAnchorDeps) BufferOffsetForAnchor(bufferID buffer.ID, a buffer.Anchor) int {
	buf, ok := d.s.buffers[bufferID]
	if !ok || a == nil {
		return 0
	}
	return buf.OffsetForAnchor(a)
}

// DiffHunk pairs a diffprovider.Hunk with the excerpt and output-space
// range it projects to, the form exposed to snapshot readers.
type DiffHunk struct {
	ExcerptID   excerpttree.ID
	BufferID    buffer.ID
	Hunk        diffprovider.Hunk
	OutputRange cursor.Range
}

// DiffHunksInRange returns every diff hunk whose projection intersects
// outputRange, in increasing order.
func (s *Snapshot) DiffHunksInRange(outputRange cursor.Range) []DiffHunk {
	var out []DiffHunk
	c := cursor.New(s.excerpts, s.transforms)
	if !c.Seek(outputRange.Start) {
		return nil
	}
	for c.Valid() && c.Region().OutputRange.Start < outputRange.End {
		region := c.Region()
		if region.DiffHunkStatus != nil {
			if provider, ok := s.diffs[region.BufferID]; ok {
				for h := range provider.HunksIntersectingRange(region.BufferRange) {
					out = append(out, DiffHunk{
						ExcerptID:   region.Excerpt.ID,
						BufferID:    region.BufferID,
						Hunk:        h,
						OutputRange: region.OutputRange,
					})
				}
			}
		}
		if !c.Next() {
			break
		}
	}
	return out
}

// DiffHunks returns every diff hunk in the document.
func (s *Snapshot) DiffHunks() []DiffHunk { return s.DiffHunksInRange(cursor.Range{Start: 0, End: s.Len()}) }

// DiffHunkBefore returns the last diff hunk whose region starts before
// offset, if any; that hunk may extend past offset.
func (s *Snapshot) DiffHunkBefore(offset int) (DiffHunk, bool) {
	hunks := s.DiffHunksInRange(cursor.Range{Start: 0, End: offset})
	if len(hunks) == 0 {
		return DiffHunk{}, false
	}
	return hunks[len(hunks)-1], true
}

// ExcerptInfo is the read-only excerpt metadata surfaced to callers
// rendering excerpt headers.
type ExcerptInfo struct {
	ID       excerpttree.ID
	BufferID buffer.ID
	Range    buffer.Range
}

// OutputPoint is a (row, column-in-bytes) position in output space.
type OutputPoint struct {
	Row    uint32
	Column uint32
}

// ExcerptBoundary marks a transition between two adjacent excerpts (or
// the document's start/end), used to render excerpt headers.
type ExcerptBoundary struct {
	Prev *ExcerptInfo
	Next *ExcerptInfo
	Row  OutputPoint
}

// ExcerptBoundariesInRange yields a boundary for every excerpt
// transition whose row falls within [startRow, endRow).
func (s *Snapshot) ExcerptBoundariesInRange(startRow, endRow uint32) []ExcerptBoundary {
	var out []ExcerptBoundary
	excerpts := s.excerpts.Excerpts()
	row := uint32(0)
	var prevInfo *ExcerptInfo
	for _, e := range excerpts {
		info := ExcerptInfo{ID: e.ID, BufferID: e.BufferID, Range: e.ContextOffsets}
		if row >= startRow && row < endRow {
			out = append(out, ExcerptBoundary{Prev: prevInfo, Next: &info, Row: OutputPoint{Row: row}})
		}
		row += uint32(e.EffectiveTextSummary().Lines)
		if e.EffectiveTextSummary().LastLineChars > 0 || e.EffectiveTextSummary().Lines == 0 {
			row++
		}
		prevInfo = &info
	}
	if row >= startRow && row < endRow {
		out = append(out, ExcerptBoundary{Prev: prevInfo, Next: nil, Row: OutputPoint{Row: row}})
	}
	return out
}

// RowInfo is one row's provenance, yielded by RowInfos.
type RowInfo struct {
	BufferID       buffer.ID
	HasBuffer      bool
	BufferRow      uint32
	HasBufferRow   bool
	MultibufferRow uint32
	DiffStatus     *diffprovider.HunkStatus
}

// RowInfos yields per-row records starting at startRow, one for each row
// start that rowStartOffsets lists; no extra synthetic row is added.
func (s *Snapshot) RowInfos(startRow uint32) iter.Seq[RowInfo] {
	return func(yield func(RowInfo) bool) {
		starts := s.rowStartOffsets()
		if int(startRow) >= len(starts) {
			return
		}
		c := cursor.New(s.excerpts, s.transforms)
		for row := int(startRow); row < len(starts); row++ {
			offset := starts[row]
			info := RowInfo{MultibufferRow: uint32(row)}
			if c.Seek(offset) {
				region := c.Region()
				info.DiffStatus = region.DiffHunkStatus
				if region.IsMainBuffer {
					info.BufferID = region.BufferID
					info.HasBuffer = true
					bufOffset := region.BufferRange.Start + (offset - region.OutputRange.Start)
					if buf, ok := s.buffers[region.BufferID]; ok {
						point := buf.Snapshot().OffsetToPoint(bufOffset)
						info.BufferRow = point.Row
						info.HasBufferRow = true
					}
				}
			}
			if !yield(info) {
				return
			}
		}
	}
}

// rowStartOffsets returns the output-space offset where each row begins,
// row 0 always starting at offset 0, and each newline starting a further
// row except a newline that ends the document. The final offset equals
// the document length only when the document is empty; a document ending
// in a newline has no trailing empty row.
func (s *Snapshot) rowStartOffsets() []int {
	total := s.Len()
	starts := []int{0}
	offset := 0
	endsInNewline := false
	for b := range s.BytesInRange(cursor.Range{Start: 0, End: total}) {
		offset++
		endsInNewline = b == '\n'
		if endsInNewline {
			starts = append(starts, offset)
		}
	}
	if total > 0 && endsInNewline && len(starts) > 1 {
		starts = starts[:len(starts)-1]
	}
	return starts
}

// Chunks yields text spans across the document in output order,
// respecting region boundaries, optionally tagged for language-aware
// highlighting.
func (s *Snapshot) Chunks(rng cursor.Range, languageAware bool) iter.Seq[buffer.Chunk] {
	return func(yield func(buffer.Chunk) bool) {
		c := cursor.New(s.excerpts, s.transforms)
		if rng.Len() <= 0 || !c.Seek(rng.Start) {
			return
		}
		for c.Valid() && c.Region().OutputRange.Start < rng.End {
			region := c.Region()
			if !s.yieldRegionChunks(region, rng, languageAware, yield) {
				return
			}
			if !c.Next() {
				return
			}
		}
	}
}

func (s *Snapshot) yieldRegionChunks(region cursor.Region, rng cursor.Range, languageAware bool, yield func(buffer.Chunk) bool) bool {
	segStart := region.BufferRange.Start
	if rng.Start > region.OutputRange.Start {
		segStart += rng.Start - region.OutputRange.Start
	}
	segEnd := region.BufferRange.End
	if rng.End < region.OutputRange.End {
		segEnd -= region.OutputRange.End - rng.End
	}
	if region.IsMainBuffer {
		if buf, ok := s.buffers[region.BufferID]; ok && segEnd > segStart {
			for chunk := range buf.Chunks(buffer.Range{Start: segStart, End: segEnd}, languageAware) {
				if !yield(chunk) {
					return false
				}
			}
		}
		// The region's output length can include one byte past its real
		// buffer content: the synthetic separator newline joining it to
		// the next excerpt, which isn't stored in any buffer.
		if region.HasTrailingNewline && rng.End >= region.OutputRange.End {
			if !yield(buffer.Chunk{Text: "\n"}) {
				return false
			}
		}
		return true
	}
	provider, ok := s.diffs[region.BufferID]
	if !ok {
		return true
	}
	base, hasBase := provider.BaseText()
	if hasBase && segEnd > segStart {
		if !yield(buffer.Chunk{Text: base[segStart:segEnd]}) {
			return false
		}
	}
	if region.HasTrailingNewline && rng.End >= region.OutputRange.End {
		if !yield(buffer.Chunk{Text: "\n"}) {
			return false
		}
	}
	return true
}

// BytesInRange iterates raw bytes across the document in output order,
// materializing a deleted hunk's synthetic trailing newline as a literal
// '\n' once its base-text bytes are exhausted.
func (s *Snapshot) BytesInRange(rng cursor.Range) iter.Seq[byte] {
	return func(yield func(byte) bool) {
		for chunk := range s.Chunks(rng, false) {
			for i := 0; i < len(chunk.Text); i++ {
				if !yield(chunk.Text[i]) {
					return
				}
			}
		}
	}
}

// ReversedBytesInRange is the reverse-order counterpart of BytesInRange.
func (s *Snapshot) ReversedBytesInRange(rng cursor.Range) iter.Seq[byte] {
	return func(yield func(byte) bool) {
		var buf []byte
		for chunk := range s.Chunks(rng, false) {
			buf = append(buf, chunk.Text...)
		}
		for i := len(buf) - 1; i >= 0; i-- {
			if !yield(buf[i]) {
				return
			}
		}
	}
}
