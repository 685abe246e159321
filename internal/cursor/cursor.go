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

package cursor

import (
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/transform"
)

// Cursor traverses the excerpt tree and transform tree jointly, in output
// order, lazily recomputing and caching the region at its current
// position. A region never spans an excerpt boundary: an untagged
// BufferContent transform can cover several excerpts (they coalesce
// across the synthetic separator newline), in which case the cursor
// yields one region per excerpt within it.
type Cursor struct {
	excerpts   *excerpttree.Tree
	transforms *transform.Tree

	tc *transform.Cursor

	region Region
	valid  bool
	point  int // exact output-space offset last sought, within region's range

	// regionInput is the input-space extent of the cached region within
	// the current BufferContent transform; meaningless for DeletedHunk
	// regions (which have no input extent).
	regionInput Range
	// atExcerptEnd records whether the cached region ends exactly at its
	// excerpt's end in excerpt space.
	atExcerptEnd bool
}

// New returns a cursor over excerpts and transforms, initially positioned
// before the first region.
func New(excerpts *excerpttree.Tree, transforms *transform.Tree) *Cursor {
	return &Cursor{excerpts: excerpts, transforms: transforms, tc: transforms.Cursor()}
}

// Seek moves the cursor to the region containing output-space offset,
// returning whether a region exists there.
func (c *Cursor) Seek(offset int) bool {
	if !c.tc.SeekOutput(offset) {
		c.valid = false
		return false
	}
	if !c.recompute(offset) {
		return false
	}
	c.point = offset
	return true
}

// SeekForward is like Seek but is a no-op (and returns the cursor's
// current validity) if offset is behind the cursor's current position —
// an optimization for callers that only ever walk forward.
func (c *Cursor) SeekForward(offset int) bool {
	if c.valid && offset < c.region.OutputRange.Start {
		return c.valid
	}
	return c.Seek(offset)
}

// Next advances to the following region: the rest of the current
// transform when it spans another excerpt, or the next transform.
func (c *Cursor) Next() bool {
	if c.valid && c.tc.Valid() {
		item := c.tc.Item()
		if item.Kind == transform.BufferContentKind {
			transformInputEnd := c.tc.PrefixSummary().Input.Bytes + item.Summary().Input.Bytes
			if c.regionInput.End < transformInputEnd {
				if !c.recomputeBufferRegion(c.regionInput.End) {
					return false
				}
				c.point = c.region.OutputRange.Start
				return true
			}
		}
	}
	if !c.tc.Next() {
		c.valid = false
		return false
	}
	if !c.recompute(c.tc.PrefixSummary().Output.Bytes) {
		return false
	}
	c.point = c.region.OutputRange.Start
	return true
}

// Prev moves to the preceding region.
func (c *Cursor) Prev() bool {
	if c.valid && c.tc.Valid() {
		item := c.tc.Item()
		if item.Kind == transform.BufferContentKind {
			transformInputStart := c.tc.PrefixSummary().Input.Bytes
			if c.regionInput.Start > transformInputStart {
				if !c.recomputeBufferRegion(c.regionInput.Start - 1) {
					return false
				}
				c.point = c.region.OutputRange.Start
				return true
			}
		}
	}
	if !c.tc.Prev() {
		c.valid = false
		return false
	}
	// Enter the previous transform at its last region.
	item := c.tc.Item()
	prefix := c.tc.PrefixSummary()
	if item.Kind == transform.BufferContentKind && item.Summary().Input.Bytes > 0 {
		if !c.recomputeBufferRegion(prefix.Input.Bytes + item.Summary().Input.Bytes - 1) {
			return false
		}
	} else if !c.recompute(prefix.Output.Bytes) {
		return false
	}
	c.point = c.region.OutputRange.Start
	return true
}

// NextExcerpt advances past the current region's excerpt entirely,
// landing on the first region of the following excerpt.
func (c *Cursor) NextExcerpt() bool {
	if !c.valid {
		return false
	}
	cur := c.region.Excerpt.ID
	for c.Next() {
		if c.region.Excerpt.ID != cur {
			return true
		}
	}
	return false
}

// PrevExcerpt moves to the last region of the preceding excerpt.
func (c *Cursor) PrevExcerpt() bool {
	if !c.valid {
		return false
	}
	cur := c.region.Excerpt.ID
	for c.Prev() {
		if c.region.Excerpt.ID != cur {
			return true
		}
	}
	return false
}

// Region returns the cached region at the cursor's current position.
// Panics if the cursor is not positioned at a valid region.
func (c *Cursor) Region() Region {
	if !c.valid {
		panic("cursor: Region called while not positioned at a valid region")
	}
	return c.region
}

// Valid reports whether the cursor currently points at a region.
func (c *Cursor) Valid() bool { return c.valid }

// IsAtEndOfExcerpt reports whether the cursor's region ends exactly at
// its excerpt's end.
func (c *Cursor) IsAtEndOfExcerpt() bool {
	return c.valid && c.atExcerptEnd
}

// MainBufferPosition returns the cursor's exact position translated into
// the backing buffer's own coordinate space, valid only when the current
// region is a main-buffer (BufferContent) region.
func (c *Cursor) MainBufferPosition() (buffer.ID, int, bool) {
	if !c.valid || !c.region.IsMainBuffer {
		return 0, 0, false
	}
	offset := c.region.BufferRange.Start + (c.point - c.region.OutputRange.Start)
	if offset > c.region.BufferRange.End {
		offset = c.region.BufferRange.End
	}
	return c.region.BufferID, offset, true
}

// recompute derives the region containing outputOffset within the
// transform cursor's current transform.
func (c *Cursor) recompute(outputOffset int) bool {
	if !c.tc.Valid() {
		c.valid = false
		return false
	}
	item := c.tc.Item()
	prefix := c.tc.PrefixSummary()

	switch item.Kind {
	case transform.BufferContentKind:
		inputOffset := prefix.Input.Bytes + (outputOffset - prefix.Output.Bytes)
		return c.recomputeBufferRegion(inputOffset)

	case transform.DeletedHunkKind:
		outputStart := prefix.Output.Bytes
		var excerpt excerpttree.Excerpt
		var status *diffprovider.HunkStatus
		if item.Hunk != nil {
			excerpt, _ = c.excerpts.ByID(item.Hunk.ExcerptID)
			s := item.Hunk.Status
			status = &s
		}
		c.region = Region{
			BufferID:           item.BufferID,
			IsMainBuffer:       false,
			DiffHunkStatus:     status,
			Excerpt:            excerpt,
			BufferRange:        item.BaseRange,
			OutputRange:        Range{Start: outputStart, End: outputStart + item.Summary().Output.Bytes},
			HasTrailingNewline: item.SyntheticNewline,
		}
		c.regionInput = Range{Start: prefix.Input.Bytes, End: prefix.Input.Bytes}
		c.atExcerptEnd = false
		c.valid = true
		return true
	}
	c.valid = false
	return false
}

// recomputeBufferRegion derives the BufferContent region containing
// excerpt-space inputOffset within the current transform, clipped to the
// excerpt containing that offset.
func (c *Cursor) recomputeBufferRegion(inputOffset int) bool {
	item := c.tc.Item()
	prefix := c.tc.PrefixSummary()
	transformInputStart := prefix.Input.Bytes
	transformInputEnd := transformInputStart + item.Summary().Input.Bytes

	excerpt, excerptStart, ok := c.excerpts.SeekOffset(inputOffset)
	if !ok {
		last, lok := c.excerpts.Last()
		if !lok {
			c.valid = false
			return false
		}
		excerpt = last
		excerptStart = c.excerpts.TextLen() - last.EffectiveTextSummary().Bytes
	}
	excerptRealEnd := excerptStart + excerpt.TextSummary.Bytes
	excerptEnd := excerptRealEnd
	if excerpt.HasTrailingNewline {
		excerptEnd++
	}

	regionInputStart := max(transformInputStart, excerptStart)
	regionInputEnd := min(transformInputEnd, excerptEnd)
	if regionInputEnd < regionInputStart {
		regionInputEnd = regionInputStart
	}
	regionRealEnd := min(regionInputEnd, excerptRealEnd)

	outputStart := prefix.Output.Bytes + (regionInputStart - transformInputStart)
	outputEnd := prefix.Output.Bytes + (regionInputEnd - transformInputStart)

	// The region's excerpt-space length can include the one-byte synthetic
	// separator newline that joins this excerpt to the next; that byte has
	// no backing buffer offset, so BufferRange stops at the excerpt's real
	// content and HasTrailingNewline flags the extra byte.
	bufStart := excerpt.ContextOffsets.Start + (regionInputStart - excerptStart)
	bufEnd := excerpt.ContextOffsets.Start + (regionRealEnd - excerptStart)

	var status *diffprovider.HunkStatus
	if item.InsertedHunk != nil {
		s := item.InsertedHunk.Status
		status = &s
	}

	c.region = Region{
		BufferID:           excerpt.BufferID,
		IsMainBuffer:       true,
		DiffHunkStatus:     status,
		Excerpt:            excerpt,
		BufferRange:        buffer.Range{Start: bufStart, End: bufEnd},
		OutputRange:        Range{Start: outputStart, End: outputEnd},
		HasTrailingNewline: regionInputEnd == excerptEnd && excerpt.HasTrailingNewline,
	}
	c.regionInput = Range{Start: regionInputStart, End: regionInputEnd}
	c.atExcerptEnd = regionInputEnd == excerptEnd
	c.valid = true
	return true
}
