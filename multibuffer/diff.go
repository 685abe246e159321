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
	"sort"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/cursor"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/transform"
)

// AddDiff registers diff as bufferID's diff provider, seeds the cached
// snapshot, and triggers an initial full-range diff-changed so the
// transform tree picks up diff's hunks.
func (mb *MultiBuffer) AddDiff(diff diffprovider.Provider) {
	mb.guard.Check()
	mb.NotifyDiffChanged(diff.BufferID(), diff, nil)
}

// DiffFor returns the diff provider currently registered for bufferID,
// if any.
func (mb *MultiBuffer) DiffFor(bufferID buffer.ID) (diffprovider.Provider, bool) {
	p, ok := mb.diffs[bufferID]
	return p, ok
}

// NotifyLanguageChanged replaces bufferID's cached diff snapshot with
// provider with no transform rebuild: a language change can only affect
// how hunks are rendered, never their ranges.
func (mb *MultiBuffer) NotifyLanguageChanged(bufferID buffer.ID, provider diffprovider.Provider) {
	mb.guard.Check()
	mb.diffs[bufferID] = provider
	mb.emit(Event{Kind: LanguageChanged, BufferID: bufferID})
}

// NotifyDiffChanged handles a DiffChanged{range} notification: newProvider
// is the diff source's updated snapshot for bufferID. It substitutes a
// synthetic single-insertion diff when newProvider dropped its base text
// while hunks are globally expanded, decides base_changed by comparing
// the previously cached provider's base text against newProvider's, and
// rebuilds the transform tree over every excerpt span the change touches.
// changedRange is nil to mean "the whole buffer may have
// changed".
func (mb *MultiBuffer) NotifyDiffChanged(bufferID buffer.ID, newProvider diffprovider.Provider, changedRange *buffer.Range) {
	mb.guard.Check()
	oldProvider := mb.diffs[bufferID]
	if _, hasBase := newProvider.BaseText(); !hasBase && mb.allHunksExpanded {
		newProvider = newSingleInsertionProvider(bufferID)
	}
	mb.diffs[bufferID] = newProvider

	baseChanged := true
	if oldProvider != nil {
		baseChanged = !oldProvider.BaseTextsEqual(newProvider)
	}

	excerpts := mb.excerptsForBuffer(bufferID)
	if len(excerpts) == 0 {
		return
	}

	var edits []excerpttree.ExcerptEdit
	touched := map[excerpttree.ID]bool{}
	for _, ex := range excerpts {
		rng := ex.ContextOffsets
		if changedRange != nil {
			rng = intersectBufferRange(rng, *changedRange)
			if rng.Len() <= 0 {
				continue
			}
		}
		start := mb.excerptSpaceOffset(ex, rng.Start)
		end := mb.excerptSpaceOffset(ex, rng.End)
		if end <= start {
			continue
		}
		edits = append(edits, excerpttree.ExcerptEdit{OldStart: start, OldEnd: end, NewStart: start, NewEnd: end})
		touched[ex.ID] = true
	}
	if len(edits) == 0 {
		return
	}
	sortExcerptEdits(edits)
	mb.rebuild(edits, transform.Change{Kind: transform.DiffUpdated, BaseChanged: baseChanged})
	mb.emit(Event{Kind: DiffHunksToggled, ExcerptIDs: sortedExcerptIDs(touched)})
}

// ExpandDiffHunks expands every diff hunk intersecting ranges, each
// extended by one row at its end to pull in the row boundary's trailing
// newline.
func (mb *MultiBuffer) ExpandDiffHunks(ranges []cursor.Range) {
	mb.expandOrCollapseDiffHunks(ranges, true, true)
}

// CollapseDiffHunks is ExpandDiffHunks' inverse.
func (mb *MultiBuffer) CollapseDiffHunks(ranges []cursor.Range) {
	mb.expandOrCollapseDiffHunks(ranges, false, true)
}

// ExpandDiffHunksNarrow is the narrow variant of ExpandDiffHunks: it uses
// the caller's literal ranges without row-extension.
func (mb *MultiBuffer) ExpandDiffHunksNarrow(ranges []cursor.Range) {
	mb.expandOrCollapseDiffHunks(ranges, true, false)
}

// CollapseDiffHunksNarrow is the narrow variant of CollapseDiffHunks.
func (mb *MultiBuffer) CollapseDiffHunksNarrow(ranges []cursor.Range) {
	mb.expandOrCollapseDiffHunks(ranges, false, false)
}

// SetAllDiffHunksExpanded sets the global expansion flag and issues a
// whole-document rebuild, so that every hunk in every buffer renders
// expanded regardless of its individual prior state.
func (mb *MultiBuffer) SetAllDiffHunksExpanded() {
	mb.guard.Check()
	mb.allHunksExpanded = true
	length := mb.excerpts.TextLen()
	if length == 0 {
		mb.emit(Event{Kind: DiffHunksToggled})
		return
	}
	edit := excerpttree.ExcerptEdit{OldStart: 0, OldEnd: length, NewStart: 0, NewEnd: length}
	mb.rebuild([]excerpttree.ExcerptEdit{edit}, transform.Change{Kind: transform.ExpandOrCollapseHunks, Expand: true})
	mb.emit(Event{Kind: DiffHunksToggled, ExcerptIDs: mb.ExcerptIDs()})
}

// HasMultipleHunks reports whether more than one diff hunk intersects rng
// in bufferID.
func (mb *MultiBuffer) HasMultipleHunks(bufferID buffer.ID, rng buffer.Range) bool {
	provider, ok := mb.diffs[bufferID]
	if !ok {
		return false
	}
	count := 0
	for range provider.HunksIntersectingRange(rng) {
		count++
		if count > 1 {
			return true
		}
	}
	return false
}

// HasExpandedDiffHunksInRanges reports whether any excerpt touched by
// ranges currently renders an expanded (non-empty base text) hunk.
func (mb *MultiBuffer) HasExpandedDiffHunksInRanges(ranges []cursor.Range) bool {
	c := cursor.New(mb.excerpts, mb.transforms)
	for _, r := range ranges {
		if r.Start >= r.End {
			continue
		}
		if !c.Seek(r.Start) {
			continue
		}
		for c.Valid() && c.Region().OutputRange.Start < r.End {
			region := c.Region()
			if !region.IsMainBuffer {
				return true
			}
			if !c.Next() {
				break
			}
		}
	}
	return false
}

func (mb *MultiBuffer) expandOrCollapseDiffHunks(ranges []cursor.Range, expand, extendRow bool) {
	mb.guard.Check()
	c := cursor.New(mb.excerpts, mb.transforms)
	var edits []excerpttree.ExcerptEdit
	touched := map[excerpttree.ID]bool{}

	for _, r := range ranges {
		rng := r
		if rng.Start > rng.End {
			rng.Start, rng.End = rng.End, rng.Start
		}
		if extendRow {
			rng.End = mb.endOfNextRow(rng.End)
		}
		if !c.Seek(rng.Start) {
			continue
		}
		for c.Valid() && c.Region().OutputRange.Start < rng.End {
			region := c.Region()
			if region.IsMainBuffer {
				segStart := region.BufferRange.Start
				if rng.Start > region.OutputRange.Start {
					segStart += rng.Start - region.OutputRange.Start
				}
				segEnd := region.BufferRange.End
				if rng.End < region.OutputRange.End {
					segEnd -= region.OutputRange.End - rng.End
				}
				if provider, ok := mb.diffs[region.BufferID]; ok && segEnd > segStart {
					ex := excerptWithOffset{Excerpt: region.Excerpt, offset: mb.excerptStart(region.Excerpt.ID)}
					for h := range provider.HunksIntersectingRange(buffer.Range{Start: segStart, End: segEnd}) {
						start := mb.excerptSpaceOffset(ex, h.BufferRange.Start)
						end := mb.excerptSpaceOffset(ex, h.BufferRange.End)
						if end < start {
							end = start
						}
						edits = append(edits, excerpttree.ExcerptEdit{OldStart: start, OldEnd: end, NewStart: start, NewEnd: end})
						touched[ex.ID] = true
					}
				}
			}
			if !c.Next() {
				break
			}
		}
	}

	if len(edits) == 0 {
		return
	}
	sortExcerptEdits(edits)
	mb.rebuild(edits, transform.Change{Kind: transform.ExpandOrCollapseHunks, Expand: expand})
	mb.emit(Event{Kind: DiffHunksToggled, ExcerptIDs: sortedExcerptIDs(touched)})
}

// excerptSpaceOffset translates a buffer offset within ex's context range
// into excerpt (and, equivalently for BufferContent, output) space,
// clamping to ex's own span.
func (mb *MultiBuffer) excerptSpaceOffset(ex excerptWithOffset, bufOffset int) int {
	offset := ex.offset + (bufOffset - ex.ContextOffsets.Start)
	if offset < ex.offset {
		offset = ex.offset
	}
	if max := ex.offset + ex.EffectiveTextSummary().Bytes; offset > max {
		offset = max
	}
	return offset
}

// excerptStart returns id's excerpt-space start offset.
func (mb *MultiBuffer) excerptStart(id excerpttree.ID) int {
	offset := 0
	for _, e := range mb.excerpts.Excerpts() {
		if e.ID == id {
			return offset
		}
		offset += e.EffectiveTextSummary().Bytes
	}
	return offset
}

// endOfNextRow advances offset to the end of the row it falls within,
// including that row's terminating newline if any. This is the
// excerpt-tree equivalent of "extend by one row".
func (mb *MultiBuffer) endOfNextRow(offset int) int {
	c := cursor.New(mb.excerpts, mb.transforms)
	if !c.Seek(offset) {
		return offset
	}
	for c.Valid() {
		region := c.Region()
		if !region.IsMainBuffer {
			offset = region.OutputRange.End
			if !c.Next() {
				return offset
			}
			continue
		}
		buf, ok := mb.buffers[region.BufferID]
		if !ok {
			return offset
		}
		bufOffset := region.BufferRange.Start + (offset - region.OutputRange.Start)
		for b := range buf.BytesInRange(buffer.Range{Start: bufOffset, End: region.BufferRange.End}) {
			bufOffset++
			offset++
			if b == '\n' {
				return offset
			}
		}
		if offset < region.OutputRange.End {
			return region.OutputRange.End
		}
		if !c.Next() {
			return offset
		}
	}
	return offset
}

func intersectBufferRange(a, b buffer.Range) buffer.Range {
	start := a.Start
	if b.Start > start {
		start = b.Start
	}
	end := a.End
	if b.End < end {
		end = b.End
	}
	if end < start {
		end = start
	}
	return buffer.Range{Start: start, End: end}
}

func sortExcerptEdits(edits []excerpttree.ExcerptEdit) {
	sort.Slice(edits, func(i, j int) bool { return edits[i].OldStart < edits[j].OldStart })
}

func sortedExcerptIDs(set map[excerpttree.ID]bool) []excerpttree.ID {
	ids := make([]excerpttree.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// singleInsertionProvider is the synthetic diff substituted for a buffer
// whose provider has dropped its base text while hunks are globally
// expanded: the whole buffer renders as one Added hunk against an absent
// base, so the entire buffer shows as inserted.
type singleInsertionProvider struct {
	bufferID buffer.ID
}

func newSingleInsertionProvider(bufferID buffer.ID) diffprovider.Provider {
	return singleInsertionProvider{bufferID: bufferID}
}

func (p singleInsertionProvider) BufferID() buffer.ID { return p.bufferID }

func (p singleInsertionProvider) BaseText() (string, bool) { return "", false }

func (p singleInsertionProvider) BaseTextsEqual(other diffprovider.Provider) bool {
	if o, ok := other.(singleInsertionProvider); ok {
		return o.bufferID == p.bufferID
	}
	_, hasBase := other.BaseText()
	return !hasBase
}

func (p singleInsertionProvider) HunksIntersectingRange(rng buffer.Range) iter.Seq[diffprovider.Hunk] {
	return func(yield func(diffprovider.Hunk) bool) {
		if rng.Len() <= 0 {
			return
		}
		yield(diffprovider.Hunk{BufferRange: rng, Status: diffprovider.Added})
	}
}

func (p singleInsertionProvider) ReversedHunksIntersectingRange(rng buffer.Range) iter.Seq[diffprovider.Hunk] {
	return p.HunksIntersectingRange(rng)
}
