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

package excerpttree

import (
	"fmt"

	"github.com/textform/multibuffer/internal/sumtree"
	"github.com/textform/multibuffer/internal/textsum"
	"github.com/textform/multibuffer/locator"
)

// ExcerptEdit is an excerpt-space text replacement produced by a mutation
// of the excerpt tree, destined for the diff-transform tree's incremental
// rebuild.
type ExcerptEdit struct {
	OldStart, OldEnd int
	NewStart, NewEnd int
}

// Tree is the excerpt tree: excerpts ordered by locator, aggregated
// by Summary.
type Tree struct {
	inner  *sumtree.Tree[string, Summary, Excerpt]
	nextID ID
}

// New returns an empty excerpt tree.
func New() *Tree {
	return &Tree{inner: sumtree.New[string, Summary, Excerpt](Zero), nextID: 1}
}

// Len returns the number of excerpts.
func (t *Tree) Len() int { return t.inner.Len() }

// IsEmpty reports whether the tree has no excerpts.
func (t *Tree) IsEmpty() bool { return t.inner.Len() == 0 }

// TextLen returns the total excerpt-space length in bytes, including
// synthetic trailing newlines.
func (t *Tree) TextLen() int { return t.inner.Total().Text.Bytes }

// Excerpts returns every excerpt in locator order.
func (t *Tree) Excerpts() []Excerpt { return t.inner.Items() }

// Last returns the last excerpt in locator order, if any.
func (t *Tree) Last() (Excerpt, bool) {
	items := t.inner.Items()
	if len(items) == 0 {
		return Excerpt{}, false
	}
	return items[len(items)-1], true
}

// ByID does a linear scan for the excerpt with the given id. Callers
// needing this frequently should go through an IDMap instead; Tree itself
// only orders by locator.
func (t *Tree) ByID(id ID) (Excerpt, bool) {
	for _, e := range t.inner.Items() {
		if e.ID == id {
			return e, true
		}
	}
	return Excerpt{}, false
}

// Cursor returns a new cursor over the excerpt tree.
func (t *Tree) Cursor() *sumtree.Cursor[string, Summary, Excerpt] {
	return t.inner.Cursor()
}

// Clone returns a structurally-shared copy suitable for a read-only
// snapshot.
func (t *Tree) Clone() *Tree {
	return &Tree{inner: t.inner.Clone(), nextID: t.nextID}
}

// AllocateID returns a new excerpt ID, guaranteed greater than any
// previously allocated one.
func (t *Tree) AllocateID() ID {
	id := t.nextID
	t.nextID++
	return id
}

// InsertAfter splices excerpts in after a predecessor: it allocates new
// ids greater than any existing id, synthesizes locators strictly between
// prevLoc and nextLoc, and links the given excerpts (whose Loc/ID fields
// are filled in by this call) so that every excerpt but the last gets a
// synthetic trailing newline; the last one gets it too when nextLoc names a
// following excerpt. It returns the finished excerpts plus the
// excerpt-space edit describing where they were spliced in.
func (t *Tree) InsertAfter(prevLoc locator.Locator, nextLoc locator.Locator, newExcerpts []Excerpt) ([]Excerpt, ExcerptEdit) {
	return t.insertAfter(prevLoc, nextLoc, newExcerpts, func(i int) ID { return t.AllocateID() })
}

// InsertAfterWithIDs is like InsertAfter but assigns the caller-supplied
// ids instead of allocating fresh ones (used to stay in sync with a peer
// that already chose them). The tree's own id allocator is advanced past
// the highest supplied id so future AllocateID calls remain monotonic.
func (t *Tree) InsertAfterWithIDs(prevLoc, nextLoc locator.Locator, newExcerpts []Excerpt, ids []ID) ([]Excerpt, ExcerptEdit) {
	if len(ids) != len(newExcerpts) {
		panic("excerpttree: InsertAfterWithIDs requires one id per excerpt")
	}
	for _, id := range ids {
		if id >= t.nextID {
			t.nextID = id + 1
		}
	}
	return t.insertAfter(prevLoc, nextLoc, newExcerpts, func(i int) ID { return ids[i] })
}

func (t *Tree) insertAfter(prevLoc locator.Locator, nextLoc locator.Locator, newExcerpts []Excerpt, idFor func(i int) ID) ([]Excerpt, ExcerptEdit) {
	if len(newExcerpts) == 0 {
		return nil, ExcerptEdit{}
	}

	// Between requires a strictly-ordered pair of real Locators; a nil
	// bound here means "no neighbor on this side", which resolves to the
	// sentinel extremes rather than being passed through as nil (nil on
	// both sides would otherwise compare equal and panic).
	lo := prevLoc
	if lo == nil {
		lo = locator.Min()
	}
	hi := nextLoc
	if hi == nil {
		hi = locator.Max()
	}

	locs := make([]locator.Locator, len(newExcerpts))
	for i := range newExcerpts {
		locs[i] = locator.Between(lo, hi)
		lo = locs[i]
	}

	prevExcerpt, havePrev := Excerpt{}, false
	if prevLoc != nil {
		prevExcerpt, havePrev = t.inner.Get(string(prevLoc))
	}

	insertOffset := 0
	if havePrev {
		insertOffset = t.OffsetOf(prevLoc) + prevExcerpt.EffectiveTextSummary().Bytes
	}

	wasTail := false
	if havePrev {
		if last, ok := t.Last(); ok {
			wasTail = locator.Equal(last.Loc, prevLoc)
		}
	}

	// An excerpt carries a trailing separator newline whenever another
	// excerpt follows it: every inserted excerpt but the last, and the last
	// one too when the insertion lands mid-sequence (nextLoc set).
	hasNext := nextLoc != nil
	for i := range newExcerpts {
		newExcerpts[i].ID = idFor(i)
		newExcerpts[i].Loc = locs[i]
		newExcerpts[i].HasTrailingNewline = i != len(newExcerpts)-1 || hasNext
	}

	// Appending after the old tail gives the tail a separator newline; that
	// byte is new content and must be counted in the splice edit below.
	prevGainedNewline := 0
	if wasTail && !prevExcerpt.HasTrailingNewline {
		prevExcerpt.HasTrailingNewline = true
		t.inner.Set(prevExcerpt)
		prevGainedNewline = 1
	}

	for _, e := range newExcerpts {
		t.inner.Set(e)
	}

	newLen := prevGainedNewline
	for _, e := range newExcerpts {
		newLen += e.EffectiveTextSummary().Bytes
	}

	return newExcerpts, ExcerptEdit{
		OldStart: insertOffset, OldEnd: insertOffset,
		NewStart: insertOffset, NewEnd: insertOffset + newLen,
	}
}

// SeekOffset returns the excerpt containing excerpt-space byte offset,
// plus that excerpt's own starting offset. ok is false if offset is at or
// past the end of the tree.
func (t *Tree) SeekOffset(offset int) (excerpt Excerpt, start int, ok bool) {
	c := t.inner.Cursor()
	if !c.SeekSummary(func(through Summary) bool { return through.Text.Bytes <= offset }) {
		return Excerpt{}, 0, false
	}
	return c.Item(), c.PrefixSummary().Text.Bytes, true
}

// OffsetOf returns the excerpt-space byte offset at which the excerpt with
// the given locator begins.
func (t *Tree) OffsetOf(loc locator.Locator) int {
	c := t.Cursor()
	if !c.Seek(string(loc)) {
		return t.TextLen()
	}
	return c.PrefixSummary().Text.Bytes
}

// Remove splices the named excerpts out, clearing the new tail's
// trailing newline and reporting the excerpt-space edit that removes
// their text (including the newline that used to separate the tail from
// its predecessor).
func (t *Tree) Remove(ids []ID) []ExcerptEdit {
	idSet := make(map[ID]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	items := t.inner.Items()

	// offsets[i] is the excerpt-space offset at which items[i] begins;
	// offsets[len(items)] is the total length.
	offsets := make([]int, len(items)+1)
	for i, e := range items {
		offsets[i+1] = offsets[i] + e.EffectiveTextSummary().Bytes
	}

	var edits []ExcerptEdit
	var newItems []Excerpt
	reachesTail := false
	i := 0
	for i < len(items) {
		if !idSet[items[i].ID] {
			newItems = append(newItems, items[i])
			i++
			continue
		}
		runStart := i
		for i < len(items) && idSet[items[i].ID] {
			i++
		}
		runEnd := i // exclusive

		start := offsets[runStart]
		end := offsets[runEnd]
		if runEnd == len(items) {
			// The removal reaches the tail: the synthetic newline that
			// used to separate the new tail from this run disappears too.
			reachesTail = true
			if start > 0 {
				start--
			}
		}
		edits = append(edits, ExcerptEdit{OldStart: start, OldEnd: end, NewStart: start, NewEnd: start})
	}

	if reachesTail && len(newItems) > 0 {
		newItems[len(newItems)-1].HasTrailingNewline = false
	}

	t.inner = sumtree.New[string, Summary, Excerpt](Zero)
	for _, e := range newItems {
		t.inner.Set(e)
	}

	return edits
}

// ResizeExcerpt replaces a single excerpt's range (and re-derived
// summary), returning the excerpt-space replacement edit covering the
// old text span.
func (t *Tree) ResizeExcerpt(id ID, newContext ExcerptRange, newSnapshot Excerpt) (ExcerptEdit, bool) {
	items := t.inner.Items()
	offset := 0
	for _, e := range items {
		length := e.EffectiveTextSummary().Bytes
		if e.ID == id {
			newSnapshot.ID = e.ID
			newSnapshot.Loc = e.Loc
			newSnapshot.Context = newContext
			newSnapshot.HasTrailingNewline = e.HasTrailingNewline
			t.inner.Set(newSnapshot)
			newLen := newSnapshot.EffectiveTextSummary().Bytes
			return ExcerptEdit{OldStart: offset, OldEnd: offset + length, NewStart: offset, NewEnd: offset + newLen}, true
		}
		offset += length
	}
	return ExcerptEdit{}, false
}

// UpdateLast replaces the last excerpt in locator order in place —used to
// flip HasTrailingNewline when a new excerpt is appended after it.
func (t *Tree) UpdateLast(fn func(Excerpt) Excerpt) {
	last, ok := t.Last()
	if !ok {
		return
	}
	t.inner.Set(fn(last))
}

// CheckInvariants asserts that locators are strictly increasing in tree
// order and every non-last excerpt has a trailing newline iff the
// document isn't a single excerpt. Debug/test helper, never called on a
// hot path.
func (t *Tree) CheckInvariants() error {
	items := t.inner.Items()
	for i := 1; i < len(items); i++ {
		if locator.Compare(items[i-1].Loc, items[i].Loc) >= 0 {
			return fmt.Errorf("excerpttree: locators not strictly increasing at index %d", i)
		}
		if items[i-1].ID >= items[i].ID {
			return fmt.Errorf("excerpttree: ids not strictly increasing at index %d", i)
		}
	}
	for i, e := range items {
		if i != len(items)-1 && !e.HasTrailingNewline {
			return fmt.Errorf("excerpttree: non-tail excerpt %d missing trailing newline", e.ID)
		}
	}
	return nil
}

var _ = textsum.Zero
