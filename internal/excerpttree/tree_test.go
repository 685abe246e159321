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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/buffer/textrope"
)

func excerptFromBuffer(buf buffer.Buffer, bufferID buffer.ID, rng buffer.Range) Excerpt {
	return Excerpt{
		BufferID: bufferID,
		Buffer:   buf.Snapshot(),
		Context: ExcerptRange{
			Start: buf.AnchorAt(rng.Start, buffer.Left),
			End:   buf.AnchorAt(rng.End, buffer.Right),
		},
		ContextOffsets: rng,
		TextSummary:    buf.TextSummaryForRange(rng),
	}
}

func TestInsertAfterOrdersByLocatorAndLinksNewlines(t *testing.T) {
	tree := New()
	buf := textrope.New(1, "AAABBB")

	excerpts := []Excerpt{
		excerptFromBuffer(buf, 1, buffer.Range{Start: 0, End: 3}),
		excerptFromBuffer(buf, 1, buffer.Range{Start: 3, End: 6}),
	}
	inserted, edit := tree.InsertAfter(nil, nil, excerpts)

	require.Len(t, inserted, 2)
	require.True(t, inserted[0].HasTrailingNewline)
	require.False(t, inserted[1].HasTrailingNewline)
	require.Equal(t, 0, edit.OldStart)
	require.Equal(t, 0, edit.OldEnd)
	require.Equal(t, 7, edit.NewEnd) // "AAA\nBBB"
	require.NoError(t, tree.CheckInvariants())
	require.Equal(t, 7, tree.TextLen())
}

func TestInsertAfterAppendsLaterLocators(t *testing.T) {
	tree := New()
	buf := textrope.New(1, "AAABBBCCC")

	first, _ := tree.InsertAfter(nil, nil, []Excerpt{excerptFromBuffer(buf, 1, buffer.Range{Start: 0, End: 3})})
	second, _ := tree.InsertAfter(first[0].Loc, nil, []Excerpt{excerptFromBuffer(buf, 1, buffer.Range{Start: 3, End: 6})})

	require.True(t, locatorLess(first[0].Loc, second[0].Loc))
	require.NoError(t, tree.CheckInvariants())
}

func locatorLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func TestSeekOffsetFindsContainingExcerpt(t *testing.T) {
	tree := New()
	buf := textrope.New(1, "AAABBB")
	tree.InsertAfter(nil, nil, []Excerpt{
		excerptFromBuffer(buf, 1, buffer.Range{Start: 0, End: 3}),
		excerptFromBuffer(buf, 1, buffer.Range{Start: 3, End: 6}),
	})

	e, start, ok := tree.SeekOffset(5)
	require.True(t, ok)
	require.Equal(t, 4, start)
	require.Equal(t, buffer.Range{Start: 3, End: 6}, e.ContextOffsets)

	_, _, ok = tree.SeekOffset(100)
	require.False(t, ok)
}

func TestRemoveReachingTailDropsSeparatorNewline(t *testing.T) {
	tree := New()
	buf := textrope.New(1, "AAABBB")
	inserted, _ := tree.InsertAfter(nil, nil, []Excerpt{
		excerptFromBuffer(buf, 1, buffer.Range{Start: 0, End: 3}),
		excerptFromBuffer(buf, 1, buffer.Range{Start: 3, End: 6}),
	})

	edits := tree.Remove([]ID{inserted[1].ID})
	require.Len(t, edits, 1)
	// Removing the tail also removes the newline that preceded it.
	require.Equal(t, 3, edits[0].OldStart)
	require.Equal(t, 7, edits[0].OldEnd)

	require.Equal(t, 1, tree.Len())
	last, ok := tree.Last()
	require.True(t, ok)
	require.False(t, last.HasTrailingNewline)
	require.NoError(t, tree.CheckInvariants())
}

func TestRemoveMiddleExcerptKeepsNeighborsJoined(t *testing.T) {
	tree := New()
	buf := textrope.New(1, "AAABBBCCC")
	inserted, _ := tree.InsertAfter(nil, nil, []Excerpt{
		excerptFromBuffer(buf, 1, buffer.Range{Start: 0, End: 3}),
		excerptFromBuffer(buf, 1, buffer.Range{Start: 3, End: 6}),
		excerptFromBuffer(buf, 1, buffer.Range{Start: 6, End: 9}),
	})

	tree.Remove([]ID{inserted[1].ID})
	require.Equal(t, 2, tree.Len())
	require.NoError(t, tree.CheckInvariants())

	remaining := tree.Excerpts()
	require.Equal(t, inserted[0].ID, remaining[0].ID)
	require.Equal(t, inserted[2].ID, remaining[1].ID)
	require.True(t, remaining[0].HasTrailingNewline)
	require.False(t, remaining[1].HasTrailingNewline)
}

func TestResizeExcerptReplacesRangeInPlace(t *testing.T) {
	tree := New()
	buf := textrope.New(1, "AAABBBCCC")
	inserted, _ := tree.InsertAfter(nil, nil, []Excerpt{excerptFromBuffer(buf, 1, buffer.Range{Start: 0, End: 3})})

	newExcerpt := excerptFromBuffer(buf, 1, buffer.Range{Start: 0, End: 6})
	edit, ok := tree.ResizeExcerpt(inserted[0].ID, newExcerpt.Context, newExcerpt)
	require.True(t, ok)
	require.Equal(t, 0, edit.OldStart)
	require.Equal(t, 3, edit.OldEnd)
	require.Equal(t, 6, edit.NewEnd)

	resized, ok := tree.ByID(inserted[0].ID)
	require.True(t, ok)
	require.Equal(t, buffer.Range{Start: 0, End: 6}, resized.ContextOffsets)
}

func TestByIDMissingReturnsFalse(t *testing.T) {
	tree := New()
	_, ok := tree.ByID(999)
	require.False(t, ok)
}

func TestAllocateIDIsMonotonic(t *testing.T) {
	tree := New()
	a := tree.AllocateID()
	b := tree.AllocateID()
	require.True(t, b > a)
}
