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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textform/multibuffer/anchor"
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/buffer/textrope"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/diffprovider/linediff"
	"github.com/textform/multibuffer/internal/cursor"
	"github.com/textform/multibuffer/internal/excerpttree"
)

func excerptIDsOf(excerpts []excerpttree.Excerpt) []excerpttree.ID {
	ids := make([]excerpttree.ID, len(excerpts))
	for i, e := range excerpts {
		ids[i] = e.ID
	}
	return ids
}

func textOf(t *testing.T, snap *Snapshot) string {
	t.Helper()
	var out []byte
	for b := range snap.BytesInRange(cursor.Range{Start: 0, End: snap.Len()}) {
		out = append(out, b)
	}
	return string(out)
}

// Singleton passthrough.
func TestSingletonPassthrough(t *testing.T) {
	buf := textrope.New(1, "hello\nworld")
	mb := Singleton(DefaultConfig(), 1, buf)

	snap := mb.Snapshot()
	require.Equal(t, 11, snap.Len())
	require.Equal(t, OutputPoint{Row: 1, Column: 0}, snap.OffsetToPoint(6))
	require.Equal(t, "hello\nworld", textOf(t, snap))
	require.Len(t, mb.ExcerptIDs(), 1)
	require.True(t, mb.IsSingleton())
}

// Two excerpts synthesize a newline.
func TestTwoExcerptsSynthesizeNewline(t *testing.T) {
	mb := New(DefaultConfig())

	a := textrope.New(1, "AAA")
	b := textrope.New(2, "BBB")
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()
	mb.buffers[2] = b
	mb.bufferVersions[2] = b.Version()

	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})
	excerptsB := mb.PushExcerpts(2, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})

	snap := mb.Snapshot()
	require.Equal(t, "AAA\nBBB", textOf(t, snap))
	require.Equal(t, 7, snap.Len())

	var bufIDs []buffer.ID
	for info := range snap.RowInfos(0) {
		if info.HasBuffer {
			bufIDs = append(bufIDs, info.BufferID)
		}
	}
	require.Equal(t, []buffer.ID{1, 2}, bufIDs)

	mb.RemoveExcerpts(excerptIDsOf(excerptsB))
	snap = mb.Snapshot()
	require.Equal(t, "AAA", textOf(t, snap))
	require.Equal(t, 3, snap.Len())
}

// Inter-excerpt edit collapses the gap.
func TestInterExcerptEditCollapsesGap(t *testing.T) {
	mb := New(DefaultConfig())
	a := textrope.New(1, "abcdef")
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()

	mb.PushExcerpts(1, []ExcerptRequest{
		{Range: buffer.Range{Start: 0, End: 2}},
		{Range: buffer.Range{Start: 4, End: 6}},
	})

	snap := mb.Snapshot()
	require.Equal(t, "ab\nef", textOf(t, snap))

	mb.Edit([]EditRequest{{Range: cursor.Range{Start: 2, End: 3}, NewText: "X"}}, nil)

	snap = mb.Snapshot()
	require.Equal(t, "abXef", textOf(t, snap))
	require.Equal(t, "abXef", a.Snapshot().Text())
}

// Diff expansion of a single deletion.
func TestDiffExpansionSingleDeletion(t *testing.T) {
	mb := New(DefaultConfig())
	buf := textrope.New(1, "b\n")
	mb.buffers[1] = buf
	mb.bufferVersions[1] = buf.Version()
	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 2}}})

	diff := linediff.New(1, "b\n", "a\nb\n", true)
	mb.AddDiff(diff)

	snap := mb.Snapshot()
	require.Equal(t, "b\n", textOf(t, snap))

	mb.ExpandDiffHunks([]cursor.Range{{Start: 0, End: snap.Len()}})

	snap = mb.Snapshot()
	require.Equal(t, "a\nb\n", textOf(t, snap))

	hunks := snap.DiffHunksInRange(cursor.Range{Start: 0, End: snap.Len()})
	require.Len(t, hunks, 1)
	require.Equal(t, diffprovider.Removed, hunks[0].Hunk.Status)
	require.Equal(t, 0, hunks[0].OutputRange.Start)
	require.Equal(t, 2, hunks[0].OutputRange.End)

	segments := snap.RangeToBufferRangesWithDeletedHunks(cursor.Range{Start: 0, End: snap.Len()})
	require.Len(t, segments, 2)
	require.False(t, segments[0].IsMainBuffer)
	require.Equal(t, buffer.Range{Start: 0, End: 2}, segments[0].Range)
	require.NotNil(t, segments[0].BaseAnchor)
	require.Equal(t, 0, segments[0].BaseAnchor.Offset)
	require.True(t, segments[1].IsMainBuffer)
	require.Equal(t, buffer.Range{Start: 0, End: 2}, segments[1].Range)
	require.Nil(t, segments[1].BaseAnchor)
}

// Anchor survives excerpt removal via neighbor.
func TestAnchorRefreshAfterRemoval(t *testing.T) {
	mb := New(DefaultConfig())
	x := textrope.New(1, "xxx")
	y := textrope.New(2, "yyy")
	mb.buffers[1] = x
	mb.bufferVersions[1] = x.Version()
	mb.buffers[2] = y
	mb.bufferVersions[2] = y.Version()

	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})
	excerptsY := mb.PushExcerpts(2, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})
	excerptX, ok := mb.excerpts.ByID(mb.ExcerptIDs()[0])
	require.True(t, ok)

	snap := mb.Snapshot()
	// Anchor at the start of Y's text (offset 4: "xxx\n" then "yyy").
	a := snap.AnchorAt(4, buffer.Left)
	require.Equal(t, excerptsY[0].ID, a.ExcerptID)

	mb.RemoveExcerpts([]excerpttree.ID{excerptsY[0].ID})

	refreshed := mb.Snapshot().RefreshAnchors([]anchor.Anchor{a})
	require.Len(t, refreshed, 1)
	require.Equal(t, 0, refreshed[0].OriginalIndex)
	require.False(t, refreshed[0].KeptPosition)
	require.Equal(t, excerptX.ID, refreshed[0].Anchor.ExcerptID)
}

// Removing a middle excerpt refreshes its anchors into the excerpt that
// followed it, not the document's last excerpt.
func TestAnchorRefreshAfterMiddleRemovalLandsOnNextNeighbor(t *testing.T) {
	mb := New(DefaultConfig())
	var excerpts []excerpttree.Excerpt
	for i := 0; i < 3; i++ {
		id := buffer.ID(i + 1)
		buf := textrope.New(id, "text")
		mb.buffers[id] = buf
		mb.bufferVersions[id] = buf.Version()
		inserted := mb.PushExcerpts(id, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 4}}})
		excerpts = append(excerpts, inserted[0])
	}

	snap := mb.Snapshot()
	// Anchor inside the middle excerpt ("text\n" is 5 bytes per excerpt).
	a := snap.AnchorAt(7, buffer.Left)
	require.Equal(t, excerpts[1].ID, a.ExcerptID)

	mb.RemoveExcerpts([]excerpttree.ID{excerpts[1].ID})

	refreshed := mb.Snapshot().RefreshAnchors([]anchor.Anchor{a})
	require.Len(t, refreshed, 1)
	require.False(t, refreshed[0].KeptPosition)
	require.Equal(t, excerpts[2].ID, refreshed[0].Anchor.ExcerptID)
}

// Undo across two buffers is atomic.
func TestUndoAcrossTwoBuffersIsAtomic(t *testing.T) {
	mb := New(DefaultConfig())
	a := textrope.New(1, "A")
	b := textrope.New(2, "B")
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()
	mb.buffers[2] = b
	mb.bufferVersions[2] = b.Version()

	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 1}}})
	mb.PushExcerpts(2, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 1}}})

	snap := mb.Snapshot()
	require.Equal(t, "A\nB", textOf(t, snap))

	mb.StartTransaction()
	mb.Edit([]EditRequest{
		{Range: cursor.Range{Start: 0, End: 0}, NewText: "x"},
		{Range: cursor.Range{Start: 3, End: 3}, NewText: "y"},
	}, nil)
	mb.EndTransaction()

	snap = mb.Snapshot()
	require.Equal(t, "xA\nBy", textOf(t, snap))

	id, ok := mb.Undo()
	require.True(t, ok)
	require.NotZero(t, id)

	snap = mb.Snapshot()
	require.Equal(t, "A\nB", textOf(t, snap))
	require.Equal(t, "A", a.Snapshot().Text())
	require.Equal(t, "B", b.Snapshot().Text())

	redoID, ok := mb.Redo()
	require.True(t, ok)
	require.Equal(t, id, redoID)
	require.Equal(t, "xA\nBy", textOf(t, mb.Snapshot()))
}

func TestExpandCollapseRoundTrip(t *testing.T) {
	mb := New(DefaultConfig())
	buf := textrope.New(1, "b\n")
	mb.buffers[1] = buf
	mb.bufferVersions[1] = buf.Version()
	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 2}}})
	mb.AddDiff(linediff.New(1, "b\n", "a\nb\n", true))

	before := mb.Snapshot().Len()

	full := cursor.Range{Start: 0, End: mb.Snapshot().Len()}
	mb.ExpandDiffHunks([]cursor.Range{full})
	require.Equal(t, "a\nb\n", textOf(t, mb.Snapshot()))

	mb.CollapseDiffHunks([]cursor.Range{{Start: 0, End: mb.Snapshot().Len()}})
	require.Equal(t, before, mb.Snapshot().Len())
	require.Equal(t, "b\n", textOf(t, mb.Snapshot()))
}
