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

package textrope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/textsum"
)

func TestNewSnapshot(t *testing.T) {
	b := New(1, "hello\nworld")
	snap := b.Snapshot()
	require.Equal(t, 11, snap.Len())
	require.Equal(t, "hello\nworld", snap.Text())
}

func TestEditAppliesNonOverlappingEditsInOrder(t *testing.T) {
	b := New(1, "abcdef")
	before := b.Version()
	b.Edit([]buffer.TextEdit{
		{Range: buffer.Range{Start: 4, End: 6}, Text: "Y"},
		{Range: buffer.Range{Start: 0, End: 2}, Text: "X"},
	}, nil)
	require.Equal(t, "XcdY", b.Snapshot().Text())
	require.True(t, b.Version().Changed(before))
}

func TestEditOverlapPanics(t *testing.T) {
	b := New(1, "abcdef")
	require.Panics(t, func() {
		b.Edit([]buffer.TextEdit{
			{Range: buffer.Range{Start: 0, End: 3}, Text: "X"},
			{Range: buffer.Range{Start: 2, End: 4}, Text: "Y"},
		}, nil)
	})
}

func TestUndoRedoToTransaction(t *testing.T) {
	b := New(1, "abc")
	id := b.Edit([]buffer.TextEdit{{Range: buffer.Range{Start: 0, End: 0}, Text: "X"}}, nil)
	require.Equal(t, "Xabc", b.Snapshot().Text())

	require.True(t, b.UndoToTransaction(id))
	require.Equal(t, "abc", b.Snapshot().Text())

	require.True(t, b.RedoToTransaction(id))
	require.Equal(t, "Xabc", b.Snapshot().Text())
}

func TestStartEndTransactionRecordsEditedRange(t *testing.T) {
	b := New(1, "abcdef")
	txn := b.StartTransactionAt(0)
	b.Edit([]buffer.TextEdit{{Range: buffer.Range{Start: 2, End: 4}, Text: "ZZ"}}, nil)
	id, ok := b.EndTransactionAt(0)
	require.True(t, ok)

	var ranges []buffer.Range
	for r := range b.EditedRangesForTransaction(id) {
		ranges = append(ranges, r)
	}
	require.NotEmpty(t, ranges)
	_ = txn
}

func TestAnchorClipsToBufferBounds(t *testing.T) {
	b := New(1, "abc")
	a := b.AnchorAt(100, buffer.Right)
	require.Equal(t, 3, b.OffsetForAnchor(a))

	a2 := b.AnchorAt(-5, buffer.Left)
	require.Equal(t, 0, b.OffsetForAnchor(a2))
}

func TestAnchorTracksThroughEditsAndUndo(t *testing.T) {
	b := New(1, "abcdef")
	start := b.AnchorAt(2, buffer.Left)
	end := b.AnchorAt(4, buffer.Right)

	b.Edit([]buffer.TextEdit{{Range: buffer.Range{Start: 0, End: 0}, Text: "XX"}}, nil)
	require.Equal(t, 4, b.OffsetForAnchor(start))
	require.Equal(t, 6, b.OffsetForAnchor(end))

	id := b.Edit([]buffer.TextEdit{{Range: buffer.Range{Start: 4, End: 6}, Text: ""}}, nil)
	require.Equal(t, 4, b.OffsetForAnchor(start))
	require.Equal(t, 4, b.OffsetForAnchor(end))

	require.True(t, b.UndoToTransaction(id))
	require.Equal(t, 4, b.OffsetForAnchor(start))
	require.Equal(t, 6, b.OffsetForAnchor(end))
}

func TestAnchorCompareOrdersByOffsetThenBias(t *testing.T) {
	b := New(1, "abcdef")
	left := b.AnchorAt(3, buffer.Left)
	right := b.AnchorAt(3, buffer.Right)
	require.True(t, left.Compare(right) < 0)
	require.True(t, right.Compare(left) > 0)
	require.Equal(t, 0, left.Compare(b.AnchorAt(3, buffer.Left)))
}

func TestTextSummaryForRange(t *testing.T) {
	b := New(1, "hello\nworld")
	s := b.TextSummaryForRange(buffer.Range{Start: 0, End: 6})
	require.Equal(t, textsum.OfBytes([]byte("hello\n")), s)
}

func TestOffsetToPointAndBack(t *testing.T) {
	b := New(1, "abc\ndefgh\ni")
	snap := b.Snapshot()
	for _, offset := range []int{0, 3, 4, 9, 11} {
		p := snap.OffsetToPoint(offset)
		roundTripped := snap.PointToOffset(p)
		require.Equal(t, offset, roundTripped, "offset %d via point %+v", offset, p)
	}
}

func TestBytesInRange(t *testing.T) {
	b := New(1, "abcdef")
	var out []byte
	for by := range b.BytesInRange(buffer.Range{Start: 1, End: 4}) {
		out = append(out, by)
	}
	require.Equal(t, "bcd", string(out))
}

func TestChunksYieldsWholeRangeAsOneChunk(t *testing.T) {
	b := New(1, "abcdef")
	var texts []string
	for c := range b.Chunks(buffer.Range{Start: 1, End: 4}, false) {
		texts = append(texts, c.Text)
	}
	require.Equal(t, []string{"bcd"}, texts)
}

func TestReversedChunksInRangeYieldsRunesBackward(t *testing.T) {
	b := New(1, "abcd")
	var out string
	for c := range b.ReversedChunksInRange(buffer.Range{Start: 0, End: 4}) {
		out += c.Text
	}
	require.Equal(t, "dcba", out)
}

func TestMergeTransactionsCombinesIntoDestination(t *testing.T) {
	b := New(1, "a")
	id1 := b.Edit([]buffer.TextEdit{{Range: buffer.Range{Start: 1, End: 1}, Text: "b"}}, nil)
	id2 := b.Edit([]buffer.TextEdit{{Range: buffer.Range{Start: 2, End: 2}, Text: "c"}}, nil)
	b.MergeTransactions(id2, id1)

	require.True(t, b.UndoToTransaction(id1))
	require.Equal(t, "a", b.Snapshot().Text())
}
