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

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/buffer/textrope"
	"github.com/textform/multibuffer/internal/cursor"
	"github.com/textform/multibuffer/internal/textsum"
)

// twoExcerptSnapshot builds a document from two buffers, the second
// holding multi-byte text: "ab\ncd" + separator + "é𝄞\nx".
func twoExcerptSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	mb := New(DefaultConfig())
	a := textrope.New(1, "ab\ncd")
	b := textrope.New(2, "é𝄞\nx")
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()
	mb.buffers[2] = b
	mb.bufferVersions[2] = b.Version()
	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 5}}})
	mb.PushExcerpts(2, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: len("é𝄞\nx")}}})
	return mb.Snapshot()
}

func TestOffsetPointRoundTrip(t *testing.T) {
	snap := twoExcerptSnapshot(t)
	require.Equal(t, "ab\ncd\né𝄞\nx", snap.Text())

	require.Equal(t, OutputPoint{Row: 1, Column: 0}, snap.OffsetToPoint(3))
	require.Equal(t, OutputPoint{Row: 1, Column: 2}, snap.OffsetToPoint(5))
	require.Equal(t, OutputPoint{Row: 2, Column: 0}, snap.OffsetToPoint(6))
	require.Equal(t, uint32(3), snap.MaxRow())
	require.Equal(t, OutputPoint{Row: 3, Column: 1}, snap.MaxPoint())

	for offset := 0; offset <= snap.Len(); offset++ {
		clipped := snap.ClipOffset(offset, buffer.Left)
		p := snap.OffsetToPoint(clipped)
		require.Equal(t, clipped, snap.PointToOffset(p), "offset %d", offset)
	}
}

func TestPointToOffsetClampsColumn(t *testing.T) {
	snap := twoExcerptSnapshot(t)
	// Row 0 is "ab": a column past its end lands on the newline offset.
	require.Equal(t, 2, snap.PointToOffset(OutputPoint{Row: 0, Column: 99}))
	// A row past the last clamps to the document end.
	require.Equal(t, snap.Len(), snap.PointToOffset(OutputPoint{Row: 99, Column: 0}))
}

func TestUTF16Conversions(t *testing.T) {
	snap := twoExcerptSnapshot(t)
	// Document bytes: "ab\ncd\n" (6) + "é"(2) + "𝄞"(4) + "\nx".
	// UTF-16 units:   6          + 1       + 2        + 2.
	require.Equal(t, textsum.OffsetUTF16(6), snap.OffsetToOffsetUTF16(6))
	require.Equal(t, textsum.OffsetUTF16(7), snap.OffsetToOffsetUTF16(8))
	require.Equal(t, textsum.OffsetUTF16(9), snap.OffsetToOffsetUTF16(12))
	require.Equal(t, textsum.OffsetUTF16(11), snap.OffsetToOffsetUTF16(snap.Len()))

	for _, u := range []textsum.OffsetUTF16{0, 3, 6, 7, 9, 10, 11} {
		offset := snap.OffsetUTF16ToOffset(u)
		require.Equal(t, u, snap.OffsetToOffsetUTF16(offset), "utf16 offset %d", u)
	}
	// A target inside 𝄞's surrogate pair resolves to the rune's start.
	require.Equal(t, 8, snap.OffsetUTF16ToOffset(8))

	require.Equal(t, textsum.PointUTF16{Row: 2, Column: 1}, snap.OffsetToPointUTF16(8))
	require.Equal(t, textsum.PointUTF16{Row: 2, Column: 3}, snap.OffsetToPointUTF16(12))
	require.Equal(t, 8, snap.PointUTF16ToOffset(textsum.PointUTF16{Row: 2, Column: 1}))
	require.Equal(t, 12, snap.PointUTF16ToOffset(textsum.PointUTF16{Row: 2, Column: 3}))
}

func TestClipOffsetSnapsRuneBoundaries(t *testing.T) {
	snap := twoExcerptSnapshot(t)
	// Offset 7 is the continuation byte of "é" (which starts at 6).
	require.Equal(t, 6, snap.ClipOffset(7, buffer.Left))
	require.Equal(t, 8, snap.ClipOffset(7, buffer.Right))
	// Offsets 9..11 are continuation bytes of "𝄞" (which starts at 8).
	require.Equal(t, 8, snap.ClipOffset(10, buffer.Left))
	require.Equal(t, 12, snap.ClipOffset(10, buffer.Right))
	require.Equal(t, 0, snap.ClipOffset(-5, buffer.Left))
	require.Equal(t, snap.Len(), snap.ClipOffset(snap.Len()+3, buffer.Right))
}

func TestClipPoint(t *testing.T) {
	snap := twoExcerptSnapshot(t)
	require.Equal(t, OutputPoint{Row: 2, Column: 2}, snap.ClipPoint(OutputPoint{Row: 2, Column: 3}, buffer.Left))
	require.Equal(t, OutputPoint{Row: 2, Column: 6}, snap.ClipPoint(OutputPoint{Row: 2, Column: 5}, buffer.Right))
	require.Equal(t, snap.MaxPoint(), snap.ClipPoint(OutputPoint{Row: 42, Column: 0}, buffer.Left))
}

func TestChunksAndBytesAgree(t *testing.T) {
	snap := twoExcerptSnapshot(t)
	for _, rng := range []cursor.Range{
		{Start: 0, End: snap.Len()},
		{Start: 2, End: 8},
		{Start: 5, End: 6},
	} {
		var fromChunks []byte
		for chunk := range snap.Chunks(rng, false) {
			fromChunks = append(fromChunks, chunk.Text...)
		}
		var fromBytes []byte
		for b := range snap.BytesInRange(rng) {
			fromBytes = append(fromBytes, b)
		}
		require.Equal(t, fromBytes, fromChunks, "range %v", rng)

		var reversed []byte
		for b := range snap.ReversedBytesInRange(rng) {
			reversed = append(reversed, b)
		}
		for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
			reversed[i], reversed[j] = reversed[j], reversed[i]
		}
		require.Equal(t, fromBytes, reversed, "range %v", rng)
	}
}

func TestAnchorRoundTripMatchesClip(t *testing.T) {
	snap := twoExcerptSnapshot(t)
	for offset := 0; offset <= snap.Len(); offset++ {
		for _, bias := range []buffer.Bias{buffer.Left, buffer.Right} {
			if snap.ClipOffset(offset, bias) != offset {
				continue // mid-rune offsets are a caller error on anchor paths
			}
			a := snap.AnchorAt(offset, bias)
			require.Equal(t, offset, snap.SummaryForAnchor(a),
				"offset %d bias %v", offset, bias)
		}
	}
}

func TestReadBorrowsWithoutCloning(t *testing.T) {
	mb := New(DefaultConfig())
	a := textrope.New(1, "hello")
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()
	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 5}}})

	before := mb.EditCount()
	var seen uint64
	mb.Read(func(s *Snapshot) {
		seen = s.EditCount()
		require.Equal(t, "hello", s.Text())
	})
	require.Equal(t, before, seen)

	mb.Edit([]EditRequest{{Range: cursor.Range{Start: 5, End: 5}, NewText: "!"}}, nil)
	require.Greater(t, mb.Snapshot().EditCount(), before)
}
