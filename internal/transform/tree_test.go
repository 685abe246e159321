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

package transform

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/textsum"
)

func TestEmptyTreeHasOneZeroTransform(t *testing.T) {
	tree := Empty()
	require.Equal(t, 1, tree.Len())
	require.Equal(t, Zero, tree.Total())
}

func TestTotalSumsInputAndOutputAcrossKinds(t *testing.T) {
	content := NewBufferContent(3, textsum.OfBytes([]byte("abc")), nil)
	deleted := NewDeletedHunk(1, buffer.Range{Start: 0, End: 2}, textsum.OfBytes([]byte("xy")), true, nil)
	tree := FromItems([]Transform{content, deleted})

	total := tree.Total()
	require.Equal(t, 3, total.Input.Bytes) // deleted hunk contributes nothing to Input
	require.Equal(t, 6, total.Output.Bytes) // "abc" + "xy\n"
}

func TestSeekInputFindsOwningTransform(t *testing.T) {
	content1 := NewBufferContent(3, textsum.OfBytes([]byte("abc")), nil)
	content2 := NewBufferContent(4, textsum.OfBytes([]byte("defg")), nil)
	tree := FromItems([]Transform{content1, content2})

	c := tree.Cursor()
	require.True(t, c.SeekInput(0))
	require.Equal(t, 0, c.Index())

	c2 := tree.Cursor()
	require.True(t, c2.SeekInput(3))
	require.Equal(t, 1, c2.Index())
	require.Equal(t, 3, c2.PrefixSummary().Input.Bytes)

	c3 := tree.Cursor()
	require.False(t, c3.SeekInput(100))
}

func TestSeekOutputSkipsDeletedHunkInInputSpaceButNotOutputSpace(t *testing.T) {
	deleted := NewDeletedHunk(1, buffer.Range{Start: 0, End: 2}, textsum.OfBytes([]byte("xy")), false, nil)
	content := NewBufferContent(3, textsum.OfBytes([]byte("abc")), nil)
	tree := FromItems([]Transform{deleted, content})

	// In input space, the deleted hunk contributes zero length, so offset 0
	// lands directly on the BufferContent transform.
	ci := tree.Cursor()
	require.True(t, ci.SeekInput(0))
	require.Equal(t, 1, ci.Index())

	// In output space, the deleted hunk's two bytes come first.
	co := tree.Cursor()
	require.True(t, co.SeekOutput(0))
	require.Equal(t, 0, co.Index())
	co2 := tree.Cursor()
	require.True(t, co2.SeekOutput(2))
	require.Equal(t, 1, co2.Index())
}

func TestCursorNextPrevWalksTree(t *testing.T) {
	tree := FromItems([]Transform{
		NewBufferContent(1, textsum.OfBytes([]byte("a")), nil),
		NewBufferContent(1, textsum.OfBytes([]byte("b")), nil),
		NewBufferContent(1, textsum.OfBytes([]byte("c")), nil),
	})
	c := tree.Cursor()
	require.True(t, c.Next())
	require.Equal(t, 0, c.Index())
	require.True(t, c.Next())
	require.Equal(t, 1, c.Index())
	require.True(t, c.Prev())
	require.Equal(t, 0, c.Index())
	require.False(t, c.Prev())
	require.False(t, c.Valid())
}

func TestHunkInfoEqualComparesTaggedFields(t *testing.T) {
	var a, b *HunkInfo
	require.True(t, a.Equal(b))

	a = &HunkInfo{ExcerptID: 1}
	require.False(t, a.Equal(b))
	b = &HunkInfo{ExcerptID: 1}
	// StartAnchor is nil on both — Compare would panic on a nil interface,
	// so this test only exercises the ExcerptID/Secondary/Status fields via
	// a fake anchor.
	a.StartAnchor = fakeAnchor(0)
	b.StartAnchor = fakeAnchor(0)
	require.True(t, a.Equal(b))
	b.Secondary = true
	require.False(t, a.Equal(b))
}

type fakeAnchor int

func (f fakeAnchor) String() string { return "" }
func (f fakeAnchor) Compare(other buffer.Anchor) int {
	o := other.(fakeAnchor)
	return int(f) - int(o)
}

func TestIsEmptyBufferContent(t *testing.T) {
	empty := NewBufferContent(0, textsum.Zero, nil)
	nonEmpty := NewBufferContent(1, textsum.OfBytes([]byte("a")), nil)
	deleted := NewDeletedHunk(1, buffer.Range{}, textsum.Zero, false, nil)
	require.True(t, empty.IsEmptyBufferContent())
	require.False(t, nonEmpty.IsEmptyBufferContent())
	require.False(t, deleted.IsEmptyBufferContent())
}
