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

package sumtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// intSum is the smallest Summary that lets the tests exercise seeking by
// accumulated length.
type intSum struct{ n int }

func (s intSum) Add(other intSum) intSum { return intSum{n: s.n + other.n} }

// testItem is keyed by an integer (its sort position) and its summary is
// its len field, so the tree behaves like a sequence of variable-length
// slots addressable both by key and by running offset.
type testItem struct {
	key int
	len int
}

func (it testItem) Key() int          { return it.key }
func (it testItem) Summary() intSum   { return intSum{n: it.len} }

func newTestTree(items ...testItem) *Tree[int, intSum, testItem] {
	tree := New[int, intSum, testItem](intSum{})
	for _, it := range items {
		tree.Set(it)
	}
	return tree
}

func TestEmptyTreeTotalIsZero(t *testing.T) {
	tree := New[int, intSum, testItem](intSum{})
	require.Equal(t, 0, tree.Len())
	require.Equal(t, intSum{}, tree.Total())
}

func TestSetOrdersByKeyRegardlessOfInsertionOrder(t *testing.T) {
	tree := newTestTree(
		testItem{key: 30, len: 3},
		testItem{key: 10, len: 1},
		testItem{key: 20, len: 2},
	)
	require.Equal(t, 3, tree.Len())

	var keys []int
	for _, it := range tree.Items() {
		keys = append(keys, it.key)
	}
	require.Equal(t, []int{10, 20, 30}, keys)
	require.Equal(t, intSum{n: 6}, tree.Total())
}

func TestGetMissingKeyReturnsFalse(t *testing.T) {
	tree := newTestTree(testItem{key: 1, len: 1})
	_, ok := tree.Get(99)
	require.False(t, ok)
}

func TestDeleteRemovesItemAndUpdatesTotal(t *testing.T) {
	tree := newTestTree(testItem{key: 1, len: 1}, testItem{key: 2, len: 2})
	tree.Delete(1)
	require.Equal(t, 1, tree.Len())
	require.Equal(t, intSum{n: 2}, tree.Total())
	_, ok := tree.Get(1)
	require.False(t, ok)
}

func TestCloneIsIndependentOfSubsequentMutation(t *testing.T) {
	tree := newTestTree(testItem{key: 1, len: 1})
	clone := tree.Clone()

	tree.Set(testItem{key: 2, len: 2})
	require.Equal(t, 2, tree.Len())
	require.Equal(t, 1, clone.Len())
	require.Equal(t, intSum{n: 1}, clone.Total())
}

func TestSpliceReplacesKeyRangeWithNewItems(t *testing.T) {
	tree := newTestTree(
		testItem{key: 1, len: 1},
		testItem{key: 2, len: 1},
		testItem{key: 3, len: 1},
		testItem{key: 5, len: 1},
	)
	tree.Splice(2, 4, []testItem{{key: 2, len: 10}})

	var keys []int
	for _, it := range tree.Items() {
		keys = append(keys, it.key)
	}
	require.Equal(t, []int{1, 2, 5}, keys)
	require.Equal(t, intSum{n: 12}, tree.Total())
}

func TestCursorSeekFindsFirstItemAtOrAfterKey(t *testing.T) {
	tree := newTestTree(testItem{key: 10, len: 1}, testItem{key: 20, len: 1}, testItem{key: 30, len: 1})

	c := tree.Cursor()
	require.True(t, c.Seek(15))
	require.Equal(t, 20, c.Item().key)

	c2 := tree.Cursor()
	require.True(t, c2.Seek(20))
	require.Equal(t, 20, c2.Item().key)

	c3 := tree.Cursor()
	require.False(t, c3.Seek(100))
	require.False(t, c3.Valid())
}

func TestCursorSeekSummaryFindsOwningItemByRunningTotal(t *testing.T) {
	tree := newTestTree(testItem{key: 0, len: 3}, testItem{key: 1, len: 4}, testItem{key: 2, len: 2})

	// Offset 5 (0-indexed) falls inside the second item ([3,7)).
	c := tree.Cursor()
	require.True(t, c.SeekSummary(func(through intSum) bool { return through.n <= 5 }))
	require.Equal(t, 1, c.Item().key)
	require.Equal(t, intSum{n: 3}, c.PrefixSummary())

	// A target past the tree's total length finds nothing.
	c2 := tree.Cursor()
	require.False(t, c2.SeekSummary(func(through intSum) bool { return through.n <= 100 }))
}

func TestCursorNextPrevWalksInKeyOrder(t *testing.T) {
	tree := newTestTree(testItem{key: 1, len: 1}, testItem{key: 2, len: 1}, testItem{key: 3, len: 1})

	c := tree.Cursor()
	require.True(t, c.Next())
	require.Equal(t, 1, c.Item().key)
	require.True(t, c.Next())
	require.Equal(t, 2, c.Item().key)
	require.True(t, c.Prev())
	require.Equal(t, 1, c.Item().key)
	require.False(t, c.Prev())
	require.False(t, c.Valid())
}

func TestCursorAtEndAfterLastItem(t *testing.T) {
	tree := newTestTree(testItem{key: 1, len: 1})
	c := tree.Cursor()
	require.False(t, c.AtEnd())
	c.Next()
	require.False(t, c.AtEnd())
	c.Next()
	require.True(t, c.AtEnd())
}

func TestPrefixSummaryAccumulatesPrecedingItemsOnly(t *testing.T) {
	tree := newTestTree(testItem{key: 1, len: 2}, testItem{key: 2, len: 3}, testItem{key: 3, len: 4})

	c := tree.Cursor()
	require.True(t, c.Seek(2))
	require.Equal(t, intSum{n: 2}, c.PrefixSummary())

	require.True(t, c.Next())
	require.Equal(t, intSum{n: 5}, c.PrefixSummary())
}
