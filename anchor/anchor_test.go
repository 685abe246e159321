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

package anchor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/buffer/textrope"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/transform"
	"github.com/textform/multibuffer/locator"
)

// testDeps adapts a single backing buffer plus an excerpt tree to the
// Deps/LocatorSource interfaces these tests need. locs retains removed
// excerpts' last-known locators the way the controller's IDMap does.
type testDeps struct {
	bufs     map[buffer.ID]buffer.Buffer
	excerpts *excerpttree.Tree
	locs     map[excerpttree.ID]locator.Locator
}

func (d testDeps) BufferAnchorAt(bufferID buffer.ID, offset int, bias buffer.Bias) buffer.Anchor {
	return d.bufs[bufferID].AnchorAt(offset, bias)
}

func (d testDeps) BufferOffsetForAnchor(bufferID buffer.ID, a buffer.Anchor) int {
	return d.bufs[bufferID].OffsetForAnchor(a)
}

func (d testDeps) Locator(id excerpttree.ID) (locator.Locator, bool) {
	if e, ok := d.excerpts.ByID(id); ok {
		return e.Loc, true
	}
	loc, ok := d.locs[id]
	return loc, ok
}

func buildSingleExcerptFixture(t *testing.T, text string) (*excerpttree.Tree, *transform.Tree, testDeps, buffer.Buffer) {
	t.Helper()
	buf := textrope.New(1, text)
	tree := excerpttree.New()
	inserted, _ := tree.InsertAfter(nil, nil, []excerpttree.Excerpt{{
		BufferID: 1,
		Buffer:   buf.Snapshot(),
		Context: excerpttree.ExcerptRange{
			Start: buf.AnchorAt(0, buffer.Left),
			End:   buf.AnchorAt(len(text), buffer.Right),
		},
		ContextOffsets: buffer.Range{Start: 0, End: len(text)},
		TextSummary:    buf.TextSummaryForRange(buffer.Range{Start: 0, End: len(text)}),
	}})
	require.Len(t, inserted, 1)

	transforms := transform.FromItems([]transform.Transform{
		transform.NewBufferContent(len(text), buf.TextSummaryForRange(buffer.Range{Start: 0, End: len(text)}), nil),
	})

	deps := testDeps{bufs: map[buffer.ID]buffer.Buffer{1: buf}, excerpts: tree}
	return tree, transforms, deps, buf
}

func TestAtAndSummaryForAnchorRoundTrip(t *testing.T) {
	tree, transforms, deps, _ := buildSingleExcerptFixture(t, "hello world")

	for _, offset := range []int{0, 5, 11} {
		a := At(tree, transforms, deps, offset, buffer.Left)
		got := SummaryForAnchor(tree, transforms, deps, a)
		require.Equal(t, offset, got, "offset %d", offset)
	}
}

func TestAtPastEndReturnsLastExcerptAnchor(t *testing.T) {
	tree, transforms, deps, _ := buildSingleExcerptFixture(t, "abc")
	a := At(tree, transforms, deps, 100, buffer.Right)
	require.Equal(t, excerpttree.ID(1), a.ExcerptID)
}

func TestRefreshKeepsPositionWhenExcerptSurvivesAndOffsetStillInRange(t *testing.T) {
	tree, _, deps, _ := buildSingleExcerptFixture(t, "abcdef")
	a := Anchor{ExcerptID: 1, BufferID: 1, TextAnchor: deps.bufs[1].AnchorAt(2, buffer.Left)}

	results := Refresh(tree, deps, []Anchor{a})
	require.Len(t, results, 1)
	require.True(t, results[0].KeptPosition)
	require.Equal(t, a.ExcerptID, results[0].Anchor.ExcerptID)
}

func TestRefreshFallsBackToNeighborWhenExcerptRemoved(t *testing.T) {
	buf1 := textrope.New(1, "xxx")
	buf2 := textrope.New(2, "yyy")
	tree := excerpttree.New()
	inserted1, _ := tree.InsertAfter(nil, nil, []excerpttree.Excerpt{{
		BufferID:       1,
		Buffer:         buf1.Snapshot(),
		Context:        excerpttree.ExcerptRange{Start: buf1.AnchorAt(0, buffer.Left), End: buf1.AnchorAt(3, buffer.Right)},
		ContextOffsets: buffer.Range{Start: 0, End: 3},
		TextSummary:    buf1.TextSummaryForRange(buffer.Range{Start: 0, End: 3}),
	}})
	inserted2, _ := tree.InsertAfter(inserted1[0].Loc, nil, []excerpttree.Excerpt{{
		BufferID:       2,
		Buffer:         buf2.Snapshot(),
		Context:        excerpttree.ExcerptRange{Start: buf2.AnchorAt(0, buffer.Left), End: buf2.AnchorAt(3, buffer.Right)},
		ContextOffsets: buffer.Range{Start: 0, End: 3},
		TextSummary:    buf2.TextSummaryForRange(buffer.Range{Start: 0, End: 3}),
	}})

	deps := testDeps{
		bufs:     map[buffer.ID]buffer.Buffer{1: buf1, 2: buf2},
		excerpts: tree,
		locs:     map[excerpttree.ID]locator.Locator{inserted2[0].ID: inserted2[0].Loc},
	}
	a := Anchor{ExcerptID: inserted2[0].ID, BufferID: 2, TextAnchor: buf2.AnchorAt(0, buffer.Left)}

	tree.Remove([]excerpttree.ID{inserted2[0].ID})

	results := Refresh(tree, deps, []Anchor{a})
	require.Len(t, results, 1)
	require.False(t, results[0].KeptPosition)
	require.Equal(t, inserted1[0].ID, results[0].Anchor.ExcerptID)
}

func TestRefreshPrefersPositionallyNextExcerptAfterRemoval(t *testing.T) {
	bufs := map[buffer.ID]buffer.Buffer{}
	tree := excerpttree.New()
	locs := map[excerpttree.ID]locator.Locator{}
	var ids []excerpttree.ID

	// Five excerpts A..E, one backing buffer each.
	for i := 0; i < 5; i++ {
		id := buffer.ID(i + 1)
		buf := textrope.New(id, "text")
		bufs[id] = buf
		var prevLoc locator.Locator
		if last, ok := tree.Last(); ok {
			prevLoc = last.Loc
		}
		inserted, _ := tree.InsertAfter(prevLoc, nil, []excerpttree.Excerpt{{
			BufferID:       id,
			Buffer:         buf.Snapshot(),
			Context:        excerpttree.ExcerptRange{Start: buf.AnchorAt(0, buffer.Left), End: buf.AnchorAt(4, buffer.Right)},
			ContextOffsets: buffer.Range{Start: 0, End: 4},
			TextSummary:    buf.TextSummaryForRange(buffer.Range{Start: 0, End: 4}),
		}})
		locs[inserted[0].ID] = inserted[0].Loc
		ids = append(ids, inserted[0].ID)
	}

	deps := testDeps{bufs: bufs, excerpts: tree, locs: locs}
	removedC := ids[2]
	a := Anchor{ExcerptID: removedC, BufferID: 3, TextAnchor: bufs[3].AnchorAt(2, buffer.Left)}

	tree.Remove([]excerpttree.ID{removedC})

	// The anchor must land in D, the excerpt now adjacent to where C
	// used to sit — not in the document's last excerpt.
	results := Refresh(tree, deps, []Anchor{a})
	require.Len(t, results, 1)
	require.False(t, results[0].KeptPosition)
	require.Equal(t, ids[3], results[0].Anchor.ExcerptID)
	require.Equal(t, 0, deps.BufferOffsetForAnchor(4, results[0].Anchor.TextAnchor))
}

func TestMinMaxSentinelsKeepPositionOnRefresh(t *testing.T) {
	tree, _, deps, _ := buildSingleExcerptFixture(t, "abc")
	results := Refresh(tree, deps, []Anchor{Min, Max})
	require.True(t, results[0].KeptPosition)
	require.True(t, results[1].KeptPosition)
	require.Equal(t, Min, results[0].Anchor)
	require.Equal(t, Max, results[1].Anchor)
}

func TestCompareOrdersByExcerptLocatorThenTextAnchor(t *testing.T) {
	_, _, deps, buf := buildSingleExcerptFixture(t, "abcdef")
	low := Anchor{ExcerptID: 1, BufferID: 1, TextAnchor: buf.AnchorAt(1, buffer.Left)}
	high := Anchor{ExcerptID: 1, BufferID: 1, TextAnchor: buf.AnchorAt(4, buffer.Left)}
	require.True(t, Compare(low, high, deps) < 0)
	require.True(t, Compare(high, low, deps) > 0)
	require.Equal(t, 0, Compare(low, low, deps))
	require.True(t, Compare(Min, low, deps) < 0)
	require.True(t, Compare(Max, low, deps) > 0)
}
