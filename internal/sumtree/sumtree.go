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

// Package sumtree implements the order-statistic "sum-tree" that backs the
// excerpt tree: an ordered
// sequence of items, each carrying a Summary, such that the tree can be
// queried either by key order or by accumulated summary ("seek to the item
// containing output-offset 900").
//
// The ordered store itself is a [github.com/tidwall/btree.Map]; on top
// of it we keep a flat, eagerly-recomputed prefix-summary cache so that
// dimension seeks
// (SeekSummary) scan a flat slice instead of re-walking the whole map. The
// cache is rebuilt (and sorted) whenever the tree is mutated, which makes
// mutation O(n log n) — acceptable here because multi-buffer excerpt counts are small
// (tens to low hundreds); a future revision could thread partial sums
// through btree's
// own node pages instead.
package sumtree

import (
	"sort"

	"github.com/tidwall/btree"
	"golang.org/x/exp/constraints" //nolint:exptostd // Tries to replace w/ cmp.
)

// Summary is an associative (but not necessarily commutative) aggregate.
type Summary[S any] interface {
	Add(S) S
}

// Item is a value that can be stored in a Tree: it must know its own key
// (for ordering) and its own summary (for aggregation).
type Item[K constraints.Ordered, S any] interface {
	Key() K
	Summary() S
}

// Tree is an ordered, summary-augmented sequence of items.
//
// The zero value is an empty tree, ready to use.
type Tree[K constraints.Ordered, S Summary[S], T Item[K, S]] struct {
	byKey  btree.Map[K, T]
	order  []K // cached key order, parallel to prefix
	prefix []S // prefix[i] = sum of summaries of order[0:i]
	zero   S
}

// New constructs an empty Tree. zero must be the identity element for S's
// Add (i.e. zero.Add(s) == s for all s).
func New[K constraints.Ordered, S Summary[S], T Item[K, S]](zero S) *Tree[K, S, T] {
	return &Tree[K, S, T]{zero: zero}
}

// Len returns the number of items in the tree.
func (t *Tree[K, S, T]) Len() int { return t.byKey.Len() }

// Total returns the summary of the entire tree.
func (t *Tree[K, S, T]) Total() S {
	if len(t.prefix) == 0 {
		return t.zero
	}
	last, ok := t.Get(t.order[len(t.order)-1])
	if !ok {
		return t.zero
	}
	return t.prefix[len(t.prefix)-1].Add(last.Summary())
}

// Get looks up the item with the given key.
func (t *Tree[K, S, T]) Get(key K) (T, bool) {
	return t.byKey.Get(key)
}

// Set inserts or replaces the item at its own key.
func (t *Tree[K, S, T]) Set(item T) {
	t.byKey.Set(item.Key(), item)
	t.rebuild()
}

// Delete removes the item with the given key, if present.
func (t *Tree[K, S, T]) Delete(key K) {
	t.byKey.Delete(key)
	t.rebuild()
}

// Clone returns a cheap structural copy: mutating the clone does not affect
// the receiver and vice versa. This backs the multi-buffer's snapshot
// mechanism.
func (t *Tree[K, S, T]) Clone() *Tree[K, S, T] {
	clone := &Tree[K, S, T]{
		byKey: *t.byKey.Copy(),
		zero:  t.zero,
	}
	clone.order = append([]K(nil), t.order...)
	clone.prefix = append([]S(nil), t.prefix...)
	return clone
}

// Items returns all items in key order. The returned slice must not be
// mutated.
func (t *Tree[K, S, T]) Items() []T {
	out := make([]T, 0, len(t.order))
	for _, k := range t.order {
		v, ok := t.Get(k)
		if ok {
			out = append(out, v)
		}
	}
	return out
}

// Splice removes every item with key in [startKey, endKey) (by key order)
// and inserts the given replacement items (which must be in increasing key
// order, and whose keys must fit in the gap being replaced) in their place.
func (t *Tree[K, S, T]) Splice(startKey, endKey K, replacements []T) {
	toDelete := make([]K, 0)
	iter := t.byKey.Iter()
	if iter.Seek(startKey) {
		for {
			k := iter.Key()
			if k >= endKey {
				break
			}
			toDelete = append(toDelete, k)
			if !iter.Next() {
				break
			}
		}
	}
	for _, k := range toDelete {
		t.byKey.Delete(k)
	}
	for _, item := range replacements {
		t.byKey.Set(item.Key(), item)
	}
	t.rebuild()
}

// rebuild recomputes the key-order cache and the prefix-summary cache after
// a mutation. O(n log n) due to the sort; n is expected to be small.
func (t *Tree[K, S, T]) rebuild() {
	n := t.byKey.Len()
	order := make([]K, 0, n)
	t.byKey.Scan(func(k K, _ T) bool {
		order = append(order, k)
		return true
	})
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	prefix := make([]S, n)
	running := t.zero
	for i, k := range order {
		prefix[i] = running
		v, _ := t.Get(k)
		running = running.Add(v.Summary())
	}
	t.order = order
	t.prefix = prefix
}

// Cursor returns a new Cursor positioned before the first item.
func (t *Tree[K, S, T]) Cursor() *Cursor[K, S, T] {
	return &Cursor[K, S, T]{tree: t, index: -1}
}

// Cursor is a position within a Tree, together with the accumulated
// summary of every item strictly before that position ("summary so far").
// A Cursor is only valid for the Tree (and specific mutation-generation)
// it was created from; mutating the tree invalidates outstanding cursors
// the way tidwall/btree's own iterators are invalidated by mutation.
type Cursor[K constraints.Ordered, S Summary[S], T Item[K, S]] struct {
	tree  *Tree[K, S, T]
	index int // -1 = before first item
}

// Seek moves the cursor to the first item whose key is >= key, returning
// whether such an item exists.
func (c *Cursor[K, S, T]) Seek(key K) bool {
	idx := sort.Search(len(c.tree.order), func(i int) bool { return c.tree.order[i] >= key })
	c.index = idx
	return idx < len(c.tree.order)
}

// SeekSummary moves the cursor to the first item whose summary range
// (accumulated through and including that item) satisfies the target:
// shouldAdvance receives the running summary through the current item
// (prefix-before plus that item's own Summary) and should report whether
// the target dimension has not yet been reached, i.e. whether the cursor
// should advance past the current item. The cursor ends up positioned at
// the first item for which shouldAdvance(throughItem) is false — the
// first item whose end reaches or passes the target.
func (c *Cursor[K, S, T]) SeekSummary(shouldAdvance func(through S) bool) bool {
	i := 0
	for i < len(c.tree.order) {
		v, _ := c.tree.Get(c.tree.order[i])
		through := c.tree.prefix[i].Add(v.Summary())
		if !shouldAdvance(through) {
			break
		}
		i++
	}
	c.index = i
	return i < len(c.tree.order)
}

// Valid reports whether the cursor is positioned at an item (as opposed to
// past the end).
func (c *Cursor[K, S, T]) Valid() bool {
	return c.index >= 0 && c.index < len(c.tree.order)
}

// Item returns the item at the cursor's current position. Panics if
// !Valid().
func (c *Cursor[K, S, T]) Item() T {
	v, _ := c.tree.Get(c.tree.order[c.index])
	return v
}

// PrefixSummary returns the accumulated summary of every item strictly
// before the cursor's current position.
func (c *Cursor[K, S, T]) PrefixSummary() S {
	if c.index <= 0 {
		return c.tree.zero
	}
	if c.index >= len(c.tree.prefix) {
		return c.tree.Total()
	}
	return c.tree.prefix[c.index]
}

// Next advances the cursor by one item, returning whether it now points at
// a valid item.
func (c *Cursor[K, S, T]) Next() bool {
	if c.index < len(c.tree.order) {
		c.index++
	}
	return c.Valid()
}

// Prev moves the cursor back by one item, returning whether it now points
// at a valid item.
func (c *Cursor[K, S, T]) Prev() bool {
	if c.index > 0 {
		c.index--
	} else {
		c.index = -1
	}
	return c.Valid()
}

// AtEnd reports whether the cursor has run off the end of the tree.
func (c *Cursor[K, S, T]) AtEnd() bool {
	return c.index >= len(c.tree.order)
}
