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
	"fmt"
	"sort"
)

// Tree is the diff-transform tree: a sequence of Transforms, each
// carrying a {input, output} summary, queryable by prefix sum in either
// the excerpt-space ("input") or output-space ("output") dimension.
//
// Unlike the excerpt tree, transforms have no intrinsic stable key —
// their order *is* their identity, and a rebuild (see rebuild.go) always
// reconstructs the affected slice wholesale. So, unlike internal/sumtree,
// this is a flat slice with an eagerly recomputed prefix-sum cache,
// without the extra indirection of a key-ordered backing store.
type Tree struct {
	items  []Transform
	prefix []Summary // prefix[i] = sum of items[0:i]
}

// Empty returns a tree with a single empty BufferContent transform, the
// canonical representation of an empty document.
func Empty() *Tree {
	return &Tree{items: []Transform{NewBufferContent(0, Zero.Input, nil)}, prefix: []Summary{Zero}}
}

// FromItems builds a tree from a pre-built, already-coalesced item slice.
func FromItems(items []Transform) *Tree {
	t := &Tree{}
	t.setItems(items)
	return t
}

func (t *Tree) setItems(items []Transform) {
	if len(items) == 0 {
		items = []Transform{NewBufferContent(0, Zero.Input, nil)}
	}
	t.items = items
	t.prefix = make([]Summary, len(items))
	running := Zero
	for i, it := range items {
		t.prefix[i] = running
		running = running.Add(it.Summary())
	}
}

// Len returns the number of transforms.
func (t *Tree) Len() int { return len(t.items) }

// Items returns the transforms in order. Must not be mutated.
func (t *Tree) Items() []Transform { return t.items }

// Total returns the summary of the whole tree.
func (t *Tree) Total() Summary {
	if len(t.items) == 0 {
		return Zero
	}
	return t.prefix[len(t.prefix)-1].Add(t.items[len(t.items)-1].Summary())
}

// Clone returns an independent copy: both slices are copied, while the
// Transform values in them are immutable once constructed and so need no
// deeper copy.
func (t *Tree) Clone() *Tree {
	clone := &Tree{
		items:  append([]Transform(nil), t.items...),
		prefix: append([]Summary(nil), t.prefix...),
	}
	return clone
}

// Cursor returns a new cursor positioned before the first transform.
func (t *Tree) Cursor() *Cursor { return &Cursor{tree: t, index: -1} }

// Cursor tracks a position in the transform tree plus the accumulated
// {input, output} prefix summary of everything strictly before it.
type Cursor struct {
	tree  *Tree
	index int
}

// SeekInput moves the cursor to the transform containing input-space
// offset, returning whether such a transform exists.
func (c *Cursor) SeekInput(offset int) bool {
	idx := sort.Search(len(c.tree.items), func(i int) bool {
		return c.tree.prefix[i].Input.Bytes+c.tree.items[i].Summary().Input.Bytes > offset
	})
	c.index = idx
	return c.Valid()
}

// SeekOutput is the output-space counterpart of SeekInput.
func (c *Cursor) SeekOutput(offset int) bool {
	idx := sort.Search(len(c.tree.items), func(i int) bool {
		return c.tree.prefix[i].Output.Bytes+c.tree.items[i].Summary().Output.Bytes > offset
	})
	c.index = idx
	return c.Valid()
}

// Valid reports whether the cursor currently points at a transform.
func (c *Cursor) Valid() bool { return c.index >= 0 && c.index < len(c.tree.items) }

// AtEnd reports whether the cursor has run past the last transform.
func (c *Cursor) AtEnd() bool { return c.index >= len(c.tree.items) }

// Item returns the transform at the cursor's position. Panics if !Valid().
func (c *Cursor) Item() Transform { return c.tree.items[c.index] }

// Index returns the cursor's raw position in the transform slice.
func (c *Cursor) Index() int { return c.index }

// PrefixSummary returns the accumulated summary of everything strictly
// before the cursor.
func (c *Cursor) PrefixSummary() Summary {
	if c.index <= 0 {
		return Zero
	}
	if c.index >= len(c.tree.prefix) {
		return c.tree.Total()
	}
	return c.tree.prefix[c.index]
}

// Next advances the cursor by one transform.
func (c *Cursor) Next() bool {
	if c.index < len(c.tree.items) {
		c.index++
	}
	return c.Valid()
}

// Prev moves the cursor back by one transform.
func (c *Cursor) Prev() bool {
	if c.index > 0 {
		c.index--
	} else {
		c.index = -1
	}
	return c.Valid()
}

// CheckInvariants asserts the tree-level invariants: no two adjacent
// BufferContent transforms share the same InsertedHunk (they must have
// been coalesced on emit), and no BufferContent
// transform is empty unless it is the tree's sole transform (the canonical
// empty-document representation built by Empty()).
func (t *Tree) CheckInvariants() error {
	for i, it := range t.items {
		if it.IsEmptyBufferContent() && len(t.items) > 1 {
			return fmt.Errorf("transform: empty BufferContent at index %d in a non-empty document", i)
		}
		if i == 0 {
			continue
		}
		prev := t.items[i-1]
		if prev.Kind == BufferContentKind && it.Kind == BufferContentKind && prev.InsertedHunk.Equal(it.InsertedHunk) {
			return fmt.Errorf("transform: adjacent BufferContent transforms at index %d/%d share InsertedHunk and should have been coalesced", i-1, i)
		}
	}
	return nil
}
