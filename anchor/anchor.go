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

// Package anchor implements the stable-position system:
// positions that remain meaningful across edits to the excerpts or the
// buffers they draw from.
package anchor

import (
	"fmt"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/locator"
)

// Anchor is a position that survives edits: an excerpt, a text-native
// anchor within that excerpt's backing buffer, and, when the position
// lies inside a materialized deleted hunk, an auxiliary anchor into the
// diff base text.
type Anchor struct {
	ExcerptID      excerpttree.ID
	BufferID       buffer.ID
	TextAnchor     buffer.Anchor
	DiffBaseAnchor *BaseTextAnchor
}

// BaseTextAnchor is a position within an immutable diff base text. Base
// text never changes during its own lifetime (a diff update swaps it for
// a wholly new base wholesale), so a plain byte offset suffices.
type BaseTextAnchor struct{ Offset int }

// Compare orders two base-text anchors.
func (a *BaseTextAnchor) Compare(other *BaseTextAnchor) int { return a.Offset - other.Offset }

// Min and Max are sentinel anchors bracketing every real anchor in any
// multi-buffer.
var (
	Min = Anchor{ExcerptID: excerpttree.MinID}
	Max = Anchor{ExcerptID: excerpttree.MaxID}
)

// LocatorSource resolves an excerpt id to its current locator, needed to
// compare two anchors that live in different excerpts.
type LocatorSource interface {
	Locator(id excerpttree.ID) (locator.Locator, bool)
}

// Compare orders two anchors: first by excerpt locator, then — within
// the same excerpt — by diff-base anchor if either refers into a deleted
// hunk, otherwise by text anchor.
func Compare(a, b Anchor, src LocatorSource) int {
	if a.ExcerptID == excerpttree.MinID && b.ExcerptID != excerpttree.MinID {
		return -1
	}
	if b.ExcerptID == excerpttree.MinID && a.ExcerptID != excerpttree.MinID {
		return 1
	}
	if a.ExcerptID == excerpttree.MaxID && b.ExcerptID != excerpttree.MaxID {
		return 1
	}
	if b.ExcerptID == excerpttree.MaxID && a.ExcerptID != excerpttree.MaxID {
		return -1
	}
	if a.ExcerptID != b.ExcerptID {
		la, _ := src.Locator(a.ExcerptID)
		lb, _ := src.Locator(b.ExcerptID)
		return locator.Compare(la, lb)
	}
	if a.DiffBaseAnchor != nil && b.DiffBaseAnchor != nil {
		return a.DiffBaseAnchor.Compare(b.DiffBaseAnchor)
	}
	if a.DiffBaseAnchor != nil {
		return -1
	}
	if b.DiffBaseAnchor != nil {
		return 1
	}
	if a.TextAnchor == nil || b.TextAnchor == nil {
		return 0
	}
	return a.TextAnchor.Compare(b.TextAnchor)
}

// String renders a debug form.
func (a Anchor) String() string {
	if a.DiffBaseAnchor != nil {
		return fmt.Sprintf("excerpt(%d)/base(%d)", a.ExcerptID, a.DiffBaseAnchor.Offset)
	}
	if a.TextAnchor == nil {
		return fmt.Sprintf("excerpt(%d)/<sentinel>", a.ExcerptID)
	}
	return fmt.Sprintf("excerpt(%d)/%s", a.ExcerptID, a.TextAnchor.String())
}
