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

// Package cursor implements the joint excerpt/transform traversal:
// a single cursor over the output coordinate space that,
// at any position, can report which excerpt and which buffer range
// produced the text there.
package cursor

import (
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/excerpttree"
)

// Range is a half-open [Start, End) span in output-space byte offsets.
type Range struct {
	Start, End int
}

// Len returns End - Start.
func (r Range) Len() int { return r.End - r.Start }

// Region is what the cursor yields at a position: the span of output
// text produced by one contiguous run of one buffer's content.
type Region struct {
	BufferID     buffer.ID
	IsMainBuffer bool
	// DiffHunkStatus is nil for a region untagged by any hunk.
	DiffHunkStatus *diffprovider.HunkStatus

	Excerpt excerpttree.Excerpt

	// BufferRange is this region's extent in BufferID's byte space: the
	// live buffer when IsMainBuffer, the diff base text otherwise.
	BufferRange buffer.Range

	// OutputRange is this region's extent in output space.
	OutputRange Range

	// HasTrailingNewline reports whether this region ends with a
	// synthetic trailing newline not present in the backing text itself.
	HasTrailingNewline bool
}

// IsEmpty reports whether the region spans zero output bytes.
func (r Region) IsEmpty() bool { return r.OutputRange.Len() == 0 }
