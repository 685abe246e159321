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
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/textsum"
	"github.com/textform/multibuffer/internal/transform"
	"github.com/textform/multibuffer/locator"
)

// rebuildDeps adapts a MultiBuffer to transform.Deps, narrowing the
// controller's buffer/diff maps to exactly what a rebuild needs.
type rebuildDeps struct{ mb *MultiBuffer }

func (d rebuildDeps) ExcerptAt(offset int) (excerpttree.Excerpt, int, bool) {
	return d.mb.excerpts.SeekOffset(offset)
}

func (d rebuildDeps) Hunks(bufferID buffer.ID, rng buffer.Range) []diffprovider.Hunk {
	provider, ok := d.mb.diffs[bufferID]
	if !ok {
		return nil
	}
	var out []diffprovider.Hunk
	for h := range provider.HunksIntersectingRange(rng) {
		out = append(out, h)
	}
	return out
}

func (d rebuildDeps) BufferTextSummary(bufferID buffer.ID, rng buffer.Range) textsum.Summary {
	buf, ok := d.mb.buffers[bufferID]
	if !ok || rng.Len() <= 0 {
		return textsum.Zero
	}
	return buf.TextSummaryForRange(rng)
}

func (d rebuildDeps) BaseTextSummary(bufferID buffer.ID, rng buffer.Range) textsum.Summary {
	provider, ok := d.mb.diffs[bufferID]
	if !ok {
		return textsum.Zero
	}
	base, hasBase := provider.BaseText()
	if !hasBase || rng.Len() <= 0 {
		return textsum.Zero
	}
	return textsum.OfBytes([]byte(base[rng.Start:rng.End]))
}

func (d rebuildDeps) BaseEndsWithNewline(bufferID buffer.ID, offset int) bool {
	provider, ok := d.mb.diffs[bufferID]
	if !ok {
		return false
	}
	base, hasBase := provider.BaseText()
	if !hasBase || offset <= 0 || offset > len(base) {
		return false
	}
	return base[offset-1] == '\n'
}

func (d rebuildDeps) AnchorValid(bufferID buffer.ID, a buffer.Anchor) bool {
	buf, ok := d.mb.buffers[bufferID]
	if !ok || a == nil {
		return false
	}
	offset := buf.OffsetForAnchor(a)
	return offset >= 0 && offset <= buf.Snapshot().Len()
}

func (d rebuildDeps) AnchorAt(bufferID buffer.ID, offset int, bias buffer.Bias) buffer.Anchor {
	buf, ok := d.mb.buffers[bufferID]
	if !ok {
		return nil
	}
	return buf.AnchorAt(offset, bias)
}

func (d rebuildDeps) AnchorOffset(bufferID buffer.ID, a buffer.Anchor) int {
	buf, ok := d.mb.buffers[bufferID]
	if !ok || a == nil {
		return -1
	}
	return buf.OffsetForAnchor(a)
}

// anchorDeps adapts a MultiBuffer to anchor.Deps.
type anchorDeps struct{ mb *MultiBuffer }

func (d anchorDeps) Locator(id excerpttree.ID) (locator.Locator, bool) {
	loc, err := d.mb.idmap.Locator(id)
	return loc, err == nil
}

func (d anchorDeps) BufferAnchorAt(bufferID buffer.ID, offset int, bias buffer.Bias) buffer.Anchor {
	buf, ok := d.mb.buffers[bufferID]
	if !ok {
		return nil
	}
	return buf.AnchorAt(offset, bias)
}

func (d anchorDeps) BufferOffsetForAnchor(bufferID buffer.ID, a buffer.Anchor) int {
	buf, ok := d.mb.buffers[bufferID]
	if !ok || a == nil {
		return 0
	}
	return buf.OffsetForAnchor(a)
}

// rebuild runs transform.Rebuild against mb's current state and swaps in
// the result. The new tree is only published once Rebuild returns, so a
// failed rebuild leaves the old tree intact.
func (mb *MultiBuffer) rebuild(edits []excerpttree.ExcerptEdit, change transform.Change) []transform.OutputEdit {
	if len(edits) == 0 {
		return nil
	}
	change.AllHunksExpanded = mb.allHunksExpanded
	newTree, outputEdits := transform.Rebuild(mb.transforms, edits, change, rebuildDeps{mb})
	mb.transforms = newTree
	return outputEdits
}

func (mb *MultiBuffer) idMapSync() { mb.idmap.SyncFromTree(mb.excerpts) }
