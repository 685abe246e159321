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
	"sort"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/excerpttree"
)

// NotifyBufferEdited catches this controller up to edits applied to
// bufferID by something other than its own Edit call — a collaborator, an
// external formatter, anything that mutates a registered buffer directly.
// Unlike Edit's own refresh step, this walks the buffer's
// EditsSinceInRange against the last version this controller observed, so
// that only the changed spans are rebuilt.
func (mb *MultiBuffer) NotifyBufferEdited(bufferID buffer.ID) {
	mb.guard.Check()
	buf, ok := mb.buffers[bufferID]
	if !ok {
		return
	}
	since, tracked := mb.bufferVersions[bufferID]
	if !tracked {
		return
	}
	if !buf.Version().Changed(since) {
		return
	}

	// EditsSinceInRange is used here only to decide which excerpts were
	// actually touched; the resync itself always replaces a touched
	// excerpt's whole span (see resyncExcerptFromAnchors) rather than
	// replaying each incremental edit, since the excerpt tree only
	// supports whole-item replacement and feeding both a fine-grained and
	// a coarse edit for the same span would splice the transform tree
	// twice.
	touched := map[excerpttree.ID]bool{}
	for _, ex := range mb.excerptsForBuffer(bufferID) {
		changed := false
		for range buf.EditsSinceInRange(since, ex.ContextOffsets) {
			changed = true
			break
		}
		if !changed {
			continue
		}
		mb.resyncExcerptFromAnchors(ex.Excerpt, buf)
		touched[ex.ID] = true
	}
	mb.idMapSync()
	mb.bufferVersions[bufferID] = buf.Version()

	if len(touched) == 0 {
		return
	}

	ids := make([]excerpttree.ID, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	mb.emit(Event{Kind: ExcerptsEdited, ExcerptIDs: ids})
	mb.emit(Event{Kind: Edited, HasEditedBuffer: true, EditedBufferID: bufferID})
}
