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
	"github.com/bmatcuk/doublestar/v4"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/excerpttree"
)

// PathKey groups the excerpts created for a logical file path (or a glob
// matching several paths) so a later call with the same key replaces
// rather than duplicates them.
type PathKey struct {
	// Pattern is a doublestar glob (e.g. "src/**/*.go"). A literal path
	// with no glob metacharacters matches exactly that path.
	Pattern string
}

// Matches reports whether path satisfies this PathKey's glob pattern.
func (k PathKey) Matches(path string) bool {
	ok, err := doublestar.Match(k.Pattern, path)
	return err == nil && ok
}

// SetExcerptsForPath replaces every excerpt previously created under key
// (if any) with fresh excerpts for the given ranges, keeping later calls
// with the same key idempotent rather than accumulating duplicates.
func (mb *MultiBuffer) SetExcerptsForPath(key PathKey, bufferID buffer.ID, ranges []buffer.Range, contextLines int) []excerpttree.Excerpt {
	mb.guard.Check()
	if old, ok := mb.pathKeys[key]; ok {
		mb.RemoveExcerpts(old)
	}
	inserted := mb.PushExcerptsWithContextLines(bufferID, ranges, contextLines)
	ids := make([]excerpttree.ID, len(inserted))
	for i, e := range inserted {
		ids[i] = e.ID
	}
	mb.pathKeys[key] = ids
	return inserted
}

// RemoveExcerptsForPath removes every excerpt tracked under key, if any.
func (mb *MultiBuffer) RemoveExcerptsForPath(key PathKey) {
	mb.guard.Check()
	ids, ok := mb.pathKeys[key]
	if !ok {
		return
	}
	mb.RemoveExcerpts(ids)
	delete(mb.pathKeys, key)
}
