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
	"github.com/textform/multibuffer/internal/cursor"
)

// regionAndBufferOffset seeks to offset and, if it falls in a main-buffer
// region, returns that region together with the corresponding byte
// offset into its backing buffer. Used by every query in this file that
// needs to delegate to a buffer's optional capability interfaces.
func (s *Snapshot) regionAndBufferOffset(offset int) (cursor.Region, int, bool) {
	c := cursor.New(s.excerpts, s.transforms)
	if !c.Seek(offset) {
		return cursor.Region{}, 0, false
	}
	region := c.Region()
	if !region.IsMainBuffer {
		return cursor.Region{}, 0, false
	}
	bufOffset := region.BufferRange.Start + (offset - region.OutputRange.Start)
	return region, bufOffset, true
}

// LanguageAt returns the language a position in the output is written in,
// if the backing buffer exposes one.
func (mb *MultiBuffer) LanguageAt(offset int) (buffer.Language, bool) {
	mb.guard.Check()
	return mb.Snapshot().LanguageAt(offset)
}

// LanguageAt is the Snapshot form of MultiBuffer.LanguageAt, usable from
// a cloned read-only view.
func (s *Snapshot) LanguageAt(offset int) (buffer.Language, bool) {
	region, bufOffset, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return buffer.Language{}, false
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return buffer.Language{}, false
	}
	lp, ok := buf.(buffer.LanguageProvider)
	if !ok {
		return buffer.Language{}, false
	}
	return lp.LanguageAt(bufOffset)
}

// SettingsAt returns the editor settings in effect at a position.
func (mb *MultiBuffer) SettingsAt(offset int) (buffer.Settings, bool) {
	mb.guard.Check()
	return mb.Snapshot().SettingsAt(offset)
}

// SettingsAt is the Snapshot form of MultiBuffer.SettingsAt.
func (s *Snapshot) SettingsAt(offset int) (buffer.Settings, bool) {
	region, bufOffset, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return buffer.Settings{}, false
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return buffer.Settings{}, false
	}
	lp, ok := buf.(buffer.LanguageProvider)
	if !ok {
		return buffer.Settings{}, false
	}
	return lp.SettingsAt(bufOffset)
}

// LanguageScopeAt returns the syntax highlighting scope at a position.
func (mb *MultiBuffer) LanguageScopeAt(offset int) (buffer.Scope, bool) {
	mb.guard.Check()
	return mb.Snapshot().LanguageScopeAt(offset)
}

// LanguageScopeAt is the Snapshot form of MultiBuffer.LanguageScopeAt.
func (s *Snapshot) LanguageScopeAt(offset int) (buffer.Scope, bool) {
	region, bufOffset, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return buffer.Scope{}, false
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return buffer.Scope{}, false
	}
	lp, ok := buf.(buffer.LanguageProvider)
	if !ok {
		return buffer.Scope{}, false
	}
	return lp.LanguageScopeAt(bufOffset)
}

// CharClassifierAt returns the word-boundary classifier in effect at a
// position, or nil if the backing buffer has none.
func (mb *MultiBuffer) CharClassifierAt(offset int) buffer.CharClassifier {
	mb.guard.Check()
	return mb.Snapshot().CharClassifierAt(offset)
}

// CharClassifierAt is the Snapshot form of MultiBuffer.CharClassifierAt.
func (s *Snapshot) CharClassifierAt(offset int) buffer.CharClassifier {
	region, bufOffset, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return nil
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return nil
	}
	lp, ok := buf.(buffer.LanguageProvider)
	if !ok {
		return nil
	}
	return lp.CharClassifierAt(bufOffset)
}

// FileAt returns the on-disk path backing the excerpt at a position, if
// any.
func (mb *MultiBuffer) FileAt(offset int) (string, bool) {
	mb.guard.Check()
	return mb.Snapshot().FileAt(offset)
}

// FileAt is the Snapshot form of MultiBuffer.FileAt.
func (s *Snapshot) FileAt(offset int) (string, bool) {
	region, _, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return "", false
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return "", false
	}
	fp, ok := buf.(buffer.FileProvider)
	if !ok {
		return "", false
	}
	return fp.FilePath()
}
