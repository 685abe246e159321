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
	"context"
	"iter"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/cursor"
)

// enclosingIndentYieldRows is how often EnclosingIndent checks its
// context for cancellation while walking upward.
const enclosingIndentYieldRows = 64

// LineIndent is one row's indent, as reported by LineIndents.
type LineIndent struct {
	Row       uint32
	Indent    buffer.IndentSize
	HasIndent bool
}

// indentForRow resolves a single row's indent by delegating to the
// backing buffer's IndentProvider, if it has one.
func (s *Snapshot) indentForRow(row uint32) LineIndent {
	starts := s.rowStartOffsets()
	if int(row) >= len(starts) {
		return LineIndent{Row: row}
	}
	region, bufOffset, ok := s.regionAndBufferOffset(starts[row])
	if !ok {
		return LineIndent{Row: row}
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return LineIndent{Row: row}
	}
	ip, ok := buf.(buffer.IndentProvider)
	if !ok {
		return LineIndent{Row: row}
	}
	bufSnap := buf.Snapshot()
	bufRow := bufSnap.OffsetToPoint(bufOffset).Row
	indent, has := ip.LineIndent(bufRow)
	return LineIndent{Row: row, Indent: indent, HasIndent: has}
}

// LineIndents yields each row's indent starting at startRow, in
// ascending row order.
func (s *Snapshot) LineIndents(startRow uint32) iter.Seq[LineIndent] {
	return func(yield func(LineIndent) bool) {
		starts := s.rowStartOffsets()
		for row := startRow; int(row) < len(starts); row++ {
			if !yield(s.indentForRow(row)) {
				return
			}
		}
	}
}

// ReversedLineIndents is LineIndents walking backward from startRow to
// row 0, inclusive.
func (s *Snapshot) ReversedLineIndents(startRow uint32) iter.Seq[LineIndent] {
	return func(yield func(LineIndent) bool) {
		starts := s.rowStartOffsets()
		last := startRow
		if int(last) >= len(starts) {
			last = uint32(len(starts)) - 1
		}
		for row := int(last); row >= 0; row-- {
			if !yield(s.indentForRow(uint32(row))) {
				return
			}
		}
	}
}

// EnclosingIndent walks upward from row looking for the nearest
// preceding row with a strictly smaller indent than row's own — the
// block row belongs to. It checks ctx every enclosingIndentYieldRows
// rows so a search over a very large document can be cancelled instead
// of starving the executor.
func (s *Snapshot) EnclosingIndent(ctx context.Context, row uint32) (LineIndent, bool) {
	starts := s.rowStartOffsets()
	if int(row) >= len(starts) {
		return LineIndent{}, false
	}
	self := s.indentForRow(row)
	if !self.HasIndent || self.Indent.Columns == 0 {
		return LineIndent{}, false
	}
	checked := 0
	for r := int(row) - 1; r >= 0; r-- {
		checked++
		if checked%enclosingIndentYieldRows == 0 {
			select {
			case <-ctx.Done():
				return LineIndent{}, false
			default:
			}
		}
		candidate := s.indentForRow(uint32(r))
		if candidate.HasIndent && candidate.Indent.Columns < self.Indent.Columns {
			return candidate, true
		}
	}
	return LineIndent{}, false
}

// IndentGuide is a single vertical guide line spanning [StartRow, EndRow)
// at a given indent level.
type IndentGuide struct {
	StartRow, EndRow uint32
	Level            uint32 // 0-based indent level (Columns / tab width)
}

// IndentGuidesInRange computes the indent-guide spans visible in
// [rng.Start, rng.End) by grouping consecutive rows that share an indent
// level at or above each guide's level, the conventional "vertical line
// per nesting level" editor rendering.
func (s *Snapshot) IndentGuidesInRange(rng cursor.Range, tabWidth uint32) []IndentGuide {
	if tabWidth == 0 {
		tabWidth = 1
	}
	startRow := s.pointForOffset(rng.Start).Row
	endRow := s.pointForOffset(rng.End).Row + 1
	levels := map[uint32]uint32{} // level -> open start row
	var out []IndentGuide
	closeLevelsAbove := func(level uint32, atRow uint32) {
		for l, startR := range levels {
			if l >= level {
				out = append(out, IndentGuide{StartRow: startR, EndRow: atRow, Level: l})
				delete(levels, l)
			}
		}
	}
	for row := startRow; row < endRow; row++ {
		li := s.indentForRow(row)
		var level uint32
		if li.HasIndent {
			level = li.Indent.Columns / tabWidth
		}
		closeLevelsAbove(level+1, row)
		for l := uint32(0); l < level; l++ {
			if _, ok := levels[l]; !ok {
				levels[l] = row
			}
		}
	}
	closeLevelsAbove(0, endRow)
	return out
}

// pointForOffset resolves an output-space byte offset to its row/column,
// the row-only counterpart of the byte-precise AnchorAt machinery.
func (s *Snapshot) pointForOffset(offset int) OutputPoint {
	starts := s.rowStartOffsets()
	row := 0
	for i, start := range starts {
		if start > offset {
			break
		}
		row = i
	}
	return OutputPoint{Row: uint32(row), Column: uint32(offset - starts[row])}
}
