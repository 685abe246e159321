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
	"unicode/utf8"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/cursor"
	"github.com/textform/multibuffer/internal/textsum"
)

// Text materializes the whole document, synthetic newlines and expanded
// deleted hunks included, as a single string.
func (s *Snapshot) Text() string {
	return string(s.bytesBetween(0, s.Len()))
}

// bytesBetween collects the output-space bytes in [start, end).
func (s *Snapshot) bytesBetween(start, end int) []byte {
	out := make([]byte, 0, end-start)
	for b := range s.BytesInRange(cursor.Range{Start: start, End: end}) {
		out = append(out, b)
	}
	return out
}

// byteAt returns the single output-space byte at offset, which must be
// in range.
func (s *Snapshot) byteAt(offset int) byte {
	for b := range s.BytesInRange(cursor.Range{Start: offset, End: offset + 1}) {
		return b
	}
	return 0
}

func (s *Snapshot) clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > s.Len() {
		return s.Len()
	}
	return offset
}

// rowEnd returns the offset just past row's last content byte, excluding
// the terminating newline when the row has one.
func (s *Snapshot) rowEnd(starts []int, row int) int {
	if row+1 < len(starts) {
		return starts[row+1] - 1
	}
	return s.Len()
}

// MaxPoint returns the row/column position of the end of the document.
func (s *Snapshot) MaxPoint() OutputPoint {
	return s.pointForOffset(s.Len())
}

// MaxRow returns the last row index in the document.
func (s *Snapshot) MaxRow() uint32 {
	return uint32(len(s.rowStartOffsets()) - 1)
}

// OffsetToPoint converts an output-space byte offset to its row and byte
// column. Out-of-range offsets are clamped.
func (s *Snapshot) OffsetToPoint(offset int) OutputPoint {
	return s.pointForOffset(s.clampOffset(offset))
}

// PointToOffset converts a row/column position to an output-space byte
// offset. The row is clamped to the document and the column to the row's
// length, so a column past end-of-row resolves to the offset of the
// row's terminating newline (or the document end on the last row).
func (s *Snapshot) PointToOffset(p OutputPoint) int {
	starts := s.rowStartOffsets()
	if int(p.Row) >= len(starts) {
		return s.Len()
	}
	offset := starts[p.Row] + int(p.Column)
	if end := s.rowEnd(starts, int(p.Row)); offset > end {
		offset = end
	}
	return offset
}

// OffsetToOffsetUTF16 converts an output-space byte offset to the count
// of UTF-16 code units preceding it. Whole transforms are skipped via
// the tree's prefix summaries; only the remainder inside the containing
// transform is scanned.
func (s *Snapshot) OffsetToOffsetUTF16(offset int) textsum.OffsetUTF16 {
	offset = s.clampOffset(offset)
	c := s.transforms.Cursor()
	units := 0
	prefixBytes := 0
	if c.SeekOutput(offset) {
		prefix := c.PrefixSummary()
		units = prefix.Output.UTF16Units
		prefixBytes = prefix.Output.Bytes
	} else {
		total := s.transforms.Total()
		units = total.Output.UTF16Units
		prefixBytes = total.Output.Bytes
	}
	if offset > prefixBytes {
		units += textsum.OfBytes(s.bytesBetween(prefixBytes, offset)).UTF16Units
	}
	return textsum.OffsetUTF16(units)
}

// OffsetUTF16ToOffset is the inverse of OffsetToOffsetUTF16. A target
// falling inside a surrogate pair resolves to the start of the rune that
// produced it; targets past the document clamp to the end.
func (s *Snapshot) OffsetUTF16ToOffset(target textsum.OffsetUTF16) int {
	c := s.transforms.Cursor()
	for c.Next() {
		prefix := c.PrefixSummary()
		item := c.Item().Summary()
		if prefix.Output.UTF16Units+item.Output.UTF16Units <= int(target) {
			continue
		}
		remaining := int(target) - prefix.Output.UTF16Units
		start := prefix.Output.Bytes
		chunk := s.bytesBetween(start, start+item.Output.Bytes)
		i := 0
		for i < len(chunk) && remaining > 0 {
			r, size := utf8.DecodeRune(chunk[i:])
			u := 1
			if r > 0xFFFF {
				u = 2
			}
			if u > remaining {
				break
			}
			remaining -= u
			i += size
		}
		return start + i
	}
	return s.Len()
}

// OffsetToPointUTF16 converts an output-space byte offset to a row and
// UTF-16-unit column.
func (s *Snapshot) OffsetToPointUTF16(offset int) textsum.PointUTF16 {
	offset = s.clampOffset(offset)
	p := s.pointForOffset(offset)
	rowStart := s.offsetForRow(p.Row)
	units := textsum.OfBytes(s.bytesBetween(rowStart, offset)).UTF16Units
	return textsum.PointUTF16{Row: p.Row, Column: uint32(units)}
}

// PointUTF16ToOffset converts a row and UTF-16-unit column to an
// output-space byte offset, clamping the row to the document and the
// column to the row's length.
func (s *Snapshot) PointUTF16ToOffset(p textsum.PointUTF16) int {
	starts := s.rowStartOffsets()
	if int(p.Row) >= len(starts) {
		return s.Len()
	}
	start := starts[p.Row]
	chunk := s.bytesBetween(start, s.rowEnd(starts, int(p.Row)))
	remaining := int(p.Column)
	i := 0
	for i < len(chunk) && remaining > 0 {
		r, size := utf8.DecodeRune(chunk[i:])
		u := 1
		if r > 0xFFFF {
			u = 2
		}
		if u > remaining {
			break
		}
		remaining -= u
		i += size
	}
	return start + i
}

// ClipOffset clamps offset into the document and, when it lands in the
// middle of a multi-byte UTF-8 sequence, snaps it to the boundary in
// bias's direction. Read paths clamp silently; write paths treat
// out-of-range offsets as programming errors and panic instead.
func (s *Snapshot) ClipOffset(offset int, bias buffer.Bias) int {
	if offset <= 0 {
		return 0
	}
	if offset >= s.Len() {
		return s.Len()
	}
	for offset > 0 && offset < s.Len() {
		if b := s.byteAt(offset); b&0xC0 != 0x80 {
			break
		}
		if bias == buffer.Left {
			offset--
		} else {
			offset++
		}
	}
	return offset
}

// ClipPoint clamps a row/column position into the document, snapping a
// mid-character column per bias. A row past the last resolves to
// MaxPoint.
func (s *Snapshot) ClipPoint(p OutputPoint, bias buffer.Bias) OutputPoint {
	starts := s.rowStartOffsets()
	if int(p.Row) >= len(starts) {
		return s.MaxPoint()
	}
	return s.pointForOffset(s.ClipOffset(s.PointToOffset(p), bias))
}
