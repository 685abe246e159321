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

// Package textsum defines the additive text-summary aggregate carried by
// the multi-buffer trees, plus the coordinate value types derived from
// buffer text (line/column points, UTF-16 offsets). Offset-to-point and
// UTF-16 conversions over the composed document live in the multibuffer
// package's snapshot code, which scans the underlying bytes directly;
// Summary exists to make tree aggregation cheap, not to stand in for
// those scans.
package textsum

import (
	"github.com/rivo/uniseg"
)

// Summary is the additive aggregate carried by every node of the excerpt
// and transform trees. It is cheap to combine: Add never re-scans text,
// only ever combines two already-computed summaries.
type Summary struct {
	Bytes           int
	UTF16Units      int
	Lines           int
	FirstLineChars  int
	LastLineChars   int
	LongestRow      uint32
	LongestRowChars int
}

// Zero is the identity element for Add.
var Zero Summary

// Add combines two adjacent summaries, in left-to-right order, returning the
// summary of their concatenation.
func (s Summary) Add(other Summary) Summary {
	if s.Lines == 0 {
		// s is either empty, or a single (possibly empty) line.
		joinedFirstLine := s.FirstLineChars + other.FirstLineChars
		out := Summary{
			Bytes:           s.Bytes + other.Bytes,
			UTF16Units:      s.UTF16Units + other.UTF16Units,
			Lines:           other.Lines,
			FirstLineChars:  joinedFirstLine,
			LastLineChars:   other.LastLineChars,
			LongestRow:      other.LongestRow,
			LongestRowChars: other.LongestRowChars,
		}
		if other.Lines == 0 {
			out.LastLineChars = joinedFirstLine
		}
		if joinedFirstLine > out.LongestRowChars {
			out.LongestRow = 0
			out.LongestRowChars = joinedFirstLine
		}
		return out
	}

	out := Summary{
		Bytes:           s.Bytes + other.Bytes,
		UTF16Units:      s.UTF16Units + other.UTF16Units,
		Lines:           s.Lines + other.Lines,
		FirstLineChars:  s.FirstLineChars,
		LongestRow:      s.LongestRow,
		LongestRowChars: s.LongestRowChars,
	}

	joinedLastLine := s.LastLineChars + other.FirstLineChars
	if other.Lines == 0 {
		out.LastLineChars = joinedLastLine
	} else {
		out.LastLineChars = other.LastLineChars
	}

	candidateRow := s.Lines
	if joinedLastLine > out.LongestRowChars {
		out.LongestRow = uint32(candidateRow)
		out.LongestRowChars = joinedLastLine
	}
	if other.Lines > 0 && other.LongestRowChars > out.LongestRowChars {
		out.LongestRow = uint32(s.Lines) + other.LongestRow
		out.LongestRowChars = other.LongestRowChars
	}

	return out
}

// OfBytes computes the summary of a raw byte slice of UTF-8 text.
func OfBytes(b []byte) Summary {
	var s Summary
	row := 0
	gr := uniseg.NewGraphemes(string(b))
	lineChars := 0
	for gr.Next() {
		rs := gr.Runes()
		for _, r := range rs {
			if r > 0xFFFF {
				s.UTF16Units += 2
			} else {
				s.UTF16Units++
			}
		}
		if len(rs) == 1 && rs[0] == '\n' {
			if lineChars > s.LongestRowChars {
				s.LongestRowChars = lineChars
				s.LongestRow = uint32(row)
			}
			if row == 0 {
				s.FirstLineChars = lineChars
			}
			row++
			lineChars = 0
			continue
		}
		lineChars++
	}
	s.Bytes = len(b)
	s.Lines = row
	s.LastLineChars = lineChars
	if row == 0 {
		s.FirstLineChars = lineChars
	}
	if lineChars > s.LongestRowChars {
		s.LongestRowChars = lineChars
		s.LongestRow = uint32(row)
	}
	return s
}

// Point is a (row, column-in-bytes) position.
type Point struct {
	Row    uint32
	Column uint32
}

// PointUTF16 is a (row, column-in-UTF16-units) position.
type PointUTF16 struct {
	Row    uint32
	Column uint32
}

// OffsetUTF16 is a count of UTF-16 code units.
type OffsetUTF16 int
