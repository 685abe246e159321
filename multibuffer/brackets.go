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

// bracketPairToOutput re-expresses a buffer-space bracket pair in output
// coordinates, given the region it was resolved against. Returns false if
// the pair extends outside that region.
func bracketPairToOutput(region cursor.Region, pair [2]buffer.Range) ([2]cursor.Range, bool) {
	var out [2]cursor.Range
	for i, r := range pair {
		if r.Start < region.BufferRange.Start || r.End > region.BufferRange.End {
			return out, false
		}
		out[i] = cursor.Range{
			Start: region.OutputRange.Start + (r.Start - region.BufferRange.Start),
			End:   region.OutputRange.Start + (r.End - region.BufferRange.Start),
		}
	}
	return out, true
}

// BracketRanges returns every matched bracket pair intersecting rng, in
// output coordinates.
func (s *Snapshot) BracketRanges(rng cursor.Range) [][2]cursor.Range {
	region, _, ok := s.regionAndBufferOffset(rng.Start)
	if !ok {
		return nil
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return nil
	}
	bm, ok := buf.(buffer.BracketMatcher)
	if !ok {
		return nil
	}
	bufRng := buffer.Range{
		Start: region.BufferRange.Start,
		End:   region.BufferRange.Start + (rng.End - region.OutputRange.Start),
	}
	if bufRng.End > region.BufferRange.End {
		bufRng.End = region.BufferRange.End
	}
	var out [][2]cursor.Range
	for _, pair := range bm.BracketRanges(bufRng) {
		if oPair, ok := bracketPairToOutput(region, pair); ok {
			out = append(out, oPair)
		}
	}
	return out
}

// EnclosingBracketRanges returns every bracket pair enclosing offset,
// outermost first.
func (s *Snapshot) EnclosingBracketRanges(offset int) [][2]cursor.Range {
	region, bufOffset, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return nil
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return nil
	}
	bm, ok := buf.(buffer.BracketMatcher)
	if !ok {
		return nil
	}
	var out [][2]cursor.Range
	for _, pair := range bm.EnclosingBracketRanges(bufOffset) {
		if oPair, ok := bracketPairToOutput(region, pair); ok {
			out = append(out, oPair)
		}
	}
	return out
}

// InnermostEnclosingBracketRanges returns the tightest bracket pair
// enclosing offset, if any.
func (s *Snapshot) InnermostEnclosingBracketRanges(offset int) ([2]cursor.Range, bool) {
	pairs := s.EnclosingBracketRanges(offset)
	if len(pairs) == 0 {
		return [2]cursor.Range{}, false
	}
	return pairs[len(pairs)-1], true
}

// TextObjectRanges returns the output-space ranges of the given
// text-object kind enclosing or adjacent to offset.
func (s *Snapshot) TextObjectRanges(offset int, kind buffer.TextObjectKind) []cursor.Range {
	region, bufOffset, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return nil
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return nil
	}
	bm, ok := buf.(buffer.BracketMatcher)
	if !ok {
		return nil
	}
	var out []cursor.Range
	for _, r := range bm.TextObjectRanges(bufOffset, kind) {
		if r.Start < region.BufferRange.Start || r.End > region.BufferRange.End {
			continue
		}
		out = append(out, cursor.Range{
			Start: region.OutputRange.Start + (r.Start - region.BufferRange.Start),
			End:   region.OutputRange.Start + (r.End - region.BufferRange.Start),
		})
	}
	return out
}
