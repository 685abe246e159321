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
	"github.com/textform/multibuffer/internal/textsum"
)

// expandRangeByLines grows rng outward by contextLines whole lines on
// each side, clipped to the document.
func expandRangeByLines(snap buffer.Snapshot, rng buffer.Range, contextLines int) buffer.Range {
	if contextLines <= 0 {
		return rng
	}
	startPoint := snap.OffsetToPoint(rng.Start)
	endPoint := snap.OffsetToPoint(rng.End)

	newStartRow := int(startPoint.Row) - contextLines
	if newStartRow < 0 {
		newStartRow = 0
	}
	newStart := snap.PointToOffset(textsum.Point{Row: uint32(newStartRow), Column: 0})

	newEndRow := int(endPoint.Row) + contextLines + 1
	newEnd := snap.PointToOffset(textsum.Point{Row: uint32(newEndRow), Column: 0})
	if newEnd > snap.Len() {
		newEnd = snap.Len()
	}
	if newEnd < rng.End {
		newEnd = rng.End
	}
	return buffer.Range{Start: newStart, End: newEnd}
}

// mergeOverlappingRanges sorts and merges touching/overlapping ranges
// before excerpt creation, so two primaries whose expanded contexts
// collide produce one excerpt instead of overlapping twins.
func mergeOverlappingRanges(ranges []buffer.Range) []buffer.Range {
	if len(ranges) == 0 {
		return nil
	}
	sorted := append([]buffer.Range(nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := []buffer.Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}
