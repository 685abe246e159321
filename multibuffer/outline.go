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

// OutlineEntry is one symbol in a document-wide outline, re-expressed in
// output coordinates.
type OutlineEntry struct {
	Name     string
	Kind     buffer.SymbolKind
	Range    cursor.Range
	Children []OutlineEntry
}

func symbolToOutputRange(region cursor.Region, sym buffer.Symbol) (cursor.Range, bool) {
	if sym.Range.Start < region.BufferRange.Start || sym.Range.End > region.BufferRange.End {
		return cursor.Range{}, false
	}
	return cursor.Range{
		Start: region.OutputRange.Start + (sym.Range.Start - region.BufferRange.Start),
		End:   region.OutputRange.Start + (sym.Range.End - region.BufferRange.Start),
	}, true
}

func convertSymbols(region cursor.Region, syms []buffer.Symbol) []OutlineEntry {
	out := make([]OutlineEntry, 0, len(syms))
	for _, sym := range syms {
		rng, ok := symbolToOutputRange(region, sym)
		if !ok {
			continue
		}
		out = append(out, OutlineEntry{
			Name:     sym.Name,
			Kind:     sym.Kind,
			Range:    rng,
			Children: convertSymbols(region, sym.Children),
		})
	}
	return out
}

// Outline is the MultiBuffer convenience form of Snapshot.Outline.
func (mb *MultiBuffer) Outline(rng cursor.Range) []OutlineEntry {
	mb.guard.Check()
	return mb.Snapshot().Outline(rng)
}

// SymbolsContaining is the MultiBuffer convenience form of
// Snapshot.SymbolsContaining.
func (mb *MultiBuffer) SymbolsContaining(offset int) []OutlineEntry {
	mb.guard.Check()
	return mb.Snapshot().SymbolsContaining(offset)
}

// Outline returns the structural outline of every excerpt intersecting
// rng, each symbol re-expressed in output coordinates.
func (s *Snapshot) Outline(rng cursor.Range) []OutlineEntry {
	var out []OutlineEntry
	c := cursor.New(s.excerpts, s.transforms)
	if rng.Len() < 0 || !c.Seek(rng.Start) {
		return nil
	}
	seen := map[uint32]bool{}
	for c.Valid() && c.Region().OutputRange.Start < rng.End {
		region := c.Region()
		if region.IsMainBuffer && !seen[uint32(region.Excerpt.ID)] {
			seen[uint32(region.Excerpt.ID)] = true
			if buf, ok := s.buffers[region.BufferID]; ok {
				if sp, ok := buf.(buffer.SymbolProvider); ok {
					out = append(out, convertSymbols(region, sp.Outline(region.BufferRange))...)
				}
			}
		}
		if !c.Next() {
			break
		}
	}
	return out
}

// SymbolsContaining returns the chain of symbols enclosing offset,
// outermost first, in output coordinates.
func (s *Snapshot) SymbolsContaining(offset int) []OutlineEntry {
	region, bufOffset, ok := s.regionAndBufferOffset(offset)
	if !ok {
		return nil
	}
	buf, ok := s.buffers[region.BufferID]
	if !ok {
		return nil
	}
	sp, ok := buf.(buffer.SymbolProvider)
	if !ok {
		return nil
	}
	return convertSymbols(region, sp.SymbolsContaining(bufOffset))
}
