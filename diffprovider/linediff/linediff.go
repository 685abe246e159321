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

// Package linediff is a reference [diffprovider.Provider] implementation.
// It computes hunks between a buffer's current text and a fixed base
// text using a Myers diff over lines, expressed as byte ranges on both
// the buffer and base side as deleted-hunk transforms require.
package linediff

import (
	"iter"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
)

// Provider computes hunks against a fixed base text snapshot. Call
// [New] again (or [Provider.WithBase]) whenever the base changes.
type Provider struct {
	bufferID buffer.ID
	baseText string
	hasBase  bool
	current  string
	hunks    []diffprovider.Hunk
}

// New builds a Provider comparing currentText against baseText. If hasBase
// is false, the buffer has no base at all (e.g. an untracked file),
// rather than an empty one.
func New(id buffer.ID, currentText, baseText string, hasBase bool) *Provider {
	p := &Provider{bufferID: id, current: currentText, baseText: baseText, hasBase: hasBase}
	p.recompute()
	return p
}

// WithBase returns a copy of p with a new base text, recomputing hunks.
func (p *Provider) WithBase(baseText string, hasBase bool) *Provider {
	return New(p.bufferID, p.current, baseText, hasBase)
}

// WithCurrent returns a copy of p with new buffer text, recomputing hunks
// against the same base.
func (p *Provider) WithCurrent(currentText string) *Provider {
	return New(p.bufferID, currentText, p.baseText, p.hasBase)
}

func (p *Provider) BufferID() buffer.ID { return p.bufferID }

func (p *Provider) BaseText() (string, bool) { return p.baseText, p.hasBase }

func (p *Provider) BaseTextsEqual(other diffprovider.Provider) bool {
	o, ok := other.(*Provider)
	if !ok {
		ot, oOk := other.BaseText()
		t, hasBase := p.BaseText()
		return oOk == hasBase && ot == t
	}
	return o.hasBase == p.hasBase && o.baseText == p.baseText
}

func (p *Provider) HunksIntersectingRange(rng buffer.Range) iter.Seq[diffprovider.Hunk] {
	return func(yield func(diffprovider.Hunk) bool) {
		for _, h := range p.hunks {
			if h.BufferRange.Start >= rng.End || h.BufferRange.End <= rng.Start {
				if !(h.BufferRange.Start == h.BufferRange.End && h.BufferRange.Start >= rng.Start && h.BufferRange.Start <= rng.End) {
					continue
				}
			}
			if !yield(h) {
				return
			}
		}
	}
}

func (p *Provider) ReversedHunksIntersectingRange(rng buffer.Range) iter.Seq[diffprovider.Hunk] {
	return func(yield func(diffprovider.Hunk) bool) {
		for i := len(p.hunks) - 1; i >= 0; i-- {
			h := p.hunks[i]
			if h.BufferRange.Start >= rng.End || h.BufferRange.End <= rng.Start {
				if !(h.BufferRange.Start == h.BufferRange.End && h.BufferRange.Start >= rng.Start && h.BufferRange.Start <= rng.End) {
					continue
				}
			}
			if !yield(h) {
				return
			}
		}
	}
}

// recompute runs a line-oriented Myers diff between baseText and current,
// translating the resulting opcodes into byte-range hunks on both sides.
func (p *Provider) recompute() {
	p.hunks = nil
	if !p.hasBase {
		if p.current != "" {
			p.hunks = []diffprovider.Hunk{{
				BufferRange: buffer.Range{Start: 0, End: len(p.current)},
				BaseRange:   buffer.Range{Start: 0, End: 0},
				Status:      diffprovider.Added,
			}}
		}
		return
	}

	baseLines := splitKeepingEnds(p.baseText)
	curLines := splitKeepingEnds(p.current)

	matcher := difflib.NewMatcher(baseLines, curLines)
	baseOffsets := lineOffsets(baseLines)
	curOffsets := lineOffsets(curLines)

	for _, op := range matcher.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		baseRange := buffer.Range{Start: baseOffsets[op.I1], End: baseOffsets[op.I2]}
		bufRange := buffer.Range{Start: curOffsets[op.J1], End: curOffsets[op.J2]}

		status := diffprovider.Modified
		switch {
		case baseRange.Len() == 0:
			status = diffprovider.Added
		case bufRange.Len() == 0:
			status = diffprovider.Removed
		}

		p.hunks = append(p.hunks, diffprovider.Hunk{
			BufferRange: bufRange,
			BaseRange:   baseRange,
			Status:      status,
		})
	}
}

func splitKeepingEnds(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:idx+1])
		s = s[idx+1:]
	}
	return lines
}

// lineOffsets returns, for n lines, n+1 cumulative byte offsets: offsets[i]
// is the byte offset at which line i begins (offsets[n] is the total
// length).
func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines)+1)
	sum := 0
	for i, l := range lines {
		offsets[i] = sum
		sum += len(l)
	}
	offsets[len(lines)] = sum
	return offsets
}
