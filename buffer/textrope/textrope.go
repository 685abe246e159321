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

// Package textrope is a reference implementation of [buffer.Buffer] backed
// by an immutable, copy-on-write rope: every edit produces a new Rope
// value, and the previous one stays valid and untouched, which is what
// lets a [buffer.Snapshot] be handed to a background reader for free.
//
// This implementation favors clarity over the B-tree-of-chunks structure
// a production rope would use; it stores the whole text as one string per
// revision. That is the right tradeoff for a reference/test buffer, which
// never holds more than a few kilobytes of text.
package textrope

import (
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/textsum"
)

var nextRevision int64

// Rope is an immutable snapshot of buffer text at one revision.
type Rope struct {
	text     string
	revision int64
}

// FromString builds a new Rope containing s.
func FromString(s string) *Rope {
	return &Rope{text: s, revision: atomic.AddInt64(&nextRevision, 1)}
}

// String returns the full text.
func (r *Rope) String() string { return r.text }

// Len returns the byte length of the text.
func (r *Rope) Len() int { return len(r.text) }

func (r *Rope) Slice(start, end int) string { return r.text[start:end] }

// version implements buffer.Version by comparing revision numbers: a
// larger revision number is always "changed since" a smaller one, since
// revisions are assigned from a monotonic global counter.
type version struct{ revision int64 }

func (v version) Equal(other buffer.Version) bool {
	o, ok := other.(version)
	return ok && o.revision == v.revision
}

func (v version) Changed(since buffer.Version) bool {
	o, ok := since.(version)
	return !ok || v.revision > o.revision
}

// anchor implements buffer.Anchor as an offset plus bias, stamped with
// the position in the buffer's edit log it was created at. Resolving the
// anchor later maps the offset forward through every edit batch recorded
// since, so the anchor tracks its surrounding text the way a CRDT-backed
// anchor would.
type anchor struct {
	offset int
	bias   buffer.Bias
	seq    int
}

func (a anchor) String() string {
	if a.bias == buffer.Left {
		return fmt.Sprintf("%d<", a.offset)
	}
	return fmt.Sprintf("%d>", a.offset)
}

func (a anchor) Compare(other buffer.Anchor) int {
	o := other.(anchor)
	if a.offset != o.offset {
		return a.offset - o.offset
	}
	if a.bias == o.bias {
		return 0
	}
	if a.bias == buffer.Left {
		return -1
	}
	return 1
}

// Buffer is a reference [buffer.Buffer] implementation over a Rope.
type Buffer struct {
	id      buffer.ID
	current *Rope
	history []transaction
	undone  []transaction
	nextTxn buffer.TransactionID
	open    map[buffer.TransactionID]*openTxn

	// log records every content change as a batch of old-space spans, in
	// chronological order; anchors map forward through log[seq:].
	log []editBatch
}

// editSpan is one replaced span of an edit batch, in the coordinates of
// the rope the batch was applied to.
type editSpan struct {
	rng    buffer.Range
	newLen int
}

// editBatch is the set of simultaneous spans one state change replaced.
type editBatch []editSpan

type openTxn struct {
	before *Rope
	edits  []buffer.TextEdit
}

type transaction struct {
	id     buffer.TransactionID
	before *Rope
	after  *Rope
}

// New creates a Buffer with the given id and initial text.
func New(id buffer.ID, text string) *Buffer {
	return &Buffer{
		id:      id,
		current: FromString(text),
		open:    make(map[buffer.TransactionID]*openTxn),
	}
}

func (b *Buffer) RemoteID() buffer.ID { return b.id }

func (b *Buffer) Version() buffer.Version { return version{b.current.revision} }

func (b *Buffer) Snapshot() buffer.Snapshot { return snapshot{b.current} }

// EditsSinceInRange returns, for this reference implementation, a single
// synthetic edit covering the whole of rng whenever the current version
// has advanced past since — callers (the multi-buffer controller) only
// need the new text for the affected span, which this recomputes from the
// live rope, so per-hunk granularity isn't required for correctness here.
func (b *Buffer) EditsSinceInRange(since buffer.Version, rng buffer.Range) iter.Seq[buffer.Edit] {
	return func(yield func(buffer.Edit) bool) {
		if !b.current.revision2Changed(since) {
			return
		}
		newEnd := rng.End
		if newEnd > b.current.Len() {
			newEnd = b.current.Len()
		}
		yield(buffer.Edit{
			OldStart: rng.Start, OldEnd: rng.End,
			NewStart: rng.Start, NewEnd: newEnd,
		})
	}
}

// EditedRangesForTransaction reports the single post-edit span covering
// every byte that differs between a completed transaction's before/after
// rope snapshots, found by trimming the longest common prefix and suffix
// (sufficient for a reference buffer whose transactions don't need
// per-hunk granularity; see EditsSinceInRange).
func (b *Buffer) EditedRangesForTransaction(id buffer.TransactionID) iter.Seq[buffer.Range] {
	return func(yield func(buffer.Range) bool) {
		txn, ok := b.findTransaction(id)
		if !ok {
			return
		}
		rng, changed := diffRange(txn.before.String(), txn.after.String())
		if !changed {
			return
		}
		yield(rng)
	}
}

func (b *Buffer) findTransaction(id buffer.TransactionID) (transaction, bool) {
	for _, t := range b.history {
		if t.id == id {
			return t, true
		}
	}
	for _, t := range b.undone {
		if t.id == id {
			return t, true
		}
	}
	return transaction{}, false
}

// diffRange returns the [start, end) span in after covering every byte
// that differs from before, by trimming the longest common prefix and
// suffix. changed is false if before == after.
func diffRange(before, after string) (rng buffer.Range, changed bool) {
	if before == after {
		return buffer.Range{}, false
	}
	prefix := 0
	max := len(before)
	if len(after) < max {
		max = len(after)
	}
	for prefix < max && before[prefix] == after[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < max-prefix && before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}
	return buffer.Range{Start: prefix, End: len(after) - suffix}, true
}

func (r *Rope) revision2Changed(since buffer.Version) bool {
	v, ok := since.(version)
	return !ok || r.revision > v.revision
}

func (b *Buffer) AnchorBefore(offset int) buffer.Anchor {
	return b.AnchorAt(offset, buffer.Left)
}

func (b *Buffer) AnchorAfter(offset int) buffer.Anchor {
	return b.AnchorAt(offset, buffer.Right)
}

func (b *Buffer) AnchorAt(offset int, bias buffer.Bias) buffer.Anchor {
	return anchor{offset: b.ClipOffset(offset, bias), bias: bias, seq: len(b.log)}
}

// OffsetForAnchor resolves a by replaying every edit batch recorded since
// the anchor was created, shifting or clamping its offset through each.
func (b *Buffer) OffsetForAnchor(a buffer.Anchor) int {
	aa := a.(anchor)
	offset := aa.offset
	for i := aa.seq; i < len(b.log); i++ {
		offset = transformOffset(offset, aa.bias, b.log[i])
	}
	return b.ClipOffset(offset, aa.bias)
}

// transformOffset maps an old-space offset through one batch of
// simultaneous edits: positions past a replaced span shift by the span's
// length delta, positions inside one clamp to its edge per bias, and a
// right-biased anchor at an insertion point lands after the inserted
// text.
func transformOffset(offset int, bias buffer.Bias, batch editBatch) int {
	delta := 0
	for _, e := range batch {
		s, end := e.rng.Start, e.rng.End
		if offset < s {
			break
		}
		if offset == s {
			if s == end && bias == buffer.Right {
				return s + e.newLen + delta
			}
			return s + delta
		}
		if offset > end {
			delta += e.newLen - (end - s)
			continue
		}
		// s < offset <= end: inside (or at the end of) the replaced span.
		if offset == end || bias == buffer.Right {
			return s + e.newLen + delta
		}
		return s + delta
	}
	return offset + delta
}

func (b *Buffer) TextSummaryForRange(rng buffer.Range) textsum.Summary {
	return textsum.OfBytes([]byte(b.current.Slice(rng.Start, rng.End)))
}

func (b *Buffer) Chunks(rng buffer.Range, languageAware bool) iter.Seq[buffer.Chunk] {
	return func(yield func(buffer.Chunk) bool) {
		if rng.Start >= rng.End {
			return
		}
		yield(buffer.Chunk{Text: b.current.Slice(rng.Start, rng.End)})
	}
}

func (b *Buffer) ReversedChunksInRange(rng buffer.Range) iter.Seq[buffer.Chunk] {
	return func(yield func(buffer.Chunk) bool) {
		if rng.Start >= rng.End {
			return
		}
		text := b.current.Slice(rng.Start, rng.End)
		runes := []rune(text)
		for i := len(runes) - 1; i >= 0; i-- {
			if !yield(buffer.Chunk{Text: string(runes[i])}) {
				return
			}
		}
	}
}

func (b *Buffer) BytesInRange(rng buffer.Range) iter.Seq[byte] {
	return func(yield func(byte) bool) {
		text := b.current.Slice(rng.Start, rng.End)
		for i := 0; i < len(text); i++ {
			if !yield(text[i]) {
				return
			}
		}
	}
}

func (b *Buffer) ClipOffset(offset int, _ buffer.Bias) int {
	if offset < 0 {
		return 0
	}
	if offset > b.current.Len() {
		return b.current.Len()
	}
	return offset
}

func (b *Buffer) ClipPoint(p textsum.Point, _ buffer.Bias) textsum.Point {
	snap := snapshot{b.current}
	offset := snap.PointToOffset(p)
	return snap.OffsetToPoint(b.ClipOffset(offset, buffer.Left))
}

// Edit applies edits (which must not overlap; they are sorted by Range
// start first, so any order is accepted) to the buffer, producing a new
// revision.
func (b *Buffer) Edit(edits []buffer.TextEdit, _ buffer.AutoindentMode) buffer.TransactionID {
	sorted := append([]buffer.TextEdit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Range.Start < sorted[j].Range.Start })

	var sb strings.Builder
	prev := 0
	text := b.current.text
	for _, e := range sorted {
		if e.Range.Start < prev {
			panic(fmt.Sprintf("textrope: overlapping edits at offset %d", e.Range.Start))
		}
		sb.WriteString(text[prev:e.Range.Start])
		sb.WriteString(e.Text)
		prev = e.Range.End
	}
	sb.WriteString(text[prev:])

	batch := make(editBatch, len(sorted))
	for i, e := range sorted {
		batch[i] = editSpan{rng: e.Range, newLen: len(e.Text)}
	}
	b.log = append(b.log, batch)

	before := b.current
	b.current = FromString(sb.String())
	id := b.nextTxn
	b.nextTxn++
	b.history = append(b.history, transaction{id: id, before: before, after: b.current})
	return id
}

// logTransition records a wholesale jump from the current rope to another
// (undo/redo) as a single-span edit batch covering the changed bytes.
func (b *Buffer) logTransition(to *Rope) {
	before, after := b.current.text, to.text
	if before == after {
		return
	}
	prefix := 0
	limit := len(before)
	if len(after) < limit {
		limit = len(after)
	}
	for prefix < limit && before[prefix] == after[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < limit-prefix && before[len(before)-1-suffix] == after[len(after)-1-suffix] {
		suffix++
	}
	b.log = append(b.log, editBatch{{
		rng:    buffer.Range{Start: prefix, End: len(before) - suffix},
		newLen: (len(after) - suffix) - prefix,
	}})
}

func (b *Buffer) StartTransactionAt(_ int64) buffer.TransactionID {
	id := b.nextTxn
	b.nextTxn++
	b.open[id] = &openTxn{before: b.current}
	return id
}

func (b *Buffer) EndTransactionAt(_ int64) (buffer.TransactionID, bool) {
	for id, txn := range b.open {
		delete(b.open, id)
		if txn.before.revision == b.current.revision {
			return id, false
		}
		b.history = append(b.history, transaction{id: id, before: txn.before, after: b.current})
		return id, true
	}
	return 0, false
}

func (b *Buffer) UndoToTransaction(id buffer.TransactionID) bool {
	for i := len(b.history) - 1; i >= 0; i-- {
		if b.history[i].id == id {
			b.undone = append(b.undone, b.history[i])
			b.logTransition(b.history[i].before)
			b.current = b.history[i].before
			b.history = append(b.history[:i], b.history[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Buffer) RedoToTransaction(id buffer.TransactionID) bool {
	for i := len(b.undone) - 1; i >= 0; i-- {
		if b.undone[i].id == id {
			b.logTransition(b.undone[i].after)
			b.current = b.undone[i].after
			b.history = append(b.history, b.undone[i])
			b.undone = append(b.undone[:i], b.undone[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Buffer) ForgetTransaction(id buffer.TransactionID) {
	for i, txn := range b.history {
		if txn.id == id {
			b.history = append(b.history[:i], b.history[i+1:]...)
			return
		}
	}
}

func (b *Buffer) MergeTransactions(src, dst buffer.TransactionID) {
	var srcIdx, dstIdx = -1, -1
	for i, txn := range b.history {
		if txn.id == src {
			srcIdx = i
		}
		if txn.id == dst {
			dstIdx = i
		}
	}
	if srcIdx < 0 || dstIdx < 0 {
		return
	}
	b.history[dstIdx].after = b.history[srcIdx].after
	b.history = append(b.history[:srcIdx], b.history[srcIdx+1:]...)
}

func (b *Buffer) FinalizeLastTransaction() {}

func (b *Buffer) PushTransaction(id buffer.TransactionID) {}

func (b *Buffer) AutoindentRanges(ranges []buffer.Range) {}

// snapshot implements buffer.Snapshot over a single Rope revision.
type snapshot struct{ rope *Rope }

func (s snapshot) Len() int                     { return s.rope.Len() }
func (s snapshot) Text() string                 { return s.rope.String() }
func (s snapshot) TextSummary() textsum.Summary { return textsum.OfBytes([]byte(s.rope.String())) }

func (s snapshot) OffsetToPoint(offset int) textsum.Point {
	text := s.rope.String()
	if offset > len(text) {
		offset = len(text)
	}
	row := uint32(0)
	lineStart := 0
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			row++
			lineStart = i + 1
		}
	}
	return textsum.Point{Row: row, Column: uint32(offset - lineStart)}
}

func (s snapshot) PointToOffset(p textsum.Point) int {
	text := s.rope.String()
	row := uint32(0)
	for i := 0; i < len(text); i++ {
		if row == p.Row {
			end := i + int(p.Column)
			if end > len(text) {
				end = len(text)
			}
			return end
		}
		if text[i] == '\n' {
			row++
		}
	}
	if row == p.Row {
		end := len(text)
		return end
	}
	return len(text)
}
