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
	"time"

	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/internal/cursor"
)

// TransactionID identifies a cross-buffer transaction recorded in a
// MultiBuffer's history.
type TransactionID uint64

// transaction records, for a single logical edit grouping, which
// sub-transaction each touched buffer reached, when the group started and
// last changed, and whether it should never be folded into a later group.
type transaction struct {
	id               TransactionID
	bufferTxns       map[buffer.ID]buffer.TransactionID
	firstEditAt      time.Time
	lastEditAt       time.Time
	suppressGrouping bool
}

// history is the cross-buffer undo/redo ledger.
type history struct {
	groupInterval time.Duration
	depth         int
	nextID        TransactionID

	undoStack []*transaction
	redoStack []*transaction
}

func newHistory(groupInterval time.Duration) *history {
	if groupInterval <= 0 {
		groupInterval = 300 * time.Millisecond
	}
	return &history{groupInterval: groupInterval, nextID: 1}
}

func (h *history) start(now time.Time) (TransactionID, bool) {
	h.depth++
	if h.depth != 1 {
		return 0, false
	}
	id := h.nextID
	h.nextID++
	h.undoStack = append(h.undoStack, &transaction{
		id:          id,
		bufferTxns:  make(map[buffer.ID]buffer.TransactionID),
		firstEditAt: now,
		lastEditAt:  now,
	})
	return id, true
}

func (h *history) end(now time.Time, bufferTxns map[buffer.ID]buffer.TransactionID) bool {
	if h.depth == 0 {
		panic("multibuffer: end_transaction_at with no open transaction")
	}
	h.depth--
	if h.depth != 0 {
		return false
	}
	if len(bufferTxns) == 0 {
		h.undoStack = h.undoStack[:len(h.undoStack)-1]
		return false
	}
	h.redoStack = nil
	top := h.undoStack[len(h.undoStack)-1]
	top.lastEditAt = now
	for bufID, txnID := range bufferTxns {
		if _, ok := top.bufferTxns[bufID]; !ok {
			top.bufferTxns[bufID] = txnID
		}
	}
	return true
}

// group folds the trailing run of ungrouped, within-interval transactions
// into the last one, returning the id the group now lives under.
func (h *history) group() (TransactionID, bool) {
	n := len(h.undoStack)
	if n == 0 {
		return 0, false
	}
	count := 0
	last := h.undoStack[n-1]
	for i := n - 2; i >= 0; i-- {
		prev := h.undoStack[i]
		if prev.suppressGrouping || last.firstEditAt.Sub(prev.lastEditAt) > h.groupInterval {
			break
		}
		last = prev
		count++
	}
	return h.groupTrailing(count)
}

// groupUntil folds every transaction after id (exclusive) into id, stopping
// early at the first grouping-suppressed transaction.
func (h *history) groupUntil(id TransactionID) {
	count := 0
	for i := len(h.undoStack) - 1; i >= 0; i-- {
		if h.undoStack[i].id == id {
			h.groupTrailing(count)
			return
		}
		if h.undoStack[i].suppressGrouping {
			return
		}
		count++
	}
}

func (h *history) groupTrailing(n int) (TransactionID, bool) {
	if n == 0 {
		if len(h.undoStack) == 0 {
			return 0, false
		}
		return h.undoStack[len(h.undoStack)-1].id, true
	}
	newLen := len(h.undoStack) - n
	keep := h.undoStack[:newLen]
	merge := h.undoStack[newLen:]
	last := keep[len(keep)-1]
	last.lastEditAt = merge[len(merge)-1].lastEditAt
	for _, m := range merge {
		for bufID, txnID := range m.bufferTxns {
			if _, ok := last.bufferTxns[bufID]; !ok {
				last.bufferTxns[bufID] = txnID
			}
		}
	}
	h.undoStack = keep
	return last.id, true
}

func (h *history) finalizeLast() {
	if len(h.undoStack) == 0 {
		return
	}
	h.undoStack[len(h.undoStack)-1].suppressGrouping = true
}

func (h *history) push(t *transaction) {
	if len(t.bufferTxns) == 0 {
		return
	}
	h.undoStack = append(h.undoStack, t)
	h.redoStack = nil
}

func (h *history) popUndo() (*transaction, bool) {
	n := len(h.undoStack)
	if n == 0 {
		return nil, false
	}
	t := h.undoStack[n-1]
	h.undoStack = h.undoStack[:n-1]
	h.redoStack = append(h.redoStack, t)
	return t, true
}

func (h *history) popRedo() (*transaction, bool) {
	n := len(h.redoStack)
	if n == 0 {
		return nil, false
	}
	t := h.redoStack[n-1]
	h.redoStack = h.redoStack[:n-1]
	h.undoStack = append(h.undoStack, t)
	return t, true
}

func (h *history) forget(id TransactionID) (*transaction, bool) {
	for i := len(h.undoStack) - 1; i >= 0; i-- {
		if h.undoStack[i].id == id {
			t := h.undoStack[i]
			h.undoStack = append(h.undoStack[:i], h.undoStack[i+1:]...)
			return t, true
		}
	}
	for i := len(h.redoStack) - 1; i >= 0; i-- {
		if h.redoStack[i].id == id {
			t := h.redoStack[i]
			h.redoStack = append(h.redoStack[:i], h.redoStack[i+1:]...)
			return t, true
		}
	}
	return nil, false
}

func (h *history) removeFromUndo(id TransactionID) (*transaction, bool) {
	for i := len(h.undoStack) - 1; i >= 0; i-- {
		if h.undoStack[i].id == id {
			t := h.undoStack[i]
			h.undoStack = append(h.undoStack[:i], h.undoStack[i+1:]...)
			h.redoStack = append(h.redoStack, t)
			return t, true
		}
	}
	return nil, false
}

func (h *history) find(id TransactionID) (*transaction, bool) {
	for _, t := range h.undoStack {
		if t.id == id {
			return t, true
		}
	}
	for _, t := range h.redoStack {
		if t.id == id {
			return t, true
		}
	}
	return nil, false
}

// StartTransaction is StartTransactionAt(time.Now()).
func (mb *MultiBuffer) StartTransaction() (TransactionID, bool) {
	return mb.StartTransactionAt(time.Now())
}

// StartTransactionAt opens (or nests into) a cross-buffer transaction,
// beginning a sub-transaction in every registered buffer the first time
// depth goes from 0 to 1.
func (mb *MultiBuffer) StartTransactionAt(now time.Time) (TransactionID, bool) {
	mb.guard.Check()
	id, started := mb.history.start(now)
	if started {
		for bufID, buf := range mb.buffers {
			txnID := buf.StartTransactionAt(now.UnixMilli())
			mb.history.undoStack[len(mb.history.undoStack)-1].bufferTxns[bufID] = txnID
		}
	} else {
		mb.ensureOpenBuffersTracked(now)
	}
	return id, started
}

// ensureOpenBuffersTracked starts a sub-transaction for any buffer
// registered after the current transaction opened, so a buffer first
// touched mid-transaction is still covered by undo/redo.
func (mb *MultiBuffer) ensureOpenBuffersTracked(now time.Time) {
	if len(mb.history.undoStack) == 0 {
		return
	}
	top := mb.history.undoStack[len(mb.history.undoStack)-1]
	for bufID, buf := range mb.buffers {
		if _, ok := top.bufferTxns[bufID]; ok {
			continue
		}
		top.bufferTxns[bufID] = buf.StartTransactionAt(now.UnixMilli())
	}
}

// EndTransaction is EndTransactionAt(time.Now()).
func (mb *MultiBuffer) EndTransaction() (TransactionID, bool) {
	return mb.EndTransactionAt(time.Now())
}

// EndTransactionAt closes the innermost open transaction; at depth 0 it
// collects each buffer's transaction id, drops the group if nothing
// changed, and otherwise attempts to fold it into the immediately
// preceding transaction.
func (mb *MultiBuffer) EndTransactionAt(now time.Time) (TransactionID, bool) {
	mb.guard.Check()
	bufferTxns := make(map[buffer.ID]buffer.TransactionID, len(mb.buffers))
	for bufID, buf := range mb.buffers {
		if txnID, ok := buf.EndTransactionAt(now.UnixMilli()); ok {
			bufferTxns[bufID] = txnID
		}
	}
	if !mb.history.end(now, bufferTxns) {
		return 0, false
	}
	return mb.history.group()
}

// FinalizeLastTransaction marks the most recent transaction as never to be
// grouped with a later one.
func (mb *MultiBuffer) FinalizeLastTransaction() {
	mb.guard.Check()
	mb.history.finalizeLast()
	for _, buf := range mb.buffers {
		buf.FinalizeLastTransaction()
	}
}

// PushTransaction records an already-applied set of per-buffer transactions
// as one cross-buffer transaction without going through
// Start/EndTransaction.
func (mb *MultiBuffer) PushTransaction(bufferTxns map[buffer.ID]buffer.TransactionID) {
	mb.guard.Check()
	if mb.history.depth != 0 {
		panic("multibuffer: push_transaction called with an open transaction")
	}
	now := time.Now()
	id := mb.history.nextID
	mb.history.nextID++
	t := &transaction{id: id, bufferTxns: make(map[buffer.ID]buffer.TransactionID, len(bufferTxns)), firstEditAt: now, lastEditAt: now}
	for k, v := range bufferTxns {
		t.bufferTxns[k] = v
	}
	mb.history.push(t)
	mb.history.finalizeLast()
}

// GroupUntilTransaction folds every transaction newer than id into id.
func (mb *MultiBuffer) GroupUntilTransaction(id TransactionID) {
	mb.guard.Check()
	mb.history.groupUntil(id)
}

// MergeTransactions folds src into dst, at both the cross-buffer and
// per-buffer layers.
func (mb *MultiBuffer) MergeTransactions(src, dst TransactionID) {
	mb.guard.Check()
	srcTxn, ok := mb.history.forget(src)
	if !ok {
		return
	}
	dstTxn, ok := mb.history.find(dst)
	if !ok {
		return
	}
	for bufID, srcBufTxn := range srcTxn.bufferTxns {
		if dstBufTxn, ok := dstTxn.bufferTxns[bufID]; ok {
			if buf, ok := mb.buffers[bufID]; ok {
				buf.MergeTransactions(srcBufTxn, dstBufTxn)
			}
		} else {
			dstTxn.bufferTxns[bufID] = srcBufTxn
		}
	}
}

// Undo pops the top of the undo stack and asks each referenced buffer to
// undo to its recorded sub-transaction id, pushing the transaction onto
// the redo stack.
func (mb *MultiBuffer) Undo() (TransactionID, bool) {
	mb.guard.Check()
	for {
		t, ok := mb.history.popUndo()
		if !ok {
			return 0, false
		}
		undone := false
		for bufID := range t.bufferTxns {
			buf, ok := mb.buffers[bufID]
			if !ok {
				continue
			}
			if buf.UndoToTransaction(t.bufferTxns[bufID]) {
				undone = true
			}
		}
		if undone {
			mb.resyncAfterHistoryRevert(t)
			mb.emit(Event{Kind: TransactionUndone, TransactionID: t.id})
			return t.id, true
		}
	}
}

// resyncAfterHistoryRevert re-resolves every excerpt backed by a buffer
// the reverted transaction touched, the same whole-excerpt refresh Edit
// performs after mutating buffers directly.
func (mb *MultiBuffer) resyncAfterHistoryRevert(t *transaction) {
	bufferIDs := make([]buffer.ID, 0, len(t.bufferTxns))
	for bufID := range t.bufferTxns {
		if _, ok := mb.buffers[bufID]; ok {
			bufferIDs = append(bufferIDs, bufID)
		}
	}
	sort.Slice(bufferIDs, func(i, j int) bool { return bufferIDs[i] < bufferIDs[j] })
	mb.refreshAfterBufferEdits(bufferIDs, nil)
	for _, bufID := range bufferIDs {
		mb.bufferVersions[bufID] = mb.buffers[bufID].Version()
	}
}

// Redo is Undo's mirror image.
func (mb *MultiBuffer) Redo() (TransactionID, bool) {
	mb.guard.Check()
	for {
		t, ok := mb.history.popRedo()
		if !ok {
			return 0, false
		}
		redone := false
		for bufID := range t.bufferTxns {
			buf, ok := mb.buffers[bufID]
			if !ok {
				continue
			}
			if buf.RedoToTransaction(t.bufferTxns[bufID]) {
				redone = true
			}
		}
		if redone {
			mb.resyncAfterHistoryRevert(t)
			return t.id, true
		}
	}
}

// UndoTransaction undoes a specific transaction without disturbing the
// undo/redo stacks' top-of-stack ordering for anything else.
func (mb *MultiBuffer) UndoTransaction(id TransactionID) {
	mb.guard.Check()
	t, ok := mb.history.removeFromUndo(id)
	if !ok {
		return
	}
	for bufID, txnID := range t.bufferTxns {
		if buf, ok := mb.buffers[bufID]; ok {
			buf.UndoToTransaction(txnID)
		}
	}
	mb.resyncAfterHistoryRevert(t)
}

// ForgetTransaction drops a transaction from both stacks and every
// referenced buffer's own history.
func (mb *MultiBuffer) ForgetTransaction(id TransactionID) {
	mb.guard.Check()
	t, ok := mb.history.forget(id)
	if !ok {
		return
	}
	for bufID, txnID := range t.bufferTxns {
		if buf, ok := mb.buffers[bufID]; ok {
			buf.ForgetTransaction(txnID)
		}
	}
}

// EditedRangesForTransaction returns, in output-space and sorted by start,
// the ranges touched by transaction id that still fall within a live
// excerpt.
func (mb *MultiBuffer) EditedRangesForTransaction(id TransactionID) []cursor.Range {
	t, ok := mb.history.find(id)
	if !ok {
		return nil
	}
	var ranges []cursor.Range
	for bufID, txnID := range t.bufferTxns {
		buf, ok := mb.buffers[bufID]
		if !ok {
			continue
		}
		excerpts := mb.excerptsForBuffer(bufID)
		for bufRange := range buf.EditedRangesForTransaction(txnID) {
			for _, ex := range excerpts {
				if bufRange.Start < ex.ContextOffsets.Start || bufRange.End > ex.ContextOffsets.End {
					continue
				}
				start := ex.offset + (bufRange.Start - ex.ContextOffsets.Start)
				end := ex.offset + (bufRange.End - ex.ContextOffsets.Start)
				ranges = append(ranges, cursor.Range{Start: start, End: end})
			}
		}
	}
	sortRanges(ranges)
	return ranges
}

func sortRanges(ranges []cursor.Range) {
	for i := 1; i < len(ranges); i++ {
		for j := i; j > 0 && ranges[j-1].Start > ranges[j].Start; j-- {
			ranges[j-1], ranges[j] = ranges[j], ranges[j-1]
		}
	}
}
