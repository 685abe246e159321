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
	"github.com/textform/multibuffer/anchor"
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/diffprovider"
	"github.com/textform/multibuffer/internal/excerpttree"
	"github.com/textform/multibuffer/internal/singleowner"
	"github.com/textform/multibuffer/internal/transform"
)

// MultiBuffer is the controller: it owns the excerpt tree, the
// id map, the diff-transform tree, and per-buffer state, and exposes the
// public operation set. All mutation happens on a single logical
// goroutine; singleowner.Guard asserts this while singleowner.Debug is set.
type MultiBuffer struct {
	guard singleowner.Guard

	excerpts *excerpttree.Tree
	idmap    *excerpttree.IDMap

	transforms *transform.Tree

	buffers        map[buffer.ID]buffer.Buffer
	bufferVersions map[buffer.ID]buffer.Version
	diffs          map[buffer.ID]diffprovider.Provider

	pathKeys map[PathKey][]excerpttree.ID

	allHunksExpanded bool
	capability       Capability
	config           Config
	title            string
	singleton        bool

	history *history

	subscribers map[int]func(Event)
	nextSubID   int

	reporter Reporter

	editCount uint64
}

// New returns an empty MultiBuffer with the given configuration.
func New(cfg Config) *MultiBuffer {
	mb := &MultiBuffer{
		excerpts:         excerpttree.New(),
		idmap:            excerpttree.NewIDMap(),
		transforms:       transform.Empty(),
		buffers:          make(map[buffer.ID]buffer.Buffer),
		bufferVersions:   make(map[buffer.ID]buffer.Version),
		diffs:            make(map[buffer.ID]diffprovider.Provider),
		pathKeys:         make(map[PathKey][]excerpttree.ID),
		allHunksExpanded: cfg.AllDiffHunksExpanded,
		capability:       cfg.Capability,
		config:           cfg,
		title:            cfg.Title,
		history:          newHistory(cfg.GroupInterval),
		subscribers:      make(map[int]func(Event)),
	}
	mb.guard.Check()
	return mb
}

// WithoutHeaders returns a new MultiBuffer configured identically to cfg
// except that ShowHeaders is false.
func WithoutHeaders(cfg Config) *MultiBuffer {
	cfg.ShowHeaders = false
	return New(cfg)
}

// Singleton returns a MultiBuffer that wraps a single backing buffer in
// its entirety as one excerpt, the common case of "open this file".
func Singleton(cfg Config, id buffer.ID, buf buffer.Buffer) *MultiBuffer {
	mb := New(cfg)
	mb.singleton = true
	mb.buffers[id] = buf
	mb.bufferVersions[id] = buf.Version()
	snap := buf.Snapshot()
	mb.PushExcerpts(id, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: snap.Len()}}})
	return mb
}

// Clone returns a structural clone of mb (the persistent trees are shared
// and the maps are copied; the clone starts with an empty edit history and
// no subscribers), suitable for a second independent view over the same
// backing buffers.
func (mb *MultiBuffer) Clone() *MultiBuffer {
	mb.guard.Check()
	clone := &MultiBuffer{
		excerpts:         mb.excerpts.Clone(),
		idmap:            mb.idmap.Clone(),
		transforms:       mb.transforms.Clone(),
		buffers:          cloneBufferMap(mb.buffers),
		bufferVersions:   cloneVersionMap(mb.bufferVersions),
		diffs:            cloneDiffMap(mb.diffs),
		pathKeys:         clonePathKeyMap(mb.pathKeys),
		allHunksExpanded: mb.allHunksExpanded,
		capability:       mb.capability,
		config:           mb.config,
		title:            mb.title,
		singleton:        mb.singleton,
		history:          newHistory(mb.config.GroupInterval),
		subscribers:      make(map[int]func(Event)),
		reporter:         mb.reporter,
	}
	return clone
}

// WithTitle returns mb with its title replaced.
func (mb *MultiBuffer) WithTitle(title string) *MultiBuffer {
	mb.guard.Check()
	mb.title = title
	return mb
}

// Title returns the multi-buffer's display title.
func (mb *MultiBuffer) Title() string { return mb.title }

// SetReporter installs a Reporter for best-effort diagnostic errors.
func (mb *MultiBuffer) SetReporter(r Reporter) { mb.reporter = r }

// report forwards a best-effort diagnostic error to the installed
// Reporter, if any, anchored at a.
func (mb *MultiBuffer) report(a anchor.Anchor, err error) {
	if mb.reporter == nil || err == nil {
		return
	}
	mb.reporter.Report(Error(a, err))
}

// AllBuffers returns every backing buffer id currently registered.
func (mb *MultiBuffer) AllBuffers() []buffer.ID {
	out := make([]buffer.ID, 0, len(mb.buffers))
	for id := range mb.buffers {
		out = append(out, id)
	}
	return out
}

// Buffer returns the backing buffer for id, if registered.
func (mb *MultiBuffer) Buffer(id buffer.ID) (buffer.Buffer, bool) {
	b, ok := mb.buffers[id]
	return b, ok
}

// ExcerptBufferIDs returns the backing buffer id for every excerpt, in
// excerpt order.
func (mb *MultiBuffer) ExcerptBufferIDs() []buffer.ID {
	excerpts := mb.excerpts.Excerpts()
	out := make([]buffer.ID, len(excerpts))
	for i, e := range excerpts {
		out[i] = e.BufferID
	}
	return out
}

// ExcerptIDs returns every excerpt id, in excerpt order.
func (mb *MultiBuffer) ExcerptIDs() []excerpttree.ID {
	excerpts := mb.excerpts.Excerpts()
	out := make([]excerpttree.ID, len(excerpts))
	for i, e := range excerpts {
		out[i] = e.ID
	}
	return out
}

// IsSingleton reports whether mb was constructed by Singleton and still
// wraps exactly one backing buffer shown in full.
func (mb *MultiBuffer) IsSingleton() bool { return mb.singleton }

// Capability returns the multi-buffer's current read/write capability.
func (mb *MultiBuffer) Capability() Capability { return mb.capability }

// SetCapability changes the multi-buffer's capability, emitting
// CapabilityChanged.
func (mb *MultiBuffer) SetCapability(c Capability) {
	mb.guard.Check()
	if c == mb.capability {
		return
	}
	mb.capability = c
	mb.emit(Event{Kind: CapabilityChanged})
}

// registerBuffer attaches a backing buffer, if not already registered.
func (mb *MultiBuffer) registerBuffer(id buffer.ID, buf buffer.Buffer) {
	if _, ok := mb.buffers[id]; ok {
		return
	}
	mb.buffers[id] = buf
	mb.bufferVersions[id] = buf.Version()
}

func cloneBufferMap(m map[buffer.ID]buffer.Buffer) map[buffer.ID]buffer.Buffer {
	out := make(map[buffer.ID]buffer.Buffer, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneVersionMap(m map[buffer.ID]buffer.Version) map[buffer.ID]buffer.Version {
	out := make(map[buffer.ID]buffer.Version, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneDiffMap(m map[buffer.ID]diffprovider.Provider) map[buffer.ID]diffprovider.Provider {
	out := make(map[buffer.ID]diffprovider.Provider, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePathKeyMap(m map[PathKey][]excerpttree.ID) map[PathKey][]excerpttree.ID {
	out := make(map[PathKey][]excerpttree.ID, len(m))
	for k, v := range m {
		out[k] = append([]excerpttree.ID(nil), v...)
	}
	return out
}
