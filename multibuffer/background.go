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
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/textform/multibuffer/anchor"
	"github.com/textform/multibuffer/buffer"
)

// defaultPrecomputeParallelism bounds how many buffers'
// PrecomputeExcerptRanges work runs concurrently.
const defaultPrecomputeParallelism = 4

// PrecomputeExcerptRanges is the asynchronous half of a bulk insertion
// across many buffers: it computes the context-line-expanded, merged
// ranges for each buffer in parallel
// background goroutines (one per buffer, capped at parallelism), without
// mutating the MultiBuffer itself. The caller drains the result on the
// foreground thread and feeds it to PushMultipleExcerptsWithContextLines,
// keeping every actual mutation single-threaded.
func (mb *MultiBuffer) PrecomputeExcerptRanges(ctx context.Context, perBuffer map[buffer.ID][]buffer.Range, contextLines, parallelism int) (map[buffer.ID][]buffer.Range, error) {
	mb.guard.Check()
	if parallelism <= 0 {
		parallelism = defaultPrecomputeParallelism
	}

	type job struct {
		id     buffer.ID
		snap   buffer.Snapshot
		ranges []buffer.Range
	}
	var jobs []job
	for id, ranges := range perBuffer {
		buf, ok := mb.buffers[id]
		if !ok {
			continue
		}
		jobs = append(jobs, job{id: id, snap: buf.Snapshot(), ranges: ranges})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	results := make(map[buffer.ID][]buffer.Range, len(jobs))
	var mu sync.Mutex
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			expanded := make([]buffer.Range, len(j.ranges))
			for i, r := range j.ranges {
				expanded[i] = expandRangeByLines(j.snap, r, contextLines)
			}
			merged := mergeOverlappingRanges(expanded)
			mu.Lock()
			results[j.id] = merged
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// WaitForAnchors blocks until
// every buffer referenced by anchors has resolved its TextAnchor, one
// goroutine per distinct buffer (errgroup.Group, unbounded — the set of
// buffers touched by a caller's anchor batch is always small). Anchors
// referencing a buffer the MultiBuffer no longer has open are skipped,
// mirroring refresh_anchors' treatment of a vanished excerpt as "no
// longer resolvable" rather than an error.
func (mb *MultiBuffer) WaitForAnchors(ctx context.Context, anchors []anchor.Anchor) error {
	mb.guard.Check()
	byBuffer := map[buffer.ID][]buffer.Anchor{}
	for _, a := range anchors {
		if _, ok := mb.buffers[a.BufferID]; !ok {
			continue
		}
		byBuffer[a.BufferID] = append(byBuffer[a.BufferID], a.TextAnchor)
	}

	g, gctx := errgroup.WithContext(ctx)
	for id, textAnchors := range byBuffer {
		buf := mb.buffers[id]
		textAnchors := textAnchors
		g.Go(func() error {
			for _, ta := range textAnchors {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				// Resolving now, synchronously, is sufficient for this
				// core: the Buffer interface offers no async anchor
				// resolution, so "waiting" degenerates to forcing
				// resolution before returning control to the caller.
				_ = buf.OffsetForAnchor(ta)
			}
			return nil
		})
	}
	return g.Wait()
}
