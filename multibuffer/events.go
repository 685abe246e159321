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

// Subscription is returned by Subscribe; call Unsubscribe to stop
// receiving events.
type Subscription struct {
	mb *MultiBuffer
	id int
}

// Unsubscribe removes the callback this Subscription was created for.
func (s Subscription) Unsubscribe() {
	if s.mb == nil {
		return
	}
	delete(s.mb.subscribers, s.id)
}

// Subscribe registers fn to be called for every Event this MultiBuffer
// emits. Subscribers are kept in a map, so the order in which different
// subscribers are called is not defined.
func (mb *MultiBuffer) Subscribe(fn func(Event)) Subscription {
	id := mb.nextSubID
	mb.nextSubID++
	mb.subscribers[id] = fn
	return Subscription{mb: mb, id: id}
}

// emit delivers ev to every subscriber. Subscriber iteration order over
// a map is not in general deterministic in Go; callers that care about
// strict fan-out order across many subscribers should keep their own
// ordering externally. The guarantee here is about the sequence of
// events, not the fan-out order of a single event.
func (mb *MultiBuffer) emit(ev Event) {
	mb.editCount++
	for _, fn := range mb.subscribers {
		fn(ev)
	}
}

// EditCount returns the number of mutations published so far. A
// subscriber interleaving event reads with EditCount calls observes
// monotonically increasing values.
func (mb *MultiBuffer) EditCount() uint64 { return mb.editCount }
