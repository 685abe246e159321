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

package excerpttree

import (
	"fmt"

	"github.com/textform/multibuffer/locator"
)

// IDMap is the excerpt-id map: a mapping from stable excerpt id to
// locator, letting callers resolve an ExcerptID to its position in the
// excerpt tree without a linear scan. Entries are never removed: a
// removed excerpt's last-known locator is what lets anchor refreshing
// find the excerpt now positionally adjacent to where it used to sit.
type IDMap struct {
	byID map[ID]locator.Locator
}

// NewIDMap returns an empty IDMap.
func NewIDMap() *IDMap { return &IDMap{byID: make(map[ID]locator.Locator)} }

// Set records the locator for id.
func (m *IDMap) Set(id ID, loc locator.Locator) { m.byID[id] = loc }

// Locator returns the locator for id, or an error if id is not present.
func (m *IDMap) Locator(id ID) (locator.Locator, error) {
	loc, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("excerpttree: unknown excerpt id %d", id)
	}
	return loc, nil
}

// MustLocator is like Locator but panics on an unknown id, for call sites
// that have already validated the id exists.
func (m *IDMap) MustLocator(id ID) locator.Locator {
	loc, err := m.Locator(id)
	if err != nil {
		panic(err)
	}
	return loc
}

// Clone returns an independent copy.
func (m *IDMap) Clone() *IDMap {
	out := make(map[ID]locator.Locator, len(m.byID))
	for k, v := range m.byID {
		out[k] = v
	}
	return &IDMap{byID: out}
}

// SyncFromTree folds the tree's current contents into the map after a
// splice. Ids no longer present in the tree keep their last-known
// locator rather than being deleted, so a later anchor refresh can seek
// that locator in the post-mutation order.
func (m *IDMap) SyncFromTree(t *Tree) {
	for _, e := range t.Excerpts() {
		m.byID[e.ID] = e.Loc
	}
}
