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

import "fmt"

// CheckInvariants asserts the structural invariants of a point-in-time
// snapshot: excerpt ordering (delegated to excerpttree.Tree's own
// checker), transform-tree shape (delegated to
// transform.Tree.CheckInvariants), the idmap's agreement with the excerpt
// tree, and the requirement that the transform tree's input-length
// summary equal the excerpt tree's text-length summary. It is a
// debug/test helper, never called on a hot path.
func (s *Snapshot) CheckInvariants() error {
	if err := s.excerpts.CheckInvariants(); err != nil {
		return err
	}
	if err := s.transforms.CheckInvariants(); err != nil {
		return err
	}
	for _, e := range s.excerpts.Excerpts() {
		loc, err := s.idmap.Locator(e.ID)
		if err != nil {
			return fmt.Errorf("multibuffer: idmap missing excerpt %d: %w", e.ID, err)
		}
		if string(loc) != string(e.Loc) {
			return fmt.Errorf("multibuffer: idmap locator for excerpt %d disagrees with excerpt tree", e.ID)
		}
	}
	excerptTextLen := s.excerpts.TextLen()
	transformInputLen := s.transforms.Total().Input.Bytes
	if excerptTextLen != transformInputLen {
		return fmt.Errorf("multibuffer: excerpt-tree text length %d != transform-tree input length %d", excerptTextLen, transformInputLen)
	}
	return nil
}
