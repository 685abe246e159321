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

// Package singleowner asserts that mutations of a value happen from a
// single logical goroutine. The check only runs while the package variable
// Debug is true; otherwise Check returns after reading that flag.
package singleowner

import (
	"fmt"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// Debug gates the check. Off by default so the multi-buffer's
// foreground-executor discipline is only verified when explicitly asked
// for, e.g. under test.
var Debug = false

// Guard records the goroutine that first touched it and panics if a
// later mutation arrives from a different one while Debug is enabled.
type Guard struct {
	owner atomic.Int64
}

// Check asserts the calling goroutine is the guard's owner, claiming
// ownership on first use.
func (g *Guard) Check() {
	if !Debug {
		return
	}
	id := goid.Get()
	if g.owner.CompareAndSwap(0, id) {
		return
	}
	if owner := g.owner.Load(); owner != id {
		panic(fmt.Sprintf("singleowner: accessed from goroutine %d, owned by %d", id, owner))
	}
}

// Release clears ownership, letting a future caller (e.g. on a different
// goroutine after a handoff) claim the guard anew.
func (g *Guard) Release() {
	g.owner.Store(0)
}
