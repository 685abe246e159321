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

package locator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMinMaxOrder(t *testing.T) {
	require.True(t, Compare(Min(), Max()) < 0)
}

func TestBetweenIsOrdered(t *testing.T) {
	mid := Between(Min(), Max())
	require.True(t, Compare(Min(), mid) < 0)
	require.True(t, Compare(mid, Max()) < 0)
}

func TestBetweenRepeatedInsertion(t *testing.T) {
	// Repeatedly insert between the last two locators, simulating
	// inserting excerpts one at a time at the same point: every new
	// locator must land strictly between its neighbors without
	// disturbing the relative order of anything already placed.
	lo, hi := Min(), Max()
	locs := []Locator{lo, hi}
	for i := 0; i < 200; i++ {
		mid := Between(locs[len(locs)-2], locs[len(locs)-1])
		locs = append(locs[:len(locs)-1], mid, locs[len(locs)-1])
	}
	for i := 1; i < len(locs); i++ {
		require.True(t, Compare(locs[i-1], locs[i]) < 0, "index %d", i)
	}
}

func TestBetweenDenseInsertionBothDirections(t *testing.T) {
	// Insert alternately just after the lower bound and just before the
	// upper bound, exercising both branches of Between's digit walk.
	lo, hi := Min(), Max()
	seq := []Locator{lo, hi}
	for i := 0; i < 64; i++ {
		if i%2 == 0 {
			a, b := seq[0], seq[1]
			mid := Between(a, b)
			seq = append(seq[:1], append([]Locator{mid}, seq[1:]...)...)
		} else {
			a, b := seq[len(seq)-2], seq[len(seq)-1]
			mid := Between(a, b)
			seq = append(seq[:len(seq)-1], mid, seq[len(seq)-1])
		}
	}
	for i := 1; i < len(seq); i++ {
		require.True(t, Compare(seq[i-1], seq[i]) < 0, "index %d", i)
	}
}

func TestBetweenPanicsOnMisorderedArgs(t *testing.T) {
	require.Panics(t, func() { Between(Max(), Min()) })
	require.Panics(t, func() { Between(Min(), Min()) })
}

func TestEqual(t *testing.T) {
	a := Between(Min(), Max())
	b := a.Clone()
	require.True(t, Equal(a, b))
	require.Equal(t, 0, Compare(a, b))
}

func TestStringIsStableHex(t *testing.T) {
	l := Locator{0x01, 0xFE}
	require.Equal(t, "01fe", l.String())
}
