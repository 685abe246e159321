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

// Package locator implements a dense total order suitable for ordering
// excerpts in a multi-buffer: given any two locators a < b, Between(a, b)
// produces a new locator strictly between them without needing to
// renumber anything else in the order.
//
// A Locator is represented as a sequence of byte digits no greater than
// 254 (Min and Max use 1 and 254; Between writes a 0 digit only where a is
// a prefix of b) terminated implicitly by running out of digits. Comparison is
// then exactly Go's lexicographic byte-slice order, which also happens to
// give the right answer for "is a a prefix of b" (a prefix sorts before
// any extension of itself), which is what lets Between fall back to
// simple digit insertion instead of a full tree rebalance.
package locator

import "bytes"

// Locator is a dense-order key. The zero value is not a valid Locator;
// use Min to construct the smallest one.
type Locator []byte

const (
	minDigit byte = 0x01
	maxDigit byte = 0xFE
	midDigit byte = (minDigit + maxDigit) / 2
)

// Min returns the smallest possible Locator. It compares less than every
// Locator produced by Between.
func Min() Locator { return Locator{minDigit} }

// Max returns the largest possible Locator.
func Max() Locator { return Locator{maxDigit} }

// Compare implements the total order: Compare(a, b) < 0 iff a < b.
func Compare(a, b Locator) int {
	return bytes.Compare(a, b)
}

// Equal reports whether a and b are the same Locator.
func Equal(a, b Locator) bool {
	return bytes.Equal(a, b)
}

// Clone returns an independent copy of l.
func (l Locator) Clone() Locator {
	out := make(Locator, len(l))
	copy(out, l)
	return out
}

// Between returns a new Locator k such that a < k < b. a and b need not
// already exist in any tree; Between(Min(), Max()) is a valid way to seed
// the first element of an otherwise empty sequence. Panics if a is not
// strictly less than b.
func Between(a, b Locator) Locator {
	if Compare(a, b) >= 0 {
		panic("locator: Between requires a strictly less than b")
	}

	var out Locator
	for i := 0; ; i++ {
		da := digitAt(a, i)
		db := digitAt(b, i)

		if da == db {
			out = append(out, da)
			continue
		}

		if db-da > 1 {
			out = append(out, da+(db-da)/2)
			return out
		}

		// db == da+1 (or b ran out and implicitly "continues" with high
		// digits): we cannot fit a digit strictly between da and db at
		// this position, so we take da here and manufacture room after it
		// in the tail of a (treating b's remainder as "as large as
		// possible"): a's following digits that are already maxDigit are
		// copied, and the first smaller one is bumped.
		out = append(out, da)
		j := i + 1
		for restAfter(a, j) >= maxDigit {
			out = append(out, restAfter(a, j))
			j++
		}
		out = append(out, bumpedDigit(restAfter(a, j)))
		return out
	}
}

// digitAt returns the digit of l at index i, treating a Locator as padded
// with an implicit minDigit-1 (i.e. "nothing") past its length, which sorts
// below everything so a shorter Locator behaves as smaller than any of its
// own extensions — matching bytes.Compare's prefix rule.
func digitAt(l Locator, i int) byte {
	if i >= len(l) {
		return 0
	}
	return l[i]
}

// restAfter returns the digit at index i of l, used as a seed for picking a
// digit in a newly extended position; if l has no more digits, the minimum
// is used so the result trends toward the low end of the remaining space.
func restAfter(l Locator, i int) byte {
	return digitAt(l, i)
}

// bumpedDigit picks a digit strictly greater than seed, halfway toward
// maxDigit, when seed is below maxDigit; for a seed of maxDigit or more it
// returns maxDigit itself.
func bumpedDigit(seed byte) byte {
	if seed >= maxDigit {
		return maxDigit
	}
	return seed + 1 + (maxDigit-seed-1)/2
}

// String renders the Locator as a sequence of hex byte pairs, for debugging.
func (l Locator) String() string {
	const hex = "0123456789abcdef"
	out := make([]byte, 0, len(l)*2)
	for _, b := range l {
		out = append(out, hex[b>>4], hex[b&0xF])
	}
	return string(out)
}
