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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/textform/multibuffer/anchor"
	"github.com/textform/multibuffer/buffer"
	"github.com/textform/multibuffer/buffer/textrope"
	"github.com/textform/multibuffer/internal/cursor"
)

// fakeBuffer wraps a *textrope.Buffer to additionally satisfy the
// optional capability interfaces in package buffer (LanguageProvider,
// FileProvider, BracketMatcher, IndentProvider, SymbolProvider). None of
// these are part of buffer.Buffer itself, so a plain *textrope.Buffer
// never satisfies them; the core is expected to type-assert for them at
// each call site and treat their absence as "no answer".
//
// Bracket matching and indents are derived from the buffer's own text so
// the test fixtures stay self-consistent with whatever fakeBuffer wraps.
type fakeBuffer struct {
	*textrope.Buffer
	path string
	syms []buffer.Symbol
}

func newFakeBuffer(id buffer.ID, text, path string, syms []buffer.Symbol) *fakeBuffer {
	return &fakeBuffer{Buffer: textrope.New(id, text), path: path, syms: syms}
}

func (f *fakeBuffer) text() string {
	var out []byte
	for b := range f.BytesInRange(buffer.Range{Start: 0, End: f.Snapshot().Len()}) {
		out = append(out, b)
	}
	return string(out)
}

func (f *fakeBuffer) LanguageAt(int) (buffer.Language, bool) {
	return buffer.Language{Name: "go"}, true
}

func (f *fakeBuffer) SettingsAt(int) (buffer.Settings, bool) {
	return buffer.Settings{TabSize: 4}, true
}

func (f *fakeBuffer) LanguageScopeAt(int) (buffer.Scope, bool) {
	return buffer.Scope{Name: "source.go"}, true
}

func (f *fakeBuffer) CharClassifierAt(int) buffer.CharClassifier {
	return func(r rune) buffer.CharKind {
		switch {
		case r == ' ' || r == '\t' || r == '\n':
			return buffer.CharWhitespace
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_':
			return buffer.CharWord
		default:
			return buffer.CharPunctuation
		}
	}
}

func (f *fakeBuffer) FilePath() (string, bool) {
	if f.path == "" {
		return "", false
	}
	return f.path, true
}

// bracketPairs finds every "(" ... ")" pair in the buffer's text, the
// simplest possible stand-in for a real tree-sitter bracket matcher.
func (f *fakeBuffer) bracketPairs() [][2]buffer.Range {
	text := f.text()
	var stack []int
	var pairs [][2]buffer.Range
	for i, r := range text {
		switch r {
		case '(':
			stack = append(stack, i)
		case ')':
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pairs = append(pairs, [2]buffer.Range{
				{Start: open, End: open + 1},
				{Start: i, End: i + 1},
			})
		}
	}
	return pairs
}

func (f *fakeBuffer) BracketRanges(rng buffer.Range) [][2]buffer.Range {
	var out [][2]buffer.Range
	for _, pair := range f.bracketPairs() {
		if pair[0].Start >= rng.Start && pair[1].End <= rng.End {
			out = append(out, pair)
		}
	}
	return out
}

// EnclosingBracketRanges returns pairs outermost first, per the
// buffer.BracketMatcher contract: bracketPairs closes innermost pairs
// first (stack order), so the matches are collected then reversed.
func (f *fakeBuffer) EnclosingBracketRanges(offset int) [][2]buffer.Range {
	var out [][2]buffer.Range
	for _, pair := range f.bracketPairs() {
		if pair[0].Start <= offset && offset <= pair[1].End {
			out = append(out, pair)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (f *fakeBuffer) TextObjectRanges(offset int, kind buffer.TextObjectKind) []buffer.Range {
	if kind != "paren" {
		return nil
	}
	var out []buffer.Range
	for _, pair := range f.EnclosingBracketRanges(offset) {
		out = append(out, buffer.Range{Start: pair[0].Start, End: pair[1].End})
	}
	return out
}

func (f *fakeBuffer) LineIndent(row uint32) (buffer.IndentSize, bool) {
	text := f.text()
	lines := splitLinesKeepEmpty(text)
	if int(row) >= len(lines) {
		return buffer.IndentSize{}, false
	}
	line := lines[row]
	var n int
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return buffer.IndentSize{Columns: uint32(n), RawChars: n}, true
}

func splitLinesKeepEmpty(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func (f *fakeBuffer) Outline(rng buffer.Range) []buffer.Symbol {
	var out []buffer.Symbol
	for _, sym := range f.syms {
		if sym.Range.Start >= rng.Start && sym.Range.End <= rng.End {
			out = append(out, sym)
		}
	}
	return out
}

func (f *fakeBuffer) SymbolsContaining(offset int) []buffer.Symbol {
	var out []buffer.Symbol
	var walk func([]buffer.Symbol)
	walk = func(syms []buffer.Symbol) {
		for _, sym := range syms {
			if offset >= sym.Range.Start && offset < sym.Range.End {
				out = append(out, sym)
				walk(sym.Children)
			}
		}
	}
	walk(f.syms)
	return out
}

func singletonWithFake(t *testing.T, buf *fakeBuffer) *MultiBuffer {
	t.Helper()
	return Singleton(DefaultConfig(), buf.RemoteID(), buf)
}

func TestLanguageQueriesDelegateToCapableBuffer(t *testing.T) {
	buf := newFakeBuffer(1, "package main\n", "", nil)
	mb := singletonWithFake(t, buf)

	lang, ok := mb.LanguageAt(0)
	require.True(t, ok)
	require.Equal(t, "go", lang.Name)

	settings, ok := mb.SettingsAt(0)
	require.True(t, ok)
	require.Equal(t, 4, settings.TabSize)

	scope, ok := mb.LanguageScopeAt(0)
	require.True(t, ok)
	require.Equal(t, "source.go", scope.Name)

	classifier := mb.CharClassifierAt(0)
	require.NotNil(t, classifier)
	require.Equal(t, buffer.CharWord, classifier('p'))
	require.Equal(t, buffer.CharWhitespace, classifier(' '))
}

func TestLanguageQueriesAbsentWithoutCapability(t *testing.T) {
	plain := textrope.New(1, "hello")
	mb := Singleton(DefaultConfig(), 1, plain)

	_, ok := mb.LanguageAt(0)
	require.False(t, ok)
	require.Nil(t, mb.CharClassifierAt(0))
}

func TestFileAtReportsBackingPath(t *testing.T) {
	withPath := newFakeBuffer(1, "x", "internal/foo.go", nil)
	mb := singletonWithFake(t, withPath)
	path, ok := mb.FileAt(0)
	require.True(t, ok)
	require.Equal(t, "internal/foo.go", path)

	withoutPath := newFakeBuffer(2, "x", "", nil)
	mb2 := singletonWithFake(t, withoutPath)
	_, ok = mb2.FileAt(0)
	require.False(t, ok)
}

func TestBracketRangesAndTextObjects(t *testing.T) {
	buf := newFakeBuffer(1, "foo(bar(baz))", "", nil)
	mb := singletonWithFake(t, buf)
	snap := mb.Snapshot()

	all := snap.BracketRanges(cursor.Range{Start: 0, End: snap.Len()})
	require.Len(t, all, 2)

	inner, ok := snap.InnermostEnclosingBracketRanges(9) // inside "baz"
	require.True(t, ok)
	require.Equal(t, cursor.Range{Start: 7, End: 8}, inner[0])
	require.Equal(t, cursor.Range{Start: 11, End: 12}, inner[1])

	objs := snap.TextObjectRanges(9, "paren")
	require.NotEmpty(t, objs)
}

func TestLineIndentsAndEnclosingIndent(t *testing.T) {
	text := "func f() {\n    if true {\n        g()\n    }\n}\n"
	buf := newFakeBuffer(1, text, "", nil)
	mb := singletonWithFake(t, buf)
	snap := mb.Snapshot()

	var indents []buffer.IndentSize
	for li := range snap.LineIndents(0) {
		indents = append(indents, li.Indent)
	}
	require.Len(t, indents, 5)
	require.Equal(t, uint32(0), indents[0].Columns)
	require.Equal(t, uint32(4), indents[1].Columns)
	require.Equal(t, uint32(8), indents[2].Columns)

	enclosing, ok := snap.EnclosingIndent(context.Background(), 2)
	require.True(t, ok)
	require.Equal(t, uint32(4), enclosing.Indent.Columns)
}

func TestOutlineAndSymbolsContaining(t *testing.T) {
	text := "func Foo() {}\nfunc Bar() {}\n"
	syms := []buffer.Symbol{
		{Name: "Foo", Kind: "func", Range: buffer.Range{Start: 0, End: 13}},
		{Name: "Bar", Kind: "func", Range: buffer.Range{Start: 14, End: 27}},
	}
	buf := newFakeBuffer(1, text, "", syms)
	mb := singletonWithFake(t, buf)
	snap := mb.Snapshot()

	entries := snap.Outline(cursor.Range{Start: 0, End: snap.Len()})
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"Foo", "Bar"}, names); diff != "" {
		t.Fatalf("outline names mismatch (-want +got):\n%s", diff)
	}

	containing := snap.SymbolsContaining(2)
	require.Len(t, containing, 1)
	require.Equal(t, "Foo", containing[0].Name)
}

func TestSnapshotCheckInvariantsPassesOnWellFormedDocument(t *testing.T) {
	mb := New(DefaultConfig())
	a := textrope.New(1, "AAA")
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()
	b := textrope.New(2, "BBB")
	mb.buffers[2] = b
	mb.bufferVersions[2] = b.Version()

	mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})
	mb.PushExcerpts(2, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})

	snap := mb.Snapshot()
	require.NoError(t, snap.CheckInvariants())
}

func TestPrecomputeExcerptRangesExpandsAndMerges(t *testing.T) {
	mb := New(DefaultConfig())
	text := "line0\nline1\nline2\nline3\nline4\nline5\n"
	a := textrope.New(1, text)
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()

	requested := map[buffer.ID][]buffer.Range{
		1: {{Start: 18, End: 24}}, // "line3\n"
	}
	results, err := mb.PrecomputeExcerptRanges(context.Background(), requested, 1, 0)
	require.NoError(t, err)
	require.Contains(t, results, buffer.ID(1))
	require.NotEmpty(t, results[1])
	// Expanding by one line of context on each side should not shrink the
	// requested range.
	got := results[1][0]
	require.LessOrEqual(t, got.Start, 18)
	require.GreaterOrEqual(t, got.End, 24)
}

func TestWaitForAnchorsResolvesAcrossBuffers(t *testing.T) {
	mb := New(DefaultConfig())
	a := textrope.New(1, "AAA")
	mb.buffers[1] = a
	mb.bufferVersions[1] = a.Version()
	b := textrope.New(2, "BBB")
	mb.buffers[2] = b
	mb.bufferVersions[2] = b.Version()

	excerptsA := mb.PushExcerpts(1, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})
	excerptsB := mb.PushExcerpts(2, []ExcerptRequest{{Range: buffer.Range{Start: 0, End: 3}}})

	toWait := []anchor.Anchor{
		{ExcerptID: excerptsA[0].ID, BufferID: 1, TextAnchor: excerptsA[0].Context.Start},
		{ExcerptID: excerptsB[0].ID, BufferID: 2, TextAnchor: excerptsB[0].Context.Start},
	}
	require.NoError(t, mb.WaitForAnchors(context.Background(), toWait))
}
