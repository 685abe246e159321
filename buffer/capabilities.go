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

package buffer

// This file collects optional capability interfaces a Buffer
// implementation may additionally satisfy. None of these are part of the
// required Buffer interface: the core type-asserts for them at each call
// site and treats their absence as "no answer", never an error, since a
// bare rope buffer with no language server attached is a completely
// ordinary backing buffer.

// Language describes the language a span of a buffer is written in.
type Language struct {
	Name string
}

// Settings is the subset of editor settings the core needs to reason
// about indentation (autoindent, context-line expansion snapping).
type Settings struct {
	TabSize  int
	HardTabs bool
}

// Scope names a syntax scope (e.g. "string.quoted", "comment.line") at a
// position, analogous to a TextMate/tree-sitter highlight scope.
type Scope struct {
	Name string
}

// CharKind classifies a rune for word-boundary purposes.
type CharKind uint8

const (
	CharWhitespace CharKind = iota
	CharWord
	CharPunctuation
)

// CharClassifier classifies runes for word-motion and selection
// purposes; Classify(' ') == CharWhitespace, Classify('_') is
// implementation-defined (most languages treat it as CharWord).
type CharClassifier func(r rune) CharKind

// LanguageProvider is an optional Buffer capability exposing per-offset
// language metadata.
type LanguageProvider interface {
	LanguageAt(offset int) (Language, bool)
	SettingsAt(offset int) (Settings, bool)
	LanguageScopeAt(offset int) (Scope, bool)
	CharClassifierAt(offset int) CharClassifier
}

// FileProvider is an optional Buffer capability exposing the backing
// path, if any.
type FileProvider interface {
	FilePath() (path string, ok bool)
}

// TextObjectKind selects the kind of syntactic unit TextObjectRanges
// looks for (e.g. "function", "class", "argument" in tree-sitter textobj
// query terms); the set of valid kinds is owned by the buffer
// implementation, this package treats it opaquely.
type TextObjectKind string

// BracketMatcher is an optional Buffer capability for bracket- and
// text-object-aware range queries.
type BracketMatcher interface {
	// BracketRanges returns every matched open/close bracket pair
	// intersecting rng, each as a two-element array [open, close].
	BracketRanges(rng Range) [][2]Range
	// EnclosingBracketRanges returns every bracket pair enclosing offset,
	// outermost first.
	EnclosingBracketRanges(offset int) [][2]Range
	// TextObjectRanges returns the ranges of the given text-object kind
	// enclosing or adjacent to offset.
	TextObjectRanges(offset int, kind TextObjectKind) []Range
}

// IndentSize is a line's leading-whitespace width, measured in columns
// (tabs expanded per Settings.TabSize).
type IndentSize struct {
	Columns   uint32
	IsTab     bool
	RawChars  int
}

// IndentProvider is an optional Buffer capability for per-row indent
// queries.
type IndentProvider interface {
	LineIndent(row uint32) (IndentSize, bool)
}

// SymbolKind names the kind of a symbol (function, struct, ...); owned
// by the buffer implementation.
type SymbolKind string

// Symbol is one entry of a buffer's outline.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Range Range
	// Children holds nested symbols (e.g. methods within a type), in
	// document order.
	Children []Symbol
}

// SymbolProvider is an optional Buffer capability exposing a structural
// outline.
type SymbolProvider interface {
	Outline(rng Range) []Symbol
	SymbolsContaining(offset int) []Symbol
}
