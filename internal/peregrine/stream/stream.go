// Package stream provides the random-access character stream the parser
// executes against. Unlike the teacher's lexer-level TokenStream (which only
// ever moves forward), this contract requires O(1) backward seeks, since the
// packrat parser's transactions rewind position constantly.
package stream

import (
	"fmt"
	"io"
)

// CharStream is the contract the core consumes for input text, per spec.md
// §4.1/§6.2. Implementations must offer random-access positioning; setting
// Position backwards is the only rewind mechanism the parser needs and must
// be O(1).
type CharStream interface {
	// Read returns the character at the current position without advancing.
	// Fails if the stream is at EOF.
	Read() (rune, error)

	// Next advances the stream by one character and reports whether the
	// stream is now at EOF.
	Next() (eof bool)

	// Position returns the current offset, in runes, from the start.
	Position() int

	// SetPosition moves the stream to the given offset, clamped to
	// [0, Size()].
	SetPosition(pos int)

	// EOF reports whether the stream is positioned at or beyond its end.
	EOF() bool

	// Size returns the total number of runes in the stream.
	Size() int

	// Segment returns the len runes starting at start. If the requested
	// range runs past the end of the stream, the returned slice is truncated.
	Segment(start, length int) []rune
}

// runeStream is the in-memory CharStream implementation. The core has no
// streaming-input mode (spec.md Non-goals), so slurping the full input once
// at construction time is sufficient and keeps Position/Segment O(1).
type runeStream struct {
	runes []rune
	pos   int
}

// New returns a CharStream over the given text.
func New(text string) CharStream {
	return &runeStream{runes: []rune(text)}
}

// NewFromReader reads r to completion and returns a CharStream over its
// contents.
func NewFromReader(r io.Reader) (CharStream, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stream contents: %w", err)
	}
	return New(string(b)), nil
}

func (s *runeStream) Read() (rune, error) {
	if s.pos >= len(s.runes) {
		return 0, io.EOF
	}
	return s.runes[s.pos], nil
}

func (s *runeStream) Next() bool {
	if s.pos < len(s.runes) {
		s.pos++
	}
	return s.EOF()
}

func (s *runeStream) Position() int {
	return s.pos
}

func (s *runeStream) SetPosition(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.runes) {
		pos = len(s.runes)
	}
	s.pos = pos
}

func (s *runeStream) EOF() bool {
	return s.pos >= len(s.runes)
}

func (s *runeStream) Size() int {
	return len(s.runes)
}

func (s *runeStream) Segment(start, length int) []rune {
	if start < 0 {
		start = 0
	}
	if start > len(s.runes) {
		return nil
	}
	end := start + length
	if end > len(s.runes) {
		end = len(s.runes)
	}
	if end < start {
		end = start
	}
	out := make([]rune, end-start)
	copy(out, s.runes[start:end])
	return out
}
