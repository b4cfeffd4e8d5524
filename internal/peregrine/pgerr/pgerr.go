// Package pgerr holds the error taxonomy exposed to callers of the core:
// GrammarError, ParserError, and argument-validation errors (spec.md §6.4,
// §7). Modeled on the teacher's internal/tqerrors package: small unexported
// struct types implementing error and Unwrap, built via exported
// constructors.
package pgerr

import (
	"errors"
	"fmt"

	"github.com/dekarrin/rosed"
)

// Position locates a point in source text for error reporting. It is
// attached to an error only by a caller of GrammarAt or ParserAt; it is never
// stored per-Item.
type Position struct {
	Line   int
	Col    int
	Offset int
}

func (p Position) String() string {
	if p.Line == 0 {
		return fmt.Sprintf("offset %d", p.Offset)
	}
	return fmt.Sprintf("line %d, col %d", p.Line, p.Col)
}

// ErrInvalidArgument is the sentinel wrapped by the argument-validation
// errors returned by the six public entry points when given a null/absent
// stream or text.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgument returns an error wrapping ErrInvalidArgument that names the
// offending parameter.
func InvalidArgument(param string) error {
	return fmt.Errorf("%s: %w", param, ErrInvalidArgument)
}

// grammarError is a structural defect in a grammar AST or a static-analysis
// failure: unknown reference, missing required IR attribute, a
// recursion/precedence violation, an ill-formed CharSet.
type grammarError struct {
	msg     string
	group   string
	hasPos  bool
	pos     Position
	wrapped error
}

func (e *grammarError) Error() string {
	return e.msg
}

func (e *grammarError) Unwrap() error {
	return e.wrapped
}

// Group returns the name of the definition group the error was raised for,
// if any.
func (e *grammarError) Group() string {
	return e.group
}

// Pos returns the source position associated with the error and whether one
// was set.
func (e *grammarError) Pos() (Position, bool) {
	return e.pos, e.hasPos
}

// Grammar returns a new GrammarError citing the given group name, with
// message built from format/args and word-wrapped for multi-line detail the
// way the teacher wraps descriptive text with rosed elsewhere.
func Grammar(group string, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	wrapped := rosed.Edit(msg).Wrap(78).String()
	full := wrapped
	if group != "" {
		full = fmt.Sprintf("grammar error in group %q: %s", group, wrapped)
	} else {
		full = fmt.Sprintf("grammar error: %s", wrapped)
	}
	return &grammarError{msg: full, group: group}
}

// GrammarAt is Grammar but also attaches a source Position.
func GrammarAt(group string, pos Position, format string, args ...any) error {
	err := Grammar(group, format, args...)
	ge := err.(*grammarError)
	ge.hasPos = true
	ge.pos = pos
	return ge
}

// WrapGrammar wraps an existing error as a GrammarError, preserving Unwrap.
func WrapGrammar(cause error, group string, format string, args ...any) error {
	err := Grammar(group, format, args...)
	ge := err.(*grammarError)
	ge.wrapped = cause
	return ge
}

// IsGrammarError reports whether err is (or wraps) a GrammarError.
func IsGrammarError(err error) bool {
	var ge *grammarError
	return errors.As(err, &ge)
}

// parserError is an invariant failure inside the parser itself - e.g. a
// cache-fail without a preceding cache-start, or a grammar inconsistency
// discovered mid-parse (unknown reference). It is never
// returned for an ordinary parse miss.
type parserError struct {
	msg    string
	id     string
	hasPos bool
	pos    Position
}

func (e *parserError) Error() string {
	return e.msg
}

// ID returns the parse-call correlation id the error occurred under, if the
// Context that raised it had one set.
func (e *parserError) ID() string {
	return e.id
}

func (e *parserError) Pos() (Position, bool) {
	return e.pos, e.hasPos
}

// Parser returns a new ParserError with the given correlation id and
// message.
func Parser(id string, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	full := fmt.Sprintf("parser error: %s", msg)
	if id != "" {
		full = fmt.Sprintf("parser error [%s]: %s", id, msg)
	}
	return &parserError{msg: full, id: id}
}

// ParserAt is Parser but also attaches a source Position.
func ParserAt(id string, pos Position, format string, args ...any) error {
	err := Parser(id, format, args...)
	pe := err.(*parserError)
	pe.hasPos = true
	pe.pos = pos
	return pe
}

// IsParserError reports whether err is (or wraps) a ParserError.
func IsParserError(err error) bool {
	var pe *parserError
	return errors.As(err, &pe)
}
