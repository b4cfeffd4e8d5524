// Package ir defines the grammar intermediate-representation node kinds
// (spec.md §3.3) as constructors and accessors over item.Item, plus the
// hand-written bootstrap grammar (§4.2) used to parse grammar source text.
//
// Every IR node is an item.Item Node whose sole attribute key names its
// kind (Quote, String, Char, Range, CharSet, Reference, Group, Optional, Or,
// Sequence, Repeat, Separated, AndNot, As, Declaration, Capture); the payload
// under that key is itself a Node with kind-specific fields. Keeping the
// closed set of ~16 constructors here, rather than scattering kind checks
// through the builder/analyzer/optimizer/parser, is the one generalization
// spec.md §9 calls out explicitly: treat the IR kinds as a separate enum
// rather than reusing the attribute-as-discriminator trick pervasively.
package ir

import (
	"fmt"

	"github.com/dekarrin/peregrine/internal/peregrine/item"
)

// Kind names the IR node kinds. These are also the literal attribute keys
// used on the wrapping Node.
const (
	KindQuote       = "Quote"
	KindString      = "String"
	KindChar        = "Char"
	KindRange       = "Range"
	KindCharSet     = "CharSet"
	KindReference   = "Reference"
	KindGroup       = "Group"
	KindOptional    = "Optional"
	KindOr          = "Or"
	KindSequence    = "Sequence"
	KindRepeat      = "Repeat"
	KindSeparated   = "Separated"
	KindAndNot      = "AndNot"
	KindAs          = "As"
	KindDeclaration = "Declaration"
	KindCapture     = "Capture"
)

// KindOf returns the IR kind of a node: the sole attribute key of a
// well-formed IR Node. Panics if it is not a Node with exactly one key -
// every IR-producing constructor in this package guarantees that shape, so a
// violation here means a malformed tree reached the analyzers, which is a
// GrammarError at a higher layer, not something this accessor should mask.
func KindOf(n item.Item) string {
	if !n.IsNode() {
		panic("ir: KindOf called on non-Node item")
	}
	keys := n.Keys()
	if len(keys) != 1 {
		panic(fmt.Sprintf("ir: malformed IR node with %d attributes, want 1", len(keys)))
	}
	return keys[0]
}

// Payload returns the kind-specific field Node carried under an IR node's
// sole key.
func Payload(n item.Item) item.Item {
	return n.MustGet(KindOf(n))
}

// Is reports whether n is an IR node of the given kind.
func Is(n item.Item, kind string) bool {
	if !n.IsNode() {
		return false
	}
	keys := n.Keys()
	return len(keys) == 1 && keys[0] == kind
}

func wrap(kind string, payload item.Item) item.Item {
	return item.Node().With(kind, payload)
}

// Quote constructs a Quote(text) node: a whitespace-tolerant quoted literal,
// expanded by the optimizer's QuoteExpander rule (§4.6) into a captured
// String/Char, optionally wrapped with whitespace-rule references.
func Quote(text string) item.Item {
	return wrap(KindQuote, item.Node().With("Text", item.Text(text)))
}

// String constructs an exact string-literal match node.
func String(value string) item.Item {
	return wrap(KindString, item.Node().With("Value", item.Text(value)))
}

// Char constructs a single-character match node.
func Char(c rune) item.Item {
	return wrap(KindChar, item.Node().With("Value", item.Text(string(c))))
}

// Range constructs an inclusive character-range match node.
func Range(from, to rune) item.Item {
	return wrap(KindRange, item.Node().With("From", item.Text(string(from))).With("To", item.Text(string(to))))
}

// CharSetEntry is one member of a CharSet literal: either a single character
// or a range.
type CharSetEntry struct {
	From, To rune // From == To for a single character
}

// CharSet constructs a character-set match node. If all is true, entries must
// be empty and the set matches any character (subject to not). A node with
// both all and a non-empty entries list is a grammar error, surfaced when the
// parser consults the node (spec.md §4.7.5).
func CharSet(all bool, not bool, entries ...CharSetEntry) item.Item {
	entryItems := make([]item.Item, len(entries))
	for i, e := range entries {
		if e.From == e.To {
			entryItems[i] = Char(e.From)
		} else {
			entryItems[i] = Range(e.From, e.To)
		}
	}
	payload := item.Node().
		With("All", boolText(all)).
		With("Not", boolText(not)).
		With("Entries", item.List(entryItems...))
	return wrap(KindCharSet, payload)
}

func boolText(b bool) item.Item {
	if b {
		return item.Text("true")
	}
	return item.Text("")
}

func isTrue(it item.Item) bool {
	return it.IsText() && it.AsText() == "true"
}

// Reference constructs a reference-by-name node.
func Reference(name string) item.Item {
	return wrap(KindReference, item.Node().With("Name", item.Text(name)))
}

// Group constructs a parenthesized grouping node.
func Group(expr item.Item) item.Item {
	return wrap(KindGroup, item.Node().With("Expression", expr))
}

// Optional constructs an optional-match node.
func Optional(expr item.Item) item.Item {
	return wrap(KindOptional, item.Node().With("Expression", expr))
}

// Or constructs an ordered-choice node.
func Or(exprs ...item.Item) item.Item {
	return wrap(KindOr, item.Node().With("Expressions", item.List(exprs...)))
}

// Sequence constructs an ordered sequence node.
func Sequence(exprs ...item.Item) item.Item {
	return wrap(KindSequence, item.Node().With("Items", item.List(exprs...)))
}

// RepeatBound is an optional lower/upper bound pair for a Repeat node.
type RepeatBound struct {
	Set  bool
	From int
	To   int // To < 0 means unbounded ("N..n" form: at least From, no max)
}

// Repeat constructs a repetition node. If bound.Set, bound.From is the lower
// bound and bound.To the upper bound ("*N..M"); bound.To < 0 leaves it
// unbounded ("*N..n"), and the exact "*N" form is bound.From == bound.To.
// Otherwise the repetition is unbounded ("*"/"+" forms, disambiguated by min).
func Repeat(expr item.Item, min int, bound RepeatBound) item.Item {
	payload := item.Node().With("Expression", expr).With("Min", item.Text(fmt.Sprint(min)))
	if bound.Set {
		payload = payload.With("From", item.Text(fmt.Sprint(bound.From)))
		if bound.To >= 0 {
			payload = payload.With("To", item.Text(fmt.Sprint(bound.To)))
		}
	}
	return wrap(KindRepeat, payload)
}

// Separated constructs a separated-list node: expr (sep expr)*.
func Separated(expr, sep item.Item) item.Item {
	return wrap(KindSeparated, item.Node().With("Expression", expr).With("Separator", sep))
}

// AndNot constructs a negative-lookahead-guarded match node: expr &! not.
func AndNot(expr, not item.Item) item.Item {
	return wrap(KindAndNot, item.Node().With("Expression", expr).With("Not", not))
}

// As constructs a value-substitution node: expr as "value".
func As(expr item.Item, value string) item.Item {
	return wrap(KindAs, item.Node().With("Expression", expr).With("Value", item.Text(value)))
}

// Declaration constructs a named-capture node: name: expr.
func Declaration(name string, expr item.Item) item.Item {
	return wrap(KindDeclaration, item.Node().With("Name", item.Text(name)).With("Expression", expr))
}

// Capture constructs a text-capture node.
func Capture(expr item.Item) item.Item {
	return wrap(KindCapture, item.Node().With("Expression", expr))
}

// Definition constructs a top-level definition node (not itself a KindOf
// dispatchable expression kind - it is consumed directly by the grammar
// builder, never by the parser/optimizer's expression walkers).
func Definition(name string, precedence int, hasPrecedence bool, rightAssoc bool, declType string, body item.Item) item.Item {
	d := item.Node().With("Name", item.Text(name)).With("Type", item.Text(declType)).With("Expression", body)
	if hasPrecedence {
		d = d.With("Precedence", item.Text(fmt.Sprint(precedence)))
	}
	if rightAssoc {
		d = d.With("Associativity", item.Text("R"))
	} else {
		d = d.With("Associativity", item.Text("L"))
	}
	return d
}

// Unit constructs the root AST node produced by parsing a grammar source
// file: the grammar header plus its definitions.
func Unit(name string, caseSensitive bool, hasCaseOpt bool, whitespace string, hasWhitespace bool, defs ...item.Item) item.Item {
	u := item.Node().With("Name", item.Text(name)).With("Definitions", item.List(defs...))
	if hasCaseOpt {
		if caseSensitive {
			u = u.With("Comparer", item.Text("sensitive"))
		} else {
			u = u.With("Comparer", item.Text("insensitive"))
		}
	}
	if hasWhitespace {
		u = u.With("Whitespace", item.Text(whitespace))
	}
	return u
}
