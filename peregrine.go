// Package peregrine is the public surface of the grammar notation and
// packrat parsing engine (spec.md §6.1): compile a grammar from its own
// notation, then parse or match input text against it. Every other package
// in this module lives under internal/ and is reached only through the six
// functions here, mirroring the shape of the teacher's root ictiobus.go: a
// thin root package that wires together internal compiler/engine stages
// behind a small, stable API.
package peregrine

import (
	"io"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/peregrine/internal/peregrine/optimize"
	"github.com/dekarrin/peregrine/internal/peregrine/parse"
	"github.com/dekarrin/peregrine/internal/peregrine/pgerr"
	"github.com/dekarrin/peregrine/internal/peregrine/stream"
)

// Grammar is a compiled, optimized grammar (spec.md §3.2/§3.6), ready to
// parse or match input against. Obtained from ParseGrammarText or
// ParseGrammar; the codec package can persist one and hand it back without
// repeating compilation.
type Grammar = grammar.Grammar

// Item is a parse result tree (spec.md §3.1): a Text leaf, an ordered List,
// or a Node mapping attribute names to child Items.
type Item = item.Item

// ParseGrammarText compiles the grammar notation source in text into a
// ready-to-use Grammar: parsing it against the notation's own bootstrap
// grammar (spec.md §4.2), building the grammar object model (§4.3), and
// running the optimizer (§4.6) and recursion/filter analyzers (§4.4/§4.5).
func ParseGrammarText(text string) (*Grammar, error) {
	if text == "" {
		return nil, pgerr.InvalidArgument("text")
	}
	return compileGrammar(stream.New(text))
}

// ParseGrammar compiles the grammar notation source read in full from r, the
// stream counterpart of ParseGrammarText.
func ParseGrammar(r io.Reader) (*Grammar, error) {
	if r == nil {
		return nil, pgerr.InvalidArgument("r")
	}
	s, err := stream.NewFromReader(r)
	if err != nil {
		return nil, err
	}
	return compileGrammar(s)
}

func compileGrammar(s stream.CharStream) (*Grammar, error) {
	bootstrap, err := optimize.Bootstrap()
	if err != nil {
		return nil, err
	}
	unit, ok, err := parse.Run(bootstrap, s)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pgerr.Grammar("", "input does not match the grammar notation")
	}
	g, err := grammar.Build(unit)
	if err != nil {
		return nil, err
	}
	return optimize.Optimize(g)
}

// ParseText parses text against g and returns the resulting Item tree
// (spec.md §4.7). Trailing unconsumed input is tolerated; call MatchesText
// instead to additionally require the whole input be consumed.
func ParseText(g *Grammar, text string) (Item, bool, error) {
	if g == nil {
		return Item{}, false, pgerr.InvalidArgument("g")
	}
	return parse.Run(g, stream.New(text))
}

// ParseStream is ParseText for input read in full from r instead of an
// in-memory string.
func ParseStream(g *Grammar, r io.Reader) (Item, bool, error) {
	if g == nil {
		return Item{}, false, pgerr.InvalidArgument("g")
	}
	if r == nil {
		return Item{}, false, pgerr.InvalidArgument("r")
	}
	s, err := stream.NewFromReader(r)
	if err != nil {
		return Item{}, false, err
	}
	return parse.Run(g, s)
}

// MatchesText reports whether text matches g in its entirety: a successful
// parse that also consumes the whole input.
func MatchesText(g *Grammar, text string) (bool, error) {
	if g == nil {
		return false, pgerr.InvalidArgument("g")
	}
	return parse.Matches(g, stream.New(text))
}

// MatchesStream is MatchesText for input read in full from r instead of an
// in-memory string.
func MatchesStream(g *Grammar, r io.Reader) (bool, error) {
	if g == nil {
		return false, pgerr.InvalidArgument("g")
	}
	if r == nil {
		return false, pgerr.InvalidArgument("r")
	}
	s, err := stream.NewFromReader(r)
	if err != nil {
		return false, err
	}
	return parse.Matches(g, s)
}
