// Package parse implements the packrat recursive-descent engine of spec.md
// §4.7: transactional execution, a per-call memoization table, the
// left-recursion grow loop for dispatching a definition group, the
// first-character filter short-circuit, and the expression/result-merge
// semantics that turn a grammar's IR into a parsed Item tree.
package parse

import (
	"fmt"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/peregrine/internal/peregrine/pgerr"
	"github.com/dekarrin/peregrine/internal/peregrine/stream"
	"github.com/google/uuid"
)

// cacheState is the three-valued memo slot of spec.md §4.7.2.
type cacheState int

const (
	notAttempted cacheState = iota
	attempting
	done
)

type cacheKey struct {
	pos  int
	name string
}

type cacheEntry struct {
	state  cacheState
	ok     bool
	length int
	result item.Item
}

// refOccurrence identifies one Reference node's occurrence within its owning
// definition, for looking up DefinitionGroup.ReferenceMinPrecedents (spec.md
// §4.4/§4.7.3). Only self-references (a group's own definitions referencing
// that same group) ever carry one; every other Reference call passes nil,
// which is also what the root call uses ("R may be null for the root call").
type refOccurrence struct {
	id string
}

// Context is the per-parse state of spec.md §4.7: the stream, the grammar
// being executed against it, the memoization table, and a correlation id
// surfaced on any ParserError (DOMAIN STACK, uuid row - mirrors the teacher's
// use of uuid to correlate session/request identifiers in
// server/dao/sqlite/sessions.go). A Context is used for exactly one parse
// call and discarded; the cache is never shared across parses (spec.md §5).
type Context struct {
	g      *grammar.Grammar
	stream stream.CharStream
	id     string
	cache  map[cacheKey]*cacheEntry
}

// NewContext returns a Context ready to parse s against g.
func NewContext(g *grammar.Grammar, s stream.CharStream) *Context {
	return &Context{
		g:      g,
		stream: s,
		id:     uuid.NewString(),
		cache:  map[cacheKey]*cacheEntry{},
	}
}

// ID returns the correlation id of this parse call, surfaced on any
// ParserError it raises.
func (c *Context) ID() string {
	return c.id
}

// Run parses the entirety of the root group against the stream and returns
// the result, uncaptured and with every transient Captured bit cleared
// throughout the tree (spec.md §4.7.6: "the outermost parse call strips the
// top-level captured flag before returning").
func Run(g *grammar.Grammar, s stream.CharStream) (item.Item, bool, error) {
	if g == nil {
		return item.Item{}, false, pgerr.Parser("", "nil grammar")
	}
	if g.Root == "" {
		return item.Item{}, false, pgerr.Grammar("", "grammar has no root group")
	}
	c := NewContext(g, s)
	result, ok, err := c.parseDefinitionGroup(g.Root, nil)
	if err != nil || !ok {
		return item.Item{}, false, err
	}
	return uncaptureDeep(result), true, nil
}

// Matches reports whether the root group matches the stream in its entirety:
// a successful Run whose final position reaches EOF. Spec.md's parseText
// tolerates trailing unconsumed input (it returns whatever tree the root
// group produced); matchesText additionally requires the whole input be
// consumed, the conventional reading of "matches" for a grammar checker.
func Matches(g *grammar.Grammar, s stream.CharStream) (bool, error) {
	if g == nil {
		return false, pgerr.Parser("", "nil grammar")
	}
	if g.Root == "" {
		return false, pgerr.Grammar("", "grammar has no root group")
	}
	c := NewContext(g, s)
	_, ok, err := c.parseDefinitionGroup(g.Root, nil)
	if err != nil {
		return false, err
	}
	return ok && c.stream.EOF(), nil
}

// transact runs op, rewinding the stream to its pre-call position if op does
// not succeed or errors (spec.md §4.7.1): "every composite rule runs inside a
// transaction so a partial match does not advance the stream."
func (c *Context) transact(op func() (item.Item, bool, error)) (item.Item, bool, error) {
	start := c.stream.Position()
	result, ok, err := op()
	if err != nil || !ok {
		c.stream.SetPosition(start)
		return item.Item{}, false, err
	}
	return result, true, nil
}

// parseDefinitionGroup dispatches a named group (spec.md §4.7.3), running the
// Warth-style left-recursion grow loop: each round tries every eligible
// definition at the current position, keeps the farthest-advancing success,
// and - if the group is recursive and that round improved on the last - seeds
// the cache with the new best before looping again so a self-Reference in the
// next round sees it instead of failing outright.
func (c *Context) parseDefinitionGroup(name string, ref *refOccurrence) (item.Item, bool, error) {
	pos := c.stream.Position()
	key := cacheKey{pos: pos, name: name}

	if entry, ok := c.cache[key]; ok {
		switch entry.state {
		case done:
			if !entry.ok {
				return item.Item{}, false, nil
			}
			c.stream.SetPosition(pos + entry.length)
			return entry.result, true, nil
		case attempting:
			// Mid-computation re-entry: the base case of the left-recursion
			// grow loop (spec.md §4.7.2's Evaluating bit). Ordinary
			// (non-recursive) calls never see this, since a group is only
			// re-entered at the same position by one of its own definitions.
			return item.Item{}, false, nil
		}
	}

	grp := c.g.Group(name)
	if grp == nil {
		return item.Item{}, false, pgerr.Parser(c.id, "reference to unknown definition group %q", name)
	}

	minPrec := 0
	if ref != nil {
		if v, ok := grp.ReferenceMinPrecedents[ref.id]; ok {
			minPrec = v
		}
	}

	order := orderDefinitions(grp)
	c.cache[key] = &cacheEntry{state: attempting}

	bestOK := false
	var bestResult item.Item
	bestPos := pos

	for {
		roundOK := false
		var roundResult item.Item
		roundPos := pos

		for _, d := range order {
			prec := d.Precedence
			if !d.HasPrecedence {
				prec = grammar.NoPrecedence
			}
			if !(prec >= minPrec || !d.IsLeftRecursive) {
				continue
			}
			if !c.filterAllows(d.Filter) {
				continue
			}

			c.stream.SetPosition(pos)
			result, ok, err := c.evalExpr(d.Instance, name, d.Index, fmt.Sprint(d.Index))
			if err != nil {
				delete(c.cache, key)
				return item.Item{}, false, err
			}
			if !ok {
				continue
			}
			if d.IsNode {
				result = item.Node().With(d.Name, result)
			}

			endPos := c.stream.Position()
			if !roundOK || endPos > roundPos {
				roundOK = true
				roundResult = result
				roundPos = endPos
			}
		}

		if !roundOK {
			break
		}
		if bestOK && roundPos <= bestPos {
			break
		}
		bestOK, bestResult, bestPos = true, roundResult, roundPos

		if !grp.Recursiveness.IsRecursive() {
			break
		}
		// Seed the cache with this round's best before growing further.
		c.cache[key] = &cacheEntry{state: done, ok: true, length: bestPos - pos, result: bestResult}
	}

	if bestOK {
		c.cache[key] = &cacheEntry{state: done, ok: true, length: bestPos - pos, result: bestResult}
		c.stream.SetPosition(bestPos)
		return bestResult, true, nil
	}
	c.cache[key] = &cacheEntry{state: done, ok: false}
	c.stream.SetPosition(pos)
	return item.Item{}, false, nil
}

// orderDefinitions sorts a group's definitions by descending precedence,
// Right-associative before Left at equal precedence, falling back to source
// order otherwise (spec.md §4.7.3 step 2, §5 "Ordering").
func orderDefinitions(grp *grammar.DefinitionGroup) []*grammar.Definition {
	out := make([]*grammar.Definition, len(grp.Definitions))
	copy(out, grp.Definitions)
	precOf := func(d *grammar.Definition) int {
		if !d.HasPrecedence {
			return grammar.NoPrecedence
		}
		return d.Precedence
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			if less(a, b, precOf) {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// less reports whether a should sort before b: higher precedence first,
// Right before Left at a tie, then original source order.
func less(a, b *grammar.Definition, precOf func(*grammar.Definition) int) bool {
	pa, pb := precOf(a), precOf(b)
	if pa != pb {
		return pa > pb
	}
	if a.Associativity != b.Associativity {
		return a.Associativity == grammar.Right
	}
	return a.Index < b.Index
}

// filterAllows implements the filter short-circuit of spec.md §4.7.4.
func (c *Context) filterAllows(f *grammar.Filter) bool {
	if f == nil || !f.Exclusive {
		return true
	}
	if c.stream.EOF() {
		return true
	}
	r, err := c.stream.Read()
	if err != nil {
		return true
	}
	return csContains(f.Chars, r, c.g.Options.CaseSensitive)
}

// uncaptureDeep clears the transient Captured bit on every Text leaf of the
// tree (spec.md §9: "the returned top-level Item is always unflagged" -
// applied recursively here since Captured is documented in item.go as never
// observable outside an in-flight parse).
func uncaptureDeep(it item.Item) item.Item {
	switch it.Kind {
	case item.KindText:
		return it.Uncaptured()
	case item.KindList:
		elems := it.Elements()
		out := make([]item.Item, len(elems))
		for i, e := range elems {
			out[i] = uncaptureDeep(e)
		}
		return item.List(out...)
	case item.KindNode:
		out := item.Node()
		for _, k := range it.Keys() {
			out = out.With(k, uncaptureDeep(it.MustGet(k)))
		}
		return out
	default:
		return it
	}
}
