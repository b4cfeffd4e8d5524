package grammar

import (
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
)

// ComputeFilters is the exported entry point used by the optimize package
// once rewriting has reached fixpoint: filters describe the rewritten tree
// shape (Quote already expanded to String/Char), not the pre-optimization
// one.
func ComputeFilters(g *Grammar) {
	computeFilters(g)
}

// computeFilters runs the first-character filter analyzer (spec.md §4.5)
// over every definition and group of g, populating Definition.Filter and
// DefinitionGroup.Filter. It is invoked by the optimizer once rewriting has
// reached fixpoint (Quote nodes are expanded by then), not by Build itself -
// filters describe the tree shape the parser will actually walk.
func computeFilters(g *Grammar) {
	fc := &filterComputer{g: g, baseCache: map[string]filterResult{}}
	for _, name := range g.GroupNames() {
		grp := g.Groups[name]
		base := fc.baseFilter(name)
		grp.Filter = &Filter{Chars: base.chars, Exclusive: base.exclusive}
		for _, d := range grp.Definitions {
			if d.IsLeftRecursive {
				d.Filter = &Filter{Chars: base.chars, Exclusive: base.exclusive}
				continue
			}
			fr := fc.exprFilter(d.Instance, map[string]bool{})
			d.Filter = &Filter{Chars: fr.chars, Exclusive: fr.exclusive}
		}
	}
}

type filterResult struct {
	chars     item.CharSet
	exclusive bool
}

func wildcard() filterResult {
	return filterResult{chars: item.AllChars(), exclusive: false}
}

type filterComputer struct {
	g         *Grammar
	baseCache map[string]filterResult
	computing map[string]bool
}

// baseFilter is the union of filters of every non-left-recursive definition
// of the named group: exactly the set of alternatives the packrat grow loop
// can use to seed a match, so it doubles as both the group's own filter and
// the filter inherited by that group's left-recursive definitions.
func (fc *filterComputer) baseFilter(name string) filterResult {
	if fr, ok := fc.baseCache[name]; ok {
		return fr
	}
	if fc.computing == nil {
		fc.computing = map[string]bool{}
	}
	if fc.computing[name] {
		return wildcard()
	}
	fc.computing[name] = true
	defer delete(fc.computing, name)

	grp := fc.g.Group(name)
	if grp == nil {
		return wildcard()
	}

	var union item.CharSet
	exclusiveAll := true
	any := false
	for _, d := range grp.Definitions {
		if d.IsLeftRecursive {
			continue
		}
		any = true
		fr := fc.exprFilter(d.Instance, map[string]bool{})
		union = union.Union(fr.chars)
		if !fr.exclusive {
			exclusiveAll = false
		}
	}
	result := filterResult{chars: union, exclusive: any && exclusiveAll}
	if !any {
		result = wildcard()
	}
	fc.baseCache[name] = result
	return result
}

func (fc *filterComputer) exprFilter(expr item.Item, visited map[string]bool) filterResult {
	kind := ir.KindOf(expr)
	payload := ir.Payload(expr)

	switch kind {
	case ir.KindQuote:
		text := payload.MustGet("Text").AsText()
		if text == "" {
			return wildcard()
		}
		cs := item.NewCharSet()
		r := []rune(text)[0]
		cs.AddRange(r, r)
		return filterResult{chars: cs, exclusive: true}

	case ir.KindString:
		value := payload.MustGet("Value").AsText()
		if value == "" {
			return wildcard()
		}
		cs := item.NewCharSet()
		r := []rune(value)[0]
		cs.AddRange(r, r)
		return filterResult{chars: cs, exclusive: true}

	case ir.KindChar:
		r := []rune(payload.MustGet("Value").AsText())[0]
		cs := item.NewCharSet()
		cs.AddRange(r, r)
		return filterResult{chars: cs, exclusive: true}

	case ir.KindRange:
		from := []rune(payload.MustGet("From").AsText())[0]
		to := []rune(payload.MustGet("To").AsText())[0]
		cs := item.NewCharSet()
		cs.AddRange(from, to)
		return filterResult{chars: cs, exclusive: true}

	case ir.KindCharSet:
		cs := charSetFromIR(payload)
		return filterResult{chars: cs, exclusive: !cs.Empty()}

	case ir.KindOptional:
		inner := fc.exprFilter(payload.MustGet("Expression"), visited)
		return filterResult{chars: inner.chars, exclusive: false}

	case ir.KindGroup:
		return fc.exprFilter(payload.MustGet("Expression"), visited)

	case ir.KindOr:
		var union item.CharSet
		exclusiveAll := true
		alts := payload.MustGet("Expressions").Elements()
		for _, alt := range alts {
			fr := fc.exprFilter(alt, visited)
			union = union.Union(fr.chars)
			if !fr.exclusive {
				exclusiveAll = false
			}
		}
		return filterResult{chars: union, exclusive: len(alts) > 0 && exclusiveAll}

	case ir.KindSequence:
		items := payload.MustGet("Items").Elements()
		var union item.CharSet
		exclusive := false
		for _, e := range items {
			fr := fc.exprFilter(e, visited)
			union = union.Union(fr.chars)
			if fr.exclusive {
				exclusive = true
				break
			}
		}
		return filterResult{chars: union, exclusive: exclusive}

	case ir.KindRepeat:
		inner := fc.exprFilter(payload.MustGet("Expression"), visited)
		min := 0
		if mv, ok := payload.Get("Min"); ok {
			min = atoiOrZero(mv.AsText())
		}
		if min == 0 {
			return filterResult{chars: inner.chars, exclusive: false}
		}
		return inner

	case ir.KindSeparated, ir.KindAndNot, ir.KindAs, ir.KindDeclaration, ir.KindCapture:
		return fc.exprFilter(payload.MustGet("Expression"), visited)

	case ir.KindReference:
		refName := payload.MustGet("Name").AsText()
		if visited[refName] {
			return wildcard()
		}
		next := map[string]bool{refName: true}
		for k, v := range visited {
			next[k] = v
		}
		return fc.baseFilterVisited(refName, next)

	default:
		return wildcard()
	}
}

// baseFilterVisited is baseFilter but threading the caller's cycle-guard set
// through to exprFilter instead of starting a fresh one, so a reference chain
// A -> B -> A is caught even though A and B are different groups.
func (fc *filterComputer) baseFilterVisited(name string, visited map[string]bool) filterResult {
	grp := fc.g.Group(name)
	if grp == nil {
		return wildcard()
	}
	var union item.CharSet
	exclusiveAll := true
	any := false
	for _, d := range grp.Definitions {
		if d.IsLeftRecursive {
			continue
		}
		any = true
		fr := fc.exprFilter(d.Instance, visited)
		union = union.Union(fr.chars)
		if !fr.exclusive {
			exclusiveAll = false
		}
	}
	if !any {
		return wildcard()
	}
	return filterResult{chars: union, exclusive: exclusiveAll}
}

func charSetFromIR(payload item.Item) item.CharSet {
	all := payload.MustGet("All")
	not := payload.MustGet("Not")
	entries := payload.MustGet("Entries").Elements()

	var cs item.CharSet
	if all.IsText() && all.AsText() == "true" {
		cs = item.AllChars()
	} else {
		cs = item.NewCharSet()
		for _, e := range entries {
			ek := ir.KindOf(e)
			ep := ir.Payload(e)
			switch ek {
			case ir.KindChar:
				r := []rune(ep.MustGet("Value").AsText())[0]
				cs.AddRange(r, r)
			case ir.KindRange:
				from := []rune(ep.MustGet("From").AsText())[0]
				to := []rune(ep.MustGet("To").AsText())[0]
				cs.AddRange(from, to)
			}
		}
	}
	if not.IsText() && not.AsText() == "true" {
		cs = cs.Invert()
	}
	return cs
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
