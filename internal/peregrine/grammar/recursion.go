package grammar

import (
	"fmt"

	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/peregrine/internal/peregrine/pgerr"
)

// backEdge records one Reference-to-self node found while classifying a
// definition: its stable RefID and the index of the definition that owns it.
type backEdge struct {
	refID string
	defID int
}

// ClassifyRecursion is the exported entry point used by the optimize package
// to re-run the recursion analyzer after a rewrite pass changes definition
// bodies (push-up can turn a left-recursive reference chain into a direct
// one, or vice versa).
func ClassifyRecursion(g *Grammar) error {
	return classifyRecursion(g)
}

// classifyRecursion runs the recursion analyzer (spec.md §4.4) over every
// definition of every group, populating Definition.Recursiveness,
// Definition.IsLeftRecursive, DefinitionGroup.Recursiveness and
// DefinitionGroup.ReferenceMinPrecedents, then validates the
// recursion/precedence invariants of spec.md §3.4.
func classifyRecursion(g *Grammar) error {
	for _, name := range g.GroupNames() {
		grp := g.Groups[name]
		var edges []backEdge

		for _, d := range grp.Definitions {
			visited := map[string]bool{name: true}
			bits, found := classifyExpr(g, d.Instance, name, true, true, visited, d.Index, fmt.Sprint(d.Index), &edges)
			d.Recursiveness = bits
			if bits.Has(RecLeft) && bits.Has(RecRight) {
				d.Recursiveness |= RecFull
			}
			d.IsLeftRecursive = d.Recursiveness.Has(RecLeft) || d.Recursiveness.Has(RecFull)
			grp.Recursiveness |= d.Recursiveness
			_ = found
		}

		// resolve referenceMinPrecedents: group back-edges by owning
		// definition's precedence, then check for a Left-associative peer at
		// the same precedence (spec.md §4.4).
		leftAtPrec := map[int]bool{}
		for _, d := range grp.Definitions {
			if d.HasPrecedence && d.Associativity == Left {
				leftAtPrec[d.Precedence] = true
			}
		}
		for _, e := range edges {
			d := grp.Definitions[e.defID]
			min := 0
			if d.HasPrecedence {
				min = d.Precedence
				if leftAtPrec[d.Precedence] {
					min++
				}
			}
			grp.ReferenceMinPrecedents[e.refID] = min
		}

		if err := validateRecursionInvariants(name, grp); err != nil {
			return err
		}
	}

	return nil
}

func validateRecursionInvariants(name string, grp *DefinitionGroup) error {
	for _, d := range grp.Definitions {
		if !d.HasPrecedence && d.Recursiveness.IsRecursive() {
			return pgerr.Grammar(name, "definition with no explicit precedence must be non-recursive, but %q is %s", name, d.Recursiveness)
		}
		if d.HasPrecedence && !grp.Recursiveness.IsRecursive() {
			return pgerr.Grammar(name, "definition %q has an explicit precedence but group %q has no recursive alternative", name, name)
		}
	}
	return nil
}

// classifyExpr is the recursive walk of spec.md §4.4. leftActive/rightActive
// together form the "mask": which end(s) of the enclosing sequence this
// sub-expression currently occupies. visited guards against re-descending
// into a group already seen on this path (cycle avoidance through
// non-precedenced forwarding). defIndex/path identify the owning definition
// and this node's position, for back-edge bookkeeping.
func classifyExpr(
	g *Grammar,
	expr item.Item,
	selfName string,
	leftActive, rightActive bool,
	visited map[string]bool,
	defIndex int,
	path string,
	edges *[]backEdge,
) (RecursionBits, bool) {
	kind := ir.KindOf(expr)
	payload := ir.Payload(expr)

	switch kind {
	case ir.KindOr:
		alts := payload.MustGet("Expressions").Elements()
		var union RecursionBits
		exclusiveAll := true
		any := false
		for i, alt := range alts {
			bits, ok := classifyExpr(g, alt, selfName, leftActive, rightActive, visited, defIndex, fmt.Sprintf("%s.or%d", path, i), edges)
			if ok {
				any = true
			}
			union |= bits &^ RecExclusive
			if !bits.Has(RecExclusive) {
				exclusiveAll = false
			}
		}
		if exclusiveAll && len(alts) > 0 {
			union |= RecExclusive
		}
		return union, any

	case ir.KindGroup:
		return classifyExpr(g, payload.MustGet("Expression"), selfName, leftActive, rightActive, visited, defIndex, path+".g", edges)

	case ir.KindSequence:
		items := payload.MustGet("Items").Elements()
		var union RecursionBits
		foundAny := false

		if leftActive {
			stillActive := true
			for i, elem := range items {
				if !stillActive {
					break
				}
				bits, ok := classifyExpr(g, elem, selfName, true, false, visited, defIndex, fmt.Sprintf("%s.%d", path, i), edges)
				if ok {
					foundAny = true
				}
				union |= bits &^ RecExclusive
				if bits.Has(RecExclusive) {
					stillActive = false
				}
			}
		}
		if rightActive {
			stillActive := true
			for i := len(items) - 1; i >= 0; i-- {
				if !stillActive {
					break
				}
				bits, ok := classifyExpr(g, items[i], selfName, false, true, visited, defIndex, fmt.Sprintf("%s.%d", path, i), edges)
				if ok {
					foundAny = true
				}
				union |= bits &^ RecExclusive
				if bits.Has(RecExclusive) {
					stillActive = false
				}
			}
		}
		// sequence as a whole is exclusive if any element guarantees
		// progress (mirrors the first-filter walk's short-circuit: as soon
		// as one exclusive element is seen, the rest don't matter for
		// progress guarantees either).
		for _, elem := range items {
			if exprIsExclusiveHint(g, elem, visited) {
				union |= RecExclusive
				break
			}
		}
		return union, foundAny

	case ir.KindOptional:
		bits, ok := classifyExpr(g, payload.MustGet("Expression"), selfName, leftActive, rightActive, visited, defIndex, path+".o", edges)
		return bits &^ RecExclusive, ok

	case ir.KindRepeat, ir.KindSeparated, ir.KindAndNot, ir.KindAs, ir.KindDeclaration, ir.KindCapture:
		return classifyExpr(g, payload.MustGet("Expression"), selfName, leftActive, rightActive, visited, defIndex, path+".i", edges)

	case ir.KindReference:
		refName := payload.MustGet("Name").AsText()
		if refName == selfName {
			var bits RecursionBits
			if leftActive {
				bits |= RecLeft
			}
			if rightActive {
				bits |= RecRight
			}
			bits |= RecExclusive
			*edges = append(*edges, backEdge{refID: RefID(selfName, defIndex, path), defID: defIndex})
			return bits, true
		}

		target := g.Group(refName)
		if target == nil {
			// unknown reference: resolved as a build-time GrammarError
			// elsewhere (name resolution pass); treat as an opaque terminal
			// here so classification can still complete.
			return RecExclusive, false
		}
		if visited[refName] {
			return RecExclusive, false
		}
		visited[refName] = true

		var union RecursionBits
		exclusiveAll := true
		any := false
		found := 0
		for i, d := range target.Definitions {
			if d.HasPrecedence {
				continue
			}
			found++
			bits, ok := classifyExpr(g, d.Instance, selfName, leftActive, rightActive, visited, defIndex, fmt.Sprintf("%s.ref%s.%d", path, refName, i), edges)
			if ok {
				any = true
			}
			union |= bits &^ RecExclusive
			if !bits.Has(RecExclusive) {
				exclusiveAll = false
			}
		}
		if found == 0 {
			return RecExclusive, false
		}
		if exclusiveAll {
			union |= RecExclusive
		}
		return union, any

	default:
		// terminal expression kinds (Quote, String, Char, Range, CharSet):
		// not recursive. Every terminal, including Quote and a CharSet with
		// no entries and no All, is classified as exclusive here.
		return RecExclusive, false
	}
}

// exprIsExclusiveHint is a lightweight, non-recording re-derivation of
// whether expr guarantees progress, used only to decide the whole-sequence
// RecExclusive bit without re-walking for back-edges. Its rules are its own
// and differ from the filter analyzer's: Quote is reported non-exclusive, and
// Repeat and every other kind without a case below are reported exclusive.
func exprIsExclusiveHint(g *Grammar, expr item.Item, visited map[string]bool) bool {
	kind := ir.KindOf(expr)
	payload := ir.Payload(expr)
	switch kind {
	case ir.KindQuote:
		return false
	case ir.KindString, ir.KindChar, ir.KindRange:
		return true
	case ir.KindCharSet:
		all := payload.MustGet("All")
		entries := payload.MustGet("Entries").Elements()
		return all.IsText() && all.AsText() == "true" || len(entries) > 0
	case ir.KindOptional:
		return false
	case ir.KindGroup:
		return exprIsExclusiveHint(g, payload.MustGet("Expression"), visited)
	case ir.KindOr:
		for _, alt := range payload.MustGet("Expressions").Elements() {
			if !exprIsExclusiveHint(g, alt, visited) {
				return false
			}
		}
		return len(payload.MustGet("Expressions").Elements()) > 0
	case ir.KindSequence:
		for _, e := range payload.MustGet("Items").Elements() {
			if exprIsExclusiveHint(g, e, visited) {
				return true
			}
		}
		return false
	case ir.KindReference:
		name := payload.MustGet("Name").AsText()
		if visited[name] {
			return true
		}
		target := g.Group(name)
		if target == nil {
			return true
		}
		cp := map[string]bool{}
		for k, v := range visited {
			cp[k] = v
		}
		cp[name] = true
		for _, d := range target.Definitions {
			if d.HasPrecedence {
				continue
			}
			if !exprIsExclusiveHint(g, d.Instance, cp) {
				return false
			}
		}
		return true
	default:
		return true
	}
}
