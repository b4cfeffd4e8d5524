package optimize

import (
	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
)

// pushUpOnce runs one round of the push-up pass (spec.md §4.6) across every
// non-root group with exactly one definition whose body is a Sequence: the
// leading elements up to (but not including) the first Optional, or any
// element containing a Declaration, are stripped from the definition and
// prepended at every call site instead, with a single tail Reference left in
// place to preserve semantics. Returns whether any group changed.
func pushUpOnce(g *grammar.Grammar) bool {
	changed := false
	for _, name := range g.GroupNames() {
		if name == g.Root {
			continue
		}
		grp := g.Group(name)
		if len(grp.Definitions) != 1 {
			continue
		}
		d := grp.Definitions[0]
		if !ir.Is(d.Instance, ir.KindSequence) {
			continue
		}

		items := ir.Payload(d.Instance).MustGet("Items").Elements()
		split := 0
		for split < len(items) && !stopsPushUp(items[split]) {
			split++
		}
		if split == 0 || split >= len(items) {
			continue
		}

		prefix := items[:split]
		suffix := items[split:]
		d.Instance = ir.Sequence(suffix...)
		changed = true

		replacement := func() item.Item {
			elems := make([]item.Item, 0, len(prefix)+1)
			for _, p := range prefix {
				elems = append(elems, p.Copy())
			}
			elems = append(elems, ir.Reference(name))
			return ir.Sequence(elems...)
		}
		for _, otherName := range g.GroupNames() {
			otherGrp := g.Group(otherName)
			for _, od := range otherGrp.Definitions {
				od.Instance = inlineReference(od.Instance, name, replacement)
			}
		}
	}
	return changed
}

// stopsPushUp reports whether elem is the kind of Sequence element the
// push-up pass must not strip past: an Optional, or anything containing a
// Declaration (whose structured result the caller needs to see directly,
// not by way of an inlined prefix copy).
func stopsPushUp(elem item.Item) bool {
	if ir.Is(elem, ir.KindOptional) {
		return true
	}
	found := false
	item.Walk(elem, func(n item.Item) {
		if !found && ir.Is(n, ir.KindDeclaration) {
			found = true
		}
	})
	return found
}

// inlineReference rewrites every Reference(name) node in expr to
// replacement(), bottom-up.
func inlineReference(expr item.Item, name string, replacement func() item.Item) item.Item {
	if !expr.IsNode() {
		return expr
	}
	kind := ir.KindOf(expr)
	if kind == ir.KindReference {
		if ir.Payload(expr).MustGet("Name").AsText() == name {
			return replacement()
		}
		return expr
	}

	payload := ir.Payload(expr)
	rewriteChild := func(key string) item.Item {
		return inlineReference(payload.MustGet(key), name, replacement)
	}

	switch kind {
	case ir.KindGroup:
		return ir.Group(rewriteChild("Expression"))
	case ir.KindOptional:
		return ir.Optional(rewriteChild("Expression"))
	case ir.KindOr:
		alts := payload.MustGet("Expressions").Elements()
		out := make([]item.Item, len(alts))
		for i, a := range alts {
			out[i] = inlineReference(a, name, replacement)
		}
		return ir.Or(out...)
	case ir.KindSequence:
		elems := payload.MustGet("Items").Elements()
		out := make([]item.Item, len(elems))
		for i, e := range elems {
			out[i] = inlineReference(e, name, replacement)
		}
		return ir.Sequence(out...)
	case ir.KindRepeat:
		min := atoi(payload.MustGet("Min").AsText())
		bound := ir.RepeatBound{}
		if fromText, ok := payload.Get("From"); ok {
			bound.Set = true
			bound.From = atoi(fromText.AsText())
			bound.To = -1
			if toText, ok := payload.Get("To"); ok {
				bound.To = atoi(toText.AsText())
			}
		}
		return ir.Repeat(rewriteChild("Expression"), min, bound)
	case ir.KindSeparated:
		return ir.Separated(rewriteChild("Expression"), inlineReference(payload.MustGet("Separator"), name, replacement))
	case ir.KindAndNot:
		return ir.AndNot(rewriteChild("Expression"), inlineReference(payload.MustGet("Not"), name, replacement))
	case ir.KindAs:
		return ir.As(rewriteChild("Expression"), payload.MustGet("Value").AsText())
	case ir.KindDeclaration:
		return ir.Declaration(payload.MustGet("Name").AsText(), rewriteChild("Expression"))
	case ir.KindCapture:
		return ir.Capture(rewriteChild("Expression"))
	default:
		return expr
	}
}
