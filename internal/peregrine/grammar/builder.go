package grammar

import (
	"strconv"
	"strings"

	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/peregrine/internal/peregrine/pgerr"
)

// Build converts a parsed grammar AST (an ir.Unit node) into a *Grammar,
// per spec.md §4.3: walk Definitions, group by name, resolve Options, pick
// the root, run the recursion analyzer, and validate every reference
// resolves to a known group.
func Build(rawUnit item.Item) (*Grammar, error) {
	unit, err := desugarSurface(rawUnit)
	if err != nil {
		return nil, err
	}

	g := New()

	defs := unit.MustGet("Definitions").Elements()
	if len(defs) == 0 {
		return nil, pgerr.Grammar("", "grammar has no definitions")
	}

	for i, d := range defs {
		name := d.MustGet("Name").AsText()
		expr := d.MustGet("Expression")

		assoc := Left
		if a, ok := associativityOf(d); ok && a == "R" {
			assoc = Right
		}

		typeText := d.MustGet("Type").AsText()
		if typeText != ":=" && typeText != "=" {
			return nil, pgerr.Grammar(name, "definition %d has unrecognized type %q, want \":=\" or \"=\"", i, typeText)
		}

		def := &Definition{
			Instance:      expr,
			Associativity: assoc,
			IsNode:        typeText == ":=",
		}
		if precText, ok := optionalGet(d, "Precedence"); ok {
			p, err := strconv.Atoi(precText.AsText())
			if err != nil {
				return nil, pgerr.Grammar(name, "malformed precedence on definition %d: %v", i, err)
			}
			def.Precedence = p
			def.HasPrecedence = true
		} else {
			def.Precedence = NoPrecedence
		}

		g.AddDefinition(name, def)

		if i == 0 {
			g.Root = name
		}
	}

	g.Options = Options{CaseSensitive: true}
	if comparer, ok := optionalGet(unit, "Comparer"); ok {
		g.Options.CaseSensitive = comparer.AsText() == "sensitive"
	}
	if ws, ok := optionalGet(unit, "Whitespace"); ok {
		g.Options.HasWhitespace = true
		g.Options.WhitespaceRule = ws.AsText()
	}

	if err := validateReferences(g); err != nil {
		return nil, err
	}

	if err := classifyRecursion(g); err != nil {
		return nil, err
	}

	return g, nil
}

func associativityOf(d item.Item) (string, bool) {
	v, ok := optionalGet(d, "Associativity")
	if !ok {
		return "", false
	}
	return v.AsText(), true
}

// optionalGet reads an optional field that may be represented either by the
// key's outright absence (the convention every ir.* Go constructor uses) or
// by the key being present with an empty List value (what a parsed grammar
// produces for a field built as Declaration("X", Optional(...)): Declaration
// always wraps, so the key is always there, but Optional's own "no match"
// result is an empty List rather than true absence). Both are treated as
// "no value".
func optionalGet(n item.Item, key string) (item.Item, bool) {
	v, ok := n.Get(key)
	if !ok {
		return item.Item{}, false
	}
	if isAbsent(v) {
		return item.Item{}, false
	}
	return v, true
}

func isAbsent(v item.Item) bool {
	return v.Kind == item.KindList && len(v.Elements()) == 0
}

// desugarSurface walks a freshly-parsed (or hand-built) grammar AST bottom-up
// and turns the handful of bootstrap productions that can't declaratively
// pick their own IR kind into the canonical ir.* shape grammar.Build and the
// rest of the pipeline expect:
//
//   - CodePoint ("#<digits>"): decode the decimal digit string into a rune
//     and become an ir.Char. No declarative grammar can perform this decode
//     while parsing.
//   - SequenceItem (an optional "name:" prefix plus a PostfixExpr): becomes
//     ir.Declaration(name, expr) if named, otherwise just expr.
//   - SequenceItems (one or more SequenceItem): collapses to its single
//     element, or becomes ir.Sequence(...) of more than one.
//   - OrExpr ("|"-separated SequenceItems): collapses to its single
//     alternative, or becomes ir.Or(...) of more than one.
//   - PostfixExpr (a Primary plus an optional trailing operator): combines
//     with its Suffix tag (RepeatOp/SeparatedOp/AndNotOp/AsOp, or none) to
//     become ir.Repeat/ir.Separated/ir.AndNot/ir.As, or passes the Primary
//     through unchanged.
//   - Range and CharSet as parsed (bounds and members held as String
//     literal nodes): become ir.Range/ir.CharSet. A Range or CharSet already
//     in its ir.* constructor's shape is left as it is.
//
// Every other node (Group/Optional/Capture/Quote/String/Reference, and
// anything hand-built directly with the ir.* constructors) already matches
// its canonical shape and passes through untouched.
func desugarSurface(n item.Item) (item.Item, error) {
	switch n.Kind {
	case item.KindText:
		return n, nil
	case item.KindList:
		elems := n.Elements()
		out := make([]item.Item, len(elems))
		for i, e := range elems {
			rewritten, err := desugarSurface(e)
			if err != nil {
				return item.Item{}, err
			}
			out[i] = rewritten
		}
		return item.List(out...), nil
	case item.KindNode:
		keys := n.Keys()
		out := item.Node()
		for _, k := range keys {
			rewritten, err := desugarSurface(n.MustGet(k))
			if err != nil {
				return item.Item{}, err
			}
			out = out.With(k, rewritten)
		}
		if len(keys) != 1 {
			return out, nil
		}
		payload := out.MustGet(keys[0])
		switch keys[0] {
		case "CodePoint":
			digits := payload.MustGet("Value").AsText()
			code, err := strconv.Atoi(digits)
			if err != nil {
				return item.Item{}, pgerr.Grammar("", "malformed code point literal %q: %v", digits, err)
			}
			return ir.Char(rune(code)), nil
		case "SequenceItem":
			return desugarSequenceItem(payload)
		case "SequenceItems":
			items := payload.MustGet("Items").Elements()
			if len(items) == 1 {
				return items[0], nil
			}
			return ir.Sequence(items...), nil
		case "OrExpr":
			alts := payload.MustGet("Alternatives").Elements()
			if len(alts) == 1 {
				return alts[0], nil
			}
			return ir.Or(alts...), nil
		case "PostfixExpr":
			return desugarPostfixExpr(payload)
		case "CharSet":
			_, hasAll := payload.Get("All")
			_, hasEntries := payload.Get("Entries")
			if hasAll && hasEntries {
				// already ir.CharSet's own shape (hand-built IR)
				return out, nil
			}
			return desugarCharSet(payload)
		case "Range":
			if payload.MustGet("From").IsText() {
				// already ir.Range's own shape (hand-built IR)
				return out, nil
			}
			from, err := charOf(payload.MustGet("From"))
			if err != nil {
				return item.Item{}, err
			}
			to, err := charOf(payload.MustGet("To"))
			if err != nil {
				return item.Item{}, err
			}
			return ir.Range(from, to), nil
		}
		return out, nil
	default:
		return n, nil
	}
}

func desugarSequenceItem(payload item.Item) (item.Item, error) {
	expr := payload.MustGet("Expression")
	if declName, ok := payload.Get("DeclName"); ok {
		return ir.Declaration(declName.AsText(), expr), nil
	}
	return expr, nil
}

func desugarPostfixExpr(payload item.Item) (item.Item, error) {
	expr := payload.MustGet("Expression")
	suffix := payload.MustGet("Suffix")
	if isAbsent(suffix) {
		return expr, nil
	}

	keys := suffix.Keys()
	if len(keys) != 1 {
		return item.Item{}, pgerr.Grammar("", "malformed postfix operator")
	}
	op := suffix.MustGet(keys[0])

	switch keys[0] {
	case "RepeatOp":
		min, err := strconv.Atoi(op.MustGet("Min").AsText())
		if err != nil {
			return item.Item{}, pgerr.Grammar("", "malformed repetition minimum: %v", err)
		}
		bound := ir.RepeatBound{}
		if boundVal, ok := op.Get("Bound"); ok && !isAbsent(boundVal) {
			from, err := strconv.Atoi(boundVal.MustGet("From").AsText())
			if err != nil {
				return item.Item{}, pgerr.Grammar("", "malformed repetition count: %v", err)
			}
			bound.Set = true
			bound.From = from
			toVal := boundVal.MustGet("To")
			switch {
			case isAbsent(toVal):
				bound.To = from
			case toVal.AsText() == "n":
				bound.To = -1
			default:
				to, err := strconv.Atoi(toVal.AsText())
				if err != nil {
					return item.Item{}, pgerr.Grammar("", "malformed repetition bound: %v", err)
				}
				bound.To = to
			}
		}
		return ir.Repeat(expr, min, bound), nil
	case "SeparatedOp":
		return ir.Separated(expr, op.MustGet("Separator")), nil
	case "AndNotOp":
		return ir.AndNot(expr, op.MustGet("Not")), nil
	case "AsOp":
		value := op.MustGet("Value")
		if !ir.Is(value, ir.KindString) {
			return item.Item{}, pgerr.Grammar("", "\"as\" clause requires a string literal value")
		}
		return ir.As(expr, ir.Payload(value).MustGet("Value").AsText()), nil
	default:
		return item.Item{}, pgerr.Grammar("", "unrecognized postfix operator %q", keys[0])
	}
}

// desugarCharSet normalizes a parsed CharSet's payload to the shape
// ir.CharSet's own constructor always produces: All/Not/Entries all present.
// The bootstrap grammar's two CharSet alternatives (wildcard `{?}`, listed
// `!{'a'..'z','x'}`) each only declare the fields relevant to what they matched,
// so the missing ones default here rather than forcing the bootstrap's own
// productions to fabricate placeholder values for fields that don't apply to
// them.
func desugarCharSet(payload item.Item) (item.Item, error) {
	all := false
	if v, ok := payload.Get("All"); ok && !isAbsent(v) {
		all = v.AsText() == "true"
	}
	not := false
	if v, ok := payload.Get("Not"); ok && !isAbsent(v) {
		not = true
	}
	var entries []ir.CharSetEntry
	if v, ok := payload.Get("Entries"); ok && !isAbsent(v) {
		for _, e := range v.Elements() {
			from, err := charOf(e.MustGet("From"))
			if err != nil {
				return item.Item{}, err
			}
			to := from
			if toVal, ok := e.Get("To"); ok && !isAbsent(toVal) {
				to, err = charOf(toVal)
				if err != nil {
					return item.Item{}, err
				}
			}
			entries = append(entries, ir.CharSetEntry{From: from, To: to})
		}
	}
	return ir.CharSet(all, not, entries...), nil
}

// charOf extracts the single rune held by a parsed String node (the
// character-set member syntax reuses 'x' string literals for single
// characters).
func charOf(stringNode item.Item) (rune, error) {
	text := ir.Payload(stringNode).MustGet("Value").AsText()
	runes := []rune(text)
	if len(runes) != 1 {
		return 0, pgerr.Grammar("", "character set member %q must be exactly one character", text)
	}
	return runes[0], nil
}

// validateReferences walks every definition's IR tree and confirms each
// Reference node names a group that exists somewhere in the grammar.
func validateReferences(g *Grammar) error {
	var err error
	for _, name := range g.GroupNames() {
		grp := g.Groups[name]
		for _, d := range grp.Definitions {
			item.Walk(d.Instance, func(n item.Item) {
				if err != nil {
					return
				}
				if !ir.Is(n, ir.KindReference) {
					return
				}
				refName := ir.Payload(n).MustGet("Name").AsText()
				if strings.Contains(refName, ".") {
					err = pgerr.Grammar(name, "definition %q uses a cross-grammar reference %q, which is reserved syntax but not supported", name, refName)
					return
				}
				if g.Group(refName) == nil {
					err = pgerr.Grammar(name, "definition %q references unknown name %q", name, refName)
				}
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
