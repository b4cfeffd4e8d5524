package optimize

import (
	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
)

// rewriteOnce applies every canonicalization rule (spec.md §4.6) once, bottom
// up, to expr. It returns the rewritten tree and whether anything changed, so
// the caller can iterate to a fixpoint without re-walking unchanged subtrees
// by eye.
func rewriteOnce(expr item.Item, opts grammar.Options) (item.Item, bool) {
	if !expr.IsNode() {
		return expr, false
	}

	kind := ir.KindOf(expr)
	payload := ir.Payload(expr)
	changed := false

	rewriteChild := func(key string) item.Item {
		child := payload.MustGet(key)
		out, didChange := rewriteOnce(child, opts)
		if didChange {
			changed = true
		}
		return out
	}

	switch kind {
	case ir.KindQuote:
		text := payload.MustGet("Text").AsText()
		return expandQuote(text, opts), true

	case ir.KindGroup:
		inner := rewriteChild("Expression")
		expr = ir.Group(inner)
		if ir.Is(inner, ir.KindSequence) {
			items := ir.Payload(inner).MustGet("Items").Elements()
			if len(items) == 1 {
				return items[0], true
			}
		}
		return expr, changed

	case ir.KindOptional:
		inner := rewriteChild("Expression")
		if ir.Is(inner, ir.KindSequence) {
			items := ir.Payload(inner).MustGet("Items").Elements()
			if len(items) == 1 && ir.Is(items[0], ir.KindOptional) {
				return items[0], true
			}
		}
		if ir.Is(inner, ir.KindOptional) {
			return ir.Group(inner), true
		}
		return ir.Optional(inner), changed

	case ir.KindOr:
		var flat []item.Item
		for _, alt := range payload.MustGet("Expressions").Elements() {
			out, didChange := rewriteOnce(alt, opts)
			if didChange {
				changed = true
			}
			if ir.Is(out, ir.KindOr) {
				flat = append(flat, ir.Payload(out).MustGet("Expressions").Elements()...)
				changed = true
			} else {
				flat = append(flat, out)
			}
		}
		return ir.Or(flat...), changed

	case ir.KindSequence:
		var flat []item.Item
		for _, elem := range payload.MustGet("Items").Elements() {
			out, didChange := rewriteOnce(elem, opts)
			if didChange {
				changed = true
			}
			if ir.Is(out, ir.KindGroup) {
				inner := ir.Payload(out).MustGet("Expression")
				if ir.Is(inner, ir.KindSequence) {
					flat = append(flat, ir.Payload(inner).MustGet("Items").Elements()...)
					changed = true
					continue
				}
			}
			flat = append(flat, out)
		}
		return ir.Sequence(flat...), changed

	case ir.KindCapture:
		inner := rewriteChild("Expression")
		if ir.Is(inner, ir.KindCapture) {
			return inner, true
		}
		return ir.Capture(inner), changed

	case ir.KindRepeat:
		inner := rewriteChild("Expression")
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
		return ir.Repeat(inner, min, bound), changed

	case ir.KindSeparated:
		sep := payload.MustGet("Separator")
		rewrittenSep, sepChanged := rewriteOnce(sep, opts)
		inner := rewriteChild("Expression")
		if sepChanged {
			changed = true
		}
		return ir.Separated(inner, rewrittenSep), changed

	case ir.KindAndNot:
		not := payload.MustGet("Not")
		rewrittenNot, notChanged := rewriteOnce(not, opts)
		inner := rewriteChild("Expression")
		if notChanged {
			changed = true
		}
		return ir.AndNot(inner, rewrittenNot), changed

	case ir.KindAs:
		inner := rewriteChild("Expression")
		return ir.As(inner, payload.MustGet("Value").AsText()), changed

	case ir.KindDeclaration:
		inner := rewriteChild("Expression")
		return ir.Declaration(payload.MustGet("Name").AsText(), inner), changed

	default:
		// String, Char, Range, CharSet, Reference: no children to rewrite.
		return expr, false
	}
}

// expandQuote is the QuoteExpander rule: a whitespace-tolerant quote becomes
// a captured exact literal (String, or Char for a single rune), optionally
// wrapped with leading/trailing references to the grammar's whitespace rule.
func expandQuote(text string, opts grammar.Options) item.Item {
	runes := []rune(text)
	var literal item.Item
	if len(runes) == 1 {
		literal = ir.Char(runes[0])
	} else {
		literal = ir.String(text)
	}
	captured := ir.Capture(literal)
	if !opts.HasWhitespace {
		return captured
	}
	ws := ir.Reference(opts.WhitespaceRule)
	return ir.Group(ir.Sequence(ws, captured, ws))
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
