package parse

import (
	"fmt"
	"strconv"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/peregrine/internal/peregrine/pgerr"
)

// evalExpr parses one IR expression node (spec.md §4.7.5) at the stream's
// current position. ownerGroup/defIndex/path identify the enclosing
// definition and this node's structural position within it, threaded the
// same way grammar.classifyExpr threads them when building
// DefinitionGroup.ReferenceMinPrecedents, so a self-Reference here resolves
// to the same RefID a back-edge was recorded under at build time.
func (c *Context) evalExpr(expr item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	kind := ir.KindOf(expr)
	payload := ir.Payload(expr)

	switch kind {
	case ir.KindQuote:
		return item.Item{}, false, pgerr.Grammar("", "unexpanded Quote node reached the parser; the optimizer must run before parsing")

	case ir.KindString:
		return c.evalString(payload)

	case ir.KindChar:
		return c.evalChar(payload)

	case ir.KindRange:
		return c.evalRange(payload)

	case ir.KindCharSet:
		return c.evalCharSet(payload)

	case ir.KindReference:
		name := payload.MustGet("Name").AsText()
		var ref *refOccurrence
		if name == ownerGroup {
			ref = &refOccurrence{id: grammar.RefID(ownerGroup, defIndex, path)}
		}
		return c.parseDefinitionGroup(name, ref)

	case ir.KindGroup:
		return c.evalExpr(payload.MustGet("Expression"), ownerGroup, defIndex, path+".g")

	case ir.KindOptional:
		start := c.stream.Position()
		result, ok, err := c.evalExpr(payload.MustGet("Expression"), ownerGroup, defIndex, path+".o")
		if err != nil {
			return item.Item{}, false, err
		}
		if !ok {
			c.stream.SetPosition(start)
			return item.List(), true, nil
		}
		return result, true, nil

	case ir.KindOr:
		return c.evalOr(payload, ownerGroup, defIndex, path)

	case ir.KindSequence:
		return c.evalSequence(payload, ownerGroup, defIndex, path)

	case ir.KindRepeat:
		return c.evalRepeat(payload, ownerGroup, defIndex, path)

	case ir.KindSeparated:
		return c.evalSeparated(payload, ownerGroup, defIndex, path)

	case ir.KindAndNot:
		return c.evalAndNot(payload, ownerGroup, defIndex, path)

	case ir.KindAs:
		return c.evalAs(payload, ownerGroup, defIndex, path)

	case ir.KindDeclaration:
		return c.evalDeclaration(payload, ownerGroup, defIndex, path)

	case ir.KindCapture:
		return c.evalCapture(payload, ownerGroup, defIndex, path)

	default:
		return item.Item{}, false, pgerr.Parser(c.id, "unrecognized IR kind %q", kind)
	}
}

func (c *Context) evalString(payload item.Item) (item.Item, bool, error) {
	value := payload.MustGet("Value").AsText()
	caseSensitive := c.g.Options.CaseSensitive
	return c.transact(func() (item.Item, bool, error) {
		for _, want := range value {
			if c.stream.EOF() {
				return item.Item{}, false, nil
			}
			got, err := c.stream.Read()
			if err != nil {
				return item.Item{}, false, nil
			}
			if !runeEqual(got, want, caseSensitive) {
				return item.Item{}, false, nil
			}
			c.stream.Next()
		}
		return item.Text(value), true, nil
	})
}

func (c *Context) evalChar(payload item.Item) (item.Item, bool, error) {
	want := firstRune(payload.MustGet("Value").AsText())
	if c.stream.EOF() {
		return item.Item{}, false, nil
	}
	got, err := c.stream.Read()
	if err != nil {
		return item.Item{}, false, nil
	}
	if !runeEqual(got, want, c.g.Options.CaseSensitive) {
		return item.Item{}, false, nil
	}
	c.stream.Next()
	return item.Text(string(got)), true, nil
}

func (c *Context) evalRange(payload item.Item) (item.Item, bool, error) {
	from := firstRune(payload.MustGet("From").AsText())
	to := firstRune(payload.MustGet("To").AsText())
	if c.stream.EOF() {
		return item.Item{}, false, nil
	}
	got, err := c.stream.Read()
	if err != nil {
		return item.Item{}, false, nil
	}
	if !runeInRange(got, from, to, c.g.Options.CaseSensitive) {
		return item.Item{}, false, nil
	}
	c.stream.Next()
	return item.Text(string(got)), true, nil
}

func (c *Context) evalCharSet(payload item.Item) (item.Item, bool, error) {
	all := isTrueText(payload.MustGet("All"))
	not := isTrueText(payload.MustGet("Not"))
	entries := payload.MustGet("Entries").Elements()
	if all && len(entries) > 0 {
		return item.Item{}, false, pgerr.Grammar("", "character set cannot have both All and explicit entries")
	}

	if c.stream.EOF() {
		return item.Item{}, false, nil
	}
	got, err := c.stream.Read()
	if err != nil {
		return item.Item{}, false, nil
	}

	member := all
	caseSensitive := c.g.Options.CaseSensitive
	if !member {
		for _, e := range entries {
			ek := ir.KindOf(e)
			ep := ir.Payload(e)
			switch ek {
			case ir.KindChar:
				r := firstRune(ep.MustGet("Value").AsText())
				if runeEqual(got, r, caseSensitive) {
					member = true
				}
			case ir.KindRange:
				from := firstRune(ep.MustGet("From").AsText())
				to := firstRune(ep.MustGet("To").AsText())
				if runeInRange(got, from, to, caseSensitive) {
					member = true
				}
			}
			if member {
				break
			}
		}
	}
	if not {
		member = !member
	}
	if !member {
		return item.Item{}, false, nil
	}
	c.stream.Next()
	return item.Text(string(got)), true, nil
}

func (c *Context) evalOr(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	start := c.stream.Position()
	alts := payload.MustGet("Expressions").Elements()
	for i, alt := range alts {
		c.stream.SetPosition(start)
		result, ok, err := c.evalExpr(alt, ownerGroup, defIndex, fmt.Sprintf("%s.or%d", path, i))
		if err != nil {
			return item.Item{}, false, err
		}
		if ok {
			return result, true, nil
		}
	}
	c.stream.SetPosition(start)
	return item.Item{}, false, nil
}

func (c *Context) evalSequence(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	items := payload.MustGet("Items").Elements()
	return c.transact(func() (item.Item, bool, error) {
		var acc item.Item
		have := false
		for i, it := range items {
			r, ok, err := c.evalExpr(it, ownerGroup, defIndex, fmt.Sprintf("%s.%d", path, i))
			if err != nil {
				return item.Item{}, false, err
			}
			if !ok {
				return item.Item{}, false, nil
			}
			if !have {
				acc, have = r, true
			} else {
				acc = mergeResults(acc, r)
			}
		}
		if !have {
			return item.List(), true, nil
		}
		return acc, true, nil
	})
}

func (c *Context) evalRepeat(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	min := atoiSafe(payload.MustGet("Min").AsText())
	lower := min
	upper := -1
	// From present means this is a bounded "*N", "*N..M", or "*N..n" form
	// (ir.Repeat only writes From when RepeatBound.Set). To absent is the
	// "*N..n" unbounded-from-N case (RepeatBound.To < 0, so ir.Repeat omits
	// the field entirely) - upper must stay -1, not collapse to lower.
	if fromVal, ok := payload.Get("From"); ok {
		lower = atoiSafe(fromVal.AsText())
		if toVal, ok := payload.Get("To"); ok {
			upper = atoiSafe(toVal.AsText())
		}
	}
	inner := payload.MustGet("Expression")

	return c.transact(func() (item.Item, bool, error) {
		var elems []item.Item
		for upper < 0 || len(elems) < upper {
			before := c.stream.Position()
			result, ok, err := c.evalExpr(inner, ownerGroup, defIndex, path+".i")
			if err != nil {
				return item.Item{}, false, err
			}
			if !ok {
				break
			}
			if c.stream.Position() == before {
				break
			}
			elems = append(elems, result)
		}
		if len(elems) < lower {
			return item.Item{}, false, nil
		}
		return item.List(elems...), true, nil
	})
}

func (c *Context) evalSeparated(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	inner := payload.MustGet("Expression")
	sep := payload.MustGet("Separator")

	return c.transact(func() (item.Item, bool, error) {
		first, ok, err := c.evalExpr(inner, ownerGroup, defIndex, path+".i")
		if err != nil {
			return item.Item{}, false, err
		}
		if !ok {
			return item.Item{}, false, nil
		}
		elems := []item.Item{first}

		for {
			beforeSep := c.stream.Position()
			_, sepOK, err := c.evalExpr(sep, ownerGroup, defIndex, path+".sep")
			if err != nil {
				return item.Item{}, false, err
			}
			if !sepOK {
				c.stream.SetPosition(beforeSep)
				break
			}
			next, ok, err := c.evalExpr(inner, ownerGroup, defIndex, path+".i")
			if err != nil {
				return item.Item{}, false, err
			}
			if !ok {
				c.stream.SetPosition(beforeSep)
				break
			}
			elems = append(elems, next)
		}
		return item.List(elems...), true, nil
	})
}

func (c *Context) evalAndNot(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	start := c.stream.Position()
	_, notOK, err := c.evalExpr(payload.MustGet("Not"), ownerGroup, defIndex, path+".not")
	if err != nil {
		return item.Item{}, false, err
	}
	c.stream.SetPosition(start)
	if notOK {
		return item.Item{}, false, nil
	}
	return c.evalExpr(payload.MustGet("Expression"), ownerGroup, defIndex, path+".i")
}

func (c *Context) evalAs(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	_, ok, err := c.evalExpr(payload.MustGet("Expression"), ownerGroup, defIndex, path+".i")
	if err != nil || !ok {
		return item.Item{}, false, err
	}
	return item.Text(payload.MustGet("Value").AsText()), true, nil
}

func (c *Context) evalDeclaration(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	name := payload.MustGet("Name").AsText()
	result, ok, err := c.evalExpr(payload.MustGet("Expression"), ownerGroup, defIndex, path+".i")
	if err != nil || !ok {
		return item.Item{}, false, err
	}
	return item.Node().With(name, result), true, nil
}

// evalCapture marks/propagates captured-ness (spec.md §4.7.5/§4.7.6). When
// the inner expression's result is already Text (the common case: a
// Sequence of plain terminals has already concatenated into one string via
// merge rule 5), it is marked captured directly. Otherwise - a captured
// Declaration or List slipped in - the literal consumed substring is pulled
// from the stream instead, since "captured" is fundamentally about the
// source text consumed, not the structured shape of what matched it.
func (c *Context) evalCapture(payload item.Item, ownerGroup string, defIndex int, path string) (item.Item, bool, error) {
	start := c.stream.Position()
	result, ok, err := c.evalExpr(payload.MustGet("Expression"), ownerGroup, defIndex, path+".i")
	if err != nil || !ok {
		return item.Item{}, false, err
	}
	if result.IsText() {
		return item.CapturedText(result.AsText()), true, nil
	}
	end := c.stream.Position()
	text := string(c.stream.Segment(start, end-start))
	return item.CapturedText(text), true, nil
}

// atoiSafe parses a decimal field written by the ir/grammar packages
// themselves (Repeat's Min/From/To), so a parse failure here means a
// malformed IR tree reached the evaluator, not bad user input; 0 is a safe
// fallback since it only loosens a repetition bound rather than corrupting
// parse results.
func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func isTrueText(it item.Item) bool {
	return it.IsText() && it.AsText() == "true"
}
