// Package codec implements the binary wire format of spec.md §3.8: encoding
// and decoding an already-optimized grammar so a caller can persist the
// result of a costly Build+Optimize pass and skip it on the next run.
// Grounded on the teacher's rezi-based persistence in
// server/dao/sqlite/sqlite.go (rezi.Enc/rezi.Dec over a plain data struct,
// the same library the teacher wraps encoding.BinaryMarshaler types with).
package codec

import (
	"fmt"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/peregrine/internal/peregrine/pgerr"
	"github.com/dekarrin/rezi"
)

// Encode serializes an optimized grammar to its binary wire form. g must
// already have been through grammar.Build and optimize.Optimize; Encode does
// not re-validate grammar invariants; it only flattens the object graph.
func Encode(g *grammar.Grammar) ([]byte, error) {
	if g == nil {
		return nil, pgerr.InvalidArgument("g")
	}
	if !g.Optimized {
		return nil, pgerr.Grammar("", "codec.Encode requires an optimized grammar; run it through optimize.Optimize first")
	}

	w := toWireGrammar(g)
	data, err := rezi.Enc(w)
	if err != nil {
		return nil, fmt.Errorf("encoding grammar: %w", err)
	}
	return data, nil
}

// Decode parses bytes produced by Encode back into a *grammar.Grammar. The
// result is marked Optimized without re-running any analysis pass: per
// spec.md §3.8, a decoded grammar is assumed to have already passed
// Grammar.Build/Optimize once before being encoded. Because the result is
// marked Optimized, passing it to optimize.Optimize returns it unchanged and
// re-runs no analysis.
func Decode(data []byte) (*grammar.Grammar, error) {
	var w wireGrammar
	if _, err := rezi.Dec(data, &w); err != nil {
		return nil, fmt.Errorf("decoding grammar: %w", err)
	}
	return w.toGrammar(), nil
}

// wireGrammar is the flattened, rezi-encodable shape of a *grammar.Grammar.
// Every field is a plain Go type rezi's struct reflection already knows how
// to walk; the object graph's pointers and maps of pointers are flattened
// into slices/maps of value types here and rebuilt in toGrammar.
type wireGrammar struct {
	GroupNames []string
	Groups     map[string]wireGroup
	Root       string
	CaseSens   bool
	HasWS      bool
	WSRule     string
}

type wireGroup struct {
	Name        string
	Definitions []wireDefinition
	Recursive   uint8
	HasFilter   bool
	Filter      wireFilter
	MinPrec     map[string]int
}

type wireDefinition struct {
	Name          string
	Precedence    int
	HasPrecedence bool
	RightAssoc    bool
	Instance      wireItem
	Recursive     uint8
	HasFilter     bool
	Filter        wireFilter
	LeftRecursive bool
	IsNode        bool
	Index         int
}

type wireFilter struct {
	Ranges    [][2]int32
	Exclusive bool
}

// wireItem is the flattened shape of an item.Item tree, built and consumed
// entirely through item's public accessors/constructors (item.Item's
// internal fields stay unexported even to this sibling package).
type wireItem struct {
	Kind     int
	Text     string
	Captured bool
	Keys     []string
	Node     map[string]wireItem
	List     []wireItem
	SpanLo   int
	SpanHi   int
	Grammar  string
}

func toWireGrammar(g *grammar.Grammar) wireGrammar {
	w := wireGrammar{
		Groups:   map[string]wireGroup{},
		Root:     g.Root,
		CaseSens: g.Options.CaseSensitive,
		HasWS:    g.Options.HasWhitespace,
		WSRule:   g.Options.WhitespaceRule,
	}
	for _, name := range g.GroupNames() {
		w.GroupNames = append(w.GroupNames, name)
		w.Groups[name] = toWireGroup(g.Groups[name])
	}
	return w
}

func toWireGroup(grp *grammar.DefinitionGroup) wireGroup {
	w := wireGroup{
		Name:      grp.Name,
		Recursive: uint8(grp.Recursiveness),
		MinPrec:   map[string]int{},
	}
	for k, v := range grp.ReferenceMinPrecedents {
		w.MinPrec[k] = v
	}
	if grp.Filter != nil {
		w.HasFilter = true
		w.Filter = toWireFilter(*grp.Filter)
	}
	for _, d := range grp.Definitions {
		w.Definitions = append(w.Definitions, toWireDefinition(d))
	}
	return w
}

func toWireDefinition(d *grammar.Definition) wireDefinition {
	w := wireDefinition{
		Name:          d.Name,
		Precedence:    d.Precedence,
		HasPrecedence: d.HasPrecedence,
		RightAssoc:    d.Associativity == grammar.Right,
		Instance:      toWireItem(d.Instance),
		Recursive:     uint8(d.Recursiveness),
		LeftRecursive: d.IsLeftRecursive,
		IsNode:        d.IsNode,
		Index:         d.Index,
	}
	if d.Filter != nil {
		w.HasFilter = true
		w.Filter = toWireFilter(*d.Filter)
	}
	return w
}

func toWireFilter(f grammar.Filter) wireFilter {
	w := wireFilter{Exclusive: f.Exclusive}
	for _, r := range f.Chars.Ranges() {
		w.Ranges = append(w.Ranges, [2]int32{int32(r[0]), int32(r[1])})
	}
	return w
}

func toWireItem(it item.Item) wireItem {
	w := wireItem{
		Kind:     int(it.Kind),
		Captured: it.Captured,
		SpanLo:   it.Span.Start,
		SpanHi:   it.Span.End,
		Grammar:  it.Grammar,
	}
	switch it.Kind {
	case item.KindText:
		w.Text = it.AsText()
	case item.KindList:
		for _, e := range it.Elements() {
			w.List = append(w.List, toWireItem(e))
		}
	case item.KindNode:
		w.Keys = it.Keys()
		w.Node = map[string]wireItem{}
		for _, k := range w.Keys {
			w.Node[k] = toWireItem(it.MustGet(k))
		}
	}
	return w
}

func (w wireGrammar) toGrammar() *grammar.Grammar {
	g := &grammar.Grammar{
		Groups: map[string]*grammar.DefinitionGroup{},
		Root:   w.Root,
		Options: grammar.Options{
			CaseSensitive:  w.CaseSens,
			HasWhitespace:  w.HasWS,
			WhitespaceRule: w.WSRule,
		},
		Optimized: true,
	}
	for _, name := range w.GroupNames {
		g.Groups[name] = w.Groups[name].toGroup()
	}
	return g
}

func (w wireGroup) toGroup() *grammar.DefinitionGroup {
	grp := &grammar.DefinitionGroup{
		Name:                   w.Name,
		Recursiveness:          grammar.RecursionBits(w.Recursive),
		ReferenceMinPrecedents: map[string]int{},
	}
	for k, v := range w.MinPrec {
		grp.ReferenceMinPrecedents[k] = v
	}
	if w.HasFilter {
		f := w.Filter.toFilter()
		grp.Filter = &f
	}
	for _, d := range w.Definitions {
		grp.Definitions = append(grp.Definitions, d.toDefinition())
	}
	return grp
}

func (w wireDefinition) toDefinition() *grammar.Definition {
	assoc := grammar.Left
	if w.RightAssoc {
		assoc = grammar.Right
	}
	d := &grammar.Definition{
		Name:            w.Name,
		Precedence:      w.Precedence,
		HasPrecedence:   w.HasPrecedence,
		Associativity:   assoc,
		Instance:        w.Instance.toItem(),
		Recursiveness:   grammar.RecursionBits(w.Recursive),
		IsLeftRecursive: w.LeftRecursive,
		IsNode:          w.IsNode,
		Index:           w.Index,
	}
	if w.HasFilter {
		f := w.Filter.toFilter()
		d.Filter = &f
	}
	return d
}

func (w wireFilter) toFilter() grammar.Filter {
	cs := item.NewCharSet()
	for _, r := range w.Ranges {
		cs.AddRange(rune(r[0]), rune(r[1]))
	}
	return grammar.Filter{Chars: cs, Exclusive: w.Exclusive}
}

func (w wireItem) toItem() item.Item {
	var out item.Item
	switch item.Kind(w.Kind) {
	case item.KindText:
		if w.Captured {
			out = item.CapturedText(w.Text)
		} else {
			out = item.Text(w.Text)
		}
	case item.KindList:
		elems := make([]item.Item, len(w.List))
		for i, e := range w.List {
			elems[i] = e.toItem()
		}
		out = item.List(elems...)
	case item.KindNode:
		out = item.Node()
		for _, k := range w.Keys {
			out = out.With(k, w.Node[k].toItem())
		}
	}
	return out.WithSpan(item.Span{Start: w.SpanLo, End: w.SpanHi}).WithGrammar(w.Grammar)
}
