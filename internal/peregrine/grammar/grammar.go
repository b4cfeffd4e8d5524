// Package grammar holds the grammar object model (spec.md §3.2), the builder
// that converts a parsed grammar AST into it (§4.3), the recursion analyzer
// (§4.4), and the first-character filter analyzer (§4.5).
package grammar

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/rosed"
)

// NoPrecedence is the default precedence of a definition with no explicit
// precedence, spec.md §3.2's "+∞".
const NoPrecedence = math.MaxInt32

// Associativity is Left or Right, spec.md §3.2.
type Associativity int

const (
	Left Associativity = iota
	Right
)

func (a Associativity) String() string {
	if a == Right {
		return "R"
	}
	return "L"
}

// RecursionBits classifies how a definition's sequence refers back to its own
// group (spec.md §4.4). There is no explicit "Non" bit: a definition with
// none of Left|Right|Full set is non-recursive by construction, which is
// exactly the classification table's "Non" row.
type RecursionBits uint8

const (
	RecLeft RecursionBits = 1 << iota
	RecRight
	RecFull
	RecExclusive
)

func (b RecursionBits) Has(flag RecursionBits) bool { return b&flag != 0 }

// IsRecursive reports whether any of Left, Right or Full is set.
func (b RecursionBits) IsRecursive() bool {
	return b.Has(RecLeft) || b.Has(RecRight) || b.Has(RecFull)
}

func (b RecursionBits) String() string {
	if !b.IsRecursive() {
		if b.Has(RecExclusive) {
			return "Non,Exclusive"
		}
		return "Non"
	}
	var parts []string
	if b.Has(RecLeft) {
		parts = append(parts, "Left")
	}
	if b.Has(RecRight) {
		parts = append(parts, "Right")
	}
	if b.Has(RecFull) {
		parts = append(parts, "Full")
	}
	if b.Has(RecExclusive) {
		parts = append(parts, "Exclusive")
	}
	return strings.Join(parts, ",")
}

// Filter is the per-definition/per-group first-character approximation used
// to short-circuit failing attempts (spec.md §4.5).
type Filter struct {
	Chars     item.CharSet
	Exclusive bool
}

// Definition is a single alternative of a named rule (spec.md §3.2).
type Definition struct {
	Name          string
	Precedence    int // NoPrecedence if absent
	HasPrecedence bool
	Associativity Associativity
	Instance      item.Item // the IR subtree: the rule body (an expression)
	Recursiveness RecursionBits
	Filter        *Filter
	IsLeftRecursive bool

	// IsNode is true for a ":=" definition: the parser wraps a successful
	// match of Instance as a Node{Name: result} (spec.md §4.7.5, "this is how
	// AST node types are introduced"). A "=" helper definition leaves false
	// and its result passes through unwrapped.
	IsNode bool

	// Index is the original source-order position within the group,
	// preserved so that equal-precedence/equal-associativity alternatives are
	// tried in source order (spec.md §5 "Ordering").
	Index int
}

// DefinitionGroup is all definitions sharing a name (spec.md §3.2).
type DefinitionGroup struct {
	Name          string
	Definitions   []*Definition
	Recursiveness RecursionBits
	Filter        *Filter

	// ReferenceMinPrecedents maps a stable id for each back-edge Reference
	// node (within this group's own definitions) to the minimum precedence
	// at which that reference may recurse, per spec.md §4.4. Keys are
	// produced by RefID.
	ReferenceMinPrecedents map[string]int
}

// RefID returns a stable identifier for a Reference IR node's occurrence,
// derived from its position in the owning definition (spec.md §9: "Back-edges
// ... should be keyed by a stable identifier of the reference node ... rather
// than object identity"). defName/defIndex/path together are unique within a
// grammar.
func RefID(defName string, defIndex int, path string) string {
	return fmt.Sprintf("%s#%d@%s", defName, defIndex, path)
}

// Options holds the grammar-wide settings from the Unit header (spec.md
// §3.2): whether whitespace is auto-skipped around quoted literals and
// whether matching is case-sensitive.
type Options struct {
	WhitespaceRule string
	HasWhitespace  bool
	CaseSensitive  bool
}

// Grammar is the compiled grammar object (spec.md §3.2). Optimized is set by
// the optimize package once the grammar has been through every
// optimization/analysis pass and is safe to hand to the parser; it is the
// implementation of the OptimizedGrammar concept from spec.md §3.2/§3.6
// (kept as a flag on the same type, rather than a distinct wrapper type, so
// that "optimizing an OptimizedGrammar returns the same instance" -
// spec.md §8 property 3 - is just an early-return on this flag).
type Grammar struct {
	Groups    map[string]*DefinitionGroup
	Root      string
	Options   Options
	Optimized bool
}

// New returns an empty Grammar ready for AddDefinition calls.
func New() *Grammar {
	return &Grammar{Groups: map[string]*DefinitionGroup{}}
}

// Group returns the named group, or nil if it does not exist.
func (g *Grammar) Group(name string) *DefinitionGroup {
	return g.Groups[name]
}

// AddDefinition appends d to the named group, creating the group if
// necessary, and records d's source-order Index.
func (g *Grammar) AddDefinition(name string, d *Definition) {
	grp, ok := g.Groups[name]
	if !ok {
		grp = &DefinitionGroup{Name: name, ReferenceMinPrecedents: map[string]int{}}
		g.Groups[name] = grp
	}
	d.Name = name
	d.Index = len(grp.Definitions)
	grp.Definitions = append(grp.Definitions, d)
}

// GroupNames returns every group name in the grammar, sorted.
func (g *Grammar) GroupNames() []string {
	names := make([]string, 0, len(g.Groups))
	for n := range g.Groups {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dump renders a table of every group's definitions with their precedence,
// associativity, recursiveness and filter, for debugging grammars that fail
// to compile or mis-parse. Grounded on the teacher's rosed-tabulated parser
// table dumps (internal/ictiobus/parse/slr.go String()).
func (g *Grammar) Dump() string {
	data := [][]string{{"group", "#", "prec", "assoc", "recursiveness", "filter"}}
	for _, name := range g.GroupNames() {
		grp := g.Groups[name]
		for _, d := range grp.Definitions {
			prec := "∞"
			if d.HasPrecedence {
				prec = fmt.Sprint(d.Precedence)
			}
			filterStr := "-"
			if d.Filter != nil {
				filterStr = filterSummary(*d.Filter)
			}
			data = append(data, []string{name, fmt.Sprint(d.Index), prec, d.Associativity.String(), d.Recursiveness.String(), filterStr})
		}
	}

	return rosed.Edit("").
		InsertTableOpts(0, data, 100, rosed.Options{
			TableHeaders:             true,
			NoTrailingLineSeparators: true,
		}).
		String()
}

func filterSummary(f Filter) string {
	excl := ""
	if f.Exclusive {
		excl = " (exclusive)"
	}
	ranges := f.Chars.Ranges()
	if len(ranges) > 4 {
		ranges = ranges[:4]
	}
	var sb strings.Builder
	for i, r := range ranges {
		if i > 0 {
			sb.WriteString(",")
		}
		if r[0] == r[1] {
			fmt.Fprintf(&sb, "%q", string(r[0]))
		} else {
			fmt.Fprintf(&sb, "%q-%q", string(r[0]), string(r[1]))
		}
	}
	return sb.String() + excl
}
