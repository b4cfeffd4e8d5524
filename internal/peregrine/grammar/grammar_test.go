package grammar

import (
	"testing"

	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(defs ...item.Item) item.Item {
	return ir.Unit("G", true, false, "", false, defs...)
}

func TestBuild_SimpleNonRecursive(t *testing.T) {
	// Digit = '0'..'9'
	def := ir.Definition("Digit", 0, false, false, "=", ir.Range('0', '9'))
	g, err := Build(unit(def))
	require.NoError(t, err)
	require.Equal(t, "Digit", g.Root)
	grp := g.Group("Digit")
	require.NotNil(t, grp)
	assert.False(t, grp.Definitions[0].IsLeftRecursive)
	assert.False(t, grp.Recursiveness.IsRecursive())
}

func TestBuild_UnknownReference(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.Reference("NoSuchThing"))
	_, err := Build(unit(def))
	require.Error(t, err)
}

func TestBuild_LeftRecursiveArithmeticChain(t *testing.T) {
	// Expr<0> = Expr "+" Expr   (left-recursive, precedence 0)
	// Expr<∞> = Digit           (base case)
	rec := ir.Definition("Expr", 0, true, false, "=",
		ir.Sequence(ir.Reference("Expr"), ir.Quote("+"), ir.Reference("Expr")))
	base := ir.Definition("Expr", 0, false, false, "=", ir.Reference("Digit"))
	digit := ir.Definition("Digit", 0, false, false, "=", ir.Range('0', '9'))

	g, err := Build(unit(rec, base, digit))
	require.NoError(t, err)

	grp := g.Group("Expr")
	require.Len(t, grp.Definitions, 2)

	recDef := grp.Definitions[0]
	baseDef := grp.Definitions[1]

	assert.True(t, recDef.IsLeftRecursive)
	assert.True(t, recDef.Recursiveness.Has(RecLeft))
	assert.False(t, baseDef.IsLeftRecursive)
	assert.True(t, grp.Recursiveness.IsRecursive())
	assert.NotEmpty(t, grp.ReferenceMinPrecedents)
}

func TestBuild_NoPrecedenceButRecursiveIsRejected(t *testing.T) {
	rec := ir.Definition("A", 0, false, false, "=",
		ir.Sequence(ir.Reference("A"), ir.Quote("x")))
	_, err := Build(unit(rec))
	require.Error(t, err)
}

func TestBuild_OptionsFromHeader(t *testing.T) {
	u := ir.Unit("G", false, true, "WS", true,
		ir.Definition("A", 0, false, false, "=", ir.Quote("a")))
	g, err := Build(u)
	require.NoError(t, err)
	assert.False(t, g.Options.CaseSensitive)
	assert.True(t, g.Options.HasWhitespace)
	assert.Equal(t, "WS", g.Options.WhitespaceRule)
}

func TestComputeFilters_TerminalAndSequence(t *testing.T) {
	// A = "ab" Digit
	def := ir.Definition("A", 0, false, false, "=",
		ir.Sequence(ir.String("ab"), ir.Reference("Digit")))
	digit := ir.Definition("Digit", 0, false, false, "=", ir.Range('0', '9'))
	g, err := Build(unit(def, digit))
	require.NoError(t, err)

	computeFilters(g)

	aFilter := g.Group("A").Definitions[0].Filter
	require.NotNil(t, aFilter)
	assert.True(t, aFilter.Exclusive)
	assert.True(t, aFilter.Chars.Contains('a'))
	assert.False(t, aFilter.Chars.Contains('b'))
}

func TestComputeFilters_OptionalThenExclusive(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.Sequence(ir.Optional(ir.Char('x')), ir.Char('y')))
	g, err := Build(unit(def))
	require.NoError(t, err)
	computeFilters(g)

	f := g.Group("A").Definitions[0].Filter
	assert.True(t, f.Exclusive)
	assert.True(t, f.Chars.Contains('x'))
	assert.True(t, f.Chars.Contains('y'))
}

func TestComputeFilters_LeftRecursiveInheritsBaseFilter(t *testing.T) {
	rec := ir.Definition("Expr", 0, true, false, "=",
		ir.Sequence(ir.Reference("Expr"), ir.Quote("+"), ir.Reference("Expr")))
	base := ir.Definition("Expr", 0, false, false, "=", ir.Range('0', '9'))
	g, err := Build(unit(rec, base))
	require.NoError(t, err)
	computeFilters(g)

	recFilter := g.Group("Expr").Definitions[0].Filter
	baseFilter := g.Group("Expr").Definitions[1].Filter
	assert.True(t, recFilter.Chars.Contains('5'))
	assert.Equal(t, baseFilter.Exclusive, recFilter.Exclusive)
}

func TestDump_DoesNotPanicOnEmptyGrammar(t *testing.T) {
	g := New()
	assert.NotPanics(t, func() { g.Dump() })
}
