package optimize

import (
	"testing"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(defs ...item.Item) item.Item {
	return ir.Unit("G", true, false, "", false, defs...)
}

func TestOptimize_QuoteExpandsToCapturedChar_NoWhitespace(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.Quote("x"))
	g, err := grammar.Build(unit(def))
	require.NoError(t, err)

	g, err = Optimize(g)
	require.NoError(t, err)

	got := g.Group("A").Definitions[0].Instance
	require.True(t, ir.Is(got, ir.KindCapture))
	inner := ir.Payload(got).MustGet("Expression")
	require.True(t, ir.Is(inner, ir.KindChar))
	assert.Equal(t, "x", ir.Payload(inner).MustGet("Value").AsText())
}

func TestOptimize_QuoteExpandsToCapturedString_MultiChar(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.Quote("abc"))
	g, err := grammar.Build(unit(def))
	require.NoError(t, err)

	g, err = Optimize(g)
	require.NoError(t, err)

	got := g.Group("A").Definitions[0].Instance
	require.True(t, ir.Is(got, ir.KindCapture))
	inner := ir.Payload(got).MustGet("Expression")
	require.True(t, ir.Is(inner, ir.KindString))
	assert.Equal(t, "abc", ir.Payload(inner).MustGet("Value").AsText())
}

func TestOptimize_QuoteWrapsWithWhitespaceWhenConfigured(t *testing.T) {
	a := ir.Definition("A", 0, false, false, "=", ir.Quote("x"))
	ws := ir.Definition("WS", 0, false, false, "=", ir.Repeat(ir.Char(' '), 0, ir.RepeatBound{}))
	u := ir.Unit("G", true, false, "WS", true, a, ws)

	g, err := grammar.Build(u)
	require.NoError(t, err)
	g, err = Optimize(g)
	require.NoError(t, err)

	got := g.Group("A").Definitions[0].Instance
	require.True(t, ir.Is(got, ir.KindGroup))
	seq := ir.Payload(got).MustGet("Expression")
	require.True(t, ir.Is(seq, ir.KindSequence))
	items := ir.Payload(seq).MustGet("Items").Elements()
	require.Len(t, items, 3)
	assert.True(t, ir.Is(items[0], ir.KindReference))
	assert.Equal(t, "WS", ir.Payload(items[0]).MustGet("Name").AsText())
	assert.True(t, ir.Is(items[1], ir.KindCapture))
	assert.True(t, ir.Is(items[2], ir.KindReference))
}

func TestOptimize_GroupSimplifier_SingleSequenceElementUnwraps(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.Group(ir.Sequence(ir.Char('a'))))
	g, err := grammar.Build(unit(def))
	require.NoError(t, err)

	g, err = Optimize(g)
	require.NoError(t, err)

	got := g.Group("A").Definitions[0].Instance
	assert.True(t, ir.Is(got, ir.KindChar))
}

func TestOptimize_OrFlattener(t *testing.T) {
	nested := ir.Or(ir.Char('a'), ir.Char('b'))
	def := ir.Definition("A", 0, false, false, "=", ir.Or(nested, ir.Char('c')))
	g, err := grammar.Build(unit(def))
	require.NoError(t, err)

	g, err = Optimize(g)
	require.NoError(t, err)

	got := g.Group("A").Definitions[0].Instance
	require.True(t, ir.Is(got, ir.KindOr))
	alts := ir.Payload(got).MustGet("Expressions").Elements()
	require.Len(t, alts, 3)
	for _, a := range alts {
		assert.True(t, ir.Is(a, ir.KindChar))
	}
}

func TestOptimize_SequenceFlattener(t *testing.T) {
	nested := ir.Group(ir.Sequence(ir.Char('a'), ir.Char('b')))
	def := ir.Definition("A", 0, false, false, "=", ir.Sequence(nested, ir.Char('c')))
	g, err := grammar.Build(unit(def))
	require.NoError(t, err)

	g, err = Optimize(g)
	require.NoError(t, err)

	got := g.Group("A").Definitions[0].Instance
	require.True(t, ir.Is(got, ir.KindSequence))
	items := ir.Payload(got).MustGet("Items").Elements()
	require.Len(t, items, 3)
}

func TestOptimize_CaptureSimplifier(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.Capture(ir.Capture(ir.Char('a'))))
	g, err := grammar.Build(unit(def))
	require.NoError(t, err)

	g, err = Optimize(g)
	require.NoError(t, err)

	got := g.Group("A").Definitions[0].Instance
	require.True(t, ir.Is(got, ir.KindCapture))
	inner := ir.Payload(got).MustGet("Expression")
	assert.True(t, ir.Is(inner, ir.KindChar))
}

func TestOptimize_PushUp_StripsNonDeclaringPrefixAndInlinesAtCallSite(t *testing.T) {
	// Expr = Helper ; Helper = "(" Value:Digit ")"
	expr := ir.Definition("Expr", 0, false, false, "=", ir.Reference("Helper"))
	helper := ir.Definition("Helper", 0, false, false, "=", ir.Sequence(
		ir.Quote("("),
		ir.Declaration("Value", ir.Reference("Digit")),
		ir.Quote(")"),
	))
	digit := ir.Definition("Digit", 0, false, false, "=", ir.Range('0', '9'))
	g, err := grammar.Build(unit(expr, helper, digit))
	require.NoError(t, err)
	g.Root = "Expr"

	g, err = Optimize(g)
	require.NoError(t, err)

	helperBody := g.Group("Helper").Definitions[0].Instance
	require.True(t, ir.Is(helperBody, ir.KindSequence))
	helperItems := ir.Payload(helperBody).MustGet("Items").Elements()
	// the leading "(" literal was stripped out, leaving the Declaration and
	// the closing ")".
	require.Len(t, helperItems, 2)
	assert.True(t, ir.Is(helperItems[0], ir.KindDeclaration))

	exprBody := g.Group("Expr").Definitions[0].Instance
	require.True(t, ir.Is(exprBody, ir.KindSequence))
	exprItems := ir.Payload(exprBody).MustGet("Items").Elements()
	require.Len(t, exprItems, 2)
	assert.True(t, ir.Is(exprItems[len(exprItems)-1], ir.KindReference))
	assert.Equal(t, "Helper", ir.Payload(exprItems[len(exprItems)-1]).MustGet("Name").AsText())
}

func TestOptimize_IsIdempotent(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.Quote("xy"))
	g, err := grammar.Build(unit(def))
	require.NoError(t, err)

	g1, err := Optimize(g)
	require.NoError(t, err)
	g2, err := Optimize(g1)
	require.NoError(t, err)
	assert.Same(t, g1, g2)
}

func TestBootstrap_BuildsWithoutError(t *testing.T) {
	g, err := Bootstrap()
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.True(t, g.Optimized)
	assert.NotEmpty(t, g.Root)
}
