package parse

import (
	"testing"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/item"
	"github.com/dekarrin/peregrine/internal/peregrine/optimize"
	"github.com/dekarrin/peregrine/internal/peregrine/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(defs ...item.Item) item.Item {
	return ir.Unit("G", true, false, "", false, defs...)
}

func build(t *testing.T, defs ...item.Item) *grammar.Grammar {
	t.Helper()
	g, err := grammar.Build(unit(defs...))
	require.NoError(t, err)
	g, err = optimize.Optimize(g)
	require.NoError(t, err)
	return g
}

func TestRun_SingleChar(t *testing.T) {
	g := build(t, ir.Definition("A", 0, false, false, "=", ir.Char('x')))
	result, ok, err := Run(g, stream.New("x"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, result.IsText())
	assert.Equal(t, "x", result.AsText())
}

func TestRun_SingleChar_Fails(t *testing.T) {
	g := build(t, ir.Definition("A", 0, false, false, "=", ir.Char('x')))
	_, ok, err := Run(g, stream.New("y"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatches_RequiresFullConsumption(t *testing.T) {
	g := build(t, ir.Definition("A", 0, false, false, "=", ir.Char('x')))

	ok, err := Matches(g, stream.New("x"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(g, stream.New("xy"))
	require.NoError(t, err)
	assert.False(t, ok, "trailing unconsumed input must fail Matches even though Run would succeed")
}

func TestSequence_ConcatenatesPlainText(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.Sequence(ir.Char('a'), ir.Char('b'), ir.Char('c')))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("abc"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, result.IsText())
	assert.Equal(t, "abc", result.AsText())
}

func TestOr_TriesAlternativesInOrder(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.Or(ir.String("ab"), ir.String("a")))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", result.AsText())
}

func TestOptional_FailureYieldsEmptyListWithoutConsuming(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.Sequence(ir.Optional(ir.Char('x')), ir.Char('y')))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("y"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "y", result.AsText())
}

func TestRepeat_EnforcesLowerBound(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.Repeat(ir.Char('a'), 2, ir.RepeatBound{}))
	g := build(t, def)

	_, ok, err := Run(g, stream.New("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	result, ok, err := Run(g, stream.New("aaa"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, result.Elements(), 3)
}

func TestSeparated_DiscardsSeparatorResults(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.Separated(ir.Capture(ir.Char('a')), ir.Char(',')))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("a,a,a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, result.IsList())
	assert.Len(t, result.Elements(), 3)
	for _, e := range result.Elements() {
		assert.Equal(t, "a", e.AsText())
	}
}

func TestAndNot_FailsWhenLookaheadMatches(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.AndNot(ir.Char('a'), ir.String("ab")))
	g := build(t, def)

	_, ok, err := Run(g, stream.New("ab"))
	require.NoError(t, err)
	assert.False(t, ok, "lookahead 'ab' matches, so AndNot must fail even though 'a' alone would match")
}

func TestAndNot_DoesNotConsumeLookaheadInput(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=",
		ir.Sequence(ir.AndNot(ir.Char('a'), ir.String("xyz")), ir.Char('b')))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("ab"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ab", result.AsText())
}

func TestAs_SubstitutesLiteralValue(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.As(ir.String("true"), "yes"))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("true"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "yes", result.AsText())
}

func TestDeclaration_WrapsAsNode(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.Declaration("value", ir.Char('x')))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, result.IsNode())
	assert.Equal(t, "x", result.MustGet("value").AsText())
}

func TestNodeTypeDefinition_WrapsWholeMatch(t *testing.T) {
	def := ir.Definition("Lit", 0, false, false, ":=", ir.Capture(ir.Char('x')))
	g := build(t, def)

	result, ok, err := Run(g, stream.New("x"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, result.IsNode())
	assert.Equal(t, "x", result.MustGet("Lit").AsText())
}

func TestCaseInsensitive_StringMatch(t *testing.T) {
	def := ir.Definition("A", 0, false, false, "=", ir.String("Hello"))
	u := ir.Unit("G", false, true, "", false, def)
	g, err := grammar.Build(u)
	require.NoError(t, err)
	g, err = optimize.Optimize(g)
	require.NoError(t, err)

	result, ok, err := Run(g, stream.New("hello"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hello", result.AsText())
}

func TestLeftRecursion_GrowsToLongestMatch(t *testing.T) {
	// List = List 'a' (prec 1, L)
	//       | 'a'
	recursive := ir.Definition("List", 1, true, false, "=",
		ir.Sequence(ir.Capture(ir.Reference("List")), ir.Capture(ir.Char('a'))))
	base := ir.Definition("List", 0, false, false, "=", ir.Capture(ir.Char('a')))

	g := build(t, recursive, base)

	result, ok, err := Run(g, stream.New("aaa"))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, result.IsText())
	// each grow-loop round should re-seed the cache with a longer match until
	// the stream is exhausted, consuming all three characters in one Item.
	assert.Equal(t, "aaa", result.AsText())
}

func TestFilter_ShortCircuitsNonMatchingDefinition(t *testing.T) {
	def1 := ir.Definition("A", 0, false, false, "=", ir.Char('a'))
	def2 := ir.Definition("A", 0, false, false, "=", ir.Char('b'))
	g := build(t, def1, def2)

	result, ok, err := Run(g, stream.New("b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", result.AsText())
}

func TestMergeResults_DisjointNodesCombine(t *testing.T) {
	a := item.Node().With("x", item.Text("1"))
	b := item.Node().With("y", item.Text("2"))
	got := mergeResults(a, b)
	require.True(t, got.IsNode())
	assert.Equal(t, "1", got.MustGet("x").AsText())
	assert.Equal(t, "2", got.MustGet("y").AsText())
}

func TestMergeResults_OverlappingNodesBecomeList(t *testing.T) {
	a := item.Node().With("x", item.Text("1"))
	b := item.Node().With("x", item.Text("2"))
	got := mergeResults(a, b)
	require.True(t, got.IsList())
	assert.Len(t, got.Elements(), 2)
}

func TestMergeResults_CapturedTextConcatenates(t *testing.T) {
	a := item.CapturedText("foo")
	b := item.CapturedText("bar")
	got := mergeResults(a, b)
	require.True(t, got.IsText())
	assert.Equal(t, "foobar", got.AsText())
	assert.True(t, got.Captured)
}

func TestMergeResults_PlainUncapturedTextDropsInFavorOfList(t *testing.T) {
	a := item.Text("keyword")
	b := item.List(item.CapturedText("x"))
	got := mergeResults(a, b)
	require.True(t, got.IsList())
	assert.Len(t, got.Elements(), 1)
}
