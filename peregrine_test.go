package peregrine

import (
	"strings"
	"testing"

	"github.com/dekarrin/peregrine/internal/peregrine/grammar"
	"github.com/dekarrin/peregrine/internal/peregrine/ir"
	"github.com/dekarrin/peregrine/internal/peregrine/optimize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildXGrammar(t *testing.T) *Grammar {
	t.Helper()
	def := ir.Definition("A", 0, false, false, ":=", ir.Capture(ir.Char('x')))
	u := ir.Unit("G", true, false, "", false, def)
	g, err := grammar.Build(u)
	require.NoError(t, err)
	g, err = optimize.Optimize(g)
	require.NoError(t, err)
	return g
}

func TestParseText_ReturnsItemTree(t *testing.T) {
	g := buildXGrammar(t)
	result, ok, err := ParseText(g, "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", result.MustGet("A").AsText())
}

func TestParseText_RejectsNilGrammar(t *testing.T) {
	_, _, err := ParseText(nil, "x")
	assert.Error(t, err)
}

func TestParseStream_ReadsWholeReader(t *testing.T) {
	g := buildXGrammar(t)
	result, ok, err := ParseStream(g, strings.NewReader("x"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", result.MustGet("A").AsText())
}

func TestParseStream_RejectsNilReader(t *testing.T) {
	g := buildXGrammar(t)
	_, _, err := ParseStream(g, nil)
	assert.Error(t, err)
}

func TestMatchesText_RequiresFullConsumption(t *testing.T) {
	g := buildXGrammar(t)

	ok, err := MatchesText(g, "x")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchesText(g, "xx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchesText_RejectsNilGrammar(t *testing.T) {
	_, err := MatchesText(nil, "x")
	assert.Error(t, err)
}

func TestMatchesStream_ReadsWholeReader(t *testing.T) {
	g := buildXGrammar(t)
	ok, err := MatchesStream(g, strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesStream_RejectsNilReader(t *testing.T) {
	g := buildXGrammar(t)
	_, err := MatchesStream(g, nil)
	assert.Error(t, err)
}

func TestParseGrammarText_RejectsEmptyText(t *testing.T) {
	_, err := ParseGrammarText("")
	assert.Error(t, err)
}

func TestParseGrammar_RejectsNilReader(t *testing.T) {
	_, err := ParseGrammar(nil)
	assert.Error(t, err)
}

// TestParseGrammarText_CompilesMinimalGrammar exercises the full
// text-to-Grammar pipeline (bootstrap parse, grammar.Build, optimize.Optimize)
// on the smallest possible grammar notation source: one definition with no
// precedence/associativity clause, matching a single quoted literal.
func TestParseGrammarText_CompilesMinimalGrammar(t *testing.T) {
	g, err := ParseGrammarText("grammar G;\nA := 'x';\n")
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.True(t, g.Optimized)

	result, ok, err := ParseText(g, "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "x", result.MustGet("A").AsText())
}
