package pgerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrammar_CarriesGroupName(t *testing.T) {
	err := Grammar("Expr", "unknown reference %q", "Foo")
	assert.True(t, IsGrammarError(err))
	assert.Contains(t, err.Error(), "Expr")
	assert.Contains(t, err.Error(), "Foo")
}

func TestWrapGrammar_Unwraps(t *testing.T) {
	cause := errors.New("boom")
	err := WrapGrammar(cause, "G", "wrapping")
	assert.ErrorIs(t, err, cause)
}

func TestInvalidArgument(t *testing.T) {
	err := InvalidArgument("text")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "text")
}

func TestParser_WithID(t *testing.T) {
	err := Parser("abc-123", "cache fail without start")
	assert.True(t, IsParserError(err))
	assert.Contains(t, err.Error(), "abc-123")
}

func TestGrammarAt_CarriesPosition(t *testing.T) {
	err := GrammarAt("G", Position{Line: 3, Col: 4}, "bad thing")
	var ge interface {
		Pos() (Position, bool)
	}
	ok := errors.As(err, &ge)
	assert.True(t, ok)
	pos, has := ge.Pos()
	assert.True(t, has)
	assert.Equal(t, 3, pos.Line)
}
