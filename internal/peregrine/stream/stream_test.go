package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuneStream_ReadAndNext(t *testing.T) {
	s := New("ab")

	c, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, 'a', c)

	eof := s.Next()
	assert.False(t, eof)

	c, err = s.Read()
	require.NoError(t, err)
	assert.Equal(t, 'b', c)

	eof = s.Next()
	assert.True(t, eof)

	_, err = s.Read()
	assert.Error(t, err)
}

func TestRuneStream_SetPositionClamps(t *testing.T) {
	s := New("abc")

	s.SetPosition(-5)
	assert.Equal(t, 0, s.Position())

	s.SetPosition(100)
	assert.Equal(t, 3, s.Position())
	assert.True(t, s.EOF())
}

func TestRuneStream_RewindIsCheap(t *testing.T) {
	s := New("hello")
	s.SetPosition(3)
	s.SetPosition(0)
	c, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, 'h', c)
}

func TestRuneStream_Segment(t *testing.T) {
	s := New("hello world")
	assert.Equal(t, []rune("hello"), s.Segment(0, 5))
	assert.Equal(t, []rune("world"), s.Segment(6, 5))
	assert.Equal(t, []rune("rld"), s.Segment(8, 10))
	assert.Nil(t, s.Segment(100, 5))
}

func TestNewFromReader(t *testing.T) {
	s, err := NewFromReader(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Size())
}
