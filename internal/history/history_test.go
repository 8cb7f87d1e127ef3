package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAndRecall(t *testing.T) {
	h := New(10)
	h.Add("first")
	h.Add("second")

	line, ok := h.Previous()
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	line, ok = h.Previous()
	assert.True(t, ok)
	assert.Equal(t, "first", line)

	_, ok = h.Previous()
	assert.False(t, ok)

	line, ok = h.Next()
	assert.True(t, ok)
	assert.Equal(t, "second", line)

	// Stepping past the newest restores the blank line, once.
	line, ok = h.Next()
	assert.True(t, ok)
	assert.Equal(t, "", line)
	_, ok = h.Next()
	assert.False(t, ok)
}

func TestAddSuppressesConsecutiveDuplicates(t *testing.T) {
	h := New(10)
	h.Add("x")
	h.Add("x")
	h.Add("y")
	h.Add("x")
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "x", h.Get(0))
	assert.Equal(t, "y", h.Get(1))
	assert.Equal(t, "x", h.Get(2))
}

func TestOverflowDropsOldest(t *testing.T) {
	h := New(3)
	h.Add("a")
	h.Add("b")
	h.Add("c")
	h.Add("d")
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "b", h.Get(0))
	assert.Equal(t, "d", h.Get(2))
}

func TestResetAndEmptyLines(t *testing.T) {
	h := New(10)
	h.Add("")
	assert.Equal(t, 0, h.Len())

	h.Add("cmd")
	h.Previous()
	h.Reset()
	line, ok := h.Previous()
	assert.True(t, ok)
	assert.Equal(t, "cmd", line)

	assert.Equal(t, "", h.Get(-1))
	assert.Equal(t, "", h.Get(5))
}
