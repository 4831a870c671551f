package buffers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex(t *testing.T) {
	assert.Equal(t, 0, index(0))
	assert.Equal(t, 0, index(64))
	assert.Equal(t, 1, index(65))
	assert.Equal(t, 1, index(128))
	assert.Equal(t, 4, index(1024))
	assert.Equal(t, steps-1, index(maxSize*4))
}

func TestPool_Get(t *testing.T) {
	p := Pool{}
	buf := p.Get(100)
	assert.Equal(t, 100, buf.Len())
	assert.Equal(t, 128, buf.Cap())
	copy(buf.Bytes(), "hello")

	require.True(t, buf.Release())
	assert.True(t, buf.Released())
	assert.False(t, buf.Release(), "second release is a no-op")

	gets, puts := p.Stats()
	assert.Equal(t, uint64(1), gets)
	assert.Equal(t, uint64(1), puts)

	again := p.Get(80)
	assert.Equal(t, 80, again.Len())
	assert.False(t, again.Released())
	// pooled buffers come back zeroed
	assert.Equal(t, make([]byte, 80), again.Bytes())
}

func TestPool_Large(t *testing.T) {
	p := Pool{}
	buf := p.Get(maxSize + 1)
	assert.Equal(t, maxSize+1, buf.Len())
	assert.True(t, buf.Release())
	_, puts := p.Stats()
	assert.Zero(t, puts)
}

func TestMake(t *testing.T) {
	raw := []byte("abc")
	buf := Make(raw)
	assert.Equal(t, raw, buf.Bytes())
	assert.True(t, buf.Release())
	assert.Equal(t, []byte("abc"), raw)
}

func TestBuffer_Lend(t *testing.T) {
	p := Pool{}
	buf := p.Get(8)
	require.True(t, buf.Lend())
	require.True(t, buf.Lend())
	assert.True(t, buf.Lent())

	// the memory stays with the holders
	assert.False(t, buf.Release())
	other := p.Get(8)
	assert.NotSame(t, buf, other)

	buf.Unlend()
	assert.False(t, buf.Release())
	buf.Unlend()
	assert.False(t, buf.Lent())
	buf.Unlend()
	require.True(t, buf.Release())
	assert.False(t, buf.Lend(), "released buffers can not be lent")
}
