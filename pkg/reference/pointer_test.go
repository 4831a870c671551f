package reference_test

import (
	"errors"
	"testing"

	"github.com/brickingsoft/uring/pkg/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointer(t *testing.T) {
	closed := 0
	p := reference.Make("value", func(string) error {
		closed++
		return nil
	})
	assert.Equal(t, "value", p.Value())
	assert.Equal(t, "value", p.Value())
	assert.Equal(t, int64(2), p.Count())

	last, err := p.Close()
	require.NoError(t, err)
	assert.False(t, last)
	last, err = p.Close()
	require.NoError(t, err)
	assert.True(t, last)
	assert.Equal(t, 1, closed)

	// unbalanced close is ignored
	last, _ = p.Close()
	assert.False(t, last)
	assert.Equal(t, int64(0), p.Count())
}

func TestPointer_CloseErr(t *testing.T) {
	boom := errors.New("boom")
	p := reference.Make(1, func(int) error { return boom })
	p.Value()
	_, err := p.Close()
	assert.ErrorIs(t, err, boom)
	assert.Panics(t, func() { reference.Make(1, nil) })
}
