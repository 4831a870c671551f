//go:build linux

package uring_test

import (
	"context"
	"testing"
	"time"

	"github.com/brickingsoft/uring"
	"github.com/brickingsoft/uring/pkg/aio"
	"github.com/stretchr/testify/require"
)

func TestDo_DefaultEngine(t *testing.T) {
	uring.ResetPreset()
	defer uring.ResetPreset()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < 16; i++ {
		_, err := uring.Do(ctx, aio.Nop())
		require.NoError(t, err)
	}
	_, err := uring.Do(ctx, aio.Timeout(time.Millisecond))
	require.NoError(t, err)
}
