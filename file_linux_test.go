//go:build linux

package uring_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brickingsoft/uring"
	"github.com/brickingsoft/uring/pkg/engine/loopback"
	"github.com/brickingsoft/uring/pkg/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func useLoopback(t *testing.T) {
	t.Helper()
	uring.ResetPreset()
	uring.UseEngine(func() (ring.Engine, error) {
		return loopback.New(loopback.WithWorkers(4)), nil
	})
	uring.UseCloseTimeout(time.Second)
	t.Cleanup(func() {
		assert.Zero(t, uring.Pinned())
		uring.ResetPreset()
	})
}

func pipe(t *testing.T) (r int, w int) {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_CLOEXEC))
	return fds[0], fds[1]
}

func TestFile_ReadKeepsPending(t *testing.T) {
	useLoopback(t)
	rfd, wfd := pipe(t)
	f, err := uring.NewFile(rfd, "pipe")
	require.NoError(t, err)

	r, err := uring.Pin()
	require.NoError(t, err)
	defer func() { require.NoError(t, uring.Unpin()) }()

	p := make([]byte, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err = f.ReadContext(ctx, p)
	cancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// given up by the caller, not orphaned
	assert.Equal(t, 1, r.InFlight())
	assert.Zero(t, r.Orphans())

	_, err = unix.Write(wfd, []byte("hello"))
	require.NoError(t, err)

	got := make([]byte, 0, 5)
	for len(got) < 5 {
		n, readErr := f.Read(p)
		require.NoError(t, readErr)
		got = append(got, p[:n]...)
	}
	assert.Equal(t, "hello", string(got))
	assert.Zero(t, r.InFlight())

	require.NoError(t, unix.Close(wfd))
	_, err = f.Read(p)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, f.Close())
	assert.ErrorIs(t, f.Close(), os.ErrClosed)
}

func TestFile_CloseWhileReading(t *testing.T) {
	useLoopback(t)
	rfd, wfd := pipe(t)
	f, err := uring.NewFile(rfd, "pipe")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	_, err = f.ReadContext(ctx, make([]byte, 8))
	cancel()
	require.Error(t, err)

	// the pending read ends with the writer
	require.NoError(t, unix.Close(wfd))
	require.NoError(t, f.Close())
	_, err = f.Read(make([]byte, 8))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestFile_WriteRead(t *testing.T) {
	useLoopback(t)
	path := filepath.Join(t.TempDir(), "data")
	ctx := context.Background()

	f, err := uring.Open(ctx, path, os.O_RDWR|os.O_CREATE, 0o600)
	require.NoError(t, err)
	payload := make([]byte, 20*1024)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	n, err := f.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, f.Close())

	f, err = uring.Open(ctx, path, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}
