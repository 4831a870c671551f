package aio_test

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/brickingsoft/uring/pkg/aio"
	"github.com/brickingsoft/uring/pkg/buffers"
	"github.com/brickingsoft/uring/pkg/engine/fake"
	"github.com/brickingsoft/uring/pkg/ring"
	"github.com/brickingsoft/uring/pkg/tags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var drivers = []struct {
	name   string
	option aio.Option
}{
	{"poll", aio.WithPollDriver(-1, nil)},
	{"cooperative", aio.WithCooperativeDriver(4, time.Millisecond)},
}

func newReactor(t *testing.T, engine ring.Engine, options ...aio.Option) *aio.Reactor {
	t.Helper()
	r, err := aio.New(engine, options...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r
}

func fill(entry *ring.SubmissionEntry, mem ring.Memory) int32 {
	return int32(copy(mem.Bytes, fmt.Sprintf("fd-%d", entry.Fd)))
}

func TestReactor_OutOfOrder(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			engine := fake.New()
			r := newReactor(t, engine, d.option)
			ctx := context.Background()

			events := make([]*aio.Event, 3)
			for i := range events {
				ev, err := r.Prepare(ctx, aio.Read(i+1, buffers.Get(16), 0))
				require.NoError(t, err)
				assert.Equal(t, aio.Submitted, ev.State())
				events[i] = ev
			}
			assert.NotEqual(t, events[0].Tag(), events[1].Tag())
			assert.NotEqual(t, events[1].Tag(), events[2].Tag())
			assert.NotEqual(t, events[0].Tag(), events[2].Tag())

			pending := engine.Pending()
			require.Len(t, pending, 3)
			for _, i := range []int{2, 0, 1} {
				require.True(t, engine.CompleteFunc(pending[i].UserData, fill))
			}

			for i, ev := range events {
				res, err := ev.Await(ctx)
				require.NoError(t, err)
				assert.Equal(t, 4, res.N)
				op := ev.Operation()
				require.NotNil(t, op)
				assert.Equal(t, fmt.Sprintf("fd-%d", i+1), string(op.Buffer().Bytes()[:res.N]))
				assert.True(t, ev.Release())
			}
			assert.Equal(t, 0, r.InFlight())
		})
	}
}

func TestReactor_CancelWithoutAwait(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine)

	buf := buffers.Get(8)
	ev, err := r.Prepare(context.Background(), aio.Read(3, buf, 0))
	require.NoError(t, err)
	require.True(t, ev.Cancel())
	assert.False(t, ev.Cancel())
	assert.Equal(t, aio.Orphaned, ev.State())
	assert.Equal(t, 1, r.Orphans())

	// the engine still owns the buffer
	assert.False(t, buf.Released())
	assert.False(t, ev.Release())

	pending := engine.Pending()
	require.Len(t, pending, 1)
	require.True(t, engine.CompleteFunc(pending[0].UserData, func(entry *ring.SubmissionEntry, mem ring.Memory) int32 {
		assert.False(t, buf.Released(), "buffer released before its completion")
		return fill(entry, mem)
	}))

	require.Eventually(t, func() bool { return r.InFlight() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, r.Orphans())
	assert.True(t, buf.Released())
	assert.Nil(t, r.Fault())

	_, err = ev.Await(context.Background())
	assert.True(t, aio.IsCanceled(err))
}

func TestReactor_DropWithoutAwait(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine, aio.WithEntries(1), aio.WithCompletionEntries(1), aio.WithSubmitTimeout(20*time.Millisecond))

	buf := buffers.Get(8)
	prepareAndDrop(t, r, aio.Read(3, buf, 0))
	assert.Equal(t, 1, r.InFlight())
	// the only slot is taken
	_, err := r.Prepare(context.Background(), aio.Nop())
	require.True(t, aio.IsBackpressure(err))

	require.Equal(t, 1, engine.CompleteAll(nil))
	require.Eventually(t, func() bool {
		runtime.GC()
		return r.InFlight() == 0
	}, 2*time.Second, time.Millisecond)
	assert.True(t, buf.Released())

	ev, err := r.Prepare(context.Background(), aio.Nop())
	require.NoError(t, err)
	require.True(t, engine.Complete(uint64(ev.Tag()), 0))
	_, err = ev.Await(context.Background())
	assert.NoError(t, err)
}

//go:noinline
func prepareAndDrop(t *testing.T, r *aio.Reactor, op *aio.Operation) {
	_, err := r.Prepare(context.Background(), op)
	require.NoError(t, err)
}

func TestReactor_LentBuffer(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine)

	pool := &buffers.Pool{}
	buf := pool.Get(16)
	ev, err := r.Prepare(context.Background(), aio.Read(4, buf, 0))
	require.NoError(t, err)

	// the engine may still write into it
	assert.False(t, buf.Release())
	assert.False(t, buf.Released())
	assert.NotSame(t, buf, pool.Get(16))

	// a second operation on the same memory shares the lend
	other, err := r.Prepare(context.Background(), aio.Read(5, buf, 0))
	require.NoError(t, err)

	require.True(t, engine.Complete(uint64(ev.Tag()), 0))
	_, err = ev.Await(context.Background())
	require.NoError(t, err)
	assert.False(t, ev.Release(), "still lent to the other read")

	require.True(t, engine.Complete(uint64(other.Tag()), 0))
	_, err = other.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, other.Release())
	assert.True(t, buf.Released())

	// released memory is never handed to the engine
	_, err = r.Prepare(context.Background(), aio.Read(4, buf, 0))
	assert.True(t, aio.IsInvalidOperation(err))
	assert.Empty(t, engine.Pending())
	assert.Equal(t, 0, r.InFlight())
}

func TestReactor_OrphanDelayed(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			const n = 32
			owned := sync.Map{}
			violations := atomic.Int32{}
			engine := fake.New(fake.WithAuto(func(entry *ring.SubmissionEntry, mem ring.Memory) int32 {
				v, ok := owned.Load(int(entry.Fd))
				if !ok || v.(*buffers.Buffer).Released() || len(mem.Bytes) != int(entry.Len) {
					violations.Add(1)
				}
				return fill(entry, mem)
			}), fake.WithDelay(20*time.Millisecond))
			r := newReactor(t, engine, d.option, aio.WithEntries(n))

			bufs := make([]*buffers.Buffer, n)
			for i := 0; i < n; i++ {
				buf := buffers.Get(32)
				bufs[i] = buf
				owned.Store(i, buf)
				ev, err := r.Prepare(context.Background(), aio.Read(i, buf, 0))
				require.NoError(t, err)

				ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
				_, err = ev.Await(ctx)
				cancel()
				require.True(t, aio.IsUncompleted(err))
			}

			if d.name == "cooperative" {
				// nobody waits anymore, the close drain reaps the orphans
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				require.NoError(t, r.Close(ctx))
			}
			require.Eventually(t, func() bool { return r.Outstanding() == 0 }, 2*time.Second, time.Millisecond)
			require.Eventually(t, func() bool { return r.InFlight() == 0 }, 2*time.Second, time.Millisecond)
			assert.Zero(t, violations.Load())
			for _, buf := range bufs {
				assert.True(t, buf.Released())
			}
		})
	}
}

func TestReactor_Backpressure(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine, aio.WithEntries(2), aio.WithCompletionEntries(2))

	events := make([]*aio.Event, 2)
	for i := range events {
		ev, err := r.Prepare(context.Background(), aio.Nop())
		require.NoError(t, err)
		events[i] = ev
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, err := r.Prepare(ctx, aio.Nop())
	cancel()
	require.True(t, aio.IsBackpressure(err))
	assert.Len(t, engine.Pending(), 2, "no entry lost or added")

	blocked := make(chan *aio.Event, 1)
	go func() {
		ev, prepareErr := r.Prepare(context.Background(), aio.Nop())
		assert.NoError(t, prepareErr)
		blocked <- ev
	}()

	pending := engine.Pending()
	require.True(t, engine.Complete(pending[0].UserData, 0))
	_, err = events[0].Await(context.Background())
	require.NoError(t, err)

	select {
	case ev := <-blocked:
		require.NotNil(t, ev)
		assert.Equal(t, aio.Submitted, ev.State())
	case <-time.After(time.Second):
		t.Fatal("backpressured submission never succeeded")
	}
	engine.CompleteAll(nil)
}

func TestReactor_SubmitTimeout(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine, aio.WithEntries(1), aio.WithCompletionEntries(1), aio.WithSubmitTimeout(10*time.Millisecond))
	_, err := r.Prepare(context.Background(), aio.Nop())
	require.NoError(t, err)
	_, err = r.Prepare(context.Background(), aio.Nop())
	assert.True(t, aio.IsBackpressure(err))
	engine.CompleteAll(nil)
}

func TestReactor_MaxOrphans(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine, aio.WithEntries(4), aio.WithMaxOrphans(1), aio.WithSubmitTimeout(10*time.Millisecond))
	ev, err := r.Prepare(context.Background(), aio.Nop())
	require.NoError(t, err)
	require.True(t, ev.Cancel())

	_, err = r.Prepare(context.Background(), aio.Nop())
	assert.True(t, aio.IsBackpressure(err))

	engine.CompleteAll(nil)
	require.Eventually(t, func() bool { return r.Orphans() == 0 }, time.Second, time.Millisecond)
	_, err = r.Prepare(context.Background(), aio.Nop())
	assert.NoError(t, err)
	engine.CompleteAll(nil)
}

func TestReactor_ExactlyOnce(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			const (
				workers = 8
				each    = 200
			)
			// per tag, submissions counted by the workers and completions by the engine
			var (
				mu          sync.Mutex
				submissions = make(map[tags.Tag]int)
				completions = make(map[tags.Tag]int)
				mismatched  atomic.Int32
			)
			engine := fake.New(fake.WithAuto(func(entry *ring.SubmissionEntry, mem ring.Memory) int32 {
				if len(mem.Bytes) != int(entry.Len) {
					mismatched.Add(1)
				}
				mu.Lock()
				completions[tags.Tag(entry.UserData)]++
				mu.Unlock()
				return int32(entry.Len)
			}), fake.WithDelay(50*time.Microsecond))
			r := newReactor(t, engine, d.option, aio.WithEntries(16))

			g := errgroup.Group{}
			for w := 0; w < workers; w++ {
				g.Go(func() error {
					for i := 0; i < each; i++ {
						size := 1 + (i % 64)
						ev, err := r.Prepare(context.Background(), aio.Write(w, buffers.Get(size), 0))
						if err != nil {
							return err
						}
						mu.Lock()
						// the previous use of the tag completed, the current one may have too
						s, c := submissions[ev.Tag()], completions[ev.Tag()]
						submissions[ev.Tag()]++
						mu.Unlock()
						if c != s && c != s+1 {
							return fmt.Errorf("tag %s shared in flight: %d submissions, %d completions", ev.Tag(), s, c)
						}
						res, err := ev.Await(context.Background())
						if err != nil {
							return err
						}
						if res.N != size {
							return fmt.Errorf("cross-wired result: want %d, got %d", size, res.N)
						}
						ev.Release()
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			assert.Equal(t, 0, r.InFlight())
			assert.Nil(t, r.Fault())
			assert.Zero(t, mismatched.Load())

			assert.Len(t, engine.Submitted(), workers*each)
			mu.Lock()
			defer mu.Unlock()
			total := 0
			for tag, n := range submissions {
				assert.Equal(t, n, completions[tag], tag.String())
				total += completions[tag]
			}
			assert.Equal(t, workers*each, total)
			assert.Len(t, completions, len(submissions))
		})
	}
}

func TestReactor_ProtocolViolation(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine)

	buf := buffers.Get(8)
	ev, err := r.Prepare(context.Background(), aio.Read(1, buf, 0))
	require.NoError(t, err)

	stale := uint64(ev.Tag()) + 1<<32
	engine.Inject(ring.CompletionEntry{UserData: stale})

	require.Eventually(t, func() bool { return r.Fault() != nil }, time.Second, time.Millisecond)
	assert.True(t, aio.IsFault(r.Fault()))

	_, err = r.Prepare(context.Background(), aio.Nop())
	assert.True(t, aio.IsFault(err))

	_, err = ev.Await(context.Background())
	assert.True(t, aio.IsUncompleted(err))
	// a faulted reactor keeps the buffer with the engine
	assert.False(t, buf.Released())

	engine.CompleteAll(nil)
	require.Eventually(t, func() bool { return r.Outstanding() == 0 }, time.Second, time.Millisecond)
	assert.True(t, buf.Released())
}

func TestReactor_Errors(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine)
	ctx := context.Background()

	notFound, err := r.Prepare(ctx, aio.Openat(unixAtFdcwd, "/nonexistent", 0, 0))
	require.NoError(t, err)
	canceled, err := r.Prepare(ctx, aio.Nop())
	require.NoError(t, err)
	timeout, err := r.Prepare(ctx, aio.Timeout(time.Millisecond))
	require.NoError(t, err)

	require.True(t, engine.Complete(uint64(notFound.Tag()), -int32(syscall.ENOENT)))
	require.True(t, engine.Complete(uint64(canceled.Tag()), -int32(syscall.ECANCELED)))
	require.True(t, engine.Complete(uint64(timeout.Tag()), -int32(syscall.ETIME)))

	_, err = notFound.Await(ctx)
	assert.ErrorIs(t, err, syscall.ENOENT)
	_, err = canceled.Await(ctx)
	assert.True(t, aio.IsCanceled(err))
	res, err := timeout.Await(ctx)
	assert.NoError(t, err)
	assert.Zero(t, res.N)

	// a completed event keeps answering
	_, err = notFound.Await(ctx)
	assert.ErrorIs(t, err, syscall.ENOENT)
}

func TestReactor_OperationInFlight(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine)
	op := aio.Nop()
	ev, err := r.Prepare(context.Background(), op)
	require.NoError(t, err)
	assert.True(t, op.InFlight())
	assert.False(t, op.Release())

	_, err = r.Prepare(context.Background(), op)
	assert.Error(t, err)

	require.True(t, engine.Complete(uint64(ev.Tag()), 0))
	_, err = ev.Await(context.Background())
	require.NoError(t, err)
	assert.False(t, op.InFlight())

	// resubmission after completion is fine
	ev, err = r.Prepare(context.Background(), op)
	require.NoError(t, err)
	require.True(t, engine.Complete(uint64(ev.Tag()), 0))
	_, err = ev.Await(context.Background())
	require.NoError(t, err)
}

func TestReactor_Close(t *testing.T) {
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			engine := fake.New()
			r, err := aio.New(engine, d.option)
			require.NoError(t, err)

			live, err := r.Prepare(context.Background(), aio.Nop())
			require.NoError(t, err)
			orphan, err := r.Prepare(context.Background(), aio.Nop())
			require.NoError(t, err)
			require.True(t, orphan.Cancel())

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			err = r.Close(ctx)
			cancel()
			require.Error(t, err)
			assert.False(t, r.Released())

			_, err = r.Prepare(context.Background(), aio.Nop())
			assert.True(t, aio.IsClosed(err))

			engine.CompleteAll(nil)
			ctx, cancel = context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			require.NoError(t, r.Close(ctx))
			assert.True(t, r.Released())
			assert.Equal(t, 0, r.Orphans())

			// woken results survive the shutdown
			_, err = live.Await(context.Background())
			assert.NoError(t, err)
			require.NoError(t, r.Close(ctx))
		})
	}
}

func TestReactor_TagsUnique(t *testing.T) {
	engine := fake.New()
	r := newReactor(t, engine, aio.WithEntries(64))
	live := make(map[tags.Tag]struct{})
	for i := 0; i < 64; i++ {
		ev, err := r.Prepare(context.Background(), aio.Nop())
		require.NoError(t, err)
		_, dup := live[ev.Tag()]
		require.False(t, dup)
		live[ev.Tag()] = struct{}{}
	}
	engine.CompleteAll(nil)
}
