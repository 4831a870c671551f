//go:build linux

// Package loopback runs submissions as blocking system calls on a bounded set of
// goroutines. It needs no kernel ring and serves where io_uring is unavailable.
package loopback

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/uring/pkg/ring"
	"golang.org/x/sync/semaphore"
)

type Options struct {
	// Workers
	// 同时执行的系统调用上限
	Workers int64
}

type Option func(*Options)

func WithWorkers(n int64) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

func New(options ...Option) *Engine {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = int64(runtime.NumCPU() * 4)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.Workers),
		notify: make(chan struct{}, 1),
		ready:  make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

type Engine struct {
	opts    Options
	pair    *ring.Pair
	sem     *semaphore.Weighted
	notify  chan struct{}
	mu      sync.Mutex
	ready   chan struct{}
	backlog []ring.CompletionEntry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closed  atomic.Bool
}

func (e *Engine) Start(pair *ring.Pair) error {
	e.pair = pair
	e.wg.Add(1)
	go e.dispatch()
	return nil
}

func (e *Engine) dispatch() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.notify:
		}
		for {
			entry, ok := e.pair.PopSubmission()
			if !ok {
				break
			}
			if err := e.sem.Acquire(e.ctx, 1); err != nil {
				return
			}
			e.wg.Add(1)
			go func(entry ring.SubmissionEntry) {
				defer e.wg.Done()
				defer e.sem.Release(1)
				mem, _ := e.pair.Resolve(entry.UserData)
				res := execute(e.ctx, &entry, &mem)
				e.complete(ring.CompletionEntry{UserData: entry.UserData, Res: res})
			}(entry)
		}
	}
}

func (e *Engine) Notify() error {
	if e.closed.Load() {
		return ring.ErrClosed
	}
	select {
	case e.notify <- struct{}{}:
	default:
	}
	return nil
}

func (e *Engine) Wait(ctx context.Context, timeout time.Duration) error {
	if e.closed.Load() {
		return ring.ErrClosed
	}
	e.mu.Lock()
	e.flushLocked()
	if e.pair.CompletionReady() > 0 {
		e.mu.Unlock()
		return nil
	}
	ready := e.ready
	e.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close
// cancels pending timeouts and waits for running system calls.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	e.wg.Wait()
	return nil
}

func (e *Engine) complete(cqe ring.CompletionEntry) {
	e.mu.Lock()
	e.backlog = append(e.backlog, cqe)
	e.flushLocked()
	close(e.ready)
	e.ready = make(chan struct{})
	e.mu.Unlock()
}

func (e *Engine) flushLocked() {
	n := 0
	for ; n < len(e.backlog); n++ {
		if !e.pair.PushCompletion(&e.backlog[n]) {
			break
		}
	}
	e.backlog = append(e.backlog[:0], e.backlog[n:]...)
}
