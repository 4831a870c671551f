//go:build linux

// Package iouring bridges a ring.Pair to a kernel io_uring instance.
//
// One goroutine moves pending submissions into the kernel submission queue,
// another waits on the kernel completion queue and publishes what it reaps.
package iouring

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/kernel"
	"github.com/brickingsoft/uring/pkg/ring"
	"github.com/pawelgaczynski/giouring"
)

var (
	ErrUnsupported = errors.Define("io_uring is unsupported")
	ErrSetup       = errors.Define("io_uring setup failed")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "iouring"
)

const (
	minKernel = 5
	minMajor  = 7
)

type Options struct {
	// WaitTimeout
	// 内核 CQ 单次等待的最大时长, 关闭时最多延迟该时长
	WaitTimeout time.Duration
}

type Option func(*Options)

func WithWaitTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WaitTimeout = d
	}
}

// Supported
// reports whether the running kernel has the opcodes the reactor prepares.
func Supported() bool {
	ok, err := kernel.Check(minKernel, minMajor, 0)
	return ok && err == nil
}

func New(options ...Option) (*Engine, error) {
	if !Supported() {
		v, _ := kernel.Get()
		meta := "unknown"
		if v != nil {
			meta = v.String()
		}
		return nil, errors.From(
			ErrUnsupported,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("kernel", meta),
		)
	}
	opts := Options{
		WaitTimeout: 50 * time.Millisecond,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.WaitTimeout < time.Millisecond {
		opts.WaitTimeout = time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:   opts,
		notify: make(chan struct{}, 1),
		ready:  make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

type Engine struct {
	opts    Options
	ring    *giouring.Ring
	pair    *ring.Pair
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
	r, err := giouring.CreateRing(pair.SQEntries())
	if err != nil {
		return errors.From(
			ErrSetup,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta("entries", strconv.FormatUint(uint64(pair.SQEntries()), 10)),
			errors.WithWrap(err),
		)
	}
	e.ring = r
	e.pair = pair
	e.wg.Add(2)
	go e.listenSQ()
	go e.listenCQ()
	return nil
}

func (e *Engine) listenSQ() {
	defer e.wg.Done()
	entries := make([]ring.SubmissionEntry, e.pair.SQEntries())
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-e.notify:
		}
		for {
			n := e.pair.PopSubmissions(entries)
			if n == 0 {
				break
			}
			for i := 0; i < n; i++ {
				sqe := e.ring.GetSQE()
				for sqe == nil {
					// kernel sq is full, flush it and retry
					e.submit()
					sqe = e.ring.GetSQE()
				}
				*sqe = *(*giouring.SubmissionQueueEntry)(unsafe.Pointer(&entries[i]))
			}
			e.submit()
			clear(entries[:n])
		}
	}
}

func (e *Engine) submit() {
	for {
		if _, err := e.ring.Submit(); err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EBUSY) {
				continue
			}
		}
		return
	}
}

func (e *Engine) listenCQ() {
	defer e.wg.Done()
	waitTimeout := syscall.NsecToTimespec(e.opts.WaitTimeout.Nanoseconds())
	cq := make([]*giouring.CompletionQueueEvent, e.pair.CQEntries())
	for e.ctx.Err() == nil {
		// wait
		if _, waitErr := e.ring.WaitCQEs(1, &waitTimeout, nil); waitErr != nil {
			continue
		}
		// peek
		completed := e.ring.PeekBatchCQE(cq)
		if completed == 0 {
			continue
		}
		e.mu.Lock()
		for i := uint32(0); i < completed; i++ {
			cqe := cq[i]
			cq[i] = nil
			e.backlog = append(e.backlog, ring.CompletionEntry{
				UserData: cqe.UserData,
				Res:      cqe.Res,
				Flags:    cqe.Flags,
			})
		}
		e.ring.CQAdvance(completed)
		e.flushLocked()
		close(e.ready)
		e.ready = make(chan struct{})
		e.mu.Unlock()
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
// stops both loops and tears the kernel ring down.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	e.wg.Wait()
	if e.ring != nil {
		e.ring.QueueExit()
	}
	return nil
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
