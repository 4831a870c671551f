// Package fake provides an in-memory engine that completes submissions on demand,
// after a delay or out of order. It is meant for tests.
package fake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/uring/pkg/ring"
)

// Handler
// computes the result of an entry, it may write into mem.Bytes. mem is what the
// submitter resolved for the entry, zero when nothing was resolved.
type Handler func(entry *ring.SubmissionEntry, mem ring.Memory) int32

type Options struct {
	Auto    bool
	Delay   time.Duration
	Handler Handler
}

type Option func(*Options)

// WithAuto
// completes every submission as soon as it is noticed.
func WithAuto(handler Handler) Option {
	return func(o *Options) {
		o.Auto = true
		o.Handler = handler
	}
}

// WithDelay
// auto completion happens after d.
func WithDelay(d time.Duration) Option {
	return func(o *Options) {
		o.Delay = d
	}
}

func New(options ...Option) *Engine {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}
	if opts.Handler == nil {
		opts.Handler = func(entry *ring.SubmissionEntry, _ ring.Memory) int32 { return int32(entry.Len) }
	}
	return &Engine{
		opts:  opts,
		ready: make(chan struct{}),
	}
}

type Engine struct {
	opts      Options
	mu        sync.Mutex
	pair      *ring.Pair
	pending   []ring.SubmissionEntry
	submitted []ring.SubmissionEntry
	backlog   []ring.CompletionEntry
	ready     chan struct{}
	closed    bool
	timers    sync.WaitGroup
	notified  atomic.Uint64
}

func (e *Engine) Start(pair *ring.Pair) error {
	e.mu.Lock()
	e.pair = pair
	e.mu.Unlock()
	return nil
}

func (e *Engine) Notify() error {
	e.notified.Add(1)
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ring.ErrClosed
	}
	if e.pair == nil {
		e.mu.Unlock()
		return nil
	}
	e.flushLocked()
	accepted := make([]ring.SubmissionEntry, 0, e.pair.SubmissionPending())
	for {
		entry, ok := e.pair.PopSubmission()
		if !ok {
			break
		}
		e.submitted = append(e.submitted, entry)
		accepted = append(accepted, entry)
	}
	if !e.opts.Auto {
		e.pending = append(e.pending, accepted...)
		e.mu.Unlock()
		return nil
	}
	if e.opts.Delay <= 0 {
		for i := range accepted {
			entry := accepted[i]
			e.completeLocked(&entry, e.runLocked(e.opts.Handler, &entry), 0)
		}
		e.mu.Unlock()
		return nil
	}
	e.pending = append(e.pending, accepted...)
	e.mu.Unlock()
	for i := range accepted {
		entry := accepted[i]
		e.timers.Add(1)
		time.AfterFunc(e.opts.Delay, func() {
			defer e.timers.Done()
			e.CompleteFunc(entry.UserData, e.opts.Handler)
		})
	}
	return nil
}

func (e *Engine) Wait(ctx context.Context, timeout time.Duration) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ring.ErrClosed
	}
	e.flushLocked()
	if e.pair != nil && e.pair.CompletionReady() > 0 {
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
// waits for delayed completions already scheduled.
func (e *Engine) Close() error {
	e.timers.Wait()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.ready)
	e.mu.Unlock()
	return nil
}

// Pending
// submissions noticed but not completed yet, in submission order.
func (e *Engine) Pending() []ring.SubmissionEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ring.SubmissionEntry(nil), e.pending...)
}

// Submitted
// every submission ever noticed.
func (e *Engine) Submitted() []ring.SubmissionEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ring.SubmissionEntry(nil), e.submitted...)
}

func (e *Engine) Notified() uint64 {
	return e.notified.Load()
}

// Complete
// completes the pending submission of userData with res.
func (e *Engine) Complete(userData uint64, res int32) bool {
	return e.CompleteFunc(userData, func(*ring.SubmissionEntry, ring.Memory) int32 { return res })
}

// CompleteFunc
// completes the pending submission of userData with the result of fn.
func (e *Engine) CompleteFunc(userData uint64, fn Handler) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.pending {
		if e.pending[i].UserData != userData {
			continue
		}
		entry := e.pending[i]
		e.pending = append(e.pending[:i], e.pending[i+1:]...)
		e.completeLocked(&entry, e.runLocked(fn, &entry), 0)
		return true
	}
	return false
}

// CompleteAll
// completes every pending submission with fn, in submission order.
func (e *Engine) CompleteAll(fn Handler) int {
	if fn == nil {
		fn = e.opts.Handler
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.pending)
	for i := range e.pending {
		entry := e.pending[i]
		e.completeLocked(&entry, e.runLocked(fn, &entry), 0)
	}
	e.pending = e.pending[:0]
	return n
}

// Inject
// publishes cqe as is, whether or not it matches a submission.
func (e *Engine) Inject(cqe ring.CompletionEntry) {
	e.mu.Lock()
	e.backlog = append(e.backlog, cqe)
	e.flushLocked()
	e.signalLocked()
	e.mu.Unlock()
}

func (e *Engine) runLocked(fn Handler, entry *ring.SubmissionEntry) int32 {
	var mem ring.Memory
	if e.pair != nil {
		mem, _ = e.pair.Resolve(entry.UserData)
	}
	return fn(entry, mem)
}

func (e *Engine) completeLocked(entry *ring.SubmissionEntry, res int32, flags uint32) {
	e.backlog = append(e.backlog, ring.CompletionEntry{
		UserData: entry.UserData,
		Res:      res,
		Flags:    flags,
	})
	e.flushLocked()
	e.signalLocked()
}

func (e *Engine) flushLocked() {
	if e.pair == nil {
		return
	}
	n := 0
	for ; n < len(e.backlog); n++ {
		if !e.pair.PushCompletion(&e.backlog[n]) {
			break
		}
	}
	e.backlog = append(e.backlog[:0], e.backlog[n:]...)
}

func (e *Engine) signalLocked() {
	if e.closed {
		return
	}
	close(e.ready)
	e.ready = make(chan struct{})
}
