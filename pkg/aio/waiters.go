package aio

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// waiter
// a submitter parked on backpressure.
type waiter struct {
	ch        chan struct{}
	abandoned atomic.Bool
}

func (w *waiter) abandon() {
	w.abandoned.Store(true)
}

func newWaiters() *waiters {
	return &waiters{
		q: queue.New(),
	}
}

// waiters
// fifo of parked submitters, the oldest one is woken first when a slot frees.
type waiters struct {
	mu sync.Mutex
	q  *queue.Queue
}

func (ws *waiters) enqueue() *waiter {
	w := &waiter{ch: make(chan struct{})}
	ws.mu.Lock()
	ws.q.Add(w)
	ws.mu.Unlock()
	return w
}

// signal wakes the oldest waiter that still waits.
func (ws *waiters) signal() {
	ws.mu.Lock()
	for ws.q.Length() > 0 {
		w := ws.q.Remove().(*waiter)
		if w.abandoned.Load() {
			continue
		}
		close(w.ch)
		break
	}
	ws.mu.Unlock()
}

func (ws *waiters) broadcast() {
	ws.mu.Lock()
	for ws.q.Length() > 0 {
		w := ws.q.Remove().(*waiter)
		if !w.abandoned.Load() {
			close(w.ch)
		}
	}
	ws.mu.Unlock()
}

func (ws *waiters) len() int {
	ws.mu.Lock()
	n := ws.q.Length()
	ws.mu.Unlock()
	return n
}
