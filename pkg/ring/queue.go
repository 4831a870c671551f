package ring

import (
	"sync"
	"sync/atomic"
)

const cacheLinePadSize = 64

type cacheLinePad struct {
	_ [cacheLinePadSize]byte
}

// queue
// fixed capacity circular buffer. producers serialize on pmu, consumers on cmu,
// so one producer and one consumer never block each other.
type queue[E any] struct {
	_       cacheLinePad
	head    atomic.Uint32
	_       cacheLinePad
	tail    atomic.Uint32
	_       cacheLinePad
	mask    uint32
	entries []E
	pmu     sync.Mutex
	cmu     sync.Mutex
}

func newQueue[E any](capacity uint32) *queue[E] {
	return &queue[E]{
		mask:    capacity - 1,
		entries: make([]E, capacity),
	}
}

func (q *queue[E]) push(entry *E) bool {
	q.pmu.Lock()
	tail := q.tail.Load()
	if tail-q.head.Load() == uint32(len(q.entries)) {
		q.pmu.Unlock()
		return false
	}
	q.entries[tail&q.mask] = *entry
	// publish after the slot is fully written
	q.tail.Store(tail + 1)
	q.pmu.Unlock()
	return true
}

func (q *queue[E]) pop() (entry E, ok bool) {
	q.cmu.Lock()
	head := q.head.Load()
	if head == q.tail.Load() {
		q.cmu.Unlock()
		return
	}
	idx := head & q.mask
	entry = q.entries[idx]
	var zero E
	q.entries[idx] = zero
	q.head.Store(head + 1)
	ok = true
	q.cmu.Unlock()
	return
}

func (q *queue[E]) popBatch(dst []E) (n int) {
	if len(dst) == 0 {
		return
	}
	q.cmu.Lock()
	head := q.head.Load()
	ready := q.tail.Load() - head
	var zero E
	for n < len(dst) && uint32(n) < ready {
		idx := (head + uint32(n)) & q.mask
		dst[n] = q.entries[idx]
		q.entries[idx] = zero
		n++
	}
	q.head.Store(head + uint32(n))
	q.cmu.Unlock()
	return
}

func (q *queue[E]) len() uint32 {
	return q.tail.Load() - q.head.Load()
}

func (q *queue[E]) cap() uint32 {
	return uint32(len(q.entries))
}
