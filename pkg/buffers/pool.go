package buffers

import (
	"sync"
	"sync/atomic"
)

const (
	minBitSize = 6
	steps      = 20

	minSize = 1 << minBitSize
	maxSize = 1 << (minBitSize + steps - 1)
)

var defaultPool Pool

// Get
// acquires a buffer of n bytes from the default pool.
func Get(n int) *Buffer { return defaultPool.Get(n) }

// Pool
// size classed buffers, from 64 bytes up to 32MB. larger buffers are never pooled.
type Pool struct {
	classes [steps]sync.Pool
	gets    atomic.Uint64
	puts    atomic.Uint64
}

func (p *Pool) Get(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	p.gets.Add(1)
	if n > maxSize {
		return &Buffer{b: make([]byte, n)}
	}
	idx := index(n)
	if v := p.classes[idx].Get(); v != nil {
		buf := v.(*Buffer)
		buf.b = buf.b[:n]
		buf.state.Store(0)
		return buf
	}
	return &Buffer{
		b:    make([]byte, n, minSize<<idx),
		pool: p,
	}
}

// Stats
// returns how many buffers were acquired and how many came back.
func (p *Pool) Stats() (gets uint64, puts uint64) {
	return p.gets.Load(), p.puts.Load()
}

func (p *Pool) put(buf *Buffer) {
	p.puts.Add(1)
	b := buf.b[:cap(buf.b)]
	clear(b)
	buf.b = b[:0]
	p.classes[index(cap(b))].Put(buf)
}

func index(n int) int {
	n--
	n >>= minBitSize
	idx := 0
	for n > 0 {
		n >>= 1
		idx++
	}
	if idx >= steps {
		idx = steps - 1
	}
	return idx
}
