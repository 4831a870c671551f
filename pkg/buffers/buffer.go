package buffers

import "sync/atomic"

const released = -1

// Make
// wraps b, the released buffer is never pooled.
func Make(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Buffer
// byte slice with an owner. it must not be touched after Release.
// while lent to an operation in flight it can not be released.
type Buffer struct {
	b    []byte
	pool *Pool
	// lends in flight, released once negative
	state atomic.Int64
}

func (buf *Buffer) Bytes() []byte {
	return buf.b
}

func (buf *Buffer) Len() int {
	return len(buf.b)
}

func (buf *Buffer) Cap() int {
	return cap(buf.b)
}

func (buf *Buffer) Released() bool {
	return buf.state.Load() == released
}

// Lent
// reports whether an operation in flight still holds the buffer.
func (buf *Buffer) Lent() bool {
	return buf.state.Load() > 0
}

// Lend
// marks the buffer as held by an operation. fails once released.
func (buf *Buffer) Lend() bool {
	for {
		n := buf.state.Load()
		if n == released {
			return false
		}
		if buf.state.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Unlend
// drops one hold taken by Lend.
func (buf *Buffer) Unlend() {
	for {
		n := buf.state.Load()
		if n <= 0 {
			return
		}
		if buf.state.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// Release
// gives the buffer back, only the first call has effect.
// it fails while the buffer is lent.
func (buf *Buffer) Release() bool {
	if !buf.state.CompareAndSwap(0, released) {
		return false
	}
	if buf.pool != nil {
		buf.pool.put(buf)
	}
	return true
}
