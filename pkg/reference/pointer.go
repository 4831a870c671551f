package reference

import (
	"sync/atomic"
)

// Make
// a counted reference to value, closeFn runs once the last holder closes.
func Make[E any](value E, closeFn func(E) error) *Pointer[E] {
	if closeFn == nil {
		panic("reference: close func is nil")
	}
	return &Pointer[E]{value: value, closeFn: closeFn}
}

type Pointer[E any] struct {
	value   E
	count   atomic.Int64
	closeFn func(E) error
}

// Value
// takes a reference, every Value must be paired with a Close.
func (pointer *Pointer[E]) Value() E {
	pointer.count.Add(1)
	return pointer.value
}

func (pointer *Pointer[E]) Count() int64 {
	return pointer.count.Load()
}

// Close
// drops a reference, returns true when it was the last one.
func (pointer *Pointer[E]) Close() (last bool, err error) {
	if n := pointer.count.Add(-1); n == 0 {
		last = true
		err = pointer.closeFn(pointer.value)
		return
	} else if n < 0 {
		pointer.count.Store(0)
	}
	return
}
