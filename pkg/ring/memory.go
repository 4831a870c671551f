package ring

import (
	"time"
	"unsafe"
)

// Memory
// what an entry points at, as Go values. engines running in process use it
// instead of turning the raw addresses of the entry back into pointers.
type Memory struct {
	// Bytes of read, write, send and recv.
	Bytes []byte
	// Vectors of readv and writev.
	Vectors [][]byte
	// Path of openat, without the trailing NUL.
	Path string
	// Addr is the sockaddr of accept and connect.
	Addr unsafe.Pointer
	// AddrLen is the in/out address length of accept.
	AddrLen *uint32
	// Timeout of timeout.
	Timeout time.Duration
}

// Resolver
// finds the memory of an in-flight entry by its user data.
type Resolver func(userData uint64) (Memory, bool)
