package aio

import (
	"syscall"
	"time"
	"unsafe"

	"github.com/brickingsoft/uring/pkg/ring"
	"golang.org/x/sys/unix"
)

// Timeout
// completes once d elapsed. expiry is a success, not an error.
func Timeout(d time.Duration) *Operation {
	op := newOperation("timeout")
	op.ts = unix.NsecToTimespec(d.Nanoseconds())
	op.mem.Timeout = d
	op.entry.Prepare(ring.OpTimeout, -1, uintptr(unsafe.Pointer(&op.ts)), 1, 0)
	op.okErrno = syscall.ETIME
	return op
}
