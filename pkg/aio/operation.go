package aio

import (
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/buffers"
	"github.com/brickingsoft/uring/pkg/ring"
	"github.com/brickingsoft/uring/pkg/sys"
	"golang.org/x/sys/unix"
)

// Operation
// a submission entry and everything it points at. the entry only ever references memory
// owned by the operation, so keeping the operation alive keeps the engine's view valid.
type Operation struct {
	entry         ring.SubmissionEntry
	name          string
	inflight      atomic.Bool
	buffer        *buffers.Buffer
	vectors       []*buffers.Buffer
	iovecs        []unix.Iovec
	path          []byte
	sa            syscall.RawSockaddrAny
	saLen         uint32
	ts            unix.Timespec
	okErrno       syscall.Errno
	closeOnOrphan bool
	mem           ring.Memory
}

func newOperation(name string) *Operation {
	return &Operation{name: name}
}

func (op *Operation) Name() string {
	return op.name
}

// Entry
// returns a copy of the entry as it will be submitted, without user data.
func (op *Operation) Entry() ring.SubmissionEntry {
	return op.entry
}

// Buffer
// the buffer of read, write, send and recv.
func (op *Operation) Buffer() *buffers.Buffer {
	return op.buffer
}

// Vectors
// the buffers of readv and writev.
func (op *Operation) Vectors() []*buffers.Buffer {
	return op.vectors
}

// Sockaddr
// the peer address written by accept.
func (op *Operation) Sockaddr() (syscall.Sockaddr, error) {
	if op.entry.OpCode != ring.OpAccept {
		return nil, errors.From(ErrInvalidOperation, errors.WithMeta(errMetaOpKey, op.name))
	}
	return sys.RawToSockaddr(&op.sa)
}

// InFlight
// reports whether the engine may still access the operation's memory.
func (op *Operation) InFlight() bool {
	return op.inflight.Load()
}

// Release
// gives the buffers back. it fails while the operation is in flight or
// another operation still holds one of its buffers.
func (op *Operation) Release() bool {
	if op.inflight.Load() || op.lent() {
		return false
	}
	op.releaseBuffers()
	return true
}

func (op *Operation) releaseBuffers() {
	if op.buffer != nil {
		op.buffer.Release()
	}
	for _, v := range op.vectors {
		if v != nil {
			v.Release()
		}
	}
}

// Memory
// the memory the entry points at.
func (op *Operation) Memory() ring.Memory {
	return op.mem
}

// acquire marks the operation in flight and lends its buffers.
func (op *Operation) acquire() error {
	if !op.inflight.CompareAndSwap(false, true) {
		return errors.From(
			ErrOperationInFlight,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, op.name),
		)
	}
	if !op.lend() {
		op.inflight.Store(false)
		return errors.From(
			ErrInvalidOperation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, op.name),
			errors.WithMeta("buffer", "released"),
		)
	}
	return nil
}

func (op *Operation) lend() bool {
	if op.buffer != nil && !op.buffer.Lend() {
		return false
	}
	for i, v := range op.vectors {
		if v == nil || v.Lend() {
			continue
		}
		for _, lent := range op.vectors[:i] {
			if lent != nil {
				lent.Unlend()
			}
		}
		if op.buffer != nil {
			op.buffer.Unlend()
		}
		return false
	}
	return true
}

func (op *Operation) lent() bool {
	if op.buffer != nil && op.buffer.Lent() {
		return true
	}
	for _, v := range op.vectors {
		if v != nil && v.Lent() {
			return true
		}
	}
	return false
}

func (op *Operation) unlend() {
	if op.buffer != nil {
		op.buffer.Unlend()
	}
	for _, v := range op.vectors {
		if v != nil {
			v.Unlend()
		}
	}
}

// complete runs once the engine is done with the operation's memory.
func (op *Operation) complete() {
	op.unlend()
	op.inflight.Store(false)
}

// abandon runs when the completion of an orphaned operation is reaped.
func (op *Operation) abandon(cqe ring.CompletionEntry) {
	if op.closeOnOrphan && cqe.Res >= 0 {
		// nobody will ever see the descriptor
		_ = unix.Close(int(cqe.Res))
	}
	op.unlend()
	op.inflight.Store(false)
	op.releaseBuffers()
}

func (op *Operation) result(cqe ring.CompletionEntry) (n int, flags uint32, err error) {
	flags = cqe.Flags
	if cqe.Res >= 0 {
		n = int(cqe.Res)
		return
	}
	errno := syscall.Errno(-cqe.Res)
	switch {
	case op.okErrno != 0 && errno == op.okErrno:
		return
	case errno == syscall.ECANCELED:
		err = errors.From(
			ErrCanceled,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, op.name),
		)
	default:
		err = os.NewSyscallError(op.name, errno)
	}
	return
}

func bytesAddr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func bufferBytes(buf *buffers.Buffer) []byte {
	if buf == nil {
		return nil
	}
	return buf.Bytes()
}
