package aio

import (
	"unsafe"

	"github.com/brickingsoft/uring/pkg/buffers"
	"github.com/brickingsoft/uring/pkg/ring"
	"golang.org/x/sys/unix"
)

func Nop() *Operation {
	op := newOperation("nop")
	op.entry.Prepare(ring.OpNop, -1, 0, 0, 0)
	return op
}

// Read
// reads into buf at offset, ring.CurrentPosition reads at the file position.
func Read(fd int, buf *buffers.Buffer, offset uint64) *Operation {
	op := newOperation("read")
	op.buffer = buf
	b := bufferBytes(buf)
	op.mem.Bytes = b
	op.entry.Prepare(ring.OpRead, fd, bytesAddr(b), uint32(len(b)), offset)
	return op
}

// Write
// writes buf at offset, ring.CurrentPosition writes at the file position.
func Write(fd int, buf *buffers.Buffer, offset uint64) *Operation {
	op := newOperation("write")
	op.buffer = buf
	b := bufferBytes(buf)
	op.mem.Bytes = b
	op.entry.Prepare(ring.OpWrite, fd, bytesAddr(b), uint32(len(b)), offset)
	return op
}

func Readv(fd int, bufs []*buffers.Buffer, offset uint64) *Operation {
	op := newOperation("readv")
	op.prepareVectors(ring.OpReadv, fd, bufs, offset)
	return op
}

func Writev(fd int, bufs []*buffers.Buffer, offset uint64) *Operation {
	op := newOperation("writev")
	op.prepareVectors(ring.OpWritev, fd, bufs, offset)
	return op
}

func (op *Operation) prepareVectors(opcode uint8, fd int, bufs []*buffers.Buffer, offset uint64) {
	op.vectors = bufs
	op.iovecs = make([]unix.Iovec, 0, len(bufs))
	for _, buf := range bufs {
		b := bufferBytes(buf)
		if len(b) == 0 {
			continue
		}
		iov := unix.Iovec{Base: &b[0]}
		iov.SetLen(len(b))
		op.iovecs = append(op.iovecs, iov)
		op.mem.Vectors = append(op.mem.Vectors, b)
	}
	var addr uintptr
	if len(op.iovecs) > 0 {
		addr = uintptr(unsafe.Pointer(&op.iovecs[0]))
	}
	op.entry.Prepare(opcode, fd, addr, uint32(len(op.iovecs)), offset)
}

// Fsync
// flags may be ring.FsyncDatasync.
func Fsync(fd int, flags uint32) *Operation {
	op := newOperation("fsync")
	op.entry.Prepare(ring.OpFsync, fd, 0, 0, 0)
	op.entry.OpcodeFlags = flags
	return op
}

func Close(fd int) *Operation {
	op := newOperation("close")
	op.entry.Prepare(ring.OpClose, fd, 0, 0, 0)
	return op
}

// Openat
// the opened descriptor is the result. when the operation is canceled the descriptor
// is closed as soon as it arrives.
func Openat(dirfd int, path string, flags int, mode uint32) *Operation {
	op := newOperation("openat")
	op.path = append([]byte(path), 0)
	op.mem.Path = path
	op.entry.Prepare(ring.OpOpenat, dirfd, bytesAddr(op.path), mode, 0)
	op.entry.OpcodeFlags = uint32(flags)
	op.closeOnOrphan = true
	return op
}

// Splice
// moves n bytes from fdIn to fdOut, an offset of -1 means the file position.
func Splice(fdIn int, offIn int64, fdOut int, offOut int64, n uint32, flags uint32) *Operation {
	op := newOperation("splice")
	op.entry.Prepare(ring.OpSplice, fdOut, uintptr(offIn), n, uint64(offOut))
	op.entry.SpliceFdIn = int32(fdIn)
	op.entry.OpcodeFlags = flags
	return op
}
