//go:build linux

package loopback

import (
	"context"
	"time"
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/ring"
	"golang.org/x/sys/unix"
)

// execute runs entry with the Go memory the submitter resolved for it.
func execute(ctx context.Context, entry *ring.SubmissionEntry, mem *ring.Memory) int32 {
	fd := int(entry.Fd)
	switch entry.OpCode {
	case ring.OpNop:
		return 0
	case ring.OpRead:
		b, ok := bytesOf(entry, mem)
		if !ok {
			return -int32(unix.EFAULT)
		}
		if entry.Off == ring.CurrentPosition {
			return result(unix.Read(fd, b))
		}
		return result(unix.Pread(fd, b, int64(entry.Off)))
	case ring.OpWrite:
		b, ok := bytesOf(entry, mem)
		if !ok {
			return -int32(unix.EFAULT)
		}
		if entry.Off == ring.CurrentPosition {
			return result(unix.Write(fd, b))
		}
		return result(unix.Pwrite(fd, b, int64(entry.Off)))
	case ring.OpReadv:
		if uint32(len(mem.Vectors)) != entry.Len {
			return -int32(unix.EFAULT)
		}
		if entry.Off == ring.CurrentPosition {
			return result(unix.Readv(fd, mem.Vectors))
		}
		return result(unix.Preadv(fd, mem.Vectors, int64(entry.Off)))
	case ring.OpWritev:
		if uint32(len(mem.Vectors)) != entry.Len {
			return -int32(unix.EFAULT)
		}
		if entry.Off == ring.CurrentPosition {
			return result(unix.Writev(fd, mem.Vectors))
		}
		return result(unix.Pwritev(fd, mem.Vectors, int64(entry.Off)))
	case ring.OpFsync:
		if entry.OpcodeFlags&ring.FsyncDatasync != 0 {
			return result(0, unix.Fdatasync(fd))
		}
		return result(0, unix.Fsync(fd))
	case ring.OpClose:
		return result(0, unix.Close(fd))
	case ring.OpOpenat:
		if entry.Addr == 0 {
			return -int32(unix.EFAULT)
		}
		return result(unix.Openat(fd, mem.Path, int(entry.OpcodeFlags)|unix.O_CLOEXEC, entry.Len))
	case ring.OpAccept:
		if mem.Addr == nil || mem.AddrLen == nil {
			return -int32(unix.EFAULT)
		}
		r, _, errno := unix.Syscall6(unix.SYS_ACCEPT4, uintptr(fd), uintptr(mem.Addr), uintptr(unsafe.Pointer(mem.AddrLen)), uintptr(entry.OpcodeFlags|unix.SOCK_CLOEXEC), 0, 0)
		return rawResult(r, errno)
	case ring.OpConnect:
		if mem.Addr == nil {
			return -int32(unix.EFAULT)
		}
		r, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd), uintptr(mem.Addr), uintptr(entry.Off))
		return rawResult(r, errno)
	case ring.OpSend:
		b, ok := bytesOf(entry, mem)
		if !ok {
			return -int32(unix.EFAULT)
		}
		return result(unix.SendmsgN(fd, b, nil, nil, int(entry.OpcodeFlags)))
	case ring.OpRecv:
		b, ok := bytesOf(entry, mem)
		if !ok {
			return -int32(unix.EFAULT)
		}
		n, _, err := unix.Recvfrom(fd, b, int(entry.OpcodeFlags))
		return result(n, err)
	case ring.OpTimeout:
		timer := time.NewTimer(mem.Timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			return -int32(unix.ETIME)
		case <-ctx.Done():
			return -int32(unix.ECANCELED)
		}
	case ring.OpSplice:
		var offIn, offOut *int64
		if in := int64(entry.Addr); in != -1 {
			offIn = &in
		}
		if out := int64(entry.Off); out != -1 {
			offOut = &out
		}
		n, err := unix.Splice(int(entry.SpliceFdIn), offIn, fd, offOut, int(entry.Len), int(entry.OpcodeFlags))
		return result(int(n), err)
	default:
		return -int32(unix.EINVAL)
	}
}

func result(n int, err error) int32 {
	if err == nil {
		return int32(n)
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return -int32(errno)
	}
	return -int32(unix.EIO)
}

func rawResult(r uintptr, errno unix.Errno) int32 {
	if errno != 0 {
		return -int32(errno)
	}
	return int32(r)
}

// bytesOf is false when the entry points past the resolved memory.
func bytesOf(entry *ring.SubmissionEntry, mem *ring.Memory) ([]byte, bool) {
	if entry.Len == 0 {
		return nil, true
	}
	if uint32(len(mem.Bytes)) < entry.Len {
		return nil, false
	}
	return mem.Bytes[:entry.Len], true
}
