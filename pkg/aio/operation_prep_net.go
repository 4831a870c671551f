package aio

import (
	"net"
	"unsafe"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/buffers"
	"github.com/brickingsoft/uring/pkg/ring"
	"github.com/brickingsoft/uring/pkg/sys"
)

// Accept
// the accepted descriptor is the result, the peer address is read by Sockaddr.
func Accept(fd int, flags int) *Operation {
	op := newOperation("accept")
	op.saLen = uint32(unsafe.Sizeof(op.sa))
	op.mem.Addr = unsafe.Pointer(&op.sa)
	op.mem.AddrLen = &op.saLen
	op.entry.Prepare(ring.OpAccept, fd, uintptr(unsafe.Pointer(&op.sa)), 0, uint64(uintptr(unsafe.Pointer(&op.saLen))))
	op.entry.OpcodeFlags = uint32(flags)
	op.closeOnOrphan = true
	return op
}

func Connect(fd int, addr net.Addr) (*Operation, error) {
	sa, saErr := sys.AddrToSockaddr(addr)
	if saErr != nil {
		return nil, errors.From(
			ErrInvalidOperation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, "connect"),
			errors.WithWrap(saErr),
		)
	}
	op := newOperation("connect")
	saLen, rawErr := sys.SockaddrToRaw(sa, &op.sa)
	if rawErr != nil {
		return nil, errors.From(
			ErrInvalidOperation,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, "connect"),
			errors.WithWrap(rawErr),
		)
	}
	op.saLen = saLen
	op.mem.Addr = unsafe.Pointer(&op.sa)
	op.mem.AddrLen = &op.saLen
	op.entry.Prepare(ring.OpConnect, fd, uintptr(unsafe.Pointer(&op.sa)), 0, uint64(saLen))
	return op, nil
}

func Send(fd int, buf *buffers.Buffer, flags int) *Operation {
	op := newOperation("send")
	op.buffer = buf
	b := bufferBytes(buf)
	op.mem.Bytes = b
	op.entry.Prepare(ring.OpSend, fd, bytesAddr(b), uint32(len(b)), 0)
	op.entry.OpcodeFlags = uint32(flags)
	return op
}

func Recv(fd int, buf *buffers.Buffer, flags int) *Operation {
	op := newOperation("recv")
	op.buffer = buf
	b := bufferBytes(buf)
	op.mem.Bytes = b
	op.entry.Prepare(ring.OpRecv, fd, bytesAddr(b), uint32(len(b)), 0)
	op.entry.OpcodeFlags = uint32(flags)
	return op
}
