package ring

import (
	"math"
	"unsafe"
)

const (
	OpNop uint8 = iota
	OpReadv
	OpWritev
	OpFsync
	OpReadFixed
	OpWriteFixed
	OpPollAdd
	OpPollRemove
	OpSyncFileRange
	OpSendmsg
	OpRecvmsg
	OpTimeout
	OpTimeoutRemove
	OpAccept
	OpAsyncCancel
	OpLinkTimeout
	OpConnect
	OpFallocate
	OpOpenat
	OpClose
	OpFilesUpdate
	OpStatx
	OpRead
	OpWrite
	OpFadvise
	OpMadvise
	OpSend
	OpRecv
	OpOpenat2
	OpEpollCtl
	OpSplice
)

const (
	SQEFixedFile uint8 = 1 << iota
	SQEIODrain
	SQEIOLink
	SQEIOHardlink
	SQEAsync
	SQEBufferSelect
	SQECQESkipSuccess
)

const (
	CQEFBuffer uint32 = 1 << iota
	CQEFMore
	CQEFSockNonempty
	CQEFNotif
)

// FsyncDatasync
// fsync only the data of the file.
const FsyncDatasync uint32 = 1 << 0

// CurrentPosition as an offset means the file position, like read(2) and write(2).
const CurrentPosition uint64 = math.MaxUint64

// SubmissionEntry
// fixed 64 bytes record, field offsets follow the kernel's io_uring_sqe.
type SubmissionEntry struct {
	OpCode      uint8
	Flags       uint8
	IoPrio      uint16
	Fd          int32
	Off         uint64
	Addr        uint64
	Len         uint32
	OpcodeFlags uint32
	UserData    uint64
	BufIG       uint16
	Personality uint16
	SpliceFdIn  int32
	Addr3       uint64
	_pad2       [1]uint64
}

func (entry *SubmissionEntry) SetData64(data uint64) {
	entry.UserData = data
}

func (entry *SubmissionEntry) SetFlags(flags uint8) {
	entry.Flags |= flags
}

// Prepare
// resets the entry, user data included.
func (entry *SubmissionEntry) Prepare(opcode uint8, fd int, addr uintptr, length uint32, offset uint64) {
	*entry = SubmissionEntry{
		OpCode: opcode,
		Fd:     int32(fd),
		Off:    offset,
		Addr:   uint64(addr),
		Len:    length,
	}
}

// CompletionEntry
// fixed 16 bytes record, field offsets follow the kernel's io_uring_cqe.
type CompletionEntry struct {
	UserData uint64
	Res      int32
	Flags    uint32
}

const (
	SubmissionEntrySize = 64
	CompletionEntrySize = 16
)

var (
	_ [SubmissionEntrySize - unsafe.Sizeof(SubmissionEntry{})]struct{}
	_ [unsafe.Sizeof(SubmissionEntry{}) - SubmissionEntrySize]struct{}
	_ [CompletionEntrySize - unsafe.Sizeof(CompletionEntry{})]struct{}
	_ [unsafe.Sizeof(CompletionEntry{}) - CompletionEntrySize]struct{}
)
