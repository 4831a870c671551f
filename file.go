package uring

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/brickingsoft/uring/pkg/aio"
	"github.com/brickingsoft/uring/pkg/buffers"
	"github.com/brickingsoft/uring/pkg/ring"
	"golang.org/x/sys/unix"
)

const defaultFileBufferSize = 8 * 1024

// Open
// opens name through the default reactor.
func Open(ctx context.Context, name string, flag int, perm os.FileMode) (*File, error) {
	r, err := Pin()
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	ev, err := r.Prepare(ctx, aio.Openat(unix.AT_FDCWD, name, flag, uint32(perm.Perm())))
	if err == nil {
		var res aio.Result
		if res, err = ev.Await(ctx); err == nil {
			return newFile(r, res.N, name), nil
		}
	}
	_ = Unpin()
	return nil, &os.PathError{Op: "open", Path: name, Err: err}
}

// NewFile
// reads and writes fd through the default reactor, which stays pinned until Close.
// reads are buffered, a read given up by its context stays in flight and the next
// read picks it up.
func NewFile(fd int, name string) (*File, error) {
	r, err := Pin()
	if err != nil {
		return nil, &os.PathError{Op: "new", Path: name, Err: err}
	}
	return newFile(r, fd, name), nil
}

func newFile(r *aio.Reactor, fd int, name string) *File {
	return &File{
		name:    name,
		fd:      fd,
		reactor: r,
		buf:     buffers.Get(defaultFileBufferSize),
	}
}

type File struct {
	name    string
	fd      int
	reactor *aio.Reactor
	mu      sync.Mutex
	buf     *buffers.Buffer
	pos     int
	cap     int
	pending *aio.Event
	closed  atomic.Bool
}

func (f *File) Name() string {
	return f.name
}

func (f *File) Fd() int {
	return f.fd
}

// Read implements the io.Reader Read method.
func (f *File) Read(p []byte) (int, error) {
	return f.ReadContext(context.Background(), p)
}

// ReadContext
// when ctx ends first the read in flight is kept for the next call.
func (f *File) ReadContext(ctx context.Context, p []byte) (n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed.Load() {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: os.ErrClosed}
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.pos < f.cap {
		n = copy(p, f.buf.Bytes()[f.pos:f.cap])
		f.pos += n
		return
	}
	if f.pending == nil {
		ev, prepareErr := f.reactor.Prepare(ctx, aio.Read(f.fd, f.buf, ring.CurrentPosition))
		if prepareErr != nil {
			return 0, &os.PathError{Op: "read", Path: f.name, Err: prepareErr}
		}
		f.pending = ev
	}
	ev := f.pending
	if parkErr := f.reactor.Driver().Park(ctx, ev.Done()); parkErr != nil {
		select {
		case <-ev.Done():
		default:
			return 0, &os.PathError{Op: "read", Path: f.name, Err: parkErr}
		}
	}
	f.pending = nil
	res, awaitErr := ev.Await(context.Background())
	if awaitErr != nil {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: awaitErr}
	}
	if res.N == 0 {
		return 0, io.EOF
	}
	f.pos, f.cap = 0, res.N
	n = copy(p, f.buf.Bytes()[:f.cap])
	f.pos = n
	return
}

// Write implements the io.Writer Write method.
func (f *File) Write(p []byte) (int, error) {
	return f.WriteContext(context.Background(), p)
}

// WriteContext
// writes p at the file position, short writes are continued.
// when ctx ends first the chunk in flight is orphaned.
func (f *File) WriteContext(ctx context.Context, p []byte) (n int, err error) {
	if f.closed.Load() {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: os.ErrClosed}
	}
	for n < len(p) {
		chunk := len(p) - n
		if chunk > defaultFileBufferSize {
			chunk = defaultFileBufferSize
		}
		buf := buffers.Get(chunk)
		copy(buf.Bytes(), p[n:n+chunk])
		written, writeErr := f.write(ctx, buf)
		n += written
		if writeErr != nil {
			return n, &os.PathError{Op: "write", Path: f.name, Err: writeErr}
		}
	}
	return
}

func (f *File) write(ctx context.Context, buf *buffers.Buffer) (n int, err error) {
	for n < buf.Len() {
		ev, prepareErr := f.reactor.Prepare(ctx, aio.Write(f.fd, buffers.Make(buf.Bytes()[n:]), ring.CurrentPosition))
		if prepareErr != nil {
			buf.Release()
			return n, prepareErr
		}
		res, awaitErr := ev.Await(ctx)
		if awaitErr != nil {
			if aio.IsUncompleted(awaitErr) {
				// the engine may still read the chunk
				return n, awaitErr
			}
			buf.Release()
			return n, awaitErr
		}
		if res.N == 0 {
			buf.Release()
			return n, io.ErrShortWrite
		}
		n += res.N
	}
	buf.Release()
	return
}

// Close
// a read in flight is orphaned, then the descriptor is closed and the default
// reactor unpinned.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return &os.PathError{Op: "close", Path: f.name, Err: os.ErrClosed}
	}
	f.mu.Lock()
	if f.pending != nil {
		// the orphan gives the buffer back once the engine is done
		f.pending.Cancel()
		f.pending = nil
	} else {
		f.buf.Release()
	}
	f.mu.Unlock()

	ev, err := f.reactor.Prepare(context.Background(), aio.Close(f.fd))
	if err == nil {
		_, err = ev.Await(context.Background())
	}
	if unpinErr := Unpin(); unpinErr != nil && err == nil {
		err = unpinErr
	}
	if err != nil {
		return &os.PathError{Op: "close", Path: f.name, Err: err}
	}
	return nil
}
