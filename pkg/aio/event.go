package aio

import (
	"context"
	"sync/atomic"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/ring"
	"github.com/brickingsoft/uring/pkg/tags"
)

type State int32

const (
	Unsubmitted State = iota
	Submitted
	Completed
	Orphaned
)

func (state State) String() string {
	switch state {
	case Unsubmitted:
		return "unsubmitted"
	case Submitted:
		return "submitted"
	case Completed:
		return "completed"
	case Orphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// Result
// outcome of a completed operation.
type Result struct {
	N     int
	Flags uint32
	Err   error
}

func newEvent(r *Reactor, op *Operation) *Event {
	return &Event{
		reactor: r,
		op:      op,
		done:    make(chan struct{}),
	}
}

// Event
// handle of an operation in flight. it owns the operation, and through it the buffers,
// until the completion is observed. an event is awaited by a single owner.
type Event struct {
	reactor *Reactor
	op      *Operation
	tag     tags.Tag
	state   atomic.Int32
	done    chan struct{}
	result  Result
}

// Wake
// called by the tag table exactly once, when the completion is reaped.
func (ev *Event) Wake() {
	close(ev.done)
}

func (ev *Event) State() State {
	return State(ev.state.Load())
}

func (ev *Event) Tag() tags.Tag {
	return ev.tag
}

// Done
// closed once the completion was reaped.
func (ev *Event) Done() <-chan struct{} {
	return ev.done
}

// Operation
// the operation, only once the event has completed.
func (ev *Event) Operation() *Operation {
	if ev.State() != Completed {
		return nil
	}
	return ev.op
}

// Await
// parks until the completion arrives. when ctx ends first the event becomes an orphan:
// its buffers stay with the reactor until the engine is done and ErrUncompleted is returned.
func (ev *Event) Await(ctx context.Context) (r Result, err error) {
	switch ev.State() {
	case Completed:
		r = ev.result
		err = r.Err
		return
	case Orphaned:
		err = errors.From(
			ErrCanceled,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, ev.op.name),
		)
		return
	case Unsubmitted:
		err = errors.From(
			ErrUncompleted,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, ev.op.name),
		)
		return
	}
	if parkErr := ev.reactor.driver.Park(ctx, ev.done); parkErr != nil {
		select {
		case <-ev.done:
			// completed while giving up
		default:
			ev.Cancel()
			err = errors.From(
				ErrUncompleted,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaOpKey, ev.op.name),
				errors.WithWrap(parkErr),
			)
			return
		}
	}
	if !ev.complete() {
		// canceled concurrently
		err = errors.From(
			ErrCanceled,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, ev.op.name),
		)
		return
	}
	r = ev.result
	err = r.Err
	return
}

// Cancel
// detaches the caller from the operation without canceling it in the engine.
// returns false when the event is not in flight anymore.
func (ev *Event) Cancel() bool {
	if !ev.state.CompareAndSwap(int32(Submitted), int32(Orphaned)) {
		return false
	}
	ev.reactor.orphan(ev)
	return true
}

// Release
// gives the buffers back once completed.
func (ev *Event) Release() bool {
	if ev.State() != Completed {
		return false
	}
	return ev.op.Release()
}

func (ev *Event) complete() bool {
	if !ev.state.CompareAndSwap(int32(Submitted), int32(Completed)) {
		return ev.State() == Completed
	}
	cqe, ok := ev.reactor.table.TakeResult(ev.tag)
	ev.op.complete()
	ev.reactor.slotFreed()
	if !ok {
		ev.result.Err = errors.From(
			ErrFault,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, ev.op.name),
			errors.WithMeta(errMetaTagKey, ev.tag.String()),
		)
		return true
	}
	ev.result.N, ev.result.Flags, ev.result.Err = ev.op.result(cqe)
	return true
}

type orphanHolder struct {
	ev *Event
}

func (holder orphanHolder) Release(cqe ring.CompletionEntry) {
	holder.ev.op.abandon(cqe)
	holder.ev.reactor.orphanReleased(holder.ev, cqe)
}

// droppedEvent must not reference its event, it runs once the event was collected.
type droppedEvent struct {
	reactor *Reactor
	op      *Operation
	tag     tags.Tag
}

func (d droppedEvent) release() {
	d.reactor.dropped(d)
}
