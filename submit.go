package uring

import (
	"context"

	"github.com/brickingsoft/rxp"
	"github.com/brickingsoft/rxp/async"
	"github.com/brickingsoft/uring/pkg/aio"
)

// Do
// prepares op on the default reactor and awaits it.
// when ctx ends first the operation is orphaned and aio.ErrUncompleted is returned.
func Do(ctx context.Context, op *aio.Operation) (res aio.Result, err error) {
	r, pinErr := Pin()
	if pinErr != nil {
		err = pinErr
		return
	}
	defer func() {
		if unpinErr := Unpin(); unpinErr != nil && err == nil {
			err = unpinErr
		}
	}()
	ev, prepareErr := r.Prepare(ctx, op)
	if prepareErr != nil {
		err = prepareErr
		return
	}
	res, err = ev.Await(ctx)
	return
}

// Submit
// prepares op on the default reactor, the future completes with its result.
// the default reactor stays pinned until the future completes.
func Submit(ctx context.Context, op *aio.Operation) (future async.Future[aio.Result]) {
	exec, execErr := Executors()
	if execErr != nil {
		future = async.FailedImmediately[aio.Result](ctx, execErr)
		return
	}
	ctx = rxp.With(ctx, exec)

	r, pinErr := Pin()
	if pinErr != nil {
		future = async.FailedImmediately[aio.Result](ctx, pinErr)
		return
	}
	ev, prepareErr := r.Prepare(ctx, op)
	if prepareErr != nil {
		_ = Unpin()
		future = async.FailedImmediately[aio.Result](ctx, prepareErr)
		return
	}
	promise, promiseErr := async.Make[aio.Result](ctx)
	if promiseErr != nil {
		ev.Cancel()
		_ = Unpin()
		future = async.FailedImmediately[aio.Result](ctx, promiseErr)
		return
	}
	future = promise.Future()

	if err := exec.Execute(ctx, &awaitTask{ev: ev, promise: promise}); err != nil {
		ev.Cancel()
		_ = Unpin()
		promise.Fail(err)
	}
	return
}

// awaitTask completes promise with the result of ev, then unpins the default reactor.
type awaitTask struct {
	ev      *aio.Event
	promise async.Promise[aio.Result]
}

func (task *awaitTask) Handle(ctx context.Context) {
	defer func() {
		_ = Unpin()
	}()
	res, err := task.ev.Await(ctx)
	if err != nil {
		task.promise.Fail(err)
		return
	}
	task.promise.Succeed(res)
}
