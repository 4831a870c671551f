package uring

import (
	"context"
	"sync"
	"time"

	"github.com/brickingsoft/uring/pkg/aio"
	"github.com/brickingsoft/uring/pkg/reference"
)

var (
	reactorLocker sync.Mutex
	reactorRef    *reference.Pointer[*aio.Reactor]
)

// Pin
// 钉住默认 aio.Reactor, 不存在时创建。
// 注意：每次 Pin 必须对应一次 Unpin, 最后一次 Unpin 会关闭 Reactor。
func Pin() (*aio.Reactor, error) {
	reactorLocker.Lock()
	defer reactorLocker.Unlock()
	if reactorRef == nil {
		r, err := createReactor()
		if err != nil {
			return nil, err
		}
		reactorRef = reference.Make(r, closeReactor)
	}
	return reactorRef.Value(), nil
}

// Unpin
// 不钉住默认 aio.Reactor 。
func Unpin() error {
	reactorLocker.Lock()
	defer reactorLocker.Unlock()
	if reactorRef == nil {
		return nil
	}
	last, err := reactorRef.Close()
	if last {
		reactorRef = nil
	}
	return err
}

// Pinned
// the number of live Pin calls, zero when no reactor exists.
func Pinned() int64 {
	reactorLocker.Lock()
	defer reactorLocker.Unlock()
	if reactorRef == nil {
		return 0
	}
	return reactorRef.Count()
}

// closeReactor waits for orphaned operations at most the preset close timeout.
// when it expires the reactor stays closed, and the close is retried in the
// background until every operation was reaped and the rings are released.
func closeReactor(r *aio.Reactor) error {
	presetLocker.Lock()
	timeout := presetCloseTimeout
	presetLocker.Unlock()
	err := closeWithin(r, timeout)
	if err == nil {
		return nil
	}
	r.Logger().WithError(err).Warn("uring: reactor not drained, closing in background")
	go func() {
		for closeWithin(r, timeout) != nil {
		}
		r.Logger().Debug("uring: reactor drained in background")
	}()
	return err
}

func closeWithin(r *aio.Reactor, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.Close(ctx)
}
