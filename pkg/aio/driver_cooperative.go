package aio

import (
	"context"
	"time"

	"github.com/brickingsoft/uring/pkg/ring"
)

func newCooperativeDriver(r *Reactor) *cooperativeDriver {
	return &cooperativeDriver{
		reactor: r,
		budget:  r.options.CooperativeBudget,
		wait:    r.options.CooperativeWait,
	}
}

// cooperativeDriver
// no goroutine of its own. every parked waiter reaps for everyone, so progress
// needs at least one waiter.
type cooperativeDriver struct {
	reactor *Reactor
	budget  int
	wait    time.Duration
}

func (d *cooperativeDriver) Start() error {
	return nil
}

func (d *cooperativeDriver) Reap() (n int, err error) {
	var cqes [32]ring.CompletionEntry
	for i := 0; i < d.budget; i++ {
		reaped, reapErr := d.reactor.reap(cqes[:])
		n += reaped
		if reapErr != nil {
			err = reapErr
			return
		}
		if reaped < len(cqes) {
			return
		}
	}
	return
}

func (d *cooperativeDriver) Park(ctx context.Context, done <-chan struct{}) error {
	r := d.reactor
	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-r.faultCh:
			return r.Fault()
		default:
		}
		if n, _ := d.Reap(); n > 0 {
			continue
		}
		// nothing ready, let the engine tell when
		if err := r.engine.Wait(ctx, d.wait); err != nil && ctx.Err() == nil {
			r.fail(err)
		}
	}
}

func (d *cooperativeDriver) Close() error {
	return nil
}
