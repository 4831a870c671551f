package aio

import (
	"context"
	"runtime"
	"sync"

	"github.com/brickingsoft/uring/pkg/process"
	"github.com/brickingsoft/uring/pkg/ring"
)

func newPollDriver(r *Reactor) *pollDriver {
	ctx, cancel := context.WithCancel(context.Background())
	return &pollDriver{
		reactor: r,
		ctx:     ctx,
		cancel:  cancel,
		wg:      new(sync.WaitGroup),
	}
}

// pollDriver
// a dedicated goroutine reaps, parked waiters only wait.
type pollDriver struct {
	reactor *Reactor
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
}

func (d *pollDriver) Start() error {
	d.wg.Add(1)
	go d.process()
	return nil
}

func (d *pollDriver) process() {
	defer d.wg.Done()

	var (
		r            = d.reactor
		opts         = r.options
		cqes         = make([]ring.CompletionEntry, opts.ReapBatch)
		transmission = NewCurveTransmission(opts.WaitCurve)
		completed    uint32
	)

	if opts.PollLockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if opts.PollCPU > -1 {
			if err := process.SetCPUAffinity(opts.PollCPU); err != nil {
				r.log.WithError(err).WithField("cpu", opts.PollCPU).Warn("aio: set affinity of poll driver failed")
			}
		}
	}

	for {
		if d.ctx.Err() != nil {
			break
		}
		// peek
		if n, _ := r.reap(cqes); n > 0 {
			completed += uint32(n)
			continue
		}
		// wait more
		timeout := transmission.Match(completed)
		if err := r.engine.Wait(d.ctx, timeout); err != nil && d.ctx.Err() == nil {
			r.fail(err)
			break
		}
		completed = 0
	}
}

func (d *pollDriver) Reap() (int, error) {
	var cqes [32]ring.CompletionEntry
	return d.reactor.reap(cqes[:])
}

func (d *pollDriver) Park(ctx context.Context, done <-chan struct{}) error {
	return park(ctx, d.reactor, done)
}

func (d *pollDriver) Close() error {
	d.cancel()
	d.wg.Wait()
	return nil
}
