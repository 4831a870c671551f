package aio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/ring"
	"github.com/brickingsoft/uring/pkg/tags"
	"github.com/sirupsen/logrus"
)

// New
// creates a reactor over engine and starts its driver.
func New(engine ring.Engine, options ...Option) (r *Reactor, err error) {
	if engine == nil {
		err = errors.From(ErrInvalidOptions, errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithMeta("engine", "nil"))
		return
	}
	opts := defaultOptions()
	for _, option := range options {
		option(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = defaultOptions().Logger
	}
	if opts.ReapBatch < 1 {
		opts.ReapBatch = 256
	}
	if opts.CooperativeBudget < 1 {
		opts.CooperativeBudget = 1
	}
	if opts.CooperativeWait < 1 {
		opts.CooperativeWait = time.Millisecond
	}
	if opts.BackpressureBackoff < 1 {
		opts.BackpressureBackoff = time.Millisecond
	}

	pair, pairErr := ring.New(opts.Entries, opts.CompletionEntries)
	if pairErr != nil {
		err = errors.From(ErrInvalidOptions, errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(pairErr))
		return
	}
	// in flight never exceeds the completion queue
	table := tags.New(pair.CQEntries(), opts.MaxOrphans)

	m, metricsErr := newMetrics(opts.Registerer, opts.MetricsNamespace, table)
	if metricsErr != nil {
		err = metricsErr
		return
	}

	r = &Reactor{
		options: opts,
		pair:    pair,
		table:   table,
		engine:  engine,
		log:     opts.Logger.WithField("pkg", "aio"),
		metrics: m,
		waiters: newWaiters(),
		faultCh: make(chan struct{}),
	}
	pair.SetResolver(r.resolve)
	if startErr := engine.Start(pair); startErr != nil {
		m.unregister(opts.Registerer)
		r = nil
		err = errors.From(ErrInvalidOptions, errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(startErr))
		return
	}
	r.driver = newDriver(r)
	if startErr := r.driver.Start(); startErr != nil {
		_ = engine.Close()
		m.unregister(opts.Registerer)
		r = nil
		err = startErr
		return
	}
	r.log.WithFields(logrus.Fields{
		"sq":          pair.SQEntries(),
		"cq":          pair.CQEntries(),
		"max_orphans": table.MaxOrphans(),
		"driver":      opts.Driver.String(),
	}).Debug("aio: reactor started")
	return
}

// Reactor
// owns the ring pair and the tag table, and correlates completions with their events.
type Reactor struct {
	options  Options
	pair     *ring.Pair
	table    *tags.Table
	engine   ring.Engine
	driver   Driver
	log      logrus.FieldLogger
	metrics  *metrics
	waiters  *waiters
	closed   atomic.Bool
	released atomic.Bool
	submitMu sync.RWMutex
	closeMu  sync.Mutex
	fault    atomic.Pointer[error]
	faultCh  chan struct{}
	faultMu  sync.Once
}

func (r *Reactor) Driver() Driver {
	return r.driver
}

func (r *Reactor) Logger() logrus.FieldLogger {
	return r.log
}

func (r *Reactor) DriverMode() DriverMode {
	return r.options.Driver
}

// InFlight
// operations holding a tag.
func (r *Reactor) InFlight() int {
	return r.table.InFlight()
}

// Outstanding
// operations whose completion was not reaped yet.
func (r *Reactor) Outstanding() int {
	return r.table.Outstanding()
}

func (r *Reactor) Orphans() int {
	return r.table.Orphans()
}

func (r *Reactor) Pair() *ring.Pair {
	return r.pair
}

// Fault
// the latched fatal fault, nil while healthy.
func (r *Reactor) Fault() error {
	if p := r.fault.Load(); p != nil {
		return *p
	}
	return nil
}

// Released
// reports whether the ring memory was released.
func (r *Reactor) Released() bool {
	return r.released.Load()
}

func (r *Reactor) fail(cause error) {
	r.faultMu.Do(func() {
		err := errors.From(
			ErrFault,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(cause),
		)
		r.fault.Store(&err)
		close(r.faultCh)
		r.log.WithError(cause).Error("aio: reactor fault")
		r.waiters.broadcast()
	})
}

// reap dispatches the completions that are ready, at most len(cqes).
func (r *Reactor) reap(cqes []ring.CompletionEntry) (n int, err error) {
	n = r.pair.PopCompletions(cqes)
	for i := 0; i < n; i++ {
		cqe := cqes[i]
		if cqe.UserData == 0 { // no userdata means no op
			continue
		}
		r.metrics.completed.Inc()
		tag := tags.Tag(cqe.UserData)
		if wakeErr := r.table.Wake(tag, cqe); wakeErr != nil {
			r.metrics.violations.Inc()
			r.log.WithFields(logrus.Fields{
				"tag": tag.String(),
				"res": cqe.Res,
			}).Error("aio: completion with unknown tag")
			r.fail(wakeErr)
			if err == nil {
				err = wakeErr
			}
		}
	}
	return
}

func (r *Reactor) orphan(ev *Event) {
	r.metrics.orphaned.Inc()
	if !r.table.Orphan(ev.tag, orphanHolder{ev: ev}) {
		r.log.WithField("tag", ev.tag.String()).Warn("aio: orphaned event has no tag")
	}
}

func (r *Reactor) orphanReleased(ev *Event, cqe ring.CompletionEntry) {
	r.metrics.released.Inc()
	r.log.WithFields(logrus.Fields{
		"tag": ev.tag.String(),
		"op":  ev.op.name,
		"res": cqe.Res,
	}).Debug("aio: orphan released")
	r.slotFreed()
}

// dropped frees the slot of an event collected after its completion was reaped.
// a stale tag means the event was awaited or canceled and is a no-op.
func (r *Reactor) dropped(d droppedEvent) {
	cqe, ok := r.table.TakeResult(d.tag)
	if !ok {
		return
	}
	d.op.abandon(cqe)
	r.metrics.dropped.Inc()
	r.log.WithFields(logrus.Fields{
		"tag": d.tag.String(),
		"op":  d.op.name,
		"res": cqe.Res,
	}).Debug("aio: dropped event released")
	r.slotFreed()
}

// resolve finds the memory of an in-flight entry for engines running in process.
func (r *Reactor) resolve(userData uint64) (mem ring.Memory, ok bool) {
	waker, holder, found := r.table.Owner(tags.Tag(userData))
	if !found {
		return
	}
	if ev, isEvent := waker.(*Event); isEvent {
		return ev.op.mem, true
	}
	if orphan, isOrphan := holder.(orphanHolder); isOrphan {
		return orphan.ev.op.mem, true
	}
	return
}

func (r *Reactor) slotFreed() {
	r.waiters.signal()
}

// Close
// refuses new submissions, then waits for every live and orphaned operation to complete
// before closing the engine and releasing the rings. when ctx ends first the rings are
// kept and ErrPendingOperations is returned, Close may be called again.
func (r *Reactor) Close(ctx context.Context) (err error) {
	r.closeMu.Lock()
	defer r.closeMu.Unlock()
	if r.released.Load() {
		return nil
	}
	r.submitMu.Lock()
	r.closed.Store(true)
	r.submitMu.Unlock()
	r.waiters.broadcast()

	if err = r.drain(ctx); err != nil {
		r.log.WithField("outstanding", r.table.Outstanding()).Warn("aio: close before drained")
		return
	}

	_ = r.driver.Close()
	if engineErr := r.engine.Close(); engineErr != nil {
		r.log.WithError(engineErr).Warn("aio: close engine failed")
	}
	r.metrics.unregister(r.options.Registerer)
	r.released.Store(true)
	r.log.Debug("aio: reactor closed")
	return
}

func (r *Reactor) drain(ctx context.Context) error {
	ticker := time.NewTicker(r.options.BackpressureBackoff)
	defer ticker.Stop()
	for {
		if r.table.Outstanding() == 0 {
			return nil
		}
		// pending submissions must reach the engine to complete
		if r.pair.SubmissionPending() > 0 {
			_ = r.engine.Notify()
		}
		if r.options.Driver == CooperativeDriver {
			if n, _ := r.driver.Reap(); n > 0 {
				continue
			}
			_ = r.engine.Wait(ctx, r.options.CooperativeWait)
		}
		r.log.WithField("outstanding", r.table.Outstanding()).Debug("aio: draining")
		select {
		case <-ctx.Done():
			return errors.From(
				ErrPendingOperations,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithWrap(ctx.Err()),
			)
		case <-ticker.C:
		}
	}
}
