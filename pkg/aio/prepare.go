package aio

import (
	"context"
	"runtime"
	"time"

	"github.com/brickingsoft/errors"
)

// Prepare
// registers a tag for op and pushes its entry. op must not be touched until the
// returned event completes. when no slot is free it parks until one frees, ctx ends
// or the submit timeout elapses, the latter two return ErrBackpressure.
func (r *Reactor) Prepare(ctx context.Context, op *Operation) (ev *Event, err error) {
	if op == nil {
		err = errors.From(ErrInvalidOperation, errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
		return
	}
	if err = r.acceptable(op); err != nil {
		return
	}
	if err = op.acquire(); err != nil {
		return
	}
	if r.options.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.options.SubmitTimeout)
		defer cancel()
	}

	ev = newEvent(r, op)
	for {
		pushed, submitErr := r.submit(ev)
		if submitErr != nil {
			op.complete()
			ev = nil
			err = submitErr
			return
		}
		if pushed {
			return
		}
		// backpressure
		r.metrics.backpressure.Inc()
		if waitErr := r.backpressure(ctx); waitErr != nil {
			op.complete()
			ev = nil
			if fault := r.Fault(); fault != nil {
				err = fault
				return
			}
			err = errors.From(
				ErrBackpressure,
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
				errors.WithMeta(errMetaOpKey, op.name),
				errors.WithWrap(waitErr),
			)
			return
		}
	}
}

func (r *Reactor) acceptable(op *Operation) error {
	if fault := r.Fault(); fault != nil {
		return fault
	}
	if r.closed.Load() {
		return errors.From(
			ErrClosed,
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, op.name),
		)
	}
	return nil
}

// submit tries once, not pushed without error means backpressure.
func (r *Reactor) submit(ev *Event) (pushed bool, err error) {
	r.submitMu.RLock()
	defer r.submitMu.RUnlock()
	if err = r.acceptable(ev.op); err != nil {
		return
	}
	tag, regErr := r.table.Register(ev)
	if regErr != nil {
		return
	}
	entry := ev.op.entry
	entry.SetData64(uint64(tag))
	ev.tag = tag
	if pushErr := r.pair.TryPushSubmission(&entry); pushErr != nil {
		r.table.Discard(tag)
		ev.tag = 0
		// the engine drains the submission queue on notify
		_ = r.engine.Notify()
		return
	}
	ev.state.Store(int32(Submitted))
	pushed = true
	// an event dropped without await or cancel gives its slot back once collected
	runtime.AddCleanup(ev, droppedEvent.release, droppedEvent{reactor: r, op: ev.op, tag: tag})
	r.metrics.submitted.Inc()
	if notifyErr := r.engine.Notify(); notifyErr != nil {
		r.fail(notifyErr)
	}
	return
}

func (r *Reactor) backpressure(ctx context.Context) error {
	w := r.waiters.enqueue()
	defer w.abandon()
	if r.options.Driver == CooperativeDriver {
		// submitters are waiters too
		_, _ = r.driver.Reap()
	}
	timer := time.NewTimer(r.options.BackpressureBackoff)
	defer timer.Stop()
	select {
	case <-w.ch:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.faultCh:
		return r.Fault()
	}
}
