package aio

import (
	"context"
)

// Driver
// pumps completions out of the ring and dispatches them to the tag table.
type Driver interface {
	// Start begins driving.
	Start() error
	// Reap performs one bounded reap pass and returns how many completions were dispatched.
	Reap() (int, error)
	// Park blocks until done is closed, ctx ends or the reactor faults.
	Park(ctx context.Context, done <-chan struct{}) error
	// Close stops driving, the reactor must be drained.
	Close() error
}

func newDriver(r *Reactor) Driver {
	switch r.options.Driver {
	case CooperativeDriver:
		return newCooperativeDriver(r)
	default:
		return newPollDriver(r)
	}
}

// park
// the part of Park shared by the drivers.
func park(ctx context.Context, r *Reactor, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.faultCh:
		return r.Fault()
	}
}
