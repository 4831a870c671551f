package ring

import (
	"context"
	"time"
)

// Engine
// the party that consumes submissions and produces completions.
type Engine interface {
	// Start binds the engine to the pair, called once before any Notify.
	Start(pair *Pair) error
	// Notify tells the engine that submissions are pending.
	Notify() error
	// Wait blocks until a completion may be ready, the timeout elapses or ctx ends.
	Wait(ctx context.Context, timeout time.Duration) error
	// Close stops the engine. Pending submissions are abandoned, so it must only
	// be called once no operation is in flight.
	Close() error
}
