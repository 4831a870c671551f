//go:build linux

package uring

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/uring/pkg/aio"
	"github.com/brickingsoft/uring/pkg/engine/iouring"
	"github.com/brickingsoft/uring/pkg/engine/loopback"
)

func newDefaultReactor(options []aio.Option) (*aio.Reactor, error) {
	if iouring.Supported() {
		engine, engineErr := iouring.New()
		if engineErr == nil {
			r, err := aio.New(engine, options...)
			if err == nil {
				return r, nil
			}
			_ = engine.Close()
			if !errors.Is(err, iouring.ErrSetup) {
				return nil, err
			}
			// io_uring_setup may be denied by seccomp, fall back
		}
	}
	return aio.New(loopback.New(), options...)
}
