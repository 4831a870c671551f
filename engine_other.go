//go:build !linux

package uring

import "github.com/brickingsoft/uring/pkg/aio"

func newDefaultReactor(_ []aio.Option) (*aio.Reactor, error) {
	return nil, ErrUnsupported
}
