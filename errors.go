package uring

import "github.com/brickingsoft/errors"

var (
	ErrEngine      = errors.Define("uring: engine unavailable")
	ErrUnsupported = errors.Define("uring: platform is unsupported")
	ErrExecutors   = errors.Define("uring: executors unavailable")
)
