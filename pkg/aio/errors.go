package aio

import (
	"github.com/brickingsoft/errors"
)

var (
	ErrUncompleted       = errors.Define("uncompleted")
	ErrCanceled          = errors.Define("canceled")
	ErrClosed            = errors.Define("reactor has been closed")
	ErrBackpressure      = errors.Define("submission backpressure")
	ErrFault             = errors.Define("reactor fault")
	ErrPendingOperations = errors.Define("operations still in flight")
	ErrInvalidOperation  = errors.Define("invalid operation")
	ErrOperationInFlight = errors.Define("operation is already in flight")
	ErrInvalidOptions    = errors.Define("invalid options")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "aio"
	errMetaOpKey  = "op"
	errMetaTagKey = "tag"
)

func IsUncompleted(err error) bool {
	return errors.Is(err, ErrUncompleted)
}

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

func IsBackpressure(err error) bool {
	return errors.Is(err, ErrBackpressure)
}

func IsFault(err error) bool {
	return errors.Is(err, ErrFault)
}
