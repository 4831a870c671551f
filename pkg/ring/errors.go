package ring

import "github.com/brickingsoft/errors"

var (
	ErrFull           = errors.Define("ring is full")
	ErrInvalidEntries = errors.Define("invalid ring entries")
	ErrClosed         = errors.Define("ring engine is closed")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "ring"
)

func IsFull(err error) bool {
	return errors.Is(err, ErrFull)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
