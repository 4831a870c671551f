package tags

import "github.com/brickingsoft/errors"

var (
	ErrBusy              = errors.Define("tag table is busy")
	ErrProtocolViolation = errors.Define("completion with unknown or stale tag")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "tags"
	errMetaTagKey = "tag"
)

func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}
