//go:build !linux

package process

import (
	"github.com/brickingsoft/errors"
	"syscall"
)

var ErrAffinity = errors.Define("set cpu affinity failed")

func SetCPUAffinity(_ int) error {
	return errors.From(ErrAffinity, errors.WithWrap(syscall.ENOTSUP))
}
