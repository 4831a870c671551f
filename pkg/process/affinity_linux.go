//go:build linux

package process

import (
	"runtime"
	"strconv"

	"github.com/brickingsoft/errors"
	"golang.org/x/sys/unix"
)

var ErrAffinity = errors.Define("set cpu affinity failed")

// SetCPUAffinity
// pins the calling thread to one cpu, index wraps around runtime.NumCPU.
// the caller should hold runtime.LockOSThread.
func SetCPUAffinity(index int) error {
	var newMask unix.CPUSet

	newMask.Zero()

	cpuIndex := index % runtime.NumCPU()
	if cpuIndex < 0 {
		cpuIndex = -cpuIndex
	}
	newMask.Set(cpuIndex)

	if err := unix.SchedSetaffinity(0, &newMask); err != nil {
		return errors.From(
			ErrAffinity,
			errors.WithMeta("cpu", strconv.Itoa(cpuIndex)),
			errors.WithWrap(err),
		)
	}
	return nil
}
