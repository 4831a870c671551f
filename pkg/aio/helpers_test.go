package aio_test

import (
	"golang.org/x/sys/unix"
)

const unixAtFdcwd = unix.AT_FDCWD
