package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

// IsCrossDevice reports whether err is an EXDEV failure, i.e. a link was
// attempted across filesystems. Wrapped errors (*os.LinkError) are unwrapped.
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

// IsRetryable reports whether err is a transient condition that should be
// retried in place (EINTR, EAGAIN).
func IsRetryable(err error) bool {
	return errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN)
}
