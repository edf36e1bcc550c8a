package transport

import (
	"syscall"

	"github.com/pkg/errors"
)

type errnoSentinel struct {
	errno    syscall.Errno
	sentinel error
}

// WrapErrno replaces a refused, reset or unreachable socket error in err
// with the matching sentinel, keeping its message. Other errors are
// returned as is.
func WrapErrno(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range errnoSentinels {
		if errors.Is(err, m.errno) {
			return errors.Wrap(m.sentinel, err.Error())
		}
	}

	return err
}
