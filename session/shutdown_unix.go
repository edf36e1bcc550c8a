//go:build unix

package session

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func isNotConnected(err error) bool {
	return errors.Is(err, unix.ENOTCONN)
}
