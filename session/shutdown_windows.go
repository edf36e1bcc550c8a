//go:build windows

package session

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

func isNotConnected(err error) bool {
	return errors.Is(err, windows.WSAENOTCONN)
}
