//go:build unix

package transport

import "golang.org/x/sys/unix"

var errnoSentinels = []errnoSentinel{
	{unix.ECONNREFUSED, ErrConnRefused},
	{unix.ECONNRESET, ErrConnReset},
	{unix.ENETUNREACH, ErrNetUnreachable},
	{unix.EHOSTUNREACH, ErrNetUnreachable},
}
