//go:build windows

package transport

import "golang.org/x/sys/windows"

var errnoSentinels = []errnoSentinel{
	{windows.WSAECONNREFUSED, ErrConnRefused},
	{windows.WSAECONNRESET, ErrConnReset},
	{windows.WSAENETUNREACH, ErrNetUnreachable},
	{windows.WSAEHOSTUNREACH, ErrNetUnreachable},
}
