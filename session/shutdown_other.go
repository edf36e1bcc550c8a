//go:build !unix && !windows

package session

func isNotConnected(err error) bool { return false }
