//go:build !unix && !windows

package transport

var errnoSentinels []errnoSentinel
