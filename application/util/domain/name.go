package domain

import (
	"context"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

// ToASCII converts host into its ASCII form used on the wire and for lookups.
// ASCII hosts are only lowercased.
func ToASCII(host string) (string, error) {
	if isASCII(host) {
		return strings.ToLower(host), nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", errors.Wrapf(err, "converting %q", host)
	}

	return ascii, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

var ErrUnknownService = errors.New("unknown service")

var wellKnownPorts = map[string]uint16{
	"http":  80,
	"https": 443,
}

// LookupPort resolves service into a tcp port.
// Numeric services are used as is, well-known names never reach the
// system service database.
func LookupPort(ctx context.Context, service string) (uint16, error) {
	if port, err := strconv.ParseUint(service, 10, 16); err == nil {
		return uint16(port), nil
	}

	if port, ok := wellKnownPorts[strings.ToLower(service)]; ok {
		return port, nil
	}

	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", service)
	if err != nil {
		return 0, errors.Wrapf(ErrUnknownService, "%q: %s", service, err)
	}

	return uint16(port), nil
}
