package uri

import (
	"net/netip"
	"strings"

	"http-session/application/util/rule"

	"github.com/pkg/errors"
)

func containsCTL(s string) bool {
	for i := 0; i < len(s); i++ {
		if b := s[i]; b < ' ' || b == 0x7f {
			return true
		}
	}
	return false
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.2
func isSubDelim(c byte) bool {
	switch c {
	case '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=':
		return true
	}
	return false
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.3
func isUnreserved(c byte) bool {
	if rule.IsAlpha(rune(c)) || rule.IsDigit(rune(c)) {
		return true
	}
	switch c {
	case '-', '.', '_', '~':
		return true
	}
	return false
}

func isReserved(c byte) bool {
	switch c {
	case ':', '/', '?', '#', '[', ']', '@':
		return true
	}
	return isSubDelim(c)
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-2.1
func isPercentEncoded(s string) bool {
	return len(s) == 3 && s[0] == '%' && rule.IsHex(rune(s[1])) && rule.IsHex(rune(s[2]))
}

// allMatch reports whether every byte of s is allowed or starts a
// percent-encoded triplet.
func allMatch(s string, allowed func(c byte) bool) bool {
	for idx := 0; idx < len(s); idx++ {
		if allowed(s[idx]) {
			continue
		}
		if idx+2 < len(s) && isPercentEncoded(s[idx:idx+3]) {
			idx += 2
			continue
		}
		return false
	}
	return true
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.3
func isPchar(c byte) bool {
	return isUnreserved(c) || isSubDelim(c) || c == ':' || c == '@'
}

func assertValidScheme(scheme string) error {
	if len(scheme) == 0 {
		return errors.New("scheme is empty")
	}

	if !rule.IsAlpha(rune(scheme[0])) {
		return errors.New("scheme doesn't start with ALPHA")
	}

	for idx := 1; idx < len(scheme); idx++ {
		c := scheme[idx]
		switch {
		case rule.IsAlpha(rune(c)) || rule.IsDigit(rune(c)):
		case c == '+' || c == '-' || c == '.':
		default:
			return errors.New("scheme contains invalid byte")
		}
	}

	return nil
}

func assertValidHost(host string) error {
	if host == "" {
		// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.2.2
		return nil
	}
	if len(host) > 255 {
		return errors.Errorf("host length exceeds limit(255): %d", len(host))
	}

	first, last := 0, len(host)-1
	if host[first] == '[' && host[last] == ']' {
		host = host[first+1 : last]
		if addr, err := netip.ParseAddr(host); err == nil && addr.Is6() {
			return nil
		}
		if isIPvFuture(host) {
			return nil
		}

		return errors.New("host is expected to be IP literal, but was malformed")
	}

	if isValidRegName(host) {
		// Covers IPv4 addresses too, their grammar is a subset.
		return nil
	}

	return errors.New("host is neither ipv4 addr nor valid reg-name")
}

func isValidUserInfo(s string) bool {
	return allMatch(s, func(c byte) bool {
		return isUnreserved(c) || isSubDelim(c) || c == ':'
	})
}

// isValidRegName accepts non-ASCII bytes, they are left to IDNA.
func isValidRegName(s string) bool {
	return allMatch(s, func(c byte) bool {
		return isUnreserved(c) || isSubDelim(c) || c >= 0x80
	})
}

func isIPvFuture(s string) bool {
	if len(s) < 4 {
		return false
	}

	// v8. vA. vF.
	if !(s[0] == 'v' && rule.IsHex(rune(s[1])) && s[2] == '.') {
		return false
	}

	for idx := 3; idx < len(s); idx++ {
		c := s[idx]
		if !(isUnreserved(c) || isSubDelim(c) || c == ':') {
			return false
		}
	}

	return true
}

func assertValidPath(path string, hasAuthority bool, isRelative bool) error {
	if hasAuthority {
		if !(path == "" || path[0] == '/') {
			return errors.New("URI with authority must either be empty or start with '/'")
		}
	} else if strings.HasPrefix(path, "//") {
		return errors.New("URI without authority should not start with '//'")
	}

	segments := strings.Split(path, "/")
	if isRelative && strings.ContainsRune(segments[0], ':') {
		return errors.New("relative URI reference's first segment should not contain ':'")
	}

	for _, segment := range segments {
		if !allMatch(segment, isPchar) {
			return errors.New("path segment should be pchar")
		}
	}

	return nil
}

func isQueryFragValid(s string) bool {
	return allMatch(s, func(c byte) bool {
		return isPchar(c) || c == '/' || c == '?'
	})
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.4
func removeDotSegments(path string) string {
	var out []string

	pop := func() {
		if len(out) > 0 {
			out = out[:len(out)-1]
		}
	}

	for len(path) > 0 {
		var found bool
		if path, found = strings.CutPrefix(path, "../"); found {
			continue
		}
		if path, found = strings.CutPrefix(path, "./"); found {
			continue
		}

		if path, found = strings.CutPrefix(path, "/./"); found {
			path = "/" + path
			continue
		} else if path == "/." {
			path = "/"
			continue
		}

		if path, found = strings.CutPrefix(path, "/../"); found {
			pop()
			path = "/" + path
			continue
		} else if path == "/.." {
			pop()
			path = "/"
			continue
		}

		if path == ".." || path == "." {
			break
		}

		// Move the first segment, with its leading '/', to the output.
		idx := strings.IndexByte(path[1:], '/') + 1
		if idx == 0 {
			idx = len(path)
		}
		out = append(out, path[:idx])
		path = path[idx:]
	}

	return strings.Join(out, "")
}
