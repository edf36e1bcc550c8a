package uri

import (
	"strconv"
	"strings"

	"http-session/application/util/domain"

	"github.com/pkg/errors"
)

// URI is a parsed URI reference.
// Host and UserInfo are unescaped, Path and Query keep their escapes so
// they can be sent as a request target as is.
type URI struct {
	Scheme    string
	Authority *Authority
	Path      string
	Query     *string
	Fragment  *string
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-4.2
func (u *URI) IsRelativeRef() bool {
	return u.Scheme == ""
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.3
func (u *URI) String() string {
	b := new(strings.Builder)
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteByte(':')
	}

	if u.Authority != nil {
		b.WriteString("//")
		if u.Authority.UserInfo != "" {
			b.WriteString(escape(u.Authority.UserInfo, encodeUserInfo))
			b.WriteByte('@')
		}
		b.WriteString(escape(u.Authority.Host, encodeHost))
		if u.Authority.Port != nil {
			b.WriteByte(':')
			b.WriteString(strconv.FormatUint(uint64(*u.Authority.Port), 10))
		}
	}

	b.WriteString(u.Path)

	if u.Query != nil {
		b.WriteByte('?')
		b.WriteString(*u.Query)
	}

	if u.Fragment != nil {
		b.WriteByte('#')
		b.WriteString(*u.Fragment)
	}

	return b.String()
}

type Authority struct {
	UserInfo string

	// Host keeps the brackets of an IP literal.
	Host string

	// Port is limited to 16 bits although the grammar allows any digits.
	// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-3.2.3
	Port *uint16
}

// ParseURI parses a URI reference.
// Non-ASCII registered names are converted to their ASCII form.
func ParseURI(raw string) (URI, error) {
	if containsCTL(raw) {
		return URI{}, errors.New("URI should not contain CTL bytes")
	}

	var uri URI

	scheme, rest, err := cutScheme(raw)
	if err != nil {
		return URI{}, errors.Wrap(err, "getting scheme")
	}
	uri.Scheme = strings.ToLower(scheme)

	if strings.HasPrefix(rest, "//") {
		var authorityRaw string
		authorityRaw, rest = rest[2:], ""
		if i := strings.IndexAny(authorityRaw, "/?#"); i >= 0 {
			authorityRaw, rest = authorityRaw[:i], authorityRaw[i:]
		}

		authority, err := parseAuthority(authorityRaw)
		if err != nil {
			return URI{}, errors.Wrap(err, "parsing authority")
		}

		uri.Authority = &authority
	}

	path, query, frag := splitPathQueryFrag(rest)

	if err := assertValidPath(path, uri.Authority != nil, uri.IsRelativeRef()); err != nil {
		return URI{}, errors.Wrap(err, "path is not valid")
	}
	uri.Path = path

	if len(query) > 0 {
		query = query[1:]
		if !isQueryFragValid(query) {
			return URI{}, errors.New("query is not valid")
		}
		uri.Query = &query
	}

	if len(frag) > 0 {
		frag = frag[1:]
		if !isQueryFragValid(frag) {
			return URI{}, errors.New("fragment is not valid")
		}
		uri.Fragment = &frag
	}

	return uri, nil
}

// cutScheme cuts the scheme off raw. A reference without one has an
// empty scheme.
func cutScheme(raw string) (scheme, rest string, err error) {
	// A colon after the first '/', '?' or '#' belongs to the path.
	if i := strings.IndexAny(raw, "/?#"); i >= 0 && i < strings.IndexByte(raw, ':') {
		return "", raw, nil
	}

	before, after, found := strings.Cut(raw, ":")
	if !found {
		return "", raw, nil
	}

	if err := assertValidScheme(before); err != nil {
		return "", "", err
	}

	return before, after, nil
}

func parseAuthority(raw string) (authority Authority, err error) {
	host := raw
	if i := strings.LastIndex(raw, "@"); i >= 0 {
		userInfo := raw[:i]
		host = raw[i+1:]

		if !isValidUserInfo(userInfo) {
			return Authority{}, errors.New("user information is not valid")
		}
		if authority.UserInfo, err = unescape(userInfo); err != nil {
			return Authority{}, errors.Wrap(err, "unescaping user information")
		}
	}

	host, portPart, err := getHostPort(host)
	if err != nil {
		return Authority{}, errors.Wrap(err, "parsing host")
	}

	port, hasPort, err := parsePort(portPart)
	if err != nil {
		return Authority{}, errors.Wrap(err, "parsing port")
	}
	if hasPort {
		authority.Port = &port
	}

	if strings.HasPrefix(host, "[") {
		authority.Host = strings.ToLower(host)
		return authority, nil
	}

	if host, err = unescape(host); err != nil {
		return Authority{}, errors.Wrap(err, "unescaping host")
	}
	if authority.Host, err = domain.ToASCII(host); err != nil {
		return Authority{}, errors.Wrap(err, "normalizing host")
	}

	return authority, nil
}

func getHostPort(raw string) (host string, portPart string, err error) {
	if strings.HasPrefix(raw, "[") {
		idx := strings.LastIndex(raw, "]")
		if idx < 0 {
			return "", "", errors.New("missing ']' in IP literal")
		}

		host = raw[:idx+1]
		portPart = raw[idx+1:]
	} else {
		host = raw
		if idx := strings.LastIndex(raw, ":"); idx >= 0 {
			host = raw[:idx]
			portPart = raw[idx:]
		}
	}

	if err := assertValidHost(host); err != nil {
		return "", "", errors.Wrap(err, "host is not valid")
	}

	return host, portPart, nil
}

// parsePort parses ":port". An empty port is the same as none.
func parsePort(s string) (port uint16, hasPort bool, err error) {
	if s == "" || s == ":" {
		return 0, false, nil
	}

	if s[0] != ':' {
		return 0, false, errors.Wrap(ErrInvalidPort, "colon delimiter not found")
	}
	s = s[1:]

	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, false, errors.Wrapf(ErrInvalidPort, "%q", s)
	}

	if s[0] == '0' && len(s) > 1 {
		return 0, false, errors.Wrapf(ErrInvalidPort, "leading zero in %q", s)
	}

	return uint16(n), true, nil
}

func splitPathQueryFrag(raw string) (path, query, frag string) {
	if idx := strings.IndexByte(raw, '#'); idx >= 0 {
		frag = raw[idx:]
		raw = raw[:idx]
	}

	if idx := strings.IndexByte(raw, '?'); idx >= 0 {
		query = raw[idx:]
		raw = raw[:idx]
	}

	path = raw
	return
}
