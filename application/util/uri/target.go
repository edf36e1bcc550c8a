package uri

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

var (
	ErrUnsupportedScheme = errors.New("scheme is not supported")
	ErrMissingHost       = errors.New("host is missing")
	ErrInvalidPort       = errors.New("port is invalid")
)

// Target is an absolute http(s) URL split for a single request.
type Target struct {
	Scheme string
	Host   string // ASCII form, IPv6 literals without brackets.
	Port   string // Empty when the URL has none.

	// Path is the origin-form request target: path and query.
	// It is "/" when the URL has no path.
	Path string
}

// Parse parses an absolute http or https URL. Dot segments are removed
// from the path and the fragment is dropped.
func Parse(raw string) (Target, error) {
	u, err := ParseURI(raw)
	if err != nil {
		return Target{}, errors.Wrap(err, "parsing url")
	}

	if u.Scheme != SchemeHTTP && u.Scheme != SchemeHTTPS {
		return Target{}, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-4.2.1
	if u.Authority == nil || u.Authority.Host == "" {
		return Target{}, errors.Wrapf(ErrMissingHost, "%q", raw)
	}

	host := strings.TrimSuffix(strings.TrimPrefix(u.Authority.Host, "["), "]")

	var port string
	if u.Authority.Port != nil {
		port = strconv.FormatUint(uint64(*u.Authority.Port), 10)
	}

	path := removeDotSegments(u.Path)
	if path == "" {
		path = "/"
	}
	if u.Query != nil {
		path += "?" + *u.Query
	}

	return Target{Scheme: u.Scheme, Host: host, Port: port, Path: path}, nil
}

// Secure reports whether the target needs a secure stream.
func (t Target) Secure() bool { return t.Scheme == SchemeHTTPS }

// Service is the explicit port, or the scheme name to be resolved as a
// service when the URL has none.
func (t Target) Service() string {
	if t.Port != "" {
		return t.Port
	}
	return t.Scheme
}

// Authority is the value sent as the Host header. The port is left out
// when absent or equal to the scheme default.
func (t Target) Authority() string {
	host := t.host()
	if t.Port == "" || t.Port == defaultPort(t.Scheme) {
		return host
	}
	return host + ":" + t.Port
}

// URI turns t back into an absolute URI.
func (t Target) URI() URI {
	u := URI{
		Scheme:    t.Scheme,
		Authority: &Authority{Host: t.host()},
		Path:      t.Path,
	}
	if path, query, found := strings.Cut(t.Path, "?"); found {
		u.Path, u.Query = path, &query
	}
	if port, err := strconv.ParseUint(t.Port, 10, 16); err == nil {
		p := uint16(port)
		u.Authority.Port = &p
	}
	return u
}

func (t Target) String() string {
	u := t.URI()
	return u.String()
}

func (t Target) host() string {
	if strings.Contains(t.Host, ":") {
		return "[" + t.Host + "]"
	}
	return t.Host
}

func defaultPort(scheme string) string {
	switch scheme {
	case SchemeHTTP:
		return "80"
	case SchemeHTTPS:
		return "443"
	}
	return ""
}
