package http

import (
	"strings"

	"http-session/application/util/rule"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodOptions = "OPTIONS"
)

// Request describes a request to be sent by a session.
//
// A nil Body makes an "empty" request that carries no Content-Length.
// A non-nil Body, even a zero length one, makes a "loaded" request whose
// Content-Length is computed from the body on encoding.
type Request struct {
	Method  string
	Target  string
	Headers Headers
	Body    []byte
}

func NewRequest(method, target string, body []byte) *Request {
	return &Request{
		Method:  method,
		Target:  target,
		Headers: NewHeaders(nil),
		Body:    body,
	}
}

// Version is fixed, requests are always HTTP/1.1.
func (r *Request) Version() Version { return Version11 }

// Loaded reports whether the request carries a body.
func (r *Request) Loaded() bool { return r.Body != nil }

func (r *Request) Clone() *Request {
	clone := &Request{
		Method:  r.Method,
		Target:  r.Target,
		Headers: r.Headers.Clone(),
	}
	if r.Body != nil {
		clone.Body = append(make([]byte, 0, len(r.Body)), r.Body...)
	}
	return clone
}

var (
	ErrInvalidMethod      = errors.New("method is not a valid token")
	ErrInvalidTarget      = errors.New("request target is invalid")
	ErrInvalidHeader      = errors.New("header field is invalid")
	ErrUnsupportedFraming = errors.New("request framing is computed by the encoder")
)

func (r *Request) Validate() error {
	if !rule.IsValidToken(r.Method) {
		return errors.Wrapf(ErrInvalidMethod, "%q", r.Method)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2
	if r.Target == "" || strings.ContainsFunc(r.Target, func(c rune) bool {
		return c <= ' ' || c == 0x7F
	}) {
		return errors.Wrapf(ErrInvalidTarget, "%q", r.Target)
	}

	for name, values := range r.Headers.underlying {
		if !httpguts.ValidHeaderFieldName(name) {
			return errors.Wrapf(ErrInvalidHeader, "name %q", name)
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return errors.Wrapf(ErrInvalidHeader, "value of %q", name)
			}
		}
	}

	// Bodies are sent whole, chunked request bodies are not supported.
	if r.Headers.Has("Transfer-Encoding") {
		return errors.Wrap(ErrUnsupportedFraming, "Transfer-Encoding")
	}

	return nil
}
