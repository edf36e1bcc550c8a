package http

import (
	"bytes"
	"strconv"
)

// Response accumulates a response while it is being decoded.
// It is complete once [ResponseDecoder.Decode] returns without error.
type Response struct {
	Version    Version
	StatusCode int
	Reason     string

	Headers  Headers
	Trailers Headers

	Body []byte
}

// StatusLine renders the status line without its terminator.
func (r *Response) StatusLine() string {
	b := r.Version.Text()
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(r.StatusCode), 10)
	b = append(b, ' ')
	b = append(b, r.Reason...)
	return string(b)
}

func (r *Response) Clone() *Response {
	clone := *r
	clone.Headers = r.Headers.Clone()
	clone.Trailers = r.Trailers.Clone()
	if r.Body != nil {
		clone.Body = bytes.Clone(r.Body)
	}
	return &clone
}

// Success reports whether the status code is 2xx.
func (r *Response) Success() bool { return 200 <= r.StatusCode && r.StatusCode < 300 }

// ContentLength returns the parsed Content-Length, or -1 if absent or invalid.
func (r *Response) ContentLength() int64 {
	v, ok := r.Headers.Get("Content-Length")
	if !ok {
		return -1
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
