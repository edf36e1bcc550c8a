// Package http implements the HTTP/1.1 message codec used by a session:
// the request descriptor and its encoder, and the response accumulator
// and its decoder.
//
// Only the framing needed for a single request/response exchange is
// provided. Connection reuse, pipelining and HTTP/2 are out of scope.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
