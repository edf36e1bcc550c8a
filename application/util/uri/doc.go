// Package uri splits http and https URLs into the parts a session needs:
// scheme, host, port and the request target.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc3986
//
// - https://datatracker.ietf.org/doc/html/rfc9110#section-4.2
package uri
