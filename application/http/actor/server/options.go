package server

import (
	"crypto/tls"
	"time"

	"http-session/application/http"
)

type Options struct {
	Serve ServeOptions

	// TLS makes every accepted connection secure.
	TLS *tls.Config
}

type ServeOptions struct {
	Encode http.EncodeOptions
	Decode http.DecodeOptions

	Timeout TimeoutOptions
}

type TimeoutOptions struct {
	// ReadTimeout bounds reading the request, and waiting for the peer
	// to close once the response is sent.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
