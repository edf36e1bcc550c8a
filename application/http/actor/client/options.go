package client

import (
	"http-session/session"
)

type Options struct {
	Session session.Options

	// Handlers are installed in every session. It may be nil.
	Handlers *session.HandlerGroup

	// UserAgent is sent unless a request has its own.
	UserAgent string
}

var DefaultOptions = Options{
	Session:   session.DefaultOptions,
	UserAgent: "http-session",
}
