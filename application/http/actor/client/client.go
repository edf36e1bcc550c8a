// Package client sends single requests to absolute http(s) URLs, one
// session per request.
package client

import (
	"context"
	"log/slog"

	"http-session/application/http"
	"http-session/application/util/uri"
	"http-session/reactor"
	"http-session/session"
	"http-session/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var ErrNoSecureTransport = errors.New("no secure transport configured")

type Client struct {
	reactor *reactor.Reactor

	plain  transport.Transport
	secure transport.Transport

	opts Options

	logger *slog.Logger
	clock  clock.Clock
}

// New creates a client. plain carries http requests and secure carries
// https requests; secure must be a [transport.Securer] and may be nil.
func New(
	r *reactor.Reactor,
	plain, secure transport.Transport,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Client {
	c := &Client{
		reactor: r,
		secure:  secure,
		opts:    opts,
		logger:  logger,
		clock:   clock,
	}
	if plain != nil {
		c.plain = transport.Stack{Resolver: plain, Connector: plain}
	}

	return c
}

// Go starts sending req to target and returns without waiting.
// An error means no session was started.
func (c *Client) Go(target uri.Target, req *http.Request) (*Call, error) {
	t, err := c.transportFor(target)
	if err != nil {
		return nil, err
	}

	req = req.Clone()
	if c.opts.UserAgent != "" && !req.Headers.Has("User-Agent") {
		req.Headers.Set("User-Agent", c.opts.UserAgent)
	}

	call := newCall(target, req)
	s := session.New(c.reactor, t, c.logger, c.clock, c.opts.Session, c.opts.Handlers)
	if err := s.Run(target.Host, target.Service(), req, call.complete); err != nil {
		return nil, errors.Wrapf(err, "sending to %s", target)
	}

	c.logger.Debug("request sent",
		slog.Uint64("session", uint64(s.ID())),
		slog.String("method", req.Method),
		slog.String("target", target.String()),
	)

	return call, nil
}

// Do sends req to target and waits for the response.
// When ctx is done first, Do returns and the session runs to completion
// in the background.
func (c *Client) Do(ctx context.Context, target uri.Target, req *http.Request) (*http.Response, error) {
	call, err := c.Go(target, req)
	if err != nil {
		return nil, err
	}

	result, err := call.Wait(ctx)
	if err != nil {
		return nil, err
	}

	return result.Response, result.Err
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, url, nil, headers)
}

func (c *Client) Delete(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, url, nil, headers)
}

// Post sends body, a nil body is sent as an empty one.
func (c *Client) Post(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, url, loaded(body), headers)
}

// Put sends body, a nil body is sent as an empty one.
func (c *Client) Put(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, url, loaded(body), headers)
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	target, err := uri.Parse(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing target")
	}

	req := http.NewRequest(method, target.Path, body)
	for k, v := range headers {
		req.Headers.Set(k, v)
	}

	return c.Do(ctx, target, req)
}

func (c *Client) transportFor(target uri.Target) (transport.Transport, error) {
	if !target.Secure() {
		if c.plain == nil {
			return nil, errors.Errorf("no transport for %s", target.Scheme)
		}
		return c.plain, nil
	}

	if c.secure == nil || !transport.IsSecure(c.secure) {
		return nil, ErrNoSecureTransport
	}
	return c.secure, nil
}

func loaded(body []byte) []byte {
	if body == nil {
		return []byte{}
	}
	return body
}
