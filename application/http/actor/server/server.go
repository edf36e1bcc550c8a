// Package server answers a single HTTP/1.1 request per connection, then
// waits for the peer to close. Secure connections end with close_notify.
package server

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// AcceptFunc blocks until a connection arrives or ctx is done.
type AcceptFunc func(ctx context.Context) (net.Conn, error)

type Server struct {
	accept AcceptFunc

	closeListener func()
	wg            sync.WaitGroup

	logger *slog.Logger
	opts   Options

	handle HandleFunc
	clock  clock.Clock
}

func New(
	accept AcceptFunc,
	logger *slog.Logger,
	clock clock.Clock,
	handle HandleFunc,
	opts Options,
) *Server {
	return &Server{
		accept:        accept,
		closeListener: func() {},
		logger:        logger,
		opts:          opts,
		handle:        handle,
		clock:         clock,
	}
}

func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.closeListener = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			conn, err := s.acceptConn(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Error(
						"unexpected error when accepting connection",
						"error", err.Error(),
					)
				}
				return
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				conn.start(ctx)
			}()
		}
	}()
}

func (s *Server) acceptConn(ctx context.Context) (*conn, error) {
	con, err := s.accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listening for connection")
	}

	conn := &conn{
		con:    con,
		handle: s.handle,
		opts:   s.opts,
		logger: s.logger.With("conn", con.RemoteAddr()),
		clock:  s.clock,
	}

	return conn, nil
}

// Close stops accepting and waits for connections being served.
func (s *Server) Close() error {
	s.closeListener()
	s.wg.Wait()
	return nil
}
