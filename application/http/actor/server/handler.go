package server

import (
	"context"
	"net"

	"http-session/application/http"
	"http-session/transport"

	"github.com/pkg/errors"
)

type HandleFunc func(c *HandleContext, request *http.Request) *http.Response

type HandleContext struct {
	ctx context.Context

	remoteAddr net.Addr

	request *http.Request

	dropConn bool

	// Should only be used inside this struct.
	_fatalError error
}

func (c *HandleContext) doHandle(handle HandleFunc) (res *http.Response, err error) {
	defer func() {
		if e := recover(); e != nil {
			res, err = errorResponse(500, errors.Errorf("handler panicked: %s", e), false), nil
		}
	}()

	response := handle(c, c.request)
	if c._fatalError != nil {
		return nil, c._fatalError
	}

	if response == nil && !c.dropConn {
		return nil, errors.New("nil response is forbidden")
	}

	return response, nil
}

func (c *HandleContext) RemoteAddr() net.Addr     { return c.remoteAddr }
func (c *HandleContext) Context() context.Context { return c.ctx }

// Drop closes the connection without a response. The handler must return
// nil after calling it.
func (c *HandleContext) Drop() { c.dropConn = true }

// Error turns err into a response.
func (c *HandleContext) Error(err error) *http.Response {
	if err == nil {
		c._fatalError = errors.New("using Error() with nil error is forbidden")
		return nil
	}

	if errors.Is(err, transport.ErrConnClosed) {
		c.dropConn = true
		return nil
	}

	if errors.Is(err, transport.ErrDeadLineExceeded) {
		return errorResponse(408, nil, true)
	}

	return errorResponse(500, err, false)
}
