package server

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"http-session/application/http"
	"http-session/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-5.6.7
const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

type conn struct {
	con net.Conn

	handle HandleFunc
	clock  clock.Clock

	logger *slog.Logger

	opts Options
}

func (c *conn) start(ctx context.Context) {
	// Closing the server unblocks whatever the connection waits for.
	stop := context.AfterFunc(ctx, func() { c.con.Close() })
	defer stop()

	defer func() {
		c.logger.Debug("closing connection")
		if err := c.con.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.logger.Error("error when closing connection", "error", err)
		}
	}()

	err := c.serve(ctx)

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		// no-op.
	case errors.Is(err, transport.ErrConnClosed), errors.Is(err, io.ErrUnexpectedEOF):
		c.logger.Info("connection closed before a request")
	default:
		c.logger.Error("unknown error occured", "error", err)
	}
}

func (c *conn) serve(ctx context.Context) error {
	var stream io.ReadWriter = c.con

	var secure *tls.Conn
	if c.opts.TLS != nil {
		secure = tls.Server(c.con, c.opts.TLS)
		if err := secure.HandshakeContext(ctx); err != nil {
			return errors.Wrap(err, "handshake failed")
		}
		stream = secure
	}

	var response *http.Response

	request, err := c.readRequest(stream)
	if err != nil {
		if errors.Is(err, transport.ErrConnClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-9
		response = errorResponse(toStatusCode(err), err, true)
	} else {
		hctx := &HandleContext{
			remoteAddr: c.con.RemoteAddr(),
			ctx:        ctx,
			request:    request,
		}
		response, err = hctx.doHandle(c.handle)
		if err != nil {
			return errors.Wrap(err, "unexpected error while handling request")
		}
		if response == nil {
			// Dropped by the handler.
			return nil
		}
	}

	if err := c.writeResponse(stream, response); err != nil {
		return errors.Wrap(err, "unexpected error while writing response")
	}

	return c.finish(secure)
}

func (c *conn) readRequest(r io.Reader) (*http.Request, error) {
	if timeout := c.opts.Serve.Timeout.ReadTimeout; timeout > 0 {
		c.con.SetReadDeadline(c.clock.Now().Add(timeout))
	}

	var request http.Request
	if err := http.NewRequestDecoder(r, c.opts.Serve.Decode).Decode(&request); err != nil {
		return nil, err
	}

	if request.Headers.Has("Transfer-Encoding") {
		// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.1-11
		return nil, errors.Wrap(errNotImplemented, "transfer coded request body")
	}

	return &request, nil
}

func (c *conn) writeResponse(w io.Writer, response *http.Response) error {
	if timeout := c.opts.Serve.Timeout.WriteTimeout; timeout > 0 {
		c.con.SetWriteDeadline(c.clock.Now().Add(timeout))
	}

	response = response.Clone()
	if response.Version == (http.Version{}) {
		response.Version = http.Version11
	}
	if response.Reason == "" {
		response.Reason = http.StatusText(response.StatusCode)
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-6.6.1-6
	response.Headers.Set("Date", c.clock.Now().UTC().Format(dateFormat))
	// Every connection serves a single request.
	response.Headers.Set("Connection", "close")

	return http.NewResponseEncoder(w, c.opts.Serve.Encode).Encode(response)
}

// finish closes the sending side and waits for the peer to close.
func (c *conn) finish(secure *tls.Conn) error {
	var r io.Reader = c.con
	if secure != nil {
		if err := secure.CloseWrite(); err != nil {
			return errors.Wrap(err, "sending close_notify")
		}
		r = secure
	} else if hc, ok := c.con.(transport.HalfCloser); ok {
		if err := hc.CloseWrite(); err != nil {
			return errors.Wrap(err, "closing write")
		}
	}

	if timeout := c.opts.Serve.Timeout.ReadTimeout; timeout > 0 {
		c.con.SetReadDeadline(c.clock.Now().Add(timeout))
	} else {
		c.con.SetReadDeadline(time.Time{})
	}

	if _, err := io.Copy(io.Discard, r); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(err, "waiting for peer to close")
	}

	return nil
}

var errNotImplemented = errors.New("not implemented")

// toStatusCode maps an error of reading a request to a status code.
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-9
func toStatusCode(err error) int {
	switch {
	case errors.Is(err, transport.ErrDeadLineExceeded):
		return 408
	case errors.Is(err, http.ErrBodyTooLarge):
		return 413
	case errors.Is(err, http.ErrFieldLineTooLong):
		return 431
	case errors.Is(err, errNotImplemented):
		return 501
	default:
		return 400
	}
}

func errorResponse(code int, cause error, skipBody bool) *http.Response {
	response := &http.Response{
		Version:    http.Version11,
		StatusCode: code,
		Reason:     http.StatusText(code),
		Headers:    http.NewHeaders(nil),
	}

	if !skipBody && cause != nil {
		response.Headers.Set("Content-Type", "text/plain; charset=utf-8")
		response.Body = []byte(cause.Error())
	}
	response.Headers.Set("Content-Length", strconv.Itoa(len(response.Body)))

	return response
}
