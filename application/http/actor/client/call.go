package client

import (
	"context"
	"sync"

	"http-session/application/http"
	"http-session/application/util/uri"
	"http-session/session"
)

// Call is a request dispatched by [Client.Go].
type Call struct {
	Target  uri.Target
	Request *http.Request

	done chan struct{}

	mu     sync.Mutex
	result session.Result
	then   []func(session.Result)
}

func newCall(target uri.Target, request *http.Request) *Call {
	return &Call{
		Target:  target,
		Request: request,
		done:    make(chan struct{}),
	}
}

// Done is closed once the result is available.
func (c *Call) Done() <-chan struct{} { return c.done }

// Result returns the result, and false if the call is still running.
func (c *Call) Result() (session.Result, bool) {
	select {
	case <-c.done:
		return c.result, true
	default:
		return session.Result{}, false
	}
}

// Wait blocks until the result is available or ctx is done. The call
// keeps running after ctx is done; only its phase clocks end it.
func (c *Call) Wait(ctx context.Context) (session.Result, error) {
	select {
	case <-ctx.Done():
		return session.Result{}, ctx.Err()
	case <-c.done:
		return c.result, nil
	}
}

// Then calls fn with the result. fn runs on the session's lane when the
// call is still running, otherwise right away on the caller's goroutine.
func (c *Call) Then(fn func(session.Result)) *Call {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		fn(c.result)
	default:
		c.then = append(c.then, fn)
		c.mu.Unlock()
	}
	return c
}

// complete is the sink of the call's session.
func (c *Call) complete(result session.Result) {
	c.mu.Lock()
	c.result = result
	close(c.done)
	then := c.then
	c.then = nil
	c.mu.Unlock()

	for _, fn := range then {
		fn(result)
	}
}
