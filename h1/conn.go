// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package h1

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/handler"
	"github.com/packetd/httpcore/internal/connkey"
	"github.com/packetd/httpcore/internal/rescue"
	"github.com/packetd/httpcore/logger"
	"github.com/packetd/httpcore/webparse"
)

// futureResponse is a single-slot handoff for one in-flight request's
// eventual response, used to let handler execution overlap with the
// reader loop's continued socket I/O while still draining responses onto
// the wire in strict FIFO order.
type futureResponse chan *webparse.Response

// Conn drives one HTTP/1.1 TCP connection: a reader/dispatcher loop parses
// requests (or responses, in client mode) off the wire and hands each to a
// Handler in its own goroutine, while a writer loop drains completed
// responses strictly in arrival order. Grounded on the Rust original's
// http1::io::IoBuffer plus its per-connection poll_request/poll_response
// drive loop.
type Conn struct {
	raw      net.Conn
	br       *bufio.Reader
	bw       *bufio.Writer
	isServer bool
	handler  handler.Handler
	connKey  uint64

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewConn wraps conn for HTTP/1.1 framing. isServer selects
// request-reading/response-writing (server) versus response-reading/
// request-writing (client) behavior.
func NewConn(conn net.Conn, isServer bool, h handler.Handler) *Conn {
	return &Conn{
		raw:      conn,
		br:       bufio.NewReaderSize(conn, 16*1024),
		bw:       bufio.NewWriterSize(conn, 16*1024),
		isServer: isServer,
		handler:  h,
		connKey:  connkey.Conn(conn.LocalAddr().String(), conn.RemoteAddr().String()),
	}
}

// ErrUpgradeToH2C is returned by Serve when the connection turned out to
// open with the HTTP/2 client preface; the caller should hand raw off to
// an h2.Codec instead of treating it as a parse failure.
var ErrUpgradeToH2C = webparse.ErrServerUpgradeHTTP2

// Serve drives the connection until it closes, the peer asks not to keep
// it alive, or ctx is done. Server-mode only; client-mode request/response
// round trips are driven by RoundTrip.
func (c *Conn) Serve(ctx context.Context) error {
	defer c.Close()

	if c.isServer {
		isH2C, err := peekPreface(c.br)
		if err != nil {
			return err
		}
		if isH2C {
			return ErrUpgradeToH2C
		}
	}

	futures := make(chan futureResponse, 16)
	errCh := make(chan error, 1)

	go c.writeLoop(ctx, futures, errCh)
	readErr := c.readLoop(ctx, futures)
	// errCh closes once writeLoop has drained every future it will ever
	// receive (whether or not it sent an error), so this never blocks
	// past writeLoop's own completion.
	writeErr := <-errCh
	if readErr != nil {
		return readErr
	}
	return writeErr
}

// readLoop parses one request after another off the wire, dispatching
// each to the Handler in its own goroutine. It blocks on draining the
// current request's body off the wire before parsing the next request
// line — the one serialization a single socket-reading goroutine cannot
// avoid — but does not block on handler execution itself.
func (c *Conn) readLoop(ctx context.Context, futures chan<- futureResponse) error {
	defer close(futures)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, keepAlive, err := c.readRequest(ctx)
		if err != nil {
			return err
		}

		fut := make(futureResponse, 1)
		futures <- fut
		go c.dispatch(ctx, req, fut)

		if !keepAlive {
			return nil
		}
	}
}

// dispatch runs the Handler chain for req and delivers the result to fut.
// It recovers from handler panics the same way the rest of this module
// guards goroutines it cannot directly supervise.
func (c *Conn) dispatch(ctx context.Context, req *webparse.Request, fut futureResponse) {
	defer rescue.HandleCrash()

	resp, err := c.handler.ProcessRequest(ctx, req)
	if err == nil && resp == nil {
		resp, err = c.handler.Operate(ctx, req)
	}
	if err == nil && resp != nil {
		err = c.handler.ProcessResponse(ctx, resp)
	}
	if err != nil {
		c.handler.ProcessError(ctx, err)
		resp = errorResponse(err)
	}
	if resp == nil {
		resp = webparse.NewResponse()
		resp.Status = 204
		resp.Body = body.Empty()
	}
	fut <- resp
}

// writeLoop drains futures strictly in order, writing each resolved
// response to the wire before moving to the next.
func (c *Conn) writeLoop(ctx context.Context, futures <-chan futureResponse, errCh chan<- error) {
	defer close(errCh)

	for fut := range futures {
		var resp *webparse.Response
		select {
		case resp = <-fut:
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
		if err := c.writeResponse(ctx, resp); err != nil {
			errCh <- err
			return
		}
	}
}

// Close closes the underlying connection, safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.raw.Close()
	})
	return err
}

func errorResponse(err error) *webparse.Response {
	resp := webparse.NewResponse()
	status := 500
	if webparse.IsKind(err, webparse.KindParse) {
		status = 400
	}
	resp.Status = status
	msg := err.Error()
	resp.Body = body.NewText(msg)
	logger.Warnf("h1: handler error, responding %d: %s", status, msg)
	return resp
}
