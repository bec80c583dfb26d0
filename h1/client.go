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
	"context"
	"fmt"
	"net/http"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/internal/bufpool"
	"github.com/packetd/httpcore/webparse"
)

// RoundTrip writes req onto the connection and blocks for the matching
// response, the client-mode counterpart to Serve. Callers are responsible
// for not issuing a second RoundTrip until the Handler passed to NewConn
// has finished with the prior response body (pipelining is left to the
// caller since, unlike Serve, there is no reader loop to enforce FIFO
// ordering on the client's behalf).
func (c *Conn) RoundTrip(ctx context.Context, req *webparse.Request) (*webparse.Response, error) {
	if err := c.writeRequest(ctx, req); err != nil {
		return nil, err
	}
	return c.readResponse(ctx, req.Method)
}

func (c *Conn) writeRequest(ctx context.Context, req *webparse.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := fmt.Fprintf(c.bw, "%s %s HTTP/1.1\r\n", req.Method, req.Path); err != nil {
		return webparse.WrapError(webparse.KindIo, err, "h1: write request line")
	}

	var concrete *body.Body
	if b, ok := req.Body.(*body.Body); ok {
		concrete = b
	}
	isChunked := concrete != nil && concrete.IsChunked()

	if err := writeHeaderBlock(c.bw, req.Header, isChunked); err != nil {
		return err
	}

	if req.Body == nil {
		return c.bw.Flush()
	}
	stage := bufpool.Acquire()
	defer bufpool.Release(stage)
	buf := bufpool.Stage(stage, 32*1024)
	for {
		n, err := req.Body.Read(ctx, buf)
		if n > 0 {
			if _, werr := c.bw.Write(buf[:n]); werr != nil {
				return webparse.WrapError(webparse.KindIo, werr, "h1: write request body")
			}
		}
		if err != nil {
			break
		}
	}
	return c.bw.Flush()
}

// readResponse parses the status line, headers and body of a response to
// a request issued with the given method (HEAD responses never carry a
// body regardless of header framing, per RFC 7230 §3.3.3).
func (c *Conn) readResponse(ctx context.Context, method string) (*webparse.Response, error) {
	protoStr, status, err := readStatusLine(c.br)
	if err != nil {
		return nil, err
	}
	h, err := readHeaderLines(c.br)
	if err != nil {
		return nil, err
	}

	resp := webparse.NewResponse()
	resp.Proto = parseHTTP1Version(protoStr)
	resp.Status = status
	resp.Header = h

	noBody := method == http.MethodHead || status == 204 || status == 304 || (status >= 100 && status < 200)
	chunked, length, hasLength, closeDelimited := bodyFraming(h, false, noBody)

	switch {
	case chunked:
		ch := make(chan body.Chunk, 4)
		resp.Body = body.New(ch, nil, false)
		go c.reportBodyErr(ctx, streamChunkedBody(c.br, ch))
	case hasLength && length > 0:
		ch := make(chan body.Chunk, 4)
		resp.Body = body.New(ch, nil, false)
		go c.reportBodyErr(ctx, streamFixedBody(c.br, ch, length))
	case closeDelimited:
		ch := make(chan body.Chunk, 4)
		resp.Body = body.New(ch, nil, false)
		go c.reportBodyErr(ctx, streamCloseDelimitedBody(c.br, ch))
	default:
		resp.Body = body.Empty()
	}

	return resp, nil
}
