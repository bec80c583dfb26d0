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
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/internal/bufpool"
	"github.com/packetd/httpcore/webparse"
)

// parseHTTP1Version maps the request-line version token to a Proto;
// anything other than exactly "HTTP/1.1" is treated as ProtoUnknown so
// HeaderHelper.IsKeepAlive falls back to its close-by-default rule for
// HTTP/1.0 peers.
func parseHTTP1Version(v string) webparse.Proto {
	if v == "HTTP/1.1" {
		return webparse.ProtoHTTP11
	}
	return webparse.ProtoUnknown
}

// statusText returns net/http.StatusText's reason phrase for code, or
// "Status" for a code the stdlib table does not know.
func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Status"
}

// readRequest parses one request line, header block and body off the
// wire, returning the request and whether the connection should stay open
// for a subsequent pipelined request.
func (c *Conn) readRequest(ctx context.Context) (*webparse.Request, bool, error) {
	method, path, protoStr, err := readRequestLine(c.br)
	if err != nil {
		return nil, false, err
	}
	h, err := readHeaderLines(c.br)
	if err != nil {
		return nil, false, err
	}

	req := webparse.NewRequest()
	req.Proto = parseHTTP1Version(protoStr)
	req.Method = method
	req.Path = path
	req.Header = h
	req.TraceID, req.SpanID = webparse.PopulateTrace(h)

	var hh webparse.HeaderHelper
	keepAlive := hh.IsKeepAlive(req.Proto, h)

	chunked, length, hasLength, _ := bodyFraming(h, true, false)
	switch {
	case chunked:
		ch := make(chan body.Chunk, 4)
		req.Body = body.New(ch, nil, false)
		go c.reportBodyErr(ctx, streamChunkedBody(c.br, ch))
	case hasLength && length > 0:
		ch := make(chan body.Chunk, 4)
		req.Body = body.New(ch, nil, false)
		go c.reportBodyErr(ctx, streamFixedBody(c.br, ch, length))
	default:
		req.Body = body.Empty()
	}

	if enc := hh.RequestCompressMethod(h.Get(webparse.HeaderContentEncoding)); enc != webparse.CompressMethodNone {
		if concrete, ok := req.Body.(*body.Body); ok {
			switch enc {
			case webparse.CompressMethodGzip:
				concrete.SetCompressGzip()
			case webparse.CompressMethodDeflate:
				concrete.SetCompressDeflate()
			case webparse.CompressMethodBrotli:
				concrete.SetCompressBrotli()
			}
		}
	}

	return req, keepAlive, nil
}

// reportBodyErr logs streaming errors a body-feeding goroutine can't
// return to anyone directly, since the reader loop has already moved on.
func (c *Conn) reportBodyErr(ctx context.Context, err error) {
	if err != nil {
		c.handler.ProcessError(ctx, err)
	}
}

// writeResponse serializes resp onto the wire: status line, headers, then
// body (chunked or fixed-length per the body's own framing).
func (c *Conn) writeResponse(ctx context.Context, resp *webparse.Response) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	proto := "HTTP/1.1"
	if _, err := fmt.Fprintf(c.bw, "%s %d %s\r\n", proto, resp.Status, statusText(resp.Status)); err != nil {
		return webparse.WrapError(webparse.KindIo, err, "h1: write status line")
	}

	var concrete *body.Body
	if b, ok := resp.Body.(*body.Body); ok {
		concrete = b
	}
	isChunked := concrete != nil && concrete.IsChunked()

	if err := writeHeaderBlock(c.bw, resp.Header, isChunked); err != nil {
		return err
	}

	if resp.Body == nil {
		return c.bw.Flush()
	}

	stage := bufpool.Acquire()
	defer bufpool.Release(stage)
	buf := bufpool.Stage(stage, 32*1024)
	for {
		n, err := resp.Body.Read(ctx, buf)
		if n > 0 {
			if _, werr := c.bw.Write(buf[:n]); werr != nil {
				return webparse.WrapError(webparse.KindIo, werr, "h1: write body")
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return webparse.WrapError(webparse.KindIo, err, "h1: read response body")
		}
	}
	if err := c.bw.Flush(); err != nil {
		return webparse.WrapError(webparse.KindIo, err, "h1: flush response")
	}
	return nil
}

func writeHeaderBlock(bw *bufio.Writer, h http.Header, chunked bool) error {
	if chunked {
		h.Set(webparse.HeaderTransferEncoding, "chunked")
		h.Del(webparse.HeaderContentLength)
	}

	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, v := range h[name] {
			if _, err := fmt.Fprintf(bw, "%s: %s\r\n", name, v); err != nil {
				return webparse.WrapError(webparse.KindIo, err, "h1: write header")
			}
		}
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return webparse.WrapError(webparse.KindIo, err, "h1: write header terminator")
	}
	return nil
}
