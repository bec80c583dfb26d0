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

package webparse

import (
	"context"
	"net/http"
)

// Body is the contract Request/Response hold their streaming payload
// behind. It is declared here, rather than importing package body's
// concrete type, because body imports webparse for ProtError/CompressMethod
// — webparse importing body back would cycle. *body.Body implements this
// in full; h1/h2, which construct messages, hold the concrete type directly
// when they need operations beyond this interface (e.g. SetCompressGzip).
type Body interface {
	// Read drains up to len(p) decoded bytes, blocking until data is
	// available, the body ends, or ctx is done.
	Read(ctx context.Context, p []byte) (int, error)

	// ReadAll blocks until the body ends and returns its full decoded
	// content.
	ReadAll(ctx context.Context) ([]byte, error)

	// IsEnd reports whether the body has been fully received/sent.
	IsEnd() bool
}

// AsyncSender is the async response-send handle spec.md §4.7 describes: an
// h2.Control attaches one to every Request it builds (the push-promise
// sender channel's same role, generalized to any response), letting a
// Handler stash it and call Send later — from another goroutine, once a
// response becomes ready — instead of returning one synchronously from
// Operate. HTTP/1.1 requests leave this nil: a single in-order byte stream
// has no equivalent deferred-send path.
type AsyncSender interface {
	// Send pushes resp onto the owning Control's write loop. It does not
	// block on the frame actually being written, only on handing it off.
	Send(ctx context.Context, resp *Response)
}

// Request is the parsed representation of an HTTP/1.1 or HTTP/2 request,
// shared by both connection engines.
type Request struct {
	Proto  Proto
	Method string
	Path   string
	Header http.Header

	Body Body

	// StreamID is 0 for HTTP/1.1 requests and the HTTP/2 stream identifier
	// for requests parsed off a Control.
	StreamID uint32

	// TraceID/SpanID are populated from the traceparent header (or
	// generated) by the connection engine before the Handler sees the
	// request.
	TraceID [16]byte
	SpanID  [8]byte

	// Send is the async response handle for this request (see
	// AsyncSender), non-nil only for requests an h2.Control built. A
	// Handler that stashes and uses it should answer ProcessRequest/
	// Operate with (nil, nil) so the engine doesn't also synthesize a
	// default response.
	Send AsyncSender
}

// Response is the parsed or to-be-sent representation of an HTTP/1.1 or
// HTTP/2 response.
type Response struct {
	Proto  Proto
	Status int
	Header http.Header

	Body Body

	StreamID uint32

	// DidUpgrade records whether a 101 response carried an actual protocol
	// switch. The engine never sets or reads it (see the client-101 Open
	// Question resolution); only a Handler sets it, and the engine performs
	// no connection hand-off based on it.
	DidUpgrade bool
}

// NewRequest returns a Request with an initialized Header map.
func NewRequest() *Request {
	return &Request{Header: make(http.Header)}
}

// NewResponse returns a Response with an initialized Header map.
func NewResponse() *Response {
	return &Response{Header: make(http.Header)}
}
