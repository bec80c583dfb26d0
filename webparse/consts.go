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

// Package webparse holds the message types, error taxonomy and small wire
// helpers (header predicates, chunked encoding, HTTP/2 frame+HPACK) shared
// by the h1 and h2 connection engines.
package webparse

// CompressMethod enumerates the Content-Encoding / Accept-Encoding tokens
// this engine understands, mirroring the Rust original's `Consts::COMPRESS_METHOD_*`.
type CompressMethod int8

const (
	CompressMethodNone CompressMethod = iota
	CompressMethodGzip
	CompressMethodDeflate
	CompressMethodBrotli
)

// String implements fmt.Stringer.
func (m CompressMethod) String() string {
	switch m {
	case CompressMethodGzip:
		return "gzip"
	case CompressMethodDeflate:
		return "deflate"
	case CompressMethodBrotli:
		return "br"
	default:
		return "identity"
	}
}

const (
	// HeaderContentEncoding names the response-direction compression header.
	HeaderContentEncoding = "Content-Encoding"
	// HeaderAcceptEncoding names the request-direction compression negotiation header.
	HeaderAcceptEncoding = "Accept-Encoding"
	// HeaderTransferEncoding names the chunked-transfer header.
	HeaderTransferEncoding = "Transfer-Encoding"
	// HeaderContentLength names the fixed-length body size header.
	HeaderContentLength = "Content-Length"
	// HeaderConnection names the HTTP/1.1 connection-management header.
	HeaderConnection = "Connection"
	// HeaderTraceParent is the W3C trace context propagation header.
	HeaderTraceParent = "traceparent"
)

// Proto identifies the HTTP version of a message.
type Proto int8

const (
	ProtoUnknown Proto = iota
	ProtoHTTP11
	ProtoHTTP2
)

// String implements fmt.Stringer.
func (p Proto) String() string {
	switch p {
	case ProtoHTTP11:
		return "HTTP/1.1"
	case ProtoHTTP2:
		return "HTTP/2.0"
	default:
		return "unknown"
	}
}

// HTTP2Preface is the 24-byte connection preface a client must send before
// any HTTP/2 frame, used by h1 to detect an h2c/prior-knowledge upgrade.
const HTTP2Preface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"
