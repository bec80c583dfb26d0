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
	"net/http"
	"strconv"
	"strings"
)

// HeaderHelper groups small pure predicates over header values, in the
// style of the teacher's checkChunkedEncoding/isJSONContentType decoder
// helpers, reused by both h1 and h2 header paths.
type HeaderHelper struct{}

// IsChunked reports whether Transfer-Encoding names "chunked" as its final
// coding, per RFC 7230 §3.3.1.
func (HeaderHelper) IsChunked(h http.Header) bool {
	v := h.Get(HeaderTransferEncoding)
	if v == "" {
		return false
	}
	parts := strings.Split(v, ",")
	last := strings.TrimSpace(parts[len(parts)-1])
	return strings.EqualFold(last, "chunked")
}

// ContentLength returns the parsed Content-Length and whether it was
// present and well-formed.
func (HeaderHelper) ContentLength(h http.Header) (int64, bool) {
	v := h.Get(HeaderContentLength)
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsKeepAlive reports whether the connection should persist after this
// message, given the declared Proto and the Connection header.
func (HeaderHelper) IsKeepAlive(proto Proto, h http.Header) bool {
	conn := h.Get(HeaderConnection)
	switch {
	case strings.EqualFold(conn, "close"):
		return false
	case strings.EqualFold(conn, "keep-alive"):
		return true
	default:
		// HTTP/1.1 defaults to persistent; HTTP/1.0 defaults to close.
		return proto == ProtoHTTP11 || proto == ProtoHTTP2
	}
}

// ResponseCompressMethod picks the Content-Encoding this engine should
// apply to an outbound body, given the peer's Accept-Encoding and a
// preference order (gzip, deflate, br tried in the order given).
func (HeaderHelper) ResponseCompressMethod(acceptEncoding string, prefer ...CompressMethod) CompressMethod {
	if acceptEncoding == "" {
		return CompressMethodNone
	}
	accepted := make(map[string]bool)
	for _, tok := range strings.Split(acceptEncoding, ",") {
		tok = strings.TrimSpace(tok)
		if i := strings.IndexByte(tok, ';'); i >= 0 {
			tok = tok[:i]
		}
		accepted[strings.ToLower(tok)] = true
	}
	for _, m := range prefer {
		if accepted[m.String()] {
			return m
		}
	}
	return CompressMethodNone
}

// RequestCompressMethod derives the decode-side compression from a
// Content-Encoding header value; unknown tokens map to CompressMethodNone,
// so a body with such an encoding is passed on undecoded.
func (HeaderHelper) RequestCompressMethod(contentEncoding string) CompressMethod {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		return CompressMethodGzip
	case "deflate":
		return CompressMethodDeflate
	case "br":
		return CompressMethodBrotli
	default:
		return CompressMethodNone
	}
}

// IsJSONContentType reports whether the Content-Type header names a JSON
// media type, matching the teacher's isJSONContentType predicate.
func (HeaderHelper) IsJSONContentType(h http.Header) bool {
	ct := h.Get("Content-Type")
	if ct == "" {
		return false
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	return strings.EqualFold(ct, "application/json") || strings.HasSuffix(strings.ToLower(ct), "+json")
}
