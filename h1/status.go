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

// Package h1 is the HTTP/1.1 per-connection engine: IoBuffer-style request/
// response framing over a net.Conn, with pipelining, keep-alive and an h2c
// upgrade detection, per the Rust original's http1/io.rs.
package h1

// SendStatus tracks one direction (request or response) of a connection's
// message framing state. The Rust original overloads a single
// left_read_body_len for both "chunked" and "read until close"; this
// splits that into two explicit booleans instead (documented Open
// Question resolution).
type SendStatus struct {
	IsSendHeader bool
	IsSendBody   bool
	IsSendFinish bool

	IsReadHeaderEnd bool
	IsReadFinish    bool

	// Chunked is true while draining a chunked-transfer body.
	Chunked bool
	// CloseDelimited is true for an HTTP/1.0-style body with no declared
	// length, read until the peer closes the connection.
	CloseDelimited bool
	// LeftReadBodyLen counts remaining bytes for a declared
	// Content-Length body; meaningless when Chunked or CloseDelimited.
	LeftReadBodyLen int64
}

// Clear resets both read and write state for reuse across a pipelined
// message.
func (s *SendStatus) Clear() {
	s.ClearRead()
	s.ClearWrite()
}

// ClearRead resets only the read-direction state.
func (s *SendStatus) ClearRead() {
	s.IsReadHeaderEnd = false
	s.IsReadFinish = false
	s.Chunked = false
	s.CloseDelimited = false
	s.LeftReadBodyLen = 0
}

// ClearWrite resets only the write-direction state.
func (s *SendStatus) ClearWrite() {
	s.IsSendHeader = false
	s.IsSendBody = false
	s.IsSendFinish = false
}
