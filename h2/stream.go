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

package h2

import (
	"net/http"
	"strconv"

	"golang.org/x/net/http2/hpack"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/webparse"
)

// streamPhase tracks where in HEADERS → DATA* → trailers an InnerStream
// is, so push rejects frames arriving out of order.
type streamPhase int

const (
	phaseHeaders streamPhase = iota
	phaseData
	phaseTrailers
	phaseDone
)

// InnerStream accumulates the frames belonging to one HTTP/2 stream id
// until its headers (and optionally trailers) are complete, then exposes
// a streaming Body fed by subsequent DATA frames — the Go rendering of
// the Rust original's proto::http2::recv_stream::RecvStream plus
// protocol::http2::inner_stream::InnerStream's push/build_request.
type InnerStream struct {
	streamID uint32

	phase  streamPhase
	method string
	path   string
	status int
	header http.Header

	dataCh        chan body.Chunk
	bd            *body.Body
	endStreamSeen bool
}

// newInnerStream starts accumulating a stream from its first HEADERS
// frame's decoded fields.
func newInnerStream(streamID uint32, fields []hpack.HeaderField, endHeaders, endStream bool) (*InnerStream, error) {
	s := &InnerStream{
		streamID: streamID,
		header:   make(http.Header),
	}
	s.applyFields(fields)
	if endHeaders {
		s.phase = phaseData
	}
	if endStream {
		return s, s.finish()
	}
	s.dataCh = make(chan body.Chunk, 8)
	s.bd = body.New(s.dataCh, nil, false)
	return s, nil
}

func (s *InnerStream) applyFields(fields []hpack.HeaderField) {
	for _, f := range fields {
		switch f.Name {
		case ":method":
			s.method = f.Value
		case ":path":
			s.path = f.Value
		case ":scheme":
			// Not surfaced on webparse.Request today; HTTP/2 is always
			// served over one scheme per listener in this engine.
		case ":authority":
			if s.header.Get("Host") == "" {
				s.header.Set("Host", f.Value)
			}
		case ":status":
			if n, err := strconv.Atoi(f.Value); err == nil {
				s.status = n
			}
		default:
			s.header.Add(f.Name, f.Value)
		}
	}
}

// pushHeaderFields appends more decoded fields from a CONTINUATION frame
// (or trailers) to the accumulated header set.
func (s *InnerStream) pushHeaderFields(fields []hpack.HeaderField, endHeaders, endStream bool) error {
	if s.phase == phaseDone {
		return webparse.NewError(webparse.KindProtocolViolation, "h2: stream %d received headers after stream end", s.streamID)
	}
	s.applyFields(fields)
	if endHeaders && s.phase == phaseHeaders {
		s.phase = phaseData
		s.dataCh = make(chan body.Chunk, 8)
		s.bd = body.New(s.dataCh, nil, false)
	}
	if endStream {
		return s.finish()
	}
	return nil
}

// pushData delivers a DATA frame payload to the stream's Body.
func (s *InnerStream) pushData(data []byte, endStream bool) error {
	if s.phase != phaseData {
		return webparse.NewError(webparse.KindProtocolViolation, "h2: stream %d received DATA before headers completed", s.streamID)
	}
	if len(data) > 0 {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.dataCh <- body.Chunk{Data: cp, End: endStream}
	} else if endStream {
		s.dataCh <- body.Chunk{End: true}
	}
	if endStream {
		return s.finish()
	}
	return nil
}

func (s *InnerStream) finish() error {
	if s.endStreamSeen {
		return nil
	}
	s.endStreamSeen = true
	s.phase = phaseDone
	if s.dataCh != nil {
		close(s.dataCh)
	} else {
		s.bd = body.Empty()
	}
	return nil
}

// isComplete reports whether this stream's headers are fully accumulated
// and it is ready to be delivered to the Handler (its Body may still be
// streaming).
func (s *InnerStream) isComplete() bool {
	return s.phase == phaseData || s.phase == phaseDone
}

// buildRequest constructs a webparse.Request from the accumulated
// pseudo-headers and Body.
func (s *InnerStream) buildRequest() (*webparse.Request, error) {
	if s.method == "" || s.path == "" {
		return nil, webparse.NewError(webparse.KindProtocolViolation, "h2: stream %d missing :method/:path", s.streamID)
	}
	req := webparse.NewRequest()
	req.Proto = webparse.ProtoHTTP2
	req.Method = s.method
	req.Path = s.path
	req.Header = s.header
	req.StreamID = s.streamID
	req.Body = s.bd
	req.TraceID, req.SpanID = webparse.PopulateTrace(s.header)
	return req, nil
}

// buildResponse constructs a webparse.Response from the accumulated
// pseudo-headers and Body.
func (s *InnerStream) buildResponse() (*webparse.Response, error) {
	if s.status == 0 {
		return nil, webparse.NewError(webparse.KindProtocolViolation, "h2: stream %d missing :status", s.streamID)
	}
	resp := webparse.NewResponse()
	resp.Proto = webparse.ProtoHTTP2
	resp.Status = s.status
	resp.Header = s.header
	resp.StreamID = s.streamID
	resp.Body = s.bd
	return resp, nil
}
