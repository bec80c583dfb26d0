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
	"io"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/packetd/httpcore/webparse"
	"github.com/packetd/httpcore/webparse/h2wire"
)

// Codec pairs a webparse/h2wire.Wire (Framer + HPACK) with the two pieces
// of per-connection bookkeeping the Rust original's Codec keeps alongside
// its FramedRead/FramedWrite: the table size and max frame size currently
// negotiated with the peer.
type Codec struct {
	wire *h2wire.Wire

	headerTableSize  uint32
	maxSendFrameSize uint32
}

// NewCodec wraps rw for HTTP/2 framing with the given initial HPACK
// dynamic table size.
func NewCodec(rw io.ReadWriter, headerTableSize uint32) *Codec {
	return &Codec{
		wire:             h2wire.New(rw, headerTableSize),
		headerTableSize:  headerTableSize,
		maxSendFrameSize: defaultMaxFrameSize,
	}
}

// ReadFrame reads the next frame off the wire.
func (c *Codec) ReadFrame() (http2.Frame, error) {
	return c.wire.ReadFrame()
}

// DecodeHeaderBlock HPACK-decodes a concatenated HEADERS(+CONTINUATION)
// payload.
func (c *Codec) DecodeHeaderBlock(block []byte) ([]hpack.HeaderField, error) {
	return c.wire.DecodeHeaderBlock(block)
}

// EncodeHeaderBlock HPACK-encodes fields ready for splitting into
// HEADERS+CONTINUATION frames by the caller.
func (c *Codec) EncodeHeaderBlock(fields []hpack.HeaderField) ([]byte, error) {
	return c.wire.EncodeHeaderBlock(fields)
}

// SetSendHeaderTableSize resizes the HPACK encoder's table in response to
// the peer's SETTINGS_HEADER_TABLE_SIZE.
func (c *Codec) SetSendHeaderTableSize(size uint32) {
	c.headerTableSize = size
	c.wire.SetMaxDynamicTableSize(size)
}

// SetMaxSendFrameSize bounds the maximum DATA payload per frame, in
// response to the peer's SETTINGS_MAX_FRAME_SIZE.
func (c *Codec) SetMaxSendFrameSize(size uint32) {
	c.maxSendFrameSize = size
}

// MaxSendFrameSize returns the current outbound frame size cap.
func (c *Codec) MaxSendFrameSize() uint32 {
	return c.maxSendFrameSize
}

func (c *Codec) WriteSettings(settings ...http2.Setting) error {
	return c.wire.WriteSettings(settings...)
}

func (c *Codec) WriteSettingsAck() error {
	return c.wire.WriteSettingsAck()
}

func (c *Codec) WriteData(streamID uint32, endStream bool, data []byte) error {
	return c.wire.WriteData(streamID, endStream, data)
}

func (c *Codec) WriteHeaders(p http2.HeadersFrameParam) error {
	return c.wire.WriteHeaders(p)
}

func (c *Codec) WriteContinuation(streamID uint32, endHeaders bool, block []byte) error {
	return c.wire.WriteContinuation(streamID, endHeaders, block)
}

func (c *Codec) WriteRSTStream(streamID uint32, code http2.ErrCode) error {
	return c.wire.WriteRSTStream(streamID, code)
}

func (c *Codec) WritePing(ack bool, data [8]byte) error {
	return c.wire.WritePing(ack, data)
}

func (c *Codec) WriteGoAway(maxStreamID uint32, code http2.ErrCode, debugData []byte) error {
	return c.wire.WriteGoAway(maxStreamID, code, debugData)
}

func (c *Codec) WriteWindowUpdate(streamID, incr uint32) error {
	return c.wire.WriteWindowUpdate(streamID, incr)
}

func (c *Codec) WritePriority(streamID uint32, p http2.PriorityParam) error {
	return c.wire.WritePriority(streamID, p)
}

func (c *Codec) WritePushPromise(p http2.PushPromiseParam) error {
	return c.wire.WritePushPromise(p)
}

// writeHeaderFrames splits an HPACK-encoded block into HEADERS + however
// many CONTINUATION frames are needed to stay within maxSendFrameSize.
func (c *Codec) writeHeaderFrames(streamID uint32, endStream bool, block []byte) error {
	max := int(c.maxSendFrameSize)
	if max <= 0 {
		max = defaultMaxFrameSize
	}

	first := block
	rest := []byte(nil)
	endHeaders := true
	if len(block) > max {
		first = block[:max]
		rest = block[max:]
		endHeaders = false
	}

	if err := c.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		EndStream:     endStream,
		EndHeaders:    endHeaders,
		BlockFragment: first,
	}); err != nil {
		return webparse.WrapError(webparse.KindIo, err, "h2: write headers")
	}

	for len(rest) > 0 {
		chunk := rest
		last := true
		if len(chunk) > max {
			chunk = rest[:max]
			last = false
		}
		if err := c.WriteContinuation(streamID, last, chunk); err != nil {
			return webparse.WrapError(webparse.KindIo, err, "h2: write continuation")
		}
		rest = rest[len(chunk):]
	}
	return nil
}
