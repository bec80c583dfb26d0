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

// Package h2wire is the concrete "external webparse collaborator" for
// HTTP/2: a thin wrapper around golang.org/x/net/http2's Framer and
// hpack's Encoder/Decoder, giving h2.Codec a frame+header-compression
// primitive to drive without owning the wire format itself.
package h2wire

import (
	"bytes"
	"io"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/packetd/httpcore/webparse"
)

// Wire bundles a Framer with a persistent HPACK encoder/decoder pair — the
// dynamic table must survive across frames for the lifetime of the
// connection, per HTTP/2 §4.3.
type Wire struct {
	framer *http2.Framer

	encBuf *bytes.Buffer
	henc   *hpack.Encoder
	hdec   *hpack.Decoder
}

// New wraps rw with a Framer and a fresh HPACK encoder/decoder pair.
// maxHeaderTableSize sets the decoder's dynamic table size; the encoder
// starts with HPACK's default 4096-byte table.
func New(rw io.ReadWriter, maxHeaderTableSize uint32) *Wire {
	// ReadMetaHeaders is left nil: h2.Codec consumes raw HEADERS/CONTINUATION
	// frames and drives HPACK decoding itself via DecodeHeaderBlock.
	framer := http2.NewFramer(rw, rw)

	buf := new(bytes.Buffer)
	w := &Wire{
		framer: framer,
		encBuf: buf,
		henc:   hpack.NewEncoder(buf),
	}
	w.hdec = hpack.NewDecoder(maxHeaderTableSize, nil)
	return w
}

// SetMaxDynamicTableSize adjusts the encoder's dynamic table size, called
// when the peer's SETTINGS_HEADER_TABLE_SIZE arrives.
func (w *Wire) SetMaxDynamicTableSize(v uint32) {
	w.henc.SetMaxDynamicTableSize(v)
}

// ReadFrame reads and returns the next frame off the wire.
func (w *Wire) ReadFrame() (http2.Frame, error) {
	f, err := w.framer.ReadFrame()
	if err != nil {
		return nil, webparse.WrapError(webparse.KindIo, err, "h2wire: read frame")
	}
	return f, nil
}

// DecodeHeaderBlock parses a concatenated HEADERS(+CONTINUATION) payload
// into HPACK fields, updating the shared dynamic table as a side effect.
func (w *Wire) DecodeHeaderBlock(block []byte) ([]hpack.HeaderField, error) {
	fields, err := w.hdec.DecodeFull(block)
	if err != nil {
		return nil, webparse.WrapError(webparse.KindCompression, err, "h2wire: hpack decode")
	}
	return fields, nil
}

// EncodeHeaderBlock serializes fields through the shared HPACK encoder and
// returns the resulting block, ready to be split into HEADERS+CONTINUATION
// frames by the caller if it exceeds the peer's max frame size.
func (w *Wire) EncodeHeaderBlock(fields []hpack.HeaderField) ([]byte, error) {
	w.encBuf.Reset()
	for _, f := range fields {
		if err := w.henc.WriteField(f); err != nil {
			return nil, webparse.WrapError(webparse.KindCompression, err, "h2wire: hpack encode")
		}
	}
	out := make([]byte, w.encBuf.Len())
	copy(out, w.encBuf.Bytes())
	return out, nil
}

// WriteSettings writes a SETTINGS frame.
func (w *Wire) WriteSettings(settings ...http2.Setting) error {
	return wrapIo(w.framer.WriteSettings(settings...))
}

// WriteSettingsAck acknowledges a peer SETTINGS frame.
func (w *Wire) WriteSettingsAck() error {
	return wrapIo(w.framer.WriteSettingsAck())
}

// WriteData writes a DATA frame.
func (w *Wire) WriteData(streamID uint32, endStream bool, data []byte) error {
	return wrapIo(w.framer.WriteData(streamID, endStream, data))
}

// WriteHeaders writes a HEADERS frame (the caller has already split the
// HPACK block to fit within the peer's max frame size).
func (w *Wire) WriteHeaders(p http2.HeadersFrameParam) error {
	return wrapIo(w.framer.WriteHeaders(p))
}

// WriteContinuation writes a CONTINUATION frame.
func (w *Wire) WriteContinuation(streamID uint32, endHeaders bool, block []byte) error {
	return wrapIo(w.framer.WriteContinuation(streamID, endHeaders, block))
}

// WriteRSTStream writes an RST_STREAM frame.
func (w *Wire) WriteRSTStream(streamID uint32, code http2.ErrCode) error {
	return wrapIo(w.framer.WriteRSTStream(streamID, code))
}

// WritePing writes a PING frame.
func (w *Wire) WritePing(ack bool, data [8]byte) error {
	return wrapIo(w.framer.WritePing(ack, data))
}

// WriteGoAway writes a GOAWAY frame.
func (w *Wire) WriteGoAway(maxStreamID uint32, code http2.ErrCode, debugData []byte) error {
	return wrapIo(w.framer.WriteGoAway(maxStreamID, code, debugData))
}

// WriteWindowUpdate writes a WINDOW_UPDATE frame.
func (w *Wire) WriteWindowUpdate(streamID, incr uint32) error {
	return wrapIo(w.framer.WriteWindowUpdate(streamID, incr))
}

// WritePriority writes a PRIORITY frame.
func (w *Wire) WritePriority(streamID uint32, p http2.PriorityParam) error {
	return wrapIo(w.framer.WritePriority(streamID, p))
}

// WritePushPromise writes a PUSH_PROMISE frame.
func (w *Wire) WritePushPromise(p http2.PushPromiseParam) error {
	return wrapIo(w.framer.WritePushPromise(p))
}

// SetMaxReadFrameSize bounds the frame size this wire will accept from the
// peer, applied after a local SETTINGS_MAX_FRAME_SIZE change.
func (w *Wire) SetMaxReadFrameSize(v uint32) {
	w.framer.SetMaxReadFrameSize(v)
}

func wrapIo(err error) error {
	return webparse.WrapError(webparse.KindIo, err, "h2wire: write frame")
}
