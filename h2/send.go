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
	"context"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/logger"
	"github.com/packetd/httpcore/webparse"
)

// SendResponse encodes resp's headers (and, once they're written, its
// Body as DATA frames) onto resp.StreamID, the HTTP/2 half of spec.md
// §4.7's SendResponse/SendRequest pair. Grounded on the Rust original's
// Control::send_response.
func (c *Control) SendResponse(ctx context.Context, resp *webparse.Response) error {
	streamID := resp.StreamID
	fields := hpackFieldsForHeader([]hpack.HeaderField{
		{Name: ":status", Value: strconv.Itoa(resp.Status)},
	}, resp.Header)

	block, err := c.codec.EncodeHeaderBlock(fields)
	if err != nil {
		return webparse.WrapError(webparse.KindProtocolViolation, err, "h2: encode response headers")
	}

	bd := bodySource(resp.Body)

	done := make(chan error, 1)
	c.dataJobs <- func(codec *Codec) error {
		err := codec.writeHeaderFrames(streamID, false, block)
		done <- err
		return err
	}
	if err := <-done; err != nil {
		return err
	}

	go c.streamBody(ctx, streamID, bd)
	return nil
}

// SendRequest encodes req's headers and Body onto req.StreamID in client
// mode, allocating a fresh local stream id first if none was assigned.
func (c *Control) SendRequest(ctx context.Context, req *webparse.Request) error {
	if req.StreamID == 0 {
		c.streamsMu.Lock()
		req.StreamID = c.nextLocalStreamID
		c.nextLocalStreamID += 2
		c.sendWin.addStream(req.StreamID, c.sendWin.streamDefault())
		c.recvWin.addStream(req.StreamID, int64(c.config.InitialWindowSize))
		c.streamsMu.Unlock()
	}
	streamID := req.StreamID

	host := req.Header.Get("Host")
	fields := hpackFieldsForHeader([]hpack.HeaderField{
		{Name: ":method", Value: req.Method},
		{Name: ":path", Value: req.Path},
		{Name: ":scheme", Value: "http"},
		{Name: ":authority", Value: host},
	}, req.Header)

	block, err := c.codec.EncodeHeaderBlock(fields)
	if err != nil {
		return webparse.WrapError(webparse.KindProtocolViolation, err, "h2: encode request headers")
	}

	bd := bodySource(req.Body)

	done := make(chan error, 1)
	c.dataJobs <- func(codec *Codec) error {
		err := codec.writeHeaderFrames(streamID, false, block)
		done <- err
		return err
	}
	if err := <-done; err != nil {
		return err
	}

	go c.streamBody(ctx, streamID, bd)
	return nil
}

// asyncSendJob is one response queued on a SendControl, awaiting
// asyncSendLoop to actually hand it to SendResponse.
type asyncSendJob struct {
	ctx  context.Context
	resp *webparse.Response
}

// SendControl is the async response-send handle spec.md §4.7 describes: it
// owns a sender into the channel Control's own asyncSendLoop drains, so a
// Handler can hold on to one (e.g. pass it to another goroutine) and call
// Send whenever a response becomes ready, instead of returning it
// synchronously from Operate. Grounded on the Rust original's
// http2::send_response::SendControl.
type SendControl struct {
	c        *Control
	streamID uint32
}

// newSendControl builds the handle dispatchRequest attaches to every
// request it builds, mirroring build_request_frame's extensions_mut().
// insert(SendControl::new(...)).
func (c *Control) newSendControl(streamID uint32) *SendControl {
	return &SendControl{c: c, streamID: streamID}
}

// Send queues resp for delivery on this SendControl's stream. It blocks
// only on handing resp to asyncSendLoop (or ctx ending first), never on the
// frame actually reaching the wire.
func (s *SendControl) Send(ctx context.Context, resp *webparse.Response) {
	resp.StreamID = s.streamID
	select {
	case s.c.asyncSend <- asyncSendJob{ctx: ctx, resp: resp}:
	case <-ctx.Done():
	}
}

// asyncSendLoop drains every SendControl's queued responses and hands each
// to SendResponse, logging (rather than returning) failures since the
// Handler goroutine that called Send has likely already moved on.
func (c *Control) asyncSendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.asyncSend:
			if err := c.SendResponse(job.ctx, job.resp); err != nil {
				logger.Warnf("h2: async send for stream %d failed: %s", job.resp.StreamID, err)
			}
		}
	}
}

// PushPromise reserves a new server-initiated stream for promisedReq and
// sends resp on it, per spec.md §4.9. The caller has already decided the
// peer wants it (e.g. it isn't already cached).
func (c *Control) PushPromise(ctx context.Context, parentStreamID uint32, promisedReq *webparse.Request, resp *webparse.Response) error {
	c.streamsMu.Lock()
	promisedID := c.nextLocalStreamID
	c.nextLocalStreamID += 2
	c.sendWin.addStream(promisedID, c.sendWin.streamDefault())
	c.streamsMu.Unlock()

	host := promisedReq.Header.Get("Host")
	reqFields := hpackFieldsForHeader([]hpack.HeaderField{
		{Name: ":method", Value: promisedReq.Method},
		{Name: ":path", Value: promisedReq.Path},
		{Name: ":scheme", Value: "http"},
		{Name: ":authority", Value: host},
	}, promisedReq.Header)
	block, err := c.codec.EncodeHeaderBlock(reqFields)
	if err != nil {
		return webparse.WrapError(webparse.KindProtocolViolation, err, "h2: encode push promise headers")
	}

	done := make(chan error, 1)
	c.ctrlJobs <- func(codec *Codec) error {
		err := codec.WritePushPromise(http2.PushPromiseParam{
			StreamID:      parentStreamID,
			PromiseID:     promisedID,
			EndHeaders:    true,
			BlockFragment: block,
		})
		done <- err
		return err
	}
	if err := <-done; err != nil {
		return err
	}

	resp.StreamID = promisedID
	return c.SendResponse(ctx, resp)
}

// streamBody drains bd into flow-control-gated DATA frames until it ends
// or the connection is closed.
func (c *Control) streamBody(ctx context.Context, streamID uint32, bd *body.Body) {
	max := int(c.codec.MaxSendFrameSize())
	if max <= 0 {
		max = defaultMaxFrameSize
	}
	// Not bufpool-backed: writeDataFrame hands slices of buf to dataJobs
	// closures the write loop drains asynchronously, so nothing here can
	// say when it's safe to return the backing array to the pool.
	buf := make([]byte, max)

	for {
		n, err := bd.Read(ctx, buf)
		if n > 0 {
			if werr := c.writeDataFrame(ctx, streamID, buf[:n], false); werr != nil {
				logger.Warnf("h2: stream %d body write failed: %s", streamID, werr)
				return
			}
		}
		if err == io.EOF {
			if werr := c.writeDataFrame(ctx, streamID, nil, true); werr != nil {
				logger.Warnf("h2: stream %d final DATA failed: %s", streamID, werr)
			}
			return
		}
		if err != nil {
			logger.Warnf("h2: stream %d body read failed: %s", streamID, err)
			c.ctrlJobs <- func(codec *Codec) error {
				return codec.WriteRSTStream(streamID, http2.ErrCodeInternal)
			}
			return
		}
	}
}

// writeDataFrame splits data into as many flow-control-gated DATA frames
// as needed, acquiring send-window credit before each.
func (c *Control) writeDataFrame(ctx context.Context, streamID uint32, data []byte, endStream bool) error {
	if len(data) == 0 {
		if !endStream {
			return nil
		}
		c.dataJobs <- func(codec *Codec) error {
			return codec.WriteData(streamID, true, nil)
		}
		return nil
	}

	for len(data) > 0 {
		n, err := c.sendWin.acquire(ctx, streamID, len(data))
		if err != nil {
			return err
		}
		piece := data[:n]
		data = data[n:]
		last := len(data) == 0 && endStream
		c.dataJobs <- func(codec *Codec) error {
			return codec.WriteData(streamID, last, piece)
		}
	}
	return nil
}

// bodySource extracts the concrete *body.Body backing a webparse.Body
// interface value; h1/h2 always construct the concrete type, so the
// assertion only fails for a nil or foreign Body, in which case there's
// nothing to stream.
func bodySource(b webparse.Body) *body.Body {
	if b == nil {
		return body.Empty()
	}
	bd, ok := b.(*body.Body)
	if !ok {
		return body.Empty()
	}
	return bd
}

// toLowerHeader lowercases an http.Header-cased field name for HPACK,
// which requires lowercase field names on the wire (RFC 7540 §8.1.2).
func toLowerHeader(name string) string {
	return strings.ToLower(name)
}

// errorResponse builds the response a Handler failure is turned into,
// mirroring h1's errorResponse for the HTTP/2 dispatch path.
func errorResponse(err error) *webparse.Response {
	resp := webparse.NewResponse()
	status := 500
	if webparse.IsKind(err, webparse.KindParse) {
		status = 400
	}
	resp.Status = status
	msg := err.Error()
	resp.Body = body.NewText(msg)
	logger.Warnf("h2: handler error, responding %d: %s", status, msg)
	return resp
}
