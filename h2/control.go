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
	"net"
	"sync"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/packetd/httpcore/handler"
	"github.com/packetd/httpcore/internal/connkey"
	"github.com/packetd/httpcore/internal/pubsub"
	"github.com/packetd/httpcore/internal/rescue"
	"github.com/packetd/httpcore/internal/ttlcache"
	"github.com/packetd/httpcore/logger"
	"github.com/packetd/httpcore/webparse"
)

// frameJob is one unit of outbound work: HPACK-encoding and writing must
// happen on Control's single writer goroutine so the shared dynamic table
// stays consistent with emission order.
type frameJob func(codec *Codec) error

// pendingHeaders accumulates a HEADERS frame (and any CONTINUATION
// frames) that hasn't yet reached END_HEADERS, per spec.md §4.4's
// "Partial holder" — HTTP/2 forbids interleaving other frames into a
// header block, so only one of these is ever in flight per connection.
type pendingHeaders struct {
	streamID  uint32
	block     []byte
	endStream bool
}

// Control is the HTTP/2 connection-level state machine multiplexing many
// InnerStreams over one Codec: settings/goaway/ping-pong handshaking,
// per-stream flow control, and dispatch to a Handler. Grounded on the Rust
// original's protocol::http2::control::Control, translated from its
// poll_request/poll_response loop into two blocking goroutines.
type Control struct {
	conn    net.Conn
	codec   *Codec
	config  ControlConfig
	handler handler.Handler
	connKey uint64

	streamsMu         sync.Mutex
	streams           map[uint32]*InnerStream
	lastRecvStreamID  uint32
	nextLocalStreamID uint32

	sendWin *sendWindows
	recvWin *recvWindows

	ctrlJobs chan frameJob
	dataJobs chan frameJob

	// asyncSend is the channel every SendControl handed out to a Handler
	// shares, drained by asyncSendLoop — the Go rendering of the Rust
	// original's sender_push/SendControl pair.
	asyncSend chan asyncSendJob

	resetSeen *ttlcache.Cache

	lifecycle *pubsub.PubSub

	goAwayMu  sync.Mutex
	goAwayErr *multierror.Error

	closeOnce sync.Once
}

// NewControl wraps conn for HTTP/2 multiplexing.
func NewControl(conn net.Conn, config ControlConfig, h handler.Handler) *Control {
	return &Control{
		conn:              conn,
		codec:             NewCodec(conn, config.HeaderTableSize),
		config:            config,
		handler:           h,
		connKey:           connkey.Conn(conn.LocalAddr().String(), conn.RemoteAddr().String()),
		streams:           make(map[uint32]*InnerStream),
		nextLocalStreamID: firstStreamID(config.IsServer),
		sendWin:           newSendWindows(int64(defaultInitialWindowSize)),
		recvWin:           newRecvWindows(int64(config.InitialWindowSize)),
		ctrlJobs:          make(chan frameJob, jobQueueDepth(config)),
		dataJobs:          make(chan frameJob, jobQueueDepth(config)),
		asyncSend:         make(chan asyncSendJob, jobQueueDepth(config)),
		resetSeen:         ttlcache.New(config.ResetStreamCooldown),
		lifecycle:         pubsub.New(),
	}
}

// jobQueueDepth bounds how many unflushed frame writes Control queues
// before SendResponse/SendRequest callers start backpressuring on a full
// channel, derived from ControlConfig.MaxSendBufferSize so a configured
// byte budget roughly caps outstanding frames rather than an arbitrary
// constant.
func jobQueueDepth(config ControlConfig) int {
	depth := config.MaxSendBufferSize / defaultMaxFrameSize
	if depth < 16 {
		depth = 16
	}
	if depth > 1024 {
		depth = 1024
	}
	return depth
}

// Serve drives the connection until it closes or ctx is done: handshake,
// then a reader and a writer goroutine pumping frames in both directions.
func (c *Control) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.Close()
	defer c.resetSeen.Close()

	if err := c.handshake(); err != nil {
		return err
	}

	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writeLoop(ctx)
	}()

	asyncDone := make(chan struct{})
	go func() {
		defer close(asyncDone)
		c.asyncSendLoop(ctx)
	}()

	// Queued rather than written directly: writeLoop isn't draining yet
	// when Serve reaches this line, and a direct blocking write here
	// could deadlock against a peer that's also blocked writing its own
	// preface follow-up before reading ours.
	c.ctrlJobs <- c.sendInitialSettings

	readErr := c.readLoop(ctx)
	cancel()
	<-writeDone
	<-asyncDone
	return readErr
}

// handshake reads (server) or writes (client) the HTTP/2 connection
// preface, per spec.md §4.6 step 1.
func (c *Control) handshake() error {
	if c.config.IsServer {
		buf := make([]byte, len(webparse.HTTP2Preface))
		if _, err := io.ReadFull(c.conn, buf); err != nil {
			return webparse.WrapError(webparse.KindIo, err, "h2: read connection preface")
		}
		if string(buf) != webparse.HTTP2Preface {
			return webparse.NewError(webparse.KindProtocolViolation, "h2: bad connection preface")
		}
		return nil
	}
	if _, err := io.WriteString(c.conn, webparse.HTTP2Preface); err != nil {
		return webparse.WrapError(webparse.KindIo, err, "h2: write connection preface")
	}
	return nil
}

func (c *Control) sendInitialSettings(codec *Codec) error {
	return codec.WriteSettings(
		http2.Setting{ID: http2.SettingHeaderTableSize, Val: c.config.HeaderTableSize},
		http2.Setting{ID: http2.SettingInitialWindowSize, Val: c.config.InitialWindowSize},
		http2.Setting{ID: http2.SettingMaxFrameSize, Val: c.config.MaxFrameSize},
		http2.Setting{ID: http2.SettingMaxConcurrentStreams, Val: c.config.MaxConcurrentStreams},
	)
}

// Close closes the underlying connection, safe to call more than once. If
// the peer sent one or more GOAWAY frames before the close, their reasons
// are logged.
func (c *Control) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.goAwayMu.Lock()
		goAway := c.goAwayErr.ErrorOrNil()
		c.goAwayMu.Unlock()
		if goAway != nil {
			logger.Warnf("h2: closing after peer GOAWAY: %s", goAway)
		}
		err = c.conn.Close()
	})
	return err
}

// writeLoop drains ctrlJobs ahead of dataJobs whenever both are ready,
// realizing spec.md §4.6's "control frames take precedence over DATA"
// tie-break.
func (c *Control) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.ctrlJobs:
			c.runJob(job)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return
		case job := <-c.ctrlJobs:
			c.runJob(job)
		case job := <-c.dataJobs:
			c.runJob(job)
		}
	}
}

func (c *Control) runJob(job frameJob) {
	if err := job(c.codec); err != nil {
		logger.Warnf("h2: write failed, closing connection: %s", err)
		c.Close()
	}
}

// readLoop parses one frame at a time, assembling HEADERS/CONTINUATION
// sequences and dispatching completed streams to the Handler, per
// spec.md §4.6 steps 5-6.
func (c *Control) readLoop(ctx context.Context) error {
	var pending *pendingHeaders

	for {
		frame, err := c.codec.ReadFrame()
		if err != nil {
			return err
		}

		switch f := frame.(type) {
		case *http2.SettingsFrame:
			if err := c.handleSettings(f); err != nil {
				return err
			}

		case *http2.HeadersFrame:
			pending = &pendingHeaders{
				streamID:  f.StreamID,
				block:     append([]byte(nil), f.HeaderBlockFragment()...),
				endStream: f.StreamEnded(),
			}
			if f.HeadersEnded() {
				if err := c.finishHeaders(ctx, pending); err != nil {
					return err
				}
				pending = nil
			}

		case *http2.ContinuationFrame:
			if pending == nil || pending.streamID != f.StreamID {
				return webparse.NewError(webparse.KindProtocolViolation, "h2: unexpected CONTINUATION")
			}
			pending.block = append(pending.block, f.HeaderBlockFragment()...)
			if f.HeadersEnded() {
				if err := c.finishHeaders(ctx, pending); err != nil {
					return err
				}
				pending = nil
			}

		case *http2.DataFrame:
			if err := c.handleData(f); err != nil {
				return err
			}

		case *http2.PriorityFrame:
			// Scheduling is FIFO-on-arrival (Open Question #3); priority
			// hints don't change delivery order in this engine.

		case *http2.PingFrame:
			c.handlePing(f)

		case *http2.GoAwayFrame:
			c.handleGoAway(ctx, f)

		case *http2.WindowUpdateFrame:
			c.sendWin.credit(f.StreamID, int64(f.Increment))

		case *http2.RSTStreamFrame:
			c.handleRSTStream(f)
		}
	}
}

func (c *Control) handleSettings(f *http2.SettingsFrame) error {
	if f.IsAck() {
		return nil
	}
	err := f.ForeachSetting(func(s http2.Setting) error {
		switch s.ID {
		case http2.SettingHeaderTableSize:
			c.codec.SetSendHeaderTableSize(s.Val)
		case http2.SettingMaxFrameSize:
			c.codec.SetMaxSendFrameSize(s.Val)
		case http2.SettingInitialWindowSize:
			c.sendWin.setStreamDefault(int64(s.Val))
		}
		return nil
	})
	if err != nil {
		return webparse.WrapError(webparse.KindProtocolViolation, err, "h2: bad SETTINGS frame")
	}
	c.ctrlJobs <- func(codec *Codec) error {
		return codec.WriteSettingsAck()
	}
	return nil
}

func (c *Control) handlePing(f *http2.PingFrame) {
	if f.IsAck() {
		return
	}
	data := f.Data
	c.ctrlJobs <- func(codec *Codec) error {
		return codec.WritePing(true, data)
	}
}

// handleGoAway records the peer's reason and applies spec.md §4.6's
// differentiated handling: NO_ERROR is a graceful-shutdown notice, so
// every stream already open is left to drain to completion; any other
// reason means the peer is reporting a fault, and only the streams it
// says it never processed (id > LastStreamID) are failed — streams at or
// below that id are unaffected and keep running.
func (c *Control) handleGoAway(ctx context.Context, f *http2.GoAwayFrame) {
	c.goAwayMu.Lock()
	c.goAwayErr = multierror.Append(c.goAwayErr,
		webparse.NewError(webparse.KindProtocolViolation, "h2: GOAWAY last_stream_id=%d code=%s", f.LastStreamID, f.ErrCode))
	c.goAwayMu.Unlock()
	c.lifecycle.Publish("goaway")

	if f.ErrCode == http2.ErrCodeNo {
		return
	}

	var unprocessed []*InnerStream
	c.streamsMu.Lock()
	for id, s := range c.streams {
		if id > f.LastStreamID {
			unprocessed = append(unprocessed, s)
			delete(c.streams, id)
		}
	}
	c.streamsMu.Unlock()

	for _, s := range unprocessed {
		c.sendWin.removeStream(s.streamID)
		_ = s.finish()
		c.handler.ProcessError(ctx, webparse.NewError(webparse.KindProtocolViolation,
			"h2: GOAWAY code=%s: stream %d not processed by peer", f.ErrCode, s.streamID))
	}
}

// handleRSTStream removes the stream and applies the Rapid Reset
// mitigation: too many resets within the cooldown window triggers a
// defensive GOAWAY.
func (c *Control) handleRSTStream(f *http2.RSTStreamFrame) {
	c.streamsMu.Lock()
	delete(c.streams, f.StreamID)
	c.streamsMu.Unlock()
	c.sendWin.removeStream(f.StreamID)

	c.resetSeen.Set(f.StreamID)
	if c.resetSeen.Count() > c.config.ResetStreamMax {
		logger.Warnf("h2: %d stream resets within %s, sending GOAWAY", c.resetSeen.Count(), c.config.ResetStreamCooldown)
		c.goAwayNow(http2.ErrCodeEnhanceYourCalm)
	}
}

// goAwayDebugData is marshaled onto the GOAWAY frame's debug data field so
// a peer's network capture shows why the connection was torn down, rather
// than a bare error code.
type goAwayDebugData struct {
	Reason       string `json:"reason"`
	ResetStreams int    `json:"reset_streams"`
	LastStreamID uint32 `json:"last_stream_id"`
}

func (c *Control) goAwayNow(code http2.ErrCode) {
	last := c.lastRecvStreamID
	debug, err := json.Marshal(goAwayDebugData{
		Reason:       "rapid reset: too many RST_STREAM frames",
		ResetStreams: c.resetSeen.Count(),
		LastStreamID: last,
	})
	if err != nil {
		debug = nil
	}
	c.ctrlJobs <- func(codec *Codec) error {
		return codec.WriteGoAway(last, code, debug)
	}
}

func (c *Control) handleData(f *http2.DataFrame) error {
	c.streamsMu.Lock()
	s, ok := c.streams[f.StreamID]
	c.streamsMu.Unlock()
	if !ok {
		return webparse.NewError(webparse.KindProtocolViolation, "h2: DATA for unknown stream %d", f.StreamID)
	}

	data := f.Data()
	if err := s.pushData(data, f.StreamEnded()); err != nil {
		return err
	}
	c.recvWin.consume(c, f.StreamID, int64(len(data)))
	return nil
}

// finishHeaders decodes a completed HEADERS(+CONTINUATION) block, creates
// or updates the stream, and — once the stream's headers (and, for a
// headers-only message, the whole stream) are complete — dispatches it to
// the Handler.
func (c *Control) finishHeaders(ctx context.Context, p *pendingHeaders) error {
	fields, err := c.codec.DecodeHeaderBlock(p.block)
	if err != nil {
		return err
	}

	c.streamsMu.Lock()
	s, ok := c.streams[p.streamID]
	var buildErr error
	if !ok {
		s, buildErr = newInnerStream(p.streamID, fields, true, p.endStream)
		if buildErr == nil {
			c.streams[p.streamID] = s
			c.sendWin.addStream(p.streamID, c.sendWin.streamDefault())
			if !p.endStream {
				c.recvWin.addStream(p.streamID, int64(c.config.InitialWindowSize))
			}
		}
	} else {
		buildErr = s.pushHeaderFields(fields, true, p.endStream)
	}
	if p.streamID > c.lastRecvStreamID {
		c.lastRecvStreamID = p.streamID
	}
	c.streamsMu.Unlock()
	if buildErr != nil {
		return buildErr
	}

	if s.isComplete() {
		c.dispatch(ctx, s)
	}
	return nil
}

// dispatch hands a completed stream to the Handler in its own goroutine;
// unlike h1's single TCP byte-stream, HTTP/2 streams are independently
// ordered so there is no FIFO to preserve across streams.
func (c *Control) dispatch(ctx context.Context, s *InnerStream) {
	go func() {
		defer rescue.HandleCrash()
		if c.config.IsServer {
			c.dispatchRequest(ctx, s)
		} else {
			c.dispatchResponse(ctx, s)
		}
	}()
}

func (c *Control) dispatchRequest(ctx context.Context, s *InnerStream) {
	req, err := s.buildRequest()
	if err != nil {
		c.handler.ProcessError(ctx, err)
		return
	}
	req.Send = c.newSendControl(s.streamID)

	resp, err := c.handler.ProcessRequest(ctx, req)
	if err == nil && resp == nil {
		resp, err = c.handler.Operate(ctx, req)
	}
	if err == nil && resp != nil {
		err = c.handler.ProcessResponse(ctx, resp)
	}
	if err != nil {
		c.handler.ProcessError(ctx, err)
		resp = errorResponse(err)
	}
	if resp == nil {
		// A nil response with no error means the Handler stashed req.Send
		// and will deliver a response asynchronously instead (spec.md
		// §4.7); there's nothing left to send on this goroutine.
		return
	}
	resp.StreamID = s.streamID
	if err := c.SendResponse(ctx, resp); err != nil {
		c.handler.ProcessError(ctx, err)
	}
}

func (c *Control) dispatchResponse(ctx context.Context, s *InnerStream) {
	resp, err := s.buildResponse()
	if err != nil {
		c.handler.ProcessError(ctx, err)
		return
	}
	if err := c.handler.ProcessResponse(ctx, resp); err != nil {
		c.handler.ProcessError(ctx, err)
	}
}

// hpackFieldsForHeader converts a status/method+path plus an http.Header
// into the pseudo-header-first field list HPACK requires.
func hpackFieldsForHeader(pseudo []hpack.HeaderField, h map[string][]string) []hpack.HeaderField {
	fields := make([]hpack.HeaderField, 0, len(pseudo)+len(h))
	fields = append(fields, pseudo...)
	for name, values := range h {
		for _, v := range values {
			fields = append(fields, hpack.HeaderField{Name: toLowerHeader(name), Value: v})
		}
	}
	return fields
}
