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
	"sync"

	"github.com/packetd/httpcore/webparse"
)

// errStreamGone is returned by sendWindows.acquire once the stream has
// been removed (reset or finished) from under a still-running body
// producer goroutine.
var errStreamGone = webparse.NewError(webparse.KindProtocolViolation, "h2: stream no longer open")

// sendWindows tracks the connection-level and per-stream outbound flow
// control credit DATA emission is capped by, per spec.md §4.6's
// min(stream_window, connection_window, max_send_frame_size) rule. A
// generation channel that's replaced on every credit increase lets
// waiters block without polling, the Go rendering of the Rust original's
// Poll-based window-wait.
type sendWindows struct {
	mu            sync.Mutex
	conn          int64
	streamDefault int64
	streams       map[uint32]int64
	signal        chan struct{}
}

func newSendWindows(initialConn int64) *sendWindows {
	return &sendWindows{
		conn:          initialConn,
		streamDefault: defaultInitialWindowSize,
		streams:       make(map[uint32]int64),
		signal:        make(chan struct{}),
	}
}

// setStreamDefault records the peer's SETTINGS_INITIAL_WINDOW_SIZE for
// streams opened from now on; it does not retroactively resize streams
// already tracked, matching RFC 7540 §6.9.2.
func (w *sendWindows) setStreamDefault(n int64) {
	w.mu.Lock()
	w.streamDefault = n
	w.mu.Unlock()
}

func (w *sendWindows) streamDefault() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streamDefault
}

func (w *sendWindows) addStream(streamID uint32, initial int64) {
	w.mu.Lock()
	w.streams[streamID] = initial
	w.mu.Unlock()
}

func (w *sendWindows) removeStream(streamID uint32) {
	w.mu.Lock()
	delete(w.streams, streamID)
	w.mu.Unlock()
}

// credit increases available window for streamID (or the connection, if
// streamID is 0) and wakes any acquire waiters.
func (w *sendWindows) credit(streamID uint32, n int64) {
	w.mu.Lock()
	if streamID == 0 {
		w.conn += n
	} else if _, ok := w.streams[streamID]; ok {
		w.streams[streamID] += n
	}
	close(w.signal)
	w.signal = make(chan struct{})
	w.mu.Unlock()
}

// acquire blocks until at least 1 and at most want bytes of credit are
// available on both the connection and stream windows, consumes that much,
// and returns the amount acquired.
func (w *sendWindows) acquire(ctx context.Context, streamID uint32, want int) (int, error) {
	for {
		w.mu.Lock()
		streamWindow, ok := w.streams[streamID]
		if !ok {
			w.mu.Unlock()
			return 0, errStreamGone
		}
		avail := w.conn
		if streamWindow < avail {
			avail = streamWindow
		}
		if int64(want) < avail {
			avail = int64(want)
		}
		if avail > 0 {
			w.conn -= avail
			w.streams[streamID] -= avail
			w.mu.Unlock()
			return int(avail), nil
		}
		ch := w.signal
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// recvWindows tracks inbound DATA consumption so Control can replenish the
// peer's send window before it stalls, without acking every single byte.
type recvWindows struct {
	mu          sync.Mutex
	initial     int64
	connPending int64
	streams     map[uint32]int64
}

func newRecvWindows(initial int64) *recvWindows {
	return &recvWindows{
		initial: initial,
		streams: make(map[uint32]int64),
	}
}

func (w *recvWindows) addStream(streamID uint32, _ int64) {
	w.mu.Lock()
	w.streams[streamID] = 0
	w.mu.Unlock()
}

func (w *recvWindows) removeStream(streamID uint32) {
	w.mu.Lock()
	delete(w.streams, streamID)
	w.mu.Unlock()
}

// consume records n newly-received DATA bytes and, once accumulated
// consumption on the connection or a stream crosses half its initial
// window, enqueues a WINDOW_UPDATE to replenish it.
func (w *recvWindows) consume(c *Control, streamID uint32, n int64) {
	threshold := w.initial / 2
	if threshold <= 0 {
		threshold = 1
	}

	w.mu.Lock()
	w.connPending += n
	var connIncr uint32
	if w.connPending >= threshold {
		connIncr = uint32(w.connPending)
		w.connPending = 0
	}

	var streamIncr uint32
	if pending, ok := w.streams[streamID]; ok {
		pending += n
		if pending >= threshold {
			streamIncr = uint32(pending)
			pending = 0
		}
		w.streams[streamID] = pending
	}
	w.mu.Unlock()

	if connIncr > 0 {
		c.ctrlJobs <- func(codec *Codec) error {
			return codec.WriteWindowUpdate(0, connIncr)
		}
	}
	if streamIncr > 0 {
		c.ctrlJobs <- func(codec *Codec) error {
			return codec.WriteWindowUpdate(streamID, streamIncr)
		}
	}
}
