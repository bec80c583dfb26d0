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

// Package h2 is the HTTP/2 stream multiplexer: a frame Codec, per-stream
// InnerStream accumulators, and a Control loop tying them together with
// settings/goaway/ping-pong handshaking and flow control, per the Rust
// original's protocol/http2/control.rs.
package h2

import "time"

const (
	defaultHeaderTableSize      = 4096
	defaultInitialWindowSize    = 65535
	defaultMaxFrameSize         = 16384
	defaultMaxConcurrentStreams = 100
	defaultResetStreamMax       = 20
	defaultResetStreamCooldown  = 30 * time.Second
)

// ControlConfig bundles the local settings a Control advertises plus the
// resource limits it enforces, mirroring the Rust original's ControlConfig
// (next_stream_id, initial_max_send_streams, max_send_buffer_size,
// reset_stream_duration, reset_stream_max, settings).
type ControlConfig struct {
	// IsServer selects server-initiated (even) or client-initiated (odd)
	// stream id allocation, and server-side preface verification.
	IsServer bool

	HeaderTableSize      uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxConcurrentStreams uint32

	// MaxSendBufferSize is the byte budget from which jobQueueDepth derives
	// how many frame writes Control queues before SendResponse/SendRequest
	// callers block.
	MaxSendBufferSize int

	// ResetStreamMax caps how many streams a peer may RST within
	// ResetStreamCooldown before Control treats it as abuse and sends
	// GOAWAY (the HTTP/2 Rapid Reset mitigation).
	ResetStreamMax      int
	ResetStreamCooldown time.Duration
}

// DefaultControlConfig returns the spec's default settings for a server or
// client endpoint.
func DefaultControlConfig(isServer bool) ControlConfig {
	return ControlConfig{
		IsServer:             isServer,
		HeaderTableSize:      defaultHeaderTableSize,
		InitialWindowSize:    defaultInitialWindowSize,
		MaxFrameSize:         defaultMaxFrameSize,
		MaxConcurrentStreams: defaultMaxConcurrentStreams,
		MaxSendBufferSize:    1 << 20,
		ResetStreamMax:       defaultResetStreamMax,
		ResetStreamCooldown:  defaultResetStreamCooldown,
	}
}

// firstStreamID returns the initial stream id an endpoint allocates:
// servers push on even ids starting at 2, clients request on odd ids
// starting at 1.
func firstStreamID(isServer bool) uint32 {
	if isServer {
		return 2
	}
	return 1
}
