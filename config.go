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

package httpcore

import (
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/confengine"
	"github.com/packetd/httpcore/h2"
)

// EngineConfig is the top-level, file-loadable configuration for one
// listener: an HTTP/1.1 or HTTP/2 endpoint plus its body rate limit.
// It is unpacked from a confengine.Config the same way the teacher's
// server.Config is unpacked from its "server" section.
type EngineConfig struct {
	HTTP2                bool          `config:"http2"`
	HeaderTableSize      uint32        `config:"header_table_size"`
	InitialWindowSize    uint32        `config:"initial_window_size"`
	MaxFrameSize         uint32        `config:"max_frame_size"`
	MaxConcurrentStreams uint32        `config:"max_concurrent_streams"`
	MaxSendBufferSize    int           `config:"max_send_buffer_size"`
	ResetStreamMax       int           `config:"reset_stream_max"`
	ResetStreamCooldown  time.Duration `config:"reset_stream_cooldown"`

	// RateLimit is left as a loose map rather than a typed struct
	// because it comes from two different shapes upstream: a config
	// file section (conf.UnpackChild decodes it same as the fields
	// above) or a common.Options override set at runtime, which is why
	// RateLimitLayer below goes through mapstructure.Decode directly
	// instead of relying on go-ucfg's own (mapstructure-backed) unpack.
	RateLimit map[string]any `config:"rate_limit"`
}

// rateLimitOverride is what RateLimit's map decodes onto.
type rateLimitOverride struct {
	BytesPerSec int64 `mapstructure:"bytes_per_sec"`
	Burst       int64 `mapstructure:"burst"`
}

// LoadEngineConfig unpacks section (e.g. "http") of conf into an
// EngineConfig, the same way the teacher's server.New unpacks "server".
func LoadEngineConfig(conf *confengine.Config, section string) (EngineConfig, error) {
	def := h2.DefaultControlConfig(true)
	cfg := EngineConfig{
		HeaderTableSize:      def.HeaderTableSize,
		InitialWindowSize:    def.InitialWindowSize,
		MaxFrameSize:         def.MaxFrameSize,
		MaxConcurrentStreams: def.MaxConcurrentStreams,
		MaxSendBufferSize:    def.MaxSendBufferSize,
		ResetStreamMax:       def.ResetStreamMax,
		ResetStreamCooldown:  def.ResetStreamCooldown,
	}
	if err := conf.UnpackChild(section, &cfg); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// ControlConfig renders the decoded EngineConfig as the h2.ControlConfig
// Control needs, for the given connection role.
func (c EngineConfig) ControlConfig(isServer bool) h2.ControlConfig {
	return h2.ControlConfig{
		IsServer:             isServer,
		HeaderTableSize:      c.HeaderTableSize,
		InitialWindowSize:    c.InitialWindowSize,
		MaxFrameSize:         c.MaxFrameSize,
		MaxConcurrentStreams: c.MaxConcurrentStreams,
		MaxSendBufferSize:    c.MaxSendBufferSize,
		ResetStreamMax:       c.ResetStreamMax,
		ResetStreamCooldown:  c.ResetStreamCooldown,
	}
}

// RateLimitLayer decodes EngineConfig.RateLimit (if present) into a
// body.RateLimitLayer via mapstructure, since that map may have arrived
// from either a config file or a runtime common.Options override and
// go-ucfg's own typed Unpack only covers the former.
func (c EngineConfig) RateLimitLayer() (*body.RateLimitLayer, error) {
	if len(c.RateLimit) == 0 {
		return nil, nil
	}
	var rl rateLimitOverride
	if err := mapstructure.Decode(c.RateLimit, &rl); err != nil {
		return nil, err
	}
	if rl.BytesPerSec <= 0 {
		return nil, nil
	}
	return body.NewRateLimitLayer(rl.BytesPerSec, rl.Burst), nil
}
