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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/httpcore/confengine"
)

func TestLoadEngineConfigDefaultsAndOverrides(t *testing.T) {
	conf, err := confengine.LoadContent([]byte(`
http:
  http2: true
  max_concurrent_streams: 64
  rate_limit:
    bytes_per_sec: 1048576
    burst: 2097152
`))
	require.NoError(t, err)

	cfg, err := LoadEngineConfig(conf, "http")
	require.NoError(t, err)

	assert.True(t, cfg.HTTP2)
	assert.EqualValues(t, 64, cfg.MaxConcurrentStreams)
	// Fields the section didn't override keep their defaults.
	assert.NotZero(t, cfg.HeaderTableSize)
	assert.NotZero(t, cfg.ResetStreamCooldown)

	cc := cfg.ControlConfig(true)
	assert.True(t, cc.IsServer)
	assert.EqualValues(t, 64, cc.MaxConcurrentStreams)

	rl, err := cfg.RateLimitLayer()
	require.NoError(t, err)
	require.NotNil(t, rl)
}

func TestLoadEngineConfigNoRateLimit(t *testing.T) {
	conf, err := confengine.LoadContent([]byte(`
http:
  http2: false
`))
	require.NoError(t, err)

	cfg, err := LoadEngineConfig(conf, "http")
	require.NoError(t, err)

	rl, err := cfg.RateLimitLayer()
	require.NoError(t, err)
	assert.Nil(t, rl)
}
