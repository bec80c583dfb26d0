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

package body

import (
	"context"
	"sync"
	"time"

	"github.com/packetd/httpcore/webparse"
)

// RateLimitLayer is a byte-budget token bucket a Body consults before
// admitting each chunk off its channel/file source, the Go rendering of
// the Rust original's optional rate_limit field.
type RateLimitLayer struct {
	mu         sync.Mutex
	bytesPerS  float64
	burst      float64
	tokens     float64
	last       time.Time
}

// NewRateLimitLayer returns a limiter admitting bytesPerSec bytes/second on
// average, allowing bursts up to burst bytes.
func NewRateLimitLayer(bytesPerSec, burst int64) *RateLimitLayer {
	if burst <= 0 {
		burst = bytesPerSec
	}
	return &RateLimitLayer{
		bytesPerS: float64(bytesPerSec),
		burst:     float64(burst),
		tokens:    float64(burst),
		last:      time.Now(),
	}
}

// Wait blocks until n bytes' worth of budget is available (or ctx is done),
// then consumes it.
func (r *RateLimitLayer) Wait(ctx context.Context, n int64) error {
	for {
		d, ok := r.reserve(n)
		if ok {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return webparse.WrapError(webparse.KindIo, ctx.Err(), "body: rate limit wait")
		}
	}
}

// reserve refills the bucket for elapsed time and, if enough tokens are
// now available, consumes n and returns (0, true). Otherwise it returns
// the duration the caller should sleep before retrying.
func (r *RateLimitLayer) reserve(n int64) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.last)
	r.last = now
	r.tokens += elapsed.Seconds() * r.bytesPerS

	need := float64(n)
	// A single reservation larger than the configured burst must still be
	// satisfiable eventually — cap accumulation at whichever is larger so
	// an oversized chunk doesn't wait forever just below its own size.
	capacity := r.burst
	if need > capacity {
		capacity = need
	}
	if r.tokens > capacity {
		r.tokens = capacity
	}

	if r.tokens >= need {
		r.tokens -= need
		return 0, true
	}

	deficit := need - r.tokens
	wait := time.Duration(deficit / r.bytesPerS * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}
