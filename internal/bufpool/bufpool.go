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

// Package bufpool pools growable byte buffers shared by the body pipeline
// and h1's body read/write scratch buffers, cutting allocations on the hot
// per-request path.
package bufpool

import "github.com/valyala/bytebufferpool"

var pool bytebufferpool.Pool

// Acquire returns a reset buffer from the pool.
func Acquire() *bytebufferpool.ByteBuffer {
	return pool.Get()
}

// Release resets b and returns it to the pool. b must not be used again
// after this call.
func Release(b *bytebufferpool.ByteBuffer) {
	if b == nil {
		return
	}
	b.Reset()
	pool.Put(b)
}

// Stage returns b's backing slice resized to exactly n bytes (growing it
// first if its capacity is too small), for callers that want a scratch
// []byte of a known size rather than the accumulate-then-read pattern
// ByteBuffer's Write/Bytes pair is built for.
func Stage(b *bytebufferpool.ByteBuffer, n int) []byte {
	if cap(b.B) < n {
		b.B = make([]byte, n)
	} else {
		b.B = b.B[:n]
	}
	return b.B
}
