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

// Package connkey builds stable fingerprints for connections and requests
// so log lines and metrics emitted from different goroutines (reader,
// writer, handler) can be correlated back to the same connection or stream.
package connkey

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/valyala/bytebufferpool"
)

// Tag is a single name/value pair contributing to a fingerprint.
type Tag struct {
	Name  string
	Value string
}

// Tags is an unordered set of Tag — Hash is order-independent so callers
// don't need to sort before hashing.
type Tags []Tag

var sep = []byte{'\xff'}

// Hash returns a stable fingerprint for the tag set, independent of the
// order tags were appended in.
func (ts Tags) Hash() uint64 {
	sums := make([]uint64, len(ts))
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	for i, t := range ts {
		buf.Reset()
		buf.WriteString(t.Name)
		buf.Write(sep)
		buf.WriteString(t.Value)
		sums[i] = xxhash.Sum64(buf.Bytes())
	}

	var acc uint64
	for _, s := range sums {
		acc ^= s
	}
	return acc
}

// Conn returns the fingerprint for a connection identified by local/remote
// address pair.
func Conn(localAddr, remoteAddr string) uint64 {
	return Tags{
		{Name: "local", Value: localAddr},
		{Name: "remote", Value: remoteAddr},
	}.Hash()
}

// Stream returns the fingerprint for an HTTP/2 stream within a connection.
func Stream(connKey uint64, streamID uint32) uint64 {
	return Tags{
		{Name: "conn", Value: strconv.FormatUint(connKey, 36)},
		{Name: "stream", Value: strconv.FormatUint(uint64(streamID), 10)},
	}.Hash()
}
