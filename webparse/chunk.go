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

package webparse

import (
	"strconv"
)

// EncodeChunk wraps data as a single HTTP/1.1 chunk: "<hex-size>\r\n<data>\r\n".
// Calling it with empty data emits the terminating zero-length chunk
// ("0\r\n\r\n"), matching the Rust original's encode_write_data flush-on-end
// behavior.
func EncodeChunk(data []byte) []byte {
	size := strconv.FormatInt(int64(len(data)), 16)
	out := make([]byte, 0, len(size)+2+len(data)+4)
	out = append(out, size...)
	out = append(out, '\r', '\n')
	out = append(out, data...)
	out = append(out, '\r', '\n')
	return out
}

// ParseHexUint parses a hex chunk-size line (optionally followed by
// chunk-extensions after a ';', which are ignored), matching the teacher's
// parseHexUint helper.
func ParseHexUint(line []byte) (uint64, error) {
	if i := indexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = trimCRLF(line)
	if len(line) == 0 {
		return 0, NewError(KindParse, "chunk size line is empty")
	}
	n, err := strconv.ParseUint(string(line), 16, 64)
	if err != nil {
		return 0, WrapError(KindParse, err, "invalid chunk size")
	}
	return n, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func trimCRLF(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\r' || b[len(b)-1] == '\n') {
		b = b[:len(b)-1]
	}
	return b
}
