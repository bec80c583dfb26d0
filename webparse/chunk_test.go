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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeChunk(t *testing.T) {
	assert.Equal(t, []byte("5\r\nhello\r\n"), EncodeChunk([]byte("hello")))
	assert.Equal(t, []byte("0\r\n\r\n"), EncodeChunk(nil))
}

func TestParseHexUint(t *testing.T) {
	n, err := ParseHexUint([]byte("1a3\r\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1a3), n)

	n, err = ParseHexUint([]byte("1a3;foo=bar\r\n"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1a3), n)

	_, err = ParseHexUint([]byte("zz\r\n"))
	assert.Error(t, err)
}

func TestHeaderHelperIsChunked(t *testing.T) {
	var hh HeaderHelper
	h := make(http.Header)
	assert.False(t, hh.IsChunked(h))

	h.Set("Transfer-Encoding", "gzip, chunked")
	assert.True(t, hh.IsChunked(h))

	h.Set("Transfer-Encoding", "chunked, gzip")
	assert.False(t, hh.IsChunked(h))
}

func TestHeaderHelperKeepAlive(t *testing.T) {
	var hh HeaderHelper
	h := make(http.Header)
	assert.True(t, hh.IsKeepAlive(ProtoHTTP11, h))

	h.Set("Connection", "close")
	assert.False(t, hh.IsKeepAlive(ProtoHTTP11, h))
}

func TestHeaderHelperCompressMethod(t *testing.T) {
	var hh HeaderHelper
	assert.Equal(t, CompressMethodGzip, hh.ResponseCompressMethod("gzip, deflate, br", CompressMethodGzip, CompressMethodBrotli))
	assert.Equal(t, CompressMethodBrotli, hh.ResponseCompressMethod("deflate, br", CompressMethodGzip, CompressMethodBrotli))
	assert.Equal(t, CompressMethodNone, hh.ResponseCompressMethod("", CompressMethodGzip))

	assert.Equal(t, CompressMethodGzip, hh.RequestCompressMethod("gzip"))
	assert.Equal(t, CompressMethodNone, hh.RequestCompressMethod("snappy"))
}

func TestProtErrorKind(t *testing.T) {
	err := NewError(KindParse, "bad request line %q", "x")
	assert.True(t, IsKind(err, KindParse))
	assert.False(t, IsKind(err, KindIo))
}
