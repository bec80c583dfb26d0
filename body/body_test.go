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
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/httpcore/webparse"
)

func TestBodyOnlyReadAll(t *testing.T) {
	b := Only([]byte("hello world"))
	out, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
	assert.True(t, b.IsEnd())
}

func TestBodyEmpty(t *testing.T) {
	b := Empty()
	out, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBodyChannelStreamingChunked(t *testing.T) {
	ch := make(chan Chunk, 4)
	b := New(ch, nil, false)
	b.SetChunked(true)

	go func() {
		ch <- Chunk{Data: []byte("abc")}
		ch <- Chunk{Data: []byte("def"), End: true}
		close(ch)
	}()

	out, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6\r\nabcdef\r\n0\r\n\r\n", string(out))
}

func TestBodyCompressGzipRoundTrip(t *testing.T) {
	plain := []byte("the quick brown fox jumps over the lazy dog, repeated. " +
		"the quick brown fox jumps over the lazy dog, repeated.")
	b := Only(plain)
	b.AddCompressMethod(webparse.CompressMethodGzip)

	compressed, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, plain, compressed)

	gr, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	roundTripped, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, plain, roundTripped)
}

func TestBodyDecompressGzip(t *testing.T) {
	plain := []byte("some response content that arrived gzip-encoded")

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	b := Only(buf.Bytes())
	b.SetCompressGzip()

	out, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestBodyRateLimitThrottles(t *testing.T) {
	rl := NewRateLimitLayer(1024, 1024)
	ch := make(chan Chunk, 1)
	b := New(ch, nil, false)
	b.SetRateLimit(rl)

	go func() {
		ch <- Chunk{Data: bytes.Repeat([]byte{'x'}, 2048), End: true}
		close(ch)
	}()

	start := time.Now()
	out, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2048)
	// 2048 bytes at 1024 B/s with a 1024 B burst needs ~1s beyond the burst.
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestBodyReadRespectsContextCancellation(t *testing.T) {
	ch := make(chan Chunk)
	b := New(ch, nil, false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Read(ctx, make([]byte, 16))
	assert.Error(t, err)
}

func TestBodyFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "body-file-test")
	require.NoError(t, err)
	defer f.Close()

	content := []byte("file-backed body content")
	_, err = f.Write(content)
	require.NoError(t, err)
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	b := NewFile(f, int64(len(content)))
	out, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, content, out)
}
