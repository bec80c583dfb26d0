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

// Package body is the streaming message-body abstraction shared by h1 and
// h2: a single type that can be backed by an already-buffered slice, a
// channel fed by a connection's reader goroutine, or a file, and that
// applies (de)compression and chunked transfer-encoding transparently as
// it is read from or written to.
package body

import (
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/valyala/bytebufferpool"

	"github.com/packetd/httpcore/common"
	"github.com/packetd/httpcore/internal/bufpool"
	"github.com/packetd/httpcore/webparse"
)

// defaultMaxReadBuf bounds how much decoded data Body will accumulate ahead
// of a caller's Read calls before it stops pulling further chunks — the
// Go analogue of the Rust original's 10MiB default, there enforced through
// a semaphore permit instead of a plain size check.
const defaultMaxReadBuf = 10 * 1024 * 1024

var (
	bytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "body_bytes_received_total",
		Help:      "total decoded bytes received into message bodies",
	})
	bytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "body_bytes_sent_total",
		Help:      "total encoded bytes emitted from message bodies",
	})
)

// Chunk is a single unit of body data fed into a channel-backed Body by a
// connection's reader goroutine.
type Chunk struct {
	Data []byte
	End  bool
}

// Body is the engine's streaming message-body type. The zero value is not
// usable; construct with Empty, Only, New, or NewFile.
type Body struct {
	mu sync.Mutex

	chunks <-chan Chunk

	file          *os.File
	fileRemaining int64

	// originBuf holds bytes the caller already had in hand (e.g. the
	// request body fragment that arrived in the same read as the header)
	// before any channel/file source is consulted. Drained once.
	originBuf []byte

	readBuf []byte // decoded, not-yet-(re)compressed

	// cacheBodyData holds compressed/chunk-encoded bytes ready for Read,
	// pooled via internal/bufpool to cut allocations on the per-request
	// path; cacheOff tracks how much of it Read has already drained.
	cacheBodyData *bytebufferpool.ByteBuffer
	cacheOff      int
	cacheReleased bool

	originCompress webparse.CompressMethod
	nowCompress    webparse.CompressMethod

	enc *compressor
	dec *decompressor

	isChunked     bool
	isEnd         bool
	isProcessEnd  bool
	maxReadBuf    int
	rateLimit     *RateLimitLayer
}

func newBody() *Body {
	return &Body{
		isEnd:         true,
		maxReadBuf:    defaultMaxReadBuf,
		cacheBodyData: bufpool.Acquire(),
	}
}

// Empty returns a Body with no content, already ended.
func Empty() *Body {
	return newBody()
}

// Only returns a Body wrapping a single already-complete buffer.
func Only(data []byte) *Body {
	b := newBody()
	b.originBuf = data
	return b
}

// NewText returns a Body wrapping a complete string payload.
func NewText(text string) *Body {
	return Only([]byte(text))
}

// New returns a Body fed by chunks (a connection's reader goroutine should
// own the send side and close it, or send a final Chunk{End: true}),
// optionally seeded with bytes already read alongside the header.
func New(chunks <-chan Chunk, initial []byte, isEnd bool) *Body {
	b := newBody()
	b.chunks = chunks
	b.originBuf = initial
	b.isEnd = isEnd
	return b
}

// NewFile returns a Body reading the next size bytes from f.
func NewFile(f *os.File, size int64) *Body {
	b := newBody()
	b.file = f
	b.fileRemaining = size
	b.isEnd = false
	return b
}

// SetRateLimit installs a token-bucket limiter over the channel/file
// source; Read blocks until the limiter admits each chunk.
func (b *Body) SetRateLimit(r *RateLimitLayer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rateLimit = r
}

// SetMaxReadBuf overrides the default 10MiB read-ahead bound.
func (b *Body) SetMaxReadBuf(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxReadBuf = n
}

// SetStartEnd seeks a file-backed Body to [start, end) before the first Read.
func (b *Body) SetStartEnd(start, end int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return webparse.NewError(webparse.KindExtension, "body: SetStartEnd on a non-file body")
	}
	if end < start {
		return webparse.NewError(webparse.KindExtension, "body: end %d before start %d", end, start)
	}
	if _, err := b.file.Seek(start, io.SeekStart); err != nil {
		return webparse.WrapError(webparse.KindIo, err, "body: seek")
	}
	b.fileRemaining = end - start
	return nil
}

// SetChunked toggles HTTP/1.1 chunked transfer-encoding on the write path.
func (b *Body) SetChunked(chunked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.isChunked = chunked
}

// IsChunked reports whether chunked transfer-encoding is active.
func (b *Body) IsChunked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isChunked
}

// SetCompressGzip marks the body's source bytes as gzip-encoded, so Read
// transparently decompresses them.
func (b *Body) SetCompressGzip() { b.setOriginCompress(webparse.CompressMethodGzip) }

// SetCompressDeflate marks the body's source bytes as deflate-encoded.
func (b *Body) SetCompressDeflate() { b.setOriginCompress(webparse.CompressMethodDeflate) }

// SetCompressBrotli marks the body's source bytes as brotli-encoded.
func (b *Body) SetCompressBrotli() { b.setOriginCompress(webparse.CompressMethodBrotli) }

func (b *Body) setOriginCompress(m webparse.CompressMethod) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.originCompress = m
	b.nowCompress = webparse.CompressMethodNone
}

// AddCompressMethod sets the encoding Read should apply on the way out
// (e.g. compressing a response body to match the peer's Accept-Encoding).
// Returns the effective method: CompressMethodNone if it matches the
// origin encoding already in effect, since no transcoding is needed then.
func (b *Body) AddCompressMethod(m webparse.CompressMethod) webparse.CompressMethod {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nowCompress = m
	return b.effectiveNowCompressLocked()
}

func (b *Body) effectiveNowCompressLocked() webparse.CompressMethod {
	if b.originCompress == b.nowCompress {
		return webparse.CompressMethodNone
	}
	return b.nowCompress
}

// IsEnd reports whether the body has been fully received.
func (b *Body) IsEnd() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isEnd
}

// SetEnd marks the body ended (or not) without going through the normal
// receive path — used when a caller already knows the full content, e.g.
// Only/NewText bodies before their first process pass.
func (b *Body) SetEnd(end bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.isEnd = end
}

// releaseCacheLocked returns cacheBodyData to bufpool once Read has drained
// it for the last time. Caller holds b.mu.
func (b *Body) releaseCacheLocked() {
	if b.cacheReleased {
		return
	}
	b.cacheReleased = true
	bufpool.Release(b.cacheBodyData)
}
