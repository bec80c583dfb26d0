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
	"io"

	"github.com/packetd/httpcore/webparse"
)

// Read fills p with decoded (and possibly re-encoded) body bytes, pulling
// and processing as many source chunks as needed to produce at least one
// byte. It returns io.EOF once the body has been fully processed and
// drained, matching io.Reader's contract — the engine's translation of the
// Rust original's AsyncRead impl into a blocking call.
func (b *Body) Read(ctx context.Context, p []byte) (int, error) {
	for {
		b.mu.Lock()
		if b.cacheOff < len(b.cacheBodyData.B) {
			n := copy(p, b.cacheBodyData.B[b.cacheOff:])
			b.cacheOff += n
			if b.cacheOff == len(b.cacheBodyData.B) {
				b.cacheBodyData.Reset()
				b.cacheOff = 0
			}
			b.mu.Unlock()
			bytesSent.Add(float64(n))
			return n, nil
		}
		if b.isProcessEnd {
			b.releaseCacheLocked()
			b.mu.Unlock()
			return 0, io.EOF
		}
		b.mu.Unlock()

		if err := b.process(ctx, true); err != nil {
			return 0, err
		}
	}
}

// ReadAll blocks until the body has been fully received and processed,
// returning its complete decoded/encoded content.
func (b *Body) ReadAll(ctx context.Context) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := b.Read(ctx, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// WaitAll blocks until the body has been fully received, discarding
// decoded content and returning only the total byte count — used when a
// caller needs to know the body finished (and its size) without holding
// the bytes, mirroring the Rust original's wait_all.
func (b *Body) WaitAll(ctx context.Context) (int, error) {
	var total int
	buf := make([]byte, 32*1024)
	for {
		n, err := b.Read(ctx, buf)
		total += n
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Binary drains and returns whatever decoded-but-not-yet-(re)encoded bytes
// are currently buffered, without blocking for more — the Go analogue of
// the Rust original's binary().
func (b *Body) Binary() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readBuf) == 0 {
		return nil
	}
	out := b.readBuf
	b.readBuf = nil
	return out
}

// CopyNow returns a copy of the currently buffered decoded bytes without
// consuming them.
func (b *Body) CopyNow() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readBuf) == 0 {
		return nil
	}
	out := make([]byte, len(b.readBuf))
	copy(out, b.readBuf)
	return out
}

// ReadNow performs one non-blocking processing pass (decoding/encoding
// whatever has already arrived, without waiting on the source) and
// returns whatever ended up ready in cacheBodyData.
func (b *Body) ReadNow() []byte {
	_ = b.process(context.Background(), false)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cacheOff >= len(b.cacheBodyData.B) {
		return nil
	}
	out := make([]byte, len(b.cacheBodyData.B)-b.cacheOff)
	copy(out, b.cacheBodyData.B[b.cacheOff:])
	b.cacheBodyData.Reset()
	b.cacheOff = 0
	return out
}

// process runs one pass of the pipeline: drain any seed bytes, pull source
// chunks (only when pull is set) until the body ends or the read-ahead bound
// is hit, then push whatever was decoded through the (re)compression/chunking
// stage.
func (b *Body) process(ctx context.Context, pull bool) error {
	b.mu.Lock()
	if b.isProcessEnd {
		b.mu.Unlock()
		return nil
	}
	if b.originBuf != nil {
		origin := b.originBuf
		b.originBuf = nil
		if err := b.decodeReadDataLocked(origin, b.isEnd); err != nil {
			b.mu.Unlock()
			return err
		}
	}
	hasSource := b.chunks != nil || b.file != nil
	isEnd := b.isEnd
	b.mu.Unlock()

	if pull && !isEnd && hasSource {
		for {
			chunk, err := b.receiveNext(ctx)
			if err != nil {
				return err
			}

			if len(chunk.Data) > 0 {
				b.mu.Lock()
				rl := b.rateLimit
				b.mu.Unlock()
				if rl != nil {
					if err := rl.Wait(ctx, int64(len(chunk.Data))); err != nil {
						return err
					}
				}
			}

			b.mu.Lock()
			bytesReceived.Add(float64(len(chunk.Data)))
			if err := b.decodeReadDataLocked(chunk.Data, chunk.End); err != nil {
				b.mu.Unlock()
				return err
			}
			b.isEnd = chunk.End
			over := len(b.readBuf) >= b.maxReadBuf
			done := b.isEnd
			b.mu.Unlock()

			if done || over {
				break
			}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.readBuf) > 0 {
		data := b.readBuf
		b.readBuf = nil
		if err := b.encodeWriteDataLocked(data); err != nil {
			return err
		}
	}
	if b.isEnd {
		if err := b.encodeWriteDataLocked(nil); err != nil {
			return err
		}
	}
	b.isProcessEnd = b.isEnd
	return nil
}

// receiveNext pulls the next chunk from whichever source is configured,
// blocking on it but not on anything downstream (decode/encode happen
// after, under the lock) so a slow compressor never stalls the channel
// send side.
func (b *Body) receiveNext(ctx context.Context) (Chunk, error) {
	b.mu.Lock()
	chunks := b.chunks
	file := b.file
	b.mu.Unlock()

	if chunks != nil {
		select {
		case c, ok := <-chunks:
			if !ok {
				return Chunk{End: true}, nil
			}
			return c, nil
		case <-ctx.Done():
			return Chunk{}, webparse.WrapError(webparse.KindIo, ctx.Err(), "body: receive")
		}
	}

	if file != nil {
		return b.readFileChunk()
	}

	return Chunk{End: true}, nil
}

func (b *Body) readFileChunk() (Chunk, error) {
	b.mu.Lock()
	remaining := b.fileRemaining
	file := b.file
	b.mu.Unlock()

	if remaining <= 0 {
		return Chunk{End: true}, nil
	}

	bufSize := int64(32 * 1024)
	if remaining < bufSize {
		bufSize = remaining
	}
	buf := make([]byte, bufSize)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return Chunk{}, webparse.WrapError(webparse.KindIo, err, "body: read file")
	}

	b.mu.Lock()
	b.fileRemaining -= int64(n)
	end := err == io.EOF || b.fileRemaining <= 0
	b.mu.Unlock()

	return Chunk{Data: buf[:n], End: end}, nil
}
