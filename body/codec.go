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

import "github.com/packetd/httpcore/webparse"

// decodeReadDataLocked moves freshly received bytes into readBuf,
// decompressing them first if the body's source encoding (originCompress)
// differs from the encoding the caller wants to see (nowCompress). Caller
// holds b.mu. end signals this is the final chunk of the source, so any
// open decompressor should be closed and fully drained.
func (b *Body) decodeReadDataLocked(data []byte, end bool) error {
	if b.originCompress == webparse.CompressMethodNone || b.originCompress == b.nowCompress {
		b.readBuf = append(b.readBuf, data...)
		return nil
	}

	if b.dec == nil {
		dec, err := newDecompressor(b.originCompress)
		if err != nil {
			return err
		}
		b.dec = dec
	}
	if len(data) > 0 {
		if err := b.dec.write(data); err != nil {
			return err
		}
	}
	if end {
		if err := b.dec.closeAndWait(); err != nil {
			return err
		}
		// Once fully decoded, treat the body as already in its native
		// representation — matches the Rust original resetting
		// origin_compress_method once is_end is reached.
		b.originCompress = webparse.CompressMethodNone
	}
	b.readBuf = append(b.readBuf, b.dec.drain()...)
	return nil
}

// encodeWriteDataLocked pushes data through the outbound (re)compression
// stage, if any, chunk-encodes it if chunked transfer is active, and
// appends the result to cacheBodyData. Calling it with nil data flushes
// and finalizes any open compressor — the signal process() sends once the
// body has ended.
func (b *Body) encodeWriteDataLocked(data []byte) error {
	method := b.effectiveNowCompressLocked()
	if method == webparse.CompressMethodNone {
		return b.innerEncodeWriteLocked(data)
	}

	if b.enc == nil || b.enc.method != method {
		b.enc = newCompressor(method)
	}

	if len(data) == 0 {
		out, err := b.enc.finish()
		if err != nil {
			return err
		}
		b.enc = nil
		if len(out) > 0 {
			if err := b.innerEncodeWriteLocked(out); err != nil {
				return err
			}
		}
		if b.isChunked {
			return b.innerEncodeWriteLocked(nil)
		}
		return nil
	}

	out, err := b.enc.write(data)
	if err != nil {
		return err
	}
	if len(out) > 0 {
		return b.innerEncodeWriteLocked(out)
	}
	return nil
}

// innerEncodeWriteLocked appends data to cacheBodyData, chunk-encoding it
// first if chunked transfer is active; calling it with nil emits the
// terminating zero-length chunk when chunked.
func (b *Body) innerEncodeWriteLocked(data []byte) error {
	if b.isChunked {
		b.cacheBodyData.Write(webparse.EncodeChunk(data))
		return nil
	}
	if len(data) > 0 {
		b.cacheBodyData.Write(data)
	}
	return nil
}
