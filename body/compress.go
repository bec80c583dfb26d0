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

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/packetd/httpcore/webparse"
)

// compressWriter is the minimal surface encodeWriteData needs from a
// streaming compressor: write some plaintext, flush whatever's ready to
// the underlying buffer, and finish (flate/gzip finalize trailers; brotli
// finalizes its block) once the body ends.
type compressWriter interface {
	Write(p []byte) (int, error)
	Flush() error
	Close() error
}

// compressor lazily opens exactly one of the three streaming encoders,
// mirroring the Rust original's InnerCompress (open_write_gz/de/br).
type compressor struct {
	method webparse.CompressMethod
	out    bytes.Buffer
	w      compressWriter
}

func newCompressor(method webparse.CompressMethod) *compressor {
	return &compressor{method: method}
}

func (c *compressor) open() error {
	if c.w != nil {
		return nil
	}
	switch c.method {
	case webparse.CompressMethodGzip:
		c.w = gzip.NewWriter(&c.out)
	case webparse.CompressMethodDeflate:
		fw, err := flate.NewWriter(&c.out, flate.DefaultCompression)
		if err != nil {
			return webparse.WrapError(webparse.KindCompression, err, "body: open deflate writer")
		}
		c.w = fw
	case webparse.CompressMethodBrotli:
		c.w = brotli.NewWriter(&c.out)
	default:
		return webparse.NewError(webparse.KindCompression, "body: unknown compress method %v", c.method)
	}
	return nil
}

// write compresses data and returns whatever compressed bytes are ready to
// emit right now (Flush pushes pending data to c.out without ending the
// stream).
func (c *compressor) write(data []byte) ([]byte, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	if _, err := c.w.Write(data); err != nil {
		return nil, webparse.WrapError(webparse.KindCompression, err, "body: compress write")
	}
	if err := c.w.Flush(); err != nil {
		return nil, webparse.WrapError(webparse.KindCompression, err, "body: compress flush")
	}
	if c.out.Len() == 0 {
		return nil, nil
	}
	out := make([]byte, c.out.Len())
	copy(out, c.out.Bytes())
	c.out.Reset()
	return out, nil
}

// finish closes the compressor, returning any trailing bytes (gzip/flate
// trailers, brotli's final block).
func (c *compressor) finish() ([]byte, error) {
	if c.w == nil {
		return nil, nil
	}
	if err := c.w.Close(); err != nil {
		return nil, webparse.WrapError(webparse.KindCompression, err, "body: compress close")
	}
	c.w = nil
	if c.out.Len() == 0 {
		return nil, nil
	}
	out := make([]byte, c.out.Len())
	copy(out, c.out.Bytes())
	c.out.Reset()
	return out, nil
}
