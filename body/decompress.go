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
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/packetd/httpcore/webparse"
)

// decompressor bridges stdlib-shaped Reader-based decompressors (which
// need a blocking source) to the push model decode_read_data is called
// with: writes arrive piecemeal as the connection receives compressed
// bytes, but gzip.Reader/flate.Reader/brotli.Reader expect to pull from an
// io.Reader. An io.Pipe plus a drain goroutine lets decompression proceed
// incrementally as bytes arrive, the same streaming behavior the Rust
// original gets from treating its buffer type as both Read and Write.
type decompressor struct {
	pw   *io.PipeWriter
	done chan struct{}

	mu  sync.Mutex
	out bytes.Buffer
	err error
}

func newDecompressor(method webparse.CompressMethod) (*decompressor, error) {
	pr, pw := io.Pipe()
	d := &decompressor{pw: pw, done: make(chan struct{})}

	go func() {
		defer close(d.done)

		var r io.Reader
		switch method {
		case webparse.CompressMethodGzip:
			gz, err := gzip.NewReader(pr)
			if err != nil {
				d.setErr(err)
				pr.CloseWithError(err)
				return
			}
			r = gz
		case webparse.CompressMethodDeflate:
			r = flate.NewReader(pr)
		case webparse.CompressMethodBrotli:
			r = brotli.NewReader(pr)
		default:
			d.setErr(webparse.NewError(webparse.KindCompression, "body: unknown decompress method %v", method))
			pr.CloseWithError(io.ErrClosedPipe)
			return
		}

		buf := make([]byte, 4096)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				d.mu.Lock()
				d.out.Write(buf[:n])
				d.mu.Unlock()
			}
			if err != nil {
				if err != io.EOF {
					d.setErr(err)
					pr.CloseWithError(err)
				}
				return
			}
		}
	}()

	return d, nil
}

func (d *decompressor) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

// write feeds compressed bytes in; it blocks only as long as it takes the
// drain goroutine to accept them into its pipe read, not for decompression
// of the whole body.
func (d *decompressor) write(p []byte) error {
	if _, err := d.pw.Write(p); err != nil {
		return webparse.WrapError(webparse.KindCompression, err, "body: decompress write")
	}
	return nil
}

// drain returns whatever has been decompressed so far and clears it.
func (d *decompressor) drain() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.out.Len() == 0 {
		return nil
	}
	out := make([]byte, d.out.Len())
	copy(out, d.out.Bytes())
	d.out.Reset()
	return out
}

// closeAndWait signals end of input and waits for the drain goroutine to
// finish, returning any decompression error it observed.
func (d *decompressor) closeAndWait() error {
	d.pw.Close()
	<-d.done
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
