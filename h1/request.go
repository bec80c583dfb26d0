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

package h1

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/internal/bufpool"
	"github.com/packetd/httpcore/internal/splitio"
	"github.com/packetd/httpcore/webparse"
)

const maxHeaderLineLen = 64 * 1024

// peekPreface reports whether the next bytes on br are the HTTP/2
// connection preface. It only peeks, so the bytes stay buffered in br
// whether or not they match.
func peekPreface(br *bufio.Reader) (bool, error) {
	preface := []byte(webparse.HTTP2Preface)
	b, err := br.Peek(len(preface))
	if err != nil {
		if err == io.EOF || err == bufio.ErrBufferFull {
			return false, nil
		}
		return false, webparse.WrapError(webparse.KindIo, err, "h1: peek preface")
	}
	return string(b) == webparse.HTTP2Preface, nil
}

// readLine reads a single CRLF- or LF-terminated line, trimming the
// terminator, and rejects lines that exceed maxHeaderLineLen to bound
// memory a malicious peer could force the engine to allocate. Line
// boundaries are located with splitio.Scanner — the same line-scanning the
// phttp decoder drives over a captured packet — applied here to whatever br
// currently has buffered instead of one whole packet at a time.
func readLine(br *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		frag, found, err := peekLineFragment(br)
		if err != nil {
			return nil, webparse.WrapError(webparse.KindIo, err, "h1: read line")
		}
		if _, derr := br.Discard(len(frag)); derr != nil {
			return nil, webparse.WrapError(webparse.KindIo, derr, "h1: read line")
		}
		line = append(line, frag...)
		if len(line) > maxHeaderLineLen {
			return nil, webparse.NewError(webparse.KindParse, "h1: header line exceeds %d bytes", maxHeaderLineLen)
		}
		if found {
			return bytes.TrimRight(line, "\r\n"), nil
		}
	}
}

// peekLineFragment scans br's currently buffered bytes for an LF-terminated
// line without discarding anything from br. It grows the peek window to
// match whatever has already arrived (no extra I/O) or, once caught up,
// by exactly one byte — enough to force br to pull in more without ever
// blocking for more data than is needed to resolve the boundary. found
// distinguishes "line located" from "br's fixed buffer filled up without
// one"; the caller discards frag and keeps accumulating either way.
func peekLineFragment(br *bufio.Reader) (frag []byte, found bool, err error) {
	n := 1
	for {
		peek, perr := br.Peek(n)
		scan := splitio.NewScanner(peek)
		if scan.Scan() {
			if b := scan.Bytes(); bytes.HasSuffix(b, splitio.CharLF) {
				return b, true, nil
			}
		}
		switch perr {
		case nil:
			if buffered := br.Buffered(); buffered > n {
				n = buffered
			} else {
				n++
			}
		case bufio.ErrBufferFull:
			return peek, false, nil
		default:
			return peek, false, perr
		}
	}
}

// readRequestLine parses "METHOD SP request-target SP HTTP-version".
func readRequestLine(br *bufio.Reader) (method, path, proto string, err error) {
	line, err := readLine(br)
	if err != nil {
		return "", "", "", err
	}
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) != 3 {
		return "", "", "", webparse.NewError(webparse.KindParse, "h1: malformed request line %q", line)
	}
	return parts[0], parts[1], parts[2], nil
}

// readStatusLine parses "HTTP-version SP status-code SP reason-phrase".
func readStatusLine(br *bufio.Reader) (proto string, status int, err error) {
	line, err := readLine(br)
	if err != nil {
		return "", 0, err
	}
	parts := strings.SplitN(string(line), " ", 3)
	if len(parts) < 2 {
		return "", 0, webparse.NewError(webparse.KindParse, "h1: malformed status line %q", line)
	}
	code, convErr := parsePositiveInt(parts[1])
	if convErr != nil {
		return "", 0, webparse.WrapError(webparse.KindParse, convErr, "h1: malformed status code")
	}
	return parts[0], code, nil
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	if len(s) == 0 {
		return 0, webparse.NewError(webparse.KindParse, "empty integer")
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, webparse.NewError(webparse.KindParse, "invalid digit %q", c)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// readHeaderLines reads header lines up to and including the terminating
// blank line.
func readHeaderLines(br *bufio.Reader) (http.Header, error) {
	h := make(http.Header)
	for {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			return h, nil
		}
		idx := indexByteString(line, ':')
		if idx < 0 {
			return nil, webparse.NewError(webparse.KindParse, "h1: malformed header line %q", line)
		}
		name := strings.TrimSpace(string(line[:idx]))
		value := strings.TrimSpace(string(line[idx+1:]))
		h.Add(name, value)
	}
}

func indexByteString(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// bodyFraming derives how the body following this header block is
// delimited, per RFC 7230 §3.3.3. Only responses may be close-delimited;
// a request with neither chunked encoding nor a declared Content-Length
// has no body at all.
func bodyFraming(h http.Header, isRequest, isResponseNoBody bool) (chunked bool, length int64, hasLength, closeDelimited bool) {
	var hh webparse.HeaderHelper
	if isResponseNoBody {
		return false, 0, true, false
	}
	if hh.IsChunked(h) {
		return true, 0, false, false
	}
	if n, ok := hh.ContentLength(h); ok {
		return false, n, true, false
	}
	if isRequest {
		return false, 0, true, false
	}
	return false, 0, false, true
}

// streamFixedBody copies exactly n bytes from br into ch as one or more
// chunks.
func streamFixedBody(br *bufio.Reader, ch chan<- body.Chunk, n int64) error {
	defer close(ch)
	const bufSize = 32 * 1024
	stage := bufpool.Acquire()
	defer bufpool.Release(stage)
	buf := bufpool.Stage(stage, bufSize)
	for n > 0 {
		want := int64(bufSize)
		if n < want {
			want = n
		}
		read, err := io.ReadFull(br, buf[:want])
		if err != nil {
			return webparse.WrapError(webparse.KindIo, err, "h1: read fixed-length body")
		}
		n -= int64(read)
		data := make([]byte, read)
		copy(data, buf[:read])
		ch <- body.Chunk{Data: data, End: n == 0}
	}
	return nil
}

// streamCloseDelimitedBody copies bytes from br into ch until EOF.
func streamCloseDelimitedBody(br *bufio.Reader, ch chan<- body.Chunk) error {
	defer close(ch)
	stage := bufpool.Acquire()
	defer bufpool.Release(stage)
	buf := bufpool.Stage(stage, 32*1024)
	for {
		n, err := br.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ch <- body.Chunk{Data: data}
		}
		if err == io.EOF {
			ch <- body.Chunk{End: true}
			return nil
		}
		if err != nil {
			return webparse.WrapError(webparse.KindIo, err, "h1: read close-delimited body")
		}
	}
}

// streamChunkedBody decodes HTTP/1.1 chunked transfer-encoding, sending
// each chunk's decoded data and consuming (but discarding) any trailer
// headers after the terminating zero-length chunk.
func streamChunkedBody(br *bufio.Reader, ch chan<- body.Chunk) error {
	defer close(ch)
	for {
		line, err := readLine(br)
		if err != nil {
			return webparse.WrapError(webparse.KindIo, err, "h1: read chunk size")
		}
		size, err := webparse.ParseHexUint(line)
		if err != nil {
			return err
		}
		if size == 0 {
			if _, err := readHeaderLines(br); err != nil {
				return webparse.WrapError(webparse.KindIo, err, "h1: read chunk trailers")
			}
			ch <- body.Chunk{End: true}
			return nil
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			return webparse.WrapError(webparse.KindIo, err, "h1: read chunk data")
		}
		if _, err := readLine(br); err != nil { // trailing CRLF after chunk data
			return webparse.WrapError(webparse.KindIo, err, "h1: read chunk terminator")
		}
		ch <- body.Chunk{Data: data}
	}
}
