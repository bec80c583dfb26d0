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

package h2

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/handler"
	"github.com/packetd/httpcore/webparse"
)

// echoHandler responds with the request body uppercased, the h2 twin of
// h1's test handler, exercising the full HEADERS->DATA read and
// SendResponse write path.
type echoHandler struct {
	handler.Base
	gotPath   string
	gotMethod string
}

func (h *echoHandler) Operate(ctx context.Context, req *webparse.Request) (*webparse.Response, error) {
	h.gotPath = req.Path
	h.gotMethod = req.Method
	data, err := req.Body.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	resp := webparse.NewResponse()
	resp.Status = 200
	resp.Body = body.NewText(strings.ToUpper(string(data)))
	return resp, nil
}

// testH2Client is a minimal hand-rolled HTTP/2 client speaking just enough
// of the protocol to drive Control in tests: preface, SETTINGS, one
// HEADERS(+DATA) request, and decoding the matching response.
type testH2Client struct {
	t   *testing.T
	fr  *http2.Framer
	dec *hpack.Decoder
	enc *hpack.Encoder
	buf bytes.Buffer
}

func newTestH2Client(t *testing.T, conn net.Conn) *testH2Client {
	t.Helper()
	_, err := io.WriteString(conn, webparse.HTTP2Preface)
	require.NoError(t, err)

	c := &testH2Client{t: t, fr: http2.NewFramer(conn, conn)}
	c.enc = hpack.NewEncoder(&c.buf)
	c.dec = hpack.NewDecoder(4096, nil)
	require.NoError(t, c.fr.WriteSettings())
	return c
}

func (c *testH2Client) sendRequest(streamID uint32, method, path string, payload []byte) {
	c.t.Helper()
	c.buf.Reset()
	require.NoError(c.t, c.enc.WriteField(hpack.HeaderField{Name: ":method", Value: method}))
	require.NoError(c.t, c.enc.WriteField(hpack.HeaderField{Name: ":path", Value: path}))
	require.NoError(c.t, c.enc.WriteField(hpack.HeaderField{Name: ":scheme", Value: "http"}))
	require.NoError(c.t, c.enc.WriteField(hpack.HeaderField{Name: ":authority", Value: "test"}))

	endStream := len(payload) == 0
	require.NoError(c.t, c.fr.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: c.buf.Bytes(),
		EndHeaders:    true,
		EndStream:     endStream,
	}))
	if !endStream {
		require.NoError(c.t, c.fr.WriteData(streamID, true, payload))
	}
}

// readResponse drains frames until streamID's response headers and full
// body (terminated by END_STREAM) have arrived.
func (c *testH2Client) readResponse(streamID uint32) (status int, data []byte) {
	c.t.Helper()
	for {
		frame, err := c.fr.ReadFrame()
		require.NoError(c.t, err)

		switch f := frame.(type) {
		case *http2.SettingsFrame:
			if !f.IsAck() {
				require.NoError(c.t, c.fr.WriteSettingsAck())
			}
		case *http2.HeadersFrame:
			if f.StreamID != streamID {
				continue
			}
			fields, err := c.dec.DecodeFull(f.HeaderBlockFragment())
			require.NoError(c.t, err)
			for _, field := range fields {
				if field.Name == ":status" {
					status = atoiMust(c.t, field.Value)
				}
			}
			if f.StreamEnded() {
				return status, data
			}
		case *http2.DataFrame:
			if f.StreamID != streamID {
				continue
			}
			data = append(data, f.Data()...)
			if f.StreamEnded() {
				return status, data
			}
		}
	}
}

func atoiMust(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, r := range s {
		require.True(t, r >= '0' && r <= '9')
		n = n*10 + int(r-'0')
	}
	return n
}

func TestControlServeHeadersOnlyRequest(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	h := &echoHandler{}
	ctrl := NewControl(serverConn, DefaultControlConfig(true), h)

	done := make(chan error, 1)
	go func() { done <- ctrl.Serve(context.Background()) }()

	client := newTestH2Client(t, clientConn)
	client.sendRequest(1, "GET", "/ping", nil)

	status, data := client.readResponse(1)
	assert.Equal(t, 200, status)
	assert.Equal(t, "", string(data))
	assert.Equal(t, "/ping", h.gotPath)
	assert.Equal(t, "GET", h.gotMethod)

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after client closed")
	}
}

func TestControlServeRequestWithBody(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	h := &echoHandler{}
	ctrl := NewControl(serverConn, DefaultControlConfig(true), h)

	done := make(chan error, 1)
	go func() { done <- ctrl.Serve(context.Background()) }()

	client := newTestH2Client(t, clientConn)
	client.sendRequest(1, "POST", "/upper", []byte("hello"))

	status, data := client.readResponse(1)
	assert.Equal(t, 200, status)
	assert.Equal(t, "HELLO", string(data))

	clientConn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after client closed")
	}
}
