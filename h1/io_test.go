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
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/handler"
	"github.com/packetd/httpcore/webparse"
)

// echoHandler responds with the request body uppercased, exercising the
// full read-then-write round trip.
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
	resp.Header.Set("Content-Type", "text/plain")
	resp.Body = body.NewText(strings.ToUpper(string(data)))
	return resp, nil
}

func TestConnServeFixedLengthRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	h := &echoHandler{}
	conn := NewConn(server, true, h)

	done := make(chan error, 1)
	go func() { done <- conn.Serve(context.Background()) }()

	req := "POST /upper HTTP/1.1\r\nHost: test\r\nContent-Length: 5\r\nConnection: close\r\n\r\nhello"
	_, err := client.Write([]byte(req))
	require.NoError(t, err)

	br := bufio.NewReader(client)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "200")

	var bodyOut strings.Builder
	inBody := false
	for {
		line, err := br.ReadString('\n')
		if inBody {
			bodyOut.WriteString(line)
		} else if err == nil && strings.TrimSpace(line) == "" {
			inBody = true
		}
		if err != nil {
			break
		}
	}
	assert.Equal(t, "HELLO", bodyOut.String())
	assert.Equal(t, "/upper", h.gotPath)
	assert.Equal(t, "POST", h.gotMethod)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Connection: close")
	}
}

func TestConnServeChunkedRequestBody(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	h := &echoHandler{}
	conn := NewConn(server, true, h)

	done := make(chan error, 1)
	go func() { done <- conn.Serve(context.Background()) }()

	req := "POST /upper HTTP/1.1\r\nHost: test\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n" +
		"3\r\nabc\r\n3\r\ndef\r\n0\r\n\r\n"
	_, err := client.Write([]byte(req))
	require.NoError(t, err)

	br := bufio.NewReader(client)
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, statusLine, "200")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Connection: close")
	}
}

func TestConnServeDetectsH2CPreface(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewConn(server, true, &handler.Base{})

	done := make(chan error, 1)
	go func() { done <- conn.Serve(context.Background()) }()

	_, err := client.Write([]byte(webparse.HTTP2Preface))
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrUpgradeToH2C)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not detect h2c preface")
	}
}

func TestBodyFramingRules(t *testing.T) {
	header := webparse.NewRequest().Header
	header.Set(webparse.HeaderContentLength, "42")
	chunked, length, hasLength, closeDelim := bodyFraming(header, true, false)
	assert.False(t, chunked)
	assert.True(t, hasLength)
	assert.Equal(t, int64(42), length)
	assert.False(t, closeDelim)

	header2 := webparse.NewRequest().Header
	header2.Set(webparse.HeaderTransferEncoding, "gzip, chunked")
	chunked2, _, _, _ := bodyFraming(header2, true, false)
	assert.True(t, chunked2)

	header3 := webparse.NewRequest().Header
	_, _, hasLength3, closeDelim3 := bodyFraming(header3, false, false)
	assert.False(t, hasLength3)
	assert.True(t, closeDelim3)

	header4 := webparse.NewRequest().Header
	_, _, hasLength4, closeDelim4 := bodyFraming(header4, true, false)
	assert.True(t, hasLength4)
	assert.False(t, closeDelim4)
}
