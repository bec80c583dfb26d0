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

package httpcore_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/packetd/httpcore/body"
	"github.com/packetd/httpcore/h1"
	"github.com/packetd/httpcore/handler"
	"github.com/packetd/httpcore/webparse"
)

// muxHandler plays the "Server builder" collaborator role from the outside
// of h1/h2: it adapts a decoded webparse.Request onto a gorilla/mux router
// exactly the way the teacher's own server.Server wraps one, letting
// ordinary net/http.HandlerFunc route registrations drive the connection
// engine's output.
type muxHandler struct {
	handler.Base
	router *mux.Router
}

func (m *muxHandler) Operate(ctx context.Context, req *webparse.Request) (*webparse.Response, error) {
	data, err := req.Body.ReadAll(ctx)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.Path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header = req.Header

	rec := httptest.NewRecorder()
	m.router.ServeHTTP(rec, httpReq)

	resp := webparse.NewResponse()
	resp.Status = rec.Code
	resp.Header = rec.Header()
	resp.Body = body.NewText(rec.Body.String())
	return resp, nil
}

// TestIntegrationMuxRoutingOverH1 drives a real TCP round trip through
// h1.Conn into a gorilla/mux router, end to end.
func TestIntegrationMuxRoutingOverH1(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/hello/{name}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello, %s", mux.Vars(r)["name"])
	}).Methods(http.MethodGet)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	h := &muxHandler{router: router}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = h1.NewConn(conn, true, h).Serve(context.Background())
	}()

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/hello/world", nil)
	require.NoError(t, err)
	req.Close = true

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "hello, world", string(data))
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
