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

// Package handler defines the user-implemented capability the h1 and h2
// connection engines dispatch parsed messages to.
package handler

import (
	"context"

	"github.com/packetd/httpcore/webparse"
)

// Handler is the middleware-and-endpoint contract a connection engine
// drives: ProcessRequest runs first and may short-circuit Operate by
// returning a non-nil Response, the same way the Rust original's
// middleware trait objects chain in front of the final handler.
type Handler interface {
	// Operate produces the response for a request that no ProcessRequest
	// stage already answered.
	Operate(ctx context.Context, req *webparse.Request) (*webparse.Response, error)

	// ProcessRequest runs before Operate. Returning a non-nil Response
	// (even with a nil error) short-circuits Operate entirely.
	ProcessRequest(ctx context.Context, req *webparse.Request) (*webparse.Response, error)

	// ProcessResponse runs after a response is produced (whether by
	// ProcessRequest or Operate) and before it is written to the wire. A
	// client-side Handler is the explicit decision point for a 101
	// response: it alone may set Response.DidUpgrade.
	ProcessResponse(ctx context.Context, resp *webparse.Response) error

	// ProcessError is called whenever parsing or handling failed; it never
	// returns a value because by this point there is nothing left to send
	// beyond whatever the engine itself emits (e.g. a 400/500 response).
	ProcessError(ctx context.Context, err error)
}

// Base embeds no-op implementations of every Handler method so callers can
// override only what they need, the same role the Rust original's
// default-impl trait methods play.
type Base struct{}

func (Base) Operate(_ context.Context, _ *webparse.Request) (*webparse.Response, error) {
	return webparse.NewResponse(), nil
}

func (Base) ProcessRequest(_ context.Context, _ *webparse.Request) (*webparse.Response, error) {
	return nil, nil
}

func (Base) ProcessResponse(_ context.Context, _ *webparse.Response) error {
	return nil
}

func (Base) ProcessError(_ context.Context, _ error) {}
