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

package webparse

import (
	"net/http"

	"github.com/packetd/httpcore/internal/tracekit"
)

// PopulateTrace resolves the TraceID/SpanID a connection engine should
// stamp onto a newly parsed Request: carried forward from an incoming
// traceparent header if present, or freshly generated otherwise, so every
// request/response pair is correlatable in logs even when the caller sent
// none.
func PopulateTrace(h http.Header) (traceID [16]byte, spanID [8]byte) {
	if tc, ok := tracekit.TraceIDFromHTTPHeader(h); ok {
		return [16]byte(tc.TraceID), [8]byte(tracekit.RandomSpanID())
	}
	return [16]byte(tracekit.RandomTraceID()), [8]byte(tracekit.RandomSpanID())
}
