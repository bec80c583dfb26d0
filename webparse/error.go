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
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a ProtError so callers can branch on failure category
// without string-matching messages.
type Kind int

const (
	KindParse Kind = iota
	KindProtocolViolation
	KindUpgrade
	KindFlowControl
	KindCompression
	KindIo
	KindExtension
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindProtocolViolation:
		return "protocol_violation"
	case KindUpgrade:
		return "upgrade"
	case KindFlowControl:
		return "flow_control"
	case KindCompression:
		return "compression"
	case KindIo:
		return "io"
	case KindExtension:
		return "extension"
	default:
		return "unknown"
	}
}

// ProtError is the engine's single error type, carrying a Kind alongside
// the wrapped cause so errors.Is/errors.As can branch on category while
// %+v still prints a stack trace via pkg/errors.
type ProtError struct {
	Kind Kind
	Err  error
}

func (e *ProtError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProtError) Unwrap() error {
	return e.Err
}

// NewError builds a ProtError of the given kind, formatting format/args with
// errors.Errorf so the result carries a stack trace.
func NewError(kind Kind, format string, args ...any) error {
	return &ProtError{Kind: kind, Err: errors.Errorf(format, args...)}
}

// WrapError wraps err into a ProtError of the given kind, or returns nil if
// err is nil.
func WrapError(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &ProtError{Kind: kind, Err: errors.Wrap(err, msg)}
}

// IsKind reports whether err, or an error it wraps, is a ProtError with the
// given Kind.
func IsKind(err error, kind Kind) bool {
	var pe *ProtError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// ErrServerUpgradeHTTP2 is returned by h1 when the client sends the HTTP/2
// connection preface instead of a valid HTTP/1.1 request line — the caller
// should hand the connection off to h2 rather than treat this as a parse
// failure.
var ErrServerUpgradeHTTP2 = &ProtError{Kind: KindUpgrade, Err: errors.New("client requested h2c upgrade via connection preface")}
