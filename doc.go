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

// Package httpcore is the root of the HTTP/1.1 and HTTP/2 connection
// engine: h1.Conn and h2.Control drive parsed webparse.Request/Response
// values through a user-supplied handler.Handler.
package httpcore

import (
	_ "go.uber.org/automaxprocs" // sizes GOMAXPROCS from the cgroup quota on containerized hosts
)
