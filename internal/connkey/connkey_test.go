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

package connkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagsHashOrderIndependent(t *testing.T) {
	a := Tags{{Name: "local", Value: "10.0.0.1:80"}, {Name: "remote", Value: "10.0.0.2:9001"}}
	b := Tags{{Name: "remote", Value: "10.0.0.2:9001"}, {Name: "local", Value: "10.0.0.1:80"}}
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestTagsHashDiffers(t *testing.T) {
	a := Tags{{Name: "local", Value: "10.0.0.1:80"}}
	b := Tags{{Name: "local", Value: "10.0.0.1:81"}}
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestConnAndStream(t *testing.T) {
	ck := Conn("10.0.0.1:80", "10.0.0.2:9001")
	s1 := Stream(ck, 1)
	s3 := Stream(ck, 3)
	assert.NotEqual(t, s1, s3)
	assert.NotEqual(t, ck, s1)
}
