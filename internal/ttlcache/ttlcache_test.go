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

package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetHasExpire(t *testing.T) {
	c := New(30 * time.Millisecond)
	defer c.Close()

	c.Set(7)
	assert.True(t, c.Has(7))
	assert.False(t, c.Has(9))
	assert.Equal(t, 1, c.Count())

	assert.Eventually(t, func() bool {
		return !c.Has(7)
	}, time.Second, 5*time.Millisecond)
}

func TestCacheGCReclaims(t *testing.T) {
	c := New(20 * time.Millisecond)
	defer c.Close()

	for i := uint32(0); i < 5; i++ {
		c.Set(i)
	}
	assert.Equal(t, 5, c.Count())

	assert.Eventually(t, func() bool {
		return c.Count() == 0
	}, time.Second, 5*time.Millisecond)
}
