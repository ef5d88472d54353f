// Copyright (c) 2024 The Gnet Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sequence

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestSequence(t *testing.T) {
	s := New()
	assert.EqualValues(t, InitialValue, s.Get())

	s.Set(7)
	assert.EqualValues(t, 7, s.Get())
	assert.False(t, s.CompareAndSwap(6, 8), "CAS must fail on a stale expectation")
	assert.True(t, s.CompareAndSwap(7, 8))
	assert.EqualValues(t, 8, s.Get())
	assert.EqualValues(t, 10, s.Add(2))
	assert.Equal(t, "10", s.String())

	assert.GreaterOrEqual(t, int(unsafe.Sizeof(Sequence{})), 2*cacheLinePadding)
}

func TestSequenceConcurrentCAS(t *testing.T) {
	const (
		workers = 8
		rounds  = 10000
	)
	s := New()
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for n := 0; n < rounds; n++ {
				for {
					cur := s.Get()
					if s.CompareAndSwap(cur, cur+1) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, workers*rounds, s.Get())
}

func TestGroup(t *testing.T) {
	var empty Group
	assert.Equal(t, MaxValue, empty.Min())

	a, b, c := NewWithValue(5), NewWithValue(2), NewWithValue(9)
	g := NewGroup(a, b, c)
	assert.EqualValues(t, 2, g.Min())

	b.Set(11)
	assert.EqualValues(t, 5, g.Min(), "slowest dependency wins")

	assert.True(t, g.Contains(c))
	g2 := g.Without(a)
	assert.Len(t, g2, 2)
	assert.False(t, g2.Contains(a))
	assert.EqualValues(t, 9, g2.Min())
	assert.Len(t, g, 3, "Without must not mutate the receiver")
}
