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

// Package ring provides the pre-allocated, power-of-two slot array events are
// written into by producers and read from by consumers.
//
// Slots are accessed by sequence without any locking or bounds bookkeeping,
// exclusivity is conferred by the sequencing protocol alone: a goroutine may
// write the slot of sequence s only after claiming s from a sequencer, and may
// read it only after a barrier has certified s as published.
package ring

import (
	"github.com/panjf2000/disruptor/pkg/errors"
	"github.com/panjf2000/disruptor/pkg/math"
)

// DataProvider is the storage contract a sequencer-driven pipeline needs.
type DataProvider[T any] interface {
	// Get returns the slot of the given sequence.
	Get(sequence int64) *T
	// BufferSize returns the number of slots.
	BufferSize() int64
}

// Option configures a Buffer.
type Option[T any] func(b *Buffer[T])

// WithFactory pre-fills every slot with the value returned by factory.
func WithFactory[T any](factory func() T) Option[T] {
	return func(b *Buffer[T]) {
		for i := range b.slots {
			b.slots[i] = factory()
		}
	}
}

// Buffer is a fixed-capacity circular array of T.
type Buffer[T any] struct {
	mask  int64
	slots []T
}

// New allocates a Buffer with the given capacity, which must be a power of two.
func New[T any](capacity int64, opts ...Option[T]) (*Buffer[T], error) {
	if !math.IsPowerOfTwo(capacity) {
		return nil, errors.ErrInvalidCapacity
	}
	b := &Buffer[T]{
		mask:  capacity - 1,
		slots: make([]T, capacity),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Must is like New but panics on an invalid capacity.
func Must[T any](capacity int64, opts ...Option[T]) *Buffer[T] {
	b, err := New[T](capacity, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

// Get returns a pointer to the slot holding the given sequence.
func (b *Buffer[T]) Get(sequence int64) *T {
	return &b.slots[sequence&b.mask]
}

// BufferSize returns the capacity of the buffer.
func (b *Buffer[T]) BufferSize() int64 {
	return b.mask + 1
}
