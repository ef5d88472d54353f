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

// Package sequence provides the atomic, cache-line padded counters that every
// producer and consumer of a ring buffer publishes its progress through.
//
// A sequence starts at InitialValue, which means that nothing has been
// published yet, the first event of a ring buffer carries sequence 1.
// Sequences never wrap, only slot indexes do.
package sequence

import (
	"math"
	"strconv"
	"sync/atomic"
)

const (
	// InitialValue is the value of a freshly created sequence.
	InitialValue int64 = 0
	// MaxValue is returned as the minimum of an empty group.
	MaxValue int64 = math.MaxInt64

	cacheLinePadding = 64
)

// Sequence is an atomically mutable int64 shared by pointer between the
// component that owns it and every component gating on it.
type Sequence struct {
	_     [cacheLinePadding]byte
	value atomic.Int64
	_     [cacheLinePadding - 8]byte
}

// New creates a Sequence holding InitialValue.
func New() *Sequence {
	return NewWithValue(InitialValue)
}

// NewWithValue creates a Sequence holding v.
func NewWithValue(v int64) *Sequence {
	s := new(Sequence)
	s.value.Store(v)
	return s
}

// Get loads the current value.
func (s *Sequence) Get() int64 {
	return s.value.Load()
}

// Set stores v, making every write that happened before it visible to
// readers that observe v.
func (s *Sequence) Set(v int64) {
	s.value.Store(v)
}

// CompareAndSwap sets the sequence to new if it currently holds old.
func (s *Sequence) CompareAndSwap(old, new int64) bool {
	return s.value.CompareAndSwap(old, new)
}

// Add atomically adds delta and returns the new value.
func (s *Sequence) Add(delta int64) int64 {
	return s.value.Add(delta)
}

func (s *Sequence) String() string {
	return strconv.FormatInt(s.Get(), 10)
}

// Group is an ordered set of sequences whose controlling value is the
// minimum across the set, the slowest dependency wins.
type Group []*Sequence

// NewGroup copies seqs into a new Group.
func NewGroup(seqs ...*Sequence) Group {
	g := make(Group, len(seqs))
	copy(g, seqs)
	return g
}

// Min returns the smallest value in the group, or MaxValue if it's empty.
func (g Group) Min() int64 {
	minimum := MaxValue
	for _, s := range g {
		if v := s.Get(); v < minimum {
			minimum = v
		}
	}
	return minimum
}

// Contains reports whether s is a member of the group.
func (g Group) Contains(s *Sequence) bool {
	for _, item := range g {
		if item == s {
			return true
		}
	}
	return false
}

// Without returns a copy of the group with every occurrence of s removed.
func (g Group) Without(s *Sequence) Group {
	out := make(Group, 0, len(g))
	for _, item := range g {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}
