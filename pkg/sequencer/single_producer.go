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

package sequencer

import (
	"sync/atomic"

	"github.com/panjf2000/disruptor/pkg/sequence"
	"github.com/panjf2000/disruptor/pkg/wait"
)

// SingleProducer is a Sequencer for exactly one publishing goroutine, it is
// not safe to call Next or Publish concurrently.
type SingleProducer struct {
	base

	claimed      atomic.Int64 // highest sequence handed out by Next
	cachedGating int64        // last observed minimum gating sequence, producer-owned
}

// NewSingleProducer creates a SingleProducer for a ring buffer of bufferSize
// slots, which must be a power of two.
func NewSingleProducer(bufferSize int64, strategy wait.Strategy, opts ...Option) (*SingleProducer, error) {
	s := new(SingleProducer)
	if err := s.init(bufferSize, strategy, opts...); err != nil {
		return nil, err
	}
	s.cachedGating = sequence.InitialValue
	return s, nil
}

// Next implements Sequencer.
func (s *SingleProducer) Next(count int64) (int64, int64, error) {
	if err := s.checkClaim(count); err != nil {
		return 0, 0, err
	}

	current := s.claimed.Load()
	hi := current + count
	if wrap := hi - s.bufferSize; wrap >= s.cachedGating {
		minimum := s.minimumSequence(current)
		for spin := 0; wrap >= minimum; spin++ {
			backoff(spin)
			minimum = s.minimumSequence(current)
		}
		s.cachedGating = minimum
	}
	s.claimed.Store(hi)

	return current + 1, hi, nil
}

// Publish implements Sequencer.
func (s *SingleProducer) Publish(_, hi int64) {
	s.cursor.Set(hi)
	s.published()
}

// RemainingCapacity implements Sequencer.
func (s *SingleProducer) RemainingCapacity() int64 {
	claimed := s.claimed.Load()
	return s.bufferSize - 1 - (claimed - s.minimumSequence(claimed))
}
