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

	"github.com/panjf2000/disruptor/pkg/wait"
)

// MultiProducer is a Sequencer safe for any number of publishing goroutines.
//
// Producers claim disjoint ranges through a CAS on the high watermark and may
// finish writing them in any order. Publishing marks the range in a ready
// bitmap with one bit per slot, and the cursor is then moved across the
// contiguous prefix of ready sequences only, so consumers never see a gap.
type MultiProducer struct {
	base

	claimed      atomic.Int64 // highest sequence handed out by Next
	cachedGating atomic.Int64

	mask  int64
	ready []atomic.Uint64
}

// NewMultiProducer creates a MultiProducer for a ring buffer of bufferSize
// slots, which must be a power of two.
func NewMultiProducer(bufferSize int64, strategy wait.Strategy, opts ...Option) (*MultiProducer, error) {
	m := new(MultiProducer)
	if err := m.init(bufferSize, strategy, opts...); err != nil {
		return nil, err
	}
	m.mask = bufferSize - 1
	m.ready = make([]atomic.Uint64, (bufferSize+63)/64)
	return m, nil
}

// Next implements Sequencer.
func (m *MultiProducer) Next(count int64) (int64, int64, error) {
	if err := m.checkClaim(count); err != nil {
		return 0, 0, err
	}

	for spin := 0; ; spin++ {
		current := m.claimed.Load()
		hi := current + count
		wrap := hi - m.bufferSize
		if wrap >= m.cachedGating.Load() {
			minimum := m.minimumSequence(current)
			if wrap >= minimum {
				backoff(spin)
				continue
			}
			m.cachedGating.Store(minimum)
		}
		if m.claimed.CompareAndSwap(current, hi) {
			return current + 1, hi, nil
		}
	}
}

// Publish implements Sequencer.
func (m *MultiProducer) Publish(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		m.setReady(seq)
	}
	m.advance()
	m.published()
}

// advance moves the cursor over the contiguous run of ready sequences that
// follows it, one sequence at a time. A publisher owns the step from c to c+1
// only after clearing the bit of c+1 itself, which is why the bit is cleared
// before the cursor moves and put back when the cursor turns out to be stale.
func (m *MultiProducer) advance() {
	for {
		current := m.cursor.Get()
		next := current + 1
		if !m.clearReady(next) {
			// Either a gap, whose publisher will resume the scan, or another
			// publisher already owns this step.
			return
		}
		if !m.cursor.CompareAndSwap(current, next) {
			// The cursor had already passed next, the bit belongs to the
			// following lap of the ring.
			m.setReady(next)
		}
	}
}

func (m *MultiProducer) setReady(seq int64) {
	idx := seq & m.mask
	m.ready[idx>>6].Or(1 << uint(idx&63))
}

func (m *MultiProducer) clearReady(seq int64) bool {
	idx := seq & m.mask
	bit := uint64(1) << uint(idx&63)
	return m.ready[idx>>6].And(^bit)&bit != 0
}

func (m *MultiProducer) isReady(seq int64) bool {
	idx := seq & m.mask
	return m.ready[idx>>6].Load()&(1<<uint(idx&63)) != 0
}

// RemainingCapacity implements Sequencer.
func (m *MultiProducer) RemainingCapacity() int64 {
	claimed := m.claimed.Load()
	return m.bufferSize - 1 - (claimed - m.minimumSequence(claimed))
}
