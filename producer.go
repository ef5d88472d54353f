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

package disruptor

import (
	"fmt"

	"github.com/panjf2000/disruptor/pkg/ring"
	"github.com/panjf2000/disruptor/pkg/sequencer"
)

// Claim is the proof that a producer owns a range of sequences, it is the only
// way to reach the slots of that range for writing.
type Claim[T any] struct {
	lo, hi int64
	data   *ring.Buffer[T]
}

// Lo returns the first claimed sequence.
func (c Claim[T]) Lo() int64 { return c.lo }

// Hi returns the last claimed sequence.
func (c Claim[T]) Hi() int64 { return c.hi }

// Len returns the number of claimed sequences.
func (c Claim[T]) Len() int64 { return c.hi - c.lo + 1 }

// Event returns the slot of seq, which must lie within the claim.
func (c Claim[T]) Event(seq int64) *T {
	if seq < c.lo || seq > c.hi {
		panic(fmt.Sprintf("disruptor: sequence %d is outside of the claimed range [%d, %d]", seq, c.lo, c.hi))
	}
	return c.data.Get(seq)
}

// Each calls translate for every claimed slot in sequence order.
func (c Claim[T]) Each(translate EventTranslator[T]) {
	for seq := c.lo; seq <= c.hi; seq++ {
		translate(c.data.Get(seq), seq)
	}
}

// Producer is the publishing end of a pipeline. It may be shared by several
// goroutines only when the pipeline was built WithMultiProducer.
type Producer[T any] struct {
	sequencer sequencer.Sequencer
	data      *ring.Buffer[T]
}

// Next claims count slots, waiting while the slowest consumer is too far
// behind. The claim must be handed back to Publish.
func (p *Producer[T]) Next(count int64) (Claim[T], error) {
	lo, hi, err := p.sequencer.Next(count)
	if err != nil {
		return Claim[T]{}, err
	}
	return Claim[T]{lo: lo, hi: hi, data: p.data}, nil
}

// Publish makes the claimed slots visible to consumers.
func (p *Producer[T]) Publish(c Claim[T]) {
	p.sequencer.Publish(c.lo, c.hi)
}

// PublishEvent claims one slot, fills it with translate and publishes it.
func (p *Producer[T]) PublishEvent(translate EventTranslator[T]) error {
	return p.PublishEvents(1, translate)
}

// PublishEvents claims count slots, fills each of them with translate and
// publishes them as one batch. The slots are published even if translate
// panics, the panic is then propagated to the caller.
func (p *Producer[T]) PublishEvents(count int64, translate EventTranslator[T]) error {
	c, err := p.Next(count)
	if err != nil {
		return err
	}
	// A claim left unpublished would stall the cursor and the drain.
	defer p.Publish(c)
	c.Each(translate)
	return nil
}

// Cursor returns the highest sequence visible to consumers.
func (p *Producer[T]) Cursor() int64 {
	return p.sequencer.Cursor().Get()
}

// RemainingCapacity returns how many slots can be claimed without waiting.
func (p *Producer[T]) RemainingCapacity() int64 {
	return p.sequencer.RemainingCapacity()
}

// BufferSize returns the capacity of the ring buffer.
func (p *Producer[T]) BufferSize() int64 {
	return p.sequencer.BufferSize()
}

// Drain stops accepting new claims, waits until every published event went
// through every stage, then lets the event processors exit. It must be called
// once all producing goroutines are done, JoinHandle.Join returns afterwards.
func (p *Producer[T]) Drain() {
	p.sequencer.Drain()
}
