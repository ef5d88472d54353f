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
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/disruptor/pkg/errors"
	"github.com/panjf2000/disruptor/pkg/logging"
	"github.com/panjf2000/disruptor/pkg/ring"
	"github.com/panjf2000/disruptor/pkg/sequence"
	"github.com/panjf2000/disruptor/pkg/sequencer"
)

// ProcessorState is the run state of an event processor.
type ProcessorState int32

const (
	// StateIdle means the processor is between two batches or not started.
	StateIdle ProcessorState = iota
	// StateWaiting means the processor is blocked in its barrier.
	StateWaiting
	// StateProcessing means the processor is running its handler over a batch.
	StateProcessing
	// StateDrained means the processor observed the drain and exited.
	StateDrained
)

func (s ProcessorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateProcessing:
		return "processing"
	case StateDrained:
		return "drained"
	}
	return fmt.Sprintf("ProcessorState(%d)", int32(s))
}

// processor is the type-erased view of an eventProcessor the executor runs.
type processor interface {
	run(ctx context.Context)
	info() ConsumerInfo
}

// eventProcessor pulls batches of available sequences through its barrier and
// hands them to one handler, publishing its own progress afterwards.
type eventProcessor[T any] struct {
	name    string
	stage   int
	data    ring.DataProvider[T]
	barrier *sequencer.Barrier
	handler EventHandler[T]
	guard   *sync.Mutex // non-nil for exclusive handlers shared by several processors

	sequence *sequence.Sequence
	state    atomic.Int32

	onPanic PanicHandler
	logger  logging.Logger
}

func (p *eventProcessor[T]) setState(s ProcessorState) {
	p.state.Store(int32(s))
}

func (p *eventProcessor[T]) info() ConsumerInfo {
	return ConsumerInfo{
		Name:     p.name,
		Stage:    p.stage,
		Sequence: p.sequence.Get(),
		State:    ProcessorState(p.state.Load()),
	}
}

func (p *eventProcessor[T]) run(ctx context.Context) {
	if la, ok := p.handler.(LifecycleAware); ok {
		p.locked(la.OnStart)
		defer p.locked(la.OnShutdown)
	}
	defer p.setState(StateDrained)

	p.logger.Debugf("event processor %s started at sequence %d", p.name, p.sequence.Get())
	next := p.sequence.Get() + 1
	for {
		p.setState(StateWaiting)
		available, ok := p.barrier.WaitFor(ctx, next)
		if !ok {
			p.logger.Debugf("event processor %s drained at sequence %d", p.name, next-1)
			return
		}

		p.setState(StateProcessing)
		p.processBatch(next, available)
		p.sequence.Set(available)
		// Downstream stages may be parked on the same strategy.
		p.barrier.Signal()
		p.setState(StateIdle)

		next = available + 1
	}
}

// locked runs fn under the guard of an exclusive handler, if any.
func (p *eventProcessor[T]) locked(fn func()) {
	if p.guard != nil {
		p.guard.Lock()
		defer p.guard.Unlock()
	}
	fn()
}

func (p *eventProcessor[T]) processBatch(lo, hi int64) {
	if p.guard != nil {
		p.guard.Lock()
		defer p.guard.Unlock()
	}
	for seq := lo; seq <= hi; seq++ {
		seq = p.handleRange(seq, hi)
	}
}

// handleRange invokes the handler for lo..hi and returns the last sequence it
// was invoked for, which is the panicking one if the handler panicked.
func (p *eventProcessor[T]) handleRange(lo, hi int64) (last int64) {
	defer func() {
		if r := recover(); r != nil {
			p.onPanic(p.name, last, fmt.Errorf("%w: %v", errors.ErrHandlerPanic, r))
		}
	}()
	for last = lo; last <= hi; last++ {
		p.handler.OnEvent(p.data.Get(last), last, last == hi)
	}
	return hi
}

func logPanic(logger logging.Logger) PanicHandler {
	return func(processor string, sequence int64, err error) {
		logger.Errorf("event processor %s failed to handle sequence %d: %v", processor, sequence, err)
	}
}
