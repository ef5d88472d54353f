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

// Package sequencer implements the producer side of a ring buffer: claiming
// ranges of sequences, publishing them to consumers, honouring the gating
// sequences of the slowest consumers and draining the pipeline on shutdown.
package sequencer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/disruptor/pkg/errors"
	"github.com/panjf2000/disruptor/pkg/logging"
	"github.com/panjf2000/disruptor/pkg/math"
	"github.com/panjf2000/disruptor/pkg/sequence"
	"github.com/panjf2000/disruptor/pkg/wait"
)

// SpinMask decides how often a spinning producer yields the processor.
const SpinMask = 1024*16 - 1

// Sequencer coordinates producers claiming and publishing slots.
type Sequencer interface {
	// Next claims count contiguous sequences and returns the inclusive range.
	// It spins while the slowest gating sequence is too far behind to hand
	// out the range without overwriting unconsumed slots.
	// Every successful Next must be followed by exactly one Publish of the
	// same range.
	Next(count int64) (lo, hi int64, err error)
	// Publish makes a claimed range visible to consumers.
	Publish(lo, hi int64)
	// AddGatingSequences registers sequences the producer must not outrun.
	AddGatingSequences(seqs ...*sequence.Sequence)
	// RemoveGatingSequence unregisters a gating sequence.
	RemoveGatingSequence(seq *sequence.Sequence) bool
	// NewBarrier creates a consumer barrier depending on deps, or on the
	// cursor when deps is empty.
	NewBarrier(deps ...*sequence.Sequence) *Barrier
	// Cursor returns the published-up-to sequence.
	Cursor() *sequence.Sequence
	// BufferSize returns the capacity of the ring buffer.
	BufferSize() int64
	// RemainingCapacity returns the number of slots that may be claimed
	// without waiting.
	RemainingCapacity() int64
	// Done returns the context cancelled once Drain completes.
	Done() context.Context
	// Drained reports whether Drain has been called.
	Drained() bool
	// Drain stops accepting claims, waits until every consumer has caught up
	// with the cursor, then cancels Done and wakes every waiter.
	Drain()
}

// Options are the settings shared by both sequencer variants.
type Options struct {
	// Logger is the customized logger for logging info, if it is not set,
	// then disruptor will use the default logger powered by go.uber.org/zap.
	Logger logging.Logger
}

// Option is a function that will set up option.
type Option func(opts *Options)

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	return opts
}

type base struct {
	bufferSize int64
	strategy   wait.Strategy
	cursor     *sequence.Sequence
	gating     atomic.Pointer[sequence.Group]
	logger     logging.Logger

	inflight  atomic.Int64 // claimed ranges not published yet
	draining  atomic.Bool
	drainOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

func (b *base) init(bufferSize int64, strategy wait.Strategy, options ...Option) error {
	// A single slot leaves no room for a claim, see checkClaim.
	if bufferSize < 2 || !math.IsPowerOfTwo(bufferSize) {
		return errors.ErrInvalidCapacity
	}
	opts := loadOptions(options...)
	b.bufferSize = bufferSize
	b.strategy = strategy
	b.cursor = sequence.New()
	b.logger = opts.Logger
	b.gating.Store(&sequence.Group{})
	b.ctx, b.cancel = context.WithCancel(context.Background())
	return nil
}

func (b *base) checkClaim(count int64) error {
	if count < 1 || count >= b.bufferSize {
		return errors.ErrInvalidClaim
	}
	b.inflight.Add(1)
	// The draining flag is read after announcing the claim, so that Drain,
	// which sets the flag before reading inflight, either rejects this claim
	// or waits for it to be published.
	if b.draining.Load() {
		b.inflight.Add(-1)
		return errors.ErrSequencerDrained
	}
	return nil
}

func (b *base) published() {
	b.inflight.Add(-1)
	b.strategy.Signal()
}

func (b *base) gatingSequences() sequence.Group {
	return *b.gating.Load()
}

func (b *base) minimumSequence(fallback int64) int64 {
	if m := b.gatingSequences().Min(); m < fallback {
		return m
	}
	return fallback
}

// AddGatingSequences implements Sequencer.
func (b *base) AddGatingSequences(seqs ...*sequence.Sequence) {
	if b.draining.Load() {
		panic(errors.ErrSequencerDrained)
	}
	for {
		old := b.gating.Load()
		group := make(sequence.Group, 0, len(*old)+len(seqs))
		group = append(group, *old...)
		for _, s := range seqs {
			// A late joiner starts from the cursor, it must not gate on
			// sequences published before it existed.
			s.Set(b.cursor.Get())
			group = append(group, s)
		}
		if b.gating.CompareAndSwap(old, &group) {
			return
		}
	}
}

// RemoveGatingSequence implements Sequencer.
func (b *base) RemoveGatingSequence(seq *sequence.Sequence) bool {
	for {
		old := b.gating.Load()
		if !old.Contains(seq) {
			return false
		}
		group := old.Without(seq)
		if b.gating.CompareAndSwap(old, &group) {
			return true
		}
	}
}

// NewBarrier implements Sequencer.
func (b *base) NewBarrier(deps ...*sequence.Sequence) *Barrier {
	if len(deps) == 0 {
		deps = []*sequence.Sequence{b.cursor}
	}
	return &Barrier{strategy: b.strategy, deps: sequence.NewGroup(deps...)}
}

// Cursor implements Sequencer.
func (b *base) Cursor() *sequence.Sequence {
	return b.cursor
}

// BufferSize implements Sequencer.
func (b *base) BufferSize() int64 {
	return b.bufferSize
}

// Done implements Sequencer.
func (b *base) Done() context.Context {
	return b.ctx
}

// Drained implements Sequencer.
func (b *base) Drained() bool {
	return b.draining.Load()
}

// Drain implements Sequencer.
func (b *base) Drain() {
	b.drainOnce.Do(func() {
		b.draining.Store(true)
		for spin := 0; b.inflight.Load() != 0; spin++ {
			backoff(spin)
		}

		cursor := b.cursor.Get()
		for spin := 0; b.minimumSequence(cursor) < cursor; spin++ {
			backoff(spin)
		}

		b.cancel()
		b.strategy.Signal()
		b.logger.Infof("sequencer drained at sequence %d", cursor)
	})
}

func backoff(spin int) {
	if spin&SpinMask == 0 {
		runtime.Gosched()
	}
}

// Barrier is the consumer-side view of a set of dependencies.
type Barrier struct {
	strategy wait.Strategy
	deps     sequence.Group
}

// WaitFor blocks until every dependency has reached seq and returns the
// highest sequence available, or false once ctx is done.
func (b *Barrier) WaitFor(ctx context.Context, seq int64) (int64, bool) {
	return b.strategy.WaitFor(ctx, seq, b.deps)
}

// Signal wakes consumers parked on the same wait strategy.
func (b *Barrier) Signal() {
	b.strategy.Signal()
}

// Dependencies returns the sequences the barrier waits on.
func (b *Barrier) Dependencies() sequence.Group {
	return b.deps
}
