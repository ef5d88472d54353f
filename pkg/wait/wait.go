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

// Package wait provides the policies consumers use to wait until a sequence
// becomes available.
//
// Every strategy takes the cancellation token as an explicit context.Context
// and observes its cancellation even if Signal is never called again.
package wait

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/panjf2000/disruptor/pkg/sequence"
)

// Strategy waits until the minimum of a set of dependencies reaches a sequence.
type Strategy interface {
	// WaitFor blocks until min(deps) >= seq and returns that minimum, or returns
	// false once ctx is done before the condition holds.
	WaitFor(ctx context.Context, seq int64, deps sequence.Group) (int64, bool)
	// Signal wakes the goroutines parked in WaitFor.
	Signal()
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Blocking parks waiting goroutines until a producer or a consumer signals
// progress, trading wake-up latency for idle CPU.
type Blocking struct {
	waiters atomic.Int32
	wakeup  atomic.Pointer[chan struct{}]
}

// NewBlocking creates a Blocking strategy.
func NewBlocking() *Blocking {
	b := new(Blocking)
	ch := make(chan struct{})
	b.wakeup.Store(&ch)
	return b
}

// WaitFor implements Strategy.
func (b *Blocking) WaitFor(ctx context.Context, seq int64, deps sequence.Group) (int64, bool) {
	if available := deps.Min(); available >= seq {
		return available, true
	}

	b.waiters.Add(1)
	defer b.waiters.Add(-1)
	for {
		// Load the channel before re-checking, a Signal racing with the check
		// closes this very channel.
		ch := b.wakeup.Load()
		if available := deps.Min(); available >= seq {
			return available, true
		}
		select {
		case <-*ch:
		case <-ctx.Done():
			return 0, false
		}
	}
}

// Signal implements Strategy.
func (b *Blocking) Signal() {
	if b.waiters.Load() == 0 {
		return
	}
	ch := make(chan struct{})
	close(*b.wakeup.Swap(&ch))
}

// BusySpin re-polls the dependencies in a tight loop, trading CPU for latency.
// It never yields, so every waiting consumer needs a core of its own.
type BusySpin struct{}

// NewBusySpin creates a BusySpin strategy.
func NewBusySpin() BusySpin {
	return BusySpin{}
}

// WaitFor implements Strategy.
func (BusySpin) WaitFor(ctx context.Context, seq int64, deps sequence.Group) (int64, bool) {
	for {
		if available := deps.Min(); available >= seq {
			return available, true
		}
		if cancelled(ctx) {
			return 0, false
		}
	}
}

// Signal is a no-op, nothing is ever parked.
func (BusySpin) Signal() {}

// DefaultSpinTries is the number of polls Yielding makes before yielding.
const DefaultSpinTries = 100

// Yielding spins for a while and then yields the processor on every poll,
// which suits pipelines running more consumers than there are cores.
type Yielding struct {
	SpinTries int
}

// NewYielding creates a Yielding strategy with DefaultSpinTries.
func NewYielding() Yielding {
	return Yielding{SpinTries: DefaultSpinTries}
}

// WaitFor implements Strategy.
func (y Yielding) WaitFor(ctx context.Context, seq int64, deps sequence.Group) (int64, bool) {
	for counter := y.SpinTries; ; {
		if available := deps.Min(); available >= seq {
			return available, true
		}
		if cancelled(ctx) {
			return 0, false
		}
		if counter > 0 {
			counter--
		} else {
			runtime.Gosched()
		}
	}
}

// Signal is a no-op, nothing is ever parked.
func (Yielding) Signal() {}
