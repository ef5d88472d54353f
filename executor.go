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
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/disruptor/internal/affinity"
	"github.com/panjf2000/disruptor/pkg/errors"
	"github.com/panjf2000/disruptor/pkg/pool/goroutine"
	"github.com/panjf2000/disruptor/pkg/sequencer"
)

// ConsumerInfo is a snapshot of one event processor.
type ConsumerInfo struct {
	Name     string
	Stage    int
	Sequence int64
	State    ProcessorState
}

// Executor owns the event processors of a pipeline and runs each of them on
// its own goroutine.
type Executor struct {
	processors []processor
	sequencer  sequencer.Sequencer
	opts       *Options
	started    atomic.Bool
}

// Spawn launches one goroutine per event processor and returns the handle to
// wait for them. The goroutines only exit after the producer side drained.
func (e *Executor) Spawn() (*JoinHandle, error) {
	if !e.started.CompareAndSwap(false, true) {
		return nil, errors.ErrAlreadyStarted
	}

	pool, err := goroutine.NewPool(len(e.processors), func(v any) {
		e.opts.Logger.Errorf("event processor exited with a panic: %v", v)
	})
	if err != nil {
		return nil, err
	}

	h := &JoinHandle{pool: pool}
	ctx := e.sequencer.Done()
	for i, p := range e.processors {
		cpu, pinned := affinity.Assign(e.opts.CPUAffinity, i)
		p := p
		h.wg.Add(1)
		err = pool.Submit(func() {
			defer h.wg.Done()
			if e.opts.LockOSThread {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				if pinned {
					if err := affinity.Pin(cpu); err != nil {
						e.opts.Logger.Warnf("failed to pin event processor %s to CPU %d: %v", p.info().Name, cpu, err)
					}
				}
			}
			p.run(ctx)
		})
		if err != nil {
			// The pool holds exactly one worker per processor, Submit only
			// fails once the pool is closed.
			h.wg.Done()
			e.opts.Logger.Errorf("failed to spawn event processor %s: %v", p.info().Name, err)
			return h, err
		}
	}
	e.opts.Logger.Debugf("spawned %d event processors", len(e.processors))
	return h, nil
}

// Consumers returns a snapshot of every event processor, in stage order.
func (e *Executor) Consumers() []ConsumerInfo {
	infos := make([]ConsumerInfo, len(e.processors))
	for i, p := range e.processors {
		infos[i] = p.info()
	}
	return infos
}

// Cursor returns the highest sequence published by producers.
func (e *Executor) Cursor() int64 {
	return e.sequencer.Cursor().Get()
}

// BufferSize returns the capacity of the ring buffer.
func (e *Executor) BufferSize() int64 {
	return e.sequencer.BufferSize()
}

// releaseTimeout bounds how long Join waits for idle pool workers to exit.
const releaseTimeout = 5 * time.Second

// JoinHandle waits for the goroutines started by Executor.Spawn.
type JoinHandle struct {
	wg   sync.WaitGroup
	pool *goroutine.Pool
	once sync.Once
	err  error
}

// Join blocks until every event processor observed the drain and exited, then
// releases the workers they ran on.
func (h *JoinHandle) Join() error {
	h.wg.Wait()
	h.once.Do(func() {
		h.err = h.pool.ReleaseTimeout(releaseTimeout)
	})
	return h.err
}
