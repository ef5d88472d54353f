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
	"reflect"
	"sync"

	"github.com/panjf2000/disruptor/pkg/errors"
	"github.com/panjf2000/disruptor/pkg/logging"
	"github.com/panjf2000/disruptor/pkg/ring"
	"github.com/panjf2000/disruptor/pkg/sequence"
	"github.com/panjf2000/disruptor/pkg/sequencer"
	"github.com/panjf2000/disruptor/pkg/wait"
)

type registration[T any] struct {
	handler   EventHandler[T]
	exclusive bool
}

// Scope collects the handlers of one stage. Handlers registered on the same
// scope are siblings: each gets its own event processor and they all consume
// the same events concurrently behind the same barrier.
type Scope[T any] struct {
	handlers []registration[T]
	err      error
}

// HandleEvents registers a shared handler on the stage.
func (s *Scope[T]) HandleEvents(handler EventHandler[T]) *Scope[T] {
	if handler == nil {
		s.err = errors.ErrNilEventHandler
		return s
	}
	s.handlers = append(s.handlers, registration[T]{handler: handler})
	return s
}

// HandleEventsMut registers an exclusive handler on the stage.
func (s *Scope[T]) HandleEventsMut(handler EventHandlerMut[T]) *Scope[T] {
	if handler == nil {
		s.err = errors.ErrNilEventHandler
		return s
	}
	s.handlers = append(s.handlers, registration[T]{handler: handler, exclusive: true})
	return s
}

// Builder assembles a ring buffer, a sequencer, a wait strategy and a chain of
// consumer stages into a runnable pipeline.
type Builder[T any] struct {
	capacity    int64
	opts        *Options
	factory     func() T
	newStrategy func() wait.Strategy
	multi       bool
	stages      [][]registration[T]
	err         error
	built       bool
}

// WithRingBuffer starts a pipeline over a ring buffer of the given capacity,
// which must be a power of two of at least 2. It defaults to a single
// producer and a blocking wait strategy.
func WithRingBuffer[T any](capacity int64, options ...Option) *Builder[T] {
	return &Builder[T]{
		capacity:    capacity,
		opts:        loadOptions(options...),
		newStrategy: func() wait.Strategy { return wait.NewBlocking() },
	}
}

// WithEventFactory pre-allocates every slot with factory.
func (b *Builder[T]) WithEventFactory(factory func() T) *Builder[T] {
	b.factory = factory
	return b
}

// WithBlockingWait parks idle consumers until producers publish.
func (b *Builder[T]) WithBlockingWait() *Builder[T] {
	return b.WithWaitStrategy(wait.NewBlocking())
}

// WithSpinWait keeps idle consumers polling in a tight loop. It assumes a
// spare core for every event processor, hosts with fewer cores than
// processors should use WithYieldingWait instead.
func (b *Builder[T]) WithSpinWait() *Builder[T] {
	return b.WithWaitStrategy(wait.NewBusySpin())
}

// WithYieldingWait keeps idle consumers polling but yields the processor.
func (b *Builder[T]) WithYieldingWait() *Builder[T] {
	return b.WithWaitStrategy(wait.NewYielding())
}

// WithWaitStrategy uses strategy for every barrier of the pipeline.
func (b *Builder[T]) WithWaitStrategy(strategy wait.Strategy) *Builder[T] {
	b.newStrategy = func() wait.Strategy { return strategy }
	return b
}

// WithSingleProducer expects exactly one publishing goroutine.
func (b *Builder[T]) WithSingleProducer() *Builder[T] {
	b.multi = false
	return b
}

// WithMultiProducer allows any number of goroutines to share the producer.
func (b *Builder[T]) WithMultiProducer() *Builder[T] {
	b.multi = true
	return b
}

// WithBarrier appends a stage to the pipeline. The stage only sees an event
// once every handler of the previous stage is done with it.
func (b *Builder[T]) WithBarrier(register func(scope *Scope[T])) *Builder[T] {
	scope := new(Scope[T])
	register(scope)
	switch {
	case scope.err != nil:
		b.setErr(scope.err)
	case len(scope.handlers) == 0:
		b.setErr(errors.ErrEmptyBarrier)
	default:
		b.stages = append(b.stages, scope.handlers)
	}
	return b
}

func (b *Builder[T]) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build wires the pipeline and returns its executor and producer.
func (b *Builder[T]) Build() (*Executor, *Producer[T], error) {
	if b.built {
		return nil, nil, errors.ErrAlreadyBuilt
	}
	b.built = true
	if b.err != nil {
		return nil, nil, b.err
	}
	if len(b.stages) == 0 {
		return nil, nil, errors.ErrNoEventHandlers
	}

	var ringOpts []ring.Option[T]
	if b.factory != nil {
		ringOpts = append(ringOpts, ring.WithFactory(b.factory))
	}
	data, err := ring.New[T](b.capacity, ringOpts...)
	if err != nil {
		return nil, nil, err
	}

	seq, err := b.newSequencer()
	if err != nil {
		return nil, nil, err
	}

	onPanic := b.opts.PanicHandler
	if onPanic == nil {
		onPanic = logPanic(b.opts.Logger)
	}
	guards := b.exclusiveGuards()

	var (
		processors []processor
		upstream   []*sequence.Sequence
	)
	for i, stage := range b.stages {
		barrier := seq.NewBarrier(upstream...)
		cursors := make([]*sequence.Sequence, 0, len(stage))
		for j, reg := range stage {
			name := fmt.Sprintf("stage-%d/handler-%d", i, j)
			p := &eventProcessor[T]{
				name:     name,
				stage:    i,
				data:     data,
				barrier:  barrier,
				handler:  reg.handler,
				sequence: sequence.New(),
				onPanic:  onPanic,
				logger:   logging.Named(b.opts.Logger, name),
			}
			if reg.exclusive && identifiable(reg.handler) {
				p.guard = guards[reg.handler]
			}
			processors = append(processors, p)
			cursors = append(cursors, p.sequence)
		}
		upstream = cursors
	}
	// Only the last stage gates the producer, earlier stages are always ahead of it.
	seq.AddGatingSequences(upstream...)

	return &Executor{processors: processors, sequencer: seq, opts: b.opts},
		&Producer[T]{sequencer: seq, data: data},
		nil
}

// MustBuild is like Build but panics if the pipeline is misconfigured.
func (b *Builder[T]) MustBuild() (*Executor, *Producer[T]) {
	e, p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e, p
}

func (b *Builder[T]) newSequencer() (sequencer.Sequencer, error) {
	strategy := b.newStrategy()
	if b.multi {
		return sequencer.NewMultiProducer(b.capacity, strategy, sequencer.WithLogger(b.opts.Logger))
	}
	return sequencer.NewSingleProducer(b.capacity, strategy, sequencer.WithLogger(b.opts.Logger))
}

// exclusiveGuards returns a mutex for every exclusive handler instance that is
// registered more than once, instances registered once need no guard.
func (b *Builder[T]) exclusiveGuards() map[EventHandler[T]]*sync.Mutex {
	counts := make(map[EventHandler[T]]int)
	for _, stage := range b.stages {
		for _, reg := range stage {
			if reg.exclusive && identifiable(reg.handler) {
				counts[reg.handler]++
			}
		}
	}
	guards := make(map[EventHandler[T]]*sync.Mutex)
	for h, n := range counts {
		if n > 1 {
			guards[h] = new(sync.Mutex)
		}
	}
	return guards
}

// identifiable reports whether a handler can be told apart by identity, handler
// funcs and structs holding slices or maps cannot.
func identifiable(handler any) bool {
	return reflect.TypeOf(handler).Comparable()
}
