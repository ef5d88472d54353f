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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/panjf2000/disruptor/pkg/errors"
	"github.com/panjf2000/disruptor/pkg/ring"
	"github.com/panjf2000/disruptor/pkg/sequence"
	"github.com/panjf2000/disruptor/pkg/sequencer"
	"github.com/panjf2000/disruptor/pkg/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var nopLogger = WithLogger(zap.NewNop().Sugar())

type testEvent struct {
	Value    int64
	Producer int
	Stage1   int64
}

type recorder struct {
	seqs   []int64
	values []int64
	ends   []int64
}

func (r *recorder) OnEvent(e *testEvent, seq int64, endOfBatch bool) {
	r.seqs = append(r.seqs, seq)
	r.values = append(r.values, e.Value)
	if endOfBatch {
		r.ends = append(r.ends, seq)
	}
}

func assertInOrder(t *testing.T, seqs []int64, n int64) {
	t.Helper()
	require.Lenf(t, seqs, int(n), "expect %d events but got %d", n, len(seqs))
	for i, seq := range seqs {
		if !assert.EqualValuesf(t, i+1, seq, "event #%d delivered out of order", i) {
			return
		}
	}
}

func run[T any](t *testing.T, b *Builder[T], publish func(p *Producer[T])) *Executor {
	t.Helper()
	executor, producer, err := b.Build()
	require.NoError(t, err)
	join, err := executor.Spawn()
	require.NoError(t, err)

	publish(producer)
	producer.Drain()

	done := make(chan error, 1)
	go func() { done <- join.Join() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("event processors did not exit after drain")
	}
	return executor
}

func TestBuildInvalidCapacity(t *testing.T) {
	for _, capacity := range []int64{0, 1, 3, 1000} {
		_, _, err := WithRingBuffer[testEvent](capacity, nopLogger).
			WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(new(recorder)) }).
			Build()
		assert.ErrorIs(t, err, errors.ErrInvalidCapacity)
		assert.Contains(t, err.Error(), "power of two")
	}

	assert.PanicsWithError(t, errors.ErrInvalidCapacity.Error(), func() {
		WithRingBuffer[testEvent](6, nopLogger).
			WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(new(recorder)) }).
			MustBuild()
	})
}

func TestBuildErrors(t *testing.T) {
	_, _, err := WithRingBuffer[testEvent](8, nopLogger).Build()
	assert.ErrorIs(t, err, errors.ErrNoEventHandlers)

	_, _, err = WithRingBuffer[testEvent](8, nopLogger).
		WithBarrier(func(*Scope[testEvent]) {}).
		Build()
	assert.ErrorIs(t, err, errors.ErrEmptyBarrier)

	_, _, err = WithRingBuffer[testEvent](8, nopLogger).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEvents(nil) }).
		Build()
	assert.ErrorIs(t, err, errors.ErrNilEventHandler)

	b := WithRingBuffer[testEvent](8, nopLogger).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(new(recorder)) })
	_, _, err = b.Build()
	require.NoError(t, err)
	_, _, err = b.Build()
	assert.ErrorIs(t, err, errors.ErrAlreadyBuilt)
}

func TestSingleProducerSingleConsumer(t *testing.T) {
	const n = 10000
	rec := new(recorder)
	run(t, WithRingBuffer[testEvent](64, nopLogger).
		WithSingleProducer().
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(rec) }),
		func(p *Producer[testEvent]) {
			for i := int64(1); i <= n; i++ {
				require.NoError(t, p.PublishEvent(func(e *testEvent, seq int64) { e.Value = seq * 10 }))
			}
		})

	assertInOrder(t, rec.seqs, n)
	for i, v := range rec.values {
		assert.EqualValues(t, (i+1)*10, v)
	}
	require.NotEmpty(t, rec.ends)
	assert.EqualValues(t, n, rec.ends[len(rec.ends)-1], "the last event closes its batch")
	for i := 1; i < len(rec.ends); i++ {
		assert.Less(t, rec.ends[i-1], rec.ends[i])
	}
}

func TestEndOfBatch(t *testing.T) {
	seq, err := sequencer.NewSingleProducer(16, wait.NewBlocking(), sequencer.WithLogger(zap.NewNop().Sugar()))
	require.NoError(t, err)
	data := ring.Must[testEvent](16)
	rec := new(recorder)
	p := &eventProcessor[testEvent]{
		name:     "test",
		data:     data,
		barrier:  seq.NewBarrier(),
		handler:  rec,
		sequence: sequence.New(),
		onPanic:  func(string, int64, error) {},
		logger:   zap.NewNop().Sugar(),
	}
	seq.AddGatingSequences(p.sequence)

	publish := func(count int64) {
		lo, hi, err := seq.Next(count)
		require.NoError(t, err)
		seq.Publish(lo, hi)
	}

	// Published before the processor starts: retrieved as a single batch.
	publish(5)
	done := make(chan struct{})
	go func() {
		p.run(seq.Done())
		close(done)
	}()
	require.Eventually(t, func() bool { return p.sequence.Get() == 5 }, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return p.info().State == StateWaiting }, 5*time.Second, time.Millisecond)

	publish(3)
	seq.Drain()
	<-done

	assertInOrder(t, rec.seqs, 8)
	assert.Equal(t, []int64{5, 8}, rec.ends)
	assert.Equal(t, StateDrained, p.info().State)
}

func TestWaitStrategiesAgree(t *testing.T) {
	const n = 2000
	strategies := map[string]func(b *Builder[testEvent]) *Builder[testEvent]{
		"blocking": (*Builder[testEvent]).WithBlockingWait,
		"spin":     (*Builder[testEvent]).WithSpinWait,
		"yielding": (*Builder[testEvent]).WithYieldingWait,
	}
	results := make(map[string][]int64)
	for name, with := range strategies {
		rec := new(recorder)
		run(t, with(WithRingBuffer[testEvent](32, nopLogger)).
			WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(rec) }),
			func(p *Producer[testEvent]) {
				for i := int64(1); i <= n; i++ {
					require.NoError(t, p.PublishEvent(func(e *testEvent, seq int64) { e.Value = -seq }))
				}
			})
		assertInOrder(t, rec.seqs, n)
		results[name] = rec.values
	}
	assert.Equal(t, results["blocking"], results["spin"])
	assert.Equal(t, results["blocking"], results["yielding"])
}

func TestMultiProducer(t *testing.T) {
	const (
		producers = 4
		perWorker = 5000
		n         = producers * perWorker
	)
	rec := new(recorder)
	run(t, WithRingBuffer[testEvent](128, nopLogger).
		WithMultiProducer().
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(rec) }),
		func(p *Producer[testEvent]) {
			var wg sync.WaitGroup
			wg.Add(producers)
			for id := 0; id < producers; id++ {
				go func(id int) {
					defer wg.Done()
					for i := int64(1); i <= perWorker; i += 2 {
						err := p.PublishEvents(2, func(e *testEvent, seq int64) {
							e.Producer = id
							e.Value = seq
						})
						assert.NoError(t, err)
					}
				}(id)
			}
			wg.Wait()
		})

	assertInOrder(t, rec.seqs, n)
	for i, v := range rec.values {
		assert.EqualValues(t, i+1, v, "slot overwritten before it was consumed")
	}
}

func TestChainedStages(t *testing.T) {
	const n = 5000
	var (
		executor  *Executor
		violation atomic.Int64
		stage2    = new(recorder)
	)
	stage1 := EventHandlerFunc[testEvent](func(e *testEvent, seq int64, _ bool) {
		e.Stage1 = seq * 2
	})
	checker := EventHandlerFunc[testEvent](func(e *testEvent, seq int64, _ bool) {
		if e.Stage1 != seq*2 {
			violation.Add(1)
		}
		if executor.Consumers()[0].Sequence < seq {
			violation.Add(1)
		}
	})

	b := WithRingBuffer[testEvent](16, nopLogger).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(stage1) }).
		WithBarrier(func(s *Scope[testEvent]) {
			s.HandleEvents(checker)
			s.HandleEventsMut(stage2)
		})
	executor, producer, err := b.Build()
	require.NoError(t, err)
	join, err := executor.Spawn()
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, producer.PublishEvent(func(*testEvent, int64) {}))
	}
	producer.Drain()
	require.NoError(t, join.Join())

	assert.EqualValues(t, 0, violation.Load(), "stage 2 observed an event before stage 1 released it")
	assertInOrder(t, stage2.seqs, n)

	consumers := executor.Consumers()
	require.Len(t, consumers, 3)
	assert.Equal(t, "stage-0/handler-0", consumers[0].Name)
	assert.Equal(t, "stage-1/handler-1", consumers[2].Name)
	for _, c := range consumers {
		assert.EqualValues(t, n, c.Sequence)
		assert.Equal(t, StateDrained, c.State)
	}
	assert.EqualValues(t, n, executor.Cursor())
}

type counter struct {
	n int64 // guarded by the pipeline, not by the handler
}

func (c *counter) OnEvent(*testEvent, int64, bool) {
	c.n++
}

func TestExclusiveHandlerRegisteredTwice(t *testing.T) {
	const n = 20000
	c := new(counter)
	shared := new(atomic.Int64)
	run(t, WithRingBuffer[testEvent](256, nopLogger).
		WithSpinWait().
		WithBarrier(func(s *Scope[testEvent]) {
			s.HandleEventsMut(c)
			s.HandleEventsMut(c)
			s.HandleEvents(EventHandlerFunc[testEvent](func(*testEvent, int64, bool) { shared.Add(1) }))
		}),
		func(p *Producer[testEvent]) {
			for i := 0; i < n; i++ {
				require.NoError(t, p.PublishEvent(func(*testEvent, int64) {}))
			}
		})
	assert.EqualValues(t, 2*n, c.n)
	assert.EqualValues(t, n, shared.Load())
}

type lifecycle struct {
	recorder
	started, stopped atomic.Bool
}

func (l *lifecycle) OnStart()    { l.started.Store(true) }
func (l *lifecycle) OnShutdown() { l.stopped.Store(true) }

func TestLifecycleAndPanics(t *testing.T) {
	var (
		mu       sync.Mutex
		panicked []int64
	)
	l := new(lifecycle)
	faulty := EventHandlerFunc[testEvent](func(_ *testEvent, seq int64, _ bool) {
		if seq%3 == 0 {
			panic("faulty handler")
		}
	})
	run(t, WithRingBuffer[testEvent](8, nopLogger, WithPanicHandler(func(_ string, seq int64, err error) {
		assert.ErrorIs(t, err, errors.ErrHandlerPanic)
		mu.Lock()
		panicked = append(panicked, seq)
		mu.Unlock()
	})).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEvents(faulty) }).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(l) }),
		func(p *Producer[testEvent]) {
			for i := 0; i < 10; i++ {
				require.NoError(t, p.PublishEvent(func(*testEvent, int64) {}))
			}
		})

	assert.Equal(t, []int64{3, 6, 9}, panicked)
	assertInOrder(t, l.seqs, 10)
	assert.True(t, l.started.Load())
	assert.True(t, l.stopped.Load())
}

type hooks struct {
	calls  []string
	events int
}

func (h *hooks) OnEvent(*testEvent, int64, bool) { h.events++ }
func (h *hooks) OnStart()                        { h.calls = append(h.calls, "start") }
func (h *hooks) OnShutdown()                     { h.calls = append(h.calls, "shutdown") }

func TestExclusiveLifecycleHooks(t *testing.T) {
	const n = 1000
	h := new(hooks)
	run(t, WithRingBuffer[testEvent](64, nopLogger).
		WithBarrier(func(s *Scope[testEvent]) {
			s.HandleEventsMut(h)
			s.HandleEventsMut(h)
		}),
		func(p *Producer[testEvent]) {
			for i := 0; i < n; i++ {
				require.NoError(t, p.PublishEvent(func(*testEvent, int64) {}))
			}
		})
	assert.Equal(t, 2*n, h.events)
	assert.ElementsMatch(t, []string{"start", "start", "shutdown", "shutdown"}, h.calls)
}

func TestPanickingTranslatorPublishesClaim(t *testing.T) {
	modes := map[string]func(b *Builder[testEvent]) *Builder[testEvent]{
		"single": (*Builder[testEvent]).WithSingleProducer,
		"multi":  (*Builder[testEvent]).WithMultiProducer,
	}
	for name, with := range modes {
		t.Run(name, func(t *testing.T) {
			rec := new(recorder)
			run(t, with(WithRingBuffer[testEvent](8, nopLogger)).
				WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(rec) }),
				func(p *Producer[testEvent]) {
					assert.PanicsWithValue(t, "bad translator", func() {
						_ = p.PublishEvent(func(*testEvent, int64) { panic("bad translator") })
					})
					require.NoError(t, p.PublishEvent(func(e *testEvent, _ int64) { e.Value = 42 }))
					assert.EqualValues(t, 2, p.Cursor())
				})
			assertInOrder(t, rec.seqs, 2)
			assert.EqualValues(t, 42, rec.values[1])
		})
	}
}

func TestDrainRejectsLatePublishers(t *testing.T) {
	rec := new(recorder)
	var late *Producer[testEvent]
	executor := run(t, WithRingBuffer[testEvent](8, nopLogger, WithLockOSThread(true)).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(rec) }),
		func(p *Producer[testEvent]) {
			late = p
			require.NoError(t, p.PublishEvents(3, func(e *testEvent, seq int64) { e.Value = seq }))
		})

	assertInOrder(t, rec.seqs, 3)
	assert.ErrorIs(t, late.PublishEvent(func(*testEvent, int64) {}), errors.ErrSequencerDrained)
	_, err := executor.Spawn()
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)
}

func TestClaim(t *testing.T) {
	executor, producer, err := WithRingBuffer[testEvent](8, nopLogger).
		WithEventFactory(func() testEvent { return testEvent{Value: -1} }).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(new(recorder)) }).
		Build()
	require.NoError(t, err)
	assert.EqualValues(t, 8, producer.BufferSize())
	assert.EqualValues(t, 8, executor.BufferSize())
	assert.EqualValues(t, 7, producer.RemainingCapacity())

	_, err = producer.Next(8)
	assert.ErrorIs(t, err, errors.ErrInvalidClaim)

	c, err := producer.Next(3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, c.Lo())
	assert.EqualValues(t, 3, c.Hi())
	assert.EqualValues(t, 3, c.Len())
	assert.EqualValues(t, -1, c.Event(2).Value, "slots are pre-filled by the factory")
	assert.Panics(t, func() { c.Event(4) })
	assert.Panics(t, func() { c.Event(0) })
	c.Event(2).Value = 20
	producer.Publish(c)
	assert.EqualValues(t, 3, producer.Cursor())

	join, err := executor.Spawn()
	require.NoError(t, err)
	producer.Drain()
	require.NoError(t, join.Join())
}

func TestProcessorStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "waiting", StateWaiting.String())
	assert.Equal(t, "processing", StateProcessing.String())
	assert.Equal(t, "drained", StateDrained.String())
	assert.Equal(t, "ProcessorState(9)", ProcessorState(9).String())
}

func TestDrainWithoutEvents(t *testing.T) {
	executor, producer, err := WithRingBuffer[testEvent](4, nopLogger).
		WithBarrier(func(s *Scope[testEvent]) { s.HandleEventsMut(new(recorder)) }).
		Build()
	require.NoError(t, err)
	join, err := executor.Spawn()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		producer.Drain()
	}()
	joined := make(chan error, 1)
	go func() { joined <- join.Join() }()
	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("join did not return after draining an idle pipeline")
	}
}
