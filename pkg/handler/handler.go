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

// Package handler provides ready-made event handlers for disruptor pipelines.
package handler

import (
	"io"
	"sync/atomic"

	"github.com/panjf2000/disruptor"
	"github.com/panjf2000/disruptor/pkg/logging"
	"github.com/panjf2000/disruptor/pkg/pool/bytebuffer"
)

// Encoder appends the wire form of an event to buf.
type Encoder[T any] func(buf *bytebuffer.ByteBuffer, event *T, sequence int64)

// Journal encodes every event into a pooled buffer and writes the buffer out
// once per batch, so a burst of events costs a single write.
type Journal[T any] struct {
	w       io.Writer
	encode  Encoder[T]
	logger  logging.Logger
	buf     *bytebuffer.ByteBuffer
	err     error
	batches int64
	events  int64
}

var _ disruptor.EventHandlerMut[struct{}] = (*Journal[struct{}])(nil)

// NewJournal creates a Journal writing to w. A nil logger falls back to the
// default one.
func NewJournal[T any](w io.Writer, encode Encoder[T], logger logging.Logger) *Journal[T] {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Journal[T]{w: w, encode: encode, logger: logger}
}

// OnEvent implements disruptor.EventHandlerMut.
func (j *Journal[T]) OnEvent(event *T, sequence int64, endOfBatch bool) {
	if j.buf == nil {
		j.buf = bytebuffer.Get()
	}
	j.encode(j.buf, event, sequence)
	j.events++
	if endOfBatch {
		j.flush(sequence)
	}
}

func (j *Journal[T]) flush(sequence int64) {
	if j.buf == nil {
		return
	}
	if j.buf.Len() > 0 {
		if _, err := j.buf.WriteTo(j.w); err != nil {
			j.logger.Errorf("journal failed to write the batch ending at sequence %d: %v", sequence, err)
			if j.err == nil {
				j.err = err
			}
		}
		j.batches++
	}
	bytebuffer.Put(j.buf)
	j.buf = nil
}

// OnStart implements disruptor.LifecycleAware.
func (j *Journal[T]) OnStart() {}

// OnShutdown implements disruptor.LifecycleAware.
func (j *Journal[T]) OnShutdown() {
	j.flush(-1)
}

// Err returns the first write error, if any.
func (j *Journal[T]) Err() error { return j.err }

// Batches returns the number of writes issued so far.
func (j *Journal[T]) Batches() int64 { return j.batches }

// Events returns the number of events encoded so far.
func (j *Journal[T]) Events() int64 { return j.events }

// Counter counts the events it observes. It is safe to share between sibling
// processors and to read from any goroutine.
type Counter[T any] struct {
	events  atomic.Int64
	batches atomic.Int64
	last    atomic.Int64
}

var _ disruptor.EventHandler[struct{}] = (*Counter[struct{}])(nil)

// OnEvent implements disruptor.EventHandler.
func (c *Counter[T]) OnEvent(_ *T, sequence int64, endOfBatch bool) {
	c.events.Add(1)
	if endOfBatch {
		c.batches.Add(1)
	}
	for {
		last := c.last.Load()
		if sequence <= last || c.last.CompareAndSwap(last, sequence) {
			return
		}
	}
}

// Events returns the number of events observed.
func (c *Counter[T]) Events() int64 { return c.events.Load() }

// Batches returns the number of batches observed.
func (c *Counter[T]) Batches() int64 { return c.batches.Load() }

// Last returns the highest sequence observed.
func (c *Counter[T]) Last() int64 { return c.last.Load() }
