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

// Package errors defines common errors for disruptor.
package errors

import "errors"

var (
	// ErrInvalidCapacity occurs when a ring buffer is created with a capacity that is not a power of two of at least 2.
	ErrInvalidCapacity = errors.New("disruptor: ring buffer capacity must be a power of two, e.g. 2, 4, 8, 16")
	// ErrInvalidClaim occurs when a producer claims less than one slot or a full ring buffer at once.
	ErrInvalidClaim = errors.New("disruptor: claim size must be at least 1 and less than the buffer size")
	// ErrSequencerDrained occurs when the sequencer is used after it has been drained.
	ErrSequencerDrained = errors.New("disruptor: sequencer has been drained")
	// ErrNoEventHandlers occurs when a pipeline is built without any consumer stage.
	ErrNoEventHandlers = errors.New("disruptor: at least one barrier with an event handler is required")
	// ErrEmptyBarrier occurs when a barrier scope registers no event handler.
	ErrEmptyBarrier = errors.New("disruptor: barrier scope registered no event handler")
	// ErrNilEventHandler occurs when trying to register a nil event handler.
	ErrNilEventHandler = errors.New("disruptor: nil event handler is not allowed")
	// ErrAlreadyBuilt occurs when a builder is built more than once.
	ErrAlreadyBuilt = errors.New("disruptor: pipeline has already been built")
	// ErrAlreadyStarted occurs when the executor is spawned more than once.
	ErrAlreadyStarted = errors.New("disruptor: executor has already been started")
	// ErrHandlerPanic wraps a value recovered from a panicking event handler.
	ErrHandlerPanic = errors.New("disruptor: event handler panicked")
	// ErrUnsupportedOp occurs when calling some methods that are either not supported or have not been implemented yet.
	ErrUnsupportedOp = errors.New("disruptor: unsupported operation")
)
