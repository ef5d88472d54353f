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

// EventHandler consumes events shared with other handlers. It is registered
// through Scope.HandleEvents and the same instance may be invoked
// concurrently by sibling event processors, so it must be safe for concurrent
// use. It must not modify the event.
type EventHandler[T any] interface {
	// OnEvent is called once per published sequence, endOfBatch is true for
	// the last event of the range retrieved by one wait.
	OnEvent(event *T, sequence int64, endOfBatch bool)
}

// EventHandlerMut consumes events with exclusive access to its own state. It is
// registered through Scope.HandleEventsMut, and the pipeline never invokes one
// instance from two event processors at the same time, even when it is
// registered more than once.
type EventHandlerMut[T any] interface {
	OnEvent(event *T, sequence int64, endOfBatch bool)
}

// EventHandlerFunc is an adapter to allow the use of ordinary functions as
// event handlers.
type EventHandlerFunc[T any] func(event *T, sequence int64, endOfBatch bool)

// OnEvent calls f(event, sequence, endOfBatch).
func (f EventHandlerFunc[T]) OnEvent(event *T, sequence int64, endOfBatch bool) {
	f(event, sequence, endOfBatch)
}

// LifecycleAware is implemented by handlers that want to be told when their
// event processor starts and when it exits after the pipeline drained.
type LifecycleAware interface {
	OnStart()
	OnShutdown()
}

// EventTranslator fills the slot of a claimed sequence.
type EventTranslator[T any] func(event *T, sequence int64)
