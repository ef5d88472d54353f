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

/*
Package disruptor implements a bounded, pre-allocated ring buffer shared by
producers and chains of consumers, coordinated only through monotonically
increasing sequence numbers and atomics.

Every published event is delivered exactly once and in order to every
handler of every stage, a stage sees an event only after the previous stage
is done with it, and producers wait instead of overwriting slots that the
slowest consumer has not released yet.

A two-stage pipeline is shown below:

	package main

	import (
		"fmt"

		"github.com/panjf2000/disruptor"
	)

	type trade struct {
		price int64
		total int64
	}

	type journal struct{}

	func (journal) OnEvent(t *trade, seq int64, endOfBatch bool) {
		fmt.Println("journaled", seq, t.price)
	}

	type summer struct{ sum int64 }

	func (s *summer) OnEvent(t *trade, seq int64, endOfBatch bool) {
		s.sum += t.price
	}

	func main() {
		s := new(summer)
		executor, producer := disruptor.WithRingBuffer[trade](1024).
			WithBlockingWait().
			WithSingleProducer().
			WithBarrier(func(scope *disruptor.Scope[trade]) {
				scope.HandleEvents(journal{})
			}).
			WithBarrier(func(scope *disruptor.Scope[trade]) {
				scope.HandleEventsMut(s)
			}).
			MustBuild()

		join, err := executor.Spawn()
		if err != nil {
			panic(err)
		}
		for i := int64(1); i <= 100; i++ {
			_ = producer.PublishEvent(func(t *trade, seq int64) { t.price = i })
		}
		producer.Drain()
		_ = join.Join()
		fmt.Println(s.sum)
	}
*/
package disruptor
