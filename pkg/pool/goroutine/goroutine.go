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

// Package goroutine provides the worker pool event processors run on.
package goroutine

import (
	"time"

	"github.com/panjf2000/ants/v2"
)

// ExpiryDuration is the interval time to clean up those expired workers.
const ExpiryDuration = 10 * time.Second

func init() {
	// It releases the default pool from ants.
	ants.Release()
}

// Pool is the alias of ants.Pool.
type Pool = ants.Pool

// PanicHandler is invoked with the value recovered from a task that panicked.
type PanicHandler = func(any)

// NewPool instantiates a blocking *Pool able to run exactly size long-lived tasks
// at once, with every worker allocated upfront.
func NewPool(size int, panicHandler PanicHandler) (*Pool, error) {
	options := ants.Options{
		ExpiryDuration: ExpiryDuration,
		PreAlloc:       true,
		Nonblocking:    false,
		PanicHandler:   panicHandler,
	}
	return ants.NewPool(size, ants.WithOptions(options))
}
