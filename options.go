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
	"github.com/panjf2000/disruptor/pkg/logging"
)

// Option is a function that will set up option.
type Option func(opts *Options)

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

// PanicHandler is called with the error wrapping a value recovered from an
// event handler, the processor carries on with the next sequence afterwards.
type PanicHandler func(processor string, sequence int64, err error)

// Options are configurations for the pipeline.
type Options struct {
	// LockOSThread is used to determine whether each event processor is bound to an OS thread,
	// it is useful when you need some kind of mechanisms like thread local storage, or invoke
	// certain C libraries (such as graphics lib: GLib) that require thread-level manipulation
	// via cgo, or want to keep hot consumers from migrating between threads.
	LockOSThread bool

	// CPUAffinity pins the OS thread of the i-th event processor to CPUAffinity[i%len(CPUAffinity)],
	// it implies LockOSThread and is only supported on Linux.
	CPUAffinity []int

	// PanicHandler is invoked when an event handler panics, the default one logs the error.
	PanicHandler PanicHandler

	// Logger is the customized logger for logging info, if it is not set,
	// then disruptor will use the default logger powered by go.uber.org/zap.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithLockOSThread sets up LockOSThread mode for event processors.
func WithLockOSThread(lockOSThread bool) Option {
	return func(opts *Options) {
		opts.LockOSThread = lockOSThread
	}
}

// WithCPUAffinity pins event processors to the given CPUs.
func WithCPUAffinity(cpus ...int) Option {
	return func(opts *Options) {
		opts.CPUAffinity = cpus
		opts.LockOSThread = len(cpus) > 0 || opts.LockOSThread
	}
}

// WithPanicHandler sets up the handler of panicking event handlers.
func WithPanicHandler(handler PanicHandler) Option {
	return func(opts *Options) {
		opts.PanicHandler = handler
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
