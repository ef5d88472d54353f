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

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newBenchCommand()
	cmd.SetArgs(append(args, "--"+logFileFlag, filepath.Join(t.TempDir(), "bench.log")))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestBench(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"single producer", []string{"--events", "5000"}},
		{"multi producer", []string{"--events", "5001", "--producers", "3", "--batch", "8", "--capacity", "64"}},
		{"spin with stages", []string{"--events", "3000", "--wait", "spin", "--stages", "3", "--capacity", "32"}},
		{"yield rounded up", []string{"--events", "2000", "--wait", "yield", "--capacity", "100", "--round-up"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, "events/s")
		})
	}
}

func TestBenchRejectsBadFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--capacity", "100"},
		{"--capacity", "1", "--batch", "1"},
		{"--wait", "sleep"},
		{"--producers", "0"},
		{"--batch", "1024"},
		{"--stages", "0"},
		{"--log-level", "loud"},
	} {
		_, err := execute(t, args...)
		assert.Errorf(t, err, "expect %v to be rejected", args)
	}
}

func TestBenchOptions(t *testing.T) {
	cfg := &benchConfig{cpus: []int{0}}
	opts := cfg.options(nil)
	assert.True(t, opts.LockOSThread, "pinning to CPUs locks OS threads")
	assert.Equal(t, []int{0}, opts.CPUAffinity)

	cfg = &benchConfig{lockOSThread: true}
	opts = cfg.options(nil)
	assert.True(t, opts.LockOSThread)
	assert.Empty(t, opts.CPUAffinity)
}
