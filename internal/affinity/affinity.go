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

// Package affinity pins the OS threads of event processors to CPUs.
package affinity

// Assign returns the CPU the i-th event processor is pinned to.
func Assign(cpus []int, i int) (int, bool) {
	if len(cpus) == 0 {
		return 0, false
	}
	return cpus[i%len(cpus)], true
}
