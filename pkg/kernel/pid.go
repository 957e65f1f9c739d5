// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import "sync"

// PID is a kernel-assigned process identifier: 32-bit, unique for the
// lifetime of the kernel process (spec GLOSSARY "pid").
type PID uint32

// PIDAllocator hands out monotonically increasing pids, wrapping around
// and skipping any pid a caller marked still-live (spec §3 "allocated
// monotonically with wraparound skipping live ids").
type PIDAllocator struct {
	mu   sync.Mutex
	next PID
	live func(PID) bool
}

// NewPIDAllocator builds an allocator. live reports whether a candidate
// pid is currently assigned; the allocator never hands out a live pid.
func NewPIDAllocator(live func(PID) bool) *PIDAllocator {
	return &PIDAllocator{next: 1, live: live}
}

// Allocate returns the next unused pid, or ok=false if the entire 32-bit
// space is exhausted (every pid is live).
func (a *PIDAllocator) Allocate() (pid PID, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.next
	for {
		candidate := a.next
		a.next++
		if a.next == 0 {
			// Skip 0: it is never a valid pid.
			a.next = 1
		}
		if !a.live(candidate) && candidate != 0 {
			return candidate, true
		}
		if a.next == start {
			return 0, false
		}
	}
}
