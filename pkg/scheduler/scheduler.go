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

// Package scheduler selects the next runnable pid under one of three
// interchangeable policies (spec §4.2): round-robin, priority, and fair
// (weighted virtual runtime). The active policy can be swapped live,
// reinserting every tracked pid under the new ordering.
package scheduler

import (
	"sync"
	"time"
)

// Policy names the selectable scheduling algorithms.
type Policy int

const (
	RoundRobin Policy = iota
	PriorityPolicy
	Fair
)

func (p Policy) String() string {
	switch p {
	case RoundRobin:
		return "round_robin"
	case PriorityPolicy:
		return "priority"
	case Fair:
		return "fair"
	default:
		return "unknown"
	}
}

// Record is the per-process scheduling state (spec §3 "Scheduler record").
type Record struct {
	PID             uint32
	Priority        int
	VRuntime        uint64
	QuantumRemaining time.Duration
}

// Stats mirrors the spec §4.2 stats() surface.
type Stats struct {
	TotalScheduled   uint64
	ContextSwitches  uint64
	Preemptions      uint64
	ActiveProcesses  int
	Policy           Policy
	QuantumMicros    int64
}

// runqueue is the pluggable ordering strategy a Scheduler delegates to.
type runqueue interface {
	add(r *Record)
	remove(pid uint32) bool
	next() (*Record, bool)
	requeue(r *Record)
	len() int
	all() []*Record
}

// Scheduler is the single mutex-protected selector described in spec
// §4.2's concurrency note: next() holds the lock only while selecting.
type Scheduler struct {
	mu       sync.Mutex
	policy   Policy
	rq       runqueue
	quantum  time.Duration
	current  uint32
	hasCurrent bool

	totalScheduled  uint64
	contextSwitches uint64
	preemptions     uint64

	// vruntime persists each pid's cumulative virtual runtime across the
	// window where its Record is out of the runqueue (selected by Next,
	// not yet Requeue'd), since a Record freshly built by Requeue would
	// otherwise start back at zero (spec §4.2 "vruntime += actual_run_micros
	// / weight(priority)": a running total, not a per-quantum value).
	vruntime map[uint32]uint64
}

const defaultQuantum = 10 * time.Millisecond

// New creates a Scheduler under the given starting policy.
func New(policy Policy, quantum time.Duration) *Scheduler {
	if quantum <= 0 {
		quantum = defaultQuantum
	}
	return &Scheduler{policy: policy, rq: newRunqueue(policy), quantum: quantum, vruntime: make(map[uint32]uint64)}
}

// Add registers pid at the given static priority (spec §4.2 add).
func (s *Scheduler) Add(pid uint32, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vruntime[pid] = 0
	s.rq.add(&Record{PID: pid, Priority: priority, QuantumRemaining: s.quantum})
}

// Remove drops pid from the runqueue, returning whether it was present.
func (s *Scheduler) Remove(pid uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasCurrent && s.current == pid {
		s.hasCurrent = false
	}
	delete(s.vruntime, pid)
	return s.rq.remove(pid)
}

// Next selects the next pid to run, or ok == false if the runqueue is
// empty (spec §4.2 next()).
func (s *Scheduler) Next() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rq.next()
	if !ok {
		s.hasCurrent = false
		return 0, false
	}
	s.current = r.PID
	s.hasCurrent = true
	s.totalScheduled++
	s.contextSwitches++
	return r.PID, true
}

// SetPolicy atomically swaps the runqueue, reinserting every tracked
// record under the new policy while preserving priority (spec §4.2
// set_policy). Every reinserted record's vruntime is reset to zero.
func (s *Scheduler) SetPolicy(policy Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if policy == s.policy {
		return
	}
	old := s.rq.all()
	s.rq = newRunqueue(policy)
	s.policy = policy
	for _, r := range old {
		r.VRuntime = 0
		r.QuantumRemaining = s.quantum
		s.vruntime[r.PID] = 0
		s.rq.add(r)
	}
}

// NotePreemption records a cooperative preemption signal having fired
// (spec §4.2 Priority policy).
func (s *Scheduler) NotePreemption() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preemptions++
}

// Requeue returns the currently running record to the back of the queue
// once its quantum has expired (round-robin), or updates its vruntime
// (fair) after actualRun has elapsed.
func (s *Scheduler) Requeue(pid uint32, actualRun time.Duration, priority int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &Record{PID: pid, Priority: priority, QuantumRemaining: s.quantum}
	if s.policy == Fair {
		weight := uint64(1) << uint(priority)
		if weight == 0 {
			weight = 1
		}
		accrued := s.vruntime[pid] + uint64(actualRun.Microseconds())/weight
		s.vruntime[pid] = accrued
		r.VRuntime = accrued
	}
	s.rq.requeue(r)
}

// Stats reports the spec §4.2 stats() snapshot.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalScheduled:  s.totalScheduled,
		ContextSwitches: s.contextSwitches,
		Preemptions:     s.preemptions,
		ActiveProcesses: s.rq.len(),
		Policy:          s.policy,
		QuantumMicros:   s.quantum.Microseconds(),
	}
}

func newRunqueue(policy Policy) runqueue {
	switch policy {
	case PriorityPolicy:
		return newPriorityRunqueue()
	case Fair:
		return newFairRunqueue()
	default:
		return newRoundRobinRunqueue()
	}
}
