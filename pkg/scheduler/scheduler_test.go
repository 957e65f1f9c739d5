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

package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artificialos/kernel/pkg/scheduler"
)

func TestRoundRobinRequeuesToTail(t *testing.T) {
	s := scheduler.New(scheduler.RoundRobin, 10*time.Millisecond)
	s.Add(1, 0)
	s.Add(2, 0)
	s.Add(3, 0)

	pid, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(1), pid)
	s.Requeue(pid, 10*time.Millisecond, 0)

	pid, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), pid)

	pid, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(3), pid)

	pid, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(1), pid) // requeued earlier, now back at head
}

func TestPriorityPolicyOrdersDescendingWithInsertionTiebreak(t *testing.T) {
	s := scheduler.New(scheduler.PriorityPolicy, 0)
	s.Add(1, 1)
	s.Add(2, 5)
	s.Add(3, 5)

	pid, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), pid)

	pid, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(3), pid)

	pid, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(1), pid)
}

func TestFairPolicyPicksLowestVRuntime(t *testing.T) {
	s := scheduler.New(scheduler.Fair, 0)
	s.Add(1, 0)
	s.Add(2, 0)

	pid, ok := s.Next()
	require.True(t, ok)
	s.Requeue(pid, 100*time.Millisecond, 0) // pid 1 accrues vruntime

	pid, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), pid) // pid 2 has zero vruntime, runs first
}

// TestFairPolicyAccumulatesVRuntimeAcrossReschedules is a regression test:
// a pid rescheduled twice must have its vruntime contributions added
// together, not replaced by the latest quantum's contribution alone.
func TestFairPolicyAccumulatesVRuntimeAcrossReschedules(t *testing.T) {
	s := scheduler.New(scheduler.Fair, 0)
	s.Add(1, 0)
	s.Add(2, 0)

	pid, ok := s.Next()
	require.True(t, ok)
	require.Equal(t, uint32(1), pid)
	s.Requeue(1, 40*time.Millisecond, 0) // pid 1 vruntime: 40000us

	pid, ok = s.Next()
	require.True(t, ok)
	require.Equal(t, uint32(2), pid)
	s.Requeue(2, 70*time.Millisecond, 0) // pid 2 vruntime: 70000us

	pid, ok = s.Next()
	require.True(t, ok)
	require.Equal(t, uint32(1), pid) // still lower: 40000 < 70000
	s.Requeue(1, 40*time.Millisecond, 0) // pid 1 vruntime: 40000 + 40000 = 80000us

	pid, ok = s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(2), pid) // 70000 < 80000: pid 2 must run next
}

func TestSetPolicyPreservesTrackedPids(t *testing.T) {
	s := scheduler.New(scheduler.RoundRobin, 0)
	s.Add(1, 3)
	s.Add(2, 1)

	s.SetPolicy(scheduler.PriorityPolicy)
	stats := s.Stats()
	assert.Equal(t, scheduler.PriorityPolicy, stats.Policy)
	assert.Equal(t, 2, stats.ActiveProcesses)

	pid, ok := s.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(1), pid) // higher priority first
}

func TestEmptyRunqueueReturnsNone(t *testing.T) {
	s := scheduler.New(scheduler.RoundRobin, 0)
	_, ok := s.Next()
	assert.False(t, ok)
}
