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

package process_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/process"
	"github.com/artificialos/kernel/pkg/scheduler"
)

func newManager() *process.Manager {
	sched := scheduler.New(scheduler.RoundRobin, 10*time.Millisecond)
	return process.NewManager(sched, nil)
}

func TestCreateTransitionsToReadyAndRegistersWithScheduler(t *testing.T) {
	sched := scheduler.New(scheduler.RoundRobin, 10*time.Millisecond)
	m := process.NewManager(sched, nil)
	pid, err := m.Create(process.CreateRequest{Name: "init", Priority: 1, SandboxLevel: process.Standard})
	require.NoError(t, err)

	snap, err := m.Get(pid)
	require.NoError(t, err)
	assert.Equal(t, process.Ready, snap.State)
	assert.Equal(t, "init", snap.Name)

	next, ok := sched.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(pid), next)
}

func TestCreateRejectsInvalidSandboxLevel(t *testing.T) {
	m := newManager()
	_, err := m.Create(process.CreateRequest{Name: "bad", SandboxLevel: process.SandboxLevel(99)})
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrPermissionDenied, kerr.Kind)
}

func TestTerminateIsIdempotentAndReleasesResourcesLIFO(t *testing.T) {
	m := newManager()
	pid, err := m.Create(process.CreateRequest{Name: "worker", SandboxLevel: process.Minimal})
	require.NoError(t, err)

	var order []string
	require.NoError(t, m.Track(pid, "first", releaseFunc(func() error {
		order = append(order, "first")
		return nil
	})))
	require.NoError(t, m.Track(pid, "second", releaseFunc(func() error {
		order = append(order, "second")
		return nil
	})))

	require.NoError(t, m.Terminate(pid))
	assert.Equal(t, []string{"second", "first"}, order)

	snap, err := m.Get(pid)
	require.NoError(t, err)
	assert.Equal(t, process.Terminated, snap.State)

	// Idempotent: terminating again is a no-op, not an error.
	require.NoError(t, m.Terminate(pid))
}

func TestTerminateContinuesPastResourceErrors(t *testing.T) {
	m := newManager()
	pid, err := m.Create(process.CreateRequest{Name: "worker", SandboxLevel: process.Minimal})
	require.NoError(t, err)

	// Release is LIFO, so "failing" (tracked last) is released first and
	// "ok" must still run after its error.
	var secondRan bool
	require.NoError(t, m.Track(pid, "ok", releaseFunc(func() error {
		secondRan = true
		return nil
	})))
	require.NoError(t, m.Track(pid, "failing", releaseFunc(func() error {
		return errors.New("boom")
	})))

	require.NoError(t, m.Terminate(pid))
	assert.True(t, secondRan)
}

func TestFocusIsExclusive(t *testing.T) {
	m := newManager()
	pid1, _ := m.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Minimal})
	pid2, _ := m.Create(process.CreateRequest{Name: "b", SandboxLevel: process.Minimal})

	require.NoError(t, m.Focus(pid1))
	require.NoError(t, m.Focus(pid2))

	snap1, _ := m.Get(pid1)
	snap2, _ := m.Get(pid2)
	assert.False(t, snap1.Focused)
	assert.True(t, snap2.Focused)
}

func TestReclaimableReflectsLifecycleState(t *testing.T) {
	m := newManager()
	pid, _ := m.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Minimal})
	assert.False(t, m.Reclaimable(uint32(pid)))

	require.NoError(t, m.Terminate(pid))
	assert.True(t, m.Reclaimable(uint32(pid)))

	assert.True(t, m.Reclaimable(999)) // unknown pid: nothing to protect
}

type releaseFunc func() error

func (f releaseFunc) Release() error { return f() }
