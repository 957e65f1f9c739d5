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

package process

import (
	"time"

	"github.com/artificialos/kernel/pkg/collector"
	"github.com/artificialos/kernel/pkg/guard"
	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/scheduler"
)

// CreateRequest carries the optional fields spec §6's CreateProcessRequest
// exposes alongside name/priority/sandbox_level.
type CreateRequest struct {
	Name         string
	Priority     int
	SandboxLevel SandboxLevel
	Command      string
	Args         []string
	Env          map[string]string
}

// Manager is the C1 process manager: the authoritative registry of
// processes and their owned resources, and the only component that may
// transition process state (spec §4.1).
type Manager struct {
	table *table
	alloc *kernel.PIDAllocator
	sched *scheduler.Scheduler
	sink  collector.Sink
}

// NewManager wires a process manager to the scheduler it registers
// runnable processes with and the collector it emits lifecycle events to.
func NewManager(sched *scheduler.Scheduler, sink collector.Sink) *Manager {
	t := newTable()
	m := &Manager{table: t, sched: sched, sink: sink}
	m.alloc = kernel.NewPIDAllocator(func(pid kernel.PID) bool {
		_, ok := t.get(pid)
		return ok
	})
	return m
}

// Create allocates a pid, inserts the record in Creating, transitions it
// to Ready and registers it with the scheduler (spec §4.1 create).
func (m *Manager) Create(req CreateRequest) (kernel.PID, error) {
	if !ValidSandboxLevel(req.SandboxLevel) {
		return 0, kernel.PermissionDeniedError("unrecognized sandbox level requested")
	}
	pid, ok := m.alloc.Allocate()
	if !ok {
		return 0, kernel.NewError(kernel.ErrProcessLimitExceeded, "pid space exhausted")
	}

	p := newProcess(pid, req.Name, req.Priority, req.SandboxLevel, req.Command, req.Args, req.Env, m.sink)
	m.table.insert(p)

	p.setState(Ready)
	m.sched.Add(uint32(pid), req.Priority)
	m.emit("process.created", pid, map[string]any{"name": req.Name, "sandbox": req.SandboxLevel.String()})
	return pid, nil
}

// Terminate transitions pid to Zombie, removes it from the scheduler,
// releases every owned resource in LIFO order, then moves it to
// Terminated. Idempotent (spec §4.1 terminate).
func (m *Manager) Terminate(pid kernel.PID) error {
	p, ok := m.table.get(pid)
	if !ok {
		return kernel.NewError(kernel.ErrNoSuchProcess, "no such process %d", pid)
	}
	if p.State() == Terminated {
		return nil
	}

	p.setState(Zombie)
	m.sched.Remove(uint32(pid))

	if err := p.releaseResources(); err != nil {
		m.emit("process.cleanup_error", pid, map[string]any{"error": err.Error()})
	}

	p.setState(Terminated)
	m.emit("process.terminated", pid, nil)
	return nil
}

// Get returns a lock-free snapshot of pid's current state.
func (m *Manager) Get(pid kernel.PID) (Snapshot, error) {
	p, ok := m.table.get(pid)
	if !ok {
		return Snapshot{}, kernel.NewError(kernel.ErrNoSuchProcess, "no such process %d", pid)
	}
	return p.snapshot(), nil
}

// List returns a snapshot of every tracked process.
func (m *Manager) List() []Snapshot {
	procs := m.table.all()
	out := make([]Snapshot, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.snapshot())
	}
	return out
}

// Focus sets the cooperative foreground flag on pid (spec §4.1 focus()).
// It is purely a metadata flag: the scheduler is not consulted.
func (m *Manager) Focus(pid kernel.PID) error {
	p, ok := m.table.get(pid)
	if !ok {
		return kernel.NewError(kernel.ErrNoSuchProcess, "no such process %d", pid)
	}
	for _, other := range m.table.all() {
		if other.PID != pid {
			other.setFocused(false)
		}
	}
	p.setFocused(true)
	return nil
}

// Track registers a resource guard against pid so Terminate releases it
// in LIFO order. Returns NoSuchProcess if pid is not registered.
func (m *Manager) Track(pid kernel.PID, name string, g guard.Releasable) error {
	p, ok := m.table.get(pid)
	if !ok {
		return kernel.NewError(kernel.ErrNoSuchProcess, "no such process %d", pid)
	}
	p.Track(name, g)
	return nil
}

// Exists reports whether pid is currently registered.
func (m *Manager) Exists(pid kernel.PID) bool {
	_, ok := m.table.get(pid)
	return ok
}

// Reclaimable reports whether pid's memory is eligible for global GC:
// absent from the table, or in Terminated/Zombie state (spec §4.3).
func (m *Manager) Reclaimable(pid uint32) bool {
	p, ok := m.table.get(kernel.PID(pid))
	if !ok {
		return true
	}
	switch p.State() {
	case Terminated, Zombie:
		return true
	default:
		return false
	}
}

func (m *Manager) emit(eventType string, pid kernel.PID, fields map[string]any) {
	if m.sink == nil {
		return
	}
	m.sink.Emit(collector.Event{Type: eventType, PID: uint32(pid), Fields: fields, At: time.Now()})
}
