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

package ipc

import (
	"sync"
	"time"

	"github.com/artificialos/kernel/pkg/collector"
	"github.com/artificialos/kernel/pkg/kernel"
)

// Manager owns every pipe, shared-memory segment and queue in the kernel,
// keyed by a single shared id space. It is the only component that
// creates or destroys IPC resources; pkg/dispatch wraps each creation in
// an IPCGuard tracked on the owning process so termination releases them
// in LIFO order.
type Manager struct {
	sink collector.Sink

	mu      sync.RWMutex
	nextID  uint64
	pipes   map[uint64]*Pipe
	shms    map[uint64]*SharedMemory
	queues  map[uint64]*Queue
}

// NewManager creates an empty IPC resource manager.
func NewManager(sink collector.Sink) *Manager {
	return &Manager{
		sink:   sink,
		pipes:  make(map[uint64]*Pipe),
		shms:   make(map[uint64]*SharedMemory),
		queues: make(map[uint64]*Queue),
	}
}

func (m *Manager) allocID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

// CreatePipe creates a pipe owned jointly by reader and writer (the spec
// does not distinguish an owner pid for pipes; capacity <= 0 selects the
// 64KiB default).
func (m *Manager) CreatePipe(reader, writer uint32, capacity int) *Pipe {
	id := m.allocID()
	p := NewPipe(id, reader, writer, capacity)
	m.mu.Lock()
	m.pipes[id] = p
	m.mu.Unlock()
	m.emit("ipc.pipe.created", reader, map[string]any{"pipe_id": id, "writer_pid": writer})
	return p
}

// Pipe looks up a pipe by id.
func (m *Manager) Pipe(id uint64) (*Pipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pipes[id]
	if !ok {
		return nil, kernel.NewError(kernel.ErrResourceGone, "no such pipe %d", id)
	}
	return p, nil
}

// DestroyPipe tombstones and removes a pipe from the registry.
func (m *Manager) DestroyPipe(id uint64) {
	m.mu.Lock()
	p, ok := m.pipes[id]
	delete(m.pipes, id)
	m.mu.Unlock()
	if ok {
		p.Destroy()
		m.emit("ipc.pipe.destroyed", 0, map[string]any{"pipe_id": id})
	}
}

// CreateShm creates a shared-memory segment owned by owner.
func (m *Manager) CreateShm(owner uint32, size int) *SharedMemory {
	id := m.allocID()
	s := NewSharedMemory(id, owner, size)
	m.mu.Lock()
	m.shms[id] = s
	m.mu.Unlock()
	m.emit("ipc.shm.created", owner, map[string]any{"shm_id": id, "size": size})
	return s
}

// Shm looks up a shared-memory segment by id.
func (m *Manager) Shm(id uint64) (*SharedMemory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shms[id]
	if !ok {
		return nil, kernel.NewError(kernel.ErrResourceGone, "no such shm segment %d", id)
	}
	return s, nil
}

// DestroyShm enforces the "only owner_pid may destroy" rule (spec
// §4.4.2), forcibly detaching every attachment.
func (m *Manager) DestroyShm(pid uint32, id uint64) error {
	m.mu.Lock()
	s, ok := m.shms[id]
	if !ok {
		m.mu.Unlock()
		return kernel.NewError(kernel.ErrResourceGone, "no such shm segment %d", id)
	}
	if s.OwnerPID != pid {
		m.mu.Unlock()
		return kernel.PermissionDeniedError("only the owner pid may destroy this shm segment")
	}
	delete(m.shms, id)
	m.mu.Unlock()
	s.Destroy()
	m.emit("ipc.shm.destroyed", pid, map[string]any{"shm_id": id})
	return nil
}

// CreateQueue creates a queue of the given type owned by owner.
func (m *Manager) CreateQueue(owner uint32, typ QueueType, capacity int) *Queue {
	id := m.allocID()
	q := NewQueue(id, owner, typ, capacity)
	m.mu.Lock()
	m.queues[id] = q
	m.mu.Unlock()
	m.emit("ipc.queue.created", owner, map[string]any{"queue_id": id, "type": typ.String()})
	return q
}

// Queue looks up a queue by id.
func (m *Manager) Queue(id uint64) (*Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[id]
	if !ok {
		return nil, kernel.NewError(kernel.ErrResourceGone, "no such queue %d", id)
	}
	return q, nil
}

// DestroyQueue tombstones and removes a queue from the registry.
func (m *Manager) DestroyQueue(id uint64) {
	m.mu.Lock()
	q, ok := m.queues[id]
	delete(m.queues, id)
	m.mu.Unlock()
	if ok {
		q.Destroy()
		m.emit("ipc.queue.destroyed", 0, map[string]any{"queue_id": id})
	}
}

func (m *Manager) emit(eventType string, pid uint32, fields map[string]any) {
	if m.sink == nil {
		return
	}
	m.sink.Emit(collector.Event{Type: eventType, PID: pid, Fields: fields, At: time.Now()})
}
