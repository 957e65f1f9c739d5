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

// Package guard is the RAII resource-guard framework (spec §4.6): every
// resource handed out by the memory manager and IPC layer is obtainable
// as a guard whose release path runs exactly once, on every exit path.
//
// This generalizes the teacher's single-purpose cleanup closure
// (gvisor.dev/gvisor/pkg/cleanup, used in pkg/shim/v1/runsc/service.go's
// Create() as `cu := cleanup.Make(...); defer cu.Clean(); ...; cu.Release()`)
// into a small family of typed guards sharing one release discipline.
package guard

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mattbaird/jsonpatch"

	"github.com/artificialos/kernel/pkg/collector"
)

// ResourceType identifies what kind of resource a guard owns.
type ResourceType int

const (
	ResourceMemory ResourceType = iota
	ResourcePipe
	ResourceShm
	ResourceQueue
	ResourceLock
	ResourceTransaction
	ResourceComposite
)

func (t ResourceType) String() string {
	switch t {
	case ResourceMemory:
		return "memory"
	case ResourcePipe:
		return "pipe"
	case ResourceShm:
		return "shm"
	case ResourceQueue:
		return "queue"
	case ResourceLock:
		return "lock"
	case ResourceTransaction:
		return "transaction"
	case ResourceComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Metadata is the spec §3 "Guard metadata" record: {resource_type,
// owner_pid, created_at, active, poisoned}.
type Metadata struct {
	ID        uuid.UUID
	Type      ResourceType
	OwnerPID  uint32
	CreatedAt time.Time
	active    bool
	poisoned  string
	isPoison  bool
}

// Active reports whether the guard still owns its resource.
func (m *Metadata) Active() bool { return m.active }

// Poisoned reports the poison reason, if any.
func (m *Metadata) Poisoned() (reason string, ok bool) { return m.poisoned, m.isPoison }

func (m *Metadata) poison(reason string) {
	m.poisoned = reason
	m.isPoison = true
}

func (m *Metadata) recover() {
	m.poisoned = ""
	m.isPoison = false
}

func newMetadata(typ ResourceType, ownerPID uint32) Metadata {
	return Metadata{ID: uuid.New(), Type: typ, OwnerPID: ownerPID, CreatedAt: time.Now(), active: true}
}

// stateSnapshot is the observable-state slice of Metadata a jsonpatch diff
// is computed over: only active/poisoned ever change after creation.
type stateSnapshot struct {
	Active   bool   `json:"active"`
	Poisoned string `json:"poisoned,omitempty"`
}

func (m *Metadata) snapshot() stateSnapshot {
	return stateSnapshot{Active: m.active, Poisoned: m.poisoned}
}

// emitTransition reports a guard state change as a collector event whose
// "patch" field is a jsonpatch document describing exactly what moved
// between before and the guard's current state — the same
// "what changed" shape teacher's typeurl.MarshalAny events carry, without
// a protobuf schema behind it (spec §4.6 guard events).
func emitTransition(sink collector.Sink, eventType string, m *Metadata, before stateSnapshot, extra map[string]any) {
	if sink != nil {
		if patch, ok := diffSnapshots(before, m.snapshot()); ok {
			if extra == nil {
				extra = make(map[string]any, 1)
			}
			extra["patch"] = patch
		}
	}
	emit(sink, eventType, m, extra)
}

func diffSnapshots(before, after stateSnapshot) ([]jsonpatch.JsonPatchOperation, bool) {
	b1, err := json.Marshal(before)
	if err != nil {
		return nil, false
	}
	b2, err := json.Marshal(after)
	if err != nil {
		return nil, false
	}
	patch, err := jsonpatch.CreatePatch(b1, b2)
	if err != nil || len(patch) == 0 {
		return nil, false
	}
	return patch, true
}

// Releaser is the single method every concrete resource type must supply:
// give the resource back to its owning manager. It is called at most
// once per guard, regardless of how many times Release is invoked.
type Releaser func() error

// emit reports a guard lifecycle event to sink, tolerating a nil sink
// (tests that don't care about telemetry).
func emit(sink collector.Sink, eventType string, m *Metadata, extra map[string]any) {
	if sink == nil {
		return
	}
	fields := map[string]any{
		"resource_type": m.Type.String(),
		"guard_id":      m.ID.String(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	sink.Emit(collector.Event{Type: eventType, PID: m.OwnerPID, Fields: fields, At: time.Now()})
}
