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

package guard

import (
	"fmt"
	"sync"

	"github.com/artificialos/kernel/pkg/collector"
)

// lockState is the shared, poison-aware core both UnlockedGuard and
// LockedGuard wrap. Encoding the lifecycle stage as two distinct Go types
// (rather than one struct with a state field) is this guard's type-state:
// only LockedGuard exposes Access, so a caller cannot read through an
// unlocked handle without the compiler rejecting it.
type lockState struct {
	Metadata
	mu   *sync.Mutex
	sink collector.Sink
	data any
}

// UnlockedGuard owns a mutex but has not yet acquired it.
type UnlockedGuard struct {
	state *lockState
}

// LockedGuard owns a held mutex and may Access the protected value.
type LockedGuard struct {
	state *lockState
}

// NewUnlockedGuard wraps mu, protecting data, for ownerPID.
func NewUnlockedGuard(ownerPID uint32, mu *sync.Mutex, data any, sink collector.Sink) *UnlockedGuard {
	s := &lockState{Metadata: newMetadata(ResourceLock, ownerPID), mu: mu, sink: sink, data: data}
	emit(sink, "guard.created", &s.Metadata, nil)
	return &UnlockedGuard{state: s}
}

// Lock acquires the mutex, consuming the UnlockedGuard and producing a
// LockedGuard. This is the guard's infallible transition.
func (g *UnlockedGuard) Lock() *LockedGuard {
	g.state.mu.Lock()
	emit(g.state.sink, "guard.used", &g.state.Metadata, map[string]any{"op": "lock"})
	return &LockedGuard{state: g.state}
}

// Access returns the protected value. Fails if the guard is poisoned and
// has not been recovered (spec §4.6 "accessing a poisoned guard without
// recovery fails").
func (g *LockedGuard) Access() (any, error) {
	if reason, poisoned := g.state.Poisoned(); poisoned {
		return nil, fmt.Errorf("lock guard poisoned: %s", reason)
	}
	emit(g.state.sink, "guard.used", &g.state.Metadata, map[string]any{"op": "access"})
	return g.state.data, nil
}

// IsPoisoned reports whether a prior operation poisoned this guard.
func (g *LockedGuard) IsPoisoned() bool {
	_, poisoned := g.state.Poisoned()
	return poisoned
}

// Poison marks the guard poisoned after a failed operation performed
// while holding the lock. Recoverable via Recover.
func (g *LockedGuard) Poison(reason string) {
	before := g.state.snapshot()
	g.state.poison(reason)
	emitTransition(g.state.sink, "guard.error", &g.state.Metadata, before, map[string]any{"error": reason})
}

// Recover clears a poison mark, matching spec §4.6 "recovery from a
// poisoned lock is explicit".
func (g *LockedGuard) Recover() {
	g.state.recover()
}

// Unlock releases the mutex, consuming the LockedGuard and producing a
// fresh UnlockedGuard for the next acquisition.
func (g *LockedGuard) Unlock() *UnlockedGuard {
	g.state.mu.Unlock()
	emit(g.state.sink, "guard.dropped", &g.state.Metadata, map[string]any{"op": "unlock"})
	return &UnlockedGuard{state: g.state}
}
