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
	"sync"
	"sync/atomic"

	"github.com/artificialos/kernel/pkg/collector"
)

// MemoryGuard owns exactly one allocation and returns it to the memory
// manager when Release is called, either directly or by the owning
// process's CompositeGuard on termination. A guard that is no longer
// referenced without Release having been called frees nothing.
type MemoryGuard struct {
	Metadata

	mu       sync.Mutex
	address  uint64
	release  Releaser
	sink     collector.Sink
}

// NewMemoryGuard wraps an already-allocated block at address, to be
// returned to the owner via release.
func NewMemoryGuard(ownerPID uint32, address uint64, release Releaser, sink collector.Sink) *MemoryGuard {
	g := &MemoryGuard{Metadata: newMetadata(ResourceMemory, ownerPID), address: address, release: release, sink: sink}
	emit(sink, "guard.created", &g.Metadata, map[string]any{"address": address})
	return g
}

// Address returns the owned address.
func (g *MemoryGuard) Address() uint64 { return g.address }

// Release gives the allocation back. Idempotent: a second call is a
// no-op, so the resource is released exactly once however many times
// Release is called.
func (g *MemoryGuard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return nil
	}
	before := g.snapshot()
	g.active = false
	emitTransition(g.sink, "guard.dropped", &g.Metadata, before, map[string]any{"address": g.address})
	if g.release == nil {
		return nil
	}
	if err := g.release(); err != nil {
		before = g.snapshot()
		g.poison(err.Error())
		emitTransition(g.sink, "guard.error", &g.Metadata, before, map[string]any{"error": err.Error()})
		return err
	}
	return nil
}

// RefCountedMemoryGuard permits shared ownership of one allocation: the
// last holder to drop triggers deallocation (spec §4.6).
type RefCountedMemoryGuard struct {
	inner *MemoryGuard
	count *int64
}

// NewRefCountedMemoryGuard creates the first reference.
func NewRefCountedMemoryGuard(ownerPID uint32, address uint64, release Releaser, sink collector.Sink) *RefCountedMemoryGuard {
	n := int64(1)
	return &RefCountedMemoryGuard{inner: NewMemoryGuard(ownerPID, address, release, sink), count: &n}
}

// Clone adds a reference, sharing the same underlying resource.
func (g *RefCountedMemoryGuard) Clone() *RefCountedMemoryGuard {
	atomic.AddInt64(g.count, 1)
	return &RefCountedMemoryGuard{inner: g.inner, count: g.count}
}

// Address returns the owned address.
func (g *RefCountedMemoryGuard) Address() uint64 { return g.inner.Address() }

// Release drops one reference; only the last one actually frees the
// resource.
func (g *RefCountedMemoryGuard) Release() error {
	if atomic.AddInt64(g.count, -1) > 0 {
		return nil
	}
	return g.inner.Release()
}
