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

	"github.com/artificialos/kernel/pkg/collector"
)

// IPCGuard owns a pipe, shm segment or queue and invokes the appropriate
// destroy callback on release.
type IPCGuard struct {
	Metadata

	mu        sync.Mutex
	ResID     uint64
	release   Releaser
	sink      collector.Sink
}

// NewIPCGuard wraps an IPC resource identified by resID.
func NewIPCGuard(typ ResourceType, ownerPID uint32, resID uint64, release Releaser, sink collector.Sink) *IPCGuard {
	g := &IPCGuard{Metadata: newMetadata(typ, ownerPID), ResID: resID, release: release, sink: sink}
	emit(sink, "guard.created", &g.Metadata, map[string]any{"resource_id": resID})
	return g
}

// Used records a use of the guarded resource (spec §4.6 "used(op)").
func (g *IPCGuard) Used(op string) {
	emit(g.sink, "guard.used", &g.Metadata, map[string]any{"op": op, "resource_id": g.ResID})
}

// Release destroys the underlying resource exactly once.
func (g *IPCGuard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return nil
	}
	before := g.snapshot()
	g.active = false
	emitTransition(g.sink, "guard.dropped", &g.Metadata, before, map[string]any{"resource_id": g.ResID})
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
