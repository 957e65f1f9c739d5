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

// Releasable is anything a CompositeGuard can hold: every concrete guard
// type in this package satisfies it.
type Releasable interface {
	Release() error
}

// CompositeGuard aggregates named sub-guards and releases them, in LIFO
// insertion order, the moment the composite itself is released — the
// whole group is torn down atomically from the caller's point of view.
type CompositeGuard struct {
	Metadata

	mu     sync.Mutex
	names  []string
	guards map[string]Releasable
	sink   collector.Sink
}

// NewCompositeGuard starts an empty composite for ownerPID.
func NewCompositeGuard(ownerPID uint32, sink collector.Sink) *CompositeGuard {
	g := &CompositeGuard{
		Metadata: newMetadata(ResourceComposite, ownerPID),
		guards:   make(map[string]Releasable),
		sink:     sink,
	}
	emit(sink, "guard.created", &g.Metadata, nil)
	return g
}

// Add registers a sub-guard under name. Panics on a duplicate name: that
// is a programming error, not a runtime condition to recover from.
func (g *CompositeGuard) Add(name string, sub Releasable) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.guards[name]; exists {
		panic("guard: duplicate composite member " + name)
	}
	g.guards[name] = sub
	g.names = append(g.names, name)
	emit(g.sink, "guard.used", &g.Metadata, map[string]any{"op": "add", "member": name})
}

// Release tears down every member in reverse insertion order. The first
// error encountered is returned, but every member is still attempted —
// matching spec §4.1's "each resource release is attempted, failures are
// logged ... but do not stop subsequent releases".
func (g *CompositeGuard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return nil
	}
	before := g.snapshot()
	g.active = false
	emitTransition(g.sink, "guard.dropped", &g.Metadata, before, map[string]any{"members": len(g.names)})

	var first error
	for i := len(g.names) - 1; i >= 0; i-- {
		name := g.names[i]
		if err := g.guards[name].Release(); err != nil {
			before = g.snapshot()
			emitTransition(g.sink, "guard.error", &g.Metadata, before, map[string]any{"member": name, "error": err.Error()})
			if first == nil {
				first = err
			}
		}
	}
	return first
}
