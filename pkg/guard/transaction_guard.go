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

// Operation is one recorded step of a transaction guard: a human-readable
// name plus the rollback closure that undoes it.
type Operation struct {
	Name     string
	Rollback func()
}

// TransactionGuard accumulates Operations as a multi-step change is
// applied. Call Record after each step that mutates kernel state; call
// Commit once every step has succeeded. If the guard is torn down via
// Finish (typically deferred, exactly like the teacher's
// `cu := cleanup.Make(...); defer cu.Clean()` idiom in
// pkg/shim/v1/runsc/service.go Create()) without a prior Commit, every
// recorded Operation is rolled back in LIFO order — including when Finish
// runs during a panicking unwind, since a deferred call still executes.
type TransactionGuard struct {
	Metadata

	mu        sync.Mutex
	ops       []Operation
	committed bool
	sink      collector.Sink
}

// NewTransactionGuard starts a new transaction for ownerPID.
func NewTransactionGuard(ownerPID uint32, sink collector.Sink) *TransactionGuard {
	g := &TransactionGuard{Metadata: newMetadata(ResourceTransaction, ownerPID), sink: sink}
	emit(sink, "guard.created", &g.Metadata, nil)
	return g
}

// Record appends an operation's rollback closure. Operations are rolled
// back in the reverse of the order they were recorded.
func (g *TransactionGuard) Record(name string, rollback func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ops = append(g.ops, Operation{Name: name, Rollback: rollback})
	emit(g.sink, "guard.used", &g.Metadata, map[string]any{"op": name})
}

// Commit discards the rollback list: Finish becomes a no-op.
func (g *TransactionGuard) Commit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	before := g.snapshot()
	g.committed = true
	g.active = false
	emitTransition(g.sink, "guard.dropped", &g.Metadata, before, map[string]any{"committed": true})
}

// Finish rolls back every recorded operation, LIFO, unless Commit was
// already called. Safe to call multiple times; only the first call after
// a missing Commit does any work. Call via defer immediately after
// NewTransactionGuard so it runs on every return path, including panics.
func (g *TransactionGuard) Finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.committed || !g.active {
		return
	}
	before := g.snapshot()
	g.active = false
	emitTransition(g.sink, "guard.dropped", &g.Metadata, before, map[string]any{"committed": false, "ops": len(g.ops)})
	for i := len(g.ops) - 1; i >= 0; i-- {
		func() {
			defer func() { recover() }() // one bad rollback must not block the rest
			g.ops[i].Rollback()
		}()
	}
}
