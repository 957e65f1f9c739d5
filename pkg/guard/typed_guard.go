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

import "github.com/artificialos/kernel/pkg/collector"

// TypedGuard carries a phantom state tag S (a zero-size marker type) so a
// resource's lifecycle stage is visible at the call site's type, not just
// at runtime. S is never read; only its type parameter matters.
type TypedGuard[S any] struct {
	Metadata
	sink  collector.Sink
	value any
}

// NewTypedGuard wraps value in its initial state S.
func NewTypedGuard[S any](ownerPID uint32, value any, sink collector.Sink) *TypedGuard[S] {
	g := &TypedGuard[S]{Metadata: newMetadata(ResourceComposite, ownerPID), sink: sink, value: value}
	emit(sink, "guard.created", &g.Metadata, nil)
	return g
}

// Value returns the wrapped resource, whatever state it is currently in.
func (g *TypedGuard[S]) Value() any { return g.value }

// Transition performs an infallible state change: From is consumed, To is
// returned wrapping the same underlying value.
func Transition[From, To any](g *TypedGuard[From]) *TypedGuard[To] {
	emit(g.sink, "guard.used", &g.Metadata, map[string]any{"op": "transition"})
	return &TypedGuard[To]{Metadata: newMetadata(ResourceComposite, g.OwnerPID), sink: g.sink, value: g.value}
}

// WithTransition performs a fallible state change: if apply fails, g is
// poisoned and nil is returned with the error; on success a new guard in
// state To is returned.
func WithTransition[From, To any](g *TypedGuard[From], apply func(value any) (any, error)) (*TypedGuard[To], error) {
	next, err := apply(g.value)
	if err != nil {
		before := g.snapshot()
		g.poison(err.Error())
		emitTransition(g.sink, "guard.error", &g.Metadata, before, map[string]any{"error": err.Error()})
		return nil, err
	}
	emit(g.sink, "guard.used", &g.Metadata, map[string]any{"op": "with_transition"})
	return &TypedGuard[To]{Metadata: newMetadata(ResourceComposite, g.OwnerPID), sink: g.sink, value: next}, nil
}
