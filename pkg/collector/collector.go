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

// Package collector defines the opaque event sink every kernel subsystem
// emits lifecycle events to (spec §1: "the collector is an opaque event
// sink"). Nothing in the kernel ever reads events back; the sink is
// write-only and best-effort.
package collector

import "time"

// Event is one lifecycle notification: a process transition, a memory
// allocation, a guard drop, and so on. Type is a dotted name in the style
// spec.md uses throughout ("process.terminated", "memory.pressure_high").
type Event struct {
	Type   string
	PID    uint32
	Fields map[string]any
	At     time.Time
}

// Sink accepts events. Implementations must never block the caller for
// long and must never propagate a delivery failure back to the emitter:
// spec §4.1 requires that a bad resource release (and, by extension, a
// bad event emission) never stops subsequent kernel work.
type Sink interface {
	Emit(Event)
}

// Discard drops every event. Useful as a zero-value default and in tests
// that do not care about telemetry.
type Discard struct{}

// Emit implements Sink.
func (Discard) Emit(Event) {}
