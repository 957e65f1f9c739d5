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

package memory

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pressure is the used/total ratio bucketed per spec §4.3.
type Pressure int

const (
	PressureLow Pressure = iota
	PressureMedium
	PressureHigh
	PressureCritical
)

func (p Pressure) String() string {
	switch p {
	case PressureLow:
		return "low"
	case PressureMedium:
		return "medium"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// GCConfig is the GC-related slice of the configuration surface (spec §6).
type GCConfig struct {
	ThresholdBlocks    int
	AutoCollectPercent int
	MinInterval        time.Duration
	WarningPercent     int
	CriticalPercent    int
}

// DefaultGCConfig matches pkg/kernel.DefaultConfig's GC defaults.
func DefaultGCConfig() GCConfig {
	return GCConfig{
		ThresholdBlocks:    1000,
		AutoCollectPercent: 80,
		MinInterval:        5 * time.Second,
		WarningPercent:     80,
		CriticalPercent:    95,
	}
}

// gcState tracks the bookkeeping the two-tier collector needs: how many
// blocks have been freed since the last internal pass, and a rate limiter
// gating how often the global auto-collector may run.
type gcState struct {
	cfg GCConfig

	mu             sync.Mutex
	freedSinceScan int

	limiter *rate.Limiter
}

func newGCState(cfg GCConfig) *gcState {
	if cfg.ThresholdBlocks <= 0 {
		cfg = DefaultGCConfig()
	}
	// rate.Limiter with burst 1 and a refill period equal to MinInterval
	// gives exactly "at most once per MinInterval" semantics.
	every := rate.Every(cfg.MinInterval)
	return &gcState{cfg: cfg, limiter: rate.NewLimiter(every, 1)}
}

func (g *gcState) noteDeallocation() {
	g.mu.Lock()
	g.freedSinceScan++
	g.mu.Unlock()
}

// internalThresholdReached reports whether the internal GC should run,
// and resets the counter if so.
func (g *gcState) internalThresholdReached() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.freedSinceScan < g.cfg.ThresholdBlocks {
		return false
	}
	g.freedSinceScan = 0
	return true
}

// allow reports whether the minimum-interval gate permits another
// auto-collect run right now.
func (g *gcState) allow() bool { return g.limiter.Allow() }

// Pressure computes the current pressure bucket.
func (p *Pool) Pressure() Pressure {
	used := p.UsedBytes()
	if p.total == 0 {
		return PressureLow
	}
	pct := used * 100 / p.total
	switch {
	case pct >= uint64(p.gc.cfg.CriticalPercent):
		return PressureCritical
	case pct >= uint64(p.gc.cfg.WarningPercent):
		return PressureHigh
	case pct >= 60:
		return PressureMedium
	default:
		return PressureLow
	}
}

// runInternalGC shrinks empty bucket slices and emits a summary event.
// It performs no mutating work beyond bookkeeping: coalescing already
// happens eagerly on every Deallocate (spec §4.3 "it does nothing
// mutating").
func (p *Pool) runInternalGC() {
	p.mu.Lock()
	shrunk := 0
	for i := range p.free.small {
		if len(p.free.small[i]) == 0 && cap(p.free.small[i]) > 0 {
			p.free.small[i] = nil
			shrunk++
		}
	}
	for i := range p.free.medium {
		if len(p.free.medium[i]) == 0 && cap(p.free.medium[i]) > 0 {
			p.free.medium[i] = nil
			shrunk++
		}
	}
	p.mu.Unlock()
	p.emit("memory.gc.internal", 0, map[string]any{"shrunk_buckets": shrunk})
}

// maybeAutoCollect triggers pressure emission, and — gated by the
// minimum-interval rate limiter — an internal GC pass once pressure
// crosses the auto-collect threshold (spec §4.3 "Auto-collect triggers at
// >=80% pressure with a minimum 5-second interval between runs").
func (p *Pool) maybeAutoCollect() {
	pressure := p.Pressure()
	switch pressure {
	case PressureHigh:
		p.emit("memory.pressure_high", 0, nil)
	case PressureCritical:
		p.emit("memory.pressure_critical", 0, nil)
		p.runInternalGC()
		return
	}

	used := p.UsedBytes()
	pct := 0
	if p.total > 0 {
		pct = int(used * 100 / p.total)
	}
	if pct >= p.gc.cfg.AutoCollectPercent && p.gc.allow() {
		p.runInternalGC()
	}
}

// GCStrategy selects which processes' memory the global collector should
// reclaim (spec §4.3).
type GCStrategy struct {
	kind      gcStrategyKind
	threshold uint64
	pid       uint32
}

type gcStrategyKind int

const (
	gcGlobal gcStrategyKind = iota
	gcThreshold
	gcTargeted
	gcUnreferenced
)

func GCGlobal() GCStrategy                    { return GCStrategy{kind: gcGlobal} }
func GCThreshold(size uint64) GCStrategy      { return GCStrategy{kind: gcThreshold, threshold: size} }
func GCTargeted(pid uint32) GCStrategy        { return GCStrategy{kind: gcTargeted, pid: pid} }
func GCUnreferenced() GCStrategy              { return GCStrategy{kind: gcUnreferenced} }

// Reclaimable reports, for a given owner pid, whether its memory is
// eligible for collection under the process lifecycle rules (Terminated
// or Zombie). The memory package has no notion of process state itself
// (C3 sits below C1 in the dependency order, spec §2), so the process
// manager supplies this predicate.
type Reclaimable func(pid uint32) bool

// GlobalCollect reclaims blocks owned by processes the strategy and the
// isReclaimable predicate both select, returning the bytes freed.
func (p *Pool) GlobalCollect(strategy GCStrategy, isReclaimable Reclaimable) uint64 {
	p.ownerMu.Lock()
	var targets []uint32
	for owner := range p.owners {
		if !isReclaimable(owner) {
			continue
		}
		switch strategy.kind {
		case gcGlobal, gcUnreferenced:
			targets = append(targets, owner)
		case gcThreshold:
			var sum uint64
			for _, b := range p.owners[owner] {
				sum += b.Size
			}
			if sum > strategy.threshold {
				targets = append(targets, owner)
			}
		case gcTargeted:
			if owner == strategy.pid {
				targets = append(targets, owner)
			}
		}
	}
	p.ownerMu.Unlock()

	var freed uint64
	for _, owner := range targets {
		freed += p.FreeProcessMemory(owner)
	}
	if freed > 0 {
		p.emit("memory.gc.global", 0, map[string]any{"freed_bytes": freed, "processes": len(targets)})
	}
	return freed
}
