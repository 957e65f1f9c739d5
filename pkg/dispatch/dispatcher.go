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

package dispatch

import (
	"time"

	"github.com/artificialos/kernel/pkg/collector"
	"github.com/artificialos/kernel/pkg/guard"
	"github.com/artificialos/kernel/pkg/ipc"
	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/memory"
	"github.com/artificialos/kernel/pkg/process"
	"github.com/artificialos/kernel/pkg/scheduler"
)

// Dispatcher is the C5 syscall dispatcher: the single entry point every
// external request (gRPC-bound or otherwise) funnels through (spec
// §4.5).
type Dispatcher struct {
	Procs *process.Manager
	Sched *scheduler.Scheduler
	Mem   *memory.Pool
	IPC   *ipc.Manager
	vfs   *vfs
	sink  collector.Sink
}

// New wires a dispatcher to the kernel's subsystem managers.
func New(procs *process.Manager, sched *scheduler.Scheduler, mem *memory.Pool, ipcMgr *ipc.Manager, sink collector.Sink) *Dispatcher {
	return &Dispatcher{Procs: procs, Sched: sched, Mem: mem, IPC: ipcMgr, vfs: newVFS(), sink: sink}
}

// CreateProcessResult mirrors spec §6's CreateProcessResponse.
type CreateProcessResult struct {
	PID   kernel.PID
	Error error
}

// CreateProcess is the gRPC-facing bootstrap entry point (spec §6): it is
// not gated by an existing caller's sandbox, since it is how a caller
// obtains its first pid.
func (d *Dispatcher) CreateProcess(req process.CreateRequest) CreateProcessResult {
	pid, err := d.Procs.Create(req)
	if err != nil {
		return CreateProcessResult{Error: err}
	}
	return CreateProcessResult{PID: pid}
}

// Dispatch implements spec §4.5's five-step pipeline: caller lookup,
// sandbox permission check, routing, transaction-guarded execution, and
// size-adaptive response encoding.
func (d *Dispatcher) Dispatch(req Request) (resp Response) {
	defer func() {
		// A panic inside a handler must not poison the kernel (spec §7):
		// report it as Internal. Resource guards already in scope release
		// via their own deferred Finish/Release during this unwind.
		if r := recover(); r != nil {
			resp = errorResponse(kernel.NewError(kernel.ErrInternal, "panic: %v", r))
		}
	}()

	caller, err := d.Procs.Get(req.PID)
	if err != nil {
		return errorResponse(err)
	}

	if !permitted(caller.Sandbox, familyOf(req.Op)) {
		return permissionDeniedResponse(reasonFor(req.Op, caller.Sandbox))
	}

	return d.route(req, caller)
}

func (d *Dispatcher) route(req Request, caller process.Snapshot) Response {
	switch req.Op {
	case OpGetSystemInfo:
		return successResponse(mustSerialize(map[string]any{"pid_count": len(d.Procs.List())}))
	case OpGetCurrentTime:
		return successResponse(mustSerialize(time.Now().UTC()))
	case OpGetEnvVar:
		val, ok := caller.Env[req.VarName]
		if !ok {
			return errorResponse(kernel.NewError(kernel.ErrInvalidArgument, "no such env var %q", req.VarName))
		}
		return successResponse([]byte(val))

	case OpAllocate:
		return d.dispatchAllocate(req)
	case OpDeallocate:
		err := d.Mem.Deallocate(req.Address)
		if err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)
	case OpReadMemory:
		data, err := d.Mem.Read(req.Address, uint64(req.Size))
		if err != nil {
			return errorResponse(err)
		}
		return successResponse(data)
	case OpWriteMemory:
		if err := d.Mem.Write(req.Address, req.Data); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)

	case OpReadFile, OpWriteFile, OpCreateFile, OpDeleteFile, OpListDirectory, OpFileExists:
		return d.dispatchFile(req, caller)

	case OpCreateProcess:
		res := d.CreateProcess(process.CreateRequest{
			Name: req.Name, Priority: req.Priority, SandboxLevel: req.SandboxLevel,
			Command: req.Command, Args: req.Args, Env: req.Env,
		})
		if res.Error != nil {
			return errorResponse(res.Error)
		}
		return successResponse(mustSerialize(map[string]any{"pid": res.PID}))
	case OpTerminateProcess:
		if err := d.Procs.Terminate(req.TargetPID); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)
	case OpScheduleNext:
		pid, ok := d.Sched.Next()
		if !ok {
			return successResponse(mustSerialize(map[string]any{"pid": nil}))
		}
		return successResponse(mustSerialize(map[string]any{"pid": pid}))
	case OpScheduleSetPolicy:
		d.Sched.SetPolicy(req.Policy)
		return successResponse(nil)
	case OpScheduleStats:
		return successResponse(mustSerialize(d.Sched.Stats()))

	case OpCreatePipe, OpWritePipe, OpReadPipe, OpClosePipe:
		return d.dispatchPipe(req, caller)
	case OpCreateShm, OpAttachShm, OpWriteShm, OpReadShm:
		return d.dispatchShm(req, caller)
	case OpCreateQueue, OpSendQueue, OpReceiveQueue, OpSubscribeQueue, OpUnsubscribeQueue, OpDestroyQueue:
		return d.dispatchQueue(req, caller)

	default:
		return errorResponse(kernel.NewError(kernel.ErrInvalidArgument, "unknown syscall op %q", req.Op))
	}
}

func (d *Dispatcher) dispatchAllocate(req Request) Response {
	addr, err := d.Mem.Allocate(uint64(req.Size), uint32(req.PID))
	if err != nil {
		return errorResponse(err)
	}
	tx := guard.NewTransactionGuard(uint32(req.PID), d.sink)
	defer tx.Finish()
	tx.Record("allocate", func() { _ = d.Mem.Deallocate(addr) })

	mg := guard.NewMemoryGuard(uint32(req.PID), addr, func() error { return d.Mem.Deallocate(addr) }, d.sink)
	if err := d.Procs.Track(req.PID, guardName("mem", addr), mg); err != nil {
		return errorResponse(err) // tx.Finish rolls the allocation back
	}
	tx.Commit()
	return successResponse(mustSerialize(map[string]any{"address": addr}))
}

func mustSerialize(v any) []byte {
	out, err := serialize(v, false)
	if err != nil {
		return nil
	}
	return out
}

func guardName(kind string, id uint64) string {
	return kind + ":" + itoa64(id)
}

func itoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}
