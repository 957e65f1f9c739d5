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

package dispatch_test

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artificialos/kernel/pkg/dispatch"
	"github.com/artificialos/kernel/pkg/ipc"
	"github.com/artificialos/kernel/pkg/memory"
	"github.com/artificialos/kernel/pkg/process"
	"github.com/artificialos/kernel/pkg/scheduler"
)

func newDispatcher(t *testing.T) (*dispatch.Dispatcher, *process.Manager) {
	t.Helper()
	sched := scheduler.New(scheduler.RoundRobin, 10*time.Millisecond)
	procs := process.NewManager(sched, nil)
	mem := memory.NewPool(1<<20, nil, memory.DefaultGCConfig())
	ipcMgr := ipc.NewManager(nil)
	return dispatch.New(procs, sched, mem, ipcMgr, nil), procs
}

func TestSandboxEnforcementBlocksFileIOAtMinimal(t *testing.T) {
	d, procs := newDispatcher(t)
	pid, err := procs.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Minimal})
	require.NoError(t, err)

	resp := d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpReadFile, Path: "/pid/1/etc/passwd"})
	assert.Equal(t, dispatch.PermissionDenied, resp.Kind)
	assert.Contains(t, resp.Reason, "file I/O not allowed at Minimal sandbox")
}

func TestStandardSandboxCanReadWithinScope(t *testing.T) {
	d, procs := newDispatcher(t)
	pid, err := procs.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Standard})
	require.NoError(t, err)

	path := "/pid/" + strconv.Itoa(int(pid)) + "/hello.txt"
	resp := d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpCreateFile, Path: path, Data: []byte("hi")})
	require.Equal(t, dispatch.Success, resp.Kind)

	resp = d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpReadFile, Path: path})
	require.Equal(t, dispatch.Success, resp.Kind)
	assert.Equal(t, []byte("hi"), resp.Data)
}

func TestAllocateDeallocateRoundTripThroughDispatcher(t *testing.T) {
	d, procs := newDispatcher(t)
	pid, err := procs.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Minimal})
	require.NoError(t, err)

	resp := d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpAllocate, Size: 1024})
	require.Equal(t, dispatch.Success, resp.Kind)
	var allocated struct {
		Address uint64 `json:"address"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &allocated))

	resp = d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpDeallocate, Address: allocated.Address})
	require.Equal(t, dispatch.Success, resp.Kind)
}

func TestReadWriteMemoryRoundTripThroughDispatcher(t *testing.T) {
	d, procs := newDispatcher(t)
	pid, err := procs.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Minimal})
	require.NoError(t, err)

	resp := d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpAllocate, Size: 1024})
	require.Equal(t, dispatch.Success, resp.Kind)
	var allocated struct {
		Address uint64 `json:"address"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &allocated))

	resp = d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpWriteMemory, Address: allocated.Address, Data: []byte{0x01, 0x02, 0x03}})
	require.Equal(t, dispatch.Success, resp.Kind)

	resp = d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpReadMemory, Address: allocated.Address, Size: 3})
	require.Equal(t, dispatch.Success, resp.Kind)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, resp.Data)

	resp = d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpDeallocate, Address: allocated.Address})
	require.Equal(t, dispatch.Success, resp.Kind)

	resp = d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpReadMemory, Address: allocated.Address, Size: 3})
	assert.Equal(t, dispatch.ErrorResult, resp.Kind)
	assert.Equal(t, "InvalidAddress", resp.Code)
}

func TestPrivilegedSandboxCanReadSchedulerStats(t *testing.T) {
	d, procs := newDispatcher(t)
	pid, err := procs.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Privileged})
	require.NoError(t, err)

	resp := d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpScheduleStats})
	require.Equal(t, dispatch.Success, resp.Kind)
}

func TestNoSuchProcessSurfacesAsError(t *testing.T) {
	d, _ := newDispatcher(t)
	resp := d.Dispatch(dispatch.Request{PID: 999, Op: dispatch.OpGetCurrentTime})
	assert.Equal(t, dispatch.ErrorResult, resp.Kind)
	assert.Equal(t, "NoSuchProcess", resp.Code)
}

func TestTerminateReleasesTrackedPipeGuard(t *testing.T) {
	d, procs := newDispatcher(t)
	pid, err := procs.Create(process.CreateRequest{Name: "a", SandboxLevel: process.Standard})
	require.NoError(t, err)

	resp := d.Dispatch(dispatch.Request{PID: pid, Op: dispatch.OpCreatePipe, ReaderPID: uint32(pid), WriterPID: uint32(pid)})
	require.Equal(t, dispatch.Success, resp.Kind)
	var created struct {
		PipeID uint64 `json:"pipe_id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	_, err = d.IPC.Pipe(created.PipeID)
	require.NoError(t, err)

	require.NoError(t, procs.Terminate(pid))
	_, err = d.IPC.Pipe(created.PipeID)
	assert.Error(t, err)
}
