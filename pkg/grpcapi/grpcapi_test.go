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

package grpcapi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/artificialos/kernel/pkg/dispatch"
	"github.com/artificialos/kernel/pkg/grpcapi"
	"github.com/artificialos/kernel/pkg/ipc"
	"github.com/artificialos/kernel/pkg/memory"
	"github.com/artificialos/kernel/pkg/process"
	"github.com/artificialos/kernel/pkg/scheduler"
)

// dial spins up the kernel gRPC service over an in-memory bufconn
// listener and returns a connected client plus the backing dispatcher.
func dial(t *testing.T) (*grpc.ClientConn, *dispatch.Dispatcher, func()) {
	t.Helper()

	sched := scheduler.New(scheduler.RoundRobin, 10*time.Millisecond)
	procs := process.NewManager(sched, nil)
	mem := memory.NewPool(1<<20, nil, memory.DefaultGCConfig())
	ipcMgr := ipc.NewManager(nil)
	d := dispatch.New(procs, sched, mem, ipcMgr, nil)

	lis := bufconn.Listen(1 << 20)
	gs := grpcapi.NewGRPCServer(d)
	go gs.Serve(lis)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(grpcapi.JSONCodec{})),
		grpc.WithBlock(),
	)
	require.NoError(t, err)

	return conn, d, func() { conn.Close(); gs.Stop() }
}

func TestCreateProcessAndExecuteSyscallRoundTrip(t *testing.T) {
	conn, _, cleanup := dial(t)
	defer cleanup()

	var createResp grpcapi.CreateProcessResponse
	err := conn.Invoke(context.Background(), "/kernel.Kernel/CreateProcess",
		&grpcapi.CreateProcessRequest{Name: "client-proc", SandboxLevel: "Standard"}, &createResp)
	require.NoError(t, err)
	assert.Empty(t, createResp.Error)
	assert.NotZero(t, createResp.PID)

	var sysResp grpcapi.SyscallResponse
	err = conn.Invoke(context.Background(), "/kernel.Kernel/ExecuteSyscall",
		&grpcapi.SyscallRequest{PID: createResp.PID, Op: string(dispatch.OpAllocate), Size: 64}, &sysResp)
	require.NoError(t, err)
	assert.Equal(t, "Success", sysResp.Kind)
}

func TestExecuteSyscallRejectsUnknownPolicyBeforeDispatch(t *testing.T) {
	conn, _, cleanup := dial(t)
	defer cleanup()

	var createResp grpcapi.CreateProcessResponse
	require.NoError(t, conn.Invoke(context.Background(), "/kernel.Kernel/CreateProcess",
		&grpcapi.CreateProcessRequest{Name: "p", SandboxLevel: "Privileged"}, &createResp))

	var sysResp grpcapi.SyscallResponse
	err := conn.Invoke(context.Background(), "/kernel.Kernel/ExecuteSyscall",
		&grpcapi.SyscallRequest{PID: createResp.PID, Op: string(dispatch.OpScheduleSetPolicy), Policy: "Bogus"}, &sysResp)
	require.Error(t, err)
}

func TestExecuteSyscallSurfacesPermissionDenied(t *testing.T) {
	conn, _, cleanup := dial(t)
	defer cleanup()

	var createResp grpcapi.CreateProcessResponse
	require.NoError(t, conn.Invoke(context.Background(), "/kernel.Kernel/CreateProcess",
		&grpcapi.CreateProcessRequest{Name: "p", SandboxLevel: "Minimal"}, &createResp))

	var sysResp grpcapi.SyscallResponse
	err := conn.Invoke(context.Background(), "/kernel.Kernel/ExecuteSyscall",
		&grpcapi.SyscallRequest{PID: createResp.PID, Op: string(dispatch.OpReadFile), Path: "/etc/passwd"}, &sysResp)
	require.NoError(t, err)
	assert.Equal(t, "PermissionDenied", sysResp.Kind)
}
