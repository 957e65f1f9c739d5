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

package grpcapi

import (
	"context"

	"google.golang.org/grpc"

	"github.com/artificialos/kernel/pkg/dispatch"
	"github.com/artificialos/kernel/pkg/process"
)

// kernelServer is the untyped interface the generated-style handlers
// dispatch to. Server (server.go) is the only implementation.
type kernelServer interface {
	CreateProcess(context.Context, *CreateProcessRequest) (*CreateProcessResponse, error)
	ExecuteSyscall(context.Context, *SyscallRequest) (*SyscallResponse, error)
}

// serviceDesc is the hand-written stand-in for a protoc-generated
// _ServiceDesc: two unary methods, no streaming (spec §6 names no
// streaming surface). Method bodies follow the same
// decode-then-invoke-then-optionally-intercept shape grpc-generated code
// produces.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "kernel.Kernel",
	HandlerType: (*kernelServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateProcess", Handler: createProcessHandler},
		{MethodName: "ExecuteSyscall", Handler: executeSyscallHandler},
	},
	Metadata: "kernel.proto",
}

func createProcessHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CreateProcessRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(kernelServer).CreateProcess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/CreateProcess"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(kernelServer).CreateProcess(ctx, req.(*CreateProcessRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func executeSyscallHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SyscallRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(kernelServer).ExecuteSyscall(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/kernel.Kernel/ExecuteSyscall"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(kernelServer).ExecuteSyscall(ctx, req.(*SyscallRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// dispatcherAPI is the slice of *dispatch.Dispatcher the service needs;
// declared as an interface so tests can stub it.
type dispatcherAPI interface {
	CreateProcess(process.CreateRequest) dispatch.CreateProcessResult
	Dispatch(dispatch.Request) dispatch.Response
}
