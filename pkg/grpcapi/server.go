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
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/artificialos/kernel/pkg/dispatch"
	"github.com/artificialos/kernel/pkg/process"
)

// Server binds dispatch.Dispatcher's two external entry points (spec §6:
// CreateProcess and ExecuteSyscall) to the gRPC transport.
type Server struct {
	d dispatcherAPI
}

var _ kernelServer = (*Server)(nil)

// NewServer wraps a dispatcher for gRPC registration.
func NewServer(d dispatcherAPI) *Server {
	return &Server{d: d}
}

// CreateProcess implements the bootstrap RPC: no caller pid is required,
// since the caller does not have one yet.
func (s *Server) CreateProcess(ctx context.Context, req *CreateProcessRequest) (*CreateProcessResponse, error) {
	sandbox, err := parseSandboxLevel(req.SandboxLevel)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res := s.d.CreateProcess(process.CreateRequest{
		Name:         req.Name,
		Priority:     req.Priority,
		SandboxLevel: sandbox,
		Command:      req.Command,
		Args:         req.Args,
		Env:          req.Env,
	})
	if res.Error != nil {
		return &CreateProcessResponse{Error: res.Error.Error()}, nil
	}
	return &CreateProcessResponse{PID: uint32(res.PID)}, nil
}

// ExecuteSyscall implements the single syscall entry point (spec §4.5):
// every SyscallRequest variant passes through unchanged, and the
// dispatcher's own permission/transaction/serialization pipeline runs as
// normal. Only a malformed wire request (e.g. an unrecognized policy
// name) is rejected before reaching the dispatcher.
func (s *Server) ExecuteSyscall(ctx context.Context, req *SyscallRequest) (*SyscallResponse, error) {
	dreq, err := toDispatchRequest(*req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	resp := s.d.Dispatch(dreq)
	out := fromDispatchResponse(resp)
	return &out, nil
}

// Register installs the kernel service, with its JSON codec, onto a
// grpc.Server. A caller building the production binary pairs this with
// grpc.NewServer(grpc.ForceServerCodec(JSONCodec{})): the kernel's own
// wire schema is out of scope (spec §1), so there is no .proto file to
// generate a codec from.
func Register(gs *grpc.Server, d dispatcherAPI) {
	gs.RegisterService(&serviceDesc, NewServer(d))
}

// NewGRPCServer builds a grpc.Server bound to the dispatcher with the
// JSON codec installed, ready for net.Listener.Serve.
func NewGRPCServer(d *dispatch.Dispatcher) *grpc.Server {
	gs := grpc.NewServer(grpc.ForceServerCodec(JSONCodec{}))
	Register(gs, d)
	return gs
}
