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
	"fmt"

	"github.com/artificialos/kernel/pkg/dispatch"
	"github.com/artificialos/kernel/pkg/ipc"
	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/process"
	"github.com/artificialos/kernel/pkg/scheduler"
)

// CreateProcessRequest is the wire shape of the bootstrap RPC (spec §6):
// a caller with no pid yet asks the kernel to mint one.
type CreateProcessRequest struct {
	Name         string            `json:"name"`
	Priority     int               `json:"priority"`
	SandboxLevel string            `json:"sandbox_level"`
	Command      string            `json:"command"`
	Args         []string          `json:"args"`
	Env          map[string]string `json:"env"`
}

// CreateProcessResponse carries back the minted pid, or an error string
// if creation failed.
type CreateProcessResponse struct {
	PID   uint32 `json:"pid"`
	Error string `json:"error,omitempty"`
}

// SyscallRequest is the wire shape of every ExecuteSyscall call: a
// flattened struct mirroring dispatch.Request field-for-field, since the
// wire schema itself is out of scope for the kernel (spec §1) and no
// tighter shape is demanded anywhere else.
type SyscallRequest struct {
	PID uint32 `json:"pid"`
	Op  string `json:"op"`

	Path string `json:"path,omitempty"`
	Data []byte `json:"data,omitempty"`

	Name         string            `json:"name,omitempty"`
	Priority     int               `json:"priority,omitempty"`
	SandboxLevel string            `json:"sandbox_level,omitempty"`
	Command      string            `json:"command,omitempty"`
	Args         []string          `json:"args,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
	TargetPID    uint32            `json:"target_pid,omitempty"`

	Policy string `json:"policy,omitempty"`

	PipeID    uint64 `json:"pipe_id,omitempty"`
	ReaderPID uint32 `json:"reader_pid,omitempty"`
	WriterPID uint32 `json:"writer_pid,omitempty"`
	Capacity  int    `json:"capacity,omitempty"`
	MaxBytes  int    `json:"max_bytes,omitempty"`

	ShmID    uint64 `json:"shm_id,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	Size     int    `json:"size,omitempty"`
	ReadOnly bool   `json:"read_only,omitempty"`

	QueueID         uint64 `json:"queue_id,omitempty"`
	QueueType       string `json:"queue_type,omitempty"`
	MessagePriority uint32 `json:"message_priority,omitempty"`

	Address uint64 `json:"address,omitempty"`
	VarName string `json:"var_name,omitempty"`
}

// SyscallResponse is the wire shape of dispatch.Response: exactly one of
// its three result kinds is meaningful, matching dispatch's own "only
// the fields matching Kind are populated" contract.
type SyscallResponse struct {
	Kind string `json:"kind"`

	Data []byte `json:"data,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`

	Reason string `json:"reason,omitempty"`
}

func parseSandboxLevel(s string) (process.SandboxLevel, error) {
	switch s {
	case "", "Minimal":
		return process.Minimal, nil
	case "Standard":
		return process.Standard, nil
	case "Privileged":
		return process.Privileged, nil
	default:
		return 0, fmt.Errorf("grpcapi: unknown sandbox level %q", s)
	}
}

func parsePolicy(s string) (scheduler.Policy, error) {
	switch s {
	case "", "RoundRobin":
		return scheduler.RoundRobin, nil
	case "PriorityPolicy":
		return scheduler.PriorityPolicy, nil
	case "Fair":
		return scheduler.Fair, nil
	default:
		return 0, fmt.Errorf("grpcapi: unknown scheduling policy %q", s)
	}
}

func parseQueueType(s string) (ipc.QueueType, error) {
	switch s {
	case "", "FIFO":
		return ipc.FIFO, nil
	case "Priority":
		return ipc.Priority, nil
	case "PubSub":
		return ipc.PubSub, nil
	default:
		return 0, fmt.Errorf("grpcapi: unknown queue type %q", s)
	}
}

func toDispatchRequest(w SyscallRequest) (dispatch.Request, error) {
	sandbox, err := parseSandboxLevel(w.SandboxLevel)
	if err != nil {
		return dispatch.Request{}, err
	}
	policy, err := parsePolicy(w.Policy)
	if err != nil {
		return dispatch.Request{}, err
	}
	qtype, err := parseQueueType(w.QueueType)
	if err != nil {
		return dispatch.Request{}, err
	}
	return dispatch.Request{
		PID: kernel.PID(w.PID),
		Op:  dispatch.Op(w.Op),

		Path: w.Path,
		Data: w.Data,

		Name:         w.Name,
		Priority:     w.Priority,
		SandboxLevel: sandbox,
		Command:      w.Command,
		Args:         w.Args,
		Env:          w.Env,
		TargetPID:    kernel.PID(w.TargetPID),

		Policy: policy,

		PipeID:    w.PipeID,
		ReaderPID: w.ReaderPID,
		WriterPID: w.WriterPID,
		Capacity:  w.Capacity,
		MaxBytes:  w.MaxBytes,

		ShmID:    w.ShmID,
		Offset:   w.Offset,
		Size:     w.Size,
		ReadOnly: w.ReadOnly,

		QueueID:         w.QueueID,
		QueueType:       qtype,
		MessagePriority: w.MessagePriority,

		Address: w.Address,
		VarName: w.VarName,
	}, nil
}

func fromDispatchResponse(r dispatch.Response) SyscallResponse {
	out := SyscallResponse{Data: r.Data, Code: r.Code, Message: r.Message, Reason: r.Reason}
	switch r.Kind {
	case dispatch.Success:
		out.Kind = "Success"
	case dispatch.ErrorResult:
		out.Kind = "Error"
	case dispatch.PermissionDenied:
		out.Kind = "PermissionDenied"
	}
	return out
}
