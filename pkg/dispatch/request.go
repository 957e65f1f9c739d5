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

// Package dispatch is the kernel's single entry point for all external
// requests (spec §4.5). Named dispatch rather than syscall to avoid
// shadowing the standard library package of that name.
package dispatch

import (
	"github.com/artificialos/kernel/pkg/ipc"
	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/process"
	"github.com/artificialos/kernel/pkg/scheduler"
)

// Op tags a SyscallRequest variant (spec §4.5's "tagged variant").
type Op string

const (
	OpReadFile       Op = "ReadFile"
	OpWriteFile      Op = "WriteFile"
	OpCreateFile     Op = "CreateFile"
	OpDeleteFile     Op = "DeleteFile"
	OpListDirectory  Op = "ListDirectory"
	OpFileExists     Op = "FileExists"
	OpGetSystemInfo  Op = "GetSystemInfo"
	OpGetCurrentTime Op = "GetCurrentTime"
	OpGetEnvVar      Op = "GetEnvVar"

	OpCreateProcess    Op = "CreateProcess"
	OpTerminateProcess Op = "TerminateProcess"
	OpScheduleNext     Op = "ScheduleNext"
	OpScheduleSetPolicy Op = "ScheduleSetPolicy"
	OpScheduleStats    Op = "ScheduleStats"

	OpCreatePipe  Op = "CreatePipe"
	OpWritePipe   Op = "WritePipe"
	OpReadPipe    Op = "ReadPipe"
	OpClosePipe   Op = "ClosePipe"
	OpCreateShm   Op = "CreateShm"
	OpAttachShm   Op = "AttachShm"
	OpWriteShm    Op = "WriteShm"
	OpReadShm     Op = "ReadShm"
	OpCreateQueue Op = "CreateQueue"
	OpSendQueue   Op = "SendQueue"
	OpReceiveQueue     Op = "ReceiveQueue"
	OpSubscribeQueue   Op = "SubscribeQueue"
	OpUnsubscribeQueue Op = "UnsubscribeQueue"
	OpDestroyQueue     Op = "DestroyQueue"

	OpAllocate    Op = "Allocate"
	OpDeallocate  Op = "Deallocate"
	OpReadMemory  Op = "ReadMemory"
	OpWriteMemory Op = "WriteMemory"
)

// Request is the single tagged-variant request type every syscall is
// carried as: pid plus the typed parameters relevant to Op. Unused
// fields for a given Op are simply left at their zero value — this is
// the same flattened-oneof shape the wire JSON codec needs anyway
// (spec §9 "Coroutine / async surface" translation note: a thin struct,
// not a class hierarchy).
type Request struct {
	PID kernel.PID
	Op  Op

	// File I/O.
	Path string
	Data []byte

	// Process.
	Name         string
	Priority     int
	SandboxLevel process.SandboxLevel
	Command      string
	Args         []string
	Env          map[string]string
	TargetPID    kernel.PID

	// Scheduler.
	Policy scheduler.Policy

	// Pipes.
	PipeID     uint64
	ReaderPID  uint32
	WriterPID  uint32
	Capacity   int
	MaxBytes   int

	// Shared memory.
	ShmID    uint64
	Offset   int
	Size     int
	ReadOnly bool

	// Queues.
	QueueID         uint64
	QueueType       ipc.QueueType
	MessagePriority uint32

	// Memory.
	Address uint64

	// Environment variable lookup.
	VarName string
}
