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

import "github.com/artificialos/kernel/pkg/process"

// family groups syscall ops the way spec §6's sandbox table does.
type family int

const (
	familySystemInfo family = iota
	familyMemory
	familyFileIO
	familyIPC
	familyScheduler
	familyProcess
	familyEnvVar
)

func familyOf(op Op) family {
	switch op {
	case OpGetSystemInfo, OpGetCurrentTime:
		return familySystemInfo
	case OpAllocate, OpDeallocate, OpReadMemory, OpWriteMemory:
		return familyMemory
	case OpReadFile, OpWriteFile, OpCreateFile, OpDeleteFile, OpListDirectory, OpFileExists:
		return familyFileIO
	case OpCreatePipe, OpWritePipe, OpReadPipe, OpClosePipe,
		OpCreateShm, OpAttachShm, OpWriteShm, OpReadShm,
		OpCreateQueue, OpSendQueue, OpReceiveQueue, OpSubscribeQueue, OpUnsubscribeQueue, OpDestroyQueue:
		return familyIPC
	case OpScheduleNext, OpScheduleSetPolicy, OpScheduleStats:
		return familyScheduler
	case OpCreateProcess, OpTerminateProcess:
		return familyProcess
	case OpGetEnvVar:
		return familyEnvVar
	default:
		return familySystemInfo
	}
}

// permitted implements spec §6's sandbox table: each level is a superset
// of the one below it.
func permitted(level process.SandboxLevel, f family) bool {
	switch level {
	case process.Minimal:
		return f == familySystemInfo || f == familyMemory
	case process.Standard:
		return f == familySystemInfo || f == familyMemory || f == familyFileIO || f == familyIPC
	case process.Privileged:
		return true
	default:
		return false
	}
}

// reasonFor builds the human-readable PermissionDenied.reason spec §8's
// scenario 6 expects (e.g. "file I/O not allowed at Minimal sandbox").
func reasonFor(op Op, level process.SandboxLevel) string {
	names := map[family]string{
		familySystemInfo: "system info",
		familyMemory:     "memory",
		familyFileIO:     "file I/O",
		familyIPC:        "IPC",
		familyScheduler:  "scheduler control",
		familyProcess:    "process create/terminate",
		familyEnvVar:     "env var read",
	}
	return names[familyOf(op)] + " not allowed at " + level.String() + " sandbox"
}
