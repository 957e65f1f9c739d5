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

// Package kernel holds the types shared by every kernel subsystem: the
// error taxonomy, pid allocation and Config. The root Kernel struct that
// wires the subsystems together lives in pkg/app.
package kernel

import "fmt"

// ErrorKind enumerates the error taxonomy a SyscallResponse may surface.
// These are kinds, not Go error values with fixed messages: callers switch
// on Kind, not on string content.
type ErrorKind int

const (
	// ErrNoSuchProcess indicates the caller pid is not registered.
	ErrNoSuchProcess ErrorKind = iota
	ErrInvalidPid
	ErrOutOfMemory
	ErrProcessLimitExceeded
	ErrInvalidAddress
	ErrAlignmentError
	ErrProtectionViolation
	ErrPipeClosed
	ErrQueueFull
	ErrNotAttached
	ErrResourceGone
	ErrPermissionDenied
	ErrInvalidArgument
	ErrSerialization
	ErrInternal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoSuchProcess:
		return "NoSuchProcess"
	case ErrInvalidPid:
		return "InvalidPid"
	case ErrOutOfMemory:
		return "OutOfMemory"
	case ErrProcessLimitExceeded:
		return "ProcessLimitExceeded"
	case ErrInvalidAddress:
		return "InvalidAddress"
	case ErrAlignmentError:
		return "AlignmentError"
	case ErrProtectionViolation:
		return "ProtectionViolation"
	case ErrPipeClosed:
		return "PipeClosed"
	case ErrQueueFull:
		return "QueueFull"
	case ErrNotAttached:
		return "NotAttached"
	case ErrResourceGone:
		return "ResourceGone"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrSerialization:
		return "Serialization"
	case ErrInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the kernel's uniform error type. The process manager, memory
// pool and IPC layer return *Error so the dispatcher can map it onto
// exactly one wire shape: Error{code, message} or PermissionDenied{reason}.
type Error struct {
	Kind ErrorKind
	Msg  string

	// OutOfMemory detail, populated only when Kind == ErrOutOfMemory.
	Requested, Available, Used, Total uint64
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewError builds a plain kind+message error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// OutOfMemoryError builds the detailed OutOfMemory{requested, available,
// used, total} error shape required by spec §7.
func OutOfMemoryError(requested, available, used, total uint64) *Error {
	return &Error{
		Kind:      ErrOutOfMemory,
		Msg:       fmt.Sprintf("requested %d bytes, %d available", requested, available),
		Requested: requested,
		Available: available,
		Used:      used,
		Total:     total,
	}
}

// PermissionDeniedError builds a PermissionDenied{reason} error.
func PermissionDeniedError(reason string) *Error {
	return &Error{Kind: ErrPermissionDenied, Msg: reason}
}
