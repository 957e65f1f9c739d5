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

// Package ipc implements the kernel's pipe, shared-memory and queue
// resources (spec §4.4). Every resource has exactly one owner pid; on
// termination the owning component calls Destroy, after which any other
// pid's operations fail with ResourceGone.
package ipc

import (
	"sync"

	"github.com/artificialos/kernel/pkg/kernel"
)

const defaultPipeCapacity = 64 * 1024

// Pipe is a bounded, single-reader/single-writer byte FIFO (spec §4.4.1).
type Pipe struct {
	ID       uint64
	ReaderPID uint32
	WriterPID uint32

	mu       sync.Mutex
	capacity int
	buf      []byte
	closed   bool
	gone     bool
}

// NewPipe creates a pipe with the default 64KiB capacity if capacity <= 0.
func NewPipe(id uint64, reader, writer uint32, capacity int) *Pipe {
	if capacity <= 0 {
		capacity = defaultPipeCapacity
	}
	return &Pipe{ID: id, ReaderPID: reader, WriterPID: writer, capacity: capacity}
}

// Write appends as much of data as fits, returning the number of bytes
// actually written. Never blocks (spec §4.4.1).
func (p *Pipe) Write(pid uint32, data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone {
		return 0, kernel.NewError(kernel.ErrResourceGone, "pipe %d destroyed", p.ID)
	}
	if pid != p.WriterPID {
		return 0, kernel.PermissionDeniedError("only the writer pid may write to this pipe")
	}
	if p.closed {
		return 0, kernel.NewError(kernel.ErrPipeClosed, "pipe %d is closed", p.ID)
	}
	room := p.capacity - len(p.buf)
	if room <= 0 {
		return 0, nil
	}
	n := len(data)
	if n > room {
		n = room
	}
	p.buf = append(p.buf, data[:n]...)
	return n, nil
}

// Read returns up to max bytes, or an empty slice if the pipe is empty
// (spec §4.4.1: reads never block, draining closed pipes instead of
// erroring once the buffer is empty).
func (p *Pipe) Read(pid uint32, max int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone {
		return nil, kernel.NewError(kernel.ErrResourceGone, "pipe %d destroyed", p.ID)
	}
	if pid != p.ReaderPID {
		return nil, kernel.PermissionDeniedError("only the reader pid may read from this pipe")
	}
	if max <= 0 || len(p.buf) == 0 {
		return nil, nil
	}
	n := max
	if n > len(p.buf) {
		n = len(p.buf)
	}
	out := make([]byte, n)
	copy(out, p.buf[:n])
	p.buf = p.buf[n:]
	return out, nil
}

// Close marks the pipe closed: further writes fail with PipeClosed, reads
// continue to drain whatever remains buffered.
func (p *Pipe) Close(pid uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gone {
		return kernel.NewError(kernel.ErrResourceGone, "pipe %d destroyed", p.ID)
	}
	if pid != p.ReaderPID && pid != p.WriterPID {
		return kernel.PermissionDeniedError("only the reader or writer pid may close this pipe")
	}
	p.closed = true
	return nil
}

// Destroy tombstones the pipe; every subsequent operation fails with
// ResourceGone (spec §4.4.4).
func (p *Pipe) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gone = true
}
