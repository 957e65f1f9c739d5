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

package ipc

import (
	"sync"

	"github.com/artificialos/kernel/pkg/kernel"
)

// attachment is one pid's membership in a shared-memory segment.
type attachment struct {
	readOnly bool
}

// SharedMemory is a byte-addressable segment attached pids may read or
// write, bounds-checked against size (spec §4.4.2).
type SharedMemory struct {
	ID      uint64
	OwnerPID uint32
	Size    int

	mu          sync.RWMutex
	data        []byte
	attachments map[uint32]attachment
	gone        bool
}

// NewSharedMemory allocates a zeroed segment of the given size.
func NewSharedMemory(id uint64, owner uint32, size int) *SharedMemory {
	return &SharedMemory{
		ID:          id,
		OwnerPID:    owner,
		Size:        size,
		data:        make([]byte, size),
		attachments: make(map[uint32]attachment),
	}
}

// Attach records pid's membership; required before any read or write.
func (s *SharedMemory) Attach(pid uint32, readOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return kernel.NewError(kernel.ErrResourceGone, "shm %d destroyed", s.ID)
	}
	s.attachments[pid] = attachment{readOnly: readOnly}
	return nil
}

// Detach removes pid's membership.
func (s *SharedMemory) Detach(pid uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return kernel.NewError(kernel.ErrResourceGone, "shm %d destroyed", s.ID)
	}
	delete(s.attachments, pid)
	return nil
}

// Write copies data into the segment at offset, bounds-checked, and
// rejected if pid's attachment is read-only or pid is not attached.
func (s *SharedMemory) Write(pid uint32, offset int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return kernel.NewError(kernel.ErrResourceGone, "shm %d destroyed", s.ID)
	}
	att, ok := s.attachments[pid]
	if !ok {
		return kernel.NewError(kernel.ErrNotAttached, "pid %d is not attached to shm %d", pid, s.ID)
	}
	if att.readOnly {
		return kernel.PermissionDeniedError("attachment is read-only")
	}
	if offset < 0 || offset+len(data) > len(s.data) {
		return kernel.NewError(kernel.ErrInvalidArgument, "write out of bounds: offset=%d len=%d size=%d", offset, len(data), len(s.data))
	}
	copy(s.data[offset:], data)
	return nil
}

// Read returns a copy of size bytes starting at offset, bounds-checked.
func (s *SharedMemory) Read(pid uint32, offset, size int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gone {
		return nil, kernel.NewError(kernel.ErrResourceGone, "shm %d destroyed", s.ID)
	}
	if _, ok := s.attachments[pid]; !ok {
		return nil, kernel.NewError(kernel.ErrNotAttached, "pid %d is not attached to shm %d", pid, s.ID)
	}
	if offset < 0 || size < 0 || offset+size > len(s.data) {
		return nil, kernel.NewError(kernel.ErrInvalidArgument, "read out of bounds: offset=%d size=%d total=%d", offset, size, len(s.data))
	}
	out := make([]byte, size)
	copy(out, s.data[offset:offset+size])
	return out, nil
}

// AttachedPIDs returns the pids currently attached, for forced detachment
// when the owning process terminates the segment.
func (s *SharedMemory) AttachedPIDs() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pids := make([]uint32, 0, len(s.attachments))
	for pid := range s.attachments {
		pids = append(pids, pid)
	}
	return pids
}

// Destroy tombstones the segment; only the owner pid may call this
// (enforced by the caller, which knows OwnerPID). All attachments are
// forcibly dropped.
func (s *SharedMemory) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gone = true
	s.attachments = make(map[uint32]attachment)
}
