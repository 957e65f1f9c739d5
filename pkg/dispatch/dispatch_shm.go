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

import (
	"github.com/artificialos/kernel/pkg/guard"
	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/process"
)

func (d *Dispatcher) dispatchShm(req Request, caller process.Snapshot) Response {
	switch req.Op {
	case OpCreateShm:
		s := d.IPC.CreateShm(uint32(req.PID), req.Size)

		tx := guard.NewTransactionGuard(uint32(req.PID), d.sink)
		defer tx.Finish()
		tx.Record("create_shm", func() { _ = d.IPC.DestroyShm(uint32(req.PID), s.ID) })

		ig := guard.NewIPCGuard(guard.ResourceShm, uint32(req.PID), s.ID, func() error { return d.IPC.DestroyShm(uint32(req.PID), s.ID) }, d.sink)
		if err := d.Procs.Track(req.PID, guardName("shm", s.ID), ig); err != nil {
			return errorResponse(err)
		}
		tx.Commit()
		return successResponse(mustSerialize(map[string]any{"shm_id": s.ID}))

	case OpAttachShm:
		s, err := d.IPC.Shm(req.ShmID)
		if err != nil {
			return errorResponse(err)
		}
		if err := s.Attach(uint32(req.PID), req.ReadOnly); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)

	case OpWriteShm:
		s, err := d.IPC.Shm(req.ShmID)
		if err != nil {
			return errorResponse(err)
		}
		if err := s.Write(uint32(req.PID), req.Offset, req.Data); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)

	case OpReadShm:
		s, err := d.IPC.Shm(req.ShmID)
		if err != nil {
			return errorResponse(err)
		}
		data, err := s.Read(uint32(req.PID), req.Offset, req.Size)
		if err != nil {
			return errorResponse(err)
		}
		return successResponse(data)

	default:
		return errorResponse(kernel.NewError(kernel.ErrInternal, "dispatchShm called with non-shm op %q", req.Op))
	}
}
