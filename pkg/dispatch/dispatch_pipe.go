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

func (d *Dispatcher) dispatchPipe(req Request, caller process.Snapshot) Response {
	switch req.Op {
	case OpCreatePipe:
		reader, writer := req.ReaderPID, req.WriterPID
		if reader == 0 {
			reader = uint32(req.PID)
		}
		if writer == 0 {
			writer = uint32(req.PID)
		}
		p := d.IPC.CreatePipe(reader, writer, req.Capacity)

		tx := guard.NewTransactionGuard(uint32(req.PID), d.sink)
		defer tx.Finish()
		tx.Record("create_pipe", func() { d.IPC.DestroyPipe(p.ID) })

		ig := guard.NewIPCGuard(guard.ResourcePipe, uint32(req.PID), p.ID, func() error { d.IPC.DestroyPipe(p.ID); return nil }, d.sink)
		if err := d.Procs.Track(req.PID, guardName("pipe", p.ID), ig); err != nil {
			return errorResponse(err)
		}
		tx.Commit()
		return successResponse(mustSerialize(map[string]any{"pipe_id": p.ID}))

	case OpWritePipe:
		p, err := d.IPC.Pipe(req.PipeID)
		if err != nil {
			return errorResponse(err)
		}
		n, err := p.Write(uint32(req.PID), req.Data)
		if err != nil {
			return errorResponse(err)
		}
		return successResponse(mustSerialize(map[string]any{"bytes_written": n}))

	case OpReadPipe:
		p, err := d.IPC.Pipe(req.PipeID)
		if err != nil {
			return errorResponse(err)
		}
		out, err := p.Read(uint32(req.PID), req.MaxBytes)
		if err != nil {
			return errorResponse(err)
		}
		return successResponse(out)

	case OpClosePipe:
		p, err := d.IPC.Pipe(req.PipeID)
		if err != nil {
			return errorResponse(err)
		}
		if err := p.Close(uint32(req.PID)); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)

	default:
		return errorResponse(kernel.NewError(kernel.ErrInternal, "dispatchPipe called with non-pipe op %q", req.Op))
	}
}
