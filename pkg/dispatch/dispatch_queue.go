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

func (d *Dispatcher) dispatchQueue(req Request, caller process.Snapshot) Response {
	switch req.Op {
	case OpCreateQueue:
		q := d.IPC.CreateQueue(uint32(req.PID), req.QueueType, req.Capacity)

		tx := guard.NewTransactionGuard(uint32(req.PID), d.sink)
		defer tx.Finish()
		tx.Record("create_queue", func() { d.IPC.DestroyQueue(q.ID) })

		ig := guard.NewIPCGuard(guard.ResourceQueue, uint32(req.PID), q.ID, func() error { d.IPC.DestroyQueue(q.ID); return nil }, d.sink)
		if err := d.Procs.Track(req.PID, guardName("queue", q.ID), ig); err != nil {
			return errorResponse(err)
		}
		tx.Commit()
		return successResponse(mustSerialize(map[string]any{"queue_id": q.ID}))

	case OpSendQueue:
		q, err := d.IPC.Queue(req.QueueID)
		if err != nil {
			return errorResponse(err)
		}
		if err := q.Send(uint32(req.PID), req.Data, req.MessagePriority); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)

	case OpReceiveQueue:
		q, err := d.IPC.Queue(req.QueueID)
		if err != nil {
			return errorResponse(err)
		}
		msg, ok, err := q.Receive(uint32(req.PID))
		if err != nil {
			return errorResponse(err)
		}
		if !ok {
			return successResponse(mustSerialize(map[string]any{"message": nil}))
		}
		return successResponse(mustSerialize(msg))

	case OpSubscribeQueue:
		q, err := d.IPC.Queue(req.QueueID)
		if err != nil {
			return errorResponse(err)
		}
		if err := q.Subscribe(uint32(req.PID)); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)

	case OpUnsubscribeQueue:
		q, err := d.IPC.Queue(req.QueueID)
		if err != nil {
			return errorResponse(err)
		}
		if err := q.Unsubscribe(uint32(req.PID)); err != nil {
			return errorResponse(err)
		}
		return successResponse(nil)

	case OpDestroyQueue:
		d.IPC.DestroyQueue(req.QueueID)
		return successResponse(nil)

	default:
		return errorResponse(kernel.NewError(kernel.ErrInternal, "dispatchQueue called with non-queue op %q", req.Op))
	}
}
