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
	"container/heap"
	"sync"

	"github.com/artificialos/kernel/pkg/kernel"
)

// QueueType selects the ordering and fan-out semantics of a Queue
// (spec §4.4.3).
type QueueType int

const (
	FIFO QueueType = iota
	Priority
	PubSub
)

func (t QueueType) String() string {
	switch t {
	case FIFO:
		return "FIFO"
	case Priority:
		return "Priority"
	case PubSub:
		return "PubSub"
	default:
		return "Unknown"
	}
}

// Message is one unit of queue traffic (spec §3 "Queue").
type Message struct {
	Data      []byte
	Priority  uint32
	SenderPID uint32
	Sequence  uint64
}

// Queue is the shared FIFO/Priority/PubSub resource. FIFO and Priority
// share one backing store (a slice kept in FIFO order, or a heap kept in
// priority order); PubSub instead fans each sent message out to a
// per-subscriber buffer.
type Queue struct {
	ID       uint64
	OwnerPID uint32
	Type     QueueType
	Capacity int

	mu   sync.Mutex
	seq  uint64
	gone bool

	// FIFO/Priority storage.
	fifo []Message
	heap *priorityHeap

	// PubSub storage: one bounded buffer per subscriber.
	subscribers map[uint32][]Message
}

// NewQueue creates an empty queue of the given type and capacity.
func NewQueue(id uint64, owner uint32, typ QueueType, capacity int) *Queue {
	q := &Queue{ID: id, OwnerPID: owner, Type: typ, Capacity: capacity}
	if typ == Priority {
		q.heap = &priorityHeap{}
		heap.Init(q.heap)
	}
	if typ == PubSub {
		q.subscribers = make(map[uint32][]Message)
	}
	return q
}

// Subscribe registers pid to receive subsequent PubSub sends.
func (q *Queue) Subscribe(pid uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gone {
		return kernel.NewError(kernel.ErrResourceGone, "queue %d destroyed", q.ID)
	}
	if q.Type != PubSub {
		return kernel.NewError(kernel.ErrInvalidArgument, "subscribe is only valid on a PubSub queue")
	}
	if _, ok := q.subscribers[pid]; !ok {
		q.subscribers[pid] = nil
	}
	return nil
}

// Unsubscribe removes pid from the subscriber set.
func (q *Queue) Unsubscribe(pid uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gone {
		return kernel.NewError(kernel.ErrResourceGone, "queue %d destroyed", q.ID)
	}
	if q.Type != PubSub {
		return kernel.NewError(kernel.ErrInvalidArgument, "unsubscribe is only valid on a PubSub queue")
	}
	delete(q.subscribers, pid)
	return nil
}

// Send enqueues a message, rejecting with QueueFull once at capacity
// (spec §4.4.3). For PubSub, the message fans out to a copy in every
// currently-registered subscriber's buffer; a full subscriber buffer
// rejects the whole send.
func (q *Queue) Send(sender uint32, data []byte, priority uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gone {
		return kernel.NewError(kernel.ErrResourceGone, "queue %d destroyed", q.ID)
	}
	q.seq++
	msg := Message{Data: data, Priority: priority, SenderPID: sender, Sequence: q.seq}

	switch q.Type {
	case FIFO:
		if q.Capacity > 0 && len(q.fifo) >= q.Capacity {
			return kernel.NewError(kernel.ErrQueueFull, "queue %d is full", q.ID)
		}
		q.fifo = append(q.fifo, msg)
		return nil
	case Priority:
		if q.Capacity > 0 && q.heap.Len() >= q.Capacity {
			return kernel.NewError(kernel.ErrQueueFull, "queue %d is full", q.ID)
		}
		heap.Push(q.heap, msg)
		return nil
	case PubSub:
		for pid, buf := range q.subscribers {
			if q.Capacity > 0 && len(buf) >= q.Capacity {
				return kernel.NewError(kernel.ErrQueueFull, "queue %d is full for subscriber %d", q.ID, pid)
			}
		}
		for pid, buf := range q.subscribers {
			q.subscribers[pid] = append(buf, msg)
		}
		return nil
	default:
		return kernel.NewError(kernel.ErrInternal, "queue %d has unknown type", q.ID)
	}
}

// Receive returns the next available message for pid, or ok == false if
// none is available. Never blocks (spec §4.4.3).
func (q *Queue) Receive(pid uint32) (Message, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gone {
		return Message{}, false, kernel.NewError(kernel.ErrResourceGone, "queue %d destroyed", q.ID)
	}

	switch q.Type {
	case FIFO:
		if len(q.fifo) == 0 {
			return Message{}, false, nil
		}
		msg := q.fifo[0]
		q.fifo = q.fifo[1:]
		return msg, true, nil
	case Priority:
		if q.heap.Len() == 0 {
			return Message{}, false, nil
		}
		msg := heap.Pop(q.heap).(Message)
		return msg, true, nil
	case PubSub:
		buf, ok := q.subscribers[pid]
		if !ok {
			return Message{}, false, kernel.NewError(kernel.ErrNotAttached, "pid %d is not subscribed to queue %d", pid, q.ID)
		}
		if len(buf) == 0 {
			return Message{}, false, nil
		}
		q.subscribers[pid] = buf[1:]
		return buf[0], true, nil
	default:
		return Message{}, false, kernel.NewError(kernel.ErrInternal, "queue %d has unknown type", q.ID)
	}
}

// Destroy tombstones the queue (spec §4.4.4).
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.gone = true
}

// priorityHeap orders Messages highest-priority-first, ties broken by the
// lower (earlier) sequence number (spec §3 "Priority returns highest
// priority first, ties broken by sequence").
type priorityHeap []Message

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityHeap) Push(x any) { *h = append(*h, x.(Message)) }

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
