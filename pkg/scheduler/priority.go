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

package scheduler

import "container/heap"

// priorityItem wraps a Record with the insertion sequence used to break
// priority ties (spec §4.2 "ties broken by insertion order").
type priorityItem struct {
	rec   *Record
	order uint64
}

type priorityQueue []*priorityItem

func (h priorityQueue) Len() int { return len(h) }
func (h priorityQueue) Less(i, j int) bool {
	if h[i].rec.Priority != h[j].rec.Priority {
		return h[i].rec.Priority > h[j].rec.Priority
	}
	return h[i].order < h[j].order
}
func (h priorityQueue) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *priorityQueue) Push(x any) { *h = append(*h, x.(*priorityItem)) }

func (h *priorityQueue) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// priorityRunqueue is a binary heap keyed by static priority descending,
// ties broken by insertion order (spec §4.2 Priority).
type priorityRunqueue struct {
	h     priorityQueue
	order uint64
}

func newPriorityRunqueue() *priorityRunqueue {
	pr := &priorityRunqueue{}
	heap.Init(&pr.h)
	return pr
}

func (pr *priorityRunqueue) add(r *Record) {
	pr.order++
	heap.Push(&pr.h, &priorityItem{rec: r, order: pr.order})
}

func (pr *priorityRunqueue) remove(pid uint32) bool {
	for i, item := range pr.h {
		if item.rec.PID == pid {
			heap.Remove(&pr.h, i)
			return true
		}
	}
	return false
}

func (pr *priorityRunqueue) next() (*Record, bool) {
	if pr.h.Len() == 0 {
		return nil, false
	}
	item := heap.Pop(&pr.h).(*priorityItem)
	return item.rec, true
}

func (pr *priorityRunqueue) requeue(r *Record) { pr.add(r) }

func (pr *priorityRunqueue) len() int { return pr.h.Len() }

func (pr *priorityRunqueue) all() []*Record {
	out := make([]*Record, 0, len(pr.h))
	for _, item := range pr.h {
		out = append(out, item.rec)
	}
	return out
}
