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

// roundRobinRunqueue is a single FIFO: next() pops the head, requeue()
// appends to the tail (spec §4.2 Round-robin).
type roundRobinRunqueue struct {
	q []*Record
}

func newRoundRobinRunqueue() *roundRobinRunqueue { return &roundRobinRunqueue{} }

func (rr *roundRobinRunqueue) add(r *Record) { rr.q = append(rr.q, r) }

func (rr *roundRobinRunqueue) remove(pid uint32) bool {
	for i, r := range rr.q {
		if r.PID == pid {
			rr.q = append(rr.q[:i], rr.q[i+1:]...)
			return true
		}
	}
	return false
}

func (rr *roundRobinRunqueue) next() (*Record, bool) {
	if len(rr.q) == 0 {
		return nil, false
	}
	r := rr.q[0]
	rr.q = rr.q[1:]
	return r, true
}

func (rr *roundRobinRunqueue) requeue(r *Record) { rr.q = append(rr.q, r) }

func (rr *roundRobinRunqueue) len() int { return len(rr.q) }

func (rr *roundRobinRunqueue) all() []*Record {
	out := make([]*Record, len(rr.q))
	copy(out, rr.q)
	return out
}
