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

package process

import (
	"sync"

	"github.com/artificialos/kernel/pkg/kernel"
)

// shardCount targets 128 shards to minimize contention on the process
// table (spec §5 "Shared-resource policy").
const shardCount = 128

type shard struct {
	mu    sync.RWMutex
	procs map[kernel.PID]*Process
}

// table is a sharded map of pid to Process, each shard independently
// locked so unrelated pids never contend.
type table struct {
	shards [shardCount]*shard
}

func newTable() *table {
	t := &table{}
	for i := range t.shards {
		t.shards[i] = &shard{procs: make(map[kernel.PID]*Process)}
	}
	return t
}

func (t *table) shardFor(pid kernel.PID) *shard {
	return t.shards[uint32(pid)%shardCount]
}

func (t *table) insert(p *Process) {
	s := t.shardFor(p.PID)
	s.mu.Lock()
	s.procs[p.PID] = p
	s.mu.Unlock()
}

func (t *table) get(pid kernel.PID) (*Process, bool) {
	s := t.shardFor(pid)
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.procs[pid]
	return p, ok
}

func (t *table) delete(pid kernel.PID) {
	s := t.shardFor(pid)
	s.mu.Lock()
	delete(s.procs, pid)
	s.mu.Unlock()
}

func (t *table) all() []*Process {
	out := make([]*Process, 0)
	for _, s := range t.shards {
		s.mu.RLock()
		for _, p := range s.procs {
			out = append(out, p)
		}
		s.mu.RUnlock()
	}
	return out
}
