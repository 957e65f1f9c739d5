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

import "github.com/google/btree"

func fairLess(a, b *Record) bool {
	if a.VRuntime != b.VRuntime {
		return a.VRuntime < b.VRuntime
	}
	return a.PID < b.PID
}

// fairRunqueue orders records by virtual runtime ascending, tie-broken by
// pid (spec §4.2 Fair). A google/btree ordered tree gives O(log n)
// insert/remove/min, the same structure pkg/memory uses for its large
// free-block tier.
type fairRunqueue struct {
	tree *btree.BTreeG[*Record]
	byPID map[uint32]*Record
}

func newFairRunqueue() *fairRunqueue {
	return &fairRunqueue{tree: btree.NewG(32, fairLess), byPID: make(map[uint32]*Record)}
}

func (fr *fairRunqueue) add(r *Record) {
	fr.tree.ReplaceOrInsert(r)
	fr.byPID[r.PID] = r
}

func (fr *fairRunqueue) remove(pid uint32) bool {
	r, ok := fr.byPID[pid]
	if !ok {
		return false
	}
	fr.tree.Delete(r)
	delete(fr.byPID, pid)
	return true
}

func (fr *fairRunqueue) next() (*Record, bool) {
	var min *Record
	fr.tree.Ascend(func(r *Record) bool {
		min = r
		return false
	})
	if min == nil {
		return nil, false
	}
	fr.tree.Delete(min)
	delete(fr.byPID, min.PID)
	return min, true
}

func (fr *fairRunqueue) requeue(r *Record) { fr.add(r) }

func (fr *fairRunqueue) len() int { return fr.tree.Len() }

func (fr *fairRunqueue) all() []*Record {
	out := make([]*Record, 0, fr.tree.Len())
	fr.tree.Ascend(func(r *Record) bool {
		out = append(out, r)
		return true
	})
	return out
}
