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

package guard_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artificialos/kernel/pkg/guard"
)

type markState struct{ released bool }

func TestMemoryGuardReleasesExactlyOnce(t *testing.T) {
	m := &markState{}
	count := 0
	g := guard.NewMemoryGuard(1, 0x1000, func() error {
		count++
		m.released = true
		return nil
	}, nil)

	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
	assert.Equal(t, 1, count, "release must run exactly once")
	assert.True(t, m.released)
}

func TestRefCountedMemoryGuardReleasesOnLastDrop(t *testing.T) {
	count := 0
	g1 := guard.NewRefCountedMemoryGuard(1, 0x2000, func() error { count++; return nil }, nil)
	g2 := g1.Clone()

	require.NoError(t, g1.Release())
	assert.Equal(t, 0, count, "must not release while a clone is outstanding")
	require.NoError(t, g2.Release())
	assert.Equal(t, 1, count)
}

func TestTransactionGuardRollsBackLIFOWithoutCommit(t *testing.T) {
	var order []int
	tg := guard.NewTransactionGuard(1, nil)
	defer tg.Finish()

	tg.Record("op1", func() { order = append(order, 1) })
	tg.Record("op2", func() { order = append(order, 2) })
	tg.Record("op3", func() { order = append(order, 3) })

	tg.Finish()
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestTransactionGuardCommitSkipsRollback(t *testing.T) {
	ran := false
	tg := guard.NewTransactionGuard(1, nil)
	tg.Record("op1", func() { ran = true })
	tg.Commit()
	tg.Finish()
	assert.False(t, ran, "commit must discard the rollback list")
}

func TestLockGuardTypeStateAndPoison(t *testing.T) {
	var mu sync.Mutex
	u := guard.NewUnlockedGuard(1, &mu, 42, nil)
	locked := u.Lock()

	v, err := locked.Access()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	locked.Poison("simulated failure")
	assert.True(t, locked.IsPoisoned())
	_, err = locked.Access()
	assert.Error(t, err)

	locked.Recover()
	_, err = locked.Access()
	assert.NoError(t, err)

	_ = locked.Unlock()
}

func TestCompositeGuardReleasesAllMembersLIFO(t *testing.T) {
	var order []string
	c := guard.NewCompositeGuard(1, nil)
	c.Add("a", releaseFunc(func() error { order = append(order, "a"); return nil }))
	c.Add("b", releaseFunc(func() error { order = append(order, "b"); return nil }))

	require.NoError(t, c.Release())
	assert.Equal(t, []string{"b", "a"}, order)
}

type releaseFunc func() error

func (f releaseFunc) Release() error { return f() }
