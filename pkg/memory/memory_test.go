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

package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artificialos/kernel/pkg/kernel"
	"github.com/artificialos/kernel/pkg/memory"
)

func newPool(t *testing.T, size uint64) *memory.Pool {
	t.Helper()
	return memory.NewPool(size, nil, memory.DefaultGCConfig())
}

func TestAllocateZeroIsInvalidArgument(t *testing.T) {
	p := newPool(t, 1<<20)
	_, err := p.Allocate(0, 1)
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrInvalidArgument, kerr.Kind)
}

func TestAllocateExactPoolSizeThenOOM(t *testing.T) {
	p := newPool(t, 4096)
	addr, err := p.Allocate(4096, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), addr)

	_, err = p.Allocate(1, 1)
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrOutOfMemory, kerr.Kind)
}

func TestDeallocationRoundTrip(t *testing.T) {
	p := newPool(t, 1<<20)
	addr, err := p.Allocate(1024, 1)
	require.NoError(t, err)

	startUsed := p.UsedBytes()
	assert.Equal(t, uint64(1024), startUsed)
	assert.Equal(t, uint64(1024), p.ProcessMemory(1))

	require.NoError(t, p.Deallocate(addr))
	assert.Equal(t, uint64(0), p.UsedBytes())
	assert.Equal(t, uint64(0), p.ProcessMemory(1))

	err = p.Deallocate(addr)
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrInvalidAddress, kerr.Kind)
}

// TestReadWriteRoundTripThenInvalidAfterDealloc is spec §8 scenario 1:
// alloc(1024,pid=1)->A; write(A,[1,2,3]); read(A,3)->[1,2,3]; dealloc(A);
// read(A,3)->Error(InvalidAddress).
func TestReadWriteRoundTripThenInvalidAfterDealloc(t *testing.T) {
	p := newPool(t, 1<<20)
	addr, err := p.Allocate(1024, 1)
	require.NoError(t, err)

	require.NoError(t, p.Write(addr, []byte{0x01, 0x02, 0x03}))
	got, err := p.Read(addr, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got)

	require.NoError(t, p.Deallocate(addr))

	_, err = p.Read(addr, 3)
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrInvalidAddress, kerr.Kind)
}

func TestWriteBeyondAllocatedSizeIsInvalidAddress(t *testing.T) {
	p := newPool(t, 1<<20)
	addr, err := p.Allocate(64, 1)
	require.NoError(t, err)

	err = p.Write(addr, make([]byte, 65))
	require.Error(t, err)
	var kerr *kernel.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, kernel.ErrInvalidAddress, kerr.Kind)
}

// TestAllocateNeverReturnsUndersizedMediumBlock is a regression test for a
// free-list bug where an exhausted medium bucket fell back to the first
// non-empty bucket regardless of its size, handing out a block smaller
// than requested.
func TestAllocateNeverReturnsUndersizedMediumBlock(t *testing.T) {
	p := newPool(t, 1<<20)
	// Leave a free block in the smallest medium bucket (blocks up to
	// 8192B) while every larger medium bucket stays empty.
	small, err := p.Allocate(8192, 1)
	require.NoError(t, err)
	// Keep the neighbouring block in use so the freed block cannot
	// coalesce with the rest of the pool.
	_, err = p.Allocate(64, 1)
	require.NoError(t, err)
	require.NoError(t, p.Deallocate(small))

	addr, err := p.Allocate(60000, 2)
	require.NoError(t, err)
	require.NoError(t, p.Write(addr, make([]byte, 60000)))
}

// TestCoalescingMergesAdjacentFreeBlocks is spec §8 scenario 2: alloc
// three equal blocks, free the middle one then the two ends, and expect
// a single coalesced free block covering all three.
func TestCoalescingMergesAdjacentFreeBlocks(t *testing.T) {
	p := newPool(t, 3*1024)
	a, err := p.Allocate(1024, 1)
	require.NoError(t, err)
	b, err := p.Allocate(1024, 1)
	require.NoError(t, err)
	c, err := p.Allocate(1024, 1)
	require.NoError(t, err)

	require.NoError(t, p.Deallocate(b))
	require.NoError(t, p.Deallocate(a))
	require.NoError(t, p.Deallocate(c))

	assert.Equal(t, uint64(0), p.UsedBytes())
	// The whole pool must once again be allocatable as one block.
	addr, err := p.Allocate(3*1024, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), addr)
}

func TestProcessMemorySumsOwnedBlocks(t *testing.T) {
	p := newPool(t, 1<<20)
	_, err := p.Allocate(1024, 7)
	require.NoError(t, err)
	_, err = p.Allocate(2048, 7)
	require.NoError(t, err)
	_, err = p.Allocate(512, 8)
	require.NoError(t, err)

	assert.Equal(t, uint64(3072), p.ProcessMemory(7))
	assert.Equal(t, uint64(512), p.ProcessMemory(8))
	assert.Len(t, p.ProcessAllocations(7), 2)
}

func TestPressureBuckets(t *testing.T) {
	p := newPool(t, 100*1024)
	assert.Equal(t, memory.PressureLow, p.Pressure())

	// 80% used: High.
	_, err := p.Allocate(80*1024, 1)
	require.NoError(t, err)
	assert.Equal(t, memory.PressureHigh, p.Pressure())

	// 96% used: Critical.
	_, err = p.Allocate(16*1024, 1)
	require.NoError(t, err)
	assert.Equal(t, memory.PressureCritical, p.Pressure())
}

func TestGlobalCollectReclaimsOnlyEligibleProcesses(t *testing.T) {
	p := newPool(t, 1<<20)
	_, err := p.Allocate(4096, 1)
	require.NoError(t, err)
	_, err = p.Allocate(4096, 2)
	require.NoError(t, err)

	reclaimable := func(pid uint32) bool { return pid == 1 }
	freed := p.GlobalCollect(memory.GCGlobal(), reclaimable)
	assert.Equal(t, uint64(4096), freed)
	assert.Equal(t, uint64(0), p.ProcessMemory(1))
	assert.Equal(t, uint64(4096), p.ProcessMemory(2))
}
