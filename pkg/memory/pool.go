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

package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/artificialos/kernel/pkg/collector"
	"github.com/artificialos/kernel/pkg/kernel"
)

// Pool is the kernel's single contiguous 64-bit address range (spec §3
// "Address space is a single contiguous 64-bit range").
type Pool struct {
	base  uint64
	total uint64

	usedBytes int64 // atomic

	mu      sync.Mutex // guards byAddr and the free lists
	byAddr  map[uint64]*Block

	free *freeLists

	data []byte // backing store for the whole address range, indexed by address

	ownerMu sync.Mutex
	owners  map[uint32]map[uint64]*Block

	sink collector.Sink

	gc *gcState
}

// NewPool creates a pool of the given total size, entirely free.
func NewPool(totalSize uint64, sink collector.Sink, gcCfg GCConfig) *Pool {
	p := &Pool{
		base:   0,
		total:  totalSize,
		byAddr: make(map[uint64]*Block),
		free:   newFreeLists(),
		data:   make([]byte, totalSize),
		owners: make(map[uint32]map[uint64]*Block),
		sink:   sink,
	}
	root := &Block{Address: p.base, Size: totalSize, State: Free}
	p.byAddr[root.Address] = root
	p.free.insert(root)
	p.gc = newGCState(gcCfg)
	return p
}

// TotalSize returns the pool's fixed size.
func (p *Pool) TotalSize() uint64 { return p.total }

// UsedBytes returns the number of bytes currently allocated.
func (p *Pool) UsedBytes() uint64 { return uint64(atomic.LoadInt64(&p.usedBytes)) }

// Allocate implements spec §4.3's allocation algorithm.
func (p *Pool) Allocate(size uint64, owner uint32) (uint64, error) {
	if size == 0 {
		return 0, kernel.NewError(kernel.ErrInvalidArgument, "allocate: size must be > 0")
	}
	want := roundUp(size)

	p.mu.Lock()
	block := p.free.take(want)
	if block == nil {
		used := p.UsedBytes()
		p.mu.Unlock()
		return 0, kernel.OutOfMemoryError(size, p.total-used, used, p.total)
	}

	// Split if the remainder is worth keeping as its own free block.
	if block.Size > want && block.Size-want >= minBlockSize {
		remainder := &Block{Address: block.Address + want, Size: block.Size - want, State: Free}
		block.Size = want
		p.byAddr[remainder.Address] = remainder
		p.free.insert(remainder)
	}
	block.State = Allocated
	block.Owner = owner
	p.byAddr[block.Address] = block
	p.mu.Unlock()

	atomic.AddInt64(&p.usedBytes, int64(block.Size))
	p.trackOwner(owner, block)
	p.emit("memory.allocated", owner, map[string]any{"address": block.Address, "size": block.Size})
	p.maybeAutoCollect()
	return block.Address, nil
}

// Read returns a copy of n bytes starting at address, bounds-checked
// against the live allocated block covering it (spec §8 Invariant 1:
// read(addr,size) returns exactly the bytes last written at addr).
func (p *Pool) Read(address, n uint64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	block, ok := p.byAddr[address]
	if !ok || block.State != Allocated {
		return nil, kernel.NewError(kernel.ErrInvalidAddress, "read: no allocated block at 0x%x", address)
	}
	if n > block.Size {
		return nil, kernel.NewError(kernel.ErrInvalidAddress, "read: %d bytes exceeds allocated size %d at 0x%x", n, block.Size, address)
	}
	out := make([]byte, n)
	copy(out, p.data[address:address+n])
	return out, nil
}

// Write copies data into the block at address, bounds-checked against
// its live allocated size (spec §8 "write(addr,b); read(addr,len(b)) ==
// b for all b with len(b) <= allocated_size(addr)").
func (p *Pool) Write(address uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	block, ok := p.byAddr[address]
	if !ok || block.State != Allocated {
		return kernel.NewError(kernel.ErrInvalidAddress, "write: no allocated block at 0x%x", address)
	}
	if uint64(len(data)) > block.Size {
		return kernel.NewError(kernel.ErrInvalidAddress, "write: %d bytes exceeds allocated size %d at 0x%x", len(data), block.Size, address)
	}
	copy(p.data[address:], data)
	return nil
}

// Deallocate marks the block at address free, coalesces with free
// neighbours, and removes it from the owner's allocation set.
func (p *Pool) Deallocate(address uint64) error {
	p.mu.Lock()
	block, ok := p.byAddr[address]
	if !ok || block.State != Allocated {
		p.mu.Unlock()
		return kernel.NewError(kernel.ErrInvalidAddress, "deallocate: no allocated block at 0x%x", address)
	}
	owner := block.Owner
	size := block.Size
	block.State = Free
	block.Owner = 0

	merged := p.coalesce(block)
	p.free.insert(merged)
	p.mu.Unlock()

	atomic.AddInt64(&p.usedBytes, -int64(size))
	p.untrackOwner(owner, address)
	p.emit("memory.deallocated", owner, map[string]any{"address": address, "size": size})
	p.gc.noteDeallocation()
	if p.gc.internalThresholdReached() {
		p.runInternalGC()
	}
	return nil
}

// coalesce merges block with any free neighbour by address. Caller must
// hold p.mu. Returns the (possibly merged) block now representing the
// free region.
func (p *Pool) coalesce(block *Block) *Block {
	// Direct neighbour lookups by arithmetic: a block ending exactly where
	// block begins, and a block beginning exactly where block ends.
	if prev, ok := p.findBlockEndingAt(block.Address); ok && prev.State == Free {
		p.free.remove(prev)
		delete(p.byAddr, prev.Address)
		prev.Size += block.Size
		delete(p.byAddr, block.Address)
		block = prev
	}
	if next, ok := p.byAddr[block.Address+block.Size]; ok && next.State == Free {
		p.free.remove(next)
		delete(p.byAddr, next.Address)
		block.Size += next.Size
	}
	p.byAddr[block.Address] = block
	return block
}

func (p *Pool) findBlockEndingAt(addr uint64) (*Block, bool) {
	for a, b := range p.byAddr {
		if a+b.Size == addr {
			return b, true
		}
	}
	return nil, false
}

func (p *Pool) trackOwner(owner uint32, b *Block) {
	p.ownerMu.Lock()
	defer p.ownerMu.Unlock()
	set, ok := p.owners[owner]
	if !ok {
		set = make(map[uint64]*Block)
		p.owners[owner] = set
	}
	set[b.Address] = &Block{Address: b.Address, Size: b.Size, Owner: owner, State: Allocated}
}

func (p *Pool) untrackOwner(owner uint32, address uint64) {
	p.ownerMu.Lock()
	defer p.ownerMu.Unlock()
	if set, ok := p.owners[owner]; ok {
		delete(set, address)
		if len(set) == 0 {
			delete(p.owners, owner)
		}
	}
}

// ProcessMemory returns the total bytes allocated to owner (spec §4.3).
func (p *Pool) ProcessMemory(owner uint32) uint64 {
	p.ownerMu.Lock()
	defer p.ownerMu.Unlock()
	var total uint64
	for _, b := range p.owners[owner] {
		total += b.Size
	}
	return total
}

// ProcessAllocations returns a deep copy of owner's allocated blocks so
// callers can never mutate pool-internal state.
func (p *Pool) ProcessAllocations(owner uint32) []Block {
	p.ownerMu.Lock()
	defer p.ownerMu.Unlock()
	set, ok := p.owners[owner]
	if !ok {
		return nil
	}
	out := make([]Block, 0, len(set))
	for _, b := range set {
		copied := deepcopy.Copy(*b).(Block)
		out = append(out, copied)
	}
	return out
}

// FreeProcessMemory releases every block owned by owner, returning the
// number of bytes freed.
func (p *Pool) FreeProcessMemory(owner uint32) uint64 {
	p.ownerMu.Lock()
	addrs := make([]uint64, 0, len(p.owners[owner]))
	for addr := range p.owners[owner] {
		addrs = append(addrs, addr)
	}
	p.ownerMu.Unlock()

	var freed uint64
	for _, addr := range addrs {
		p.mu.Lock()
		if b, ok := p.byAddr[addr]; ok {
			freed += b.Size
		}
		p.mu.Unlock()
		_ = p.Deallocate(addr)
	}
	return freed
}

func (p *Pool) emit(eventType string, owner uint32, fields map[string]any) {
	if p.sink == nil {
		return
	}
	p.sink.Emit(collector.Event{Type: eventType, PID: owner, Fields: fields, At: time.Now()})
}
