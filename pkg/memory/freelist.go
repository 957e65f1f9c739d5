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

import "github.com/google/btree"

// freeLists is the segregated free list described in spec §3: small and
// medium tiers are O(1) stacks indexed by bucket, the large tier is a
// google/btree-ordered map keyed by (size, address) for best-fit search.
type freeLists struct {
	small  [numSmallTiers][]*Block
	medium [numMediumTiers][]*Block
	large  *btree.BTreeG[*Block]
}

func largeLess(a, b *Block) bool {
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return a.Address < b.Address
}

func newFreeLists() *freeLists {
	return &freeLists{large: btree.NewG(32, largeLess)}
}

// insert adds a free block to whichever tier its size belongs to.
func (f *freeLists) insert(b *Block) {
	switch {
	case b.Size <= smallMax:
		i := smallBucketIndex(b.Size)
		f.small[i] = append(f.small[i], b)
	case b.Size <= mediumMax:
		i := mediumBucketIndex(b.Size)
		f.medium[i] = append(f.medium[i], b)
	default:
		f.large.ReplaceOrInsert(b)
	}
}

// remove deletes a specific free block from its tier (used during
// coalescing, when a neighbour must be pulled out of the free list before
// being merged).
func (f *freeLists) remove(b *Block) {
	switch {
	case b.Size <= smallMax:
		i := smallBucketIndex(b.Size)
		f.small[i] = removeBlock(f.small[i], b)
	case b.Size <= mediumMax:
		i := mediumBucketIndex(b.Size)
		f.medium[i] = removeBlock(f.medium[i], b)
	default:
		f.large.Delete(b)
	}
}

func removeBlock(s []*Block, target *Block) []*Block {
	for i, b := range s {
		if b == target {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// take finds and removes a free block able to hold want bytes, splitting
// is the caller's responsibility. Returns nil if no block fits anywhere.
func (f *freeLists) take(want uint64) *Block {
	switch {
	case want <= smallMax:
		i := smallBucketIndex(want)
		if len(f.small[i]) > 0 {
			b := f.small[i][len(f.small[i])-1]
			f.small[i] = f.small[i][:len(f.small[i])-1]
			return b
		}
		return f.takeFromLarger(want)
	case want <= mediumMax:
		i := mediumBucketIndex(want)
		if len(f.medium[i]) > 0 {
			b := f.medium[i][len(f.medium[i])-1]
			f.medium[i] = f.medium[i][:len(f.medium[i])-1]
			return b
		}
		return f.takeFromLarger(want)
	default:
		return f.takeBestFit(want)
	}
}

// takeFromLarger scans larger small/medium buckets, then the large tier,
// for a block that can satisfy want when the exact-size bucket is empty.
func (f *freeLists) takeFromLarger(want uint64) *Block {
	if want <= smallMax {
		for i := smallBucketIndex(want) + 1; i < numSmallTiers; i++ {
			if len(f.small[i]) > 0 {
				b := f.small[i][len(f.small[i])-1]
				f.small[i] = f.small[i][:len(f.small[i])-1]
				return b
			}
		}
	}
	for i := mediumBucketIndex(want) + 1; i < numMediumTiers; i++ {
		if len(f.medium[i]) > 0 {
			b := f.medium[i][len(f.medium[i])-1]
			f.medium[i] = f.medium[i][:len(f.medium[i])-1]
			return b
		}
	}
	return f.takeBestFit(want)
}

// takeBestFit finds the smallest free block >= want in the large tier
// (spec §4.3 step 4, O(log n)).
func (f *freeLists) takeBestFit(want uint64) *Block {
	var found *Block
	f.large.AscendGreaterOrEqual(&Block{Size: want}, func(b *Block) bool {
		found = b
		return false
	})
	if found != nil {
		f.large.Delete(found)
	}
	return found
}
