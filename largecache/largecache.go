// Package largecache implements LargeBlockCache (spec.md §4.6): a
// cache of recently freed large (mmap-backed) blocks, kept mapped and
// bucketed by power-of-two size so a later large allocation can reclaim
// one instead of paying for a fresh mmap/munmap round trip. Grounded on
// the atomic slot-reservation idiom in
// other_examples/blastbao-slab__atom_pool.go (a lock-free pool of chunks
// claimed via CAS on an atomic state word), adapted here from a single
// homogeneous chunk pool to a bucketed, heterogeneous-size cache with an
// overall byte ceiling and age-based eviction.
package largecache

import (
	"sync/atomic"
	"unsafe"

	"github.com/alpluspluss/jalloc/internal/osmem"
)

// NumBuckets is the number of power-of-two size buckets the cache tracks.
const NumBuckets = 8

// SlotsPerBucket is the number of concurrently cached blocks per bucket.
const SlotsPerBucket = 4

// BaseBucketSize is bucket 0's size center; bucket i is centered at
// BaseBucketSize << i.
const BaseBucketSize = 4 * 1024

// MaxCachedBlock is the last bucket's size center (512 KiB). bucketFor
// accepts blocks up to twice this (1 MiB); anything bigger always goes
// straight to/from the OS.
const MaxCachedBlock = BaseBucketSize << (NumBuckets - 1)

// TotalCeiling is the default overall byte budget the cache will retain
// before it stops accepting new entries regardless of per-bucket
// occupancy, used when a Cache is built with New rather than
// NewWithCeiling.
const TotalCeiling = 64 * 1024 * 1024

// FitRatio bounds how much larger than the requested size a cached block
// may be and still be handed out: cached.size <= requested * FitRatio.
const FitRatio = 1.25

// slotEmpty/slotOccupied/slotReserved are the CAS states an entry's state
// word can hold, grounded on the same claim/release-by-CAS shape as
// package bitmap and the slab example this package is grounded on.
const (
	slotEmpty = iota
	slotOccupied
	slotReserved
)

type entry struct {
	state atomic.Int32
	ptr   unsafe.Pointer
	size  int64
	age   int64
}

// Cache is a lock-free cache of freed, still-mapped large blocks. Each
// jalloc.Arena builds its own Cache.
type Cache struct {
	ceiling    int64
	buckets    [NumBuckets][SlotsPerBucket]entry
	totalBytes atomic.Int64
	clock      atomic.Int64
}

// New returns an empty large-block cache with the default byte ceiling.
func New() *Cache {
	return NewWithCeiling(TotalCeiling)
}

// NewWithCeiling returns an empty large-block cache that retains at most
// ceiling bytes, as configured by "largecache.ceiling" in Defaultsettings.
// A ceiling <= 0 falls back to TotalCeiling.
func NewWithCeiling(ceiling int64) *Cache {
	if ceiling <= 0 {
		ceiling = TotalCeiling
	}
	return &Cache{ceiling: ceiling}
}

// bucketFor returns the bucket index covering size, or -1 if size exceeds
// the cache's range entirely.
func bucketFor(size int64) int {
	if size <= 0 {
		return 0
	}
	bucket := 0
	threshold := int64(BaseBucketSize)
	for bucket < NumBuckets-1 && size > threshold {
		threshold <<= 1
		bucket++
	}
	if size > int64(MaxCachedBlock)*2 {
		return -1
	}
	return bucket
}

// Get returns a cached block of at least size bytes and at most
// size*FitRatio bytes, if one exists, reserving it atomically so concurrent callers never race over
// the same slot.
func (c *Cache) Get(size int64) (unsafe.Pointer, int64, bool) {
	b := bucketFor(size)
	if b < 0 {
		return nil, 0, false
	}
	for i := range c.buckets[b] {
		e := &c.buckets[b][i]
		if e.state.Load() != slotOccupied {
			continue
		}
		if !e.state.CompareAndSwap(slotOccupied, slotReserved) {
			continue
		}
		cachedSize := e.size
		if cachedSize < size || float64(cachedSize) > float64(size)*FitRatio {
			// too small, or too loose a fit to hand out; put it back.
			e.state.Store(slotOccupied)
			continue
		}
		ptr := e.ptr
		e.ptr = nil
		e.size = 0
		c.totalBytes.Add(-cachedSize)
		e.state.Store(slotEmpty)
		return ptr, cachedSize, true
	}
	return nil, 0, false
}

// CacheBlock offers ptr/size to the cache. If the block would push the
// cache over its byte ceiling, the oldest cached entry is unmapped first.
// Returns false (and leaves the block for the caller to unmap) if no slot
// accepts it, either because every slot in the bucket is occupied or the
// cache is still over its byte ceiling after that one eviction.
func (c *Cache) CacheBlock(ptr unsafe.Pointer, size int64) bool {
	b := bucketFor(size)
	if b < 0 {
		return false
	}
	if c.totalBytes.Load()+size > c.ceiling {
		c.evictOldest()
		if c.totalBytes.Load()+size > c.ceiling {
			return false
		}
	}
	for i := range c.buckets[b] {
		e := &c.buckets[b][i]
		if !e.state.CompareAndSwap(slotEmpty, slotReserved) {
			continue
		}
		e.ptr = ptr
		e.size = size
		e.age = c.tick()
		c.totalBytes.Add(size)
		e.state.Store(slotOccupied)
		return true
	}
	return false
}

// tick advances and returns the cache's logical clock, used only to order
// entries by recency for eviction — not wall-clock time.
func (c *Cache) tick() int64 {
	return c.clock.Add(1)
}

// evictOldest releases the single oldest occupied entry across all
// buckets back to the OS, to make room under the byte ceiling.
func (c *Cache) evictOldest() {
	oldestBucket, oldestSlot, oldestAge := -1, -1, int64(1)<<62

	for b := range c.buckets {
		for i := range c.buckets[b] {
			e := &c.buckets[b][i]
			if e.state.Load() != slotOccupied {
				continue
			}
			if e.age < oldestAge {
				oldestAge = e.age
				oldestBucket, oldestSlot = b, i
			}
		}
	}
	if oldestBucket < 0 {
		return
	}
	e := &c.buckets[oldestBucket][oldestSlot]
	if !e.state.CompareAndSwap(slotOccupied, slotReserved) {
		return
	}
	ptr, size := e.ptr, e.size
	e.ptr, e.size = nil, 0
	c.totalBytes.Add(-size)
	e.state.Store(slotEmpty)
	osmem.UnmapPages(ptr, int(size))
}

// Clear unmaps every currently cached block and resets the cache.
func (c *Cache) Clear() {
	for b := range c.buckets {
		for i := range c.buckets[b] {
			e := &c.buckets[b][i]
			if !e.state.CompareAndSwap(slotOccupied, slotReserved) {
				continue
			}
			ptr, size := e.ptr, e.size
			e.ptr, e.size = nil, 0
			c.totalBytes.Add(-size)
			e.state.Store(slotEmpty)
			osmem.UnmapPages(ptr, int(size))
		}
	}
}

// TotalBytes reports the cache's current total retained size.
func (c *Cache) TotalBytes() int64 {
	return c.totalBytes.Load()
}
