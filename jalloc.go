package jalloc

import (
	"sync"
	"unsafe"

	"github.com/alpluspluss/jalloc/internal/osmem"
	"github.com/alpluspluss/jalloc/largecache"
	"github.com/alpluspluss/jalloc/poolmgr"
	"github.com/alpluspluss/jalloc/sizeclass"
	"github.com/alpluspluss/jalloc/threadcache"

	s "github.com/prataprc/gosettings"
)

var maxTinyPayload = sizeclass.Table[sizeclass.NumTinyClasses-1].Size
var maxPooledPayload = sizeclass.Table[sizeclass.NumClasses-1].Size

// Arena is a single allocating context: one goroutine's worth of
// ThreadCache, PoolManager, and LargeBlockCache. Each Arena builds its own
// LargeBlockCache; large blocks cached by one Arena are not reused by
// another. Go has no portable thread-local storage, so where
// spec.md's allocator keeps its thread-local state implicitly, jalloc
// makes it an explicit handle: callers obtain one Arena per
// long-lived allocating goroutine and reuse it, the same shape the
// teacher's callers already use with malloc.NewArena.
type Arena struct {
	setts s.Settings
	pools *poolmgr.Manager
	cache *threadcache.Cache
	large *largecache.Cache

	closeOnce sync.Once
}

// NewArena constructs an Arena. setts follows Defaultsettings' keys; a nil
// setts uses the defaults. The "threadcache.capacity", "largecache.ceiling",
// and "poolmgr.maxpools" entries are read out and threaded into the
// subsystems they tune, the way the teacher's llrb.init reads its own
// Settings into nodearena/valarena before construction.
func NewArena(setts s.Settings) *Arena {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	return &Arena{
		setts: setts,
		pools: poolmgr.NewWithMaxPools(int(setts.Int64("poolmgr.maxpools"))),
		cache: threadcache.NewWithCapacity(int(setts.Int64("threadcache.capacity"))),
		large: largecache.NewWithCeiling(setts.Int64("largecache.ceiling")),
	}
}

// Allocate returns a pointer to at least n usable bytes, per spec.md
// §4.5's allocate. Dispatches to the tiny tier, pooled tier, or the
// large-block path depending on n.
func (a *Arena) Allocate(n int64) (unsafe.Pointer, error) {
	if n <= 0 || n > sizeclass.MaxPayload {
		return nil, ErrInvalidSize
	}
	switch {
	case n <= maxTinyPayload:
		return a.allocateTiny(sizeclass.TinyClassForSize(n))
	case n <= maxPooledPayload:
		class := sizeclass.ClassForSize(n)
		if class < 0 {
			return a.allocateLarge(n)
		}
		return a.allocateClass(class)
	default:
		return a.allocateLarge(n)
	}
}

// allocateTiny serves the tiny tier (classes [0, NumTinyClasses)) straight
// from the PoolManager's TinyPool table, per spec.md §4.5's tiny path,
// which is kept distinct from the pooled tier's ThreadCache-first path.
func (a *Arena) allocateTiny(class int) (unsafe.Pointer, error) {
	ptr, err := a.pools.Allocate(class)
	if err != nil {
		log.Errorf("jalloc: tiny pool allocate failed for class %v: %v", class, err)
		return nil, ErrOutOfMemory
	}
	return ptr, nil
}

func (a *Arena) allocateClass(class int) (unsafe.Pointer, error) {
	if ptr, ok := a.cache.Get(class); ok {
		h := sizeclass.HeaderFor(ptr)
		h.SetFree(false)
		h.SetCoalesced(false)
		return ptr, nil
	}
	ptr, err := a.pools.Allocate(class)
	if err != nil {
		log.Errorf("jalloc: pool allocate failed for class %v: %v", class, err)
		return nil, ErrOutOfMemory
	}
	return ptr, nil
}

func (a *Arena) allocateLarge(n int64) (unsafe.Pointer, error) {
	total := osmem.AlignUp(int(n)+sizeclass.HeaderSize, osmem.PageSize)
	if base, _, ok := a.large.Get(int64(total)); ok {
		h := (*sizeclass.BlockHeader)(base)
		sizeclass.InitHeader(h, n, 0, true)
		h.SetMapped(true)
		return sizeclass.UserPointer(base), nil
	}
	base, err := osmem.MapPages(total)
	if err != nil {
		log.Errorf("jalloc: mmap failed for %v bytes: %v", total, err)
		return nil, ErrOutOfMemory
	}
	h := (*sizeclass.BlockHeader)(base)
	sizeclass.InitHeader(h, n, 0, true)
	h.SetMapped(true)
	return sizeclass.UserPointer(base), nil
}

// Deallocate releases a pointer previously returned by Allocate,
// Reallocate, or Callocate. A nil pointer is a no-op, and a pointer
// already marked free is a no-op too: per spec.md §4.5 ("if
// header.is_free(), no-op") and §8's double-free property,
// deallocate(p); deallocate(p) must be observably equivalent to a single
// deallocate(p). Pooled blocks try the thread cache first; tiny blocks go
// straight back to their TinyPool, per spec.md §4.5's distinct tiny path.
func (a *Arena) Deallocate(ptr unsafe.Pointer) error {
	if ptr == nil {
		return nil
	}
	h := sizeclass.HeaderFor(ptr)
	if !h.Valid() {
		return ErrCorruptHeader
	}
	if h.IsFree() {
		return nil
	}
	if h.IsMapped() {
		return a.deallocateLarge(h)
	}
	class := h.Class()
	h.SetFree(true)
	if sizeclass.IsTiny(class) {
		a.pools.Deallocate(class, ptr)
		return nil
	}
	if a.cache.Put(class, ptr) {
		return nil
	}
	a.pools.Deallocate(class, ptr)
	return nil
}

func (a *Arena) deallocateLarge(h *sizeclass.BlockHeader) error {
	base := unsafe.Pointer(h)
	total := int64(osmem.AlignUp(int(h.Size())+sizeclass.HeaderSize, osmem.PageSize))
	h.SetFree(true)
	if a.large.CacheBlock(base, total) {
		return nil
	}
	return osmem.UnmapPages(base, int(total))
}

// Reallocate resizes the block at ptr to newSize, per spec.md §4.5's
// reallocate: grows or shrinks in place when the existing block already
// has room, otherwise allocates fresh, copies, and frees the original. A
// nil ptr behaves as Allocate; a newSize of 0 behaves as Deallocate.
func (a *Arena) Reallocate(ptr unsafe.Pointer, newSize int64) (unsafe.Pointer, error) {
	if ptr == nil {
		return a.Allocate(newSize)
	}
	if newSize <= 0 {
		return nil, a.Deallocate(ptr)
	}
	h := sizeclass.HeaderFor(ptr)
	if !h.Valid() {
		return nil, ErrCorruptHeader
	}
	oldSize := h.Size()

	if h.IsMapped() {
		return a.reallocateLarge(ptr, h, newSize)
	}

	class := h.Class()
	if newSize <= sizeclass.Table[class].Size {
		h.SetSize(newSize)
		return ptr, nil
	}

	newPtr, err := a.Allocate(newSize)
	if err != nil {
		return nil, err
	}
	copyPayload(newPtr, ptr, oldSize)
	_ = a.Deallocate(ptr)
	return newPtr, nil
}

func (a *Arena) reallocateLarge(ptr unsafe.Pointer, h *sizeclass.BlockHeader, newSize int64) (unsafe.Pointer, error) {
	base := unsafe.Pointer(h)
	oldSize := h.Size()
	oldTotal := osmem.AlignUp(int(oldSize)+sizeclass.HeaderSize, osmem.PageSize)
	newTotal := osmem.AlignUp(int(newSize)+sizeclass.HeaderSize, osmem.PageSize)
	if newTotal == oldTotal {
		h.SetSize(newSize)
		return ptr, nil
	}
	if newBase, ok := osmem.Remap(base, oldTotal, newTotal); ok {
		nh := (*sizeclass.BlockHeader)(newBase)
		nh.SetSize(newSize)
		return sizeclass.UserPointer(newBase), nil
	}

	newPtr, err := a.Allocate(newSize)
	if err != nil {
		return nil, err
	}
	copySize := oldSize
	if newSize < copySize {
		copySize = newSize
	}
	copyPayload(newPtr, ptr, copySize)
	_ = a.Deallocate(ptr)
	return newPtr, nil
}

// Callocate allocates num*size bytes zeroed, per spec.md §4.5's
// callocate.
func (a *Arena) Callocate(num, size int64) (unsafe.Pointer, error) {
	if num <= 0 || size <= 0 {
		return nil, ErrInvalidSize
	}
	total := num * size
	if total/num != size {
		return nil, ErrInvalidSize
	}
	ptr, err := a.Allocate(total)
	if err != nil {
		return nil, err
	}
	zeroPayload(ptr, total)
	return ptr, nil
}

// Cleanup releases every resource this Arena owns: it drains the thread
// cache back into the pool manager, then releases every pool and clears
// the large-block cache. Idempotent: repeated calls after the first are
// no-ops, matching spec.md §9's thread-teardown semantics for an Arena
// that outlives a single use.
func (a *Arena) Cleanup() {
	a.closeOnce.Do(func() {
		for class := 0; class < sizeclass.NumClasses; class++ {
			for _, ptr := range a.cache.Drain(class) {
				a.pools.Deallocate(class, ptr)
			}
		}
		a.pools.Cleanup()
		a.large.Clear()
	})
}

// Stats reports a snapshot of the Arena's internal occupancy, a
// supplement beyond spec.md's core operations for observability.
type Stats struct {
	Classes         [sizeclass.NumClasses]poolmgr.ClassStats
	ThreadCacheLen  [sizeclass.NumClasses]int
	LargeCacheBytes int64
}

func (a *Arena) Stats() Stats {
	var st Stats
	st.Classes = a.pools.Stats()
	for c := 0; c < sizeclass.NumClasses; c++ {
		st.ThreadCacheLen[c] = a.cache.Len(c)
	}
	st.LargeCacheBytes = a.large.TotalBytes()
	return st
}

func copyPayload(dst, src unsafe.Pointer, n int64) {
	if n <= 0 {
		return
	}
	dstSlice := unsafe.Slice((*byte)(dst), n)
	srcSlice := unsafe.Slice((*byte)(src), n)
	copy(dstSlice, srcSlice)
}

func zeroPayload(p unsafe.Pointer, n int64) {
	if n <= 0 {
		return
	}
	slice := unsafe.Slice((*byte)(p), n)
	for i := range slice {
		slice[i] = 0
	}
}
