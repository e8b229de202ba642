// Package pool implements the page-aligned, homogeneous-size-class
// backing store spec.md calls Pool and TinyPool. Grounded on the teacher's
// poolfbit/poolflist (malloc/pool_fbit.go, malloc/pool_flist.go): a base
// pointer carved into fixed-size chunks with O(1) claim/release. The
// teacher backs its pools with cgo C.malloc; this package backs them with
// the process's own page-aligned OS mapping (internal/osmem) instead,
// since spec.md requires pools be released to the OS individually via
// advise-away and eventually unmapped, which a single cgo heap can't do
// per-pool.
package pool

import (
	"unsafe"

	"github.com/alpluspluss/jalloc/bitmap"
	"github.com/alpluspluss/jalloc/internal/osmem"
	"github.com/alpluspluss/jalloc/sizeclass"
)

// SlotPool is the common shape PoolManager drives: Pool and TinyPool both
// satisfy it, letting the manager treat tiny and pooled classes uniformly
// everywhere except coalescing.
type SlotPool interface {
	Class() int
	Base() unsafe.Pointer
	Slots() int64
	Used() int64
	Owns(ptr unsafe.Pointer) bool
	Allocate() (unsafe.Pointer, int64, bool)
	Deallocate(slot int64)
	IsEmpty() bool
	Release() error
}

// Pool is a page-aligned, page-sized region homogeneous in one size class.
type Pool struct {
	class  int
	base   unsafe.Pointer
	stride int64
	slots  int64
	bmap   *bitmap.Bitmap
	used   int64
}

// New maps a fresh page and prepares it as a pool for class.
func New(class int) (*Pool, error) {
	c := sizeclass.Table[class]
	base, err := osmem.MapPages(osmem.PageSize)
	if err != nil {
		return nil, err
	}
	return &Pool{
		class:  class,
		base:   base,
		stride: c.Stride,
		slots:  c.BlockCount,
		bmap:   bitmap.New(int(c.BlockCount)),
	}, nil
}

// Class, Base, Stride, Slots, Used are read-only introspection accessors.
func (p *Pool) Class() int        { return p.class }
func (p *Pool) Base() unsafe.Pointer { return p.base }
func (p *Pool) Stride() int64     { return p.stride }
func (p *Pool) Slots() int64      { return p.slots }
func (p *Pool) Used() int64       { return p.used }

// Owns reports whether ptr's containing page matches this pool's base,
// per spec.md §4.3's "p & ~(page-1) identifies its base" address routing.
func (p *Pool) Owns(ptr unsafe.Pointer) bool {
	pageMask := ^uintptr(osmem.PageSize - 1)
	return uintptr(ptr)&pageMask == uintptr(p.base)&pageMask
}

// slotHeader returns the header for slot idx.
func (p *Pool) slotHeader(idx int64) *sizeclass.BlockHeader {
	addr := uintptr(p.base) + uintptr(idx)*uintptr(p.stride)
	return (*sizeclass.BlockHeader)(unsafe.Pointer(addr))
}

// SlotIndex converts a slot-header base pointer back to its index.
func (p *Pool) SlotIndex(headerBase unsafe.Pointer) int64 {
	return int64((uintptr(headerBase) - uintptr(p.base)) / uintptr(p.stride))
}

// Allocate claims a free slot, constructs its header in place, and returns
// the user-visible pointer plus the claimed slot index.
func (p *Pool) Allocate() (ptr unsafe.Pointer, slot int64, ok bool) {
	align := sizeclass.Table[p.class].Alignment
	idx := p.bmap.FindAndClaim(align)
	if idx == bitmap.NoIndex {
		return nil, 0, false
	}
	h := p.slotHeader(int64(idx))
	sizeclass.InitHeader(h, sizeclass.Table[p.class].Size, p.class, false)
	if idx > 0 {
		h.SetPrevPhysical(int64(idx - 1))
	}
	if int64(idx) < p.slots-1 {
		h.SetNextPhysical(int64(idx + 1))
	}
	p.used++
	return sizeclass.UserPointer(unsafe.Pointer(h)), int64(idx), true
}

// Deallocate releases the slot at the given index back to the bitmap.
func (p *Pool) Deallocate(slot int64) {
	p.bmap.Release(int(slot))
	p.used--
}

// IsEmpty reports whether every slot in the pool is free.
func (p *Pool) IsEmpty() bool {
	return p.bmap.IsCompletelyFree()
}

// Release unmaps the pool's backing page. Callers must ensure no live
// allocations remain.
func (p *Pool) Release() error {
	return osmem.UnmapPages(p.base, osmem.PageSize)
}

// TryCoalesce attempts to merge the free block at slot with its free
// physical neighbors, per spec.md §4.5's try_coalesce: merge forward then
// backward, set the coalesced flag on the surviving header. Tiny classes
// never coalesce.
func (p *Pool) TryCoalesce(slot int64) bool {
	if sizeclass.IsTiny(p.class) {
		return false
	}
	h := p.slotHeader(slot)
	if h.IsMapped() {
		return false
	}
	merged := false
	survivor := h

	if h.HasNextPhysical() {
		nh := p.slotHeader(h.NextPhysical())
		if nh.Valid() && nh.IsFree() {
			h.SetSize(h.Size() + nh.Size() + sizeclass.HeaderSize)
			if nh.HasNextPhysical() {
				h.SetNextPhysical(nh.NextPhysical())
			} else {
				h.SetNextPhysical(-1)
			}
			merged = true
		}
	}
	if h.HasPrevPhysical() {
		ph := p.slotHeader(h.PrevPhysical())
		if ph.Valid() && ph.IsFree() {
			ph.SetSize(ph.Size() + survivor.Size() + sizeclass.HeaderSize)
			if survivor.HasNextPhysical() {
				ph.SetNextPhysical(survivor.NextPhysical())
			} else {
				ph.SetNextPhysical(-1)
			}
			merged = true
			survivor = ph
		}
	}
	if merged {
		survivor.SetCoalesced(true)
	}
	return merged
}

// ReturnMemory implements spec.md §4.2's return_memory: it walks the
// physical-neighbor chain, sums bytes owned by free-and-coalesced runs,
// and, if that sum is at least 64 KiB and at least 80% of the pool,
// advises the OS away from the page-aligned interior of each run. Returns the
// number of advise-away calls issued, for tests/stats.
func (p *Pool) ReturnMemory() int {
	const minReturnBytes = 64 * 1024
	const minReturnRatio = 0.8

	total := p.slots * p.stride
	type run struct {
		idx   int64
		bytes int64
	}
	var runs []run
	var sum int64

	for i := int64(0); i < p.slots; {
		h := p.slotHeader(i)
		if h.Valid() && h.IsFree() && h.IsCoalesced() {
			span := h.Size() + sizeclass.HeaderSize
			runs = append(runs, run{idx: i, bytes: span})
			sum += span
			strides := (span + p.stride - 1) / p.stride
			if strides < 1 {
				strides = 1
			}
			i += strides
			continue
		}
		i++
	}

	if sum < minReturnBytes || float64(sum) < minReturnRatio*float64(total) {
		return 0
	}

	advised := 0
	page := osmem.PageSize
	for _, r := range runs {
		start := uintptr(p.base) + uintptr(r.idx)*uintptr(p.stride)
		end := start + uintptr(r.bytes)
		alignedStart := (uintptr(start) + uintptr(page-1)) &^ uintptr(page-1)
		alignedEnd := uintptr(end) &^ uintptr(page-1)
		if alignedEnd <= alignedStart {
			continue
		}
		if err := osmem.AdviseAway(unsafe.Pointer(alignedStart), int(alignedEnd-alignedStart)); err == nil {
			advised++
		}
	}
	return advised
}
