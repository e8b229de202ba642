package pool

import (
	"unsafe"

	"github.com/alpluspluss/jalloc/bitmap"
	"github.com/alpluspluss/jalloc/internal/osmem"
	"github.com/alpluspluss/jalloc/sizeclass"
)

// TinyPool backs the tiny tier (classes 0..7, <=64 bytes). It is a Pool
// with no coalescing and no physical-neighbor bookkeeping: spec.md's tiny
// tier trades that overhead away deliberately, since a tiny pool's slots
// are cheap enough to retire wholesale rather than merge individually.
type TinyPool struct {
	class  int
	base   unsafe.Pointer
	stride int64
	slots  int64
	bmap   *bitmap.Bitmap
	used   int64
}

// NewTiny maps a fresh page and prepares it as a tiny pool for class.
func NewTiny(class int) (*TinyPool, error) {
	if !sizeclass.IsTiny(class) {
		panic("pool: NewTiny called with a non-tiny class")
	}
	c := sizeclass.Table[class]
	base, err := osmem.MapPages(osmem.PageSize)
	if err != nil {
		return nil, err
	}
	return &TinyPool{
		class:  class,
		base:   base,
		stride: c.Stride,
		slots:  c.BlockCount,
		bmap:   bitmap.New(int(c.BlockCount)),
	}, nil
}

func (tp *TinyPool) Class() int           { return tp.class }
func (tp *TinyPool) Base() unsafe.Pointer { return tp.base }
func (tp *TinyPool) Slots() int64         { return tp.slots }
func (tp *TinyPool) Used() int64          { return tp.used }

// Owns reports whether ptr's containing page matches this pool's base.
func (tp *TinyPool) Owns(ptr unsafe.Pointer) bool {
	pageMask := ^uintptr(osmem.PageSize - 1)
	return uintptr(ptr)&pageMask == uintptr(tp.base)&pageMask
}

func (tp *TinyPool) slotHeader(idx int64) *sizeclass.BlockHeader {
	addr := uintptr(tp.base) + uintptr(idx)*uintptr(tp.stride)
	return (*sizeclass.BlockHeader)(unsafe.Pointer(addr))
}

// SlotIndex converts a slot-header base pointer back to its index.
func (tp *TinyPool) SlotIndex(headerBase unsafe.Pointer) int64 {
	return int64((uintptr(headerBase) - uintptr(tp.base)) / uintptr(tp.stride))
}

// Allocate claims a free slot and stamps its header. Tiny headers never
// carry physical-neighbor links.
func (tp *TinyPool) Allocate() (ptr unsafe.Pointer, slot int64, ok bool) {
	idx := tp.bmap.FindAndClaim(sizeclass.CacheLineSize)
	if idx == bitmap.NoIndex {
		return nil, 0, false
	}
	h := tp.slotHeader(int64(idx))
	sizeclass.InitHeader(h, sizeclass.Table[tp.class].Size, tp.class, false)
	tp.used++
	return sizeclass.UserPointer(unsafe.Pointer(h)), int64(idx), true
}

// Deallocate releases the slot at idx. No coalescing is attempted.
func (tp *TinyPool) Deallocate(slot int64) {
	tp.bmap.Release(int(slot))
	tp.used--
}

// IsEmpty reports whether every slot in the pool is free.
func (tp *TinyPool) IsEmpty() bool {
	return tp.bmap.IsCompletelyFree()
}

// Release unmaps the pool's backing page wholesale, the tiny tier's
// substitute for return_memory's partial advise-away: tiny pools are
// either fully retired or kept, never partially released.
func (tp *TinyPool) Release() error {
	return osmem.UnmapPages(tp.base, osmem.PageSize)
}
