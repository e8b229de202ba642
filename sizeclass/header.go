package sizeclass

import "unsafe"

// HeaderMagic is the full 64-bit sentinel stamped into every header.
const HeaderMagic uint64 = 0xDEADBEEF12345678

// magicNibble is a partial check embedded in the data word alongside the
// flags; Valid requires both it and the full Magic field to match.
const magicNibble uint64 = 0xA

const (
	bitFree      = 63
	bitMapped    = 62
	bitCoalesced = 61
	// bits 60..57: magic nibble
	magicShift = 57
	magicMask  = uint64(0xF) << magicShift
	// bits 55..48: size class
	classShift = 48
	classMask  = uint64(0xFF) << classShift
	// bits 47..0: payload size
	sizeMask = uint64(1)<<48 - 1
)

// MaxPayload (2^47) is the largest payload size allocate(n) accepts; it
// fits within the header's 48-bit size field.
const MaxPayload = int64(1) << 47

// HeaderSize is the fixed in-memory size of BlockHeader: an 8-byte flags/size
// word, an 8-byte magic sentinel, and two 8-byte physical-neighbor slot
// indices.
const HeaderSize = 32

// BlockHeader is the 32-byte record immediately preceding every user
// pointer. prevPhysical/nextPhysical are slot indices into the owning
// pool's slot array, never owning pointers — pools walk their own
// physical-neighbor chain by index, per spec.md §9.
type BlockHeader struct {
	data         uint64
	magic        uint64
	prevPhysical int64
	nextPhysical int64
}

const noNeighbor = int64(-1)

// InitHeader stamps h for a freshly allocated block of the given payload
// size and class. mapped selects the size_class=255 sentinel meaning.
func InitHeader(h *BlockHeader, size int64, class int, mapped bool) {
	h.magic = HeaderMagic
	h.prevPhysical, h.nextPhysical = noNeighbor, noNeighbor
	c := uint64(class)
	if mapped {
		c = MappedClass
	}
	data := (magicNibble << magicShift) | (c << classShift) | (uint64(size) & sizeMask)
	h.data = data
}

// Valid reports whether h carries an intact magic sentinel.
func (h *BlockHeader) Valid() bool {
	if h.magic != HeaderMagic {
		return false
	}
	return (h.data & magicMask) == (magicNibble << magicShift)
}

// IsFree reports the header's free flag.
func (h *BlockHeader) IsFree() bool { return h.data&(1<<bitFree) != 0 }

// SetFree sets or clears the free flag.
func (h *BlockHeader) SetFree(free bool) {
	if free {
		h.data |= 1 << bitFree
	} else {
		h.data &^= 1 << bitFree
	}
}

// IsMapped reports whether the block came straight from the OS mapping primitive.
func (h *BlockHeader) IsMapped() bool { return h.data&(1<<bitMapped) != 0 }

// SetMapped sets or clears the memory-mapped flag.
func (h *BlockHeader) SetMapped(mapped bool) {
	if mapped {
		h.data |= 1 << bitMapped
	} else {
		h.data &^= 1 << bitMapped
	}
}

// IsCoalesced reports whether this header is the survivor of a merge.
func (h *BlockHeader) IsCoalesced() bool { return h.data&(1<<bitCoalesced) != 0 }

// SetCoalesced sets the coalesced flag.
func (h *BlockHeader) SetCoalesced(v bool) {
	if v {
		h.data |= 1 << bitCoalesced
	} else {
		h.data &^= 1 << bitCoalesced
	}
}

// Class returns the encoded size class, or MappedClass for mapped blocks.
func (h *BlockHeader) Class() int {
	return int((h.data & classMask) >> classShift)
}

// Size returns the payload size in bytes.
func (h *BlockHeader) Size() int64 {
	return int64(h.data & sizeMask)
}

// SetSize updates the payload size field in place, used by reallocate's
// in-place-remap path where the class/flags are unchanged but the
// recorded payload size grows or shrinks.
func (h *BlockHeader) SetSize(size int64) {
	h.data = (h.data &^ sizeMask) | (uint64(size) & sizeMask)
}

// PrevPhysical/NextPhysical are slot indices (noNeighbor if absent).
func (h *BlockHeader) PrevPhysical() int64 { return h.prevPhysical }
func (h *BlockHeader) NextPhysical() int64 { return h.nextPhysical }

// SetPrevPhysical/SetNextPhysical update the neighbor links.
func (h *BlockHeader) SetPrevPhysical(idx int64) { h.prevPhysical = idx }
func (h *BlockHeader) SetNextPhysical(idx int64) { h.nextPhysical = idx }

// HasPrevPhysical/HasNextPhysical report whether a neighbor link is set.
func (h *BlockHeader) HasPrevPhysical() bool { return h.prevPhysical != noNeighbor }
func (h *BlockHeader) HasNextPhysical() bool { return h.nextPhysical != noNeighbor }

// ClearNeighbors resets both physical links to "none".
func (h *BlockHeader) ClearNeighbors() {
	h.prevPhysical, h.nextPhysical = noNeighbor, noNeighbor
}

// HeaderFor returns the BlockHeader immediately preceding user pointer p.
func HeaderFor(p unsafe.Pointer) *BlockHeader {
	return (*BlockHeader)(unsafe.Pointer(uintptr(p) - uintptr(HeaderSize)))
}

// UserPointer returns the user-visible pointer for a header at base.
func UserPointer(base unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(uintptr(base) + uintptr(HeaderSize))
}
