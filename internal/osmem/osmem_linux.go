//go:build linux

package osmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const adviseFlag = unix.MADV_DONTNEED

func remapImpl(base unsafe.Pointer, oldSize, newSize int) (unsafe.Pointer, bool) {
	b := unsafe.Slice((*byte)(base), oldSize)
	nb, err := unix.Mremap(b, newSize, unix.MREMAP_MAYMOVE)
	if err != nil {
		return nil, false
	}
	return unsafe.Pointer(&nb[0]), true
}
