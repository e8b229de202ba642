//go:build darwin || freebsd

package osmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const adviseFlag = unix.MADV_FREE

func remapImpl(base unsafe.Pointer, oldSize, newSize int) (unsafe.Pointer, bool) {
	// No in-place may-move remap primitive on Darwin/FreeBSD; caller falls
	// back to allocate-copy-free per spec.md §9(3).
	return nil, false
}
