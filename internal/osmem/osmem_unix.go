//go:build linux || darwin || freebsd

package osmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MapPages requests a page-aligned, zero-filled anonymous region of size
// bytes from the OS. size must already be page-size rounded.
func MapPages(size int) (unsafe.Pointer, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("osmem: mmap %d bytes: %w", size, err)
	}
	return unsafe.Pointer(&b[0]), nil
}

// UnmapPages releases a region previously returned by MapPages.
func UnmapPages(base unsafe.Pointer, size int) error {
	b := unsafe.Slice((*byte)(base), size)
	return unix.Munmap(b)
}

// AdviseAway tells the OS it may reclaim the backing pages of [base, base+size);
// future reads must still observe zeros. Interior callers are responsible for
// page-aligning base and size.
func AdviseAway(base unsafe.Pointer, size int) error {
	b := unsafe.Slice((*byte)(base), size)
	return unix.Madvise(b, adviseFlag)
}

// Remap attempts an in-place (may-move) resize of a mapping. Only
// meaningful on Linux; other unix targets always report !ok so callers
// fall back to allocate-copy-free per spec.
func Remap(base unsafe.Pointer, oldSize, newSize int) (newBase unsafe.Pointer, ok bool) {
	return remapImpl(base, oldSize, newSize)
}
