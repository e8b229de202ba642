//go:build windows

package osmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// MapPages requests a page-aligned, zero-filled anonymous region of size
// bytes from the OS.
func MapPages(size int) (unsafe.Pointer, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("osmem: VirtualAlloc %d bytes: %w", size, err)
	}
	return unsafe.Pointer(addr), nil
}

// UnmapPages releases a region previously returned by MapPages.
func UnmapPages(base unsafe.Pointer, size int) error {
	return windows.VirtualFree(uintptr(base), 0, windows.MEM_RELEASE)
}

// AdviseAway uses MEM_RESET, which tells the OS the pages' contents are no
// longer of interest; the next touch sees zeros once physical pages are
// actually reclaimed.
func AdviseAway(base unsafe.Pointer, size int) error {
	_, err := windows.VirtualAlloc(uintptr(base), uintptr(size), windows.MEM_RESET, windows.PAGE_READWRITE)
	return err
}

// Remap: Windows has no may-move in-place VirtualAlloc resize; callers
// always fall back to allocate-copy-free.
func Remap(base unsafe.Pointer, oldSize, newSize int) (unsafe.Pointer, bool) {
	return nil, false
}
