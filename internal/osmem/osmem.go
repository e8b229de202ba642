// Package osmem wraps the operating-system virtual-memory primitives that
// the allocator treats as an external collaborator: anonymous page mapping,
// unmapping, advise-away, and (where available) in-place remap.
package osmem

import "os"

// PageSize is the OS page size, queried once at process start.
var PageSize = os.Getpagesize()

// CacheLineSize is assumed uniform across the supported target platforms.
// There is no portable syscall to query it; 64 bytes covers every
// mainstream x86_64 and arm64 part this allocator targets.
const CacheLineSize = 64

// AlignUp rounds n up to the next multiple of align, align must be a power of two.
func AlignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
