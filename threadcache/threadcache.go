// Package threadcache implements ThreadCache (spec.md §4.4): a per-thread
// LIFO stack of recently freed blocks per size class, queried before a
// deallocation is handed back to the owning pool and before an allocation
// reaches the pool manager. Grounded on the teacher's poolflist freelist
// (malloc/pool_flist.go), which is itself a LIFO slice of free offsets;
// this generalizes that idea from "offsets within one pool" to "pointers
// across any pool of a given class," since a thread cache is meant to
// skip the pool lookup entirely on the hot path.
package threadcache

import (
	"unsafe"

	"github.com/alpluspluss/jalloc/sizeclass"
)

// Capacity is the default depth of each class's reuse stack, used when a
// Cache is built with New rather than NewWithCapacity.
const Capacity = 32

// Cache is a per-thread table of bounded LIFO stacks, one per size class.
// Like poolmgr.Manager, a Cache is meant for single-owner use and performs
// no internal locking.
type Cache struct {
	capacity int
	slots    [sizeclass.NumClasses][]unsafe.Pointer
}

// New returns an empty thread cache with the default capacity.
func New() *Cache {
	return NewWithCapacity(Capacity)
}

// NewWithCapacity returns an empty thread cache whose per-class stacks hold
// up to capacity pointers, as configured by "threadcache.capacity" in
// Defaultsettings. A capacity <= 0 falls back to Capacity.
func NewWithCapacity(capacity int) *Cache {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Cache{capacity: capacity}
}

// Get pops a cached pointer for class, if one is available.
func (c *Cache) Get(class int) (unsafe.Pointer, bool) {
	stack := c.slots[class]
	if len(stack) == 0 {
		return nil, false
	}
	n := len(stack) - 1
	ptr := stack[n]
	c.slots[class] = stack[:n]
	return ptr, true
}

// Put pushes ptr onto class's stack. Reports false if the stack is
// already at capacity, in which case the caller must return ptr to its
// owning pool instead.
func (c *Cache) Put(class int, ptr unsafe.Pointer) bool {
	stack := c.slots[class]
	if len(stack) >= c.capacity {
		return false
	}
	c.slots[class] = append(stack, ptr)
	return true
}

// Len reports how many pointers are currently cached for class.
func (c *Cache) Len(class int) int {
	return len(c.slots[class])
}

// Drain removes and returns every cached pointer for class, for callers
// that need to flush the cache back to their pool manager (e.g. on
// thread teardown or an explicit Cleanup).
func (c *Cache) Drain(class int) []unsafe.Pointer {
	stack := c.slots[class]
	c.slots[class] = nil
	return stack
}

// DrainAll removes and returns every cached pointer across all classes,
// keyed by class index.
func (c *Cache) DrainAll() [sizeclass.NumClasses][]unsafe.Pointer {
	var out [sizeclass.NumClasses][]unsafe.Pointer
	for class := range c.slots {
		out[class] = c.Drain(class)
	}
	return out
}
