// Package poolmgr implements PoolManager (spec.md §4.3): the per-thread
// table of active pools, one slot per size class, capped at a small
// number of simultaneously active pools per class. Grounded on the
// teacher's flistPools (malloc/pool_flist.go): a free/full split that
// picks the head-of-free pool for new allocations and only mints a new
// pool when every existing one is full. This package replaces flistPools'
// intrusive doubly-linked list with a flat slice, since the 8-pool cap
// spec.md sets makes list surgery unnecessary overhead.
package poolmgr

import (
	"errors"
	"unsafe"

	"github.com/alpluspluss/jalloc/pool"
	"github.com/alpluspluss/jalloc/sizeclass"
)

// MaxPoolsPerClass is the default cap on simultaneously active pools per
// size class, used when a Manager is built with New rather than
// NewWithMaxPools.
const MaxPoolsPerClass = 8

// Manager owns one PoolManager's worth of pools: sizeclass.NumClasses
// slots, each holding up to maxPools pools. A Manager is meant to be used
// by a single owner (goroutine, worker) at a time — it performs no
// internal locking, matching spec.md's per-thread ownership model.
type Manager struct {
	maxPools int
	classes  [sizeclass.NumClasses][]pool.SlotPool
}

// New returns an empty pool manager with the default per-class pool cap.
func New() *Manager {
	return NewWithMaxPools(MaxPoolsPerClass)
}

// NewWithMaxPools returns an empty pool manager that keeps at most
// maxPools simultaneously active pools per size class, as configured by
// "poolmgr.maxpools" in Defaultsettings. A maxPools <= 0 falls back to
// MaxPoolsPerClass.
func NewWithMaxPools(maxPools int) *Manager {
	if maxPools <= 0 {
		maxPools = MaxPoolsPerClass
	}
	return &Manager{maxPools: maxPools}
}

// newPoolForClass mints a fresh Pool or TinyPool depending on tier.
func newPoolForClass(class int) (pool.SlotPool, error) {
	if sizeclass.IsTiny(class) {
		return pool.NewTiny(class)
	}
	return pool.New(class)
}

// Allocate returns a pointer to a fresh block of the given class, minting
// or retiring pools as needed. It returns an error when every pool of the
// class is full and the class already holds maxPools pools.
func (m *Manager) Allocate(class int) (unsafe.Pointer, error) {
	pools := m.classes[class]

	for _, p := range pools {
		if ptr, _, ok := p.Allocate(); ok {
			return ptr, nil
		}
	}

	// every existing pool is full: first see if an empty one can be
	// dropped to keep the slice at its cap before growing it; with no
	// room under the cap, the allocation fails.
	if len(pools) >= m.maxPools {
		if idx := m.findEmpty(class); idx >= 0 {
			m.retire(class, idx)
			pools = m.classes[class]
		}
		if len(pools) >= m.maxPools {
			return nil, errors.New("poolmgr: per-class pool cap reached")
		}
	}

	np, err := newPoolForClass(class)
	if err != nil {
		return nil, err
	}
	m.classes[class] = append(pools, np)

	ptr, _, ok := np.Allocate()
	if !ok {
		// a brand new pool failing its first allocation means the class
		// table produced a zero-slot pool, which is a configuration bug
		// rather than a runtime condition callers can recover from.
		panic("poolmgr: freshly minted pool rejected its first allocation")
	}
	return ptr, nil
}

// Deallocate returns ptr to whichever pool in class owns it. Reports
// whether a pool claimed ownership.
func (m *Manager) Deallocate(class int, ptr unsafe.Pointer) bool {
	pools := m.classes[class]
	for _, p := range pools {
		if !p.Owns(ptr) {
			continue
		}
		h := sizeclass.HeaderFor(ptr)
		slot := slotIndex(p, ptr)
		h.SetFree(true)
		p.Deallocate(slot)
		if !sizeclass.IsTiny(class) {
			if pp, ok := p.(*pool.Pool); ok && pp.TryCoalesce(slot) {
				pp.ReturnMemory()
			}
		}
		return true
	}
	return false
}

// slotIndex recovers a pool-relative slot index from a user pointer.
func slotIndex(p pool.SlotPool, ptr unsafe.Pointer) int64 {
	headerBase := unsafe.Pointer(uintptr(ptr) - uintptr(sizeclass.HeaderSize))
	switch v := p.(type) {
	case *pool.Pool:
		return v.SlotIndex(headerBase)
	case *pool.TinyPool:
		return v.SlotIndex(headerBase)
	default:
		panic("poolmgr: unknown SlotPool implementation")
	}
}

// findEmpty returns the index of a fully-free pool in class, or -1.
func (m *Manager) findEmpty(class int) int {
	for i, p := range m.classes[class] {
		if p.IsEmpty() {
			return i
		}
	}
	return -1
}

// retire releases and drops the pool at idx within class.
func (m *Manager) retire(class, idx int) {
	pools := m.classes[class]
	pools[idx].Release()
	m.classes[class] = append(pools[:idx], pools[idx+1:]...)
}

// Owns reports whether any pool under management contains ptr.
func (m *Manager) Owns(ptr unsafe.Pointer) (class int, ok bool) {
	for c := 0; c < sizeclass.NumClasses; c++ {
		for _, p := range m.classes[c] {
			if p.Owns(ptr) {
				return c, true
			}
		}
	}
	return 0, false
}

// Cleanup releases every pool this manager owns, across every class.
func (m *Manager) Cleanup() {
	for c := range m.classes {
		for _, p := range m.classes[c] {
			p.Release()
		}
		m.classes[c] = nil
	}
}

// Stats reports the number of active pools and claimed slots per class,
// supplementing spec.md with the introspection SPEC_FULL.md adds.
type ClassStats struct {
	Class      int
	PoolCount  int
	SlotsUsed  int64
	SlotsTotal int64
}

func (m *Manager) Stats() [sizeclass.NumClasses]ClassStats {
	var out [sizeclass.NumClasses]ClassStats
	for c := 0; c < sizeclass.NumClasses; c++ {
		st := ClassStats{Class: c, PoolCount: len(m.classes[c])}
		for _, p := range m.classes[c] {
			st.SlotsUsed += p.Used()
			st.SlotsTotal += p.Slots()
		}
		out[c] = st
	}
	return out
}
