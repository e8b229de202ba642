// Package jalloc implements a tiered, thread-caching memory allocator.
//
// sizeclass:
//
// The compile-time size-class table and the 32-byte BlockHeader format
// stamped at the front of every live allocation.
//
// bitmap:
//
// Atomic, lock-free free-slot tracking for a single pool's worth of bits.
//
// pool:
//
// Page-aligned, homogeneous-size-class backing regions: Pool for the
// pooled tier with physical-neighbor coalescing, TinyPool for the tiny
// tier without it.
//
// poolmgr:
//
// The per-thread table of active pools, one slot per size class.
//
// threadcache:
//
// A per-thread, fixed-depth LIFO reuse stack per size class, checked
// before a pool lookup on both allocation and deallocation.
//
// largecache:
//
// A bucketed cache of recently freed large blocks, kept mapped for reuse;
// each Arena has its own.
//
// internal/osmem:
//
// The operating-system virtual-memory primitives (map, unmap, advise
// away, remap) every tier above is built on.
package jalloc
