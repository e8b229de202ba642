// Package sizeclass defines the compile-time size-class table and the
// 32-byte BlockHeader format that every live allocation is prefixed with.
// Grounded on the teacher's malloc.Blocksizes/SuitableSize growth-table
// algorithm (mem_arena.go / malloc/util.go), adapted from a dynamic
// minblock/maxblock arena table to the spec's fixed 32-class table with a
// hard tiny/pooled split at 64 bytes.
package sizeclass

import (
	"math"
	"sort"

	"github.com/alpluspluss/jalloc/internal/osmem"
)

// NumClasses is the number of compile-time size classes.
const NumClasses = 32

// NumTinyClasses is the number of classes reserved for the tiny tier.
// Classes [0, NumTinyClasses) never participate in coalescing.
const NumTinyClasses = 8

// MappedClass is the sentinel size_class value for memory-mapped large blocks.
const MappedClass = 255

// CacheLineSize mirrors the header format's alignment granularity.
const CacheLineSize = osmem.CacheLineSize

// Class describes one size class's geometry within a Pool.
type Class struct {
	Size       int64 // nominal payload capacity in bytes
	Alignment  int64 // alignment required for user pointers of this class
	Stride     int64 // header+payload stride between slots, alignment-rounded
	BlockCount int64 // number of slots a page-sized pool of this class holds
}

// Table is the fixed, process-wide size-class table. Classes 0..7 are the
// tiny tier with exact 8-byte steps up to 64 bytes (mandated by spec
// dispatch formula class=(n-1)/8); classes 8..31 cover 65 bytes up to just
// under one page, generated by the teacher's utilization-targeted growth
// algorithm so the table stays monotonic and collision-free across the
// small/medium boundary instead of the two disjoint bit-arithmetic
// formulas the reference implementation used (see DESIGN.md).
var Table [NumClasses]Class

// boundaries holds the nominal size of each class, used by
// ClassForSize's binary search (teacher's SuitableSize, generalized from a
// dynamic arena table to this fixed one).
var boundaries [NumClasses]int64

func init() {
	page := int64(osmem.PageSize)
	headerSize := int64(HeaderSize)

	for i := 0; i < NumTinyClasses; i++ {
		size := int64(i+1) * 8
		align := alignFor(size)
		stride := alignUp(size+headerSize, align)
		Table[i] = Class{Size: size, Alignment: align, Stride: stride, BlockCount: page / stride}
	}

	pooledMax := page - headerSize
	pooled := growthTable(65, pooledMax, NumClasses-NumTinyClasses)
	for i, size := range pooled {
		idx := NumTinyClasses + i
		align := alignFor(size)
		stride := alignUp(size+headerSize, align)
		Table[idx] = Class{Size: size, Alignment: align, Stride: stride, BlockCount: page / stride}
	}

	for i, c := range Table {
		boundaries[i] = c.Size
	}
}

// growthTable builds n monotonically increasing, cache-line-rounded sizes
// spanning [min, max], interpolated geometrically in log-space. This
// generalizes the teacher's MEMUtilization-driven nextsize() stepping
// (mem_arena.go/malloc/util.go Blocksizes) to a fixed class count instead
// of an open-ended one.
func growthTable(min, max int64, n int) []int64 {
	sizes := make([]int64, n)
	logMin, logMax := math.Log(float64(min)), math.Log(float64(max))
	step := (logMax - logMin) / float64(n-1)
	prev := int64(0)
	for i := 0; i < n; i++ {
		raw := math.Exp(logMin + step*float64(i))
		size := alignUp(int64(math.Ceil(raw)), CacheLineSize)
		if size <= prev {
			size = prev + CacheLineSize
		}
		sizes[i] = size
		prev = size
	}
	sizes[n-1] = max
	if sizes[n-1] <= sizes[n-2] {
		sizes[n-1] = sizes[n-2] + CacheLineSize
	}
	return sizes
}

// alignFor implements spec.md's align_for policy: sizes at or below the
// cache-line size align to the cache line; sizes at or above a page align
// to the page; everything between aligns to the next power of two.
func alignFor(size int64) int64 {
	switch {
	case size <= CacheLineSize:
		return CacheLineSize
	case size >= int64(osmem.PageSize):
		return int64(osmem.PageSize)
	default:
		return nextPow2(size)
	}
}

func alignUp(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}

func nextPow2(n int64) int64 {
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// ClassForSize returns the smallest class index whose nominal size covers
// n, or -1 if n exceeds the largest pooled class. Grounded on the
// teacher's SuitableSize binary search (malloc/util.go).
func ClassForSize(n int64) int {
	idx := sort.Search(NumClasses, func(i int) bool { return boundaries[i] >= n })
	if idx >= NumClasses {
		return -1
	}
	return idx
}

// TinyClassForSize implements the spec's exact tiny dispatch formula,
// class = (n-1)/8, valid only for 0 < n <= 64.
func TinyClassForSize(n int64) int {
	return int((n - 1) / 8)
}

// IsTiny reports whether class c is in the tiny tier.
func IsTiny(c int) bool {
	return c >= 0 && c < NumTinyClasses
}
