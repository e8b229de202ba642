package poolmgr

import (
	"testing"
	"unsafe"

	"github.com/alpluspluss/jalloc/sizeclass"
)

func TestManagerAllocateDeallocate(t *testing.T) {
	m := New()
	defer m.Cleanup()

	class := sizeclass.NumTinyClasses
	ptr, err := m.Allocate(class)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if c, ok := m.Owns(ptr); !ok || c != class {
		t.Errorf("expected manager to own the pointer in class %v, got %v/%v", class, c, ok)
	}
	if !m.Deallocate(class, ptr) {
		t.Errorf("expected deallocate to succeed")
	}
}

func TestManagerGrowsPools(t *testing.T) {
	m := New()
	defer m.Cleanup()

	class := sizeclass.NumTinyClasses
	capPer := sizeclass.Table[class].BlockCount

	var ptrs []unsafe.Pointer
	total := capPer*2 + 1
	for i := int64(0); i < total; i++ {
		ptr, err := m.Allocate(class)
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		ptrs = append(ptrs, ptr)
	}
	if len(m.classes[class]) < 3 {
		t.Errorf("expected at least 3 pools to service %v allocations of capacity %v each, got %v", total, capPer, len(m.classes[class]))
	}
}

func TestManagerStats(t *testing.T) {
	m := New()
	defer m.Cleanup()

	class := 0
	if _, err := m.Allocate(class); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	stats := m.Stats()
	if stats[class].PoolCount != 1 {
		t.Errorf("expected 1 active pool, got %v", stats[class].PoolCount)
	}
	if stats[class].SlotsUsed != 1 {
		t.Errorf("expected 1 used slot, got %v", stats[class].SlotsUsed)
	}
}
