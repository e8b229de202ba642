package pool

import (
	"testing"
	"unsafe"

	"github.com/alpluspluss/jalloc/sizeclass"
)

func TestPoolAllocateUntilFull(t *testing.T) {
	class := sizeclass.NumTinyClasses // first pooled class
	p, err := New(class)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release()

	ptrs := make([]unsafe.Pointer, 0, p.Slots())
	for {
		ptr, slot, ok := p.Allocate()
		if !ok {
			break
		}
		_ = slot
		ptrs = append(ptrs, ptr)
	}
	if int64(len(ptrs)) != p.Slots() {
		t.Errorf("expected %v allocations, got %v", p.Slots(), len(ptrs))
	}
	if p.IsEmpty() {
		t.Errorf("pool should be fully claimed")
	}

	for i := range ptrs {
		h := sizeclass.HeaderFor(ptrs[i])
		if !h.Valid() {
			t.Errorf("slot %v: header not valid", i)
		}
	}
}

func TestPoolOwns(t *testing.T) {
	class := sizeclass.NumTinyClasses
	p, err := New(class)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release()

	ptr, _, ok := p.Allocate()
	if !ok {
		t.Fatalf("expected allocation to succeed")
	}
	if !p.Owns(ptr) {
		t.Errorf("pool should own its own allocation")
	}
}

func TestPoolCoalesce(t *testing.T) {
	class := sizeclass.NumTinyClasses
	p, err := New(class)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release()

	_, slotA, _ := p.Allocate()
	_, slotB, _ := p.Allocate()

	ha := p.slotHeader(slotA)
	hb := p.slotHeader(slotB)
	ha.SetFree(true)
	hb.SetFree(true)

	if !p.TryCoalesce(slotA) {
		t.Errorf("expected neighboring free slots to coalesce")
	}
	if !ha.IsCoalesced() {
		t.Errorf("survivor header should carry the coalesced flag")
	}
}

func TestTinyPoolNeverCoalesces(t *testing.T) {
	p, err := New(0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release()
	_, slot, _ := p.Allocate()
	if sizeclass.IsTiny(p.Class()) && p.TryCoalesce(slot) {
		t.Errorf("tiny classes must never coalesce")
	}
}
