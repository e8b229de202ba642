package pool

import (
	"testing"

	"github.com/alpluspluss/jalloc/sizeclass"
)

func TestTinyPoolAllocateDeallocate(t *testing.T) {
	tp, err := NewTiny(0)
	if err != nil {
		t.Fatalf("NewTiny: %v", err)
	}
	defer tp.Release()

	ptr, slot, ok := tp.Allocate()
	if !ok {
		t.Fatalf("expected allocation to succeed")
	}
	h := sizeclass.HeaderFor(ptr)
	if !h.Valid() {
		t.Errorf("header not valid")
	}
	if h.HasPrevPhysical() || h.HasNextPhysical() {
		t.Errorf("tiny headers must carry no physical-neighbor links")
	}

	tp.Deallocate(slot)
	if !tp.IsEmpty() {
		t.Errorf("expected pool to be empty after deallocate")
	}
}

func TestNewTinyRejectsPooledClass(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic for a non-tiny class")
		}
	}()
	NewTiny(sizeclass.NumTinyClasses)
}
