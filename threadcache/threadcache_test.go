package threadcache

import (
	"testing"
	"unsafe"
)

func TestCachePutGet(t *testing.T) {
	c := New()
	var x int
	ptr := unsafe.Pointer(&x)

	if _, ok := c.Get(5); ok {
		t.Errorf("expected empty cache to miss")
	}
	if !c.Put(5, ptr) {
		t.Errorf("expected Put to succeed below capacity")
	}
	got, ok := c.Get(5)
	if !ok || got != ptr {
		t.Errorf("expected to get back the cached pointer")
	}
}

func TestCacheCapacity(t *testing.T) {
	c := New()
	var xs [Capacity + 1]int
	for i := 0; i < Capacity; i++ {
		if !c.Put(3, unsafe.Pointer(&xs[i])) {
			t.Fatalf("expected Put %v to succeed", i)
		}
	}
	if c.Put(3, unsafe.Pointer(&xs[Capacity])) {
		t.Errorf("expected Put beyond capacity to fail")
	}
	if c.Len(3) != Capacity {
		t.Errorf("expected Len %v, got %v", Capacity, c.Len(3))
	}
}

func TestCacheDrainAll(t *testing.T) {
	c := New()
	var x, y int
	c.Put(0, unsafe.Pointer(&x))
	c.Put(1, unsafe.Pointer(&y))
	all := c.DrainAll()
	if len(all[0]) != 1 || len(all[1]) != 1 {
		t.Errorf("expected one drained pointer per populated class")
	}
	if c.Len(0) != 0 || c.Len(1) != 0 {
		t.Errorf("expected cache to be empty after DrainAll")
	}
}
