package largecache

import (
	"testing"
	"unsafe"
)

func TestCacheGetMiss(t *testing.T) {
	c := New()
	if _, _, ok := c.Get(8192); ok {
		t.Errorf("expected empty cache to miss")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := New()
	buf := make([]byte, 8192)
	ptr := unsafe.Pointer(&buf[0])

	if !c.CacheBlock(ptr, 8192) {
		t.Fatalf("expected CacheBlock to succeed")
	}
	if c.TotalBytes() != 8192 {
		t.Errorf("expected 8192 total bytes, got %v", c.TotalBytes())
	}
	got, size, ok := c.Get(8192)
	if !ok || got != ptr || size != 8192 {
		t.Errorf("expected to get back the cached block, got %v %v %v", got, size, ok)
	}
	if c.TotalBytes() != 0 {
		t.Errorf("expected 0 total bytes after reclaim, got %v", c.TotalBytes())
	}
}

func TestCacheFitRatioRejectsLooseFit(t *testing.T) {
	c := New()
	buf := make([]byte, 1<<20)
	ptr := unsafe.Pointer(&buf[0])
	// a block more than FitRatio times larger than requested should not
	// satisfy the request even though both sizes land in the same bucket.
	if !c.CacheBlock(ptr, 500000) {
		t.Fatalf("expected CacheBlock to succeed")
	}
	if bucketFor(300000) != bucketFor(500000) {
		t.Fatalf("expected 300000 and 500000 to share a bucket")
	}
	if _, _, ok := c.Get(300000); ok {
		t.Errorf("expected an oversized cached block to be rejected for a smaller request")
	}
}

func TestBucketForOutOfRange(t *testing.T) {
	if b := bucketFor(MaxCachedBlock * 10); b != -1 {
		t.Errorf("expected an out-of-range size to report no bucket, got %v", b)
	}
}
