package gateway

import (
	"fmt"
	"testing"
)

func TestDedupCache_FirstSeen(t *testing.T) {
	c := NewDedupCache(10)
	if c.CheckAndMark("a") {
		t.Error("first delivery should not be a duplicate")
	}
	if !c.CheckAndMark("a") {
		t.Error("second delivery should be a duplicate")
	}
}

func TestDedupCache_FIFOEviction(t *testing.T) {
	c := NewDedupCache(3)
	for _, id := range []string{"a", "b", "c"} {
		c.CheckAndMark(id)
	}

	// "d" evicts "a", the oldest entry.
	c.CheckAndMark("d")
	if c.Len() != 3 {
		t.Errorf("expected len 3, got %d", c.Len())
	}
	if c.CheckAndMark("a") {
		t.Error("evicted id should be treated as new")
	}
	if !c.CheckAndMark("d") {
		t.Error("recent id should still be a duplicate")
	}
}

func TestDedupCache_BoundedUnderChurn(t *testing.T) {
	c := NewDedupCache(100)
	for i := 0; i < 10_000; i++ {
		c.CheckAndMark(fmt.Sprintf("evt-%d", i))
	}
	if c.Len() != 100 {
		t.Errorf("cache must stay at capacity, got %d", c.Len())
	}
}

func TestDedupCache_DefaultCapacity(t *testing.T) {
	c := NewDedupCache(0)
	for i := 0; i < 2000; i++ {
		c.CheckAndMark(fmt.Sprintf("evt-%d", i))
	}
	if c.Len() != 1000 {
		t.Errorf("expected default capacity 1000, got %d", c.Len())
	}
}

func TestDedupCache_Concurrent(t *testing.T) {
	c := NewDedupCache(50)
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 1000; i++ {
				c.CheckAndMark(fmt.Sprintf("g%d-%d", g, i))
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	if c.Len() > 50 {
		t.Errorf("capacity exceeded under concurrency: %d", c.Len())
	}
}
