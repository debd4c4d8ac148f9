package lookup_test

import (
	"testing"

	"strata/internal/heap"
	"strata/internal/lookup"
)

func TestGetBuildsAndMemoizesTable(t *testing.T) {
	c := lookup.NewCache(0)
	src := heap.Source{Handle: "a.py", Text: "class Foo:\n    pass\n"}

	t1 := c.Get("a.py", src)
	t2 := c.Get("a.py", src)
	if t1 != t2 {
		t.Errorf("expected Get to return the same Table object between edits")
	}
}

func TestEvictForcesRebuild(t *testing.T) {
	c := lookup.NewCache(0)
	src := heap.Source{Handle: "a.py", Text: "class Foo:\n    pass\n"}

	t1 := c.Get("a.py", src)
	c.Evict("a.py")
	t2 := c.Get("a.py", src)
	if t1 == t2 {
		t.Errorf("expected Evict to force a fresh Table on next Get")
	}
}

func TestEvictAbsentIsNoop(t *testing.T) {
	c := lookup.NewCache(0)
	c.Evict("never-cached.py") // must not panic
}

func TestCacheEvictsOldestWhenOverCapacity(t *testing.T) {
	c := lookup.NewCache(1)
	src := heap.Source{Handle: "a.py", Text: "x = 1"}
	c.Get("a.py", src)

	src2 := heap.Source{Handle: "b.py", Text: "y = 2"}
	c.Get("b.py", src2)

	// a.py should have been evicted to respect capacity 1; Get rebuilds it.
	rebuilt := c.Get("a.py", src)
	if rebuilt == nil {
		t.Fatalf("expected a fresh Table to be built")
	}
}
