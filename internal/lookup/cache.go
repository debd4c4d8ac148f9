package lookup

import (
	"sync"

	"strata/internal/heap"
)

// Cache is the Lookup Cache: bounded, per-file Tables with explicit
// eviction rather than a time-based expiry — a file's Table is invalidated
// by Evict, called when that file is reparsed or edited, or dropped
// oldest-first when inserting would exceed capacity.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    []heap.FileHandle
	tables   map[heap.FileHandle]*Table
}

// NewCache creates a Cache holding up to capacity Tables.
func NewCache(capacity int) *Cache {
	return &Cache{capacity: capacity, tables: make(map[heap.FileHandle]*Table)}
}

// Get returns the cached Table for handle, building and inserting one
// from src if absent.
func (c *Cache) Get(handle heap.FileHandle, src heap.Source) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.tables[handle]; ok {
		return t
	}
	t := CreateOfSource(src)
	c.insertLocked(handle, t)
	return t
}

func (c *Cache) insertLocked(handle heap.FileHandle, t *Table) {
	if c.capacity > 0 && len(c.tables) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.tables, oldest)
	}
	c.tables[handle] = t
	c.order = append(c.order, handle)
}

// Evict drops handle's cached Table, forcing the next Get to rebuild it —
// called whenever the Parser Service reparses handle so a stale Table is
// never served.
func (c *Cache) Evict(handle heap.FileHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[handle]; !ok {
		return
	}
	delete(c.tables, handle)
	for i, h := range c.order {
		if h == handle {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// FindAnnotation is the Lookup Cache's get_annotation: look up (or build)
// handle's Table and resolve pos against the given document text.
func (c *Cache) FindAnnotation(handle heap.FileHandle, src heap.Source, pos Position, text string) (string, bool) {
	return c.Get(handle, src).GetAnnotation(pos, text)
}

// FindDefinition is the Lookup Cache's get_definition.
func (c *Cache) FindDefinition(handle heap.FileHandle, src heap.Source, pos Position, text string) (heap.FileHandle, Position, bool) {
	return c.Get(handle, src).GetDefinition(pos, text)
}
