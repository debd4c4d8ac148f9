// Package heap implements the Shared Heap Interface: process-wide,
// content-addressed storage of parsed sources and the per-module class and
// define keys the Environment Handler indexes. A single Heap is shared by
// every worker the Scheduler fans out, but only the Dispatcher thread ever
// calls its mutating methods.
package heap

import (
	"sync"

	"github.com/pkg/errors"
)

// FileHandle is the canonical relative-path identity of a source file.
type FileHandle string

// Source is the parsed payload stored in the heap for one handle. AST is
// opaque to the heap — the out-of-scope parser/type-inference engine is the
// only component that interprets it.
type Source struct {
	Handle     FileHandle
	Text       string
	AST        any
	ClassKeys  []string // top-level class names declared in this file
	DefineKeys []string // def names declared in this file, unqualified; methods as "Class.method"
}

// ErrNotFound is returned when a handle has no entry in the heap.
var ErrNotFound = errors.New("heap: handle not found")

// CollectMode selects how aggressively Collect reclaims space.
type CollectMode int

const (
	// CollectNormal reclaims nothing beyond what RemovePaths already
	// dropped.
	CollectNormal CollectMode = iota
	// CollectAggressive additionally clears the process-wide type
	// resolution table, the way a full GC pass would drop a tenured cache.
	CollectAggressive
)

// Heap is the Shared Heap Interface implementation.
type Heap struct {
	mu sync.RWMutex

	sources map[FileHandle]Source
	bytes   map[FileHandle]int64
	used    int64
	cap     int64

	// resolution is the process-wide type-resolution shared table,
	// keyed by qualified define name.
	resolution map[string]struct{}
}

// New creates a Heap with the given byte capacity, used only to compute
// HeapUseRatio.
func New(capacityBytes int64) *Heap {
	return &Heap{
		sources:    make(map[FileHandle]Source),
		bytes:      make(map[FileHandle]int64),
		cap:        capacityBytes,
		resolution: make(map[string]struct{}),
	}
}

// Put inserts or replaces the source for handle, accounting its byte size
// against the heap's usage budget. Called by the Parser Service as it
// successfully parses files.
func (h *Heap) Put(src Source) {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := int64(len(src.Text))
	if old, ok := h.bytes[src.Handle]; ok {
		h.used -= old
	}
	h.sources[src.Handle] = src
	h.bytes[src.Handle] = size
	h.used += size
}

// GetSource returns the parsed source for handle, if present.
func (h *Heap) GetSource(handle FileHandle) (Source, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	src, ok := h.sources[handle]
	if !ok {
		return Source{}, errors.Wrapf(ErrNotFound, "handle %q", handle)
	}
	return src, nil
}

// RemovePaths evicts the given handles from the heap.
func (h *Heap) RemovePaths(handles []FileHandle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, handle := range handles {
		if size, ok := h.bytes[handle]; ok {
			h.used -= size
			delete(h.bytes, handle)
		}
		delete(h.sources, handle)
	}
}

// MarkResolved records that name has a resolved type-inference fact cached
// in the heap's resolution table.
func (h *Heap) MarkResolved(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resolution[name] = struct{}{}
}

// ClearResolved removes name from the type-resolution table; a no-op if
// absent. Used by the Recheck Engine's step 7 (stale resolution clearing).
func (h *Heap) ClearResolved(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.resolution, name)
}

// IsResolved reports whether name currently has a cached resolution fact.
func (h *Heap) IsResolved(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.resolution[name]
	return ok
}

// Collect is a no-op in CollectNormal mode. In CollectAggressive mode it
// drops the type-resolution table, the way a generational GC would drop a
// tenured cache during a full collection; source bytes, and so
// HeapUseRatio, are unchanged by either mode.
func (h *Heap) Collect(mode CollectMode) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if mode == CollectAggressive {
		h.resolution = make(map[string]struct{})
	}
}

// HeapUseRatio returns used bytes over capacity, in [0, +inf). A heap with
// zero capacity reports 0 to avoid a division by zero driving spurious
// compaction.
func (h *Heap) HeapUseRatio() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.cap <= 0 {
		return 0
	}
	return float64(h.used) / float64(h.cap)
}

// UsedBytes returns the current accounted byte usage, reported as the
// `shared memory size` metric after every Recheck.
func (h *Heap) UsedBytes() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.used
}
