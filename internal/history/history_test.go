package history_test

import (
	"path/filepath"
	"testing"

	"strata/internal/history"
)

func newTestHistory(t *testing.T) *history.History {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "history.db")
	h, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestOpenCreatesEmptyHistory(t *testing.T) {
	h := newTestHistory(t)
	events, err := h.Recent(5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestRecordRecheckRoundTrip(t *testing.T) {
	h := newTestHistory(t)

	if err := h.RecordRecheck(3, 1, 1024); err != nil {
		t.Fatalf("RecordRecheck failed: %v", err)
	}
	if err := h.RecordRecheck(5, 0, 2048); err != nil {
		t.Fatalf("RecordRecheck failed: %v", err)
	}

	events, err := h.Recent(5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Recent orders most-recent first.
	if events[0].CheckedCount != 5 || events[0].ErrorCount != 0 || events[0].HeapBytes != 2048 {
		t.Errorf("unexpected most recent event: %+v", events[0])
	}
	if events[1].CheckedCount != 3 || events[1].ErrorCount != 1 || events[1].HeapBytes != 1024 {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestRecentRespectsLimit(t *testing.T) {
	h := newTestHistory(t)
	for i := 0; i < 10; i++ {
		if err := h.RecordRecheck(i, 0, 0); err != nil {
			t.Fatalf("RecordRecheck failed: %v", err)
		}
	}

	events, err := h.Recent(3)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].CheckedCount != 9 {
		t.Errorf("expected most recent checked_count 9, got %d", events[0].CheckedCount)
	}
}
