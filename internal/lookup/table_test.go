package lookup_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"strata/internal/heap"
	"strata/internal/lookup"
	"strata/internal/parsersvc"
	"strata/internal/scheduler"
)

func parseFixture(t *testing.T, root, rel, contents string) heap.Source {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	h := heap.New(1 << 20)
	svc := parsersvc.New(h)
	sched := scheduler.New(4, 2)
	if _, _, err := svc.ParseSources(context.Background(), sched.WithParallel(false), root, []heap.FileHandle{heap.FileHandle(rel)}); err != nil {
		t.Fatalf("ParseSources: %v", err)
	}
	src, err := h.GetSource(heap.FileHandle(rel))
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	return src
}

func TestGetAnnotationAtClassDeclaration(t *testing.T) {
	root := t.TempDir()
	src := parseFixture(t, root, "a.py", "class Foo:\n    pass\n")

	table := lookup.CreateOfSource(src)
	pos := lookup.Position{Line: 0, Character: 7} // inside "Foo"
	annotation, ok := table.GetAnnotation(pos, src.Text)
	if !ok {
		t.Fatalf("expected an annotation at the class name")
	}
	if annotation != "type[a.Foo]" {
		t.Errorf("got annotation %q", annotation)
	}
}

func TestGetAnnotationMiss(t *testing.T) {
	root := t.TempDir()
	src := parseFixture(t, root, "a.py", "class Foo:\n    pass\n")

	table := lookup.CreateOfSource(src)
	pos := lookup.Position{Line: 1, Character: 0} // blank indentation, no symbol
	if _, ok := table.GetAnnotation(pos, src.Text); ok {
		t.Errorf("expected no annotation at a blank position")
	}
}

func TestGetDefinitionReturnsDeclarationSite(t *testing.T) {
	root := t.TempDir()
	src := parseFixture(t, root, "a.py", "def helper():\n    pass\n")

	table := lookup.CreateOfSource(src)
	pos := lookup.Position{Line: 0, Character: 5} // inside "helper"
	handle, defPos, ok := table.GetDefinition(pos, src.Text)
	if !ok {
		t.Fatalf("expected a definition at the def name")
	}
	if handle != "a.py" {
		t.Errorf("got handle %q", handle)
	}
	if defPos.Line != 0 {
		t.Errorf("got def line %d", defPos.Line)
	}
}
