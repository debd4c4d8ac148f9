package pathutil_test

import (
	"testing"

	"strata/internal/pathutil"
)

func TestResolveWithinRoot(t *testing.T) {
	handle, ok := pathutil.Resolve("/proj", "pkg/mod.py")
	if !ok {
		t.Fatalf("expected ok")
	}
	if handle != "pkg/mod.py" {
		t.Errorf("got handle %q", handle)
	}
}

func TestResolveOutsideRoot(t *testing.T) {
	_, ok := pathutil.Resolve("/proj", "/elsewhere/mod.py")
	if ok {
		t.Errorf("expected paths outside source_root to be rejected")
	}
}

func TestResolveAbsoluteUnderRoot(t *testing.T) {
	handle, ok := pathutil.Resolve("/proj", "/proj/pkg/mod.py")
	if !ok {
		t.Fatalf("expected ok")
	}
	if handle != "pkg/mod.py" {
		t.Errorf("got handle %q", handle)
	}
}

func TestQualifierStripsStubAndSourceSuffixesTheSame(t *testing.T) {
	if pathutil.Qualifier("foo/bar.py") != "foo.bar" {
		t.Errorf("got %q", pathutil.Qualifier("foo/bar.py"))
	}
	if pathutil.Qualifier("foo/bar.pyi") != "foo.bar" {
		t.Errorf("got %q", pathutil.Qualifier("foo/bar.pyi"))
	}
}

func TestIsStub(t *testing.T) {
	if !pathutil.IsStub("foo/bar.pyi") {
		t.Errorf("expected .pyi to be a stub")
	}
	if pathutil.IsStub("foo/bar.py") {
		t.Errorf("expected .py not to be a stub")
	}
}
