// Package pathutil canonicalizes filesystem paths into the relative
// FileHandle identity used throughout the server.
package pathutil

import (
	"path/filepath"
	"strings"

	"strata/internal/heap"
)

// Resolve roots p (absolute or already-relative) at sourceRoot and returns
// the canonical FileHandle. It reports ok=false when p falls outside
// sourceRoot, returning ok=false for paths outside sourceRoot.
func Resolve(sourceRoot, p string) (heap.FileHandle, bool) {
	root, err := filepath.Abs(sourceRoot)
	if err != nil {
		return "", false
	}

	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, p)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return heap.FileHandle(filepath.ToSlash(rel)), true
}

// Qualifier derives the dotted module identity from a FileHandle, the way
// an import system would: strip the .py/.pyi suffix and replace path
// separators with dots. "foo/bar.pyi" and "foo/bar.py" share a qualifier.
func Qualifier(handle heap.FileHandle) string {
	s := string(handle)
	s = strings.TrimSuffix(s, ".pyi")
	s = strings.TrimSuffix(s, ".py")
	s = strings.ReplaceAll(s, "/", ".")
	return s
}

// IsStub reports whether handle names a stub file.
func IsStub(handle heap.FileHandle) bool {
	return strings.HasSuffix(string(handle), ".pyi")
}
