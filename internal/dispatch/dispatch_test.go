package dispatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"strata/internal/config"
	"strata/internal/dispatch"
)

func newTestState(t *testing.T, root string) *dispatch.ServerState {
	t.Helper()
	cfg, err := config.Load(map[string]any{"source_root": root})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return dispatch.New(cfg)
}

func writeFile(t *testing.T, root, rel, contents string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// S1: TypeCheckRequest{u=[a.py], c=[a.py]} on a fresh server where a.py
// imports an undefined module. Response covers exactly the checked
// handle and state.handles gains it.
func TestTypeCheckRequestFreshFileWithError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "import nosuchmodule\n")
	s := newTestState(t, root)

	resp, err := dispatch.Dispatch(context.Background(), dispatch.TypeCheckRequest{
		UpdateEnvironmentWith: []string{"a.py"},
		Check:                 []string{"a.py"},
	}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	tc, ok := resp.(dispatch.TypeCheckResponse)
	if !ok {
		t.Fatalf("expected TypeCheckResponse, got %T", resp)
	}
	errs, ok := tc.Errors["a.py"]
	if !ok {
		t.Fatalf("expected a.py in the response map")
	}
	if len(errs) != 1 {
		t.Fatalf("expected one diagnostic, got %d", len(errs))
	}
	if _, ok := s.Handles["a.py"]; !ok {
		t.Errorf("expected a.py to be recorded in state.handles")
	}
}

// Invariant P1: for every handle ever checked, state.errors holds an
// entry (possibly empty) after the Recheck that checked it.
func TestCleanFileGetsEmptyErrorEntryNotAbsentOne(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "clean.py", "x = 1\n")
	s := newTestState(t, root)

	_, err := dispatch.Dispatch(context.Background(), dispatch.TypeCheckRequest{
		UpdateEnvironmentWith: []string{"clean.py"},
		Check:                 []string{"clean.py"},
	}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	errs, ok := s.Errors["clean.py"]
	if !ok {
		t.Fatalf("expected an entry for clean.py even with no errors")
	}
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

// S3: saving b.py (imported by c.py) defers a recheck of c.py; flushing
// drains it.
func TestSaveDeferredDependentsFlush(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.py", "x = 1\n")
	writeFile(t, root, "c.py", "import b\n")
	s := newTestState(t, root)

	// Seed c.py into the environment first so it has a dependency edge
	// on b.py before b.py's recheck computes the deferred set.
	if _, err := dispatch.Dispatch(context.Background(), dispatch.TypeCheckRequest{
		UpdateEnvironmentWith: []string{"c.py", "b.py"},
		Check:                 []string{"c.py", "b.py"},
	}, s); err != nil {
		t.Fatalf("seed Dispatch: %v", err)
	}

	_, err := dispatch.Dispatch(context.Background(), dispatch.TypeCheckRequest{
		UpdateEnvironmentWith: []string{"b.py"},
		Check:                 []string{"b.py"},
	}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(s.Deferred) != 1 {
		t.Fatalf("expected exactly one deferred request, got %d", len(s.Deferred))
	}

	resp, err := dispatch.Dispatch(context.Background(), dispatch.FlushTypeErrorsRequest{}, s)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(s.Deferred) != 0 {
		t.Errorf("P4: FlushTypeErrorsRequest must leave deferred_requests empty")
	}
	tc, ok := resp.(dispatch.TypeCheckResponse)
	if !ok {
		t.Fatalf("expected TypeCheckResponse, got %T", resp)
	}
	if _, ok := tc.Errors["c.py"]; !ok {
		t.Errorf("expected c.py's errors in the flushed response")
	}
}

// P9: deferred dependents never intersect the explicit check set.
func TestDeferredDependentsNeverIntersectExplicitCheck(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.py", "x = 1\n")
	writeFile(t, root, "c.py", "import b\n")
	s := newTestState(t, root)

	if _, err := dispatch.Dispatch(context.Background(), dispatch.TypeCheckRequest{
		UpdateEnvironmentWith: []string{"c.py", "b.py"},
		Check:                 []string{"c.py", "b.py"},
	}, s); err != nil {
		t.Fatalf("seed Dispatch: %v", err)
	}

	// Now check both b.py and c.py explicitly; no deferred request should
	// be produced since c.py is already in the explicit check set.
	if _, err := dispatch.Dispatch(context.Background(), dispatch.TypeCheckRequest{
		UpdateEnvironmentWith: []string{"b.py"},
		Check:                 []string{"b.py", "c.py"},
	}, s); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(s.Deferred) != 0 {
		t.Errorf("expected no deferred request when the dependent is already in check, got %v", s.Deferred)
	}
}

// S4: LessOrEqual type queries, including the Untracked error text.
func TestTypeQueryLessOrEqual(t *testing.T) {
	root := t.TempDir()
	s := newTestState(t, root)

	resp, err := dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{
		Query: dispatch.LessOrEqual{A: "int", B: "object"},
	}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if tq := resp.(dispatch.TypeQueryResponse); tq.Text != "true" {
		t.Errorf("got %q, want true", tq.Text)
	}

	resp, _ = dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{
		Query: dispatch.LessOrEqual{A: "int", B: "str"},
	}, s)
	if tq := resp.(dispatch.TypeQueryResponse); tq.Text != "false" {
		t.Errorf("got %q, want false", tq.Text)
	}

	resp, _ = dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{
		Query: dispatch.LessOrEqual{A: "Foo", B: "object"},
	}, s)
	tq := resp.(dispatch.TypeQueryResponse)
	want := "Error: Type `Foo` was not found in the type order."
	if tq.Text != want {
		t.Errorf("got %q, want %q", tq.Text, want)
	}
}

// The Open Question asymmetry: Attributes/Methods carry "Error: ", but
// Superclasses omits it. Preserved verbatim. "int" is instantiated in the
// type order (a builtin) but carries no ClassDefinition, so it reaches the
// no-class-definition string rather than Untracked.
func TestNoClassDefinitionStringAsymmetry(t *testing.T) {
	root := t.TempDir()
	s := newTestState(t, root)

	resp, _ := dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{Query: dispatch.Attributes{Type: "int"}}, s)
	if got := resp.(dispatch.TypeQueryResponse).Text; got != "Error: No class definition found for int" {
		t.Errorf("got %q", got)
	}

	resp, _ = dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{Query: dispatch.Superclasses{Type: "int"}}, s)
	if got := resp.(dispatch.TypeQueryResponse).Text; got != "No class definition found for int" {
		t.Errorf("got %q, want no leading \"Error: \"", got)
	}
}

// Attributes/Methods/Superclasses all share parse_and_validate (spec
// §4.3, P7): a type absent from the type order fails Untracked before the
// class-definition lookup ever runs, not "no class definition found".
func TestClassQueriesShareParseAndValidate(t *testing.T) {
	root := t.TempDir()
	s := newTestState(t, root)

	want := "Error: Type `Ghost` was not found in the type order."

	resp, _ := dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{Query: dispatch.Attributes{Type: "Ghost"}}, s)
	if got := resp.(dispatch.TypeQueryResponse).Text; got != want {
		t.Errorf("Attributes: got %q, want %q", got, want)
	}

	resp, _ = dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{Query: dispatch.Methods{Type: "Ghost"}}, s)
	if got := resp.(dispatch.TypeQueryResponse).Text; got != want {
		t.Errorf("Methods: got %q, want %q", got, want)
	}

	resp, _ = dispatch.Dispatch(context.Background(), dispatch.TypeQueryRequest{Query: dispatch.Superclasses{Type: "Ghost"}}, s)
	if got := resp.(dispatch.TypeQueryResponse).Text; got != want {
		t.Errorf("Superclasses: got %q, want %q", got, want)
	}
}

// GetDefinitionRequest/HoverRequest are only valid nested inside an LSP
// request; at the outer level they log and produce no response.
func TestNestedOnlyRequestsDroppedAtOuterLevel(t *testing.T) {
	root := t.TempDir()
	s := newTestState(t, root)

	resp, err := dispatch.Dispatch(context.Background(), dispatch.HoverRequest{File: "a.py"}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response, got %v", resp)
	}
}

// ClientConnectionRequest at the Dispatcher is a programming error.
func TestClientConnectionRequestIsInvalid(t *testing.T) {
	root := t.TempDir()
	s := newTestState(t, root)

	_, err := dispatch.Dispatch(context.Background(), dispatch.ClientConnectionRequest{}, s)
	if err == nil {
		t.Fatalf("expected an error")
	}
}

// SaveDocument triggers a Recheck when file_notifiers is empty, and only
// evicts the cache otherwise.
func TestSaveDocumentChecksOnSaveGatedByFileNotifiers(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "import nosuchmodule\n")
	s := newTestState(t, root)

	resp, err := dispatch.Dispatch(context.Background(), dispatch.LanguageServerProtocolRequest{
		Inner: dispatch.SaveDocument{File: "a.py"},
	}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp == nil {
		t.Fatalf("expected a recheck response when file_notifiers is empty")
	}

	s.Connections.FileNotifiers = []string{"watchman"}
	resp, err = dispatch.Dispatch(context.Background(), dispatch.LanguageServerProtocolRequest{
		Inner: dispatch.SaveDocument{File: "a.py"},
	}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if resp != nil {
		t.Errorf("expected no response when file_notifiers is non-empty, got %v", resp)
	}
}

// DisplayTypeErrors([]) returns every known error, keyed exactly by
// state.errors's keys.
func TestDisplayTypeErrorsEmptyMeansAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.py", "y = 2\n")
	s := newTestState(t, root)

	if _, err := dispatch.Dispatch(context.Background(), dispatch.TypeCheckRequest{
		UpdateEnvironmentWith: []string{"a.py", "b.py"},
		Check:                 []string{"a.py", "b.py"},
	}, s); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp, err := dispatch.Dispatch(context.Background(), dispatch.DisplayTypeErrors{}, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	tc := resp.(dispatch.TypeCheckResponse)
	if len(tc.Errors) != len(s.Errors) {
		t.Errorf("got %d entries, want %d", len(tc.Errors), len(s.Errors))
	}
}

// P8: rechecking the same request twice in succession yields the same
// errors map both times.
func TestRecheckIsIdempotentInErrors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "import nosuchmodule\n")
	s := newTestState(t, root)

	req := dispatch.TypeCheckRequest{UpdateEnvironmentWith: []string{"a.py"}, Check: []string{"a.py"}}

	first, err := dispatch.Dispatch(context.Background(), req, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	second, err := dispatch.Dispatch(context.Background(), req, s)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	f := first.(dispatch.TypeCheckResponse).Errors["a.py"]
	sErrs := second.(dispatch.TypeCheckResponse).Errors["a.py"]
	if len(f) != len(sErrs) || len(f) != 1 {
		t.Errorf("expected identical single-error results, got %v and %v", f, sErrs)
	}
}
