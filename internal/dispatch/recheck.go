package dispatch

import (
	"context"
	"log"
	"sort"

	"strata/internal/diag"
	"strata/internal/environment"
	"strata/internal/heap"
	"strata/internal/pathutil"
)

// runRecheck is the Recheck Engine: given files whose source changed
// (updateWith) and files to type-check (check), it reconciles the
// Environment and error table and returns the response covering exactly
// the check set.
func runRecheck(ctx context.Context, s *ServerState, updateWith, check []string) (TypeCheckResponse, error) {
	checkHandles := resolveAll(s.Config.SourceRoot, check)

	// Step 1: compute the deferred set before anything else changes.
	if len(updateWith) > 0 {
		deferred := computeDeferredSet(s, updateWith, checkHandles)
		if len(deferred) > 0 {
			req := TypeCheckRequest{Check: handlesToStrings(deferred)}
			s.Deferred = append([]Request{req}, s.Deferred...)
		}
	}

	// Step 2: parallel gate.
	sched := s.Scheduler.WithParallel(len(checkHandles) > s.Config.ParallelThreshold)

	updateHandles := resolveAll(s.Config.SourceRoot, updateWith)

	// Step 3: purge.
	if len(updateHandles) > 0 {
		s.Heap.RemovePaths(updateHandles)
		s.Environment.Purge(updateHandles)
		for _, h := range updateHandles {
			s.Lookups.Evict(h)
		}
		s.clearClassAttrMemo()
	}

	// Step 4: re-parse, stubs first; sources shadowed by an already-owned
	// qualifier under a different canonical handle are dropped.
	var stubs, sources []heap.FileHandle
	for _, h := range updateHandles {
		if pathutil.IsStub(h) {
			stubs = append(stubs, h)
		} else {
			sources = append(sources, h)
		}
	}

	parsedStubs, stubInputs, err := s.Parser.ParseSources(ctx, sched, s.Config.SourceRoot, stubs)
	if err != nil {
		return TypeCheckResponse{}, err
	}

	var sourcesToParse []heap.FileHandle
	for _, h := range sources {
		qualifier := pathutil.Qualifier(h)
		if md, shadowed := s.Environment.ModuleDefinition(qualifier); shadowed && md.Handle != h {
			continue
		}
		sourcesToParse = append(sourcesToParse, h)
	}
	parsedSources, sourceInputs, err := s.Parser.ParseSources(ctx, sched, s.Config.SourceRoot, sourcesToParse)
	if err != nil {
		return TypeCheckResponse{}, err
	}

	// Step 5: repopulate, then infer protocols, then report heap size.
	allInputs := append(append([]environment.PopulateInput{}, stubInputs...), sourceInputs...)
	s.Environment.Populate(allInputs)

	var classKeys []string
	for _, in := range allInputs {
		for _, name := range in.ClassNames {
			classKeys = append(classKeys, in.Qualifier+"."+name)
		}
	}
	s.Environment.InferProtocols(classKeys)
	s.Metrics.RecordHeapSize(s.Heap.UsedBytes())

	// Step 6: register ignores over the repopulated handles.
	repopulated := append(append([]heap.FileHandle{}, parsedStubs...), parsedSources...)
	registerIgnores(repopulated)

	// Step 7: clear stale type-resolution facts for the check handles.
	for _, h := range checkHandles {
		src, err := s.Heap.GetSource(h)
		if err != nil {
			continue
		}
		for _, define := range src.DefineKeys {
			s.Heap.ClearResolved(pathutil.Qualifier(h) + "." + define)
		}
	}

	// Step 8: analyze.
	newErrors, err := s.TypeCheck.CheckFiles(ctx, sched, checkHandles)
	if err != nil {
		return TypeCheckResponse{}, err
	}

	// Step 9: commit errors — remove then add, atomically per file.
	for _, h := range checkHandles {
		delete(s.Errors, h)
	}
	for _, e := range newErrors {
		h, ok := pathutil.Resolve(s.Config.SourceRoot, e.Path)
		if !ok {
			continue
		}
		s.Errors[h] = append(s.Errors[h], e)
	}
	if s.Notify != nil {
		for _, h := range checkHandles {
			s.Notify(string(h))
		}
	}

	// Step 10: union the check handles into the known handle set.
	for _, h := range checkHandles {
		s.Handles[h] = struct{}{}
		if _, ok := s.Errors[h]; !ok {
			s.Errors[h] = nil
		}
	}

	// Step 11: respond with exactly the check handles.
	resp := TypeCheckResponse{Errors: errorMapFor(s, checkHandles)}
	recordRecheckHistory(s, checkHandles, newErrors)
	return resp, nil
}

func recordRecheckHistory(s *ServerState, checkHandles []heap.FileHandle, newErrors []diag.Error) {
	if s.History == nil {
		return
	}
	if err := s.History.RecordRecheck(len(checkHandles), len(newErrors), s.Heap.UsedBytes()); err != nil {
		log.Printf("dispatch: failed to record recheck history: %v", err)
	}
}

func computeDeferredSet(s *ServerState, updateWith []string, explicitCheck []heap.FileHandle) []heap.FileHandle {
	checkSet := map[heap.FileHandle]struct{}{}
	for _, h := range explicitCheck {
		checkSet[h] = struct{}{}
	}

	dependents := map[string]struct{}{}
	for _, raw := range updateWith {
		h, ok := pathutil.Resolve(s.Config.SourceRoot, raw)
		if !ok {
			continue
		}
		qualifier := pathutil.Qualifier(h)
		for _, dep := range s.Environment.Dependencies(qualifier) {
			dependents[dep] = struct{}{}
		}
	}

	var out []heap.FileHandle
	for qualifier := range dependents {
		md, ok := s.Environment.ModuleDefinition(qualifier)
		if !ok {
			continue
		}
		if _, already := checkSet[md.Handle]; already {
			continue
		}
		out = append(out, md.Handle)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// registerIgnores hands repopulated handles to the ignore-comment
// registrar. Ignore-comment scanning belongs to the out-of-scope parser;
// the Dispatcher's only contract with it is to call it once per Recheck
// over the handles that were just (re)populated.
func registerIgnores(handles []heap.FileHandle) {
	_ = handles
}

func resolveAll(sourceRoot string, paths []string) []heap.FileHandle {
	var out []heap.FileHandle
	for _, p := range paths {
		if h, ok := pathutil.Resolve(sourceRoot, p); ok {
			out = append(out, h)
		}
	}
	return out
}

func handlesToStrings(handles []heap.FileHandle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = string(h)
	}
	return out
}

func errorMapFor(s *ServerState, handles []heap.FileHandle) map[string][]diag.Error {
	out := make(map[string][]diag.Error, len(handles))
	for _, h := range handles {
		out[string(h)] = s.Errors[h]
	}
	return out
}
