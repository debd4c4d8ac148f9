// Package typechecksvc implements the TypeCheck Service: parallel analysis
// of a handle set against the Environment, returning new diagnostics. The
// full type-inference engine lives elsewhere; this validates the facts the
// Environment already tracks — unresolved imports and undefined
// superclasses — which is the slice of "type checking" the core dispatcher
// actually needs to exercise the Recheck pipeline end to end.
package typechecksvc

import (
	"context"
	"fmt"

	"strata/internal/diag"
	"strata/internal/environment"
	"strata/internal/heap"
	"strata/internal/parsersvc"
	"strata/internal/scheduler"
)

// Service is the TypeCheck Service.
type Service struct {
	heap *heap.Heap
	env  *environment.Environment
}

// New creates a TypeCheck Service reading from h and env.
func New(h *heap.Heap, env *environment.Environment) *Service {
	return &Service{heap: h, env: env}
}

// CheckFiles analyzes handles in parallel (gated by gate.parallel) and
// returns every new diagnostic found.
func (s *Service) CheckFiles(ctx context.Context, gate scheduler.Gate, handles []heap.FileHandle) ([]diag.Error, error) {
	results := make([][]diag.Error, len(handles))

	err := scheduler.RunParallel(ctx, gate, indices(len(handles)), func(_ context.Context, i int) error {
		results[i] = s.checkOne(handles[i])
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []diag.Error
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (s *Service) checkOne(handle heap.FileHandle) []diag.Error {
	src, err := s.heap.GetSource(handle)
	if err != nil {
		return nil
	}

	var errs []diag.Error
	for _, qualifier := range parsersvc.ImportsOf(src) {
		if _, ok := s.env.ModuleDefinition(qualifier); !ok {
			errs = append(errs, diag.Error{
				Path:     string(handle),
				Code:     "unresolved-import",
				Severity: diag.SeverityError,
				Message:  fmt.Sprintf("Could not resolve module `%s`.", qualifier),
			})
		}
	}

	for _, className := range src.ClassKeys {
		cd, ok := s.env.ClassDefinition(qualifierOf(handle) + "." + className)
		if !ok {
			continue
		}
		for _, super := range cd.Superclasses {
			if _, ok := s.env.ClassDefinition(super); !ok {
				errs = append(errs, diag.Error{
					Path:     string(handle),
					Code:     "undefined-superclass",
					Severity: diag.SeverityError,
					Message:  fmt.Sprintf("Undefined superclass `%s` of `%s`.", super, className),
				})
			}
		}
	}

	return errs
}

func qualifierOf(handle heap.FileHandle) string {
	return parsersvc.QualifierOf(handle)
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
