// Package parsersvc implements the Parser Service: it reads source files
// from disk and turns them into heap.Source entries plus the declarations
// the Environment Handler needs. The full lexer/parser/type-inference
// engine lives elsewhere; this is a minimal but real top-level-declaration
// scanner standing in for it, fanned out across files with an errgroup the
// way a parallel diagnose pass would.
package parsersvc

import (
	"context"
	"os"
	"regexp"
	"strings"

	"strata/internal/environment"
	"strata/internal/heap"
	"strata/internal/scheduler"
)

var (
	importRe     = regexp.MustCompile(`^\s*import\s+([\w.]+)`)
	fromImportRe = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\s+`)
	classRe      = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	defRe        = regexp.MustCompile(`^(\s*)def\s+(\w+)\s*\(([^)]*)\)\s*(?:->\s*([\w.\[\], ]+))?\s*:`)
	attrRe       = regexp.MustCompile(`^(\s*)(\w+)\s*:\s*([\w.\[\], ]+?)\s*(?:=.*)?$`)
)

// Service is the Parser Service.
type Service struct {
	heap *heap.Heap
}

// New creates a Parser Service writing parsed sources into h.
func New(h *heap.Heap) *Service {
	return &Service{heap: h}
}

// ParseSources parses each file under sourceRoot and populates the Shared
// Heap, returning the handles that parsed successfully along with the
// Environment inputs derived from them.
func (s *Service) ParseSources(ctx context.Context, gate scheduler.Gate, sourceRoot string, handles []heap.FileHandle) ([]heap.FileHandle, []environment.PopulateInput, error) {
	type result struct {
		handle heap.FileHandle
		input  environment.PopulateInput
		ok     bool
	}
	results := make([]result, len(handles))

	err := scheduler.RunParallel(ctx, gate, indices(len(handles)), func(_ context.Context, i int) error {
		handle := handles[i]
		text, err := os.ReadFile(sourceRoot + "/" + string(handle))
		if err != nil {
			return nil // unreadable files are simply not in the result set
		}

		parsed := parseText(handle, string(text))
		s.heap.Put(heap.Source{
			Handle:     handle,
			Text:       string(text),
			AST:        parsed,
			ClassKeys:  parsed.input.ClassNames,
			DefineKeys: parsed.defines,
		})
		results[i] = result{handle: handle, input: parsed.input, ok: true}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var okHandles []heap.FileHandle
	var inputs []environment.PopulateInput
	for _, r := range results {
		if r.ok {
			okHandles = append(okHandles, r.handle)
			inputs = append(inputs, r.input)
		}
	}
	return okHandles, inputs, nil
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// Symbol is one identifier occurrence the Lookup Table indexes.
type Symbol struct {
	Name           string
	StartByte      int
	EndByte        int
	AnnotationType string
	DefHandle      heap.FileHandle
	DefLine        int
	DefCol         int
	HasDefinition  bool
}

type parseResult struct {
	input   environment.PopulateInput
	defines []string
	symbols []Symbol
}

// parseText is the out-of-scope-parser stand-in: a linewise scan that
// recovers imports, class/def declarations and their type annotations,
// and the identifier spans the Lookup Table needs.
func parseText(handle heap.FileHandle, text string) parseResult {
	qualifier := qualifierOf(handle)
	var imports []string
	var classes []environment.ClassDefinition
	var classNames []string
	var defines []string
	var symbols []Symbol

	lines := strings.Split(text, "\n")
	offset := 0

	var currentClass *environment.ClassDefinition
	classIndent := -1

	for lineNo, line := range lines {
		lineStart := offset
		offset += len(line) + 1

		if m := importRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, m[1])
			continue
		}
		if m := fromImportRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, m[1])
			continue
		}

		if m := classRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			name := m[2]
			var bases []string
			if m[3] != "" {
				for _, b := range strings.Split(m[3], ",") {
					b = strings.TrimSpace(b)
					if b != "" {
						bases = append(bases, qualifier+"."+b)
					}
				}
			}
			cd := environment.ClassDefinition{Name: name, Superclasses: bases}
			classes = append(classes, cd)
			classNames = append(classNames, name)
			currentClass = &classes[len(classes)-1]
			classIndent = indent

			col := len(m[1]) + len("class ")
			symbols = append(symbols, Symbol{
				Name: name, StartByte: lineStart + col, EndByte: lineStart + col + len(name),
				AnnotationType: "type[" + qualifier + "." + name + "]",
				DefHandle:      handle, DefLine: lineNo, DefCol: col, HasDefinition: true,
			})
			continue
		}

		if m := defRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			name := m[2]
			params := parseParams(m[3])
			ret := "None"
			if m[4] != "" {
				ret = strings.TrimSpace(m[4])
			}
			if currentClass != nil && indent > classIndent {
				currentClass.Methods = append(currentClass.Methods, environment.Method{
					Name: name, Params: params, ReturnType: ret,
				})
				defines = append(defines, currentClass.Name+"."+name)
			} else {
				currentClass = nil
				defines = append(defines, name)
			}

			col := len(m[1]) + len("def ")
			sig := "(" + strings.Join(append([]string{"self"}, params...), ", ") + ") -> " + ret
			symbols = append(symbols, Symbol{
				Name: name, StartByte: lineStart + col, EndByte: lineStart + col + len(name),
				AnnotationType: sig,
				DefHandle:      handle, DefLine: lineNo, DefCol: col, HasDefinition: true,
			})
			continue
		}

		if m := attrRe.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			name := m[2]
			typ := strings.TrimSpace(m[3])
			if currentClass != nil && indent > classIndent {
				currentClass.Attributes = append(currentClass.Attributes, name+": "+typ)
			}
			col := len(m[1])
			symbols = append(symbols, Symbol{
				Name: name, StartByte: lineStart + col, EndByte: lineStart + col + len(name),
				AnnotationType: typ,
				DefHandle:      handle, DefLine: lineNo, DefCol: col, HasDefinition: true,
			})
		}
	}

	return parseResult{
		input: environment.PopulateInput{
			Handle:     handle,
			Qualifier:  qualifier,
			Imports:    imports,
			Classes:    classes,
			ClassNames: classNames,
		},
		defines: defines,
		symbols: symbols,
	}
}

func parseParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" || p == "self" {
			continue
		}
		if idx := strings.Index(p, ":"); idx >= 0 {
			out = append(out, strings.TrimSpace(p[idx+1:]))
		} else {
			out = append(out, "Any")
		}
	}
	return out
}

func qualifierOf(handle heap.FileHandle) string {
	s := string(handle)
	s = strings.TrimSuffix(s, ".pyi")
	s = strings.TrimSuffix(s, ".py")
	return strings.ReplaceAll(s, "/", ".")
}

// ASTOf extracts the []Symbol the Lookup Table needs from the opaque AST
// the Shared Heap stores for handle.
func ASTOf(src heap.Source) []Symbol {
	pr, ok := src.AST.(parseResult)
	if !ok {
		return nil
	}
	return pr.symbols
}

// ImportsOf extracts the module qualifiers src's file imports, letting the
// TypeCheck Service flag references to modules the Environment never saw.
func ImportsOf(src heap.Source) []string {
	pr, ok := src.AST.(parseResult)
	if !ok {
		return nil
	}
	return pr.input.Imports
}

// QualifierOf exposes the handle-to-qualifier rule other packages need
// without re-deriving it.
func QualifierOf(handle heap.FileHandle) string {
	return qualifierOf(handle)
}
