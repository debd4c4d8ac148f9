// Package environment implements the Environment Handler: a mutable index
// from module qualifier to class definitions, dependency edges between
// modules, and a type order. Only the Dispatcher's Recheck steps mutate an
// Environment; readers (the Type-Query Handler, the Lookup Cache) only call
// its non-mutating methods.
package environment

import (
	"sort"
	"sync"

	"strata/internal/heap"
)

// Method describes one method of a class definition, rendered the way
// rendered as "name: (param_types_including \"self\") -> return_type".
type Method struct {
	Name       string
	Params     []string // rendered types; the caller prepends "self"
	ReturnType string
}

// ClassDefinition is what class_definition(name) returns.
type ClassDefinition struct {
	Name         string
	Qualifier    string // owning module qualifier
	Handle       heap.FileHandle
	Attributes   []string
	Methods      []Method
	Superclasses []string
}

// ModuleDefinition is what module_definition(qualifier) returns.
type ModuleDefinition struct {
	Qualifier string
	Handle    heap.FileHandle
	Classes   []string // class names declared at module scope
}

// Environment is the Environment Handler.
type Environment struct {
	mu sync.RWMutex

	modules map[string]ModuleDefinition // qualifier -> module
	classes map[string]ClassDefinition  // "qualifier.ClassName" -> class
	owner   map[heap.FileHandle]string  // handle -> qualifier it last populated

	// deps[a] = modules that a imports, i.e. a depends on them.
	deps map[string]map[string]struct{}
	// rdeps[a] = modules that import a, i.e. depend on a.
	rdeps map[string]map[string]struct{}

	order *TypeOrderHandler
}

// New creates an empty Environment seeded with the builtin type lattice.
func New() *Environment {
	return &Environment{
		modules: make(map[string]ModuleDefinition),
		classes: make(map[string]ClassDefinition),
		owner:   make(map[heap.FileHandle]string),
		deps:    make(map[string]map[string]struct{}),
		rdeps:   make(map[string]map[string]struct{}),
		order:   newTypeOrderHandler(),
	}
}

// TypeOrder exposes the nested TypeOrderHandler.
func (e *Environment) TypeOrder() *TypeOrderHandler { return e.order }

// ClassDefinition looks up a class by its fully-qualified name.
func (e *Environment) ClassDefinition(name string) (ClassDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cd, ok := e.classes[name]
	return cd, ok
}

// ModuleDefinition looks up a module by qualifier.
func (e *Environment) ModuleDefinition(qualifier string) (ModuleDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	md, ok := e.modules[qualifier]
	return md, ok
}

// Dependencies returns the transitive set of module qualifiers that depend
// on qualifier — i.e. would need rechecking if qualifier's source changes.
// Despite the name, this walks the *reverse* import edges: the result is
// the set of modules that would need rechecking if qualifier's source
// changed.
func (e *Environment) Dependencies(qualifier string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := map[string]struct{}{}
	queue := []string{qualifier}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dependent := range e.rdeps[cur] {
			if _, ok := seen[dependent]; ok {
				continue
			}
			seen[dependent] = struct{}{}
			queue = append(queue, dependent)
		}
	}

	out := make([]string, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// Purge removes every module/class definition owned by handles and drops
// their dependency edges.
func (e *Environment) Purge(handles []heap.FileHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, handle := range handles {
		qualifier, ok := e.owner[handle]
		if !ok {
			continue
		}
		delete(e.owner, handle)

		md, ok := e.modules[qualifier]
		if !ok {
			continue
		}
		for _, className := range md.Classes {
			delete(e.classes, qualifier+"."+className)
		}
		delete(e.modules, qualifier)

		for dep := range e.deps[qualifier] {
			delete(e.rdeps[dep], qualifier)
		}
		delete(e.deps, qualifier)
	}
}

// PopulateInput is one parsed file ready to enter the Environment.
type PopulateInput struct {
	Handle     heap.FileHandle
	Qualifier  string
	Imports    []string // qualifiers this module depends on
	Classes    []ClassDefinition
	ClassNames []string
}

// Populate installs module and class definitions for a batch of newly (re)
// parsed files.
func (e *Environment) Populate(inputs []PopulateInput) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, in := range inputs {
		e.owner[in.Handle] = in.Qualifier
		e.modules[in.Qualifier] = ModuleDefinition{
			Qualifier: in.Qualifier,
			Handle:    in.Handle,
			Classes:   in.ClassNames,
		}

		if e.deps[in.Qualifier] == nil {
			e.deps[in.Qualifier] = make(map[string]struct{})
		}
		for _, dep := range in.Imports {
			e.deps[in.Qualifier][dep] = struct{}{}
			if e.rdeps[dep] == nil {
				e.rdeps[dep] = make(map[string]struct{})
			}
			e.rdeps[dep][in.Qualifier] = struct{}{}
		}

		for _, cd := range in.Classes {
			cd.Qualifier = in.Qualifier
			cd.Handle = in.Handle
			e.classes[in.Qualifier+"."+cd.Name] = cd
			e.order.declare(in.Qualifier+"."+cd.Name, cd.Superclasses)
		}
	}
}

// InferProtocols runs a structural-conformance pass: any declared class
// whose method set is a superset of a protocol's method set is registered
// as a subtype of that protocol in the type order. classKeys restricts the
// pass to the classes declared by the files just repopulated.
func (e *Environment) InferProtocols(classKeys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	protocols := e.order.protocols()
	for _, key := range classKeys {
		cd, ok := e.classes[key]
		if !ok {
			continue
		}
		methodSet := map[string]struct{}{}
		for _, m := range cd.Methods {
			methodSet[m.Name] = struct{}{}
		}
		for _, proto := range protocols {
			if conformsTo(methodSet, proto.requiredMethods) {
				e.order.addSuperOf(key, proto.name)
			}
		}
	}
}

func conformsTo(methods map[string]struct{}, required []string) bool {
	for _, r := range required {
		if _, ok := methods[r]; !ok {
			return false
		}
	}
	return true
}
