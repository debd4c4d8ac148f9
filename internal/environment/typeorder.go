package environment

import (
	"fmt"
	"strings"
	"sync"
)

// Untracked is returned when a type reference is not present in the type
// order.
type Untracked struct{ Type string }

func (u Untracked) Error() string {
	return fmt.Sprintf("type %q was not found in the type order", u.Type)
}

type node struct {
	name   string
	supers []string
}

type protocol struct {
	name            string
	requiredMethods []string
}

// TypeOrderHandler is the subtype lattice: join, meet, less_or_equal, and
// instantiation membership.
type TypeOrderHandler struct {
	mu        sync.RWMutex
	nodes     map[string]*node
	protoRegs []protocol
}

const top = "object"
const bottom = "Never"

func newTypeOrderHandler() *TypeOrderHandler {
	h := &TypeOrderHandler{nodes: make(map[string]*node)}
	h.nodes[top] = &node{name: top}
	h.nodes[bottom] = &node{name: bottom, supers: []string{top}}
	for _, b := range []string{"bool", "int", "float", "str", "bytes", "None"} {
		h.nodes[b] = &node{name: b, supers: []string{top}}
	}
	// bool is conventionally a subtype of int in a duck-typed numeric tower.
	h.nodes["bool"].supers = []string{"int"}

	h.protoRegs = []protocol{
		{name: "Iterable", requiredMethods: []string{"__iter__"}},
		{name: "Sized", requiredMethods: []string{"__len__"}},
		{name: "Comparable", requiredMethods: []string{"__lt__"}},
		{name: "ContextManager", requiredMethods: []string{"__enter__", "__exit__"}},
	}
	for _, p := range h.protoRegs {
		h.nodes[p.name] = &node{name: p.name, supers: []string{top}}
	}
	return h
}

// declare registers a class with the given direct superclasses, defaulting
// to object when none are given.
func (h *TypeOrderHandler) declare(name string, supers []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(supers) == 0 {
		supers = []string{top}
	}
	h.nodes[name] = &node{name: name, supers: supers}
}

// addSuperOf registers protocolName as an additional supertype of name,
// used when structural conformance makes name a subtype of protocolName
// when a structural-conformance pass infers protocol membership.
func (h *TypeOrderHandler) addSuperOf(name, protocolName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.nodes[name]
	if !ok {
		return
	}
	for _, s := range n.supers {
		if s == protocolName {
			return
		}
	}
	n.supers = append(n.supers, protocolName)
}

func (h *TypeOrderHandler) protocols() []protocol {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.protoRegs
}

// RegisterProtocol adds a protocol definition consulted by InferProtocols.
func (h *TypeOrderHandler) RegisterProtocol(name string, requiredMethods []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.protoRegs = append(h.protoRegs, protocol{name: name, requiredMethods: requiredMethods})
	if _, ok := h.nodes[name]; !ok {
		h.nodes[name] = &node{name: name, supers: []string{top}}
	}
}

// IsInstantiated reports whether name is present in the type order.
func (h *TypeOrderHandler) IsInstantiated(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.nodes[name]
	return ok
}

func (h *TypeOrderHandler) ancestors(name string) map[string]struct{} {
	out := map[string]struct{}{name: {}}
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n, ok := h.nodes[cur]
		if !ok {
			continue
		}
		for _, s := range n.supers {
			if _, seen := out[s]; seen {
				continue
			}
			out[s] = struct{}{}
			queue = append(queue, s)
		}
	}
	return out
}

// LessOrEqual reports whether a is a subtype of (or equal to) b.
func (h *TypeOrderHandler) LessOrEqual(a, b string) (bool, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.nodes[a]; !ok {
		return false, Untracked{Type: a}
	}
	if _, ok := h.nodes[b]; !ok {
		return false, Untracked{Type: b}
	}
	if a == b {
		return true, nil
	}
	_, ok := h.ancestors(a)[b]
	return ok, nil
}

// Join computes the least upper bound of a and b: the most specific common
// ancestor, preferring a or b directly when one already subsumes the other.
func (h *TypeOrderHandler) Join(a, b string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.nodes[a]; !ok {
		return "", Untracked{Type: a}
	}
	if _, ok := h.nodes[b]; !ok {
		return "", Untracked{Type: b}
	}
	if a == b {
		return a, nil
	}

	ancestorsA := h.ancestors(a)
	if _, ok := ancestorsA[b]; ok {
		return b, nil
	}
	ancestorsB := h.ancestors(b)
	if _, ok := ancestorsB[a]; ok {
		return a, nil
	}

	// BFS outward from a in declaration order, first hit that is also an
	// ancestor of b wins — deterministic because ancestors() walks supers
	// in declared order.
	visited := map[string]struct{}{}
	queue := []string{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}
		if _, ok := ancestorsB[cur]; ok {
			return cur, nil
		}
		if n, ok := h.nodes[cur]; ok {
			queue = append(queue, n.supers...)
		}
	}
	return top, nil
}

// Meet computes the greatest lower bound: a or b when one is already a
// subtype of the other, otherwise Never — the two types share no common
// instance without additional structural information.
func (h *TypeOrderHandler) Meet(a, b string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.nodes[a]; !ok {
		return "", Untracked{Type: a}
	}
	if _, ok := h.nodes[b]; !ok {
		return "", Untracked{Type: b}
	}
	if a == b {
		return a, nil
	}
	if _, ok := h.ancestors(a)[b]; ok {
		return a, nil
	}
	if _, ok := h.ancestors(b)[a]; ok {
		return b, nil
	}
	return bottom, nil
}

// ParseAndValidate parses a textual type annotation in the current
// resolution context and validates it is instantiated in the type order
// shared by every Type-Query subquery. Full annotation parsing belongs to
// the type-inference engine; this performs the minimal normalization the
// core needs — trimming whitespace and reading the outer type name off a
// generic form like "List[int]".
func (h *TypeOrderHandler) ParseAndValidate(expr string) (string, error) {
	trimmed := strings.TrimSpace(expr)
	base := trimmed
	if idx := strings.IndexByte(trimmed, '['); idx >= 0 {
		base = trimmed[:idx]
	}
	if !h.IsInstantiated(base) {
		return "", Untracked{Type: trimmed}
	}
	return trimmed, nil
}
