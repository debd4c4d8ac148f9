package dispatch

import (
	"fmt"
	"strings"

	"strata/internal/environment"
	"strata/internal/lookup"
	"strata/internal/pathutil"
)

// runQuery is the Type-Query Handler: every subquery shares
// parseAndValidate against the type order, then dispatches to its own
// rendering rule.
func runQuery(s *ServerState, q TypeQuery) TypeQueryResponse {
	switch v := q.(type) {
	case Attributes:
		return queryClassList(s, v.Type, noClassDefinitionAttributes, func(cd environment.ClassDefinition) string {
			return strings.Join(cd.Attributes, "\n")
		})
	case Methods:
		return queryClassList(s, v.Type, noClassDefinitionAttributes, func(cd environment.ClassDefinition) string {
			lines := make([]string, len(cd.Methods))
			for i, m := range cd.Methods {
				params := append([]string{"self"}, m.Params...)
				lines[i] = fmt.Sprintf("%s: (%s) -> %s", m.Name, strings.Join(params, ", "), m.ReturnType)
			}
			return strings.Join(lines, "\n")
		})
	case Superclasses:
		return queryClassList(s, v.Type, noClassDefinitionSuperclasses, func(cd environment.ClassDefinition) string {
			return strings.Join(cd.Superclasses, ", ")
		})
	case Join:
		return renderTypeOrderBinary(s, v.A, v.B, s.Environment.TypeOrder().Join)
	case Meet:
		return renderTypeOrderBinary(s, v.A, v.B, s.Environment.TypeOrder().Meet)
	case LessOrEqual:
		ok, err := s.Environment.TypeOrder().LessOrEqual(v.A, v.B)
		if err != nil {
			return untrackedResponse(err)
		}
		return TypeQueryResponse{Text: fmt.Sprintf("%t", ok)}
	case NormalizeType:
		norm, err := s.Environment.TypeOrder().ParseAndValidate(v.Expr)
		if err != nil {
			return untrackedResponse(err)
		}
		return TypeQueryResponse{Text: norm}
	case TypeAtLocation:
		return queryTypeAtLocation(s, v)
	default:
		return TypeQueryResponse{Text: "Error: unrecognized type query"}
	}
}

// queryClassList runs the shared parse_and_validate step first: a type
// absent from the type order always fails Untracked (spec §4.3, P7), even
// when it happens to have a class definition on file. Only a type that IS
// instantiated but lacks a class definition reaches onMissing.
func queryClassList(s *ServerState, typeName string, onMissing func(string) string, render func(environment.ClassDefinition) string) TypeQueryResponse {
	if _, err := s.Environment.TypeOrder().ParseAndValidate(typeName); err != nil {
		return untrackedResponse(err)
	}
	cd, ok := s.Environment.ClassDefinition(typeName)
	if !ok {
		return TypeQueryResponse{Text: onMissing(typeName)}
	}
	return TypeQueryResponse{Text: render(cd)}
}

func renderTypeOrderBinary(s *ServerState, a, b string, fn func(string, string) (string, error)) TypeQueryResponse {
	result, err := fn(a, b)
	if err != nil {
		return untrackedResponse(err)
	}
	return TypeQueryResponse{Text: result}
}

func untrackedResponse(err error) TypeQueryResponse {
	if u, ok := err.(environment.Untracked); ok {
		return untrackedQueryResponse(u)
	}
	return TypeQueryResponse{Text: "Error: " + err.Error()}
}

func queryTypeAtLocation(s *ServerState, v TypeAtLocation) TypeQueryResponse {
	handle, ok := pathutil.Resolve(s.Config.SourceRoot, v.Path)
	if !ok {
		return TypeQueryResponse{Text: fmt.Sprintf("Error: Not able to get lookup at %s:%d:%d", v.Path, v.Line, v.Col)}
	}
	src, err := s.Heap.GetSource(handle)
	if err != nil {
		return TypeQueryResponse{Text: fmt.Sprintf("Error: Not able to get lookup at %s:%d:%d", v.Path, v.Line, v.Col)}
	}
	table := lookup.CreateOfSource(src)
	pos := lookup.Position{Line: uint32(v.Line), Character: uint32(v.Col)}
	annotation, ok := table.GetAnnotation(pos, src.Text)
	if !ok {
		return TypeQueryResponse{Text: fmt.Sprintf("Error: Not able to get lookup at %s:%d:%d", v.Path, v.Line, v.Col)}
	}
	return TypeQueryResponse{Text: annotation}
}
