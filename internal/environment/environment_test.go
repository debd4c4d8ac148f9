package environment_test

import (
	"testing"

	"strata/internal/environment"
	"strata/internal/heap"
)

func TestPopulateAndClassDefinition(t *testing.T) {
	env := environment.New()
	env.Populate([]environment.PopulateInput{
		{
			Handle:     "a.py",
			Qualifier:  "a",
			ClassNames: []string{"Foo"},
			Classes: []environment.ClassDefinition{
				{Name: "Foo", Superclasses: nil},
			},
		},
	})

	cd, ok := env.ClassDefinition("a.Foo")
	if !ok {
		t.Fatalf("expected a.Foo to be defined")
	}
	if cd.Handle != "a.py" {
		t.Errorf("got handle %q", cd.Handle)
	}

	md, ok := env.ModuleDefinition("a")
	if !ok {
		t.Fatalf("expected module a to be defined")
	}
	if len(md.Classes) != 1 || md.Classes[0] != "Foo" {
		t.Errorf("got classes %v", md.Classes)
	}
}

func TestDependenciesWalksReverseImportEdgesTransitively(t *testing.T) {
	env := environment.New()
	env.Populate([]environment.PopulateInput{
		{Handle: "a.py", Qualifier: "a"},
		{Handle: "b.py", Qualifier: "b", Imports: []string{"a"}},
		{Handle: "c.py", Qualifier: "c", Imports: []string{"b"}},
	})

	deps := env.Dependencies("a")
	want := map[string]bool{"b": true, "c": true}
	if len(deps) != len(want) {
		t.Fatalf("got %v", deps)
	}
	for _, d := range deps {
		if !want[d] {
			t.Errorf("unexpected dependency %q", d)
		}
	}
}

func TestPurgeRemovesModuleClassesAndEdges(t *testing.T) {
	env := environment.New()
	env.Populate([]environment.PopulateInput{
		{Handle: "a.py", Qualifier: "a", ClassNames: []string{"Foo"}, Classes: []environment.ClassDefinition{{Name: "Foo"}}},
		{Handle: "b.py", Qualifier: "b", Imports: []string{"a"}},
	})

	env.Purge([]heap.FileHandle{"a.py"})

	if _, ok := env.ClassDefinition("a.Foo"); ok {
		t.Errorf("expected a.Foo to be purged")
	}
	if _, ok := env.ModuleDefinition("a"); ok {
		t.Errorf("expected module a to be purged")
	}
	if deps := env.Dependencies("a"); len(deps) != 0 {
		t.Errorf("expected no dependents of purged module a, got %v", deps)
	}
}

func TestInferProtocolsRegistersStructuralConformance(t *testing.T) {
	env := environment.New()
	env.Populate([]environment.PopulateInput{
		{
			Handle:     "a.py",
			Qualifier:  "a",
			ClassNames: []string{"Box"},
			Classes: []environment.ClassDefinition{
				{Name: "Box", Methods: []environment.Method{{Name: "__len__", ReturnType: "int"}}},
			},
		},
	})

	env.InferProtocols([]string{"a.Box"})

	ok, err := env.TypeOrder().LessOrEqual("a.Box", "Sized")
	if err != nil {
		t.Fatalf("LessOrEqual: %v", err)
	}
	if !ok {
		t.Errorf("expected a.Box to conform to Sized")
	}
}
