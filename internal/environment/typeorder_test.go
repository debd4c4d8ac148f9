package environment

import "testing"

func TestLessOrEqualBuiltins(t *testing.T) {
	h := newTypeOrderHandler()

	cases := []struct {
		a, b string
		want bool
	}{
		{"int", "object", true},
		{"bool", "int", true},
		{"bool", "object", true},
		{"int", "str", false},
		{"object", "int", false},
		{"int", "int", true},
	}
	for _, c := range cases {
		got, err := h.LessOrEqual(c.a, c.b)
		if err != nil {
			t.Fatalf("LessOrEqual(%s, %s): %v", c.a, c.b, err)
		}
		if got != c.want {
			t.Errorf("LessOrEqual(%s, %s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestLessOrEqualUntracked(t *testing.T) {
	h := newTypeOrderHandler()
	_, err := h.LessOrEqual("Foo", "object")
	if _, ok := err.(Untracked); !ok {
		t.Fatalf("expected Untracked, got %v", err)
	}
}

func TestJoinAndMeet(t *testing.T) {
	h := newTypeOrderHandler()
	h.declare("Dog", []string{"object"})
	h.declare("Cat", []string{"object"})

	join, err := h.Join("Dog", "Cat")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if join != "object" {
		t.Errorf("Join(Dog, Cat) = %q, want object", join)
	}

	meet, err := h.Meet("Dog", "Cat")
	if err != nil {
		t.Fatalf("Meet: %v", err)
	}
	if meet != bottom {
		t.Errorf("Meet(Dog, Cat) = %q, want %q", meet, bottom)
	}

	joinSame, err := h.Join("int", "bool")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joinSame != "int" {
		t.Errorf("Join(int, bool) = %q, want int", joinSame)
	}
}

func TestIsInstantiated(t *testing.T) {
	h := newTypeOrderHandler()
	if !h.IsInstantiated("int") {
		t.Errorf("expected int to be instantiated")
	}
	if h.IsInstantiated("Foo") {
		t.Errorf("expected Foo not to be instantiated")
	}
}

func TestParseAndValidate(t *testing.T) {
	h := newTypeOrderHandler()

	if _, err := h.ParseAndValidate(" List[int] "); err == nil {
		t.Fatalf("expected Untracked for List[int] before List is declared")
	}

	h.declare("List", nil)
	norm, err := h.ParseAndValidate(" List[int] ")
	if err != nil {
		t.Fatalf("expected List[int] to validate once List is declared: %v", err)
	}
	if norm != "List[int]" {
		t.Errorf("got %q", norm)
	}

	if _, err := h.ParseAndValidate("Unknown"); err == nil {
		t.Errorf("expected Untracked for an undeclared base type")
	}
}

func TestAddSuperOfAndProtocolInference(t *testing.T) {
	h := newTypeOrderHandler()
	h.declare("Counter", []string{"object"})
	h.addSuperOf("Counter", "Sized")

	ok, err := h.LessOrEqual("Counter", "Sized")
	if err != nil {
		t.Fatalf("LessOrEqual: %v", err)
	}
	if !ok {
		t.Errorf("expected Counter <= Sized after addSuperOf")
	}
}
