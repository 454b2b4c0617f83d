package codebase

import (
	"testing"

	"github.com/tangzhangming/solastan/internal/types"
)

func buildIndex() *Codebase {
	cb := New()
	cb.AddClassLike(&ClassLike{
		Name: "Animal",
		Kind: KindClass,
		Properties: map[string]*types.Union{
			"$name": types.String(),
		},
		Methods: map[string]*FunctionSig{
			"speak": {Name: "Animal::speak", Return: types.String()},
		},
		Sealed: true,
	})
	cb.AddClassLike(&ClassLike{
		Name:       "Cat",
		Kind:       KindClass,
		Parents:    []string{"Animal"},
		Interfaces: []string{"Pet"},
	})
	cb.AddClassLike(&ClassLike{
		Name:    "Dog",
		Kind:    KindClass,
		Parents: []string{"Animal"},
	})
	cb.AddClassLike(&ClassLike{Name: "Pet", Kind: KindInterface})
	cb.AddClassLike(&ClassLike{
		Name:      "Color",
		Kind:      KindEnum,
		EnumCases: []string{"Red", "Blue"},
	})
	cb.AddClassLike(&ClassLike{
		Name: "Box",
		Kind: KindClass,
		TypeConsts: map[string]*types.Union{
			"TKey": types.Int(),
		},
	})
	return cb
}

func TestMethodWalksInheritanceChain(t *testing.T) {
	cb := buildIndex()
	sig, ok := cb.Method("Cat", "speak")
	if !ok {
		t.Fatal("Cat must inherit Animal::speak")
	}
	if sig.Name != "Animal::speak" {
		t.Errorf("wrong signature: %s", sig.Name)
	}
	if _, ok := cb.Method("Cat", "fly"); ok {
		t.Error("unknown method must not resolve")
	}
}

func TestPropertyWalksInheritanceChain(t *testing.T) {
	cb := buildIndex()
	u, ok := cb.PropertyType("Dog", "$name")
	if !ok {
		t.Fatal("Dog must inherit $name")
	}
	if !u.Equals(types.String()) {
		t.Errorf("wrong property type: %s", u)
	}
}

func TestIsInstanceOf(t *testing.T) {
	cb := buildIndex()
	tests := []struct {
		child, parent string
		want          bool
	}{
		{"Cat", "Cat", true},
		{"Cat", "Animal", true},
		{"Cat", "Pet", true},
		{"Dog", "Pet", false},
		{"Animal", "Cat", false},
		{"Ghost", "Animal", false},
	}
	for _, tt := range tests {
		if got := cb.IsInstanceOf(tt.child, tt.parent); got != tt.want {
			t.Errorf("IsInstanceOf(%s, %s) = %v, want %v", tt.child, tt.parent, got, tt.want)
		}
	}
}

func TestIsInstanceOfCyclicHierarchy(t *testing.T) {
	cb := New()
	cb.AddClassLike(&ClassLike{Name: "A", Kind: KindClass, Parents: []string{"B"}})
	cb.AddClassLike(&ClassLike{Name: "B", Kind: KindClass, Parents: []string{"A"}})
	// 循环继承不得死循环
	if cb.IsInstanceOf("A", "C") {
		t.Error("cyclic hierarchy must not resolve unknown parent")
	}
	if !cb.IsInstanceOf("A", "B") {
		t.Error("direct parent must resolve despite cycle")
	}
}

func TestSealedAndChildren(t *testing.T) {
	cb := buildIndex()
	if !cb.IsSealed("Animal") {
		t.Error("Animal declared sealed")
	}
	if cb.IsSealed("Pet") {
		t.Error("Pet not sealed")
	}
	children := cb.DirectChildren("Animal")
	if len(children) != 2 {
		t.Fatalf("expected 2 direct children, got %v", children)
	}
}

func TestResolveTypeConstant(t *testing.T) {
	cb := buildIndex()
	u, ok := cb.ResolveTypeConstant("Box", "TKey")
	if !ok {
		t.Fatal("Box::TKey must resolve")
	}
	if !u.Equals(types.Int()) {
		t.Errorf("wrong resolved type: %s", u)
	}
	if _, ok := cb.ResolveTypeConstant("Box", "TVal"); ok {
		t.Error("unknown type constant must not resolve")
	}
}

func TestEnumExists(t *testing.T) {
	cb := buildIndex()
	if !cb.EnumExists("Color", "Red") {
		t.Error("Color::Red exists")
	}
	if cb.EnumExists("Color", "Green") {
		t.Error("Color::Green does not exist")
	}
	if cb.EnumExists("Animal", "Red") {
		t.Error("non-enum must not report cases")
	}
}

func TestAssertionAndTaintRegistries(t *testing.T) {
	cb := buildIndex()
	cb.RegisterAssertion("is_cat", AssertionEffect{
		ParamIndex: 0,
		Asserted:   types.Object("Cat"),
		IfTrue:     true,
	})
	effects := cb.Assertions("is_cat")
	if len(effects) != 1 || !effects[0].Asserted.Equals(types.Object("Cat")) {
		t.Fatalf("assertion registry broken: %+v", effects)
	}

	cb.RegisterTaint("query", TaintSpec{SinkParams: map[int][]string{0: {"sql"}}})
	spec, ok := cb.Taint("query")
	if !ok || len(spec.SinkParams[0]) != 1 {
		t.Fatalf("taint registry broken: %+v ok=%v", spec, ok)
	}
	if _, ok := cb.Taint("unknown"); ok {
		t.Error("unknown function must have no taint spec")
	}
}
