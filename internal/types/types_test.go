package types

import (
	"testing"
)

// testHierarchy 测试用的最小层级索引
//
// 结构：Animal (sealed) <- Cat, Dog；IShape <- Circle；
// Box<T> 协变；Pair<K,V> 不变。
type testHierarchy struct{}

func (testHierarchy) ClassLikeExists(name string) bool {
	switch name {
	case "Animal", "Cat", "Dog", "IShape", "Circle", "Box", "Pair", "Closure":
		return true
	}
	return false
}

func (testHierarchy) IsInstanceOf(child, parent string) bool {
	if child == parent {
		return true
	}
	switch parent {
	case "Animal":
		return child == "Cat" || child == "Dog"
	case "IShape":
		return child == "Circle"
	}
	return false
}

func (testHierarchy) GenericParams(name string) []GenericParamDef {
	switch name {
	case "Box":
		return []GenericParamDef{{Name: "T", Variance: Covariant}}
	case "Pair":
		return []GenericParamDef{
			{Name: "K", Variance: Invariant},
			{Name: "V", Variance: Invariant},
		}
	}
	return nil
}

func (testHierarchy) IsSealed(name string) bool { return name == "Animal" }

func (testHierarchy) DirectChildren(name string) []string {
	if name == "Animal" {
		return []string{"Cat", "Dog"}
	}
	return nil
}

func (testHierarchy) ResolveTypeConstant(class, constName string) (*Union, bool) {
	if class == "Box" && constName == "TKey" {
		return Int(), true
	}
	return nil, false
}

func (testHierarchy) EnumExists(enum, caseName string) bool {
	return enum == "Suit" && (caseName == "Hearts" || caseName == "Spades")
}

func TestSubtypeBasics(t *testing.T) {
	h := testHierarchy{}

	tests := []struct {
		name string
		a    *Union
		b    *Union
		want bool
	}{
		{"int <: int", Int(), Int(), true},
		{"int <: num", Int(), Num(), true},
		{"int <: arraykey", Int(), Arraykey(), true},
		{"float <: arraykey", Float(), Arraykey(), false},
		{"string <: arraykey", String(), Arraykey(), true},
		{"nothing <: int", Never(), Int(), true},
		{"int <: mixed", Int(), Mixed(), true},
		{"mixed <: int", Mixed(), Int(), false},
		{"literal <: scalar", IntLiteral("3"), Int(), true},
		{"literal <: num", IntLiteral("3"), Num(), true},
		{"scalar <: literal", Int(), IntLiteral("3"), false},
		{"null <: ?string", Null(), Nullable(String()), true},
		{"string <: ?string", String(), Nullable(String()), true},
		{"?string <: string", Nullable(String()), String(), false},
		{"int <: nonnull", Int(), NewUnion(TScalar{Kind: KindNonnull}), true},
		{"null <: nonnull", Null(), NewUnion(TScalar{Kind: KindNonnull}), false},
		{"Cat <: Animal", Object("Cat"), Object("Animal"), true},
		{"Animal <: Cat", Object("Animal"), Object("Cat"), false},
		{"Circle <: IShape", Object("Circle"), Object("IShape"), true},
		{"Cat|Dog <: Animal", Combine(Object("Cat"), Object("Dog")), Object("Animal"), true},
		{"Cat <: exact Cat", Object("Cat"), NewUnion(TNamedObject{Name: "Cat", Exact: true}), true},
		{"Cat <: exact Animal", Object("Cat"), NewUnion(TNamedObject{Name: "Animal", Exact: true}), false},
	}

	for _, tt := range tests {
		if got := IsSubtype(h, tt.a, tt.b); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSubtypeGenericVariance(t *testing.T) {
	h := testHierarchy{}

	boxOf := func(u *Union) *Union {
		return NewUnion(TNamedObject{Name: "Box", TypeParams: []*Union{u}})
	}
	pairOf := func(k, v *Union) *Union {
		return NewUnion(TNamedObject{Name: "Pair", TypeParams: []*Union{k, v}})
	}

	// 协变：Box<Cat> <: Box<Animal>
	if !IsSubtype(h, boxOf(Object("Cat")), boxOf(Object("Animal"))) {
		t.Errorf("covariant Box<Cat> should be subtype of Box<Animal>")
	}
	if IsSubtype(h, boxOf(Object("Animal")), boxOf(Object("Cat"))) {
		t.Errorf("Box<Animal> should not be subtype of Box<Cat>")
	}

	// 不变：Pair<Cat, int> 与 Pair<Animal, int> 互不为子类型
	if IsSubtype(h, pairOf(Object("Cat"), Int()), pairOf(Object("Animal"), Int())) {
		t.Errorf("invariant Pair<Cat,_> should not be subtype of Pair<Animal,_>")
	}
	if !IsSubtype(h, pairOf(Object("Cat"), Int()), pairOf(Object("Cat"), Int())) {
		t.Errorf("Pair should be subtype of itself")
	}
}

func TestSubtypeClosure(t *testing.T) {
	h := testHierarchy{}

	// 参数逆变、返回值协变
	f := NewUnion(TClosure{Params: []*Union{Object("Animal")}, Return: Object("Cat")})
	g := NewUnion(TClosure{Params: []*Union{Object("Cat")}, Return: Object("Animal")})

	if !IsSubtype(h, f, g) {
		t.Errorf("(Animal)->Cat should be subtype of (Cat)->Animal")
	}
	if IsSubtype(h, g, f) {
		t.Errorf("(Cat)->Animal should not be subtype of (Animal)->Cat")
	}
}

func TestSubtypeShape(t *testing.T) {
	h := testHierarchy{}

	closed := NewUnion(TShape{Fields: []ShapeField{
		{Key: "name", Type: String()},
		{Key: "age", Type: Int()},
	}})
	open := NewUnion(TShape{
		Fields: []ShapeField{{Key: "name", Type: String()}},
		Open:   true,
	})
	missing := NewUnion(TShape{Fields: []ShapeField{{Key: "age", Type: Int()}}})

	if !IsSubtype(h, closed, open) {
		t.Errorf("closed shape should be subtype of open shape with field subset")
	}
	if IsSubtype(h, open, closed) {
		t.Errorf("open shape should not be subtype of closed shape")
	}
	if IsSubtype(h, missing, open) {
		t.Errorf("shape missing required field should not be subtype")
	}
}

func TestSubtypeReflexivity(t *testing.T) {
	h := testHierarchy{}

	samples := []*Union{
		Int(), String(), Mixed(), Never(), Nullable(String()),
		Object("Cat"), Combine(Int(), String()),
		NewUnion(TContainer{Kind: ContainerVec, ValueType: Int()}),
		NewUnion(TTuple{Elems: []*Union{Int(), String()}}),
		NewUnion(TShape{Fields: []ShapeField{{Key: "a", Type: Int()}}}),
	}
	for _, u := range samples {
		if !IsSubtype(h, u, u) {
			t.Errorf("reflexivity violated for %s", u)
		}
	}
}

func TestSubtypeTransitivity(t *testing.T) {
	h := testHierarchy{}

	// 每个三元组满足 a <: b 且 b <: c
	chains := [][3]*Union{
		{IntLiteral("1"), Int(), Num()},
		{Object("Cat"), Object("Animal"), Mixed()},
		{Never(), Int(), Arraykey()},
		{StringLiteral("x"), String(), Arraykey()},
	}
	for _, c := range chains {
		if !IsSubtype(h, c[0], c[1]) || !IsSubtype(h, c[1], c[2]) {
			t.Fatalf("test chain broken: %s <: %s <: %s", c[0], c[1], c[2])
		}
		if !IsSubtype(h, c[0], c[2]) {
			t.Errorf("transitivity violated: %s <: %s", c[0], c[2])
		}
	}
}

func TestCombineIdempotent(t *testing.T) {
	samples := []*Union{
		Int(), Nullable(String()), Object("Cat"),
		Combine(Int(), String()),
		NewUnion(TShape{Fields: []ShapeField{{Key: "a", Type: Int()}}}),
	}
	for _, u := range samples {
		if got := Combine(u, u); !got.Equals(u) {
			t.Errorf("combine(%s, %s) = %s, want unchanged", u, u, got)
		}
	}
}

func TestCombineCommutative(t *testing.T) {
	samples := []*Union{
		Int(), String(), Null(), Object("Cat"), Object("Dog"),
		IntLiteral("1"), IntLiteral("2"), Mixed(),
		NewUnion(TContainer{Kind: ContainerVec, ValueType: Int()}),
		NewUnion(TShape{Fields: []ShapeField{{Key: "a", Type: Int()}}}),
		NewUnion(TShape{Fields: []ShapeField{{Key: "b", Type: String()}}}),
	}
	for _, a := range samples {
		for _, b := range samples {
			ab := Combine(a, b)
			ba := Combine(b, a)
			if ab.SortedKey() != ba.SortedKey() {
				t.Errorf("combine not commutative: %s + %s -> %s vs %s", a, b, ab, ba)
			}
		}
	}
}

func TestCombineLiterals(t *testing.T) {
	// 两个不同值的字面量保持为独立成员
	u := Combine(IntLiteral("1"), IntLiteral("2"))
	if len(u.Atomics) != 2 {
		t.Fatalf("expected 2 literal members, got %s", u)
	}

	// 超过上限后全部加宽为标量
	u = CombineAll(IntLiteral("1"), IntLiteral("2"), IntLiteral("3"), IntLiteral("4"))
	if !u.Equals(Int()) {
		t.Errorf("expected widening to int, got %s", u)
	}

	// 标量吸收同种字面量
	u = Combine(IntLiteral("1"), Int())
	if !u.Equals(Int()) {
		t.Errorf("expected int to absorb literal, got %s", u)
	}
}

func TestCombineObjects(t *testing.T) {
	boxOf := func(u *Union) *Union {
		return NewUnion(TNamedObject{Name: "Box", TypeParams: []*Union{u}})
	}

	// 同类对象的泛型实参逐槽位合并
	u := Combine(boxOf(Int()), boxOf(String()))
	if len(u.Atomics) != 1 {
		t.Fatalf("expected single merged object, got %s", u)
	}
	obj := u.Atomics[0].(TNamedObject)
	want := Combine(Int(), String())
	if !obj.TypeParams[0].Equals(want) {
		t.Errorf("expected merged type param %s, got %s", want, obj.TypeParams[0])
	}

	// 不同类保持为独立成员
	u = Combine(Object("Cat"), Object("Dog"))
	if len(u.Atomics) != 2 {
		t.Errorf("expected 2 members for Cat|Dog, got %s", u)
	}
}

func TestCombineShapes(t *testing.T) {
	a := NewUnion(TShape{Fields: []ShapeField{
		{Key: "a", Type: Int()},
		{Key: "b", Type: String()},
	}})
	b := NewUnion(TShape{Fields: []ShapeField{
		{Key: "a", Type: Int()},
	}})

	u := Combine(a, b)
	if len(u.Atomics) != 1 {
		t.Fatalf("expected single merged shape, got %s", u)
	}
	shape := u.Atomics[0].(TShape)
	fa, _ := shape.FieldByKey("a")
	if fa.Optional {
		t.Errorf("common field 'a' should stay required")
	}
	fb, ok := shape.FieldByKey("b")
	if !ok || !fb.Optional {
		t.Errorf("one-sided field 'b' should become optional")
	}
}

func TestCombineMixedAbsorbs(t *testing.T) {
	u := Combine(Mixed(), Int())
	if !u.Equals(Mixed()) {
		t.Errorf("mixed should absorb everything, got %s", u)
	}
}

func TestNarrowNullable(t *testing.T) {
	h := testHierarchy{}

	// ?string 按 is null 收窄：真分支 null，假分支 string
	u := Nullable(String())
	then := Intersect(h, u, NullPred{})
	els := Negate(h, u, NullPred{})

	if !then.Equals(Null()) {
		t.Errorf("then branch: got %s, want null", then)
	}
	if !els.Equals(String()) {
		t.Errorf("else branch: got %s, want string", els)
	}
}

func TestNarrowSealedNegation(t *testing.T) {
	h := testHierarchy{}

	// 封闭层级 Animal <- Cat, Dog：从 Animal 排除 is Cat 精确得到 Dog
	u := Object("Animal")
	got := Negate(h, u, IsTypePred{Target: Object("Cat")})
	if !got.Equals(Object("Dog")) {
		t.Errorf("sealed negation: got %s, want Dog", got)
	}

	// 非封闭排除无法精确化，保持原样
	got = Negate(h, u, IsTypePred{Target: Object("Circle")})
	if !got.Equals(u) {
		t.Errorf("unrelated negation: got %s, want Animal", got)
	}
}

func TestNarrowScalarComplement(t *testing.T) {
	h := testHierarchy{}

	got := Negate(h, Arraykey(), IsTypePred{Target: Int()})
	if !got.Equals(String()) {
		t.Errorf("arraykey minus int: got %s, want string", got)
	}
	got = Negate(h, Num(), IsTypePred{Target: Float()})
	if !got.Equals(Int()) {
		t.Errorf("num minus float: got %s, want int", got)
	}
}

func TestNarrowTruthy(t *testing.T) {
	h := testHierarchy{}

	// ?Cat 真分支排除 null
	u := Nullable(Object("Cat"))
	then := Intersect(h, u, TruthyPred{})
	if !then.Equals(Object("Cat")) {
		t.Errorf("truthy ?Cat: got %s, want Cat", then)
	}
	els := Negate(h, u, TruthyPred{})
	if !els.Equals(Null()) {
		t.Errorf("falsy ?Cat: got %s, want null", els)
	}

	// bool 真分支收窄为字面量 true
	then = Intersect(h, Bool(), TruthyPred{})
	if !then.Equals(BoolLiteral(true)) {
		t.Errorf("truthy bool: got %s, want true", then)
	}
}

func TestNarrowPartition(t *testing.T) {
	h := testHierarchy{}

	// 类型谓词下每个成员要么进真分支要么进假分支，不被静默丢弃
	tests := []struct {
		union *Union
		pred  Predicate
	}{
		{Nullable(String()), NullPred{}},
		{Combine(Object("Cat"), Object("Dog")), IsTypePred{Target: Object("Cat")}},
		{Combine(Int(), String()), IsTypePred{Target: Int()}},
		{Nullable(Object("Cat")), TruthyPred{}},
	}
	for _, tt := range tests {
		then := Intersect(h, tt.union, tt.pred)
		els := Negate(h, tt.union, tt.pred)
		total := len(then.Atomics) + len(els.Atomics)
		if total < len(tt.union.Atomics) {
			t.Errorf("partition lost members: %s under %s -> then %s, else %s",
				tt.union, tt.pred, then, els)
		}
		// 两半合并应覆盖原联合
		recombined := Combine(then, els)
		if !IsSubtype(h, recombined, tt.union) {
			t.Errorf("partition grew beyond original: %s under %s -> %s",
				tt.union, tt.pred, recombined)
		}
	}
}

func TestNarrowLiteralEquality(t *testing.T) {
	h := testHierarchy{}

	lit := TLiteral{Kind: KindString, Value: "on"}
	u := String()

	then := Intersect(h, u, LiteralPred{Lit: lit})
	if !then.Equals(StringLiteral("on")) {
		t.Errorf("literal intersect: got %s, want 'on'", then)
	}

	// bool 的字面量取反翻转
	els := Negate(h, Bool(), LiteralPred{Lit: TLiteral{Kind: KindBool, Value: "true"}})
	if !els.Equals(BoolLiteral(false)) {
		t.Errorf("bool literal negate: got %s, want false", els)
	}
}

func TestNarrowBottomUnreachable(t *testing.T) {
	h := testHierarchy{}

	// string 按 is null 收窄得到 nothing
	got := Intersect(h, String(), NullPred{})
	if !got.IsNever() {
		t.Errorf("string is null should be nothing, got %s", got)
	}
}

func TestClassConstResolution(t *testing.T) {
	h := testHierarchy{}

	ref := NewUnion(TClassConst{Class: "Box", Const: "TKey"})
	if !IsSubtype(h, ref, Arraykey()) {
		t.Errorf("Box::TKey resolves to int, should be subtype of arraykey")
	}
	if IsSubtype(h, ref, String()) {
		t.Errorf("Box::TKey resolves to int, should not be subtype of string")
	}
}

func TestUnionStringForms(t *testing.T) {
	tests := []struct {
		u    *Union
		want string
	}{
		{Never(), "nothing"},
		{Nullable(String()), "?string"},
		{Combine(Int(), String()), "int|string"},
		{Object("Cat"), "Cat"},
	}
	for _, tt := range tests {
		if got := tt.u.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
