package types

// ============================================================================
// 谓词与收窄
// ============================================================================
//
// Intersect 和 Negate 是断言归约的两半：对任意谓词 P，
// 联合 A 的每个原子成员要么（可能经变换后）落入 Intersect(A,P)，
// 要么落入 Negate(A,P)，不会被静默丢弃。

// Predicate 收窄谓词
type Predicate interface {
	predicate()

	// String 返回谓词的显示表示（用于诊断）
	String() string
}

// IsTypePred 类型测试谓词（$x is T）
type IsTypePred struct {
	Target *Union // 目标类型
}

func (p IsTypePred) predicate()     {}
func (p IsTypePred) String() string { return "is " + p.Target.String() }

// TruthyPred 真值测试谓词（if ($x)）
type TruthyPred struct{}

func (p TruthyPred) predicate()     {}
func (p TruthyPred) String() string { return "truthy" }

// NullPred 空值测试谓词（$x === null）
type NullPred struct{}

func (p NullPred) predicate()     {}
func (p NullPred) String() string { return "is null" }

// LiteralPred 字面量相等谓词（$x === 'a'）
type LiteralPred struct {
	Lit TLiteral // 比较的字面量
}

func (p LiteralPred) predicate()     {}
func (p LiteralPred) String() string { return "=== " + p.Lit.String() }

// ============================================================================
// Intersect - 按谓词为真收窄
// ============================================================================

// Intersect 返回联合中可能满足谓词的部分（真分支类型）
func Intersect(h Hierarchy, u *Union, p Predicate) *Union {
	out := u.cloneFlags()
	out.PossiblyUndefined = false

	switch pred := p.(type) {
	case IsTypePred:
		for _, a := range u.Atomics {
			out.Atomics = appendIntersected(out.Atomics, intersectWithType(h, a, pred.Target)...)
		}

	case TruthyPred:
		for _, a := range u.Atomics {
			if t, ok := truthyPart(a); ok {
				out.Atomics = appendIntersected(out.Atomics, t...)
			}
		}

	case NullPred:
		for _, a := range u.Atomics {
			switch x := a.(type) {
			case TScalar:
				if x.Kind == KindNull {
					out.Atomics = appendIntersected(out.Atomics, a)
				}
			case TMixed:
				out.Atomics = appendIntersected(out.Atomics, TScalar{Kind: KindNull})
			}
		}

	case LiteralPred:
		for _, a := range u.Atomics {
			switch x := a.(type) {
			case TLiteral:
				if x == pred.Lit {
					out.Atomics = appendIntersected(out.Atomics, a)
				}
			case TScalar:
				if x.Kind == pred.Lit.Kind {
					out.Atomics = appendIntersected(out.Atomics, pred.Lit)
				}
			case TMixed:
				out.Atomics = appendIntersected(out.Atomics, pred.Lit)
			case TEnumCase:
				// 枚举成员与其底层字面量可能相等，保守保留
				out.Atomics = appendIntersected(out.Atomics, a)
			}
		}
	}
	return out
}

// Negate - 按谓词为假收窄
//
// 对封闭层级做精确取反：从超类联合中排除 is B 时，
// 重新加入 B 的已声明兄弟子类而非丢弃信息。
func Negate(h Hierarchy, u *Union, p Predicate) *Union {
	out := u.cloneFlags()

	switch pred := p.(type) {
	case IsTypePred:
		for _, a := range u.Atomics {
			out.Atomics = appendIntersected(out.Atomics, negateType(h, a, pred.Target)...)
		}

	case TruthyPred:
		for _, a := range u.Atomics {
			if f, ok := falsyPart(a); ok {
				out.Atomics = appendIntersected(out.Atomics, f...)
			}
		}

	case NullPred:
		for _, a := range u.Atomics {
			switch x := a.(type) {
			case TScalar:
				if x.Kind == KindNull {
					continue
				}
				out.Atomics = appendIntersected(out.Atomics, a)
			case TMixed:
				out.Atomics = appendIntersected(out.Atomics, TScalar{Kind: KindNonnull})
			default:
				out.Atomics = appendIntersected(out.Atomics, a)
			}
		}

	case LiteralPred:
		for _, a := range u.Atomics {
			switch x := a.(type) {
			case TLiteral:
				if x == pred.Lit {
					continue
				}
				out.Atomics = appendIntersected(out.Atomics, a)
			case TScalar:
				// bool 只有两个值，排除一个得到另一个
				if x.Kind == KindBool && pred.Lit.Kind == KindBool {
					flipped := "true"
					if pred.Lit.Value == "true" {
						flipped = "false"
					}
					out.Atomics = appendIntersected(out.Atomics, TLiteral{Kind: KindBool, Value: flipped})
					continue
				}
				out.Atomics = appendIntersected(out.Atomics, a)
			default:
				out.Atomics = appendIntersected(out.Atomics, a)
			}
		}
	}
	return out
}

// appendIntersected 按 Key 去重追加原子类型
func appendIntersected(list []Atomic, atomics ...Atomic) []Atomic {
	for _, a := range atomics {
		dup := false
		for _, existing := range list {
			if existing.Key() == a.Key() {
				dup = true
				break
			}
		}
		if !dup {
			list = append(list, a)
		}
	}
	return list
}

// intersectWithType 求单个原子类型与目标联合的交集成员
func intersectWithType(h Hierarchy, a Atomic, target *Union) []Atomic {
	if _, ok := a.(TMixed); ok {
		// mixed 收窄为目标本身
		return target.Atomics
	}
	var result []Atomic
	for _, t := range target.Atomics {
		switch {
		case IsAtomicSubtype(h, a, t):
			// a 本就更精确，保留 a
			result = appendIntersected(result, a)
		case IsAtomicSubtype(h, t, a):
			// 目标更精确，收窄到目标成员
			result = appendIntersected(result, t)
		default:
			if x, okA := a.(TNamedObject); okA {
				if y, okT := t.(TNamedObject); okT && h != nil && classesMayOverlap(h, x.Name, y.Name) {
					// 接口与类可能交叠，保留更具体的一侧
					result = appendIntersected(result, t)
				}
			}
		}
	}
	return result
}

// classesMayOverlap 判断两个类名是否可能有公共子类型
//
// 任一方为接口时无法排除交叠，保守返回 true。
func classesMayOverlap(h Hierarchy, a, b string) bool {
	if h.IsInstanceOf(a, b) || h.IsInstanceOf(b, a) {
		return true
	}
	return false
}

// negateType 从单个原子类型中排除目标联合
func negateType(h Hierarchy, a Atomic, target *Union) []Atomic {
	// a 完全被目标覆盖时整个排除
	if atomicHasSupertypeIn(h, a, target) {
		return nil
	}

	// 封闭层级的精确取反：展开为直接子类，逐个递归排除
	if obj, ok := a.(TNamedObject); ok && h != nil && h.IsSealed(obj.Name) {
		overlaps := false
		for _, t := range target.Atomics {
			if tObj, okT := t.(TNamedObject); okT && h.IsInstanceOf(tObj.Name, obj.Name) {
				overlaps = true
				break
			}
		}
		if overlaps {
			var result []Atomic
			for _, child := range h.DirectChildren(obj.Name) {
				childAtom := TNamedObject{Name: child}
				result = appendIntersected(result, negateType(h, childAtom, target)...)
			}
			return result
		}
	}

	// 标量超类的精确取反
	if s, ok := a.(TScalar); ok {
		if parts, ok := scalarComplement(s, target); ok {
			return parts
		}
	}

	return []Atomic{a}
}

// scalarComplement 求复合标量相对目标的补集
//
// arraykey = int|string，num = int|float；排除其中一半得到另一半。
func scalarComplement(s TScalar, target *Union) ([]Atomic, bool) {
	var halves [2]ScalarKind
	switch s.Kind {
	case KindArraykey:
		halves = [2]ScalarKind{KindInt, KindString}
	case KindNum:
		halves = [2]ScalarKind{KindInt, KindFloat}
	default:
		return nil, false
	}
	for _, t := range target.Atomics {
		ts, ok := t.(TScalar)
		if !ok {
			continue
		}
		if ts.Kind == halves[0] {
			return []Atomic{TScalar{Kind: halves[1]}}, true
		}
		if ts.Kind == halves[1] {
			return []Atomic{TScalar{Kind: halves[0]}}, true
		}
	}
	return nil, false
}

// truthyPart 返回原子类型在布尔真分支中的剩余形态
func truthyPart(a Atomic) ([]Atomic, bool) {
	switch x := a.(type) {
	case TScalar:
		switch x.Kind {
		case KindNull, KindVoid:
			return nil, false
		case KindBool:
			return []Atomic{TLiteral{Kind: KindBool, Value: "true"}}, true
		}
		return []Atomic{a}, true
	case TLiteral:
		if x.IsFalsy() {
			return nil, false
		}
		return []Atomic{a}, true
	}
	return []Atomic{a}, true
}

// falsyPart 返回原子类型在布尔假分支中的剩余形态
//
// 对象永远为真值，在假分支中被排除；容器可能为空，保守保留。
func falsyPart(a Atomic) ([]Atomic, bool) {
	switch x := a.(type) {
	case TScalar:
		switch x.Kind {
		case KindBool:
			return []Atomic{TLiteral{Kind: KindBool, Value: "false"}}, true
		case KindInt:
			return []Atomic{TLiteral{Kind: KindInt, Value: "0"}}, true
		case KindFloat:
			return []Atomic{TLiteral{Kind: KindFloat, Value: "0.0"}}, true
		case KindString:
			return []Atomic{
				TLiteral{Kind: KindString, Value: ""},
				TLiteral{Kind: KindString, Value: "0"},
			}, true
		case KindArraykey:
			return []Atomic{
				TLiteral{Kind: KindInt, Value: "0"},
				TLiteral{Kind: KindString, Value: ""},
				TLiteral{Kind: KindString, Value: "0"},
			}, true
		case KindNonnull:
			return []Atomic{a}, true
		}
		return []Atomic{a}, true
	case TLiteral:
		if x.IsFalsy() {
			return []Atomic{a}, true
		}
		return nil, false
	case TNamedObject, TClosure, TEnumCase:
		return nil, false
	}
	return []Atomic{a}, true
}
