package types

// ============================================================================
// 子类型判定
// ============================================================================

// IsSubtype 判断联合 a 是否为联合 b 的子类型
//
// 定义：a 的每个原子成员都能在 b 中找到某个原子成员作为其超类型。
// 空联合（nothing）是一切联合的子类型。
func IsSubtype(h Hierarchy, a, b *Union) bool {
	for _, atomA := range a.Atomics {
		if !atomicHasSupertypeIn(h, atomA, b) {
			return false
		}
	}
	return true
}

// atomicHasSupertypeIn 判断原子类型在联合中是否存在超类型
func atomicHasSupertypeIn(h Hierarchy, a Atomic, b *Union) bool {
	for _, atomB := range b.Atomics {
		if IsAtomicSubtype(h, a, atomB) {
			return true
		}
	}
	return false
}

// IsAtomicSubtype 判断原子类型 a 是否为原子类型 b 的子类型
func IsAtomicSubtype(h Hierarchy, a, b Atomic) bool {
	// never 是一切的子类型；mixed 是一切的超类型
	if _, ok := a.(TNever); ok {
		return true
	}
	if _, ok := b.(TMixed); ok {
		return true
	}
	if _, ok := a.(TMixed); ok {
		return false
	}

	// 类型常量引用延迟解析后递归判定
	if tc, ok := a.(TClassConst); ok {
		resolved, found := h.ResolveTypeConstant(tc.Class, tc.Const)
		if !found {
			return false
		}
		return IsSubtype(h, resolved, NewUnion(b))
	}
	if tc, ok := b.(TClassConst); ok {
		resolved, found := h.ResolveTypeConstant(tc.Class, tc.Const)
		if !found {
			return false
		}
		return atomicHasSupertypeIn(h, a, resolved)
	}

	switch y := b.(type) {
	case TScalar:
		return isSubtypeOfScalar(a, y)

	case TLiteral:
		x, ok := a.(TLiteral)
		return ok && x.Kind == y.Kind && x.Value == y.Value

	case TNamedObject:
		return isSubtypeOfObject(h, a, y)

	case TGenericParam:
		x, ok := a.(TGenericParam)
		return ok && x.Name == y.Name && x.DefID == y.DefID

	case TContainer:
		x, ok := a.(TContainer)
		if !ok || x.Kind != y.Kind {
			return false
		}
		// 容器按读语义协变
		if x.KeyType != nil && y.KeyType != nil && !IsSubtype(h, x.KeyType, y.KeyType) {
			return false
		}
		return IsSubtype(h, x.ValueType, y.ValueType)

	case TShape:
		x, ok := a.(TShape)
		return ok && isShapeSubtype(h, x, y)

	case TTuple:
		x, ok := a.(TTuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return false
		}
		for i := range x.Elems {
			if !IsSubtype(h, x.Elems[i], y.Elems[i]) {
				return false
			}
		}
		return true

	case TClosure:
		x, ok := a.(TClosure)
		if !ok || len(x.Params) != len(y.Params) || x.Variadic != y.Variadic {
			return false
		}
		// 参数逆变，返回值协变
		for i := range x.Params {
			if !IsSubtype(h, y.Params[i], x.Params[i]) {
				return false
			}
		}
		return IsSubtype(h, x.Return, y.Return)

	case TEnumCase:
		x, ok := a.(TEnumCase)
		return ok && x.Enum == y.Enum && x.Case == y.Case

	case TNever:
		_, ok := a.(TNever)
		return ok
	}
	return false
}

// isSubtypeOfScalar 判断原子类型是否为标量 b 的子类型
func isSubtypeOfScalar(a Atomic, b TScalar) bool {
	switch x := a.(type) {
	case TScalar:
		if x.Kind == b.Kind {
			return true
		}
		switch b.Kind {
		case KindNum:
			return x.Kind == KindInt || x.Kind == KindFloat
		case KindArraykey:
			return x.Kind == KindInt || x.Kind == KindString
		case KindNonnull:
			return x.Kind != KindNull && x.Kind != KindVoid
		}
		return false

	case TLiteral:
		switch b.Kind {
		case x.Kind, KindNonnull:
			return true
		case KindNum:
			return x.Kind == KindInt || x.Kind == KindFloat
		case KindArraykey:
			return x.Kind == KindInt || x.Kind == KindString
		}
		return false

	case TGenericParam:
		// 泛型参数通过上界参与标量判定
		if x.UpperBound != nil {
			return IsSubtype(nil, x.UpperBound, NewUnion(b))
		}
		return false

	case TEnumCase:
		// 枚举底层值是 arraykey
		return b.Kind == KindArraykey || b.Kind == KindNonnull

	case TContainer, TShape, TTuple, TClosure, TNamedObject:
		return b.Kind == KindNonnull
	}
	return false
}

// isSubtypeOfObject 判断原子类型是否为具名对象 b 的子类型
func isSubtypeOfObject(h Hierarchy, a Atomic, b TNamedObject) bool {
	switch x := a.(type) {
	case TNamedObject:
		if b.Exact && x.Name != b.Name {
			return false
		}
		if x.Name != b.Name && (h == nil || !h.IsInstanceOf(x.Name, b.Name)) {
			return false
		}
		if len(b.TypeParams) == 0 {
			return true
		}
		if len(x.TypeParams) != len(b.TypeParams) {
			// 实参数量不一致时退化为名义判定
			return true
		}
		return genericArgsCompatible(h, b.Name, x.TypeParams, b.TypeParams)

	case TEnumCase:
		// 枚举成员是其枚举类型的实例
		if x.Enum == b.Name {
			return true
		}
		return h != nil && h.IsInstanceOf(x.Enum, b.Name)

	case TGenericParam:
		if x.UpperBound != nil {
			return IsSubtype(h, x.UpperBound, NewUnion(b))
		}
		return false

	case TClosure:
		// 闭包是 Closure 基类的实例
		return b.Name == "Closure"
	}
	return false
}

// genericArgsCompatible 按声明型变逐槽位比较泛型实参
func genericArgsCompatible(h Hierarchy, class string, child, parent []*Union) bool {
	var decls []GenericParamDef
	if h != nil {
		decls = h.GenericParams(class)
	}
	for i := range child {
		variance := Invariant
		if i < len(decls) {
			variance = decls[i].Variance
		}
		switch variance {
		case Covariant:
			if !IsSubtype(h, child[i], parent[i]) {
				return false
			}
		case Contravariant:
			if !IsSubtype(h, parent[i], child[i]) {
				return false
			}
		default:
			if !IsSubtype(h, child[i], parent[i]) || !IsSubtype(h, parent[i], child[i]) {
				return false
			}
		}
	}
	return true
}

// isShapeSubtype 判断形状 a 是否为形状 b 的子类型
//
// 规则：
// 1. b 的必选字段必须在 a 中必选且类型兼容
// 2. b 的可选字段在 a 中出现时类型必须兼容
// 3. b 封闭时 a 必须封闭且不含 b 之外的字段
func isShapeSubtype(h Hierarchy, a, b TShape) bool {
	for _, fb := range b.Fields {
		fa, ok := a.FieldByKey(fb.FieldKey())
		if !ok {
			if !fb.Optional {
				return false
			}
			continue
		}
		if !fb.Optional && fa.Optional {
			return false
		}
		if !IsSubtype(h, fa.Type, fb.Type) {
			return false
		}
	}
	if !b.Open {
		if a.Open {
			return false
		}
		for _, fa := range a.Fields {
			if _, ok := b.FieldByKey(fa.FieldKey()); !ok {
				return false
			}
		}
	}
	return true
}
