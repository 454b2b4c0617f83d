package types

import "sort"

// ============================================================================
// Combine - 联合类型合并
// ============================================================================

// LiteralWidenLimit 同种字面量在联合中保留的最大个数，
// 超过后全部加宽为对应标量类型
const LiteralWidenLimit = 3

// Combine 合并两个联合类型（分支汇合时的并集语义）
//
// 满足交换律和结合律（以 SortedKey 度量）。成对合并规则：
// 1. 同种不同值的字面量超过上限时加宽为标量
// 2. 同类对象的泛型实参逐槽位递归合并
// 3. 形状按键合并，仅一侧存在的键标记为可选
// 4. 其余成员作为独立联合成员保留
func Combine(a, b *Union) *Union {
	atomics := make([]Atomic, 0, len(a.Atomics)+len(b.Atomics))
	atomics = append(atomics, a.Atomics...)
	atomics = append(atomics, b.Atomics...)

	out := &Union{
		Atomics:           normalizeAtomics(atomics),
		PossiblyUndefined: a.PossiblyUndefined || b.PossiblyUndefined,
		FromDocblock:      a.FromDocblock && b.FromDocblock,
		IgnoreNullable:    a.IgnoreNullable || b.IgnoreNullable,
	}
	return out
}

// CombineAll 按顺序合并多个联合类型
func CombineAll(unions ...*Union) *Union {
	if len(unions) == 0 {
		return Never()
	}
	result := unions[0]
	for _, u := range unions[1:] {
		result = Combine(result, u)
	}
	return result
}

// normalizeAtomics 去重并成对合并原子类型列表
func normalizeAtomics(atomics []Atomic) []Atomic {
	var result []Atomic
	for _, a := range atomics {
		if _, ok := a.(TNever); ok {
			continue // never 不贡献任何成员
		}
		if _, ok := a.(TMixed); ok {
			return []Atomic{TMixed{}} // mixed 吸收一切
		}
		result = insertAtomic(result, a)
	}
	result = absorbLiterals(result)
	result = widenLiterals(result)
	return result
}

// insertAtomic 将原子类型并入列表，能成对合并则合并
func insertAtomic(list []Atomic, a Atomic) []Atomic {
	for i, existing := range list {
		if existing.Key() == a.Key() {
			return list
		}
		if merged, ok := mergeAtomicPair(existing, a); ok {
			list[i] = merged
			return list
		}
	}
	return append(list, a)
}

// mergeAtomicPair 尝试成对合并两个原子类型
func mergeAtomicPair(a, b Atomic) (Atomic, bool) {
	switch x := a.(type) {
	case TNamedObject:
		y, ok := b.(TNamedObject)
		if !ok || x.Name != y.Name || x.Exact != y.Exact {
			return nil, false
		}
		if len(x.TypeParams) != len(y.TypeParams) {
			return nil, false
		}
		merged := TNamedObject{Name: x.Name, Exact: x.Exact}
		for i := range x.TypeParams {
			merged.TypeParams = append(merged.TypeParams, Combine(x.TypeParams[i], y.TypeParams[i]))
		}
		return merged, true

	case TContainer:
		y, ok := b.(TContainer)
		if !ok || x.Kind != y.Kind {
			return nil, false
		}
		merged := TContainer{Kind: x.Kind, ValueType: Combine(x.ValueType, y.ValueType)}
		if x.KeyType != nil && y.KeyType != nil {
			merged.KeyType = Combine(x.KeyType, y.KeyType)
		} else if x.KeyType != nil {
			merged.KeyType = x.KeyType
		} else {
			merged.KeyType = y.KeyType
		}
		return merged, true

	case TShape:
		y, ok := b.(TShape)
		if !ok {
			return nil, false
		}
		return mergeShapes(x, y), true

	case TTuple:
		y, ok := b.(TTuple)
		if !ok || len(x.Elems) != len(y.Elems) {
			return nil, false
		}
		merged := TTuple{Elems: make([]*Union, len(x.Elems))}
		for i := range x.Elems {
			merged.Elems[i] = Combine(x.Elems[i], y.Elems[i])
		}
		return merged, true
	}
	return nil, false
}

// mergeShapes 合并两个形状：公共键取类型并集，单侧键标记为可选
//
// 合并结果按键名排序，保证合并顺序无关。
func mergeShapes(a, b TShape) TShape {
	keys := make(map[string]bool)
	for _, f := range a.Fields {
		keys[f.FieldKey()] = true
	}
	for _, f := range b.Fields {
		keys[f.FieldKey()] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	merged := TShape{Open: a.Open || b.Open}
	for _, k := range sorted {
		fa, inA := a.FieldByKey(k)
		fb, inB := b.FieldByKey(k)
		switch {
		case inA && inB:
			merged.Fields = append(merged.Fields, ShapeField{
				Key:      fa.Key,
				EnumName: fa.EnumName,
				Optional: fa.Optional || fb.Optional,
				Type:     Combine(fa.Type, fb.Type),
			})
		case inA:
			f := fa
			f.Optional = true
			merged.Fields = append(merged.Fields, f)
		default:
			f := fb
			f.Optional = true
			merged.Fields = append(merged.Fields, f)
		}
	}
	return merged
}

// absorbLiterals 移除已被同种标量覆盖的字面量成员
func absorbLiterals(list []Atomic) []Atomic {
	scalars := make(map[ScalarKind]bool)
	for _, a := range list {
		if s, ok := a.(TScalar); ok {
			scalars[s.Kind] = true
		}
	}
	if len(scalars) == 0 {
		return list
	}
	var result []Atomic
	for _, a := range list {
		if lit, ok := a.(TLiteral); ok && scalars[lit.Kind] {
			continue
		}
		result = append(result, a)
	}
	return result
}

// widenLiterals 同种字面量超过上限时全部加宽为标量
//
// 枚举成员字面量不参与加宽。
func widenLiterals(list []Atomic) []Atomic {
	counts := make(map[ScalarKind]int)
	for _, a := range list {
		if lit, ok := a.(TLiteral); ok {
			counts[lit.Kind]++
		}
	}
	widen := make(map[ScalarKind]bool)
	for kind, n := range counts {
		if n > LiteralWidenLimit {
			widen[kind] = true
		}
	}
	if len(widen) == 0 {
		return list
	}
	var result []Atomic
	added := make(map[ScalarKind]bool)
	for _, a := range list {
		lit, ok := a.(TLiteral)
		if !ok || !widen[lit.Kind] {
			result = append(result, a)
			continue
		}
		if !added[lit.Kind] {
			added[lit.Kind] = true
			result = append(result, TScalar{Kind: lit.Kind})
		}
	}
	return result
}
