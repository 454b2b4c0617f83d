package types

import (
	"sort"
	"strings"
)

// ============================================================================
// Union - 联合类型
// ============================================================================

// Union 联合类型：原子类型的有序去重集合
//
// 不变式：
// 1. 空集合表示底类型 nothing，是一切联合的子类型
// 2. 含 mixed 的集合吸收其他所有成员
// 3. 成员顺序为插入顺序，只影响诊断输出的确定性，不影响子类型判定
//
// Union 一经构造即视为只读；所有代数操作返回新的 Union。
type Union struct {
	Atomics []Atomic // 有序去重的原子类型成员

	// PossiblyUndefined 路径在部分分支中未定义
	PossiblyUndefined bool

	// FromDocblock 类型仅来自文档块注释，未经签名验证
	FromDocblock bool

	// IgnoreNullable 抑制对该类型的可空性诊断
	IgnoreNullable bool
}

// NewUnion 从原子类型列表创建联合类型（按 Key 去重，保持插入顺序）
func NewUnion(atomics ...Atomic) *Union {
	u := &Union{}
	seen := make(map[string]bool, len(atomics))
	for _, a := range atomics {
		k := a.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		u.Atomics = append(u.Atomics, a)
	}
	return u
}

// ============================================================================
// 常用构造器
// ============================================================================

// Never 返回底类型 nothing
func Never() *Union { return &Union{} }

// Mixed 返回顶类型 mixed
func Mixed() *Union { return NewUnion(TMixed{}) }

// Int 返回 int
func Int() *Union { return NewUnion(TScalar{Kind: KindInt}) }

// Float 返回 float
func Float() *Union { return NewUnion(TScalar{Kind: KindFloat}) }

// Bool 返回 bool
func Bool() *Union { return NewUnion(TScalar{Kind: KindBool}) }

// String 返回 string
func String() *Union { return NewUnion(TScalar{Kind: KindString}) }

// Null 返回 null
func Null() *Union { return NewUnion(TScalar{Kind: KindNull}) }

// Void 返回 void
func Void() *Union { return NewUnion(TScalar{Kind: KindVoid}) }

// Arraykey 返回 arraykey
func Arraykey() *Union { return NewUnion(TScalar{Kind: KindArraykey}) }

// Num 返回 num
func Num() *Union { return NewUnion(TScalar{Kind: KindNum}) }

// Nullable 返回 ?inner（inner 与 null 的联合）
func Nullable(inner *Union) *Union {
	atomics := make([]Atomic, 0, len(inner.Atomics)+1)
	atomics = append(atomics, inner.Atomics...)
	atomics = append(atomics, TScalar{Kind: KindNull})
	return NewUnion(atomics...)
}

// Object 返回无泛型实参的具名对象类型
func Object(name string) *Union {
	return NewUnion(TNamedObject{Name: name})
}

// IntLiteral 返回 int 字面量类型
func IntLiteral(v string) *Union {
	return NewUnion(TLiteral{Kind: KindInt, Value: v})
}

// StringLiteral 返回 string 字面量类型
func StringLiteral(v string) *Union {
	return NewUnion(TLiteral{Kind: KindString, Value: v})
}

// BoolLiteral 返回 bool 字面量类型
func BoolLiteral(v bool) *Union {
	s := "false"
	if v {
		s = "true"
	}
	return NewUnion(TLiteral{Kind: KindBool, Value: s})
}

// ============================================================================
// 查询
// ============================================================================

// IsNever 判断是否为底类型（空联合）
func (u *Union) IsNever() bool { return len(u.Atomics) == 0 }

// IsMixed 判断是否含 mixed 成员
func (u *Union) IsMixed() bool {
	for _, a := range u.Atomics {
		if _, ok := a.(TMixed); ok {
			return true
		}
	}
	return false
}

// IsNullable 判断联合是否含 null 成员
func (u *Union) IsNullable() bool {
	for _, a := range u.Atomics {
		if s, ok := a.(TScalar); ok && s.Kind == KindNull {
			return true
		}
	}
	return false
}

// IsSingle 判断联合是否恰有一个成员
func (u *Union) IsSingle() bool { return len(u.Atomics) == 1 }

// Contains 判断联合是否含指定 Key 的成员
func (u *Union) Contains(key string) bool {
	for _, a := range u.Atomics {
		if a.Key() == key {
			return true
		}
	}
	return false
}

// WithoutNull 返回去掉 null 成员的新联合
func (u *Union) WithoutNull() *Union {
	out := u.cloneFlags()
	for _, a := range u.Atomics {
		if s, ok := a.(TScalar); ok && s.Kind == KindNull {
			continue
		}
		out.Atomics = append(out.Atomics, a)
	}
	return out
}

// Clone 返回联合的浅拷贝（成员共享，标志复制）
func (u *Union) Clone() *Union {
	out := u.cloneFlags()
	out.Atomics = append(out.Atomics, u.Atomics...)
	return out
}

// cloneFlags 复制标志位但不复制成员
func (u *Union) cloneFlags() *Union {
	return &Union{
		PossiblyUndefined: u.PossiblyUndefined,
		FromDocblock:      u.FromDocblock,
		IgnoreNullable:    u.IgnoreNullable,
	}
}

// ============================================================================
// 标识与相等
// ============================================================================

// Key 返回联合的插入序标识
func (u *Union) Key() string {
	if len(u.Atomics) == 0 {
		return "nothing"
	}
	parts := make([]string, len(u.Atomics))
	for i, a := range u.Atomics {
		parts[i] = a.Key()
	}
	key := strings.Join(parts, "|")
	if u.PossiblyUndefined {
		key += "?undef"
	}
	return key
}

// SortedKey 返回与成员顺序无关的规范标识，用于不动点比较
func (u *Union) SortedKey() string {
	if len(u.Atomics) == 0 {
		return "nothing"
	}
	parts := make([]string, len(u.Atomics))
	for i, a := range u.Atomics {
		parts[i] = a.Key()
	}
	sort.Strings(parts)
	key := strings.Join(parts, "|")
	if u.PossiblyUndefined {
		key += "?undef"
	}
	return key
}

// Equals 判断两个联合是否结构相等（忽略成员顺序）
func (u *Union) Equals(other *Union) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.SortedKey() == other.SortedKey()
}

// String 返回联合的显示表示
func (u *Union) String() string {
	if len(u.Atomics) == 0 {
		return "nothing"
	}
	// ?T 形式优先
	if len(u.Atomics) == 2 && u.IsNullable() {
		for _, a := range u.Atomics {
			if s, ok := a.(TScalar); ok && s.Kind == KindNull {
				continue
			}
			return "?" + a.String()
		}
	}
	parts := make([]string, len(u.Atomics))
	for i, a := range u.Atomics {
		parts[i] = a.String()
	}
	return strings.Join(parts, "|")
}
