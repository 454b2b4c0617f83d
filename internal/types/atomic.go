// Package types 实现 Sola 类型系统的值类型表示和类型代数
//
// 类型模型分两层：
// 1. Atomic - 单个具体类型变体（标量、字面量、对象、容器、形状等）
// 2. Union  - 原子类型的有序去重集合，是表达式分析的工作类型
//
// 类型代数（合并、子类型判定、收窄、取反）见 combine.go / subtype.go / narrow.go。
package types

import (
	"fmt"
	"strings"
)

// ============================================================================
// 标量种类
// ============================================================================

// ScalarKind 标量类型种类
type ScalarKind int

const (
	KindInt      ScalarKind = iota // int
	KindFloat                      // float
	KindBool                       // bool
	KindString                     // string
	KindArraykey                   // arraykey (int|string 的超类)
	KindNum                        // num (int|float 的超类)
	KindNull                       // null
	KindVoid                       // void
	KindNonnull                    // nonnull (除 null 外的一切)
)

func (k ScalarKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindArraykey:
		return "arraykey"
	case KindNum:
		return "num"
	case KindNull:
		return "null"
	case KindVoid:
		return "void"
	case KindNonnull:
		return "nonnull"
	default:
		return fmt.Sprintf("ScalarKind(%d)", k)
	}
}

// ============================================================================
// Atomic - 原子类型接口
// ============================================================================

// Atomic 是所有原子类型变体的接口
type Atomic interface {
	// Key 返回原子类型的唯一标识，用于联合类型去重
	Key() string

	// String 返回类型的显示表示
	String() string

	atomicType()
}

// ============================================================================
// 顶/底类型
// ============================================================================

// TNever 底类型，空联合的唯一成员语义（nothing）
type TNever struct{}

func (t TNever) Key() string    { return "never" }
func (t TNever) String() string { return "never" }
func (t TNever) atomicType()    {}

// TMixed 顶类型，任何值都属于 mixed
type TMixed struct{}

func (t TMixed) Key() string    { return "mixed" }
func (t TMixed) String() string { return "mixed" }
func (t TMixed) atomicType()    {}

// ============================================================================
// 标量与字面量
// ============================================================================

// TScalar 标量类型（int、string、null 等）
type TScalar struct {
	Kind ScalarKind // 标量种类
}

func (t TScalar) Key() string    { return t.Kind.String() }
func (t TScalar) String() string { return t.Kind.String() }
func (t TScalar) atomicType()    {}

// TLiteral 字面量类型（标量种类 + 精确值）
//
// 是其对应标量类型的子类型；Value 保存字面量的规范文本形式，
// 例如 int 3 保存 "3"，string "a" 保存 "a"。
type TLiteral struct {
	Kind  ScalarKind // 所属标量种类（仅 int/float/bool/string）
	Value string     // 规范文本值
}

func (t TLiteral) Key() string {
	return fmt.Sprintf("literal-%s(%s)", t.Kind, t.Value)
}

func (t TLiteral) String() string {
	if t.Kind == KindString {
		return fmt.Sprintf("%q", t.Value)
	}
	return t.Value
}
func (t TLiteral) atomicType() {}

// Widened 返回字面量加宽后的标量类型
func (t TLiteral) Widened() TScalar {
	return TScalar{Kind: t.Kind}
}

// IsFalsy 判断字面量在布尔上下文中是否为假值
func (t TLiteral) IsFalsy() bool {
	switch t.Kind {
	case KindBool:
		return t.Value == "false"
	case KindInt:
		return t.Value == "0"
	case KindFloat:
		return t.Value == "0" || t.Value == "0.0"
	case KindString:
		return t.Value == "" || t.Value == "0"
	}
	return false
}

// ============================================================================
// 对象与泛型
// ============================================================================

// TNamedObject 具名类/接口实例类型
type TNamedObject struct {
	Name       string   // 类或接口的完全限定名
	TypeParams []*Union // 泛型实参（按声明顺序，可为空）

	// Exact 表示 this 收窄后的精确类型：值一定是 Name 本身，
	// 不可能是其子类。
	Exact bool
}

func (t TNamedObject) Key() string {
	var sb strings.Builder
	if t.Exact {
		sb.WriteString("exact-")
	}
	sb.WriteString("object(")
	sb.WriteString(t.Name)
	if len(t.TypeParams) > 0 {
		sb.WriteString("<")
		for i, p := range t.TypeParams {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(p.SortedKey())
		}
		sb.WriteString(">")
	}
	sb.WriteString(")")
	return sb.String()
}

func (t TNamedObject) String() string {
	var sb strings.Builder
	sb.WriteString(t.Name)
	if len(t.TypeParams) > 0 {
		sb.WriteString("<")
		for i, p := range t.TypeParams {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		sb.WriteString(">")
	}
	return sb.String()
}
func (t TNamedObject) atomicType() {}

// TGenericParam 泛型参数占位类型
type TGenericParam struct {
	Name       string // 参数名，如 T
	DefID      string // 声明该参数的实体（类名或函数名）
	UpperBound *Union // 上界（未声明时为 mixed）
}

func (t TGenericParam) Key() string {
	return fmt.Sprintf("generic(%s@%s)", t.Name, t.DefID)
}

func (t TGenericParam) String() string { return t.Name }
func (t TGenericParam) atomicType()    {}

// ============================================================================
// 容器、形状、元组
// ============================================================================

// ContainerKind 容器种类
type ContainerKind int

const (
	ContainerVec    ContainerKind = iota // vec 有序列表
	ContainerDict                        // dict 键值映射
	ContainerKeyset                      // keyset 键集合
)

func (k ContainerKind) String() string {
	switch k {
	case ContainerVec:
		return "vec"
	case ContainerDict:
		return "dict"
	case ContainerKeyset:
		return "keyset"
	default:
		return fmt.Sprintf("ContainerKind(%d)", k)
	}
}

// TContainer 容器类型（vec/dict/keyset）
type TContainer struct {
	Kind      ContainerKind // 容器种类
	KeyType   *Union        // 键类型（vec 为 nil）
	ValueType *Union        // 值类型
}

func (t TContainer) Key() string {
	if t.KeyType == nil {
		return fmt.Sprintf("%s<%s>", t.Kind, t.ValueType.SortedKey())
	}
	return fmt.Sprintf("%s<%s,%s>", t.Kind, t.KeyType.SortedKey(), t.ValueType.SortedKey())
}

func (t TContainer) String() string {
	if t.KeyType == nil {
		return fmt.Sprintf("%s<%s>", t.Kind, t.ValueType.String())
	}
	return fmt.Sprintf("%s<%s, %s>", t.Kind, t.KeyType.String(), t.ValueType.String())
}
func (t TContainer) atomicType() {}

// ShapeField 形状的单个字段
type ShapeField struct {
	Key      string // 字段键（字面量文本，或枚举成员名）
	EnumName string // 键来自枚举成员时的枚举名（普通字面量键为空）
	Optional bool   // 是否可选
	Type     *Union // 字段类型
}

// FieldKey 返回字段键的规范表示
func (f ShapeField) FieldKey() string {
	if f.EnumName != "" {
		return f.EnumName + "::" + f.Key
	}
	return f.Key
}

// TShape 形状类型：键到字段的有序映射
type TShape struct {
	Fields []ShapeField // 字段（保持声明顺序）

	// Open 表示形状开放：可能存在未列出的 string 键，类型未知
	Open bool
}

// FieldByKey 按键查找字段
func (t TShape) FieldByKey(key string) (ShapeField, bool) {
	for _, f := range t.Fields {
		if f.FieldKey() == key {
			return f, true
		}
	}
	return ShapeField{}, false
}

func (t TShape) Key() string {
	var sb strings.Builder
	sb.WriteString("shape(")
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteString(",")
		}
		if f.Optional {
			sb.WriteString("?")
		}
		sb.WriteString(f.FieldKey())
		sb.WriteString(":")
		sb.WriteString(f.Type.SortedKey())
	}
	if t.Open {
		sb.WriteString(",...")
	}
	sb.WriteString(")")
	return sb.String()
}

func (t TShape) String() string {
	var sb strings.Builder
	sb.WriteString("shape(")
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		if f.Optional {
			sb.WriteString("?")
		}
		sb.WriteString("'")
		sb.WriteString(f.FieldKey())
		sb.WriteString("' => ")
		sb.WriteString(f.Type.String())
	}
	if t.Open {
		sb.WriteString(", ...")
	}
	sb.WriteString(")")
	return sb.String()
}
func (t TShape) atomicType() {}

// TTuple 定长元组类型
type TTuple struct {
	Elems []*Union // 按槽位顺序的元素类型
}

func (t TTuple) Key() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.SortedKey()
	}
	return "tuple(" + strings.Join(parts, ",") + ")"
}

func (t TTuple) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
func (t TTuple) atomicType() {}

// ============================================================================
// 闭包
// ============================================================================

// TClosure 闭包类型
type TClosure struct {
	Params   []*Union // 参数类型（按顺序）
	Variadic bool     // 最后一个参数是否为变长参数
	Return   *Union   // 返回类型
}

func (t TClosure) Key() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.SortedKey()
	}
	variadic := ""
	if t.Variadic {
		variadic = "..."
	}
	return fmt.Sprintf("closure(%s%s):%s", strings.Join(parts, ","), variadic, t.Return.SortedKey())
}

func (t TClosure) String() string {
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	variadic := ""
	if t.Variadic {
		variadic = "..."
	}
	return fmt.Sprintf("(function(%s%s): %s)", strings.Join(parts, ", "), variadic, t.Return.String())
}
func (t TClosure) atomicType() {}

// ============================================================================
// 延迟解析引用
// ============================================================================

// TClassConst 类类型常量引用（Class::CONST），按需对照层级索引解析
type TClassConst struct {
	Class string // 类名
	Const string // 常量名
}

func (t TClassConst) Key() string    { return "typeconst(" + t.Class + "::" + t.Const + ")" }
func (t TClassConst) String() string { return t.Class + "::" + t.Const }
func (t TClassConst) atomicType()    {}

// TEnumCase 枚举成员字面量
type TEnumCase struct {
	Enum string // 枚举名
	Case string // 成员名
}

func (t TEnumCase) Key() string    { return "enumcase(" + t.Enum + "::" + t.Case + ")" }
func (t TEnumCase) String() string { return t.Enum + "::" + t.Case }
func (t TEnumCase) atomicType()    {}
