package types

// ============================================================================
// 层级索引接口
// ============================================================================

// Variance 泛型参数的型变声明
type Variance int

const (
	Invariant     Variance = iota // 不变
	Covariant                     // 协变 (+T)
	Contravariant                 // 逆变 (-T)
)

func (v Variance) String() string {
	switch v {
	case Covariant:
		return "covariant"
	case Contravariant:
		return "contravariant"
	default:
		return "invariant"
	}
}

// GenericParamDef 类/函数声明的单个泛型参数
type GenericParamDef struct {
	Name     string   // 参数名
	Variance Variance // 型变
	Bound    *Union   // 上界（nil 表示 mixed）
}

// Hierarchy 类层级索引的只读查询接口
//
// 类型代数只通过 id 查询外部索引，原子类型之间不持有直接引用，
// 因此递归类型和循环继承不会造成所有权环。
type Hierarchy interface {
	// ClassLikeExists 判断类/接口/枚举是否存在
	ClassLikeExists(name string) bool

	// IsInstanceOf 判断 child 是否为 parent 的子类型能力
	// （含自身、继承链和接口实现）
	IsInstanceOf(child, parent string) bool

	// GenericParams 返回类的泛型参数声明（按声明顺序）
	GenericParams(name string) []GenericParamDef

	// IsSealed 判断类的子类集合是否封闭声明
	IsSealed(name string) bool

	// DirectChildren 返回封闭类的直接子类列表
	DirectChildren(name string) []string

	// ResolveTypeConstant 解析类类型常量 Class::CONST 指代的类型
	ResolveTypeConstant(class, constName string) (*Union, bool)

	// EnumExists 判断枚举是否存在且含有指定成员
	EnumExists(enum, caseName string) bool
}
