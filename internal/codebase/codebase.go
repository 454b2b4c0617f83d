// Package codebase 实现类层级与函数签名的只读索引
//
// 索引由外部的声明扫描器构建一次，分析阶段只读共享。
// 类之间通过名字查询邻接关系，不持有直接引用，
// 循环继承和递归类型不会造成所有权环。
package codebase

import (
	"sync"

	"github.com/tangzhangming/solastan/internal/types"
)

// ============================================================================
// 类与函数声明
// ============================================================================

// ClassLikeKind 类类实体的种类
type ClassLikeKind int

const (
	KindClass     ClassLikeKind = iota // class
	KindInterface                      // interface
	KindEnum                           // enum
)

// ClassLike 类/接口/枚举的声明信息
type ClassLike struct {
	Name       string                  // 完全限定名
	Kind       ClassLikeKind           // 实体种类
	Parents    []string                // 父类（含接口继承）
	Interfaces []string                // 实现的接口
	Sealed     bool                    // 子类集合是否封闭声明
	TypeParams []types.GenericParamDef // 泛型参数声明
	TypeConsts map[string]*types.Union // 类型常量
	Properties map[string]*types.Union // 属性声明类型
	Methods    map[string]*FunctionSig // 方法签名
	EnumCases  []string                // 枚举成员（仅枚举）
}

// ParamSig 函数参数签名
type ParamSig struct {
	Name     string       // 参数名（含 $ 前缀）
	Type     *types.Union // 声明类型（无声明时为 mixed）
	Variadic bool         // 是否变长参数
}

// FunctionSig 函数/方法签名
type FunctionSig struct {
	Name         string       // 函数名或 Class::method
	Params       []ParamSig   // 参数（按声明顺序）
	Return       *types.Union // 返回类型
	Pure         bool         // 纯函数标记
	FromDocblock bool         // 签名仅来自文档块
}

// ============================================================================
// 自定义断言属性
// ============================================================================

// AssertionEffect 调用点断言属性的收窄效果
//
// 形如「该调用返回 true 时参数 P 收窄为类型 T」的声明式标注，
// 在分析前解析为表，归约器将其当作普通叶子谓词使用。
type AssertionEffect struct {
	ParamIndex int          // 被收窄的参数下标
	Asserted   *types.Union // 真分支收窄到的类型
	IfTrue     bool         // 效果是否只作用于真分支

	// IgnoreTaintIfTrue 表示真分支剪除经过该调用的污点路径
	IgnoreTaintIfTrue bool
	RemovedLabels     []string // 被剪除的污点标签
}

// ============================================================================
// Codebase - 索引本体
// ============================================================================

// Codebase 整个程序的声明索引，实现 types.Hierarchy
type Codebase struct {
	mu         sync.RWMutex
	classLikes map[string]*ClassLike
	functions  map[string]*FunctionSig
	assertions map[string][]AssertionEffect
	taints     map[string]TaintSpec
	children   map[string][]string // 父类名 -> 直接子类（构建时维护）
}

// New 创建空索引
func New() *Codebase {
	return &Codebase{
		classLikes: make(map[string]*ClassLike),
		functions:  make(map[string]*FunctionSig),
		assertions: make(map[string][]AssertionEffect),
		children:   make(map[string][]string),
	}
}

// AddClassLike 注册类/接口/枚举声明
func (cb *Codebase) AddClassLike(c *ClassLike) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.classLikes[c.Name] = c
	for _, p := range c.Parents {
		cb.children[p] = append(cb.children[p], c.Name)
	}
	for _, i := range c.Interfaces {
		cb.children[i] = append(cb.children[i], c.Name)
	}
}

// AddFunction 注册函数签名
func (cb *Codebase) AddFunction(f *FunctionSig) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.functions[f.Name] = f
}

// RegisterAssertion 注册调用点断言效果
func (cb *Codebase) RegisterAssertion(funcName string, effect AssertionEffect) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.assertions[funcName] = append(cb.assertions[funcName], effect)
}

// ClassLike 查询类声明
func (cb *Codebase) ClassLike(name string) (*ClassLike, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	c, ok := cb.classLikes[name]
	return c, ok
}

// Function 查询函数签名
func (cb *Codebase) Function(name string) (*FunctionSig, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	f, ok := cb.functions[name]
	return f, ok
}

// Method 查询方法签名（沿继承链向上查找）
func (cb *Codebase) Method(class, method string) (*FunctionSig, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.methodLocked(class, method, make(map[string]bool))
}

func (cb *Codebase) methodLocked(class, method string, visited map[string]bool) (*FunctionSig, bool) {
	if visited[class] {
		return nil, false
	}
	visited[class] = true
	c, ok := cb.classLikes[class]
	if !ok {
		return nil, false
	}
	if m, ok := c.Methods[method]; ok {
		return m, true
	}
	for _, p := range c.Parents {
		if m, ok := cb.methodLocked(p, method, visited); ok {
			return m, true
		}
	}
	return nil, false
}

// PropertyType 查询属性声明类型（沿继承链向上查找）
func (cb *Codebase) PropertyType(class, prop string) (*types.Union, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.propertyLocked(class, prop, make(map[string]bool))
}

func (cb *Codebase) propertyLocked(class, prop string, visited map[string]bool) (*types.Union, bool) {
	if visited[class] {
		return nil, false
	}
	visited[class] = true
	c, ok := cb.classLikes[class]
	if !ok {
		return nil, false
	}
	if t, ok := c.Properties[prop]; ok {
		return t, true
	}
	for _, p := range c.Parents {
		if t, ok := cb.propertyLocked(p, prop, visited); ok {
			return t, true
		}
	}
	return nil, false
}

// Assertions 查询函数的断言效果表
func (cb *Codebase) Assertions(funcName string) []AssertionEffect {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.assertions[funcName]
}

// ============================================================================
// types.Hierarchy 实现
// ============================================================================

// ClassLikeExists 判断类类实体是否存在
func (cb *Codebase) ClassLikeExists(name string) bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	_, ok := cb.classLikes[name]
	return ok
}

// IsInstanceOf 判断 child 是否具有 parent 的子类型能力
//
// 包含自反、继承链与接口实现；循环继承通过访问标记终止。
func (cb *Codebase) IsInstanceOf(child, parent string) bool {
	if child == parent {
		return true
	}
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.instanceOfLocked(child, parent, make(map[string]bool))
}

func (cb *Codebase) instanceOfLocked(child, parent string, visited map[string]bool) bool {
	if child == parent {
		return true
	}
	if visited[child] {
		return false
	}
	visited[child] = true
	c, ok := cb.classLikes[child]
	if !ok {
		return false
	}
	for _, p := range c.Parents {
		if cb.instanceOfLocked(p, parent, visited) {
			return true
		}
	}
	for _, i := range c.Interfaces {
		if cb.instanceOfLocked(i, parent, visited) {
			return true
		}
	}
	return false
}

// GenericParams 返回类的泛型参数声明
func (cb *Codebase) GenericParams(name string) []types.GenericParamDef {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	if c, ok := cb.classLikes[name]; ok {
		return c.TypeParams
	}
	return nil
}

// IsSealed 判断类的子类集合是否封闭
func (cb *Codebase) IsSealed(name string) bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	c, ok := cb.classLikes[name]
	return ok && c.Sealed
}

// DirectChildren 返回类的直接子类列表
func (cb *Codebase) DirectChildren(name string) []string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.children[name]
}

// ResolveTypeConstant 解析类类型常量（沿继承链向上查找）
func (cb *Codebase) ResolveTypeConstant(class, constName string) (*types.Union, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.typeConstLocked(class, constName, make(map[string]bool))
}

func (cb *Codebase) typeConstLocked(class, constName string, visited map[string]bool) (*types.Union, bool) {
	if visited[class] {
		return nil, false
	}
	visited[class] = true
	c, ok := cb.classLikes[class]
	if !ok {
		return nil, false
	}
	if t, ok := c.TypeConsts[constName]; ok {
		return t, true
	}
	for _, p := range c.Parents {
		if t, ok := cb.typeConstLocked(p, constName, visited); ok {
			return t, true
		}
	}
	return nil, false
}

// EnumExists 判断枚举及其成员是否存在
func (cb *Codebase) EnumExists(enum, caseName string) bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	c, ok := cb.classLikes[enum]
	if !ok || c.Kind != KindEnum {
		return false
	}
	for _, cc := range c.EnumCases {
		if cc == caseName {
			return true
		}
	}
	return false
}
