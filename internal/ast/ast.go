// Package ast 定义分析器消费的降低后语法树
//
// 这不是全保真语法树：外部前端完成解析和符号解析后，
// 把每个函数体降低为这里的语句/表达式节点，类型注解
// 已解析为 types.Union。分析器只读遍历，从不修改。
package ast

import (
	"strings"

	"github.com/tangzhangming/solastan/internal/token"
	"github.com/tangzhangming/solastan/internal/types"
)

// Node 是所有节点的基接口
type Node interface {
	Pos() token.Position // 返回节点在源代码中的位置
	String() string      // 返回节点的字符串表示（用于调试）
}

// Expression 表示一个表达式节点
type Expression interface {
	Node
	exprNode()
}

// Statement 表示一个语句节点
type Statement interface {
	Node
	stmtNode()
}

// ============================================================================
// 函数声明
// ============================================================================

// Param 函数参数
type Param struct {
	Name     string         // 参数名（含 $ 前缀）
	Type     *types.Union   // 已解析的声明类型
	Position token.Position // 声明位置
}

// FunctionDecl 函数/方法声明（分析的基本单位）
type FunctionDecl struct {
	Name       string         // 函数名或 Class::method
	Params     []*Param       // 参数列表
	ReturnType *types.Union   // 已解析的返回类型（无声明时为 nil）
	Body       *BlockStmt     // 函数体
	Position   token.Position // 声明位置
}

func (f *FunctionDecl) Pos() token.Position { return f.Position }
func (f *FunctionDecl) String() string      { return "function " + f.Name }

// ============================================================================
// 表达式
// ============================================================================

// Variable 变量引用 ($x)
type Variable struct {
	Name     string // 变量名（含 $ 前缀）
	Position token.Position
}

func (e *Variable) Pos() token.Position { return e.Position }
func (e *Variable) String() string      { return e.Name }
func (e *Variable) exprNode()           {}

// PropertyAccess 属性访问 ($obj->prop)
type PropertyAccess struct {
	Object   Expression // 对象表达式
	Name     string     // 属性名
	Position token.Position
}

func (e *PropertyAccess) Pos() token.Position { return e.Position }
func (e *PropertyAccess) String() string      { return e.Object.String() + "->" + e.Name }
func (e *PropertyAccess) exprNode()           {}

// IndexAccess 下标访问 ($arr['key'])
type IndexAccess struct {
	Target   Expression // 容器表达式
	Index    Expression // 下标表达式
	Position token.Position
}

func (e *IndexAccess) Pos() token.Position { return e.Position }
func (e *IndexAccess) String() string      { return e.Target.String() + "[" + e.Index.String() + "]" }
func (e *IndexAccess) exprNode()           {}

// CallExpr 自由函数调用
type CallExpr struct {
	Callee   string       // 被调函数的完全限定名
	Args     []Expression // 实参
	Position token.Position
}

func (e *CallExpr) Pos() token.Position { return e.Position }
func (e *CallExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return e.Callee + "(" + strings.Join(parts, ", ") + ")"
}
func (e *CallExpr) exprNode() {}

// MethodCall 方法调用 ($obj->m(...))
type MethodCall struct {
	Object   Expression   // 对象表达式
	Method   string       // 方法名
	Args     []Expression // 实参
	Position token.Position
}

func (e *MethodCall) Pos() token.Position { return e.Position }
func (e *MethodCall) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return e.Object.String() + "->" + e.Method + "(" + strings.Join(parts, ", ") + ")"
}
func (e *MethodCall) exprNode() {}

// NewExpr 对象实例化 (new C(...))
type NewExpr struct {
	Class    string       // 类名
	Args     []Expression // 构造器实参
	Position token.Position
}

func (e *NewExpr) Pos() token.Position { return e.Position }
func (e *NewExpr) String() string      { return "new " + e.Class }
func (e *NewExpr) exprNode()           {}

// BinaryExpr 二元运算
type BinaryExpr struct {
	Op       string     // 运算符（"+"、"."、"=="、"===" 等）
	Left     Expression // 左操作数
	Right    Expression // 右操作数
	Position token.Position
}

func (e *BinaryExpr) Pos() token.Position { return e.Position }
func (e *BinaryExpr) String() string {
	return "(" + e.Left.String() + " " + e.Op + " " + e.Right.String() + ")"
}
func (e *BinaryExpr) exprNode() {}

// UnaryExpr 一元运算
type UnaryExpr struct {
	Op       string     // 运算符（"!"、"-"）
	Operand  Expression // 操作数
	Position token.Position
}

func (e *UnaryExpr) Pos() token.Position { return e.Position }
func (e *UnaryExpr) String() string      { return e.Op + e.Operand.String() }
func (e *UnaryExpr) exprNode()           {}

// IsExpr 类型测试 ($x is T)
type IsExpr struct {
	Operand  Expression   // 被测表达式
	Target   *types.Union // 已解析的目标类型
	Position token.Position
}

func (e *IsExpr) Pos() token.Position { return e.Position }
func (e *IsExpr) String() string      { return e.Operand.String() + " is " + e.Target.String() }
func (e *IsExpr) exprNode()           {}

// TernaryExpr 条件表达式 (cond ? a : b)
type TernaryExpr struct {
	Cond     Expression
	Then     Expression
	Else     Expression
	Position token.Position
}

func (e *TernaryExpr) Pos() token.Position { return e.Position }
func (e *TernaryExpr) String() string {
	return e.Cond.String() + " ? " + e.Then.String() + " : " + e.Else.String()
}
func (e *TernaryExpr) exprNode() {}

// IntLit 整数字面量
type IntLit struct {
	Value    string // 规范文本值
	Position token.Position
}

func (e *IntLit) Pos() token.Position { return e.Position }
func (e *IntLit) String() string      { return e.Value }
func (e *IntLit) exprNode()           {}

// FloatLit 浮点字面量
type FloatLit struct {
	Value    string
	Position token.Position
}

func (e *FloatLit) Pos() token.Position { return e.Position }
func (e *FloatLit) String() string      { return e.Value }
func (e *FloatLit) exprNode()           {}

// StringLit 字符串字面量
type StringLit struct {
	Value    string
	Position token.Position
}

func (e *StringLit) Pos() token.Position { return e.Position }
func (e *StringLit) String() string      { return "'" + e.Value + "'" }
func (e *StringLit) exprNode()           {}

// BoolLit 布尔字面量
type BoolLit struct {
	Value    bool
	Position token.Position
}

func (e *BoolLit) Pos() token.Position { return e.Position }
func (e *BoolLit) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}
func (e *BoolLit) exprNode() {}

// NullLit null 字面量
type NullLit struct {
	Position token.Position
}

func (e *NullLit) Pos() token.Position { return e.Position }
func (e *NullLit) String() string      { return "null" }
func (e *NullLit) exprNode()           {}

// VecLit vec 字面量
type VecLit struct {
	Elems    []Expression
	Position token.Position
}

func (e *VecLit) Pos() token.Position { return e.Position }
func (e *VecLit) String() string      { return "vec[...]" }
func (e *VecLit) exprNode()           {}

// DictLit dict 字面量
type DictLit struct {
	Keys     []Expression
	Values   []Expression
	Position token.Position
}

func (e *DictLit) Pos() token.Position { return e.Position }
func (e *DictLit) String() string      { return "dict[...]" }
func (e *DictLit) exprNode()           {}

// ============================================================================
// 语句
// ============================================================================

// BlockStmt 语句块
type BlockStmt struct {
	Statements []Statement
	Position   token.Position
}

func (s *BlockStmt) Pos() token.Position { return s.Position }
func (s *BlockStmt) String() string      { return "{...}" }
func (s *BlockStmt) stmtNode()           {}

// ExprStmt 表达式语句
type ExprStmt struct {
	Expr     Expression
	Position token.Position
}

func (s *ExprStmt) Pos() token.Position { return s.Position }
func (s *ExprStmt) String() string      { return s.Expr.String() + ";" }
func (s *ExprStmt) stmtNode()           {}

// AssignStmt 赋值语句
//
// Target 限定为 Variable、PropertyAccess 或 IndexAccess。
type AssignStmt struct {
	Target   Expression
	Value    Expression
	Position token.Position
}

func (s *AssignStmt) Pos() token.Position { return s.Position }
func (s *AssignStmt) String() string      { return s.Target.String() + " = " + s.Value.String() + ";" }
func (s *AssignStmt) stmtNode()           {}

// IfStmt 条件语句
type IfStmt struct {
	Cond     Expression
	Then     *BlockStmt
	Else     Statement // nil、*BlockStmt 或 *IfStmt（else if）
	Position token.Position
}

func (s *IfStmt) Pos() token.Position { return s.Position }
func (s *IfStmt) String() string      { return "if (" + s.Cond.String() + ") {...}" }
func (s *IfStmt) stmtNode()           {}

// WhileStmt while 循环
type WhileStmt struct {
	Cond     Expression
	Body     *BlockStmt
	Position token.Position
}

func (s *WhileStmt) Pos() token.Position { return s.Position }
func (s *WhileStmt) String() string      { return "while (" + s.Cond.String() + ") {...}" }
func (s *WhileStmt) stmtNode()           {}

// ForeachStmt foreach 循环
type ForeachStmt struct {
	Subject  Expression // 被遍历的容器
	KeyVar   string     // 键变量名（可为空）
	ValueVar string     // 值变量名
	Body     *BlockStmt
	Position token.Position
}

func (s *ForeachStmt) Pos() token.Position { return s.Position }
func (s *ForeachStmt) String() string      { return "foreach (...) {...}" }
func (s *ForeachStmt) stmtNode()           {}

// SwitchCase switch 的单个分支
type SwitchCase struct {
	Values []Expression // 分支匹配值（default 为空）
	Body   *BlockStmt
}

// SwitchStmt switch 语句
type SwitchStmt struct {
	Subject  Expression
	Cases    []SwitchCase
	Default  *BlockStmt // 可为 nil
	Position token.Position
}

func (s *SwitchStmt) Pos() token.Position { return s.Position }
func (s *SwitchStmt) String() string      { return "switch (...) {...}" }
func (s *SwitchStmt) stmtNode()           {}

// ReturnStmt return 语句
type ReturnStmt struct {
	Value    Expression // 可为 nil
	Position token.Position
}

func (s *ReturnStmt) Pos() token.Position { return s.Position }
func (s *ReturnStmt) String() string      { return "return;" }
func (s *ReturnStmt) stmtNode()           {}

// BreakStmt break 语句
type BreakStmt struct {
	Position token.Position
}

func (s *BreakStmt) Pos() token.Position { return s.Position }
func (s *BreakStmt) String() string      { return "break;" }
func (s *BreakStmt) stmtNode()           {}

// ContinueStmt continue 语句
type ContinueStmt struct {
	Position token.Position
}

func (s *ContinueStmt) Pos() token.Position { return s.Position }
func (s *ContinueStmt) String() string      { return "continue;" }
func (s *ContinueStmt) stmtNode()           {}

// CatchClause catch 子句
type CatchClause struct {
	Class string // 捕获的异常类名
	Var   string // 异常变量名
	Body  *BlockStmt
}

// TryStmt try/catch/finally 语句
type TryStmt struct {
	Body     *BlockStmt
	Catches  []CatchClause
	Finally  *BlockStmt // 可为 nil
	Position token.Position
}

func (s *TryStmt) Pos() token.Position { return s.Position }
func (s *TryStmt) String() string      { return "try {...}" }
func (s *TryStmt) stmtNode()           {}

// ThrowStmt throw 语句
type ThrowStmt struct {
	Value    Expression
	Position token.Position
}

func (s *ThrowStmt) Pos() token.Position { return s.Position }
func (s *ThrowStmt) String() string      { return "throw " + s.Value.String() + ";" }
func (s *ThrowStmt) stmtNode()           {}
