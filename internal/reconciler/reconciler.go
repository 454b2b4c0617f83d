// Package reconciler 把布尔断言归约为范式并应用到类型环境
//
// 一次归约分两步：
// 1. Normalize - 把条件表达式重写为 And/Or/Not/Leaf 的断言树
// 2. Apply     - 递归求值断言树，产出（真分支环境, 假分支环境）
//
// 叶子收窄到底类型时分支被标记为不可达，驱动死分支诊断；
// 调用方仍会对其分支体做一次类型检查以暴露内部错误，
// 但其结果不参与任何汇合。
package reconciler

import (
	"github.com/tangzhangming/solastan/internal/ast"
	"github.com/tangzhangming/solastan/internal/codebase"
	"github.com/tangzhangming/solastan/internal/scope"
	"github.com/tangzhangming/solastan/internal/types"
)

// ============================================================================
// 断言树
// ============================================================================

// Assertion 断言树节点
type Assertion interface {
	assertion()
}

// Leaf 叶子断言：对单一路径应用一个谓词
type Leaf struct {
	Path string          // 被断言的路径
	Pred types.Predicate // 谓词
}

func (Leaf) assertion() {}

// And 合取
type And struct {
	L, R Assertion
}

func (And) assertion() {}

// Or 析取
type Or struct {
	L, R Assertion
}

func (Or) assertion() {}

// Not 否定
type Not struct {
	X Assertion
}

func (Not) assertion() {}

// Opaque 无法归约的断言（如无标注的函数调用），两个分支均不收窄
type Opaque struct{}

func (Opaque) assertion() {}

// ============================================================================
// Reconciler
// ============================================================================

// Reconciler 断言归约器
type Reconciler struct {
	hierarchy types.Hierarchy
	codebase  *codebase.Codebase
}

// New 创建归约器
func New(cb *codebase.Codebase) *Reconciler {
	return &Reconciler{hierarchy: cb, codebase: cb}
}

// ============================================================================
// Normalize - 条件表达式重写为断言树
// ============================================================================

// Normalize 把条件表达式重写为断言树
func (r *Reconciler) Normalize(cond ast.Expression) Assertion {
	switch e := cond.(type) {
	case *ast.BinaryExpr:
		switch e.Op {
		case "&&":
			return And{L: r.Normalize(e.Left), R: r.Normalize(e.Right)}
		case "||":
			return Or{L: r.Normalize(e.Left), R: r.Normalize(e.Right)}
		case "===", "==":
			if leaf, ok := r.equalityLeaf(e); ok {
				return leaf
			}
		case "!==", "!=":
			if leaf, ok := r.equalityLeaf(e); ok {
				return Not{X: leaf}
			}
		}
		return Opaque{}

	case *ast.UnaryExpr:
		if e.Op == "!" {
			return Not{X: r.Normalize(e.Operand)}
		}
		return r.truthyLeaf(e)

	case *ast.IsExpr:
		if path, ok := PathOf(e.Operand); ok {
			return Leaf{Path: path, Pred: types.IsTypePred{Target: e.Target}}
		}
		return Opaque{}

	case *ast.CallExpr:
		// 标注了断言属性的调用点按声明效果收窄参数
		if leaf, ok := r.assertionLeaf(e); ok {
			return leaf
		}
		return r.truthyLeaf(e)

	case *ast.BoolLit:
		// 字面量条件：true 恒真，false 恒假
		if e.Value {
			return Leaf{Path: "", Pred: types.TruthyPred{}}
		}
		return Not{X: Leaf{Path: "", Pred: types.TruthyPred{}}}
	}
	return r.truthyLeaf(cond)
}

// equalityLeaf 把相等比较重写为 null 测试或字面量相等叶子
func (r *Reconciler) equalityLeaf(e *ast.BinaryExpr) (Assertion, bool) {
	// 任一侧为 null 字面量
	if _, ok := e.Right.(*ast.NullLit); ok {
		if path, ok := PathOf(e.Left); ok {
			return Leaf{Path: path, Pred: types.NullPred{}}, true
		}
	}
	if _, ok := e.Left.(*ast.NullLit); ok {
		if path, ok := PathOf(e.Right); ok {
			return Leaf{Path: path, Pred: types.NullPred{}}, true
		}
	}

	// 一侧为路径、另一侧为标量字面量
	if lit, ok := literalOf(e.Right); ok {
		if path, ok := PathOf(e.Left); ok {
			return Leaf{Path: path, Pred: types.LiteralPred{Lit: lit}}, true
		}
	}
	if lit, ok := literalOf(e.Left); ok {
		if path, ok := PathOf(e.Right); ok {
			return Leaf{Path: path, Pred: types.LiteralPred{Lit: lit}}, true
		}
	}
	return nil, false
}

// assertionLeaf 查询调用点断言属性表
func (r *Reconciler) assertionLeaf(e *ast.CallExpr) (Assertion, bool) {
	for _, effect := range r.codebase.Assertions(e.Callee) {
		if effect.Asserted == nil {
			continue
		}
		if effect.ParamIndex >= len(e.Args) {
			continue
		}
		path, ok := PathOf(e.Args[effect.ParamIndex])
		if !ok {
			continue
		}
		return Leaf{Path: path, Pred: types.IsTypePred{Target: effect.Asserted}}, true
	}
	return nil, false
}

// truthyLeaf 把表达式降级为真值测试叶子
func (r *Reconciler) truthyLeaf(e ast.Expression) Assertion {
	if path, ok := PathOf(e); ok {
		return Leaf{Path: path, Pred: types.TruthyPred{}}
	}
	return Opaque{}
}

// PathOf 求表达式的规范路径表示
//
// 仅变量、属性链和字面量下标链可作为收窄路径。
func PathOf(e ast.Expression) (string, bool) {
	switch x := e.(type) {
	case *ast.Variable:
		return x.Name, true
	case *ast.PropertyAccess:
		base, ok := PathOf(x.Object)
		if !ok {
			return "", false
		}
		return scope.PropPath(base, x.Name), true
	case *ast.IndexAccess:
		base, ok := PathOf(x.Target)
		if !ok {
			return "", false
		}
		switch idx := x.Index.(type) {
		case *ast.StringLit:
			return scope.IndexPath(base, idx.Value), true
		case *ast.IntLit:
			return scope.IndexPath(base, idx.Value), true
		}
		return "", false
	}
	return "", false
}

// literalOf 提取标量字面量
func literalOf(e ast.Expression) (types.TLiteral, bool) {
	switch x := e.(type) {
	case *ast.IntLit:
		return types.TLiteral{Kind: types.KindInt, Value: x.Value}, true
	case *ast.FloatLit:
		return types.TLiteral{Kind: types.KindFloat, Value: x.Value}, true
	case *ast.StringLit:
		return types.TLiteral{Kind: types.KindString, Value: x.Value}, true
	case *ast.BoolLit:
		v := "false"
		if x.Value {
			v = "true"
		}
		return types.TLiteral{Kind: types.KindBool, Value: v}, true
	}
	return types.TLiteral{}, false
}

// ============================================================================
// Apply - 断言树求值
// ============================================================================

// Apply 对环境应用断言树，返回（真分支环境, 假分支环境）
//
// And 的假分支按德摩根展开：¬(L∧R) = ¬L ∨ (L∧¬R)；
// Or 为其对偶。收窄到底类型的分支被标记为不可达。
func (r *Reconciler) Apply(sc *scope.Scope, a Assertion) (*scope.Scope, *scope.Scope) {
	switch node := a.(type) {
	case Leaf:
		return r.applyLeaf(sc, node)

	case And:
		lThen, lElse := r.Apply(sc, node.L)
		rThen, rElse := r.Apply(lThen, node.R)
		// 真分支：顺序收窄 L 后 R
		// 假分支：¬L ∨ (L ∧ ¬R)
		return rThen, scope.Merge(lElse, rElse)

	case Or:
		lThen, lElse := r.Apply(sc, node.L)
		rThen, rElse := r.Apply(lElse, node.R)
		// 真分支：L ∨ (¬L ∧ R)
		// 假分支：顺序排除 L 后 R
		return scope.Merge(lThen, rThen), rElse

	case Not:
		then, els := r.Apply(sc, node.X)
		return els, then

	default:
		// 无法归约：两个分支均不收窄
		return sc.Fork(), sc.Fork()
	}
}

// applyLeaf 对单一路径应用谓词
//
// 路径未在环境中出现时（如从未观测过的数组下标），先验类型取 mixed。
// 收窄只更新被断言的路径本身，无关路径不受影响。
func (r *Reconciler) applyLeaf(sc *scope.Scope, leaf Leaf) (*scope.Scope, *scope.Scope) {
	then := sc.Fork()
	els := sc.Fork()

	if leaf.Path == "" {
		// 常量条件：真分支恒可达，假分支恒不可达
		if _, ok := leaf.Pred.(types.TruthyPred); ok {
			els.MarkUnreachable()
		}
		return then, els
	}

	prior, ok := sc.Get(leaf.Path)
	if !ok {
		prior = types.Mixed()
	}

	narrowed := types.Intersect(r.hierarchy, prior, leaf.Pred)
	then.SetNarrowed(leaf.Path, narrowed)
	if narrowed.IsNever() {
		then.MarkUnreachable()
	}

	negated := types.Negate(r.hierarchy, prior, leaf.Pred)
	els.SetNarrowed(leaf.Path, negated)
	if negated.IsNever() {
		els.MarkUnreachable()
	}

	return then, els
}
