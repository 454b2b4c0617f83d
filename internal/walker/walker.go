// Package walker 实现控制流驱动的函数体分析
//
// 遍历器顺序推进语句，在分支处通过归约器分叉类型环境，
// 汇合点合并，循环体迭代到不动点（受迭代上限保护）。
// 作为副作用，每个变量读写和表达式求值都登记数据流图的
// 节点和边，供分析屏障之后的两个图查询消费。
//
// 单个函数的分析相对其他函数是纯的：除了对全局数据流图的
// 追加写，不触碰任何共享可变状态，因此可以安全并行。
package walker

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/solastan/internal/ast"
	"github.com/tangzhangming/solastan/internal/codebase"
	"github.com/tangzhangming/solastan/internal/dataflow"
	"github.com/tangzhangming/solastan/internal/reconciler"
	"github.com/tangzhangming/solastan/internal/report"
	"github.com/tangzhangming/solastan/internal/scope"
	"github.com/tangzhangming/solastan/internal/token"
	"github.com/tangzhangming/solastan/internal/types"
)

// DefaultLoopCap 循环不动点迭代的默认上限
//
// 达到上限不是错误，只是放弃进一步精化；详见 verbose 日志。
const DefaultLoopCap = 6

// Options 遍历器选项
type Options struct {
	LoopCap int         // 循环迭代上限（0 取默认值）
	Logger  *zap.Logger // 详细日志（nil 则丢弃）
}

// Result 单个函数的分析结果
type Result struct {
	Issues    []report.Issue                  // 发现的问题
	ExprTypes map[ast.Expression]*types.Union // 每个表达式的推断类型
	CapHits   int                             // 循环达到迭代上限的次数
}

// Walker 控制流遍历器
type Walker struct {
	cb      *codebase.Codebase
	rec     *reconciler.Reconciler
	graph   *dataflow.Graph
	logger  *zap.Logger
	loopCap int

	fn        *ast.FunctionDecl
	issues    []report.Issue
	exprTypes map[ast.Expression]*types.Union
	lastDef   map[string]*dataflow.Node
	capHits   int

	breakStack    []*[]*scope.Scope
	continueStack []*[]*scope.Scope
}

// New 创建遍历器
func New(cb *codebase.Codebase, graph *dataflow.Graph, opts Options) *Walker {
	if opts.LoopCap <= 0 {
		opts.LoopCap = DefaultLoopCap
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Walker{
		cb:      cb,
		rec:     reconciler.New(cb),
		graph:   graph,
		logger:  opts.Logger,
		loopCap: opts.LoopCap,
	}
}

// AnalyzeFunction 分析单个函数体
func (w *Walker) AnalyzeFunction(fn *ast.FunctionDecl) *Result {
	w.fn = fn
	w.issues = nil
	w.exprTypes = make(map[ast.Expression]*types.Union)
	w.lastDef = make(map[string]*dataflow.Node)
	w.capHits = 0
	w.breakStack = nil
	w.continueStack = nil

	sc := w.entryScope(fn)
	out := w.analyzeBlock(sc, fn.Body)

	// 函数尾部隐式返回：非 void 声明时检查
	if out.Reachable() && fn.ReturnType != nil && !fn.ReturnType.IsNever() {
		if !types.IsSubtype(w.cb, types.Null(), fn.ReturnType) && !isVoid(fn.ReturnType) {
			w.report(report.New(report.A0201, report.LevelError, fn.Position,
				"function %s may exit without returning %s", fn.Name, fn.ReturnType))
		}
	}

	return &Result{
		Issues:    w.issues,
		ExprTypes: w.exprTypes,
		CapHits:   w.capHits,
	}
}

// entryScope 从参数声明构造函数入口环境
func (w *Walker) entryScope(fn *ast.FunctionDecl) *scope.Scope {
	sc := scope.New()
	spec, hasTaint := w.cb.Taint(fn.Name)
	for i, p := range fn.Params {
		t := p.Type
		if t == nil {
			t = types.Mixed()
		}
		sc.Set(p.Name, t)

		node := &dataflow.Node{Kind: dataflow.KindParam, Path: p.Name, Pos: p.Position}
		if hasTaint {
			if labels, ok := spec.ParamSources[i]; ok {
				node.SourceLabels = labels
			}
		}
		w.lastDef[p.Name] = w.graph.AddNode(node)
	}
	return sc
}

func isVoid(u *types.Union) bool {
	return u.IsSingle() && u.Atomics[0].Key() == "void"
}

func (w *Walker) report(issue report.Issue) {
	w.issues = append(w.issues, issue)
}

// ============================================================================
// 语句分析
// ============================================================================

// analyzeBlock 顺序分析语句块，返回落空（fallthrough）环境
//
// 环境不可达时仍对每条语句做一次分析以暴露内部错误，
// 但整个不可达区域只报告一次。
func (w *Walker) analyzeBlock(sc *scope.Scope, block *ast.BlockStmt) *scope.Scope {
	if block == nil {
		return sc
	}
	reportedDead := false
	for _, stmt := range block.Statements {
		if !sc.Reachable() && !reportedDead {
			reportedDead = true
			w.report(report.New(report.A0500, report.LevelWarning, stmt.Pos(), "unreachable code"))
		}
		sc = w.analyzeStmt(sc, stmt)
	}
	return sc
}

// analyzeStmt 分析单条语句，返回落空环境
//
// 发散语句（return/throw/break/continue）返回不可达环境。
func (w *Walker) analyzeStmt(sc *scope.Scope, stmt ast.Statement) *scope.Scope {
	switch s := stmt.(type) {
	case *ast.BlockStmt:
		return w.analyzeBlock(sc, s)

	case *ast.ExprStmt:
		w.analyzeExpr(sc, s.Expr)
		return sc

	case *ast.AssignStmt:
		return w.analyzeAssign(sc, s)

	case *ast.IfStmt:
		return w.analyzeIf(sc, s)

	case *ast.WhileStmt:
		return w.analyzeWhile(sc, s)

	case *ast.ForeachStmt:
		return w.analyzeForeach(sc, s)

	case *ast.SwitchStmt:
		return w.analyzeSwitch(sc, s)

	case *ast.TryStmt:
		return w.analyzeTry(sc, s)

	case *ast.ReturnStmt:
		return w.analyzeReturn(sc, s)

	case *ast.ThrowStmt:
		w.analyzeExpr(sc, s.Value)
		return diverged(sc)

	case *ast.BreakStmt:
		if n := len(w.breakStack); n > 0 {
			*w.breakStack[n-1] = append(*w.breakStack[n-1], sc.Fork())
		}
		return diverged(sc)

	case *ast.ContinueStmt:
		if n := len(w.continueStack); n > 0 {
			*w.continueStack[n-1] = append(*w.continueStack[n-1], sc.Fork())
		}
		return diverged(sc)
	}
	return sc
}

// diverged 返回标记为不可达的后继环境
func diverged(sc *scope.Scope) *scope.Scope {
	out := sc.Fork()
	out.MarkUnreachable()
	return out
}

// analyzeAssign 赋值语句
func (w *Walker) analyzeAssign(sc *scope.Scope, s *ast.AssignStmt) *scope.Scope {
	valType, valNode := w.analyzeExpr(sc, s.Value)

	switch target := s.Target.(type) {
	case *ast.Variable:
		sc.Set(target.Name, valType)
		w.recordDef(dataflow.KindVarDef, target.Name, s.Position, valNode)

	case *ast.PropertyAccess:
		objType, objNode := w.analyzeExpr(sc, target.Object)
		stored := valType
		if declared, ok := w.propertyDeclared(objType, target.Name); ok {
			if !types.IsSubtype(w.cb, valType, declared) {
				w.report(report.New(report.A0200, report.LevelError, s.Position,
					"cannot assign %s to property %s declared as %s", valType, target.Name, declared))
				stored = declared // 替换为期望类型，抑制级联错误
			}
		}
		if path, ok := reconciler.PathOf(target); ok {
			sc.Set(path, stored)
			w.recordDef(dataflow.KindProperty, path, s.Position, valNode)
		} else {
			node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindProperty, Pos: s.Position})
			if valNode != nil {
				w.graph.AddEdge(dataflow.Edge{From: valNode.ID, To: node.ID})
			}
			if objNode != nil {
				w.graph.AddEdge(dataflow.Edge{From: node.ID, To: objNode.ID})
			}
		}

	case *ast.IndexAccess:
		_, targNode := w.analyzeExpr(sc, target.Target)
		if path, ok := reconciler.PathOf(target); ok {
			sc.Set(path, valType)
			w.recordDef(dataflow.KindArrayOffset, path, s.Position, valNode)
		} else {
			node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindArrayOffset, Pos: s.Position})
			if valNode != nil {
				w.graph.AddEdge(dataflow.Edge{From: valNode.ID, To: node.ID})
			}
			if targNode != nil {
				w.graph.AddEdge(dataflow.Edge{From: node.ID, To: targNode.ID})
			}
		}

	default:
		w.analyzeExpr(sc, s.Target)
	}
	return sc
}

// recordDef 登记定义节点：值边、遮蔽边和最近定义表
//
// 遮蔽边从旧定义指向新定义，未使用代码查询沿它剪枝。
func (w *Walker) recordDef(kind dataflow.NodeKind, path string, pos token.Position, valNode *dataflow.Node) *dataflow.Node {
	def := w.graph.AddNode(&dataflow.Node{Kind: kind, Path: path, Pos: pos})
	if prev, ok := w.lastDef[path]; ok {
		w.graph.AddEdge(dataflow.Edge{From: prev.ID, To: def.ID})
	}
	if valNode != nil {
		w.graph.AddEdge(dataflow.Edge{From: valNode.ID, To: def.ID})
	}
	w.lastDef[path] = def
	return def
}

// analyzeIf 条件语句
func (w *Walker) analyzeIf(sc *scope.Scope, s *ast.IfStmt) *scope.Scope {
	_, condNode := w.analyzeExpr(sc, s.Cond)

	assertion := w.rec.Normalize(s.Cond)
	thenScope, elseScope := w.rec.Apply(sc, assertion)

	if sc.Reachable() {
		if !thenScope.Reachable() {
			w.report(report.New(report.A0502, report.LevelWarning, s.Cond.Pos(),
				"condition is always false"))
		} else if !elseScope.Reachable() {
			w.report(report.New(report.A0501, report.LevelWarning, s.Cond.Pos(),
				"condition is always true"))
		}
	}

	guardSaved := w.applyTaintGuard(s.Cond, condNode)

	thenOut := w.analyzeBlock(thenScope, s.Then)

	// 守卫替换只在真分支内有效：假分支和后续语句沿用旧定义，
	// 标签保守地保留
	for path, prev := range guardSaved {
		if prev != nil {
			w.lastDef[path] = prev
		} else {
			delete(w.lastDef, path)
		}
	}

	elseOut := elseScope
	if s.Else != nil {
		elseOut = w.analyzeStmt(elseScope, s.Else)
	}
	return scope.Merge(thenOut, elseOut)
}

// applyTaintGuard 条件剪除：带 IgnoreTaintIfTrue 标注的守卫调用
//
// 真分支中被守卫的路径重新定义，旧值经条件边流入新定义，
// 污点查询沿该边剪除声明的标签。剪除只对真分支里的读取
// 生效，返回被替换的旧定义表，调用方在真分支分析完后恢复。
func (w *Walker) applyTaintGuard(cond ast.Expression, condNode *dataflow.Node) map[string]*dataflow.Node {
	call, ok := cond.(*ast.CallExpr)
	if !ok || condNode == nil {
		return nil
	}
	var saved map[string]*dataflow.Node
	for _, effect := range w.cb.Assertions(call.Callee) {
		if !effect.IgnoreTaintIfTrue || effect.ParamIndex >= len(call.Args) {
			continue
		}
		path, ok := reconciler.PathOf(call.Args[effect.ParamIndex])
		if !ok {
			continue
		}
		if saved == nil {
			saved = make(map[string]*dataflow.Node)
		}
		if _, done := saved[path]; !done {
			saved[path] = w.lastDef[path]
		}
		def := w.graph.AddNode(&dataflow.Node{
			Kind: dataflow.KindVarDef,
			Path: path,
			Pos:  call.Position,
		})
		w.graph.AddEdge(dataflow.Edge{From: condNode.ID, To: def.ID, Conditional: true})
		w.lastDef[path] = def
	}
	return saved
}

// analyzeWhile while 循环：迭代到不动点或上限
func (w *Walker) analyzeWhile(sc *scope.Scope, s *ast.WhileStmt) *scope.Scope {
	w.analyzeExpr(sc, s.Cond)
	assertion := w.rec.Normalize(s.Cond)

	entry := sc
	merged := sc.Fork()
	var exitScopes []*scope.Scope

	for iter := 1; ; iter++ {
		thenScope, elseScope := w.rec.Apply(merged, assertion)

		breaks, continues, bodyOut := w.analyzeLoopBody(thenScope, s.Body)

		backEdge := scope.Merge(append(continues, bodyOut)...)
		next := scope.Merge(entry, backEdge)

		exitScopes = append([]*scope.Scope{elseScope}, breaks...)

		if next.Equals(merged) {
			break
		}
		if iter >= w.loopCap {
			w.capHits++
			w.logger.Debug("loop fixed point iteration cap hit",
				zap.String("function", w.fn.Name),
				zap.String("pos", s.Position.String()),
				zap.Int("cap", w.loopCap))
			break
		}
		merged = next
	}
	return scope.Merge(exitScopes...)
}

// analyzeLoopBody 在 break/continue 收集器下分析循环体
func (w *Walker) analyzeLoopBody(sc *scope.Scope, body *ast.BlockStmt) (breaks, continues []*scope.Scope, out *scope.Scope) {
	var breakSet, continueSet []*scope.Scope
	w.breakStack = append(w.breakStack, &breakSet)
	w.continueStack = append(w.continueStack, &continueSet)

	out = w.analyzeBlock(sc.Fork(), body)

	w.breakStack = w.breakStack[:len(w.breakStack)-1]
	w.continueStack = w.continueStack[:len(w.continueStack)-1]
	return breakSet, continueSet, out
}

// analyzeForeach foreach 循环
func (w *Walker) analyzeForeach(sc *scope.Scope, s *ast.ForeachStmt) *scope.Scope {
	subjType, subjNode := w.analyzeExpr(sc, s.Subject)
	keyType, valType := elementTypes(subjType)

	entry := sc
	merged := sc.Fork()
	var exitScopes []*scope.Scope

	for iter := 1; ; iter++ {
		iterScope := merged.Fork()
		if s.KeyVar != "" {
			iterScope.Set(s.KeyVar, keyType)
			def := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindVarDef, Path: s.KeyVar, Pos: s.Position})
			if subjNode != nil {
				w.graph.AddEdge(dataflow.Edge{From: subjNode.ID, To: def.ID})
			}
			w.lastDef[s.KeyVar] = def
		}
		iterScope.Set(s.ValueVar, valType)
		def := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindVarDef, Path: s.ValueVar, Pos: s.Position})
		if subjNode != nil {
			w.graph.AddEdge(dataflow.Edge{From: subjNode.ID, To: def.ID})
		}
		w.lastDef[s.ValueVar] = def

		breaks, continues, bodyOut := w.analyzeLoopBody(iterScope, s.Body)

		backEdge := scope.Merge(append(continues, bodyOut)...)
		next := scope.Merge(entry, backEdge)

		// 循环可能零次执行，入口环境始终参与出口汇合
		exitScopes = append([]*scope.Scope{entry.Fork(), backEdge}, breaks...)

		if next.Equals(merged) {
			break
		}
		if iter >= w.loopCap {
			w.capHits++
			w.logger.Debug("loop fixed point iteration cap hit",
				zap.String("function", w.fn.Name),
				zap.String("pos", s.Position.String()),
				zap.Int("cap", w.loopCap))
			break
		}
		merged = next
	}
	return scope.Merge(exitScopes...)
}

// analyzeSwitch switch 语句：各分支互斥，无隐式贯穿
func (w *Walker) analyzeSwitch(sc *scope.Scope, s *ast.SwitchStmt) *scope.Scope {
	w.analyzeExpr(sc, s.Subject)

	var breakSet []*scope.Scope
	w.breakStack = append(w.breakStack, &breakSet)

	current := sc
	var outs []*scope.Scope
	for _, c := range s.Cases {
		cond := caseCondition(s.Subject, c.Values)
		caseThen, caseElse := w.rec.Apply(current, w.rec.Normalize(cond))
		outs = append(outs, w.analyzeBlock(caseThen, c.Body))
		current = caseElse
	}
	if s.Default != nil {
		outs = append(outs, w.analyzeBlock(current, s.Default))
	} else {
		// 无 default：可能全部不匹配
		outs = append(outs, current)
	}

	w.breakStack = w.breakStack[:len(w.breakStack)-1]
	outs = append(outs, breakSet...)
	return scope.Merge(outs...)
}

// caseCondition 把 case 值列表重写为等值断言的析取
func caseCondition(subject ast.Expression, values []ast.Expression) ast.Expression {
	var cond ast.Expression
	for _, v := range values {
		eq := &ast.BinaryExpr{Op: "===", Left: subject, Right: v, Position: v.Pos()}
		if cond == nil {
			cond = eq
		} else {
			cond = &ast.BinaryExpr{Op: "||", Left: cond, Right: eq, Position: v.Pos()}
		}
	}
	if cond == nil {
		cond = &ast.BoolLit{Value: true}
	}
	return cond
}

// analyzeTry try/catch/finally
//
// try 体的任何前缀都可能在异常处中断，catch 入口环境是
// 入口和每条语句之后环境的保守并集；仅在 try 内赋值的变量
// 在汇合中自动标记为可能未定义。
func (w *Walker) analyzeTry(sc *scope.Scope, s *ast.TryStmt) *scope.Scope {
	collector := []*scope.Scope{sc.Fork()}
	cur := sc
	for _, stmt := range s.Body.Statements {
		cur = w.analyzeStmt(cur, stmt)
		snap := cur.Fork()
		if !snap.Reachable() {
			// 中途发散的前缀仍可能已执行其之前的语句
			continue
		}
		collector = append(collector, snap)
	}
	catchEntry := scope.Merge(collector...)

	outs := []*scope.Scope{cur}
	for _, c := range s.Catches {
		cs := catchEntry.Fork()
		excType := types.Object(c.Class)
		if !w.cb.ClassLikeExists(c.Class) {
			w.report(report.New(report.A0400, report.LevelError, s.Position,
				"unknown exception class %s", c.Class))
			excType = types.Mixed()
		}
		cs.Set(c.Var, excType)
		def := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindVarDef, Path: c.Var, Pos: s.Position})
		w.lastDef[c.Var] = def
		outs = append(outs, w.analyzeBlock(cs, c.Body))
	}

	merged := scope.Merge(outs...)
	if s.Finally != nil {
		merged = w.analyzeBlock(merged, s.Finally)
	}
	return merged
}

// analyzeReturn return 语句
func (w *Walker) analyzeReturn(sc *scope.Scope, s *ast.ReturnStmt) *scope.Scope {
	if s.Value != nil {
		valType, valNode := w.analyzeExpr(sc, s.Value)
		ret := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindReturn, Pos: s.Position})
		if valNode != nil {
			w.graph.AddEdge(dataflow.Edge{From: valNode.ID, To: ret.ID})
		}
		if w.fn.ReturnType != nil && !types.IsSubtype(w.cb, valType, w.fn.ReturnType) {
			w.report(report.New(report.A0201, report.LevelError, s.Position,
				"cannot return %s from function declared to return %s", valType, w.fn.ReturnType))
			// 继续使用期望类型，抑制级联错误
			w.exprTypes[s.Value] = w.fn.ReturnType
		}
	}
	return diverged(sc)
}

// elementTypes 求容器遍历产出的键/值类型
func elementTypes(u *types.Union) (*types.Union, *types.Union) {
	keyType := types.Never()
	valType := types.Never()
	for _, a := range u.Atomics {
		switch x := a.(type) {
		case types.TContainer:
			switch x.Kind {
			case types.ContainerVec:
				keyType = types.Combine(keyType, types.Int())
			case types.ContainerKeyset:
				keyType = types.Combine(keyType, x.ValueType)
			default:
				if x.KeyType != nil {
					keyType = types.Combine(keyType, x.KeyType)
				}
			}
			valType = types.Combine(valType, x.ValueType)
		case types.TTuple:
			keyType = types.Combine(keyType, types.Int())
			valType = types.Combine(valType, types.CombineAll(x.Elems...))
		case types.TShape:
			keyType = types.Combine(keyType, types.Arraykey())
			for _, f := range x.Fields {
				valType = types.Combine(valType, f.Type)
			}
		case types.TMixed:
			keyType = types.Combine(keyType, types.Arraykey())
			valType = types.Mixed()
		}
	}
	if valType.IsNever() {
		valType = types.Mixed()
	}
	if keyType.IsNever() {
		keyType = types.Arraykey()
	}
	return keyType, valType
}
