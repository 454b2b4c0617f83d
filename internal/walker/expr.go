package walker

import (
	"github.com/tangzhangming/solastan/internal/ast"
	"github.com/tangzhangming/solastan/internal/codebase"
	"github.com/tangzhangming/solastan/internal/dataflow"
	"github.com/tangzhangming/solastan/internal/reconciler"
	"github.com/tangzhangming/solastan/internal/report"
	"github.com/tangzhangming/solastan/internal/scope"
	"github.com/tangzhangming/solastan/internal/token"
	"github.com/tangzhangming/solastan/internal/types"
)

// ============================================================================
// 表达式分析
// ============================================================================

// analyzeExpr 推断表达式类型并登记数据流节点
//
// 返回推断类型和代表该表达式值的流节点；字面量等
// 不携带污点的表达式返回 nil 节点。
func (w *Walker) analyzeExpr(sc *scope.Scope, e ast.Expression) (*types.Union, *dataflow.Node) {
	t, n := w.exprImpl(sc, e)
	w.exprTypes[e] = t
	return t, n
}

func (w *Walker) exprImpl(sc *scope.Scope, e ast.Expression) (*types.Union, *dataflow.Node) {
	switch x := e.(type) {
	case *ast.Variable:
		return w.analyzeVariable(sc, x)

	case *ast.PropertyAccess:
		return w.analyzePropertyAccess(sc, x)

	case *ast.IndexAccess:
		return w.analyzeIndexAccess(sc, x)

	case *ast.CallExpr:
		return w.analyzeCall(sc, x)

	case *ast.MethodCall:
		return w.analyzeMethodCall(sc, x)

	case *ast.NewExpr:
		return w.analyzeNew(sc, x)

	case *ast.BinaryExpr:
		return w.analyzeBinary(sc, x)

	case *ast.UnaryExpr:
		return w.analyzeUnary(sc, x)

	case *ast.IsExpr:
		w.analyzeExpr(sc, x.Operand)
		return types.Bool(), nil

	case *ast.TernaryExpr:
		return w.analyzeTernary(sc, x)

	case *ast.IntLit:
		return types.IntLiteral(x.Value), nil
	case *ast.FloatLit:
		return types.Float(), nil
	case *ast.StringLit:
		return types.StringLiteral(x.Value), nil
	case *ast.BoolLit:
		return types.BoolLiteral(x.Value), nil
	case *ast.NullLit:
		return types.Null(), nil

	case *ast.VecLit:
		return w.analyzeVecLit(sc, x)
	case *ast.DictLit:
		return w.analyzeDictLit(sc, x)
	}
	return types.Mixed(), nil
}

// analyzeVariable 变量读取
func (w *Walker) analyzeVariable(sc *scope.Scope, e *ast.Variable) (*types.Union, *dataflow.Node) {
	t, ok := sc.Get(e.Name)
	if !ok {
		w.report(report.New(report.A0100, report.LevelError, e.Position,
			"undefined variable %s", e.Name))
		t = types.Mixed()
	} else if t.PossiblyUndefined {
		w.report(report.New(report.A0101, report.LevelWarning, e.Position,
			"variable %s may be undefined on some paths", e.Name))
	}

	use := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindVarUse, Path: e.Name, Pos: e.Position})
	if def, ok := w.lastDef[e.Name]; ok {
		w.graph.AddEdge(dataflow.Edge{From: def.ID, To: use.ID})
	}
	return t, use
}

// analyzePropertyAccess 属性读取
//
// 环境里有该路径的收窄结果时优先使用，否则按对象类型
// 逐原子解析声明类型，并把结果登记回环境，使后续针对
// 该路径的收窄有基准可用。
func (w *Walker) analyzePropertyAccess(sc *scope.Scope, e *ast.PropertyAccess) (*types.Union, *dataflow.Node) {
	objType, objNode := w.analyzeExpr(sc, e.Object)

	path, hasPath := reconciler.PathOf(e)
	var result *types.Union
	if hasPath {
		if narrowed, ok := sc.Get(path); ok {
			result = narrowed
		}
	}
	if result == nil {
		result = w.resolveProperty(objType, e)
		if hasPath {
			sc.SetNarrowed(path, result)
		}
	}

	use := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindVarUse, Path: path, Pos: e.Position})
	if hasPath {
		if def, ok := w.lastDef[path]; ok {
			w.graph.AddEdge(dataflow.Edge{From: def.ID, To: use.ID})
		} else if objNode != nil {
			w.graph.AddEdge(dataflow.Edge{From: objNode.ID, To: use.ID})
		}
	} else if objNode != nil {
		w.graph.AddEdge(dataflow.Edge{From: objNode.ID, To: use.ID})
	}
	return result, use
}

// resolveProperty 从对象类型逐原子解析属性声明类型
func (w *Walker) resolveProperty(objType *types.Union, e *ast.PropertyAccess) *types.Union {
	if objType.IsMixed() {
		return types.Mixed()
	}
	if objType.IsNullable() {
		w.report(report.New(report.A0203, report.LevelWarning, e.Position,
			"property access %s on possibly null value", e.String()))
	}

	result := types.Never()
	for _, a := range objType.Atomics {
		obj, ok := a.(types.TNamedObject)
		if !ok {
			continue
		}
		t, found := w.cb.PropertyType(obj.Name, e.Name)
		if !found {
			w.report(report.New(report.A0402, report.LevelError, e.Position,
				"class %s has no property %s", obj.Name, e.Name))
			return types.Mixed()
		}
		result = types.Combine(result, t)
	}
	if result.IsNever() {
		return types.Mixed()
	}
	return result
}

// propertyDeclared 求赋值目标属性的声明类型（任一原子命中即返回）
func (w *Walker) propertyDeclared(objType *types.Union, prop string) (*types.Union, bool) {
	for _, a := range objType.Atomics {
		if obj, ok := a.(types.TNamedObject); ok {
			if t, found := w.cb.PropertyType(obj.Name, prop); found {
				return t, true
			}
		}
	}
	return nil, false
}

// analyzeIndexAccess 下标读取
func (w *Walker) analyzeIndexAccess(sc *scope.Scope, e *ast.IndexAccess) (*types.Union, *dataflow.Node) {
	targType, targNode := w.analyzeExpr(sc, e.Target)
	w.analyzeExpr(sc, e.Index)

	path, hasPath := reconciler.PathOf(e)
	var result *types.Union
	if hasPath {
		if narrowed, ok := sc.Get(path); ok {
			result = narrowed
		}
	}
	if result == nil {
		result = w.resolveIndex(targType, e)
		if hasPath {
			sc.SetNarrowed(path, result)
		}
	}

	use := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindVarUse, Path: path, Pos: e.Position})
	if hasPath {
		if def, ok := w.lastDef[path]; ok {
			w.graph.AddEdge(dataflow.Edge{From: def.ID, To: use.ID})
		} else if targNode != nil {
			w.graph.AddEdge(dataflow.Edge{From: targNode.ID, To: use.ID})
		}
	} else if targNode != nil {
		w.graph.AddEdge(dataflow.Edge{From: targNode.ID, To: use.ID})
	}
	return result, use
}

// resolveIndex 从容器类型解析下标读取结果
//
// shape 的可选字段读取结果标记为可能未定义。
func (w *Walker) resolveIndex(targType *types.Union, e *ast.IndexAccess) *types.Union {
	if targType.IsMixed() {
		return types.Mixed()
	}
	lit, hasLit := literalIndex(e.Index)

	result := types.Never()
	possiblyUndefined := false
	for _, a := range targType.Atomics {
		switch x := a.(type) {
		case types.TContainer:
			result = types.Combine(result, x.ValueType)
		case types.TShape:
			if !hasLit {
				for _, f := range x.Fields {
					result = types.Combine(result, f.Type)
				}
				continue
			}
			if f, ok := x.FieldByKey(lit); ok {
				result = types.Combine(result, f.Type)
				if f.Optional {
					possiblyUndefined = true
				}
			} else if x.Open {
				result = types.Mixed()
			}
		case types.TTuple:
			for _, elem := range x.Elems {
				result = types.Combine(result, elem)
			}
		}
	}
	if result.IsNever() {
		return types.Mixed()
	}
	if possiblyUndefined {
		result = result.Clone()
		result.PossiblyUndefined = true
	}
	return result
}

// literalIndex 提取字面量下标的规范键文本
func literalIndex(e ast.Expression) (string, bool) {
	switch x := e.(type) {
	case *ast.StringLit:
		return x.Value, true
	case *ast.IntLit:
		return x.Value, true
	}
	return "", false
}

// analyzeCall 自由函数调用
func (w *Walker) analyzeCall(sc *scope.Scope, e *ast.CallExpr) (*types.Union, *dataflow.Node) {
	argTypes := make([]*types.Union, len(e.Args))
	argNodes := make([]*dataflow.Node, len(e.Args))
	for i, arg := range e.Args {
		argTypes[i], argNodes[i] = w.analyzeExpr(sc, arg)
	}

	result := types.Mixed()
	sig, found := w.cb.Function(e.Callee)
	if !found {
		w.report(report.New(report.A0300, report.LevelError, e.Position,
			"call to undefined function %s", e.Callee))
	} else {
		w.checkArgs(sig, e.Callee, argTypes, e)
		if sig.Return != nil {
			result = sig.Return
			if sig.FromDocblock && !result.FromDocblock {
				result = result.Clone()
				result.FromDocblock = true
			}
		}
	}

	node := w.callNode(e.Callee, e.Position, argNodes, nil)
	return result, node
}

// analyzeMethodCall 方法调用
func (w *Walker) analyzeMethodCall(sc *scope.Scope, e *ast.MethodCall) (*types.Union, *dataflow.Node) {
	objType, objNode := w.analyzeExpr(sc, e.Object)

	argTypes := make([]*types.Union, len(e.Args))
	argNodes := make([]*dataflow.Node, len(e.Args))
	for i, arg := range e.Args {
		argTypes[i], argNodes[i] = w.analyzeExpr(sc, arg)
	}

	if objType.IsNullable() {
		w.report(report.New(report.A0203, report.LevelWarning, e.Position,
			"method call ->%s on possibly null value", e.Method))
	}

	result := types.Mixed()
	qualified := e.Method
	if obj, ok := firstNamedObject(objType); ok {
		qualified = obj.Name + "::" + e.Method
		sig, found := w.cb.Method(obj.Name, e.Method)
		if !found {
			w.report(report.New(report.A0401, report.LevelError, e.Position,
				"class %s has no method %s", obj.Name, e.Method))
		} else {
			w.checkArgs(sig, qualified, argTypes, e)
			if sig.Return != nil {
				result = sig.Return
			}
		}
	}

	node := w.callNode(qualified, e.Position, argNodes, objNode)
	return result, node
}

// analyzeNew 对象实例化
func (w *Walker) analyzeNew(sc *scope.Scope, e *ast.NewExpr) (*types.Union, *dataflow.Node) {
	argNodes := make([]*dataflow.Node, len(e.Args))
	for i, arg := range e.Args {
		_, argNodes[i] = w.analyzeExpr(sc, arg)
	}

	if !w.cb.ClassLikeExists(e.Class) {
		w.report(report.New(report.A0400, report.LevelError, e.Position,
			"instantiation of unknown class %s", e.Class))
		return types.Mixed(), nil
	}

	node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindExpr, Pos: e.Position})
	for _, an := range argNodes {
		if an != nil {
			w.graph.AddEdge(dataflow.Edge{From: an.ID, To: node.ID})
		}
	}
	return types.Object(e.Class), node
}

// checkArgs 实参个数和类型检查
func (w *Walker) checkArgs(sig *codebase.FunctionSig, name string, argTypes []*types.Union, e ast.Expression) {
	required := len(sig.Params)
	variadic := required > 0 && sig.Params[required-1].Variadic
	if variadic {
		required--
	}
	if len(argTypes) < required || (!variadic && len(argTypes) > len(sig.Params)) {
		w.report(report.New(report.A0301, report.LevelError, e.Pos(),
			"%s expects %d argument(s), %d given", name, len(sig.Params), len(argTypes)))
	}
	for i, at := range argTypes {
		var declared *types.Union
		switch {
		case i < len(sig.Params) && !sig.Params[i].Variadic:
			declared = sig.Params[i].Type
		case variadic:
			declared = sig.Params[len(sig.Params)-1].Type
		}
		if declared == nil {
			continue
		}
		if !types.IsSubtype(w.cb, at, declared) {
			w.report(report.New(report.A0202, report.LevelError, e.Pos(),
				"argument %d of %s expects %s, %s given", i+1, name, declared, at))
		}
	}
}

// callNode 构造调用结果节点并接线污点角色
//
// 汇参数的实参流入独立的汇节点；净化参数流经结果节点时
// 标签被边过滤；其余参数保守地直通结果节点。
func (w *Walker) callNode(name string, pos token.Position, argNodes []*dataflow.Node, objNode *dataflow.Node) *dataflow.Node {
	spec, hasTaint := w.cb.Taint(name)

	node := &dataflow.Node{Kind: dataflow.KindExpr, Pos: pos}
	if hasTaint {
		node.SourceLabels = spec.SourceLabels
	}
	for _, effect := range w.cb.Assertions(name) {
		if effect.IgnoreTaintIfTrue {
			node.RemovesIfTrue = append(node.RemovesIfTrue, effect.RemovedLabels...)
		}
	}
	w.graph.AddNode(node)

	if objNode != nil {
		w.graph.AddEdge(dataflow.Edge{From: objNode.ID, To: node.ID})
	}
	for i, an := range argNodes {
		if an == nil {
			continue
		}
		if hasTaint {
			if sinkLabels, ok := spec.SinkParams[i]; ok {
				sink := w.graph.AddNode(&dataflow.Node{
					Kind:       dataflow.KindParam,
					Path:       name,
					Pos:        pos,
					SinkLabels: sinkLabels,
				})
				w.graph.AddEdge(dataflow.Edge{From: an.ID, To: sink.ID})
				continue
			}
			if blocked, ok := spec.SanitizeParams[i]; ok {
				w.graph.AddEdge(dataflow.Edge{From: an.ID, To: node.ID, BlockedLabels: blocked})
				continue
			}
		}
		w.graph.AddEdge(dataflow.Edge{From: an.ID, To: node.ID})
	}
	return node
}

// analyzeBinary 二元运算
func (w *Walker) analyzeBinary(sc *scope.Scope, e *ast.BinaryExpr) (*types.Union, *dataflow.Node) {
	switch e.Op {
	case "&&", "||":
		// 短路运算：右操作数在左操作数的断言环境下分析
		assertion := w.rec.Normalize(e.Left)
		leftThen, leftElse := w.rec.Apply(sc, assertion)
		w.analyzeExpr(sc, e.Left)
		if e.Op == "&&" {
			w.analyzeExpr(leftThen, e.Right)
		} else {
			w.analyzeExpr(leftElse, e.Right)
		}
		return types.Bool(), nil

	case "??":
		leftType, leftNode := w.analyzeExpr(sc, e.Left)
		rightType, rightNode := w.analyzeExpr(sc, e.Right)
		result := types.Combine(leftType.WithoutNull(), rightType)
		node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindExpr, Pos: e.Position})
		for _, n := range []*dataflow.Node{leftNode, rightNode} {
			if n != nil {
				w.graph.AddEdge(dataflow.Edge{From: n.ID, To: node.ID})
			}
		}
		return result, node

	case ".":
		_, leftNode := w.analyzeExpr(sc, e.Left)
		_, rightNode := w.analyzeExpr(sc, e.Right)
		node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindExpr, Pos: e.Position})
		for _, n := range []*dataflow.Node{leftNode, rightNode} {
			if n != nil {
				w.graph.AddEdge(dataflow.Edge{From: n.ID, To: node.ID})
			}
		}
		return types.String(), node

	case "==", "===", "!=", "!==", "<", ">", "<=", ">=":
		w.analyzeExpr(sc, e.Left)
		w.analyzeExpr(sc, e.Right)
		return types.Bool(), nil

	case "+", "-", "*", "/", "%":
		leftType, leftNode := w.analyzeExpr(sc, e.Left)
		rightType, rightNode := w.analyzeExpr(sc, e.Right)
		for _, operand := range []*types.Union{leftType, rightType} {
			if !operand.IsMixed() && !types.IsSubtype(w.cb, operand, types.Num()) {
				w.report(report.New(report.A0200, report.LevelError, e.Position,
					"arithmetic operand expects num, %s given", operand))
			}
		}
		node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindExpr, Pos: e.Position})
		for _, n := range []*dataflow.Node{leftNode, rightNode} {
			if n != nil {
				w.graph.AddEdge(dataflow.Edge{From: n.ID, To: node.ID})
			}
		}
		return arithmeticType(w.cb, e.Op, leftType, rightType), node
	}

	w.analyzeExpr(sc, e.Left)
	w.analyzeExpr(sc, e.Right)
	return types.Mixed(), nil
}

// arithmeticType 算术运算结果类型
func arithmeticType(h types.Hierarchy, op string, l, r *types.Union) *types.Union {
	if op == "/" {
		return types.Num()
	}
	if types.IsSubtype(h, l, types.Int()) && types.IsSubtype(h, r, types.Int()) {
		return types.Int()
	}
	if types.IsSubtype(h, l, types.Float()) || types.IsSubtype(h, r, types.Float()) {
		return types.Float()
	}
	return types.Num()
}

// analyzeUnary 一元运算
func (w *Walker) analyzeUnary(sc *scope.Scope, e *ast.UnaryExpr) (*types.Union, *dataflow.Node) {
	operandType, operandNode := w.analyzeExpr(sc, e.Operand)
	switch e.Op {
	case "!":
		return types.Bool(), nil
	case "-":
		if types.IsSubtype(w.cb, operandType, types.Int()) {
			return types.Int(), operandNode
		}
		if types.IsSubtype(w.cb, operandType, types.Float()) {
			return types.Float(), operandNode
		}
		return types.Num(), operandNode
	}
	return types.Mixed(), operandNode
}

// analyzeTernary 条件表达式：两臂在各自的收窄环境下分析
func (w *Walker) analyzeTernary(sc *scope.Scope, e *ast.TernaryExpr) (*types.Union, *dataflow.Node) {
	w.analyzeExpr(sc, e.Cond)
	thenScope, elseScope := w.rec.Apply(sc, w.rec.Normalize(e.Cond))

	thenType, thenNode := w.analyzeExpr(thenScope, e.Then)
	elseType, elseNode := w.analyzeExpr(elseScope, e.Else)

	var result *types.Union
	switch {
	case !thenScope.Reachable():
		result = elseType
	case !elseScope.Reachable():
		result = thenType
	default:
		result = types.Combine(thenType, elseType)
	}

	node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindExpr, Pos: e.Position})
	for _, n := range []*dataflow.Node{thenNode, elseNode} {
		if n != nil {
			w.graph.AddEdge(dataflow.Edge{From: n.ID, To: node.ID})
		}
	}
	return result, node
}

// analyzeVecLit vec 字面量
func (w *Walker) analyzeVecLit(sc *scope.Scope, e *ast.VecLit) (*types.Union, *dataflow.Node) {
	valType := types.Never()
	node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindExpr, Pos: e.Position})
	for _, elem := range e.Elems {
		t, n := w.analyzeExpr(sc, elem)
		valType = types.Combine(valType, t)
		if n != nil {
			w.graph.AddEdge(dataflow.Edge{From: n.ID, To: node.ID})
		}
	}
	return types.NewUnion(types.TContainer{Kind: types.ContainerVec, ValueType: valType}), node
}

// analyzeDictLit dict 字面量
func (w *Walker) analyzeDictLit(sc *scope.Scope, e *ast.DictLit) (*types.Union, *dataflow.Node) {
	keyType := types.Never()
	valType := types.Never()
	node := w.graph.AddNode(&dataflow.Node{Kind: dataflow.KindExpr, Pos: e.Position})
	for i := range e.Values {
		if i < len(e.Keys) {
			kt, _ := w.analyzeExpr(sc, e.Keys[i])
			keyType = types.Combine(keyType, kt)
		}
		vt, vn := w.analyzeExpr(sc, e.Values[i])
		valType = types.Combine(valType, vt)
		if vn != nil {
			w.graph.AddEdge(dataflow.Edge{From: vn.ID, To: node.ID})
		}
	}
	return types.NewUnion(types.TContainer{Kind: types.ContainerDict, KeyType: keyType, ValueType: valType}), node
}

// firstNamedObject 取并集中第一个具名对象原子
func firstNamedObject(u *types.Union) (types.TNamedObject, bool) {
	for _, a := range u.Atomics {
		if obj, ok := a.(types.TNamedObject); ok {
			return obj, true
		}
	}
	return types.TNamedObject{}, false
}
