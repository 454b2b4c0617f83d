package main

import (
	"strings"

	"github.com/tangzhangming/solastan/internal/ast"
	"github.com/tangzhangming/solastan/internal/codebase"
	"github.com/tangzhangming/solastan/internal/token"
	"github.com/tangzhangming/solastan/internal/types"
)

// sampleProgram 构造 selfcheck 用的示例程序
//
// 覆盖流水线的代表性路径：空值收窄、污点源到汇、
// 被遮蔽的赋值。预期输出一个污点发现和一个未使用赋值。
func sampleProgram() (*codebase.Codebase, []*ast.FunctionDecl) {
	cb := codebase.New()
	cb.AddFunction(&codebase.FunctionSig{Name: "get_param", Return: types.String()})
	cb.AddFunction(&codebase.FunctionSig{
		Name:   "echo_html",
		Params: []codebase.ParamSig{{Name: "$s", Type: types.String()}},
		Return: types.Void(),
	})
	cb.AddFunction(&codebase.FunctionSig{
		Name:   "log_value",
		Params: []codebase.ParamSig{{Name: "$v", Type: types.Mixed()}},
		Return: types.Void(),
	})
	cb.RegisterTaint("get_param", codebase.TaintSpec{SourceLabels: []string{"html"}})
	cb.RegisterTaint("echo_html", codebase.TaintSpec{SinkParams: map[int][]string{0: {"html"}}})

	pos := func(line int) token.Position {
		return token.Position{Filename: "selfcheck.sola", Line: line, Column: 1}
	}

	// function greet(?string $name): void {
	//   if ($name === null) { $name = 'guest'; }
	//   $msg = get_param();
	//   echo_html($msg);
	//   log_value($name);
	// }
	greet := &ast.FunctionDecl{
		Name: "greet",
		Params: []*ast.Param{
			{Name: "$name", Type: types.Nullable(types.String()), Position: pos(1)},
		},
		Body: &ast.BlockStmt{Statements: []ast.Statement{
			&ast.IfStmt{
				Cond: &ast.BinaryExpr{
					Op:       "===",
					Left:     &ast.Variable{Name: "$name", Position: pos(2)},
					Right:    &ast.NullLit{Position: pos(2)},
					Position: pos(2),
				},
				Then: &ast.BlockStmt{Statements: []ast.Statement{
					&ast.AssignStmt{
						Target:   &ast.Variable{Name: "$name", Position: pos(3)},
						Value:    &ast.StringLit{Value: "guest", Position: pos(3)},
						Position: pos(3),
					},
				}},
				Position: pos(2),
			},
			&ast.AssignStmt{
				Target:   &ast.Variable{Name: "$msg", Position: pos(5)},
				Value:    &ast.CallExpr{Callee: "get_param", Position: pos(5)},
				Position: pos(5),
			},
			&ast.ExprStmt{
				Expr: &ast.CallExpr{
					Callee:   "echo_html",
					Args:     []ast.Expression{&ast.Variable{Name: "$msg", Position: pos(6)}},
					Position: pos(6),
				},
				Position: pos(6),
			},
			&ast.ExprStmt{
				Expr: &ast.CallExpr{
					Callee:   "log_value",
					Args:     []ast.Expression{&ast.Variable{Name: "$name", Position: pos(7)}},
					Position: pos(7),
				},
				Position: pos(7),
			},
		}},
		Position: pos(1),
	}

	// function busy(bool $again): void {
	//   $tries = 0;
	//   while ($again) { $tries = $tries + 1; }
	//   log_value($tries);
	//   $tries = 0;  // 未使用的赋值
	// }
	busy := &ast.FunctionDecl{
		Name: "busy",
		Params: []*ast.Param{
			{Name: "$again", Type: types.Bool(), Position: pos(10)},
		},
		Body: &ast.BlockStmt{Statements: []ast.Statement{
			&ast.AssignStmt{
				Target:   &ast.Variable{Name: "$tries", Position: pos(11)},
				Value:    &ast.IntLit{Value: "0", Position: pos(11)},
				Position: pos(11),
			},
			&ast.WhileStmt{
				Cond: &ast.Variable{Name: "$again", Position: pos(12)},
				Body: &ast.BlockStmt{Statements: []ast.Statement{
					&ast.AssignStmt{
						Target: &ast.Variable{Name: "$tries", Position: pos(13)},
						Value: &ast.BinaryExpr{
							Op:       "+",
							Left:     &ast.Variable{Name: "$tries", Position: pos(13)},
							Right:    &ast.IntLit{Value: "1", Position: pos(13)},
							Position: pos(13),
						},
						Position: pos(13),
					},
				}},
				Position: pos(12),
			},
			&ast.ExprStmt{
				Expr: &ast.CallExpr{
					Callee:   "log_value",
					Args:     []ast.Expression{&ast.Variable{Name: "$tries", Position: pos(14)}},
					Position: pos(14),
				},
				Position: pos(14),
			},
			&ast.AssignStmt{
				Target:   &ast.Variable{Name: "$tries", Position: pos(15)},
				Value:    &ast.IntLit{Value: "0", Position: pos(15)},
				Position: pos(15),
			},
		}},
		Position: pos(10),
	}

	return cb, []*ast.FunctionDecl{greet, busy}
}

// sampleFingerprint 示例程序的文本形式，充当缓存键的内容
func sampleFingerprint(fns []*ast.FunctionDecl) string {
	var sb strings.Builder
	for _, fn := range fns {
		sb.WriteString(fn.String())
		sb.WriteString("\n")
		for _, stmt := range fn.Body.Statements {
			sb.WriteString(stmt.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
