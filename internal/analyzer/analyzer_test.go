package analyzer

import (
	"testing"

	"github.com/tangzhangming/solastan/internal/ast"
	"github.com/tangzhangming/solastan/internal/codebase"
	"github.com/tangzhangming/solastan/internal/report"
	"github.com/tangzhangming/solastan/internal/token"
	"github.com/tangzhangming/solastan/internal/types"
)

func pos(file string, line int) token.Position {
	return token.Position{Filename: file, Line: line, Column: 1}
}

func testCodebase() *codebase.Codebase {
	cb := codebase.New()
	cb.AddFunction(&codebase.FunctionSig{Name: "get_input", Return: types.String()})
	cb.AddFunction(&codebase.FunctionSig{
		Name:   "render",
		Params: []codebase.ParamSig{{Name: "$s", Type: types.String()}},
		Return: types.Void(),
	})
	cb.AddFunction(&codebase.FunctionSig{
		Name:   "consume",
		Params: []codebase.ParamSig{{Name: "$v", Type: types.Mixed()}},
		Return: types.Void(),
	})
	cb.RegisterTaint("get_input", codebase.TaintSpec{SourceLabels: []string{"html"}})
	cb.RegisterTaint("render", codebase.TaintSpec{SinkParams: map[int][]string{0: {"html"}}})
	return cb
}

// taintedFn 构造 $x = get_input(); render($x);
func taintedFn(file string) *ast.FunctionDecl {
	return &ast.FunctionDecl{
		Name: "show",
		Body: &ast.BlockStmt{Statements: []ast.Statement{
			&ast.AssignStmt{
				Target:   &ast.Variable{Name: "$x", Position: pos(file, 2)},
				Value:    &ast.CallExpr{Callee: "get_input", Position: pos(file, 2)},
				Position: pos(file, 2),
			},
			&ast.ExprStmt{
				Expr: &ast.CallExpr{
					Callee:   "render",
					Args:     []ast.Expression{&ast.Variable{Name: "$x", Position: pos(file, 3)}},
					Position: pos(file, 3),
				},
				Position: pos(file, 3),
			},
		}},
		Position: pos(file, 1),
	}
}

// unusedFn 构造 $y = 1; $y = 2; consume($y);
func unusedFn(file string) *ast.FunctionDecl {
	mk := func(line int, val string) *ast.AssignStmt {
		return &ast.AssignStmt{
			Target:   &ast.Variable{Name: "$y", Position: pos(file, line)},
			Value:    &ast.IntLit{Value: val, Position: pos(file, line)},
			Position: pos(file, line),
		}
	}
	return &ast.FunctionDecl{
		Name: "count_things",
		Body: &ast.BlockStmt{Statements: []ast.Statement{
			mk(2, "1"),
			mk(3, "2"),
			&ast.ExprStmt{
				Expr: &ast.CallExpr{
					Callee:   "consume",
					Args:     []ast.Expression{&ast.Variable{Name: "$y", Position: pos(file, 4)}},
					Position: pos(file, 4),
				},
				Position: pos(file, 4),
			},
		}},
		Position: pos(file, 1),
	}
}

func codesOf(issues []report.Issue) []string {
	codes := make([]string, len(issues))
	for i, is := range issues {
		codes[i] = is.Code
	}
	return codes
}

func TestRunFindsTaintAndUnused(t *testing.T) {
	a := New(testCodebase(), Options{Workers: 4, TaintEnabled: true})
	result, err := a.Run([]*ast.FunctionDecl{
		taintedFn("a.sola"),
		unusedFn("b.sola"),
	})
	if err != nil {
		t.Fatal(err)
	}

	var taint, unused *report.Issue
	for i := range result.Issues {
		switch result.Issues[i].Code {
		case report.A0601:
			taint = &result.Issues[i]
		case report.A0600:
			unused = &result.Issues[i]
		}
	}
	if taint == nil {
		t.Fatalf("expected taint finding, got %v", codesOf(result.Issues))
	}
	if len(taint.Trace) < 2 {
		t.Errorf("taint finding should carry a trace, got %d steps", len(taint.Trace))
	}
	if taint.Pos.Filename != "a.sola" {
		t.Errorf("taint finding at wrong file: %s", taint.Pos.Filename)
	}
	if unused == nil {
		t.Fatalf("expected unused-assignment finding, got %v", codesOf(result.Issues))
	}
	if unused.Pos.Line != 2 {
		t.Errorf("unused finding should point at the first assignment, got line %d", unused.Pos.Line)
	}

	if result.Stats.Functions != 2 {
		t.Errorf("stats functions = %d, want 2", result.Stats.Functions)
	}
	if result.Stats.FlowNodes == 0 || result.Stats.FlowEdges == 0 {
		t.Errorf("stats should count graph size, got %+v", result.Stats)
	}
}

func TestRunTaintDisabled(t *testing.T) {
	a := New(testCodebase(), Options{TaintEnabled: false})
	result, err := a.Run([]*ast.FunctionDecl{taintedFn("a.sola")})
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range result.Issues {
		if i.Code == report.A0601 {
			t.Fatal("taint query must not run when disabled")
		}
	}
}

func TestRunSortsDeterministically(t *testing.T) {
	fns := []*ast.FunctionDecl{
		unusedFn("z.sola"),
		unusedFn("a.sola"),
		unusedFn("m.sola"),
	}
	a := New(testCodebase(), Options{Workers: 3})
	result, err := a.Run(fns)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(result.Issues); i++ {
		if result.Issues[i-1].Pos.Filename > result.Issues[i].Pos.Filename {
			t.Fatalf("issues not sorted by file: %v", codesOf(result.Issues))
		}
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	bad := &ast.FunctionDecl{
		Name:     "bad",
		Params:   []*ast.Param{nil}, // 畸形声明触发 panic
		Body:     &ast.BlockStmt{},
		Position: pos("p.sola", 1),
	}
	a := New(testCodebase(), Options{})
	result, err := a.Run([]*ast.FunctionDecl{bad, unusedFn("ok.sola")})
	if err == nil {
		t.Fatal("expected aggregated error from panicking function")
	}
	// 其余函数照常完成
	found := false
	for _, i := range result.Issues {
		if i.Code == report.A0600 && i.Pos.Filename == "ok.sola" {
			found = true
		}
	}
	if !found {
		t.Errorf("healthy function should still be analyzed: %v", codesOf(result.Issues))
	}
}
