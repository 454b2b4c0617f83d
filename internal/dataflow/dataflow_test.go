package dataflow

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tangzhangming/solastan/internal/token"
)

func pos(line int) token.Position {
	return token.Position{Filename: "t.sola", Line: line, Column: 1}
}

func TestTaintSourceToSink(t *testing.T) {
	g := NewGraph()

	// $_GET['x'] -> 字符串拼接 -> SQL 汇
	src := g.AddNode(&Node{Kind: KindVarDef, Path: "$input", Pos: pos(1), SourceLabels: []string{"user-input"}})
	concat := g.AddNode(&Node{Kind: KindExpr, Pos: pos(2)})
	sink := g.AddNode(&Node{Kind: KindParam, Pos: pos(3), SinkLabels: []string{"user-input"}})

	g.AddEdge(Edge{From: src.ID, To: concat.ID})
	g.AddEdge(Edge{From: concat.ID, To: sink.ID})

	findings := FindTaintFlows(g)
	if len(findings) != 1 {
		t.Fatalf("expected 1 taint finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Source.ID != src.ID || f.Sink.ID != sink.ID {
		t.Errorf("wrong endpoints: source %d sink %d", f.Source.ID, f.Sink.ID)
	}
	if len(f.Trace) != 3 {
		t.Errorf("expected trace of 3 nodes, got %d", len(f.Trace))
	}
	if f.Trace[0].ID != src.ID || f.Trace[2].ID != sink.ID {
		t.Errorf("trace should run source to sink")
	}
}

func TestTaintSanitizerEdgeKillsPath(t *testing.T) {
	g := NewGraph()

	src := g.AddNode(&Node{Kind: KindVarDef, Path: "$input", Pos: pos(1), SourceLabels: []string{"user-input"}})
	sanitized := g.AddNode(&Node{Kind: KindExpr, Pos: pos(2)})
	sink := g.AddNode(&Node{Kind: KindParam, Pos: pos(3), SinkLabels: []string{"user-input"}})

	// 净化器边移除该标签，集合为空路径消亡
	g.AddEdge(Edge{From: src.ID, To: sanitized.ID, BlockedLabels: []string{"user-input"}})
	g.AddEdge(Edge{From: sanitized.ID, To: sink.ID})

	if findings := FindTaintFlows(g); len(findings) != 0 {
		t.Errorf("sanitized path should produce no findings, got %d", len(findings))
	}
}

func TestTaintSanitizerOnlyBlocksItsLabel(t *testing.T) {
	g := NewGraph()

	src := g.AddNode(&Node{Kind: KindVarDef, Pos: pos(1), SourceLabels: []string{"sql", "xss"}})
	mid := g.AddNode(&Node{Kind: KindExpr, Pos: pos(2)})
	sink := g.AddNode(&Node{Kind: KindParam, Pos: pos(3), SinkLabels: []string{"xss"}})

	// 只净化 sql，xss 继续传播
	g.AddEdge(Edge{From: src.ID, To: mid.ID, BlockedLabels: []string{"sql"}})
	g.AddEdge(Edge{From: mid.ID, To: sink.ID})

	findings := FindTaintFlows(g)
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding for surviving label, got %d", len(findings))
	}
	if len(findings[0].Labels) != 1 || findings[0].Labels[0] != "xss" {
		t.Errorf("expected surviving label xss, got %v", findings[0].Labels)
	}
}

func TestTaintConditionalRemoval(t *testing.T) {
	g := NewGraph()

	src := g.AddNode(&Node{Kind: KindVarDef, Pos: pos(1), SourceLabels: []string{"user-input"}})
	guard := g.AddNode(&Node{
		Kind: KindExpr, Pos: pos(2),
		RemovesIfTrue: []string{"user-input"},
	})
	sink := g.AddNode(&Node{Kind: KindParam, Pos: pos(3), SinkLabels: []string{"user-input"}})

	g.AddEdge(Edge{From: src.ID, To: guard.ID})
	// 真分支的条件边触发 guard 的剪除标记
	g.AddEdge(Edge{From: guard.ID, To: sink.ID, Conditional: true})

	if findings := FindTaintFlows(g); len(findings) != 0 {
		t.Errorf("conditional removal should kill the path, got %d findings", len(findings))
	}

	// 非条件边不触发剪除
	g2 := NewGraph()
	src2 := g2.AddNode(&Node{Kind: KindVarDef, Pos: pos(1), SourceLabels: []string{"user-input"}})
	guard2 := g2.AddNode(&Node{Kind: KindExpr, Pos: pos(2), RemovesIfTrue: []string{"user-input"}})
	sink2 := g2.AddNode(&Node{Kind: KindParam, Pos: pos(3), SinkLabels: []string{"user-input"}})
	g2.AddEdge(Edge{From: src2.ID, To: guard2.ID})
	g2.AddEdge(Edge{From: guard2.ID, To: sink2.ID})

	if findings := FindTaintFlows(g2); len(findings) != 1 {
		t.Errorf("non-conditional edge should keep the path, got %d findings", len(findings))
	}
}

func TestTaintCycleTerminates(t *testing.T) {
	g := NewGraph()

	// 递归调用形成的环
	src := g.AddNode(&Node{Kind: KindVarDef, Pos: pos(1), SourceLabels: []string{"user-input"}})
	a := g.AddNode(&Node{Kind: KindExpr, Pos: pos(2)})
	b := g.AddNode(&Node{Kind: KindExpr, Pos: pos(3)})
	sink := g.AddNode(&Node{Kind: KindParam, Pos: pos(4), SinkLabels: []string{"user-input"}})

	g.AddEdge(Edge{From: src.ID, To: a.ID})
	g.AddEdge(Edge{From: a.ID, To: b.ID})
	g.AddEdge(Edge{From: b.ID, To: a.ID}) // 回边
	g.AddEdge(Edge{From: b.ID, To: sink.ID})

	findings := FindTaintFlows(g)
	if len(findings) != 1 {
		t.Fatalf("cyclic graph should still yield exactly 1 finding, got %d", len(findings))
	}
}

func TestUnusedDefinitionReported(t *testing.T) {
	g := NewGraph()

	// $x 赋值两次，第一次从未被读取
	def1 := g.AddNode(&Node{Kind: KindVarDef, Path: "$x", Pos: pos(1)})
	def2 := g.AddNode(&Node{Kind: KindVarDef, Path: "$x", Pos: pos(2)})
	use := g.AddNode(&Node{Kind: KindVarUse, Path: "$x", Pos: pos(3)})

	g.AddEdge(Edge{From: def1.ID, To: def2.ID})
	g.AddEdge(Edge{From: def2.ID, To: use.ID})

	findings := FindUnusedDefinitions(g, 0)
	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 unused finding, got %d", len(findings))
	}
	if findings[0].Node.ID != def1.ID {
		t.Errorf("expected first definition reported, got node %d", findings[0].Node.ID)
	}
	if findings[0].Node.Pos != pos(1) {
		t.Errorf("finding should carry the first assignment's position")
	}
}

func TestUnusedDeduplicatedBySpan(t *testing.T) {
	g := NewGraph()

	// 分支汇合产生的两个冗余定义节点指向同一源位置
	g.AddNode(&Node{Kind: KindVarDef, Path: "$x", Pos: pos(5)})
	g.AddNode(&Node{Kind: KindVarDef, Path: "$x", Pos: pos(5)})

	findings := FindUnusedDefinitions(g, 0)
	if len(findings) != 1 {
		t.Errorf("same-span definitions should be reported once, got %d", len(findings))
	}
}

func TestUnusedUsedDefinitionNotReported(t *testing.T) {
	g := NewGraph()

	def := g.AddNode(&Node{Kind: KindVarDef, Path: "$x", Pos: pos(1)})
	expr := g.AddNode(&Node{Kind: KindExpr, Pos: pos(2)})
	use := g.AddNode(&Node{Kind: KindVarUse, Path: "$x", Pos: pos(3)})

	// 经过中间表达式节点仍算可达
	g.AddEdge(Edge{From: def.ID, To: expr.ID})
	g.AddEdge(Edge{From: expr.ID, To: use.ID})

	if findings := FindUnusedDefinitions(g, 0); len(findings) != 0 {
		t.Errorf("definition with downstream use should not be reported, got %d", len(findings))
	}
}

func TestGraphConcurrentInsertion(t *testing.T) {
	g := NewGraph()

	var wg sync.WaitGroup
	const workers = 8
	const perWorker = 200

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var prev *Node
			for i := 0; i < perWorker; i++ {
				n := g.AddNode(&Node{
					Kind: KindExpr,
					Path: fmt.Sprintf("$w%d_%d", w, i),
					Pos:  pos(i),
				})
				if prev != nil {
					g.AddEdge(Edge{From: prev.ID, To: n.ID})
				}
				prev = n
			}
		}(w)
	}
	wg.Wait()

	if got := g.NodeCount(); got != workers*perWorker {
		t.Errorf("node count = %d, want %d", got, workers*perWorker)
	}
	if got := g.EdgeCount(); got != workers*(perWorker-1) {
		t.Errorf("edge count = %d, want %d", got, workers*(perWorker-1))
	}

	// id 全局唯一
	seen := make(map[NodeID]bool)
	for _, n := range g.Nodes(nil) {
		if seen[n.ID] {
			t.Fatalf("duplicate node id %d", n.ID)
		}
		seen[n.ID] = true
	}
}
