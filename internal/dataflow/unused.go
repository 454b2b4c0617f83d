package dataflow

import (
	"github.com/tangzhangming/solastan/internal/token"
)

// ============================================================================
// 未使用代码查询
// ============================================================================

// DefaultUnusedDepth 未使用查询的前向搜索深度上限
const DefaultUnusedDepth = 40

// UnusedFinding 一个未被使用的定义
type UnusedFinding struct {
	Node *Node // 定义节点
}

// FindUnusedDefinitions 查找没有任何后继使用的变量定义
//
// 对每个定义节点做深度受限的前向搜索：在同一路径的下一次
// 定义之前能到达任意使用节点即视为已使用。分支汇合会产生
// 指向同一源位置的冗余定义节点，结果按源位置去重，
// 每个位置只报告一次。
func FindUnusedDefinitions(g *Graph, maxDepth int) []UnusedFinding {
	if maxDepth <= 0 {
		maxDepth = DefaultUnusedDepth
	}

	defs := g.Nodes(func(n *Node) bool { return n.Kind == KindVarDef })

	var findings []UnusedFinding
	reported := make(map[token.Position]bool)
	for _, def := range defs {
		if reported[def.Pos] {
			continue
		}
		if defReachesUse(g, def, maxDepth) {
			continue
		}
		reported[def.Pos] = true
		findings = append(findings, UnusedFinding{Node: def})
	}
	return findings
}

// defReachesUse 判断定义节点是否能到达同路径的使用节点
//
// 遇到同一路径的再次定义时该分支搜索终止（旧值已被覆盖）。
func defReachesUse(g *Graph, def *Node, maxDepth int) bool {
	type item struct {
		id    NodeID
		depth int
	}
	visited := map[NodeID]bool{def.ID: true}
	queue := []item{{id: def.ID}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range g.OutEdges(cur.id) {
			next, ok := g.Node(e.To)
			if !ok || visited[next.ID] {
				continue
			}
			visited[next.ID] = true

			if next.Kind == KindVarUse && next.Path == def.Path {
				return true
			}
			if next.Kind == KindVarDef && next.Path == def.Path {
				// 再次定义覆盖旧值，该方向不再延伸
				continue
			}
			// 其他节点（表达式、参数、返回）透明传递
			if next.Kind != KindVarDef {
				queue = append(queue, item{id: next.ID, depth: cur.depth + 1})
			}
		}
	}
	return false
}
