package dataflow

import (
	"sort"
)

// ============================================================================
// 污点可达性查询
// ============================================================================

// TaintFinding 一条从源到汇的污点路径
type TaintFinding struct {
	Source *Node    // 源节点
	Sink   *Node    // 汇节点
	Labels []string // 到达汇时仍然存活的标签
	Trace  []*Node  // 代表性路径（源到汇，用于人类可读轨迹）
}

// searchState 搜索状态：节点加上仍然存活的标签集合
type searchState struct {
	node   NodeID
	labels string
}

// taintItem 搜索队列元素，父指针用于还原代表性轨迹
type taintItem struct {
	node   *Node
	labels []string
	parent *taintItem
}

// FindTaintFlows 从每个源节点做前向可达性搜索
//
// 标签沿边传播：净化器边移除特定标签，集合为空时路径消亡；
// 条件剪除边激活起点节点的 RemovesIfTrue 标记。图有环，
// 以 (节点, 剩余标签集合) 为键做访问备忘保证终止，
// 同时保留父指针以还原一条代表性轨迹。
// 每对 (源, 汇) 只报告一次。
func FindTaintFlows(g *Graph) []TaintFinding {
	sources := g.Nodes(func(n *Node) bool { return len(n.SourceLabels) > 0 })

	var findings []TaintFinding
	for _, src := range sources {
		findings = append(findings, traceFromSource(g, src)...)
	}
	return findings
}

// traceFromSource 从单个源节点搜索全部可达的汇
func traceFromSource(g *Graph, src *Node) []TaintFinding {
	visited := make(map[searchState]bool)
	start := &taintItem{node: src, labels: src.SourceLabels}
	visited[searchState{node: src.ID, labels: labelKey(src.SourceLabels)}] = true
	queue := []*taintItem{start}

	seenSinks := make(map[NodeID]bool)
	var findings []TaintFinding

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		// 命中汇：存活标签与汇标签有交集即构成发现
		if cur.node.ID != src.ID && len(cur.node.SinkLabels) > 0 {
			if hit := intersectLabels(cur.labels, cur.node.SinkLabels); len(hit) > 0 {
				if !seenSinks[cur.node.ID] {
					seenSinks[cur.node.ID] = true
					findings = append(findings, TaintFinding{
						Source: src,
						Sink:   cur.node,
						Labels: sortedCopy(hit),
						Trace:  rebuildTrace(cur),
					})
				}
				continue
			}
		}

		for _, e := range g.OutEdges(cur.node.ID) {
			labels := subtractLabels(cur.labels, e.BlockedLabels)
			if e.Conditional && len(cur.node.RemovesIfTrue) > 0 {
				labels = subtractLabels(labels, cur.node.RemovesIfTrue)
			}
			if len(labels) == 0 {
				continue // 标签耗尽，路径消亡
			}
			next, ok := g.Node(e.To)
			if !ok {
				continue
			}
			state := searchState{node: next.ID, labels: labelKey(labels)}
			if visited[state] {
				continue
			}
			visited[state] = true
			queue = append(queue, &taintItem{node: next, labels: labels, parent: cur})
		}
	}
	return findings
}

// rebuildTrace 沿父指针还原源到汇的路径
func rebuildTrace(cur *taintItem) []*Node {
	var reversed []*Node
	for it := cur; it != nil; it = it.parent {
		reversed = append(reversed, it.node)
	}
	trace := make([]*Node, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		trace = append(trace, reversed[i])
	}
	return trace
}

// sortedCopy 返回排序后的标签副本
func sortedCopy(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.Strings(out)
	return out
}
