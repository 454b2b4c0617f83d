// Package dataflow 实现全程序数据流图及其两个消费查询
//
// 图在分析阶段由控制流遍历器作为副作用增量写入：每个变量
// 定义/使用、表达式求值、参数和返回都登记为节点，值的流动
// 登记为有向边。递归调用和循环会产生回边，图是有环的。
//
// 写入阶段并发安全（分片加锁的追加结构），节点 id 全局唯一，
// 跨函数的插入顺序无关紧要。分析屏障之后图只读，
// 由未使用代码查询和污点查询消费。
package dataflow

import (
	"sort"
	"sync"

	"go.uber.org/atomic"

	"github.com/tangzhangming/solastan/internal/token"
)

// ============================================================================
// 节点与边
// ============================================================================

// NodeID 节点的全局唯一标识
type NodeID uint64

// NodeKind 流节点的种类
type NodeKind int

const (
	KindVarDef      NodeKind = iota // 变量定义
	KindVarUse                      // 变量使用
	KindExpr                        // 表达式结果
	KindParam                       // 函数参数
	KindReturn                      // 函数返回
	KindProperty                    // 属性存储
	KindArrayOffset                 // 下标存储
)

func (k NodeKind) String() string {
	switch k {
	case KindVarDef:
		return "def"
	case KindVarUse:
		return "use"
	case KindExpr:
		return "expr"
	case KindParam:
		return "param"
	case KindReturn:
		return "return"
	case KindProperty:
		return "property"
	case KindArrayOffset:
		return "offset"
	default:
		return "unknown"
	}
}

// Node 一个流节点
//
// 节点一经插入即只读；污点标签在插入前设置完毕。
type Node struct {
	ID   NodeID         // 全局唯一 id（由图分配）
	Kind NodeKind       // 节点种类
	Path string         // 关联路径（变量/属性节点）
	Pos  token.Position // 源位置

	SourceLabels []string // 污点源标签
	SinkLabels   []string // 污点汇标签

	// RemovesIfTrue 条件剪除标记：真分支中经过该节点的
	// 路径移除这些标签
	RemovesIfTrue []string
}

// Edge 有向边：从生产者节点指向消费者节点
type Edge struct {
	From NodeID
	To   NodeID

	// BlockedLabels 边上的标签过滤器（净化器）：
	// 传播中的标签集合减去这些标签
	BlockedLabels []string

	// Conditional 真分支剪除边：激活起点的 RemovesIfTrue 标记
	Conditional bool
}

// ============================================================================
// Graph - 分片图
// ============================================================================

const shardCount = 16

type shard struct {
	mu    sync.Mutex
	nodes map[NodeID]*Node
	out   map[NodeID][]Edge
}

// Graph 全程序数据流图
type Graph struct {
	shards [shardCount]shard

	nextID    atomic.Uint64
	nodeCount atomic.Int64
	edgeCount atomic.Int64
}

// NewGraph 创建空图
func NewGraph() *Graph {
	g := &Graph{}
	for i := range g.shards {
		g.shards[i].nodes = make(map[NodeID]*Node)
		g.shards[i].out = make(map[NodeID][]Edge)
	}
	return g
}

func (g *Graph) shardFor(id NodeID) *shard {
	return &g.shards[uint64(id)%shardCount]
}

// AddNode 插入节点并分配全局唯一 id
//
// 返回后节点视为只读。
func (g *Graph) AddNode(n *Node) *Node {
	n.ID = NodeID(g.nextID.Inc())
	s := g.shardFor(n.ID)
	s.mu.Lock()
	s.nodes[n.ID] = n
	s.mu.Unlock()
	g.nodeCount.Inc()
	return n
}

// AddEdge 插入有向边
func (g *Graph) AddEdge(e Edge) {
	s := g.shardFor(e.From)
	s.mu.Lock()
	s.out[e.From] = append(s.out[e.From], e)
	s.mu.Unlock()
	g.edgeCount.Inc()
}

// Node 查询节点
func (g *Graph) Node(id NodeID) (*Node, bool) {
	s := g.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	return n, ok
}

// OutEdges 查询节点的出边
func (g *Graph) OutEdges(id NodeID) []Edge {
	s := g.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out[id]
}

// Nodes 返回满足过滤条件的节点（按 id 排序，保证确定性）
func (g *Graph) Nodes(keep func(*Node) bool) []*Node {
	var result []*Node
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		for _, n := range s.nodes {
			if keep == nil || keep(n) {
				result = append(result, n)
			}
		}
		s.mu.Unlock()
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// NodeCount 返回节点总数
func (g *Graph) NodeCount() int64 { return g.nodeCount.Load() }

// EdgeCount 返回边总数
func (g *Graph) EdgeCount() int64 { return g.edgeCount.Load() }

// ============================================================================
// 标签集合操作
// ============================================================================

// labelKey 返回标签集合的规范表示（用于访问备忘）
func labelKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	key := ""
	for i, l := range sorted {
		if i > 0 {
			key += ","
		}
		key += l
	}
	return key
}

// subtractLabels 求标签差集
func subtractLabels(labels, removed []string) []string {
	if len(removed) == 0 {
		return labels
	}
	var result []string
	for _, l := range labels {
		blocked := false
		for _, r := range removed {
			if l == r {
				blocked = true
				break
			}
		}
		if !blocked {
			result = append(result, l)
		}
	}
	return result
}

// intersectLabels 求标签交集
func intersectLabels(a, b []string) []string {
	var result []string
	for _, l := range a {
		for _, r := range b {
			if l == r {
				result = append(result, l)
				break
			}
		}
	}
	return result
}
