// Package scope 实现按程序点版本化的变量类型环境
//
// Scope 是路径（变量名或 $x->prop['key'] 形式的链）到联合类型的映射，
// 表示某个程序点上已证明的类型知识。分支处 Fork 出结构共享的副本，
// 汇合点 Merge 取各分支的类型并集。
//
// 约定 Union 值只读共享：收窄产生新 Union，不原地修改。
package scope

import (
	"sort"
	"strings"

	"github.com/tangzhangming/solastan/internal/types"
)

// Scope 一个程序点上的类型环境
type Scope struct {
	vars        map[string]*types.Union
	unreachable bool
}

// New 创建空环境
func New() *Scope {
	return &Scope{vars: make(map[string]*types.Union)}
}

// ============================================================================
// 路径构造
// ============================================================================

// PropPath 构造属性访问路径 ($x->prop)
func PropPath(base, prop string) string {
	return base + "->" + prop
}

// IndexPath 构造下标访问路径 ($x['key'])
func IndexPath(base, key string) string {
	return base + "['" + key + "']"
}

// isDerivedFrom 判断 path 是否为 base 的派生路径（$x->a、$x['k'] 等）
func isDerivedFrom(path, base string) bool {
	if len(path) <= len(base) || !strings.HasPrefix(path, base) {
		return false
	}
	next := path[len(base)]
	return next == '-' || next == '['
}

// ============================================================================
// 读写
// ============================================================================

// Get 查询路径的类型
func (s *Scope) Get(path string) (*types.Union, bool) {
	u, ok := s.vars[path]
	return u, ok
}

// Set 写入路径的类型，并使其所有派生路径失效
//
// 对 $x 赋值后，之前对 $x->prop 等派生路径的认知不再成立。
func (s *Scope) Set(path string, u *types.Union) {
	for k := range s.vars {
		if isDerivedFrom(k, path) {
			delete(s.vars, k)
		}
	}
	s.vars[path] = u
}

// SetNarrowed 写入收窄结果，不触发派生路径失效
//
// 收窄只是细化既有认知，不代表值被改写；但比被收窄路径更深的
// 派生路径仍然成立。
func (s *Scope) SetNarrowed(path string, u *types.Union) {
	s.vars[path] = u
}

// Delete 移除路径
func (s *Scope) Delete(path string) {
	delete(s.vars, path)
}

// Paths 返回全部已知路径（排序后，保证确定性输出）
func (s *Scope) Paths() []string {
	paths := make([]string, 0, len(s.vars))
	for k := range s.vars {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// Len 返回已知路径数量
func (s *Scope) Len() int { return len(s.vars) }

// ============================================================================
// 可达性
// ============================================================================

// MarkUnreachable 标记该程序点不可达
func (s *Scope) MarkUnreachable() { s.unreachable = true }

// Reachable 判断该程序点是否可达
func (s *Scope) Reachable() bool { return !s.unreachable }

// ============================================================================
// 分叉与汇合
// ============================================================================

// Fork 产生结构共享的副本（Union 值共享，映射复制）
func (s *Scope) Fork() *Scope {
	out := &Scope{
		vars:        make(map[string]*types.Union, len(s.vars)),
		unreachable: s.unreachable,
	}
	for k, v := range s.vars {
		out.vars[k] = v
	}
	return out
}

// Merge 汇合多个分支的环境
//
// 不可达分支不参与汇合；全部不可达时结果不可达。
// 所有分支都有的路径取类型并集；仅部分分支有的路径
// 标记为可能未定义。
func Merge(branches ...*Scope) *Scope {
	var live []*Scope
	for _, b := range branches {
		if b != nil && b.Reachable() {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		out := New()
		out.MarkUnreachable()
		return out
	}
	if len(live) == 1 {
		return live[0].Fork()
	}

	out := New()
	seen := make(map[string]bool)
	for _, b := range live {
		for path := range b.vars {
			if seen[path] {
				continue
			}
			seen[path] = true

			present := 0
			var merged *types.Union
			for _, other := range live {
				u, ok := other.vars[path]
				if !ok {
					continue
				}
				present++
				if merged == nil {
					merged = u
				} else {
					merged = types.Combine(merged, u)
				}
			}
			if present < len(live) {
				merged = merged.Clone()
				merged.PossiblyUndefined = true
			}
			out.vars[path] = merged
		}
	}
	return out
}

// Equals 判断两个环境是否结构相等（用于循环不动点判定）
func (s *Scope) Equals(other *Scope) bool {
	if s.unreachable != other.unreachable {
		return false
	}
	if len(s.vars) != len(other.vars) {
		return false
	}
	for k, v := range s.vars {
		ov, ok := other.vars[k]
		if !ok || !v.Equals(ov) {
			return false
		}
	}
	return true
}
