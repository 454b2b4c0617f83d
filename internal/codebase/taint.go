package codebase

// ============================================================================
// 污点标签表
// ============================================================================
//
// 把调用点/参数身份映射到污点角色的声明式标注表，
// 在并行分析阶段开始前构造完毕，之后只读共享。

// TaintSpec 单个函数的污点角色声明
type TaintSpec struct {
	// SourceLabels 返回值携带的污点源标签
	SourceLabels []string

	// ParamSources 参数下标 -> 该参数进入函数体时携带的源标签
	ParamSources map[int][]string

	// SinkParams 参数下标 -> 汇标签（污点到达即构成发现）
	SinkParams map[int][]string

	// SanitizeParams 参数下标 -> 净化标签（流经调用时被移除）
	SanitizeParams map[int][]string
}

// RegisterTaint 注册函数的污点声明
func (cb *Codebase) RegisterTaint(funcName string, spec TaintSpec) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.taints == nil {
		cb.taints = make(map[string]TaintSpec)
	}
	cb.taints[funcName] = spec
}

// Taint 查询函数的污点声明
func (cb *Codebase) Taint(funcName string) (TaintSpec, bool) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	spec, ok := cb.taints[funcName]
	return spec, ok
}
