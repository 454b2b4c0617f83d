package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tangzhangming/solastan/internal/codebase"
)

// ============================================================================
// 污点标签表
// ============================================================================
//
// 标签表是独立的 YAML 文件，把函数名映射到污点角色，
// 项目可以在内建表之外声明自己的源/汇/净化器。
//
// 格式示例：
//
//	functions:
//	  get_input:
//	    source: [html, sql]
//	  query:
//	    sink: {0: [sql]}
//	  escape:
//	    sanitize: {0: [html]}

// TaintTable 污点标签表文件
type TaintTable struct {
	Functions map[string]TaintEntry `yaml:"functions"`
}

// TaintEntry 单个函数的污点角色声明
type TaintEntry struct {
	Source       []string         `yaml:"source"`        // 返回值携带的源标签
	ParamSources map[int][]string `yaml:"param_sources"` // 参数下标 -> 源标签
	Sink         map[int][]string `yaml:"sink"`          // 参数下标 -> 汇标签
	Sanitize     map[int][]string `yaml:"sanitize"`      // 参数下标 -> 净化标签
}

// LoadTaintTable 从文件加载污点标签表
func LoadTaintTable(path string) (*TaintTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taint table: %w", err)
	}

	var table TaintTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse taint table: %w", err)
	}
	return &table, nil
}

// Register 把标签表注入声明索引
func (t *TaintTable) Register(cb *codebase.Codebase) {
	for name, entry := range t.Functions {
		cb.RegisterTaint(name, codebase.TaintSpec{
			SourceLabels:   entry.Source,
			ParamSources:   entry.ParamSources,
			SinkParams:     entry.Sink,
			SanitizeParams: entry.Sanitize,
		})
	}
}
