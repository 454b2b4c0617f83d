// Package config 实现 solastan 配置文件的加载
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// 常量定义
const (
	ConfigFileName = "solastan.toml" // 配置文件名
)

// Config 分析器配置
type Config struct {
	Analysis AnalysisConfig `toml:"analysis"`
	Taint    TaintConfig    `toml:"taint"`
	Cache    CacheConfig    `toml:"cache"`
}

// AnalysisConfig 分析行为配置
type AnalysisConfig struct {
	// Paths 被分析的源码目录
	Paths []string `toml:"paths"`

	// Workers 并行分析的工作协程数（0 表示 GOMAXPROCS）
	Workers int `toml:"workers"`

	// LoopCap 循环不动点迭代上限
	LoopCap int `toml:"loop_cap"`

	// UnusedDepth 未使用代码查询的搜索深度上限
	UnusedDepth int `toml:"unused_depth"`

	// Verbose 输出详细日志
	Verbose bool `toml:"verbose"`
}

// TaintConfig 污点分析配置
type TaintConfig struct {
	// Enabled 是否运行污点查询
	Enabled bool `toml:"enabled"`

	// Table 污点标签表文件路径（相对配置文件所在目录）
	Table string `toml:"table"`
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	// Enabled 是否启用分析结果缓存
	Enabled bool `toml:"enabled"`

	// Dir 缓存目录（空则用默认目录）
	Dir string `toml:"dir"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Paths:       []string{"."},
			LoopCap:     6,
			UnusedDepth: 40,
		},
		Taint: TaintConfig{Enabled: true},
		Cache: CacheConfig{Enabled: true},
	}
}

// Load 从文件加载配置
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// FindConfigFile 从 dir 向上查找最近的配置文件
//
// 找不到时返回空字符串，调用方退回默认配置。
func FindConfigFile(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(abs, ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return ""
		}
		abs = parent
	}
}
