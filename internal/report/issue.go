// Package report 定义分析结果的问题模型和输出适配
//
// 分析核心只产出 Issue 值，渲染（终端、JSON、LSP 诊断）
// 由外部边界消费这里的适配函数。
package report

import (
	"fmt"

	"github.com/tangzhangming/solastan/internal/token"
)

// ============================================================================
// 问题级别
// ============================================================================

// Level 问题级别
type Level int

const (
	LevelError   Level = iota // 错误
	LevelWarning              // 警告
	LevelNote                 // 提示
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelNote:
		return "note"
	default:
		return "unknown"
	}
}

// ============================================================================
// Issue - 单个分析发现
// ============================================================================

// TraceStep 污点轨迹的一步
type TraceStep struct {
	Pos  token.Position `json:"pos"`
	Desc string         `json:"desc"`
}

// Issue 单个分析发现
type Issue struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Pos      token.Position `json:"pos"`
	Severity Level          `json:"severity"`

	// Trace 源到汇的代表性路径（仅污点发现）
	Trace []TraceStep `json:"trace,omitempty"`
}

// New 创建问题
func New(code string, severity Level, pos token.Position, format string, args ...interface{}) Issue {
	return Issue{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Pos:      pos,
		Severity: severity,
	}
}

// String 返回问题的单行表示
func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s [%s]", i.Pos, i.Severity, i.Message, i.Code)
}
