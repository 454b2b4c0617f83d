package report

import (
	"io"
	"time"

	"github.com/segmentio/encoding/json"
)

// ============================================================================
// JSON 报告输出
// ============================================================================

// Stats 一次分析运行的统计
type Stats struct {
	Functions   int   `json:"functions"`     // 分析的函数数
	Issues      int   `json:"issues"`        // 发现总数
	FlowNodes   int64 `json:"flow_nodes"`    // 数据流节点数
	FlowEdges   int64 `json:"flow_edges"`    // 数据流边数
	LoopCapHits int   `json:"loop_cap_hits"` // 循环不动点达到上限的次数
}

// Report 完整的 JSON 报告
type Report struct {
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Issues      []Issue   `json:"issues"`
	Stats       Stats     `json:"stats"`
}

// ReportVersion 报告格式版本
const ReportVersion = "1"

// WriteJSON 把报告序列化到输出流
func WriteJSON(w io.Writer, issues []Issue, stats Stats) error {
	r := Report{
		Version:     ReportVersion,
		GeneratedAt: time.Now().UTC(),
		Issues:      issues,
		Stats:       stats,
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
