package report

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// ============================================================================
// LSP 诊断适配
// ============================================================================
//
// 语言服务器本体在外部；这里只负责把 Issue 转换为 LSP 诊断结构，
// 供服务器边界直接发布。

// severityToLSP 级别映射
func severityToLSP(l Level) protocol.DiagnosticSeverity {
	switch l {
	case LevelError:
		return protocol.DiagnosticSeverityError
	case LevelWarning:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

// ToDiagnostic 把单个 Issue 转换为 LSP 诊断
//
// Issue 位置是 1 起始的行列，LSP 是 0 起始。
func ToDiagnostic(i Issue) protocol.Diagnostic {
	line := uint32(0)
	if i.Pos.Line > 0 {
		line = uint32(i.Pos.Line - 1)
	}
	col := uint32(0)
	if i.Pos.Column > 0 {
		col = uint32(i.Pos.Column - 1)
	}
	rng := protocol.Range{
		Start: protocol.Position{Line: line, Character: col},
		End:   protocol.Position{Line: line, Character: col + 1},
	}

	d := protocol.Diagnostic{
		Range:    rng,
		Severity: severityToLSP(i.Severity),
		Code:     i.Code,
		Source:   "solastan",
		Message:  i.Message,
	}

	// 污点轨迹映射为相关信息，客户端可逐步跳转
	for _, step := range i.Trace {
		sLine := uint32(0)
		if step.Pos.Line > 0 {
			sLine = uint32(step.Pos.Line - 1)
		}
		d.RelatedInformation = append(d.RelatedInformation, protocol.DiagnosticRelatedInformation{
			Location: protocol.Location{
				URI: uri.File(step.Pos.Filename),
				Range: protocol.Range{
					Start: protocol.Position{Line: sLine, Character: 0},
					End:   protocol.Position{Line: sLine, Character: 1},
				},
			},
			Message: step.Desc,
		})
	}
	return d
}

// ToDiagnostics 按文件分组转换全部问题
func ToDiagnostics(issues []Issue) map[uri.URI][]protocol.Diagnostic {
	out := make(map[uri.URI][]protocol.Diagnostic)
	for _, i := range issues {
		u := uri.File(i.Pos.Filename)
		out[u] = append(out[u], ToDiagnostic(i))
	}
	return out
}
