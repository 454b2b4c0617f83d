package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/protocol"

	"github.com/tangzhangming/solastan/internal/token"
)

func sampleIssue() Issue {
	i := New(A0601, LevelError,
		token.Position{Filename: "/src/a.sola", Line: 10, Column: 3},
		"tainted value reaches sink %s", "render")
	i.Trace = []TraceStep{
		{Pos: token.Position{Filename: "/src/a.sola", Line: 2, Column: 1}, Desc: "expr"},
		{Pos: token.Position{Filename: "/src/a.sola", Line: 10, Column: 3}, Desc: "param render"},
	}
	return i
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	stats := Stats{Functions: 3, Issues: 1, FlowNodes: 42, FlowEdges: 40}
	if err := WriteJSON(&buf, []Issue{sampleIssue()}, stats); err != nil {
		t.Fatal(err)
	}

	var decoded Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Version != ReportVersion {
		t.Errorf("version = %q", decoded.Version)
	}
	if len(decoded.Issues) != 1 || decoded.Issues[0].Code != A0601 {
		t.Fatalf("issues not round-tripped: %+v", decoded.Issues)
	}
	if len(decoded.Issues[0].Trace) != 2 {
		t.Errorf("trace not round-tripped: %+v", decoded.Issues[0].Trace)
	}
	if decoded.Stats.FlowNodes != 42 {
		t.Errorf("stats not round-tripped: %+v", decoded.Stats)
	}
}

func TestWriteJSONEmptyIssuesIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil, Stats{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"issues": []`) {
		t.Errorf("nil issues must serialize as empty array, got:\n%s", buf.String())
	}
}

func TestToDiagnostic(t *testing.T) {
	d := ToDiagnostic(sampleIssue())
	if d.Range.Start.Line != 9 || d.Range.Start.Character != 2 {
		t.Errorf("position must convert to 0-based, got %+v", d.Range.Start)
	}
	if d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %v", d.Severity)
	}
	if d.Source != "solastan" {
		t.Errorf("source = %q", d.Source)
	}
	if len(d.RelatedInformation) != 2 {
		t.Errorf("trace must map to related information, got %d", len(d.RelatedInformation))
	}
}

func TestToDiagnosticsGroupsByFile(t *testing.T) {
	a := New(A0100, LevelError, token.Position{Filename: "/src/a.sola", Line: 1, Column: 1}, "x")
	b := New(A0100, LevelError, token.Position{Filename: "/src/b.sola", Line: 1, Column: 1}, "y")
	c := New(A0600, LevelWarning, token.Position{Filename: "/src/a.sola", Line: 5, Column: 1}, "z")

	grouped := ToDiagnostics([]Issue{a, b, c})
	if len(grouped) != 2 {
		t.Fatalf("expected 2 files, got %d", len(grouped))
	}
	total := 0
	for _, ds := range grouped {
		total += len(ds)
	}
	if total != 3 {
		t.Errorf("expected 3 diagnostics in total, got %d", total)
	}
}

func TestIssueString(t *testing.T) {
	s := sampleIssue().String()
	for _, want := range []string{"a.sola", "10", "error", A0601} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q: %s", want, s)
		}
	}
}
