package cache

import (
	"testing"

	"github.com/tangzhangming/solastan/internal/report"
	"github.com/tangzhangming/solastan/internal/token"
)

func TestLookupMissThenHit(t *testing.T) {
	m := NewManager(t.TempDir())
	content := []byte("function f(): void {}")

	if _, ok := m.Lookup("a.sola", content); ok {
		t.Fatal("expected miss on empty cache")
	}

	issues := []report.Issue{
		report.New(report.A0100, report.LevelError,
			token.Position{Filename: "a.sola", Line: 3, Column: 5}, "undefined variable $x"),
	}
	m.Store("a.sola", content, issues)

	got, ok := m.Lookup("a.sola", content)
	if !ok {
		t.Fatal("expected hit after store")
	}
	if len(got) != 1 || got[0].Code != report.A0100 {
		t.Fatalf("unexpected cached issues: %+v", got)
	}
}

func TestLookupRejectsChangedContent(t *testing.T) {
	m := NewManager(t.TempDir())
	m.Store("a.sola", []byte("v1"), nil)

	if _, ok := m.Lookup("a.sola", []byte("v2")); ok {
		t.Fatal("expected miss after content change")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	content := []byte("function g(): int { return 1; }")

	m := NewManager(dir)
	m.Store("b.sola", content, []report.Issue{
		report.New(report.A0600, report.LevelWarning,
			token.Position{Filename: "b.sola", Line: 2, Column: 1}, "unused assignment"),
	})
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}

	reloaded := NewManager(dir)
	got, ok := reloaded.Lookup("b.sola", content)
	if !ok {
		t.Fatal("expected hit after reload")
	}
	if len(got) != 1 || got[0].Pos.Line != 2 {
		t.Fatalf("unexpected reloaded issues: %+v", got)
	}
}

func TestInvalidate(t *testing.T) {
	m := NewManager(t.TempDir())
	content := []byte("x")
	m.Store("c.sola", content, nil)
	m.Invalidate("c.sola")

	if _, ok := m.Lookup("c.sola", content); ok {
		t.Fatal("expected miss after invalidate")
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty index, got %d entries", m.Len())
	}
}

func TestHashContentStable(t *testing.T) {
	a := HashContent([]byte("same"))
	b := HashContent([]byte("same"))
	c := HashContent([]byte("different"))
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == c {
		t.Error("distinct content must hash differently")
	}
}
