package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/cheese-versus/internal/chess/uci"
)

func newCatalog(t *testing.T, dir string) *Catalog {
	t.Helper()
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestEmbeddedDefaults(t *testing.T) {
	c := newCatalog(t, "")
	if got := c.Text("status.white_turn", nil); got != "White to move" {
		t.Fatalf("white_turn = %q", got)
	}
	got, err := c.Render("evaluation.pv", map[string]any{"Line": "e2e4 e7e5"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Best line: e2e4 e7e5" {
		t.Fatalf("pv = %q", got)
	}
}

func TestEveryEngineFailureHasText(t *testing.T) {
	c := newCatalog(t, "")
	kinds := []uci.ErrorKind{
		uci.KindUnknown,
		uci.KindSpawnFailure,
		uci.KindStreamClosedPrematurely,
		uci.KindUnparsableBestMove,
		uci.KindNoLegalMove,
		uci.KindEngineProposedIllegalMove,
		uci.KindEngineTimeout,
	}
	for _, kind := range kinds {
		key := "error." + kind.String()
		if !c.Has(key) {
			t.Fatalf("missing %s", key)
		}
		got := c.Text(key, map[string]any{"Token": "a1a8"})
		if got == key || strings.Contains(got, "{{") {
			t.Fatalf("%s rendered %q", key, got)
		}
	}
	if got := c.Text("error.engine_proposed_illegal_move", map[string]any{"Token": "a1a8"}); got != "The engine proposed an illegal move (a1a8). It was declined." {
		t.Fatalf("illegal move text = %q", got)
	}
	// Cancelled turns are never shown.
	if c.Has("error." + uci.KindCanceled.String()) {
		t.Fatalf("canceled should have no text")
	}
}

func TestTextFallsBackToKey(t *testing.T) {
	c := newCatalog(t, "")
	if _, err := c.Render("result.draw", map[string]any{}); err == nil {
		t.Fatalf("expected missing field error")
	}
	if got := c.Text("result.draw", map[string]any{}); got != "result.draw" {
		t.Fatalf("missing field fallback = %q", got)
	}
	if got := c.Text("error.no_such_kind", nil); got != "error.no_such_kind" {
		t.Fatalf("unknown key fallback = %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Text("status.thinking", nil); got != "status.thinking" {
		t.Fatalf("nil catalog fallback = %q", got)
	}
	if nilCat.Has("status.thinking") {
		t.Fatalf("nil catalog has no texts")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "status:\n  thinking: \"Hmm...\"\n")
	writeFile(t, dir, "b.yml", "error:\n  engine_timeout: \"Too slow.\"\nstatus:\n  thinking: \"Pondering\"\n")
	writeFile(t, dir, "notes.txt", "ignored")

	c := newCatalog(t, dir)
	if got := c.Text("status.thinking", nil); got != "Pondering" {
		t.Fatalf("later file should win, got %q", got)
	}
	if got := c.Text("error.engine_timeout", nil); got != "Too slow." {
		t.Fatalf("override = %q", got)
	}
	if got := c.Text("status.black_turn", nil); got != "Black to move" {
		t.Fatalf("defaults must survive overrides, got %q", got)
	}
}

func TestOverrideDirRejectsBadFiles(t *testing.T) {
	tests := map[string]string{
		"unknown key":  "status:\n  your_move: \"Go\"\n",
		"bad template": "status:\n  thinking: \"{{.Oops\"\n",
		"empty text":   "status:\n  thinking: \"\"\n",
		"list leaf":    "status:\n  thinking: [a, b]\n",
	}
	for name, body := range tests {
		dir := t.TempDir()
		writeFile(t, dir, "override.yaml", body)
		if _, err := New(dir); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("missing dir: expected error")
	}
}
