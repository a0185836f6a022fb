package chess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/park285/cheese-versus/internal/chess/uci"
	"github.com/park285/cheese-versus/internal/chess/uci/ucitest"
)

func TestMain(m *testing.M) {
	ucitest.MaybeRun()
	os.Exit(m.Run())
}

func newTestEngine(t *testing.T, mode string) *Engine {
	t.Helper()
	t.Setenv(ucitest.EnvMode, mode)
	p := uci.DefaultPolicy()
	p.MoveTime = 50 * time.Millisecond
	e, err := NewEngine(os.Args[0], p, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func receive(t *testing.T, ch <-chan ThinkResult) (ThinkResult, bool) {
	t.Helper()
	select {
	case res, ok := <-ch:
		return res, ok
	case <-time.After(15 * time.Second):
		t.Fatalf("no result from engine")
		return ThinkResult{}, false
	}
}

func TestNewEngineMissingBinary(t *testing.T) {
	_, err := NewEngine(filepath.Join(t.TempDir(), "missing"), uci.DefaultPolicy(), nil)
	if err == nil {
		t.Fatalf("expected error for missing binary")
	}
}

func TestThinkDeliversOneResult(t *testing.T) {
	e := newTestEngine(t, ucitest.ModeScenarioA)
	ch, err := e.Think(context.Background(), "g1", "startpos")
	if err != nil {
		t.Fatalf("Think: %v", err)
	}
	res, ok := receive(t, ch)
	if !ok {
		t.Fatalf("channel closed without result")
	}
	if res.Err != nil || res.Decision.Move.String() != "e2e4" || res.GameID != "g1" {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected exactly one result")
	}
	if e.Thinking("g1") {
		t.Fatalf("slot should be released")
	}
}

func TestThinkRejectsSecondSessionForGame(t *testing.T) {
	e := newTestEngine(t, ucitest.ModeHang)
	if _, err := e.Think(context.Background(), "g1", "startpos"); err != nil {
		t.Fatalf("Think: %v", err)
	}
	if _, err := e.Think(context.Background(), "g1", "startpos"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("err = %v, want ErrSessionActive", err)
	}
	other, err := e.Think(context.Background(), "g2", "startpos")
	if err != nil {
		t.Fatalf("other game must be allowed: %v", err)
	}
	e.Cancel("g2")
	if _, ok := receive(t, other); ok {
		t.Fatalf("cancelled turn must not deliver a result")
	}
}

func TestThinkCancelAbandonsTurn(t *testing.T) {
	e := newTestEngine(t, ucitest.ModeHang)
	ch, err := e.Think(context.Background(), "g1", "startpos")
	if err != nil {
		t.Fatalf("Think: %v", err)
	}
	if !e.Cancel("g1") {
		t.Fatalf("Cancel should find the running session")
	}
	if _, ok := receive(t, ch); ok {
		t.Fatalf("cancelled turn must not deliver a result")
	}
	if e.Thinking("g1") {
		t.Fatalf("slot must be free after cancel")
	}
}

func TestThinkFailureIsDelivered(t *testing.T) {
	e := newTestEngine(t, ucitest.ModeNoMove)
	ch, err := e.Think(context.Background(), "g1", "startpos")
	if err != nil {
		t.Fatalf("Think: %v", err)
	}
	res, ok := receive(t, ch)
	if !ok || !errors.Is(res.Err, uci.ErrNoLegalMove) {
		t.Fatalf("result = %+v ok=%v", res, ok)
	}
}

func TestEvaluateHonoursContext(t *testing.T) {
	e := newTestEngine(t, ucitest.ModeHang)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := e.Evaluate(ctx, "startpos")
	if !errors.Is(err, uci.ErrEngineTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestEvaluate(t *testing.T) {
	e := newTestEngine(t, ucitest.ModeBound)
	d, err := e.Evaluate(context.Background(), "startpos")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if d.Move.String() != "d2d4" || d.Evaluation == nil || d.Evaluation.Bound != uci.BoundUpper {
		t.Fatalf("decision = %+v", d)
	}
}
