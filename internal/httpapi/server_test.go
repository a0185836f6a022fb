package httpapi

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	corechess "github.com/park285/cheese-versus/internal/chess"
	"github.com/park285/cheese-versus/internal/chess/uci"
	"github.com/park285/cheese-versus/internal/chess/uci/ucitest"
	"github.com/park285/cheese-versus/internal/msgcat"
	"github.com/park285/cheese-versus/internal/service/game"
	"github.com/park285/cheese-versus/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestMain(m *testing.M) {
	ucitest.MaybeRun()
	os.Exit(m.Run())
}

// newTestClient wires a real engine (this test binary acting as a scripted
// UCI engine) through the game service and an in-memory HTTP listener.
func newTestClient(t *testing.T, mode string) *Client {
	t.Helper()
	t.Setenv(ucitest.EnvMode, mode)

	policy := uci.DefaultPolicy()
	policy.MoveTime = 50 * time.Millisecond
	engine, err := corechess.NewEngine(os.Args[0], policy, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	svc, err := game.NewService(engine, game.NewMemoryStore(), game.NewMemoryRepository(), msgs, game.Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ln := fasthttputil.NewInmemoryListener()
	srv := NewServer(svc, nil)
	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = ln.Close()
		svc.Close()
		_ = engine.Close()
	})
	return NewClient("http://chessd", WithDial(func(string) (net.Conn, error) { return ln.Dial() }), WithRetry(1))
}

func apiCode(t *testing.T, err error) (int, string) {
	t.Helper()
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	return apiErr.Status, apiErr.Code
}

func TestGameFlowOverHTTP(t *testing.T) {
	c := newTestClient(t, ucitest.ModeScenarioA)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}

	g, err := c.NewGame(ctx, "black")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if g.HumanColor != "black" {
		t.Fatalf("human color = %q", g.HumanColor)
	}

	g, err = c.WaitIdle(ctx, g.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if strings.Join(g.MovesUCI, " ") != "e2e4" || g.Turn != "black" {
		t.Fatalf("engine opening not applied: %+v", g)
	}
	if g.Evaluation == nil || g.Evaluation.Centipawns != 35 || g.EvalText != "Evaluation: 35" {
		t.Fatalf("evaluation = %+v text=%q", g.Evaluation, g.EvalText)
	}
	if strings.Join(g.PV, " ") != "e2e4 e7e5" {
		t.Fatalf("pv = %v", g.PV)
	}

	if _, err := c.Play(ctx, g.ID, "e2e5"); err == nil {
		t.Fatalf("expected invalid move")
	} else if status, code := apiCode(t, err); status != fasthttp.StatusBadRequest || code != chessdto.CodeInvalidMove {
		t.Fatalf("status=%d code=%s", status, code)
	}

	if _, err := c.Play(ctx, g.ID, "e5"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	// The scripted engine answers e2e4 again, which is illegal now.
	g, err = c.WaitIdle(ctx, g.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if strings.Join(g.MovesUCI, " ") != "e2e4 e7e5" || !strings.Contains(g.LastError, "e2e4") {
		t.Fatalf("illegal engine move should be declined: %+v", g)
	}

	if _, err := c.Play(ctx, g.ID, "d7d5"); err == nil {
		t.Fatalf("expected not your turn")
	} else if status, code := apiCode(t, err); status != fasthttp.StatusConflict || code != chessdto.CodeNotYourTurn {
		t.Fatalf("status=%d code=%s", status, code)
	}

	g, err = c.Retry(ctx, g.ID)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if !g.Thinking || g.LastError != "" {
		t.Fatalf("retry should start a new engine turn: %+v", g)
	}
	g, err = c.WaitIdle(ctx, g.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if len(g.MovesUCI) != 2 || !strings.Contains(g.LastError, "e2e4") {
		t.Fatalf("retried turn should be declined again: %+v", g)
	}

	g, err = c.Restart(ctx, g.ID)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if len(g.MovesUCI) != 0 || g.LastError != "" {
		t.Fatalf("restart did not reset: %+v", g)
	}
	g, err = c.WaitIdle(ctx, g.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
	if strings.Join(g.MovesUCI, " ") != "e2e4" {
		t.Fatalf("engine should open again after restart: %v", g.MovesUCI)
	}

	games, err := c.History(ctx, 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(games) != 0 {
		t.Fatalf("no finished games expected, got %d", len(games))
	}
}

func TestHTTPErrors(t *testing.T) {
	c := newTestClient(t, ucitest.ModeHang)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.Game(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	} else if status, code := apiCode(t, err); status != fasthttp.StatusNotFound || code != chessdto.CodeNotFound {
		t.Fatalf("status=%d code=%s", status, code)
	}

	if _, err := c.NewGame(ctx, "purple"); err == nil {
		t.Fatalf("expected invalid color")
	} else if status, _ := apiCode(t, err); status != fasthttp.StatusBadRequest {
		t.Fatalf("status=%d", status)
	}

	g, err := c.NewGame(ctx, "")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if g.HumanColor != "white" || g.Status != "White to move" {
		t.Fatalf("default game = %+v", g)
	}
	g, err = c.Play(ctx, g.ID, "e4")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !g.Thinking {
		t.Fatalf("move should return while the engine thinks")
	}
	if _, err := c.Play(ctx, g.ID, "d4"); err == nil {
		t.Fatalf("expected engine thinking")
	} else if status, code := apiCode(t, err); status != fasthttp.StatusConflict || code != chessdto.CodeEngineThinking {
		t.Fatalf("status=%d code=%s", status, code)
	}

	if err := c.doJSON(ctx, fasthttp.MethodPut, "/games/"+g.ID, nil, nil, false); err == nil {
		t.Fatalf("expected method not allowed")
	} else if status, _ := apiCode(t, err); status != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("status=%d", status)
	}

	if err := c.Delete(ctx, g.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Game(ctx, g.ID); err == nil {
		t.Fatalf("deleted game still served")
	} else if status, _ := apiCode(t, err); status != fasthttp.StatusNotFound {
		t.Fatalf("status=%d", status)
	}
	if err := c.Delete(ctx, g.ID); err == nil {
		t.Fatalf("second delete should be not found")
	}
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/nope", nil, nil, false); err == nil {
		t.Fatalf("expected 404")
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{game.ErrGameNotFound, 404, chessdto.CodeNotFound},
		{game.ErrInvalidMove, 400, chessdto.CodeInvalidMove},
		{game.ErrEngineThinking, 409, chessdto.CodeEngineThinking},
		{game.ErrGameOver, 409, chessdto.CodeGameOver},
		{game.ErrNotEngineTurn, 409, chessdto.CodeNotEngineTurn},
		{errors.New("boom"), 500, chessdto.CodeInternal},
	}
	for _, tt := range tests {
		status, derr := mapError(tt.err)
		if status != tt.status || derr.Code != tt.code {
			t.Errorf("mapError(%v) = %d %s", tt.err, status, derr.Code)
		}
	}
}

func TestToViewKeepsMateInZero(t *testing.T) {
	ev, ok := uci.ParseLine("info depth 1 score mate 0").(uci.InfoEvent)
	if !ok || ev.Score == nil {
		t.Fatalf("no score parsed")
	}
	v := ToView(&game.GameState{Evaluation: ev.Score, EvaluationText: ev.Score.Display()})
	if v.Evaluation == nil || v.Evaluation.Mate == nil || *v.Evaluation.Mate != 0 {
		t.Fatalf("mate 0 lost: %+v", v.Evaluation)
	}
	if v.EvalText != "Evaluation: mate 0" {
		t.Fatalf("text = %q", v.EvalText)
	}

	v = ToView(&game.GameState{Evaluation: &uci.Evaluation{Centipawns: 35}})
	if v.Evaluation.Mate != nil {
		t.Fatalf("centipawn score should carry no mate: %+v", v.Evaluation)
	}
}
