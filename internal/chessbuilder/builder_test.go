package chessbuilder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-versus/internal/chess/uci"
	"github.com/park285/cheese-versus/internal/config"
	"github.com/park285/cheese-versus/internal/service/game"
)

func TestNewRejectsBadRedisURL(t *testing.T) {
	for _, raw := range []string{"http://localhost", "redis://localhost/abc", "redis://localhost/1/2"} {
		cfg := &config.AppConfig{
			StockfishPath: os.Args[0],
			EnginePolicy:  uci.DefaultPolicy(),
			RedisURL:      raw,
		}
		if _, err := New(cfg, nil); err == nil || !strings.Contains(err.Error(), "parse redis url") {
			t.Fatalf("New(%q) err = %v, want parse error", raw, err)
		}
	}
}

func TestNewWiresRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := &config.AppConfig{
		StockfishPath: os.Args[0],
		EnginePolicy:  uci.DefaultPolicy(),
		RedisURL:      fmt.Sprintf("redis://%s/0", mr.Addr()),
		GameTTLSec:    60,
		HistoryLimit:  5,
	}
	deps, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()

	if err := deps.Store.Save(context.Background(), &game.Game{ID: "g1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("game:g1") {
		t.Fatalf("store is not backed by redis")
	}
	if deps.Repo == nil || deps.Service == nil {
		t.Fatalf("deps incomplete: %+v", deps)
	}
}

func TestNewRejectsMissingEngine(t *testing.T) {
	cfg := &config.AppConfig{
		StockfishPath: filepath.Join(t.TempDir(), "stockfish"),
		EnginePolicy:  uci.DefaultPolicy(),
	}
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected engine error")
	}
}
