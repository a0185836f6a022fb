package game

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/cheese-versus/internal/chess/uci"
	"github.com/park285/cheese-versus/internal/domain"
	"github.com/redis/go-redis/v9"
)

func sampleGame() *Game {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Game{
		ID:             "g-1",
		RoundID:        "r-1",
		HumanColor:     "white",
		Moves:          []string{"e2e4", "e7e5"},
		Generation:     2,
		LastEvaluation: &uci.Evaluation{Centipawns: -15, Bound: uci.BoundUpper},
		LastPV:         []string{"e7e5", "g1f3"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if g, err := s.Load(ctx, "g-1"); err != nil || g != nil {
		t.Fatalf("Load on empty store = %v, %v", g, err)
	}
	want := sampleGame()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "g-1")
	if err != nil || got == nil {
		t.Fatalf("Load: %v, %v", got, err)
	}
	if got.RoundID != want.RoundID || len(got.Moves) != 2 || got.Generation != 2 {
		t.Fatalf("loaded %+v", got)
	}
	if got.LastEvaluation == nil || *got.LastEvaluation != *want.LastEvaluation {
		t.Fatalf("evaluation = %+v", got.LastEvaluation)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at = %s", got.CreatedAt)
	}

	got.Moves = append(got.Moves, "g1f3")
	again, _ := s.Load(ctx, "g-1")
	if len(again.Moves) != 2 {
		t.Fatalf("store must not alias caller state")
	}

	if err := s.Save(ctx, &Game{}); err == nil {
		t.Fatalf("expected error for game without id")
	}
	if err := s.Delete(ctx, "g-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if g, _ := s.Load(ctx, "g-1"); g != nil {
		t.Fatalf("game survived delete")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := NewRedisStore(rdb, time.Minute)
	exerciseStore(t, s)

	if err := s.Save(context.Background(), sampleGame()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("game:g-1") {
		t.Fatalf("expected key game:g-1")
	}
	if ttl := mr.TTL("game:g-1"); ttl != time.Minute {
		t.Fatalf("ttl = %s", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if g, _ := s.Load(context.Background(), "g-1"); g != nil {
		t.Fatalf("game should expire")
	}
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if _, err := repo.InsertGame(ctx, &domain.EngineGame{GameUUID: id, EndedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("InsertGame(%s): %v", id, err)
		}
	}
	if _, err := repo.InsertGame(ctx, &domain.EngineGame{GameUUID: "b"}); err != ErrDuplicateGame {
		t.Fatalf("err = %v, want ErrDuplicateGame", err)
	}
	games, err := repo.RecentGames(ctx, 2)
	if err != nil {
		t.Fatalf("RecentGames: %v", err)
	}
	if len(games) != 2 || games[0].GameUUID != "c" || games[1].GameUUID != "b" {
		t.Fatalf("recent = %+v", games)
	}
}
