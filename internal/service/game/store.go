package game

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps live games. Load returns nil, nil for an unknown id.
type Store interface {
	Load(ctx context.Context, id string) (*Game, error)
	Save(ctx context.Context, g *Game) error
	Delete(ctx context.Context, id string) error
}

type memoryStore struct {
	mu    sync.RWMutex
	games map[string]*Game
}

func NewMemoryStore() Store {
	return &memoryStore{games: make(map[string]*Game)}
}

func (m *memoryStore) Load(_ context.Context, id string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[strings.TrimSpace(id)]
	if !ok {
		return nil, nil
	}
	return g.clone(), nil
}

func (m *memoryStore) Save(_ context.Context, g *Game) error {
	if g == nil || strings.TrimSpace(g.ID) == "" {
		return errors.New("cannot save game without id")
	}
	m.mu.Lock()
	m.games[g.ID] = g.clone()
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.games, strings.TrimSpace(id))
	m.mu.Unlock()
	return nil
}

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisStore{rdb: rdb, ttl: ttl}
}

func (s *redisStore) key(id string) string { return "game:" + strings.TrimSpace(id) }

func (s *redisStore) Load(ctx context.Context, id string) (*Game, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *redisStore) Save(ctx context.Context, g *Game) error {
	if g == nil || strings.TrimSpace(g.ID) == "" {
		return errors.New("cannot save game without id")
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(g.ID), raw, s.ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
