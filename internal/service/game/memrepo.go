package game

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-versus/internal/domain"
)

// memrepo is used when no database is configured.
type memrepo struct {
	mu     sync.RWMutex
	nextID int64
	games  []*domain.EngineGame
	byUUID map[string]*domain.EngineGame
}

func NewMemoryRepository() Repository {
	return &memrepo{byUUID: make(map[string]*domain.EngineGame)}
}

func (m *memrepo) InsertGame(_ context.Context, game *domain.EngineGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	key := strings.TrimSpace(game.GameUUID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byUUID[key]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	stored := *game
	stored.ID = m.nextID
	stored.MovesUCI = append([]string(nil), game.MovesUCI...)
	stored.MovesSAN = append([]string(nil), game.MovesSAN...)
	m.games = append(m.games, &stored)
	m.byUUID[key] = &stored
	return stored.ID, nil
}

func (m *memrepo) RecentGames(_ context.Context, limit int) ([]*domain.EngineGame, error) {
	m.mu.RLock()
	items := make([]*domain.EngineGame, 0, len(m.games))
	for _, g := range m.games {
		c := *g
		items = append(items, &c)
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
