package game

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/cheese-versus/internal/domain"
)

var ErrDuplicateGame = errors.New("engine game already recorded")

// Repository stores finished games.
type Repository interface {
	InsertGame(ctx context.Context, game *domain.EngineGame) (int64, error)
	RecentGames(ctx context.Context, limit int) ([]*domain.EngineGame, error)
}

// Schema creates the table used by NewRepository.
const Schema = `
CREATE TABLE IF NOT EXISTS engine_games (
	id                BIGSERIAL PRIMARY KEY,
	game_uuid         TEXT NOT NULL UNIQUE,
	human_color       TEXT NOT NULL,
	result            TEXT NOT NULL,
	result_method     TEXT NOT NULL,
	moves_uci         JSONB NOT NULL,
	moves_san         JSONB NOT NULL,
	pgn               TEXT NOT NULL,
	started_at        TIMESTAMPTZ NOT NULL,
	ended_at          TIMESTAMPTZ NOT NULL,
	duration_ms       BIGINT,
	engine_moves      INTEGER NOT NULL DEFAULT 0,
	engine_latency_ms BIGINT
)`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertGame(ctx context.Context, game *domain.EngineGame) (int64, error) {
	if game == nil {
		return 0, fmt.Errorf("nil engine game payload")
	}

	movesUCI, err := json.Marshal(game.MovesUCI)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(game.MovesSAN)
	if err != nil {
		return 0, fmt.Errorf("marshal moves_san: %w", err)
	}

	const query = `
		INSERT INTO engine_games (
			game_uuid,
			human_color,
			result,
			result_method,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at,
			duration_ms,
			engine_moves,
			engine_latency_ms
		)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (game_uuid) DO NOTHING
		RETURNING id`

	var id sql.NullInt64
	err = r.db.QueryRowContext(
		ctx,
		query,
		game.GameUUID,
		game.HumanColor,
		game.Result,
		game.ResultMethod,
		movesUCI,
		movesSAN,
		game.PGN,
		game.StartedAt,
		game.EndedAt,
		game.Duration.Milliseconds(),
		game.EngineMoves,
		game.EngineLatency.Milliseconds(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, ErrDuplicateGame
	}
	if err != nil {
		return 0, fmt.Errorf("insert engine game: %w", err)
	}
	return id.Int64, nil
}

func (r *repository) RecentGames(ctx context.Context, limit int) ([]*domain.EngineGame, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			game_uuid,
			human_color,
			result,
			result_method,
			moves_uci,
			moves_san,
			pgn,
			started_at,
			ended_at,
			duration_ms,
			engine_moves,
			engine_latency_ms
		FROM engine_games
		ORDER BY ended_at DESC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("select engine games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.EngineGame, 0, limit)
	for rows.Next() {
		var (
			game         domain.EngineGame
			movesUCIJSON []byte
			movesSANJSON []byte
			durationMS   sql.NullInt64
			latencyMS    sql.NullInt64
		)
		if err := rows.Scan(
			&game.ID,
			&game.GameUUID,
			&game.HumanColor,
			&game.Result,
			&game.ResultMethod,
			&movesUCIJSON,
			&movesSANJSON,
			&game.PGN,
			&game.StartedAt,
			&game.EndedAt,
			&durationMS,
			&game.EngineMoves,
			&latencyMS,
		); err != nil {
			return nil, fmt.Errorf("scan engine game: %w", err)
		}
		if durationMS.Valid {
			game.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		}
		if latencyMS.Valid {
			game.EngineLatency = time.Duration(latencyMS.Int64) * time.Millisecond
		}
		if err := json.Unmarshal(movesUCIJSON, &game.MovesUCI); err != nil {
			return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
		}
		if err := json.Unmarshal(movesSANJSON, &game.MovesSAN); err != nil {
			return nil, fmt.Errorf("unmarshal moves_san: %w", err)
		}
		games = append(games, &game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engine games: %w", err)
	}
	return games, nil
}
