package chessbuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	corechess "github.com/park285/cheese-versus/internal/chess"
	"github.com/park285/cheese-versus/internal/config"
	"github.com/park285/cheese-versus/internal/msgcat"
	"github.com/park285/cheese-versus/internal/service/game"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Service *game.Service
	Engine  *corechess.Engine
	Store   game.Store
	Repo    game.Repository

	closers []func() error
}

// Close stops the service and engine and releases Redis and Postgres handles.
func (d *Deps) Close() error {
	if d.Service != nil {
		d.Service.Close()
	}
	if d.Engine != nil {
		_ = d.Engine.Close()
	}
	var first error
	for _, c := range d.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if strings.TrimSpace(cfg.StockfishPath) == "" {
		return nil, fmt.Errorf("STOCKFISH_PATH is required for chess engine")
	}

	deps := &Deps{}

	// Engine
	engine, err := corechess.NewEngine(cfg.StockfishPath, cfg.EnginePolicy, logger.Named("engine"))
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	deps.Engine = engine

	// Live game store (Redis optional)
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, perr := redis.ParseURL(strings.TrimSpace(cfg.RedisURL))
		if perr != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("parse redis url: %w", perr)
		}
		rdb := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			_ = deps.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		deps.closers = append(deps.closers, rdb.Close)
		deps.Store = game.NewRedisStore(rdb, cfg.GameTTL())
	} else {
		logger.Info("redis_not_configured", zap.String("store", "memory"))
		deps.Store = game.NewMemoryStore()
	}

	// Finished game repository (Postgres optional)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		repo, db, err := openRepository(cfg.DatabaseURL)
		if err != nil {
			_ = deps.Close()
			return nil, err
		}
		deps.closers = append(deps.closers, db.Close)
		deps.Repo = repo
	} else {
		logger.Info("database_not_configured", zap.String("repository", "memory"))
		deps.Repo = game.NewMemoryRepository()
	}

	msgs, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	svcCfg := game.Config{
		HistoryLimit: cfg.HistoryLimit,
		StaleTurn:    2 * cfg.EnginePolicy.Deadline(),
	}
	service, err := game.NewService(engine, deps.Store, deps.Repo, msgs, svcCfg, logger.Named("game"))
	if err != nil {
		_ = deps.Close()
		return nil, err
	}
	deps.Service = service
	return deps, nil
}

func openRepository(dsn string) (game.Repository, *sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	// basic pool settings
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, game.Schema); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return game.NewRepository(db), db, nil
}
