package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-versus/internal/chess/uci"
	"github.com/park285/cheese-versus/internal/chessbuilder"
	appcfg "github.com/park285/cheese-versus/internal/config"
	"github.com/park285/cheese-versus/internal/httpapi"
	"github.com/park285/cheese-versus/internal/obslog"
	"github.com/park285/cheese-versus/internal/service/game"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	deps, err := chessbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("chess_init_error", zap.Error(err))
	}
	defer deps.Close()

	go logEvents(deps.Service.Events(), logger)

	srv := httpapi.NewServer(deps.Service, logger.Named("http"))
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listen",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("engine", cfg.StockfishPath),
			zap.Duration("movetime", cfg.EnginePolicy.MoveTime),
			zap.Int("skill", cfg.EnginePolicy.SkillLevel),
		)
		errCh <- srv.ListenAndServe(cfg.HTTPAddr)
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http_server_error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http_shutdown_error", zap.Error(err))
	}
}

func logEvents(events <-chan game.Event, logger *zap.Logger) {
	for ev := range events {
		fields := []zap.Field{zap.String("game_id", ev.GameID)}
		if ev.State != nil {
			fields = append(fields, zap.String("status", ev.State.Status), zap.Int("plies", len(ev.State.Moves)))
		}
		if ev.Err != nil {
			var uerr *uci.Error
			if errors.As(ev.Err, &uerr) {
				fields = append(fields, zap.Stringer("kind", uerr.Kind))
			}
			logger.Warn("engine_turn_rejected", append(fields, zap.Error(ev.Err))...)
			continue
		}
		logger.Info("engine_moved", append(fields, zap.String("move", ev.EngineMove))...)
	}
}
