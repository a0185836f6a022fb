package chess

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-versus/internal/chess/uci"
	"go.uber.org/zap"
)

var ErrSessionActive = errors.New("engine is already thinking for this game")

// ThinkResult is delivered once per finished engine turn.
type ThinkResult struct {
	GameID   string
	FEN      string
	Decision uci.Decision
	Err      error
	Duration time.Duration
}

type Engine struct {
	binaryPath string
	policy     uci.Policy
	slots      *uci.Slots
	logger     *zap.Logger
}

func NewEngine(binaryPath string, policy uci.Policy, logger *zap.Logger) (*Engine, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		binaryPath: binaryPath,
		policy:     policy,
		slots:      uci.NewSlots(),
		logger:     logger,
	}, nil
}

func (e *Engine) Policy() uci.Policy { return e.policy }

// Think starts a fresh engine process for the position and returns a
// channel that receives exactly one result. If the turn is cancelled the
// channel is closed without a value.
func (e *Engine) Think(ctx context.Context, gameID, fen string) (<-chan ThinkResult, error) {
	ticket, err := e.slots.Reserve(gameID)
	if err != nil {
		return nil, ErrSessionActive
	}

	logger := e.logger.With(zap.String("game_id", gameID))
	start := time.Now()
	session, err := uci.Start(ctx, e.binaryPath, fen, e.policy, logger)
	if err != nil {
		e.slots.Release(gameID, ticket)
		logger.Warn("engine_spawn_failed", zap.String("path", e.binaryPath), zap.Error(err))
		return nil, err
	}
	if !e.slots.Attach(gameID, ticket, session) {
		session.Cancel()
	}

	out := make(chan ThinkResult, 1)
	go func() {
		defer close(out)
		decision, err := session.Wait()
		e.slots.Release(gameID, ticket)
		dur := time.Since(start)
		if uci.KindOf(err) == uci.KindCanceled {
			logger.Info("engine_turn_abandoned", zap.Duration("elapsed", dur))
			return
		}
		if err != nil {
			logger.Warn("engine_turn_failed",
				zap.Stringer("kind", uci.KindOf(err)),
				zap.Duration("elapsed", dur),
				zap.Error(err),
			)
		} else {
			fields := []zap.Field{
				zap.String("bestmove", decision.Move.String()),
				zap.Duration("elapsed", dur),
				zap.Int("depth", decision.Depth),
				zap.String("pv", uci.FormatMoves(decision.PV)),
			}
			if decision.Evaluation != nil {
				fields = append(fields, zap.Int("eval_cp", decision.Evaluation.Centipawns), zap.Stringer("bound", decision.Evaluation.Bound))
			}
			logger.Info("engine_turn_done", fields...)
		}
		out <- ThinkResult{GameID: gameID, FEN: fen, Decision: decision, Err: err, Duration: dur}
	}()
	return out, nil
}

// Thinking reports whether a session is running for the game.
func (e *Engine) Thinking(gameID string) bool {
	return e.slots.Busy(gameID)
}

// Cancel abandons the running session for the game.
func (e *Engine) Cancel(gameID string) bool {
	return e.slots.Cancel(gameID)
}

// Evaluate runs one session synchronously, abandoning it if ctx ends first.
func (e *Engine) Evaluate(ctx context.Context, fen string) (uci.Decision, error) {
	key := "eval-" + uuid.NewString()
	ch, err := e.Think(context.WithoutCancel(ctx), key, fen)
	if err != nil {
		return uci.Decision{}, err
	}
	select {
	case res, ok := <-ch:
		if !ok {
			return uci.Decision{}, uci.ErrCanceled
		}
		return res.Decision, res.Err
	case <-ctx.Done():
		e.Cancel(key)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return uci.Decision{}, &uci.Error{Kind: uci.KindEngineTimeout, Err: ctx.Err()}
		}
		return uci.Decision{}, &uci.Error{Kind: uci.KindCanceled, Err: ctx.Err()}
	}
}

func (e *Engine) Close() error {
	e.slots.CancelAll()
	return nil
}
