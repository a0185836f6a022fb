package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-versus/internal/domain"
	"github.com/park285/cheese-versus/internal/service/game"
	"github.com/park285/cheese-versus/pkg/chessdto"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// GameService is the part of *game.Service the handlers use.
type GameService interface {
	NewGame(ctx context.Context, human nchess.Color) (*game.GameState, error)
	Restart(ctx context.Context, id string) (*game.GameState, error)
	Retry(ctx context.Context, id string) (*game.GameState, error)
	Delete(ctx context.Context, id string) error
	Play(ctx context.Context, id, move string) (*game.GameState, error)
	State(ctx context.Context, id string) (*game.GameState, error)
	History(ctx context.Context, limit int) ([]*domain.EngineGame, error)
}

type Server struct {
	svc            GameService
	logger         *zap.Logger
	srv            *fasthttp.Server
	requestTimeout time.Duration
}

func NewServer(svc GameService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, logger: logger, requestTimeout: 10 * time.Second}
	s.srv = &fasthttp.Server{
		Handler:            s.Handle,
		Name:               "chessd",
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		MaxRequestBodySize: 16 << 10,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error { return s.srv.ListenAndServe(addr) }

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

// Handle routes one request. Handlers never wait for the engine: moves
// return immediately with thinking=true and clients poll the game.
func (s *Server) Handle(rc *fasthttp.RequestCtx) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(rc, s.requestTimeout)
	defer cancel()

	parts := strings.Split(strings.Trim(string(rc.Path()), "/"), "/")
	method := string(rc.Method())

	switch {
	case len(parts) == 1 && parts[0] == "healthz":
		s.only(rc, method, fasthttp.MethodGet, func() {
			writeJSON(rc, fasthttp.StatusOK, chessdto.HealthResponse{Status: "ok"})
		})
	case len(parts) == 1 && parts[0] == "history":
		s.only(rc, method, fasthttp.MethodGet, func() { s.history(ctx, rc) })
	case len(parts) == 1 && parts[0] == "games":
		s.only(rc, method, fasthttp.MethodPost, func() { s.newGame(ctx, rc) })
	case len(parts) == 2 && parts[0] == "games":
		switch method {
		case fasthttp.MethodGet:
			st, err := s.svc.State(ctx, parts[1])
			s.respondState(rc, fasthttp.StatusOK, st, err)
		case fasthttp.MethodDelete:
			if err := s.svc.Delete(ctx, parts[1]); err != nil {
				s.respondState(rc, 0, nil, err)
			} else {
				rc.SetStatusCode(fasthttp.StatusNoContent)
			}
		default:
			notAllowed(rc, "GET, DELETE")
		}
	case len(parts) == 3 && parts[0] == "games" && parts[2] == "moves":
		s.only(rc, method, fasthttp.MethodPost, func() { s.play(ctx, rc, parts[1]) })
	case len(parts) == 3 && parts[0] == "games" && parts[2] == "restart":
		s.only(rc, method, fasthttp.MethodPost, func() {
			st, err := s.svc.Restart(ctx, parts[1])
			s.respondState(rc, fasthttp.StatusOK, st, err)
		})
	case len(parts) == 3 && parts[0] == "games" && parts[2] == "retry":
		s.only(rc, method, fasthttp.MethodPost, func() {
			st, err := s.svc.Retry(ctx, parts[1])
			s.respondState(rc, fasthttp.StatusOK, st, err)
		})
	default:
		writeError(rc, fasthttp.StatusNotFound, chessdto.DomainError{Code: chessdto.CodeNotFound, Message: "no such route"})
	}

	s.logger.Debug("http_request",
		zap.String("method", method),
		zap.ByteString("path", rc.Path()),
		zap.Int("status", rc.Response.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Server) only(rc *fasthttp.RequestCtx, got, want string, fn func()) {
	if got != want {
		notAllowed(rc, want)
		return
	}
	fn()
}

func notAllowed(rc *fasthttp.RequestCtx, allow string) {
	rc.Response.Header.Set("Allow", allow)
	writeError(rc, fasthttp.StatusMethodNotAllowed, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "method not allowed"})
}

func (s *Server) newGame(ctx context.Context, rc *fasthttp.RequestCtx) {
	var req chessdto.NewGameRequest
	if body := rc.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(rc, fasthttp.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid JSON body"})
			return
		}
	}
	color, err := game.ParseColor(req.Color)
	if err != nil {
		s.respondState(rc, 0, nil, err)
		return
	}
	st, err := s.svc.NewGame(ctx, color)
	s.respondState(rc, fasthttp.StatusCreated, st, err)
}

func (s *Server) play(ctx context.Context, rc *fasthttp.RequestCtx, id string) {
	var req chessdto.MoveRequest
	if err := json.Unmarshal(rc.PostBody(), &req); err != nil {
		writeError(rc, fasthttp.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "invalid JSON body"})
		return
	}
	st, err := s.svc.Play(ctx, id, req.Move)
	s.respondState(rc, fasthttp.StatusOK, st, err)
}

func (s *Server) history(ctx context.Context, rc *fasthttp.RequestCtx) {
	limit, _ := strconv.Atoi(string(rc.QueryArgs().Peek("limit")))
	games, err := s.svc.History(ctx, limit)
	if err != nil {
		s.logger.Error("history_failed", zap.Error(err))
		writeError(rc, fasthttp.StatusInternalServerError, chessdto.DomainError{Code: chessdto.CodeInternal, Message: "history unavailable", Retryable: true})
		return
	}
	out := chessdto.HistoryResponse{Games: make([]*chessdto.GameRecord, 0, len(games))}
	for _, g := range games {
		out.Games = append(out.Games, toRecord(g))
	}
	writeJSON(rc, fasthttp.StatusOK, out)
}

func (s *Server) respondState(rc *fasthttp.RequestCtx, status int, st *game.GameState, err error) {
	if err != nil {
		code, derr := mapError(err)
		if code == fasthttp.StatusInternalServerError {
			s.logger.Error("request_failed", zap.ByteString("path", rc.Path()), zap.Error(err))
		}
		writeError(rc, code, derr)
		return
	}
	writeJSON(rc, status, ToView(st))
}

func mapError(err error) (int, chessdto.DomainError) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		return fasthttp.StatusNotFound, chessdto.DomainError{Code: chessdto.CodeNotFound, Message: "game not found"}
	case errors.Is(err, game.ErrInvalidMove):
		return fasthttp.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidMove, Message: "illegal or unreadable move"}
	case errors.Is(err, game.ErrInvalidColor):
		return fasthttp.StatusBadRequest, chessdto.DomainError{Code: chessdto.CodeInvalidRequest, Message: "color must be white or black"}
	case errors.Is(err, game.ErrEngineThinking):
		return fasthttp.StatusConflict, chessdto.DomainError{Code: chessdto.CodeEngineThinking, Message: "engine is thinking", Retryable: true}
	case errors.Is(err, game.ErrNotYourTurn):
		return fasthttp.StatusConflict, chessdto.DomainError{Code: chessdto.CodeNotYourTurn, Message: "not your turn"}
	case errors.Is(err, game.ErrNotEngineTurn):
		return fasthttp.StatusConflict, chessdto.DomainError{Code: chessdto.CodeNotEngineTurn, Message: "nothing to retry, it is your turn"}
	case errors.Is(err, game.ErrGameOver):
		return fasthttp.StatusConflict, chessdto.DomainError{Code: chessdto.CodeGameOver, Message: "game is over"}
	default:
		return fasthttp.StatusInternalServerError, chessdto.DomainError{Code: chessdto.CodeInternal, Message: "internal error", Retryable: true}
	}
}

// ToView converts a game state into its public JSON shape.
func ToView(st *game.GameState) chessdto.GameView {
	v := chessdto.GameView{
		ID:         st.ID,
		HumanColor: game.ColorName(st.HumanColor),
		FEN:        st.FEN,
		Turn:       game.ColorName(st.Turn),
		MovesUCI:   st.Moves,
		MovesSAN:   st.MovesSAN,
		Status:     st.Status,
		Finished:   st.Finished,
		Thinking:   st.Thinking,
		EvalText:   st.EvaluationText,
		PV:         game.DisplayPV(st.PV),
		PVText:     st.PVText,
		LastError:  st.LastError,
		CreatedAt:  st.CreatedAt,
		UpdatedAt:  st.UpdatedAt,
	}
	if v.MovesUCI == nil {
		v.MovesUCI = []string{}
	}
	if v.MovesSAN == nil {
		v.MovesSAN = []string{}
	}
	if st.Outcome != nchess.NoOutcome {
		v.Outcome = string(st.Outcome)
		v.Method = game.MethodName(st.Method)
	}
	if st.Evaluation != nil {
		v.Evaluation = &chessdto.EvaluationView{
			Centipawns: st.Evaluation.Centipawns,
			Bound:      st.Evaluation.Bound.String(),
			Text:       st.EvaluationText,
		}
		if st.Evaluation.IsMate() {
			mate := st.Evaluation.Mate
			v.Evaluation.Mate = &mate
		}
	}
	return v
}

func toRecord(g *domain.EngineGame) *chessdto.GameRecord {
	return &chessdto.GameRecord{
		ID:              g.ID,
		GameUUID:        g.GameUUID,
		HumanColor:      g.HumanColor,
		Result:          g.Result,
		ResultMethod:    g.ResultMethod,
		MovesUCI:        g.MovesUCI,
		MovesSAN:        g.MovesSAN,
		PGN:             g.PGN,
		StartedAt:       g.StartedAt,
		EndedAt:         g.EndedAt,
		DurationMS:      g.Duration.Milliseconds(),
		EngineMoves:     g.EngineMoves,
		EngineLatencyMS: g.EngineLatency.Milliseconds(),
	}
}

func writeJSON(rc *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		rc.Error(`{"code":"internal","message":"encode response"}`, fasthttp.StatusInternalServerError)
		return
	}
	rc.SetContentType("application/json")
	rc.SetStatusCode(status)
	rc.SetBody(raw)
}

func writeError(rc *fasthttp.RequestCtx, status int, derr chessdto.DomainError) {
	writeJSON(rc, status, derr)
}
