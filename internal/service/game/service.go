package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	corechess "github.com/park285/cheese-versus/internal/chess"
	"github.com/park285/cheese-versus/internal/chess/uci"
	"github.com/park285/cheese-versus/internal/domain"
	"github.com/park285/cheese-versus/internal/msgcat"
	"go.uber.org/zap"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrEngineThinking = errors.New("engine is thinking")
	ErrInvalidMove    = errors.New("invalid chess move")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrGameOver       = errors.New("game is over")
	ErrInvalidColor   = errors.New("invalid color")
	ErrNotEngineTurn  = errors.New("not the engine's turn")
	ErrClosed         = errors.New("game service closed")
)

const (
	storeTimeout       = 5 * time.Second
	defaultStaleTurn   = 30 * time.Second
	defaultEventBuffer = 64
)

// Thinker runs engine turns. *chess.Engine implements it.
type Thinker interface {
	Think(ctx context.Context, gameID, fen string) (<-chan corechess.ThinkResult, error)
	Cancel(gameID string) bool
	Thinking(gameID string) bool
}

type Config struct {
	HistoryLimit int
	EventBuffer  int
	// StaleTurn restarts an engine turn that is marked as running but has
	// no live session, e.g. after a restart of the process.
	StaleTurn time.Duration
}

type turnResult struct {
	gameID     string
	generation int
	res        corechess.ThinkResult
}

type Service struct {
	engine Thinker
	store  Store
	repo   Repository
	msgs   *msgcat.Catalog
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	// mu serialises load-modify-save of games.
	mu      sync.Mutex
	results chan turnResult
	events  chan Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(engine Thinker, store Store, repo Repository, msgs *msgcat.Catalog, cfg Config, logger *zap.Logger) (*Service, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	if cfg.StaleTurn <= 0 {
		cfg.StaleTurn = defaultStaleTurn
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		engine:  engine,
		store:   store,
		repo:    repo,
		msgs:    msgs,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		results: make(chan turnResult),
		events:  make(chan Event, cfg.EventBuffer),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.loop()
	return s, nil
}

// Events delivers one event per finished engine turn. Events are dropped
// when nobody drains the channel.
func (s *Service) Events() <-chan Event { return s.events }

// Close stops result handling. Running engine sessions are killed because
// they were started under the service context.
func (s *Service) Close() {
	s.cancel()
	<-s.done
}

func (s *Service) NewGame(ctx context.Context, human nchess.Color) (*GameState, error) {
	if human != nchess.White && human != nchess.Black {
		return nil, ErrInvalidColor
	}
	if s.ctx.Err() != nil {
		return nil, ErrClosed
	}
	now := s.now()
	g := &Game{
		ID:         uuid.NewString(),
		RoundID:    uuid.NewString(),
		HumanColor: ColorName(human),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	game := nchess.NewGame()

	s.mu.Lock()
	defer s.mu.Unlock()

	if human == nchess.Black {
		s.startEngineTurn(g, game.FEN())
	}
	if err := s.save(ctx, g); err != nil {
		return nil, err
	}
	s.logger.Info("game_created", zap.String("game_id", g.ID), zap.String("human", g.HumanColor))
	return s.stateOf(g, game), nil
}

// Restart abandons any running engine turn and resets the board.
func (s *Service) Restart(ctx context.Context, id string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.engine.Cancel(g.ID) {
		s.logger.Info("engine_turn_cancelled", zap.String("game_id", g.ID), zap.String("reason", "restart"))
	}

	now := s.now()
	g.RoundID = uuid.NewString()
	g.Moves = nil
	g.Generation++
	g.Thinking = false
	g.ThinkingSince = time.Time{}
	g.LastEvaluation = nil
	g.LastPV = nil
	g.LastError = ""
	g.Concluded = false
	g.Recorded = false
	g.EngineMoves = 0
	g.EngineLatencyMS = 0
	g.CreatedAt = now
	g.UpdatedAt = now

	game := nchess.NewGame()
	if g.humanColor() == nchess.Black {
		s.startEngineTurn(g, game.FEN())
	}
	if err := s.save(ctx, g); err != nil {
		return nil, err
	}
	return s.stateOf(g, game), nil
}

// Play applies the human move (UCI or SAN) and starts the engine reply.
func (s *Service) Play(ctx context.Context, id, moveInput string) (*GameState, error) {
	moveText := strings.TrimSpace(moveInput)
	if moveText == "" {
		return nil, ErrInvalidMove
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	game, err := replay(g)
	if err != nil {
		return nil, err
	}
	if finished(g, game) {
		return nil, ErrGameOver
	}
	if g.Thinking || s.engine.Thinking(g.ID) {
		return nil, ErrEngineThinking
	}
	if game.Position().Turn() != g.humanColor() {
		return nil, ErrNotYourTurn
	}

	notationSAN := nchess.AlgebraicNotation{}
	notationUCI := nchess.UCINotation{}
	pos := game.Position()
	move, err := notationSAN.Decode(pos, moveText)
	if err != nil {
		move, err = notationUCI.Decode(pos, strings.ToLower(moveText))
		if err != nil {
			return nil, ErrInvalidMove
		}
	}
	if err := game.Move(move, nil); err != nil {
		return nil, ErrInvalidMove
	}

	g.Moves = append(g.Moves, strings.ToLower(notationUCI.Encode(pos, move)))
	g.LastError = ""
	g.UpdatedAt = s.now()

	if finished(g, game) {
		s.recordFinished(ctx, g, game)
	} else {
		s.startEngineTurn(g, game.FEN())
	}
	if err := s.save(ctx, g); err != nil {
		s.engine.Cancel(g.ID)
		return nil, err
	}
	return s.stateOf(g, game), nil
}

// Delete abandons a game: its engine turn is cancelled and the stored state
// removed. Finished games stay in the history.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	s.engine.Cancel(g.ID)
	if err := s.store.Delete(ctx, g.ID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	s.logger.Info("game_deleted", zap.String("game_id", g.ID))
	return nil
}

// Retry starts the engine turn again after a failed one (timeout, crash,
// unreadable or declined move). The board is left as it is.
func (s *Service) Retry(ctx context.Context, id string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	game, err := replay(g)
	if err != nil {
		return nil, err
	}
	if finished(g, game) {
		return nil, ErrGameOver
	}
	if g.Thinking || s.engine.Thinking(g.ID) {
		return nil, ErrEngineThinking
	}
	if game.Position().Turn() == g.humanColor() {
		return nil, ErrNotEngineTurn
	}

	g.LastError = ""
	g.UpdatedAt = s.now()
	s.startEngineTurn(g, game.FEN())
	if err := s.save(ctx, g); err != nil {
		s.engine.Cancel(g.ID)
		return nil, err
	}
	s.logger.Info("engine_turn_retried", zap.String("game_id", g.ID), zap.Int("generation", g.Generation))
	return s.stateOf(g, game), nil
}

// State returns the current view of a game. A turn left running without a
// live session is started again.
func (s *Service) State(ctx context.Context, id string) (*GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	game, err := replay(g)
	if err != nil {
		return nil, err
	}
	if g.Thinking && !s.engine.Thinking(g.ID) && s.now().Sub(g.ThinkingSince) > s.cfg.StaleTurn && !finished(g, game) {
		s.logger.Warn("engine_turn_resumed", zap.String("game_id", g.ID), zap.Time("since", g.ThinkingSince))
		s.startEngineTurn(g, game.FEN())
		if err := s.save(ctx, g); err != nil {
			return nil, err
		}
	}
	return s.stateOf(g, game), nil
}

func (s *Service) History(ctx context.Context, limit int) ([]*domain.EngineGame, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	return s.repo.RecentGames(ctx, limit)
}

// startEngineTurn must be called with mu held and before g is saved.
func (s *Service) startEngineTurn(g *Game, fen string) {
	g.Generation++
	g.Thinking = false
	if s.ctx.Err() != nil {
		g.LastError = s.errorText(ErrClosed)
		return
	}
	ch, err := s.engine.Think(s.ctx, g.ID, fen)
	if err != nil {
		g.LastError = s.errorText(err)
		s.logger.Warn("engine_turn_start_failed", zap.String("game_id", g.ID), zap.Error(err))
		return
	}
	g.Thinking = true
	g.ThinkingSince = s.now()
	go s.forward(g.ID, g.Generation, ch)
}

func (s *Service) forward(id string, generation int, ch <-chan corechess.ThinkResult) {
	var (
		res corechess.ThinkResult
		ok  bool
	)
	select {
	case res, ok = <-ch:
	case <-s.ctx.Done():
		return
	}
	if !ok {
		return
	}
	select {
	case s.results <- turnResult{gameID: id, generation: generation, res: res}:
	case <-s.ctx.Done():
	}
}

func (s *Service) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case tr := <-s.results:
			s.handleResult(tr)
		}
	}
}

func (s *Service) handleResult(tr turnResult) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.logger.With(zap.String("game_id", tr.gameID))
	g, err := s.store.Load(ctx, tr.gameID)
	if err != nil {
		logger.Error("engine_result_load_failed", zap.Error(err))
		return
	}
	if g == nil || g.Generation != tr.generation {
		logger.Debug("engine_result_stale", zap.Int("generation", tr.generation))
		return
	}
	game, err := replay(g)
	if err != nil {
		logger.Error("engine_result_replay_failed", zap.Error(err))
		return
	}

	g.Thinking = false
	g.ThinkingSince = time.Time{}
	g.UpdatedAt = s.now()

	ev := Event{GameID: g.ID}
	if tr.res.Err != nil {
		ev.Err = s.applyFailure(g, game, tr.res.Err)
	} else {
		ev.EngineMove, ev.Err = s.applyDecision(g, game, tr.res)
	}
	if finished(g, game) {
		s.recordFinished(ctx, g, game)
	}
	if err := s.store.Save(ctx, g); err != nil {
		logger.Error("engine_result_save_failed", zap.Error(err))
		return
	}
	ev.State = s.stateOf(g, game)
	s.emit(ev)
}

func (s *Service) applyDecision(g *Game, game *nchess.Game, res corechess.ThinkResult) (string, error) {
	token := res.Decision.Move.String()
	pos := game.Position()
	move, err := nchess.UCINotation{}.Decode(pos, token)
	if err == nil {
		err = game.Move(move, nil)
	}
	if err != nil {
		uerr := &uci.Error{Kind: uci.KindEngineProposedIllegalMove, Token: token, Err: err}
		g.LastError = s.errorText(uerr)
		s.logger.Warn("engine_move_declined", zap.String("game_id", g.ID), zap.String("move", token), zap.String("fen", res.FEN), zap.Error(err))
		return "", uerr
	}

	g.Moves = append(g.Moves, token)
	g.LastError = ""
	g.LastEvaluation = nil
	if res.Decision.Evaluation != nil {
		ev := *res.Decision.Evaluation
		g.LastEvaluation = &ev
	}
	g.LastPV = pvStrings(res.Decision.PV)
	g.EngineMoves++
	g.EngineLatencyMS += res.Duration.Milliseconds()
	return token, nil
}

func (s *Service) applyFailure(g *Game, game *nchess.Game, err error) error {
	if uci.KindOf(err) == uci.KindNoLegalMove && len(game.ValidMoves()) == 0 {
		g.Concluded = true
		return nil
	}
	g.LastError = s.errorText(err)
	return err
}

func (s *Service) recordFinished(ctx context.Context, g *Game, game *nchess.Game) {
	if g.Recorded {
		return
	}
	now := s.now()
	method := MethodName(game.Method())
	if game.Outcome() == nchess.NoOutcome {
		method = "no legal move"
	}
	record := &domain.EngineGame{
		GameUUID:      g.RoundID,
		HumanColor:    g.HumanColor,
		Result:        resultFromOutcome(game.Outcome()),
		ResultMethod:  method,
		MovesUCI:      append([]string(nil), g.Moves...),
		MovesSAN:      sanMoves(game),
		PGN:           game.String(),
		StartedAt:     g.CreatedAt,
		EndedAt:       now,
		Duration:      now.Sub(g.CreatedAt),
		EngineMoves:   g.EngineMoves,
		EngineLatency: time.Duration(g.EngineLatencyMS) * time.Millisecond,
	}
	id, err := s.repo.InsertGame(ctx, record)
	switch {
	case err == nil:
		g.Recorded = true
		s.logger.Info("game_recorded", zap.String("game_id", g.ID), zap.Int64("record_id", id), zap.String("result", record.Result), zap.String("method", method))
	case errors.Is(err, ErrDuplicateGame):
		g.Recorded = true
	default:
		s.logger.Warn("game_record_failed", zap.String("game_id", g.ID), zap.Error(err))
	}
}

func (s *Service) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("game_event_dropped", zap.String("game_id", ev.GameID))
	}
}

func (s *Service) load(ctx context.Context, id string) (*Game, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrGameNotFound
	}
	g, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if g == nil {
		return nil, ErrGameNotFound
	}
	return g, nil
}

func (s *Service) save(ctx context.Context, g *Game) error {
	if err := s.store.Save(ctx, g); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	return nil
}

func (s *Service) stateOf(g *Game, game *nchess.Game) *GameState {
	st := &GameState{
		ID:         g.ID,
		HumanColor: g.humanColor(),
		FEN:        game.FEN(),
		Turn:       game.Position().Turn(),
		Moves:      append([]string(nil), g.Moves...),
		MovesSAN:   sanMoves(game),
		Outcome:    game.Outcome(),
		Method:     game.Method(),
		Finished:   finished(g, game),
		Thinking:   g.Thinking,
		PV:         append([]string(nil), g.LastPV...),
		LastError:  g.LastError,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
	if g.LastEvaluation != nil {
		ev := *g.LastEvaluation
		st.Evaluation = &ev
		st.EvaluationText = ev.Display()
	} else {
		st.EvaluationText = s.msgs.Text("evaluation.none", nil)
	}
	if len(st.PV) > 0 {
		st.PVText = s.msgs.Text("evaluation.pv", map[string]any{"Line": strings.Join(DisplayPV(st.PV), " ")})
	}
	st.Status = s.statusText(g, game)
	return st
}

func (s *Service) statusText(g *Game, game *nchess.Game) string {
	method := map[string]any{"Method": MethodName(game.Method())}
	switch game.Outcome() {
	case nchess.WhiteWon:
		if game.Method() == nchess.Checkmate {
			return s.msgs.Text("result.white_checkmates", nil)
		}
		return s.msgs.Text("result.white_wins", method)
	case nchess.BlackWon:
		if game.Method() == nchess.Checkmate {
			return s.msgs.Text("result.black_checkmates", nil)
		}
		return s.msgs.Text("result.black_wins", method)
	case nchess.Draw:
		if game.Method() == nchess.Stalemate {
			return s.msgs.Text("result.stalemate", nil)
		}
		return s.msgs.Text("result.draw", method)
	}
	if g.Concluded {
		return s.msgs.Text("result.engine_resigned", nil)
	}
	if g.Thinking {
		return s.msgs.Text("status.thinking", nil)
	}
	if game.Position().Turn() == nchess.Black {
		return s.msgs.Text("status.black_turn", nil)
	}
	return s.msgs.Text("status.white_turn", nil)
}

func (s *Service) errorText(err error) string {
	if err == nil {
		return ""
	}
	var uerr *uci.Error
	if !errors.As(err, &uerr) {
		if kind := uci.KindOf(err); kind != uci.KindUnknown {
			uerr = &uci.Error{Kind: kind, Err: err}
		}
	}
	if uerr == nil {
		return s.msgs.Text("error.unknown", nil)
	}
	key := "error." + uerr.Kind.String()
	if !s.msgs.Has(key) {
		key = "error.unknown"
	}
	return s.msgs.Text(key, map[string]any{"Token": uerr.Token})
}
