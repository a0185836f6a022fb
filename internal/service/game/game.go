package game

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-versus/internal/chess/uci"
)

const pvDisplayLimit = 5

// Game is the stored state of one human-versus-engine game.
// Moves holds every ply from the start position in UCI notation.
type Game struct {
	ID              string          `json:"id"`
	RoundID         string          `json:"round_id"`
	HumanColor      string          `json:"human_color"`
	Moves           []string        `json:"moves"`
	Generation      int             `json:"generation"`
	Thinking        bool            `json:"thinking"`
	ThinkingSince   time.Time       `json:"thinking_since,omitempty"`
	LastEvaluation  *uci.Evaluation `json:"last_evaluation,omitempty"`
	LastPV          []string        `json:"last_pv,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	Concluded       bool            `json:"concluded,omitempty"`
	Recorded        bool            `json:"recorded,omitempty"`
	EngineMoves     int             `json:"engine_moves"`
	EngineLatencyMS int64           `json:"engine_latency_ms"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (g *Game) clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.Moves = append([]string(nil), g.Moves...)
	c.LastPV = append([]string(nil), g.LastPV...)
	if g.LastEvaluation != nil {
		ev := *g.LastEvaluation
		c.LastEvaluation = &ev
	}
	return &c
}

func (g *Game) humanColor() nchess.Color {
	if g.HumanColor == "black" {
		return nchess.Black
	}
	return nchess.White
}

// GameState is the read model handed to callers.
type GameState struct {
	ID             string
	HumanColor     nchess.Color
	FEN            string
	Turn           nchess.Color
	Moves          []string
	MovesSAN       []string
	Status         string
	Outcome        nchess.Outcome
	Method         nchess.Method
	Finished       bool
	Thinking       bool
	Evaluation     *uci.Evaluation
	EvaluationText string
	PV             []string
	PVText         string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Event reports one finished engine turn.
type Event struct {
	GameID     string
	EngineMove string
	Err        error
	State      *GameState
}

// ParseColor accepts white/black (or w/b). Empty input means white.
func ParseColor(s string) (nchess.Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "white", "w":
		return nchess.White, nil
	case "black", "b":
		return nchess.Black, nil
	default:
		return nchess.NoColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

func ColorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return ""
	}
}

var methodNames = map[nchess.Method]string{
	nchess.Checkmate:            "checkmate",
	nchess.Resignation:          "resignation",
	nchess.DrawOffer:            "agreement",
	nchess.Stalemate:            "stalemate",
	nchess.ThreefoldRepetition:  "threefold repetition",
	nchess.FivefoldRepetition:   "fivefold repetition",
	nchess.FiftyMoveRule:        "fifty-move rule",
	nchess.SeventyFiveMoveRule:  "seventy-five-move rule",
	nchess.InsufficientMaterial: "insufficient material",
}

func MethodName(m nchess.Method) string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return strings.ToLower(m.String())
}

func resultFromOutcome(outcome nchess.Outcome) string {
	switch outcome {
	case nchess.WhiteWon:
		return "white"
	case nchess.BlackWon:
		return "black"
	case nchess.Draw:
		return "draw"
	default:
		return "unknown"
	}
}

func replay(g *Game) (*nchess.Game, error) {
	game := nchess.NewGame()
	notation := nchess.UCINotation{}
	for _, mv := range g.Moves {
		move, err := notation.Decode(game.Position(), strings.ToLower(strings.TrimSpace(mv)))
		if err != nil {
			return nil, fmt.Errorf("decode move %s: %w", mv, err)
		}
		if err := game.Move(move, nil); err != nil {
			return nil, fmt.Errorf("apply move %s: %w", mv, err)
		}
	}
	return game, nil
}

func sanMoves(game *nchess.Game) []string {
	positions := game.Positions()
	moves := game.Moves()
	out := make([]string, len(moves))
	notation := nchess.AlgebraicNotation{}
	for i, mv := range moves {
		if i < len(positions) {
			out[i] = notation.Encode(positions[i], mv)
		}
	}
	return out
}

func finished(g *Game, game *nchess.Game) bool {
	return g.Concluded || game.Outcome() != nchess.NoOutcome
}

func pvStrings(pv []uci.Move) []string {
	if len(pv) == 0 {
		return nil
	}
	out := make([]string, len(pv))
	for i, mv := range pv {
		out[i] = mv.String()
	}
	return out
}

// DisplayPV returns at most the first five moves of a line.
func DisplayPV(pv []string) []string {
	if len(pv) > pvDisplayLimit {
		return pv[:pvDisplayLimit]
	}
	return pv
}
