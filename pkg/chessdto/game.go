package chessdto

import "time"

type EvaluationView struct {
	Centipawns int    `json:"centipawns"`
	Mate       *int   `json:"mate,omitempty"`
	Bound      string `json:"bound"`
	Text       string `json:"text"`
}

// GameView is the public state of a game. PV carries at most five moves.
type GameView struct {
	ID         string          `json:"id"`
	HumanColor string          `json:"human_color"`
	FEN        string          `json:"fen"`
	Turn       string          `json:"turn"`
	MovesUCI   []string        `json:"moves_uci"`
	MovesSAN   []string        `json:"moves_san"`
	Status     string          `json:"status"`
	Outcome    string          `json:"outcome,omitempty"`
	Method     string          `json:"method,omitempty"`
	Finished   bool            `json:"finished"`
	Thinking   bool            `json:"thinking"`
	Evaluation *EvaluationView `json:"evaluation,omitempty"`
	EvalText   string          `json:"evaluation_text"`
	PV         []string        `json:"pv,omitempty"`
	PVText     string          `json:"pv_text,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
