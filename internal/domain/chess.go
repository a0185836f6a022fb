package domain

import "time"

// EngineGame is a finished human-versus-engine game.
type EngineGame struct {
	ID            int64
	GameUUID      string
	HumanColor    string
	Result        string
	ResultMethod  string
	MovesUCI      []string
	MovesSAN      []string
	PGN           string
	StartedAt     time.Time
	EndedAt       time.Time
	Duration      time.Duration
	EngineMoves   int
	EngineLatency time.Duration
}
