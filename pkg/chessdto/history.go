package chessdto

import "time"

// GameRecord is a finished game as listed by GET /history.
type GameRecord struct {
	ID              int64     `json:"id"`
	GameUUID        string    `json:"game_uuid"`
	HumanColor      string    `json:"human_color"`
	Result          string    `json:"result"`
	ResultMethod    string    `json:"result_method"`
	MovesUCI        []string  `json:"moves_uci"`
	MovesSAN        []string  `json:"moves_san"`
	PGN             string    `json:"pgn"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationMS      int64     `json:"duration_ms"`
	EngineMoves     int       `json:"engine_moves"`
	EngineLatencyMS int64     `json:"engine_latency_ms"`
}
