package chessdto

// DomainError is the JSON error body of the HTTP API.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "chess service error"
}

const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidMove    = "invalid_move"
	CodeNotFound       = "not_found"
	CodeEngineThinking = "engine_thinking"
	CodeNotYourTurn    = "not_your_turn"
	CodeNotEngineTurn  = "not_engine_turn"
	CodeGameOver       = "game_over"
	CodeInternal       = "internal"
)
