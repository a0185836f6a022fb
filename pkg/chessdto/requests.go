package chessdto

type NewGameRequest struct {
	Color string `json:"color"`
}

type MoveRequest struct {
	Move string `json:"move"`
}

type HistoryResponse struct {
	Games []*GameRecord `json:"games"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
