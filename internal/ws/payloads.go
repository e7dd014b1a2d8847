package ws

import "trivia_backend/internal/domain"

// Envelope wraps every message in both directions.
type Envelope struct {
	Type   string `json:"type"`
	WeekID string `json:"weekId,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// client → server, an empty weekId follows every week
type SubscribePayload struct {
	Type   string `json:"type"`
	WeekID string `json:"weekId"`
}

// server → client
type PoolPayload struct {
	Status            domain.PoolStatus `json:"status"`
	TotalGames        int64             `json:"totalGames"`
	TotalLosses       int64             `json:"totalLosses"`
	ToBurnAccumulated int64             `json:"toBurnAccumulated"`
	CurrentPrizePool  int64             `json:"currentPrizePool"`
}

type BurnPayload struct {
	Amount int64  `json:"amount"`
	TxHash string `json:"txHash"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
