package rounds

import (
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/store"
)

type RoundItem struct {
	ID         string     `json:"id"`
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	TotalScore int64      `json:"total_score"`
	Status     game.Phase `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ListResponse struct {
	Items  []RoundItem `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type DetailResponse struct {
	Round   RoundItem          `json:"round"`
	MyScore int64              `json:"myScore"`
	MyTaps  int64              `json:"myTaps"`
	Winner  *store.RoundWinner `json:"winner,omitempty"`
}
