package store

import (
	"time"

	"tap-arena/internal/game"
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         game.Role
	CreatedAt    time.Time
}

// RoundWinner is the top scorer of a round. Ties go to the earliest update.
type RoundWinner struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
}
