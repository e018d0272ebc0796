package game

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
	// RoleNikita taps are counted but never scored.
	RoleNikita Role = "nikita"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePlayer, RoleNikita:
		return true
	default:
		return false
	}
}

// Participant is the verified identity behind a tap.
type Participant struct {
	UserID string
	Role   Role
}

type Round struct {
	ID         string    `json:"id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	TotalScore int64     `json:"total_score"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r Round) Window() Window {
	return Window{Start: r.StartTime, End: r.EndTime}
}

// ParticipantScore is the per-(round, user) tally. Counters are int64 and are not
// checked for overflow.
type ParticipantScore struct {
	ID        string
	RoundID   string
	UserID    string
	Taps      int64
	Score     int64
	UpdatedAt time.Time
}

// TapResult is what one registered tap reports back to the tapper.
type TapResult struct {
	MyScore    int64 `json:"myScore"`
	TotalScore int64 `json:"totalScore"`
	Taps       int64 `json:"taps"`
}
