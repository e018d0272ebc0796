package roundpush

import (
	"context"
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/store"
)

const (
	EventRoundCreated  = "round_created"
	EventRoundUpdate   = "round_update"
	EventRoundFinished = "round_finished"
)

// RoundSource is the read side the manager needs to announce results.
type RoundSource interface {
	GetRound(ctx context.Context, id string) (game.Round, error)
	ListRounds(ctx context.Context, limit, offset int) ([]game.Round, error)
	RoundWinner(ctx context.Context, roundID string) (store.RoundWinner, error)
}

type PushTarget struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	Secret         string   `json:"secret"`
	ScopeType      string   `json:"scope_type"`
	ScopeValue     string   `json:"scope_value"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []PushTarget
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	UpdateMinInterval   time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
	// ResumeWindow bounds how many recent rounds are picked up again on Start.
	ResumeWindow int

	// loadedRaw is the targets text Targets was parsed from. File reloads compare
	// against it, so an edit made after loading is still picked up.
	loadedRaw string
}

// RoundEvent is one announcement before formatting.
type RoundEvent struct {
	EventType  string
	RoundID    string
	StartTime  time.Time
	EndTime    time.Time
	TotalScore int64
	Winner     *store.RoundWinner
	At         time.Time
}

type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

type FormattedMessage struct {
	PanelKey    string
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []MessageField
}

type pushJob struct {
	Target        PushTarget
	Event         RoundEvent
	Formatted     FormattedMessage
	Attempt       int
	PanelTerminal bool
}

func (j pushJob) key() string {
	return targetKey(j.Target)
}

func targetKey(t PushTarget) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ScopeType + "|" + t.ScopeValue
}
