package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/ledger"
	"tap-arena/internal/store"
)

var (
	ErrRoundNotFound  = errors.New("round_not_found")
	ErrRoundNotActive = errors.New("round_not_active")
)

type RoundReader interface {
	GetRound(ctx context.Context, id string) (game.Round, error)
}

type TapRegistrar interface {
	RegisterTap(ctx context.Context, round game.Round, p game.Participant) (game.TapResult, error)
}

// Gateway admits a tap only while its round is active.
type Gateway struct {
	rounds RoundReader
	ledger TapRegistrar
	now    func() time.Time
}

func New(rounds RoundReader, l TapRegistrar) *Gateway {
	return &Gateway{rounds: rounds, ledger: l, now: time.Now}
}

// WithClock overrides the wall clock used for phase checks.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

func (g *Gateway) HandleTap(ctx context.Context, roundID string, p game.Participant) (game.TapResult, error) {
	round, err := g.rounds.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return game.TapResult{}, ErrRoundNotFound
		}
		return game.TapResult{}, fmt.Errorf("load round: %w", err)
	}
	if phase := game.PhaseAt(round.Window(), g.now()); phase != game.PhaseActive {
		return game.TapResult{}, ErrRoundNotActive
	}
	return g.ledger.RegisterTap(ctx, round, p)
}

// ErrorCode maps a HandleTap outcome to its wire code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRoundNotFound):
		return "round_not_found"
	case errors.Is(err, ErrRoundNotActive):
		return "round_not_active"
	case errors.Is(err, ledger.ErrLockAcquisitionFailed):
		return "lock_acquisition_failed"
	default:
		return "internal_error"
	}
}
