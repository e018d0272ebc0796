package ledger

import (
	"context"
	"errors"
	"fmt"

	"tap-arena/internal/game"

	"github.com/rs/zerolog/log"
)

var (
	// ErrLockAcquisitionFailed is transient: the tap was not applied and may be retried.
	ErrLockAcquisitionFailed = errors.New("lock_acquisition_failed")
	// ErrScoreNotFound is returned by Tx.LockScore when no row exists yet.
	ErrScoreNotFound = errors.New("score_not_found")
)

// Store opens one storage transaction per tap.
type Store interface {
	BeginTap(ctx context.Context) (Tx, error)
}

// Tx is scoped to a single call of RegisterTap. Rollback after Commit is a no-op.
type Tx interface {
	LockScore(ctx context.Context, roundID, userID string) (*game.ParticipantScore, error)
	CreateScore(ctx context.Context, roundID, userID string) error
	SaveScore(ctx context.Context, score *game.ParticipantScore) error
	AddRoundTotal(ctx context.Context, roundID string, points int64) (int64, error)
	RoundTotal(ctx context.Context, roundID string) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Ledger struct {
	store Store
}

func New(s Store) *Ledger {
	return &Ledger{store: s}
}

// RegisterTap applies exactly one tap for p in round, all or nothing.
func (l *Ledger) RegisterTap(ctx context.Context, round game.Round, p game.Participant) (game.TapResult, error) {
	tx, err := l.store.BeginTap(ctx)
	if err != nil {
		return game.TapResult{}, lockFailure(err)
	}
	defer tx.Rollback(ctx)

	score, err := lockOrCreate(ctx, tx, round.ID, p.UserID)
	if err != nil {
		return game.TapResult{}, err
	}

	score.Taps++
	points := game.Points(p.Role, score.Taps)
	score.Score += points
	if err := tx.SaveScore(ctx, score); err != nil {
		return game.TapResult{}, fmt.Errorf("save score: %w", err)
	}

	var total int64
	if points > 0 {
		total, err = tx.AddRoundTotal(ctx, round.ID, points)
		if err != nil {
			return game.TapResult{}, fmt.Errorf("add round total: %w", err)
		}
	} else {
		total, err = tx.RoundTotal(ctx, round.ID)
		if err != nil {
			return game.TapResult{}, fmt.Errorf("read round total: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return game.TapResult{}, fmt.Errorf("commit tap: %w", err)
	}
	log.Debug().
		Str("round_id", round.ID).
		Str("user_id", p.UserID).
		Int64("taps", score.Taps).
		Int64("points", points).
		Int64("total_score", total).
		Msg("tap_registered")
	return game.TapResult{MyScore: score.Score, TotalScore: total, Taps: score.Taps}, nil
}

// lockOrCreate locks the score row, creating it first when absent. The second lock
// closes the race between two first taps creating the same row. Storage reports
// genuine lock waits as ErrLockAcquisitionFailed itself; other errors pass through.
func lockOrCreate(ctx context.Context, tx Tx, roundID, userID string) (*game.ParticipantScore, error) {
	score, err := tx.LockScore(ctx, roundID, userID)
	if err == nil {
		return score, nil
	}
	if !errors.Is(err, ErrScoreNotFound) {
		return nil, fmt.Errorf("lock score: %w", err)
	}
	if err := tx.CreateScore(ctx, roundID, userID); err != nil {
		return nil, fmt.Errorf("create score: %w", err)
	}
	score, err = tx.LockScore(ctx, roundID, userID)
	if errors.Is(err, ErrScoreNotFound) {
		return nil, lockFailure(err)
	}
	if err != nil {
		return nil, fmt.Errorf("relock score: %w", err)
	}
	return score, nil
}

func lockFailure(err error) error {
	if errors.Is(err, ErrLockAcquisitionFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrLockAcquisitionFailed, err)
}
