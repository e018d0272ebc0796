package store

import (
	"context"
	"errors"
	"fmt"

	"tap-arena/internal/game"
	"tap-arena/internal/ledger"

	"github.com/jackc/pgx/v5"
)

// BeginTap opens the transaction backing one ledger.RegisterTap call. Lock waits
// inside it are capped by the store's lock timeout.
func (s *Store) BeginTap(ctx context.Context) (ledger.Tx, error) {
	beginCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	tx, err := s.Pool.BeginTx(beginCtx, pgx.TxOptions{})
	if err != nil {
		return nil, mapLockError(err)
	}
	// SET does not accept bind parameters; the value is an integer we format.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	return &tapTx{tx: tx}, nil
}

type tapTx struct {
	tx pgx.Tx
}

func (t *tapTx) LockScore(ctx context.Context, roundID, userID string) (*game.ParticipantScore, error) {
	var ps game.ParticipantScore
	err := t.tx.QueryRow(ctx, `
		SELECT id, round_id, user_id, taps, score, updated_at
		FROM round_scores
		WHERE round_id = $1 AND user_id = $2
		FOR UPDATE`, roundID, userID).
		Scan(&ps.ID, &ps.RoundID, &ps.UserID, &ps.Taps, &ps.Score, &ps.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ledger.ErrScoreNotFound
	}
	if err != nil {
		return nil, mapLockError(err)
	}
	return &ps, nil
}

func (t *tapTx) CreateScore(ctx context.Context, roundID, userID string) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO round_scores (id, round_id, user_id, taps, score)
		VALUES ($1, $2, $3, 0, 0)
		ON CONFLICT (round_id, user_id) DO NOTHING`, NewID(), roundID, userID)
	return mapLockError(err)
}

func (t *tapTx) SaveScore(ctx context.Context, score *game.ParticipantScore) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE round_scores
		SET taps = $1, score = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at`, score.Taps, score.Score, score.ID).Scan(&score.UpdatedAt)
	return mapNotFound(err)
}

func (t *tapTx) AddRoundTotal(ctx context.Context, roundID string, points int64) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `
		UPDATE rounds
		SET total_score = total_score + $1
		WHERE id = $2
		RETURNING total_score`, points, roundID).Scan(&total)
	if err != nil {
		return 0, mapLockError(mapNotFound(err))
	}
	return total, nil
}

func (t *tapTx) RoundTotal(ctx context.Context, roundID string) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `SELECT total_score FROM rounds WHERE id = $1`, roundID).Scan(&total)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return total, nil
}

func (t *tapTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *tapTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
