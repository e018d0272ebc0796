package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tap-arena/internal/game"

	"github.com/jackc/pgx/v5"
)

const roundColumns = `id, start_time, end_time, total_score, created_at`

func scanRound(row pgx.Row) (game.Round, error) {
	var r game.Round
	if err := row.Scan(&r.ID, &r.StartTime, &r.EndTime, &r.TotalScore, &r.CreatedAt); err != nil {
		return game.Round{}, mapNotFound(err)
	}
	return r, nil
}

func (s *Store) CreateRound(ctx context.Context, start, end time.Time) (game.Round, error) {
	if !end.After(start) {
		return game.Round{}, errors.New("round end must be after start")
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO rounds (id, start_time, end_time)
		VALUES ($1, $2, $3)
		RETURNING `+roundColumns,
		NewID(), start.UTC(), end.UTC())
	return scanRound(row)
}

func (s *Store) GetRound(ctx context.Context, id string) (game.Round, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, id)
	return scanRound(row)
}

func (s *Store) ListRounds(ctx context.Context, limit, offset int) ([]game.Round, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+roundColumns+`
		FROM rounds
		ORDER BY start_time DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []game.Round{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetParticipantScore(ctx context.Context, roundID, userID string) (game.ParticipantScore, error) {
	var ps game.ParticipantScore
	err := s.Pool.QueryRow(ctx, `
		SELECT id, round_id, user_id, taps, score, updated_at
		FROM round_scores
		WHERE round_id = $1 AND user_id = $2`, roundID, userID).
		Scan(&ps.ID, &ps.RoundID, &ps.UserID, &ps.Taps, &ps.Score, &ps.UpdatedAt)
	if err != nil {
		return game.ParticipantScore{}, mapNotFound(err)
	}
	return ps, nil
}

// RoundWinner returns ErrNotFound when nobody scored.
func (s *Store) RoundWinner(ctx context.Context, roundID string) (RoundWinner, error) {
	var w RoundWinner
	err := s.Pool.QueryRow(ctx, `
		SELECT rs.user_id, u.username, rs.score
		FROM round_scores rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.round_id = $1 AND rs.score > 0
		ORDER BY rs.score DESC, rs.updated_at ASC
		LIMIT 1`, roundID).Scan(&w.UserID, &w.Username, &w.Score)
	if err != nil {
		return RoundWinner{}, fmt.Errorf("round winner: %w", mapNotFound(err))
	}
	return w, nil
}
