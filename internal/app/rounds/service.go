package rounds

import (
	"context"
	"errors"
	"time"

	"tap-arena/internal/auth"
	"tap-arena/internal/game"
	"tap-arena/internal/gateway"
	"tap-arena/internal/hub"
	"tap-arena/internal/metrics"
	"tap-arena/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Store interface {
	CreateRound(ctx context.Context, start, end time.Time) (game.Round, error)
	GetRound(ctx context.Context, id string) (game.Round, error)
	ListRounds(ctx context.Context, limit, offset int) ([]game.Round, error)
	GetParticipantScore(ctx context.Context, roundID, userID string) (game.ParticipantScore, error)
	RoundWinner(ctx context.Context, roundID string) (store.RoundWinner, error)
}

type Tapper interface {
	HandleTap(ctx context.Context, roundID string, p game.Participant) (game.TapResult, error)
}

type Notifier interface {
	NotifyRound(roundID string, total int64, exclude hub.ConnID) int
}

// Announcer hears about rounds as they are scheduled.
type Announcer interface {
	OnRoundCreated(r game.Round)
}

type Timing struct {
	Cooldown time.Duration
	Duration time.Duration
}

type Service struct {
	store    Store
	taps     Tapper
	notifier Notifier
	timing   Timing
	announce Announcer
	now      func() time.Time
}

func NewService(st Store, taps Tapper, n Notifier, timing Timing) *Service {
	return &Service{store: st, taps: taps, notifier: n, timing: timing, now: time.Now}
}

func (s *Service) List(ctx context.Context, limit, offset int) (*ListResponse, error) {
	limit, offset, ok := clampPage(limit, offset)
	if !ok {
		return nil, ErrInvalidRequest
	}
	items, err := s.store.ListRounds(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := lo.Map(items, func(r game.Round, _ int) RoundItem { return toItem(r, now) })
	return &ListResponse{Items: out, Limit: limit, Offset: offset}, nil
}

func (s *Service) WithAnnouncer(a Announcer) *Service {
	s.announce = a
	return s
}

// Create schedules a round that opens after the cooldown.
func (s *Service) Create(ctx context.Context) (*RoundItem, error) {
	start := s.now().Add(s.timing.Cooldown)
	r, err := s.store.CreateRound(ctx, start, start.Add(s.timing.Duration))
	if err != nil {
		return nil, err
	}
	log.Info().Str("round_id", r.ID).Time("start_time", r.StartTime).Time("end_time", r.EndTime).Msg("round_created")
	if s.announce != nil {
		s.announce.OnRoundCreated(r)
	}
	item := toItem(r, s.now())
	return &item, nil
}

func (s *Service) Get(ctx context.Context, id string, caller auth.Identity) (*DetailResponse, error) {
	r, err := s.store.GetRound(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoundNotFound
	}
	if err != nil {
		return nil, err
	}
	out := &DetailResponse{Round: toItem(r, s.now())}

	ps, err := s.store.GetParticipantScore(ctx, id, caller.UserID)
	switch {
	case err == nil:
		out.MyScore, out.MyTaps = ps.Score, ps.Taps
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	if out.Round.Status == game.PhaseFinished {
		w, err := s.store.RoundWinner(ctx, id)
		switch {
		case err == nil:
			out.Winner = &w
		case !errors.Is(err, store.ErrNotFound):
			return nil, err
		}
	}
	return out, nil
}

// Tap registers one tap and pushes the new total to every observer of the round.
func (s *Service) Tap(ctx context.Context, id string, caller auth.Identity, transport string) (*game.TapResult, error) {
	started := time.Now()
	res, err := s.taps.HandleTap(ctx, id, caller.Participant())
	metrics.ObserveTap(transport, gateway.ErrorCode(err), started)
	if err != nil {
		return nil, err
	}
	s.notifier.NotifyRound(id, res.TotalScore, "")
	return &res, nil
}

func toItem(r game.Round, now time.Time) RoundItem {
	return RoundItem{
		ID:         r.ID,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		TotalScore: r.TotalScore,
		Status:     game.PhaseAt(r.Window(), now),
		CreatedAt:  r.CreatedAt,
	}
}

func clampPage(limit, offset int) (int, int, bool) {
	if offset < 0 || limit < 0 {
		return 0, 0, false
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	return min(limit, maxPageSize), offset, true
}
