package gateway_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/gateway"
	"tap-arena/internal/ledger"
	"tap-arena/internal/testutil"
)

type countingLedger struct {
	calls int
	next  *ledger.Ledger
}

func (c *countingLedger) RegisterTap(ctx context.Context, r game.Round, p game.Participant) (game.TapResult, error) {
	c.calls++
	return c.next.RegisterTap(ctx, r, p)
}

func TestHandleTapPhases(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Minute)
	cases := []struct {
		name    string
		now     time.Time
		wantErr error
	}{
		{name: "cooldown", now: start.Add(-time.Nanosecond), wantErr: gateway.ErrRoundNotActive},
		{name: "start boundary", now: start},
		{name: "middle", now: start.Add(30 * time.Second)},
		{name: "end boundary", now: end},
		{name: "finished", now: end.Add(time.Nanosecond), wantErr: gateway.ErrRoundNotActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := testutil.NewMemoryStore()
			st.PutRound(game.Round{ID: "r1", StartTime: start, EndTime: end})
			cl := &countingLedger{next: ledger.New(st)}
			g := gateway.New(st, cl).WithClock(func() time.Time { return tc.now })

			res, err := g.HandleTap(context.Background(), "r1", game.Participant{UserID: "u", Role: game.RolePlayer})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if cl.calls != 0 {
					t.Fatalf("ledger must not be invoked, calls=%d", cl.calls)
				}
				if len(st.Scores("r1")) != 0 {
					t.Fatalf("rejected tap created a score row")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Taps != 1 || res.MyScore != 1 || res.TotalScore != 1 {
				t.Fatalf("unexpected result: %+v", res)
			}
		})
	}
}

func TestHandleTapUnknownRound(t *testing.T) {
	st := testutil.NewMemoryStore()
	cl := &countingLedger{next: ledger.New(st)}
	g := gateway.New(st, cl)

	_, err := g.HandleTap(context.Background(), "missing", game.Participant{UserID: "u", Role: game.RolePlayer})
	if !errors.Is(err, gateway.ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
	if cl.calls != 0 {
		t.Fatalf("ledger must not be invoked")
	}
}

func TestHandleTapPropagatesLockFailure(t *testing.T) {
	st := testutil.NewMemoryStore()
	st.FailBegin = errors.New("db down")
	now := time.Now()
	st.PutRound(game.Round{ID: "r1", StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Minute)})
	g := gateway.New(st, ledger.New(st))

	_, err := g.HandleTap(context.Background(), "r1", game.Participant{UserID: "u", Role: game.RolePlayer})
	if !errors.Is(err, ledger.ErrLockAcquisitionFailed) {
		t.Fatalf("expected ErrLockAcquisitionFailed, got %v", err)
	}
}

func TestErrorCode(t *testing.T) {
	cases := map[string]error{
		"ok":                      nil,
		"round_not_found":         gateway.ErrRoundNotFound,
		"round_not_active":        gateway.ErrRoundNotActive,
		"lock_acquisition_failed": errors.Join(ledger.ErrLockAcquisitionFailed, errors.New("timeout")),
		"internal_error":          errors.New("boom"),
	}
	for want, err := range cases {
		if got := gateway.ErrorCode(err); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}
