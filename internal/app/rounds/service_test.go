package rounds

import (
	"context"
	"errors"
	"testing"
	"time"

	"tap-arena/internal/auth"
	"tap-arena/internal/game"
	"tap-arena/internal/gateway"
	"tap-arena/internal/hub"
	"tap-arena/internal/ledger"
	"tap-arena/internal/testutil"
)

type notifyCall struct {
	roundID string
	total   int64
	exclude hub.ConnID
}

type fakeNotifier struct {
	calls []notifyCall
}

func (f *fakeNotifier) NotifyRound(roundID string, total int64, exclude hub.ConnID) int {
	f.calls = append(f.calls, notifyCall{roundID, total, exclude})
	return 1
}

func newTestService(t *testing.T, now time.Time) (*Service, *testutil.MemoryStore, *fakeNotifier) {
	t.Helper()
	st := testutil.NewMemoryStore()
	n := &fakeNotifier{}
	gw := gateway.New(st, ledger.New(st)).WithClock(func() time.Time { return now })
	svc := NewService(st, gw, n, Timing{Cooldown: 30 * time.Second, Duration: time.Minute})
	svc.now = func() time.Time { return now }
	return svc, st, n
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		offset    int
		wantLimit int
		wantOK    bool
	}{
		{name: "default", limit: 0, wantLimit: defaultPageSize, wantOK: true},
		{name: "explicit", limit: 10, wantLimit: 10, wantOK: true},
		{name: "capped", limit: 1000, wantLimit: maxPageSize, wantOK: true},
		{name: "negative offset", limit: 10, offset: -1, wantOK: false},
		{name: "negative limit", limit: -1, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLimit, _, ok := clampPage(tt.limit, tt.offset)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && gotLimit != tt.wantLimit {
				t.Fatalf("limit = %d, want %d", gotLimit, tt.wantLimit)
			}
		})
	}
}

func TestCreateSchedulesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)

	item, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !item.StartTime.Equal(now.Add(30*time.Second)) || !item.EndTime.Equal(now.Add(90*time.Second)) {
		t.Fatalf("unexpected window: %s - %s", item.StartTime, item.EndTime)
	}
	if item.Status != game.PhaseCooldown {
		t.Fatalf("expected cooldown, got %s", item.Status)
	}

	list, err := svc.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != item.ID {
		t.Fatalf("unexpected list: %+v", list.Items)
	}
}

type recordingAnnouncer struct {
	rounds []game.Round
}

func (a *recordingAnnouncer) OnRoundCreated(r game.Round) {
	a.rounds = append(a.rounds, r)
}

func TestCreateAnnouncesRound(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)
	a := &recordingAnnouncer{}
	svc.WithAnnouncer(a)

	item, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(a.rounds) != 1 || a.rounds[0].ID != item.ID {
		t.Fatalf("expected one announcement for %s, got %+v", item.ID, a.rounds)
	}
}

func TestTapNotifiesAllObservers(t *testing.T) {
	now := time.Now()
	svc, st, n := newTestService(t, now)
	st.PutRound(game.Round{ID: "r1", StartTime: now.Add(-time.Second), EndTime: now.Add(time.Minute)})
	caller := auth.Identity{UserID: "u1", Role: game.RolePlayer}

	res, err := svc.Tap(context.Background(), "r1", caller, "http")
	if err != nil {
		t.Fatalf("tap: %v", err)
	}
	if res.Taps != 1 || res.TotalScore != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(n.calls) != 1 || n.calls[0] != (notifyCall{"r1", 1, ""}) {
		t.Fatalf("unexpected notify calls: %+v", n.calls)
	}

	if _, err := svc.Tap(context.Background(), "missing", caller, "http"); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
	if len(n.calls) != 1 {
		t.Fatalf("failed tap must not notify")
	}
}

func TestGetReportsCallerScoreAndWinner(t *testing.T) {
	now := time.Now()
	svc, st, _ := newTestService(t, now)
	st.PutRound(game.Round{ID: "r1", StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Minute)})
	alice, _, _ := st.EnsureUser(context.Background(), "alice", "h", game.RolePlayer)
	bob, _, _ := st.EnsureUser(context.Background(), "bob", "h", game.RolePlayer)
	a := auth.Identity{UserID: alice.ID, Username: "alice", Role: game.RolePlayer}
	b := auth.Identity{UserID: bob.ID, Username: "bob", Role: game.RolePlayer}

	for i := 0; i < 3; i++ {
		if _, err := svc.Tap(context.Background(), "r1", a, "http"); err != nil {
			t.Fatalf("tap: %v", err)
		}
	}
	if _, err := svc.Tap(context.Background(), "r1", b, "http"); err != nil {
		t.Fatalf("tap: %v", err)
	}

	d, err := svc.Get(context.Background(), "r1", a)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.MyScore != 3 || d.MyTaps != 3 || d.Round.TotalScore != 4 || d.Winner != nil {
		t.Fatalf("unexpected active detail: %+v", d)
	}

	svc.now = func() time.Time { return now.Add(2 * time.Minute) }
	d, err = svc.Get(context.Background(), "r1", b)
	if err != nil {
		t.Fatalf("get finished: %v", err)
	}
	if d.Round.Status != game.PhaseFinished || d.MyTaps != 1 {
		t.Fatalf("unexpected finished detail: %+v", d)
	}
	if d.Winner == nil || d.Winner.UserID != alice.ID || d.Winner.Username != "alice" || d.Winner.Score != 3 {
		t.Fatalf("unexpected winner: %+v", d.Winner)
	}

	if _, err := svc.Get(context.Background(), "missing", a); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
}

func TestGetFinishedRoundWithoutScoresHasNoWinner(t *testing.T) {
	now := time.Now()
	svc, st, _ := newTestService(t, now)
	st.PutRound(game.Round{ID: "r1", StartTime: now.Add(-2 * time.Minute), EndTime: now.Add(-time.Minute)})

	d, err := svc.Get(context.Background(), "r1", auth.Identity{UserID: "u"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Winner != nil || d.MyScore != 0 {
		t.Fatalf("unexpected detail: %+v", d)
	}
}
