package store_test

import (
	"context"
	"testing"
	"time"

	"tap-arena/internal/game"
	"tap-arena/internal/store"
	"tap-arena/internal/testutil"
)

func openStore(t *testing.T, opts ...store.Option) (*store.Store, context.Context) {
	t.Helper()
	return testutil.OpenTestStore(t, opts...), context.Background()
}

func mustCreateUser(t *testing.T, st *store.Store, ctx context.Context, username string, role game.Role) store.User {
	t.Helper()
	u, _, err := st.EnsureUser(ctx, username, "hash-"+username, role)
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	return u
}

func mustCreateRound(t *testing.T, st *store.Store, ctx context.Context, start, end time.Time) game.Round {
	t.Helper()
	r, err := st.CreateRound(ctx, start, end)
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	return r
}
