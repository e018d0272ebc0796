package store_test

import (
	"errors"
	"testing"

	"tap-arena/internal/game"
	"tap-arena/internal/store"
)

func TestEnsureUserIsIdempotent(t *testing.T) {
	st, ctx := openStore(t)

	u, created, err := st.EnsureUser(ctx, "alice", "hash-1", game.RolePlayer)
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if !created || u.ID == "" {
		t.Fatalf("expected new user, got created=%v user=%+v", created, u)
	}

	again, created, err := st.EnsureUser(ctx, "alice", "hash-2", game.RoleAdmin)
	if err != nil {
		t.Fatalf("ensure user again: %v", err)
	}
	if created {
		t.Fatalf("expected existing user")
	}
	if again.ID != u.ID || again.PasswordHash != "hash-1" || again.Role != game.RolePlayer {
		t.Fatalf("existing user was modified: %+v", again)
	}

	byID, err := st.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get user by id: %v", err)
	}
	if byID.Username != "alice" {
		t.Fatalf("expected alice, got %s", byID.Username)
	}

	if _, err := st.GetUserByUsername(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
