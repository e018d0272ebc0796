package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tap-arena/internal/game"
)

func TestIssueAndVerify(t *testing.T) {
	iss := NewIssuer("0123456789abcdef", time.Hour)
	want := Identity{UserID: "u1", Username: "alice", Role: game.RolePlayer}
	tok, err := iss.Issue(want)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := iss.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	iss := NewIssuer("0123456789abcdef", time.Hour)
	other := NewIssuer("fedcba9876543210", time.Hour)
	foreign, _ := other.Issue(Identity{UserID: "u1", Role: game.RolePlayer})

	expired := NewIssuer("0123456789abcdef", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	stale, _ := expired.Issue(Identity{UserID: "u1", Role: game.RolePlayer})

	badRole, _ := iss.Issue(Identity{UserID: "u1", Role: game.Role("root")})

	cases := map[string]string{
		"garbage":  "not-a-jwt",
		"foreign":  foreign,
		"expired":  stale,
		"bad role": badRole,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := iss.Verify(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
	if _, err := iss.Verify(""); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	r.Header.Set("Authorization", "Bearer h")
	if got := TokenFromRequest(r); got != "q" {
		t.Fatalf("expected query token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer h")
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "c"})
	if got := TokenFromRequest(r); got != "h" {
		t.Fatalf("expected header token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "c"})
	if got := TokenFromRequest(r); got != "c" {
		t.Fatalf("expected cookie token, got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestPasswordAndRoles(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	roles := map[string]game.Role{
		"admin":  game.RoleAdmin,
		"Admin":  game.RoleAdmin,
		"nikita": game.RoleNikita,
		"Никита": game.RoleNikita,
		"bob":    game.RolePlayer,
	}
	for name, want := range roles {
		if got := RoleForUsername(name); got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}
