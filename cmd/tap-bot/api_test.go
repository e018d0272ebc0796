package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPickRound(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		items  []roundInfo
		wantID string
		wantOK bool
	}{
		{name: "empty", wantOK: false},
		{name: "finished only", items: []roundInfo{{ID: "f", Status: "finished"}}, wantOK: false},
		{
			name: "active wins",
			items: []roundInfo{
				{ID: "c", Status: "cooldown", StartTime: now.Add(time.Second)},
				{ID: "a", Status: "active"},
			},
			wantID: "a", wantOK: true,
		},
		{
			name: "earliest cooldown",
			items: []roundInfo{
				{ID: "late", Status: "cooldown", StartTime: now.Add(time.Minute)},
				{ID: "soon", Status: "cooldown", StartTime: now.Add(time.Second)},
			},
			wantID: "soon", wantOK: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickRound(tt.items)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Fatalf("pickRound = (%q, %v), want (%q, %v)", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestResolveRoundCreatesWhenAdmin(t *testing.T) {
	var created bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/rounds":
			_ = json.NewEncoder(w).Encode(map[string]any{"items": []any{}})
		case r.Method == http.MethodPost && r.URL.Path == "/rounds":
			created = true
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "new", "status": "cooldown"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api := newAPIClient(srv.URL)
	api.token = "tok"

	if _, err := resolveRound(context.Background(), api, "", false); err != errNoRound {
		t.Fatalf("expected errNoRound for non-admin, got %v", err)
	}
	r, err := resolveRound(context.Background(), api, "", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !created || r.ID != "new" {
		t.Fatalf("expected created round, got %+v created=%v", r, created)
	}
}

func TestLoginStoresToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "abc", "user": map[string]any{"id": "u1", "role": "player"}})
	}))
	defer srv.Close()

	api := newAPIClient(srv.URL)
	resp, err := api.login(context.Background(), "bot", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if api.token != "abc" || resp.User.ID != "u1" {
		t.Fatalf("unexpected login state token=%q resp=%+v", api.token, resp)
	}
}
