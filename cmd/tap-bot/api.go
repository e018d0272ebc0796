package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type apiClient struct {
	base  string
	http  *http.Client
	token string
}

type roundInfo struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Status    string    `json:"status"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *apiClient) login(ctx context.Context, username, password string) (loginResponse, error) {
	var out loginResponse
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, http.StatusOK, &out); err != nil {
		return out, err
	}
	c.token = out.Token
	return out, nil
}

func (c *apiClient) listRounds(ctx context.Context) ([]roundInfo, error) {
	var out struct {
		Items []roundInfo `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "/rounds", nil, http.StatusOK, &out)
	return out.Items, err
}

func (c *apiClient) getRound(ctx context.Context, id string) (roundInfo, error) {
	var out struct {
		Round roundInfo `json:"round"`
	}
	err := c.do(ctx, http.MethodGet, "/rounds/"+id, nil, http.StatusOK, &out)
	return out.Round, err
}

func (c *apiClient) createRound(ctx context.Context) (roundInfo, error) {
	var out roundInfo
	err := c.do(ctx, http.MethodPost, "/rounds", nil, http.StatusCreated, &out)
	return out, err
}

func (c *apiClient) do(ctx context.Context, method, path string, body []byte, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: status %d %s", method, path, resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// pickRound prefers an active round, then the next one to open.
func pickRound(items []roundInfo) (roundInfo, bool) {
	var next *roundInfo
	for i := range items {
		switch items[i].Status {
		case "active":
			return items[i], true
		case "cooldown":
			if next == nil || items[i].StartTime.Before(next.StartTime) {
				next = &items[i]
			}
		}
	}
	if next != nil {
		return *next, true
	}
	return roundInfo{}, false
}
