package platforms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

var errMissingMessageID = errors.New("discord webhook create message missing id")

// DiscordAdapter posts embeds to a Discord webhook. Panel messages are created with
// wait=true so their id can be used for later edits.
type DiscordAdapter struct {
	client *HTTPClient

	mu     sync.Mutex
	panels map[string]string
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client, panels: map[string]string{}}
}

func (a *DiscordAdapter) Name() string { return "discord" }

func (a *DiscordAdapter) Send(ctx context.Context, endpoint, _ string, msg Message) error {
	payload := discordPayload(msg)
	panel := strings.TrimSpace(msg.PanelKey)
	if panel == "" {
		_, _, err := a.client.PostJSON(ctx, endpoint, nil, payload)
		return err
	}

	key := panelKey(endpoint, panel)
	if msgID := a.panel(key); msgID != "" {
		if editURL, ok := discordEditURL(endpoint, msgID); ok {
			status, _, err := a.client.PatchJSON(ctx, editURL, nil, payload)
			if err == nil || status != http.StatusNotFound {
				return err
			}
		}
	}

	id, err := a.create(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	a.setPanel(key, id)
	return nil
}

func (a *DiscordAdapter) ForgetPanel(endpoint, panel string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.panels, panelKey(endpoint, panel))
}

func (a *DiscordAdapter) panel(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.panels[key]
}

func (a *DiscordAdapter) setPanel(key, id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.panels[key] = id
}

func (a *DiscordAdapter) create(ctx context.Context, endpoint string, payload map[string]any) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()

	_, body, err := a.client.PostJSON(ctx, u.String(), nil, payload)
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(body, &created) != nil || strings.TrimSpace(created.ID) == "" {
		return "", errMissingMessageID
	}
	return created.ID, nil
}

func discordPayload(msg Message) map[string]any {
	type embedField struct {
		Name   string `json:"name"`
		Value  string `json:"value"`
		Inline bool   `json:"inline"`
	}
	fields := make([]embedField, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, embedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	embed := map[string]any{
		"title":       msg.Title,
		"description": msg.Description,
		"fields":      fields,
		"color":       msg.Color,
	}
	if msg.Timestamp != "" {
		embed["timestamp"] = msg.Timestamp
	}
	if msg.Footer != "" {
		embed["footer"] = map[string]string{"text": msg.Footer}
	}
	return map[string]any{
		"content": msg.Content,
		"embeds":  []map[string]any{embed},
	}
}

// discordEditURL maps /api/webhooks/{id}/{token} to its message edit endpoint.
func discordEditURL(endpoint, msgID string) (string, bool) {
	u, err := url.Parse(endpoint)
	if err != nil || msgID == "" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "webhooks" {
		return "", false
	}
	u.Path = "/api/webhooks/" + parts[2] + "/" + parts[3] + "/messages/" + msgID
	u.RawQuery = ""
	return u.String(), true
}

func panelKey(endpoint, panel string) string {
	return strings.TrimSpace(endpoint) + "|" + strings.TrimSpace(panel)
}
