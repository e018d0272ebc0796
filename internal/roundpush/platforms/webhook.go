package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a secret is set.
const SignatureHeader = "X-Tap-Signature"

// WebhookAdapter posts the message as plain JSON for custom receivers.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string { return "webhook" }

type webhookField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type webhookBody struct {
	Panel       string         `json:"panel,omitempty"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Description string         `json:"description"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Fields      []webhookField `json:"fields"`
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	body := webhookBody{
		Panel:       msg.PanelKey,
		Title:       msg.Title,
		Content:     msg.Content,
		Description: msg.Description,
		Timestamp:   msg.Timestamp,
		Fields:      make([]webhookField, 0, len(msg.Fields)),
	}
	for _, f := range msg.Fields {
		body.Fields = append(body.Fields, webhookField{Name: f.Name, Value: f.Value})
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var headers map[string]string
	if secret = strings.TrimSpace(secret); secret != "" {
		headers = map[string]string{SignatureHeader: Sign(secret, raw)}
	}
	_, _, err = a.client.Send(ctx, http.MethodPost, endpoint, headers, raw)
	return err
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
