package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// FeishuAdapter posts interactive cards to a Feishu custom bot. Custom bots cannot
// edit earlier messages, so panel keys are ignored.
type FeishuAdapter struct {
	client *HTTPClient
	now    func() time.Time
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client, now: time.Now}
}

func (a *FeishuAdapter) Name() string { return "feishu" }

func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	elements := []map[string]string{{"tag": "markdown", "content": fallback(msg.Description, msg.Content)}}
	for _, f := range msg.Fields {
		elements = append(elements, map[string]string{
			"tag":     "markdown",
			"content": "**" + f.Name + "**: " + f.Value,
		})
	}
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]string{"tag": "plain_text", "content": msg.Title},
				"template": feishuTemplate(msg.Color),
			},
			"elements": elements,
		},
	}
	if secret = strings.TrimSpace(secret); secret != "" {
		ts := strconv.FormatInt(a.now().Unix(), 10)
		payload["timestamp"] = ts
		payload["sign"] = feishuSign(ts, secret)
	}
	_, _, err := a.client.PostJSON(ctx, endpoint, nil, payload)
	return err
}

// feishuSign follows the custom bot scheme: HMAC-SHA256 keyed by "timestamp\nsecret"
// over an empty message, base64 encoded.
func feishuSign(ts, secret string) string {
	mac := hmac.New(sha256.New, []byte(ts+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func feishuTemplate(color int) string {
	switch color {
	case 0xED4245:
		return "red"
	case 0x3BA55D:
		return "green"
	case 0xFEE75C:
		return "yellow"
	default:
		return "blue"
	}
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
