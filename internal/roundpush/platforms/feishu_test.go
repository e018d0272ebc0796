package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFeishuAdapterPayloadAndSignature(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	adapter := NewFeishuAdapter(NewHTTPClient(time.Second))
	adapter.now = func() time.Time { return time.Unix(1700000000, 0) }
	err := adapter.Send(context.Background(), srv.URL, "s3cret", Message{
		PanelKey:    "round-1",
		Title:       "Round Over",
		Description: "Winner: alice",
		Color:       0xED4245,
		Fields:      []Field{{Name: "Score", Value: "20", Inline: true}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["msg_type"] != "interactive" {
		t.Fatalf("unexpected msg_type: %v", got["msg_type"])
	}
	if got["timestamp"] != "1700000000" || got["sign"] != feishuSign("1700000000", "s3cret") {
		t.Fatalf("unexpected signature fields: ts=%v sign=%v", got["timestamp"], got["sign"])
	}
	card := got["card"].(map[string]any)
	header := card["header"].(map[string]any)
	if header["template"] != "red" {
		t.Fatalf("unexpected template: %v", header["template"])
	}
	if elems := card["elements"].([]any); len(elems) != 2 {
		t.Fatalf("expected description plus one field, got %d", len(elems))
	}
}

func TestFeishuAdapterWithoutSecret(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	if err := NewFeishuAdapter(NewHTTPClient(time.Second)).Send(context.Background(), srv.URL, "", Message{Title: "t", Content: "c"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, ok := got["sign"]; ok {
		t.Fatal("no sign expected without secret")
	}
}
