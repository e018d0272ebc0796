package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	approunds "tap-arena/internal/app/rounds"
	"tap-arena/internal/auth"
	"tap-arena/internal/game"
	"tap-arena/internal/gateway"
	"tap-arena/internal/hub"
	"tap-arena/internal/ledger"
	"tap-arena/internal/testutil"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

type fixture struct {
	store  *testutil.MemoryStore
	issuer *auth.Issuer
	hub    *hub.Hub
	client *client.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := testutil.NewMemoryStore()
	h := hub.New()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	svc := approunds.NewService(st, gateway.New(st, ledger.New(st)), h, approunds.Timing{Cooldown: time.Second, Duration: time.Minute})

	srv := New(svc, issuer, h)
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)

	c, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	t.Cleanup(closeClient)
	return &fixture{store: st, issuer: issuer, hub: h, client: c}
}

func (f *fixture) token(t *testing.T, userID string, role game.Role) string {
	t.Helper()
	tok, err := f.issuer.Issue(auth.Identity{UserID: userID, Username: userID, Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (f *fixture) putRound(id string, start, end time.Time) {
	f.store.PutRound(game.Round{ID: id, StartTime: start, EndTime: end, CreatedAt: start})
}

func TestMCPServerToolsAndFlows(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.putRound("r-active", now.Add(-time.Minute), now.Add(time.Hour))

	assertToolNames(t, mustListTools(t, f.client), "list_rounds", "get_round", "tap_round")

	tok := f.token(t, "u1", game.RolePlayer)

	list := mustCallTool(t, f.client, "list_rounds", map[string]any{"token": tok})
	if list.IsError {
		t.Fatalf("list_rounds expected success, got: %v", list.StructuredContent)
	}
	items, _ := mapFromStructured(t, list)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 round, got %v", items)
	}

	var last map[string]any
	for range 11 {
		res := mustCallTool(t, f.client, "tap_round", map[string]any{"token": tok, "round_id": "r-active"})
		if res.IsError {
			t.Fatalf("tap_round expected success, got: %v", res.StructuredContent)
		}
		last = mapFromStructured(t, res)
	}
	if asFloat64(last["my_score"]) != 20 || asFloat64(last["total_score"]) != 20 || asFloat64(last["taps"]) != 11 {
		t.Fatalf("unexpected tap result after 11 taps: %v", last)
	}

	get := mustCallTool(t, f.client, "get_round", map[string]any{"token": tok, "round_id": "r-active"})
	if get.IsError {
		t.Fatalf("get_round expected success, got: %v", get.StructuredContent)
	}
	detail := mapFromStructured(t, get)
	if asFloat64(detail["myScore"]) != 20 || asFloat64(detail["myTaps"]) != 11 {
		t.Fatalf("unexpected detail: %v", detail)
	}
}

func TestMCPTapNotifiesObservers(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.putRound("r-live", now.Add(-time.Minute), now.Add(time.Hour))

	ch := make(chan hub.Event, 4)
	conn := f.hub.Attach(chanSender(ch))
	if err := f.hub.Subscribe(conn, "r-live"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	res := mustCallTool(t, f.client, "tap_round", map[string]any{"token": f.token(t, "u1", game.RolePlayer), "round_id": "r-live"})
	if res.IsError {
		t.Fatalf("tap_round expected success, got: %v", res.StructuredContent)
	}
	select {
	case ev := <-ch:
		if ev.Type != hub.EventRoundUpdate || ev.TotalScore == nil || *ev.TotalScore != 1 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("observer did not receive round update")
	}
}

func TestMCPServerToolErrors(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.putRound("r-cooldown", now.Add(time.Hour), now.Add(2*time.Hour))
	tok := f.token(t, "u1", game.RolePlayer)

	assertToolErrorCode(t, mustCallTool(t, f.client, "list_rounds", map[string]any{"token": ""}), "token_required")
	assertToolErrorCode(t, mustCallTool(t, f.client, "list_rounds", map[string]any{"token": "garbage"}), "invalid_token")
	assertToolErrorCode(t, mustCallTool(t, f.client, "get_round", map[string]any{"token": tok}), "invalid_request")
	assertToolErrorCode(t, mustCallTool(t, f.client, "get_round", map[string]any{"token": tok, "round_id": "missing"}), "round_not_found")
	assertToolErrorCode(t, mustCallTool(t, f.client, "tap_round", map[string]any{"token": tok, "round_id": "missing"}), "round_not_found")
	assertToolErrorCode(t, mustCallTool(t, f.client, "tap_round", map[string]any{"token": tok, "round_id": "r-cooldown"}), "round_not_active")
}

func TestClampPagination(t *testing.T) {
	if l, o := clampPagination(0, -3); l != defaultPageLimit || o != 0 {
		t.Fatalf("got limit=%d offset=%d", l, o)
	}
	if l, _ := clampPagination(10_000, 0); l != maxPageLimit {
		t.Fatalf("limit not capped: %d", l)
	}
}

type chanSender chan hub.Event

func (c chanSender) Send(ev hub.Event) bool {
	select {
	case c <- ev:
		return true
	default:
		return false
	}
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call tool %s: %v", name, err)
	}
	return res
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	errObj, ok := mapFromStructured(t, res)["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing 'error': %v", res.StructuredContent)
	}
	if got := asString(errObj["code"]); got != want {
		t.Fatalf("error code=%q want=%q", got, want)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat64(v any) float64 {
	f, _ := v.(float64)
	return f
}
