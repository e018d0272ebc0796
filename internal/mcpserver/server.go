package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"tap-arena/internal/auth"
	approunds "tap-arena/internal/app/rounds"
	"tap-arena/internal/hub"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type Server struct {
	rounds *approunds.Service
	tokens TokenVerifier
	hub    *hub.Hub

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(rounds *approunds.Service, tokens TokenVerifier, h *hub.Hub) *Server {
	mcpSrv := server.NewMCPServer(
		"tap-arena",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		rounds:     rounds,
		tokens:     tokens,
		hub:        h,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerRoundTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"round://{round_id}/state",
			"round_state",
			mcp.WithTemplateDescription("Round phase, total score and live observer count"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := string(request.Params.URI)
			if !strings.HasPrefix(raw, "round://") || !strings.HasSuffix(raw, "/state") {
				return nil, nil
			}
			roundID := strings.TrimSuffix(strings.TrimPrefix(raw, "round://"), "/state")
			if roundID == "" {
				return nil, nil
			}
			detail, err := s.rounds.Get(ctx, roundID, auth.Identity{})
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(map[string]any{
				"round":     detail.Round,
				"observers": len(s.hub.Subscribers(roundID)),
			})
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}

func (s *Server) authCaller(token string) (auth.Identity, *mcp.CallToolResult) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Identity{}, toolError("token_required", "token is required")
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, toolError("invalid_token", "invalid or expired token")
	}
	return id, nil
}
