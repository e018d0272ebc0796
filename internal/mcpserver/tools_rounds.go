package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerRoundTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_rounds",
			mcp.WithDescription("List rounds, newest first, with their phase"),
			mcp.WithString("token", mcp.Required(), mcp.Description("Session token from /api/auth/login")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 200")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
		),
		s.handleListRounds,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_round",
			mcp.WithDescription("Get one round with the caller's score and, once finished, the winner"),
			mcp.WithString("token", mcp.Required(), mcp.Description("Session token")),
			mcp.WithString("round_id", mcp.Required(), mcp.Description("Round id")),
		),
		s.handleGetRound,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"tap_round",
			mcp.WithDescription("Register one tap in an active round"),
			mcp.WithString("token", mcp.Required(), mcp.Description("Session token")),
			mcp.WithString("round_id", mcp.Required(), mcp.Description("Round id")),
		),
		s.handleTapRound,
	)
}

func (s *Server) handleListRounds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, errResp := s.authCaller(request.GetString("token", "")); errResp != nil {
		return errResp, nil
	}
	limit, offset := clampPagination(request.GetInt("limit", defaultPageLimit), request.GetInt("offset", 0))
	resp, err := s.rounds.List(ctx, limit, offset)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caller, errResp := s.authCaller(request.GetString("token", ""))
	if errResp != nil {
		return errResp, nil
	}
	roundID := strings.TrimSpace(request.GetString("round_id", ""))
	if roundID == "" {
		return toolError("invalid_request", "round_id is required"), nil
	}
	resp, err := s.rounds.Get(ctx, roundID, caller)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleTapRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caller, errResp := s.authCaller(request.GetString("token", ""))
	if errResp != nil {
		return errResp, nil
	}
	roundID := strings.TrimSpace(request.GetString("round_id", ""))
	if roundID == "" {
		return toolError("invalid_request", "round_id is required"), nil
	}
	res, err := s.rounds.Tap(ctx, roundID, caller, "mcp")
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{
		"round_id":    roundID,
		"my_score":    res.MyScore,
		"total_score": res.TotalScore,
		"taps":        res.Taps,
	}), nil
}
