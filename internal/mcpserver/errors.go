package mcpserver

import (
	"errors"
	"fmt"

	approunds "tap-arena/internal/app/rounds"
	"tap-arena/internal/gateway"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError("internal_error", "unknown error")
	case errors.Is(err, approunds.ErrInvalidRequest):
		return toolError("invalid_request", err.Error())
	default:
		return toolError(gateway.ErrorCode(err), err.Error())
	}
}
