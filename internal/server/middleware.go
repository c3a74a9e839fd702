package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	maxArgLogLen = 200

	// Tool calls that embed a query or ask the LLM routinely take a second or two.
	slowRequestThreshold = 5 * time.Second
)

// LoggingMiddleware logs every request with its duration. Tool calls are
// logged with their name and raw arguments; calls slower than
// slowRequestThreshold are logged at WARN.
func LoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			elapsed := time.Since(start)

			attrs := append([]any{"method", method, "duration_ms", elapsed.Milliseconds()}, requestAttrs(req)...)
			if tr, ok := result.(*mcp.CallToolResult); ok && tr != nil && tr.IsError {
				attrs = append(attrs, "tool_error", true)
			}

			switch {
			case err != nil:
				logger.Error("request failed", append(attrs, "error", err.Error())...)
			case elapsed > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
			return result, err
		}
	}
}

func requestAttrs(req mcp.Request) []any {
	if req == nil {
		return nil
	}
	if call, ok := req.(*mcp.CallToolRequest); ok && call.Params != nil {
		attrs := []any{"tool", call.Params.Name}
		if len(call.Params.Arguments) > 0 {
			attrs = append(attrs, "args", truncate(string(call.Params.Arguments), maxArgLogLen))
		}
		return attrs
	}
	params := req.GetParams()
	if params == nil {
		return nil
	}
	return []any{"params", truncate(fmt.Sprintf("%+v", params), maxArgLogLen)}
}

// truncate cuts s to maxLen runes, ending in "..." when shortened.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
