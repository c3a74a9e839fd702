package tools

import (
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolError creates a tool error with optional recovery hint, formatted as
// "{msg}. {hint}". The SDK returns it as a result with IsError=true so the
// LLM can see the error and self-correct.
func ToolError(msg, hint string) error {
	return errors.New(withHint(msg, hint))
}

func withHint(msg, hint string) string {
	if hint == "" {
		return msg
	}
	return msg + ". " + hint
}

// TextResult creates a success result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
