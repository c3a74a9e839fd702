package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ping",
		Description: "Test tool - responds with pong or echoes input",
	}, NewPingHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_journal",
		Description: "Vector search over uploaded Logseq journal chunks. Combine semantic text with " +
			"keywords, metadata filters (references, anchor_ids, date_str) and a date range",
	}, NewSearchHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "load_journal",
		Description: "Read Logseq journal days for a date range straight from disk",
	}, NewLoadHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_journal",
		Description: "Answer a natural language question from the Logseq journal, citing the entries used",
	}, NewAskHandler(deps))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "stats",
		Description: "Timing and token usage statistics since the server started",
	}, NewStatsHandler(deps))
}
