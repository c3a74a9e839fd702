package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// LoadOutput is the typed result of load_journal.
type LoadOutput struct {
	Documents []models.Document `json:"documents"`
	Count     int               `json:"count"`
}

// NewLoadHandler creates the load_journal tool handler.
func NewLoadHandler(deps *Dependencies) mcp.ToolHandlerFor[models.LoaderInput, LoadOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input models.LoaderInput) (
		*mcp.CallToolResult, LoadOutput, error,
	) {
		if deps == nil || deps.Loader == nil {
			return nil, LoadOutput{}, ToolError("Journal loading is not configured", "Set LOGSEQ_JOURNAL_PATH")
		}

		docs, err := deps.Loader.Load(ctx, input)
		if err != nil {
			if errors.Is(err, loader.ErrInvalidDate) || errors.Is(err, loader.ErrInvalidRange) {
				return nil, LoadOutput{}, ToolError(err.Error(), "Use YYYY-MM-DD dates with start <= end")
			}
			deps.logger().Error("load journal failed", "error", err)
			return nil, LoadOutput{}, ToolError("Failed to read journal files", "")
		}
		if docs == nil {
			docs = []models.Document{}
		}
		return nil, LoadOutput{Documents: docs, Count: len(docs)}, nil
	}
}

// ChatTurn is one prior message of the conversation.
type ChatTurn struct {
	Role    string `json:"role" jsonschema:"Either human or ai"`
	Content string `json:"content"`
}

// AskInput defines the input schema for ask_journal.
type AskInput struct {
	Question string     `json:"question" jsonschema:"Natural language question about the journal"`
	History  []ChatTurn `json:"history,omitempty" jsonschema:"Earlier turns, oldest first, used to resolve follow-up questions"`
}

// Source is a journal entry an answer was drawn from.
type Source struct {
	Date    string `json:"date,omitempty"`
	Snippet string `json:"snippet"`
}

// AskOutput is the typed result of ask_journal.
type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// NewAskHandler creates the ask_journal tool handler.
func NewAskHandler(deps *Dependencies) mcp.ToolHandlerFor[AskInput, AskOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (
		*mcp.CallToolResult, AskOutput, error,
	) {
		if deps == nil || deps.Asker == nil {
			return nil, AskOutput{}, ToolError("Ask is not configured", "Check the LLM provider settings")
		}
		if input.Question == "" {
			return nil, AskOutput{}, ToolError("Question cannot be empty", "")
		}

		res, err := deps.Asker.Ask(ctx, input.Question, chatHistory(input.History))
		if err != nil {
			deps.logger().Error("ask failed", "error", err)
			if llm.IsFatalAPIError(err) {
				return nil, AskOutput{}, ToolError("LLM provider rejected the request", "Check credentials and quota")
			}
			return nil, AskOutput{}, ToolError("Failed to answer question", err.Error())
		}

		out := AskOutput{Answer: res.Answer, Sources: make([]Source, 0, len(res.Documents))}
		for _, d := range res.Documents {
			date, _ := d.Metadata[models.MetaDateStr].(string)
			if date == "" {
				date, _ = d.Metadata[loader.MetaJournalDate].(string)
			}
			out.Sources = append(out.Sources, Source{Date: date, Snippet: truncate(d.PageContent, 160)})
		}
		return nil, out, nil
	}
}

func chatHistory(turns []ChatTurn) []llms.ChatMessage {
	if len(turns) == 0 {
		return nil
	}
	msgs := make([]llms.ChatMessage, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "ai", "assistant":
			msgs = append(msgs, llms.AIChatMessage{Content: t.Content})
		default:
			msgs = append(msgs, llms.HumanChatMessage{Content: t.Content})
		}
	}
	return msgs
}

// StatsInput takes no arguments.
type StatsInput struct{}

// NewStatsHandler creates the stats tool handler.
func NewStatsHandler(deps *Dependencies) mcp.ToolHandlerFor[StatsInput, metrics.Snapshot] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
		*mcp.CallToolResult, metrics.Snapshot, error,
	) {
		var c *metrics.Collector
		if deps != nil {
			c = deps.Metrics
		}
		return nil, c.Snapshot(), nil
	}
}
