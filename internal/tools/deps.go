// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
	"github.com/raphaelgruber/logseq-rag/internal/service"
)

// Searcher runs a structured journal search. *retriever.Vector implements it.
type Searcher interface {
	Search(ctx context.Context, q models.JournalSearchQuery) ([]models.SearchResult, error)
}

// Asker answers a question from the journal. *service.AskService implements it.
type Asker interface {
	Ask(ctx context.Context, question string, history []llms.ChatMessage) (*service.AskResult, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture. Nil services make their
// tools report that the feature is not configured.
type Dependencies struct {
	Searcher Searcher
	Asker    Asker
	Loader   loader.Loader
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d == nil || d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
