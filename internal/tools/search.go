package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// SearchHit is one journal chunk returned by search_journal.
type SearchHit struct {
	CorpusID    string         `json:"corpus_id" jsonschema:"Journal date the chunk belongs to"`
	ChunkIndex  int            `json:"chunk_index" jsonschema:"Position of the chunk within its day"`
	Content     string         `json:"content" jsonschema:"Chunk text"`
	Score       float64        `json:"score" jsonschema:"Cosine similarity to the query, higher is closer"`
	Title       string         `json:"title,omitempty"`
	OriginalURL string         `json:"original_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" jsonschema:"Chunk metadata such as references and anchor_ids"`
}

// SearchOutput is the typed result of search_journal.
type SearchOutput struct {
	Results []SearchHit `json:"results"`
	Count   int         `json:"count"`
}

// NewSearchHandler creates the search_journal tool handler.
func NewSearchHandler(deps *Dependencies) mcp.ToolHandlerFor[models.JournalSearchQuery, SearchOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input models.JournalSearchQuery) (
		*mcp.CallToolResult, SearchOutput, error,
	) {
		if deps == nil || deps.Searcher == nil {
			return nil, SearchOutput{}, ToolError("Search is not configured", "Check the vector store and embedding settings")
		}
		if input.Text == "" {
			return nil, SearchOutput{}, ToolError("Text cannot be empty", "Provide the text to search for")
		}

		results, err := deps.Searcher.Search(ctx, input)
		if err != nil {
			if errors.Is(err, models.ErrInvalidQuery) {
				return nil, SearchOutput{}, ToolError(err.Error(), "Fix the query and retry")
			}
			deps.logger().Error("search failed", "error", err)
			return nil, SearchOutput{}, ToolError("Search failed", "The vector store or embedding provider may be unavailable")
		}

		out := SearchOutput{Results: make([]SearchHit, 0, len(results)), Count: len(results)}
		for _, r := range results {
			meta, err := r.Document.MetadataMap()
			if err != nil {
				deps.logger().Warn("unreadable chunk metadata", "corpus_id", r.Document.CorpusID, "error", err)
			}
			out.Results = append(out.Results, SearchHit{
				CorpusID:    r.Document.CorpusID,
				ChunkIndex:  r.Document.ChunkIndex,
				Content:     r.Document.Content,
				Score:       r.Score,
				Title:       models.Deref(r.Document.Title),
				OriginalURL: models.Deref(r.Document.OriginalURL),
				Metadata:    meta,
			})
		}

		deps.logger().Info("search completed", "query", truncate(input.Text, 30), "results", len(results))
		return nil, out, nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
