package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// MetaScore is added to the metadata of documents returned by Vector.Retrieve.
const MetaScore = "score"

// VectorStore runs similarity searches over stored chunks.
type VectorStore interface {
	Search(ctx context.Context, embedding []float32, q models.JournalSearchQuery) ([]models.SearchResult, error)
}

// QueryEmbedder embeds search text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Vector asks the contextualizer for a structured search query and runs it
// against a vector store.
type Vector struct {
	contextualizer llm.Contextualizer
	embedder       QueryEmbedder
	store          VectorStore
	logger         *slog.Logger
}

// NewVector requires a contextualizer producing models.JournalSearchQuery.
// A nil contextualizer is allowed for callers that only use Search.
func NewVector(c llm.Contextualizer, embedder QueryEmbedder, store VectorStore, logger *slog.Logger) (*Vector, error) {
	if c != nil {
		if err := checkOutputType[models.JournalSearchQuery](c); err != nil {
			return nil, err
		}
	}
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("embedder and store required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Vector{contextualizer: c, embedder: embedder, store: store, logger: logger}, nil
}

// BuildSearchQuery converts the question into a structured search. An empty
// text falls back to the question itself.
func (r *Vector) BuildSearchQuery(ctx context.Context, query string, history []llms.ChatMessage) (models.JournalSearchQuery, error) {
	if r.contextualizer == nil {
		return models.JournalSearchQuery{}, fmt.Errorf("contextualizer required")
	}
	q, err := invokeAs[models.JournalSearchQuery](ctx, r.contextualizer, query, history)
	if err != nil {
		return q, err
	}
	if strings.TrimSpace(q.Text) == "" {
		q.Text = query
	}
	r.logger.Info("contextualized search query", "text", q.Text, "keywords", q.Keywords,
		"filters", q.MetadataFilters, "date_range", q.DateRange, "limit", q.Limit)
	return q, nil
}

// Search embeds the query text and searches the store.
func (r *Vector) Search(ctx context.Context, q models.JournalSearchQuery) ([]models.SearchResult, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", models.ErrInvalidQuery)
	}
	emb, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.store.Search(ctx, emb, q)
	if err != nil {
		return nil, err
	}
	r.logger.Info("retrieved documents", "count", len(results))
	return results, nil
}

// Retrieve implements Retriever.
func (r *Vector) Retrieve(ctx context.Context, query string, history []llms.ChatMessage) ([]models.Document, error) {
	q, err := r.BuildSearchQuery(ctx, query, history)
	if err != nil {
		return nil, err
	}
	results, err := r.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return Documents(results), nil
}

// Documents flattens search results, recording each score in the metadata.
func Documents(results []models.SearchResult) []models.Document {
	docs := make([]models.Document, len(results))
	for i, res := range results {
		d := res.Document.ToDocument()
		d.Metadata[MetaScore] = res.Score
		docs[i] = d
	}
	return docs
}
