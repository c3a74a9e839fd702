// Package service wires journal loading, ingestion and retrieval into the
// operations exposed by the CLI and the MCP server.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/raphaelgruber/logseq-rag/internal/config"
	"github.com/raphaelgruber/logseq-rag/internal/corpus"
	"github.com/raphaelgruber/logseq-rag/internal/db"
	"github.com/raphaelgruber/logseq-rag/internal/embedding"
	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
	"github.com/raphaelgruber/logseq-rag/internal/pgstore"
)

// Store is a journal chunk store. Both the pgvector and SurrealDB backends implement it.
type Store interface {
	NewSession() corpus.Session
	// NewReplaceSession returns a session whose Commit deletes the corpus's
	// existing chunks and inserts the queued ones in a single transaction.
	NewReplaceSession(corpusID string) corpus.Session
	Search(ctx context.Context, embedding []float32, q models.JournalSearchQuery) ([]models.SearchResult, error)
	DeleteCorpus(ctx context.Context, corpusID string) (int64, error)
	Close(ctx context.Context) error
}

var (
	_ Store = (*pgstore.Store)(nil)
	_ Store = (*db.Client)(nil)
)

// OpenStore connects to the configured backend and prepares its schema.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger, m *metrics.Collector) (Store, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		s, err := pgstore.Open(ctx, pgstore.Config{
			DSN:       cfg.Postgres.DSN(),
			Schema:    cfg.Postgres.Schema,
			Dimension: cfg.EmbedDimension,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open pgvector store: %w", err)
		}
		return s.WithMetrics(m), nil

	case config.BackendSurrealDB:
		c, err := db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to surrealdb: %w", err)
		}
		if err := c.InitSchema(ctx, cfg.EmbedDimension); err != nil {
			_ = c.Close(ctx)
			return nil, err
		}
		return c.WithMetrics(m), nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// NewEmbedder builds the configured embedding provider, wrapped with metrics.
func NewEmbedder(ctx context.Context, cfg config.Config, m *metrics.Collector) (embedding.Embedder, error) {
	ecfg := embedding.Config{
		Provider:     embedding.ProviderType(cfg.EmbedProvider),
		Model:        cfg.EmbedModel,
		Dimension:    cfg.EmbedDimension,
		OllamaHost:   cfg.OllamaHost,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
	}
	if cfg.EmbedProvider == config.ProviderBedrock {
		brt, err := cfg.NewBedrockRuntime(ctx)
		if err != nil {
			return nil, err
		}
		ecfg.Bedrock = brt
	}

	e, err := embedding.New(ecfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedding.WithMetrics(e, m), nil
}

// NewModel builds the configured language model, wrapped with metrics.
func NewModel(ctx context.Context, cfg config.Config, m *metrics.Collector) (*llm.Model, error) {
	var brt *bedrockruntime.Client
	if cfg.LLMProvider == config.ProviderBedrock {
		var err error
		brt, err = cfg.NewBedrockRuntime(ctx)
		if err != nil {
			return nil, err
		}
	}
	model, err := llm.NewModel(cfg, brt)
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	return model.WithMetrics(m), nil
}
