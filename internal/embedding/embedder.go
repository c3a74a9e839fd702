// Package embedding provides text embedding generation with multiple backend support.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/logseq-rag/internal/metrics"
)

// Embedder defines the interface for text embedding providers.
type Embedder interface {
	// Embed generates an embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per text, in input order.
	// Either every text is embedded or an error is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model returns the name of the embedding model being used.
	Model() string

	// Dimension returns the embedding vector dimension.
	// Must match the vector column width of the store.
	Dimension() int
}

var (
	// ErrCountMismatch means the provider returned a different number of vectors than texts.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrDimensionMismatch means a vector has the wrong width.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ProviderType identifies the embedding provider.
type ProviderType string

const (
	// ProviderBedrock uses Amazon Titan text embeddings on Bedrock.
	ProviderBedrock ProviderType = "bedrock"

	// ProviderOllama uses a local Ollama server through langchaingo.
	ProviderOllama ProviderType = "ollama"

	// ProviderOpenAI uses the OpenAI embeddings API through langchaingo.
	ProviderOpenAI ProviderType = "openai"
)

// Config holds configuration for creating an Embedder.
type Config struct {
	Provider ProviderType

	// Model is the provider-specific model name. Empty uses the provider default.
	Model string

	// Dimension is the required output dimension. 0 uses the provider default.
	Dimension int

	// Bedrock is the runtime client used by ProviderBedrock.
	Bedrock InvokeModelAPI

	OllamaHost   string
	OpenAIAPIKey string
}

// New creates an Embedder based on the provided configuration.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderBedrock, "":
		if cfg.Bedrock == nil {
			return nil, fmt.Errorf("bedrock provider requires a runtime client")
		}
		return NewBedrockClient(cfg.Bedrock, cfg.Model, cfg.Dimension), nil

	case ProviderOllama:
		return NewOllamaClient(cfg.OllamaHost, cfg.Model, cfg.Dimension)

	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires API key")
		}
		return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.Model, cfg.Dimension)

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// checkBatch validates a provider's batch result against the request.
func checkBatch(vectors [][]float32, want, dimension int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("%w: embedding %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), dimension)
		}
	}
	return nil
}

// instrumented records embedding timings in a metrics collector.
type instrumented struct {
	Embedder
	metrics *metrics.Collector
}

// WithMetrics wraps an Embedder so every call is timed under metrics.OpEmbedding.
func WithMetrics(e Embedder, c *metrics.Collector) Embedder {
	if c == nil {
		return e
	}
	return &instrumented{Embedder: e, metrics: c}
}

func (i *instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	v, err := i.Embedder.Embed(ctx, text)
	i.metrics.Record(metrics.OpEmbedding, time.Since(start), 1, err)
	return v, err
}

func (i *instrumented) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	v, err := i.Embedder.EmbedBatch(ctx, texts)
	i.metrics.Record(metrics.OpEmbedding, time.Since(start), len(texts), err)
	return v, err
}
