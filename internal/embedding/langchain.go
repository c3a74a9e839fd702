package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	// DefaultOllamaModel is the default local embedding model.
	DefaultOllamaModel = "mxbai-embed-large"

	// DefaultOllamaDimension is the output size of mxbai-embed-large.
	DefaultOllamaDimension = 1024

	// DefaultOpenAIModel is the default OpenAI embedding model.
	DefaultOpenAIModel = "text-embedding-3-small"

	// DefaultOpenAIDimension is the output size of text-embedding-3-small.
	DefaultOpenAIDimension = 1536
)

// LangchainClient wraps a langchaingo embedder with count and dimension validation.
type LangchainClient struct {
	model     embeddings.Embedder
	modelName string
	dimension int
}

// Compile-time check that LangchainClient implements Embedder.
var _ Embedder = (*LangchainClient)(nil)

// NewOllamaClient creates an embedder backed by an Ollama server.
func NewOllamaClient(host, model string, dimension int) (*LangchainClient, error) {
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension == 0 {
		dimension = DefaultOllamaDimension
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if host != "" {
		opts = append(opts, ollama.WithServerURL(host))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return &LangchainClient{model: emb, modelName: model, dimension: dimension}, nil
}

// NewOpenAIClient creates an embedder backed by the OpenAI API.
func NewOpenAIClient(apiKey, model string, dimension int) (*LangchainClient, error) {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if dimension == 0 {
		dimension = DefaultOpenAIDimension
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}
	return &LangchainClient{model: emb, modelName: model, dimension: dimension}, nil
}

// Embed generates an embedding vector for text.
func (c *LangchainClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (c *LangchainClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vectors, err := c.model.EmbedDocuments(ctx, texts)
	duration := time.Since(start)
	if err != nil {
		slog.Warn("embedding failed", "model", c.modelName, "texts", len(texts), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	if err := checkBatch(vectors, len(texts), c.dimension); err != nil {
		return nil, err
	}

	slog.Debug("embedding complete", "model", c.modelName, "texts", len(texts), "duration_ms", duration.Milliseconds())
	return vectors, nil
}

// Model returns the embedding model name.
func (c *LangchainClient) Model() string {
	return c.modelName
}

// Dimension returns the expected embedding dimension.
func (c *LangchainClient) Dimension() int {
	return c.dimension
}
