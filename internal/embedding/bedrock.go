package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultBedrockModel is Amazon Titan Text Embeddings V2.
	DefaultBedrockModel = "amazon.titan-embed-text-v2:0"

	// DefaultBedrockDimension is Titan V2's largest output size.
	DefaultBedrockDimension = 1024
)

// InvokeModelAPI is the subset of *bedrockruntime.Client used for embeddings.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient implements Embedder with Titan text embeddings.
type BedrockClient struct {
	api       InvokeModelAPI
	model     string
	dimension int
}

// Compile-time check that BedrockClient implements Embedder.
var _ Embedder = (*BedrockClient)(nil)

// NewBedrockClient creates a Titan embedder on top of a Bedrock runtime client.
// If model is empty, uses DefaultBedrockModel; if dimension is 0, uses DefaultBedrockDimension.
func NewBedrockClient(api InvokeModelAPI, model string, dimension int) *BedrockClient {
	if model == "" {
		model = DefaultBedrockModel
	}
	if dimension == 0 {
		dimension = DefaultBedrockDimension
	}
	return &BedrockClient{api: api, model: model, dimension: dimension}
}

type titanRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions"`
	Normalize  bool   `json:"normalize"`
}

type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// Embed generates an embedding vector for the given text.
func (c *BedrockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(titanRequest{
		InputText:  text,
		Dimensions: c.dimension,
		Normalize:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", c.model, err)
	}

	var resp titanResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Embedding) != c.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(resp.Embedding), c.dimension)
	}

	slog.Debug("bedrock embedding complete", "model", c.model, "tokens", resp.InputTextTokenCount)
	return resp.Embedding, nil
}

// EmbedBatch embeds each text in turn; Titan takes one input per request.
// The first failure aborts the batch and nothing is returned.
func (c *BedrockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		vectors = append(vectors, v)
	}

	if err := checkBatch(vectors, len(texts), c.dimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Model returns the configured embedding model name.
func (c *BedrockClient) Model() string {
	return c.model
}

// Dimension returns the expected embedding dimension.
func (c *BedrockClient) Dimension() int {
	return c.dimension
}
