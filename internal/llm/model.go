// Package llm provides the language model and query contextualizer built on langchaingo.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/logseq-rag/internal/config"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// Model wraps a langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
}

// NewModel creates an LLM model based on configuration. brt is only used by
// the bedrock provider and may be nil otherwise.
func NewModel(cfg config.Config, brt *bedrockruntime.Client) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderBedrock:
		if brt == nil {
			return nil, fmt.Errorf("bedrock runtime client required")
		}
		model, err = bedrock.New(
			bedrock.WithClient(brt),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewFromLLM(model, cfg.LLMModel), nil
}

// NewFromLLM wraps an existing langchaingo model.
func NewFromLLM(model llms.Model, name string) *Model {
	return &Model{llm: model, modelName: name}
}

// WithMetrics records generation timings and token usage in c.
func (m *Model) WithMetrics(c *metrics.Collector) *Model {
	m.metrics = c
	return m
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Generate generates text for a single human prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	return m.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
}

// GenerateWithSystem generates text with a system prompt.
func (m *Model) GenerateWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	})
}

func (m *Model) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages)
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, 0, 0, err)
		slog.Warn("generation failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if len(response.Choices) == 0 {
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, 0, 0, fmt.Errorf("no response choices"))
		return "", fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out, nil)
	slog.Debug("generation complete", "model", m.modelName, "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)

	return choice.Content, nil
}

// Providers report usage under different keys.
var (
	inputTokenKeys  = []string{"PromptTokens", "InputTokens", "input_tokens", "prompt_tokens"}
	outputTokenKeys = []string{"CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens"}
)

func tokenUsage(info map[string]any) (int64, int64) {
	return firstInt(info, inputTokenKeys), firstInt(info, outputTokenKeys)
}

func firstInt(info map[string]any, keys []string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

// SynthesizeAnswer answers question from the given journal documents.
func (m *Model) SynthesizeAnswer(ctx context.Context, question string, docs []models.Document) (string, error) {
	systemPrompt := `You are a helpful assistant answering questions about the user's personal journal.
Answer based ONLY on the provided journal entries. If they don't contain enough information, say so.
Be concise and mention the dates of the entries you rely on.`

	userPrompt := fmt.Sprintf(`Journal entries:
%s

Question: %s

Answer:`, FormatDocuments(docs), question)

	return m.GenerateWithSystem(ctx, systemPrompt, userPrompt)
}

// FormatDocuments renders documents as dated blocks for a prompt.
func FormatDocuments(docs []models.Document) string {
	var sb strings.Builder
	for i, d := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		date, _ := d.Metadata[models.MetaDateStr].(string)
		if date == "" {
			date, _ = d.Metadata["journal_date"].(string)
		}
		if date != "" {
			fmt.Fprintf(&sb, "[%s]\n", date)
		}
		sb.WriteString(d.PageContent)
	}
	return sb.String()
}
