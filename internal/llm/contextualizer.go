package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// DefaultContextualizerPrompt rephrases a follow-up into a standalone question.
const DefaultContextualizerPrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.chat_history}}
Follow Up Input: {{.user_input}}
Standalone question:`

const formatInstructions = "The output should be formatted as a JSON instance that conforms to the JSON schema below. " +
	"Respond with the JSON instance only.\n\nHere is the output schema:\n```\n%s\n```"

// ContextualizerInput is the natural language request plus prior conversation turns.
type ContextualizerInput struct {
	UserInput   string
	ChatHistory []llms.ChatMessage
}

// Contextualizer turns free text and history into a query a retriever can run.
type Contextualizer interface {
	Invoke(ctx context.Context, input ContextualizerInput) (any, error)
	// OutputType is the dynamic type of values returned by Invoke.
	OutputType() reflect.Type
}

// Generator produces text for a prompt. *Model implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMContextualizer renders a prompt, calls the model and optionally decodes
// its reply into a structured type.
type LLMContextualizer struct {
	gen          Generator
	prompt       prompts.PromptTemplate
	instructions string
	outputType   reflect.Type
	decode       func(reply string) (any, error)
	logger       *slog.Logger
}

// Compile-time check that LLMContextualizer implements Contextualizer.
var _ Contextualizer = (*LLMContextualizer)(nil)

// Option configures an LLMContextualizer.
type Option func(*LLMContextualizer) error

// WithPrompt replaces the default prompt. The template uses Go template syntax
// with the variables .chat_history and .user_input.
func WithPrompt(template string) Option {
	return func(c *LLMContextualizer) error {
		c.prompt = newPrompt(template)
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *LLMContextualizer) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithOutputSchema makes Invoke return a T decoded from the model's JSON reply.
// A nil schema is inferred from T.
func WithOutputSchema[T any](schema *jsonschema.Schema) Option {
	return func(c *LLMContextualizer) error {
		if schema == nil {
			s, err := jsonschema.For[T](nil)
			if err != nil {
				return fmt.Errorf("infer output schema: %w", err)
			}
			schema = s
		}
		resolved, err := schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolve output schema: %w", err)
		}
		raw, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output schema: %w", err)
		}

		c.instructions = fmt.Sprintf(formatInstructions, raw)
		c.outputType = reflect.TypeFor[T]()
		c.decode = func(reply string) (any, error) {
			body := extractJSON(reply)

			var instance any
			if err := json.Unmarshal([]byte(body), &instance); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
			}
			if err := resolved.Validate(instance); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
			}

			var out T
			if err := json.Unmarshal([]byte(body), &out); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
			}
			return out, nil
		}
		return nil
	}
}

// NewContextualizer creates a contextualizer that returns the model's trimmed
// reply unless an output schema is configured.
func NewContextualizer(gen Generator, opts ...Option) (*LLMContextualizer, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator required")
	}
	c := &LLMContextualizer{
		gen:        gen,
		prompt:     newPrompt(DefaultContextualizerPrompt),
		outputType: reflect.TypeFor[string](),
		decode: func(reply string) (any, error) {
			return strings.TrimSpace(reply), nil
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newPrompt(template string) prompts.PromptTemplate {
	return prompts.PromptTemplate{
		Template:       template,
		TemplateFormat: prompts.TemplateFormatGoTemplate,
		InputVariables: []string{"chat_history", "user_input"},
	}
}

// OutputType implements Contextualizer.
func (c *LLMContextualizer) OutputType() reflect.Type {
	return c.outputType
}

// Render returns the full prompt sent to the model for input.
func (c *LLMContextualizer) Render(input ContextualizerInput) (string, error) {
	history, err := llms.GetBufferString(input.ChatHistory, "Human", "AI")
	if err != nil {
		return "", fmt.Errorf("format chat history: %w", err)
	}
	prompt, err := c.prompt.Format(map[string]any{
		"chat_history": history,
		"user_input":   input.UserInput,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	if c.instructions != "" {
		prompt += "\n\n" + c.instructions
	}
	return prompt, nil
}

// Invoke implements Contextualizer.
func (c *LLMContextualizer) Invoke(ctx context.Context, input ContextualizerInput) (any, error) {
	prompt, err := c.Render(input)
	if err != nil {
		return nil, err
	}

	reply, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("contextualize: %w", err)
	}
	c.logger.Debug("contextualizer reply", "output_type", c.outputType.String(), "reply", reply)

	return c.decode(reply)
}

// extractJSON strips markdown code fences and any prose around a JSON object.
func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}
