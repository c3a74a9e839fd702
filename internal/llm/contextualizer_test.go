package llm

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/logseq-rag/internal/models"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}

func TestContextualizerReturnsString(t *testing.T) {
	gen := &fakeGenerator{reply: "  What did I do on my birthday?\n"}
	c, err := NewContextualizer(gen)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[string](), c.OutputType())

	out, err := c.Invoke(context.Background(), ContextualizerInput{
		UserInput: "and on my birthday?",
		ChatHistory: []llms.ChatMessage{
			llms.HumanChatMessage{Content: "What did I do in March?"},
			llms.AIChatMessage{Content: "You went running."},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "What did I do on my birthday?", out)

	assert.Contains(t, gen.prompt, "Human: What did I do in March?\nAI: You went running.")
	assert.Contains(t, gen.prompt, "Follow Up Input: and on my birthday?")
	assert.NotContains(t, gen.prompt, "JSON schema")
}

func TestContextualizerStructuredOutput(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"bare json", `{"journal_start_date": "2025-03-01", "journal_end_date": "2025-03-31"}`},
		{"fenced", "```json\n{\"journal_start_date\": \"2025-03-01\", \"journal_end_date\": \"2025-03-31\"}\n```"},
		{"with prose", "Here you go:\n{\"journal_start_date\": \"2025-03-01\", \"journal_end_date\": \"2025-03-31\"}\nThanks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply}
			c, err := NewContextualizer(gen, WithOutputSchema[models.LoaderInput](nil))
			require.NoError(t, err)
			assert.Equal(t, reflect.TypeFor[models.LoaderInput](), c.OutputType())

			out, err := c.Invoke(context.Background(), ContextualizerInput{UserInput: "what happened in March 2025?"})
			require.NoError(t, err)

			in, ok := out.(models.LoaderInput)
			require.True(t, ok, "got %T", out)
			assert.Equal(t, "2025-03-01", in.JournalStartDate)
			assert.Equal(t, "2025-03-31", in.JournalEndDate)

			assert.Contains(t, gen.prompt, "JSON schema")
			assert.Contains(t, gen.prompt, "journal_start_date")
		})
	}
}

func TestContextualizerSearchQuerySchema(t *testing.T) {
	schema, err := models.SearchQuerySchema()
	require.NoError(t, err)

	gen := &fakeGenerator{reply: `{"text": "running", "keywords": ["run"], "metadata_filters": {"references": ["health"]}, "limit": 5}`}
	c, err := NewContextualizer(gen, WithOutputSchema[models.JournalSearchQuery](schema))
	require.NoError(t, err)

	out, err := c.Invoke(context.Background(), ContextualizerInput{UserInput: "when did I go running?"})
	require.NoError(t, err)

	q, ok := out.(models.JournalSearchQuery)
	require.True(t, ok)
	assert.Equal(t, "running", q.Text)
	assert.Equal(t, []string{"run"}, q.Keywords)
	assert.Equal(t, 5, q.Limit)
	assert.Contains(t, gen.prompt, "anchor_ids")
}

func TestContextualizerInvalidOutput(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "March 2025"},
		{"wrong field type", `{"journal_start_date": 20250301, "journal_end_date": "2025-03-31"}`},
		{"missing required", `{"journal_start_date": "2025-03-01"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContextualizer(&fakeGenerator{reply: tt.reply}, WithOutputSchema[models.LoaderInput](nil))
			require.NoError(t, err)

			_, err = c.Invoke(context.Background(), ContextualizerInput{UserInput: "March"})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOutput)
		})
	}
}

func TestContextualizerGeneratorError(t *testing.T) {
	boom := errors.New("model unavailable")
	c, err := NewContextualizer(&fakeGenerator{err: boom})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), ContextualizerInput{UserInput: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestContextualizerCustomPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	c, err := NewContextualizer(gen, WithPrompt("Q: {{.user_input}}"))
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), ContextualizerInput{UserInput: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Q: hello", gen.prompt)
}

func TestNewContextualizerRequiresGenerator(t *testing.T) {
	_, err := NewContextualizer(nil)
	assert.Error(t, err)
}

func TestTypeMismatch(t *testing.T) {
	err := TypeMismatch("LoaderInput", "a string")
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, "contextualizer output type mismatch: expected LoaderInput but got string", err.Error())
}
