// Package retriever turns a natural language question into journal documents.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// Retriever returns the documents relevant to a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, history []llms.ChatMessage) ([]models.Document, error)
}

var (
	_ Retriever = (*DateRange)(nil)
	_ Retriever = (*Vector)(nil)
)

func checkOutputType[T any](c llm.Contextualizer) error {
	if c == nil {
		return fmt.Errorf("contextualizer required")
	}
	want := reflect.TypeFor[T]()
	if got := c.OutputType(); got != want {
		return fmt.Errorf("%w: contextualizer output type must be %s, got %v", llm.ErrTypeMismatch, want.Name(), got)
	}
	return nil
}

// invokeAs runs the contextualizer and asserts its result is a T.
func invokeAs[T any](ctx context.Context, c llm.Contextualizer, query string, history []llms.ChatMessage) (T, error) {
	var zero T
	out, err := c.Invoke(ctx, llm.ContextualizerInput{UserInput: query, ChatHistory: history})
	if err != nil {
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, llm.TypeMismatch(reflect.TypeFor[T]().Name(), out)
	}
	return v, nil
}

// DateRange asks the contextualizer for a journal date range and loads those
// days from disk.
type DateRange struct {
	contextualizer llm.Contextualizer
	loader         loader.Loader
	logger         *slog.Logger
}

// NewDateRange requires a contextualizer producing models.LoaderInput.
func NewDateRange(c llm.Contextualizer, l loader.Loader, logger *slog.Logger) (*DateRange, error) {
	if err := checkOutputType[models.LoaderInput](c); err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("loader required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DateRange{contextualizer: c, loader: l, logger: logger}, nil
}

// BuildLoaderInput converts the question into a loader request.
func (r *DateRange) BuildLoaderInput(ctx context.Context, query string, history []llms.ChatMessage) (models.LoaderInput, error) {
	return invokeAs[models.LoaderInput](ctx, r.contextualizer, query, history)
}

// Retrieve implements Retriever.
func (r *DateRange) Retrieve(ctx context.Context, query string, history []llms.ChatMessage) ([]models.Document, error) {
	in, err := r.BuildLoaderInput(ctx, query, history)
	if err != nil {
		return nil, err
	}
	r.logger.Info("loading journal range", "start", in.JournalStartDate, "end", in.JournalEndDate)
	return r.loader.Load(ctx, in)
}
