package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/models"
	"github.com/raphaelgruber/logseq-rag/internal/retriever"
)

// NoEntriesAnswer is returned when retrieval finds nothing to answer from.
const NoEntriesAnswer = "No relevant journal entries found for this question."

const dateRangePrompt = `You select which days of a personal Logseq journal are needed to answer a question.
Today is %s. Resolve relative dates ("last week", "yesterday", "in March") against today.
If the question names no time, use the last 7 days.

Chat History:
{{.chat_history}}
Question: {{.user_input}}
`

const searchQueryPrompt = `You turn a question about a personal Logseq journal into a structured search query.
Today is %s. Put the semantic part of the question in "text". Use "keywords" only for exact words
that must appear, "metadata_filters.references" for #tags and "date_range" when the question names a time.

Chat History:
{{.chat_history}}
Question: {{.user_input}}
`

// NewDateRangeRetriever builds a retriever that asks gen for a LoaderInput
// and loads those days with l.
func NewDateRangeRetriever(gen llm.Generator, l loader.Loader, logger *slog.Logger) (*retriever.DateRange, error) {
	c, err := llm.NewContextualizer(gen,
		llm.WithPrompt(fmt.Sprintf(dateRangePrompt, today())),
		llm.WithOutputSchema[models.LoaderInput](nil),
		llm.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("date range contextualizer: %w", err)
	}
	return retriever.NewDateRange(c, l, logger)
}

// NewVectorRetriever builds a retriever that asks gen for a JournalSearchQuery
// and runs it against store. A nil gen gives a search-only retriever.
func NewVectorRetriever(gen llm.Generator, embedder retriever.QueryEmbedder, store retriever.VectorStore, logger *slog.Logger) (*retriever.Vector, error) {
	if gen == nil {
		return retriever.NewVector(nil, embedder, store, logger)
	}
	schema, err := models.SearchQuerySchema()
	if err != nil {
		return nil, err
	}
	c, err := llm.NewContextualizer(gen,
		llm.WithPrompt(fmt.Sprintf(searchQueryPrompt, today())),
		llm.WithOutputSchema[models.JournalSearchQuery](schema),
		llm.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("search query contextualizer: %w", err)
	}
	return retriever.NewVector(c, embedder, store, logger)
}

func today() string {
	return time.Now().Format(models.DateLayout)
}

// Answerer writes an answer grounded in journal documents. *llm.Model implements it.
type Answerer interface {
	SynthesizeAnswer(ctx context.Context, question string, docs []models.Document) (string, error)
}

// AskResult is an answer with the documents it was drawn from.
type AskResult struct {
	Answer    string            `json:"answer"`
	Documents []models.Document `json:"documents"`
}

// AskService answers questions about the journal.
type AskService struct {
	retriever retriever.Retriever
	answerer  Answerer
	logger    *slog.Logger
}

// NewAskService creates an ask service. A nil logger uses slog.Default().
func NewAskService(r retriever.Retriever, a Answerer, logger *slog.Logger) *AskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AskService{retriever: r, answerer: a, logger: logger}
}

// Ask retrieves documents for question and synthesizes an answer from them.
func (s *AskService) Ask(ctx context.Context, question string, history []llms.ChatMessage) (*AskResult, error) {
	docs, err := s.retriever.Retrieve(ctx, question, history)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(docs) == 0 {
		s.logger.Info("no journal entries retrieved", "question", question)
		return &AskResult{Answer: NoEntriesAnswer, Documents: docs}, nil
	}

	answer, err := s.answerer.SynthesizeAnswer(ctx, question, docs)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}
	return &AskResult{Answer: answer, Documents: docs}, nil
}
