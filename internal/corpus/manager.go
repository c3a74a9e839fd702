// Package corpus ingests one journal corpus at a time: split, extract
// metadata, embed and persist.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/raphaelgruber/logseq-rag/internal/models"
	"github.com/raphaelgruber/logseq-rag/internal/parser"
)

// ErrEmbeddingCountMismatch is returned when the provider hands back a
// different number of vectors than chunks it was given.
var ErrEmbeddingCountMismatch = errors.New("embedding count mismatch")

// ErrInvalidCorpusID is returned for a corpus id that is empty or wider than
// the corpus_id column.
var ErrInvalidCorpusID = errors.New("invalid corpus id")

func validateCorpusID(corpusID string) error {
	if corpusID == "" || utf8.RuneCountInString(corpusID) > models.CorpusIDMaxLen {
		return fmt.Errorf("%w: %q must be 1-%d characters", ErrInvalidCorpusID, corpusID, models.CorpusIDMaxLen)
	}
	return nil
}

// Session is a transactional batch writer.
// Records passed to AddAll become visible only after Commit succeeds.
type Session interface {
	AddAll(docs []*models.JournalDocument)
	Commit(ctx context.Context) error
}

// BatchEmbedder turns texts into vectors, one per text, in order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Manager ingests journal corpora into a Session.
// Concurrent inserts of the same corpus id are not coordinated.
type Manager struct {
	session  Session
	embedder BatchEmbedder
	logger   *slog.Logger
}

// NewManager creates a corpus manager. A nil logger uses slog.Default().
func NewManager(session Session, embedder BatchEmbedder, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		session:  session,
		embedder: embedder,
		logger:   logger,
	}
}

// InsertCorpus splits content into chunks, embeds them in one batch and
// persists them in a single commit. It returns the number of chunks stored.
//
// corpusID may be empty, in which case the id is the corpus metadata's
// date_str, or a content hash when that is missing.
func (m *Manager) InsertCorpus(ctx context.Context, content string, corpusMetadata models.CorpusMetadata, props *models.OptionalProps, corpusID string) (int, error) {
	if corpusID == "" {
		corpusID = DeriveCorpusID(content, corpusMetadata)
	}
	if err := validateCorpusID(corpusID); err != nil {
		return 0, err
	}

	chunks := parser.Split(content)
	if len(chunks) == 0 {
		m.logger.Debug("corpus has no chunks, nothing to insert", "corpus_id", corpusID)
		return 0, nil
	}

	embeddings, err := m.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed corpus %s: %w", corpusID, err)
	}
	if len(embeddings) != len(chunks) {
		return 0, fmt.Errorf("%w: corpus %s has %d chunks, got %d embeddings",
			ErrEmbeddingCountMismatch, corpusID, len(chunks), len(embeddings))
	}

	return m.InsertDocuments(ctx, corpusID, chunks, embeddings, corpusMetadata, props)
}

// InsertDocuments persists already-split chunks with their embeddings.
// chunks and embeddings must have the same length; a mismatch is a bug in
// the caller and panics.
func (m *Manager) InsertDocuments(ctx context.Context, corpusID string, chunks []string, embeddings [][]float32, corpusMetadata models.CorpusMetadata, props *models.OptionalProps) (int, error) {
	if len(chunks) != len(embeddings) {
		panic(fmt.Sprintf("corpus: %d chunks but %d embeddings", len(chunks), len(embeddings)))
	}
	if err := validateCorpusID(corpusID); err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]*models.JournalDocument, 0, len(chunks))
	for i, chunk := range chunks {
		metadata := models.MergeMetadata(corpusMetadata, parser.ExtractChunkMetadata(chunk))
		doc, err := models.NewJournalDocument(corpusID, i, chunk, embeddings[i], metadata, props)
		if err != nil {
			return 0, fmt.Errorf("assemble chunk %d of %s: %w", i, corpusID, err)
		}
		docs = append(docs, doc)
	}

	m.session.AddAll(docs)
	if err := m.session.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit corpus %s: %w", corpusID, err)
	}

	m.logger.Info("corpus inserted", "corpus_id", corpusID, "chunks", len(docs))
	return len(docs), nil
}

// DeriveCorpusID picks an id for a corpus inserted without one.
func DeriveCorpusID(content string, corpusMetadata models.CorpusMetadata) string {
	if date, ok := corpusMetadata[models.MetaDateStr].(string); ok && date != "" {
		return date
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:models.CorpusIDMaxLen]
}
