package pgstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

const insertBatchSize = 100

// Session buffers documents until Commit writes them in one transaction.
type Session struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.Collector

	// replace names a corpus whose existing chunks Commit deletes in the
	// same transaction as the insert.
	replace string

	mu      sync.Mutex
	pending []*models.JournalDocument
}

// AddAll queues docs for the next Commit.
func (s *Session) AddAll(docs []*models.JournalDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, docs...)
}

// Pending returns the number of queued documents.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Commit inserts all queued documents atomically. A replace session first
// deletes the corpus's old chunks inside the same transaction. The queue is
// emptied whether or not the transaction succeeds; a failed batch is rolled
// back, not retried.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	docs := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(docs) == 0 {
		return nil
	}

	start := time.Now()
	var replaced int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.replace != "" {
			res := tx.Where("corpus_id = ?", s.replace).Delete(&models.JournalDocument{})
			if res.Error != nil {
				return fmt.Errorf("delete corpus %s: %w", s.replace, res.Error)
			}
			replaced = res.RowsAffected
		}
		return tx.CreateInBatches(docs, insertBatchSize).Error
	})
	s.metrics.Record(metrics.OpDBCommit, time.Since(start), len(docs), err)
	if err != nil {
		return fmt.Errorf("commit %d documents: %w", len(docs), err)
	}

	s.logger.Debug("committed documents", "count", len(docs), "replaced", replaced,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Rollback discards queued documents.
func (s *Session) Rollback() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}
