// Package pgstore persists journal chunks in PostgreSQL with pgvector.
package pgstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/raphaelgruber/logseq-rag/internal/corpus"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// Config holds the connection settings.
type Config struct {
	DSN       string
	Schema    string
	Dimension int
}

// Store reads and writes the journal table.
type Store struct {
	db        *gorm.DB
	schema    string
	dimension int
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// Open connects to PostgreSQL and migrates the journal table.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	s, err := New(ctx, db, cfg.Schema, cfg.Dimension, log)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return s, nil
}

// New wraps an open connection and migrates the journal table.
func New(ctx context.Context, db *gorm.DB, schema string, dimension int, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if dimension <= 0 {
		dimension = models.DefaultEmbeddingDimension
	}
	s := &Store{db: db, schema: schema, dimension: dimension, logger: log}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// gormLogger routes gorm's messages into slog. Only slow queries and errors
// are reported.
func gormLogger(log *slog.Logger) logger.Interface {
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		},
	)
}

// WithMetrics records commit, search and delete timings in c.
func (s *Store) WithMetrics(c *metrics.Collector) *Store {
	s.metrics = c
	return s
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates the schema, the vector extension, the journal table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if s.schema != "" {
		if err := db.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, s.schema)).Error; err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if err := db.AutoMigrate(&models.JournalDocument{}); err != nil {
		return fmt.Errorf("migrate %s: %w", models.JournalTable, err)
	}

	// The struct tag carries the Titan v2 width; other providers need the column resized.
	// For vector columns atttypmod is the dimension.
	var current int
	err := db.Raw(`SELECT atttypmod FROM pg_attribute WHERE attrelid = ?::regclass AND attname = 'embedding'`,
		models.JournalTable).Scan(&current).Error
	if err != nil {
		return fmt.Errorf("read embedding dimension: %w", err)
	}
	if current != s.dimension {
		s.logger.Warn("resizing embedding column", "from", current, "to", s.dimension)
		sql := fmt.Sprintf(`ALTER TABLE %s ALTER COLUMN embedding TYPE vector(%d)`, models.JournalTable, s.dimension)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("resize embedding column: %w", err)
		}
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops)`, models.JournalTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_metadata_idx ON %[1]s USING gin (metadata jsonb_path_ops)`, models.JournalTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %[1]s_date_idx ON %[1]s ((metadata->>'date_str'))`, models.JournalTable),
	}
	for _, sql := range indexes {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	s.logger.Debug("journal table ready", "schema", s.schema, "table", models.JournalTable, "dimension", s.dimension)
	return nil
}

// NewSession starts a batch writer.
func (s *Store) NewSession() corpus.Session {
	return &Session{db: s.db, logger: s.logger, metrics: s.metrics}
}

// NewReplaceSession starts a batch writer whose Commit swaps the chunks of
// corpusID for the queued ones in one transaction.
func (s *Store) NewReplaceSession(corpusID string) corpus.Session {
	return &Session{db: s.db, logger: s.logger, metrics: s.metrics, replace: corpusID}
}

// DeleteCorpus removes every chunk of a corpus and returns how many were deleted.
func (s *Store) DeleteCorpus(ctx context.Context, corpusID string) (int64, error) {
	start := time.Now()
	res := s.db.WithContext(ctx).
		Where("corpus_id = ?", corpusID).
		Delete(&models.JournalDocument{})
	s.metrics.Record(metrics.OpDBDelete, time.Since(start), int(res.RowsAffected), res.Error)
	if res.Error != nil {
		return 0, fmt.Errorf("delete corpus %s: %w", corpusID, res.Error)
	}
	s.logger.Debug("deleted corpus", "corpus_id", corpusID, "rows", res.RowsAffected)
	return res.RowsAffected, nil
}

// Documents returns a corpus's chunks in chunk order.
func (s *Store) Documents(ctx context.Context, corpusID string) ([]models.JournalDocument, error) {
	var docs []models.JournalDocument
	err := s.db.WithContext(ctx).
		Where("corpus_id = ?", corpusID).
		Order("chunk_index").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list corpus %s: %w", corpusID, err)
	}
	return docs, nil
}

// Close closes the connection pool.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
