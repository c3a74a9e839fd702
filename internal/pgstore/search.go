package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

type scoredRow struct {
	models.JournalDocument
	Distance float64
}

// Search returns the chunks nearest to embedding by cosine distance, filtered
// by the query's keywords, metadata filters and date range.
func (s *Store) Search(ctx context.Context, embedding []float32, q models.JournalSearchQuery) ([]models.SearchResult, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("search: empty query embedding")
	}

	start := time.Now()
	var rows []scoredRow
	tx := s.db.WithContext(ctx).
		Model(&models.JournalDocument{}).
		Select("*, embedding <=> ? AS distance", pgvector.NewVector(embedding))
	tx, err := applyFilters(tx, q)
	if err != nil {
		return nil, err
	}
	err = tx.Order("distance").Limit(q.Limit).Scan(&rows).Error
	s.metrics.Record(metrics.OpDBSearch, time.Since(start), len(rows), err)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	results := make([]models.SearchResult, len(rows))
	for i, r := range rows {
		results[i] = models.SearchResult{Document: r.JournalDocument, Score: 1 - r.Distance}
	}
	s.logger.Debug("search complete", "results", len(results), "duration_ms", time.Since(start).Milliseconds())
	return results, nil
}

func applyFilters(tx *gorm.DB, q models.JournalSearchQuery) (*gorm.DB, error) {
	for _, kw := range q.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			tx = tx.Where("content ILIKE ?", "%"+escapeLike(kw)+"%")
		}
	}

	// Sorted for a stable statement text.
	keys := make([]string, 0, len(q.MetadataFilters))
	for k := range q.MetadataFilters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := q.MetadataFilters[k]
		if v == nil {
			tx = tx.Where(datatypes.JSONQuery("metadata").HasKey(k))
			continue
		}
		// Containment matches scalars exactly and lists as subsets.
		raw, err := json.Marshal(map[string]any{k: v})
		if err != nil {
			return nil, fmt.Errorf("%w: metadata filter %s: %v", models.ErrInvalidQuery, k, err)
		}
		tx = tx.Where("metadata @> ?::jsonb", string(raw))
	}

	if dr := q.DateRange; dr != nil {
		if dr.Start != "" {
			tx = tx.Where("metadata->>'date_str' >= ?", dr.Start)
		}
		if dr.End != "" {
			tx = tx.Where("metadata->>'date_str' <= ?", dr.End)
		}
	}
	return tx, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
