package db

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"gorm.io/datatypes"

	"github.com/raphaelgruber/logseq-rag/internal/corpus"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// journalRecord is the SurrealDB shape of a models.JournalDocument.
type journalRecord struct {
	ID          *surrealmodels.RecordID `json:"id,omitempty"`
	CorpusID    string                  `json:"corpus_id"`
	ChunkIndex  int                     `json:"chunk_index"`
	Content     string                  `json:"content"`
	Title       *string                 `json:"title,omitempty"`
	Collection  *string                 `json:"collection,omitempty"`
	OriginalURL *string                 `json:"original_url,omitempty"`
	Language    *string                 `json:"language,omitempty"`
	Metadata    map[string]any          `json:"metadata"`
	Embedding   []float32               `json:"embedding,omitempty"`
	Score       float64                 `json:"score,omitempty"`
}

func toRecord(d *models.JournalDocument) (journalRecord, error) {
	meta, err := d.MetadataMap()
	if err != nil {
		return journalRecord{}, err
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	id := surrealmodels.NewRecordID(models.JournalTable, d.ID.String())
	return journalRecord{
		ID:          &id,
		CorpusID:    d.CorpusID,
		ChunkIndex:  d.ChunkIndex,
		Content:     d.Content,
		Title:       d.Title,
		Collection:  d.Collection,
		OriginalURL: d.OriginalURL,
		Language:    d.Language,
		Metadata:    meta,
		Embedding:   d.Embedding.Slice(),
	}, nil
}

func (r journalRecord) toDocument() (models.JournalDocument, error) {
	doc := models.JournalDocument{
		CorpusID:    r.CorpusID,
		ChunkIndex:  r.ChunkIndex,
		Content:     r.Content,
		Title:       r.Title,
		Collection:  r.Collection,
		OriginalURL: r.OriginalURL,
		Language:    r.Language,
		Embedding:   pgvector.NewVector(r.Embedding),
	}
	if r.ID != nil {
		s, err := models.RecordIDString(*r.ID)
		if err != nil {
			return doc, err
		}
		if doc.ID, err = uuid.Parse(s); err != nil {
			return doc, fmt.Errorf("parse record id %q: %w", s, err)
		}
	}
	meta := r.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return doc, fmt.Errorf("marshal metadata: %w", err)
	}
	doc.Metadata = datatypes.JSON(raw)
	return doc, nil
}

// Session buffers documents until Commit inserts them in one transaction.
type Session struct {
	client  *Client
	replace string

	mu      sync.Mutex
	pending []*models.JournalDocument
}

// NewSession starts a batch writer.
func (c *Client) NewSession() corpus.Session {
	return &Session{client: c}
}

// NewReplaceSession starts a batch writer whose Commit swaps the chunks of
// corpusID for the queued ones in one transaction.
func (c *Client) NewReplaceSession(corpusID string) corpus.Session {
	return &Session{client: c, replace: corpusID}
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

// Commit inserts all queued documents atomically and empties the queue. A
// replace session deletes the corpus's old chunks in the same transaction.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	docs := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(docs) == 0 {
		return nil
	}

	records := make([]journalRecord, len(docs))
	for i, d := range docs {
		r, err := toRecord(d)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		records[i] = r
	}

	vars := map[string]any{"docs": records}
	var del string
	if s.replace != "" {
		del = fmt.Sprintf("DELETE %s WHERE corpus_id = $corpus;", models.JournalTable)
		vars["corpus"] = s.replace
	}

	start := time.Now()
	_, err := surrealdb.Query[any](ctx, s.client.db, fmt.Sprintf(`
		BEGIN TRANSACTION;
		%s
		INSERT INTO %s $docs;
		COMMIT TRANSACTION;
	`, del, models.JournalTable), vars)
	s.client.metrics.Record(metrics.OpDBCommit, time.Since(start), len(docs), err)
	if err != nil {
		return fmt.Errorf("commit %d documents: %w", len(docs), wrapQueryError(err))
	}

	s.client.logger.Debug("committed documents", "count", len(docs))
	return nil
}

// Only plain identifiers may be spliced into a field path.
var filterKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Search returns the chunks most similar to embedding, filtered by the
// query's keywords, metadata filters and date range. Unfiltered searches use
// the HNSW index; filtered ones score every matching row.
func (c *Client) Search(ctx context.Context, embedding []float32, q models.JournalSearchQuery) ([]models.SearchResult, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("search: empty query embedding")
	}

	conds, vars, err := buildFilters(q)
	if err != nil {
		return nil, err
	}
	vars["emb"] = embedding
	vars["limit"] = q.Limit

	where := ""
	if len(conds) == 0 {
		where = fmt.Sprintf("WHERE embedding <|%d,40|> $emb", q.Limit)
	} else {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	sql := fmt.Sprintf(`
		SELECT *, vector::similarity::cosine(embedding, $emb) AS score
		FROM %s
		%s
		ORDER BY score DESC
		LIMIT $limit
	`, models.JournalTable, where)

	start := time.Now()
	results, err := surrealdb.Query[[]journalRecord](ctx, c.db, sql, vars)
	if err != nil {
		c.metrics.Record(metrics.OpDBSearch, time.Since(start), 0, err)
		return nil, fmt.Errorf("search: %w", wrapQueryError(err))
	}

	out := []models.SearchResult{}
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			doc, err := r.toDocument()
			if err != nil {
				return nil, fmt.Errorf("search: %w", err)
			}
			out = append(out, models.SearchResult{Document: doc, Score: r.Score})
		}
	}
	c.metrics.Record(metrics.OpDBSearch, time.Since(start), len(out), nil)
	return out, nil
}

func buildFilters(q models.JournalSearchQuery) ([]string, map[string]any, error) {
	var conds []string
	vars := map[string]any{}

	for i, kw := range q.Keywords {
		if kw = strings.TrimSpace(kw); kw == "" {
			continue
		}
		name := fmt.Sprintf("kw%d", i)
		conds = append(conds, fmt.Sprintf("string::lowercase(content) CONTAINS $%s", name))
		vars[name] = strings.ToLower(kw)
	}

	keys := make([]string, 0, len(q.MetadataFilters))
	for k := range q.MetadataFilters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if !filterKey.MatchString(k) {
			return nil, nil, fmt.Errorf("%w: %q", ErrInvalidFilter, k)
		}
		name := fmt.Sprintf("mv%d", i)
		switch v := q.MetadataFilters[k].(type) {
		case nil:
			conds = append(conds, fmt.Sprintf("metadata.%s IS NOT NONE", k))
		case []any, []string:
			conds = append(conds, fmt.Sprintf("metadata.%s CONTAINSALL $%s", k, name))
			vars[name] = v
		default:
			conds = append(conds, fmt.Sprintf("metadata.%s = $%s", k, name))
			vars[name] = v
		}
	}

	if dr := q.DateRange; dr != nil {
		if dr.Start != "" {
			conds = append(conds, "metadata.date_str >= $date_start")
			vars["date_start"] = dr.Start
		}
		if dr.End != "" {
			conds = append(conds, "metadata.date_str <= $date_end")
			vars["date_end"] = dr.End
		}
	}
	return conds, vars, nil
}

// DeleteCorpus removes every chunk of a corpus and returns how many were deleted.
func (c *Client) DeleteCorpus(ctx context.Context, corpusID string) (int64, error) {
	start := time.Now()
	results, err := surrealdb.Query[[]journalRecord](ctx, c.db, fmt.Sprintf(
		`DELETE %s WHERE corpus_id = $corpus RETURN BEFORE`, models.JournalTable),
		map[string]any{"corpus": corpusID})
	var n int64
	if err == nil && results != nil && len(*results) > 0 {
		n = int64(len((*results)[0].Result))
	}
	c.metrics.Record(metrics.OpDBDelete, time.Since(start), int(n), err)
	if err != nil {
		return 0, fmt.Errorf("delete corpus %s: %w", corpusID, wrapQueryError(err))
	}
	return n, nil
}

// Documents returns a corpus's chunks in chunk order.
func (c *Client) Documents(ctx context.Context, corpusID string) ([]models.JournalDocument, error) {
	results, err := surrealdb.Query[[]journalRecord](ctx, c.db, fmt.Sprintf(
		`SELECT * FROM %s WHERE corpus_id = $corpus ORDER BY chunk_index`, models.JournalTable),
		map[string]any{"corpus": corpusID})
	if err != nil {
		return nil, fmt.Errorf("list corpus %s: %w", corpusID, wrapQueryError(err))
	}

	docs := []models.JournalDocument{}
	if results == nil || len(*results) == 0 {
		return docs, nil
	}
	for _, r := range (*results)[0].Result {
		doc, err := r.toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
