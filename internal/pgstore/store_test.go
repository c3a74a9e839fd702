package pgstore

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/logseq-rag/internal/config"
	"github.com/raphaelgruber/logseq-rag/internal/corpus"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

const testDimension = 8

var testStore *Store

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg17",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_DB":       "journal",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start pgvector container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	pg := config.PostgresConfig{
		User: "postgres", Password: "postgres", Host: host, Port: port.Port(),
		DB: "journal", Schema: "logseq_test", SSLMode: "disable",
	}
	testStore, err = Open(ctx, Config{DSN: pg.DSN(), Schema: pg.Schema, Dimension: testDimension}, nil)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	code := m.Run()

	_ = testStore.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func requireStore(t *testing.T) *Store {
	t.Helper()
	if testStore == nil {
		t.Skip("skipping integration test in short mode")
	}
	return testStore
}

// axisEmbedder maps each chunk to a unit vector chosen by its first keyword.
type axisEmbedder struct{}

func (axisEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = axis(len(text) % testDimension)
	}
	return out, nil
}

func axis(i int) []float32 {
	v := make([]float32, testDimension)
	v[i] = 1
	return v
}

func insertDay(t *testing.T, s *Store, date, content string) int {
	t.Helper()
	mgr := corpus.NewManager(s.NewSession(), axisEmbedder{}, nil)
	n, err := mgr.InsertCorpus(context.Background(), content,
		models.JournalCorpusMetadata{DateStr: date}.Map(),
		&models.OptionalProps{Title: date, Collection: "test", Language: "en"}, date)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = s.DeleteCorpus(context.Background(), date) })
	return n
}

func TestInsertCorpusRoundTrip(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	n := insertDay(t, s, "2025-03-27", "Daily notes\n- Task 1 #work\n- Task 2")
	assert.Equal(t, 3, n)

	docs, err := s.Documents(ctx, "2025-03-27")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		assert.Equal(t, i, d.ChunkIndex)
		assert.Equal(t, "test", models.Deref(d.Collection))
		assert.Len(t, d.Embedding.Slice(), testDimension)
	}

	meta, err := docs[1].MetadataMap()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-27", meta["date_str"])
	assert.Equal(t, []any{"work"}, meta["references"])
}

func TestSessionCommitIsAtomic(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	good, err := models.NewJournalDocument("2025-01-01", 0, "ok", axis(0), map[string]any{}, nil)
	require.NoError(t, err)
	dup := *good

	session := s.NewSession()
	session.AddAll([]*models.JournalDocument{good, &dup})
	require.Error(t, session.Commit(ctx), "duplicate primary key fails the batch")

	docs, err := s.Documents(ctx, "2025-01-01")
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, session.(*Session).Pending())
}

func TestChunkIndexUniquePerCorpus(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	insertDay(t, s, "2025-02-03", "- only chunk")

	again, err := models.NewJournalDocument("2025-02-03", 0, "other", axis(2), map[string]any{}, nil)
	require.NoError(t, err)
	session := s.NewSession()
	session.AddAll([]*models.JournalDocument{again})
	require.Error(t, session.Commit(ctx), "second chunk 0 for the same corpus")

	docs, err := s.Documents(ctx, "2025-02-03")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "- only chunk", docs[0].Content)
}

func TestReplaceSession(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	insertDay(t, s, "2025-02-02", "- old one\n- old two")

	t.Run("failed commit keeps old chunks", func(t *testing.T) {
		doc, err := models.NewJournalDocument("2025-02-02", 0, "new", axis(1), map[string]any{}, nil)
		require.NoError(t, err)
		dup := *doc

		session := s.NewReplaceSession("2025-02-02")
		session.AddAll([]*models.JournalDocument{doc, &dup})
		require.Error(t, session.Commit(ctx))

		docs, err := s.Documents(ctx, "2025-02-02")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "- old one", docs[0].Content)
	})

	t.Run("commit swaps chunks", func(t *testing.T) {
		mgr := corpus.NewManager(s.NewReplaceSession("2025-02-02"), axisEmbedder{}, nil)
		n, err := mgr.InsertCorpus(ctx, "- new", models.JournalCorpusMetadata{DateStr: "2025-02-02"}.Map(), nil, "2025-02-02")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		docs, err := s.Documents(ctx, "2025-02-02")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "- new", docs[0].Content)
	})
}

func TestSearch(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()

	insertDay(t, s, "2025-03-27", "- Running in the park #health")
	insertDay(t, s, "2025-03-28", "- Reading about databases #work")
	insertDay(t, s, "2025-04-15", "- Running again #health")

	query := axis(len("Running in the park #health") % testDimension)

	t.Run("nearest first", func(t *testing.T) {
		results, err := s.Search(ctx, query, models.JournalSearchQuery{Text: "running", Limit: 3})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, "Running in the park #health", results[0].Document.Content)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
		}
	})

	t.Run("keywords", func(t *testing.T) {
		results, err := s.Search(ctx, query, models.JournalSearchQuery{Keywords: []string{"DATABASES"}})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "2025-03-28", results[0].Document.CorpusID)
	})

	t.Run("metadata filter", func(t *testing.T) {
		results, err := s.Search(ctx, query, models.JournalSearchQuery{
			MetadataFilters: map[string]any{"references": []string{"health"}},
		})
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("date range", func(t *testing.T) {
		results, err := s.Search(ctx, query, models.JournalSearchQuery{
			MetadataFilters: map[string]any{"references": []string{"health"}},
			DateRange:       &models.DateRange{Start: "2025-04-01", End: "2025-04-30"},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "2025-04-15", results[0].Document.CorpusID)
	})

	t.Run("invalid limit", func(t *testing.T) {
		_, err := s.Search(ctx, query, models.JournalSearchQuery{Limit: 1000})
		assert.ErrorIs(t, err, models.ErrInvalidQuery)
	})
}

func TestDeleteCorpus(t *testing.T) {
	s := requireStore(t)
	ctx := context.Background()
	c := metrics.NewCollector()
	s.WithMetrics(c)
	defer s.WithMetrics(nil)

	insertDay(t, s, "2025-02-01", "- one\n- two")

	n, err := s.DeleteCorpus(ctx, "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.DeleteCorpus(ctx, "2025-02-01")
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Contains(t, c.Snapshot().Operations, metrics.OpDBCommit)
	assert.Contains(t, c.Snapshot().Operations, metrics.OpDBDelete)
}

func TestEscapeLike(t *testing.T) {
	tests := []struct{ in, want string }{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"snake_case", `snake\_case`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in), fmt.Sprintf("escapeLike(%q)", tt.in))
	}
}
