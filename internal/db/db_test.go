package db

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

	"github.com/raphaelgruber/logseq-rag/internal/corpus"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

const testDimension = 8

var testDB *Client

// TestMain starts a SurrealDB container unless -short is set.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	// Ryuk cannot start in some CI sandboxes.
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// testcontainers may report "null" as host.
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "journal",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := testDB.InitSchema(ctx, testDimension); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func requireDB(t *testing.T) *Client {
	t.Helper()
	if testDB == nil {
		t.Skip("skipping integration test in short mode")
	}
	t.Cleanup(func() { _ = testDB.WipeData(context.Background()) })
	return testDB
}

func axis(i int) []float32 {
	v := make([]float32, testDimension)
	v[i%testDimension] = 1
	return v
}

// lengthEmbedder picks the axis from the chunk length so equal texts collide.
type lengthEmbedder struct{}

func (lengthEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = axis(len(text))
	}
	return out, nil
}

func insertDay(t *testing.T, c *Client, date, content string) int {
	t.Helper()
	mgr := corpus.NewManager(c.NewSession(), lengthEmbedder{}, nil)
	n, err := mgr.InsertCorpus(context.Background(), content,
		models.JournalCorpusMetadata{DateStr: date}.Map(),
		&models.OptionalProps{Title: date, Language: "en"}, date)
	require.NoError(t, err)
	return n
}

func TestReplaceSession(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	insertDay(t, c, "2025-02-02", "- old one\n- old two")
	t.Cleanup(func() { _, _ = c.DeleteCorpus(ctx, "2025-02-02") })

	mgr := corpus.NewManager(c.NewReplaceSession("2025-02-02"), lengthEmbedder{}, nil)
	n, err := mgr.InsertCorpus(ctx, "- new", models.JournalCorpusMetadata{DateStr: "2025-02-02"}.Map(), nil, "2025-02-02")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := c.Documents(ctx, "2025-02-02")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "- new", docs[0].Content)
}

func TestInsertCorpusRoundTrip(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	n := insertDay(t, c, "2025-03-27", "Daily notes\n- Task 1 #work\n- Task 2")
	require.Equal(t, 3, n)

	docs, err := c.Documents(ctx, "2025-03-27")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		assert.Equal(t, i, d.ChunkIndex)
		assert.Equal(t, "2025-03-27", models.Deref(d.Title))
		assert.Nil(t, d.Collection)
	}

	meta, err := docs[1].MetadataMap()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-27", meta["date_str"])
	assert.Equal(t, []any{"work"}, meta["references"])
}

func TestSearch(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	insertDay(t, c, "2025-03-27", "- Running in the park #health")
	insertDay(t, c, "2025-03-28", "- Reading about databases #work")
	insertDay(t, c, "2025-04-15", "- Running again #health")
	query := axis(len("Running in the park #health"))

	results, err := c.Search(ctx, query, models.JournalSearchQuery{Limit: 3})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Running in the park #health", results[0].Document.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	results, err = c.Search(ctx, query, models.JournalSearchQuery{Keywords: []string{"DATABASES"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2025-03-28", results[0].Document.CorpusID)

	results, err = c.Search(ctx, query, models.JournalSearchQuery{
		MetadataFilters: map[string]any{"references": []string{"health"}},
		DateRange:       &models.DateRange{Start: "2025-04-01"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2025-04-15", results[0].Document.CorpusID)
}

func TestDeleteCorpus(t *testing.T) {
	c := requireDB(t)
	ctx := context.Background()

	insertDay(t, c, "2025-02-01", "- one\n- two")

	n, err := c.DeleteCorpus(ctx, "2025-02-01")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	docs, err := c.Documents(ctx, "2025-02-01")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestBuildFilters(t *testing.T) {
	conds, vars, err := buildFilters(models.JournalSearchQuery{
		Keywords: []string{"Run", " "},
		MetadataFilters: map[string]any{
			"references": []string{"health"},
			"date_str":   "2025-03-27",
			"anchor_ids": nil,
		},
		DateRange: &models.DateRange{End: "2025-03-31"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"string::lowercase(content) CONTAINS $kw0",
		"metadata.anchor_ids IS NOT NONE",
		"metadata.date_str = $mv1",
		"metadata.references CONTAINSALL $mv2",
		"metadata.date_str <= $date_end",
	}, conds)
	assert.Equal(t, "run", vars["kw0"])
	assert.Equal(t, "2025-03-31", vars["date_end"])

	_, _, err = buildFilters(models.JournalSearchQuery{MetadataFilters: map[string]any{"x; DELETE": 1}})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestRecordConversion(t *testing.T) {
	doc, err := models.NewJournalDocument("2025-03-27", 1, "Task 1", axis(2),
		map[string]any{"date_str": "2025-03-27"}, &models.OptionalProps{Title: "2025-03-27"})
	require.NoError(t, err)

	rec, err := toRecord(doc)
	require.NoError(t, err)
	require.NotNil(t, rec.ID)
	assert.Equal(t, models.JournalTable, rec.ID.Table)

	back, err := rec.toDocument()
	require.NoError(t, err)
	assert.Equal(t, doc.ID, back.ID)
	assert.Equal(t, doc.Embedding.Slice(), back.Embedding.Slice())
	assert.JSONEq(t, string(doc.Metadata), string(back.Metadata))
}

func TestSchemaSQL(t *testing.T) {
	sql := SchemaSQL(384)
	assert.Contains(t, sql, "DEFINE TABLE IF NOT EXISTS logseq_journal SCHEMAFULL")
	assert.Contains(t, sql, "HNSW DIMENSION 384 DIST COSINE")
	assert.Contains(t, sql, "FIELDS corpus_id, chunk_index UNIQUE")
}
