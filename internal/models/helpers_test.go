package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	p := StringPtr("en")
	require.NotNil(t, p)
	assert.Equal(t, "en", *p)
	assert.Equal(t, "en", Deref(p))
	assert.Equal(t, "", Deref(nil))
}

func TestRecordIDString(t *testing.T) {
	id, err := RecordIDString(surrealmodels.NewRecordID(JournalTable, "abc"))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = RecordIDString(surrealmodels.NewRecordID(JournalTable, 42))
	assert.Error(t, err)
}

func TestMergeMetadata(t *testing.T) {
	corpus := CorpusMetadata{"date_str": "2024-01-01", "source": "logseq"}
	chunk := ChunkMetadata{ChunkLen: 6, WordCount: 2, References: []string{"tag"}}

	merged := MergeMetadata(corpus, chunk)

	for _, key := range []string{"date_str", "source", MetaChunkLen, MetaWordCount, MetaReferences, MetaAnchorIDs} {
		assert.Contains(t, merged, key)
	}
	assert.Equal(t, []string{}, merged[MetaAnchorIDs], "nil lists become empty lists")
	assert.Equal(t, 6, merged[MetaChunkLen])

	// The caller's map is left alone.
	assert.Len(t, corpus, 2)
}

func TestMergeMetadataChunkKeysWin(t *testing.T) {
	merged := MergeMetadata(CorpusMetadata{MetaWordCount: 99}, ChunkMetadata{WordCount: 3})
	assert.Equal(t, 3, merged[MetaWordCount])
}

func TestNewJournalDocument(t *testing.T) {
	props := &OptionalProps{Title: "2025-03-27", Language: "en"}
	doc, err := NewJournalDocument("2025-03-27", 2, "Coding session", []float32{0.1, 0.2},
		map[string]any{"date_str": "2025-03-27", "chunk_len": 14}, props)
	require.NoError(t, err)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", doc.ID.String())
	assert.Equal(t, 2, doc.ChunkIndex)
	assert.Equal(t, []float32{0.1, 0.2}, doc.Embedding.Slice())
	assert.Equal(t, "2025-03-27", Deref(doc.Title))
	assert.Nil(t, doc.Collection)
	assert.Equal(t, "en", Deref(doc.Language))

	meta, err := doc.MetadataMap()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-27", meta["date_str"])
	assert.Equal(t, float64(14), meta["chunk_len"])

	flat := doc.ToDocument()
	assert.Equal(t, "Coding session", flat.PageContent)
	assert.Equal(t, "2025-03-27", flat.Metadata["corpus_id"])
	assert.Equal(t, 2, flat.Metadata["chunk_index"])
}

func TestJournalDocumentJSONOmitsEmbedding(t *testing.T) {
	doc, err := NewJournalDocument("2025-03-27", 0, "x", []float32{1}, map[string]any{}, nil)
	require.NoError(t, err)

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "embedding")
}
