package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// JournalTable is the table holding journal chunks.
	JournalTable = "logseq_journal"

	// DefaultEmbeddingDimension matches amazon.titan-embed-text-v2:0.
	DefaultEmbeddingDimension = 1024

	// CorpusIDMaxLen is the width of an ISO date string.
	CorpusIDMaxLen = len("2025-06-09")
)

// OptionalProps are descriptive columns shared by every chunk of a corpus.
// Empty strings are stored as NULL.
type OptionalProps struct {
	Title       string `json:"title,omitempty"`
	Collection  string `json:"collection,omitempty"`
	OriginalURL string `json:"original_url,omitempty"`
	Language    string `json:"language,omitempty"`
}

// JournalDocument is one persisted chunk of a journal corpus.
type JournalDocument struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CorpusID    string          `gorm:"type:varchar(10);index;uniqueIndex:logseq_journal_corpus_chunk_idx,priority:1;not null" json:"corpus_id"`
	ChunkIndex  int             `gorm:"not null;uniqueIndex:logseq_journal_corpus_chunk_idx,priority:2" json:"chunk_index"`
	Content     string          `gorm:"type:text;not null" json:"content"`
	Title       *string         `gorm:"type:varchar(255)" json:"title,omitempty"`
	Collection  *string         `gorm:"type:varchar(255);index" json:"collection,omitempty"`
	OriginalURL *string         `gorm:"column:original_url;type:text" json:"original_url,omitempty"`
	Language    *string         `gorm:"type:varchar(16)" json:"language,omitempty"`
	Metadata    datatypes.JSON  `gorm:"type:jsonb;not null" json:"metadata"`
	Embedding   pgvector.Vector `gorm:"type:vector(1024)" json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (JournalDocument) TableName() string {
	return JournalTable
}

func (d *JournalDocument) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// NewJournalDocument assembles a record for one chunk.
func NewJournalDocument(corpusID string, chunkIndex int, content string, embedding []float32, metadata map[string]any, props *OptionalProps) (*JournalDocument, error) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	doc := &JournalDocument{
		ID:         uuid.New(),
		CorpusID:   corpusID,
		ChunkIndex: chunkIndex,
		Content:    content,
		Metadata:   datatypes.JSON(raw),
		Embedding:  pgvector.NewVector(embedding),
	}
	if props != nil {
		doc.Title = StringPtr(props.Title)
		doc.Collection = StringPtr(props.Collection)
		doc.OriginalURL = StringPtr(props.OriginalURL)
		doc.Language = StringPtr(props.Language)
	}
	return doc, nil
}

// MetadataMap decodes the metadata column.
func (d *JournalDocument) MetadataMap() (map[string]any, error) {
	if len(d.Metadata) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(d.Metadata, &m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}

// ToDocument flattens the record into a retrieval Document.
func (d *JournalDocument) ToDocument() Document {
	meta, err := d.MetadataMap()
	if err != nil {
		meta = map[string]any{}
	}
	meta["corpus_id"] = d.CorpusID
	meta["chunk_index"] = d.ChunkIndex
	if d.Title != nil {
		meta["title"] = *d.Title
	}
	if d.OriginalURL != nil {
		meta["original_url"] = *d.OriginalURL
	}
	return Document{PageContent: d.Content, Metadata: meta}
}

// Document is a piece of journal text handed back by loaders and retrievers.
type Document struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// SearchResult is a stored chunk with its similarity to the query.
type SearchResult struct {
	Document JournalDocument `json:"document"`
	Score    float64         `json:"score"`
}
