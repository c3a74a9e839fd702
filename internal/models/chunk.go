package models

// ChunkMetadata is derived from a chunk's text at ingestion time.
// It is never supplied by callers.
type ChunkMetadata struct {
	ChunkLen   int      `json:"chunk_len"`
	WordCount  int      `json:"word_count"`
	References []string `json:"references"`
	AnchorIDs  []string `json:"anchor_ids"`
}

// Chunk metadata keys as persisted in the record's metadata column.
const (
	MetaChunkLen   = "chunk_len"
	MetaWordCount  = "word_count"
	MetaReferences = "references"
	MetaAnchorIDs  = "anchor_ids"
)

// Map returns the metadata keyed by its persisted names.
// List fields are never nil so they serialize as [] rather than null.
func (m ChunkMetadata) Map() map[string]any {
	refs := m.References
	if refs == nil {
		refs = []string{}
	}
	anchors := m.AnchorIDs
	if anchors == nil {
		anchors = []string{}
	}
	return map[string]any{
		MetaChunkLen:   m.ChunkLen,
		MetaWordCount:  m.WordCount,
		MetaReferences: refs,
		MetaAnchorIDs:  anchors,
	}
}

// CorpusMetadata is caller-supplied metadata shared by every chunk of a corpus.
// Its shape is not validated.
type CorpusMetadata map[string]any

// MetaDateStr is the corpus metadata key holding the journal date.
const MetaDateStr = "date_str"

// JournalCorpusMetadata is the corpus metadata written for a Logseq journal day.
type JournalCorpusMetadata struct {
	DateStr string `json:"date_str"`
}

// Map converts to the untyped form accepted by the corpus manager.
func (m JournalCorpusMetadata) Map() CorpusMetadata {
	return CorpusMetadata{MetaDateStr: m.DateStr}
}

// MergeMetadata returns the union of corpus-level and chunk-level metadata.
// Chunk-level keys win on collision.
func MergeMetadata(corpus CorpusMetadata, chunk ChunkMetadata) map[string]any {
	merged := make(map[string]any, len(corpus)+4)
	for k, v := range corpus {
		merged[k] = v
	}
	for k, v := range chunk.Map() {
		merged[k] = v
	}
	return merged
}
