package db

import (
	"fmt"

	"github.com/raphaelgruber/logseq-rag/internal/models"
)

// SchemaSQL returns the journal table definition for the given embedding dimension.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(`
    DEFINE TABLE IF NOT EXISTS %[1]s SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS corpus_id ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS chunk_index ON %[1]s TYPE int;
    DEFINE FIELD IF NOT EXISTS content ON %[1]s TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON %[1]s TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS collection ON %[1]s TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS original_url ON %[1]s TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS language ON %[1]s TYPE option<string>;
    -- date_str, chunk_len, word_count, references, anchor_ids and anything the caller adds
    DEFINE FIELD IF NOT EXISTS metadata ON %[1]s TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS embedding ON %[1]s TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS created ON %[1]s TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS %[1]s_corpus ON %[1]s FIELDS corpus_id;
    DEFINE INDEX IF NOT EXISTS %[1]s_corpus_chunk ON %[1]s FIELDS corpus_id, chunk_index UNIQUE;
    DEFINE INDEX IF NOT EXISTS %[1]s_date ON %[1]s FIELDS metadata.date_str;
    DEFINE INDEX IF NOT EXISTS %[1]s_embedding ON %[1]s FIELDS embedding HNSW DIMENSION %[2]d DIST COSINE TYPE F32;
`, models.JournalTable, dimension)
}
