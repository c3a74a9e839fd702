package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// DateLayout is the journal date format.
const DateLayout = "2006-01-02"

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100

	// DefaultMaxCharLength caps a loaded document's size in characters.
	DefaultMaxCharLength = 8 * 1024
)

// ErrInvalidQuery is returned when a search query fails validation.
var ErrInvalidQuery = errors.New("invalid search query")

// JournalDocumentMetadata describes the keys persisted in a chunk's metadata.
type JournalDocumentMetadata struct {
	DateStr       string   `json:"date_str" jsonschema:"Journal date of the chunk in YYYY-MM-DD format"`
	ChunkLen      int      `json:"chunk_len" jsonschema:"Number of characters in the chunk"`
	WordCount     int      `json:"word_count" jsonschema:"Number of whitespace-separated words in the chunk"`
	References    []string `json:"references,omitempty" jsonschema:"Tags referenced with # in the chunk, without the leading #"`
	AnchorIDs     []string `json:"anchor_ids,omitempty" jsonschema:"Block UUIDs bound to the chunk with id:: markers"`
	DocumentType  string   `json:"document_type,omitempty" jsonschema:"Kind of document, always journal"`
	SchemaVersion string   `json:"schema_version,omitempty" jsonschema:"Metadata schema version"`
}

// DateRange is an inclusive range of journal dates.
type DateRange struct {
	Start string `json:"start" jsonschema:"Inclusive start date in YYYY-MM-DD format"`
	End   string `json:"end" jsonschema:"Inclusive end date in YYYY-MM-DD format"`
}

// JournalSearchQuery is a structured vector search over journal chunks.
type JournalSearchQuery struct {
	Text            string         `json:"text" jsonschema:"Text to embed and compare against journal chunks"`
	Keywords        []string       `json:"keywords,omitempty" jsonschema:"Words that must all appear in a matching chunk"`
	MetadataFilters map[string]any `json:"metadata_filters,omitempty" jsonschema:"Exact-match filters on chunk metadata keys"`
	DateRange       *DateRange     `json:"date_range,omitempty" jsonschema:"Restrict results to journal dates in this range"`
	Limit           int            `json:"limit,omitempty" jsonschema:"Maximum number of results, 1-100, default 10"`
}

// Normalize applies defaults and validates the query in place.
func (q *JournalSearchQuery) Normalize() error {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Limit > MaxSearchLimit {
		return fmt.Errorf("%w: limit must be 1-%d, got %d", ErrInvalidQuery, MaxSearchLimit, q.Limit)
	}
	if q.DateRange != nil {
		for _, d := range []string{q.DateRange.Start, q.DateRange.End} {
			if d == "" {
				continue
			}
			if _, err := time.Parse(DateLayout, d); err != nil {
				return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidQuery, d)
			}
		}
		if q.DateRange.Start != "" && q.DateRange.End != "" && q.DateRange.End < q.DateRange.Start {
			return fmt.Errorf("%w: date_range end %s is before start %s", ErrInvalidQuery, q.DateRange.End, q.DateRange.Start)
		}
	}
	return nil
}

// SearchQuerySchema returns the JSON Schema of JournalSearchQuery with the
// allowed metadata filter keys described under metadata_filters.
func SearchQuerySchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[JournalSearchQuery](nil)
	if err != nil {
		return nil, fmt.Errorf("search query schema: %w", err)
	}
	meta, err := jsonschema.For[JournalDocumentMetadata](nil)
	if err != nil {
		return nil, fmt.Errorf("metadata schema: %w", err)
	}
	if mf, ok := schema.Properties["metadata_filters"]; ok && mf != nil {
		mf.Properties = meta.Properties
	}
	return schema, nil
}

// LoaderInput asks a loader for the journal days in a date range.
type LoaderInput struct {
	JournalStartDate string `json:"journal_start_date" jsonschema:"The start date of the journal to load, in YYYY-MM-DD format"`
	JournalEndDate   string `json:"journal_end_date" jsonschema:"The end date of the journal to load, in YYYY-MM-DD format"`
	MaxCharLength    int    `json:"max_char_length,omitempty" jsonschema:"The maximum number of characters to include in a single document"`
	EnableSplitting  *bool  `json:"enable_splitting,omitempty" jsonschema:"Split each day into one document per top-level bullet, default true"`
}

// SplittingEnabled reports whether documents should be split on bullets.
func (in LoaderInput) SplittingEnabled() bool {
	return in.EnableSplitting == nil || *in.EnableSplitting
}

// CharLimit returns MaxCharLength or its default.
func (in LoaderInput) CharLimit() int {
	if in.MaxCharLength <= 0 {
		return DefaultMaxCharLength
	}
	return in.MaxCharLength
}
