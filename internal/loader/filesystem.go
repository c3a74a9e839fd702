// Package loader reads Logseq journal files for a date range.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/models"
	"github.com/raphaelgruber/logseq-rag/internal/parser"
)

var (
	// ErrInvalidPath is returned when the journal directory is missing or not a directory.
	ErrInvalidPath = errors.New("invalid journal path")

	// ErrInvalidDate is returned for dates not in YYYY-MM-DD format.
	ErrInvalidDate = errors.New("dates must be in YYYY-MM-DD format")

	// ErrInvalidRange is returned when the end date precedes the start date.
	ErrInvalidRange = errors.New("journal_end_date must be after journal_start_date")
)

// Metadata keys attached to loaded documents.
const (
	MetaJournalDate      = "journal_date"
	MetaJournalCharCount = "journal_char_count"
	MetaJournalTags      = "journal_tags"
)

const journalExt = ".md"

// Loader returns the journal documents matching a LoaderInput.
type Loader interface {
	Load(ctx context.Context, input models.LoaderInput) ([]models.Document, error)
}

// FilesystemLoader loads journal days from a directory of YYYY_MM_DD.md files.
type FilesystemLoader struct {
	path    string
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Compile-time check that FilesystemLoader implements Loader.
var _ Loader = (*FilesystemLoader)(nil)

// New creates a loader for path. The path must be an existing directory; an
// empty directory or one without .md files only produces warnings.
func New(path string, logger *slog.Logger) (*FilesystemLoader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &FilesystemLoader{path: path, logger: logger}
	if err := l.validatePath(); err != nil {
		return nil, err
	}
	return l, nil
}

// WithMetrics records file loads in c.
func (l *FilesystemLoader) WithMetrics(c *metrics.Collector) *FilesystemLoader {
	l.metrics = c
	return l
}

// Path returns the journal directory.
func (l *FilesystemLoader) Path() string {
	return l.path
}

func (l *FilesystemLoader) validatePath() error {
	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: Logseq journal path does not exist: %s", ErrInvalidPath, l.path)
		}
		return fmt.Errorf("stat journal path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: Logseq journal path is not a directory: %s", ErrInvalidPath, l.path)
	}

	entries, err := os.ReadDir(l.path)
	if err != nil {
		return fmt.Errorf("read journal directory: %w", err)
	}
	if len(entries) == 0 {
		l.logger.Warn(fmt.Sprintf("Logseq journal directory is empty: %s", l.path))
	}

	mdFiles, err := filepath.Glob(filepath.Join(l.path, "*"+journalExt))
	if err != nil {
		return fmt.Errorf("glob journal files: %w", err)
	}
	if len(mdFiles) == 0 {
		l.logger.Warn(fmt.Sprintf("No files with .md extension found in %s", l.path))
	}
	return nil
}

// ValidateInput checks the date format and ordering of a LoaderInput.
func ValidateInput(input models.LoaderInput) error {
	start, err := time.Parse(models.DateLayout, input.JournalStartDate)
	if err != nil {
		return fmt.Errorf("%w: journal_start_date %q", ErrInvalidDate, input.JournalStartDate)
	}
	end, err := time.Parse(models.DateLayout, input.JournalEndDate)
	if err != nil {
		return fmt.Errorf("%w: journal_end_date %q", ErrInvalidDate, input.JournalEndDate)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidRange, input.JournalEndDate, input.JournalStartDate)
	}
	return nil
}

// MatchingFiles lists the journal filenames within the input's date range, ascending.
func (l *FilesystemLoader) MatchingFiles(input models.LoaderInput) ([]string, error) {
	if err := ValidateInput(input); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.path)
	if err != nil {
		return nil, fmt.Errorf("read journal directory: %w", err)
	}

	// Fixed-width YYYY_MM_DD.md names sort the same as the dates they encode.
	lo := FilenameForDate(input.JournalStartDate)
	hi := FilenameForDate(input.JournalEndDate)

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, journalExt) {
			continue
		}
		if name >= lo && name <= hi {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Load reads every journal day in the input's range and returns its documents.
// No matching files is not an error.
func (l *FilesystemLoader) Load(ctx context.Context, input models.LoaderInput) ([]models.Document, error) {
	start := time.Now()
	names, err := l.MatchingFiles(input)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		l.logger.Warn("no journal files in date range",
			"path", l.path, "start", input.JournalStartDate, "end", input.JournalEndDate)
		return []models.Document{}, nil
	}

	limit := input.CharLimit()
	docs := []models.Document{}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(l.path, name))
		if err != nil {
			l.metrics.Record(metrics.OpFileLoad, time.Since(start), len(docs), err)
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		for _, doc := range ParseJournalFile(string(data), name, input.SplittingEnabled()) {
			if utf8.RuneCountInString(doc.PageContent) > limit {
				l.logger.Warn("truncating journal document", "file", name, "max_char_length", limit)
				doc.PageContent = truncateRunes(doc.PageContent, limit)
				doc.Metadata[MetaJournalCharCount] = limit
			}
			docs = append(docs, doc)
		}
	}

	l.metrics.Record(metrics.OpFileLoad, time.Since(start), len(names), nil)
	l.logger.Debug("loaded journal files", "files", len(names), "documents", len(docs))
	return docs, nil
}

// ParseJournalFile turns one journal file into documents: one per top-level
// bullet when splitting, otherwise the whole file.
func ParseJournalFile(content, filename string, enableSplitting bool) []models.Document {
	sections := []string{content}
	if enableSplitting {
		sections = parser.Split(content)
	}

	docs := make([]models.Document, 0, len(sections))
	for _, section := range sections {
		docs = append(docs, models.Document{
			PageContent: section,
			Metadata:    FileMetadata(section, filename).Map(),
		})
	}
	return docs
}

// JournalFileMetadata is attached to every loaded document.
type JournalFileMetadata struct {
	JournalDate      string   `json:"journal_date"`
	JournalCharCount int      `json:"journal_char_count"`
	JournalTags      []string `json:"journal_tags"`
}

// Map returns the metadata keyed by its document metadata names.
func (m JournalFileMetadata) Map() map[string]any {
	tags := m.JournalTags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		MetaJournalDate:      m.JournalDate,
		MetaJournalCharCount: m.JournalCharCount,
		MetaJournalTags:      tags,
	}
}

// FileMetadata derives document metadata from the content and its filename.
func FileMetadata(content, filename string) JournalFileMetadata {
	return JournalFileMetadata{
		JournalDate:      DateFromFilename(filename),
		JournalCharCount: utf8.RuneCountInString(content),
		JournalTags:      []string{},
	}
}

// DateFromFilename converts "2025_03_27.md" to "2025-03-27".
func DateFromFilename(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), journalExt)
	return strings.ReplaceAll(base, "_", "-")
}

// FilenameForDate converts "2025-03-27" to "2025_03_27.md".
func FilenameForDate(date string) string {
	return strings.ReplaceAll(date, "-", "_") + journalExt
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
