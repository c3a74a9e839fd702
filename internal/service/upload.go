package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/logseq-rag/internal/corpus"
	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/models"
)

const (
	// UploadMaxCharLength caps one journal day at upload time.
	UploadMaxCharLength = 64 * 1024

	uploadLanguage = "en"
	previewLen     = 32
)

// ErrInvalidDate matches errors returned by ValidateDate.
var ErrInvalidDate = loader.ErrInvalidDate

// DateError names the argument holding a malformed date.
type DateError struct {
	Name  string
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("invalid %s format: %s. Expected YYYY-MM-DD", e.Name, e.Value)
}

func (e *DateError) Unwrap() error { return ErrInvalidDate }

// UploadOptions configures one upload run.
type UploadOptions struct {
	From        string
	To          string
	JournalPath string
	Collection  string
	// Replace deletes a day's existing chunks before inserting it again.
	Replace bool
}

// UploadResult summarizes an upload run.
type UploadResult struct {
	Days   int      `json:"days"`
	Chunks int      `json:"chunks"`
	Errors []string `json:"errors,omitempty"`
}

// ProgressFunc is called after each journal day with the number of days done.
type ProgressFunc func(current, total int, day string)

// UploadService ingests journal days into a store.
type UploadService struct {
	loader   loader.Loader
	store    Store
	embedder corpus.BatchEmbedder
	logger   *slog.Logger
}

// NewUploadService creates an upload service. A nil logger uses slog.Default().
func NewUploadService(l loader.Loader, store Store, embedder corpus.BatchEmbedder, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{
		loader:   l,
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// ValidateDate checks a YYYY-MM-DD argument named name.
func ValidateDate(name, value string) error {
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return &DateError{Name: name, Value: value}
	}
	return nil
}

// Upload loads every journal day in the range unsplit and inserts each as a
// corpus keyed by its date. Failed days are collected in the result and the
// run continues, except for fatal provider errors which stop it.
func (s *UploadService) Upload(ctx context.Context, opts UploadOptions, progress ProgressFunc) (*UploadResult, error) {
	if err := ValidateDate("from_date", opts.From); err != nil {
		return nil, err
	}
	if err := ValidateDate("to_date", opts.To); err != nil {
		return nil, err
	}

	noSplit := false
	days, err := s.loader.Load(ctx, models.LoaderInput{
		JournalStartDate: opts.From,
		JournalEndDate:   opts.To,
		MaxCharLength:    UploadMaxCharLength,
		EnableSplitting:  &noSplit,
	})
	if err != nil {
		return nil, fmt.Errorf("load journals: %w", err)
	}

	s.logger.Info("uploading journal days", "from", opts.From, "to", opts.To, "days", len(days), "replace", opts.Replace)

	result := &UploadResult{}
	for i, day := range days {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		date, _ := day.Metadata[loader.MetaJournalDate].(string)
		chunks, err := s.uploadDay(ctx, date, day.PageContent, opts)
		if err != nil {
			if llm.IsFatalAPIError(err) {
				s.logger.Error("stopping upload on fatal provider error", "date", date, "error", err)
				return result, err
			}
			s.logger.Warn("failed to upload journal day", "date", date, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", date, err))
		} else {
			result.Days++
			result.Chunks += chunks
		}

		if progress != nil {
			progress(i+1, len(days), date)
		}
	}

	return result, nil
}

func (s *UploadService) uploadDay(ctx context.Context, date, content string, opts UploadOptions) (int, error) {
	s.logger.Info("uploading journal day", "date", date, "preview", preview(content))

	props := &models.OptionalProps{
		Title:       date,
		Collection:  opts.Collection,
		OriginalURL: filepath.Join(opts.JournalPath, loader.FilenameForDate(date)),
		Language:    uploadLanguage,
	}
	meta := models.JournalCorpusMetadata{DateStr: date}.Map()

	// Replacing swaps the old chunks out inside the insert transaction, so a
	// failed embed or commit leaves the day as it was.
	session := s.store.NewSession()
	if opts.Replace {
		session = s.store.NewReplaceSession(date)
	}
	manager := corpus.NewManager(session, s.embedder, s.logger)
	return manager.InsertCorpus(ctx, content, meta, props, date)
}

func preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLen {
		return string(r)
	}
	return string(r[:previewLen]) + "..."
}
