// Package cli provides the command-line interface for logseq-rag.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/logseq-rag/internal/config"
	"github.com/raphaelgruber/logseq-rag/internal/embedding"
	"github.com/raphaelgruber/logseq-rag/internal/llm"
	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/service"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose     bool
	journalPath string

	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	collector  *metrics.Collector

	// Lazily opened by the commands that need them.
	store    service.Store
	embedder embedding.Embedder
	model    *llm.Model
)

// errNoPath is returned when no journal directory is configured.
var errNoPath = errors.New("path must be provided via -p/--path or LOGSEQ_JOURNAL_PATH env var")

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "logseq-rag",
	Short: "Retrieval-augmented search over a Logseq journal",
	Long: `logseq-rag indexes Logseq journal days into a vector store and answers
questions about them.

Journal days are split into top-level bullets, tagged with the #references and
id:: anchors they contain, embedded and stored in Postgres (pgvector) or SurrealDB.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if verbose && collector != nil {
			printMetrics(collector.Snapshot())
		}
		if store != nil {
			if err := store.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output and metrics summary")
	rootCmd.PersistentFlags().StringVarP(&journalPath, "path", "p", "", "Logseq journals directory (default $LOGSEQ_JOURNAL_PATH)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(askCmd)
}

// resolvePath returns the --path flag or the configured journal path.
func resolvePath() (string, error) {
	if journalPath != "" {
		return journalPath, nil
	}
	if cfg.JournalPath != "" {
		return cfg.JournalPath, nil
	}
	return "", errNoPath
}

func getLoader() (*loader.FilesystemLoader, error) {
	path, err := resolvePath()
	if err != nil {
		return nil, err
	}
	l, err := loader.New(path, logger)
	if err != nil {
		return nil, err
	}
	return l.WithMetrics(collector), nil
}

func getStore(ctx context.Context) (service.Store, error) {
	if store == nil {
		s, err := service.OpenStore(ctx, cfg, logger, collector)
		if err != nil {
			return nil, err
		}
		store = s
	}
	return store, nil
}

func getEmbedder(ctx context.Context) (embedding.Embedder, error) {
	if embedder == nil {
		e, err := service.NewEmbedder(ctx, cfg, collector)
		if err != nil {
			return nil, err
		}
		embedder = e
	}
	return embedder, nil
}

func getModel(ctx context.Context) (*llm.Model, error) {
	if model == nil {
		m, err := service.NewModel(ctx, cfg, collector)
		if err != nil {
			return nil, err
		}
		model = m
	}
	return model, nil
}
