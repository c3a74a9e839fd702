// Package main provides the entry point for the logseq-rag MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/logseq-rag/internal/config"
	"github.com/raphaelgruber/logseq-rag/internal/loader"
	"github.com/raphaelgruber/logseq-rag/internal/metrics"
	"github.com/raphaelgruber/logseq-rag/internal/server"
	"github.com/raphaelgruber/logseq-rag/internal/service"
	"github.com/raphaelgruber/logseq-rag/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Dual output: stderr text + file JSON. stdout carries the MCP protocol.
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()

	logger.Info("logseq-rag-mcp starting",
		"version", version,
		"backend", cfg.Backend,
		"embed_model", cfg.EmbedModel,
		"llm_model", cfg.LLMModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()
	deps := &tools.Dependencies{Metrics: collector, Logger: logger}

	// Journal loading works without any provider; everything else degrades
	// to a tool error when its backend is unavailable.
	if cfg.JournalPath != "" {
		l, err := loader.New(cfg.JournalPath, logger)
		if err != nil {
			logger.Warn("journal loader disabled", "error", err)
		} else {
			deps.Loader = l.WithMetrics(collector)
		}
	}

	embedder, err := service.NewEmbedder(ctx, cfg, collector)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}
	logger.Info("embedder initialized", "model", embedder.Model(), "dimension", embedder.Dimension())

	store, err := service.OpenStore(ctx, cfg, logger, collector)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing store")
		_ = store.Close(context.Background())
	}()

	model, err := service.NewModel(ctx, cfg, collector)
	if err != nil {
		logger.Warn("LLM unavailable, ask_journal disabled", "error", err)
	}

	if model != nil {
		vector, err := service.NewVectorRetriever(model, embedder, store, logger)
		if err != nil {
			logger.Error("failed to create retriever", "error", err)
			os.Exit(1)
		}
		deps.Searcher = vector
		deps.Asker = service.NewAskService(vector, model, logger)
	} else {
		searchOnly, err := service.NewVectorRetriever(nil, embedder, store, logger)
		if err != nil {
			logger.Error("failed to create retriever", "error", err)
			os.Exit(1)
		}
		deps.Searcher = searchOnly
	}

	srv := server.New(version, logger)
	srv.Setup()
	tools.RegisterAll(srv.MCPServer(), deps)
	logger.Info("server ready, awaiting connections", "http_addr", cfg.HTTPAddr)

	if err := srv.Run(ctx, cfg.HTTPAddr); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
