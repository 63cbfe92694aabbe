package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/liaisonhq/liaison/internal/agent"
	"github.com/liaisonhq/liaison/internal/config"
	"github.com/liaisonhq/liaison/internal/extract"
	"github.com/liaisonhq/liaison/internal/llm"
	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/internal/search"
	"github.com/liaisonhq/liaison/internal/server"
	"github.com/liaisonhq/liaison/internal/storage"
	"github.com/liaisonhq/liaison/internal/storage/postgres"
	"github.com/liaisonhq/liaison/internal/storage/sqlite"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Text generation and embeddings degrade independently: a missing key
	// disables only the capability it serves.
	generator, err := llm.NewTextGenerator(textProviderConfig(cfg))
	if err != nil {
		logger.Warn("text generation disabled", "error", err)
		generator = nil
	}
	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM.OpenAIAPIKey, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingCacheSize)
	if err != nil {
		logger.Warn("embeddings disabled, semantic search unavailable", "error", err)
		embedder = nil
	}

	memoryService := memory.NewService(store, embedder, logger)

	var searchEngine *search.Engine
	if embedder != nil {
		searchEngine = search.NewEngine(store.Memories(), embedder, logger)
	}

	// Directories and outbound actions are integration points into the host
	// application; nil leaves the orchestrator in analyze-only mode.
	assembler := agent.NewAssembler(memoryService, searchEngine, nil, nil, logger)

	pipeline := extract.NewPipeline(generator, memoryService, logger)
	queue := extract.NewQueue(pipeline, extract.QueueConfig{
		Size:       cfg.Extract.QueueSize,
		Workers:    cfg.Extract.Workers,
		JobTimeout: cfg.ExtractJobTimeout(),
	}, logger)
	queue.Start(ctx)

	orchestrator := agent.NewOrchestrator(store.Tasks(), assembler, generator, nil, nil, queue, logger)

	srv := server.New(cfg, server.Deps{
		Memories:     memoryService,
		SearchEngine: searchEngine,
		Assembler:    assembler,
		Orchestrator: orchestrator,
		Extractor:    queue,
	}, logger)

	go runExpirySweep(ctx, memoryService, cfg.ExpirySweepInterval(), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	cancel()
	queue.Stop()
}

// openStore picks the storage backend from config.
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Engine == "postgres" {
		return postgres.Open(cfg.Storage.DSN)
	}
	if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
		return nil, err
	}
	return sqlite.Open(cfg.Storage.DataPath + "/liaison.db")
}

func textProviderConfig(cfg *config.Config) llm.ProviderConfig {
	pc := llm.ProviderConfig{Provider: cfg.LLM.Provider}
	switch cfg.LLM.Provider {
	case "openai":
		pc.APIKey = cfg.LLM.OpenAIAPIKey
		pc.Model = cfg.LLM.OpenAIModel
	default:
		pc.APIKey = cfg.LLM.AnthropicAPIKey
		pc.Model = cfg.LLM.AnthropicModel
	}
	return pc
}

// runExpirySweep periodically retires memories whose expiry has passed.
func runExpirySweep(ctx context.Context, svc *memory.Service, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := svc.ExpireDueMemories(sweepCtx); err != nil {
				logger.Error("expiry sweep failed", "error", err)
			}
			cancel()
		}
	}
}
