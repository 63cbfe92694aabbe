// Package server exposes the agent subsystem over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/liaisonhq/liaison/internal/agent"
	"github.com/liaisonhq/liaison/internal/config"
	"github.com/liaisonhq/liaison/internal/memory"
	"github.com/liaisonhq/liaison/internal/search"
)

// Server is the HTTP front of the agent subsystem.
type Server struct {
	cfg          *config.Config
	memories     *memory.Service
	searchEngine *search.Engine
	assembler    *agent.Assembler
	orchestrator *agent.Orchestrator
	extractor    agent.ExtractionSubmitter
	logger       *slog.Logger

	httpServer *http.Server
}

// Deps bundles the collaborators the server exposes.
type Deps struct {
	Memories     *memory.Service
	SearchEngine *search.Engine // nil when embeddings are not configured
	Assembler    *agent.Assembler
	Orchestrator *agent.Orchestrator
	Extractor    agent.ExtractionSubmitter // nil disables the extract endpoint
}

// New creates the server and wires its routes.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:          cfg,
		memories:     deps.Memories,
		searchEngine: deps.SearchEngine,
		assembler:    deps.Assembler,
		orchestrator: deps.Orchestrator,
		extractor:    deps.Extractor,
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/v1/agent/execute", s.handleExecute)
	mux.HandleFunc("POST /api/v1/agent/preview", s.handlePreview)
	mux.HandleFunc("POST /api/v1/interactions/completed", s.handleInteractionCompleted)

	mux.HandleFunc("POST /api/v1/memories", s.handleCreateMemory)
	mux.HandleFunc("GET /api/v1/memories", s.handleListMemories)
	mux.HandleFunc("POST /api/v1/memories/search", s.handleSearchMemories)
	mux.HandleFunc("GET /api/v1/memories/{id}", s.handleGetMemory)
	mux.HandleFunc("PATCH /api/v1/memories/{id}", s.handleUpdateMemory)
	mux.HandleFunc("DELETE /api/v1/memories/{id}", s.handleDeleteMemory)

	mux.HandleFunc("POST /api/v1/extract", s.handleExtract)

	mux.HandleFunc("GET /api/v1/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}/steps", s.handleTaskSteps)
	mux.HandleFunc("POST /api/v1/tasks/{id}/cancel", s.handleCancelTask)

	mux.HandleFunc("GET /api/v1/contacts/{id}/preferences", s.handleGetPreferences)
	mux.HandleFunc("PUT /api/v1/contacts/{id}/preferences", s.handleUpdatePreferences)

	rateLimiter := NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      RateLimitMiddleware(mux, rateLimiter),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	return s
}

// Handler returns the wired HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":              "ok",
		"embedding_available": s.memories.EmbeddingAvailable(),
	})
}

