// Package api exposes the tool registry and chat orchestration over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/toolmesh/toolmesh/internal/models"
	"github.com/toolmesh/toolmesh/internal/orchestrator"
	"github.com/toolmesh/toolmesh/internal/security"
	"github.com/toolmesh/toolmesh/internal/tool"
)

// Server is the HTTP API server
type Server struct {
	host       string
	port       int
	registry   *tool.Registry
	orch       *orchestrator.Service
	router     *models.Router
	jwtSecret  []byte
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a new API server. A nil jwtSecret disables
// authentication (dev mode).
func NewServer(
	host string,
	port int,
	registry *tool.Registry,
	orch *orchestrator.Service,
	router *models.Router,
	jwtSecret []byte,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		host:      host,
		port:      port,
		registry:  registry,
		orch:      orch,
		router:    router,
		jwtSecret: jwtSecret,
		logger:    logger.With("component", "api"),
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := security.AuthMiddleware(s.jwtSecret)

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/{$}", s.handleIndex)

	// Tool discovery is open; execution requires auth
	mux.HandleFunc("GET /api/v1/tools", s.handleListTools)
	mux.HandleFunc("GET /api/v1/tools/categories", s.handleCategories)
	mux.HandleFunc("GET /api/v1/tools/search", s.handleSearchTools)
	mux.HandleFunc("GET /api/v1/tools/category/{category}", s.handleToolsByCategory)
	mux.HandleFunc("GET /api/v1/tools/{name}", s.handleGetTool)
	mux.Handle("POST /api/v1/tools/{name}/execute", auth(http.HandlerFunc(s.handleExecuteTool)))

	mux.Handle("POST /api/v1/chat", auth(http.HandlerFunc(s.handleChat)))
	mux.Handle("POST /api/v1/ask", auth(http.HandlerFunc(s.handleAsk)))
	mux.Handle("POST /api/v1/task", auth(http.HandlerFunc(s.handleTask)))
	mux.HandleFunc("GET /api/v1/conversations/{id}", s.handleGetConversation)
	mux.Handle("DELETE /api/v1/conversations/{id}", auth(http.HandlerFunc(s.handleDeleteConversation)))
	mux.HandleFunc("GET /api/v1/models", s.handleModels)

	mux.HandleFunc("/ws/chat", s.handleChatWS)

	return s.corsMiddleware(s.loggingMiddleware(mux))
}

// Start starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "host", s.host, "port", s.port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"tools":  s.registry.Count(),
	})
}

// handleIndex describes the service
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "toolmesh",
		"endpoints": []string{
			"GET /health",
			"GET /api/v1/tools",
			"GET /api/v1/tools/categories",
			"GET /api/v1/tools/search",
			"GET /api/v1/tools/category/{category}",
			"GET /api/v1/tools/{name}",
			"POST /api/v1/tools/{name}/execute",
			"POST /api/v1/chat",
			"POST /api/v1/ask",
			"POST /api/v1/task",
			"GET /api/v1/conversations/{id}",
			"DELETE /api/v1/conversations/{id}",
			"GET /api/v1/models",
			"GET /ws/chat",
		},
	})
}

// handleModels lists routable models
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	infos := s.router.ListModels()
	out := make([]map[string]any, 0, len(infos))
	for _, m := range infos {
		out = append(out, map[string]any{
			"id":             m.ID,
			"provider":       m.Provider,
			"name":           m.Config.Name,
			"context_window": m.Config.ContextWindow,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  out,
		"default": s.router.Default(),
	})
}
