package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"fetchd/internal/config"
	"fetchd/internal/logging"
	"fetchd/internal/notify"
	"fetchd/internal/queue"
	"fetchd/internal/registry"
)

// JobRunner is the executor surface the API needs: hand a persisted job to
// the worker pool, abort an in-flight download.
type JobRunner interface {
	Enqueue(job *queue.Job) error
	Cancel(id int64) bool
}

// Server exposes the job orchestration HTTP API.
type Server struct {
	cfg      *config.Config
	store    *queue.Store
	registry *registry.Registry
	hub      *notify.Hub
	runner   JobRunner
	logger   *slog.Logger
	views    ViewOptions

	listener net.Listener
	server   *http.Server
}

// NewServer wires the API handlers onto a mux with CORS applied to every
// response.
func NewServer(
	cfg *config.Config,
	store *queue.Store,
	reg *registry.Registry,
	hub *notify.Hub,
	runner JobRunner,
	logger *slog.Logger,
) *Server {
	srv := &Server{
		cfg:      cfg,
		store:    store,
		registry: reg,
		hub:      hub,
		runner:   runner,
		logger:   logging.NewComponentLogger(logger, "api"),
		views: ViewOptions{
			BaseURL:      cfg.Downloads.BaseURL,
			PublicPrefix: cfg.Downloads.PublicPrefix,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/add", srv.handleAdd)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/delete", srv.handleDelete)
	mux.HandleFunc("/api/events", srv.handleEvents)

	prefix := strings.TrimSuffix(cfg.Downloads.PublicPrefix, "/")
	fileServer := http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.Paths.DownloadDir)))
	mux.Handle(prefix+"/", fileServer)

	srv.server = &http.Server{
		Handler:           srv.withCORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: /api/events streams for the lifetime of the client.
		IdleTimeout: 60 * time.Second,
	}
	return srv
}

// Start begins serving on the configured bind address. The server shuts
// down when ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr reports the bound listen address, useful when binding port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
