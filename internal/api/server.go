// Package api serves the screen catalog and submission processing over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/store"
)

const serviceName = "greenscreen"

// Catalog is the persistence the server needs. *store.Store satisfies it.
type Catalog interface {
	ListScreenNames(ctx context.Context) ([]string, error)
	GetScreen(ctx context.Context, name string) (*screen.Screen, error)
	CreateScreen(ctx context.Context, sc *screen.Screen) error
	UpdateScreen(ctx context.Context, name string, sc *screen.Screen) error
	DeleteScreen(ctx context.Context, name string) error
	SaveSubmission(ctx context.Context, id int64, screenName string, inputs, data map[string]string) (int64, error)
	FinishSubmission(ctx context.Context, id int64, runID string, success bool, outcome, message string) error
	ListSubmissions(ctx context.Context, screenName string, limit int) ([]store.Submission, error)
	GetSubmission(ctx context.Context, id int64) (*store.Submission, error)
}

var _ Catalog = (*store.Store)(nil)

// Opener connects a terminal session for one submission.
type Opener func(ctx context.Context) (session.Session, error)

// Config wires a Server.
type Config struct {
	Catalog Catalog
	Open    Opener
	Logger  *zap.Logger
	// Params are defaults for every submission, typically sign-on
	// credentials. Request params override them.
	Params map[string]string
	// ArtifactsDir enables per-run screen snapshots when set.
	ArtifactsDir string
	Version      string
	// Sleep replaces time.Sleep for step waits.
	Sleep func(time.Duration)
}

// Server is the HTTP front end.
type Server struct {
	router chi.Router
	cfg    Config
	logger *zap.Logger

	// One terminal conversation at a time.
	runMu sync.Mutex
}

// NewServer builds a Server with its routes registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("catalog required")
	}
	if cfg.Open == nil {
		return nil, errors.New("session opener required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	s := &Server{router: chi.NewRouter(), cfg: cfg, logger: logger}
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			s.logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("dur", time.Since(start)),
				zap.String("remote", r.RemoteAddr))
		})
	})

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/screens", s.handleListScreens)
		r.Post("/screens", s.handleCreateScreen)
		r.Get("/screens/{name}", s.handleGetScreen)
		r.Put("/screens/{name}", s.handleUpdateScreen)
		r.Delete("/screens/{name}", s.handleDeleteScreen)
		r.Post("/validate", s.handleValidate)
		r.Post("/process", s.handleProcess)
		r.Get("/submissions", s.handleListSubmissions)
		r.Get("/submissions/{id}", s.handleGetSubmission)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
		"version": s.cfg.Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	body := map[string]any{"error": err.Error()}
	var re *dagerrors.RunError
	if errors.As(err, &re) {
		body["detail"] = re
	}
	writeJSON(w, status, body)
}
