// Package api provides the HTTP JSON API for goldenkey.
//
// It exposes scan triggering, the latest scan session, index readings and
// per-instrument headlines. Rendering is left to the client.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/seenimoa/goldenkey/internal/config"
	"github.com/seenimoa/goldenkey/internal/datasource"
	"github.com/seenimoa/goldenkey/internal/logger"
	"github.com/seenimoa/goldenkey/internal/scan"
	"github.com/seenimoa/goldenkey/pkg/models"
	"github.com/seenimoa/goldenkey/pkg/utils"
)

// Version is reported by the health endpoint. It is set by the binary.
var Version = "dev"

// Scanner is the pipeline surface the server drives. *scan.Pipeline
// implements it.
type Scanner interface {
	Scan(ctx context.Context, prev *scan.Session) (*scan.Session, error)
	Refine(ctx context.Context, s *scan.Session) (*scan.Session, error)
	ResolveIndices(ctx context.Context) []models.IndexQuote
	ResolveThemes(ctx context.Context) []models.ThemeQuote
	News(ctx context.Context, name string) []string
	CanRefine() bool
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	pipeline Scanner
	log      logrus.FieldLogger

	// scanMu is held for the whole of a scan or refine; a second request
	// gets 409 instead of queueing.
	scanMu sync.Mutex

	mu     sync.RWMutex
	latest *scan.Session
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, pipeline Scanner, log logrus.FieldLogger) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		log:      logger.WithComponent(log, "api"),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Latest returns the most recent session, or nil.
func (s *Server) Latest() *scan.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *Server) setLatest(sess *scan.Session) {
	s.mu.Lock()
	s.latest = sess
	s.mu.Unlock()
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(s.log))
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Scans run sequentially against throttled upstreams and can take
		// minutes, so they get their own deadline.
		r.With(middleware.Timeout(10*time.Minute)).Post("/scan", s.handleScan)
		r.With(middleware.Timeout(10*time.Minute)).Post("/scan/latest/refine", s.handleRefineLatest)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/scan/latest", s.handleLatest)
			r.Get("/indices", s.handleIndices)
			r.Get("/themes", s.handleThemes)
			r.Get("/news/{name}", s.handleNews)
			r.Get("/sectors/colors", s.handleSectorColors)
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewsResponse is the body of GET /api/news/{name}.
type NewsResponse struct {
	Name      string   `json:"name"`
	Headlines []string `json:"headlines"`
	Failed    bool     `json:"failed"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := utils.NowKST()
	data := map[string]any{
		"status":         "ok",
		"version":        Version,
		"market_status":  utils.MarketStatus(now),
		"time_kst":       utils.FormatDateTimeKST(now),
		"refine_enabled": s.pipeline != nil && s.pipeline.CanRefine(),
	}
	if latest := s.Latest(); latest != nil {
		data["latest_session"] = latest.ID
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// ErrScanInProgress is returned by RunScan while another cycle holds the lock.
var ErrScanInProgress = errors.New("a scan is already in progress")

// RunScan runs one scan, optionally refined, and stores it as the latest
// session. It does not wait for a cycle already in progress.
func (s *Server) RunScan(ctx context.Context, refine bool) (*scan.Session, error) {
	if !s.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	sess, err := s.pipeline.Scan(ctx, s.Latest())
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if refine {
		refined, err := s.pipeline.Refine(ctx, sess)
		if err != nil {
			return nil, fmt.Errorf("refine: %w", err)
		}
		sess = refined
	}
	s.setLatest(sess)
	return sess, nil
}

// handleScan runs a scan, refining it when ?refine=1 is given.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	refine, _ := strconv.ParseBool(r.URL.Query().Get("refine"))
	sess, err := s.RunScan(r.Context(), refine)
	if err != nil {
		s.writeCycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sess})
}

// handleRefineLatest refines the latest session into a new one.
func (s *Server) handleRefineLatest(w http.ResponseWriter, r *http.Request) {
	if !s.scanMu.TryLock() {
		writeError(w, http.StatusConflict, ErrScanInProgress.Error())
		return
	}
	defer s.scanMu.Unlock()

	latest := s.Latest()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no scan has run yet")
		return
	}
	sess, err := s.pipeline.Refine(r.Context(), latest)
	if err != nil {
		s.writeCycleError(w, fmt.Errorf("refine: %w", err))
		return
	}
	s.setLatest(sess)
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sess})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest := s.Latest()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no scan has run yet")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: latest})
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.pipeline.ResolveIndices(r.Context()),
	})
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.pipeline.ResolveThemes(r.Context()),
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, "invalid instrument name")
		return
	}
	headlines := s.pipeline.News(r.Context(), name)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: NewsResponse{
			Name:      name,
			Headlines: headlines,
			Failed:    datasource.IsCollectionFailure(headlines),
		},
	})
}

func (s *Server) handleSectorColors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: models.SectorColors})
}

// writeCycleError reports a cycle that did not produce a session. Apart
// from the lock, only cancellation reaches here; upstream failures are
// carried inside the session.
func (s *Server) writeCycleError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrScanInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = 499
	}
	s.log.WithError(err).Warn("cycle aborted")
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
