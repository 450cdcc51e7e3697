// Package server exposes the daemon's local control API.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/julianstephens/habitrefresh/internal/constants"
	"github.com/julianstephens/habitrefresh/internal/logger"
	"github.com/julianstephens/habitrefresh/internal/models"
	"github.com/julianstephens/habitrefresh/internal/utils"
)

type Guard interface {
	LastProcessedDate() (string, error)
}

type Consumers interface {
	CountConsumers() (int, error)
}

type Runner interface {
	Enqueue(reason string) string
	Last() (models.CycleRecord, bool)
	RetryPending() bool
}

type Scheduler interface {
	Pending() (time.Time, bool)
	Service() string
}

type Recovery interface {
	OnRestart(ctx context.Context) error
}

// Status is the body of GET /v1/status
type Status struct {
	Version           string              `json:"version"`
	Today             string              `json:"today"`
	LastProcessedDate string              `json:"last_processed_date"`
	PendingWake       *time.Time          `json:"pending_wake,omitempty"`
	WakeService       string              `json:"wake_service,omitempty"`
	LastCycle         *models.CycleRecord `json:"last_cycle,omitempty"`
	RetryPending      bool                `json:"retry_pending"`
	Consumers         int                 `json:"consumers"`
}

type Config struct {
	Addr      string
	Guard     Guard
	Consumers Consumers
	Runner    Runner
	Scheduler Scheduler
	Recovery  Recovery
	Location  *time.Location
	Now       func() time.Time

	// Secret, when set, is required in the ControlSecretHeader of every /v1
	// request.
	Secret string
}

type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config
}

func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = constants.DefaultControlAddr
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Server{router: chi.NewRouter(), cfg: cfg}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(loggingMiddleware)
	s.routes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.requireSecret)
		r.Get("/status", s.handleStatus)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/recover", s.handleRecover)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logger.Info("control API listening", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last, err := s.cfg.Guard.LastProcessedDate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	consumers, err := s.cfg.Consumers.CountConsumers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	status := Status{
		Version:           constants.Version,
		Today:             utils.DateString(s.cfg.Now(), s.cfg.Location),
		LastProcessedDate: last,
		RetryPending:      s.cfg.Runner.RetryPending(),
		Consumers:         consumers,
	}
	if at, ok := s.cfg.Scheduler.Pending(); ok {
		status.PendingWake = &at
		status.WakeService = s.cfg.Scheduler.Service()
	}
	if rec, ok := s.cfg.Runner.Last(); ok {
		status.LastCycle = &rec
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "api"
	}
	id := s.cfg.Runner.Enqueue(reason)
	writeJSON(w, http.StatusAccepted, map[string]string{"cycle_id": id})
}

func (s *Server) handleRecover(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Recovery.OnRestart(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recovered"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Secret != "" {
			got := r.Header.Get(constants.ControlSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Secret)) != 1 {
				writeError(w, http.StatusUnauthorized, errors.New("missing or invalid control secret"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("control request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
