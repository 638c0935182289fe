// Package api serves a read-only HTTP view of the deployment state, the slot
// pool and the operation journal.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/artpar/ngreen/internal/shell/orchestrator"
	"github.com/artpar/ngreen/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Config holds what the handler reports on.
type Config struct {
	ProjectName  string
	Pool         deployment.Pool
	HealthHost   string
	HealthPath   string
	ProbeTimeout time.Duration
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	store    store.StateStore
	journal  store.Journal            // nil when no journal is configured
	probe    orchestrator.HealthProbe // nil disables on-demand slot probes
	config   Config
	logger   *slog.Logger
	now      func() time.Time
	registry *prometheus.Registry
}

// NewHandler creates a new API handler. journal and probe may be nil.
func NewHandler(s store.StateStore, j store.Journal, p orchestrator.HealthProbe, cfg Config, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if cfg.HealthHost == "" {
		cfg.HealthHost = "localhost"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/"
	}
	h := &Handler{
		store:   s,
		journal: j,
		probe:   p,
		config:  cfg,
		logger:  l.With("component", "api"),
		now:     time.Now,
	}
	h.registry = newRegistry(h)
	return h
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Route("/slots", func(r chi.Router) {
			r.Get("/", h.handleListSlots)
			r.Get("/{port}/health", h.handleSlotHealth)
		})
		r.Get("/operations", h.handleListOperations)
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// =============================================================================
// State Handlers
// =============================================================================

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, ok := h.loadState(w, r)
	if !ok {
		return
	}

	nextPort, livePort := deployment.ResolveSlots(state, h.config.Pool)
	liveVersion, _ := state.LiveVersion(h.config.Pool)
	h.writeJSON(w, http.StatusOK, StateResponse{
		Project:     h.config.ProjectName,
		Pool:        h.config.Pool,
		LivePort:    livePort,
		LiveVersion: liveVersion,
		NextPort:    nextPort,
		State:       state,
	})
}

func (h *Handler) handleListSlots(w http.ResponseWriter, r *http.Request) {
	state, ok := h.loadState(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, SlotsResponse{
		Project: h.config.ProjectName,
		Slots:   deployment.DescribeSlots(state, h.config.Pool, h.config.ProjectName),
	})
}

func (h *Handler) handleSlotHealth(w http.ResponseWriter, r *http.Request) {
	if h.probe == nil {
		h.writeError(w, http.StatusNotImplemented, "slot probing is disabled", "probe_disabled")
		return
	}

	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil || h.config.Pool.IndexOf(port) < 0 {
		h.writeError(w, http.StatusNotFound, "port is not in the pool", "not_found")
		return
	}

	url := deployment.HealthURL(h.config.HealthHost, port, h.config.HealthPath)
	status := h.probe.Check(r.Context(), url, h.config.ProbeTimeout)
	h.writeJSON(w, http.StatusOK, SlotHealthResponse{
		Port:      port,
		URL:       url,
		Status:    status,
		Reachable: status != deployment.StatusUnreachable,
		CheckedAt: h.now().UTC(),
	})
}

// =============================================================================
// Journal Handlers
// =============================================================================

func (h *Handler) handleListOperations(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		h.writeError(w, http.StatusNotImplemented, "operation journal is not configured", "journal_disabled")
		return
	}

	opts := store.DefaultListOptions()
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "limit must be a number", "validation_error")
			return
		}
		opts.Limit = n
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "offset must be a number", "validation_error")
			return
		}
		opts.Offset = n
	}
	opts = opts.Normalize()

	ops, err := h.journal.ListOperations(r.Context(), h.config.ProjectName, opts)
	if err != nil {
		h.logger.Error("failed to list operations", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list operations", "internal_error")
		return
	}
	if ops == nil {
		ops = []deployment.Operation{}
	}
	h.writeJSON(w, http.StatusOK, OperationsResponse{
		Operations: ops,
		Limit:      opts.Limit,
		Offset:     opts.Offset,
	})
}

// =============================================================================
// Helpers
// =============================================================================

// loadState reads the state, writing an error response when that fails.
func (h *Handler) loadState(w http.ResponseWriter, r *http.Request) (*deployment.State, bool) {
	state, err := h.store.Load(r.Context())
	if err != nil {
		h.logger.Error("failed to load state", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load deployment state", "internal_error")
		return nil, false
	}
	if err := state.CheckPool(h.config.Pool); err != nil {
		code := "internal_error"
		if errors.Is(err, deployment.ErrPoolMismatch) {
			code = "pool_mismatch"
		}
		h.writeError(w, http.StatusConflict, err.Error(), code)
		return nil, false
	}
	return state, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
