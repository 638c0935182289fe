// Package orchestrator drives one deploy or rollback end to end: it resolves
// the slot, runs the service controller and the health probe, and commits the
// new state only when every step succeeded.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/artpar/ngreen/internal/shell/store"
)

// =============================================================================
// Collaborators
// =============================================================================

// ServiceController starts and stops the service project occupying a slot.
type ServiceController interface {
	// BringDown removes the project. A project that does not exist is success.
	BringDown(ctx context.Context, handle string) error

	// BringUp starts version as the project, serving on port.
	BringUp(ctx context.Context, handle string, port int, version string) error
}

// HealthProbe checks a slot over HTTP.
type HealthProbe interface {
	// Check returns the observed status or deployment.StatusUnreachable.
	Check(ctx context.Context, url string, timeout time.Duration) deployment.Status
}

// =============================================================================
// Configuration
// =============================================================================

// Config describes the project the orchestrator operates on.
type Config struct {
	ProjectName    string
	Pool           deployment.Pool
	HealthHost     string
	HealthPath     string
	SettleDelay    time.Duration     // Wait between bring-up and the probe
	ProbeTimeout   time.Duration     // Per-probe request limit
	RollbackStatus deployment.Status // Status a rollback target must report
	CleanupTimeout time.Duration     // Bound on teardown after a failure
}

// DefaultConfig returns the settle, probe and cleanup defaults.
func DefaultConfig() Config {
	return Config{
		HealthHost:     "localhost",
		HealthPath:     "/api/message",
		SettleDelay:    10 * time.Second,
		ProbeTimeout:   15 * time.Second,
		RollbackStatus: deployment.StatusOK,
		CleanupTimeout: 5 * time.Minute,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithJournal records every operation in j.
func WithJournal(j store.Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleeper replaces the context-aware settle wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs deploy and rollback operations against one state store.
// It assumes it is the only writer of that store while an operation runs.
type Orchestrator struct {
	store      store.StateStore
	controller ServiceController
	probe      HealthProbe
	journal    store.Journal
	config     Config
	logger     *slog.Logger
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates an orchestrator. Zero config fields take DefaultConfig values.
func New(st store.StateStore, controller ServiceController, probe HealthProbe, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if cfg.HealthHost == "" {
		cfg.HealthHost = defaults.HealthHost
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = defaults.HealthPath
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}
	if cfg.RollbackStatus == "" {
		cfg.RollbackStatus = defaults.RollbackStatus
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = defaults.CleanupTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		store:      st,
		controller: controller,
		probe:      probe,
		config:     cfg,
		logger:     logger.With("component", "orchestrator", "project", cfg.ProjectName),
		now:        time.Now,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result summarises a committed operation.
type Result struct {
	OperationID      string
	Action           deployment.Action
	Version          string
	Port             int
	PreviousLivePort *int
	Phase            deployment.Phase
	Observed         deployment.Status
	Duration         time.Duration
	State            *deployment.State
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// loadState loads and validates state against the configured pool.
func (o *Orchestrator) loadState(ctx context.Context) (*deployment.State, error) {
	state, err := o.store.Load(ctx)
	if err != nil {
		return nil, deployment.NewOperationError("load-state", 0, "", fmt.Errorf("%w: %w", deployment.ErrPersistence, err))
	}
	if err := state.CheckPool(o.config.Pool); err != nil {
		return nil, err
	}
	return state, nil
}

func (o *Orchestrator) healthURL(port int) string {
	return deployment.HealthURL(o.config.HealthHost, port, o.config.HealthPath)
}
