package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/artpar/ngreen/internal/shell/composecli"
	"github.com/artpar/ngreen/internal/shell/docker"
	"github.com/artpar/ngreen/internal/shell/orchestrator"
	"github.com/artpar/ngreen/internal/shell/probe"
	"github.com/artpar/ngreen/internal/shell/store"
)

// =============================================================================
// App - wiring shared by every command
// =============================================================================

// app holds the opened stores for one command invocation.
type app struct {
	cfg     *Config
	pool    deployment.Pool
	logger  *slog.Logger
	state   store.StateStore
	journal store.Journal // nil when no journal is configured
	closers []func() error
}

// openApp validates cfg and opens the state store and journal.
func openApp(cfg *Config, logger *slog.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := cfg.Pool()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, pool: pool, logger: logger}

	switch cfg.State.Backend {
	case "sqlite":
		db, err := store.NewSQLiteStore(cfg.State.DSN, cfg.ProjectName)
		if err != nil {
			return nil, err
		}
		a.state = db
		a.closers = append(a.closers, db.Close)
		if cfg.Journal.DSN == "" {
			a.journal = db
		}
	default:
		a.state = store.NewFileStore(cfg.State.Path, logger)
	}

	if cfg.Journal.DSN != "" {
		db, err := store.NewSQLiteStore(cfg.Journal.DSN, cfg.ProjectName)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.journal = db
		a.closers = append(a.closers, db.Close)
	}

	return a, nil
}

// Close releases everything openApp and the controller opened.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// lock takes the state lock when configured. The returned release func is
// never nil.
func (a *app) lock() (func(), error) {
	path := a.cfg.LockPath()
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	l, err := store.AcquireLock(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("state lock acquired", "path", path)
	return func() {
		if err := l.Release(); err != nil {
			a.logger.Warn("failed to release state lock", "path", path, "error", err)
		}
	}, nil
}

// controller builds the configured ServiceController.
func (a *app) controller(ctx context.Context) (orchestrator.ServiceController, error) {
	template, err := os.ReadFile(a.cfg.Controller.ComposeFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read compose template: %w", errInvalidConfig, err)
	}
	env, err := a.cfg.TemplateEnvironment()
	if err != nil {
		return nil, err
	}
	command, err := a.cfg.ComposeCommand()
	if err != nil {
		return nil, err
	}

	switch a.cfg.Controller.Driver {
	case "docker":
		client, err := docker.NewDockerClient(a.cfg.Controller.DockerHost)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return docker.NewController(client, docker.ControllerOptions{
			Template:       string(template),
			WorkingDir:     a.cfg.ProjectDir(),
			IngressService: a.cfg.Controller.IngressService,
			Environment:    env,
		}, a.logger), nil
	default:
		return composecli.NewController(
			composecli.ExecRunner{DockerHost: a.cfg.Controller.DockerHost},
			composecli.Options{
				Template:       string(template),
				ProjectDir:     a.cfg.ProjectDir(),
				RenderDir:      a.cfg.Controller.RenderDir,
				IngressService: a.cfg.Controller.IngressService,
				Environment:    env,
				Command:        command,
			},
			a.logger,
		), nil
	}
}

// orchestrator wires the stores, controller and probe together. Rollback
// never starts or stops services, so it may pass a nil controller.
func (a *app) orchestrator(controller orchestrator.ServiceController) *orchestrator.Orchestrator {
	var opts []orchestrator.Option
	if a.journal != nil {
		opts = append(opts, orchestrator.WithJournal(a.journal))
	}
	return orchestrator.New(a.state, controller, probe.NewHTTPProbe(a.logger), a.orchestratorConfig(), a.logger, opts...)
}

func (a *app) orchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		ProjectName:    a.cfg.ProjectName,
		Pool:           a.pool,
		HealthHost:     a.cfg.Health.Host,
		HealthPath:     a.cfg.Health.Path,
		SettleDelay:    a.cfg.Health.Settle,
		ProbeTimeout:   a.cfg.Health.Timeout,
		RollbackStatus: deployment.Status(a.cfg.Health.RollbackStatus),
		CleanupTimeout: a.cfg.Health.CleanupTimeout,
	}
}

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess          = 0
	ExitOperationFailed  = 1
	ExitValidationError  = 2
	ExitPersistenceError = 3
	ExitLocked           = 4
)

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, deployment.ErrLocked):
		return ExitLocked
	case errors.Is(err, deployment.ErrValidation),
		errors.Is(err, errInvalidConfig),
		errors.As(err, &usage):
		return ExitValidationError
	case errors.Is(err, deployment.ErrPersistence),
		errors.Is(err, store.ErrConnectionFailed),
		errors.Is(err, store.ErrMigrationFailed),
		errors.Is(err, store.ErrReadFailed),
		errors.Is(err, store.ErrInvalidData),
		errors.Is(err, store.ErrTxFailed):
		return ExitPersistenceError
	default:
		return ExitOperationFailed
	}
}
