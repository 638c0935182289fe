package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// journalTimeout bounds a single journal write.
const journalTimeout = 5 * time.Second

// run tracks one operation through its phases and mirrors every change into
// the journal.
type run struct {
	o      *Orchestrator
	op     *deployment.Operation
	logger *slog.Logger
}

func (o *Orchestrator) begin(ctx context.Context, action deployment.Action, version string, port int, previousLive *int) *run {
	r := &run{
		o: o,
		op: &deployment.Operation{
			Project:      o.config.ProjectName,
			Action:       action,
			Version:      version,
			Port:         port,
			PreviousLive: previousLive,
			Phase:        deployment.PhaseResolving,
			StartedAt:    o.now().UTC(),
		},
	}
	r.logger = o.logger.With("action", string(action), "port", port, "version", version)
	r.record(ctx)
	return r
}

// advance moves to the next phase.
func (r *run) advance(ctx context.Context, to deployment.Phase) {
	if err := deployment.ValidatePhaseTransition(r.op.Phase, to); err != nil {
		r.logger.Error("unexpected phase change", "error", err)
	}
	r.logger.Info("phase", "from", string(r.op.Phase), "to", string(to))
	r.op.Phase = to
	if to.Terminal() {
		finished := r.o.now().UTC()
		r.op.FinishedAt = &finished
	}
	r.record(ctx)
}

// fail records err and moves to the failed phase.
func (r *run) fail(ctx context.Context, err error) error {
	r.op.Error = err.Error()
	r.op.CleanupFailed = deployment.CleanupFailed(err)
	r.advance(ctx, deployment.PhaseFailed)
	r.logger.Error("operation failed", "error", err)
	return err
}

func (r *run) record(ctx context.Context) {
	if r.o.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := r.o.journal.RecordOperation(ctx, r.op); err != nil {
		r.logger.Warn("failed to record operation", "error", err)
	}
}

func (r *run) result(state *deployment.State) *Result {
	var duration time.Duration
	if r.op.FinishedAt != nil {
		duration = r.op.FinishedAt.Sub(r.op.StartedAt)
	}
	return &Result{
		OperationID:      r.op.ID,
		Action:           r.op.Action,
		Version:          r.op.Version,
		Port:             r.op.Port,
		PreviousLivePort: r.op.PreviousLive,
		Phase:            r.op.Phase,
		Observed:         r.op.Observed,
		Duration:         duration,
		State:            state,
	}
}

// cleanupError attaches a teardown failure to the primary error.
func cleanupError(primary error, cleanupErr error) error {
	var opErr *deployment.OperationError
	if errors.As(primary, &opErr) {
		opErr.CleanupErr = cleanupErr
		return opErr
	}
	return &deployment.OperationError{Op: "deploy", Err: primary, CleanupErr: cleanupErr}
}

// serviceActionError classifies a controller failure while keeping its cause
// reachable through errors.Is/As.
func serviceActionError(err error) error {
	return fmt.Errorf("%w: %w", deployment.ErrServiceAction, err)
}

// persistenceError classifies a state save failure the same way.
func persistenceError(err error) error {
	if errors.Is(err, deployment.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", deployment.ErrPersistence, err)
}
