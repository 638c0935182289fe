package orchestrator

import (
	"context"
	"fmt"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// =============================================================================
// Rollback
// =============================================================================

// Rollback moves the live pointer to an already deployed slot: the previous
// live slot when targetVersion is empty, otherwise the slot recorded for
// targetVersion. The target must answer the health probe with the rollback
// status. No service is started or stopped and history is left as it is.
func (o *Orchestrator) Rollback(ctx context.Context, targetVersion string) (*Result, error) {
	req := deployment.RollbackRequest{
		ProjectName:   o.config.ProjectName,
		Pool:          o.config.Pool,
		TargetVersion: targetVersion,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	state, err := o.loadState(ctx)
	if err != nil {
		return nil, err
	}

	target, err := deployment.ResolveRollbackTarget(state, o.config.Pool, targetVersion)
	if err != nil {
		o.logger.Error("rollback target not resolved", "target_version", targetVersion, "error", err)
		return nil, deployment.NewOperationError("resolve-target", 0, err.Error(), err)
	}
	_, livePort := deployment.ResolveSlots(state, o.config.Pool)

	r := o.begin(ctx, deployment.ActionRollback, target.Version, target.Port, livePort)
	r.logger.Info("rolling back", "slot_index", target.SlotIndex)

	// Health check the target
	r.advance(ctx, deployment.PhaseHealthChecking)

	url := o.healthURL(target.Port)
	observed := o.probe.Check(ctx, url, o.config.ProbeTimeout)
	r.op.Observed = observed
	if !deployment.Healthy(o.config.RollbackStatus, observed) {
		return nil, r.fail(ctx, deployment.NewOperationError("health-check", target.Port,
			fmt.Sprintf("rollback target %s returned %s, expected %s", url, observed, o.config.RollbackStatus),
			deployment.ErrHealthCheck))
	}

	// Commit
	r.advance(ctx, deployment.PhaseCommitting)

	next, err := deployment.CommitRollback(state, o.config.Pool, target.SlotIndex)
	if err != nil {
		return nil, r.fail(ctx, deployment.NewOperationError("commit", target.Port, err.Error(), err))
	}
	if err := o.store.Save(ctx, next); err != nil {
		return nil, r.fail(ctx, deployment.NewOperationError("save-state", target.Port, err.Error(), persistenceError(err)))
	}

	r.advance(ctx, deployment.PhaseCommitted)
	r.logger.Info("rollback complete", "live_slot_index", *next.LiveSlotIndex)
	return r.result(next), nil
}
