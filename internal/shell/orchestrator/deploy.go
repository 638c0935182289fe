package orchestrator

import (
	"context"
	"fmt"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// =============================================================================
// Deploy
// =============================================================================

// Deploy puts version into the next slot, health-checks it and promotes it to
// live. Any failure before the commit tears the new slot down again and
// leaves the stored state exactly as it was read.
func (o *Orchestrator) Deploy(ctx context.Context, version, expectedStatus string) (*Result, error) {
	req := deployment.DeployRequest{
		ProjectName:    o.config.ProjectName,
		Pool:           o.config.Pool,
		Version:        version,
		ExpectedStatus: expectedStatus,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	expected := deployment.Status(expectedStatus)

	state, err := o.loadState(ctx)
	if err != nil {
		return nil, err
	}

	deployPort, livePort := deployment.ResolveSlots(state, o.config.Pool)
	handle := deployment.ProjectHandle(o.config.ProjectName, deployPort)

	r := o.begin(ctx, deployment.ActionDeploy, version, deployPort, livePort)
	if livePort == nil {
		r.logger.Info("no live slot, first deployment")
	} else {
		r.logger.Info("deploying next to live slot", "live_port", *livePort)
	}

	// Deploy the new slot
	r.advance(ctx, deployment.PhaseDeploying)

	if err := o.controller.BringDown(ctx, handle); err != nil {
		return nil, o.abortDeploy(ctx, r, handle,
			deployment.NewOperationError("bring-down", deployPort, err.Error(), serviceActionError(err)))
	}
	if err := o.controller.BringUp(ctx, handle, deployPort, version); err != nil {
		return nil, o.abortDeploy(ctx, r, handle,
			deployment.NewOperationError("bring-up", deployPort, err.Error(), serviceActionError(err)))
	}

	// Health check
	r.advance(ctx, deployment.PhaseHealthChecking)

	r.logger.Info("waiting for slot to settle", "delay", o.config.SettleDelay)
	if err := o.sleep(ctx, o.config.SettleDelay); err != nil {
		r.op.Observed = deployment.StatusUnreachable
		return nil, o.abortDeploy(ctx, r, handle,
			deployment.NewOperationError("health-check", deployPort, "aborted while settling: "+err.Error(),
				fmt.Errorf("%w: %w", deployment.ErrHealthCheck, err)))
	}

	url := o.healthURL(deployPort)
	observed := o.probe.Check(ctx, url, o.config.ProbeTimeout)
	r.op.Observed = observed
	if !deployment.Healthy(expected, observed) {
		return nil, o.abortDeploy(ctx, r, handle,
			deployment.NewOperationError("health-check", deployPort,
				fmt.Sprintf("%s returned %s, expected %s", url, observed, expected), deployment.ErrHealthCheck))
	}
	r.logger.Info("health check passed", "url", url, "status", string(observed))

	// Commit
	r.advance(ctx, deployment.PhaseCommitting)

	next, err := deployment.CommitDeploy(state, o.config.Pool, deployPort, version)
	if err != nil {
		return nil, r.fail(ctx, deployment.NewOperationError("commit", deployPort, err.Error(), err))
	}
	if err := o.store.Save(ctx, next); err != nil {
		// The slot is healthy, so it stays up for an operator to retry the
		// commit; the stored live pointer still names the old slot.
		r.logger.Warn("new slot left running after state save failure", "project_handle", handle)
		return nil, r.fail(ctx, deployment.NewOperationError("save-state", deployPort, err.Error(), persistenceError(err)))
	}

	r.advance(ctx, deployment.PhaseCommitted)
	r.logger.Info("deployment live", "live_slot_index", *next.LiveSlotIndex, "next_deploy_slot_index", next.NextDeploySlotIndex)
	return r.result(next), nil
}

// =============================================================================
// Cleanup
// =============================================================================

// abortDeploy runs the cleanup protocol for a failed deploy and returns the
// primary error, with any teardown failure attached to it.
func (o *Orchestrator) abortDeploy(ctx context.Context, r *run, handle string, primary error) error {
	r.advance(ctx, deployment.PhaseCleaningUp)
	r.logger.Warn("deployment failed, cleaning up", "project_handle", handle, "error", primary)

	// Teardown must run even when the operation was interrupted.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.CleanupTimeout)
	defer cancel()

	if state, err := o.store.Load(cleanupCtx); err != nil {
		r.logger.Warn("could not read state during cleanup", "error", err)
	} else if live, ok := state.LiveVersion(o.config.Pool); ok {
		r.logger.Info("previous version remains live", "live_version", live)
	} else {
		r.logger.Info("no version is live")
	}

	if err := o.controller.BringDown(cleanupCtx, handle); err != nil {
		r.logger.Error("cleanup failed", "project_handle", handle, "error", err)
		primary = cleanupError(primary, fmt.Errorf("%w: %w", deployment.ErrCleanup, err))
	} else {
		r.logger.Info("cleanup complete", "project_handle", handle)
	}

	return r.fail(ctx, primary)
}
