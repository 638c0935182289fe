package deployment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Pool Tests
// =============================================================================

func TestParsePool(t *testing.T) {
	pool, err := ParsePool("5000, 5001,5002")
	require.NoError(t, err)
	assert.Equal(t, Pool{5000, 5001, 5002}, pool)
	assert.Equal(t, 3, pool.Size())
	assert.Equal(t, "5000,5001,5002", pool.String())
	assert.Equal(t, 1, pool.IndexOf(5001))
	assert.Equal(t, -1, pool.IndexOf(6000))
}

func TestParsePool_Invalid(t *testing.T) {
	for _, in := range []string{"", " ", "5000,abc", "5000,5000", "0", "70000", "5000,,5001", "-1"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParsePool(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

// =============================================================================
// Action and Request Tests
// =============================================================================

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Deploy ")
	require.NoError(t, err)
	assert.Equal(t, ActionDeploy, a)

	a, err = ParseAction("rollback")
	require.NoError(t, err)
	assert.Equal(t, ActionRollback, a)

	_, err = ParseAction("destroy")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDeployRequest_Validate(t *testing.T) {
	valid := DeployRequest{ProjectName: "shop", Pool: Pool{5000, 5001}, Version: "v1", ExpectedStatus: "200"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(r *DeployRequest)
	}{
		{"missing project", func(r *DeployRequest) { r.ProjectName = "" }},
		{"uppercase project", func(r *DeployRequest) { r.ProjectName = "Shop" }},
		{"empty pool", func(r *DeployRequest) { r.Pool = nil }},
		{"duplicate port", func(r *DeployRequest) { r.Pool = Pool{5000, 5000} }},
		{"blank version", func(r *DeployRequest) { r.Version = "  " }},
		{"non numeric status", func(r *DeployRequest) { r.ExpectedStatus = "ok" }},
		{"short status", func(r *DeployRequest) { r.ExpectedStatus = "20" }},
		{"status out of range", func(r *DeployRequest) { r.ExpectedStatus = "700" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.ErrorIs(t, r.Validate(), ErrValidation)
		})
	}
}

func TestRollbackRequest_Validate(t *testing.T) {
	assert.NoError(t, RollbackRequest{ProjectName: "shop", Pool: Pool{5000}}.Validate())
	assert.NoError(t, RollbackRequest{ProjectName: "shop", Pool: Pool{5000}, TargetVersion: "v1"}.Validate())
	assert.ErrorIs(t, RollbackRequest{Pool: Pool{5000}}.Validate(), ErrValidation)
}

// =============================================================================
// Health Status Tests
// =============================================================================

func TestHealthy(t *testing.T) {
	assert.True(t, Healthy("200", StatusFromCode(200)))
	assert.True(t, Healthy("204", "204"))
	assert.False(t, Healthy("200", "500"))
	assert.False(t, Healthy("000", StatusUnreachable))
	assert.Equal(t, Status("404"), StatusFromCode(404))
}

// =============================================================================
// OperationError Tests
// =============================================================================

func TestOperationError(t *testing.T) {
	err := NewOperationError("health-check", 5001, "observed 500, expected 200", ErrHealthCheck)
	assert.Equal(t, "health-check port 5001: observed 500, expected 200", err.Error())
	assert.ErrorIs(t, err, ErrHealthCheck)
	assert.False(t, CleanupFailed(err))

	err.CleanupErr = errors.New("network busy")
	assert.Equal(t, "health-check port 5001: observed 500, expected 200 (cleanup also failed: network busy)", err.Error())
	assert.ErrorIs(t, err, ErrHealthCheck)
	assert.NotErrorIs(t, err, ErrCleanup)
	assert.True(t, CleanupFailed(err))

	bare := NewOperationError("load", 0, "", ErrPersistence)
	assert.Equal(t, "load: state persistence failed", bare.Error())
}

// =============================================================================
// Phase Tests
// =============================================================================

func TestValidatePhaseTransition(t *testing.T) {
	deployPath := []Phase{PhaseResolving, PhaseDeploying, PhaseHealthChecking, PhaseCommitting, PhaseCommitted}
	for i := 1; i < len(deployPath); i++ {
		assert.NoError(t, ValidatePhaseTransition(deployPath[i-1], deployPath[i]))
	}

	assert.NoError(t, ValidatePhaseTransition(PhaseResolving, PhaseHealthChecking))
	assert.NoError(t, ValidatePhaseTransition(PhaseHealthChecking, PhaseCleaningUp))
	assert.NoError(t, ValidatePhaseTransition(PhaseCleaningUp, PhaseFailed))

	assert.ErrorIs(t, ValidatePhaseTransition(PhaseDeploying, PhaseCommitting), ErrInvalidPhaseTransition)
	assert.ErrorIs(t, ValidatePhaseTransition(PhaseCommitted, PhaseFailed), ErrInvalidPhaseTransition)
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseCommitting.Terminal())
}
