package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CommitDeploy Tests
// =============================================================================

func TestCommitDeploy_ColdStart(t *testing.T) {
	pool := Pool{5000, 5001}
	deployPort, _ := ResolveSlots(DefaultState(), pool)

	next, err := CommitDeploy(DefaultState(), pool, deployPort, "v1")
	require.NoError(t, err)

	assert.Equal(t, &State{
		LiveSlotIndex:       intPtr(0),
		ActiveSlots:         map[int]string{5000: "v1"},
		NextDeploySlotIndex: 1,
		VersionToPort:       map[string]int{"v1": 5000},
	}, next)
}

func TestCommitDeploy_MonotonicAdvance(t *testing.T) {
	pool := Pool{5000, 5001, 5002, 5003}
	tests := []struct {
		port     int
		wantLive int
		wantNext int
	}{
		{5001, 1, 2},
		{5003, 3, 0},
	}
	for _, tt := range tests {
		next, err := CommitDeploy(DefaultState(), pool, tt.port, "v")
		require.NoError(t, err)
		assert.Equal(t, tt.wantLive, *next.LiveSlotIndex)
		assert.Equal(t, tt.wantNext, next.NextDeploySlotIndex)
	}
}

func TestCommitDeploy_DoesNotMutateInput(t *testing.T) {
	s := threeSlotState()
	_, err := CommitDeploy(s, threePool, 5000, "v4")
	require.NoError(t, err)
	assert.Equal(t, threeSlotState(), s)
}

func TestCommitDeploy_OverwriteDropsStaleReverseEntry(t *testing.T) {
	next, err := CommitDeploy(threeSlotState(), threePool, 5000, "v4")
	require.NoError(t, err)

	assert.Equal(t, "v4", next.ActiveSlots[5000])
	assert.Equal(t, 5000, next.VersionToPort["v4"])
	assert.NotContains(t, next.VersionToPort, "v1")
	for version, port := range next.VersionToPort {
		assert.Equal(t, version, next.ActiveSlots[port])
	}
}

func TestCommitDeploy_RedeploySameVersionOnNewSlot(t *testing.T) {
	// v3 is live on 5002; deploying v3 again lands on 5000 and moves the
	// reverse entry. 5002 keeps its history entry.
	next, err := CommitDeploy(threeSlotState(), threePool, 5000, "v3")
	require.NoError(t, err)
	assert.Equal(t, 5000, next.VersionToPort["v3"])
	assert.Equal(t, "v3", next.ActiveSlots[5002])
	assert.NotContains(t, next.VersionToPort, "v1")
}

func TestCommitDeploy_Errors(t *testing.T) {
	_, err := CommitDeploy(DefaultState(), threePool, 6000, "v1")
	assert.ErrorIs(t, err, ErrPoolMismatch)

	_, err = CommitDeploy(DefaultState(), threePool, 5000, "")
	assert.ErrorIs(t, err, ErrValidation)
}

// =============================================================================
// CommitRollback Tests
// =============================================================================

func TestCommitRollback_MovesPointerOnly(t *testing.T) {
	s := threeSlotState()
	target, err := ResolveRollbackTarget(s, threePool, "")
	require.NoError(t, err)

	next, err := CommitRollback(s, threePool, target.SlotIndex)
	require.NoError(t, err)

	assert.Equal(t, 1, *next.LiveSlotIndex)
	assert.Equal(t, 2, next.NextDeploySlotIndex)
	assert.Equal(t, s.ActiveSlots, next.ActiveSlots)
	assert.Equal(t, s.VersionToPort, next.VersionToPort)
	assert.Equal(t, 2, *s.LiveSlotIndex)
}

func TestCommitRollback_OutOfRange(t *testing.T) {
	_, err := CommitRollback(threeSlotState(), threePool, 3)
	assert.ErrorIs(t, err, ErrPoolMismatch)
}
