// Package storetest provides contract tests for [store.StateStore] and
// [store.Journal] implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/artpar/ngreen/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory creates a fresh, empty [store.StateStore] for each test.
type Factory func(t *testing.T) store.StateStore

// JournalFactory creates a fresh, empty [store.Journal] for each test.
type JournalFactory func(t *testing.T) store.Journal

func intPtr(i int) *int { return &i }

func sampleState() *deployment.State {
	return &deployment.State{
		LiveSlotIndex:       intPtr(1),
		ActiveSlots:         map[int]string{5000: "v1", 5001: "v2"},
		NextDeploySlotIndex: 0,
		VersionToPort:       map[string]int{"v1": 5000, "v2": 5001},
	}
}

// Run exercises the [store.StateStore] contract.
func Run(t *testing.T, factory Factory) {
	t.Run("LoadMissingReturnsDefault", func(t *testing.T) {
		s := factory(t)
		state, err := s.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, deployment.DefaultState(), state)
	})

	t.Run("LoadIsIdempotent", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		first, err := s.Load(ctx)
		require.NoError(t, err)
		second, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, sampleState()))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, sampleState(), got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, sampleState()))

		next, err := deployment.CommitDeploy(sampleState(), deployment.Pool{5000, 5001}, 5000, "v3")
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, next))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, next, got)
		assert.NotContains(t, got.VersionToPort, "v1")
	})

	t.Run("SaveDefaultState", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, deployment.DefaultState()))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, got.LiveSlotIndex)
		assert.Empty(t, got.ActiveSlots)
	})
}

// RunJournal exercises the [store.Journal] contract.
func RunJournal(t *testing.T, factory JournalFactory) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("RecordAssignsID", func(t *testing.T) {
		j := factory(t)
		op := &deployment.Operation{
			Project:   "shop",
			Action:    deployment.ActionDeploy,
			Version:   "v1",
			Port:      5000,
			Phase:     deployment.PhaseResolving,
			StartedAt: base,
		}
		require.NoError(t, j.RecordOperation(context.Background(), op))
		assert.NotEmpty(t, op.ID)
	})

	t.Run("RecordUpdatesByID", func(t *testing.T) {
		j := factory(t)
		ctx := context.Background()
		op := &deployment.Operation{
			Project:   "shop",
			Action:    deployment.ActionDeploy,
			Version:   "v2",
			Port:      5001,
			Phase:     deployment.PhaseDeploying,
			StartedAt: base,
		}
		require.NoError(t, j.RecordOperation(ctx, op))

		finished := base.Add(30 * time.Second)
		op.Phase = deployment.PhaseFailed
		op.Observed = deployment.StatusUnreachable
		op.Error = "health check failed"
		op.CleanupFailed = true
		op.PreviousLive = intPtr(5000)
		op.FinishedAt = &finished
		require.NoError(t, j.RecordOperation(ctx, op))

		ops, err := j.ListOperations(ctx, "shop", store.DefaultListOptions())
		require.NoError(t, err)
		require.Len(t, ops, 1)
		got := ops[0]
		assert.Equal(t, op.ID, got.ID)
		assert.Equal(t, deployment.PhaseFailed, got.Phase)
		assert.Equal(t, deployment.StatusUnreachable, got.Observed)
		assert.True(t, got.CleanupFailed)
		require.NotNil(t, got.PreviousLive)
		assert.Equal(t, 5000, *got.PreviousLive)
		require.NotNil(t, got.FinishedAt)
		assert.True(t, finished.Equal(*got.FinishedAt))
		assert.True(t, base.Equal(got.StartedAt))
	})

	t.Run("ListNewestFirstWithLimit", func(t *testing.T) {
		j := factory(t)
		ctx := context.Background()
		for i, version := range []string{"v1", "v2", "v3"} {
			require.NoError(t, j.RecordOperation(ctx, &deployment.Operation{
				Project:   "shop",
				Action:    deployment.ActionDeploy,
				Version:   version,
				Phase:     deployment.PhaseCommitted,
				StartedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, j.RecordOperation(ctx, &deployment.Operation{
			Project:   "other",
			Action:    deployment.ActionRollback,
			Phase:     deployment.PhaseCommitted,
			StartedAt: base.Add(time.Hour),
		}))

		ops, err := j.ListOperations(ctx, "shop", store.ListOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, "v3", ops[0].Version)
		assert.Equal(t, "v2", ops[1].Version)

		all, err := j.ListOperations(ctx, "", store.DefaultListOptions())
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, "other", all[0].Project)
	})
}
