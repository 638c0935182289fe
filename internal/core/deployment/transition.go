package deployment

import "fmt"

// =============================================================================
// Commit Transitions
// =============================================================================

// CommitDeploy returns the state after promoting version on port to live.
// The input state is not modified.
//
// The live index becomes the port's slot, the next index the slot after it,
// and both history maps record the version. If the port previously carried a
// different version, that version's reverse entry is dropped so every entry in
// VersionToPort still names a port that runs it.
func CommitDeploy(s *State, pool Pool, port int, version string) (*State, error) {
	idx := pool.IndexOf(port)
	if idx < 0 {
		return nil, fmt.Errorf("%w: deploy port %d is not in the pool", ErrPoolMismatch, port)
	}
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrValidation)
	}

	next := s.Clone()
	if previous, ok := next.ActiveSlots[port]; ok && previous != version {
		if next.VersionToPort[previous] == port {
			delete(next.VersionToPort, previous)
		}
	}

	next.LiveSlotIndex = &idx
	next.NextDeploySlotIndex = (idx + 1) % len(pool)
	next.ActiveSlots[port] = version
	next.VersionToPort[version] = port
	return next, nil
}

// CommitRollback returns the state after moving the live pointer to slotIndex.
// Rollback never rewrites history: ActiveSlots and VersionToPort are copied
// unchanged.
func CommitRollback(s *State, pool Pool, slotIndex int) (*State, error) {
	if slotIndex < 0 || slotIndex >= len(pool) {
		return nil, fmt.Errorf("%w: rollback slot %d outside pool of %d slots", ErrPoolMismatch, slotIndex, len(pool))
	}
	next := s.Clone()
	next.LiveSlotIndex = &slotIndex
	next.NextDeploySlotIndex = (slotIndex + 1) % len(pool)
	return next, nil
}
