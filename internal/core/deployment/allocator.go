package deployment

import "fmt"

// =============================================================================
// Slot Resolution (Pure Functions)
// =============================================================================

// ResolveSlots returns the port the next deploy targets and the port currently
// live. livePort is nil before the first successful deploy.
//
// The stored next index is reduced modulo the pool size so a state written
// against a larger pool still lands inside this one. That clamp keeps the
// lookup in bounds; CheckPool is what actually detects a changed pool.
//
// Example:
//
//	ResolveSlots(DefaultState(), Pool{5000, 5001}) // 5000, nil
func ResolveSlots(s *State, pool Pool) (deployPort int, livePort *int) {
	n := pool.Size()
	next := ((s.NextDeploySlotIndex % n) + n) % n
	deployPort = pool[next]

	if s.HasLive() && *s.LiveSlotIndex >= 0 && *s.LiveSlotIndex < n {
		live := pool[*s.LiveSlotIndex]
		livePort = &live
	}
	return deployPort, livePort
}

// RollbackTarget is a resolved rollback destination.
type RollbackTarget struct {
	Port      int
	SlotIndex int
	Version   string
}

// ResolveRollbackTarget resolves where a rollback should move the live pointer.
//
// An empty version means "previous live": the slot just before the live one,
// wrapping around the pool. Otherwise the version is looked up in the reverse
// index. A version whose slot has since been overwritten by another deploy is
// reported as unknown, since the slot no longer runs it.
func ResolveRollbackTarget(s *State, pool Pool, version string) (RollbackTarget, error) {
	if version == "" {
		return resolvePreviousLive(s, pool)
	}

	port, ok := s.VersionToPort[version]
	if !ok {
		return RollbackTarget{}, fmt.Errorf("%w: %q not found in deployment history", ErrUnknownVersion, version)
	}
	idx := pool.IndexOf(port)
	if idx < 0 {
		return RollbackTarget{}, fmt.Errorf("%w: version %q is on port %d which is not in the pool", ErrPoolMismatch, version, port)
	}
	if current := s.ActiveSlots[port]; current != version {
		return RollbackTarget{}, fmt.Errorf("%w: %q was replaced on port %d by %q", ErrUnknownVersion, version, port, current)
	}
	return RollbackTarget{Port: port, SlotIndex: idx, Version: version}, nil
}

func resolvePreviousLive(s *State, pool Pool) (RollbackTarget, error) {
	if !s.HasLive() {
		return RollbackTarget{}, fmt.Errorf("%w: no live deployment found", ErrNoPreviousVersion)
	}
	n := pool.Size()
	idx := (*s.LiveSlotIndex - 1 + n) % n
	port := pool[idx]
	version, ok := s.ActiveSlots[port]
	if !ok || version == "" {
		return RollbackTarget{}, fmt.Errorf("%w: slot %d (port %d) has no recorded version", ErrNoPreviousVersion, idx, port)
	}
	return RollbackTarget{Port: port, SlotIndex: idx, Version: version}, nil
}
