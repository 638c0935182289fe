package deployment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// =============================================================================
// Deployment State
// =============================================================================

// State is the single authoritative record of which slot is live and which
// version last occupied every slot. It is loaded at the start of each
// operation and only ever replaced by a committed transition.
type State struct {
	// LiveSlotIndex is the pool index serving traffic, nil before the first
	// successful deploy.
	LiveSlotIndex *int `json:"live_slot_index"`

	// ActiveSlots maps a port to the last version deployed on it. History is
	// overwritten per slot, never appended. Keys encode as decimal strings.
	ActiveSlots map[int]string `json:"active_slots"`

	// NextDeploySlotIndex is the pool index targeted by the next deploy.
	NextDeploySlotIndex int `json:"next_deploy_slot_index"`

	// VersionToPort is the reverse index of ActiveSlots.
	VersionToPort map[string]int `json:"version_to_port_map"`
}

// DefaultState returns the state used when nothing has been persisted yet.
func DefaultState() *State {
	return &State{
		LiveSlotIndex:       nil,
		ActiveSlots:         map[int]string{},
		NextDeploySlotIndex: 0,
		VersionToPort:       map[string]int{},
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		NextDeploySlotIndex: s.NextDeploySlotIndex,
		ActiveSlots:         make(map[int]string, len(s.ActiveSlots)),
		VersionToPort:       make(map[string]int, len(s.VersionToPort)),
	}
	if s.LiveSlotIndex != nil {
		live := *s.LiveSlotIndex
		c.LiveSlotIndex = &live
	}
	for port, version := range s.ActiveSlots {
		c.ActiveSlots[port] = version
	}
	for version, port := range s.VersionToPort {
		c.VersionToPort[version] = port
	}
	return c
}

// HasLive reports whether a slot has ever been promoted to live.
func (s *State) HasLive() bool {
	return s.LiveSlotIndex != nil
}

// LiveVersion returns the version recorded on the live slot.
func (s *State) LiveVersion(pool Pool) (string, bool) {
	if !s.HasLive() || *s.LiveSlotIndex < 0 || *s.LiveSlotIndex >= pool.Size() {
		return "", false
	}
	version, ok := s.ActiveSlots[pool[*s.LiveSlotIndex]]
	return version, ok
}

// CheckPool verifies that the stored indices and ports still make sense for
// the given pool. A pool that was resized or reordered since the state was
// written makes the stored indices meaningless, so operations refuse to run.
func (s *State) CheckPool(pool Pool) error {
	if s.LiveSlotIndex != nil {
		live := *s.LiveSlotIndex
		if live < 0 || live >= len(pool) {
			return fmt.Errorf("%w: live slot index %d outside pool of %d slots", ErrPoolMismatch, live, len(pool))
		}
		if _, ok := s.ActiveSlots[pool[live]]; !ok {
			return fmt.Errorf("%w: live slot %d (port %d) has no recorded version", ErrPoolMismatch, live, pool[live])
		}
	}
	if s.NextDeploySlotIndex < 0 {
		return fmt.Errorf("%w: negative next deploy slot index %d", ErrPoolMismatch, s.NextDeploySlotIndex)
	}
	for port := range s.ActiveSlots {
		if pool.IndexOf(port) < 0 {
			return fmt.Errorf("%w: port %d recorded in state is not in the pool", ErrPoolMismatch, port)
		}
	}
	for version, port := range s.VersionToPort {
		if pool.IndexOf(port) < 0 {
			return fmt.Errorf("%w: version %q maps to port %d which is not in the pool", ErrPoolMismatch, version, port)
		}
	}
	return nil
}

// =============================================================================
// Serialization
// =============================================================================

// Encode serializes the state in the on-disk format: indented JSON with the
// stable key set live_slot_index, active_slots, next_deploy_slot_index,
// version_to_port_map.
func Encode(s *State) ([]byte, error) {
	out := *s
	if out.ActiveSlots == nil {
		out.ActiveSlots = map[int]string{}
	}
	if out.VersionToPort == nil {
		out.VersionToPort = map[string]int{}
	}
	data, err := json.MarshalIndent(&out, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses the on-disk format. Missing maps decode as empty maps and a
// missing next_deploy_slot_index decodes as 0.
func Decode(data []byte) (*State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("decode state: empty document")
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if s.ActiveSlots == nil {
		s.ActiveSlots = map[int]string{}
	}
	if s.VersionToPort == nil {
		s.VersionToPort = map[string]int{}
	}
	return &s, nil
}
