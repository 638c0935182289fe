package deployment

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

// threeSlotState is live on slot 2 of a 3-slot pool with every slot used.
func threeSlotState() *State {
	return &State{
		LiveSlotIndex:       intPtr(2),
		ActiveSlots:         map[int]string{5000: "v1", 5001: "v2", 5002: "v3"},
		NextDeploySlotIndex: 0,
		VersionToPort:       map[string]int{"v1": 5000, "v2": 5001, "v3": 5002},
	}
}

var threePool = Pool{5000, 5001, 5002}

// =============================================================================
// Serialization Tests
// =============================================================================

func TestEncode_DefaultState(t *testing.T) {
	data, err := Encode(DefaultState())
	require.NoError(t, err)

	want := "{\n" +
		"    \"live_slot_index\": null,\n" +
		"    \"active_slots\": {},\n" +
		"    \"next_deploy_slot_index\": 0,\n" +
		"    \"version_to_port_map\": {}\n" +
		"}\n"
	assert.Equal(t, want, string(data))
}

func TestEncode_StringPortKeys(t *testing.T) {
	data, err := Encode(threeSlotState())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"5001": "v2"`)
	assert.Contains(t, string(data), `"v3": 5002`)
	assert.Contains(t, string(data), `"live_slot_index": 2`)
}

func TestEncode_NilMapsWriteEmptyObjects(t *testing.T) {
	data, err := Encode(&State{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"active_slots": {}`)
	assert.Contains(t, string(data), `"version_to_port_map": {}`)
}

func TestDecode_RoundTrip(t *testing.T) {
	original := threeSlotState()
	data, err := Encode(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)

	again, err := Encode(decoded)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestDecode_MissingFieldsDefault(t *testing.T) {
	s, err := Decode([]byte(`{"live_slot_index": 1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, *s.LiveSlotIndex)
	assert.NotNil(t, s.ActiveSlots)
	assert.NotNil(t, s.VersionToPort)
	assert.Equal(t, 0, s.NextDeploySlotIndex)
}

func TestDecode_Errors(t *testing.T) {
	for _, doc := range []string{"", "   \n", "{", `{"active_slots": {"abc": "v1"}}`, `[]`} {
		t.Run(doc, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// State Helper Tests
// =============================================================================

func TestClone_IsDeep(t *testing.T) {
	original := threeSlotState()
	c := original.Clone()

	*c.LiveSlotIndex = 0
	c.ActiveSlots[5000] = "changed"
	c.VersionToPort["v9"] = 5000

	assert.Equal(t, threeSlotState(), original)
}

func TestLiveVersion(t *testing.T) {
	v, ok := threeSlotState().LiveVersion(threePool)
	assert.True(t, ok)
	assert.Equal(t, "v3", v)

	_, ok = DefaultState().LiveVersion(threePool)
	assert.False(t, ok)
	assert.False(t, DefaultState().HasLive())
}

func TestCheckPool(t *testing.T) {
	tests := []struct {
		name    string
		state   *State
		pool    Pool
		wantErr bool
	}{
		{"default state", DefaultState(), Pool{5000}, false},
		{"matching pool", threeSlotState(), threePool, false},
		{"shrunk pool", threeSlotState(), Pool{5000, 5001}, true},
		{"different ports", threeSlotState(), Pool{6000, 6001, 6002}, true},
		{"live slot without version", &State{LiveSlotIndex: intPtr(1), ActiveSlots: map[int]string{5000: "v1"}, VersionToPort: map[string]int{}}, threePool, true},
		{"negative next", &State{NextDeploySlotIndex: -1, ActiveSlots: map[int]string{}, VersionToPort: map[string]int{}}, threePool, true},
		{"reverse map outside pool", &State{ActiveSlots: map[int]string{}, VersionToPort: map[string]int{"v1": 7000}}, threePool, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.CheckPool(tt.pool)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrPoolMismatch))
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
