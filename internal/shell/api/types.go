package api

import (
	"time"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// =============================================================================
// Response Types
// =============================================================================

// StateResponse is the persisted deployment state plus the derived live slot.
type StateResponse struct {
	Project     string            `json:"project"`
	Pool        []int             `json:"port_pool"`
	LivePort    *int              `json:"live_port"`
	LiveVersion string            `json:"live_version,omitempty"`
	NextPort    int               `json:"next_deploy_port"`
	State       *deployment.State `json:"state"`
}

// SlotsResponse lists every slot of the pool.
type SlotsResponse struct {
	Project string                `json:"project"`
	Slots   []deployment.SlotView `json:"slots"`
}

// SlotHealthResponse is the result of probing one slot on demand.
type SlotHealthResponse struct {
	Port      int               `json:"port"`
	URL       string            `json:"url"`
	Status    deployment.Status `json:"status"`
	Reachable bool              `json:"reachable"`
	CheckedAt time.Time         `json:"checked_at"`
}

// OperationsResponse is a page of journal entries, newest first.
type OperationsResponse struct {
	Operations []deployment.Operation `json:"operations"`
	Limit      int                    `json:"limit"`
	Offset     int                    `json:"offset"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}
