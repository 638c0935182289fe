package deployment

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// Operation Phases
// =============================================================================

// Phase is the step an operation has reached.
type Phase string

const (
	PhaseResolving      Phase = "resolving"
	PhaseDeploying      Phase = "deploying"
	PhaseHealthChecking Phase = "health_checking"
	PhaseCommitting     Phase = "committing"
	PhaseCleaningUp     Phase = "cleaning_up"
	PhaseCommitted      Phase = "committed"
	PhaseFailed         Phase = "failed"
)

// ErrInvalidPhaseTransition is returned for a phase change the protocol forbids.
var ErrInvalidPhaseTransition = errors.New("invalid phase transition")

// validPhaseTransitions defines the allowed phase changes. Deploys go through
// deploying; rollbacks go straight from resolving to health_checking. Only the
// deploy path cleans up.
var validPhaseTransitions = map[Phase][]Phase{
	PhaseResolving:      {PhaseDeploying, PhaseHealthChecking, PhaseFailed},
	PhaseDeploying:      {PhaseHealthChecking, PhaseCleaningUp},
	PhaseHealthChecking: {PhaseCommitting, PhaseCleaningUp, PhaseFailed},
	PhaseCommitting:     {PhaseCommitted, PhaseFailed},
	PhaseCleaningUp:     {PhaseFailed},
	PhaseCommitted:      {}, // Terminal
	PhaseFailed:         {}, // Terminal
}

// ValidatePhaseTransition checks if a phase change is valid.
func ValidatePhaseTransition(from, to Phase) error {
	for _, p := range validPhaseTransitions[from] {
		if p == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, from, to)
}

// Terminal reports whether no further phase can follow.
func (p Phase) Terminal() bool {
	return p == PhaseCommitted || p == PhaseFailed
}

// =============================================================================
// Operation Record
// =============================================================================

// Operation is the journal record of one deploy or rollback attempt.
type Operation struct {
	ID            string     `json:"id" db:"id"`
	Project       string     `json:"project" db:"project"`
	Action        Action     `json:"action" db:"action"`
	Version       string     `json:"version" db:"version"`
	Port          int        `json:"port" db:"port"`
	PreviousLive  *int       `json:"previous_live_port,omitempty" db:"previous_live_port"`
	Phase         Phase      `json:"phase" db:"phase"`
	Observed      Status     `json:"observed_status,omitempty" db:"observed_status"`
	Error         string     `json:"error,omitempty" db:"error"`
	CleanupFailed bool       `json:"cleanup_failed" db:"cleanup_failed"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Succeeded reports whether the operation committed.
func (o Operation) Succeeded() bool {
	return o.Phase == PhaseCommitted
}
