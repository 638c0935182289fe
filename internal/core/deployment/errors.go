package deployment

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Request errors, raised before any state is touched
	ErrValidation   = errors.New("invalid request")
	ErrPoolMismatch = fmt.Errorf("%w: port pool does not match stored state", ErrValidation)

	// Rollback resolution errors, raised before any service action
	ErrUnknownVersion    = errors.New("unknown version")
	ErrNoPreviousVersion = errors.New("no previous version")

	// Execution errors
	ErrServiceAction = errors.New("service action failed")
	ErrHealthCheck   = errors.New("health check failed")
	ErrPersistence   = errors.New("state persistence failed")
	ErrCleanup       = errors.New("cleanup failed")
	ErrLocked        = errors.New("another operation holds the state lock")
)

// OperationError wraps a failure of one deploy or rollback step with context.
// Err is the primary cause and is what errors.Is/As see. A failure during the
// best-effort cleanup that followed is kept in CleanupErr and reported
// alongside, never in place of, the primary cause.
type OperationError struct {
	Op         string // Step that failed (e.g., "bring-up", "health-check")
	Port       int    // Slot port if applicable
	Message    string
	Err        error
	CleanupErr error
}

func (e *OperationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Port != 0 {
		msg = fmt.Sprintf("%s port %d: %s", e.Op, e.Port, msg)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.CleanupErr != nil {
		msg = fmt.Sprintf("%s (cleanup also failed: %v)", msg, e.CleanupErr)
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError creates a new OperationError.
func NewOperationError(op string, port int, message string, err error) *OperationError {
	return &OperationError{
		Op:      op,
		Port:    port,
		Message: message,
		Err:     err,
	}
}

// CleanupFailed reports whether err carries a secondary cleanup failure.
func CleanupFailed(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr) && opErr.CleanupErr != nil
}
