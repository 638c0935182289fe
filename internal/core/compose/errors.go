// Package compose renders the per-slot Docker Compose project from a template.
// This is part of the Functional Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("compose template is empty")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Compose structure errors
	ErrNoServices         = errors.New("compose template must define at least one service")
	ErrCircularDependency = errors.New("circular dependency detected")

	// Slot binding errors
	ErrNoIngress          = errors.New("no service publishes a port to bind to the slot")
	ErrAmbiguousIngress   = errors.New("several services publish ports; ingress service must be named")
	ErrServiceInvalidPort = errors.New("invalid port configuration")
)

// ParseError wraps errors with context about where rendering failed.
type ParseError struct {
	Field   string // e.g., "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
