package store

import (
	"context"

	"github.com/artpar/ngreen/internal/core/deployment"
)

// =============================================================================
// Store Interfaces
// =============================================================================

// StateStore persists the single deployment State.
//
// Load returns deployment.DefaultState() when nothing has been persisted yet
// and never defaults silently over a document it cannot decode. Save replaces
// the persisted state atomically; a failed Save leaves the previous document
// in place and returns an error wrapping deployment.ErrPersistence.
type StateStore interface {
	Load(ctx context.Context) (*deployment.State, error)
	Save(ctx context.Context, state *deployment.State) error
}

// Journal records deploy and rollback attempts.
type Journal interface {
	// RecordOperation inserts the operation or updates the record with the
	// same ID. An empty ID is filled in.
	RecordOperation(ctx context.Context, op *deployment.Operation) error

	// ListOperations returns the newest operations first. An empty project
	// lists every project.
	ListOperations(ctx context.Context, project string, opts ListOptions) ([]deployment.Operation, error)
}

// =============================================================================
// List Options
// =============================================================================

// ListOptions contains pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  50,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
