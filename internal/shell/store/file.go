package store

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/artpar/ngreen/internal/core/deployment"
	"github.com/moby/sys/atomicwriter"
)

// DefaultStateFile is the state file name used when none is configured.
const DefaultStateFile = "deployment_state.json"

// =============================================================================
// FileStore
// =============================================================================

// FileStore implements StateStore with a JSON file. Writes go to a temporary
// file in the same directory which is synced and renamed over the target, so
// a crash leaves either the old or the new document.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a store for the state file at path.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if path == "" {
		path = DefaultStateFile
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		path:   path,
		logger: logger.With("component", "file_store"),
	}
}

// Path returns the state file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields the default state.
func (s *FileStore) Load(ctx context.Context) (*deployment.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("state file not found, using default state", "path", s.path)
		return deployment.DefaultState(), nil
	}
	if err != nil {
		return nil, NewStoreError("Load", "state", s.path, err.Error(), ErrReadFailed)
	}

	state, err := deployment.Decode(data)
	if err != nil {
		return nil, NewStoreError("Load", "state", s.path, err.Error(), ErrInvalidData)
	}
	return state, nil
}

// Save atomically replaces the state file.
func (s *FileStore) Save(ctx context.Context, state *deployment.State) error {
	if err := ctx.Err(); err != nil {
		return NewStoreError("Save", "state", s.path, err.Error(), deployment.ErrPersistence)
	}

	data, err := deployment.Encode(state)
	if err != nil {
		return NewStoreError("Save", "state", s.path, err.Error(), deployment.ErrPersistence)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return NewStoreError("Save", "state", s.path, err.Error(), deployment.ErrPersistence)
		}
	}

	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return NewStoreError("Save", "state", s.path, err.Error(), deployment.ErrPersistence)
	}

	s.logger.Debug("state saved", "path", s.path, "bytes", len(data))
	return nil
}
