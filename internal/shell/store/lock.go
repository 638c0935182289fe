package store

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/artpar/ngreen/internal/core/deployment"
	"golang.org/x/sys/unix"
)

// =============================================================================
// State Lock
// =============================================================================

// Lock is an advisory exclusive lock next to the state it guards. It only
// serialises invocations on one host that agree to take it.
type Lock struct {
	path string
	file *os.File
}

// LockPath returns the lock file guarding statePath.
func LockPath(statePath string) string {
	return statePath + ".lock"
}

// AcquireLock takes the lock at path without blocking. It fails with
// deployment.ErrLocked when another process holds it.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", deployment.ErrLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	// Holder PID is informational only.
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}

	return &Lock{path: path, file: f}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. The lock file is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
