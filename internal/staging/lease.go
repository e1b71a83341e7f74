// Package staging owns the per-batch working directories that hold
// intermediate audio and video artifacts.
//
// Each batch leases <work_dir>/batch-<id> and holds an flock on its lock
// file for the lease lifetime, so concurrent mixtape processes sharing a
// work_dir never reuse or clean up each other's directories.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

const (
	dirPrefix = "batch-"
	lockName  = ".lock"
	workName  = "work"
)

// ErrLeaseHeld is returned when another process holds the directory.
var ErrLeaseHeld = errors.New("work directory is leased by another process")

// Lease is an exclusive claim on one batch's working directory.
type Lease struct {
	root string
	lock *flock.Flock
}

// Acquire creates and locks the working directory for batchID under root.
func Acquire(root, batchID string) (*Lease, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("work_dir is required")
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, errors.New("batch id is required")
	}
	dir := filepath.Join(root, dirPrefix+batchID)
	if err := os.MkdirAll(filepath.Join(dir, workName), 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock work dir: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, dir)
	}
	return &Lease{root: dir, lock: lock}, nil
}

// Root is the leased batch directory.
func (l *Lease) Root() string {
	return l.root
}

// WorkDir is where stages write intermediate artifacts.
func (l *Lease) WorkDir() string {
	return filepath.Join(l.root, workName)
}

// Reset empties the work directory before the next job reuses it.
func (l *Lease) Reset() error {
	dir := l.WorkDir()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear work dir: %w", err)
	}
	return os.MkdirAll(dir, 0o755)
}

// Release unlocks the lease. Unless keep is set the batch directory is
// removed first.
func (l *Lease) Release(keep bool) error {
	var errs []error
	if !keep {
		if err := os.RemoveAll(l.WorkDir()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := l.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("unlock: %w", err))
	}
	if !keep {
		if err := os.RemoveAll(l.root); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// held reports whether some process currently holds dir's lease.
func held(dir string) bool {
	lock := flock.New(filepath.Join(dir, lockName))
	ok, err := lock.TryLock()
	if err != nil {
		return true
	}
	if ok {
		_ = lock.Unlock()
		return false
	}
	return true
}
