package local

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetry = 20 * time.Millisecond

// FileLock is an advisory lock on a file beside the local blob. Processes
// sharing one collection hold it while they read, write and sync the blob.
type FileLock struct {
	f *flock.Flock
}

// NewFileLock returns an unlocked lock on path. The file is created on first
// use.
func NewFileLock(path string) *FileLock {
	return &FileLock{f: flock.New(path)}
}

// LockPath returns the lock file guarding the blob at blobPath.
func LockPath(blobPath string) string { return blobPath + ".lock" }

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.f.Path() }

// Lock blocks until the lock is held or ctx is done.
func (l *FileLock) Lock(ctx context.Context) error {
	ok, err := l.f.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.f.Path(), err)
	}
	if !ok {
		return fmt.Errorf("lock %s: %w", l.f.Path(), ctx.Err())
	}
	return nil
}

// Unlock releases the lock.
func (l *FileLock) Unlock() error {
	if err := l.f.Unlock(); err != nil {
		return fmt.Errorf("unlock %s: %w", l.f.Path(), err)
	}
	return nil
}

// Close releases the lock so a FileLock can sit in a closer list.
func (l *FileLock) Close() error { return l.Unlock() }
