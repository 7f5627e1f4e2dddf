package local

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestFileLockExcludesSecondHolder(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), DefaultKey))
	first := NewFileLock(path)
	second := NewFileLock(path)
	ctx := context.Background()
	if err := first.Lock(ctx); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 80*time.Millisecond)
	defer cancel()
	if err := second.Lock(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second holder must wait, got %v", err)
	}

	acquired := make(chan error, 1)
	go func() { acquired <- second.Lock(ctx) }()
	time.Sleep(30 * time.Millisecond)
	if err := first.Close(); err != nil {
		t.Fatalf("release: %v", err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("second lock: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("second holder never acquired the lock")
	}
	if err := second.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if second.Path() != path {
		t.Fatalf("path = %s", second.Path())
	}
}
