package lockfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		t.Errorf("expected lock file to exist: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("expected lock file to be removed after release")
	}

	// Release is idempotent.
	if err := lock.Release(); err != nil {
		t.Fatalf("second release failed: %v", err)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("unexpected release error: %v", err)
	}
	lock2, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("expected reacquire to succeed: %v", err)
	}
	lock2.Release()
}

func TestExtractPID(t *testing.T) {
	if got := extractPIDFromLockInfo("pid=1234\n"); got != 1234 {
		t.Errorf("expected 1234, got %d", got)
	}
	if got := extractPIDFromLockInfo("garbage"); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
