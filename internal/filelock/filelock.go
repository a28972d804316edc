// Package filelock writes pipeline artifacts (scene source, report.json)
// safely when several runs target the same output directory.
package filelock

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileLock wraps a flock file lock for coordinating access to an artifact.
type FileLock struct {
	flock *flock.Flock
	path  string
}

// NewFileLock creates a new file lock at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		flock: flock.New(path),
		path:  path,
	}
}

// Lock acquires an exclusive lock, blocking until it is available.
func (fl *FileLock) Lock() error {
	if err := fl.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", fl.path, err)
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (fl *FileLock) TryLock() (bool, error) {
	acquired, err := fl.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to try lock on %s: %w", fl.path, err)
	}
	return acquired, nil
}

// Unlock releases the lock.
func (fl *FileLock) Unlock() error {
	if err := fl.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock on %s: %w", fl.path, err)
	}
	return nil
}

// AtomicWrite writes data to path through a temp file in the same directory
// and a rename, so readers never observe a partial artifact.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}

	tempFile = nil
	return nil
}

// LockAndWrite holds path+".lock" while atomically writing path.
func LockAndWrite(path string, data []byte) error {
	lock := NewFileLock(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	// The lock file stays behind; unlinking it would let a waiter on the
	// old inode and a newcomer on a fresh one both hold the lock
	defer lock.Unlock()

	return AtomicWrite(path, data)
}

// WriteWithBackup is LockAndWrite that first moves an existing file at path
// aside as path.backup.<unix-seconds>. It returns the backup path, or ""
// when there was nothing to back up.
func WriteWithBackup(path string, data []byte, now time.Time) (string, error) {
	lock := NewFileLock(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", err
	}
	// The lock file stays behind; unlinking it would let a waiter on the
	// old inode and a newcomer on a fresh one both hold the lock
	defer lock.Unlock()

	var backup string
	if _, err := os.Stat(path); err == nil {
		backup = fmt.Sprintf("%s.backup.%d", path, now.Unix())
		if err := os.Rename(path, backup); err != nil {
			return "", fmt.Errorf("failed to back up %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := AtomicWrite(path, data); err != nil {
		return backup, err
	}
	return backup, nil
}
