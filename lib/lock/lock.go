// Package lock provides a file-based guard so only one sync run touches
// the database at a time.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"log/slog"
)

// FileLock serializes sync runs through an exclusive lock file under the
// system temp directory.
type FileLock struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *FileLock {
	return &FileLock{logger: logger}
}

// TryLock attempts to acquire the lock for key, polling until timeout. A
// lock file older than twice the timeout is considered abandoned and
// removed.
func (fl *FileLock) TryLock(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	lockFile := fl.path(key)

	if err := os.MkdirAll(filepath.Dir(lockFile), 0750); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		// #nosec G304 - lockFile is derived from a fixed directory and key
		file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			if !os.IsExist(err) {
				return false, fmt.Errorf("failed to create lock file: %w", err)
			}
			if fl.isStale(lockFile, timeout*2) {
				fl.logger.Warn("Removing abandoned lock file", slog.String("file", lockFile))
				if err := os.Remove(lockFile); err != nil {
					fl.logger.Error("Failed to remove abandoned lock file", slog.String("file", lockFile), slog.Any("error", err))
				}
				continue
			}
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		if _, err := fmt.Fprintf(file, "%d\n%d\n", time.Now().Unix(), os.Getpid()); err != nil {
			_ = file.Close()
			return false, fmt.Errorf("failed to write lock file: %w", err)
		}
		if err := file.Close(); err != nil {
			return false, fmt.Errorf("failed to close lock file: %w", err)
		}

		fl.logger.Debug("Acquired lock", slog.String("key", key))
		return true, nil
	}

	return false, nil
}

// Unlock releases the lock for key.
func (fl *FileLock) Unlock(key string) error {
	lockFile := fl.path(key)
	if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	fl.logger.Debug("Released lock", slog.String("key", key))
	return nil
}

func (fl *FileLock) path(key string) string {
	dir := filepath.Join(os.TempDir(), "filmweb-backup-locks")
	return filepath.Clean(filepath.Join(dir, key+".lock"))
}

func (fl *FileLock) isStale(lockFile string, staleAfter time.Duration) bool {
	info, err := os.Stat(lockFile)
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > staleAfter
}
