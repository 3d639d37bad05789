package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// acquireLock makes sure only one inferd serves a given port from lockDir.
func acquireLock(lockDir string, port int) (*flock.Flock, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(lockDir, fmt.Sprintf("inferd-%d.lock", port)))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another inferd instance is already serving this port")
	}
	return lock, nil
}
