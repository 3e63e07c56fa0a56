// Package pidfile keeps a single watcher instance per user with an
// advisory lock on a PID file.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// PIDFile manages a PID file for preventing duplicate instances
type PIDFile struct {
	path string
	pid  int
	lock *flock.Flock
}

// New locks the PID file at path and writes the current PID into it.
// Returns an error naming the holder if another process owns the lock.
// A leftover file from a crashed process is not locked and is reused.
func New(path string) (*PIDFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create PID directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock PID file: %w", err)
	}
	if !locked {
		if holder, ok := readPID(path); ok {
			return nil, fmt.Errorf("another instance is already running (PID %d)", holder)
		}
		return nil, fmt.Errorf("another instance is already running")
	}

	currentPID := os.Getpid()
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", currentPID)), 0644); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &PIDFile{
		path: path,
		pid:  currentPID,
		lock: lock,
	}, nil
}

// PID returns the process ID recorded in the file.
func (p *PIDFile) PID() int {
	if p == nil {
		return 0
	}
	return p.pid
}

// Remove deletes the PID file and releases the lock.
func (p *PIDFile) Remove() error {
	if p == nil {
		return nil
	}
	defer func() { _ = p.lock.Unlock() }()

	// Only remove if it contains our PID
	if pid, ok := readPID(p.path); ok && pid == p.pid {
		return os.Remove(p.path)
	}
	return nil
}

// Holder returns the PID recorded at path if the file is currently locked
// by a live instance.
func Holder(path string) (int, bool) {
	if _, err := os.Stat(path); err != nil {
		return 0, false
	}
	lock := flock.New(path)
	locked, err := lock.TryRLock()
	if err != nil {
		return 0, false
	}
	if locked {
		_ = lock.Unlock()
		return 0, false
	}
	return readPID(path)
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

// GetPIDFilePath returns the standard PID file path for a given application name
func GetPIDFilePath(appName string) string {
	homeDir := os.Getenv("HOME")
	return filepath.Join(homeDir, ".cache", "asrsub", appName+".pid")
}
