// Package ipc shares watcher state with other asrsub invocations through
// files under ~/.cache/asrsub.
package ipc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// WatchState is the watcher's run state as shown by `asrsub status`.
type WatchState string

const (
	StateWatching WatchState = "watching" // fsnotify events
	StatePolling  WatchState = "polling"  // fsnotify unavailable, directory scans
	StatePaused   WatchState = "paused"   // new files are left for a later rescan
	StateStopped  WatchState = "stopped"
)

// StatusSnapshot represents the watcher state at a point in time
type StatusSnapshot struct {
	State            WatchState `json:"state"`
	PID              int        `json:"pid"`
	WatchDir         string     `json:"watch_dir"`
	OutputDir        string     `json:"output_dir,omitempty"`
	Backend          string     `json:"backend,omitempty"`
	Processed        int        `json:"processed"`         // files converted
	Failed           int        `json:"failed"`            // files with no usable result
	SubtitleFailures int        `json:"subtitle_failures"` // recognized but no track
	LastFile         string     `json:"last_file"`
	LastError        string     `json:"last_error"`
	StartedAt        time.Time  `json:"started_at"`
	Timestamp        time.Time  `json:"timestamp"` // Snapshot time
}

// Dir returns ~/.cache/asrsub.
func Dir() string {
	return filepath.Join(os.Getenv("HOME"), ".cache", "asrsub")
}

// StatusPath returns the status file location.
func StatusPath() string {
	return filepath.Join(Dir(), "status.json")
}

// WriteStatus persists StatusSnapshot to ~/.cache/asrsub/status.json using atomic write
func WriteStatus(status *StatusSnapshot) error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	return atomicWriteJSON(StatusPath(), status)
}

// ReadStatus loads StatusSnapshot from ~/.cache/asrsub/status.json
func ReadStatus() (*StatusSnapshot, error) {
	data, err := os.ReadFile(StatusPath())
	if err != nil {
		return nil, err
	}

	var status StatusSnapshot
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}

	return &status, nil
}

// atomicWriteJSON writes data to a file atomically using temp file + rename
func atomicWriteJSON(path string, data interface{}) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "status-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	// Sync to disk before rename
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	tmpFile = nil // Prevent defer cleanup

	return os.Rename(tmpPath, path)
}
