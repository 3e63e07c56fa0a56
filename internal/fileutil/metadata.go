// Package fileutil provides output path helpers and the per-job sidecar.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// JobMetadata is the sidecar written alongside each converted result.
type JobMetadata struct {
	Version     string    `json:"version"`
	SessionID   string    `json:"session_id"`
	Source      string    `json:"source"`
	Backend     string    `json:"backend,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Formats     []string  `json:"formats"`
	Outputs     []string  `json:"outputs,omitempty"`
	Subtitle    *SubMeta  `json:"subtitle"`
}

// SubMeta captures subtitle generation details for the sidecar.
type SubMeta struct {
	Success      bool   `json:"success"`
	Captions     int    `json:"captions"`
	MaxChars     int    `json:"max_chars_per_line"`
	Error        string `json:"error,omitempty"`
	FailureStage string `json:"failure_stage,omitempty"`
}

// WriteMetadata writes <base>.meta.json using an atomic temp + rename.
func WriteMetadata(base string, meta *JobMetadata) error {
	metaPath := MetadataPath(base)
	dir := filepath.Dir(metaPath)

	tmpFile, err := os.CreateTemp(dir, "meta-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close metadata temp: %w", err)
	}
	success = true

	if err := os.Rename(tmpPath, metaPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads a sidecar previously written by WriteMetadata.
func ReadMetadata(base string) (*JobMetadata, error) {
	data, err := os.ReadFile(MetadataPath(base))
	if err != nil {
		return nil, err
	}
	var meta JobMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// MetadataPath returns <base>.meta.json.
func MetadataPath(base string) string {
	return base + ".meta.json"
}
