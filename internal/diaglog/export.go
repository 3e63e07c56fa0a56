package diaglog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Version is injected at link time from the main package; defaults to "dev".
var Version = "dev"

// DiagBundle is the first line written to the export file (valid NDJSON).
type DiagBundle struct {
	ExportedAt    string   `json:"exported_at"`
	ASRSubVersion string   `json:"asrsub_version"`
	GoVersion     string   `json:"go_version"`
	OS            string   `json:"os"`
	Arch          string   `json:"arch"`
	LogFile       string   `json:"log_file"`
	Segments      []string `json:"segments"` // files read, oldest first
	EntryCount    int      `json:"entry_count"`
}

// Export copies the debug log at logPath, preceded by its rotated
// generation when one exists, into dest/asrsub-diag-<ts>.ndjson behind a
// DiagBundle header line. It returns the bundle path and the number of log
// lines included.
func Export(logPath, dest string) (path string, lines int, err error) {
	if _, err := os.Stat(logPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, fmt.Errorf("log file not found at %s: %w", logPath, os.ErrNotExist)
		}
		return "", 0, fmt.Errorf("log file unreadable: %w", err)
	}

	var (
		entries  [][]byte
		segments []string
	)
	for _, p := range []string{backupPath(logPath), logPath} {
		got, err := readLines(p)
		if errors.Is(err, os.ErrNotExist) && p != logPath {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("log file unreadable: %w", err)
		}
		segments = append(segments, p)
		entries = append(entries, got...)
	}

	outPath := filepath.Join(dest, "asrsub-diag-"+time.Now().UTC().Format("20060102T150405")+".ndjson")
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("output file could not be created: %w", err)
	}
	defer func() { _ = out.Close() }()

	header, err := json.Marshal(DiagBundle{
		ExportedAt:    time.Now().UTC().Format(time.RFC3339),
		ASRSubVersion: Version,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		LogFile:       logPath,
		Segments:      segments,
		EntryCount:    len(entries),
	})
	if err != nil {
		return "", 0, err
	}

	w := bufio.NewWriter(out)
	if _, err := w.Write(append(header, '\n')); err != nil {
		return "", 0, err
	}
	for _, line := range entries {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return "", 0, err
		}
	}
	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	return outPath, len(entries), nil
}

// readLines returns the non-empty lines of path.
func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLogSize)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		lines = append(lines, append([]byte(nil), scanner.Bytes()...))
	}
	return lines, scanner.Err()
}
