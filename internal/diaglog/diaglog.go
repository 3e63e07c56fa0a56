// Package diaglog provides structured NDJSON diagnostic logging for asrsub.
// Activated by ASRSUB_DEBUG=true or an explicit log file in the config. When
// neither is set, all Log calls are no-ops and no file is created.
package diaglog

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ── Component labels ─────────────────────────────────────────────────────────

const (
	ComponentCLI        = "asrsub"
	ComponentCaptioner  = "captioner"
	ComponentFunASRHTTP = "funasr-http"
	ComponentFunASRWS   = "funasr-ws"
	ComponentPipeline   = "pipeline"
	ComponentWatcher    = "watcher"
	ComponentDiagExport = "diag-export"
)

// ── Event names ──────────────────────────────────────────────────────────────

const (
	EventTranscribeStart   = "transcribe_start"
	EventTranscribeRetry   = "transcribe_retry"
	EventTranscribeDone    = "transcribe_done"
	EventTranscribeFailed  = "transcribe_failed"
	EventSubtitleGenerated = "subtitle_generated"
	EventSubtitleFailed    = "subtitle_failed"
	EventWSConnect         = "ws_connect"
	EventWSSend            = "ws_send"
	EventWSRecv            = "ws_recv"
	EventWSDisconnect      = "ws_disconnect"
	EventWatchStart        = "watch_start"
	EventWatchStop         = "watch_stop"
	EventWatchPolling      = "watch_polling_fallback"
	EventFileDetected      = "file_detected"
	EventFileProcessed     = "file_processed"
	EventFileFailed        = "file_failed"
	EventCommand           = "command_received"
)

// ── LogEntry ─────────────────────────────────────────────────────────────────

// LogEntry is one structured event record written as a single JSON line.
type LogEntry struct {
	Timestamp string      `json:"ts"`                   // RFC3339Nano
	Component string      `json:"component"`            // see Component* constants
	Event     string      `json:"event"`                // see Event* constants
	SessionID string      `json:"session_id,omitempty"` // one per processed input
	Reason    string      `json:"reason,omitempty"`
	Error     string      `json:"error,omitempty"`
	Payload   interface{} `json:"payload,omitempty"` // redacted before write
}

// ── Logger ───────────────────────────────────────────────────────────────────

// Logger writes LogEntry values to a rolling NDJSON file through zerolog.
// A disabled logger drops every entry.
type Logger struct {
	rw      *rollingWriter
	zl      zerolog.Logger
	mu      sync.Mutex
	enabled bool
}

// maxLogSize caps the debug log; the file is truncated when exceeded.
const maxLogSize = 10 * 1024 * 1024

// New opens (or creates) the NDJSON log file at path. If debug mode is
// disabled, path is ignored and a no-op logger is returned.
func New(path string) (*Logger, error) {
	if !IsDebugEnabled() {
		return &Logger{enabled: false}, nil
	}
	return Open(path)
}

// Open opens the log file at path regardless of ASRSUB_DEBUG.
func Open(path string) (*Logger, error) {
	rw, err := newRollingWriter(path, maxLogSize)
	if err != nil {
		return nil, err
	}
	return &Logger{rw: rw, zl: zerolog.New(rw), enabled: true}, nil
}

// Log appends entry as one JSON line. Sensitive payload fields are redacted
// before serialisation.
func (l *Logger) Log(entry LogEntry) {
	if l == nil || !l.enabled {
		return
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ev := l.zl.Log().
		Str("ts", entry.Timestamp).
		Str("component", entry.Component).
		Str("event", entry.Event)
	if entry.SessionID != "" {
		ev = ev.Str("session_id", entry.SessionID)
	}
	if entry.Reason != "" {
		ev = ev.Str("reason", entry.Reason)
	}
	if entry.Error != "" {
		ev = ev.Str("error", entry.Error)
	}
	if entry.Payload != nil {
		ev = ev.Interface("payload", Redact(entry.Payload))
	}
	ev.Send()
}

// Enabled reports whether entries are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Close flushes and closes the underlying file. Safe on nil/disabled logger.
func (l *Logger) Close() error {
	if l == nil || !l.enabled || l.rw == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rw.close()
}

// IsDebugEnabled reports whether ASRSUB_DEBUG is set to "true".
func IsDebugEnabled() bool {
	return os.Getenv("ASRSUB_DEBUG") == "true"
}

// NewNoOp returns a logger where every Log call is a no-op. Use as a safe
// fallback when New fails (e.g., disk full, permissions error).
func NewNoOp() *Logger {
	return &Logger{enabled: false}
}
