package asr

import (
	"context"
	"time"

	"github.com/tiroq/asrsub/internal/subtitle"
)

// Result is one recognized utterance as produced by FunASR: the full
// transcript plus one [start, end] millisecond pair per token.
type Result struct {
	Key       string     `json:"key,omitempty"`
	Text      string     `json:"text"`
	Timestamp Timestamps `json:"timestamp"`
	Backend   string     `json:"-"`
}

// Tokens converts the wire timestamps to subtitle token spans.
func (r *Result) Tokens() []subtitle.TokenTimestamp {
	tokens := make([]subtitle.TokenTimestamp, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		tokens[i] = subtitle.TokenTimestamp{Start: ts[0], End: ts[1]}
	}
	return tokens
}

// TranscribeOptions configures a transcription request.
type TranscribeOptions struct {
	Hotword string // space separated; "" = none
	Mode    string // websocket runtime mode, default "offline"
	ITN     bool   // inverse text normalization
}

// HealthStatus reports backend health.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// Backend is the interface that ASR backends must implement.
type Backend interface {
	Name() string
	TranscribeFile(ctx context.Context, filePath string, opts TranscribeOptions) (*Result, error)
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
