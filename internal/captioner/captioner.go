// Package captioner attaches subtitles to ASR results. Subtitle generation
// is best-effort: a failure is recorded on the Output and never discards
// the recognized text.
package captioner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/diaglog"
	"github.com/tiroq/asrsub/internal/subtitle"
)

// Output is an ASR result plus its subtitle track, if one could be built.
type Output struct {
	SessionID   string
	Result      *asr.Result
	Track       *subtitle.Track // nil when SubtitleErr is set
	SubtitleErr error
	MaxChars    int
}

// SRT returns the rendered track, or "" when no track exists.
func (o *Output) SRT() string {
	if o == nil || o.Track == nil {
		return ""
	}
	return o.Track.SRT()
}

// HasSubtitles reports whether a track was generated.
func (o *Output) HasSubtitles() bool {
	return o != nil && o.Track != nil
}

// FailureStage returns "map" or "merge" for a failed generation, else "".
func (o *Output) FailureStage() string {
	if o == nil {
		return ""
	}
	var se *subtitle.StageError
	if errors.As(o.SubtitleErr, &se) {
		return se.Stage
	}
	return ""
}

// Annotate generates subtitles for res. It never fails: generation errors
// land in Output.SubtitleErr.
func Annotate(res *asr.Result, maxChars int) *Output {
	if maxChars <= 0 {
		maxChars = subtitle.DefaultMaxChars
	}
	out := &Output{
		SessionID: uuid.NewString(),
		Result:    res,
		MaxChars:  maxChars,
	}
	if res == nil {
		out.SubtitleErr = errors.New("no recognition result")
		return out
	}
	track, err := subtitle.Generate(res.Text, res.Tokens(), maxChars)
	if err != nil {
		out.SubtitleErr = err
		return out
	}
	out.Track = track
	return out
}

// Config configures a Captioner.
type Config struct {
	MaxChars int
	Options  asr.TranscribeOptions
}

// Captioner runs audio through an asr.Registry and annotates the results.
type Captioner struct {
	registry *asr.Registry
	cfg      Config

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// New creates a Captioner. registry may be nil when only Convert is used.
func New(registry *asr.Registry, cfg Config) *Captioner {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = subtitle.DefaultMaxChars
	}
	return &Captioner{registry: registry, cfg: cfg}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (c *Captioner) SetLogger(l *diaglog.Logger) {
	c.loggerMu.Lock()
	c.logger = l
	c.loggerMu.Unlock()
}

func (c *Captioner) log(entry diaglog.LogEntry) {
	c.loggerMu.RLock()
	l := c.logger
	c.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentCaptioner
	}
	l.Log(entry)
}

// CanTranscribe reports whether a recognition backend is configured.
func (c *Captioner) CanTranscribe() bool {
	return c.registry != nil && c.registry.Primary() != nil
}

// MaxChars returns the effective caption length limit.
func (c *Captioner) MaxChars() int {
	return c.cfg.MaxChars
}

// Convert annotates an already-recognized result.
func (c *Captioner) Convert(res *asr.Result) *Output {
	out := Annotate(res, c.cfg.MaxChars)
	c.logOutcome(out)
	return out
}

// Transcribe recognizes the audio at path, falling back to the secondary
// backend if configured, and annotates the result. Only recognition
// failures are returned as errors.
func (c *Captioner) Transcribe(ctx context.Context, path string) (*Output, error) {
	if !c.CanTranscribe() {
		return nil, errors.New("no ASR backend configured")
	}

	start := time.Now()
	res, err := c.registry.TranscribeWithFallback(ctx, path, c.cfg.Options)
	if err != nil {
		c.log(diaglog.LogEntry{
			Event:   diaglog.EventTranscribeFailed,
			Error:   err.Error(),
			Payload: map[string]interface{}{"file": filepath.Base(path)},
		})
		return nil, fmt.Errorf("recognize %s: %w", filepath.Base(path), err)
	}

	out := Annotate(res, c.cfg.MaxChars)
	c.log(diaglog.LogEntry{
		Event:     diaglog.EventTranscribeDone,
		SessionID: out.SessionID,
		Payload: map[string]interface{}{
			"file":        filepath.Base(path),
			"backend":     res.Backend,
			"duration_ms": time.Since(start).Milliseconds(),
		},
	})
	c.logOutcome(out)
	return out, nil
}

func (c *Captioner) logOutcome(out *Output) {
	if out.SubtitleErr != nil {
		c.log(diaglog.LogEntry{
			Event:     diaglog.EventSubtitleFailed,
			SessionID: out.SessionID,
			Reason:    out.FailureStage(),
			Error:     out.SubtitleErr.Error(),
		})
		return
	}
	c.log(diaglog.LogEntry{
		Event:     diaglog.EventSubtitleGenerated,
		SessionID: out.SessionID,
		Payload:   map[string]interface{}{"captions": out.Track.Len(), "max_chars": out.MaxChars},
	})
}
