// Package pipeline turns one input file into subtitle outputs and a
// sidecar: FunASR result JSON is converted directly, audio goes through
// the configured recognizer first.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/captioner"
	"github.com/tiroq/asrsub/internal/diaglog"
	"github.com/tiroq/asrsub/internal/fileutil"
	"github.com/tiroq/asrsub/internal/transcript"
)

// Config configures output placement.
type Config struct {
	Formats   []string // default transcript.DefaultFormats
	OutputDir string   // "" = next to the input
	Version   string   // recorded in the sidecar
	NoSidecar bool
}

// Report describes what happened to one recognized result.
type Report struct {
	Source   string
	Base     string
	Output   *captioner.Output
	Written  []string
	WriteErr error
	// Kept is the file holding the recognized text when no subtitle
	// track was built: the input for Convert, a written output otherwise.
	Kept     string
	Duration time.Duration
}

// SubtitleOK reports whether a subtitle track was produced.
func (r *Report) SubtitleOK() bool {
	return r != nil && r.Output.HasSubtitles()
}

// Runner processes inputs one at a time.
type Runner struct {
	engine *captioner.Captioner
	cfg    Config

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// New creates a Runner around engine.
func New(engine *captioner.Captioner, cfg Config) *Runner {
	if len(cfg.Formats) == 0 {
		cfg.Formats = transcript.DefaultFormats
	}
	return &Runner{engine: engine, cfg: cfg}
}

// SetLogger injects a diaglog.Logger for debug logging.
func (r *Runner) SetLogger(l *diaglog.Logger) {
	r.loggerMu.Lock()
	r.logger = l
	r.loggerMu.Unlock()
}

func (r *Runner) log(entry diaglog.LogEntry) {
	r.loggerMu.RLock()
	l := r.logger
	r.loggerMu.RUnlock()
	if l == nil {
		return
	}
	if entry.Component == "" {
		entry.Component = diaglog.ComponentPipeline
	}
	l.Log(entry)
}

// CanTranscribe reports whether audio inputs can be handled.
func (r *Runner) CanTranscribe() bool {
	return r.engine.CanTranscribe()
}

// Base returns the output base path for src.
func (r *Runner) Base(src string) string {
	return fileutil.OutputBase(src, r.cfg.OutputDir)
}

// Convert reads a FunASR result file and writes outputs for every result
// it contains. Outputs of a multi-result file are suffixed with the key.
func (r *Runner) Convert(path string) ([]*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	results, err := asr.DecodeResults(bytes.NewReader(data))
	if err != nil {
		r.log(diaglog.LogEntry{Event: diaglog.EventFileFailed, Error: err.Error(), Payload: map[string]interface{}{"file": path}})
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("decode %s: no results", filepath.Base(path))
	}

	base := r.Base(path)
	reports := make([]*Report, 0, len(results))
	for i := range results {
		start := time.Now()
		res := &results[i]
		b := base
		if len(results) > 1 {
			b = base + "-" + resultSuffix(res, i)
		}
		out := r.engine.Convert(res)
		rep := r.finish(path, b, out, r.cfg.Formats, start)
		if !out.HasSubtitles() && rep.Kept == "" {
			rep.Kept = path
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Transcribe recognizes an audio file and writes its outputs.
func (r *Runner) Transcribe(ctx context.Context, path string) (*Report, error) {
	start := time.Now()
	out, err := r.engine.Transcribe(ctx, path)
	if err != nil {
		r.log(diaglog.LogEntry{Event: diaglog.EventFileFailed, Error: err.Error(), Payload: map[string]interface{}{"file": path}})
		return nil, err
	}
	formats := r.cfg.Formats
	if !out.HasSubtitles() && keptPath(r.Base(path), formats) == "" {
		// Nothing else would hold the recognized text.
		formats = append(append([]string(nil), formats...), "json")
	}
	return r.finish(path, r.Base(path), out, formats, start), nil
}

func (r *Runner) finish(src, base string, out *captioner.Output, formats []string, start time.Time) *Report {
	rep := &Report{Source: src, Base: base, Output: out}
	rep.Written, rep.WriteErr = transcript.WriteAll(base, out, formats)
	rep.Duration = time.Since(start)
	if !out.HasSubtitles() {
		rep.Kept = keptPath(base, rep.Written)
	}

	if !r.cfg.NoSidecar {
		if err := fileutil.WriteMetadata(base, r.metadata(rep)); err != nil && rep.WriteErr == nil {
			rep.WriteErr = fmt.Errorf("write sidecar: %w", err)
		}
	}

	entry := diaglog.LogEntry{
		Event:     diaglog.EventFileProcessed,
		SessionID: out.SessionID,
		Payload: map[string]interface{}{
			"file":     src,
			"outputs":  rep.Written,
			"captions": out.Track.Len(),
		},
	}
	if rep.WriteErr != nil {
		entry.Event = diaglog.EventFileFailed
		entry.Error = rep.WriteErr.Error()
	}
	r.log(entry)
	return rep
}

func (r *Runner) metadata(rep *Report) *fileutil.JobMetadata {
	out := rep.Output
	meta := &fileutil.JobMetadata{
		Version:     r.cfg.Version,
		SessionID:   out.SessionID,
		Source:      rep.Source,
		ProcessedAt: time.Now().UTC(),
		DurationMs:  rep.Duration.Milliseconds(),
		Formats:     r.cfg.Formats,
		Outputs:     rep.Written,
		Subtitle: &fileutil.SubMeta{
			Success:  out.HasSubtitles(),
			Captions: out.Track.Len(),
			MaxChars: out.MaxChars,
		},
	}
	if out.Result != nil {
		meta.Backend = out.Result.Backend
	}
	if out.SubtitleErr != nil {
		meta.Subtitle.Error = out.SubtitleErr.Error()
		meta.Subtitle.FailureStage = out.FailureStage()
	}
	return meta
}

// keptPath returns the json or txt output of base named in items, which
// holds either format names or written file paths.
func keptPath(base string, items []string) string {
	for _, f := range []string{"json", "txt"} {
		ext, _ := transcript.Extension(f)
		for _, item := range items {
			if strings.EqualFold(strings.TrimSpace(item), f) || item == base+ext {
				return base + ext
			}
		}
	}
	return ""
}

func resultSuffix(res *asr.Result, i int) string {
	if res.Key != "" {
		return fileutil.SanitizeForFilename(res.Key)
	}
	return strconv.Itoa(i + 1)
}
