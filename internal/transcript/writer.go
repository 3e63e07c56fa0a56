// Package transcript writes captioner output to disk as SRT, WebVTT,
// timestamped plain text and the recognition service's JSON envelope.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/captioner"
	"github.com/tiroq/asrsub/internal/subtitle"
)

// DefaultFormats is used when WriteAll is given no formats.
var DefaultFormats = []string{"srt"}

// ErrNoTrack is returned by the subtitle writers when the output has no track.
var ErrNoTrack = errors.New("no subtitle track")

// Extension maps a format name to the file suffix WriteAll appends.
func Extension(format string) (string, bool) {
	switch format {
	case "srt":
		return ".srt", true
	case "vtt":
		return ".vtt", true
	case "txt":
		return ".txt", true
	case "json":
		return ".asr.json", true
	}
	return "", false
}

// WriteSRT writes the track as SubRip.
func WriteSRT(path string, out *captioner.Output) error {
	if !out.HasSubtitles() {
		return ErrNoTrack
	}
	return atomicWrite(path, []byte(out.Track.SRT()))
}

// WriteVTT writes the track as WebVTT.
func WriteVTT(path string, out *captioner.Output) error {
	if !out.HasSubtitles() {
		return ErrNoTrack
	}
	return atomicWrite(path, []byte(out.Track.VTT()))
}

// WriteText writes one caption per line prefixed by [HH:MM:SS]. Without a
// track the bare transcript is written instead.
func WriteText(path string, out *captioner.Output) error {
	var b strings.Builder
	if out.HasSubtitles() {
		for _, c := range out.Track.Captions {
			fmt.Fprintf(&b, "[%s] %s\n", formatTextTimestamp(c.Start), c.Text)
		}
	} else if out.Result != nil && strings.TrimSpace(out.Result.Text) != "" {
		b.WriteString(strings.TrimSpace(out.Result.Text))
		b.WriteByte('\n')
	}
	return atomicWrite(path, []byte(b.String()))
}

// jsonResult mirrors one entry of the service's {"result": [...]} body.
type jsonResult struct {
	Key       string         `json:"key,omitempty"`
	Text      string         `json:"text"`
	Timestamp asr.Timestamps `json:"timestamp"`
	SRT       string         `json:"srt,omitempty"`
}

// WriteJSON writes {"result": [{key, text, timestamp, srt}]}. The srt field
// is present only when generation succeeded.
func WriteJSON(path string, out *captioner.Output) error {
	if out.Result == nil {
		return errors.New("no recognition result")
	}
	entry := jsonResult{
		Key:       out.Result.Key,
		Text:      out.Result.Text,
		Timestamp: out.Result.Timestamp,
	}
	if entry.Timestamp == nil {
		entry.Timestamp = asr.Timestamps{}
	}
	if out.HasSubtitles() {
		entry.SRT = out.Track.SRT()
	}
	data, err := json.MarshalIndent(map[string][]jsonResult{"result": {entry}}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return atomicWrite(path, append(data, '\n'))
}

// WriteAll writes out in every requested format under basePath (a path
// without extension). Subtitle formats are skipped when out has no track.
// Unknown formats and write failures are reported together after the
// remaining formats have been written. It returns the paths written.
func WriteAll(basePath string, out *captioner.Output, formats []string) ([]string, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	var (
		written []string
		errs    []string
	)
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		ext, ok := Extension(f)
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown format %q", f))
			continue
		}
		path := basePath + ext
		var err error
		switch f {
		case "srt":
			err = WriteSRT(path, out)
		case "vtt":
			err = WriteVTT(path, out)
		case "txt":
			err = WriteText(path, out)
		case "json":
			err = WriteJSON(path, out)
		}
		if errors.Is(err, ErrNoTrack) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f, err))
			continue
		}
		written = append(written, path)
	}
	if len(errs) > 0 {
		return written, fmt.Errorf("transcript write errors: %s", strings.Join(errs, "; "))
	}
	return written, nil
}

// formatTextTimestamp formats a duration as HH:MM:SS for plain text output.
func formatTextTimestamp(d time.Duration) string {
	// Reuse the SRT formatter and drop the millisecond part.
	return strings.SplitN(subtitle.FormatSRTTimestamp(d), ",", 2)[0]
}

// atomicWrite writes data to path atomically using a temp file + rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "transcript-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing transcript: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing transcript: %w", err)
	}
	tmpFile = nil // prevent defer cleanup

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming transcript: %w", err)
	}
	return nil
}
