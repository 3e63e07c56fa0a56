package captioner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/diaglog"
	"github.com/tiroq/asrsub/internal/subtitle"
)

type stubBackend struct {
	name string
	res  *asr.Result
	err  error
	opts asr.TranscribeOptions
}

func (s *stubBackend) Name() string { return s.name }
func (s *stubBackend) TranscribeFile(_ context.Context, _ string, opts asr.TranscribeOptions) (*asr.Result, error) {
	s.opts = opts
	if s.err != nil {
		return nil, s.err
	}
	res := *s.res
	return &res, nil
}
func (s *stubBackend) HealthCheck(context.Context) (*asr.HealthStatus, error) {
	return &asr.HealthStatus{OK: true, Backend: s.name}, nil
}

func scenarioResult() *asr.Result {
	return &asr.Result{
		Key:       "clip",
		Text:      "你好，世界。今天天气不错",
		Timestamp: asr.Timestamps{{0, 500}, {500, 1000}, {1000, 1500}, {1500, 2000}, {2000, 2500}, {2500, 3000}},
	}
}

func TestAnnotateSuccess(t *testing.T) {
	out := Annotate(scenarioResult(), 0)
	if out.SubtitleErr != nil {
		t.Fatalf("unexpected subtitle error: %v", out.SubtitleErr)
	}
	if !out.HasSubtitles() || out.MaxChars != subtitle.DefaultMaxChars {
		t.Fatalf("unexpected output: %+v", out)
	}
	want := "1\n00:00:00,000 --> 00:00:03,000\n你好，世界。今天天气不错\n\n"
	if got := out.SRT(); got != want {
		t.Errorf("SRT mismatch:\ngot  %q\nwant %q", got, want)
	}
	if out.SessionID == "" {
		t.Error("session ID should be set")
	}
}

func TestAnnotateFailureKeepsText(t *testing.T) {
	res := &asr.Result{Text: "你好，世界。"}
	out := Annotate(res, 20)
	if !errors.Is(out.SubtitleErr, subtitle.ErrTimestampMapping) {
		t.Fatalf("want ErrTimestampMapping, got %v", out.SubtitleErr)
	}
	if out.FailureStage() != "map" {
		t.Errorf("FailureStage = %q, want map", out.FailureStage())
	}
	if out.Result.Text != "你好，世界。" {
		t.Errorf("text must survive subtitle failure, got %q", out.Result.Text)
	}
	if out.HasSubtitles() || out.SRT() != "" {
		t.Error("failed output must not carry a track")
	}
}

func TestAnnotateNilResult(t *testing.T) {
	out := Annotate(nil, 20)
	if out.SubtitleErr == nil || out.FailureStage() != "" {
		t.Errorf("unexpected output for nil result: %+v", out)
	}
}

func TestAnnotateSessionIDsDiffer(t *testing.T) {
	a := Annotate(scenarioResult(), 20)
	b := Annotate(scenarioResult(), 20)
	if a.SessionID == b.SessionID {
		t.Errorf("session IDs should be unique, both %q", a.SessionID)
	}
}

func TestTranscribeUsesRegistry(t *testing.T) {
	backend := &stubBackend{name: "stub", res: scenarioResult()}
	reg := asr.NewRegistry()
	reg.Register("stub", backend)

	c := New(reg, Config{MaxChars: 6, Options: asr.TranscribeOptions{Hotword: "天气"}})
	out, err := c.Transcribe(context.Background(), "/audio/clip.wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if backend.opts.Hotword != "天气" {
		t.Errorf("options not forwarded: %+v", backend.opts)
	}
	if out.Result.Backend != "stub" {
		t.Errorf("backend = %q", out.Result.Backend)
	}
	if out.Track.Len() != 2 {
		t.Errorf("want 2 captions at limit 6, got %d", out.Track.Len())
	}
}

func TestTranscribeRecognitionError(t *testing.T) {
	reg := asr.NewRegistry()
	reg.Register("stub", &stubBackend{name: "stub", err: errors.New("boom")})

	_, err := New(reg, Config{}).Transcribe(context.Background(), "clip.wav")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("want recognition error, got %v", err)
	}
}

func TestTranscribeWithoutRegistry(t *testing.T) {
	if _, err := New(nil, Config{}).Transcribe(context.Background(), "clip.wav"); err == nil {
		t.Fatal("expected error without backends")
	}
	if _, err := New(asr.NewRegistry(), Config{}).Transcribe(context.Background(), "clip.wav"); err == nil {
		t.Fatal("expected error with empty registry")
	}
}

func TestConvertLogsOutcome(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "diag.ndjson")
	l, err := diaglog.Open(logPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	c := New(nil, Config{})
	c.SetLogger(l)
	c.Convert(scenarioResult())
	c.Convert(&asr.Result{Text: "没有时间戳。"})
	_ = l.Close()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	log := string(data)
	if !strings.Contains(log, diaglog.EventSubtitleGenerated) || !strings.Contains(log, diaglog.EventSubtitleFailed) {
		t.Errorf("missing outcome events:\n%s", log)
	}
	if !strings.Contains(log, `"reason":"map"`) {
		t.Errorf("failure stage not logged:\n%s", log)
	}
}
