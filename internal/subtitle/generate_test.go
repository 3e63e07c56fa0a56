package subtitle

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateSRT_Chinese(t *testing.T) {
	tokens := []TokenTimestamp{{0, 500}, {500, 1000}, {1000, 1500}, {1500, 2000}, {2000, 2500}, {2500, 3000}}
	got, err := GenerateSRT("你好，世界。今天天气不错。", tokens, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:03,000\n你好，世界。今天天气不错\n\n"
	if got != want {
		t.Errorf("unexpected SRT:\n got %q\nwant %q", got, want)
	}
}

func TestGenerateSRT_SplitsOnLimit(t *testing.T) {
	tokens := []TokenTimestamp{{0, 500}, {500, 1000}, {1000, 1500}, {1500, 2000}, {2000, 2500}, {2500, 3000}}
	got, err := GenerateSRT("你好，世界。今天天气不错。", tokens, 6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,500\n你好，世界\n\n" +
		"2\n00:00:01,000 --> 00:00:03,000\n今天天气不错\n\n"
	if got != want {
		t.Errorf("unexpected SRT:\n got %q\nwant %q", got, want)
	}
}

func TestGenerate_NoPunctuation(t *testing.T) {
	tokens := []TokenTimestamp{{120, 300}, {300, 700}, {700, 1250}}
	track, err := Generate("helloworld", tokens, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if track.Len() != 1 {
		t.Fatalf("expected 1 caption, got %d", track.Len())
	}
	c := track.Captions[0]
	if c.Start != 120*time.Millisecond || c.End != 1250*time.Millisecond {
		t.Errorf("expected 120ms..1250ms, got %v..%v", c.Start, c.End)
	}
	if c.Text != "helloworld" {
		t.Errorf("expected text helloworld, got %q", c.Text)
	}
}

func TestGenerate_EmptyTranscript(t *testing.T) {
	for _, tokens := range [][]TokenTimestamp{nil, {{0, 100}}} {
		track, err := Generate("", tokens, 20)
		if err != nil {
			t.Fatalf("empty transcript should not fail: %v", err)
		}
		if track.Len() != 0 {
			t.Errorf("expected empty track, got %d captions", track.Len())
		}
		if track.SRT() != "" {
			t.Errorf("expected empty SRT, got %q", track.SRT())
		}
	}
}

func TestGenerate_EmptyTimestamps(t *testing.T) {
	track, err := Generate("你好，世界。", nil, 20)
	if !errors.Is(err, ErrTimestampMapping) {
		t.Fatalf("expected ErrTimestampMapping, got %v", err)
	}
	if track != nil {
		t.Errorf("expected no track on failure, got %+v", track)
	}
	srt, err := GenerateSRT("你好，世界。", []TokenTimestamp{}, 20)
	if err == nil || srt != "" {
		t.Errorf("expected error and empty output, got %q, %v", srt, err)
	}
}

func TestGenerate_MalformedTokens(t *testing.T) {
	_, err := Generate("hello", []TokenTimestamp{{900, 100}}, 20)
	if !errors.Is(err, ErrMergeRender) {
		t.Fatalf("expected ErrMergeRender, got %v", err)
	}
}

func TestTrack_SRTIsStable(t *testing.T) {
	tokens := evenTokens(9, 333)
	track, err := Generate("第一句话，第二句话。第三句，以及第四句！最后", tokens, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := track.SRT()
	if second := track.SRT(); first != second {
		t.Errorf("rendering is not stable:\n%q\n%q", first, second)
	}
	if !strings.HasPrefix(first, "1\n00:00:00,000 --> ") {
		t.Errorf("unexpected first block: %q", first)
	}
	if strings.Count(first, "\n\n") != track.Len() {
		t.Errorf("expected %d blank-line separators, got %d", track.Len(), strings.Count(first, "\n\n"))
	}
}

func TestTrack_VTT(t *testing.T) {
	track := &Track{Captions: []Caption{
		{Index: 1, Start: 0, End: 1500 * time.Millisecond, Text: "你好"},
		{Index: 2, Start: 1500 * time.Millisecond, End: 62*time.Second + 5*time.Millisecond, Text: "世界"},
	}}
	want := "WEBVTT\n\n00:00:00.000 --> 00:00:01.500\n你好\n\n00:00:01.500 --> 00:01:02.005\n世界\n"
	if got := track.VTT(); got != want {
		t.Errorf("unexpected VTT:\n got %q\nwant %q", got, want)
	}
	var empty *Track
	if got := empty.VTT(); got != "WEBVTT\n" {
		t.Errorf("expected header only, got %q", got)
	}
}

func TestFormatSRTTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00,000"},
		{999 * time.Millisecond, "00:00:00,999"},
		{time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, "01:02:03,004"},
		{59*time.Minute + 59*time.Second + 999*time.Millisecond, "00:59:59,999"},
	}
	for _, tt := range tests {
		if got := FormatSRTTimestamp(tt.in); got != tt.want {
			t.Errorf("FormatSRTTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
