package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/captioner"
)

func sampleOutput() *captioner.Output {
	return captioner.Annotate(&asr.Result{
		Key:       "meeting",
		Text:      "你好，世界。今天天气不错",
		Timestamp: asr.Timestamps{{0, 500}, {500, 1000}, {1000, 1500}, {1500, 2000}, {2000, 2500}, {2500, 3000}},
	}, 6)
}

func failedOutput() *captioner.Output {
	return captioner.Annotate(&asr.Result{Key: "meeting", Text: "你好，世界。"}, 20)
}

func tmpPath(t *testing.T, ext string) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "transcript"+ext)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

func TestWriteSRT(t *testing.T) {
	path := tmpPath(t, ".srt")
	if err := WriteSRT(path, sampleOutput()); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:01,500\n你好，世界\n\n" +
		"2\n00:00:01,000 --> 00:00:03,000\n今天天气不错\n\n"
	if got := readFile(t, path); got != want {
		t.Errorf("SRT mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestWriteVTT(t *testing.T) {
	path := tmpPath(t, ".vtt")
	if err := WriteVTT(path, sampleOutput()); err != nil {
		t.Fatalf("WriteVTT: %v", err)
	}
	got := readFile(t, path)

	if !strings.HasPrefix(got, "WEBVTT\n") {
		t.Errorf("VTT should start with WEBVTT header; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:00.000 --> 00:00:01.500") {
		t.Errorf("missing first VTT timestamp; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:01.000 --> 00:00:03.000") {
		t.Errorf("missing second VTT timestamp; got:\n%s", got)
	}
}

func TestWriteText(t *testing.T) {
	path := tmpPath(t, ".txt")
	if err := WriteText(path, sampleOutput()); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	got := readFile(t, path)

	if !strings.Contains(got, "[00:00:00] 你好，世界") || !strings.Contains(got, "[00:00:01] 今天天气不错") {
		t.Errorf("unexpected text output:\n%s", got)
	}
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}
}

func TestWriteTextWithoutTrack(t *testing.T) {
	path := tmpPath(t, ".txt")
	if err := WriteText(path, failedOutput()); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if got := readFile(t, path); got != "你好，世界。\n" {
		t.Errorf("want bare transcript, got %q", got)
	}
}

func TestWriteJSON(t *testing.T) {
	path := tmpPath(t, ".asr.json")
	if err := WriteJSON(path, sampleOutput()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var body struct {
		Result []map[string]interface{} `json:"result"`
	}
	if err := json.Unmarshal([]byte(readFile(t, path)), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Result) != 1 {
		t.Fatalf("want 1 result, got %d", len(body.Result))
	}
	r := body.Result[0]
	if r["key"] != "meeting" || r["text"] != "你好，世界。今天天气不错" {
		t.Errorf("unexpected entry: %v", r)
	}
	if ts, ok := r["timestamp"].([]interface{}); !ok || len(ts) != 6 {
		t.Errorf("timestamp not preserved: %v", r["timestamp"])
	}
	if srt, _ := r["srt"].(string); !strings.HasPrefix(srt, "1\n") {
		t.Errorf("srt field missing: %v", r["srt"])
	}
}

func TestWriteJSONOmitsSRTOnFailure(t *testing.T) {
	path := tmpPath(t, ".asr.json")
	if err := WriteJSON(path, failedOutput()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got := readFile(t, path)
	if strings.Contains(got, `"srt"`) {
		t.Errorf("srt must be absent when generation failed:\n%s", got)
	}
	if !strings.Contains(got, `"timestamp": []`) {
		t.Errorf("timestamp should encode as an empty list:\n%s", got)
	}
}

func TestWriteAll(t *testing.T) {
	base := filepath.Join(t.TempDir(), "meeting")

	written, err := WriteAll(base, sampleOutput(), []string{"txt", "srt", "vtt", "json"})
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(written) != 4 {
		t.Errorf("want 4 paths, got %v", written)
	}
	for _, ext := range []string{".txt", ".srt", ".vtt", ".asr.json"} {
		path := base + ext
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected file %s to exist: %v", path, err)
		}
	}
}

func TestWriteAllDefaultsToSRT(t *testing.T) {
	base := filepath.Join(t.TempDir(), "meeting")
	written, err := WriteAll(base, sampleOutput(), nil)
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(written) != 1 || written[0] != base+".srt" {
		t.Errorf("want only %s.srt, got %v", base, written)
	}
}

func TestWriteAllSkipsSubtitlesWithoutTrack(t *testing.T) {
	base := filepath.Join(t.TempDir(), "meeting")
	written, err := WriteAll(base, failedOutput(), []string{"srt", "vtt", "txt", "json"})
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(written) != 2 {
		t.Errorf("want txt and json only, got %v", written)
	}
	if _, err := os.Stat(base + ".srt"); !os.IsNotExist(err) {
		t.Error("srt must not be written without a track")
	}
}

func TestWriteAllUnknownFormat(t *testing.T) {
	base := filepath.Join(t.TempDir(), "meeting")
	written, err := WriteAll(base, sampleOutput(), []string{"docx", "SRT"})
	if err == nil || !strings.Contains(err.Error(), `unknown format "docx"`) {
		t.Fatalf("want unknown format error, got %v", err)
	}
	if len(written) != 1 {
		t.Errorf("known formats should still be written, got %v", written)
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteAll(filepath.Join(dir, "meeting"), sampleOutput(), []string{"srt", "txt"}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}
