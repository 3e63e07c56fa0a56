// Package testutil holds FunASR fixtures and helpers shared by tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleText is a two-sentence transcript with one token per six characters.
const SampleText = "你好，世界。今天天气不错"

// SampleResultJSON is a FunASR HTTP response for SampleText.
const SampleResultJSON = `{"result":[{"key":"clip","text":"你好，世界。今天天气不错","timestamp":[[0,500],[500,1000],[1000,1500],[1500,2000],[2000,2500],[2500,3000]]}]}`

// SampleSRT is the track for SampleResultJSON at the default caption length.
const SampleSRT = "1\n00:00:00,000 --> 00:00:03,000\n你好，世界。今天天气不错\n\n"

// NoTimestampsJSON is a result whose text can not be aligned.
const NoTimestampsJSON = `{"result":[{"key":"clip","text":"你好，世界。","timestamp":[]}]}`

// WriteFile writes body to dir/name and returns the path
func WriteFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// WriteAudio writes a small placeholder audio file
func WriteAudio(t *testing.T, dir, name string) string {
	t.Helper()
	return WriteFile(t, dir, name, "RIFF\x00\x00\x00\x00WAVEfmt ")
}
