package ipc

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStatusRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	want := &StatusSnapshot{
		State:            StateWatching,
		PID:              42,
		WatchDir:         "/in",
		Processed:        3,
		Failed:           1,
		SubtitleFailures: 2,
		LastFile:         "/in/clip.json",
		LastError:        "timestamp mapping: no token timestamps",
		Timestamp:        time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := WriteStatus(want); err != nil {
		t.Fatalf("WriteStatus: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".cache", "asrsub", "status.json")); err != nil {
		t.Fatalf("status file missing: %v", err)
	}

	got, err := ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus: %v", err)
	}
	if got.State != want.State || got.Processed != 3 || got.SubtitleFailures != 2 || got.LastFile != want.LastFile {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("timestamp = %v", got.Timestamp)
	}
}

func TestReadStatusMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if _, err := ReadStatus(); !os.IsNotExist(err) {
		t.Errorf("want not-exist error, got %v", err)
	}
}

func TestCommandReadClears(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if cmd, err := ReadCommand(); err != nil || cmd != "" {
		t.Fatalf("no pending command expected, got %q, %v", cmd, err)
	}
	if err := WriteCommand(CmdRescan); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	cmd, err := ReadCommand()
	if err != nil || cmd != CmdRescan {
		t.Fatalf("ReadCommand = %q, %v", cmd, err)
	}
	if cmd, _ := ReadCommand(); cmd != "" {
		t.Errorf("command should be consumed, got %q", cmd)
	}
}

func TestReadCommandIgnoresUnknown(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(CommandPath(), []byte("record\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if cmd, err := ReadCommand(); err != nil || cmd != "" {
		t.Errorf("unknown command should be ignored, got %q, %v", cmd, err)
	}
}

func TestParseCommand(t *testing.T) {
	for _, in := range []string{"pause", " RESUME\n", "rescan", "quit"} {
		if _, err := ParseCommand(in); err != nil {
			t.Errorf("ParseCommand(%q): %v", in, err)
		}
	}
	if _, err := ParseCommand("start"); err == nil {
		t.Error("expected error for unknown command")
	}
}
