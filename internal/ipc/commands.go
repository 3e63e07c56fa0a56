package ipc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Command is a control request from the CLI to a running watcher
type Command string

const (
	CmdPause  Command = "pause"  // Stop converting new files
	CmdResume Command = "resume" // Convert new files again
	CmdRescan Command = "rescan" // Convert every input that has no sidecar yet
	CmdQuit   Command = "quit"   // Shut the watcher down
)

// Commands lists every accepted command.
var Commands = []Command{CmdPause, CmdResume, CmdRescan, CmdQuit}

// ParseCommand validates a command name.
func ParseCommand(s string) (Command, error) {
	cmd := Command(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range Commands {
		if c == cmd {
			return cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// CommandPath returns ~/.cache/asrsub/cmd.txt.
func CommandPath() string {
	return filepath.Join(Dir(), "cmd.txt")
}

// WriteCommand writes a command to ~/.cache/asrsub/cmd.txt
func WriteCommand(cmd Command) error {
	if err := os.MkdirAll(Dir(), 0755); err != nil {
		return err
	}
	return os.WriteFile(CommandPath(), []byte(string(cmd)), 0644)
}

// ReadCommand reads and clears ~/.cache/asrsub/cmd.txt
// Returns empty string if no command or file doesn't exist
func ReadCommand() (Command, error) {
	data, err := os.ReadFile(CommandPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil // No command pending
		}
		return "", err
	}

	// Clear the file immediately to prevent re-execution
	if err := os.WriteFile(CommandPath(), []byte(""), 0644); err != nil {
		return "", err
	}

	if strings.TrimSpace(string(data)) == "" {
		return "", nil
	}
	cmd, err := ParseCommand(string(data))
	if err != nil {
		// Invalid command - ignore it
		return "", nil
	}
	return cmd, nil
}
