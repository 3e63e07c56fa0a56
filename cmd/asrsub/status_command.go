package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiroq/asrsub/internal/ipc"
	"github.com/tiroq/asrsub/internal/pidfile"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "status",
		Short:       "Show the state of the running watcher",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, running := pidfile.Holder(pidfile.GetPIDFilePath("asrsub-watch"))
			status, err := ipc.ReadStatus()
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("read status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(status, pid, running))
			return nil
		},
	}
}

func renderStatus(s *ipc.StatusSnapshot, pid int, running bool) string {
	if !running {
		if s == nil {
			return "No watcher is running."
		}
		s.State = ipc.StateStopped
	}
	if s == nil {
		return fmt.Sprintf("Watcher running (PID %d), no status published yet.", pid)
	}

	rows := [][]string{
		{"State", string(s.State)},
		{"Running", yesNo(running)},
		{"PID", strconv.Itoa(s.PID)},
		{"Directory", s.WatchDir},
	}
	if s.OutputDir != "" {
		rows = append(rows, []string{"Output", s.OutputDir})
	}
	backend := s.Backend
	if backend == "" {
		backend = "none (result JSON only)"
	}
	rows = append(rows,
		[]string{"Backend", backend},
		[]string{"Processed", strconv.Itoa(s.Processed)},
		[]string{"Failed", strconv.Itoa(s.Failed)},
		[]string{"No subtitles", strconv.Itoa(s.SubtitleFailures)},
	)
	if s.LastFile != "" {
		rows = append(rows, []string{"Last file", s.LastFile})
	}
	if s.LastError != "" {
		rows = append(rows, []string{"Last error", s.LastError})
	}
	if !s.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", s.StartedAt.Local().Format(time.DateTime)})
	}
	if !s.Timestamp.IsZero() {
		rows = append(rows, []string{"Updated", s.Timestamp.Local().Format(time.DateTime)})
	}
	return renderKeyValues(rows)
}

func newCtlCommand() *cobra.Command {
	names := make([]string, len(ipc.Commands))
	for i, c := range ipc.Commands {
		names[i] = string(c)
	}

	return &cobra.Command{
		Use:         "ctl <" + strings.Join(names, "|") + ">",
		Short:       "Send a control command to the running watcher",
		Args:        cobra.ExactArgs(1),
		ValidArgs:   names,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := ipc.ParseCommand(args[0])
			if err != nil {
				return err
			}
			pid, running := pidfile.Holder(pidfile.GetPIDFilePath("asrsub-watch"))
			if !running {
				return errors.New("no watcher is running")
			}
			if err := ipc.WriteCommand(command); err != nil {
				return fmt.Errorf("send %s: %w", command, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to watcher (PID %d)\n", command, pid)
			return nil
		},
	}
}
