package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiroq/asrsub/internal/config"
	"github.com/tiroq/asrsub/internal/diaglog"
	"github.com/tiroq/asrsub/internal/ipc"
	"github.com/tiroq/asrsub/internal/pidfile"
	"github.com/tiroq/asrsub/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		flags        outputFlags
		scanExisting bool
		forcePoll    bool
	)

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Convert every new result file or audio file dropped into a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := cfg.Watch.Dir
			if len(args) == 1 {
				if dir, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}
			if dir == "" {
				return errors.New("no directory to watch; pass one or set [watch] dir")
			}

			runner, err := ctx.runner(&flags)
			if err != nil {
				return err
			}

			pf, err := pidfile.New(pidfile.GetPIDFilePath("asrsub-watch"))
			if err != nil {
				return err
			}
			defer func() { _ = pf.Remove() }()

			log := ctx.console(cmd)
			diag := ctx.diagLogger()

			w := watcher.New(watcher.Config{
				Dir:             dir,
				AudioExtensions: cfg.Watch.AudioExtensions,
				Debounce:        time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
				PollInterval:    time.Duration(cfg.Watch.PollIntervalMs) * time.Millisecond,
				ForcePolling:    forcePoll,
				ScanExisting:    scanExisting,
				ReadCommands:    true,
			}, runner)
			w.SetLogger(diag)

			outDir := flags.outputDir
			if outDir == "" {
				outDir = cfg.Watch.OutputDir
			}
			var last ipc.StatusSnapshot
			w.OnStatus(func(s ipc.StatusSnapshot) {
				s.OutputDir = outDir
				s.Backend = cfg.ASR.Backend
				if err := ipc.WriteStatus(&s); err != nil {
					log.Warn().Err(err).Msg("status write failed")
				}
				if s.State != last.State {
					log.Info().Str("state", string(s.State)).Str("dir", s.WatchDir).Msg("watcher")
				}
				if s.LastFile != "" && s.LastFile != last.LastFile {
					ev := log.Info()
					if s.LastError != "" {
						ev = log.Warn().Str("error", s.LastError)
					}
					ev.Str("file", s.LastFile).Int("processed", s.Processed).Int("failed", s.Failed).Msg("file handled")
				}
				last = s
			})

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			diag.Log(diaglog.LogEntry{
				Component: diaglog.ComponentCLI,
				Event:     diaglog.EventWatchStart,
				Payload:   map[string]interface{}{"pid": pf.PID(), "version": Version},
			})
			if !runner.CanTranscribe() {
				log.Info().Msg("no ASR backend configured; audio files are ignored")
			}
			if err := w.Run(sigCtx); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&scanExisting, "scan-existing", false, "Convert inputs that have no sidecar yet before watching")
	cmd.Flags().BoolVar(&forcePoll, "poll", false, "Scan the directory instead of using filesystem events")
	return cmd
}
