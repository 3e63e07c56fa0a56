package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags outputFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio>...",
		Short: "Recognize audio with the configured FunASR backend and write subtitles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.runner(&flags)
			if err != nil {
				return err
			}
			if !runner.CanTranscribe() {
				return errors.New("no ASR backend configured; set [asr] backend in the config or ASRSUB_BACKEND")
			}
			log := ctx.console(cmd)

			sigCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var failed []error
			for _, path := range args {
				log.Debug().Str("file", path).Msg("transcribing")
				rep, err := runner.Transcribe(sigCtx, path)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					log.Error().Err(err).Str("file", path).Msg("transcribe failed")
					failed = append(failed, err)
					continue
				}
				log.Debug().Dur("took", rep.Duration).Str("backend", rep.Output.Result.Backend).Msg("recognized")
				if err := printReport(cmd.OutOrStdout(), rep); err != nil {
					failed = append(failed, err)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d inputs failed: %w", len(failed), len(args), errors.Join(failed...))
			}
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
