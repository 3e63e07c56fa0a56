package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tiroq/asrsub/internal/pipeline"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags outputFlags

	cmd := &cobra.Command{
		Use:   "convert <result.json>...",
		Short: "Generate subtitles from saved FunASR result JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.runner(&flags)
			if err != nil {
				return err
			}
			log := ctx.console(cmd)

			var failed []error
			for _, path := range args {
				reports, err := runner.Convert(path)
				if err != nil {
					log.Error().Err(err).Str("file", path).Msg("convert failed")
					failed = append(failed, err)
					continue
				}
				var writeErrs []error
				for _, rep := range reports {
					if err := printReport(cmd.OutOrStdout(), rep); err != nil {
						log.Warn().Err(err).Str("file", path).Msg("outputs incomplete")
						writeErrs = append(writeErrs, err)
					}
				}
				if len(writeErrs) > 0 {
					failed = append(failed, fmt.Errorf("%s: %w", path, errors.Join(writeErrs...)))
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

// printReport writes one line per output, plus a warning line when no
// subtitle track could be built. It returns the report's write error.
func printReport(out io.Writer, rep *pipeline.Report) error {
	for _, path := range rep.Written {
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	if !rep.SubtitleOK() {
		stage := rep.Output.FailureStage()
		if stage == "" {
			stage = "generate"
		}
		kept := "transcript not saved"
		if rep.Kept != "" {
			kept = "transcript kept in " + rep.Kept
		}
		fmt.Fprintf(out, "no subtitles for %s (%s failed: %v); %s\n", rep.Source, stage, rep.Output.SubtitleErr, kept)
	}
	return rep.WriteErr
}
