package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tiroq/asrsub/internal/asr"
	"github.com/tiroq/asrsub/internal/captioner"
	"github.com/tiroq/asrsub/internal/subtitle"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var maxChars int

	cmd := &cobra.Command{
		Use:   "inspect <result.json>",
		Short: "Show the captions a result file would produce without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if maxChars <= 0 {
				maxChars = cfg.Subtitle.MaxCharsPerLine
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			results, err := asr.DecodeResults(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i := range results {
				o := captioner.Annotate(&results[i], maxChars)
				if len(results) > 1 {
					key := results[i].Key
					if key == "" {
						key = strconv.Itoa(i + 1)
					}
					fmt.Fprintf(out, "== %s ==\n", key)
				}
				fmt.Fprintln(out, renderInspection(o))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxChars, "max-chars", "m", 0, "Maximum characters per caption (default from config)")
	return cmd
}

func renderInspection(o *captioner.Output) string {
	if !o.HasSubtitles() {
		return renderKeyValues([][]string{
			{"Transcript", o.Result.Text},
			{"Tokens", strconv.Itoa(len(o.Result.Timestamp))},
			{"Subtitles", "failed at " + o.FailureStage() + ": " + o.SubtitleErr.Error()},
		})
	}
	if o.Track.Len() == 0 {
		return "(empty transcript, no captions)"
	}

	rows := make([][]string, 0, o.Track.Len())
	for _, c := range o.Track.Captions {
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			subtitle.FormatSRTTimestamp(c.Start),
			subtitle.FormatSRTTimestamp(c.End),
			c.Text,
		})
	}
	return renderTable(
		[]string{"#", "Start", "End", "Text"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}
