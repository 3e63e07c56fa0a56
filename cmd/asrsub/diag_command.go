package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tiroq/asrsub/internal/diaglog"
)

func newExportDiagCommand(ctx *commandContext) *cobra.Command {
	var dest string

	cmd := &cobra.Command{
		Use:   "export-diag",
		Short: "Bundle the debug log into a shareable NDJSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logPath := ctx.diagPath()
			path, lines, err := diaglog.Export(logPath, dest)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("%w; run with ASRSUB_DEBUG=true or set [log] debug_file first", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Diagnostic bundle written to %s (%d entries)\n", path, lines)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "Directory for the bundle")
	return cmd
}
