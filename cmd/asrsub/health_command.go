package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the configured ASR backends are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg := ctx.registry(cfg)
			if reg == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No ASR backend configured; only result JSON can be converted.")
				return nil
			}

			var rows [][]string
			unhealthy := 0
			for _, name := range reg.Backends() {
				b, _ := reg.Get(name)
				role := "fallback"
				if name == cfg.ASR.Backend {
					role = "primary"
				}
				hs, err := b.HealthCheck(cmd.Context())
				if err != nil {
					unhealthy++
					rows = append(rows, []string{name, role, "no", "", err.Error()})
					continue
				}
				if !hs.OK {
					unhealthy++
				}
				rows = append(rows, []string{name, role, yesNo(hs.OK), hs.Latency.Round(time.Millisecond).String(), hs.Message})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Backend", "Role", "Healthy", "Latency", "Message"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			if unhealthy > 0 {
				return errors.New("one or more backends are unhealthy")
			}
			return nil
		},
	}
}
