package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tiroq/asrsub/internal/autoupdate"
)

// releasesAPI is overridden in tests.
var releasesAPI = ""

func newVersionCommand() *cobra.Command {
	var check, prerelease bool

	cmd := &cobra.Command{
		Use:         "version",
		Short:       "Print the asrsub version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "asrsub %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			if !check {
				return nil
			}

			uc := autoupdate.NewUpdateChecker("tiroq", "asrsub", Version)
			if releasesAPI != "" {
				uc.SetAPIURL(releasesAPI)
			}
			if prerelease {
				uc.SetChannel(autoupdate.ChannelPrerelease)
			}
			available, release, err := uc.IsUpdateAvailable(cmd.Context())
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}
			switch {
			case available:
				fmt.Fprintf(out, "Update available: %s %s\n", release.TagName, release.HTMLURL)
			case release == nil:
				fmt.Fprintln(out, "Development build; update check skipped")
			default:
				fmt.Fprintln(out, "Up to date")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include pre-releases in the update check")
	return cmd
}
