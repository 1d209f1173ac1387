package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cavacolor/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the visualizer config, playback backend, and dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, cfg.Playback.Backend, colorize))
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, r := range results {
				fmt.Fprintln(out, renderStatusLine(r.Name, checkStatusKind(r), r.Detail, colorize))
			}

			failed := preflight.Failed(results)
			if len(failed) == 0 {
				return nil
			}
			names := make([]string, 0, len(failed))
			for _, r := range failed {
				names = append(names, r.Name)
			}
			return fmt.Errorf("%d check(s) failed: %s", len(failed), strings.Join(names, ", "))
		},
	}
}

func checkStatusKind(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Fatal:
		return statusError
	default:
		return statusWarn
	}
}
