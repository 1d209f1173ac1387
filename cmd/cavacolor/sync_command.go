package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cavacolor/internal/config"
	"cavacolor/internal/daemonrun"
	"cavacolor/internal/history"
	"cavacolor/internal/logging"
	"cavacolor/internal/playback"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var noReload bool

	cmd := &cobra.Command{
		Use:   "sync <image|url>",
		Short: "Apply the palette of an image to the visualizer config once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.commandLogger()
			pipeline, err := daemonrun.NewPipeline(cfg, logger)
			if err != nil {
				return err
			}
			p, err := extractPalette(cmd.Context(), pipeline, args[0], cfg.Palette.Size)
			if err != nil {
				return err
			}
			result, err := pipeline.Synchronizer.Apply(p, cfg.Visualizer.ConfigPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if !result.Changed {
				fmt.Fprintf(out, "%s already uses these colors\n", result.Path)
				return nil
			}
			fmt.Fprintf(out, "Updated %s\n", result.Path)
			fmt.Fprintln(out, renderSlotTable(pipeline.Synchronizer.Slots(), result.Colors, colorize))

			if !noReload && pipeline.Reloader.Enabled() {
				count, err := pipeline.Reloader.Reload(cmd.Context())
				if err != nil {
					logging.WarnWithContext(logger, "visualizer reload failed", "visualizer_reload_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "check that cava runs as the same user"),
						logging.String(logging.FieldImpact, "cava shows the new colors after its next restart"),
					)
				} else {
					fmt.Fprintf(out, "Signaled %d %s process(es)\n", count, pipeline.Reloader.Process())
				}
			}

			if cfg.History.Enabled {
				recordManualSync(cmd.Context(), cfg, args[0], p.Hexes(), logger)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Do not signal running visualizers")
	return cmd
}

func recordManualSync(ctx context.Context, cfg *config.Config, location string, colors []string, logger *slog.Logger) {
	store, err := history.Open(cfg)
	if err != nil {
		logger.Warn("history journal unavailable", logging.Error(err))
		return
	}
	defer store.Close()

	location = strings.TrimSpace(location)
	if _, err := store.Record(ctx, history.Entry{
		TrackID:    playback.TrackID("manual:" + location),
		Title:      filepath.Base(location),
		Source:     playback.SourceManual,
		Colors:     colors,
		ConfigPath: cfg.Visualizer.ConfigPath,
	}); err != nil {
		logger.Warn("record palette failed", logging.Error(err))
	}
}
