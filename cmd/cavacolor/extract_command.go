package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cavacolor/internal/daemonrun"
	"cavacolor/internal/palette"
	"cavacolor/internal/playback"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "extract <image|url>",
		Short: "Print the palette extracted from an image file or URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if size <= 0 {
				size = cfg.Palette.Size
			}
			pipeline, err := daemonrun.NewPipeline(cfg, ctx.commandLogger())
			if err != nil {
				return err
			}
			p, err := extractPalette(cmd.Context(), pipeline, args[0], size)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderPaletteTable(p, colorize))
			fmt.Fprintln(out, renderSlotTable(pipeline.Synchronizer.Slots(), pipeline.Synchronizer.Assign(p), colorize))
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "size", "n", 0, "Number of colors to extract (defaults to palette.size)")
	return cmd
}

func extractPalette(ctx context.Context, pipeline *daemonrun.Pipeline, location string, size int) (palette.Palette, error) {
	loc := playback.ArtworkLocation(strings.TrimSpace(location))
	if loc.Absent() {
		return palette.Palette{}, fmt.Errorf("image path or url is required")
	}
	img, err := pipeline.Fetcher.Load(ctx, loc)
	if err != nil {
		return palette.Palette{}, fmt.Errorf("load artwork: %w", err)
	}
	p, err := pipeline.Extractor.Extract(img, size)
	if err != nil {
		return palette.Palette{}, err
	}
	return p, nil
}

func renderPaletteTable(p palette.Palette, colorize bool) string {
	t := newColorTable(colorize, right("#"), left("Color"), right("Weight"), right("Brightness"))
	for i, c := range p.Colors {
		weight := 0.0
		if i < len(p.Weights) {
			weight = p.Weights[i]
		}
		t.addRow(&c,
			strconv.Itoa(i+1),
			c.Hex(),
			fmt.Sprintf("%.1f%%", weight*100),
			fmt.Sprintf("%.0f", c.Brightness()),
		)
	}
	return t.render()
}

func renderSlotTable(slots []string, colors []palette.Color, colorize bool) string {
	t := newColorTable(colorize, left("Slot"), left("Color"))
	for i, slot := range slots {
		if i >= len(colors) {
			t.addRow(nil, slot, "(missing)")
			continue
		}
		t.addRow(&colors[i], slot, colors[i].Hex())
	}
	return t.render()
}
