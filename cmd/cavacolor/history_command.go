package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cavacolor/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently applied palettes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !cfg.History.Enabled {
				fmt.Fprintln(out, "History is disabled (set history.enabled = true to journal applied palettes)")
				return nil
			}
			store, err := history.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No palettes applied yet")
				return nil
			}
			fmt.Fprintln(out, renderHistoryTable(entries))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	return cmd
}

func renderHistoryTable(entries []history.Entry) string {
	t := newColorTable(false, right("ID"), left("Applied"), left("Source"), left("Track"), left("Colors"))
	for _, e := range entries {
		t.addRow(nil,
			strconv.FormatInt(e.ID, 10),
			e.AppliedAt.Local().Format("2006-01-02 15:04:05"),
			string(e.Source),
			trackLabel(e),
			strings.Join(e.Colors, " "),
		)
	}
	return t.render()
}

func trackLabel(e history.Entry) string {
	switch {
	case e.Artist != "" && e.Title != "":
		return e.Artist + " - " + e.Title
	case e.Title != "":
		return e.Title
	default:
		return string(e.TrackID)
	}
}
