package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/ayusman/bloom/internal/store"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	maxCaptionWidth = 60
)

func newSnapshotsCommand(ctx *commandContext) *cobra.Command {
	snapshotsCmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect saved gardens",
	}
	snapshotsCmd.AddCommand(newSnapshotsListCommand(ctx))
	snapshotsCmd.AddCommand(newSnapshotsShowCommand(ctx))
	snapshotsCmd.AddCommand(newSnapshotsDeleteCommand(ctx))
	return snapshotsCmd
}

func newSnapshotsListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved gardens, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *store.Store) error {
				snaps, err := s.Snapshots().List(limit)
				if err != nil {
					return fmt.Errorf("list snapshots: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(snaps) == 0 {
					fmt.Fprintln(out, "No snapshots saved yet")
					return nil
				}
				fmt.Fprintln(out, renderSnapshotTable(snaps))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of snapshots to show (0 for all)")
	return cmd
}

func renderSnapshotTable(snaps []*store.Snapshot) string {
	rows := make([][]string, 0, len(snaps))
	for _, snap := range snaps {
		rows = append(rows, []string{
			snap.ID,
			snap.CreatedAt.Local().Format(timestampLayout),
			strconv.Itoa(snap.FlowerCount),
			snap.Theme,
			snap.Species,
			fmt.Sprintf("%dx%d", snap.Width, snap.Height),
		})
	}
	return renderTable(
		[]string{"ID", "Saved", "Flowers", "Theme", "Species", "Size"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	)
}

func newSnapshotsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the flowers in a saved garden",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *store.Store) error {
				id := strings.TrimSpace(args[0])
				snap, err := s.Snapshots().GetByID(id)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("snapshot %s not found", id)
				}
				if err != nil {
					return fmt.Errorf("load snapshot: %w", err)
				}
				flowers, err := s.Snapshots().Flowers(id)
				if err != nil {
					return fmt.Errorf("load flowers: %w", err)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderSectionHeader("Snapshot "+snap.ID, colorize))
				fmt.Fprintln(out, renderField("Saved", fmt.Sprintf("%s (%s)", snap.CreatedAt.Local().Format(timestampLayout), age(snap.CreatedAt, time.Now())), false, colorize))
				fmt.Fprintln(out, renderField("Viewport", fmt.Sprintf("%dx%d", snap.Width, snap.Height), false, colorize))
				fmt.Fprintln(out, renderField("Theme", snap.Theme, false, colorize))
				fmt.Fprintln(out, renderField("Species", snap.Species, false, colorize))
				fmt.Fprintln(out, renderField("Flowers", strconv.Itoa(len(flowers)), len(flowers) == 0, colorize))
				if len(flowers) == 0 {
					return nil
				}
				fmt.Fprintln(out, renderFlowerTable(flowers, colorize))
				return nil
			})
		},
	}
}

func renderFlowerTable(flowers []store.SnapshotFlower, colorize bool) string {
	rows := make([][]string, 0, len(flowers))
	for _, f := range flowers {
		rows = append(rows, []string{
			f.Species,
			strconv.FormatFloat(f.RelX, 'f', 2, 64),
			fmt.Sprintf("%.0f/%.0f", f.CurrentHeight, f.MaxHeight),
			fmt.Sprintf("%.0f%%", f.BloomProgress*100),
			renderSwatch(f.Color, colorize),
		})
	}
	return renderTable(
		[]string{"Species", "X", "Height", "Bloom", "Colour"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}

func newSnapshotsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved garden",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *store.Store) error {
				id := strings.TrimSpace(args[0])
				if err := s.Snapshots().Delete(id); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("snapshot %s not found", id)
					}
					return fmt.Errorf("delete snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot %s\n", id)
				return nil
			})
		},
	}
}

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	captionsCmd := &cobra.Command{
		Use:   "captions",
		Short: "Inspect garden descriptions",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List garden descriptions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *store.Store) error {
				captions, err := s.Captions().List(limit)
				if err != nil {
					return fmt.Errorf("list captions: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(captions) == 0 {
					fmt.Fprintln(out, "No descriptions yet")
					return nil
				}
				fmt.Fprintln(out, renderCaptionTable(captions))
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of descriptions to show (0 for all)")
	captionsCmd.AddCommand(listCmd)
	return captionsCmd
}

func newKeepsakesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keepsakes",
		Short: "List saved keepsake images",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(s *store.Store) error {
				list, err := s.Keepsakes().List()
				if err != nil {
					return fmt.Errorf("list keepsakes: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No keepsakes saved yet")
					return nil
				}
				fmt.Fprintln(out, renderKeepsakeTable(list))
				return nil
			})
		},
	}
}

func renderCaptionTable(captions []*store.Caption) string {
	rows := make([][]string, 0, len(captions))
	for _, c := range captions {
		rows = append(rows, []string{
			c.CreatedAt.Local().Format(timestampLayout),
			strconv.Itoa(c.FlowerCount),
			c.Locale,
			yesNo(c.Fallback),
			truncate(c.Text, maxCaptionWidth),
		})
	}
	return renderTable(
		[]string{"When", "Flowers", "Locale", "Fallback", "Description"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func renderKeepsakeTable(list []*store.Keepsake) string {
	rows := make([][]string, 0, len(list))
	for _, k := range list {
		rows = append(rows, []string{
			k.CreatedAt.Local().Format(timestampLayout),
			strconv.Itoa(k.FlowerCount),
			k.Theme,
			k.Path,
		})
	}
	return renderTable(
		[]string{"When", "Flowers", "Theme", "File"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

func age(t time.Time, now time.Time) string {
	d := now.Sub(t).Round(time.Second)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
