package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recipecast/internal/sizeguard"
	"recipecast/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage staged transcode artifacts",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List staging entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			entries, err := staging.ListEntries(cfg.StagingDir())
			if err != nil {
				return fmt.Errorf("list staging entries: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Staging directory is empty")
				return nil
			}

			var totalSize int64
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				age := time.Since(entry.ModTime).Truncate(time.Minute)
				totalSize += entry.Size
				rows = append(rows, []string{entry.Name, formatAge(age), sizeguard.FormatBytes(entry.Size)})
			}

			table := renderTable(
				[]string{"Name", "Age", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight},
			)
			fmt.Fprintln(out, table)
			fmt.Fprintf(out, "Total: %d entries, %s\n", len(entries), sizeguard.FormatBytes(totalSize))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale staging entries",
		Long: "Removes staging entries older than --max-age. Entries newer than the\n" +
			"cutoff are kept because an in-flight publish may still reference them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := newRunLogger(cfg, false)
			if err != nil {
				return err
			}

			result := staging.CleanStale(cmd.Context(), cfg.StagingDir(), maxAge, logger)

			out := cmd.OutOrStdout()
			if len(result.Removed) == 0 && len(result.Errors) == 0 {
				fmt.Fprintln(out, "No stale entries to clean")
				return nil
			}
			fmt.Fprintf(out, "Removed %d stale entries\n", len(result.Removed))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  Error: %s: %v\n", e.Path, e.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", staleArtifactAge, "Remove entries older than this duration")
	return cmd
}

func formatAge(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
