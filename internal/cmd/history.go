package cmd

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"spo-preflight/internal/config"
	"spo-preflight/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	var (
		configPath string
		dbPath     string
		root       string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous scan runs",
		Long: `History lists scans recorded in the local history database, most recent
first.

Examples:
  # Last 10 runs
  preflight history

  # Runs of one share
  preflight history --root /data --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
			if cmd.Flags().Changed("db") {
				cfg.History.DBPath = dbPath
			}

			if root != "" {
				if abs, err := filepath.Abs(root); err == nil {
					root = abs
				}
			}

			store, err := history.NewStore(cfg.History.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), root, limit)
			if err != nil {
				return err
			}
			printRuns(cmd, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&dbPath, "db", config.DefaultConfig().History.DBPath, "History database path")
	cmd.Flags().StringVar(&root, "root", "", "Only show runs of this scan path")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show (0 for all)")

	return cmd
}

func printRuns(cmd *cobra.Command, runs []*history.Run) {
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No scan runs recorded.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tROOT\tITEMS\tISSUES\tDURATION\tEXIT\tSTATUS")
	for _, run := range runs {
		status := "complete"
		switch {
		case run.Cancelled:
			status = "cancelled"
		case !run.ReportFinalized:
			status = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Root,
			humanize.Comma(run.ItemsScanned),
			humanize.Comma(run.IssuesFound),
			time.Duration(run.DurationSecs*float64(time.Second)).Round(time.Millisecond),
			run.ExitCode,
			status,
		)
	}
	tw.Flush()
}
