package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/alvmarrod/site-mirror/internal/storage"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent mirror runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := env.store.LastRuns(limit)
			if err != nil {
				return err
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntP("limit", "n", 10, "Number of runs to show")
	return cmd
}

func printRuns(w io.Writer, runs []storage.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tPAGES (ok/new/same/fail)\tASSETS (new/fail)\tSYNC\tCOMMIT")
	for _, r := range runs {
		m := r.Metrics
		duration := "running"
		if !r.FinishedAt.IsZero() {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d/%d/%d\t%d/%d\t%s\t%s\n",
			shorten(r.RunID, 8),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			m.PagesFetched, m.PagesWritten, m.PagesUnchanged, m.PagesFailed,
			m.AssetsDownloaded, m.AssetsFailed,
			r.SyncStatus,
			shorten(r.CommitHash, 7),
		)
	}
	return tw.Flush()
}

func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
