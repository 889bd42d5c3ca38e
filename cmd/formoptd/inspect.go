package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/form-optimizer/internal/history"
	"github.com/GoSim-25-26J-441/form-optimizer/internal/improvement"
)

var (
	historyLimit   int
	historySummary bool
)

var bestCmd = &cobra.Command{
	Use:   "best",
	Short: "Print the persisted best result",
	RunE: func(cmd *cobra.Command, args []string) error {
		backing, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer backing.Close()
		store, err := improvement.NewBestStore(cmd.Context(), backing)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(store.Best())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded improvements, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Storage.HistoryPath == "" {
			return fmt.Errorf("storage.history_path is not configured")
		}
		ledger, err := history.Open(cfg.Storage.HistoryPath)
		if err != nil {
			return err
		}
		defer ledger.Close()

		out := cmd.OutOrStdout()
		if historySummary {
			sum, err := ledger.Summary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "entries: %d\nmean:    %.4f\nstddev:  %.4f\nmax:     %.4f\n", sum.Count, sum.Mean, sum.StdDev, sum.Max)
			return nil
		}

		entries, err := ledger.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(out, "No history recorded")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTIME\tTYPE\tSCORE\tFIELDS")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%d\n", e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.Score, len(e.Combination))
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries to list (0 lists all)")
	historyCmd.Flags().BoolVar(&historySummary, "summary", false, "Print summary statistics instead of entries")
	rootCmd.AddCommand(bestCmd, historyCmd)
}
