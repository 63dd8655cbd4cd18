// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/molsearch/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or the jobs of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to list (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	w := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := led.Run(ctx, args[0])
		if err != nil {
			return err
		}
		jobs, err := led.Jobs(ctx, run.ID)
		if err != nil {
			return err
		}
		formatRun(w, run, jobs)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := led.Runs(ctx, limit)
	if err != nil {
		return err
	}
	formatRuns(w, runs)
	return nil
}

func formatRuns(w io.Writer, runs []ledger.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-10s  %-9s  %4s  %s\n",
		"Run", "Created", "Database", "Engine", "Status", "Jobs", "Output")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %-10s  %-10s  %-9s  %4d  %s\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Database, r.Engine, r.Status, r.Jobs, r.OutputPath)
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
}

func formatRun(w io.Writer, r ledger.Run, jobs []ledger.Job) {
	fmt.Fprintf(w, "Run:      %s\n", r.ID)
	fmt.Fprintf(w, "Created:  %s\n", r.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Database: %s (%s)\n", r.Database, r.Engine)
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	if r.Reason != "" {
		fmt.Fprintf(w, "Reason:   %s\n", r.Reason)
	}
	if r.OutputPath != "" {
		fmt.Fprintf(w, "Output:   %s\n", r.OutputPath)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-12s  %-40s  %-10s  %6s  %s\n", "Query", "Job", "Status", "Hits", "SMILES")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, j := range jobs {
		fmt.Fprintf(w, "%-12s  %-40s  %-10s  %6d  %s\n", j.Query.ID, j.Name, j.Status, j.Hits, j.Query.SMILES)
		if j.Reason != "" {
			fmt.Fprintf(w, "%-12s  %s\n", "", j.Reason)
		}
	}
}
