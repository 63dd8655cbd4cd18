// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pdiddy/molsearch/internal/ledger"
	"github.com/pdiddy/molsearch/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id | job-name>...",
	Short: "Check the state of submitted jobs",
	Long: `Status asks the Search Service for the state of every job of a run in the
ledger, or of raw job names. The ledger is updated with what the service
reports. SynthonGPT jobs have no status endpoint; use fetch --wait for them.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	var targets []ledger.Job
	for _, arg := range args {
		runJobs, err := led.Jobs(ctx, arg)
		if err != nil {
			return err
		}
		if len(runJobs) == 0 {
			targets = append(targets, ledger.Job{Name: arg})
			continue
		}
		engine, err := runEngine(cmd, led, arg)
		if err != nil {
			return err
		}
		if engine == types.EngineSynthonGPT {
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: synthongpt jobs have no status endpoint, use fetch --wait\n", arg)
			continue
		}
		targets = append(targets, runJobs...)
	}

	svc := newService(env)
	w := cmd.OutOrStdout()
	var failed int
	for _, job := range targets {
		rep, err := svc.Status(ctx, env.apiKey, job.Name)
		if err != nil {
			return err
		}
		if err := led.MarkJob(ctx, job.Name, rep.Status, rep.Reason, job.Hits); err != nil {
			env.logger.Warn("updating ledger", slog.String("job", job.Name), slog.Any("error", err))
		}

		label := job.Query.ID
		if label == "" {
			label = "-"
		}
		fmt.Fprintf(w, "%-40s  %-12s  %-10s", job.Name, label, rep.Status)
		if rep.Reason != "" {
			fmt.Fprintf(w, "  %s", rep.Reason)
		}
		fmt.Fprintln(w)
		if rep.Status == types.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d job(s) failed", failed)
	}
	return nil
}

// runEngine returns the engine a ledger run was submitted to.
func runEngine(cmd *cobra.Command, led *ledger.Ledger, runID string) (types.Engine, error) {
	h, err := led.Handle(cmd.Context(), runID)
	if errors.Is(err, ledger.ErrRunNotFound) {
		return types.EngineMolSearch, nil
	}
	if err != nil {
		return "", err
	}
	return h.Request.WithDefaults().Engine, nil
}
