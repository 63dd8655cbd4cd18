// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/molsearch/internal/jobs"
	"github.com/pdiddy/molsearch/internal/ledger"
	"github.com/pdiddy/molsearch/internal/sink"
	"github.com/pdiddy/molsearch/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a search, wait for it, and write the filtered hits",
	Long: `Run submits one job per query molecule, polls until every job has
finished, downloads the result pages, keeps the hits inside the similarity
threshold and property ranges, and writes them to a JSON or CSV file.

Nothing is written when any job fails. With --resume, queries that already
succeeded in an earlier run writing to the same --out file are not
resubmitted; their finished jobs are fetched again instead.`,
	Example: `  molsearch run --smiles 'CC(=O)Oc1ccccc1C(=O)O' --db-name ZINC15 --sim-th 0.8 --prop MW=200:500
  molsearch run --input-csv queries.csv --id-col name --out hits.csv --resume`,
	RunE: runRun,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a search without waiting for it",
	Long: `Submit validates the request, creates one job per query molecule and
records them in the ledger. Use "molsearch fetch <run>" to collect the
results later.`,
	RunE: runSubmit,
}

func init() {
	addRequestFlags(runCmd)
	addOutputFlags(runCmd)
	runCmd.Flags().Bool("resume", false, "reuse jobs that already succeeded for the same --out file")

	addRequestFlags(submitCmd)
	addOutputFlags(submitCmd)

	rootCmd.AddCommand(runCmd, submitCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	req, format, out, err := prepareRequest(cmd)
	if err != nil {
		return err
	}
	resume, _ := cmd.Flags().GetBool("resume")
	if resume && out == "" {
		return fmt.Errorf("--resume needs --out to match earlier runs")
	}

	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	reused := map[types.Molecule]string{}
	if resume {
		reused, err = led.CompletedQueries(ctx, out, req)
		if err != nil {
			return err
		}
	}

	svc := newService(env)
	handle, err := submitPending(ctx, svc, led, req, reused, out, format)
	if err != nil {
		return err
	}
	out = outputPath(out, format, handle.ID, req.DatabaseName)

	res, err := svc.AwaitCompletion(ctx, handle)
	if err != nil {
		recordFailure(ctx, led, handle.ID, err)
		return err
	}
	return deliver(ctx, cmd, led, handle.ID, res, out, format)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	req, format, out, err := prepareRequest(cmd)
	if err != nil {
		return err
	}

	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	handle, err := submitPending(ctx, newService(env), led, req, nil, out, format)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s\n", handle.ID)
	for _, j := range handle.Jobs {
		fmt.Fprintf(w, "  %-12s  %-40s  %s\n", j.Query.ID, j.Query.SMILES, j.Name)
	}
	return nil
}

// prepareRequest builds and validates the request so nothing is sent for
// an invalid one, and resolves the output settings.
func prepareRequest(cmd *cobra.Command) (types.JobRequest, types.OutputFormat, string, error) {
	format, out, err := outputFromFlags(cmd)
	if err != nil {
		return types.JobRequest{}, "", "", err
	}
	req, err := requestFromFlags(cmd)
	if err != nil {
		return req, "", "", err
	}
	req.APIKey = env.apiKey
	req, err = jobs.Validate(req, env.catalog)
	if err != nil {
		return req, "", "", err
	}
	return req, format, out, nil
}

// submitPending submits every molecule without a reusable job and records
// the run, including the jobs created before a partial failure. The
// returned handle lists jobs in request order.
func submitPending(ctx context.Context, svc jobs.Service, led *ledger.Ledger, req types.JobRequest,
	reused map[types.Molecule]string, out string, format types.OutputFormat) (*types.JobHandle, error) {
	var pending []types.Molecule
	for _, m := range req.Molecules {
		if _, ok := reused[m]; !ok {
			pending = append(pending, m)
		}
	}
	if skipped := len(req.Molecules) - len(pending); skipped > 0 {
		env.logger.Info("reusing finished jobs", slog.Int("queries", skipped))
	}

	names := make(map[types.Molecule]string, len(req.Molecules))
	for m, name := range reused {
		names[m] = name
	}

	handle := &types.JobHandle{ID: uuid.NewString(), Request: req, SubmittedAt: time.Now().UTC()}
	var submitErr error
	if len(pending) > 0 {
		sub := req
		sub.Molecules = pending
		h, err := svc.Submit(ctx, sub)
		var partial *jobs.PartialSubmitError
		switch {
		case errors.As(err, &partial):
			for _, j := range partial.Submitted {
				names[j.Query] = j.Name
			}
			submitErr = err
		case err != nil:
			return nil, err
		default:
			handle.ID, handle.SubmittedAt = h.ID, h.SubmittedAt
			for _, j := range h.Jobs {
				names[j.Query] = j.Name
			}
		}
	}

	for _, m := range req.Molecules {
		if name, ok := names[m]; ok {
			handle.Jobs = append(handle.Jobs, types.RemoteJob{Query: m, Name: name})
		}
	}
	if submitErr != nil {
		recordSubmission(ctx, led, handle, outputPath(out, format, handle.ID, req.DatabaseName))
		recordFailure(ctx, led, handle.ID, submitErr)
		return nil, submitErr
	}
	if err := led.RecordSubmission(ctx, handle, outputPath(out, format, handle.ID, req.DatabaseName)); err != nil {
		return nil, err
	}
	env.logger.Info("run recorded", slog.String("run", handle.ID), slog.Int("jobs", len(handle.Jobs)))
	return handle, nil
}

// deliver writes the result file and marks the run complete.
func deliver(ctx context.Context, cmd *cobra.Command, led *ledger.Ledger, runID string,
	res *types.JobResult, out string, format types.OutputFormat) error {
	for _, q := range res.Queries {
		if err := led.MarkJob(ctx, q.JobName, types.StatusSucceeded, "", q.Columns.Rows()); err != nil {
			return err
		}
	}
	if err := sink.Write(out, format, res); err != nil {
		recordFailure(ctx, led, runID, err)
		return err
	}
	if err := led.MarkRunOutput(ctx, runID, out); err != nil {
		return err
	}
	env.logger.Info("results written",
		slog.String("run", runID),
		slog.String("path", out),
		slog.Int("queries", len(res.Queries)),
		slog.Int("hits", res.Hits()),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "%d hit(s) for %d query molecule(s) written to %s\n", res.Hits(), len(res.Queries), out)
	return nil
}

func recordSubmission(ctx context.Context, led *ledger.Ledger, handle *types.JobHandle, out string) {
	if err := led.RecordSubmission(context.WithoutCancel(ctx), handle, out); err != nil {
		env.logger.Warn("recording submission", slog.String("run", handle.ID), slog.Any("error", err))
	}
}

// recordFailure stores the failure in the ledger; ledger errors are only
// logged so the original error reaches the operator.
func recordFailure(ctx context.Context, led *ledger.Ledger, runID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	var jobErr *jobs.JobExecutionError
	if errors.As(cause, &jobErr) {
		if err := led.MarkJob(ctx, jobErr.JobName, types.StatusFailed, jobErr.Reason, 0); err != nil {
			env.logger.Warn("recording job failure", slog.String("job", jobErr.JobName), slog.Any("error", err))
		}
	}
	if err := led.MarkRunFailed(ctx, runID, cause.Error()); err != nil {
		env.logger.Warn("recording run failure", slog.String("run", runID), slog.Any("error", err))
	}
}
