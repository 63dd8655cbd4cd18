// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/molsearch/internal/jobs"
	"github.com/pdiddy/molsearch/internal/ledger"
	"github.com/pdiddy/molsearch/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <run-id | job-name>...",
	Short: "Download and filter the results of submitted jobs",
	Long: `Fetch downloads the result pages of a run recorded in the ledger, or of
raw job names, applies the similarity threshold and property ranges, and
writes the hits. For a ledger run the stored request is used and the
request flags are ignored; for job names they describe the search.

Without --wait every molsearch job must already have succeeded; fetch checks
its status once and stops if it has not. With --wait every job is polled
until it finishes first. SynthonGPT jobs have no status endpoint, so their
completion is always detected by polling the first result page.`,
	Example: `  molsearch fetch 5b0e3c2a-... --out hits.csv
  molsearch fetch molsearch-job-1234 --db-name ZINC15 --sim-th 0.8 --wait`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	f := fetchCmd.Flags()
	f.String("db-name", defaultDatabase, "database the jobs searched (job names only)")
	f.Float64("sim-th", defaultThreshold, "minimum similarity, in [0,1] (job names only)")
	f.StringArray("prop", nil, "property range NAME=MIN:MAX, repeatable (job names only)")
	f.String("engine", string(types.EngineMolSearch), "job family: molsearch or synthongpt (job names only)")
	f.Bool("include-properties", true, "return computed properties with each hit; off by default for synthongpt (job names only)")
	f.Bool("wait", false, "poll every job until it finishes before fetching")
	addOutputFlags(fetchCmd)

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, out, err := outputFromFlags(cmd)
	if err != nil {
		return err
	}

	led, err := openLedger()
	if err != nil {
		return err
	}
	defer led.Close()

	handle, recorded, err := resolveHandle(cmd, led, args)
	if err != nil {
		return err
	}
	if !recorded {
		if err := led.RecordSubmission(ctx, handle, ""); err != nil {
			return err
		}
	}
	if out == "" && recorded {
		if run, err := led.Run(ctx, handle.ID); err == nil && run.OutputPath != "" {
			out = run.OutputPath
			if !cmd.Flags().Changed("format") && strings.EqualFold(filepath.Ext(out), ".csv") {
				format = types.OutputCSV
			}
		}
	}
	out = outputPath(out, format, handle.ID, handle.Request.DatabaseName)

	svc := newService(env)
	wait, _ := cmd.Flags().GetBool("wait")
	var res *types.JobResult
	if wait || handle.Request.Engine == types.EngineSynthonGPT {
		res, err = svc.AwaitCompletion(ctx, handle)
	} else {
		err = checkSucceeded(ctx, svc, led, handle)
		if errors.Is(err, errNotFinished) {
			return err
		}
		if err == nil {
			res, err = svc.FetchResults(ctx, handle)
		}
	}
	if err != nil {
		recordFailure(ctx, led, handle.ID, err)
		return err
	}
	return deliver(ctx, cmd, led, handle.ID, res, out, format)
}

var errNotFinished = errors.New("job not finished")

// checkSucceeded asks for the status of every job once and records what it
// sees. It fails unless all of them have succeeded.
func checkSucceeded(ctx context.Context, svc jobs.Service, led *ledger.Ledger, handle *types.JobHandle) error {
	for _, job := range handle.Jobs {
		rep, err := svc.Status(ctx, handle.Request.APIKey, job.Name)
		if err != nil {
			return err
		}
		if err := led.MarkJob(ctx, job.Name, rep.Status, rep.Reason, 0); err != nil {
			env.logger.Warn("updating ledger", slog.String("job", job.Name), slog.Any("error", err))
		}
		switch rep.Status {
		case types.StatusSucceeded:
		case types.StatusFailed:
			return &jobs.JobExecutionError{JobName: job.Name, Query: job.Query, Status: rep.Raw, Reason: rep.Reason}
		default:
			return fmt.Errorf("%w: %s is %s, retry later or use --wait", errNotFinished, job.Name, rep.Status)
		}
	}
	return nil
}

// resolveHandle returns the handle of a single ledger run, or builds one
// from raw job names and the request flags. recorded reports whether the
// handle came from the ledger.
func resolveHandle(cmd *cobra.Command, led *ledger.Ledger, args []string) (*types.JobHandle, bool, error) {
	if len(args) == 1 {
		h, err := led.Handle(cmd.Context(), args[0])
		switch {
		case err == nil:
			h.Request.APIKey = env.apiKey
			return h, true, nil
		case !errors.Is(err, ledger.ErrRunNotFound):
			return nil, false, err
		}
	}

	req, err := fetchRequest(cmd)
	if err != nil {
		return nil, false, err
	}
	h := &types.JobHandle{ID: uuid.NewString(), Request: req}
	for _, name := range args {
		m := types.Molecule{ID: name, SMILES: name}
		h.Request.Molecules = append(h.Request.Molecules, m)
		h.Jobs = append(h.Jobs, types.RemoteJob{Query: m, Name: name})
	}
	h.Request, err = jobs.Validate(h.Request, env.catalog)
	if err != nil {
		return nil, false, err
	}
	return h, false, nil
}

// fetchRequest builds the filter settings for raw job names. Molecules
// are filled in by the caller.
func fetchRequest(cmd *cobra.Command) (types.JobRequest, error) {
	f := cmd.Flags()
	req := types.JobRequest{APIKey: env.apiKey}
	req.DatabaseName, _ = f.GetString("db-name")
	req.SimilarityThreshold, _ = f.GetFloat64("sim-th")
	engine, _ := f.GetString("engine")
	req.Engine = types.Engine(engine)
	if f.Changed("include-properties") {
		include, _ := f.GetBool("include-properties")
		req.IncludeProperties = &include
	}

	props, _ := f.GetStringArray("prop")
	if len(props) > 0 {
		ranges, err := parsePropRanges(props)
		if err != nil {
			return req, err
		}
		req.PropertyRanges = ranges
	}
	return req, nil
}
