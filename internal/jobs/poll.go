// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/molsearch/pkg/types"
)

// AwaitCompletion polls every job in the handle until it reaches a
// terminal state, then fetches and returns the filtered results. Jobs are
// awaited in request order. The first Failed job ends the wait with a
// *JobExecutionError; no partial result is returned.
//
// Calling it again after completion re-polls (the service answers with the
// same terminal state) and re-fetches the same pages.
func (c *Client) AwaitCompletion(ctx context.Context, handle *types.JobHandle) (*types.JobResult, error) {
	if err := checkHandle("await", handle); err != nil {
		return nil, err
	}

	for _, job := range handle.Jobs {
		var err error
		if handle.Request.Engine == types.EngineSynthonGPT {
			err = c.awaitFirstPage(ctx, handle.Request, job)
		} else {
			err = c.awaitByStatus(ctx, handle.Request.APIKey, job)
		}
		if err != nil {
			return nil, err
		}
	}
	return c.FetchResults(ctx, handle)
}

// awaitByStatus drives the Pending -> Running -> {Succeeded, Failed} state
// machine through the status endpoint.
func (c *Client) awaitByStatus(ctx context.Context, apiKey string, job types.RemoteJob) error {
	start := c.now()
	for attempt := 1; ; attempt++ {
		rep, err := c.Status(ctx, apiKey, job.Name)
		if err != nil {
			return fmt.Errorf("polling job %s: %w", job.Name, err)
		}

		switch rep.Status {
		case types.StatusSucceeded:
			waited := c.now().Sub(start)
			c.rec.JobFinished(rep.Status, waited)
			c.logger.Info("job completed", slog.String("job", job.Name), slog.Duration("waited", waited))
			return nil
		case types.StatusFailed:
			c.rec.JobFinished(rep.Status, c.now().Sub(start))
			return &JobExecutionError{JobName: job.Name, Query: job.Query, Status: rep.Raw, Reason: rep.Reason}
		}

		c.logger.Info("job not finished, waiting",
			slog.String("job", job.Name),
			slog.String("status", rep.Raw),
			slog.Int("attempt", attempt),
		)
		if err := c.pause(ctx, start, attempt, job, string(rep.Status)); err != nil {
			return err
		}
	}
}

// awaitFirstPage waits for a synthongpt job, which has no status endpoint,
// by fetching result page 0 until it holds rows. Authentication and
// validation failures end the wait; other errors mean "still processing".
func (c *Client) awaitFirstPage(ctx context.Context, req types.JobRequest, job types.RemoteJob) error {
	start := c.now()
	for attempt := 1; ; attempt++ {
		page, err := c.fetchPage(ctx, req, job.Name, 0)
		if err == nil && page.Rows() > 0 {
			waited := c.now().Sub(start)
			c.rec.JobFinished(types.StatusSucceeded, waited)
			c.logger.Info("job completed", slog.String("job", job.Name), slog.Duration("waited", waited))
			return nil
		}
		if err != nil {
			var authErr *AuthError
			var valErr *ValidationError
			if errors.As(err, &authErr) || errors.As(err, &valErr) || ctx.Err() != nil {
				return fmt.Errorf("checking first page of job %s: %w", job.Name, err)
			}
			c.logger.Debug("first page check failed", slog.String("job", job.Name), slog.Any("error", err))
		}

		c.logger.Info("results not available yet, waiting",
			slog.String("job", job.Name),
			slog.Int("attempt", attempt),
		)
		if err := c.pause(ctx, start, attempt, job, string(types.StatusRunning)); err != nil {
			return err
		}
	}
}

// pause sleeps before the next poll, or fails once MaxWait has elapsed.
func (c *Client) pause(ctx context.Context, start time.Time, attempt int, job types.RemoteJob, status string) error {
	if c.now().Sub(start) >= c.cfg.MaxWait {
		c.rec.JobFinished("TIMEOUT", c.now().Sub(start))
		return fmt.Errorf("%w: job %s still %s after %s", ErrWaitTimeout, job.Name, status, c.cfg.MaxWait)
	}

	t := time.NewTimer(pollDelay(c.cfg.PollInterval, c.cfg.MaxPollInterval, attempt))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pollDelay grows the interval gently with each attempt:
// base * (1 + 0.15*min(attempt, 20)), capped at max.
func pollDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt > 20 {
		attempt = 20
	}
	d := time.Duration(float64(base) * (1 + 0.15*float64(attempt)))
	if d > max {
		return max
	}
	return d
}

func checkHandle(op string, handle *types.JobHandle) error {
	if handle == nil || len(handle.Jobs) == 0 {
		return &ValidationError{Op: op, Problems: []string{"job handle has no jobs"}}
	}
	if handle.Request.APIKey == "" {
		return &AuthError{Op: op, Detail: "missing API key"}
	}
	return nil
}
