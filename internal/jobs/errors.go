// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/molsearch/pkg/types"
)

// ErrWaitTimeout is returned (wrapped) when a job stays non-terminal past
// the configured MaxWait.
var ErrWaitTimeout = errors.New("timed out waiting for job")

// AuthError reports a missing or rejected API key.
type AuthError struct {
	Op         string
	StatusCode int // zero when the key was missing locally
	Detail     string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: authentication failed: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("%s: authentication failed (HTTP %d, check X-API-Key and host): %s", e.Op, e.StatusCode, e.Detail)
}

// ValidationError reports request parameters rejected locally or by the
// service. Problems lists each offending field.
type ValidationError struct {
	Op         string
	StatusCode int // zero for local validation
	Problems   []string
}

func (e *ValidationError) Error() string {
	msg := strings.Join(e.Problems, "; ")
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: invalid request: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s: request rejected (HTTP %d): %s", e.Op, e.StatusCode, msg)
}

// JobExecutionError reports a remote job that reached the Failed state.
type JobExecutionError struct {
	JobName string
	Query   types.Molecule
	Status  string // raw service state, e.g. "FAILURE"
	Reason  string
}

func (e *JobExecutionError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no reason reported"
	}
	return fmt.Sprintf("job %s (query %s) failed with %s: %s", e.JobName, e.Query.SMILES, e.Status, reason)
}

// NetworkError reports a transport failure, or a transient HTTP status that
// persisted after retries.
type NetworkError struct {
	Op         string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: service error (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// PartialSubmitError is returned when a multi-molecule submission fails
// after some jobs were already created. Submitted lists those jobs so the
// caller can record them; they are never resubmitted.
type PartialSubmitError struct {
	Submitted []types.RemoteJob
	Err       error
}

func (e *PartialSubmitError) Error() string {
	return fmt.Sprintf("submission stopped after %d job(s): %v", len(e.Submitted), e.Err)
}

func (e *PartialSubmitError) Unwrap() error { return e.Err }
