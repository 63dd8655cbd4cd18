// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pdiddy/molsearch/pkg/types"
)

// StatusReport is one answer from the status endpoint.
type StatusReport struct {
	JobName string
	Status  types.JobStatus
	Raw     string // state as reported by the service
	Reason  string // failure detail, when the service sends one
}

// NormalizeStatus maps a raw service state onto the client state machine.
// Unrecognized states count as running so polling continues until a known
// terminal state or the wait ceiling.
func NormalizeStatus(raw string) types.JobStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "QUEUED", "RECEIVED", "SUBMITTED":
		return types.StatusPending
	case "SUCCESS", "SUCCEEDED", "COMPLETED", "DONE":
		return types.StatusSucceeded
	case "FAILURE", "FAILED", "REVOKED", "ERROR", "CANCELLED", "CANCELED":
		return types.StatusFailed
	default:
		return types.StatusRunning
	}
}

// reasonKeys are the object fields searched for a failure detail.
var reasonKeys = []string{"reason", "error", "detail", "message", "traceback", "result"}

// parseStatus decodes the status body. The service answers with a JSON
// string ("SUCCESS"); an object with a "status"/"state" field and an
// optional failure detail, or plain text, are accepted as well.
func parseStatus(jobName string, body []byte) (StatusReport, error) {
	rep := StatusReport{JobName: jobName}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return rep, fmt.Errorf("empty status response for job %s", jobName)
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		rep.Raw = s
		rep.Status = NormalizeStatus(s)
		return rep, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"status", "state", "job_status"} {
			if v, ok := obj[key].(string); ok && v != "" {
				rep.Raw = v
				break
			}
		}
		if rep.Raw == "" {
			return rep, fmt.Errorf("status response for job %s has no status field: %s", jobName, snippet(body))
		}
		rep.Status = NormalizeStatus(rep.Raw)
		for _, key := range reasonKeys {
			if v, ok := obj[key]; ok && v != nil {
				rep.Reason = stringify(v)
				break
			}
		}
		return rep, nil
	}

	if strings.ContainsAny(trimmed[:1], "[{") {
		return rep, fmt.Errorf("unexpected status response for job %s: %s", jobName, snippet(body))
	}
	rep.Raw = trimmed
	rep.Status = NormalizeStatus(trimmed)
	return rep, nil
}

// parseJobName extracts the job identifier from a submission response: a
// JSON string, an object carrying one of the usual id fields, or plain text.
func parseJobName(body []byte) (string, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", fmt.Errorf("empty submit response")
	}

	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		if s == "" {
			return "", fmt.Errorf("submit response is an empty string")
		}
		return s, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, key := range []string{"job_name", "job_id", "id", "job", "result"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return v, nil
			}
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v, ok := obj[k].(string); ok && v != "" {
				return v, nil
			}
		}
		return "", fmt.Errorf("unexpected submit response shape: %s", snippet(body))
	}

	if strings.ContainsAny(trimmed[:1], "[{\"") {
		return "", fmt.Errorf("unexpected submit response shape: %s", snippet(body))
	}
	return trimmed, nil
}

// classify turns a non-2xx response into the matching typed error.
func classify(op string, code int, body []byte) error {
	if code >= 200 && code < 300 {
		return nil
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Op: op, StatusCode: code, Detail: snippet(body)}
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return &ValidationError{Op: op, StatusCode: code, Problems: detailProblems(body)}
	default:
		return &NetworkError{Op: op, StatusCode: code, Err: errors.New(snippet(body))}
	}
}

// detailProblems reads a FastAPI-style {"detail": ...} body where detail is
// a string or a list of {"loc": [...], "msg": "..."} entries.
func detailProblems(body []byte) []string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return []string{snippet(body)}
	}

	var msg string
	if err := json.Unmarshal(payload.Detail, &msg); err == nil {
		return []string{msg}
	}

	var entries []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &entries); err == nil && len(entries) > 0 {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			loc := make([]string, 0, len(e.Loc))
			for _, l := range e.Loc {
				loc = append(loc, fmt.Sprint(l))
			}
			if len(loc) > 0 {
				out = append(out, strings.Join(loc, ".")+": "+e.Msg)
			} else {
				out = append(out, e.Msg)
			}
		}
		return out
	}
	return []string{snippet(payload.Detail)}
}

const snippetLen = 600

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "(empty body)"
	}
	if len(s) > snippetLen {
		return s[:snippetLen] + "..."
	}
	return s
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
