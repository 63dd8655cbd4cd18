// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jobs is the Search Service job client: it submits
// search-and-filter jobs, polls them to a terminal state, and fetches the
// filtered result pages.
//
// Endpoints used:
//
//	GET  /submit_molsearch        molsearch submission, returns the job name
//	POST /submit_synthongpt_job   synthongpt submission, returns the job name
//	GET  /job_status              state of a molsearch job
//	POST /get_molsearch_page      one page of filtered results
//
// Every request carries the X-API-Key header.
package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pdiddy/molsearch/internal/catalog"
	"github.com/pdiddy/molsearch/internal/httputil"
	"github.com/pdiddy/molsearch/pkg/types"
)

// Service is the submit/poll protocol as seen by callers. *Client
// implements it; tests substitute fakes.
type Service interface {
	Submit(ctx context.Context, req types.JobRequest) (*types.JobHandle, error)
	AwaitCompletion(ctx context.Context, handle *types.JobHandle) (*types.JobResult, error)
	Status(ctx context.Context, apiKey, jobName string) (StatusReport, error)
	FetchResults(ctx context.Context, handle *types.JobHandle) (*types.JobResult, error)
}

// Recorder receives client events for metrics. All methods must be cheap.
type Recorder interface {
	JobSubmitted()
	JobFinished(status types.JobStatus, waited time.Duration)
	StatusPolled()
	Request(op string, code int)
	RowsKept(n int)
}

// Limiter throttles outbound requests; *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Client talks to one Search Service.
type Client struct {
	cfg     types.ClientConfig
	http    *http.Client
	catalog *catalog.Catalog
	logger  *slog.Logger
	rec     Recorder
	limiter Limiter
	now     func() time.Time
}

var _ Service = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client (timeout from config).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCatalog sets the property catalog used for validation.
func WithCatalog(cat *catalog.Catalog) Option {
	return func(c *Client) { c.catalog = cat }
}

// WithLogger sets the logger for progress and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// WithLimiter overrides the limiter built from RequestsPerSecond.
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New builds a Client. Zero config fields take the defaults from
// types.ClientConfig.WithDefaults.
func New(cfg types.ClientConfig, opts ...Option) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		catalog: catalog.Default(),
		logger:  slog.Default(),
		rec:     nopRecorder{},
		now:     time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Client) Config() types.ClientConfig { return c.cfg }

// Submit validates req and creates one remote job per query molecule. No
// request is sent when validation fails. If a later molecule fails after
// earlier jobs were created, the error is a *PartialSubmitError listing
// them; nothing is resubmitted.
func (c *Client) Submit(ctx context.Context, req types.JobRequest) (*types.JobHandle, error) {
	req, err := Validate(req, c.catalog)
	if err != nil {
		return nil, err
	}

	handle := &types.JobHandle{
		ID:          uuid.NewString(),
		Request:     req,
		SubmittedAt: c.now().UTC(),
	}

	for i, m := range req.Molecules {
		name, err := c.submitOne(ctx, req, m)
		if err != nil {
			if len(handle.Jobs) > 0 {
				return nil, &PartialSubmitError{Submitted: handle.Jobs, Err: err}
			}
			return nil, err
		}
		c.rec.JobSubmitted()
		c.logger.Info("job submitted",
			slog.String("job", name),
			slog.String("query", m.SMILES),
			slog.Int("index", i+1),
			slog.Int("of", len(req.Molecules)),
		)
		handle.Jobs = append(handle.Jobs, types.RemoteJob{Query: m, Name: name})
	}
	return handle, nil
}

func (c *Client) submitOne(ctx context.Context, req types.JobRequest, m types.Molecule) (string, error) {
	var (
		body []byte
		err  error
	)
	switch req.Engine {
	case types.EngineSynthonGPT:
		params := url.Values{
			"search_input":       {m.SMILES},
			"db_name":            {req.DatabaseName},
			"search_quality":     {string(req.SearchQuality)},
			"include_properties": {boolParam(req.WantsProperties())},
			"include_metadata":   {"false"},
		}
		body, err = c.do(ctx, "submit", http.MethodPost, "/submit_synthongpt_job", params, struct{}{}, req.APIKey)
	default:
		params := url.Values{
			"search_input":   {m.SMILES},
			"search_type":    {string(req.SearchType)},
			"search_quality": {string(req.SearchQuality)},
			"db_names":       {req.DatabaseName},
		}
		body, err = c.do(ctx, "submit", http.MethodGet, "/submit_molsearch", params, nil, req.APIKey)
	}
	if err != nil {
		return "", err
	}

	name, err := parseJobName(body)
	if err != nil {
		return "", &NetworkError{Op: "submit", StatusCode: http.StatusOK, Err: err}
	}
	return name, nil
}

// Status asks the service for the state of one molsearch job.
func (c *Client) Status(ctx context.Context, apiKey, jobName string) (StatusReport, error) {
	if strings.TrimSpace(apiKey) == "" {
		return StatusReport{JobName: jobName}, &AuthError{Op: "status", Detail: "missing API key"}
	}
	body, err := c.do(ctx, "status", http.MethodGet, "/job_status", url.Values{"job_name": {jobName}}, nil, apiKey)
	if err != nil {
		return StatusReport{JobName: jobName}, err
	}
	c.rec.StatusPolled()

	rep, err := parseStatus(jobName, body)
	if err != nil {
		return rep, &NetworkError{Op: "status", StatusCode: http.StatusOK, Err: err}
	}
	return rep, nil
}

// do sends one request through the limiter and the retry helper, and
// returns the body of a 2xx response or a typed error.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, payload any, apiKey string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &NetworkError{Op: op, Err: err}
		}
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &ValidationError{Op: op, Problems: []string{"encoding request body: " + err.Error()}}
		}
		reqBody = bytes.NewReader(data)
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-API-Key", apiKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httputil.DoWithPolicy(ctx, c.http, req, c.cfg.MaxRetries, retryPolicy(op))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	c.rec.Request(op, resp.StatusCode)

	if err := classify(op, resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

// retryPolicy keeps job creation at most once: a submit is only resent
// when the service certainly did not receive it. Reads retry freely.
func retryPolicy(op string) httputil.RetryPolicy {
	if op == "submit" {
		return httputil.RetryUnsent
	}
	return httputil.RetryIdempotent
}

func boolParam(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted() {}
func (nopRecorder) JobFinished(types.JobStatus, time.Duration) {}
func (nopRecorder) StatusPolled() {}
func (nopRecorder) Request(string, int) {}
func (nopRecorder) RowsKept(int) {}
