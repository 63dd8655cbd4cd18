// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/molsearch/internal/httputil"
	"github.com/pdiddy/molsearch/internal/logging"
	"github.com/pdiddy/molsearch/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

const testKey = "test-key"

// fakeService is an in-memory Search Service.
type fakeService struct {
	mu sync.Mutex

	submitCode  int      // non-zero: every submit answers with this status
	submitCodes []int    // statuses for the leading submits, in order
	statusCodes []int    // statuses for the leading status calls, in order
	failAfter   int      // submits beyond this count answer 422 (0 = never)
	statuses    []string // status answers in order; the last one repeats
	statusBody  string   // overrides the status answer when set
	pages       []map[string]any
	emptyPages  int // leading page requests answered with no rows
	pageCode    int

	submits     []*http.Request
	submitBody  []string
	statusCalls int
	pageCalls   []pageCall
	pageBodies  []pageBody
}

type pageCall struct {
	jobName, dbName, simTh, pageSize, pageNum, include string
}

func (f *fakeService) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	submit := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		f.submits = append(f.submits, r.Clone(context.Background()))
		f.submitBody = append(f.submitBody, string(body))
		if r.Header.Get("X-API-Key") != testKey {
			http.Error(w, `{"detail":"Invalid API key"}`, http.StatusUnauthorized)
			return
		}
		if n := len(f.submits); n <= len(f.submitCodes) {
			w.WriteHeader(f.submitCodes[n-1])
			w.Write([]byte(`{"detail":"upstream unavailable"}`))
			return
		}
		if f.submitCode != 0 {
			w.WriteHeader(f.submitCode)
			w.Write([]byte(`{"detail":[{"loc":["query","search_input"],"msg":"bad smiles"}]}`))
			return
		}
		if f.failAfter > 0 && len(f.submits) > f.failAfter {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"detail":"cannot parse SMILES"}`))
			return
		}
		json.NewEncoder(w).Encode("job-" + strconv.Itoa(len(f.submits)))
	}
	mux.HandleFunc("GET /submit_molsearch", submit)
	mux.HandleFunc("POST /submit_synthongpt_job", submit)

	mux.HandleFunc("GET /job_status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		i := f.statusCalls
		f.statusCalls++
		if i < len(f.statusCodes) {
			w.WriteHeader(f.statusCodes[i])
			w.Write([]byte(`{"detail":"upstream unavailable"}`))
			return
		}
		i -= len(f.statusCodes)
		if f.statusBody != "" {
			w.Write([]byte(f.statusBody))
			return
		}
		if i >= len(f.statuses) {
			i = len(f.statuses) - 1
		}
		json.NewEncoder(w).Encode(f.statuses[i])
	})

	mux.HandleFunc("POST /get_molsearch_page", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		q := r.URL.Query()
		f.pageCalls = append(f.pageCalls, pageCall{
			jobName:  q.Get("job_name"),
			dbName:   q.Get("db_name"),
			simTh:    q.Get("sim_th"),
			pageSize: q.Get("page_size"),
			pageNum:  q.Get("page_num"),
			include:  q.Get("include_properties"),
		})
		var body pageBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding page body: %v", err)
		}
		f.pageBodies = append(f.pageBodies, body)

		if f.pageCode != 0 {
			w.WriteHeader(f.pageCode)
			w.Write([]byte(`{"detail":"Not authenticated"}`))
			return
		}
		if len(f.pageCalls) <= f.emptyPages {
			json.NewEncoder(w).Encode(map[string]any{"smiles": []string{}, "id": []string{}})
			return
		}
		n, _ := strconv.Atoi(q.Get("page_num"))
		if n >= len(f.pages) {
			json.NewEncoder(w).Encode(map[string]any{})
			return
		}
		json.NewEncoder(w).Encode(f.pages[n])
	})
	return mux
}

func (f *fakeService) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits) + f.statusCalls + len(f.pageCalls)
}

func newTestClient(t *testing.T, f *fakeService, mod func(*types.ClientConfig)) *Client {
	t.Helper()
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)

	cfg := types.ClientConfig{
		HTTPConfig: types.HTTPConfig{
			BaseURL:    ts.URL,
			MaxRetries: 1,
		},
		PollInterval:    time.Millisecond,
		MaxPollInterval: 2 * time.Millisecond,
		MaxWait:         5 * time.Second,
	}
	if mod != nil {
		mod(&cfg)
	}
	return New(cfg, WithHTTPClient(ts.Client()), WithLogger(logging.Discard()))
}

func zincRequest(smiles ...string) types.JobRequest {
	mols := make([]types.Molecule, len(smiles))
	for i, s := range smiles {
		mols[i] = types.Molecule{SMILES: s}
	}
	return types.JobRequest{
		APIKey:              testKey,
		Molecules:           mols,
		DatabaseName:        "ZINC15",
		SimilarityThreshold: 0.8,
		PropertyRanges:      map[string]types.PropertyRange{"MW": {Min: 200, Max: 500}},
	}
}

// hitPage builds a page with the query echo row first, as the service does.
func hitPage() map[string]any {
	return map[string]any{
		"smiles":        []string{"CCO", "CCN", "CCC", "CCCl"},
		"id":            []string{"Query Molecule", "Z1", "Z2", "Z3"},
		"similarity":    []float64{1.0, 0.91, 0.85, 0.72},
		"in_prop_range": []bool{true, true, false, true},
		"total":         4,
	}
}

// --- Submit ---

func TestSubmit_MolSearchParams(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f, nil)

	req := zincRequest("CCO")
	req.SearchType = types.SearchMorgan
	req.SearchQuality = types.QualityAccurate
	h, err := c.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, h.ID)
	require.Len(t, h.Jobs, 1)
	assert.Equal(t, "job-1", h.Jobs[0].Name)
	assert.Equal(t, types.Molecule{ID: "1", SMILES: "CCO"}, h.Jobs[0].Query)
	assert.Equal(t, map[string]types.PropertyRange{"molecular_weight": {Min: 200, Max: 500}}, h.Request.PropertyRanges)

	require.Len(t, f.submits, 1)
	q := f.submits[0].URL.Query()
	assert.Equal(t, "CCO", q.Get("search_input"))
	assert.Equal(t, "morgan", q.Get("search_type"))
	assert.Equal(t, "accurate", q.Get("search_quality"))
	assert.Equal(t, "ZINC15", q.Get("db_names"))
	assert.Equal(t, testKey, f.submits[0].Header.Get("X-API-Key"))
}

func TestSubmit_OneJobPerMolecule(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f, nil)

	h, err := c.Submit(context.Background(), zincRequest("CCO", "c1ccccc1"))
	require.NoError(t, err)
	require.Len(t, h.Jobs, 2)
	assert.Equal(t, "job-1", h.Jobs[0].Name)
	assert.Equal(t, "CCO", h.Jobs[0].Query.SMILES)
	assert.Equal(t, "job-2", h.Jobs[1].Name)
	assert.Equal(t, "c1ccccc1", h.Jobs[1].Query.SMILES)
}

func TestSubmit_SynthonGPT(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f, nil)

	req := zincRequest("CCO")
	req.Engine = types.EngineSynthonGPT
	include := true
	req.IncludeProperties = &include
	h, err := c.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, h.Jobs, 1)

	require.Len(t, f.submits, 1)
	assert.Equal(t, http.MethodPost, f.submits[0].Method)
	q := f.submits[0].URL.Query()
	assert.Equal(t, "ZINC15", q.Get("db_name"))
	assert.Equal(t, "true", q.Get("include_properties"))
	assert.Equal(t, "false", q.Get("include_metadata"))
	assert.JSONEq(t, `{}`, f.submitBody[0])
}

func TestSubmit_InvalidPropertySendsNothing(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f, nil)

	req := zincRequest("CCO")
	req.PropertyRanges = map[string]types.PropertyRange{"not_a_property": {Min: 0, Max: 1}}
	_, err := c.Submit(context.Background(), req)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Error(), "invalid property not_a_property")
	assert.Zero(t, f.requests())
}

func TestSubmit_MissingAPIKey(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f, nil)

	req := zincRequest("CCO")
	req.APIKey = ""
	_, err := c.Submit(context.Background(), req)

	var aErr *AuthError
	require.ErrorAs(t, err, &aErr)
	assert.Zero(t, aErr.StatusCode)
	assert.Zero(t, f.requests())
}

func TestSubmit_Unauthorized(t *testing.T) {
	f := &fakeService{}
	c := newTestClient(t, f, nil)

	req := zincRequest("CCO")
	req.APIKey = "wrong"
	_, err := c.Submit(context.Background(), req)

	var aErr *AuthError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, http.StatusUnauthorized, aErr.StatusCode)
	assert.Contains(t, aErr.Detail, "Invalid API key")
}

func TestSubmit_Rejected(t *testing.T) {
	f := &fakeService{submitCode: http.StatusUnprocessableEntity}
	c := newTestClient(t, f, nil)

	_, err := c.Submit(context.Background(), zincRequest("CCO"))

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, http.StatusUnprocessableEntity, vErr.StatusCode)
	assert.Equal(t, []string{"query.search_input: bad smiles"}, vErr.Problems)
}

func TestSubmit_ServiceUnavailable(t *testing.T) {
	f := &fakeService{submitCode: http.StatusServiceUnavailable}
	c := newTestClient(t, f, nil)

	_, err := c.Submit(context.Background(), zincRequest("CCO"))

	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, http.StatusServiceUnavailable, nErr.StatusCode)
	// The job may exist already; it is never sent twice.
	assert.Len(t, f.submits, 1)
}

func TestSubmit_AmbiguousFailureNotResent(t *testing.T) {
	f := &fakeService{submitCodes: []int{http.StatusGatewayTimeout}}
	c := newTestClient(t, f, nil)

	_, err := c.Submit(context.Background(), zincRequest("CCO"))

	var nErr *NetworkError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, http.StatusGatewayTimeout, nErr.StatusCode)
	assert.Len(t, f.submits, 1)
}

func TestSubmit_RateLimitedIsResent(t *testing.T) {
	f := &fakeService{submitCodes: []int{http.StatusTooManyRequests}}
	c := newTestClient(t, f, nil)

	h, err := c.Submit(context.Background(), zincRequest("CCO"))
	require.NoError(t, err)
	require.Len(t, h.Jobs, 1)
	assert.Equal(t, "job-2", h.Jobs[0].Name)
	assert.Len(t, f.submits, 2)
}

func TestStatus_RetriesServiceUnavailable(t *testing.T) {
	f := &fakeService{statuses: []string{"SUCCESS"}, statusCodes: []int{http.StatusServiceUnavailable}}
	c := newTestClient(t, f, nil)

	rep, err := c.Status(context.Background(), testKey, "job-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSucceeded, rep.Status)
	assert.Equal(t, 2, f.statusCalls)
}

func TestSubmit_PartialFailure(t *testing.T) {
	f := &fakeService{failAfter: 1}
	c := newTestClient(t, f, nil)

	_, err := c.Submit(context.Background(), zincRequest("CCO", "not-smiles"))

	var pErr *PartialSubmitError
	require.ErrorAs(t, err, &pErr)
	require.Len(t, pErr.Submitted, 1)
	assert.Equal(t, "job-1", pErr.Submitted[0].Name)

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Len(t, f.submits, 2)
}

// --- AwaitCompletion ---

func TestAwaitCompletion_FiltersHits(t *testing.T) {
	f := &fakeService{
		statuses: []string{"PENDING", "STARTED", "SUCCESS"},
		pages:    []map[string]any{hitPage()},
	}
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	h, err := c.Submit(ctx, zincRequest("CCO"))
	require.NoError(t, err)

	res, err := c.AwaitCompletion(ctx, h)
	require.NoError(t, err)

	assert.Equal(t, 3, f.statusCalls)
	assert.Equal(t, h.ID, res.HandleID)
	assert.Equal(t, "ZINC15", res.Database)
	require.Len(t, res.Queries, 1)
	q := res.Queries[0]
	assert.Equal(t, "CCO", q.Query.SMILES)
	assert.Equal(t, 1, q.Columns.Rows())
	assert.JSONEq(t, `"Z1"`, string(q.Columns["id"][0]))
	assert.JSONEq(t, `0.91`, string(q.Columns["similarity"][0]))
	assert.NotContains(t, q.Columns, "total")

	require.Len(t, f.pageCalls, 1)
	p := f.pageCalls[0]
	assert.Equal(t, pageCall{jobName: "job-1", dbName: "ZINC15", simTh: "0.8", pageSize: "1000", pageNum: "0", include: "true"}, p)
	assert.Equal(t, map[string]types.PropertyRange{"molecular_weight": {Min: 200, Max: 500}}, f.pageBodies[0].PropRanges)
}

func TestAwaitCompletion_JobFailed(t *testing.T) {
	f := &fakeService{statusBody: `{"status":"FAILURE","reason":"RDKit could not parse molecule"}`}
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	h, err := c.Submit(ctx, zincRequest("CCO"))
	require.NoError(t, err)

	res, err := c.AwaitCompletion(ctx, h)
	assert.Nil(t, res)

	var jErr *JobExecutionError
	require.ErrorAs(t, err, &jErr)
	assert.Equal(t, "job-1", jErr.JobName)
	assert.Equal(t, "FAILURE", jErr.Status)
	assert.Equal(t, "RDKit could not parse molecule", jErr.Reason)
	assert.Empty(t, f.pageCalls)
}

func TestAwaitCompletion_Timeout(t *testing.T) {
	f := &fakeService{statuses: []string{"PENDING"}}
	c := newTestClient(t, f, func(cfg *types.ClientConfig) {
		cfg.MaxWait = 20 * time.Millisecond
	})
	ctx := context.Background()

	h, err := c.Submit(ctx, zincRequest("CCO"))
	require.NoError(t, err)

	_, err = c.AwaitCompletion(ctx, h)
	require.ErrorIs(t, err, ErrWaitTimeout)
	assert.Contains(t, err.Error(), "job-1")
	assert.Empty(t, f.pageCalls)
}

func TestAwaitCompletion_ContextCancelled(t *testing.T) {
	f := &fakeService{statuses: []string{"RUNNING"}}
	c := newTestClient(t, f, nil)

	h, err := c.Submit(context.Background(), zincRequest("CCO"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.AwaitCompletion(ctx, h)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestAwaitCompletion_Idempotent(t *testing.T) {
	f := &fakeService{
		statuses: []string{"SUCCESS"},
		pages:    []map[string]any{hitPage()},
	}
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	h, err := c.Submit(ctx, zincRequest("CCO"))
	require.NoError(t, err)

	first, err := c.AwaitCompletion(ctx, h)
	require.NoError(t, err)
	second, err := c.AwaitCompletion(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, f.submits, 1)
}

func TestAwaitCompletion_SynthonFirstPage(t *testing.T) {
	f := &fakeService{
		emptyPages: 2,
		pages:      []map[string]any{hitPage()},
	}
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	req := zincRequest("CCO")
	req.Engine = types.EngineSynthonGPT
	h, err := c.Submit(ctx, req)
	require.NoError(t, err)

	res, err := c.AwaitCompletion(ctx, h)
	require.NoError(t, err)

	assert.Zero(t, f.statusCalls)
	// Two empty first pages, one with rows, one fetch.
	assert.Len(t, f.pageCalls, 4)
	assert.Equal(t, 1, res.Hits())
}

func TestIncludeProperties_EngineDefaults(t *testing.T) {
	off := false
	tests := []struct {
		name    string
		engine  types.Engine
		include *bool
		want    string
	}{
		{"molsearch default", types.EngineMolSearch, nil, "true"},
		{"molsearch turned off", types.EngineMolSearch, &off, "false"},
		{"synthongpt default", types.EngineSynthonGPT, nil, "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeService{statuses: []string{"SUCCESS"}, pages: []map[string]any{hitPage()}}
			c := newTestClient(t, f, nil)
			ctx := context.Background()

			req := zincRequest("CCO")
			req.Engine = tt.engine
			req.IncludeProperties = tt.include
			h, err := c.Submit(ctx, req)
			require.NoError(t, err)
			_, err = c.AwaitCompletion(ctx, h)
			require.NoError(t, err)

			if tt.engine == types.EngineSynthonGPT {
				assert.Equal(t, tt.want, f.submits[0].URL.Query().Get("include_properties"))
			}
			require.NotEmpty(t, f.pageCalls)
			for _, p := range f.pageCalls {
				assert.Equal(t, tt.want, p.include)
			}
		})
	}
}

func TestAwaitCompletion_SynthonFirstPageAuthFails(t *testing.T) {
	f := &fakeService{pageCode: http.StatusForbidden}
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	req := zincRequest("CCO")
	req.Engine = types.EngineSynthonGPT
	h, err := c.Submit(ctx, req)
	require.NoError(t, err)

	_, err = c.AwaitCompletion(ctx, h)
	var aErr *AuthError
	require.ErrorAs(t, err, &aErr)
	assert.Equal(t, http.StatusForbidden, aErr.StatusCode)
	assert.Len(t, f.pageCalls, 1)
}

func TestAwaitCompletion_EmptyHandle(t *testing.T) {
	c := newTestClient(t, &fakeService{}, nil)

	_, err := c.AwaitCompletion(context.Background(), &types.JobHandle{})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = c.AwaitCompletion(context.Background(), nil)
	assert.ErrorAs(t, err, &vErr)
}

// --- Status ---

func TestStatus(t *testing.T) {
	f := &fakeService{statuses: []string{"STARTED"}}
	c := newTestClient(t, f, nil)

	rep, err := c.Status(context.Background(), testKey, "job-9")
	require.NoError(t, err)
	assert.Equal(t, StatusReport{JobName: "job-9", Status: types.StatusRunning, Raw: "STARTED"}, rep)

	_, err = c.Status(context.Background(), "", "job-9")
	var aErr *AuthError
	assert.ErrorAs(t, err, &aErr)
}

// --- FetchResults ---

func page(ids ...string) map[string]any {
	sims := make([]float64, len(ids))
	for i := range sims {
		sims[i] = 0.9
	}
	return map[string]any{"id": ids, "similarity": sims}
}

func TestFetchResults_StopsOnShortPage(t *testing.T) {
	f := &fakeService{pages: []map[string]any{page("a", "b"), page("c", "d"), page("e")}}
	c := newTestClient(t, f, func(cfg *types.ClientConfig) { cfg.PageSize = 2 })

	h := &types.JobHandle{
		ID:      "h1",
		Jobs:    []types.RemoteJob{{Query: types.Molecule{ID: "1", SMILES: "CCO"}, Name: "job-7"}},
		Request: zincRequest("CCO"),
	}
	res, err := c.FetchResults(context.Background(), h)
	require.NoError(t, err)

	assert.Len(t, f.pageCalls, 3)
	assert.Equal(t, 5, res.Hits())
	for i, pc := range f.pageCalls {
		assert.Equal(t, strconv.Itoa(i), pc.pageNum)
		assert.Equal(t, "2", pc.pageSize)
	}
}

func TestFetchResults_MaxPages(t *testing.T) {
	f := &fakeService{pages: []map[string]any{page("a", "b"), page("c", "d"), page("e", "f")}}
	c := newTestClient(t, f, func(cfg *types.ClientConfig) {
		cfg.PageSize = 2
		cfg.MaxPages = 2
	})

	h := &types.JobHandle{
		ID:      "h1",
		Jobs:    []types.RemoteJob{{Query: types.Molecule{ID: "1", SMILES: "CCO"}, Name: "job-7"}},
		Request: zincRequest("CCO"),
	}
	res, err := c.FetchResults(context.Background(), h)
	require.NoError(t, err)

	assert.Len(t, f.pageCalls, 2)
	assert.Equal(t, 4, res.Hits())
}

// --- recorder ---

type countingRecorder struct {
	mu                      sync.Mutex
	submitted, polled, rows int
	finished                []types.JobStatus
	requests                map[string]int
}

func (r *countingRecorder) JobSubmitted()  { r.mu.Lock(); r.submitted++; r.mu.Unlock() }
func (r *countingRecorder) StatusPolled()  { r.mu.Lock(); r.polled++; r.mu.Unlock() }
func (r *countingRecorder) RowsKept(n int) { r.mu.Lock(); r.rows += n; r.mu.Unlock() }

func (r *countingRecorder) JobFinished(s types.JobStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
}

func (r *countingRecorder) Request(op string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requests == nil {
		r.requests = map[string]int{}
	}
	r.requests[op+" "+strconv.Itoa(code)]++
}

func TestClient_RecordsEvents(t *testing.T) {
	f := &fakeService{
		statuses: []string{"PENDING", "SUCCESS"},
		pages:    []map[string]any{hitPage()},
	}
	rec := &countingRecorder{}
	ts := httptest.NewServer(f.handler(t))
	defer ts.Close()
	c := New(types.ClientConfig{
		HTTPConfig:   types.HTTPConfig{BaseURL: ts.URL},
		PollInterval: time.Millisecond,
	}, WithHTTPClient(ts.Client()), WithLogger(logging.Discard()), WithRecorder(rec))

	ctx := context.Background()
	h, err := c.Submit(ctx, zincRequest("CCO"))
	require.NoError(t, err)
	_, err = c.AwaitCompletion(ctx, h)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.submitted)
	assert.Equal(t, 2, rec.polled)
	assert.Equal(t, 1, rec.rows)
	assert.Equal(t, []types.JobStatus{types.StatusSucceeded}, rec.finished)
	assert.Equal(t, map[string]int{"submit 200": 1, "status 200": 2, "fetch 200": 1}, rec.requests)
}
