// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/molsearch/pkg/types"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testHandle(id string, at time.Time, names ...string) *types.JobHandle {
	h := &types.JobHandle{
		ID:          id,
		SubmittedAt: at,
		Request: types.JobRequest{
			APIKey:              "secret",
			DatabaseName:        "ZINC15",
			SimilarityThreshold: 0.8,
			PropertyRanges:      map[string]types.PropertyRange{"molecular_weight": {Min: 200, Max: 500}},
			Engine:              types.EngineMolSearch,
			SearchType:          types.SearchESPSimShape,
			SearchQuality:       types.QualityFast,
		},
	}
	for i, n := range names {
		m := types.Molecule{ID: string(rune('a' + i)), SMILES: "C" + n}
		h.Request.Molecules = append(h.Request.Molecules, m)
		h.Jobs = append(h.Jobs, types.RemoteJob{Query: m, Name: n})
	}
	return h
}

func TestOpen_CreatesDirectoryAndIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.RecordSubmission(context.Background(), testHandle("r1", time.Now(), "j1"), "out.json"))
	require.NoError(t, l.Close())

	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()
	runs, err := l.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordSubmission_AndHandle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := testHandle("r1", at, "j1", "j2")

	require.NoError(t, l.RecordSubmission(ctx, h, "/tmp/out.json"))
	// Idempotent.
	require.NoError(t, l.RecordSubmission(ctx, h, "/tmp/out.json"))

	got, err := l.Handle(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID)
	assert.True(t, at.Equal(got.SubmittedAt))
	assert.Equal(t, h.Jobs, got.Jobs)
	assert.Empty(t, got.Request.APIKey)
	assert.Equal(t, h.Request.DatabaseName, got.Request.DatabaseName)
	assert.Equal(t, h.Request.PropertyRanges, got.Request.PropertyRanges)
	assert.Equal(t, h.Request.Molecules, got.Request.Molecules)

	jobs, err := l.Jobs(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j1", jobs[0].Name)
	assert.Equal(t, 0, jobs[0].Position)
	assert.Equal(t, types.StatusPending, jobs[0].Status)
	assert.Equal(t, "j2", jobs[1].Name)
}

func TestHandle_NotFound(t *testing.T) {
	l := openTestLedger(t)
	_, err := l.Handle(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMarkJob(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordSubmission(ctx, testHandle("r1", time.Now(), "j1", "j2"), ""))

	require.NoError(t, l.MarkJob(ctx, "j1", types.StatusSucceeded, "", 42))
	require.NoError(t, l.MarkJob(ctx, "j2", types.StatusFailed, "bad SMILES", 0))
	require.NoError(t, l.MarkJob(ctx, "unknown", types.StatusFailed, "", 0))

	jobs, err := l.Jobs(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusSucceeded, jobs[0].Status)
	assert.Equal(t, 42, jobs[0].Hits)
	assert.Equal(t, types.StatusFailed, jobs[1].Status)
	assert.Equal(t, "bad SMILES", jobs[1].Reason)
}

func TestMarkRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordSubmission(ctx, testHandle("r1", time.Now(), "j1"), "planned.json"))
	require.NoError(t, l.RecordSubmission(ctx, testHandle("r2", time.Now().Add(time.Second), "j2"), "other.json"))

	require.NoError(t, l.MarkRunOutput(ctx, "r1", "final.json"))
	require.NoError(t, l.MarkRunFailed(ctx, "r2", "timed out"))
	assert.ErrorIs(t, l.MarkRunOutput(ctx, "nope", "x.json"), ErrRunNotFound)

	runs, err := l.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "r2", runs[0].ID)
	assert.Equal(t, RunFailed, runs[0].Status)
	assert.Equal(t, "timed out", runs[0].Reason)
	assert.Equal(t, "other.json", runs[0].OutputPath)

	assert.Equal(t, "r1", runs[1].ID)
	assert.Equal(t, RunCompleted, runs[1].Status)
	assert.Equal(t, "final.json", runs[1].OutputPath)
	assert.Equal(t, 1, runs[1].Jobs)
	assert.Equal(t, "ZINC15", runs[1].Database)
	assert.Equal(t, types.EngineMolSearch, runs[1].Engine)
}

func TestRuns_Limit(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, l.RecordSubmission(ctx, testHandle(id, base.Add(time.Duration(i)*time.Hour), id+"-job"), ""))
	}

	runs, err := l.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
}

func TestCompletedQueries(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	h := testHandle("r1", time.Now(), "j1", "j2")
	require.NoError(t, l.RecordSubmission(ctx, h, "/data/out.json"))
	require.NoError(t, l.MarkJob(ctx, "j1", types.StatusSucceeded, "", 3))
	require.NoError(t, l.MarkJob(ctx, "j2", types.StatusFailed, "boom", 0))

	other := testHandle("r2", time.Now(), "j3")
	require.NoError(t, l.RecordSubmission(ctx, other, "/data/elsewhere.json"))
	require.NoError(t, l.MarkJob(ctx, "j3", types.StatusSucceeded, "", 1))

	done, err := l.CompletedQueries(ctx, "/data/out.json", h.Request)
	require.NoError(t, err)
	assert.Equal(t, map[types.Molecule]string{h.Jobs[0].Query: "j1"}, done)

	for name, modify := range map[string]func(*types.JobRequest){
		"database":       func(r *types.JobRequest) { r.DatabaseName = "ENAMINE" },
		"engine":         func(r *types.JobRequest) { r.Engine = types.EngineSynthonGPT },
		"search type":    func(r *types.JobRequest) { r.SearchType = types.SearchMorgan },
		"search quality": func(r *types.JobRequest) { r.SearchQuality = types.QualityAccurate },
	} {
		req := h.Request
		modify(&req)
		done, err = l.CompletedQueries(ctx, "/data/out.json", req)
		require.NoError(t, err)
		assert.Empty(t, done, name)
	}
}

func TestCompletedQueries_DefaultsMatchExplicitSearch(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	h := testHandle("r1", time.Now(), "j1")
	h.Request.Engine, h.Request.SearchType, h.Request.SearchQuality = "", "", ""
	require.NoError(t, l.RecordSubmission(ctx, h, "out.json"))
	require.NoError(t, l.MarkJob(ctx, "j1", types.StatusSucceeded, "", 1))

	req := testHandle("r2", time.Now(), "j1").Request
	done, err := l.CompletedQueries(ctx, "out.json", req)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestOpen_AddsSearchColumnsToOlderLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		db_name TEXT NOT NULL,
		engine TEXT NOT NULL,
		request TEXT NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT ''
	)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()
	ctx := context.Background()
	h := testHandle("r1", time.Now(), "j1")
	require.NoError(t, l.RecordSubmission(ctx, h, "out.json"))
	require.NoError(t, l.MarkJob(ctx, "j1", types.StatusSucceeded, "", 1))

	done, err := l.CompletedQueries(ctx, "out.json", h.Request)
	require.NoError(t, err)
	assert.Len(t, done, 1)
}

func TestRecordSubmission_ReusedJobBelongsToBothRuns(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	first := testHandle("r1", time.Now(), "j1")
	require.NoError(t, l.RecordSubmission(ctx, first, "out.json"))
	require.NoError(t, l.MarkJob(ctx, "j1", types.StatusSucceeded, "", 7))

	second := testHandle("r2", time.Now().Add(time.Second), "j1", "j2")
	require.NoError(t, l.RecordSubmission(ctx, second, "out.json"))
	require.NoError(t, l.MarkJob(ctx, "j1", types.StatusSucceeded, "", 7))

	jobs, err := l.Jobs(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j1", jobs[0].Name)
	assert.Equal(t, 7, jobs[0].Hits)

	jobs, err = l.Jobs(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordSubmission(ctx, testHandle("r1", time.Now(), "j1", "j2"), "/tmp/hits.csv"))

	r, err := l.Run(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/hits.csv", r.OutputPath)
	assert.Equal(t, 2, r.Jobs)
	assert.Equal(t, RunSubmitted, r.Status)
	assert.Equal(t, types.EngineMolSearch, r.Engine)

	_, err = l.Run(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
