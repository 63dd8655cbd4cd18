// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records submitted runs and their remote jobs in a local
// SQLite database, so jobs can be checked, fetched again or reused after
// the submitting process has exited.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/molsearch/pkg/types"
)

// DefaultPath is where the ledger lives unless configured otherwise.
const DefaultPath = ".molsearch/ledger.db"

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunSubmitted RunStatus = "submitted"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation that submitted jobs.
type Run struct {
	ID         string
	CreatedAt  time.Time
	Database   string
	Engine     types.Engine
	Status     RunStatus
	Reason     string
	OutputPath string
	Jobs       int
}

// Job is one remote job of a run.
type Job struct {
	Name      string
	RunID     string
	Position  int
	Query     types.Molecule
	Status    types.JobStatus
	Reason    string
	Hits      int
	UpdatedAt time.Time
}

// Ledger is the run ledger database.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the ledger at path and its schema.
func Open(path string) (*Ledger, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	l := &Ledger{db: db, now: time.Now}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			db_name TEXT NOT NULL,
			engine TEXT NOT NULL,
			search_type TEXT NOT NULL DEFAULT '',
			search_quality TEXT NOT NULL DEFAULT '',
			request TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			output_path TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			job_name TEXT NOT NULL,
			run_id TEXT NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			query_id TEXT NOT NULL,
			query_smiles TEXT NOT NULL,
			status TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			hits INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (run_id, job_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_job_name ON jobs(job_name)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_output_path ON runs(output_path)`,
	}
	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return l.addRunColumns("search_type", "search_quality")
}

// addRunColumns brings ledgers created before a column existed up to date.
func (l *Ledger) addRunColumns(names ...string) error {
	rows, err := l.db.Query(`SELECT name FROM pragma_table_info('runs')`)
	if err != nil {
		return fmt.Errorf("reading runs columns: %w", err)
	}
	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("scanning runs column: %w", err)
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		if have[name] {
			continue
		}
		if _, err := l.db.Exec(`ALTER TABLE runs ADD COLUMN ` + name + ` TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("adding runs column %s: %w", name, err)
		}
	}
	return nil
}

// RecordSubmission stores a run and its jobs as pending, along with the
// path its results are meant for. The request is stored without the API
// key. A job reused from an earlier run is linked to this run too.
// Recording the same handle twice keeps the first rows.
func (l *Ledger) RecordSubmission(ctx context.Context, handle *types.JobHandle, outputPath string) error {
	req, err := json.Marshal(handle.Request)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	created := handle.SubmittedAt
	if created.IsZero() {
		created = l.now()
	}
	stamp := l.now().UTC().Format(time.RFC3339Nano)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	search := handle.Request.WithDefaults()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, db_name, engine, search_type, search_quality, request, status, output_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		handle.ID, created.UTC().Format(time.RFC3339Nano), handle.Request.DatabaseName,
		string(search.Engine), string(search.SearchType), string(search.SearchQuality),
		string(req), string(RunSubmitted), outputPath,
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", handle.ID, err)
	}

	for i, job := range handle.Jobs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (job_name, run_id, position, query_id, query_smiles, status, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, job_name) DO NOTHING`,
			job.Name, handle.ID, i, job.Query.ID, job.Query.SMILES, string(types.StatusPending), stamp,
		); err != nil {
			return fmt.Errorf("inserting job %s: %w", job.Name, err)
		}
	}
	return tx.Commit()
}

// MarkJob updates the state of one job in every run that references it.
// Unknown job names are ignored.
func (l *Ledger) MarkJob(ctx context.Context, jobName string, status types.JobStatus, reason string, hits int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, reason = ?, hits = ?, updated_at = ? WHERE job_name = ?`,
		string(status), reason, hits, l.now().UTC().Format(time.RFC3339Nano), jobName,
	)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", jobName, err)
	}
	return nil
}

// MarkRunOutput marks a run completed and records where its results went.
func (l *Ledger) MarkRunOutput(ctx context.Context, runID, outputPath string) error {
	return l.markRun(ctx, runID, RunCompleted, "", outputPath)
}

// MarkRunFailed marks a run failed with a reason.
func (l *Ledger) MarkRunFailed(ctx context.Context, runID, reason string) error {
	return l.markRun(ctx, runID, RunFailed, reason, "")
}

func (l *Ledger) markRun(ctx context.Context, runID string, status RunStatus, reason, outputPath string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, reason = ?,
		 output_path = CASE WHEN ? = '' THEN output_path ELSE ? END
		 WHERE id = ?`,
		string(status), reason, outputPath, outputPath, runID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `SELECT r.id, r.created_at, r.db_name, r.engine, r.status, r.reason, r.output_path,
	(SELECT count(*) FROM jobs j WHERE j.run_id = r.id)
	FROM runs r`

// Runs lists the most recent runs first. A limit of zero or less lists all.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, runColumns+` ORDER BY r.created_at DESC, r.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns one run, or ErrRunNotFound.
func (l *Ledger) Run(ctx context.Context, runID string) (Run, error) {
	r, err := scanRun(l.db.QueryRowContext(ctx, runColumns+` WHERE r.id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r       Run
		created string
		engine  string
		status  string
	)
	if err := row.Scan(&r.ID, &created, &r.Database, &engine, &status, &r.Reason, &r.OutputPath, &r.Jobs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning run: %w", err)
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	r.Engine = types.Engine(engine)
	r.Status = RunStatus(status)
	return r, nil
}

// Jobs lists the jobs of a run in submission order.
func (l *Ledger) Jobs(ctx context.Context, runID string) ([]Job, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT job_name, run_id, position, query_id, query_smiles, status, reason, hits, updated_at
		 FROM jobs WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying jobs of run %s: %w", runID, err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		var (
			j       Job
			status  string
			updated string
		)
		if err := rows.Scan(&j.Name, &j.RunID, &j.Position, &j.Query.ID, &j.Query.SMILES,
			&status, &j.Reason, &j.Hits, &updated); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		j.Status = types.JobStatus(status)
		j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Handle rebuilds the job handle of a run. The API key is not stored and
// must be set by the caller.
func (l *Ledger) Handle(ctx context.Context, runID string) (*types.JobHandle, error) {
	var created, req string
	err := l.db.QueryRowContext(ctx,
		`SELECT created_at, request FROM runs WHERE id = ?`, runID,
	).Scan(&created, &req)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}

	h := &types.JobHandle{ID: runID}
	h.SubmittedAt, _ = time.Parse(time.RFC3339Nano, created)
	if err := json.Unmarshal([]byte(req), &h.Request); err != nil {
		return nil, fmt.Errorf("decoding request of run %s: %w", runID, err)
	}

	jobs, err := l.Jobs(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		h.Jobs = append(h.Jobs, types.RemoteJob{Query: j.Query, Name: j.Name})
	}
	return h, nil
}

// CompletedQueries returns, for every query that already succeeded in an
// earlier run aimed at outputPath with the same search as req (database,
// engine, search type and quality), the remote job that produced it. The
// newest job wins when a query succeeded more than once.
func (l *Ledger) CompletedQueries(ctx context.Context, outputPath string, req types.JobRequest) (map[types.Molecule]string, error) {
	search := req.WithDefaults()
	rows, err := l.db.QueryContext(ctx,
		`SELECT j.query_id, j.query_smiles, j.job_name
		 FROM jobs j JOIN runs r ON r.id = j.run_id
		 WHERE r.output_path = ? AND r.db_name = ? AND r.engine = ?
		   AND r.search_type = ? AND r.search_quality = ? AND j.status = ?
		 ORDER BY j.updated_at`,
		outputPath, search.DatabaseName, string(search.Engine),
		string(search.SearchType), string(search.SearchQuality), string(types.StatusSucceeded))
	if err != nil {
		return nil, fmt.Errorf("querying completed queries: %w", err)
	}
	defer rows.Close()

	done := make(map[types.Molecule]string)
	for rows.Next() {
		var (
			m    types.Molecule
			name string
		)
		if err := rows.Scan(&m.ID, &m.SMILES, &name); err != nil {
			return nil, fmt.Errorf("scanning completed query: %w", err)
		}
		done[m] = name
	}
	return done, rows.Err()
}
