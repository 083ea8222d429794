// Package repository persists job rows over database/sql.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncobase/spacearc/data"
	"github.com/ncobase/spacearc/job/structs"
)

// Sentinel errors returned by the repository.
var (
	// ErrNotFound means no row matched the id.
	ErrNotFound = errors.New("job not found")
	// ErrNoPending means the claim query found no pending job.
	ErrNoPending = errors.New("no pending jobs")
	// ErrConflict means the row exists but its status rejected the update.
	ErrConflict = errors.New("job status conflict")
)

// timeLayout is a fixed-width variant of RFC3339Nano. Padded fractional
// seconds keep lexicographic order of stored strings equal to time order,
// which the claim ORDER BY and the reaper cutoff comparison rely on.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect names matching the registered database drivers.
const (
	dialectMySQL    = "mysql"
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

// JobRepository is the persistence surface for job rows. All writes are
// single-row and guarded by status predicates, so concurrent workers and
// admin actions never move a job backward through its lifecycle.
type JobRepository interface {
	Create(ctx context.Context, job *structs.Job) (int64, error)
	FindByID(ctx context.Context, id int64) (*structs.Job, error)
	FindOpen(ctx context.Context, spaceID string, kind structs.JobKind) (*structs.Job, error)

	// Claim atomically moves the oldest pending job to in_progress and
	// returns it. ErrNoPending when the queue is empty or the candidate
	// was taken by another worker first.
	Claim(ctx context.Context) (*structs.Job, error)

	UpdateProgress(ctx context.Context, id int64, percent int, bytes int64, eta *int64) error
	MarkDownloading(ctx context.Context, id int64) error
	MarkProcessing(ctx context.Context, id int64) error
	Complete(ctx context.Context, id int64, outputPath string) error
	Fail(ctx context.Context, id int64, errMsg string) error
	Cancel(ctx context.Context, id int64) error
	Reset(ctx context.Context, id int64) error

	// ReapStale force-fails active rows whose heartbeat is older than the
	// cutoff and returns the ids it reaped.
	ReapStale(ctx context.Context, cutoff time.Time, errMsg string) ([]int64, error)

	ListActive(ctx context.Context) ([]*structs.Job, error)
	ListByStatus(ctx context.Context, status structs.JobStatus, cursor int64, limit int) ([]*structs.Job, error)
	CountByStatus(ctx context.Context) (map[structs.JobStatus]int, error)
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type jobRepository struct {
	db      *sql.DB
	dialect string
}

// New creates a job repository for the given connection and ensures the
// jobs table and its indexes exist. Schema creation is idempotent.
func New(db *sql.DB, dialect string) (JobRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("job repository requires a database connection")
	}
	r := &jobRepository{db: db, dialect: dialect}
	if err := r.initSchema(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *jobRepository) initSchema(ctx context.Context) error {
	var stmts []string
	switch r.dialect {
	case dialectMySQL:
		stmts = []string{`
CREATE TABLE IF NOT EXISTS jobs (
	id BIGINT NOT NULL AUTO_INCREMENT,
	space_id VARCHAR(255) NOT NULL,
	kind VARCHAR(32) NOT NULL,
	status VARCHAR(32) NOT NULL,
	progress INT NOT NULL,
	bytes_done BIGINT NOT NULL,
	eta_seconds BIGINT NULL,
	payload TEXT NOT NULL,
	created_by VARCHAR(64) NOT NULL,
	notify_email VARCHAR(255) NOT NULL,
	output_path TEXT NOT NULL,
	error TEXT NOT NULL,
	created_at VARCHAR(40) NOT NULL,
	updated_at VARCHAR(40) NOT NULL,
	start_time VARCHAR(40) NULL,
	end_time VARCHAR(40) NULL,
	PRIMARY KEY (id),
	KEY idx_jobs_status_created (status, created_at),
	KEY idx_jobs_status_updated (status, updated_at)
) ENGINE=InnoDB`}
	case dialectPostgres:
		stmts = []string{`
CREATE TABLE IF NOT EXISTS jobs (
	id BIGSERIAL PRIMARY KEY,
	space_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL,
	bytes_done BIGINT NOT NULL,
	eta_seconds BIGINT,
	payload TEXT NOT NULL,
	created_by TEXT NOT NULL,
	notify_email TEXT NOT NULL,
	output_path TEXT NOT NULL,
	error TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	start_time TEXT,
	end_time TEXT
)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs (status, updated_at)`,
		}
	default: // sqlite
		stmts = []string{`
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	space_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL,
	bytes_done INTEGER NOT NULL,
	eta_seconds INTEGER,
	payload TEXT NOT NULL,
	created_by TEXT NOT NULL,
	notify_email TEXT NOT NULL,
	output_path TEXT NOT NULL,
	error TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	start_time TEXT,
	end_time TEXT
)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_status_updated ON jobs (status, updated_at)`,
		}
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init jobs schema: %w", err)
		}
	}
	return nil
}

// conn returns the transaction bound to ctx when present, the pool otherwise.
func (r *jobRepository) conn(ctx context.Context) dbtx {
	if tx, err := data.GetTx(ctx); err == nil {
		return tx
	}
	return r.db
}

// rebind rewrites ? placeholders to $N for postgres.
func (r *jobRepository) rebind(query string) string {
	if r.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

const jobColumns = `id, space_id, kind, status, progress, bytes_done, eta_seconds, payload,
	created_by, notify_email, output_path, error, created_at, updated_at, start_time, end_time`

const activeSet = `'in_progress', 'downloading', 'processing'`

func (r *jobRepository) Create(ctx context.Context, job *structs.Job) (int64, error) {
	now := time.Now().UTC()
	if job.Status == "" {
		job.Status = structs.StatusPending
	}
	job.CreatedAt, job.UpdatedAt = now, now

	payload, err := marshalPayload(job.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal job payload: %w", err)
	}

	query := `
INSERT INTO jobs (space_id, kind, status, progress, bytes_done, eta_seconds, payload,
	created_by, notify_email, output_path, error, created_at, updated_at, start_time, end_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		job.SpaceID, string(job.Kind), string(job.Status), job.Progress, job.BytesDone,
		nullableInt(job.ETASeconds), payload, job.CreatedBy, job.NotifyEmail,
		job.OutputPath, job.Error, formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
		formatNullableTime(job.StartTime), formatNullableTime(job.EndTime),
	}

	// pgx has no LastInsertId, so postgres goes through RETURNING.
	if r.dialect == dialectPostgres {
		var id int64
		err := r.conn(ctx).QueryRowContext(ctx, r.rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("insert job: %w", err)
		}
		job.ID = id
		return id, nil
	}

	res, err := r.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	job.ID = id
	return id, nil
}

func (r *jobRepository) FindByID(ctx context.Context, id int64) (*structs.Job, error) {
	row := r.conn(ctx).QueryRowContext(ctx,
		r.rebind(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

// FindOpen returns the newest job for the (space, kind) pair that is still
// pending or running. ErrNotFound when every such job already finished.
func (r *jobRepository) FindOpen(ctx context.Context, spaceID string, kind structs.JobKind) (*structs.Job, error) {
	row := r.conn(ctx).QueryRowContext(ctx,
		r.rebind(`SELECT `+jobColumns+` FROM jobs
WHERE space_id = ? AND kind = ? AND status IN ('pending', `+activeSet+`)
ORDER BY id DESC LIMIT 1`), spaceID, string(kind))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func (r *jobRepository) Claim(ctx context.Context) (*structs.Job, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		r.rebind(`SELECT `+jobColumns+` FROM jobs WHERE status = ?
ORDER BY created_at, id LIMIT 1`), string(structs.StatusPending))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		r.rebind(`UPDATE jobs SET status = ?, start_time = ?, updated_at = ?
WHERE id = ? AND status = ?`),
		string(structs.StatusInProgress), formatTime(now), formatTime(now),
		job.ID, string(structs.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", job.ID, err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		// Another worker won the race; the next tick retries.
		return nil, ErrNoPending
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}

	job.Status = structs.StatusInProgress
	job.StartTime = &now
	job.UpdatedAt = now
	return job, nil
}

func (r *jobRepository) UpdateProgress(ctx context.Context, id int64, percent int, bytes int64, eta *int64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	now := formatTime(time.Now().UTC())
	res, err := r.conn(ctx).ExecContext(ctx,
		r.rebind(`UPDATE jobs SET
	progress = CASE WHEN ? > progress THEN ? ELSE progress END,
	bytes_done = CASE WHEN ? > bytes_done THEN ? ELSE bytes_done END,
	eta_seconds = ?,
	updated_at = ?
WHERE id = ? AND status IN (`+activeSet+`)`),
		percent, percent, bytes, bytes, nullableInt(eta), now, id)
	if err != nil {
		return fmt.Errorf("update progress for job %d: %w", id, err)
	}
	return r.guardResult(ctx, id, res)
}

func (r *jobRepository) MarkDownloading(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, structs.StatusDownloading,
		`UPDATE jobs SET status = ?, updated_at = ?
WHERE id = ? AND status IN ('in_progress', 'downloading')`)
}

func (r *jobRepository) MarkProcessing(ctx context.Context, id int64) error {
	return r.setStatus(ctx, id, structs.StatusProcessing,
		`UPDATE jobs SET status = ?, updated_at = ?
WHERE id = ? AND status IN ('in_progress', 'downloading')`)
}

func (r *jobRepository) setStatus(ctx context.Context, id int64, status structs.JobStatus, query string) error {
	now := formatTime(time.Now().UTC())
	res, err := r.conn(ctx).ExecContext(ctx, r.rebind(query), string(status), now, id)
	if err != nil {
		return fmt.Errorf("mark job %d %s: %w", id, status, err)
	}
	return r.guardResult(ctx, id, res)
}

func (r *jobRepository) Complete(ctx context.Context, id int64, outputPath string) error {
	now := formatTime(time.Now().UTC())
	res, err := r.conn(ctx).ExecContext(ctx,
		r.rebind(`UPDATE jobs SET status = ?, progress = 100, output_path = ?, end_time = ?, updated_at = ?
WHERE id = ? AND status IN (`+activeSet+`)`),
		string(structs.StatusCompleted), outputPath, now, now, id)
	if err != nil {
		return fmt.Errorf("complete job %d: %w", id, err)
	}
	return r.guardResult(ctx, id, res)
}

func (r *jobRepository) Fail(ctx context.Context, id int64, errMsg string) error {
	now := formatTime(time.Now().UTC())
	res, err := r.conn(ctx).ExecContext(ctx,
		r.rebind(`UPDATE jobs SET status = ?, error = ?, end_time = ?, updated_at = ?
WHERE id = ? AND status IN ('pending', `+activeSet+`)`),
		string(structs.StatusFailed), errMsg, now, now, id)
	if err != nil {
		return fmt.Errorf("fail job %d: %w", id, err)
	}
	return r.guardResult(ctx, id, res)
}

func (r *jobRepository) Cancel(ctx context.Context, id int64) error {
	now := formatTime(time.Now().UTC())
	res, err := r.conn(ctx).ExecContext(ctx,
		r.rebind(`UPDATE jobs SET status = ?, end_time = ?, updated_at = ?
WHERE id = ? AND status = ?`),
		string(structs.StatusCancelled), now, now, id, string(structs.StatusPending))
	if err != nil {
		return fmt.Errorf("cancel job %d: %w", id, err)
	}
	return r.guardResult(ctx, id, res)
}

// Reset moves a terminal job back to pending and clears everything a fresh
// run should not inherit.
func (r *jobRepository) Reset(ctx context.Context, id int64) error {
	now := formatTime(time.Now().UTC())
	res, err := r.conn(ctx).ExecContext(ctx,
		r.rebind(`UPDATE jobs SET status = ?, progress = 0, bytes_done = 0, eta_seconds = NULL,
	error = '', output_path = '', start_time = NULL, end_time = NULL, updated_at = ?
WHERE id = ? AND status IN ('completed', 'failed', 'cancelled')`),
		string(structs.StatusPending), now, id)
	if err != nil {
		return fmt.Errorf("reset job %d: %w", id, err)
	}
	return r.guardResult(ctx, id, res)
}

func (r *jobRepository) ReapStale(ctx context.Context, cutoff time.Time, errMsg string) ([]int64, error) {
	cut := formatTime(cutoff.UTC())
	rows, err := r.conn(ctx).QueryContext(ctx,
		r.rebind(`SELECT id FROM jobs WHERE status IN (`+activeSet+`) AND updated_at < ?`), cut)
	if err != nil {
		return nil, fmt.Errorf("find stale jobs: %w", err)
	}
	var candidates []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Each victim is failed with the same guard, so a worker that heartbeats
	// between the select and the update keeps its job.
	var reaped []int64
	for _, id := range candidates {
		now := formatTime(time.Now().UTC())
		res, err := r.conn(ctx).ExecContext(ctx,
			r.rebind(`UPDATE jobs SET status = ?, error = ?, end_time = ?, updated_at = ?
WHERE id = ? AND status IN (`+activeSet+`) AND updated_at < ?`),
			string(structs.StatusFailed), errMsg, now, now, id, cut)
		if err != nil {
			return reaped, fmt.Errorf("reap job %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			reaped = append(reaped, id)
		}
	}
	return reaped, nil
}

func (r *jobRepository) ListActive(ctx context.Context) ([]*structs.Job, error) {
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (`+activeSet+`) ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	return collectJobs(rows)
}

func (r *jobRepository) ListByStatus(ctx context.Context, status structs.JobStatus, cursor int64, limit int) ([]*structs.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = ?`
	args := []any{string(status)}
	if cursor > 0 {
		query += ` AND id < ?`
		args = append(args, cursor)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.conn(ctx).QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	return collectJobs(rows)
}

func (r *jobRepository) CountByStatus(ctx context.Context) (map[structs.JobStatus]int, error) {
	counts := map[structs.JobStatus]int{
		structs.StatusPending:     0,
		structs.StatusInProgress:  0,
		structs.StatusDownloading: 0,
		structs.StatusProcessing:  0,
		structs.StatusCompleted:   0,
		structs.StatusFailed:      0,
		structs.StatusCancelled:   0,
	}
	rows, err := r.conn(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[structs.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

// guardResult maps a zero-row guarded update to ErrNotFound or ErrConflict.
func (r *jobRepository) guardResult(ctx context.Context, id int64, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

func collectJobs(rows *sql.Rows) ([]*structs.Job, error) {
	defer rows.Close()
	var jobs []*structs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(s scanner) (*structs.Job, error) {
	var job structs.Job
	var kind, status, payload, createdAt, updatedAt string
	var eta sql.NullInt64
	var startTime, endTime sql.NullString

	err := s.Scan(&job.ID, &job.SpaceID, &kind, &status, &job.Progress, &job.BytesDone,
		&eta, &payload, &job.CreatedBy, &job.NotifyEmail, &job.OutputPath, &job.Error,
		&createdAt, &updatedAt, &startTime, &endTime)
	if err != nil {
		return nil, err
	}

	job.Kind = structs.JobKind(kind)
	job.Status = structs.JobStatus(status)
	if eta.Valid {
		v := eta.Int64
		job.ETASeconds = &v
	}
	if job.Payload, err = unmarshalPayload(payload); err != nil {
		return nil, fmt.Errorf("decode payload for job %d: %w", job.ID, err)
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for job %d: %w", job.ID, err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for job %d: %w", job.ID, err)
	}
	if job.StartTime, err = parseNullableTime(startTime); err != nil {
		return nil, fmt.Errorf("parse start_time for job %d: %w", job.ID, err)
	}
	if job.EndTime, err = parseNullableTime(endTime); err != nil {
		return nil, fmt.Errorf("parse end_time for job %d: %w", job.ID, err)
	}
	return &job, nil
}

func marshalPayload(p map[string]any) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalPayload(s string) (map[string]any, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var p map[string]any
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, err
	}
	return p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func parseNullableTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
