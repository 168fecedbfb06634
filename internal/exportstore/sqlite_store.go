// Package exportstore provides persistent storage for CSV export jobs and
// their results using SQLite.
package exportstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// JobStatus represents the current state of an export job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether s is terminal.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// ExportParams snapshots the selection an export was requested for. A nil
// slice means "no restriction"; an empty one selects nothing.
type ExportParams struct {
	GeneQuery    *string  `json:"gene_query,omitempty"`
	GeneIDs      []string `json:"gene_ids"`
	ConditionIDs []string `json:"condition_ids"`
	Scaling      string   `json:"scaling"`
}

// ExportJob represents an asynchronous CSV export.
type ExportJob struct {
	ID         string       `json:"job_id"`
	Status     JobStatus    `json:"status"`
	Params     ExportParams `json:"params"`
	Rows       int          `json:"rows"`
	Cols       int          `json:"cols"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Fixed-width so that stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

// Store provides persistent storage for export jobs using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new SQLite-based export store.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for sqlite: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// An in-memory database lives as long as its single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS export_jobs (
		job_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		params_json TEXT NOT NULL,
		rows_count INTEGER DEFAULT 0,
		cols_count INTEGER DEFAULT 0,
		error TEXT DEFAULT '',
		created_at TEXT NOT NULL,
		started_at TEXT,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_export_jobs_status ON export_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_export_jobs_finished ON export_jobs(finished_at);

	CREATE TABLE IF NOT EXISTS export_results (
		job_id TEXT PRIMARY KEY,
		csv BLOB NOT NULL,
		FOREIGN KEY (job_id) REFERENCES export_jobs(job_id) ON DELETE CASCADE
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const jobColumns = `job_id, status, params_json, rows_count, cols_count, error, created_at, started_at, finished_at`

// CreateJob creates a new job record with status=queued.
func (s *Store) CreateJob(job *ExportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	paramsJSON, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO export_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID,
		string(job.Status),
		string(paramsJSON),
		job.Rows,
		job.Cols,
		job.Error,
		job.CreatedAt.UTC().Format(timeLayout),
		nil,
		nil,
	)
	return err
}

// GetJob retrieves a job by ID. A missing job yields nil, nil.
func (s *Store) GetJob(jobID string) (*ExportJob, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM export_jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// UpdateJobStarted marks a job as running with start time.
func (s *Store) UpdateJobStarted(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE export_jobs SET status = ?, started_at = ?
		WHERE job_id = ?
	`, string(JobStatusRunning), now(), jobID)
	return err
}

// UpdateJobStatus updates the job status and error message.
func (s *Store) UpdateJobStatus(jobID string, status JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var finishedAt *string
	if status.Finished() {
		t := now()
		finishedAt = &t
	}

	_, err := s.db.Exec(`
		UPDATE export_jobs SET status = ?, error = ?, finished_at = COALESCE(?, finished_at)
		WHERE job_id = ?
	`, string(status), errMsg, finishedAt, jobID)
	return err
}

// SaveResult stores the CSV of a job and marks it completed.
func (s *Store) SaveResult(jobID string, rows, cols int, csv []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO export_results (job_id, csv) VALUES (?, ?)`, jobID, csv); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE export_jobs SET status = ?, rows_count = ?, cols_count = ?, finished_at = ?
		WHERE job_id = ?
	`, string(JobStatusCompleted), rows, cols, now(), jobID); err != nil {
		return err
	}
	return tx.Commit()
}

// GetResult returns the CSV of a completed job.
func (s *Store) GetResult(jobID string) ([]byte, bool, error) {
	var csv []byte
	err := s.db.QueryRow(`SELECT csv FROM export_results WHERE job_id = ?`, jobID).Scan(&csv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return csv, true, nil
}

// ListJobs returns every job, newest first.
func (s *Store) ListJobs() ([]*ExportJob, error) {
	rows, err := s.db.Query(`SELECT ` + jobColumns + ` FROM export_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListQueuedJobs returns all queued jobs (for restart recovery).
func (s *Store) ListQueuedJobs() ([]*ExportJob, error) {
	rows, err := s.db.Query(`
		SELECT `+jobColumns+` FROM export_jobs WHERE status = ?
		ORDER BY created_at ASC
	`, string(JobStatusQueued))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

// MarkRunningAsFailed marks all running jobs as failed (for restart recovery).
func (s *Store) MarkRunningAsFailed(errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE export_jobs SET status = ?, error = ?, finished_at = ?
		WHERE status = ?
	`, string(JobStatusFailed), errMsg, now(), string(JobStatusRunning))
	return err
}

// DeleteExpiredJobs deletes jobs that finished before now-retention.
func (s *Store) DeleteExpiredJobs(retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)

	_, err := s.db.Exec(`
		DELETE FROM export_results WHERE job_id IN (
			SELECT job_id FROM export_jobs WHERE finished_at IS NOT NULL AND finished_at < ?
		)
	`, cutoff)
	if err != nil {
		return 0, err
	}

	result, err := s.db.Exec(`
		DELETE FROM export_jobs WHERE finished_at IS NOT NULL AND finished_at < ?
	`, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// DeleteJob deletes a job and its result.
func (s *Store) DeleteJob(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM export_results WHERE job_id = ?", jobID); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM export_jobs WHERE job_id = ?", jobID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*ExportJob, error) {
	var job ExportJob
	var paramsJSON, createdAtStr string
	var startedAtStr, finishedAtStr sql.NullString

	err := row.Scan(
		&job.ID,
		&job.Status,
		&paramsJSON,
		&job.Rows,
		&job.Cols,
		&job.Error,
		&createdAtStr,
		&startedAtStr,
		&finishedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(paramsJSON), &job.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}

	job.CreatedAt, _ = time.Parse(timeLayout, createdAtStr)
	if startedAtStr.Valid {
		t, _ := time.Parse(timeLayout, startedAtStr.String)
		job.StartedAt = &t
	}
	if finishedAtStr.Valid {
		t, _ := time.Parse(timeLayout, finishedAtStr.String)
		job.FinishedAt = &t
	}
	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*ExportJob, error) {
	var jobs []*ExportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
