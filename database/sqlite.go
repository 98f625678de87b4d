package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDB implements the Database interface using SQLite.
type SQLiteDB struct {
	db *sql.DB

	// Serializes claim/complete so the pending->processing and
	// processing->terminal transitions are single-writer per record.
	mu sync.Mutex
}

// NewSQLiteDB creates a new SQLite job store.
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	// Busy timeout covers concurrent worker completions racing job intake.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %v", err)
	}

	// Create tables if they don't exist
	err = initTables(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %v", err)
	}

	return &SQLiteDB{db: db}, nil
}

// initTables creates the necessary tables if they don't exist
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS clip_jobs (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL,
			status TEXT NOT NULL,
			requested_start TIMESTAMP NOT NULL,
			requested_end TIMESTAMP NOT NULL,
			actual_start TIMESTAMP,
			actual_end TIMESTAMP,
			segments_json TEXT,
			output_path TEXT,
			download_url TEXT,
			error_kind TEXT,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP,
			completed_at TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Index on status for the claim query and the status counters
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_clip_jobs_status ON clip_jobs (status)
	`)
	if err != nil {
		return err
	}

	return nil
}

// CreateJob inserts a new pending job record into the database
func (s *SQLiteDB) CreateJob(job ClipJob) error {
	_, err := s.db.Exec(`
		INSERT INTO clip_jobs (
			id, camera_id, status, requested_start, requested_end, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		job.ID,
		job.CameraID,
		job.Status,
		job.RequestedStart,
		job.RequestedEnd,
		job.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %v", err)
	}

	return nil
}

// GetJob retrieves a job by its ID
func (s *SQLiteDB) GetJob(id string) (*ClipJob, error) {
	row := s.db.QueryRow(`
		SELECT
			id, camera_id, status, requested_start, requested_end,
			actual_start, actual_end, segments_json, output_path,
			download_url, error_kind, error_message,
			created_at, started_at, completed_at
		FROM clip_jobs
		WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %v", err)
	}
	return job, nil
}

// ClaimNextJob atomically transitions the oldest pending job to processing
// and returns it. Returns (nil, nil) when no job is pending.
func (s *SQLiteDB) ClaimNextJob() (*ClipJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %v", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(`
		SELECT id FROM clip_jobs
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, StatusPending).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select pending job: %v", err)
	}

	now := time.Now()
	res, err := tx.Exec(`
		UPDATE clip_jobs SET status = ?, started_at = ?
		WHERE id = ? AND status = ?
	`, StatusProcessing, now, id, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %v", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected != 1 {
		// Another writer won the race; treat as nothing pending.
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %v", err)
	}

	return s.GetJob(id)
}

// CompleteJob transitions a processing job to done or failed. The update is
// guarded on the current status so a second completion attempt cannot
// overwrite the terminal record.
func (s *SQLiteDB) CompleteJob(id string, outcome JobOutcome) error {
	if outcome.Status != StatusDone && outcome.Status != StatusFailed {
		return fmt.Errorf("invalid terminal status %q for job %s", outcome.Status, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var segmentsJSON sql.NullString
	if outcome.Segments != nil {
		data, err := json.Marshal(outcome.Segments)
		if err != nil {
			return fmt.Errorf("failed to marshal segments for job %s: %v", id, err)
		}
		segmentsJSON = sql.NullString{String: string(data), Valid: true}
	}

	now := time.Now()
	res, err := s.db.Exec(`
		UPDATE clip_jobs SET
			status = ?, actual_start = ?, actual_end = ?, segments_json = ?,
			output_path = ?, download_url = ?, error_kind = ?, error_message = ?,
			completed_at = ?
		WHERE id = ? AND status = ?
	`,
		outcome.Status,
		outcome.ActualStart,
		outcome.ActualEnd,
		segmentsJSON,
		outcome.OutputPath,
		outcome.DownloadURL,
		outcome.ErrorKind,
		outcome.ErrorMessage,
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job %s: %v", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	// No row updated: either the job doesn't exist or it already finished.
	existing, err := s.GetJob(id)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	return fmt.Errorf("job %s is %s, cannot complete", id, existing.Status)
}

// ListJobs retrieves jobs ordered by creation time, newest first
func (s *SQLiteDB) ListJobs(limit, offset int) ([]ClipJob, error) {
	rows, err := s.db.Query(`
		SELECT
			id, camera_id, status, requested_start, requested_end,
			actual_start, actual_end, segments_json, output_path,
			download_url, error_kind, error_message,
			created_at, started_at, completed_at
		FROM clip_jobs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %v", err)
	}
	defer rows.Close()

	var jobs []ClipJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %v", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountJobsByStatus returns the number of jobs per status
func (s *SQLiteDB) CountJobsByStatus() (map[JobStatus]int, error) {
	rows, err := s.db.Query(`
		SELECT status, COUNT(*) FROM clip_jobs GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %v", err)
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status JobStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*ClipJob, error) {
	var job ClipJob
	var actualStart, actualEnd, startedAt, completedAt sql.NullTime
	var segmentsJSON, outputPath, downloadURL, errorKind, errorMessage sql.NullString

	err := row.Scan(
		&job.ID,
		&job.CameraID,
		&job.Status,
		&job.RequestedStart,
		&job.RequestedEnd,
		&actualStart,
		&actualEnd,
		&segmentsJSON,
		&outputPath,
		&downloadURL,
		&errorKind,
		&errorMessage,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if actualStart.Valid {
		job.ActualStart = &actualStart.Time
	}
	if actualEnd.Valid {
		job.ActualEnd = &actualEnd.Time
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	job.OutputPath = outputPath.String
	job.DownloadURL = downloadURL.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMessage.String

	if segmentsJSON.Valid && segmentsJSON.String != "" {
		if err := json.Unmarshal([]byte(segmentsJSON.String), &job.Segments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal segments for job %s: %v", job.ID, err)
		}
	}

	return &job, nil
}
