package database

import (
	"errors"
	"time"
)

// JobStatus represents the current state of a clip job.
// The state machine is pending -> processing -> {done, failed}; a job never
// moves backwards and a failed job is never requeued.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"    // Job is waiting for a worker
	StatusProcessing JobStatus = "processing" // Job has been claimed by a worker
	StatusDone       JobStatus = "done"       // Clip and annotations were produced
	StatusFailed     JobStatus = "failed"     // Pipeline failed; see ErrorKind/ErrorMessage
)

// Terminal reports whether the status is an end state.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Error kinds recorded on failed jobs and used as metric labels.
const (
	ErrKindUnknownCamera   = "unknown_camera"
	ErrKindNoOverlap       = "no_overlap"
	ErrKindDiscontinuous   = "discontinuous_selection"
	ErrKindMissingSource   = "missing_source"
	ErrKindExecution       = "execution_error"
	ErrKindAnnotationWrite = "annotation_write_error"
	ErrKindInternal        = "internal_error"
)

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrAlreadyTerminal is returned on a duplicate completion attempt.
	// Callers may treat it as benign; the first completion wins.
	ErrAlreadyTerminal = errors.New("job already in terminal state")
)

// SourceSegment is the per-segment record stored on a completed job and
// echoed into the annotation files.
type SourceSegment struct {
	FilePath  string    `json:"file_path"`
	Filename  string    `json:"filename"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	FileSize  int64     `json:"file_size"`
}

// ClipJob is the persistent record for one clip request.
type ClipJob struct {
	ID             string          `json:"id"`
	CameraID       string          `json:"cameraId"`
	Status         JobStatus       `json:"status"`
	RequestedStart time.Time       `json:"requestedStart"`
	RequestedEnd   time.Time       `json:"requestedEnd"`
	ActualStart    *time.Time      `json:"actualStart,omitempty"`  // set at completion, from segment coverage
	ActualEnd      *time.Time      `json:"actualEnd,omitempty"`    // set at completion, from segment coverage
	Segments       []SourceSegment `json:"segments,omitempty"`     // set exactly once, at resolution
	OutputPath     string          `json:"outputPath,omitempty"`   // local path of the merged clip
	DownloadURL    string          `json:"downloadUrl,omitempty"`  // public reference for the clip
	ErrorKind      string          `json:"errorKind,omitempty"`    // only when status=failed
	ErrorMessage   string          `json:"errorMessage,omitempty"` // only when status=failed
	CreatedAt      time.Time       `json:"createdAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// JobOutcome carries the result a worker writes back when finishing a job.
type JobOutcome struct {
	Status       JobStatus // StatusDone or StatusFailed
	Segments     []SourceSegment
	ActualStart  *time.Time
	ActualEnd    *time.Time
	OutputPath   string
	DownloadURL  string
	ErrorKind    string
	ErrorMessage string
}

// Database defines the job store contract. Implementations must make
// ClaimNextJob and CompleteJob atomic so two workers can never hold the same
// job and a duplicate completion cannot overwrite a terminal record.
type Database interface {
	// CreateJob inserts a new pending job.
	CreateJob(job ClipJob) error

	// GetJob returns the job or ErrJobNotFound.
	GetJob(id string) (*ClipJob, error)

	// ClaimNextJob atomically moves the oldest pending job to processing
	// and returns it. Returns (nil, nil) when nothing is pending.
	ClaimNextJob() (*ClipJob, error)

	// CompleteJob transitions a processing job to its terminal state.
	// Returns ErrAlreadyTerminal when the job already finished and
	// ErrJobNotFound when the id is unknown.
	CompleteJob(id string, outcome JobOutcome) error

	// ListJobs returns jobs ordered by creation time, newest first.
	ListJobs(limit, offset int) ([]ClipJob, error)

	// CountJobsByStatus returns the number of jobs per status.
	CountJobsByStatus() (map[JobStatus]int, error)

	Close() error
}
