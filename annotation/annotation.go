package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"camclip/database"
)

// ErrWrite wraps any failure while producing annotation artifacts. A clip
// without its annotations does not satisfy the service contract, so callers
// treat this as a job failure even when the media file was written.
var ErrWrite = errors.New("annotation write failed")

// Annotation is the structured record of exactly which source material went
// into a clip. It is serialized as JSON and YAML, plus a plain-text summary.
type Annotation struct {
	ClipID          string                   `json:"clip_id" yaml:"clip_id"`
	CameraID        string                   `json:"camera_id" yaml:"camera_id"`
	RequestedStart  time.Time                `json:"requested_start" yaml:"requested_start"`
	RequestedEnd    time.Time                `json:"requested_end" yaml:"requested_end"`
	ActualStart     time.Time                `json:"actual_start" yaml:"actual_start"`
	ActualEnd       time.Time                `json:"actual_end" yaml:"actual_end"`
	DurationSeconds float64                  `json:"duration_seconds" yaml:"duration_seconds"`
	SourceClips     []database.SourceSegment `json:"source_clips" yaml:"source_clips"`
	CreatedAt       time.Time                `json:"created_at" yaml:"created_at"`
	CompletedAt     time.Time                `json:"completed_at" yaml:"completed_at"`
	Source          string                   `json:"source" yaml:"source"`
}

// Writer persists annotations next to the clip output. Files are written to
// a temporary path and renamed into place so a reader never sees a
// half-written artifact.
type Writer struct {
	Dir       string // annotations directory
	SourceTag string // recording system identifier, e.g. "MediaMTX"
}

// NewWriter creates an annotation writer rooted at dir.
func NewWriter(dir, sourceTag string) *Writer {
	return &Writer{Dir: dir, SourceTag: sourceTag}
}

// Write produces the annotation artifacts for a completed job and returns
// their paths. The base filename matches the clip's, so artifacts can be
// correlated with the media file without consulting the job store.
func (w *Writer) Write(job database.ClipJob, outputPath string) ([]string, error) {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	ann := w.build(job)

	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))

	jsonPath := filepath.Join(w.Dir, base+".json")
	jsonData, err := json.MarshalIndent(ann, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := renameio.WriteFile(jsonPath, jsonData, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	yamlPath := filepath.Join(w.Dir, base+".yaml")
	yamlData, err := yaml.Marshal(ann)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := renameio.WriteFile(yamlPath, yamlData, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	txtPath := filepath.Join(w.Dir, base+".txt")
	if err := renameio.WriteFile(txtPath, []byte(w.summary(ann)), 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	return []string{jsonPath, yamlPath, txtPath}, nil
}

func (w *Writer) build(job database.ClipJob) Annotation {
	ann := Annotation{
		ClipID:          job.ID,
		CameraID:        job.CameraID,
		RequestedStart:  job.RequestedStart,
		RequestedEnd:    job.RequestedEnd,
		DurationSeconds: job.RequestedEnd.Sub(job.RequestedStart).Seconds(),
		SourceClips:     job.Segments,
		CreatedAt:       job.CreatedAt,
		CompletedAt:     time.Now(),
		Source:          w.SourceTag,
	}
	if job.ActualStart != nil {
		ann.ActualStart = *job.ActualStart
	}
	if job.ActualEnd != nil {
		ann.ActualEnd = *job.ActualEnd
	}
	return ann
}

// summary renders the human-readable variant of the annotation.
func (w *Writer) summary(ann Annotation) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Clip ID: %s\n", ann.ClipID)
	fmt.Fprintf(&sb, "Camera: %s\n", ann.CameraID)
	fmt.Fprintf(&sb, "Source: %s\n", ann.Source)
	fmt.Fprintf(&sb, "Requested Time Range: %s to %s\n",
		ann.RequestedStart.Format(time.RFC3339), ann.RequestedEnd.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Actual Time Range: %s to %s\n",
		ann.ActualStart.Format(time.RFC3339), ann.ActualEnd.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Duration: %g seconds\n", ann.DurationSeconds)
	fmt.Fprintf(&sb, "Source Clips Used: %d\n", len(ann.SourceClips))
	for i, clip := range ann.SourceClips {
		fmt.Fprintf(&sb, "  %d. %s (%s to %s)\n", i+1, clip.Filename,
			clip.StartTime.Format(time.RFC3339), clip.EndTime.Format(time.RFC3339))
	}
	return sb.String()
}
