package annotation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"camclip/database"
)

func testJob() database.ClipJob {
	created := time.Date(2025, 8, 25, 14, 30, 30, 0, time.UTC)
	actualStart := time.Date(2025, 8, 25, 14, 30, 0, 0, time.UTC)
	actualEnd := actualStart.Add(25 * time.Second)
	return database.ClipJob{
		ID:             "7b0c2f1a-1111-2222-3333-444455556666",
		CameraID:       "camera1",
		Status:         database.StatusProcessing,
		RequestedStart: actualStart.Add(2 * time.Second),
		RequestedEnd:   actualStart.Add(22 * time.Second),
		ActualStart:    &actualStart,
		ActualEnd:      &actualEnd,
		CreatedAt:      created,
		Segments: []database.SourceSegment{
			{
				FilePath:  "/recordings/camera1/camera1_20250825_143000.mp4",
				Filename:  "camera1_20250825_143000.mp4",
				StartTime: actualStart,
				EndTime:   actualStart.Add(5 * time.Second),
				FileSize:  1024,
			},
			{
				FilePath:  "/recordings/camera1/camera1_20250825_143005.mp4",
				Filename:  "camera1_20250825_143005.mp4",
				StartTime: actualStart.Add(5 * time.Second),
				EndTime:   actualStart.Add(10 * time.Second),
				FileSize:  2048,
			},
		},
	}
}

func TestWriteProducesAllArtifacts(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "annotation-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	w := NewWriter(filepath.Join(tempDir, "annotations"), "MediaMTX")
	job := testJob()
	outputPath := "/videos/camera1_20250825_143030_" + job.ID + ".mp4"

	paths, err := w.Write(job, outputPath)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 artifacts, got %d", len(paths))
	}

	base := "camera1_20250825_143030_" + job.ID
	for i, ext := range []string{".json", ".yaml", ".txt"} {
		want := filepath.Join(tempDir, "annotations", base+ext)
		if paths[i] != want {
			t.Errorf("Expected artifact %s, got %s", want, paths[i])
		}
		info, err := os.Stat(paths[i])
		if err != nil {
			t.Fatalf("Artifact missing: %s", paths[i])
		}
		if info.Size() == 0 {
			t.Errorf("Artifact is empty: %s", paths[i])
		}
	}
}

func TestWriteJSONContent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "annotation-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	w := NewWriter(tempDir, "MediaMTX")
	job := testJob()

	paths, err := w.Write(job, "/videos/clip.mp4")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("Failed to read JSON artifact: %v", err)
	}
	var ann Annotation
	if err := json.Unmarshal(data, &ann); err != nil {
		t.Fatalf("JSON artifact does not parse: %v", err)
	}

	if ann.ClipID != job.ID {
		t.Errorf("Expected clip_id %s, got %s", job.ID, ann.ClipID)
	}
	if ann.CameraID != "camera1" {
		t.Errorf("Expected camera_id camera1, got %s", ann.CameraID)
	}
	if ann.Source != "MediaMTX" {
		t.Errorf("Expected source MediaMTX, got %s", ann.Source)
	}
	// source_clips must mirror the resolved selection exactly
	if len(ann.SourceClips) != len(job.Segments) {
		t.Fatalf("Expected %d source clips, got %d", len(job.Segments), len(ann.SourceClips))
	}
	for i, clip := range ann.SourceClips {
		if clip.Filename != job.Segments[i].Filename {
			t.Errorf("Source clip %d: expected %s, got %s", i, job.Segments[i].Filename, clip.Filename)
		}
		if !clip.StartTime.Equal(job.Segments[i].StartTime) {
			t.Errorf("Source clip %d: expected start %v, got %v", i, job.Segments[i].StartTime, clip.StartTime)
		}
		if clip.FileSize != job.Segments[i].FileSize {
			t.Errorf("Source clip %d: expected size %d, got %d", i, job.Segments[i].FileSize, clip.FileSize)
		}
	}
	if !ann.ActualStart.Equal(*job.ActualStart) || !ann.ActualEnd.Equal(*job.ActualEnd) {
		t.Errorf("Actual window mismatch: %v to %v", ann.ActualStart, ann.ActualEnd)
	}
	if ann.DurationSeconds != 20 {
		t.Errorf("Expected requested duration 20s, got %g", ann.DurationSeconds)
	}
}

func TestWriteYAMLMatchesJSON(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "annotation-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	w := NewWriter(tempDir, "MediaMTX")
	paths, err := w.Write(testJob(), "/videos/clip.mp4")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var fromJSON, fromYAML Annotation
	jsonData, _ := os.ReadFile(paths[0])
	if err := json.Unmarshal(jsonData, &fromJSON); err != nil {
		t.Fatalf("JSON artifact does not parse: %v", err)
	}
	yamlData, _ := os.ReadFile(paths[1])
	if err := yaml.Unmarshal(yamlData, &fromYAML); err != nil {
		t.Fatalf("YAML artifact does not parse: %v", err)
	}

	if fromJSON.ClipID != fromYAML.ClipID || len(fromJSON.SourceClips) != len(fromYAML.SourceClips) {
		t.Errorf("JSON and YAML artifacts disagree: %v vs %v", fromJSON, fromYAML)
	}
}

func TestWriteTextSummary(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "annotation-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	w := NewWriter(tempDir, "MediaMTX")
	job := testJob()
	paths, err := w.Write(job, "/videos/clip.mp4")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(paths[2])
	if err != nil {
		t.Fatalf("Failed to read text artifact: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"Clip ID: " + job.ID,
		"Camera: camera1",
		"Source: MediaMTX",
		"Source Clips Used: 2",
		"camera1_20250825_143000.mp4",
		"camera1_20250825_143005.mp4",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Text summary missing %q:\n%s", want, text)
		}
	}
}
