package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSegmentFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	data := make([]byte, size)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatalf("Failed to write segment file: %v", err)
	}
}

func TestListSegments(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "catalog-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cameraDir := filepath.Join(tempDir, "camera1")
	// Written out of order; the catalog must sort by timestamp
	writeSegmentFile(t, cameraDir, "camera1_20250825_143010.mp4", 2048)
	writeSegmentFile(t, cameraDir, "camera1_20250825_143000.mp4", 1024)
	writeSegmentFile(t, cameraDir, "camera1_20250825_143005.mp4", 4096)
	// Noise the scanner must skip
	writeSegmentFile(t, cameraDir, "notes.txt", 10)
	writeSegmentFile(t, cameraDir, "badname.mp4", 10)
	if err := os.MkdirAll(filepath.Join(cameraDir, "subdir"), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	cat := NewFSCatalog(tempDir, 5*time.Second)
	segments, err := cat.ListSegments("camera1")
	if err != nil {
		t.Fatalf("ListSegments failed: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}

	want := time.Date(2025, 8, 25, 14, 30, 0, 0, time.UTC)
	for i, seg := range segments {
		if !seg.StartTime.Equal(want.Add(time.Duration(i*5) * time.Second)) {
			t.Errorf("Segment %d: expected start %v, got %v", i, want.Add(time.Duration(i*5)*time.Second), seg.StartTime)
		}
		if seg.Duration != 5*time.Second {
			t.Errorf("Segment %d: expected 5s nominal duration, got %v", i, seg.Duration)
		}
		if seg.CameraID != "camera1" {
			t.Errorf("Segment %d: expected camera1, got %s", i, seg.CameraID)
		}
	}
	if segments[0].Size != 1024 {
		t.Errorf("Expected first segment size 1024, got %d", segments[0].Size)
	}
	if _, err := os.Stat(segments[0].Path); err != nil {
		t.Errorf("Segment path does not exist: %s", segments[0].Path)
	}
}

func TestListSegmentsUnknownCamera(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "catalog-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cat := NewFSCatalog(tempDir, 5*time.Second)
	segments, err := cat.ListSegments("ghost")
	if err != nil {
		t.Fatalf("Expected no error for unknown camera, got: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("Expected empty result for unknown camera, got %d segments", len(segments))
	}
}

func TestListSegmentsCameraNameWithUnderscores(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "catalog-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	cameraDir := filepath.Join(tempDir, "field_2_north")
	writeSegmentFile(t, cameraDir, "field_2_north_20250825_143000.mp4", 512)

	cat := NewFSCatalog(tempDir, 5*time.Second)
	segments, err := cat.ListSegments("field_2_north")
	if err != nil {
		t.Fatalf("ListSegments failed: %v", err)
	}
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	want := time.Date(2025, 8, 25, 14, 30, 0, 0, time.UTC)
	if !segments[0].StartTime.Equal(want) {
		t.Errorf("Expected start %v, got %v", want, segments[0].StartTime)
	}
}

func TestListCameras(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "catalog-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	for _, cam := range []string{"camera2", "camera1", "camera3"} {
		if err := os.MkdirAll(filepath.Join(tempDir, cam), 0755); err != nil {
			t.Fatalf("Failed to create camera dir: %v", err)
		}
	}
	// Loose file at the top level is not a camera
	writeSegmentFile(t, tempDir, "stray.mp4", 10)

	cat := NewFSCatalog(tempDir, 5*time.Second)
	cameras, err := cat.ListCameras()
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}
	if len(cameras) != 3 {
		t.Fatalf("Expected 3 cameras, got %d", len(cameras))
	}
	for i, want := range []string{"camera1", "camera2", "camera3"} {
		if cameras[i] != want {
			t.Errorf("Expected camera %s at index %d, got %s", want, i, cameras[i])
		}
	}
}

func TestListCamerasMissingBaseDir(t *testing.T) {
	cat := NewFSCatalog("/nonexistent/recordings", 5*time.Second)
	cameras, err := cat.ListCameras()
	if err != nil {
		t.Fatalf("Expected no error for missing base dir, got: %v", err)
	}
	if len(cameras) != 0 {
		t.Fatalf("Expected no cameras, got %v", cameras)
	}
}
