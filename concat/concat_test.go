package concat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConcatRejectsMissingInput(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "concat-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	f := NewFFmpegConcatenator(time.Minute)
	err = f.Concat(context.Background(), []string{filepath.Join(tempDir, "missing.mp4")}, filepath.Join(tempDir, "out.mp4"))
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("Expected ErrMissingSource for vanished input, got: %v", err)
	}
}

func TestConcatRejectsEmptyInput(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "concat-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	empty := filepath.Join(tempDir, "empty.mp4")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatalf("Failed to write empty file: %v", err)
	}

	f := NewFFmpegConcatenator(time.Minute)
	err = f.Concat(context.Background(), []string{empty}, filepath.Join(tempDir, "out.mp4"))
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("Expected ErrMissingSource for empty input, got: %v", err)
	}
}

func TestConcatRejectsNoInputs(t *testing.T) {
	f := NewFFmpegConcatenator(time.Minute)
	err := f.Concat(context.Background(), nil, "out.mp4")
	if !errors.Is(err, ErrMissingSource) {
		t.Fatalf("Expected ErrMissingSource for empty input list, got: %v", err)
	}
}

func TestConcatFailsWithBogusBinary(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "concat-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	input := filepath.Join(tempDir, "seg.mp4")
	if err := os.WriteFile(input, []byte("not really video"), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	f := NewFFmpegConcatenator(time.Minute)
	f.BinaryPath = filepath.Join(tempDir, "no-such-ffmpeg")
	err = f.Concat(context.Background(), []string{input}, filepath.Join(tempDir, "out.mp4"))
	if !errors.Is(err, ErrExecution) {
		t.Fatalf("Expected ErrExecution when the binary cannot run, got: %v", err)
	}
}

func TestWriteConcatListPreservesOrder(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "concat-test")
	if err != nil {
		t.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tempDir)

	var inputs []string
	for i := 0; i < 3; i++ {
		p := filepath.Join(tempDir, fmt.Sprintf("seg%d.mp4", i))
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to write input: %v", err)
		}
		inputs = append(inputs, p)
	}

	listPath := filepath.Join(tempDir, "list.txt")
	if err := writeConcatList(listPath, inputs); err != nil {
		t.Fatalf("writeConcatList failed: %v", err)
	}

	data, err := os.ReadFile(listPath)
	if err != nil {
		t.Fatalf("Failed to read concat list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	for i, line := range lines {
		abs, _ := filepath.Abs(inputs[i])
		want := fmt.Sprintf("file '%s'", filepath.ToSlash(abs))
		if line != want {
			t.Errorf("Line %d: expected %q, got %q", i, want, line)
		}
	}
}
