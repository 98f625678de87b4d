package concat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrMissingSource means an input segment disappeared or is empty.
	// Detected before ffmpeg runs so a partial clip is never produced.
	ErrMissingSource = errors.New("missing source segment")

	// ErrExecution is the wrapped target for any ffmpeg-level failure:
	// non-zero exit, timeout, or a silently empty output file.
	ErrExecution = errors.New("concatenation failed")
)

// Concatenator merges an ordered list of media files into one output file
// without re-encoding. It exists as an interface so the pipeline can be
// tested without a real ffmpeg binary.
type Concatenator interface {
	Concat(ctx context.Context, inputs []string, outputPath string) error
}

// FFmpegConcatenator runs ffmpeg with the concat demuxer and the copy codec.
// Stream copy is a hard requirement: re-encoding would shift frame timing
// and invalidate the timestamps recorded in the annotations.
type FFmpegConcatenator struct {
	BinaryPath string        // ffmpeg binary, defaults to "ffmpeg" on PATH
	Timeout    time.Duration // per-job deadline; zero means no deadline
}

// NewFFmpegConcatenator creates a concatenator with the given per-job timeout.
func NewFFmpegConcatenator(timeout time.Duration) *FFmpegConcatenator {
	return &FFmpegConcatenator{
		BinaryPath: "ffmpeg",
		Timeout:    timeout,
	}
}

// Concat validates every input, writes the concat list file next to the
// output, and invokes ffmpeg. Inputs are used in the given order.
func (f *FFmpegConcatenator) Concat(ctx context.Context, inputs []string, outputPath string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no input segments", ErrMissingSource)
	}

	// Fail fast on vanished or empty inputs instead of letting ffmpeg
	// produce an ambiguous partial result.
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMissingSource, input)
		}
		if info.Size() == 0 {
			return fmt.Errorf("%w: %s is empty", ErrMissingSource, input)
		}
	}

	outDir := filepath.Dir(outputPath)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %v", ErrExecution, err)
	}

	// Concat list named after the output so concurrent jobs never collide.
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	concatListPath := filepath.Join(outDir, fmt.Sprintf("concat_list_%s.txt", base))
	if err := writeConcatList(concatListPath, inputs); err != nil {
		return err
	}
	defer os.Remove(concatListPath)

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	binary := f.BinaryPath
	if binary == "" {
		binary = "ffmpeg"
	}

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", concatListPath,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outputPath,
	}

	log.Printf("Concat: merging %d segments into %s", len(inputs), outputPath)
	cmd := exec.CommandContext(ctx, binary, args...)
	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		os.Remove(outputPath)
		return fmt.Errorf("%w: ffmpeg timed out after %s", ErrExecution, f.Timeout)
	}
	if err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("%w: ffmpeg: %v\nOutput: %s", ErrExecution, err, tail(string(output), 2000))
	}

	// A zero exit with an empty file is still a failure; ffmpeg can exit 0
	// on certain malformed inputs while writing nothing useful.
	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("%w: output file not created: %v", ErrExecution, err)
	}
	if info.Size() == 0 {
		os.Remove(outputPath)
		return fmt.Errorf("%w: output file is empty", ErrExecution)
	}

	log.Printf("Concat: created %s (%d bytes)", outputPath, info.Size())
	return nil
}

// writeConcatList writes the ffmpeg concat demuxer input list with absolute
// paths, preserving the order of inputs.
func writeConcatList(listPath string, inputs []string) error {
	file, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("%w: failed to create concat list: %v", ErrExecution, err)
	}

	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			file.Close()
			return fmt.Errorf("%w: failed to resolve path %s: %v", ErrExecution, input, err)
		}
		line := fmt.Sprintf("file '%s'\n", filepath.ToSlash(absPath))
		if _, err := file.WriteString(line); err != nil {
			file.Close()
			return fmt.Errorf("%w: failed to write concat list: %v", ErrExecution, err)
		}
	}

	return file.Close()
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
