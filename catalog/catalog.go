package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Segment represents one fixed-duration recorded file on disk.
// Segments are discovered from the recorder's output directory and are
// immutable once listed.
type Segment struct {
	CameraID  string        `json:"cameraId"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"` // nominal duration, from recorder settings
	Path      string        `json:"path"`
	Size      int64         `json:"size"`
}

// EndTime returns the nominal end of the segment's coverage interval.
func (s Segment) EndTime() time.Time {
	return s.StartTime.Add(s.Duration)
}

// Catalog is a read-only view over the recorder's segment storage.
type Catalog interface {
	// ListSegments returns the camera's segments sorted by start time.
	// An unknown camera yields an empty slice, not an error; errors are
	// reserved for storage-level failures.
	ListSegments(cameraID string) ([]Segment, error)

	// ListCameras returns the known camera IDs sorted alphabetically.
	ListCameras() ([]string, error)
}

// FSCatalog reads segments from <baseDir>/<cameraID>/<cameraID>_YYYYMMDD_HHMMSS.mp4,
// the layout the segment recorder writes.
type FSCatalog struct {
	baseDir         string
	segmentDuration time.Duration
}

// NewFSCatalog creates a filesystem-backed catalog. segmentDuration is the
// recorder's fixed segment length and applies to every discovered file.
func NewFSCatalog(baseDir string, segmentDuration time.Duration) *FSCatalog {
	return &FSCatalog{
		baseDir:         baseDir,
		segmentDuration: segmentDuration,
	}
}

// ListSegments scans the camera's directory for MP4 segments and returns them
// sorted by the timestamp encoded in the filename.
func (c *FSCatalog) ListSegments(cameraID string) ([]Segment, error) {
	cameraDir := filepath.Join(c.baseDir, cameraID)

	entries, err := os.ReadDir(cameraDir)
	if err != nil {
		if os.IsNotExist(err) {
			// Unknown camera is signalled by an empty result.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list camera directory %s: %w", cameraDir, err)
	}

	var segments []Segment
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		ts, ok := parseSegmentTimestamp(entry.Name())
		if !ok {
			continue // not a recorder segment, skip
		}
		info, err := entry.Info()
		if err != nil {
			continue // file vanished between readdir and stat
		}
		segments = append(segments, Segment{
			CameraID:  cameraID,
			StartTime: ts,
			Duration:  c.segmentDuration,
			Path:      filepath.Join(cameraDir, entry.Name()),
			Size:      info.Size(),
		})
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].StartTime.Before(segments[j].StartTime)
	})

	return segments, nil
}

// ListCameras returns the subdirectories of the base directory.
func (c *FSCatalog) ListCameras() ([]string, error) {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list recordings directory: %w", err)
	}

	var cameras []string
	for _, entry := range entries {
		if entry.IsDir() {
			cameras = append(cameras, entry.Name())
		}
	}
	sort.Strings(cameras)
	return cameras, nil
}

// parseSegmentTimestamp extracts the recording start time from a segment
// filename. Expected format: <camera_name>_YYYYMMDD_HHMMSS.mp4, where the
// camera name itself may contain underscores.
func parseSegmentTimestamp(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".mp4")
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return time.Time{}, false
	}
	dateStr := parts[len(parts)-2]
	timeStr := parts[len(parts)-1]
	ts, err := time.Parse("20060102_150405", dateStr+"_"+timeStr)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
