package resolver

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"camclip/catalog"
)

// Resolution errors. All three are terminal: the catalog contents will not
// change for a past window, so retrying the same request cannot succeed.
var (
	// ErrUnknownCamera means the camera has no segments at all.
	ErrUnknownCamera = errors.New("unknown camera")

	// ErrNoOverlap means no segment intersects the requested window.
	ErrNoOverlap = errors.New("no segments overlap requested window")

	// ErrDiscontinuous means the selected segments have a gap larger than
	// the tolerance, so the concatenated clip would silently skip footage.
	ErrDiscontinuous = errors.New("discontinuous segment selection")
)

// Window is a closed time interval [Start, End].
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Selection is the outcome of resolving a request window against a camera's
// segment timeline.
type Selection struct {
	Segments []catalog.Segment // concatenation order, sorted by start time
	Actual   Window            // true coverage of the selected segments
}

// Resolver maps a requested window to an ordered segment selection.
// GapTolerance bounds how far apart adjacent selected segments may start
// after the previous one ends; zero means no gap is tolerated.
type Resolver struct {
	Catalog      catalog.Catalog
	GapTolerance time.Duration
}

// Resolve selects every segment whose coverage interval overlaps the
// requested window. Segments are always used whole; the clip may therefore
// extend up to one segment duration past each side of the window.
//
// The function is pure aside from the catalog read: identical catalog state
// and window always produce an identical selection, which makes re-running
// a job's resolution safe.
func (r *Resolver) Resolve(cameraID string, requested Window) (*Selection, error) {
	segments, err := r.Catalog.ListSegments(cameraID)
	if err != nil {
		return nil, fmt.Errorf("catalog read failed for camera %s: %w", cameraID, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCamera, cameraID)
	}

	var selected []catalog.Segment
	for _, seg := range segments {
		// Inclusive boundaries: a segment that starts exactly at the
		// window end (or ends exactly at the window start) is selected,
		// so a window landing on a segment boundary still covers it.
		if !seg.StartTime.After(requested.End) && !seg.EndTime().Before(requested.Start) {
			selected = append(selected, seg)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: camera %s, window %s to %s", ErrNoOverlap,
			cameraID, requested.Start.Format(time.RFC3339), requested.End.Format(time.RFC3339))
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].StartTime.Before(selected[j].StartTime)
	})

	// A gap between adjacent segments beyond tolerance means footage is
	// missing inside the window. Fail rather than produce a clip that
	// jumps over the hole.
	for i := 1; i < len(selected); i++ {
		gap := selected[i].StartTime.Sub(selected[i-1].EndTime())
		if gap > r.GapTolerance {
			return nil, fmt.Errorf("%w: %s gap between %s and %s", ErrDiscontinuous,
				gap, selected[i-1].StartTime.Format(time.RFC3339), selected[i].StartTime.Format(time.RFC3339))
		}
	}

	return &Selection{
		Segments: selected,
		Actual: Window{
			Start: selected[0].StartTime,
			End:   selected[len(selected)-1].EndTime(),
		},
	}, nil
}
