package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"camclip/annotation"
	"camclip/catalog"
	"camclip/concat"
	"camclip/config"
	"camclip/database"
	"camclip/metrics"
	"camclip/resolver"
	"camclip/storage"
)

// pollInterval bounds how long a pending job can sit unnoticed if the wake
// signal is missed (e.g. jobs created by a previous process run).
const pollInterval = 2 * time.Second

// ClipRequest is the intake payload for a new clip job. LeadSeconds and
// TrailSeconds are pointers so an explicit zero is distinguishable from an
// omitted value; nil means the configured default.
type ClipRequest struct {
	CameraID      string
	ReferenceTime time.Time
	LeadSeconds   *int // seconds of footage before ReferenceTime
	TrailSeconds  *int // seconds of footage after ReferenceTime
}

// Scheduler owns the clip pipeline: it accepts requests, persists them as
// pending jobs, and drives a bounded pool of workers through
// claim -> resolve -> concatenate -> annotate -> complete.
type Scheduler struct {
	cfg         config.Config
	db          database.Database
	resolver    *resolver.Resolver
	concatenate concat.Concatenator
	annotations *annotation.Writer
	r2          *storage.R2Storage // nil when uploads are disabled
	collector   *metrics.Collector

	sem  *semaphore.Weighted
	wake chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler wires the pipeline components together.
func NewScheduler(
	cfg config.Config,
	db database.Database,
	cat catalog.Catalog,
	concatenate concat.Concatenator,
	annotations *annotation.Writer,
	r2 *storage.R2Storage,
	collector *metrics.Collector,
) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		db:          db,
		resolver:    &resolver.Resolver{Catalog: cat, GapTolerance: cfg.GapTolerance},
		concatenate: concatenate,
		annotations: annotations,
		r2:          r2,
		collector:   collector,
		sem:         semaphore.NewWeighted(int64(cfg.WorkerConcurrency)),
		wake:        make(chan struct{}, 1),
	}
}

// Window derives the requested window from a request, applying the
// configured lead/trail defaults when the request omits them.
func (s *Scheduler) Window(req ClipRequest) resolver.Window {
	lead := s.cfg.DefaultLeadSeconds
	if req.LeadSeconds != nil {
		lead = *req.LeadSeconds
	}
	trail := s.cfg.DefaultTrailSeconds
	if req.TrailSeconds != nil {
		trail = *req.TrailSeconds
	}
	return resolver.Window{
		Start: req.ReferenceTime.Add(-time.Duration(lead) * time.Second),
		End:   req.ReferenceTime.Add(time.Duration(trail) * time.Second),
	}
}

// Submit validates the request against the catalog and, on success, creates
// a pending job and signals the dispatcher. Resolution errors are returned
// synchronously so the intake layer can reject unprocessable requests.
func (s *Scheduler) Submit(req ClipRequest) (string, error) {
	window := s.Window(req)

	// The worker re-resolves when it picks the job up; resolution is
	// deterministic, so this pre-check can only disagree with it if the
	// catalog changes in between, which the worker handles anyway.
	if _, err := s.resolver.Resolve(req.CameraID, window); err != nil {
		s.collector.RecordError(errorKind(err))
		return "", err
	}

	job := database.ClipJob{
		ID:             uuid.NewString(),
		CameraID:       req.CameraID,
		Status:         database.StatusPending,
		RequestedStart: window.Start,
		RequestedEnd:   window.End,
		CreatedAt:      time.Now(),
	}
	if err := s.db.CreateJob(job); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.collector.RecordRequest(req.CameraID, "started")
	s.updateQueueDepth()

	// Non-blocking: a single buffered token is enough, the dispatcher
	// drains the whole pending backlog per wakeup.
	select {
	case s.wake <- struct{}{}:
	default:
	}

	log.Printf("Scheduler: job %s submitted for camera %s (window %s to %s)",
		job.ID, req.CameraID, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
	return job.ID, nil
}

// Run dispatches pending jobs to workers until ctx is cancelled, then drains
// in-flight jobs before returning. Claimed jobs always run to completion.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("Scheduler: started with %d workers", s.cfg.WorkerConcurrency)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler: shutting down, draining in-flight jobs")
			s.wg.Wait()
			log.Println("Scheduler: drained")
			return
		case <-s.wake:
		case <-ticker.C:
		}
		s.dispatchPending(ctx)
	}
}

// dispatchPending claims jobs while workers and pending jobs are available.
func (s *Scheduler) dispatchPending(ctx context.Context) {
	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return // shutting down
		}

		job, err := s.db.ClaimNextJob()
		if err != nil {
			s.sem.Release(1)
			log.Printf("Scheduler: claim failed: %v", err)
			return
		}
		if job == nil {
			s.sem.Release(1)
			return
		}

		s.updateQueueDepth()
		s.wg.Add(1)
		go func(job *database.ClipJob) {
			defer s.wg.Done()
			defer s.sem.Release(1)
			s.process(job)
		}(job)
	}
}

// process runs the resolve -> concatenate -> annotate -> complete pipeline
// for one claimed job. It never requeues: every outcome is terminal.
func (s *Scheduler) process(job *database.ClipJob) {
	log.Printf("Scheduler: processing job %s (camera %s)", job.ID, job.CameraID)

	requested := resolver.Window{Start: job.RequestedStart, End: job.RequestedEnd}
	sel, err := s.resolver.Resolve(job.CameraID, requested)
	if err != nil {
		s.fail(job, err)
		return
	}

	// Output name carries camera, generation time and job id so the clip
	// and its annotations can be correlated without the job store.
	filename := fmt.Sprintf("%s_%s_%s.mp4", job.CameraID, time.Now().Format("20060102_150405"), job.ID)
	outputPath := filepath.Join(s.cfg.VideosPath, filename)

	inputs := make([]string, len(sel.Segments))
	for i, seg := range sel.Segments {
		inputs[i] = seg.Path
	}

	// Claimed jobs run to completion even during shutdown; the executor
	// enforces its own per-job deadline.
	if err := s.concatenate.Concat(context.Background(), inputs, outputPath); err != nil {
		s.fail(job, err)
		return
	}

	job.Segments = toSourceSegments(sel.Segments)
	job.ActualStart = &sel.Actual.Start
	job.ActualEnd = &sel.Actual.End

	annPaths, err := s.annotations.Write(*job, outputPath)
	if err != nil {
		// The media file exists but the metadata contract is unmet, so
		// the job as a whole fails.
		s.fail(job, err)
		return
	}

	downloadURL := s.cfg.BaseURL + "/videos/" + filename
	if s.r2 != nil {
		if url, err := s.uploadArtifacts(outputPath, annPaths, filename); err != nil {
			log.Printf("Scheduler: job %s upload failed, serving locally: %v", job.ID, err)
		} else {
			downloadURL = url
		}
	}

	outcome := database.JobOutcome{
		Status:      database.StatusDone,
		Segments:    job.Segments,
		ActualStart: job.ActualStart,
		ActualEnd:   job.ActualEnd,
		OutputPath:  outputPath,
		DownloadURL: downloadURL,
	}
	if err := s.db.CompleteJob(job.ID, outcome); err != nil {
		if errors.Is(err, database.ErrAlreadyTerminal) {
			log.Printf("Scheduler: job %s already completed", job.ID)
			return
		}
		log.Printf("Scheduler: failed to record completion of job %s: %v", job.ID, err)
		return
	}

	s.collector.RecordRequest(job.CameraID, "success")
	s.collector.ObserveLatency(time.Since(job.CreatedAt))
	s.updateQueueDepth()
	log.Printf("Scheduler: job %s done (%d segments, output %s)", job.ID, len(job.Segments), filename)
}

// fail records a terminal failure with its error kind.
func (s *Scheduler) fail(job *database.ClipJob, cause error) {
	kind := errorKind(cause)
	log.Printf("Scheduler: job %s failed (%s): %v", job.ID, kind, cause)

	outcome := database.JobOutcome{
		Status:       database.StatusFailed,
		Segments:     job.Segments,
		ActualStart:  job.ActualStart,
		ActualEnd:    job.ActualEnd,
		ErrorKind:    kind,
		ErrorMessage: cause.Error(),
	}
	if err := s.db.CompleteJob(job.ID, outcome); err != nil && !errors.Is(err, database.ErrAlreadyTerminal) {
		log.Printf("Scheduler: failed to record failure of job %s: %v", job.ID, err)
	}

	s.collector.RecordRequest(job.CameraID, "failed")
	s.collector.RecordError(kind)
	s.collector.ObserveLatency(time.Since(job.CreatedAt))
	s.updateQueueDepth()
}

// uploadArtifacts pushes the clip and its annotations to R2 and returns the
// clip's public URL.
func (s *Scheduler) uploadArtifacts(outputPath string, annPaths []string, filename string) (string, error) {
	url, err := s.r2.UploadFile(outputPath, "videos/"+filename)
	if err != nil {
		return "", err
	}
	for _, p := range annPaths {
		if _, err := s.r2.UploadFile(p, "annotations/"+filepath.Base(p)); err != nil {
			return "", err
		}
	}
	return url, nil
}

func (s *Scheduler) updateQueueDepth() {
	counts, err := s.db.CountJobsByStatus()
	if err != nil {
		return
	}
	s.collector.SetQueueDepth(counts[database.StatusPending])
}

// toSourceSegments converts resolved catalog segments to the persisted form.
func toSourceSegments(segments []catalog.Segment) []database.SourceSegment {
	out := make([]database.SourceSegment, len(segments))
	for i, seg := range segments {
		out[i] = database.SourceSegment{
			FilePath:  seg.Path,
			Filename:  filepath.Base(seg.Path),
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime(),
			FileSize:  seg.Size,
		}
	}
	return out
}

// errorKind maps a pipeline error to the stable kind recorded on the job and
// used as a metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, resolver.ErrUnknownCamera):
		return database.ErrKindUnknownCamera
	case errors.Is(err, resolver.ErrNoOverlap):
		return database.ErrKindNoOverlap
	case errors.Is(err, resolver.ErrDiscontinuous):
		return database.ErrKindDiscontinuous
	case errors.Is(err, concat.ErrMissingSource):
		return database.ErrKindMissingSource
	case errors.Is(err, concat.ErrExecution):
		return database.ErrKindExecution
	case errors.Is(err, annotation.ErrWrite):
		return database.ErrKindAnnotationWrite
	default:
		return database.ErrKindInternal
	}
}
