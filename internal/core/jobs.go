package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/BitSlicer/internal/logging"
	"github.com/JonMunkholm/BitSlicer/internal/table"
	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned for unknown or evicted job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned when a finished-only operation is asked of a running job.
	ErrJobRunning = errors.New("job still running")

	// ErrJobCancelled is the error recorded for cancelled jobs.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrFileTooLarge is returned when an upload exceeds Options.MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when a job is started without data.
	ErrNoFile = errors.New("no file provided")
)

// JobRequest describes a slicing job over an uploaded file.
type JobRequest struct {
	FileName string
	Data     []byte
	Read     table.ReadOptions
	Plan     PlanRequest

	// ClientIP is recorded in job history.
	ClientIP string
}

type activeJob struct {
	ID       string
	FileName string
	Cancel   context.CancelFunc
	Done     chan struct{}

	mu        sync.Mutex
	progress  JobProgress
	listeners []chan JobProgress

	// set once before Done is closed
	result *JobResult
	output *Result
}

// StartJob validates the request, takes a job slot and slices the file in
// the background. It returns the job ID immediately; use SubscribeProgress
// to follow the job and JobResult/JobOutput once it is done.
//
// Returns ErrTooManyJobs if no slot frees up within the limiter's wait time.
func (s *Service) StartJob(ctx context.Context, req JobRequest) (string, error) {
	if len(req.Data) == 0 {
		return "", ErrNoFile
	}
	if s.opts.MaxFileSize > 0 && int64(len(req.Data)) > s.opts.MaxFileSize {
		return "", fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrFileTooLarge, len(req.Data), s.opts.MaxFileSize)
	}
	format, err := table.FormatFromName(req.FileName)
	if err != nil {
		return "", err
	}

	if req.ClientIP == "" {
		req.ClientIP = ClientIPFromContext(ctx)
	}

	if err := s.opts.Limiter.Acquire(ctx); err != nil {
		return "", err
	}

	jobID := uuid.New().String()
	jobCtx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
	jobCtx = logging.WithJobID(jobCtx, jobID)

	job := &activeJob{
		ID:       jobID,
		FileName: req.FileName,
		Cancel:   cancel,
		Done:     make(chan struct{}),
		progress: JobProgress{
			JobID:      jobID,
			FileName:   req.FileName,
			Phase:      PhaseQueued,
			TotalBytes: int64(len(req.Data)),
		},
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	s.wg.Add(1)
	s.opts.Metrics.JobStarted()

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.wg.Done()
		defer s.opts.Limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(jobCtx).Error("panic in slicing job", "panic", r)
				select {
				case <-job.Done:
					return
				default:
				}
				s.finish(jobCtx, job, req, nil, nil, fmt.Errorf("internal error: %v", r), time.Now())
			}
		}()
		s.processJob(jobCtx, job, req, format)
	}()

	return jobID, nil
}

func (s *Service) processJob(ctx context.Context, job *activeJob, req JobRequest, format table.Format) {
	start := time.Now()
	logger := logging.WithFields(ctx, "file", req.FileName, "column", req.Plan.Column)
	logger.Info("slicing job started")

	job.update(func(p *JobProgress) { p.Phase = PhaseReading })

	counter := table.NewCountingReader(bytes.NewReader(req.Data), int64(len(req.Data)))
	tbl, err := table.Read(counter, req.FileName, format, req.Read)
	if err != nil {
		s.finish(ctx, job, req, nil, nil, err, start)
		return
	}

	job.update(func(p *JobProgress) {
		p.Phase = PhasePlanning
		p.BytesRead = counter.BytesRead
		p.TotalRows = len(tbl.Rows)
	})

	plan, err := s.Plan(tbl, req.Plan)
	if err != nil {
		s.finish(ctx, job, req, nil, nil, err, start)
		return
	}

	job.update(func(p *JobProgress) { p.Phase = PhaseSlicing })

	result, err := s.slice(ctx, tbl, plan, func(done int) {
		job.update(func(p *JobProgress) {
			p.CurrentRow = max(p.CurrentRow, done)
		})
	})
	s.finish(ctx, job, req, &plan, result, err, start)
}

// finish records the outcome, writes job history, releases listeners and
// waiters, and schedules eviction. It is called exactly once per job.
func (s *Service) finish(ctx context.Context, job *activeJob, req JobRequest, plan *Plan, out *Result, err error, start time.Time) {
	elapsed := time.Since(start)

	res := &JobResult{
		JobID:      job.ID,
		FileName:   job.FileName,
		Phase:      PhaseComplete,
		Plan:       plan,
		Duration:   elapsed,
		DurationMS: elapsed.Milliseconds(),
	}
	if out != nil {
		res.Stats = out.Stats
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		res.Phase = PhaseCancelled
		res.Error = ErrJobCancelled.Error()
	default:
		res.Phase = PhaseFailed
		res.Error = err.Error()
	}

	msg := MapError(err)
	job.update(func(p *JobProgress) {
		p.Phase = res.Phase
		p.Error = res.Error
		if res.Phase == PhaseFailed {
			p.ErrorCode = msg.Code
			p.ErrorAction = msg.Action
		}
		if out != nil {
			p.CurrentRow = out.Stats.Rows
		}
	})

	logger := logging.FromContext(ctx)
	if res.Phase == PhaseComplete {
		logger.Info("slicing job completed",
			"rows", res.Stats.Rows,
			"fallback", res.Stats.Fallback,
			"overflow", res.Stats.Overflow,
			"duration_ms", res.DurationMS,
		)
	} else {
		logger.Warn("slicing job ended", "phase", res.Phase, "error", res.Error, "code", msg.Code)
	}
	s.opts.Metrics.JobFinished(string(res.Phase), elapsed)

	entry := HistoryEntry{
		JobID:      job.ID,
		FileName:   job.FileName,
		Column:     req.Plan.Column,
		Mode:       req.Plan.mode(),
		Phase:      res.Phase,
		Stats:      res.Stats,
		Error:      res.Error,
		ClientIP:   req.ClientIP,
		DurationMS: res.DurationMS,
		CreatedAt:  time.Now(),
	}
	if plan != nil {
		entry.Fields = len(plan.Widths)
	}
	// The job context may already be cancelled; history is written regardless.
	histCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.opts.History.Record(histCtx, entry); err != nil {
		logger.Error("failed to record job history", "error", err)
	}

	// Waiters see history and metrics already written.
	job.mu.Lock()
	job.result = res
	job.output = out
	job.mu.Unlock()

	job.closeListeners()
	close(job.Done)

	s.cleanup(job.ID, s.opts.ResultTTL)
}

// SubscribeProgress returns a channel that receives progress updates.
// The current state is delivered first. The channel is closed when the job
// completes; subscribing to a finished job yields its final state.
func (s *Service) SubscribeProgress(jobID string) (<-chan JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan JobProgress, 10)

	job.mu.Lock()
	defer job.mu.Unlock()

	ch <- job.progress
	if job.progress.Phase.Terminal() {
		close(ch)
		return ch, nil
	}
	job.listeners = append(job.listeners, ch)
	return ch, nil
}

// CancelJob cancels a running job. Cancelling a finished job is a no-op.
func (s *Service) CancelJob(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

// JobProgress returns the current progress without blocking.
func (s *Service) JobProgress(jobID string) (JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return JobProgress{}, err
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.progress, nil
}

// JobResult returns the outcome of a job, blocking until it finishes or ctx
// is done.
func (s *Service) JobResult(ctx context.Context, jobID string) (*JobResult, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	select {
	case <-job.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.result, nil
}

// JobOutput returns the sliced table of a completed job. It does not block:
// a running job yields ErrJobRunning.
func (s *Service) JobOutput(jobID string) (*table.Table, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	select {
	case <-job.Done:
	default:
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.output == nil {
		return nil, fmt.Errorf("job %s %s: %s", jobID, job.result.Phase, job.result.Error)
	}
	return &table.Table{
		Name:   job.FileName,
		Header: job.output.Header,
		Rows:   job.output.Rows,
	}, nil
}

// Wait blocks until every started job has finished or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CancelAll cancels every tracked job. Used on shutdown after the drain
// period expires.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		job.Cancel()
	}
}

func (s *Service) job(jobID string) (*activeJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// update mutates the progress under the job lock and broadcasts it.
func (job *activeJob) update(fn func(p *JobProgress)) {
	job.mu.Lock()
	defer job.mu.Unlock()

	fn(&job.progress)
	for _, ch := range job.listeners {
		select {
		case ch <- job.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (job *activeJob) closeListeners() {
	job.mu.Lock()
	defer job.mu.Unlock()

	for _, ch := range job.listeners {
		close(ch)
	}
	job.listeners = nil
}

// cleanup removes the job from tracking after a delay.
func (s *Service) cleanup(jobID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}
