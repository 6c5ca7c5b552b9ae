package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/yourusername/relaxr-go/internal/domain"
	"github.com/yourusername/relaxr-go/pkg/logger"
)

// Notifier announces finished jobs to the desktop
type Notifier interface {
	NotifyConversionCompleted(title, path string)
	NotifyConversionFailed(url string, err error)
}

// ConversionService is the job boundary: it creates jobs, drives them
// through resolver and pipeline, and turns every failure into a terminal
// job state.
type ConversionService struct {
	repo     domain.JobRepository
	source   domain.VideoSource
	pipeline *Pipeline
	events   *EventHub
	notifier Notifier
	jobLog   *logger.MultiLogger
	logger   *zap.Logger
	slots    *semaphore.Weighted // nil means unbounded

	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	repoLock sync.Mutex
}

// NewConversionService creates a conversion service. maxConcurrent <= 0
// lets every submitted job run at once.
func NewConversionService(
	repo domain.JobRepository,
	source domain.VideoSource,
	pipeline *Pipeline,
	events *EventHub,
	notifier Notifier,
	jobLog *logger.MultiLogger,
	maxConcurrent int,
	log *zap.Logger,
) *ConversionService {
	if log == nil {
		log = zap.NewNop()
	}
	if events == nil {
		events = NewEventHub(log)
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &ConversionService{
		repo:     repo,
		source:   source,
		pipeline: pipeline,
		events:   events,
		notifier: notifier,
		jobLog:   jobLog,
		logger:   log,
		baseCtx:  ctx,
		cancel:   cancel,
		running:  true,
	}
	if maxConcurrent > 0 {
		s.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return s
}

// IsRunning returns whether the service accepts jobs
func (s *ConversionService) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Shutdown stops accepting jobs, cancels in-flight ones and waits for
// them until ctx expires.
func (s *ConversionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("conversion service not running")
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logJobEvent("service_stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit creates a job and runs it in the background
func (s *ConversionService) Submit(url string, opts JobOptions) (*domain.Job, error) {
	job, err := s.newJob(url)
	if err != nil {
		return nil, err
	}
	snapshot := *job

	go func() {
		defer s.wg.Done()
		s.execute(s.baseCtx, job, opts)
	}()

	return &snapshot, nil
}

// Convert creates a job and runs it to completion. ctx bounds only the wait
// for a free job slot; a started job runs until it finishes or the service
// shuts down.
func (s *ConversionService) Convert(ctx context.Context, url string, opts JobOptions) (*domain.Job, *PipelineResult, error) {
	job, err := s.newJob(url)
	if err != nil {
		return nil, nil, err
	}
	defer s.wg.Done()

	if err := s.acquire(ctx); err != nil {
		jobErr := domain.Unknown(err)
		s.fail(job, jobErr)
		return job, nil, jobErr
	}
	defer s.release()

	result, err := s.run(s.baseCtx, job, opts)
	return job, result, err
}

// GetJob retrieves a job by ID
func (s *ConversionService) GetJob(id string) (*domain.Job, error) {
	return s.repo.FindByID(id)
}

// ListJobs lists jobs with optional filters
func (s *ConversionService) ListJobs(filters map[string]interface{}) ([]*domain.Job, error) {
	return s.repo.FindAll(filters)
}

// GetStats returns job statistics
func (s *ConversionService) GetStats() (*domain.JobStats, error) {
	return s.repo.GetStats()
}

// newJob registers a pending job and reserves a place in the wait group
func (s *ConversionService) newJob(url string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return nil, fmt.Errorf("conversion service is shutting down")
	}

	job := domain.NewJob(url)
	if err := s.repo.Create(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.wg.Add(1)

	s.logJobEvent("job_added", zap.String("id", job.ID), zap.String("url", url))
	return job, nil
}

func (s *ConversionService) execute(ctx context.Context, job *domain.Job, opts JobOptions) {
	if err := s.acquire(ctx); err != nil {
		s.fail(job, domain.Unknown(err))
		return
	}
	defer s.release()

	s.run(ctx, job, opts)
}

// run drives one job. No error or panic escapes without the job reaching
// a terminal state.
func (s *ConversionService) run(ctx context.Context, job *domain.Job, opts JobOptions) (result *PipelineResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in job",
				zap.String("id", job.ID),
				zap.Any("panic", r))
			result = nil
			err = domain.Unknown(fmt.Errorf("panic: %v", r))
			s.fail(job, err)
		}
	}()

	s.logger.Info("Processing job",
		zap.String("id", job.ID),
		zap.String("url", job.SourceURL))

	if err := job.MarkDownloading(); err != nil {
		return nil, err
	}
	s.save(job)
	s.logJobEvent("job_started", zap.String("id", job.ID))

	result, err = s.process(ctx, job, opts)
	if err != nil {
		s.fail(job, err)
		return nil, err
	}

	if err := job.MarkCompleted(result.FinalPath, result.FinalFileName); err != nil {
		s.logger.Error("Failed to complete job", zap.String("id", job.ID), zap.Error(err))
	}
	s.save(job)
	s.events.Publish(domain.FinishedEvent(job))

	s.logger.Info("Job completed",
		zap.String("id", job.ID),
		zap.String("file", result.FinalPath))
	s.logJobEvent("job_completed",
		zap.String("id", job.ID),
		zap.String("file_path", result.FinalPath))

	if s.notifier != nil {
		s.notifier.NotifyConversionCompleted(job.Title, result.FinalPath)
	}
	return result, nil
}

func (s *ConversionService) process(ctx context.Context, job *domain.Job, opts JobOptions) (*PipelineResult, error) {
	video, err := s.source.Resolve(ctx, job.SourceURL)
	if err != nil {
		return nil, err
	}
	job.SetMetadata(video.Metadata)
	s.save(job)

	destination, err := s.pipeline.ResolveDestination(ctx, video.Metadata, opts)
	if err != nil {
		return nil, err
	}

	stream, err := s.source.OpenAudioStream(ctx, video)
	if err != nil {
		return nil, err
	}
	defer stream.Body.Close()

	input := PipelineInput{
		Job:         job,
		Stream:      stream.Body,
		TotalBytes:  stream.TotalBytes,
		MimeType:    stream.MimeType,
		Metadata:    video.Metadata,
		Destination: destination,
	}
	return s.pipeline.Run(ctx, input, func(percent int) {
		s.reportProgress(job, percent)
	})
}

func (s *ConversionService) reportProgress(job *domain.Job, percent int) {
	if job.UpdateProgress(percent) {
		s.save(job)
	}
	s.events.Publish(domain.ProgressEvent(job.ID, percent))
}

// fail moves job to error. A job that never got a slot is started first
// so every job leaves pending through downloading.
func (s *ConversionService) fail(job *domain.Job, cause error) {
	if job.Status == domain.StatusPending {
		if err := job.MarkDownloading(); err == nil {
			s.save(job)
		}
	}
	if err := job.MarkFailed(cause); err != nil {
		s.logger.Error("Failed to mark job failed", zap.String("id", job.ID), zap.Error(err))
		return
	}
	s.save(job)
	s.events.Publish(domain.FinishedEvent(job))

	fields := []zap.Field{
		zap.String("id", job.ID),
		zap.String("url", job.SourceURL),
		zap.String("kind", string(job.ErrorKind)),
		zap.Error(cause),
	}
	if errors.Is(cause, domain.ErrUserCancelled) {
		s.logger.Info("Job cancelled by user", fields...)
	} else {
		s.logger.Error("Job failed", fields...)
		if s.jobLog != nil {
			s.jobLog.LogAppError("Job failed", fields...)
		}
	}
	s.logJobEvent("job_failed", fields...)

	if s.notifier != nil && !errors.Is(cause, domain.ErrUserCancelled) {
		s.notifier.NotifyConversionFailed(job.SourceURL, cause)
	}
}

func (s *ConversionService) save(job *domain.Job) {
	s.repoLock.Lock()
	defer s.repoLock.Unlock()
	if err := s.repo.Update(job); err != nil {
		s.logger.Error("Failed to update job", zap.String("id", job.ID), zap.Error(err))
	}
}

func (s *ConversionService) acquire(ctx context.Context) error {
	if s.slots == nil {
		return nil
	}
	return s.slots.Acquire(ctx, 1)
}

func (s *ConversionService) release() {
	if s.slots != nil {
		s.slots.Release(1)
	}
}

func (s *ConversionService) logJobEvent(event string, fields ...zap.Field) {
	if s.jobLog != nil {
		s.jobLog.LogJobEvent(event, fields...)
	}
}
