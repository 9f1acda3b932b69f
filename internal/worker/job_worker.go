package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 25
	defaultConcurrency  = 4
	defaultLeaseTTL     = 2 * time.Minute
	defaultRetryDelay   = 15 * time.Second

	staleRunningAge  = 5 * time.Minute
	cleanupRetention = 7 * 24 * time.Hour
	unclaimDelay     = 10 * time.Second
)

// JobQueue is the slice of the job repository the worker needs.
type JobQueue interface {
	FetchDue(ctx context.Context, limit int) ([]domain.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMsg string, retryDelay time.Duration) error
	Unclaim(ctx context.Context, id string, delay time.Duration) error
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
	CleanupDone(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ContentSweeps is the slice of the content repository the worker needs for
// its periodic sweeps.
type ContentSweeps interface {
	PromoteDueScheduled(ctx context.Context) (int64, error)
}

// Generator runs and abandons generation passes. *generate.Coordinator
// satisfies it.
type Generator interface {
	Run(ctx context.Context, contentID, feedback string) error
	Abandon(ctx context.Context, contentID, reason string) error
}

// Regenerator reruns generation off a rejection. *approval.Gateway satisfies it.
type Regenerator interface {
	Regenerate(ctx context.Context, contentID string) error
}

// Publisher fans content out to its platforms. *publish.Service satisfies it.
type Publisher interface {
	Run(ctx context.Context, contentID string) error
}

// Leaser serializes per-content processing across worker instances.
type Leaser interface {
	Acquire(ctx context.Context, contentID string) (bool, error)
	Release(ctx context.Context, contentID string) error
}

// JobWorker polls the durable job queue and dispatches claimed jobs to the
// lifecycle services.
type JobWorker struct {
	jobs     JobQueue
	contents ContentSweeps
	lease    Leaser

	generator   Generator
	regenerator Regenerator
	publisher   Publisher

	metrics *metrics.Metrics
	logger  logger.Logger
	tracer  trace.Tracer

	pollInterval time.Duration
	batchSize    int
	concurrency  int
	retryDelay   time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	started  bool
	mu       sync.Mutex
}

// JobWorkerConfig holds configuration options.
type JobWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
	RetryDelay   time.Duration
}

// NewJobWorker creates a job worker.
func NewJobWorker(
	jobs JobQueue,
	contents ContentSweeps,
	lease Leaser,
	generator Generator,
	regenerator Regenerator,
	publisher Publisher,
	m *metrics.Metrics,
	log logger.Logger,
	cfg JobWorkerConfig,
) *JobWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &JobWorker{
		jobs:         jobs,
		contents:     contents,
		lease:        lease,
		generator:    generator,
		regenerator:  regenerator,
		publisher:    publisher,
		metrics:      m,
		logger:       log,
		tracer:       otel.Tracer("job-worker"),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		concurrency:  cfg.Concurrency,
		retryDelay:   cfg.RetryDelay,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the polling loop plus the recovery and cleanup sweeps.
func (w *JobWorker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	w.wg.Add(1)
	go w.runRecovery(ctx)

	w.wg.Add(1)
	go w.runCleanup(ctx)

	w.logger.Info("Job worker started",
		logger.Duration("poll_interval", w.pollInterval),
		logger.Int("batch_size", w.batchSize),
		logger.Int("concurrency", w.concurrency),
	)
}

// Stop gracefully stops the worker and waits for in-flight jobs.
func (w *JobWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Job worker stopped")
}

// IsRunning returns whether the worker has been started.
func (w *JobWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

func (w *JobWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Process immediately on start
	w.ProcessOnce(ctx)

	for {
		select {
		case <-ticker.C:
			w.ProcessOnce(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce claims one batch of due jobs and dispatches them with bounded
// parallelism, then settles any scheduled content whose time has come.
func (w *JobWorker) ProcessOnce(ctx context.Context) {
	due, err := w.jobs.FetchDue(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to fetch due jobs", logger.Error(err))
	} else if len(due) > 0 {
		w.logger.Debug("Processing due jobs", logger.Int("count", len(due)))
		w.dispatchBatch(ctx, due)
	}

	promoted, err := w.contents.PromoteDueScheduled(ctx)
	if err != nil {
		w.logger.Error("Failed to promote scheduled content", logger.Error(err))
	} else if promoted > 0 {
		w.metrics.StatusTransitions.WithLabelValues(string(domain.StatusPublished)).Add(float64(promoted))
		w.logger.Info("Scheduled content settled as published", logger.Int64("count", promoted))
	}
}

func (w *JobWorker) dispatchBatch(ctx context.Context, jobs []domain.Job) {
	var (
		wg  sync.WaitGroup
		sem = make(chan struct{}, w.concurrency)
	)
	for i := range jobs {
		wg.Add(1)
		go func(job *domain.Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			w.processJob(ctx, job)
		}(&jobs[i])
	}
	wg.Wait()
}

func (w *JobWorker) processJob(ctx context.Context, job *domain.Job) {
	ctx, span := w.tracer.Start(ctx, "job.process",
		trace.WithAttributes(
			attribute.String("job_id", job.ID),
			attribute.String("job_kind", string(job.Kind)),
			attribute.String("content_id", job.ContentID),
		))
	defer span.End()

	acquired, err := w.lease.Acquire(ctx, job.ContentID)
	if err != nil {
		w.logger.Error("Lease acquisition failed",
			logger.String("job_id", job.ID),
			logger.Error(err))
		w.unclaim(ctx, job)
		return
	}
	if !acquired {
		// Another instance is driving this content right now; defer the job
		// without spending an attempt.
		w.unclaim(ctx, job)
		return
	}
	defer func() {
		if releaseErr := w.lease.Release(ctx, job.ContentID); releaseErr != nil {
			w.logger.Warn("Failed to release content lease",
				logger.String("content_id", job.ContentID),
				logger.Error(releaseErr))
		}
	}()

	started := time.Now()
	handleErr := w.handle(ctx, job)
	elapsed := time.Since(started)

	switch {
	case handleErr == nil:
		w.markDone(ctx, job, "success", elapsed)

	case isOvertaken(handleErr):
		// The content moved on without this job: a duplicate claim, a faster
		// worker or a manual action. Nothing left to do here.
		w.logger.Debug("Job overtaken by another driver",
			logger.String("job_id", job.ID),
			logger.String("content_id", job.ContentID),
			logger.Error(handleErr))
		w.markDone(ctx, job, "skipped", elapsed)

	default:
		w.handleFailure(ctx, job, handleErr, elapsed)
	}
}

func (w *JobWorker) handle(ctx context.Context, job *domain.Job) error {
	switch job.Kind {
	case domain.JobGenerate:
		return w.generator.Run(ctx, job.ContentID, "")
	case domain.JobRegenerate:
		return w.regenerator.Regenerate(ctx, job.ContentID)
	case domain.JobPublish:
		return w.publisher.Run(ctx, job.ContentID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// isOvertaken reports whether the error means the content no longer needs
// this job rather than that the work itself failed.
func isOvertaken(err error) bool {
	return errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrStaleState) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrRetriesExhausted)
}

func (w *JobWorker) handleFailure(ctx context.Context, job *domain.Job, handleErr error, elapsed time.Duration) {
	w.logger.Error("Job failed",
		logger.String("job_id", job.ID),
		logger.String("job_kind", string(job.Kind)),
		logger.String("content_id", job.ContentID),
		logger.Int("attempts", job.Attempts),
		logger.Error(handleErr))

	if err := w.jobs.MarkFailed(ctx, job.ID, handleErr.Error(), w.retryDelay); err != nil {
		w.logger.Error("Failed to mark job failed",
			logger.String("job_id", job.ID),
			logger.Error(err))
	}
	w.metrics.ObserveJob(string(job.Kind), "failure", elapsed)

	// This attempt is the one MarkFailed just recorded.
	job.Attempts++
	if job.HasAttemptsLeft() {
		return
	}

	// The job budget is gone. Generation work parks its content in Failed so
	// it stops showing up as in-progress; a publish job leaves the content
	// alone because the fan-out already settled its terminal state.
	if job.Kind == domain.JobGenerate || job.Kind == domain.JobRegenerate {
		reason := fmt.Sprintf("generation abandoned after %d attempts: %v", job.Attempts, handleErr)
		if err := w.generator.Abandon(ctx, job.ContentID, reason); err != nil {
			w.logger.Error("Failed to abandon content",
				logger.String("content_id", job.ContentID),
				logger.Error(err))
		}
	}
}

func (w *JobWorker) markDone(ctx context.Context, job *domain.Job, outcome string, elapsed time.Duration) {
	if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
		w.logger.Error("Failed to mark job done",
			logger.String("job_id", job.ID),
			logger.Error(err))
	}
	w.metrics.ObserveJob(string(job.Kind), outcome, elapsed)
}

func (w *JobWorker) unclaim(ctx context.Context, job *domain.Job) {
	if err := w.jobs.Unclaim(ctx, job.ID, unclaimDelay); err != nil {
		w.logger.Error("Failed to unclaim job",
			logger.String("job_id", job.ID),
			logger.Error(err))
	}
}

// runRecovery periodically returns crashed workers' running claims to pending.
func (w *JobWorker) runRecovery(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reset, err := w.jobs.ResetStale(ctx, staleRunningAge)
			if err != nil {
				w.logger.Error("Job recovery failed", logger.Error(err))
			} else if reset > 0 {
				w.logger.Warn("Recovered stale job claims", logger.Int64("reset", reset))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runCleanup periodically removes old completed jobs.
func (w *JobWorker) runCleanup(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deleted, err := w.jobs.CleanupDone(ctx, cleanupRetention)
			if err != nil {
				w.logger.Error("Job cleanup failed", logger.Error(err))
			} else if deleted > 0 {
				w.logger.Info("Cleaned up completed jobs", logger.Int64("deleted", deleted))
			}
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}
