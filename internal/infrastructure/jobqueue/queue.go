// Package jobqueue runs CV import tasks on an in-process worker pool with
// scheduled retries.
package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/crm/backend/internal/domain/imports"
	"go.uber.org/zap"
)

// Job is one queued import task plus its retry state. NotBefore delays
// execution without occupying a worker; a job that arrives early is parked
// on a timer and re-enqueued when due.
type Job struct {
	Task      imports.Task
	Attempt   int
	NotBefore time.Time
}

// Executor runs queued jobs. Execute is called once per attempt; returning
// a retryable error re-enqueues the job with backoff, a terminal error or
// exhausted attempts hands it to OnExhausted exactly once.
type Executor interface {
	Execute(ctx context.Context, job *Job) error
	OnExhausted(ctx context.Context, job *Job, err error)
}

// Config holds worker pool settings
type Config struct {
	// Workers is the number of concurrent workers
	Workers int
	// Capacity is the queue buffer size
	Capacity int
	// JobTimeout is the maximum time a single attempt can run
	JobTimeout time.Duration
	// MaxAttempts caps total attempts per job
	MaxAttempts int
}

// DefaultConfig returns the default worker pool settings
func DefaultConfig() Config {
	return Config{
		Workers:     4,
		Capacity:    256,
		JobTimeout:  5 * time.Minute,
		MaxAttempts: imports.MaxAttempts,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.Workers <= 0 || c.Capacity <= 0 || c.JobTimeout <= 0 || c.MaxAttempts <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// QueueOption is a functional option for configuring Queue
type QueueOption func(*Queue)

// WithBackoff replaces the retry delay schedule, mainly for tests
func WithBackoff(backoff func(attempt int) time.Duration) QueueOption {
	return func(q *Queue) {
		q.backoff = backoff
	}
}

// Queue is an in-process worker pool. Delayed jobs wait on timers, not on
// workers, so a full backoff schedule never starves fresh submissions.
type Queue struct {
	config   Config
	executor Executor
	logger   *zap.Logger
	backoff  func(attempt int) time.Duration

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	timerWG   sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewQueue creates a worker pool for the given executor
func NewQueue(config Config, executor Executor, logger *zap.Logger, opts ...QueueOption) (*Queue, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	q := &Queue{
		config:   config,
		executor: executor,
		logger:   logger,
		backoff:  imports.BackoffFor,
		jobs:     make(chan *Job, config.Capacity),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Start starts the worker pool
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = true
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	q.logger.Info("Import queue started",
		zap.Int("workers", q.config.Workers),
		zap.Int("capacity", q.config.Capacity),
		zap.Duration("job_timeout", q.config.JobTimeout),
	)
	return nil
}

// Stop drains the pool. In-flight attempts finish; parked retries are
// dropped and will not reach OnExhausted.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	q.mu.Unlock()

	// Workers exit on context cancellation; the channel stays open so a
	// retry firing mid-shutdown hits ErrQueueNotRunning instead of a send
	// on a closed channel.
	if q.cancel != nil {
		q.cancel()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		q.timerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Import queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.logger.Warn("Import queue stop timed out")
		return ctx.Err()
	}
}

// Submit enqueues a new task for its first attempt
func (q *Queue) Submit(task imports.Task) error {
	return q.enqueue(&Job{Task: task, Attempt: 0})
}

func (q *Queue) enqueue(job *Job) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return ErrQueueNotRunning
	}
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.processJob(ctx, job, workerID)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *Job, workerID int) {
	// Not due yet: park on a timer and free the worker.
	if wait := time.Until(job.NotBefore); wait > 0 {
		q.timerWG.Add(1)
		timer := time.AfterFunc(wait, func() {
			defer q.timerWG.Done()
			if err := q.enqueue(job); err != nil {
				q.logger.Warn("Dropped delayed import job",
					zap.String("batch_uid", job.Task.BatchUID.String()),
					zap.String("filename", job.Task.OriginalFilename),
					zap.Error(err),
				)
			}
		})
		go func() {
			<-ctx.Done()
			if timer.Stop() {
				q.timerWG.Done()
			}
		}()
		return
	}

	job.Attempt++
	log := q.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("batch_uid", job.Task.BatchUID.String()),
		zap.String("tenant_id", job.Task.TenantID.String()),
		zap.String("filename", job.Task.OriginalFilename),
		zap.Int("attempt", job.Attempt),
	)

	jobCtx, cancel := context.WithTimeout(ctx, q.config.JobTimeout)
	defer cancel()

	err := q.executor.Execute(jobCtx, job)
	if err == nil {
		log.Info("Import job completed")
		return
	}

	if imports.IsTerminal(err) || job.Attempt >= q.config.MaxAttempts {
		log.Error("Import job exhausted", zap.Error(err))
		q.executor.OnExhausted(jobCtx, job, err)
		return
	}

	delay := q.backoff(job.Attempt)
	job.NotBefore = time.Now().Add(delay)
	log.Warn("Import job failed, scheduling retry",
		zap.Duration("delay", delay),
		zap.Error(err),
	)
	if qErr := q.enqueue(job); qErr != nil {
		log.Error("Failed to re-queue import job", zap.Error(qErr))
		q.executor.OnExhausted(jobCtx, job, err)
	}
}
