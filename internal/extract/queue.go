package extract

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by Submit when the backlog is at capacity.
// Callers treat this as backpressure; the job can be resubmitted later.
var ErrQueueFull = errors.New("extraction queue full")

// ErrQueueClosed is returned by Submit after Stop.
var ErrQueueClosed = errors.New("extraction queue closed")

const (
	defaultQueueSize  = 256
	defaultJobTimeout = 2 * time.Minute
)

// Queue runs extraction jobs asynchronously on a fixed set of workers.
// Delivery is at-least-once: a job that fails is logged and dropped, and the
// idempotent summary write means a redelivered or duplicated job cannot
// double-store a conversation.
type Queue struct {
	pipeline   *Pipeline
	jobs       chan Job
	workers    int
	jobTimeout time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
	started bool
}

// QueueConfig tunes the extraction queue. Zero values take defaults.
type QueueConfig struct {
	Size       int
	Workers    int
	JobTimeout time.Duration
}

// NewQueue creates an extraction queue. Call Start to begin processing.
func NewQueue(pipeline *Pipeline, cfg QueueConfig, logger *slog.Logger) *Queue {
	if cfg.Size < 1 {
		cfg.Size = defaultQueueSize
	}
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		pipeline:   pipeline,
		jobs:       make(chan Job, cfg.Size),
		workers:    cfg.Workers,
		jobTimeout: cfg.JobTimeout,
		logger:     logger,
	}
}

// Start launches the worker goroutines. Idempotent.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Submit enqueues a job without blocking. Returns ErrQueueFull when the
// backlog is at capacity.
func (q *Queue) Submit(job Job) error {
	// Held through the send so Stop cannot close the channel mid-submit.
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.process(ctx, job)
		}
	}
}

func (q *Queue) process(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, q.jobTimeout)
	defer cancel()

	if _, err := q.pipeline.ProcessAndStore(jobCtx, job); err != nil {
		q.logger.Error("extraction job failed",
			"source_type", job.SourceType,
			"source_id", job.SourceID,
			"error", err)
	}
}
