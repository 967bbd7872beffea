package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/logging"
)

// ErrQueueFull is returned when the job queue has no free slot
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned when enqueueing after Stop
var ErrStopped = errors.New("worker pool stopped")

// Processor runs one job
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// ProcessorFunc adapts a function to Processor
type ProcessorFunc func(ctx context.Context, job *Job) error

// Process implements Processor
func (f ProcessorFunc) Process(ctx context.Context, job *Job) error { return f(ctx, job) }

// WorkerPool manages a pool of workers processing recording jobs
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int
	processor   Processor
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	jobs      map[string]*Job
	stopped   bool
	retainFor time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, processor Processor, logger zerolog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		processor:   processor,
		logger:      logging.Component(logger, "queue"),
		ctx:         ctx,
		cancel:      cancel,
		jobs:        make(map[string]*Job),
		retainFor:   time.Hour,
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.logger.Info().Int("workers", wp.workerCount).Msg("Starting worker pool")
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Enqueue adds a job to the queue without blocking
func (wp *WorkerPool) Enqueue(job *Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.stopped {
		return ErrStopped
	}

	job.Status = StatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	select {
	case wp.jobQueue <- job:
	default:
		return ErrQueueFull
	}
	wp.jobs[job.ID] = job

	wp.logger.Info().
		Str(logging.FieldJobID, job.ID).
		Str(logging.FieldRecordingID, job.RecordingID).
		Str("kind", job.Kind).
		Msg("Job enqueued")
	return nil
}

// Status returns a copy of the job with the given ID
func (wp *WorkerPool) Status(id string) (Job, bool) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	job, ok := wp.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Stop stops accepting jobs, cancels running ones and waits for workers
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.cancel()
	wp.wg.Wait()
	wp.logger.Info().Msg("Worker pool stopped")
}

// Prune forgets finished jobs older than the retention period and returns
// how many were removed.
func (wp *WorkerPool) Prune() int {
	cutoff := time.Now().Add(-wp.retainFor)

	wp.mu.Lock()
	defer wp.mu.Unlock()

	removed := 0
	for id, job := range wp.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(wp.jobs, id)
			removed++
		}
	}
	return removed
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	logger := wp.logger.With().Int("worker", id).Logger()
	logger.Debug().Msg("Worker started")

	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			wp.finish(job, wp.ctx.Err())
			continue
		}

		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str(logging.FieldJobID, job.ID).
						Str("stack", string(debug.Stack())).
						Msgf("PANIC processing job: %v", r)
					wp.finish(job, fmt.Errorf("worker panic: %v", r))
				}
			}()

			wp.processJob(logger, job)
		}()
	}
}

// processJob runs the processor and records the outcome
func (wp *WorkerPool) processJob(logger zerolog.Logger, job *Job) {
	now := time.Now()
	wp.mu.Lock()
	job.Status = StatusProcessing
	job.StartedAt = &now
	wp.mu.Unlock()

	logger.Info().
		Str(logging.FieldJobID, job.ID).
		Str(logging.FieldRecordingID, job.RecordingID).
		Msg("Processing job")

	err := wp.processor.Process(wp.ctx, job)
	wp.finish(job, err)

	if err != nil {
		logger.Error().Err(err).Str(logging.FieldJobID, job.ID).Msg("Job failed")
		return
	}
	logger.Info().
		Str(logging.FieldJobID, job.ID).
		Dur("took", time.Since(now)).
		Msg("Job completed successfully")
}

func (wp *WorkerPool) finish(job *Job, err error) {
	now := time.Now()
	wp.mu.Lock()
	defer wp.mu.Unlock()

	job.FinishedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		return
	}
	job.Status = StatusCompleted
}
