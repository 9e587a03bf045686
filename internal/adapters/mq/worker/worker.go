// Package worker runs sync jobs pulled off the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/rollcall/internal/domain/dedupe"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = time.Second
	maxRetryBackoff     = 30 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Job outcomes reported to metrics.
const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomeRetried   = "retried"
	outcomeSkipped   = "skipped"
	outcomeDropped   = "dropped"
)

// Syncer pulls one job's worth of attendance and persists it, returning the
// number of reports written.
type Syncer interface {
	Sync(ctx context.Context, job model.SyncJob) (int, error)
}

// Queue defines how workers receive and return jobs.
type Queue interface {
	Enqueue(ctx context.Context, job model.SyncJob) error
	Dequeue(ctx context.Context) <-chan model.SyncJob
}

// Worker processes jobs from a queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	syncer Syncer
	name   string

	deduper     dedupe.Deduper
	maxAttempts int
	backoff     time.Duration

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, syncer Syncer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       queue,
		syncer:      syncer,
		name:        "worker",
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.deduper == nil {
		w.deduper = dedupe.NewInMemoryDeduper()
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, jobs)
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "sync job failed",
					logger.String("job_id", job.ID),
					logger.Int("attempt", job.Attempt),
					logger.Error(err),
				)
			}
		}
	}
}

// drain processes jobs already buffered in the queue, then returns.
func (w *InMemoryWorker) drain(ctx context.Context, jobs <-chan model.SyncJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "sync job failed while draining",
					logger.String("job_id", job.ID),
					logger.Error(err),
				)
			}
		default:
			return
		}
	}
}

// stop signals Run to drain and exit. Safe to call more than once.
func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Shutdown stops the worker once the queued jobs are processed. It may be
// called more than once.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processJob runs a single job. A job id that already succeeded or is in
// flight is skipped; a failure releases the id and schedules a retry.
func (w *InMemoryWorker) processJob(ctx context.Context, job model.SyncJob) error { //nolint:gocritic // jobs travel by value
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	if w.deduper.SeenAndRecord(ctx, job.ID) {
		metrics.RecordSyncJob(outcomeSkipped)
		w.logger.Debug(ctx, "skipping duplicate sync job", logger.String("job_id", job.ID))
		return nil
	}

	metrics.AddWorkerActive(1)
	defer metrics.AddWorkerActive(-1)

	start := time.Now()
	n, err := w.syncer.Sync(ctx, job)
	metrics.RecordSyncLatency(float64(time.Since(start).Milliseconds()))

	if err == nil {
		metrics.RecordSyncJob(outcomeSucceeded)
		metrics.RecordReportsIngested(n)
		w.logger.Info(ctx, "sync job done",
			logger.String("job_id", job.ID),
			logger.Int("reports", n),
			logger.Duration("took", time.Since(start)),
		)
		return nil
	}

	w.deduper.Unrecord(ctx, job.ID)
	metrics.RecordErrorByComponent("worker", "sync_error")

	if errors.Is(err, context.Canceled) || job.Attempt >= w.maxAttempts {
		metrics.RecordSyncJob(outcomeFailed)
		return fmt.Errorf("sync job %s gave up after %d attempts: %w", job.ID, job.Attempt, err)
	}

	w.retry(job)
	return fmt.Errorf("sync job %s attempt %d: %w", job.ID, job.Attempt, err)
}

// retry puts the job back on the queue after a backoff.
func (w *InMemoryWorker) retry(job model.SyncJob) { //nolint:gocritic // jobs travel by value
	delay := w.backoffFor(job.Attempt)
	next := job
	next.Attempt++
	next.TagIDs = append([]int(nil), job.TagIDs...)

	metrics.RecordSyncJob(outcomeRetried)
	time.AfterFunc(delay, func() {
		ctx := context.Background()
		if err := w.queue.Enqueue(ctx, next); err != nil {
			metrics.RecordSyncJob(outcomeDropped)
			w.logger.Warn(ctx, "could not requeue sync job",
				logger.String("job_id", next.ID),
				logger.Int("attempt", next.Attempt),
				logger.Error(err),
			)
		}
	})
}

func (w *InMemoryWorker) backoffFor(attempt int) time.Duration {
	d := w.backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}

// Pool manages multiple workers sharing one queue and one job id set.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool. Options apply to every worker.
func NewPool(workerCount int, queue Queue, syncer Syncer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}

	shared := append([]Option{WithDeduper(dedupe.NewInMemoryDeduper())}, opts...)
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			syncer,
			append(shared, WithName("worker-"+strconv.Itoa(i)))...,
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to finish.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		worker.stop()
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
