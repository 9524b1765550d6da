package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job asks for one job to be (re)processed. Extend as needed later (steps, trace, retry).
type Job struct {
	JobID       string
	Force       bool // enqueue even if the same job is already waiting
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// JobHandler processes one queued job.
type JobHandler func(ctx context.Context, job Job) error

// JobQueue runs queued jobs on a fixed set of workers. Jobs already waiting are
// deduplicated by JobID unless Force is set.
type JobQueue struct {
	handle  JobHandler
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	wmu     sync.Mutex
	waiting map[string]int
}

func NewJobQueue(handle JobHandler, logger *slog.Logger, opts ...Option) *JobQueue {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{workers: 1, timeout: 10 * time.Minute, queueSize: 64}
	for _, fn := range opts {
		fn(&o)
	}
	q := &JobQueue{
		handle:  handle,
		logger:  logger,
		workers: o.workers,
		timeout: o.timeout,
		ch:      make(chan Job, o.queueSize),
		waiting: map[string]int{},
	}
	q.start()
	return q
}

func (q *JobQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("async.queue.worker_started", "worker_id", workerID)

				for job := range q.ch {
					q.release(job.JobID)

					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					start := time.Now()
					err := q.handle(ctx, job)
					cancel()

					if err != nil {
						q.logger.Error("async.queue.job_failed", "worker_id", workerID, "job_id", job.JobID, "error", err)
					} else {
						q.logger.Info("async.queue.job_ok", "worker_id", workerID, "job_id", job.JobID,
							"duration_ms", time.Since(start).Milliseconds())
					}
				}

				q.logger.Debug("async.queue.worker_stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *JobQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.JobID)
		return ErrQueueClosed
	}

	q.wmu.Lock()
	if q.waiting[job.JobID] > 0 && !job.Force {
		q.wmu.Unlock()
		q.logger.Debug("async.queue.deduplicated", "job_id", job.JobID)
		return nil
	}
	q.waiting[job.JobID]++
	q.wmu.Unlock()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("async.queue.enqueued", "job_id", job.JobID, "force", job.Force)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "job_id", job.JobID)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		q.release(job.JobID)
		return ctx.Err()
	}
}

func (q *JobQueue) release(jobID string) {
	q.wmu.Lock()
	defer q.wmu.Unlock()
	if q.waiting[jobID]--; q.waiting[jobID] <= 0 {
		delete(q.waiting, jobID)
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *JobQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
