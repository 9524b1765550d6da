package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shut down")

type options struct {
	workers   int
	queueSize int
	timeout   time.Duration
}

type Option func(*options)

func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// Outcome is the result of one file in a batch.
type Outcome struct {
	FileID   string        `json:"file_id"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the file succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// FileFunc does the work for one file.
type FileFunc func(ctx context.Context, fileID string) error

// Pool runs per-file work with bounded parallelism and a per-file timeout.
type Pool struct {
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

func NewPool(logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{workers: 4, timeout: 3 * time.Minute}
	for _, fn := range opts {
		fn(&o)
	}
	return &Pool{workers: o.workers, timeout: o.timeout, logger: logger}
}

// Run calls fn for every file id and returns one outcome per id, in input order.
// Files still queued when ctx ends get ctx's error without fn being called.
func (p *Pool) Run(ctx context.Context, stage string, fileIDs []string, fn FileFunc) []Outcome {
	out := make([]Outcome, len(fileIDs))
	if len(fileIDs) == 0 {
		return out
	}
	workers := p.workers
	if workers > len(fileIDs) {
		workers = len(fileIDs)
	}

	idx := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range idx {
				out[i] = p.runOne(ctx, stage, workerID, fileIDs[i], fn)
			}
		}(w + 1)
	}

	for i := range fileIDs {
		if err := ctx.Err(); err != nil {
			out[i] = Outcome{FileID: fileIDs[i], Err: err}
			continue
		}
		idx <- i
	}
	close(idx)
	wg.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	p.logger.Info("async.pool.done", "stage", stage, "files", len(fileIDs), "failed", failed)
	return out
}

func (p *Pool) runOne(ctx context.Context, stage string, workerID int, fileID string, fn FileFunc) (o Outcome) {
	o.FileID = fileID
	if err := ctx.Err(); err != nil {
		o.Err = err
		return o
	}
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("async.pool.panic", "stage", stage, "file_id", fileID, "panic", r)
			o.Err = errors.New("panic while processing file")
		}
		o.Duration = time.Since(start)
	}()

	o.Err = fn(fctx, fileID)
	if o.Err != nil {
		p.logger.Warn("async.pool.file_failed", "stage", stage, "worker_id", workerID, "file_id", fileID, "error", o.Err)
	} else {
		p.logger.Debug("async.pool.file_ok", "stage", stage, "worker_id", workerID, "file_id", fileID)
	}
	return o
}
