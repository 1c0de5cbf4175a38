// Package jobs runs background work on a fixed pool of goroutines with retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrNotRunning is returned by Enqueue before Start and after Stop.
var ErrNotRunning = errors.New("queue not running")

// Job is a unit of queued work. Attempt counts previous failures.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes one job. A returned error or a panic schedules a retry.
type Handler func(context.Context, Job) error

type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay doubles after every failure up to MaxDelay.
	RetryDelay time.Duration
	MaxDelay   time.Duration
	// Timeout bounds a single handler call; zero means no limit.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Stats are cumulative counters since the queue was built.
type Stats struct {
	Processed uint64
	Failed    uint64
	Retried   uint64
	Abandoned uint64
}

// Queue is an in-memory dispatcher.
type Queue struct {
	name    string
	handle  Handler
	cfg     QueueConfig
	log     *zap.Logger
	pending chan Job

	mu      sync.Mutex
	ctx     context.Context
	stop    context.CancelFunc
	running bool
	wg      sync.WaitGroup

	processed, failed, retried, abandoned atomic.Uint64
}

func NewQueue(name string, handle Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4 * cfg.Workers
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxDelay < cfg.RetryDelay {
		cfg.MaxDelay = 30 * cfg.RetryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handle:  handle,
		cfg:     cfg,
		log:     cfg.Logger.With(zap.String("queue", name)),
		pending: make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers under ctx. Repeated calls are ignored.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.stop = context.WithCancel(ctx)
	q.running = true
	q.wg.Add(q.cfg.Workers)
	for i := 0; i < q.cfg.Workers; i++ {
		go q.loop(i)
	}
	q.log.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Stop cancels the workers and waits for in-flight handlers and pending
// retry timers to return. Buffered jobs are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.stop()
	q.mu.Unlock()

	q.wg.Wait()
	q.log.Info("queue stopped", zap.Uint64("processed", q.processed.Load()), zap.Int("dropped", len(q.pending)))
}

// Enqueue submits job, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	ctx, running := q.ctx, q.running
	q.mu.Unlock()
	if !running {
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.name, ErrNotRunning)
	}
}

func (q *Queue) Stats() Stats {
	return Stats{
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Retried:   q.retried.Load(),
		Abandoned: q.abandoned.Load(),
	}
}

func (q *Queue) loop(worker int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.pending:
			err := q.run(job)
			q.processed.Add(1)
			if err != nil {
				q.failed.Add(1)
				q.backoff(job, err, worker)
			}
		}
	}
}

// run calls the handler, turning a panic into an error.
func (q *Queue) run(job Job) (err error) {
	ctx := q.ctx
	if q.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
	}()
	return q.handle(ctx, job)
}

func (q *Queue) backoff(job Job, cause error, worker int) {
	job.Attempt++
	fields := []zap.Field{zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Int("worker", worker), zap.Error(cause)}
	if job.Attempt > q.cfg.MaxRetries {
		q.abandoned.Add(1)
		q.log.Error("job abandoned", fields...)
		return
	}
	delay := q.delay(job.Attempt)
	q.retried.Add(1)
	q.log.Warn("job failed", append(fields, zap.Duration("retry_in", delay))...)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(job); err != nil {
				q.log.Error("requeue failed", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
	}()
}

func (q *Queue) delay(attempt int) time.Duration {
	d := q.cfg.RetryDelay
	for i := 1; i < attempt && d < q.cfg.MaxDelay; i++ {
		d *= 2
	}
	if d > q.cfg.MaxDelay {
		d = q.cfg.MaxDelay
	}
	return d
}
