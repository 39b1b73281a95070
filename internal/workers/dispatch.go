package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sand/fraud-detector/backend/internal/core/ports"
	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
	"github.com/sand/fraud-detector/backend/internal/metrics"
)

// Backpressure policies applied when the buffer is full.
const (
	BackpressureBlock  = "block"
	BackpressureReject = "reject"
)

const (
	defaultWorkers     = ports.DefaultDispatchWorkers
	defaultQueueSize   = ports.DefaultDispatchQueueSize
	defaultTaskTimeout = ports.DefaultTaskTimeout
)

// TaskHandler runs one dispatch task.
type TaskHandler func(ctx context.Context, ev entities.FlagEvent) error

type task struct {
	id         string
	event      entities.FlagEvent
	enqueuedAt time.Time
}

// DispatchQueue runs flag tasks on a fixed pool of workers fed by a bounded
// buffer. Each task runs under its own deadline and its failure never affects
// other tasks.
type DispatchQueue struct {
	logger       *slog.Logger
	workers      int
	backpressure string
	taskTimeout  time.Duration

	jobs chan task
	quit chan struct{}

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once

	startMu sync.Mutex
	started bool
	wg      sync.WaitGroup
}

// DispatchOptions configures a DispatchQueue. Zero values take defaults.
type DispatchOptions struct {
	Workers      int
	QueueSize    int
	Backpressure string
	TaskTimeout  time.Duration
}

// NewDispatchQueue creates a stopped queue; call Start to run workers.
func NewDispatchQueue(logger *slog.Logger, opts DispatchOptions) (*DispatchQueue, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize < 0 {
		return nil, fmt.Errorf("invalid dispatch queue size %d", opts.QueueSize)
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}
	switch opts.Backpressure {
	case "":
		opts.Backpressure = BackpressureBlock
	case BackpressureBlock, BackpressureReject:
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", opts.Backpressure)
	}

	return &DispatchQueue{
		logger:       logger,
		workers:      opts.Workers,
		backpressure: opts.Backpressure,
		taskTimeout:  opts.TaskTimeout,
		jobs:         make(chan task, opts.QueueSize),
		quit:         make(chan struct{}),
	}, nil
}

// Enqueue submits ev. When the buffer is full it either waits (block) or
// fails with ErrQueueFull (reject). After Stop it fails with ErrQueueClosed.
func (q *DispatchQueue) Enqueue(ctx context.Context, ev entities.FlagEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return entities.ErrQueueClosed
	}

	t := task{
		id:         uuid.NewString(),
		event:      ev,
		enqueuedAt: time.Now(),
	}

	if err := q.submit(ctx, t); err != nil {
		return err
	}
	metrics.DispatchQueueDepth.Inc()
	metrics.DispatchEnqueued.Inc()

	q.logger.DebugContext(ctx, "Flag enqueued",
		"task_id", t.id,
		"transaction_id", ev.TransactionID,
		"reason", ev.Reason)
	return nil
}

func (q *DispatchQueue) submit(ctx context.Context, t task) error {
	if q.backpressure == BackpressureReject {
		select {
		case q.jobs <- t:
			return nil
		default:
			metrics.DispatchDropped.WithLabelValues(metrics.DropRejected).Inc()
			return entities.ErrQueueFull
		}
	}

	select {
	case q.jobs <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return entities.ErrQueueClosed
	}
}

// Start launches the workers. Tasks run on a context detached from ctx's
// cancellation so that buffered work drains on Stop.
func (q *DispatchQueue) Start(ctx context.Context, handler TaskHandler) error {
	q.startMu.Lock()
	defer q.startMu.Unlock()

	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return entities.ErrQueueClosed
	}
	if q.started {
		return errors.New("dispatch queue already started")
	}
	q.started = true

	base := context.WithoutCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(base, i, handler)
	}

	q.logger.Info("Dispatch queue started",
		"workers", q.workers,
		"queue_size", cap(q.jobs),
		"backpressure", q.backpressure,
		"task_timeout", q.taskTimeout.String())
	return nil
}

func (q *DispatchQueue) worker(ctx context.Context, id int, handler TaskHandler) {
	defer q.wg.Done()

	for t := range q.jobs {
		metrics.DispatchQueueDepth.Dec()
		q.run(ctx, id, t, handler)
	}
}

func (q *DispatchQueue) run(ctx context.Context, workerID int, t task, handler TaskHandler) {
	ctx, cancel := context.WithTimeout(ctx, q.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.logger.ErrorContext(ctx, "Dispatch task panicked",
				"task_id", t.id,
				"transaction_id", t.event.TransactionID,
				"panic", r)
		}
	}()

	start := time.Now()
	err := handler(ctx, t.event)
	if err != nil {
		q.logger.WarnContext(ctx, "Dispatch task failed",
			"task_id", t.id,
			"worker", workerID,
			"transaction_id", t.event.TransactionID,
			"reason", t.event.Reason,
			"error", err)
		return
	}

	q.logger.DebugContext(ctx, "Dispatch task completed",
		"task_id", t.id,
		"worker", workerID,
		"transaction_id", t.event.TransactionID,
		"queued_for", start.Sub(t.enqueuedAt).String(),
		"took", time.Since(start).String())
}

// Stop refuses new tasks, lets the workers drain the buffer and waits for
// them until ctx ends.
func (q *DispatchQueue) Stop(ctx context.Context) error {
	// Release submitters blocked on a full buffer before taking the write lock.
	q.stopOnce.Do(func() { close(q.quit) })

	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	q.startMu.Lock()
	started := q.started
	q.startMu.Unlock()

	if !started {
		if n := len(q.jobs); n > 0 {
			metrics.DispatchQueueDepth.Sub(float64(n))
			q.logger.Warn("Dispatch queue stopped before start, discarding tasks", "count", n)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Dispatch queue stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatch queue stop: %w", ctx.Err())
	}
}

// Len returns the number of buffered tasks.
func (q *DispatchQueue) Len() int {
	return len(q.jobs)
}
