package worker

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/observability"
	"github.com/deskhub/support-service/internal/queue"
)

// Deliverer performs the actual notification send for one task.
type Deliverer interface {
	Deliver(ctx context.Context, task queue.Task) error
}

// NotificationWorker drains the durable queue with a pool of goroutines.
// Each task gets a bounded number of delivery attempts with exponential
// backoff and jitter; exhausted tasks are dropped and logged, never bounced
// back to the request path that enqueued them.
type NotificationWorker struct {
	queue       queue.Queue
	deliverer   Deliverer
	logger      *zap.Logger
	metrics     *observability.Metrics
	workers     int
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration

	wg sync.WaitGroup
}

// Options tunes the worker pool.
type Options struct {
	Workers     int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// NewNotificationWorker builds the pool.
func NewNotificationWorker(q queue.Queue, deliverer Deliverer, logger *zap.Logger, metrics *observability.Metrics, opts Options) *NotificationWorker {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 200 * time.Millisecond
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 30 * time.Second
	}
	return &NotificationWorker{
		queue:       q,
		deliverer:   deliverer,
		logger:      logger,
		metrics:     metrics,
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		backoffBase: opts.BackoffBase,
		backoffCap:  opts.BackoffCap,
	}
}

// Start launches the pool. Workers exit when ctx is canceled.
func (w *NotificationWorker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.run(ctx)
		}()
	}
}

// Wait blocks until every worker has exited.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			w.logger.Warn("notification dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}
		w.process(ctx, *task)
	}
}

func (w *NotificationWorker) process(ctx context.Context, task queue.Task) {
	var lastErr error
	for attempt := task.Attempt; attempt < w.maxAttempts; attempt++ {
		lastErr = w.deliverer.Deliver(ctx, task)
		if lastErr == nil {
			w.metrics.NotificationSends.WithLabelValues("ok").Inc()
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt+1 < w.maxAttempts {
			w.metrics.NotificationRetry.Inc()
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff(attempt)):
			}
		}
	}
	w.metrics.NotificationSends.WithLabelValues("failed").Inc()
	w.metrics.NotificationDrops.Inc()
	w.logger.Error("notification dropped after exhausting retries",
		zap.String("task_id", task.ID),
		zap.String("event_type", task.EventType),
		zap.Int64("ticket_id", task.TicketID),
		zap.Int("attempts", w.maxAttempts),
		zap.Error(lastErr))
}

// backoff returns base*2^attempt capped, with jitter in [d/2, d) so racing
// retries spread out instead of thundering together.
func (w *NotificationWorker) backoff(attempt int) time.Duration {
	d := w.backoffBase
	for i := 0; i < attempt && d < w.backoffCap; i++ {
		d *= 2
	}
	if d > w.backoffCap {
		d = w.backoffCap
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}
