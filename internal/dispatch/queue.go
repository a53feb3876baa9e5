// Package dispatch implements the ordered, rate-limited delivery queue
// for outbound notifications.
package dispatch

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/asfclaim/claimerd/internal/domain"
	"github.com/asfclaim/claimerd/internal/provider"
)

// Hooks carries the metric callback functions injected by main.
type Hooks struct {
	OnDelivered func(severity domain.Severity)
	OnFailed    func(severity domain.Severity)
}

type queuedJob struct {
	n    domain.Notification
	done chan error
}

// Queue delivers notifications strictly in enqueue order with exactly
// one delivery in flight at any time. A token-bucket limiter (one token
// per spacing interval, burst 1) is waited before each delivery, so
// consecutive delivery starts are at least the spacing apart regardless
// of enqueue rate. Failed deliveries are reported to the enqueuer only;
// the drain loop always moves on to the next job. No retries.
type Queue struct {
	deliverer provider.Deliverer
	jobs      chan queuedJob
	limiter   *rate.Limiter
	logger    *zap.Logger
	hooks     Hooks
}

// New constructs a queue with the given minimum spacing between
// delivery starts. The queue is dormant until Start is called.
func New(deliverer provider.Deliverer, spacing time.Duration, logger *zap.Logger, hooks Hooks) *Queue {
	if hooks.OnDelivered == nil {
		hooks.OnDelivered = func(domain.Severity) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.Severity) {}
	}
	return &Queue{
		deliverer: deliverer,
		jobs:      make(chan queuedJob, 1024),
		limiter:   rate.NewLimiter(rate.Every(spacing), 1),
		logger:    logger,
		hooks:     hooks,
	}
}

// Start launches the single drain goroutine. Cancelling ctx stops the
// dispatcher; jobs still buffered at that point are never delivered
// (the queue is in-memory and best-effort by design).
func (q *Queue) Start(ctx context.Context) {
	go q.drain(ctx)
}

// Enqueue places the notification at the tail of the queue and blocks
// until its delivery attempt completes, returning the delivery error
// (nil on success). Returns ctx.Err() if ctx is cancelled first.
func (q *Queue) Enqueue(ctx context.Context, n domain.Notification) error {
	job := queuedJob{n: n, done: make(chan error, 1)}

	select {
	case q.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueAsync places the notification on the queue without waiting for
// delivery. It is non-blocking: if the buffer is full, ErrQueueFull is
// returned immediately rather than blocking the caller.
func (q *Queue) EnqueueAsync(n domain.Notification) error {
	job := queuedJob{n: n, done: make(chan error, 1)}
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Depth returns the number of jobs waiting for delivery.
// Used by the ops status endpoint.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

func (q *Queue) drain(ctx context.Context) {
	q.logger.Info("dispatch queue started")
	for {
		select {
		case <-ctx.Done():
			q.logger.Info("dispatch queue stopping", zap.Int("undelivered", len(q.jobs)))
			return
		case job := <-q.jobs:
			if err := q.limiter.Wait(ctx); err != nil {
				// ctx cancelled while pacing — shutting down.
				job.done <- err
				return
			}
			q.deliver(ctx, job)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, job queuedJob) {
	start := time.Now()
	err := q.deliverer.Deliver(ctx, job.n)
	job.done <- err

	if err != nil {
		q.hooks.OnFailed(job.n.Severity)
		q.logger.Warn("notification delivery failed",
			zap.String("id", job.n.ID),
			zap.String("severity", string(job.n.Severity)),
			zap.Error(err))
		return
	}

	q.hooks.OnDelivered(job.n.Severity)
	q.logger.Debug("notification delivered",
		zap.String("id", job.n.ID),
		zap.String("severity", string(job.n.Severity)),
		zap.Duration("latency", time.Since(start)))
}
