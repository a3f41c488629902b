package workqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/automeet/errors"
	"github.com/kbukum/automeet/logger"
	"github.com/kbukum/automeet/observability"
)

const (
	statusProcessed = "processed"
	statusFailed    = "failed"
)

// Handler processes one item. A returned error is reported through the
// queue's error side channel; it never reaches the publisher.
type Handler[T any] func(ctx context.Context, item T) error

// Stats is a snapshot of queue counters.
type Stats struct {
	Running   bool  `json:"running"`
	Workers   int   `json:"workers"`
	Pending   int   `json:"pending"`
	Published int64 `json:"published"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Queue is a bounded buffer drained by a fixed worker pool. It may be
// started again after Stop.
type Queue[T any] struct {
	name       string
	handler    Handler[T]
	bufferSize int
	onError    func(T, error)
	log        *logger.Logger
	metrics    *observability.Metrics

	// mu guards the lifecycle fields. It is never held while blocked on a
	// send: publishers register in senders and Stop closes items only
	// after they have all returned.
	mu      sync.RWMutex
	running bool
	workers int
	items   chan T
	done    chan struct{}
	closing chan struct{}
	senders *sync.WaitGroup

	published atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a stopped queue that runs handler for each item.
func New[T any](handler Handler[T], opts ...Option) (*Queue[T], error) {
	if handler == nil {
		return nil, errors.ConfigInvalid("workqueue.handler", "must not be nil")
	}
	o := options{name: "default", bufferSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.bufferSize < 0 {
		return nil, errors.ConfigInvalid("workqueue.buffer_size", "must not be negative")
	}
	if o.log == nil {
		o.log = logger.Get("workqueue")
	}

	q := &Queue[T]{
		name:       o.name,
		handler:    handler,
		bufferSize: o.bufferSize,
		log:        o.log.WithFields(logger.Fields("queue", o.name)),
		metrics:    o.metrics,
	}
	if o.onError != nil {
		fn, ok := o.onError.(func(T, error))
		if !ok {
			return nil, errors.ConfigInvalid("workqueue.on_error", fmt.Sprintf("callback type %T does not match queue items", o.onError))
		}
		q.onError = fn
	}
	return q, nil
}

// Name returns the queue label.
func (q *Queue[T]) Name() string { return q.name }

// Start launches numWorkers workers. Starting a running queue is a usage
// error.
func (q *Queue[T]) Start(numWorkers int) error {
	if numWorkers < 1 {
		return errors.ConfigInvalid("workqueue.workers", "must be at least 1")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return errors.Usage("work queue " + q.name + " already started")
	}

	items := make(chan T, q.bufferSize)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.work(ctx, id, items)
		}(i)
	}
	go func() {
		wg.Wait()
		cancel()
		close(done)
	}()

	q.items = items
	q.done = done
	q.closing = make(chan struct{})
	q.senders = new(sync.WaitGroup)
	q.workers = numWorkers
	q.running = true

	q.log.Info("work queue started", logger.Fields("workers", numWorkers, "buffer_size", q.bufferSize))
	return nil
}

// Publish hands item to the queue, blocking while the buffer is full. It
// returns CANCELLED if ctx ends first and a usage error when the queue is not
// running or stops while Publish waits.
func (q *Queue[T]) Publish(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return errors.Cancelled("publish to "+q.name, err)
	}

	q.mu.RLock()
	if !q.running {
		q.mu.RUnlock()
		return errors.Usage("work queue " + q.name + " is not running")
	}
	items, closing, senders := q.items, q.closing, q.senders
	senders.Add(1)
	q.mu.RUnlock()
	defer senders.Done()

	select {
	case items <- item:
		q.published.Add(1)
		q.metrics.RecordQueuePublished(ctx, q.name)
		return nil
	case <-closing:
		return errors.Usage("work queue " + q.name + " stopped")
	case <-ctx.Done():
		return errors.Cancelled("publish to "+q.name, ctx.Err())
	}
}

// Stop stops accepting items and waits until every published item has been
// handled. If ctx ends first Stop returns CANCELLED while the workers keep
// draining in the background. Stopping a stopped queue is a no-op.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	close(q.closing)
	items, done, senders := q.items, q.done, q.senders
	pending := len(items)
	q.mu.Unlock()

	go func() {
		senders.Wait()
		close(items)
	}()

	q.log.Info("work queue stopping", logger.Fields("pending", pending))
	select {
	case <-done:
		q.log.Info("work queue stopped", logger.Fields(
			"processed", q.processed.Load(),
			"failed", q.failed.Load(),
		))
		return nil
	case <-ctx.Done():
		q.log.Warn("work queue stop timed out; draining in background", logger.Fields("pending", len(items)))
		return errors.Cancelled("stop "+q.name, ctx.Err())
	}
}

// Wait blocks until the workers of the last run have exited or ctx ends.
func (q *Queue[T]) Wait(ctx context.Context) error {
	q.mu.RLock()
	done := q.done
	q.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Cancelled("wait for "+q.name, ctx.Err())
	}
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	s := Stats{
		Running:   q.running,
		Published: q.published.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
	}
	if q.running {
		s.Workers = q.workers
		s.Pending = len(q.items)
	}
	return s
}

func (q *Queue[T]) work(ctx context.Context, id int, items <-chan T) {
	log := q.log.WithFields(logger.Fields(logger.FieldWorker, id))
	for item := range items {
		q.handle(ctx, log, item)
	}
}

func (q *Queue[T]) handle(ctx context.Context, log *logger.Logger, item T) {
	start := time.Now()
	err := q.invoke(ctx, item)
	elapsed := time.Since(start)

	if err == nil {
		q.processed.Add(1)
		q.metrics.RecordQueueHandled(ctx, q.name, statusProcessed)
		log.Debug("item processed", logger.DurationFields("handle", elapsed))
		return
	}

	q.failed.Add(1)
	q.metrics.RecordQueueHandled(ctx, q.name, statusFailed)
	log.Error("item failed", logger.Fields(
		logger.FieldError, err.Error(),
		logger.FieldDuration, elapsed.Milliseconds(),
	))
	if q.onError != nil {
		q.reportError(log, item, err)
	}
}

// invoke runs the handler, turning a panic into an error.
func (q *Queue[T]) invoke(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal(fmt.Errorf("handler panic: %v", r)).
				WithDetail("stack", string(debug.Stack()))
		}
	}()
	return q.handler(ctx, item)
}

func (q *Queue[T]) reportError(log *logger.Logger, item T, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("error callback panicked", logger.Fields("panic", fmt.Sprint(r)))
		}
	}()
	q.onError(item, err)
}
