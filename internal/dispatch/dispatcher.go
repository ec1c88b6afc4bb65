// Package dispatch turns change events into transport messages and publishes
// them on a bounded worker pool, off the request path.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"composite/internal/dispatch/metrics"
	"composite/internal/platform/messaging"
	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/sentinel"
)

const (
	DefaultWorkers        = 10
	DefaultQueueSize      = 100
	DefaultPublishTimeout = 5 * time.Second
)

type job struct {
	channel string
	msg     messaging.Message
}

// Dispatcher routes every event to the worker owning its partition key, so
// events sharing a key reach the transport in the order Dispatch accepted
// them. Each worker has its own bounded queue; a full queue rejects instead
// of blocking the caller.
type Dispatcher struct {
	publisher      messaging.Publisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	workers        int
	queueSize      int
	publishTimeout time.Duration

	queues []chan job
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueSize sets the total queue capacity, split evenly across workers.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithPublishTimeout bounds a single hand-off to the transport.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.publishTimeout = timeout
		}
	}
}

// New starts the worker pool.
func New(publisher messaging.Publisher, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		publisher:      publisher,
		logger:         slog.Default(),
		workers:        DefaultWorkers,
		queueSize:      DefaultQueueSize,
		publishTimeout: DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}

	perWorker := (d.queueSize + d.workers - 1) / d.workers
	d.queues = make([]chan job, d.workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, perWorker)
		d.wg.Add(1)
		go d.run(i, d.queues[i])
	}
	return d
}

// Dispatch schedules ev for publication on channel and returns as soon as it
// is queued. Delivery outcome is not reported back. A saturated queue yields
// CodeDispatchRejected.
func (d *Dispatcher) Dispatch(ctx context.Context, channel string, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode event")
	}
	key := strconv.Itoa(ev.Key())
	j := job{
		channel: channel,
		msg: messaging.Message{
			Key:   key,
			Value: payload,
			Headers: map[string]string{
				messaging.HeaderPartitionKey: key,
				messaging.HeaderEventID:      uuid.NewString(),
				messaging.HeaderEventType:    string(ev.Type()),
			},
		},
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return dErrors.Wrap(sentinel.ErrClosed, dErrors.CodeDispatchRejected, "dispatcher is shutting down")
	}

	worker := d.workerFor(ev.Key())
	select {
	case d.queues[worker] <- j:
		d.metrics.IncrementAccepted(channel)
		d.metrics.SetQueueDepth(strconv.Itoa(worker), len(d.queues[worker]))
		d.logger.DebugContext(ctx, "event queued",
			"channel", channel,
			"event_type", ev.Type(),
			"partition_key", key,
			"worker", worker,
		)
		return nil
	default:
		d.metrics.IncrementRejected(channel)
		d.logger.WarnContext(ctx, "dispatch queue full",
			"channel", channel,
			"partition_key", key,
			"worker", worker,
		)
		return dErrors.Wrap(sentinel.ErrQueueFull, dErrors.CodeDispatchRejected,
			fmt.Sprintf("event for key %s rejected: dispatch queue full", key))
	}
}

func (d *Dispatcher) workerFor(key int) int {
	w := key % d.workers
	if w < 0 {
		w = -w
	}
	return w
}

func (d *Dispatcher) run(id int, queue <-chan job) {
	defer d.wg.Done()
	worker := strconv.Itoa(id)
	for j := range queue {
		d.publish(j)
		d.metrics.SetQueueDepth(worker, len(queue))
	}
}

func (d *Dispatcher) publish(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, j.channel, j.msg); err != nil {
		d.metrics.IncrementFailed(j.channel)
		d.logger.Error("publish event failed",
			"channel", j.channel,
			"partition_key", j.msg.Key,
			"event_id", j.msg.Headers[messaging.HeaderEventID],
			"error", err,
		)
	}
}

// Close stops accepting events and waits for queued ones to be handed to the
// transport, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain dispatch queues: %w", ctx.Err())
	}
}
