package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront-auth/internal/config"
	"github.com/spec-kit/storefront-auth/internal/events"
)

// NotificationHandler delivers notifications for the event types it lists.
type NotificationHandler interface {
	EventTypes() []events.EventType
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker moves notification delivery off the request path. Published events are
// queued and handled by a fixed pool of goroutines; when the queue is full the event is
// dropped and counted.
type NotificationWorker struct {
	handler NotificationHandler
	logger  *zap.Logger
	timeout time.Duration
	workers int

	queue     chan events.Event
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	closed    atomic.Bool

	handled atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64
}

// NewNotificationWorker sizes the pool from cfg. Non-positive values fall back to one worker
// and a queue of one.
func NewNotificationWorker(handler NotificationHandler, logger *zap.Logger, cfg config.NotificationConfig) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &NotificationWorker{
		handler: handler,
		logger:  logger,
		timeout: cfg.HandlerTimeout,
		workers: cfg.Workers,
		queue:   make(chan events.Event, cfg.QueueSize),
		done:    make(chan struct{}),
	}
}

// Subscribe routes every event type the handler understands into the queue.
func (w *NotificationWorker) Subscribe(dispatcher events.Dispatcher) {
	for _, eventType := range w.handler.EventTypes() {
		dispatcher.Subscribe(eventType, w.Enqueue)
	}
}

// Enqueue queues event without blocking. It never fails the publisher: a stopped worker or a
// full queue drops the event.
func (w *NotificationWorker) Enqueue(_ context.Context, event events.Event) error {
	if w.closed.Load() {
		w.dropped.Add(1)
		return nil
	}
	select {
	case w.queue <- event:
	default:
		w.dropped.Add(1)
		w.logger.Warn("notification queue full; event dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID))
	}
	return nil
}

// Start launches the worker goroutines. Later calls are no-ops.
func (w *NotificationWorker) Start() {
	w.startOnce.Do(func() {
		w.logger.Info("starting notification worker", zap.Int("workers", w.workers), zap.Int("queue_size", cap(w.queue)))
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go w.run()
		}
	})
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case event := <-w.queue:
			w.handle(event)
		case <-w.done:
			for {
				select {
				case event := <-w.queue:
					w.handle(event)
				default:
					return
				}
			}
		}
	}
}

func (w *NotificationWorker) handle(event events.Event) {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.handler.Handle(ctx, event); err != nil {
		w.failed.Add(1)
		w.logger.Error("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err))
		return
	}
	w.handled.Add(1)
}

// Stop rejects new events and drains the queue. It returns ctx.Err() if the drain outlives ctx;
// the goroutines keep draining in the background.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		w.closed.Store(true)
		close(w.done)
	})

	drained := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		w.logger.Info("notification worker stopped", zap.Any("stats", w.Stats()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WorkerStats counts event outcomes since start.
type WorkerStats struct {
	Handled uint64 `json:"handled"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Stats returns current counters.
func (w *NotificationWorker) Stats() WorkerStats {
	return WorkerStats{
		Handled: w.handled.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
	}
}
