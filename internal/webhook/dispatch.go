package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegate/telegate/internal/metrics"
)

// Processor handles one update end to end. Implementations must be safe for
// concurrent use; the dispatcher calls it from every worker.
type Processor interface {
	Process(ctx context.Context, update *tgbotapi.Update)
}

// Dispatcher decouples webhook admission from update processing. Admitted
// updates go into a bounded queue and a fixed pool of workers drains it, so
// the webhook handler can acknowledge immediately regardless of backend
// latency.
type Dispatcher struct {
	queue     chan *tgbotapi.Update
	processor Processor
	workers   int
	logger    *slog.Logger
	metrics   *metrics.Metrics

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given queue capacity and worker
// count. Workers do not run until Start.
func NewDispatcher(log *slog.Logger, m *metrics.Metrics, processor Processor, queueSize, workers int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		queue:     make(chan *tgbotapi.Update, queueSize),
		processor: processor,
		workers:   workers,
		logger:    log.With(slog.String("service", "dispatch")),
		metrics:   m,
	}
}

// Start launches the worker pool. The context bounds per-update processing;
// cancelling it aborts in-flight backend calls but workers keep draining the
// queue until Stop closes it.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work(ctx)
		}
		d.logger.Info("workers started", slog.Int("workers", d.workers), slog.Int("queue_size", cap(d.queue)))
	})
}

// Enqueue hands an update to the worker pool without blocking. It reports
// false when the queue is full; the caller decides how to answer the webhook
// in that case.
func (d *Dispatcher) Enqueue(update *tgbotapi.Update) bool {
	select {
	case d.queue <- update:
		if d.metrics != nil {
			d.metrics.QueueDepth.Set(float64(len(d.queue)))
		}
		return true
	default:
		return false
	}
}

// Stop closes the queue and waits for the workers to finish the updates
// already admitted, up to grace. Updates still queued after grace are lost
// and counted in the returned remainder.
func (d *Dispatcher) Stop(grace time.Duration) int {
	d.stopOnce.Do(func() { close(d.queue) })

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("drained")
		return 0
	case <-time.After(grace):
		remaining := len(d.queue)
		d.logger.Warn("drain timed out", slog.Int("dropped", remaining))
		return remaining
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for update := range d.queue {
		if d.metrics != nil {
			d.metrics.QueueDepth.Set(float64(len(d.queue)))
		}
		d.processor.Process(ctx, update)
	}
}
