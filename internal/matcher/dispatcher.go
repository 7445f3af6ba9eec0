package matcher

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/metrics"
)

// Runner runs a single match.
type Runner interface {
	Match(ctx context.Context, req Request) (*Result, error)
}

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds each match.
	Timeout time.Duration
}

// Dispatcher runs matches in the background on a fixed pool of workers.
type Dispatcher struct {
	runner  Runner
	queue   chan Request
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the workers.
func NewDispatcher(runner Runner, cfg DispatcherConfig, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		runner:  runner,
		queue:   make(chan Request, cfg.QueueSize),
		timeout: cfg.Timeout,
		log:     log.Named("dispatcher"),
		metrics: m,
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}
	return d
}

// Enqueue schedules req without blocking. It returns false when the
// queue is full or the dispatcher is closed.
func (d *Dispatcher) Enqueue(req Request) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	select {
	case d.queue <- req:
		d.metrics.SetQueueDepth(len(d.queue))
		return true
	default:
		d.metrics.Dropped()
		d.log.Warn("queue full, dropping match",
			zap.String("type", string(req.Type)), zap.String("id", req.id()))
		return false
	}
}

// Close stops accepting requests, runs everything already queued and
// waits for the workers to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for req := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		d.run(req)
	}
}

func (d *Dispatcher) run(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("match panicked", zap.Any("panic", r), zap.String("id", req.id()))
		}
	}()

	if _, err := d.runner.Match(ctx, req); err != nil {
		d.log.Warn("background match failed",
			zap.String("type", string(req.Type)), zap.String("id", req.id()), zap.Error(err))
	}
}
