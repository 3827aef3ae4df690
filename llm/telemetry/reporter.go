package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrReporterClosed     = errors.New("telemetry reporter closed")
	ErrReporterNotStarted = errors.New("telemetry reporter not started")
	ErrReporterStarted    = errors.New("telemetry reporter already started")
)

// ReporterConfig configures a Reporter.
type ReporterConfig struct {
	QueueSize     int           `json:"queue_size" yaml:"queue_size"`
	BatchSize     int           `json:"batch_size" yaml:"batch_size"`
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
	// SinkTimeout bounds a single batch write across all sinks.
	SinkTimeout time.Duration `json:"sink_timeout" yaml:"sink_timeout"`
}

// DefaultReporterConfig returns the defaults.
func DefaultReporterConfig() ReporterConfig {
	return ReporterConfig{
		QueueSize:     1024,
		BatchSize:     32,
		FlushInterval: 2 * time.Second,
		SinkTimeout:   5 * time.Second,
	}
}

func (c ReporterConfig) withDefaults() ReporterConfig {
	d := DefaultReporterConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = d.FlushInterval
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = d.SinkTimeout
	}
	return c
}

// ReporterStats are delivery counters.
type ReporterStats struct {
	Submitted  int64 `json:"submitted"`
	Dropped    int64 `json:"dropped"`
	Delivered  int64 `json:"delivered"`
	Batches    int64 `json:"batches"`
	SinkErrors int64 `json:"sink_errors"`
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithDropHook calls fn whenever an event is dropped, e.g. to count it in
// Prometheus.
func WithDropHook(fn func()) ReporterOption {
	return func(r *Reporter) { r.onDrop = fn }
}

// Reporter batches events and fans each batch out to every sink
// concurrently. It has an explicit lifecycle: Start, Submit, Flush,
// Shutdown. Submit never blocks; events are dropped and counted when the
// queue is full or the reporter is shut down.
type Reporter struct {
	cfg    ReporterConfig
	sinks  []Sink
	logger *zap.Logger
	onDrop func()

	mu      sync.RWMutex
	queue   chan Event
	flushCh chan chan struct{}
	done    chan struct{}
	started bool
	closed  bool

	submitted  atomic.Int64
	dropped    atomic.Int64
	delivered  atomic.Int64
	batches    atomic.Int64
	sinkErrors atomic.Int64
}

// NewReporter creates a reporter. Nothing is delivered until Start.
func NewReporter(cfg ReporterConfig, logger *zap.Logger, sinks []Sink, opts ...ReporterOption) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	r := &Reporter{
		cfg:     cfg,
		sinks:   sinks,
		logger:  logger.With(zap.String("component", "telemetry_reporter")),
		queue:   make(chan Event, cfg.QueueSize),
		flushCh: make(chan chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the delivery worker.
func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrReporterClosed
	}
	if r.started {
		return ErrReporterStarted
	}
	r.started = true
	go r.run()
	r.logger.Debug("telemetry reporter started",
		zap.Int("queue_size", r.cfg.QueueSize),
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Int("sinks", len(r.sinks)))
	return nil
}

// Submit enqueues an event without blocking. It reports whether the event
// was accepted. Events submitted before Start are buffered.
func (r *Reporter) Submit(e Event) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop()
		return false
	}
	select {
	case r.queue <- e:
		r.submitted.Add(1)
		return true
	default:
		r.drop()
		return false
	}
}

func (r *Reporter) drop() {
	r.dropped.Add(1)
	if r.onDrop != nil {
		r.onDrop()
	}
}

// Flush delivers everything queued so far and waits for the sinks.
func (r *Reporter) Flush(ctx context.Context) error {
	r.mu.RLock()
	started, closed := r.started, r.closed
	r.mu.RUnlock()
	switch {
	case closed:
		return ErrReporterClosed
	case !started:
		return ErrReporterNotStarted
	}

	ack := make(chan struct{})
	select {
	case r.flushCh <- ack:
	case <-r.done:
		return ErrReporterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting events, delivers what is queued and waits for the
// worker to exit or ctx to expire. Calling it more than once is safe.
func (r *Reporter) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	close(r.queue)
	r.mu.Unlock()

	if !started {
		// Nothing will drain the queue; deliver inline.
		go r.run()
	}

	select {
	case <-r.done:
		s := r.Stats()
		r.logger.Debug("telemetry reporter stopped",
			zap.Int64("delivered", s.Delivered),
			zap.Int64("dropped", s.Dropped))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telemetry shutdown: %w", ctx.Err())
	}
}

// Stats returns counters.
func (r *Reporter) Stats() ReporterStats {
	return ReporterStats{
		Submitted:  r.submitted.Load(),
		Dropped:    r.dropped.Load(),
		Delivered:  r.delivered.Load(),
		Batches:    r.batches.Load(),
		SinkErrors: r.sinkErrors.Load(),
	}
}

func (r *Reporter) run() {
	defer close(r.done)

	batch := make([]Event, 0, r.cfg.BatchSize)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				r.deliver(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= r.cfg.BatchSize {
				r.deliver(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.deliver(batch)
				batch = batch[:0]
			}
		case ack := <-r.flushCh:
			batch = r.drain(batch)
			r.deliver(batch)
			batch = batch[:0]
			close(ack)
		}
	}
}

// drain moves every event currently queued into batch.
func (r *Reporter) drain(batch []Event) []Event {
	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				return batch
			}
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

func (r *Reporter) deliver(batch []Event) {
	if len(batch) == 0 {
		return
	}
	// Sinks may retain the slice; hand them their own copy.
	events := make([]Event, len(batch))
	copy(events, batch)

	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.SinkTimeout)
	defer cancel()

	var g errgroup.Group
	for _, sink := range r.sinks {
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					r.sinkErrors.Add(1)
					r.logger.Error("telemetry sink panic recovered", zap.Any("panic", v))
					err = fmt.Errorf("sink panic: %v", v)
				}
			}()
			if err := sink.Write(ctx, events); err != nil {
				r.sinkErrors.Add(1)
				r.logger.Warn("telemetry sink failed", zap.Error(err), zap.Int("events", len(events)))
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Debug("telemetry batch partially delivered", zap.Error(err))
	}
	r.batches.Add(1)
	r.delivered.Add(int64(len(events)))
}
