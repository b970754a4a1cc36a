package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/aqibot/core/logger"
	"github.com/m3rciful/aqibot/internal/observability"
)

// Options configures a Recorder.
type Options struct {
	QueueSize    int
	WriteTimeout time.Duration
	Clock        clockwork.Clock
	Metrics      *observability.Metrics
}

type item struct {
	ctx context.Context
	e   Event
}

// Recorder queues events and writes them to a Sink from a single worker.
type Recorder struct {
	sink    Sink
	clock   clockwork.Clock
	metrics *observability.Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}

	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder starts the worker. Call Close to drain and stop it.
func NewRecorder(sink Sink, opts Options) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	r := &Recorder{
		sink:    sink,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		timeout: opts.WriteTimeout,
		queue:   make(chan item, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Record enqueues e without blocking. ID and At are filled when zero.
// Events are dropped when the queue is full or the recorder is closed.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = r.clock.Now().UTC()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(ctx, e, "closed")
		return
	}
	select {
	case r.queue <- item{ctx: context.WithoutCancel(ctx), e: e}:
	default:
		r.drop(ctx, e, "queue_full")
	}
}

func (r *Recorder) drop(ctx context.Context, e Event, reason string) {
	r.dropped.Add(1)
	r.metrics.Audit("dropped")
	logger.Debug(ctx, "audit", "drop",
		slog.String("action", e.Action),
		slog.String("reason", reason),
	)
}

// Dropped returns the number of events that were not queued.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Failed returns the number of events the sink rejected.
func (r *Recorder) Failed() uint64 { return r.failed.Load() }

// Close stops accepting events and waits until queued ones are written or ctx is done.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit: drain: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for it := range r.queue {
		r.write(it)
	}
}

func (r *Recorder) write(it item) {
	ctx, cancel := context.WithTimeout(it.ctx, r.timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("audit: sink panic: %v", p)
			}
		}()
		if r.sink == nil {
			return errors.New("audit: nil sink")
		}
		return r.sink.Write(ctx, it.e)
	}()
	if err != nil {
		r.failed.Add(1)
		r.metrics.Audit("failed")
		logger.Warn(it.ctx, "audit", "write.fail",
			slog.String("action", it.e.Action),
			slog.Int64("user_id", it.e.UserID),
			slog.String("err", err.Error()),
		)
		return
	}
	r.metrics.Audit("written")
}
