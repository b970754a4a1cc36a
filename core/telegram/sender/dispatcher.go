// Package sender runs outbound Telegram API calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/aqibot/core/logger"
	"github.com/m3rciful/aqibot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the chat's shard has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes a Dispatcher. Zero values select defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on one job including retries.
	MaxDuration time.Duration
	// EnqueueWait is how long Enqueue waits for a slot on a full shard.
	// Negative means fail at once.
	EnqueueWait time.Duration
}

func (o *Options) normalize() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	if o.EnqueueWait == 0 {
		o.EnqueueWait = 2 * time.Second
	}
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes Telegram calls on a fixed set of workers. Jobs are
// sharded by chat, so the calls for one chat run in enqueue order.
type Dispatcher struct {
	opts   Options
	shards []chan job
	wg     sync.WaitGroup
	failed atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts.normalize()
	d := &Dispatcher{opts: opts, shards: make([]chan job, opts.Workers)}
	depth := max(opts.QueueSize/opts.Workers, 1)
	d.wg.Add(len(d.shards))
	for i := range d.shards {
		d.shards[i] = make(chan job, depth)
		go d.work(d.shards[i])
	}
	return d
}

// Enqueue schedules run on the shard of the chat in ctx. On a full shard it
// waits up to EnqueueWait, then returns ErrQueueFull; the job is not run.
// run may be called more than once when a transient error is retried.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	q := d.shards[d.shard(ctx)]
	j := job{ctx: ctx, action: action, endpoint: endpoint, run: run}
	select {
	case q <- j:
		return nil
	default:
	}
	if d.opts.EnqueueWait < 0 {
		return ErrQueueFull
	}
	timer := time.NewTimer(d.opts.EnqueueWait)
	defer timer.Stop()
	select {
	case q <- j:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(ctx context.Context) int {
	key := logger.ChatIDFrom(ctx)
	if key == 0 {
		key = logger.UserIDFrom(ctx)
	}
	n := int64(len(d.shards))
	return int(((key % n) + n) % n)
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close rejects new jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.shards {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		if err := d.execute(j); err != nil {
			d.failed.Add(1)
		}
	}
}

// execute runs j until it succeeds, fails permanently, or runs out of
// attempts or time. Flood control waits the interval Telegram asks for.
func (d *Dispatcher) execute(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			logger.Debug(j.ctx, "tg.sender", "send.ok", j.attrs(
				slog.Int("attempts", attempt),
				slog.Duration("duration", time.Since(start)),
			)...)
			return nil
		}
		delay, retry := d.retryDelay(err, attempt)
		if !retry || attempt == attempts {
			break
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry", j.attrs(
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
			slog.String("cause", classifyError(err)),
		)...)
		if werr := wait(ctx, delay); werr != nil {
			err = werr
			break
		}
	}

	logger.Error(j.ctx, "tg.sender", "send.fail", j.attrs(
		slog.String("err", redactToken(err)),
		slog.String("err_code", classifyError(err)),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

func (d *Dispatcher) retryDelay(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(max(flood.RetryAfter, 1)) * time.Second, true
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attrs names the job. Correlation ids come from j.ctx via the log handler.
func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	out := append(make([]slog.Attr, 0, 2+len(extra)), slog.String("action", j.action))
	if j.endpoint != "" {
		out = append(out, slog.String("method", j.endpoint))
	}
	return append(out, extra...)
}
