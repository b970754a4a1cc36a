// Package sequence runs work for the same key strictly one at a time in
// submission order while work for different keys runs concurrently.
package sequence

import (
	"context"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Sequencer chains tasks per key. The zero value is not usable; call New.
type Sequencer struct {
	mu    sync.Mutex
	tails map[int64]chan struct{}
	wg    sync.WaitGroup
}

// New returns an empty Sequencer.
func New() *Sequencer {
	return &Sequencer{tails: make(map[int64]chan struct{})}
}

// Go schedules fn for key. It returns immediately; fn starts after every
// task previously scheduled for the same key has finished.
func (s *Sequencer) Go(key int64, fn func()) {
	done := make(chan struct{})

	s.mu.Lock()
	prev := s.tails[key]
	s.tails[key] = done
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			close(done)
			s.mu.Lock()
			if s.tails[key] == done {
				delete(s.tails, key)
			}
			s.mu.Unlock()
		}()
		if prev != nil {
			<-prev
		}
		fn()
	}()
}

// Pending returns the number of keys with queued or running work.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}

// Wait blocks until all scheduled tasks finish or ctx is done.
func (s *Sequencer) Wait(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Middleware hands each update to the sequencer under the key returned by keyOf.
// The poller must run in synchronous mode so arrival order is preserved.
// Handler errors go to onError because the poller has already moved on.
func Middleware(s *Sequencer, keyOf func(tele.Context) int64, onError func(error, tele.Context)) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			s.Go(keyOf(c), func() {
				if err := next(c); err != nil && onError != nil {
					onError(err, c)
				}
			})
			return nil
		}
	}
}
