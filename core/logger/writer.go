package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

var errWriterClosed = errors.New("logger: writer closed")

// entry is either a log line or a flush marker.
type entry struct {
	line []byte
	ack  chan error
}

// asyncWriter moves log lines off the calling goroutine. Lines go through a
// bounded queue to a single goroutine that buffers them and flushes whenever
// the queue drains, so bursts become one write to the sink.
type asyncWriter struct {
	queue chan entry
	done  chan struct{}
	out   *bufio.Writer

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	aw := &asyncWriter{
		queue: make(chan entry, 256),
		done:  make(chan struct{}),
		out:   bufio.NewWriterSize(w, bufSize),
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for e := range w.queue {
		if e.ack != nil {
			err := w.out.Flush()
			w.fail(err)
			e.ack <- err
			continue
		}
		if _, err := w.out.Write(e.line); err != nil {
			w.fail(err)
		}
		if len(w.queue) == 0 {
			w.fail(w.out.Flush())
		}
	}
	w.fail(w.out.Flush())
}

func (w *asyncWriter) send(e entry) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	w.queue <- e
	return nil
}

// Write queues a copy of p. It blocks only when the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.Err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	return w.send(entry{line: append([]byte(nil), p...)})
}

// Flush waits until every line queued before the call reached the sink.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	if err := w.send(entry{ack: ack}); err != nil {
		return err
	}
	return <-ack
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.Err()
}

// Err returns the first write error seen.
func (w *asyncWriter) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}
