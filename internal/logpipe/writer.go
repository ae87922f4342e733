package logpipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

var ErrNoReader = errors.New("log pipe has no reader")

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultWriteTimeout = time.Second
)

// WriterOptions controls how the responder side attaches to the pipe.
type WriterOptions struct {
	// WaitForReader makes OpenWriter block, cancellably, until a forwarder
	// has the pipe open.
	WaitForReader bool
	PollInterval  time.Duration
	WriteTimeout  time.Duration
}

// Writer is the responder end of the log pipe. Lines written while no
// forwarder is attached are dropped rather than stalling the caller.
type Writer struct {
	path string
	opts WriterOptions

	mu   sync.Mutex
	file *os.File

	dropped atomic.Uint64
}

// OpenWriter prepares the pipe at path and attaches to it.
func OpenWriter(ctx context.Context, path string, opts WriterOptions) (*Writer, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if err := EnsureFIFO(path); err != nil {
		return nil, err
	}

	w := &Writer{path: path, opts: opts}
	if !opts.WaitForReader {
		return w, nil
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()
	for {
		w.mu.Lock()
		err := w.connectLocked()
		w.mu.Unlock()
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, ErrNoReader) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for log pipe reader: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Path returns the pipe path.
func (w *Writer) Path() string {
	return w.path
}

// Dropped returns how many writes were discarded.
func (w *Writer) Dropped() uint64 {
	return w.dropped.Load()
}

// Write sends p as-is. Callers write whole lines; lines up to PIPE_BUF bytes
// are never interleaved with other writers. A write that finds the forwarder
// gone reattaches once before the line is dropped.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if w.file == nil {
			if err := w.connectLocked(); err != nil {
				w.dropped.Add(1)
				return 0, err
			}
		}

		_ = w.file.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
		n, err := w.file.Write(p)
		if err == nil {
			return n, nil
		}

		_ = w.file.Close()
		w.file = nil
		lastErr = err
		if n > 0 || !errors.Is(err, unix.EPIPE) {
			break
		}
	}

	w.dropped.Add(1)
	return 0, fmt.Errorf("write log pipe: %w", lastErr)
}

// Close detaches from the pipe.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *Writer) connectLocked() error {
	f, err := os.OpenFile(w.path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) {
			return ErrNoReader
		}
		return fmt.Errorf("open log pipe %s: %w", w.path, err)
	}
	w.file = f
	return nil
}
