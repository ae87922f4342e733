package logpipe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

const defaultRetry = 100 * time.Millisecond

// Forwarder drains the log pipe into an append-only log file.
type Forwarder struct {
	PipePath string
	LogPath  string
	Retry    time.Duration
	Logger   *slog.Logger
}

// Run forwards lines until ctx is cancelled. Responders may come and go
// without ending a cycle. A pipe that cannot be created or opened is retried
// after Retry, so a missing or replaced pipe path recovers on its own.
func (f Forwarder) Run(ctx context.Context) error {
	logger := f.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	retry := f.Retry
	if retry <= 0 {
		retry = defaultRetry
	}

	if err := os.MkdirAll(filepath.Dir(f.LogPath), 0o700); err != nil {
		return fmt.Errorf("ensure log dir: %w", err)
	}
	out, err := os.OpenFile(f.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", f.LogPath, err)
	}
	defer out.Close()

	logger.Info("log forwarder started", "pipe", f.PipePath, "file", f.LogPath)
	for {
		if ctx.Err() != nil {
			logger.Info("log forwarder stopped")
			return nil
		}

		pipe, keepalive, err := f.open()
		if err != nil {
			logger.Warn("log pipe unavailable, retrying", "error", err.Error(), "retry", retry)
			select {
			case <-ctx.Done():
			case <-time.After(retry):
			}
			continue
		}

		lines, err := f.cycle(ctx, pipe, keepalive, out)
		if err != nil {
			logger.Error("log forwarder cycle failed", "error", err.Error())
			return err
		}
		if lines > 0 || ctx.Err() != nil {
			continue
		}
		logger.Debug("no data on log pipe, retrying", "retry", retry)
		select {
		case <-ctx.Done():
		case <-time.After(retry):
		}
	}
}

// open makes sure the pipe exists and opens it for reading, plus a write end
// held by the forwarder. The held write end keeps reads blocking rather than
// hitting EOF while no responder is attached, and lets a responder opening
// with O_NONBLOCK always find a reader.
func (f Forwarder) open() (*os.File, *os.File, error) {
	if err := EnsureFIFO(f.PipePath); err != nil {
		return nil, nil, err
	}
	pipe, err := os.OpenFile(f.PipePath, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open log pipe %s: %w", f.PipePath, err)
	}
	keepalive, err := os.OpenFile(f.PipePath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		_ = pipe.Close()
		return nil, nil, fmt.Errorf("hold log pipe %s: %w", f.PipePath, err)
	}
	return pipe, keepalive, nil
}

// cycle copies lines from pipe until it is closed, which in practice means
// until ctx is cancelled.
func (f Forwarder) cycle(ctx context.Context, pipe, keepalive *os.File, out io.Writer) (int, error) {
	defer pipe.Close()
	defer keepalive.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = keepalive.Close()
		_ = pipe.Close()
	})
	defer stop()

	reader := bufio.NewReader(pipe)
	lines := 0
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			if line[len(line)-1] != '\n' {
				line = append(line, '\n')
			}
			if _, err := out.Write(line); err != nil {
				return lines, fmt.Errorf("append log file: %w", err)
			}
			lines++
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, os.ErrClosed) {
				return lines, nil
			}
			return lines, fmt.Errorf("read log pipe: %w", readErr)
		}
	}
}
