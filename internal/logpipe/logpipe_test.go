package logpipe

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnsureFIFOCreatesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "responder.pipe")

	require.NoError(t, EnsureFIFO(path))
	isFIFO, err := IsFIFO(path)
	require.NoError(t, err)
	require.True(t, isFIFO)

	require.NoError(t, EnsureFIFO(path))

	regular := filepath.Join(dir, "regular.pipe")
	require.NoError(t, os.WriteFile(regular, []byte("not a pipe"), 0o600))
	isFIFO, err = IsFIFO(regular)
	require.NoError(t, err)
	require.False(t, isFIFO)

	require.NoError(t, EnsureFIFO(regular))
	isFIFO, err = IsFIFO(regular)
	require.NoError(t, err)
	require.True(t, isFIFO)

	isFIFO, err = IsFIFO(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	require.False(t, isFIFO)
}

func TestFormatLine(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 8000, time.UTC)
	line := FormatLine(ts, "client connected\nsecond")
	require.Equal(t, "timestamp='2026-03-04T05:06:07.000008Z' message='client connected\\nsecond'\n", line)
}

func TestWriterWithoutReaderDropsInsteadOfBlocking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responder.pipe")

	w, err := OpenWriter(context.Background(), path, WriterOptions{})
	require.NoError(t, err)
	defer w.Close()
	require.Equal(t, path, w.Path())

	done := make(chan error, 1)
	go func() {
		_, writeErr := w.Write([]byte(FormatLine(time.Now(), "nobody listening")))
		done <- writeErr
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrNoReader)
	case <-time.After(time.Second):
		t.Fatal("write blocked without a reader")
	}
	require.Equal(t, uint64(1), w.Dropped())
}

func TestOpenWriterWaitForReaderHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "responder.pipe")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err := OpenWriter(ctx, path, WriterOptions{WaitForReader: true, PollInterval: 20 * time.Millisecond})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func startForwarder(t *testing.T, pipePath, logPath string) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Forwarder{PipePath: pipePath, LogPath: logPath, Retry: 10 * time.Millisecond}.Run(ctx)
	}()

	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("forwarder did not stop")
		}
	}
}

func logContains(path, needle string) bool {
	data, err := os.ReadFile(path)
	return err == nil && strings.Contains(string(data), needle)
}

func TestForwarderSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	pipePath := filepath.Join(dir, "responder.pipe")
	logPath := filepath.Join(dir, "state", "responder.log")

	stopFirst := startForwarder(t, pipePath, logPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w, err := OpenWriter(ctx, pipePath, WriterOptions{WaitForReader: true, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	require.Eventually(t, func() bool {
		_, _ = w.Write([]byte(FormatLine(time.Now(), "before restart")))
		return logContains(logPath, "message='before restart'")
	}, 2*time.Second, 20*time.Millisecond)

	stopFirst()

	// With the forwarder gone the writer must fail fast rather than hang.
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for i := 0; i < 5; i++ {
			_, _ = w.Write([]byte(FormatLine(time.Now(), "while down")))
		}
	}()
	select {
	case <-writeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("writer hung while forwarder was down")
	}

	stopSecond := startForwarder(t, pipePath, logPath)
	defer stopSecond()

	require.Eventually(t, func() bool {
		_, _ = w.Write([]byte(FormatLine(time.Now(), "after restart")))
		return logContains(logPath, "message='after restart'")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestForwarderStopsWithoutWriters(t *testing.T) {
	dir := t.TempDir()
	stop := startForwarder(t, filepath.Join(dir, "p.pipe"), filepath.Join(dir, "out.log"))
	time.Sleep(50 * time.Millisecond)
	stop()

	_, err := os.Stat(filepath.Join(dir, "out.log"))
	require.NoError(t, err)
}

func TestForwarderRetriesUntilPipeCanBeCreated(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "run")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o600))
	pipePath := filepath.Join(blocker, "responder.pipe")
	logPath := filepath.Join(dir, "out.log")

	stop := startForwarder(t, pipePath, logPath)
	defer stop()

	time.Sleep(50 * time.Millisecond)
	isFIFO, err := IsFIFO(pipePath)
	require.Error(t, err)
	require.False(t, isFIFO)

	require.NoError(t, os.Remove(blocker))
	require.Eventually(t, func() bool {
		ok, statErr := IsFIFO(pipePath)
		return statErr == nil && ok
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w, err := OpenWriter(ctx, pipePath, WriterOptions{WaitForReader: true, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	require.Eventually(t, func() bool {
		_, _ = w.Write([]byte(FormatLine(time.Now(), "after recovery")))
		return logContains(logPath, "message='after recovery'")
	}, 2*time.Second, 20*time.Millisecond)
}
