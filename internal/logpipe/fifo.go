// Package logpipe moves human-readable responder log lines through a named
// pipe to an independent forwarder process that appends them to a file.
package logpipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// EnsureFIFO makes path a named pipe. A non-pipe file at path is replaced.
func EnsureFIFO(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure log pipe dir: %w", err)
	}

	info, err := os.Lstat(path)
	switch {
	case err == nil && info.Mode()&os.ModeNamedPipe != 0:
		return nil
	case err == nil:
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return fmt.Errorf("remove non-fifo %s: %w", path, removeErr)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat log pipe %s: %w", path, err)
	}

	if err := unix.Mkfifo(path, 0o600); err != nil {
		if errors.Is(err, unix.EEXIST) {
			return EnsureFIFO(path)
		}
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// IsFIFO reports whether path exists and is a named pipe.
func IsFIFO(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode()&os.ModeNamedPipe != 0, nil
}

// FormatLine renders one pipe line. Embedded newlines are escaped so a
// message never spans lines.
func FormatLine(ts time.Time, message string) string {
	message = strings.ReplaceAll(message, "\n", `\n`)
	return fmt.Sprintf("timestamp='%s' message='%s'\n", ts.Format(time.RFC3339Nano), message)
}
