package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/sysprobe/internal/logging"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	runtimeDir := RuntimeDir()

	logFile := filepath.Join(os.TempDir(), "sysprobe-responder.log")
	if stateDir, err := logging.StateDir(); err == nil {
		logFile = filepath.Join(stateDir, "responder.log")
	}

	return Config{
		Monitor: RoleConfig{
			Socket: filepath.Join(runtimeDir, "monitor.sock"),
			Lock:   filepath.Join(runtimeDir, "monitor.lock"),
		},
		Proc: RoleConfig{
			Socket: filepath.Join(runtimeDir, "proc.sock"),
			Lock:   filepath.Join(runtimeDir, "proc.lock"),
		},
		Server: ServerConfig{
			AcceptTimeout: D(time.Second),
			ReadPoll:      D(time.Second),
			Health:        true,
		},
		Log: LogConfig{
			Pipe:          filepath.Join(runtimeDir, "log.pipe"),
			File:          logFile,
			Level:         "info",
			Retry:         D(100 * time.Millisecond),
			WriteTimeout:  D(time.Second),
			WaitForReader: true,
		},
		Client: ClientConfig{
			Timeout: D(2 * time.Second),
		},
	}
}

// RuntimeDir returns $XDG_RUNTIME_DIR/sysprobe, or a per-user directory under
// the system temp dir when XDG_RUNTIME_DIR is unset.
func RuntimeDir() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); xdg != "" {
		return filepath.Join(xdg, "sysprobe")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("sysprobe-%d", os.Getuid()))
}
