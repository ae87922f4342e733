package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// maxSocketPath is the usable length of sun_path on Linux.
const maxSocketPath = 107

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	paths := []struct {
		key   string
		value string
	}{
		{"monitor.socket", cfg.Monitor.Socket},
		{"monitor.lock", cfg.Monitor.Lock},
		{"proc.socket", cfg.Proc.Socket},
		{"proc.lock", cfg.Proc.Lock},
		{"log.pipe", cfg.Log.Pipe},
		{"log.file", cfg.Log.File},
	}
	for _, p := range paths {
		if strings.TrimSpace(p.value) == "" {
			return nil, fmt.Errorf("%s must not be empty", p.key)
		}
		if !filepath.IsAbs(p.value) {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s is relative (%q); it resolves against the working directory", p.key, p.value)})
		}
	}

	sockets := []struct{ key, value string }{
		{"monitor.socket", cfg.Monitor.Socket},
		{"proc.socket", cfg.Proc.Socket},
	}
	for i, extra := range cfg.Monitor.ExtraSockets {
		sockets = append(sockets, struct{ key, value string }{fmt.Sprintf("monitor.extra_sockets[%d]", i), extra})
	}
	for i, extra := range cfg.Proc.ExtraSockets {
		sockets = append(sockets, struct{ key, value string }{fmt.Sprintf("proc.extra_sockets[%d]", i), extra})
	}
	for _, socket := range sockets {
		if strings.TrimSpace(socket.value) == "" {
			return nil, fmt.Errorf("%s must not be empty", socket.key)
		}
		if len(socket.value) > maxSocketPath {
			return nil, fmt.Errorf("%s is longer than %d bytes", socket.key, maxSocketPath)
		}
	}

	if filepath.Clean(cfg.Monitor.Socket) == filepath.Clean(cfg.Proc.Socket) {
		return nil, fmt.Errorf("monitor.socket and proc.socket must differ")
	}
	if filepath.Clean(cfg.Monitor.Lock) == filepath.Clean(cfg.Proc.Lock) {
		return nil, fmt.Errorf("monitor.lock and proc.lock must differ")
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"server.accept_timeout", cfg.Server.AcceptTimeout.Duration},
		{"server.read_poll", cfg.Server.ReadPoll.Duration},
		{"log.retry", cfg.Log.Retry.Duration},
		{"log.write_timeout", cfg.Log.WriteTimeout.Duration},
		{"client.timeout", cfg.Client.Timeout.Duration},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return nil, fmt.Errorf("%s must be > 0", d.key)
		}
	}
	if cfg.Server.AcceptTimeout.Duration > 5*time.Second {
		warnings = append(warnings, Warning{Message: "server.accept_timeout above 5s delays shutdown"})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Log.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	return warnings, nil
}
