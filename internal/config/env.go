package config

import (
	"os"
	"strings"
)

// Environment variables that override file and default values.
const (
	EnvMonitorSocket = "SYSPROBE_MONITOR_SOCKET"
	EnvProcSocket    = "SYSPROBE_PROC_SOCKET"
	EnvMonitorLock   = "SYSPROBE_MONITOR_LOCK"
	EnvProcLock      = "SYSPROBE_PROC_LOCK"
	EnvLogPipe       = "SYSPROBE_LOG_PIPE"
	EnvLogFile       = "SYSPROBE_LOG_FILE"
)

// ApplyEnv overlays non-empty environment overrides onto cfg.
func ApplyEnv(cfg Config) Config {
	overrides := []struct {
		name   string
		target *string
	}{
		{EnvMonitorSocket, &cfg.Monitor.Socket},
		{EnvProcSocket, &cfg.Proc.Socket},
		{EnvMonitorLock, &cfg.Monitor.Lock},
		{EnvProcLock, &cfg.Proc.Lock},
		{EnvLogPipe, &cfg.Log.Pipe},
		{EnvLogFile, &cfg.Log.File},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			*o.target = v
		}
	}
	return cfg
}
