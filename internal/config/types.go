// Package config resolves, parses, validates, and defaults sysprobe configuration.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rbright/sysprobe/internal/protocol"
)

// Config is the fully materialized runtime configuration used by sysprobe.
type Config struct {
	Monitor RoleConfig   `toml:"monitor"`
	Proc    RoleConfig   `toml:"proc"`
	Server  ServerConfig `toml:"server"`
	Log     LogConfig    `toml:"log"`
	Client  ClientConfig `toml:"client"`
}

// RoleConfig locates one responder's socket and single-instance lock.
// ExtraSockets are further responders of the same role that requesters
// fan out to.
type RoleConfig struct {
	Socket       string   `toml:"socket"`
	Lock         string   `toml:"lock"`
	ExtraSockets []string `toml:"extra_sockets"`
}

// Sockets lists the local socket followed by any extra sockets.
func (r RoleConfig) Sockets() []string {
	return append([]string{r.Socket}, r.ExtraSockets...)
}

// ServerConfig controls the responder accept loop and connection reads.
type ServerConfig struct {
	AcceptTimeout Duration `toml:"accept_timeout"`
	ReadPoll      Duration `toml:"read_poll"`
	Health        bool     `toml:"health"`
}

// LogConfig controls the log pipe and the forwarder's durable file.
type LogConfig struct {
	Pipe          string   `toml:"pipe"`
	File          string   `toml:"file"`
	Level         string   `toml:"level"`
	Retry         Duration `toml:"retry"`
	WriteTimeout  Duration `toml:"write_timeout"`
	WaitForReader bool     `toml:"wait_for_reader"`
}

// SlogLevel maps Level onto slog, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// ClientConfig controls requester timeouts.
type ClientConfig struct {
	Timeout Duration `toml:"timeout"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Role returns the socket/lock pair of a responder role.
func (c Config) Role(role protocol.Role) (RoleConfig, error) {
	switch role {
	case protocol.RoleMonitor:
		return c.Monitor, nil
	case protocol.RoleProc:
		return c.Proc, nil
	default:
		return RoleConfig{}, fmt.Errorf("unknown role %q", role)
	}
}

// Duration decodes TOML strings such as "250ms" or integer milliseconds.
type Duration struct {
	time.Duration
}

// D is shorthand for building a Duration.
func D(d time.Duration) Duration {
	return Duration{Duration: d}
}

func (d *Duration) UnmarshalTOML(v any) error {
	switch x := v.(type) {
	case nil:
		d.Duration = 0
		return nil
	case string:
		if x == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	case int64:
		d.Duration = time.Duration(x) * time.Millisecond
		return nil
	default:
		return fmt.Errorf("unsupported duration type %T", v)
	}
}
