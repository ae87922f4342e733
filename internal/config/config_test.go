package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/sysprobe/internal/protocol"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	for _, name := range []string{EnvMonitorSocket, EnvProcSocket, EnvMonitorLock, EnvProcLock, EnvLogPipe, EnvLogFile} {
		t.Setenv(name, "")
	}
	return runtimeDir
}

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.toml"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "sysprobe", "config.toml"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "sysprobe", "config.toml"), resolved)
}

func TestDefaultsLiveUnderRuntimeDir(t *testing.T) {
	runtimeDir := setupEnv(t)

	cfg := Default()
	require.Equal(t, filepath.Join(runtimeDir, "sysprobe", "monitor.sock"), cfg.Monitor.Socket)
	require.Equal(t, filepath.Join(runtimeDir, "sysprobe", "proc.lock"), cfg.Proc.Lock)
	require.Equal(t, filepath.Join(runtimeDir, "sysprobe", "log.pipe"), cfg.Log.Pipe)
	require.Equal(t, time.Second, cfg.Server.AcceptTimeout.Duration)
	require.Equal(t, 100*time.Millisecond, cfg.Log.Retry.Duration)

	_, err := Validate(cfg)
	require.NoError(t, err)
}

func TestRuntimeDirFallsBackToTemp(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	require.True(t, strings.HasPrefix(RuntimeDir(), os.TempDir()))
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "missing.toml")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingTOMLParsesAndValidates(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[monitor]
socket = "` + filepath.Join(dir, "m.sock") + `"

[server]
accept_timeout = "250ms"
read_poll = 500
health = false

[log]
level = "debug"
wait_for_reader = false
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Empty(t, loaded.Warnings)

	cfg := loaded.Config
	require.Equal(t, filepath.Join(dir, "m.sock"), cfg.Monitor.Socket)
	require.Equal(t, Default().Proc, cfg.Proc)
	require.Equal(t, 250*time.Millisecond, cfg.Server.AcceptTimeout.Duration)
	require.Equal(t, 500*time.Millisecond, cfg.Server.ReadPoll.Duration)
	require.False(t, cfg.Server.Health)
	require.False(t, cfg.Log.WaitForReader)
	require.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	t.Setenv(EnvProcSocket, filepath.Join(dir, "proc-env.sock"))
	t.Setenv(EnvLogPipe, filepath.Join(dir, "env.pipe"))

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[proc]\nsocket = \"/file/proc.sock\"\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "proc-env.sock"), loaded.Config.Proc.Socket)
	require.Equal(t, filepath.Join(dir, "env.pipe"), loaded.Config.Log.Pipe)

	loaded, err = Load(filepath.Join(dir, "missing.toml"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "proc-env.sock"), loaded.Config.Proc.Socket)
}

func TestLoadValidatesAfterEnvOverrides(t *testing.T) {
	setupEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[proc]\nsocket = \"\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "proc.socket must not be empty")

	t.Setenv(EnvProcSocket, filepath.Join(dir, "proc-env.sock"))
	t.Setenv(EnvLogFile, "relative.log")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "proc-env.sock"), loaded.Config.Proc.Socket)
	require.Len(t, loaded.Warnings, 1)
	require.Contains(t, loaded.Warnings[0].Message, "log.file is relative")
}

func TestParseReportsUnknownKeysAsWarnings(t *testing.T) {
	setupEnv(t)

	cfg, warnings, err := Parse("[server]\nhealth = true\nbacklog = 5\n", Default())
	require.NoError(t, err)
	require.True(t, cfg.Server.Health)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, `unknown key "server.backlog"`)
}

func TestParseSyntaxErrorIncludesLine(t *testing.T) {
	setupEnv(t)

	_, _, err := Parse("[server]\naccept_timeout = = 1\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestParseRejectsBadDuration(t *testing.T) {
	setupEnv(t)

	_, _, err := Parse("[client]\ntimeout = \"soon\"\n", Default())
	require.Error(t, err)

	_, _, err = Parse("[client]\ntimeout = true\n", Default())
	require.Error(t, err)
}

func TestValidateRejectsInvalidConfig(t *testing.T) {
	setupEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "empty socket", mutate: func(c *Config) { c.Monitor.Socket = "" }, want: "monitor.socket must not be empty"},
		{name: "shared socket", mutate: func(c *Config) { c.Proc.Socket = c.Monitor.Socket }, want: "must differ"},
		{name: "shared lock", mutate: func(c *Config) { c.Proc.Lock = c.Monitor.Lock }, want: "must differ"},
		{name: "long socket", mutate: func(c *Config) { c.Proc.Socket = "/" + strings.Repeat("s", 120) }, want: "longer than"},
		{name: "zero accept timeout", mutate: func(c *Config) { c.Server.AcceptTimeout = D(0) }, want: "server.accept_timeout must be > 0"},
		{name: "zero retry", mutate: func(c *Config) { c.Log.Retry = D(0) }, want: "log.retry must be > 0"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "chatty" }, want: "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateWarnsOnRelativePathsAndSlowAccept(t *testing.T) {
	setupEnv(t)

	cfg := Default()
	cfg.Log.File = "responder.log"
	cfg.Server.AcceptTimeout = D(10 * time.Second)

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 2)
}

func TestRoleLookup(t *testing.T) {
	setupEnv(t)
	cfg := Default()

	monitor, err := cfg.Role(protocol.RoleMonitor)
	require.NoError(t, err)
	require.Equal(t, cfg.Monitor, monitor)

	_, err = cfg.Role(protocol.Role("gpu"))
	require.Error(t, err)
}

func TestExtraSocketsJoinRoleSockets(t *testing.T) {
	setupEnv(t)

	cfg, _, err := Parse("[proc]\nextra_sockets = [\"/run/a.sock\", \"/run/b.sock\"]\n", Default())
	require.NoError(t, err)
	require.Equal(t, []string{Default().Proc.Socket, "/run/a.sock", "/run/b.sock"}, cfg.Proc.Sockets())

	_, _, err = Parse("[proc]\nextra_sockets = [\"\"]\n", Default())
	require.Error(t, err)
	require.Contains(t, err.Error(), "proc.extra_sockets[0]")
}
