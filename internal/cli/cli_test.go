package cli

import (
	"testing"

	"github.com/rbright/sysprobe/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/sysprobe.toml", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/sysprobe.toml", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseServeAndGet(t *testing.T) {
	parsed, err := Parse([]string{"serve", "--role", "proc"})
	require.NoError(t, err)
	require.Equal(t, CommandServe, parsed.Command)
	require.Equal(t, protocol.RoleProc, parsed.Role)

	parsed, err = Parse([]string{"get", "pixel", "--x", "10", "--y", "0"})
	require.NoError(t, err)
	require.Equal(t, CommandGet, parsed.Command)
	require.Equal(t, TargetPixel, parsed.Target)
	require.Equal(t, protocol.GetPixelColor{X: 10, Y: 0}, parsed.Target.Call(parsed.X, parsed.Y))

	parsed, err = Parse([]string{"--config", "/tmp/c.toml", "get", "threads"})
	require.NoError(t, err)
	require.Equal(t, protocol.GetThreadCount{}, parsed.Target.Call(0, 0))
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
		},
		{
			name:     "config after command",
			args:     []string{"servers", "--config", "/tmp/cfg"},
			wantCmd:  CommandServers,
			wantPath: "/tmp/cfg",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "serve without role",
			args:    []string{"serve"},
			wantErr: "requires --role",
		},
		{
			name:    "serve with unknown role",
			args:    []string{"serve", "--role", "gpu"},
			wantErr: "unknown role",
		},
		{
			name:    "role outside serve",
			args:    []string{"--role", "proc", "logd"},
			wantErr: "only valid with serve",
		},
		{
			name:    "get without target",
			args:    []string{"get"},
			wantErr: "requires a target",
		},
		{
			name:    "get unknown target",
			args:    []string{"get", "temperature"},
			wantErr: "unknown get target",
		},
		{
			name:    "get two targets",
			args:    []string{"get", "pid", "threads"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "pixel without coordinates",
			args:    []string{"get", "pixel", "--x", "1"},
			wantErr: "requires --x and --y",
		},
		{
			name:    "negative coordinate",
			args:    []string{"get", "pixel", "--x", "-1", "--y", "1"},
			wantErr: "non-negative integer",
		},
		{
			name:    "coordinates for other target",
			args:    []string{"get", "pid", "--x", "1"},
			wantErr: "only valid with get pixel",
		},
		{
			name:     "logd command",
			args:     []string{"logd"},
			wantCmd:  CommandLogd,
			wantHelp: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestHelpTextListsCommands(t *testing.T) {
	help := HelpText("sysprobe")
	for _, cmd := range []string{"serve --role", "logd", "get pixel", "servers", "doctor", "version"} {
		require.Contains(t, help, cmd)
	}
	require.Contains(t, help, "sysprobe/config.toml")
}
