package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rbright/sysprobe/internal/config"
	"github.com/rbright/sysprobe/internal/dispatch"
	"github.com/rbright/sysprobe/internal/display"
	"github.com/rbright/sysprobe/internal/instance"
	"github.com/rbright/sysprobe/internal/logging"
	"github.com/rbright/sysprobe/internal/logpipe"
	"github.com/rbright/sysprobe/internal/procinfo"
	"github.com/rbright/sysprobe/internal/protocol"
	"github.com/rbright/sysprobe/internal/server"
)

// commandServe runs one responder until ctx is cancelled. The instance lock
// is taken before the socket is touched so a second responder of the same
// role never unlinks a live socket.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, role protocol.Role, logger *slog.Logger) int {
	roleCfg, err := cfg.Role(role)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUsage
	}

	lock, err := instance.Acquire(roleCfg.Lock)
	if err != nil {
		if errors.Is(err, instance.ErrAlreadyRunning) {
			fmt.Fprintf(r.Stderr, "error: another instance is running (role=%s lock=%s)\n", role, roleCfg.Lock)
			logger.Error("another instance is running", "role", role, "lock", roleCfg.Lock)
			return exitError
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("acquire instance lock failed", "role", role, "error", err.Error())
		return exitError
	}
	defer func() { _ = lock.Release() }()

	pipe, err := logpipe.OpenWriter(ctx, cfg.Log.Pipe, logpipe.WriterOptions{
		WaitForReader: cfg.Log.WaitForReader,
		PollInterval:  cfg.Log.Retry.Duration,
		WriteTimeout:  cfg.Log.WriteTimeout.Duration,
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("shutdown before log reader attached", "role", role)
			return exitOK
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("open log pipe failed", "error", err.Error())
		return exitError
	}
	defer func() { _ = pipe.Close() }()

	table := r.table(role)
	procLogger := logging.NewProcess(r.Stderr, pipe, cfg.Log.SlogLevel()).With("role", table.Role())
	srv := server.New(server.Config{
		SocketPath:    roleCfg.Socket,
		AcceptTimeout: cfg.Server.AcceptTimeout.Duration,
		ReadPoll:      cfg.Server.ReadPoll.Duration,
		Handler:       table,
		Logger:        procLogger,
		Health:        cfg.Server.Health,
	})
	procLogger.Info("responder configured",
		"socket", srv.Addr(),
		"lock", lock.Path(),
		"pipe", pipe.Path(),
		"calls", table.Tags(),
	)

	if err := srv.Serve(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("responder failed", "role", role, "error", err.Error())
		var bindErr *server.BindError
		if errors.As(err, &bindErr) {
			return exitBind
		}
		return exitError
	}

	if dropped := pipe.Dropped(); dropped > 0 {
		logger.Warn("log pipe lines dropped", "role", role, "count", dropped)
	}
	logger.Info("responder exited", "role", role)
	return exitOK
}

func (r Runner) table(role protocol.Role) *dispatch.Table {
	switch role {
	case protocol.RoleMonitor:
		var provider dispatch.Display = display.Hyprland{}
		if r.Display != nil {
			provider = r.Display
		}
		return dispatch.New(role, provider, nil)
	default:
		var provider dispatch.Process = procinfo.New()
		if r.Process != nil {
			provider = r.Process
		}
		return dispatch.New(role, nil, provider)
	}
}

// commandLogd forwards the log pipe into the durable responder log.
func (r Runner) commandLogd(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	forwarder := logpipe.Forwarder{
		PipePath: cfg.Log.Pipe,
		LogPath:  cfg.Log.File,
		Retry:    cfg.Log.Retry.Duration,
		Logger:   logger,
	}
	if err := forwarder.Run(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitError
	}
	return exitOK
}
