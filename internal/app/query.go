package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rbright/sysprobe/internal/cli"
	"github.com/rbright/sysprobe/internal/client"
	"github.com/rbright/sysprobe/internal/config"
	"github.com/rbright/sysprobe/internal/protocol"
)

// commandGet sends one call to every socket of the role that serves it.
func (r Runner) commandGet(ctx context.Context, cfg config.Config, parsed cli.Parsed) int {
	call := parsed.Target.Call(parsed.X, parsed.Y)
	roleCfg, err := cfg.Role(call.Tag().Role())
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitError
	}

	pool := client.NewPool(cfg.Client.Timeout.Duration)
	defer func() { _ = pool.Close() }()

	sockets := roleCfg.Sockets()
	results := pool.Fanout(ctx, sockets, call)

	exitCode := exitOK
	for _, result := range results {
		value, err := formatResult(parsed.Target, result)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %s: %v\n", result.Path, err)
			exitCode = exitError
			continue
		}
		if len(sockets) == 1 {
			fmt.Fprintln(r.Stdout, value)
			continue
		}
		fmt.Fprintf(r.Stdout, "%s: %s\n", result.Path, value)
	}
	return exitCode
}

func formatResult(target cli.Target, result client.Result) (string, error) {
	if result.Err != nil {
		return "", result.Err
	}
	resp := result.Response
	if !resp.Success {
		return "", &client.RemoteError{Message: resp.Error, Timestamp: resp.Timestamp}
	}

	switch target {
	case cli.TargetMonitor:
		params, err := protocol.DecodeResult[protocol.MonitorParams](resp)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%dx%d", params.Width, params.Height), nil
	case cli.TargetPixel:
		color, err := protocol.DecodeResult[protocol.PixelColor](resp)
		if err != nil {
			return "", err
		}
		return string(color), nil
	default:
		n, err := protocol.DecodeResult[int](resp)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(n), nil
	}
}

// commandServers prints every configured responder socket and whether it answers.
func (r Runner) commandServers(ctx context.Context, cfg config.Config) int {
	exitCode := exitOK
	for _, role := range protocol.Roles() {
		roleCfg, err := cfg.Role(role)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return exitError
		}
		for _, socket := range roleCfg.Sockets() {
			alive, err := client.Probe(ctx, socket, cfg.Client.Timeout.Duration)
			state := "down"
			switch {
			case err != nil:
				state = "error: " + err.Error()
				exitCode = exitError
			case alive:
				state = "up"
			}
			fmt.Fprintf(r.Stdout, "%-8s %-4s %s\n", role, state, socket)
		}
	}
	return exitCode
}
