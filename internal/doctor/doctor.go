// Package doctor runs readiness diagnostics for config, responders, and the log pipe.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/sysprobe/internal/client"
	"github.com/rbright/sysprobe/internal/config"
	"github.com/rbright/sysprobe/internal/instance"
	"github.com/rbright/sysprobe/internal/logpipe"
	"github.com/rbright/sysprobe/internal/protocol"
	"github.com/rbright/sysprobe/internal/server"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes config, responder, and log pipe checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{checkConfig(cfg)}

	for _, role := range protocol.Roles() {
		roleCfg, err := cfg.Config.Role(role)
		if err != nil {
			checks = append(checks, Check{Name: string(role), Pass: false, Message: err.Error()})
			continue
		}
		checks = append(checks, checkLock(role, roleCfg.Lock))
		socket := checkSocket(ctx, role, roleCfg.Socket)
		checks = append(checks, socket)
		if cfg.Config.Server.Health && socket.Pass {
			checks = append(checks, checkHealth(ctx, role, roleCfg.Socket))
		}
	}

	checks = append(checks, checkPipe(cfg.Config.Log.Pipe))
	checks = append(checks, checkBinary("hyprctl", "monitor role reads outputs"))
	checks = append(checks, checkBinary("grim", "monitor role captures pixels"))

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Path)}
}

// checkLock reports who holds a role's instance lock. A free lock is not a failure.
func checkLock(role protocol.Role, path string) Check {
	name := string(role) + ".lock"
	status, err := instance.Inspect(path)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if !status.Held {
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("free (%s)", path)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("held by pid %d (%s)", status.PID, path)}
}

func checkSocket(ctx context.Context, role protocol.Role, path string) Check {
	name := string(role) + ".socket"
	alive, err := client.Probe(ctx, path, probeTimeout)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if !alive {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("no responder at %s", path)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("responder answering at %s", path)}
}

func checkHealth(ctx context.Context, role protocol.Role, socketPath string) Check {
	name := string(role) + ".health"
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status, err := server.CheckHealth(ctx, socketPath)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	return Check{
		Name:    name,
		Pass:    status == healthpb.HealthCheckResponse_SERVING,
		Message: status.String(),
	}
}

func checkPipe(path string) Check {
	fifo, err := logpipe.IsFIFO(path)
	if err != nil {
		return Check{Name: "log.pipe", Pass: false, Message: fmt.Sprintf("%s: %v", path, err)}
	}
	if !fifo {
		return Check{Name: "log.pipe", Pass: false, Message: fmt.Sprintf("%s is not a named pipe", path)}
	}
	return Check{Name: "log.pipe", Pass: true, Message: fmt.Sprintf("named pipe at %s", path)}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
